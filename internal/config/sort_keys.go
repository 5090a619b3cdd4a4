package config

import (
	"fmt"
	"strings"
)

// ParseSortKeys parses the export sort key configuration.
// Format: ["class:field1,field2", ...]
// Returns:
//   - map[class][]fields: Per-class sort keys
//   - []string: Default sort keys for classes not in the map
//   - error: If configuration is invalid
func ParseSortKeys(cfg ExportConfig) (map[string][]string, []string, error) {
	sortKeysMap := make(map[string][]string)

	for _, entry := range cfg.SortKeys {
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			return nil, nil, fmt.Errorf("invalid sort key format: %s (expected 'class:field1,field2')", entry)
		}

		class := strings.ToLower(strings.TrimSpace(parts[0]))
		if class == "" {
			return nil, nil, fmt.Errorf("empty class name in sort key: %s", entry)
		}

		keys := strings.Split(parts[1], ",")
		parsedKeys := make([]string, 0, len(keys))
		for _, key := range keys {
			key = strings.TrimSpace(key)
			if key == "" {
				return nil, nil, fmt.Errorf("empty sort key in: %s", entry)
			}
			parsedKeys = append(parsedKeys, key)
		}

		sortKeysMap[class] = parsedKeys
	}

	defaultKeys := strings.Split(cfg.DefaultSort, ",")
	parsedDefaultKeys := make([]string, 0, len(defaultKeys))
	for _, key := range defaultKeys {
		key = strings.TrimSpace(key)
		if key != "" {
			parsedDefaultKeys = append(parsedDefaultKeys, key)
		}
	}

	if len(parsedDefaultKeys) == 0 {
		parsedDefaultKeys = []string{"unique_id"}
	}

	return sortKeysMap, parsedDefaultKeys, nil
}
