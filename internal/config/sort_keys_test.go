package config

import (
	"reflect"
	"testing"
)

func TestParseSortKeys(t *testing.T) {
	tests := []struct {
		name            string
		config          ExportConfig
		wantSortKeys    map[string][]string
		wantDefaultKeys []string
		wantErr         bool
	}{
		{
			name:            "empty config falls back to unique_id",
			config:          ExportConfig{},
			wantSortKeys:    map[string][]string{},
			wantDefaultKeys: []string{"unique_id"},
		},
		{
			name: "per class keys",
			config: ExportConfig{
				SortKeys:    []string{"Task:start, unique_id", "resource:name"},
				DefaultSort: "unique_id",
			},
			wantSortKeys: map[string][]string{
				"task":     {"start", "unique_id"},
				"resource": {"name"},
			},
			wantDefaultKeys: []string{"unique_id"},
		},
		{
			name:            "custom default",
			config:          ExportConfig{DefaultSort: "id, unique_id"},
			wantSortKeys:    map[string][]string{},
			wantDefaultKeys: []string{"id", "unique_id"},
		},
		{
			name:    "missing colon",
			config:  ExportConfig{SortKeys: []string{"task"}},
			wantErr: true,
		},
		{
			name:    "empty class",
			config:  ExportConfig{SortKeys: []string{":start"}},
			wantErr: true,
		},
		{
			name:    "empty key",
			config:  ExportConfig{SortKeys: []string{"task:start,,finish"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSortKeys, gotDefaultKeys, err := ParseSortKeys(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSortKeys() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(gotSortKeys, tt.wantSortKeys) {
				t.Errorf("ParseSortKeys() sortKeys = %v, want %v", gotSortKeys, tt.wantSortKeys)
			}
			if !reflect.DeepEqual(gotDefaultKeys, tt.wantDefaultKeys) {
				t.Errorf("ParseSortKeys() defaultKeys = %v, want %v", gotDefaultKeys, tt.wantDefaultKeys)
			}
		})
	}
}
