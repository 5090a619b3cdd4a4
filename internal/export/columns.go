package export

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/basekick-labs/mppread/pkg/models"
)

// columnKind is the storage type a field is written as in tabular formats.
type columnKind int

const (
	kindString columnKind = iota
	kindInt
	kindFloat
	kindBool
	kindTime
)

func (k columnKind) String() string {
	switch k {
	case kindInt:
		return "int"
	case kindFloat:
		return "float"
	case kindBool:
		return "bool"
	case kindTime:
		return "timestamp"
	default:
		return "string"
	}
}

func kindOf(v any) columnKind {
	switch v.(type) {
	case time.Time:
		return kindTime
	case bool:
		return kindBool
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return kindInt
	case float32, float64:
		return kindFloat
	default:
		return kindString
	}
}

// widen combines the kinds seen for one column across entities.
func widen(a, b columnKind) columnKind {
	if a == b {
		return a
	}
	if (a == kindInt && b == kindFloat) || (a == kindFloat && b == kindInt) {
		return kindFloat
	}
	return kindString
}

// column is one field of a class as written to a table.
type column struct {
	name string
	kind columnKind
}

// columnsOf returns the union of the fields of entities, ordered by name.
func columnsOf(entities []*models.Entity) []column {
	kinds := make(map[string]columnKind)
	for _, e := range entities {
		for name, v := range e.Values {
			k := kindOf(v)
			if prev, ok := kinds[name]; ok {
				k = widen(prev, k)
			}
			kinds[name] = k
		}
	}

	cols := make([]column, 0, len(kinds))
	for name, k := range kinds {
		cols = append(cols, column{name: name, kind: k})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].name < cols[j].name })
	return cols
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case models.Duration:
		return n.Value, true
	case models.Rate:
		return n.Amount, true
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return hex.EncodeToString(s)
	case time.Time:
		return s.Format(time.RFC3339)
	case bool:
		return strconv.FormatBool(s)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}
