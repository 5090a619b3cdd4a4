package fieldmap

import (
	"fmt"

	"github.com/basekick-labs/mppread/pkg/models"
)

// LocationKind says where a field's value is stored.
type LocationKind int

const (
	Fixed LocationKind = iota
	Variable
	MetaFlag
	Unknown
)

func (k LocationKind) String() string {
	switch k {
	case Fixed:
		return "fixed"
	case Variable:
		return "var"
	case MetaFlag:
		return "meta"
	default:
		return "unknown"
	}
}

// Location is the storage location of one field. Block and Offset apply to
// Fixed; VarKey to Variable; Mask and Block to MetaFlag.
type Location struct {
	Kind   LocationKind `json:"kind"`
	Block  int          `json:"block,omitempty"`
	Offset int          `json:"offset,omitempty"`
	VarKey int          `json:"var_key,omitempty"`
	Mask   uint32       `json:"mask,omitempty"`
}

// FixedAt returns a fixed data location.
func FixedAt(block, offset int) Location {
	return Location{Kind: Fixed, Block: block, Offset: offset}
}

// VarAt returns a var data location.
func VarAt(key int) Location {
	return Location{Kind: Variable, VarKey: key}
}

// MetaAt returns a meta flag location.
func MetaAt(mask uint32, block int) Location {
	return Location{Kind: MetaFlag, Mask: mask, Block: block}
}

func (l Location) String() string {
	switch l.Kind {
	case Fixed:
		return fmt.Sprintf("fixed block=%d offset=%d", l.Block, l.Offset)
	case Variable:
		return fmt.Sprintf("var key=%d", l.VarKey)
	case MetaFlag:
		return fmt.Sprintf("meta mask=%08x block=%d", l.Mask, l.Block)
	default:
		return "unknown"
	}
}

// Item binds a field to its location.
type Item struct {
	Field    models.FieldID  `json:"field"`
	Type     models.DataType `json:"type"`
	Location Location        `json:"location"`
}

func (i Item) less(o Item) bool {
	if i.Location.Kind != o.Location.Kind {
		return i.Location.Kind < o.Location.Kind
	}
	switch i.Location.Kind {
	case Fixed:
		if i.Location.Block != o.Location.Block {
			return i.Location.Block < o.Location.Block
		}
		if i.Location.Offset != o.Location.Offset {
			return i.Location.Offset < o.Location.Offset
		}
	case Variable:
		if i.Location.VarKey != o.Location.VarKey {
			return i.Location.VarKey < o.Location.VarKey
		}
	}
	return i.Field < o.Field
}

// fixedSize is the number of bytes a type occupies in a fixed record.
func fixedSize(t models.DataType) int {
	switch t {
	case models.TypeDate, models.TypeInteger, models.TypeDuration:
		return 4
	case models.TypeTimeUnits, models.TypeConstraint, models.TypePriority, models.TypePercentage,
		models.TypeTaskType, models.TypeAccrue, models.TypeShort, models.TypeBoolean, models.TypeDelay,
		models.TypeWorkGroup, models.TypeRateUnits, models.TypeEarnedValueMethod, models.TypeRequestType:
		return 2
	case models.TypeCurrency, models.TypeUnits, models.TypeRate, models.TypeWork:
		return 8
	case models.TypeWorkUnits:
		return 1
	case models.TypeGUID:
		return 16
	default:
		return 0
	}
}
