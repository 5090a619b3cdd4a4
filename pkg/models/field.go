package models

import (
	"fmt"
	"sort"
	"strings"
)

// FormatVersion identifies a generation of the binary file format.
type FormatVersion int

const (
	MPP8  FormatVersion = 8
	MPP9  FormatVersion = 9
	MPP12 FormatVersion = 12
	MPP14 FormatVersion = 14
)

// ParseFormatVersion parses "mpp9", "MPP12", "14" and similar.
func ParseFormatVersion(s string) (FormatVersion, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "mpp") {
	case "8":
		return MPP8, nil
	case "9":
		return MPP9, nil
	case "12":
		return MPP12, nil
	case "14":
		return MPP14, nil
	default:
		return 0, fmt.Errorf("unknown format version %q", s)
	}
}

func (v FormatVersion) String() string {
	return fmt.Sprintf("MPP%d", int(v))
}

// FieldClass is the entity class a field belongs to.
type FieldClass int

const (
	TaskClass FieldClass = iota
	ResourceClass
	AssignmentClass
	RelationClass
)

// FieldClasses lists every class in decode order.
var FieldClasses = []FieldClass{TaskClass, ResourceClass, AssignmentClass, RelationClass}

// ParseFieldClass parses a class name as printed by String.
func ParseFieldClass(s string) (FieldClass, error) {
	for _, c := range FieldClasses {
		if c.String() == strings.ToLower(s) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown field class %q", s)
}

func (c FieldClass) String() string {
	switch c {
	case TaskClass:
		return "task"
	case ResourceClass:
		return "resource"
	case AssignmentClass:
		return "assignment"
	case RelationClass:
		return "relation"
	default:
		return fmt.Sprintf("FieldClass(%d)", int(c))
	}
}

// Field class prefixes occupy the high 16 bits of a raw field type value.
const (
	TaskFieldBase       = 0x0B400000
	ResourceFieldBase   = 0x0C400000
	RelationFieldBase   = 0x0E400000
	AssignmentFieldBase = 0x0F400000
)

func (c FieldClass) base() int32 {
	switch c {
	case ResourceClass:
		return ResourceFieldBase
	case AssignmentClass:
		return AssignmentFieldBase
	case RelationClass:
		return RelationFieldBase
	default:
		return TaskFieldBase
	}
}

// DataType is the declared semantic type of a field.
type DataType int

const (
	TypeBinary DataType = iota
	TypeDate
	TypeInteger
	TypeDuration
	TypeTimeUnits
	TypeConstraint
	TypePriority
	TypePercentage
	TypeTaskType
	TypeAccrue
	TypeCurrency
	TypeUnits
	TypeRate
	TypeWork
	TypeShort
	TypeBoolean
	TypeDelay
	TypeWorkUnits
	TypeWorkGroup
	TypeRateUnits
	TypeEarnedValueMethod
	TypeRequestType
	TypeBookingType
	TypeGUID
	TypeString
	TypeNumeric
	TypeNotes
)

var dataTypeNames = [...]string{
	"binary", "date", "integer", "duration", "time_units", "constraint", "priority",
	"percentage", "task_type", "accrue", "currency", "units", "rate", "work", "short",
	"boolean", "delay", "work_units", "workgroup", "rate_units", "earned_value_method",
	"request_type", "booking_type", "guid", "string", "numeric", "notes",
}

func (t DataType) String() string {
	if t < 0 || int(t) >= len(dataTypeNames) {
		return fmt.Sprintf("DataType(%d)", int(t))
	}
	return dataTypeNames[t]
}

// FieldID is the raw 32-bit field type value stored in schema rows: a class
// prefix in the high 16 bits and a field index in the low 16 bits.
type FieldID int32

// MakeFieldID combines a class and field index.
func MakeFieldID(class FieldClass, index int) FieldID {
	return FieldID(class.base() | int32(index&0xFFFF))
}

// Index returns the low 16 bits of the field type value.
func (f FieldID) Index() int {
	return int(f) & 0xFFFF
}

// Class derives the entity class from the field type prefix.
func (f FieldID) Class() (FieldClass, bool) {
	switch int32(f) &^ 0xFFFF {
	case TaskFieldBase:
		return TaskClass, true
	case ResourceFieldBase:
		return ResourceClass, true
	case AssignmentFieldBase:
		return AssignmentClass, true
	case RelationFieldBase:
		return RelationClass, true
	default:
		return 0, false
	}
}

func (f FieldID) String() string {
	if def, ok := fieldDefs[f]; ok {
		c, _ := f.Class()
		return c.String() + "." + def.Name
	}
	return fmt.Sprintf("field(0x%08X)", uint32(f))
}

// FieldDef describes a known field.
type FieldDef struct {
	ID   FieldID
	Name string
	Type DataType
	// Units names the companion time-units field of a duration, zero if none.
	Units FieldID
}

// LookupField returns the definition of a known field.
func LookupField(id FieldID) (FieldDef, bool) {
	def, ok := fieldDefs[id]
	return def, ok
}

// FieldsOf returns every known field of a class ordered by index.
func FieldsOf(class FieldClass) []FieldDef {
	var defs []FieldDef
	for id, def := range fieldDefs {
		if c, ok := id.Class(); ok && c == class {
			defs = append(defs, def)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// FieldByName looks up a field by class and name.
func FieldByName(class FieldClass, name string) (FieldDef, bool) {
	for id, def := range fieldDefs {
		if c, ok := id.Class(); ok && c == class && def.Name == name {
			return def, true
		}
	}
	return FieldDef{}, false
}
