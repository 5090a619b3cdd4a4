package fieldmap

import (
	"math"

	"github.com/basekick-labs/mppread/internal/mppbin"
	"github.com/basekick-labs/mppread/pkg/models"
)

const (
	lookupMarkerMask = 0xFF00
	lookupMarker     = 0x0700
	lookupIDOffset   = 2

	unicodeDurationSize = 512
)

// VarSource is the variable data of an entity table.
type VarSource interface {
	Get(entityID int32, key int) ([]byte, bool)
}

// LookupTable resolves the entries of custom field value lists.
type LookupTable interface {
	Lookup(uniqueID int32) ([]byte, bool)
}

// LookupMap is a LookupTable backed by a map.
type LookupMap map[int32][]byte

// Lookup returns the raw value of a list entry.
func (m LookupMap) Lookup(uniqueID int32) ([]byte, bool) {
	v, ok := m[uniqueID]
	return v, ok
}

// Decoder reads field values for the entities of one class. It holds no
// mutable state and may be shared between goroutines.
type Decoder struct {
	schema   *Schema
	defaults models.ProjectDefaults
	lookup   LookupTable
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithProjectDefaults sets the unit conversion settings.
func WithProjectDefaults(d models.ProjectDefaults) DecoderOption {
	return func(dec *Decoder) { dec.defaults = d }
}

// WithLookupTable sets the custom field value lists.
func WithLookupTable(t LookupTable) DecoderOption {
	return func(dec *Decoder) { dec.lookup = t }
}

// NewDecoder creates a decoder for a schema.
func NewDecoder(schema *Schema, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		schema:   schema,
		defaults: models.DefaultProjectDefaults(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Schema returns the schema the decoder reads through.
func (d *Decoder) Schema() *Schema {
	return d.schema
}

// Populate decodes every mapped field of an entity into container. Fields
// that are absent or cannot be decoded are left unset. It returns the number
// of fields set.
func (d *Decoder) Populate(container models.FieldContainer, entityID int32, fixed [][]byte, vars VarSource) int {
	n := 0
	for _, item := range d.schema.Fields() {
		if v := d.read(item, entityID, fixed, vars); v != nil {
			container.Set(item.Field, v)
			n++
		}
	}
	return n
}

// Read decodes a single field. The result is nil when the field is unmapped,
// absent or undecodable.
func (d *Decoder) Read(id models.FieldID, entityID int32, fixed [][]byte, vars VarSource) any {
	item, ok := d.schema.Item(id)
	if !ok {
		return nil
	}
	return d.read(item, entityID, fixed, vars)
}

func (d *Decoder) read(item Item, entityID int32, fixed [][]byte, vars VarSource) any {
	switch item.Location.Kind {
	case Fixed:
		return d.readFixed(item, entityID, fixed, vars)
	case Variable:
		if vars == nil {
			return nil
		}
		return d.readVar(item, entityID, fixed, vars)
	default:
		// The bit position of meta flags within the meta block is not
		// known, so these fields stay unset.
		return nil
	}
}

func (d *Decoder) units(item Item, entityID int32, fixed [][]byte, vars VarSource, fallback models.TimeUnit) models.TimeUnit {
	def, ok := models.LookupField(item.Field)
	if !ok || def.Units == 0 || def.Units == item.Field {
		return fallback
	}
	if u, ok := d.Read(def.Units, entityID, fixed, vars).(models.TimeUnit); ok {
		return u
	}
	return fallback
}

func (d *Decoder) readFixed(item Item, entityID int32, fixed [][]byte, vars VarSource) any {
	loc := item.Location
	if loc.Block < 0 || loc.Block >= len(fixed) {
		return nil
	}
	data := fixed[loc.Block]
	off := loc.Offset
	if data == nil || off >= len(data) || off+fixedSize(item.Type) > len(data) {
		return nil
	}

	switch item.Type {
	case models.TypeDate:
		if t, ok := mppbin.Timestamp(data, off); ok {
			return t
		}
	case models.TypeInteger:
		return mppbin.Int(data, off)
	case models.TypeDuration:
		units := d.units(item, entityID, fixed, vars, d.defaults.DurationUnits)
		if v, ok := mppbin.AdjustedDuration(d.defaults, mppbin.Int(data, off), units); ok {
			return v
		}
	case models.TypeTimeUnits:
		return mppbin.DurationUnits(mppbin.Short(data, off), d.defaults.DurationUnits)
	case models.TypeConstraint:
		if c, ok := models.ConstraintTypeFromInt(mppbin.Short(data, off)); ok {
			return c
		}
	case models.TypePriority:
		return models.PriorityFromInt(mppbin.Short(data, off))
	case models.TypePercentage:
		if v, ok := mppbin.Percentage(data, off); ok {
			return v
		}
	case models.TypeTaskType:
		return models.TaskTypeFromInt(mppbin.Short(data, off))
	case models.TypeAccrue:
		return models.AccrueTypeFromInt(mppbin.Short(data, off))
	case models.TypeCurrency, models.TypeUnits:
		return mppbin.ScaledAmount(mppbin.Double(data, off))
	case models.TypeRate:
		return models.Rate{Amount: mppbin.Double(data, off), Units: models.Hours}
	case models.TypeWork:
		return work(mppbin.Double(data, off))
	case models.TypeShort:
		return mppbin.Short(data, off)
	case models.TypeBoolean:
		return mppbin.Short(data, off) != 0
	case models.TypeDelay:
		return mppbin.Duration(float64(mppbin.Short(data, off)), models.Hours)
	case models.TypeWorkUnits:
		return workUnits(mppbin.Byte(data, off))
	case models.TypeWorkGroup:
		return models.WorkGroupFromInt(mppbin.Short(data, off))
	case models.TypeRateUnits:
		if u, ok := models.TimeUnitFromInt(mppbin.Short(data, off) - 1); ok {
			return u
		}
	case models.TypeEarnedValueMethod:
		return models.EarnedValueMethodFromInt(mppbin.Short(data, off))
	case models.TypeRequestType:
		return models.RequestTypeFromInt(mppbin.Short(data, off))
	case models.TypeGUID:
		if g, ok := mppbin.GUID(data, off); ok {
			return g
		}
	}
	return nil
}

func (d *Decoder) readVar(item Item, entityID int32, fixed [][]byte, vars VarSource) any {
	blob, ok := vars.Get(entityID, item.Location.VarKey)
	if !ok {
		return nil
	}

	switch item.Type {
	case models.TypeDuration:
		units := d.units(item, entityID, fixed, vars, models.Hours)
		return d.durationValue(blob, units)
	case models.TypeTimeUnits:
		return mppbin.DurationUnits(mppbin.Short(blob, 0), d.defaults.DurationUnits)
	case models.TypeCurrency:
		return mppbin.ScaledAmount(mppbin.Double(blob, 0))
	case models.TypeString:
		return d.stringValue(blob)
	case models.TypeDate:
		return d.dateValue(blob)
	case models.TypeNumeric:
		return d.numericValue(blob)
	case models.TypeInteger:
		return mppbin.Int(blob, 0)
	case models.TypeWork:
		return work(mppbin.Double(blob, 0))
	case models.TypeNotes:
		return emptyToNil(mppbin.String(blob, 0))
	case models.TypeDelay:
		return mppbin.Duration(float64(mppbin.Short(blob, 0)), models.Hours)
	case models.TypeWorkUnits:
		return workUnits(mppbin.Byte(blob, 0))
	case models.TypeRateUnits:
		if u, ok := models.TimeUnitFromInt(mppbin.Short(blob, 0) - 1); ok {
			return u
		}
	case models.TypeEarnedValueMethod:
		return models.EarnedValueMethodFromInt(mppbin.Short(blob, 0))
	case models.TypeRequestType:
		return models.RequestTypeFromInt(mppbin.Short(blob, 0))
	case models.TypeAccrue:
		return models.AccrueTypeFromInt(mppbin.Short(blob, 0))
	case models.TypePercentage:
		return float64(mppbin.Short(blob, 0))
	case models.TypeShort:
		return mppbin.Short(blob, 0)
	case models.TypeBoolean:
		return mppbin.Short(blob, 0) != 0
	case models.TypeWorkGroup:
		return models.WorkGroupFromInt(mppbin.Short(blob, 0))
	case models.TypeGUID:
		if g, ok := mppbin.GUID(blob, 0); ok {
			return g
		}
	case models.TypeBookingType:
		if b, ok := models.BookingTypeFromInt(mppbin.Short(blob, 0)); ok {
			return b
		}
	case models.TypeBinary:
		return blob
	}
	return nil
}

// resolve follows a value list reference. It returns the blob unchanged when
// the value is stored inline.
func (d *Decoder) resolve(blob []byte) ([]byte, bool) {
	if !isReference(blob) {
		return blob, true
	}
	if d.lookup == nil {
		return nil, false
	}
	return d.lookup.Lookup(mppbin.Int(blob, lookupIDOffset))
}

func isReference(blob []byte) bool {
	return len(blob) >= lookupIDOffset+4 && mppbin.Short(blob, 0)&lookupMarkerMask == lookupMarker
}

func (d *Decoder) durationValue(blob []byte, units models.TimeUnit) any {
	if isReference(blob) {
		value, ok := d.resolve(blob)
		if !ok || len(value) < 4 {
			return nil
		}
		if len(value) >= 6 {
			units = mppbin.DurationUnits(mppbin.Short(value, 4), units)
		}
		if v, ok := mppbin.AdjustedDuration(d.defaults, mppbin.Int(value, 0), units); ok {
			return v
		}
		return nil
	}

	if len(blob) == unicodeDurationSize {
		return emptyToNil(mppbin.UnicodeString(blob, 0))
	}
	if len(blob) >= 4 {
		if v, ok := mppbin.AdjustedDuration(d.defaults, mppbin.Int(blob, 0), units); ok {
			return v
		}
	}
	return nil
}

func (d *Decoder) stringValue(blob []byte) any {
	value, ok := d.resolve(blob)
	if !ok {
		return nil
	}
	return emptyToNil(mppbin.UnicodeString(value, 0))
}

func (d *Decoder) dateValue(blob []byte) any {
	value, ok := d.resolve(blob)
	if !ok {
		return nil
	}
	if t, ok := mppbin.Timestamp(value, 0); ok {
		return t
	}
	return nil
}

func (d *Decoder) numericValue(blob []byte) any {
	value, ok := d.resolve(blob)
	if !ok || len(value) < 8 {
		return nil
	}
	return mppbin.Double(value, 0)
}

// work converts stored work to hours, ignoring values below one minute.
func work(raw float64) models.Duration {
	if math.Abs(raw) < 1000 {
		raw = 0
	}
	return models.NewDuration(raw/60000, models.Hours)
}

func workUnits(v int) any {
	if v == 0 {
		return nil
	}
	if u, ok := mppbin.WorkUnits(v); ok {
		return u
	}
	return nil
}

func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
