// Package props decodes property blocks: keyed project settings and the
// embedded field maps.
package props

import (
	"fmt"
	"sort"
	"time"

	"github.com/basekick-labs/mppread/internal/mppbin"
	"github.com/basekick-labs/mppread/pkg/models"
	"github.com/google/uuid"
)

const (
	headerSize      = 16
	entryHeaderSize = 12
)

// Well known property keys.
const (
	ProjectStartDate         int32 = 37748738
	ProjectFinishDate        int32 = 37748739
	CurrencySymbol           int32 = 37748752
	CurrencyDigits           int32 = 37748754
	DurationUnits            int32 = 37748757
	WorkUnits                int32 = 37748758
	SplitTasks               int32 = 37748762
	MinutesPerDay            int32 = 37748765
	MinutesPerWeek           int32 = 37748766
	StandardRate             int32 = 37748767
	OvertimeRate             int32 = 37748768
	ProjectGUID              int32 = 37748777
	StatusDate               int32 = 37748805
	DaysPerMonth             int32 = 37753743
	CurrencyCode             int32 = 37753787
	EnterpriseCustomFieldMap int32 = 37753797

	TaskFieldMap        int32 = 131092
	TaskFieldMap2       int32 = 50331668
	ResourceFieldMap    int32 = 131093
	ResourceFieldMap2   int32 = 50331669
	RelationFieldMap    int32 = 131094
	AssignmentFieldMap  int32 = 131095
	AssignmentFieldMap2 int32 = 50331671
)

// FieldMapKeys returns the primary and secondary field map keys of a class.
// A zero secondary key means the class has none.
func FieldMapKeys(class models.FieldClass) (primary, secondary int32) {
	switch class {
	case models.TaskClass:
		return TaskFieldMap, TaskFieldMap2
	case models.ResourceClass:
		return ResourceFieldMap, ResourceFieldMap2
	case models.AssignmentClass:
		return AssignmentFieldMap, AssignmentFieldMap2
	default:
		return RelationFieldMap, 0
	}
}

// Props is a decoded property block.
type Props struct {
	values map[int32][]byte
}

// New decodes a property block. Entries are [size][key][attrib][payload]
// padded to an even length; decoding stops at the first entry that would run
// past the end of the block.
func New(data []byte) (*Props, error) {
	if len(data) < headerSize {
		return nil, &mppbin.FormatError{
			Block: "props",
			Err:   fmt.Errorf("%w: %d bytes, need %d", mppbin.ErrShortHeader, len(data), headerSize),
		}
	}

	p := &Props{values: make(map[int32][]byte)}
	offset := headerSize
	for offset+entryHeaderSize <= len(data) {
		size := int(mppbin.Int(data, offset))
		key := mppbin.Int(data, offset+4)
		start := offset + entryHeaderSize
		if size < 0 || start+size > len(data) {
			break
		}
		p.values[key] = data[start : start+size : start+size]

		offset = start + size
		if size%2 != 0 {
			offset++
		}
	}
	return p, nil
}

// Empty returns a property block with no entries.
func Empty() *Props {
	return &Props{values: map[int32][]byte{}}
}

// Get returns the raw value of a property.
func (p *Props) Get(key int32) ([]byte, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Has reports whether a property is present.
func (p *Props) Has(key int32) bool {
	_, ok := p.values[key]
	return ok
}

// Keys returns the property keys in ascending order.
func (p *Props) Keys() []int32 {
	keys := make([]int32, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len returns the number of properties.
func (p *Props) Len() int {
	return len(p.values)
}

// Byte returns the first byte of a property.
func (p *Props) Byte(key int32) int {
	return mppbin.Byte(p.values[key], 0)
}

// Short returns a property as an unsigned 16-bit value.
func (p *Props) Short(key int32) int {
	return mppbin.Short(p.values[key], 0)
}

// Int returns a property as a 32-bit value.
func (p *Props) Int(key int32) int32 {
	return mppbin.Int(p.values[key], 0)
}

// Double returns a property as a float.
func (p *Props) Double(key int32) float64 {
	return mppbin.Double(p.values[key], 0)
}

// Bool returns true for a non-zero 16-bit property.
func (p *Props) Bool(key int32) bool {
	return p.Short(key) != 0
}

// Timestamp returns a date and time property.
func (p *Props) Timestamp(key int32) (time.Time, bool) {
	return mppbin.Timestamp(p.values[key], 0)
}

// UnicodeString returns a UTF-16 property.
func (p *Props) UnicodeString(key int32) string {
	return mppbin.UnicodeString(p.values[key], 0)
}

// GUID returns an identifier property.
func (p *Props) GUID(key int32) (uuid.UUID, bool) {
	return mppbin.GUID(p.values[key], 0)
}

// ProjectDefaults reads the unit conversion settings, falling back to the
// settings of a new project for anything missing or zero.
func (p *Props) ProjectDefaults() models.ProjectDefaults {
	d := models.DefaultProjectDefaults()
	if v := p.Int(MinutesPerDay); v > 0 {
		d.MinutesPerDay = float64(v)
	}
	if v := p.Int(MinutesPerWeek); v > 0 {
		d.MinutesPerWeek = float64(v)
	}
	if v := p.Short(DaysPerMonth); v > 0 {
		d.DaysPerMonth = float64(v)
	}
	if p.Has(DurationUnits) {
		d.DurationUnits = mppbin.DurationUnits(p.Short(DurationUnits), d.DurationUnits)
	}
	if p.Has(WorkUnits) {
		if u, ok := mppbin.WorkUnits(p.Short(WorkUnits)); ok {
			d.WorkUnits = u
		}
	}
	return d
}

// Project reads the project-wide settings.
func (p *Props) Project() models.ProjectProperties {
	pp := models.ProjectProperties{
		CurrencySymbol:      p.UnicodeString(CurrencySymbol),
		CurrencyCode:        p.UnicodeString(CurrencyCode),
		CurrencyDigits:      p.Short(CurrencyDigits),
		DefaultStandardRate: models.Rate{Amount: p.Double(StandardRate), Units: models.Hours},
		DefaultOvertimeRate: models.Rate{Amount: p.Double(OvertimeRate), Units: models.Hours},
		SplitInProgress:     p.Bool(SplitTasks),
		Defaults:            p.ProjectDefaults(),
	}
	pp.GUID, _ = p.GUID(ProjectGUID)
	pp.StartDate, _ = p.Timestamp(ProjectStartDate)
	pp.FinishDate, _ = p.Timestamp(ProjectFinishDate)
	pp.StatusDate, _ = p.Timestamp(StatusDate)
	return pp
}
