// Package fieldmap maps semantic fields to their storage locations for one
// format version and entity class, and decodes entity records through that
// mapping.
package fieldmap

import (
	"sort"

	"github.com/basekick-labs/mppread/internal/mppbin"
	"github.com/basekick-labs/mppread/internal/props"
	"github.com/basekick-labs/mppread/pkg/models"
)

const (
	// RowSize is the size of one field map row.
	RowSize = 28
	// MaxFixedBlocks is the number of fixed blocks with a tracked watermark.
	MaxFixedBlocks = 2

	noOffset         = 0xFFFF
	metaBlockOneFlag = 0x64

	rowMask     = 0
	rowOffset   = 4
	rowVarKey   = 6
	rowType     = 12
	rowCategory = 20
)

// Schema is an immutable field to location mapping.
type Schema struct {
	version  models.FormatVersion
	class    models.FieldClass
	items    map[models.FieldID]Item
	maxFixed [MaxFixedBlocks]int
	embedded bool
}

func newSchema(version models.FormatVersion, class models.FieldClass) *Schema {
	return &Schema{
		version: version,
		class:   class,
		items:   make(map[models.FieldID]Item),
	}
}

// Build decodes a field map blob of 28-byte rows. Rows naming unknown field
// types or fields of another class are left out of the schema but still
// count towards fixed block boundaries. A nil or empty blob yields the
// default schema for the version and class.
func Build(version models.FormatVersion, class models.FieldClass, blob []byte) *Schema {
	if len(blob) < RowSize {
		return Default(version, class)
	}

	s := newSchema(version, class)
	s.embedded = true

	lastOffset := 0
	block := 0
	for index := 0; index+RowSize <= len(blob); index += RowSize {
		row := blob[index : index+RowSize]
		mask := uint32(mppbin.Int(row, rowMask))
		offset := mppbin.Short(row, rowOffset)
		typeValue := mppbin.Int(row, rowType)
		category := mppbin.Short(row, rowCategory)

		id := models.FieldID(typeValue)
		def, known := models.LookupField(id)

		// Every fixed row counts towards block boundaries, in the catalog or not
		if offset != noOffset {
			if offset < lastOffset {
				block++
			}
			lastOffset = offset
			size := 0
			if known {
				size = fixedSize(def.Type)
			}
			s.raiseWatermark(block, offset+size)
		}
		if !known {
			continue
		}

		varKey := mppbin.Byte(row, rowVarKey)
		if UsesTypeAsVarKey(version) {
			if sub, ok := substituteVarKey(version, id); ok {
				varKey = sub
			} else {
				varKey = int(typeValue & 0xFFFF)
			}
		}

		var loc Location
		switch {
		case offset != noOffset:
			loc = FixedAt(block, offset)
		case mask != 0:
			metaBlock := 0
			if category == metaBlockOneFlag {
				metaBlock = 1
			}
			loc = MetaAt(mask, metaBlock)
		case varKey != 0:
			loc = VarAt(varKey)
		default:
			loc = Location{Kind: Unknown}
		}

		if c, ok := id.Class(); ok && c == class {
			s.items[id] = Item{Field: id, Type: def.Type, Location: loc}
		}
	}
	return s
}

// BuildFromProps builds the schema of a class from the field map stored in a
// property block, using the primary key first and then the secondary key.
// Enterprise custom fields declared in the block are added.
func BuildFromProps(version models.FormatVersion, class models.FieldClass, p *props.Props) *Schema {
	var blob []byte
	primary, secondary := props.FieldMapKeys(class)
	for _, key := range []int32{primary, secondary} {
		if key == 0 {
			continue
		}
		if v, ok := p.Get(key); ok {
			blob = v
			break
		}
	}

	s := Build(version, class, blob)
	if custom, ok := p.Get(props.EnterpriseCustomFieldMap); ok {
		s.Merge(BuildEnterpriseCustom(version, class, custom))
	}
	return s
}

// BuildEnterpriseCustom decodes an enterprise custom field list: 4-byte field
// types starting at byte 4. Every custom field of the class is stored in var
// data under the low 16 bits of its type.
func BuildEnterpriseCustom(version models.FormatVersion, class models.FieldClass, blob []byte) *Schema {
	s := newSchema(version, class)
	for index := 4; index+4 <= len(blob); index += 4 {
		typeValue := mppbin.Int(blob, index)
		id := models.FieldID(typeValue)
		def, known := models.LookupField(id)
		if !known || !id.IsCustom() {
			continue
		}
		if c, ok := id.Class(); !ok || c != class {
			continue
		}
		s.items[id] = Item{Field: id, Type: def.Type, Location: VarAt(int(typeValue & 0xFFFF))}
	}
	return s
}

// Merge adds the items of other, replacing items for the same field.
func (s *Schema) Merge(other *Schema) {
	for id, item := range other.items {
		s.items[id] = item
	}
	for i := range s.maxFixed {
		s.raiseWatermark(i, other.maxFixed[i])
	}
}

func (s *Schema) raiseWatermark(block, size int) {
	if block < MaxFixedBlocks && size > s.maxFixed[block] {
		s.maxFixed[block] = size
	}
}

// Version returns the format version the schema was built for.
func (s *Schema) Version() models.FormatVersion {
	return s.version
}

// Class returns the entity class of the schema.
func (s *Schema) Class() models.FieldClass {
	return s.class
}

// Embedded reports whether the schema came from a field map blob rather than
// the default table.
func (s *Schema) Embedded() bool {
	return s.embedded
}

// Len returns the number of mapped fields.
func (s *Schema) Len() int {
	return len(s.items)
}

// Item returns the mapping of a field.
func (s *Schema) Item(id models.FieldID) (Item, bool) {
	item, ok := s.items[id]
	return item, ok
}

// Location returns the location of a field.
func (s *Schema) Location(id models.FieldID) (Location, bool) {
	item, ok := s.items[id]
	return item.Location, ok
}

// FixedOffset returns the fixed data offset of a field, or -1.
func (s *Schema) FixedOffset(id models.FieldID) int {
	item, ok := s.items[id]
	if !ok || item.Location.Kind != Fixed {
		return -1
	}
	return item.Location.Offset
}

// VarKey returns the var data key of a field.
func (s *Schema) VarKey(id models.FieldID) (int, bool) {
	item, ok := s.items[id]
	if !ok || item.Location.Kind != Variable {
		return 0, false
	}
	return item.Location.VarKey, true
}

// FieldByVarKey returns the field stored under a var data key.
func (s *Schema) FieldByVarKey(key int) (models.FieldID, bool) {
	for _, item := range s.Fields() {
		if item.Location.Kind == Variable && item.Location.VarKey == key {
			return item.Field, true
		}
	}
	return 0, false
}

// MaxFixedDataSize returns the highest byte used by fixed fields in a block.
func (s *Schema) MaxFixedDataSize(block int) int {
	if block < 0 || block >= MaxFixedBlocks {
		return 0
	}
	return s.maxFixed[block]
}

// Fields returns every item ordered by location.
func (s *Schema) Fields() []Item {
	items := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].less(items[j]) })
	return items
}
