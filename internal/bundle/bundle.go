// Package bundle reads and writes block bundles: the raw sub-blocks of one
// project file, already extracted from their container, packed as a single
// MessagePack document.
package bundle

import (
	"errors"
	"fmt"
	"sort"

	"github.com/basekick-labs/mppread/internal/calendar"
	"github.com/basekick-labs/mppread/pkg/models"
)

// Ext is the file extension of stored bundles
const Ext = ".mppb"

var (
	// ErrEmpty indicates a zero-length bundle
	ErrEmpty = errors.New("empty bundle")

	// ErrTooLarge indicates a bundle, or its decompressed form, exceeds the
	// configured size limit
	ErrTooLarge = errors.New("bundle too large")

	// ErrNoVersion indicates the bundle does not name its format version
	ErrNoVersion = errors.New("bundle has no format version")
)

// FixedBlock is one fixed data block with the meta table that indexes it.
// A block with no meta table holds consecutive items of ItemSize bytes.
type FixedBlock struct {
	Meta     []byte `msgpack:"meta,omitempty" json:"meta,omitempty"`
	Data     []byte `msgpack:"data" json:"data"`
	ItemSize int    `msgpack:"item_size" json:"item_size"`
}

// Uniform reports whether the block has no meta table
func (b FixedBlock) Uniform() bool {
	return len(b.Meta) == 0
}

// ClassBlocks holds the blocks of one entity class
type ClassBlocks struct {
	// Fixed holds the fixed blocks in field map block order
	Fixed   []FixedBlock `msgpack:"fixed" json:"fixed"`
	VarMeta []byte       `msgpack:"var_meta,omitempty" json:"var_meta,omitempty"`
	VarData []byte       `msgpack:"var_data,omitempty" json:"var_data,omitempty"`
	// FieldMap is the raw field map; when absent the field map is taken from
	// the property block or the version defaults
	FieldMap []byte `msgpack:"field_map,omitempty" json:"field_map,omitempty"`
	// EnterpriseCustom lists enterprise custom field types, merged into the
	// field map when present
	EnterpriseCustom []byte `msgpack:"enterprise_custom,omitempty" json:"enterprise_custom,omitempty"`
}

// Bundle is the decoded form of a block bundle
type Bundle struct {
	Name          string `msgpack:"name,omitempty" json:"name,omitempty"`
	FormatVersion string `msgpack:"format_version" json:"format_version"`
	// Props is the project property block
	Props   []byte                  `msgpack:"props,omitempty" json:"props,omitempty"`
	Classes map[string]*ClassBlocks `msgpack:"classes" json:"classes"`
	// ValueLists maps custom field value unique IDs to their stored values
	ValueLists map[int32][]byte `msgpack:"value_lists,omitempty" json:"value_lists,omitempty"`
	// Calendar is the project calendar used to place timephased work
	Calendar *calendar.Spec `msgpack:"calendar,omitempty" json:"calendar,omitempty"`
}

// Version returns the parsed format version
func (b *Bundle) Version() (models.FormatVersion, error) {
	if b.FormatVersion == "" {
		return 0, ErrNoVersion
	}
	return models.ParseFormatVersion(b.FormatVersion)
}

// Class returns the blocks of class, or nil
func (b *Bundle) Class(class models.FieldClass) *ClassBlocks {
	if b.Classes == nil {
		return nil
	}
	return b.Classes[class.String()]
}

// SetClass stores the blocks of class
func (b *Bundle) SetClass(class models.FieldClass, blocks *ClassBlocks) {
	if b.Classes == nil {
		b.Classes = make(map[string]*ClassBlocks)
	}
	b.Classes[class.String()] = blocks
}

// PresentClasses returns the classes carried by the bundle in decode order
func (b *Bundle) PresentClasses() []models.FieldClass {
	var out []models.FieldClass
	for _, c := range models.FieldClasses {
		if b.Class(c) != nil {
			out = append(out, c)
		}
	}
	return out
}

// Validate checks that the version and class names are known
func (b *Bundle) Validate() error {
	if _, err := b.Version(); err != nil {
		return err
	}
	names := make([]string, 0, len(b.Classes))
	for name := range b.Classes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := models.ParseFieldClass(name); err != nil {
			return fmt.Errorf("bundle class: %w", err)
		}
		blocks := b.Classes[name]
		if blocks == nil {
			continue
		}
		for i, fb := range blocks.Fixed {
			if fb.ItemSize <= 0 {
				return fmt.Errorf("bundle class %s: fixed block %d has item size %d", name, i, fb.ItemSize)
			}
		}
	}
	return nil
}

// Size returns the total number of raw block bytes carried by the bundle
func (b *Bundle) Size() int {
	n := len(b.Props)
	for _, c := range b.Classes {
		if c == nil {
			continue
		}
		for _, f := range c.Fixed {
			n += len(f.Meta) + len(f.Data)
		}
		n += len(c.VarMeta) + len(c.VarData) + len(c.FieldMap) + len(c.EnterpriseCustom)
	}
	for _, v := range b.ValueLists {
		n += len(v)
	}
	return n
}
