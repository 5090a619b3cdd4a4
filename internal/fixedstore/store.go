// Package fixedstore resolves records in a fixed data block through the meta
// table that describes it.
package fixedstore

import (
	"github.com/basekick-labs/mppread/internal/mppbin"
	"github.com/rs/zerolog"
)

const (
	// HeaderSize is the size of the meta table header.
	HeaderSize = 16

	declaredCountOffset = 8
	statusOffset        = 0
	recordOffset        = 4
)

// DeletedFunc reports whether a meta row marks its record as deleted.
type DeletedFunc func(row []byte) bool

// StatusDeleted treats a 32-bit status of 2 or 6 as deleted.
func StatusDeleted(row []byte) bool {
	status := mppbin.Int(row, statusOffset)
	return status == 2 || status == 6
}

// ShortStatusDeleted treats any non-zero 16-bit status as deleted.
func ShortStatusDeleted(row []byte) bool {
	return mppbin.SignedShort(row, statusOffset) != 0
}

// Option configures a Store.
type Option func(*options)

type options struct {
	maxItemSize int
	minItemSize int
	deleted     DeletedFunc
	logger      zerolog.Logger
	block       string
}

// WithMaxItemSize caps every record at size bytes.
func WithMaxItemSize(size int) Option {
	return func(o *options) { o.maxItemSize = size }
}

// WithMinItemSize sets the size used for rows that share an offset with the
// following row.
func WithMinItemSize(size int) Option {
	return func(o *options) { o.minItemSize = size }
}

// WithDeleted replaces the deleted-row predicate.
func WithDeleted(fn DeletedFunc) Option {
	return func(o *options) { o.deleted = fn }
}

// WithLogger sets the logger used for construction diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithBlockName names the block in errors and log entries.
func WithBlockName(name string) Option {
	return func(o *options) { o.block = name }
}

// Store is an immutable set of records addressed by index. It is safe for
// concurrent reads once constructed.
type Store struct {
	rows          [][]byte
	records       [][]byte
	offsets       []int
	deleted       DeletedFunc
	declaredCount int
}

// New builds a store from a meta table and its data block. itemSize is the
// size of one meta row.
func New(meta, data []byte, itemSize int, opts ...Option) (*Store, error) {
	o := options{
		deleted: StatusDeleted,
		logger:  zerolog.Nop(),
		block:   "fixed meta",
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := mppbin.CheckHeader(o.block, meta, HeaderSize); err != nil {
		return nil, err
	}
	if itemSize < recordOffset+4 {
		itemSize = recordOffset + 4
	}

	count := (len(meta) - HeaderSize) / itemSize
	s := &Store{
		rows:          make([][]byte, count),
		records:       make([][]byte, count),
		offsets:       make([]int, count),
		deleted:       o.deleted,
		declaredCount: int(mppbin.Int(meta, declaredCountOffset)),
	}

	for i := range s.rows {
		start := HeaderSize + i*itemSize
		s.rows[i] = meta[start : start+itemSize]
		s.offsets[i] = int(mppbin.Int(s.rows[i], recordOffset))
	}

	skipped := 0
	for i, offset := range s.offsets {
		if offset < 0 || offset > len(data) {
			skipped++
			continue
		}

		var size int
		if i+1 == count {
			size = len(data) - offset
		} else {
			size = s.offsets[i+1] - offset
		}
		if size == 0 {
			size = o.minItemSize
		}

		available := len(data) - offset
		if size < 0 || size > available {
			size = available
			if o.maxItemSize != 0 && o.maxItemSize < available {
				size = o.maxItemSize
			}
		}
		if o.maxItemSize != 0 && size > o.maxItemSize {
			size = o.maxItemSize
		}

		if size > 0 {
			s.records[i] = data[offset : offset+size : offset+size]
		}
	}

	if count != s.declaredCount || skipped > 0 {
		o.logger.Debug().
			Str("block", o.block).
			Int("items", count).
			Int("declared", s.declaredCount).
			Int("skipped", skipped).
			Msg("Fixed block loaded")
	}

	return s, nil
}

// NewUniform splits a block without a meta table into consecutive records of
// itemSize bytes. With readRemainder a trailing partial record is kept.
func NewUniform(data []byte, itemSize int, readRemainder bool) *Store {
	if itemSize <= 0 {
		return &Store{deleted: func([]byte) bool { return false }}
	}

	count := len(data) / itemSize
	if readRemainder && len(data)%itemSize != 0 {
		count++
	}

	s := &Store{
		rows:          make([][]byte, count),
		records:       make([][]byte, count),
		offsets:       make([]int, count),
		deleted:       func([]byte) bool { return false },
		declaredCount: count,
	}
	for i := 0; i < count; i++ {
		start := i * itemSize
		end := min(start+itemSize, len(data))
		s.offsets[i] = start
		s.records[i] = data[start:end:end]
	}
	return s
}

// Count returns the number of meta rows, including deleted ones.
func (s *Store) Count() int {
	return len(s.records)
}

// DeclaredCount returns the item count recorded in the meta header. It often
// disagrees with Count and is informational only.
func (s *Store) DeclaredCount() int {
	return s.declaredCount
}

// IsValidIndex reports whether index addresses a meta row.
func (s *Store) IsValidIndex(index int) bool {
	return index >= 0 && index < len(s.records)
}

// Deleted reports whether the row at index is marked deleted.
func (s *Store) Deleted(index int) bool {
	if !s.IsValidIndex(index) || s.rows[index] == nil {
		return false
	}
	return s.deleted(s.rows[index])
}

// Meta returns the raw meta row at index.
func (s *Store) Meta(index int) []byte {
	if !s.IsValidIndex(index) {
		return nil
	}
	return s.rows[index]
}

// Offset returns the data offset recorded for index.
func (s *Store) Offset(index int) (int, bool) {
	if !s.IsValidIndex(index) {
		return 0, false
	}
	return s.offsets[index], true
}

// Get returns the record at index, or nil when the index is out of range, the
// row is deleted or the row has no data.
func (s *Store) Get(index int) []byte {
	if !s.IsValidIndex(index) || s.Deleted(index) {
		return nil
	}
	return s.records[index]
}

// IndexFromOffset resolves a data offset stored elsewhere in the file to the
// index of the row that recorded it.
func (s *Store) IndexFromOffset(offset int) (int, bool) {
	for i, o := range s.offsets {
		if o == offset {
			return i, true
		}
	}
	return -1, false
}
