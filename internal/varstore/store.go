// Package varstore loads the keyed variable-length data block of an entity
// table and exposes typed accessors over it.
package varstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/basekick-labs/mppread/internal/mppbin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// HeaderSize is the size of the meta table header.
	HeaderSize = 24
	// EntrySize is the size of one meta table entry.
	EntrySize = 12

	itemCountOffset = 8
	dataSizeOffset  = 20
	lengthPrefix    = 4
)

// Key identifies one value of one entity.
type Key struct {
	EntityID int32
	FieldKey int
}

// Stats summarises how the data block was read.
type Stats struct {
	Entries int `json:"entries"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Option configures a Store.
type Option func(*options)

type options struct {
	logger zerolog.Logger
	block  string
}

// WithLogger sets the logger used for construction diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithBlockName names the block in errors and log entries.
func WithBlockName(name string) Option {
	return func(o *options) { o.block = name }
}

// Store maps (entity, field key) pairs to byte blobs. It is immutable after
// New returns and safe for concurrent reads.
type Store struct {
	offsets map[Key]int
	blobs   map[int][]byte
	keys    map[int32][]int
	stats   Stats
}

// NewFromBytes builds a store from an in-memory data block.
func NewFromBytes(meta, data []byte, opts ...Option) (*Store, error) {
	return New(meta, bytes.NewReader(data), opts...)
}

// New builds a store from a meta table and a data stream. Entries are read
// in meta table order. A stream that cannot seek is buffered so that
// entries recorded out of order can still be reached; if buffering fails
// part way, entries past the failure are absent.
func New(meta []byte, data io.Reader, opts ...Option) (*Store, error) {
	o := options{
		logger: zerolog.Nop(),
		block:  "var meta",
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := mppbin.CheckHeader(o.block, meta, HeaderSize); err != nil {
		return nil, err
	}

	rs, ok := data.(io.ReadSeeker)
	if !ok {
		buf, err := io.ReadAll(data)
		if err != nil {
			o.logger.Warn().Err(err).Str("block", o.block).Int("bytes", len(buf)).Msg("Var data stream truncated")
		}
		rs = bytes.NewReader(buf)
	}

	count := (len(meta) - HeaderSize) / EntrySize
	if declared := int(mppbin.Int(meta, itemCountOffset)); declared > 0 && declared < count {
		count = declared
	}
	dataSize := int(mppbin.Int(meta, dataSizeOffset))

	s := &Store{
		offsets: make(map[Key]int, count),
		blobs:   make(map[int][]byte, count),
		keys:    make(map[int32][]int),
	}

	r := &skipReader{rs: rs}
	for i := 0; i < count; i++ {
		entry := meta[HeaderSize+i*EntrySize:]
		id := mppbin.Int(entry, 0)
		offset := int(mppbin.Int(entry, 4))
		key := mppbin.Short(entry, 8)

		if offset < 0 || (dataSize > 0 && offset+lengthPrefix > dataSize) {
			s.stats.Skipped++
			continue
		}

		if _, seen := s.blobs[offset]; !seen {
			blob, err := r.readAt(offset, dataSize)
			if err != nil {
				if errors.Is(err, errBadLength) {
					s.stats.Skipped++
				} else {
					s.stats.Failed++
					o.logger.Debug().Err(err).Int("offset", offset).Str("block", o.block).Msg("Failed to read var entry")
				}
				continue
			}
			s.blobs[offset] = blob
		}

		k := Key{EntityID: id, FieldKey: key}
		if _, dup := s.offsets[k]; !dup {
			s.keys[id] = append(s.keys[id], key)
		}
		s.offsets[k] = offset
		s.stats.Entries++
	}

	for id := range s.keys {
		sort.Ints(s.keys[id])
	}

	if s.stats.Skipped > 0 || s.stats.Failed > 0 {
		o.logger.Warn().
			Str("block", o.block).
			Int("entries", s.stats.Entries).
			Int("skipped", s.stats.Skipped).
			Int("failed", s.stats.Failed).
			Msg("Var block loaded with unreadable entries")
	}

	return s, nil
}

var errBadLength = errors.New("invalid entry length")

// skipReader walks a stream forwards, rewinding only when an entry lies
// behind the current position.
type skipReader struct {
	rs  io.ReadSeeker
	pos int64
	bad bool
}

func (r *skipReader) readAt(offset, dataSize int) ([]byte, error) {
	target := int64(offset)
	if r.bad || target < r.pos {
		if _, err := r.rs.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		r.pos = 0
		r.bad = false
	}
	if target > r.pos {
		if err := r.skip(target - r.pos); err != nil {
			return nil, err
		}
	}

	var prefix [lengthPrefix]byte
	if _, err := io.ReadFull(r.rs, prefix[:]); err != nil {
		r.bad = true
		return nil, fmt.Errorf("length prefix: %w", err)
	}
	r.pos += lengthPrefix

	size := int(int32(binary.LittleEndian.Uint32(prefix[:])))
	if size < 0 || (dataSize > 0 && offset+lengthPrefix+size > dataSize) {
		return nil, fmt.Errorf("%w: %d", errBadLength, size)
	}

	blob := make([]byte, size)
	n, err := io.ReadFull(r.rs, blob)
	r.pos += int64(n)
	if err != nil {
		r.bad = true
		return nil, fmt.Errorf("payload: %w", err)
	}
	return blob, nil
}

func (r *skipReader) skip(n int64) error {
	copied, err := io.CopyN(io.Discard, r.rs, n)
	r.pos += copied
	if err != nil {
		r.bad = true
		return fmt.Errorf("skip to entry: %w", err)
	}
	return nil
}

// Get returns the blob stored for an entity and field key.
func (s *Store) Get(entityID int32, key int) ([]byte, bool) {
	offset, ok := s.offsets[Key{EntityID: entityID, FieldKey: key}]
	if !ok {
		return nil, false
	}
	blob, ok := s.blobs[offset]
	return blob, ok
}

// Has reports whether any value is stored for the entity.
func (s *Store) Has(entityID int32) bool {
	_, ok := s.keys[entityID]
	return ok
}

// Keys returns the field keys stored for an entity in ascending order.
func (s *Store) Keys(entityID int32) []int {
	return append([]int(nil), s.keys[entityID]...)
}

// EntityIDs returns every entity with at least one value, in ascending order.
func (s *Store) EntityIDs() []int32 {
	ids := make([]int32, 0, len(s.keys))
	for id := range s.keys {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of (entity, key) pairs.
func (s *Store) Len() int {
	return len(s.offsets)
}

// Stats returns the construction summary.
func (s *Store) Stats() Stats {
	return s.stats
}

// Byte returns the first byte of a value.
func (s *Store) Byte(entityID int32, key int) int {
	blob, _ := s.Get(entityID, key)
	return mppbin.Byte(blob, 0)
}

// Short returns a value as an unsigned 16-bit integer.
func (s *Store) Short(entityID int32, key int) int {
	blob, _ := s.Get(entityID, key)
	return mppbin.Short(blob, 0)
}

// Int returns a value as a 32-bit integer.
func (s *Store) Int(entityID int32, key int) int32 {
	return s.IntAt(entityID, key, 0)
}

// IntAt returns the 32-bit integer at offset within a value.
func (s *Store) IntAt(entityID int32, key, offset int) int32 {
	blob, _ := s.Get(entityID, key)
	return mppbin.Int(blob, offset)
}

// Long returns a value as a 64-bit integer.
func (s *Store) Long(entityID int32, key int) int64 {
	blob, _ := s.Get(entityID, key)
	return mppbin.Long(blob, 0)
}

// Double returns a value as a float; NaN and short values read as zero.
func (s *Store) Double(entityID int32, key int) float64 {
	blob, _ := s.Get(entityID, key)
	return mppbin.Double(blob, 0)
}

// Currency returns a stored fixed-point amount in currency units.
func (s *Store) Currency(entityID int32, key int) float64 {
	return mppbin.ScaledAmount(s.Double(entityID, key))
}

// UnicodeString returns a UTF-16 value.
func (s *Store) UnicodeString(entityID int32, key int) string {
	blob, _ := s.Get(entityID, key)
	return mppbin.UnicodeString(blob, 0)
}

// String returns a single-byte text value.
func (s *Store) String(entityID int32, key int) string {
	blob, _ := s.Get(entityID, key)
	return mppbin.String(blob, 0)
}

// Timestamp returns a date and time value.
func (s *Store) Timestamp(entityID int32, key int) (time.Time, bool) {
	blob, _ := s.Get(entityID, key)
	return mppbin.Timestamp(blob, 0)
}

// GUID returns an identifier value.
func (s *Store) GUID(entityID int32, key int) (uuid.UUID, bool) {
	blob, _ := s.Get(entityID, key)
	return mppbin.GUID(blob, 0)
}
