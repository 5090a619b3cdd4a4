package varstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"
	"testing/iotest"
	"time"

	"github.com/basekick-labs/mppread/internal/mppbin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	id      int32
	key     int
	offset  int
	payload []byte
}

// build lays out payloads at their offsets and writes a meta table listing
// entries in the given order.
func build(t *testing.T, size int, entries ...entry) ([]byte, []byte) {
	t.Helper()

	data := make([]byte, size)
	meta := make([]byte, HeaderSize+len(entries)*EntrySize)
	binary.LittleEndian.PutUint32(meta, mppbin.MetaMagic)
	binary.LittleEndian.PutUint32(meta[itemCountOffset:], uint32(len(entries)))
	binary.LittleEndian.PutUint32(meta[dataSizeOffset:], uint32(size))

	for i, e := range entries {
		if e.payload != nil {
			require.LessOrEqual(t, e.offset+4+len(e.payload), size)
			binary.LittleEndian.PutUint32(data[e.offset:], uint32(len(e.payload)))
			copy(data[e.offset+4:], e.payload)
		}
		m := meta[HeaderSize+i*EntrySize:]
		binary.LittleEndian.PutUint32(m, uint32(e.id))
		binary.LittleEndian.PutUint32(m[4:], uint32(e.offset))
		binary.LittleEndian.PutUint16(m[8:], uint16(e.key))
	}
	return meta, data
}

func TestGetReturnsInsertedBytes(t *testing.T) {
	entries := []entry{
		{id: 1, key: 1, offset: 0, payload: []byte{1, 2, 3}},
		{id: 1, key: 7, offset: 8, payload: []byte("hello")},
		{id: 2, key: 1, offset: 20, payload: []byte{9}},
		{id: 3, key: 4, offset: 28, payload: []byte{}},
	}
	meta, data := build(t, 40, entries...)

	s, err := NewFromBytes(meta, data)
	require.NoError(t, err)

	for _, e := range entries {
		got, ok := s.Get(e.id, e.key)
		require.True(t, ok, "id %d key %d", e.id, e.key)
		assert.Equal(t, e.payload, got)
	}

	_, ok := s.Get(1, 2)
	assert.False(t, ok)
	_, ok = s.Get(9, 1)
	assert.False(t, ok)

	assert.Equal(t, 4, s.Len())
	assert.Equal(t, []int32{1, 2, 3}, s.EntityIDs())
	assert.Equal(t, []int{1, 7}, s.Keys(1))
	assert.True(t, s.Has(2))
	assert.False(t, s.Has(4))
}

func TestOutOfOrderOffsets(t *testing.T) {
	entries := []entry{
		{id: 1, key: 1, offset: 40, payload: []byte("forty")},
		{id: 1, key: 2, offset: 10, payload: []byte("ten")},
		{id: 1, key: 3, offset: 25, payload: []byte("twenty5")},
	}
	meta, data := build(t, 64, entries...)

	readers := map[string]func() io.Reader{
		"seekable":   func() io.Reader { return bytes.NewReader(data) },
		"stream":     func() io.Reader { return iotest.OneByteReader(bytes.NewReader(data)) },
		"half reads": func() io.Reader { return iotest.HalfReader(bytes.NewReader(data)) },
	}

	for name, open := range readers {
		t.Run(name, func(t *testing.T) {
			s, err := New(meta, open())
			require.NoError(t, err)

			for _, e := range entries {
				got, ok := s.Get(e.id, e.key)
				require.True(t, ok)
				assert.Equal(t, e.payload, got)
			}
			assert.Equal(t, Stats{Entries: 3}, s.Stats())
		})
	}
}

func TestSharedOffset(t *testing.T) {
	meta, data := build(t, 16,
		entry{id: 1, key: 1, offset: 0, payload: []byte{5, 6}},
		entry{id: 2, key: 1, offset: 0},
	)

	s, err := NewFromBytes(meta, data)
	require.NoError(t, err)

	a, _ := s.Get(1, 1)
	b, _ := s.Get(2, 1)
	assert.Equal(t, a, b)
}

func TestBadEntriesAreSkipped(t *testing.T) {
	meta, data := build(t, 32,
		entry{id: 1, key: 1, offset: 0, payload: []byte{1, 2, 3, 4}},
		entry{id: 1, key: 2, offset: -8},
		entry{id: 1, key: 3, offset: 100},
		entry{id: 1, key: 4, offset: 16},
		entry{id: 1, key: 5, offset: 8, payload: []byte{7}},
	)
	// Oversized length at offset 16
	binary.LittleEndian.PutUint32(data[16:], 1000)

	s, err := NewFromBytes(meta, data)
	require.NoError(t, err)

	v, ok := s.Get(1, 1)
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, v)

	for _, key := range []int{2, 3, 4} {
		_, ok := s.Get(1, key)
		assert.False(t, ok, "key %d", key)
	}

	v, ok = s.Get(1, 5)
	assert.True(t, ok)
	assert.Equal(t, []byte{7}, v)

	assert.Equal(t, 2, s.Stats().Entries)
	assert.Equal(t, 3, s.Stats().Skipped)
}

func TestReadErrorsAreNotFatal(t *testing.T) {
	meta, data := build(t, 32,
		entry{id: 1, key: 1, offset: 0, payload: []byte{1}},
		entry{id: 1, key: 2, offset: 8, payload: []byte{2}},
	)

	// The stream fails after the first read
	r := iotest.TimeoutReader(bytes.NewReader(data))
	s, err := New(meta, io.MultiReader(r))
	require.NoError(t, err)
	_, ok := s.Get(1, 2)
	assert.True(t, ok)

	// A truncated seekable stream loses the tail entries only
	meta, data = build(t, 32,
		entry{id: 1, key: 1, offset: 0, payload: []byte{1}},
		entry{id: 1, key: 2, offset: 20, payload: []byte{2, 3, 4, 5, 6, 7, 8, 9}},
	)
	binary.LittleEndian.PutUint32(meta[dataSizeOffset:], 0)
	s, err = NewFromBytes(meta, data[:26])
	require.NoError(t, err)

	_, ok = s.Get(1, 1)
	assert.True(t, ok)
	_, ok = s.Get(1, 2)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Stats().Failed)
}

func TestHeaderErrors(t *testing.T) {
	_, err := NewFromBytes(make([]byte, 10), nil)
	assert.True(t, errors.Is(err, mppbin.ErrShortHeader))

	meta := make([]byte, HeaderSize)
	_, err = NewFromBytes(meta, nil)
	assert.True(t, errors.Is(err, mppbin.ErrBadMagic))

	var fe *mppbin.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "var meta", fe.Block)
}

func TestTypedAccessors(t *testing.T) {
	double := make([]byte, 8)
	binary.LittleEndian.PutUint64(double, math.Float64bits(12345))
	nan := make([]byte, 8)
	binary.LittleEndian.PutUint64(nan, math.Float64bits(math.NaN()))
	small := make([]byte, 8)
	binary.LittleEndian.PutUint64(small, math.Float64bits(0.05))

	meta, data := build(t, 128,
		entry{id: 1, key: 1, offset: 0, payload: []byte{0x34, 0x12, 0x78, 0x56, 0xAA, 0, 0, 0}},
		entry{id: 1, key: 2, offset: 12, payload: double},
		entry{id: 1, key: 3, offset: 24, payload: nan},
		entry{id: 1, key: 4, offset: 36, payload: []byte{'A', 0, 'B', 0, 0, 0}},
		entry{id: 1, key: 5, offset: 48, payload: []byte("abc\x00")},
		entry{id: 1, key: 6, offset: 56, payload: []byte{0x60, 0x09, 0x02, 0x00}},
		entry{id: 1, key: 7, offset: 64, payload: []byte{1}},
		entry{id: 1, key: 8, offset: 72, payload: small},
	)

	s, err := NewFromBytes(meta, data)
	require.NoError(t, err)

	assert.Equal(t, 0x34, s.Byte(1, 1))
	assert.Equal(t, 0x1234, s.Short(1, 1))
	assert.Equal(t, int32(0x56781234), s.Int(1, 1))
	assert.Equal(t, int32(0xAA), s.IntAt(1, 1, 4))
	assert.Equal(t, int64(0xAA56781234), s.Long(1, 1))
	assert.Equal(t, 12345.0, s.Double(1, 2))
	assert.Equal(t, 123.45, s.Currency(1, 2))
	assert.Equal(t, 0.0, s.Double(1, 3))
	assert.Equal(t, 0.0, s.Currency(1, 8))
	assert.Equal(t, "AB", s.UnicodeString(1, 4))
	assert.Equal(t, "abc", s.String(1, 5))

	ts, ok := s.Timestamp(1, 6)
	require.True(t, ok)
	assert.Equal(t, mppbin.Epoch.AddDate(0, 0, 2).Add(4*time.Hour), ts)

	// Short blobs and absent values read as zero
	assert.Equal(t, int32(0), s.Int(1, 7))
	assert.Equal(t, 0.0, s.Double(1, 7))
	assert.Equal(t, "", s.UnicodeString(2, 1))
	_, ok = s.Timestamp(1, 7)
	assert.False(t, ok)
	_, ok = s.GUID(1, 7)
	assert.False(t, ok)
}
