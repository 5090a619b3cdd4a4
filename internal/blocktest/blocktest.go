// Package blocktest assembles synthetic project file blocks. It backs the
// package tests and the sample bundle generator.
package blocktest

import (
	"encoding/binary"
	"math"
	"sort"
	"time"

	"github.com/basekick-labs/mppread/internal/mppbin"
	"github.com/google/uuid"
)

// VarEntry is one value of a variable data block
type VarEntry struct {
	EntityID int32
	Key      int
	Value    []byte
}

// VarBlock lays out entries back to back and returns the meta table and
// data block describing them. Entries with identical values are not shared.
func VarBlock(entries ...VarEntry) (meta, data []byte) {
	meta = make([]byte, 24+len(entries)*12)
	binary.LittleEndian.PutUint32(meta, mppbin.MetaMagic)
	binary.LittleEndian.PutUint32(meta[8:], uint32(len(entries)))

	for i, e := range entries {
		m := meta[24+i*12:]
		binary.LittleEndian.PutUint32(m, uint32(e.EntityID))
		binary.LittleEndian.PutUint32(m[4:], uint32(len(data)))
		binary.LittleEndian.PutUint16(m[8:], uint16(e.Key))

		data = binary.LittleEndian.AppendUint32(data, uint32(len(e.Value)))
		data = append(data, e.Value...)
	}
	binary.LittleEndian.PutUint32(meta[20:], uint32(len(data)))
	return meta, data
}

// FixedRecord is one record of a fixed data block
type FixedRecord struct {
	Status int32
	Data   []byte
}

// FixedBlock lays out records back to back behind a meta table with rows of
// itemSize bytes.
func FixedBlock(itemSize int, records ...FixedRecord) (meta, data []byte) {
	meta = make([]byte, 16+len(records)*itemSize)
	binary.LittleEndian.PutUint32(meta, mppbin.MetaMagic)
	binary.LittleEndian.PutUint32(meta[8:], uint32(len(records)))

	for i, r := range records {
		row := meta[16+i*itemSize:]
		binary.LittleEndian.PutUint32(row, uint32(r.Status))
		binary.LittleEndian.PutUint32(row[4:], uint32(len(data)))
		data = append(data, r.Data...)
	}
	return meta, data
}

// Props encodes a property block
func Props(values map[int32][]byte) []byte {
	keys := make([]int32, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]byte, 16)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(keys)))
	for _, k := range keys {
		v := values[k]
		out = binary.LittleEndian.AppendUint32(out, uint32(len(v)))
		out = binary.LittleEndian.AppendUint32(out, uint32(k))
		out = binary.LittleEndian.AppendUint32(out, 0)
		out = append(out, v...)
		if len(v)%2 != 0 {
			out = append(out, 0)
		}
	}
	binary.LittleEndian.PutUint32(out, uint32(len(out)))
	return out
}

// SchemaRow is one 28-byte field map row
type SchemaRow struct {
	Mask     uint32
	Offset   uint16
	VarKey   byte
	Type     int32
	Category uint16
}

// NoOffset marks a row without a fixed data location
const NoOffset = 0xFFFF

// Schema encodes field map rows
func Schema(rows ...SchemaRow) []byte {
	out := make([]byte, len(rows)*28)
	for i, r := range rows {
		b := out[i*28:]
		binary.LittleEndian.PutUint32(b, r.Mask)
		binary.LittleEndian.PutUint16(b[4:], r.Offset)
		b[6] = r.VarKey
		binary.LittleEndian.PutUint32(b[12:], uint32(r.Type))
		binary.LittleEndian.PutUint16(b[20:], r.Category)
	}
	return out
}

// Record is a growable fixed record
type Record []byte

// NewRecord returns a zeroed record of size bytes
func NewRecord(size int) Record {
	return make(Record, size)
}

// PutShort writes a 16-bit value
func (r Record) PutShort(offset int, v int) Record {
	binary.LittleEndian.PutUint16(r[offset:], uint16(v))
	return r
}

// PutInt writes a 32-bit value
func (r Record) PutInt(offset int, v int32) Record {
	binary.LittleEndian.PutUint32(r[offset:], uint32(v))
	return r
}

// PutDouble writes an IEEE 754 value
func (r Record) PutDouble(offset int, v float64) Record {
	binary.LittleEndian.PutUint64(r[offset:], math.Float64bits(v))
	return r
}

// PutTimestamp writes a day and time of day pair
func (r Record) PutTimestamp(offset int, t time.Time) Record {
	copy(r[offset:], Timestamp(t))
	return r
}

// PutTenths writes a 32-bit count of tenths of a minute since the epoch
func (r Record) PutTenths(offset int, t time.Time) Record {
	return r.PutInt(offset, int32(t.Sub(mppbin.Epoch)/(6*time.Second)))
}

// Short encodes a 16-bit value
func Short(v int) []byte {
	return binary.LittleEndian.AppendUint16(nil, uint16(v))
}

// Int encodes a 32-bit value
func Int(v int32) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(v))
}

// Double encodes an IEEE 754 value
func Double(v float64) []byte {
	return binary.LittleEndian.AppendUint64(nil, math.Float64bits(v))
}

// Unicode encodes a NUL terminated UTF-16LE string
func Unicode(s string) []byte {
	var out []byte
	for _, r := range s {
		if r > 0xFFFF {
			r = '?'
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(r))
	}
	return append(out, 0, 0)
}

// Timestamp encodes t as a day and time of day pair
func Timestamp(t time.Time) []byte {
	days := int(t.Sub(mppbin.Epoch).Hours() / 24)
	midnight := mppbin.Epoch.AddDate(0, 0, days)
	tenths := int(t.Sub(midnight) / (6 * time.Second))

	out := binary.LittleEndian.AppendUint16(nil, uint16(tenths))
	return binary.LittleEndian.AppendUint16(out, uint16(days))
}

// GUID encodes id with its first three groups in little-endian order
func GUID(id uuid.UUID) []byte {
	out := make([]byte, 16)
	order := [8]int{3, 2, 1, 0, 5, 4, 7, 6}
	for i, dst := range order {
		out[dst] = id[i]
	}
	copy(out[8:], id[8:])
	return out
}
