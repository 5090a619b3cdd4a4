package mppbin

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/basekick-labs/mppread/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegerReaders(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0xFF, 0xFF}

	assert.Equal(t, 1, Byte(data, 0))
	assert.Equal(t, 0x0201, Short(data, 0))
	assert.Equal(t, int32(0x04030201), Int(data, 0))
	assert.Equal(t, int64(0x0807060504030201), Long(data, 0))
	assert.Equal(t, 65535, Short(data, 8))
	assert.Equal(t, -1, SignedShort(data, 8))

	// Reads past the end return zero
	assert.Equal(t, 0, Byte(data, 10))
	assert.Equal(t, 0, Short(data, 9))
	assert.Equal(t, int32(0), Int(data, 7))
	assert.Equal(t, int64(0), Long(data, 3))
	assert.Equal(t, int32(0), Int(data, -1))
}

func TestDouble(t *testing.T) {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint64(data, math.Float64bits(12.5))
	binary.LittleEndian.PutUint64(data[8:], math.Float64bits(math.NaN()))

	assert.Equal(t, 12.5, Double(data, 0))
	assert.Equal(t, 0.0, Double(data, 8))
	assert.Equal(t, 0.0, Double(data, 9))
}

func TestTimestamp(t *testing.T) {
	tests := []struct {
		name   string
		tenths uint16
		days   uint16
		want   time.Time
		ok     bool
	}{
		{"midnight", 0, 1, Epoch.AddDate(0, 0, 1), true},
		{"eight am", 4800, 10, Epoch.AddDate(0, 0, 10).Add(8 * time.Hour), true},
		{"null time is midnight", 0xFFFF, 10, Epoch.AddDate(0, 0, 10), true},
		{"zero days", 100, 0, time.Time{}, false},
		{"null days", 100, 0xFFFF, time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, 4)
			binary.LittleEndian.PutUint16(data, tt.tenths)
			binary.LittleEndian.PutUint16(data[2:], tt.days)

			got, ok := Timestamp(data, 0)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
		})
	}

	_, ok := Timestamp([]byte{1, 2, 3}, 0)
	assert.False(t, ok)
}

func TestTimestampFromTenths(t *testing.T) {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, 600) // one hour

	got, ok := TimestampFromTenths(data, 0)
	require.True(t, ok)
	assert.Equal(t, Epoch.Add(time.Hour), got)
}

func TestGUID(t *testing.T) {
	data := []byte{
		0x33, 0x22, 0x11, 0x00, 0x55, 0x44, 0x77, 0x66,
		0x88, 0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
	}

	id, ok := GUID(data, 0)
	require.True(t, ok)
	assert.Equal(t, "00112233-4455-6677-8899-aabbccddeeff", id.String())

	_, ok = GUID(make([]byte, 16), 0)
	assert.False(t, ok, "all-zero GUID is absent")

	_, ok = GUID(data, 1)
	assert.False(t, ok, "short buffer")
}

func TestStrings(t *testing.T) {
	unicode := []byte{'H', 0, 'i', 0, 0, 0, 'x', 0}
	assert.Equal(t, "Hi", UnicodeString(unicode, 0))
	assert.Equal(t, "", UnicodeString(unicode, 8))
	assert.Equal(t, "x", UnicodeString(unicode, 6))

	ascii := []byte{'a', 'b', 'c', 0, 'd'}
	assert.Equal(t, "abc", String(ascii, 0))
	assert.Equal(t, "d", String(ascii, 4))
	assert.Equal(t, "", String(ascii, 10))
}

func TestPercentage(t *testing.T) {
	v, ok := Percentage([]byte{50, 0}, 0)
	assert.True(t, ok)
	assert.Equal(t, 50.0, v)

	_, ok = Percentage([]byte{101, 0}, 0)
	assert.False(t, ok)
}

func TestDurationUnits(t *testing.T) {
	tests := []struct {
		code int
		want models.TimeUnit
	}{
		{3, models.Minutes},
		{5, models.Hours},
		{7, models.Days},
		{8, models.ElapsedDays},
		{9, models.Weeks},
		{11, models.Months},
		{19, models.Percent},
		{21, models.Weeks},
		{0x20 | 5, models.Hours},
		{99, models.Days},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DurationUnits(tt.code, models.Weeks), "code %d", tt.code)
	}
}

func TestAdjustedDuration(t *testing.T) {
	defaults := models.DefaultProjectDefaults()

	tests := []struct {
		name   string
		tenths int32
		units  models.TimeUnit
		want   float64
	}{
		{"days", 4800, models.Days, 1},
		{"hours", 4800, models.Hours, 8},
		{"minutes", 600, models.Minutes, 60},
		{"weeks", 24000, models.Weeks, 1},
		{"months", 96000, models.Months, 1},
		{"elapsed days", 14400, models.ElapsedDays, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := AdjustedDuration(defaults, tt.tenths, tt.units)
			require.True(t, ok)
			assert.InDelta(t, tt.want, d.Value, 1e-9)
			assert.Equal(t, tt.units, d.Units)
		})
	}

	_, ok := AdjustedDuration(defaults, -1, models.Days)
	assert.False(t, ok)

	// A seven hour working day changes the day length
	defaults.MinutesPerDay = 420
	d, _ := AdjustedDuration(defaults, 4200, models.Days)
	assert.InDelta(t, 1.0, d.Value, 1e-9)
}
