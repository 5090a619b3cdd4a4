// Package mppbin reads the primitive values packed into project file blocks.
// Every reader is bounds-checked and returns a zero value instead of failing
// when the requested bytes are not present.
package mppbin

import (
	"encoding/binary"
	"math"
	"time"
	"unicode/utf16"

	"github.com/basekick-labs/mppread/pkg/models"
	"github.com/google/uuid"
)

// Epoch is day zero for stored dates.
var Epoch = time.Date(1983, time.December, 31, 0, 0, 0, 0, time.UTC)

const (
	durationUnitsMask = 0x1F
	nullShort         = 65535
)

func has(data []byte, offset, size int) bool {
	return offset >= 0 && size >= 0 && offset+size <= len(data)
}

// Byte returns the unsigned byte at offset.
func Byte(data []byte, offset int) int {
	if !has(data, offset, 1) {
		return 0
	}
	return int(data[offset])
}

// Short returns the unsigned 16-bit value at offset.
func Short(data []byte, offset int) int {
	if !has(data, offset, 2) {
		return 0
	}
	return int(binary.LittleEndian.Uint16(data[offset:]))
}

// SignedShort returns the signed 16-bit value at offset.
func SignedShort(data []byte, offset int) int {
	return int(int16(Short(data, offset)))
}

// Int returns the signed 32-bit value at offset.
func Int(data []byte, offset int) int32 {
	if !has(data, offset, 4) {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(data[offset:]))
}

// Long returns the signed 64-bit value at offset.
func Long(data []byte, offset int) int64 {
	if !has(data, offset, 8) {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(data[offset:]))
}

// Double returns the IEEE 754 value at offset; NaN reads as zero.
func Double(data []byte, offset int) float64 {
	if !has(data, offset, 8) {
		return 0
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(data[offset:]))
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// ScaledAmount converts a stored currency or units amount held in hundredths.
// Amounts below a thousandth read as zero.
func ScaledAmount(raw float64) float64 {
	if math.Abs(raw) < 0.1 {
		return 0
	}
	return raw / 100
}

// Timestamp decodes a day count at offset+2 and a time of day in tenths of a
// minute at offset.
func Timestamp(data []byte, offset int) (time.Time, bool) {
	if !has(data, offset, 4) {
		return time.Time{}, false
	}
	days := Short(data, offset+2)
	if days == 0 || days == nullShort {
		return time.Time{}, false
	}
	tenths := Short(data, offset)
	if tenths == nullShort {
		tenths = 0
	}
	return Epoch.AddDate(0, 0, days).Add(time.Duration(tenths) * 6 * time.Second), true
}

// Date decodes a day count stored as a 16-bit value.
func Date(data []byte, offset int) (time.Time, bool) {
	if !has(data, offset, 2) {
		return time.Time{}, false
	}
	days := Short(data, offset)
	if days == nullShort {
		return time.Time{}, false
	}
	return Epoch.AddDate(0, 0, days), true
}

// TimeOfDay decodes a time of day stored in tenths of a minute.
func TimeOfDay(data []byte, offset int) time.Duration {
	minutes := Short(data, offset) / 10
	return time.Duration(minutes) * time.Minute
}

// TimestampFromTenths decodes a 32-bit count of tenths of a minute since Epoch.
func TimestampFromTenths(data []byte, offset int) (time.Time, bool) {
	if !has(data, offset, 4) {
		return time.Time{}, false
	}
	return Epoch.Add(time.Duration(Int(data, offset)) * 6 * time.Second), true
}

// GUID decodes a 16-byte identifier stored with the first three groups in
// little-endian order. An all-zero GUID is treated as absent.
func GUID(data []byte, offset int) (uuid.UUID, bool) {
	var id uuid.UUID
	if !has(data, offset, 16) {
		return id, false
	}
	d := data[offset : offset+16]
	order := [8]int{3, 2, 1, 0, 5, 4, 7, 6}
	for i, src := range order {
		id[i] = d[src]
	}
	copy(id[8:], d[8:16])
	if id == uuid.Nil {
		return id, false
	}
	return id, true
}

// Percentage decodes a 16-bit percentage; values above 100 are absent.
func Percentage(data []byte, offset int) (float64, bool) {
	if !has(data, offset, 2) {
		return 0, false
	}
	v := Short(data, offset)
	if v > 100 {
		return 0, false
	}
	return float64(v), true
}

// UnicodeString decodes UTF-16LE text up to a double NUL or the end of data.
func UnicodeString(data []byte, offset int) string {
	if offset < 0 || offset >= len(data) {
		return ""
	}
	end := len(data)
	for i := offset; i < len(data)-1; i += 2 {
		if data[i] == 0 && data[i+1] == 0 {
			end = i
			break
		}
	}
	n := (end - offset) / 2
	if n == 0 {
		return ""
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(data[offset+i*2:])
	}
	return string(utf16.Decode(units))
}

// String decodes single-byte text up to a NUL or the end of data.
func String(data []byte, offset int) string {
	if offset < 0 || offset >= len(data) {
		return ""
	}
	buf := make([]rune, 0, len(data)-offset)
	for _, b := range data[offset:] {
		if b == 0 {
			break
		}
		buf = append(buf, rune(b))
	}
	return string(buf)
}

// DurationUnits maps a stored units code to a TimeUnit. Code 21 selects the
// project default; unrecognised codes mean days.
func DurationUnits(code int, projectDefault models.TimeUnit) models.TimeUnit {
	switch code & durationUnitsMask {
	case 3:
		return models.Minutes
	case 4:
		return models.ElapsedMinutes
	case 5:
		return models.Hours
	case 6:
		return models.ElapsedHours
	case 7:
		return models.Days
	case 8:
		return models.ElapsedDays
	case 9:
		return models.Weeks
	case 10:
		return models.ElapsedWeeks
	case 11:
		return models.Months
	case 12:
		return models.ElapsedMonths
	case 19:
		return models.Percent
	case 20:
		return models.ElapsedPercent
	case 21:
		return projectDefault
	default:
		return models.Days
	}
}

// WorkUnits maps a one-based work units code to a TimeUnit.
func WorkUnits(code int) (models.TimeUnit, bool) {
	return models.TimeUnitFromInt(code - 1)
}

// Duration converts a value in tenths of a minute to the requested units
// using a fixed 8 hour day, 5 day week and 20 day month.
func Duration(tenths float64, units models.TimeUnit) models.Duration {
	var v float64
	switch units {
	case models.Minutes, models.ElapsedMinutes:
		v = tenths / 10
	case models.Hours, models.ElapsedHours:
		v = tenths / 600
	case models.Days:
		v = tenths / 4800
	case models.ElapsedDays:
		v = tenths / 14400
	case models.Weeks:
		v = tenths / 24000
	case models.ElapsedWeeks:
		v = tenths / 100800
	case models.Months:
		v = tenths / 96000
	case models.ElapsedMonths:
		v = tenths / 432000
	default:
		v = tenths
	}
	return models.NewDuration(v, units)
}

// AdjustedDuration converts a value in tenths of a minute to the requested
// units, honouring the project's working day, week and month lengths. A
// stored value of -1 means no duration.
func AdjustedDuration(defaults models.ProjectDefaults, tenths int32, units models.TimeUnit) (models.Duration, bool) {
	if tenths == -1 {
		return models.Duration{}, false
	}
	v := float64(tenths)
	switch units {
	case models.Days:
		return models.NewDuration(safeDiv(v, defaults.MinutesPerDay*10), units), true
	case models.ElapsedDays:
		return models.NewDuration(v/(24*600), units), true
	case models.Weeks:
		return models.NewDuration(safeDiv(v, defaults.MinutesPerWeek*10), units), true
	case models.ElapsedWeeks:
		return models.NewDuration(v/(60*24*7*10), units), true
	case models.Months:
		return models.NewDuration(safeDiv(v, defaults.MinutesPerDay*defaults.DaysPerMonth*10), units), true
	case models.ElapsedMonths:
		return models.NewDuration(v/(60*24*30*10), units), true
	default:
		return Duration(v, units), true
	}
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
