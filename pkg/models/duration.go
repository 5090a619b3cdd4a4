package models

import (
	"fmt"
	"math"
)

// TimeUnit identifies the units of a Duration or Rate.
type TimeUnit int

const (
	Minutes TimeUnit = iota
	Hours
	Days
	Weeks
	Months
	Percent
	Years
	ElapsedMinutes
	ElapsedHours
	ElapsedDays
	ElapsedWeeks
	ElapsedMonths
	ElapsedYears
	ElapsedPercent
)

var timeUnitNames = [...]string{
	Minutes:        "m",
	Hours:          "h",
	Days:           "d",
	Weeks:          "w",
	Months:         "mo",
	Percent:        "%",
	Years:          "y",
	ElapsedMinutes: "em",
	ElapsedHours:   "eh",
	ElapsedDays:    "ed",
	ElapsedWeeks:   "ew",
	ElapsedMonths:  "emo",
	ElapsedYears:   "ey",
	ElapsedPercent: "e%",
}

// TimeUnitFromInt maps a zero-based ordinal to a TimeUnit.
func TimeUnitFromInt(v int) (TimeUnit, bool) {
	if v < 0 || v >= len(timeUnitNames) {
		return Minutes, false
	}
	return TimeUnit(v), true
}

func (u TimeUnit) String() string {
	if u < 0 || int(u) >= len(timeUnitNames) {
		return fmt.Sprintf("TimeUnit(%d)", int(u))
	}
	return timeUnitNames[u]
}

// IsElapsed reports whether the unit ignores working time.
func (u TimeUnit) IsElapsed() bool {
	return u >= ElapsedMinutes
}

// ProjectDefaults holds the project-level settings needed to convert durations
// between units.
type ProjectDefaults struct {
	MinutesPerDay  float64  `json:"minutes_per_day" msgpack:"minutes_per_day"`
	MinutesPerWeek float64  `json:"minutes_per_week" msgpack:"minutes_per_week"`
	DaysPerMonth   float64  `json:"days_per_month" msgpack:"days_per_month"`
	DurationUnits  TimeUnit `json:"duration_units" msgpack:"duration_units"`
	WorkUnits      TimeUnit `json:"work_units" msgpack:"work_units"`
}

// DefaultProjectDefaults returns the settings of a freshly created project.
func DefaultProjectDefaults() ProjectDefaults {
	return ProjectDefaults{
		MinutesPerDay:  480,
		MinutesPerWeek: 2400,
		DaysPerMonth:   20,
		DurationUnits:  Days,
		WorkUnits:      Hours,
	}
}

// minutesPer returns the number of minutes in one unit.
func (p ProjectDefaults) minutesPer(u TimeUnit) (float64, bool) {
	switch u {
	case Minutes, ElapsedMinutes:
		return 1, true
	case Hours, ElapsedHours:
		return 60, true
	case Days:
		return p.MinutesPerDay, true
	case Weeks:
		return p.MinutesPerWeek, true
	case Months:
		return p.MinutesPerDay * p.DaysPerMonth, true
	case Years:
		return p.MinutesPerWeek * 52, true
	case ElapsedDays:
		return 24 * 60, true
	case ElapsedWeeks:
		return 7 * 24 * 60, true
	case ElapsedMonths:
		return 30 * 24 * 60, true
	case ElapsedYears:
		return 365 * 24 * 60, true
	default:
		return 0, false
	}
}

// Duration is an amount of time expressed in a specific unit.
type Duration struct {
	Value float64  `json:"value" msgpack:"value"`
	Units TimeUnit `json:"units" msgpack:"units"`
}

// NewDuration creates a Duration.
func NewDuration(value float64, units TimeUnit) Duration {
	return Duration{Value: value, Units: units}
}

// ConvertTo converts d to the requested units. Percentage durations and
// conversions with a zero-sized target unit are returned unchanged.
func (d Duration) ConvertTo(units TimeUnit, defaults ProjectDefaults) Duration {
	if d.Units == units {
		return d
	}
	from, ok := defaults.minutesPer(d.Units)
	if !ok {
		return d
	}
	to, ok := defaults.minutesPer(units)
	if !ok || to == 0 {
		return d
	}
	return Duration{Value: d.Value * from / to, Units: units}
}

// IsZero reports whether the duration has no length.
func (d Duration) IsZero() bool {
	return d.Value == 0
}

// ValueEquals compares the numeric component of two durations within delta,
// ignoring units.
func (d Duration) ValueEquals(other Duration, delta float64) bool {
	return math.Abs(d.Value-other.Value) < delta
}

func (d Duration) String() string {
	return fmt.Sprintf("%g%s", d.Value, d.Units)
}

// Rate is an amount per time unit.
type Rate struct {
	Amount float64  `json:"amount" msgpack:"amount"`
	Units  TimeUnit `json:"units" msgpack:"units"`
}

func (r Rate) String() string {
	return fmt.Sprintf("%g/%s", r.Amount, r.Units)
}
