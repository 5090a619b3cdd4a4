package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Spec is the serialisable form of a calendar, as found in configuration
// files and block bundles. Empty fields fall back to the standard calendar.
type Spec struct {
	Name        string   `json:"name,omitempty" msgpack:"name,omitempty" mapstructure:"name"`
	WorkingDays []string `json:"working_days,omitempty" msgpack:"working_days,omitempty" mapstructure:"working_days"`
	Hours       []string `json:"hours,omitempty" msgpack:"hours,omitempty" mapstructure:"hours"`
	Exceptions  []string `json:"exceptions,omitempty" msgpack:"exceptions,omitempty" mapstructure:"exceptions"`
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// ParseWeekday accepts "mon", "Monday" and similar
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		if wd, ok := weekdays[s[:3]]; ok {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

// ParseRange parses "HH:MM-HH:MM"
func ParseRange(s string) (Range, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Range{}, fmt.Errorf("invalid range %q: expected HH:MM-HH:MM", s)
	}
	start, err := parseClock(from)
	if err != nil {
		return Range{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	end, err := parseClock(to)
	if err != nil {
		return Range{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	if end <= start {
		return Range{}, fmt.Errorf("invalid range %q: end must follow start", s)
	}
	return Range{Start: start, End: end}, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		if strings.TrimSpace(s) == "24:00" {
			return 24 * time.Hour, nil
		}
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// FromSpec builds a calendar. Working days default to Monday to Friday and
// hours to StandardHours. Exceptions are non-working dates in YYYY-MM-DD form.
func FromSpec(spec Spec) (*Calendar, error) {
	var opts []Option
	if spec.Name != "" {
		opts = append(opts, WithName(spec.Name))
	}

	hours := StandardHours
	if len(spec.Hours) > 0 {
		hours = make([]Range, 0, len(spec.Hours))
		for _, h := range spec.Hours {
			r, err := ParseRange(h)
			if err != nil {
				return nil, err
			}
			hours = append(hours, r)
		}
	}

	days := spec.WorkingDays
	if len(days) == 0 {
		days = []string{"mon", "tue", "wed", "thu", "fri"}
	}
	var working [7]bool
	for _, d := range days {
		wd, err := ParseWeekday(d)
		if err != nil {
			return nil, err
		}
		working[wd] = true
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if working[wd] {
			opts = append(opts, WithWorkingDay(wd, hours...))
		} else {
			opts = append(opts, WithWorkingDay(wd))
		}
	}

	for _, e := range spec.Exceptions {
		date, err := time.Parse(time.DateOnly, strings.TrimSpace(e))
		if err != nil {
			return nil, fmt.Errorf("invalid exception date %q: %w", e, err)
		}
		opts = append(opts, WithException(date))
	}

	return New(opts...), nil
}
