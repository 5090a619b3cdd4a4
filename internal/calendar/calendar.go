// Package calendar implements the working time calendar used to place
// timephased work on dates. Ranges are offsets from midnight within a single
// day; ranges that cross midnight are not supported.
package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// maxNonWorkingDays bounds the search for the next working day
const maxNonWorkingDays = 1000

// Range is a span of working time within one day
type Range struct {
	Start time.Duration
	End   time.Duration
}

// Minutes returns the length of the range in minutes
func (r Range) Minutes() float64 {
	return (r.End - r.Start).Minutes()
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", clock(r.Start), clock(r.End))
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

type day struct {
	year  int
	month time.Month
	day   int
}

func dayOf(t time.Time) day {
	y, m, d := t.Date()
	return day{y, m, d}
}

// Calendar is an immutable working time calendar
type Calendar struct {
	name       string
	week       [7][]Range
	exceptions map[day][]Range
}

// Option configures a Calendar
type Option func(*Calendar)

// WithName sets the calendar name
func WithName(name string) Option {
	return func(c *Calendar) { c.name = name }
}

// WithWorkingDay replaces the working ranges of a weekday. Passing no ranges
// makes the weekday non-working.
func WithWorkingDay(weekday time.Weekday, ranges ...Range) Option {
	return func(c *Calendar) { c.week[weekday] = sortRanges(ranges) }
}

// WithException overrides the ranges of a single date. Passing no ranges
// makes the date non-working.
func WithException(date time.Time, ranges ...Range) Option {
	return func(c *Calendar) { c.exceptions[dayOf(date)] = sortRanges(ranges) }
}

func sortRanges(ranges []Range) []Range {
	out := append([]Range(nil), ranges...)
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// StandardHours are the default working ranges, 08:00-12:00 and 13:00-17:00
var StandardHours = []Range{
	{Start: 8 * time.Hour, End: 12 * time.Hour},
	{Start: 13 * time.Hour, End: 17 * time.Hour},
}

// New creates a calendar working the standard hours Monday to Friday,
// adjusted by opts.
func New(opts ...Option) *Calendar {
	c := &Calendar{
		name:       "Standard",
		exceptions: make(map[day][]Range),
	}
	for wd := time.Monday; wd <= time.Friday; wd++ {
		c.week[wd] = StandardHours
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Standard returns the default calendar
func Standard() *Calendar {
	return New()
}

// Name returns the calendar name
func (c *Calendar) Name() string {
	return c.name
}

// Ranges returns the working ranges of the day containing t
func (c *Calendar) Ranges(t time.Time) []Range {
	if r, ok := c.exceptions[dayOf(t)]; ok {
		return r
	}
	return c.week[t.Weekday()]
}

// IsWorkingDate reports whether the day containing t has working time
func (c *Calendar) IsWorkingDate(t time.Time) bool {
	return len(c.Ranges(t)) > 0
}

// WorkPerDay returns the working minutes of the day containing t
func (c *Calendar) WorkPerDay(t time.Time) float64 {
	var total float64
	for _, r := range c.Ranges(t) {
		total += r.Minutes()
	}
	return total
}

// StartTime returns the start of work on the day containing t
func (c *Calendar) StartTime(t time.Time) (time.Time, bool) {
	ranges := c.Ranges(t)
	if len(ranges) == 0 {
		return time.Time{}, false
	}
	return midnight(t).Add(ranges[0].Start), true
}

// FinishTime returns the end of work on the day containing t
func (c *Calendar) FinishTime(t time.Time) (time.Time, bool) {
	ranges := c.Ranges(t)
	if len(ranges) == 0 {
		return time.Time{}, false
	}
	return midnight(t).Add(ranges[len(ranges)-1].End), true
}

// Work returns the working minutes between start and finish. The result is
// negative when finish precedes start.
func (c *Calendar) Work(start, finish time.Time) float64 {
	if finish.Before(start) {
		return -c.Work(finish, start)
	}

	var total float64
	for d := midnight(start); d.Before(finish); d = d.AddDate(0, 0, 1) {
		for _, r := range c.Ranges(d) {
			from, to := d.Add(r.Start), d.Add(r.End)
			if from.Before(start) {
				from = start
			}
			if to.After(finish) {
				to = finish
			}
			if to.After(from) {
				total += to.Sub(from).Minutes()
			}
		}
	}
	return total
}

// NextWorkStart returns t when it falls within working time, otherwise the
// start of the next working range.
func (c *Calendar) NextWorkStart(t time.Time) time.Time {
	d := midnight(t)
	offset := t.Sub(d)
	for _, r := range c.Ranges(t) {
		if offset < r.End {
			if offset > r.Start {
				return t
			}
			return d.Add(r.Start)
		}
	}

	next, ok := c.nextWorkingDay(d)
	if !ok {
		return t
	}
	start, _ := c.StartTime(next)
	return start
}

func (c *Calendar) nextWorkingDay(d time.Time) (time.Time, bool) {
	for i := 0; i < maxNonWorkingDays; i++ {
		d = d.AddDate(0, 0, 1)
		if c.IsWorkingDate(d) {
			return d, true
		}
	}
	return time.Time{}, false
}

// Date adds minutes of working time to start. When the result lands exactly
// on the end of a working range and nextWorkStart is set, the start of the
// following working range is returned instead.
func (c *Calendar) Date(start time.Time, minutes float64, nextWorkStart bool) time.Time {
	current := start
	remaining := minutes

	for remaining > 0 {
		d := midnight(current)
		available := c.Work(current, d.AddDate(0, 0, 1))

		if remaining > available {
			remaining = round2(remaining - available)
			next, ok := c.nextWorkingDay(d)
			if !ok {
				current = d.AddDate(0, 0, 1)
				break
			}
			current, _ = c.StartTime(next)
			continue
		}

		offset := current.Sub(d)
		end := current
		first := true
		for _, r := range c.Ranges(d) {
			if first && r.End < offset {
				continue
			}
			from := r.Start
			if first && from < offset {
				from = offset
			}
			first = false

			length := (r.End - from).Minutes()
			if remaining > length {
				remaining -= length
				continue
			}
			if valueEquals(remaining, length) {
				end = d.Add(r.End)
			} else {
				end = d.Add(from).Add(time.Duration(remaining * float64(time.Minute)))
				nextWorkStart = false
			}
			remaining = 0
			break
		}
		current = end
		remaining = 0
	}

	if nextWorkStart {
		return c.NextWorkStart(current)
	}
	return current
}

func (c *Calendar) String() string {
	var b strings.Builder
	b.WriteString(c.name)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if len(c.week[wd]) == 0 {
			continue
		}
		fmt.Fprintf(&b, " %s=", strings.ToLower(wd.String()[:3]))
		for i, r := range c.week[wd] {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(r.String())
		}
	}
	return b.String()
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayStart returns midnight at the start of the day containing t
func DayStart(t time.Time) time.Time {
	return midnight(t)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func valueEquals(a, b float64) bool {
	d := a - b
	return d < 0.00001 && d > -0.00001
}
