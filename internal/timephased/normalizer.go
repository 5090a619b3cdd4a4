package timephased

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/basekick-labs/mppread/internal/calendar"
	"github.com/basekick-labs/mppread/pkg/models"
)

const (
	// remainderDelta is the excess work, in minutes, that moves to the
	// following day when a single-day span carries more than its day allows.
	remainderDelta = 0.1
	// sameWorkDelta is the tolerance, in minutes, for merging equal days.
	sameWorkDelta = 0.1
	valueDelta    = 0.00001
)

// MergePolicy selects how spans falling on the same day are combined.
type MergePolicy int

const (
	// MergeContiguous combines same-day spans only when the second starts
	// where the first ends, or at the next working time after it.
	MergeContiguous MergePolicy = iota
	// MergeSameDay combines every span starting on the same day
	MergeSameDay
)

func (p MergePolicy) String() string {
	switch p {
	case MergeContiguous:
		return "contiguous"
	case MergeSameDay:
		return "same_day"
	default:
		return fmt.Sprintf("MergePolicy(%d)", int(p))
	}
}

// PolicyFor returns the merge policy matching how a format version lays out
// its timephased blocks.
func PolicyFor(version models.FormatVersion) MergePolicy {
	if version <= models.MPP9 {
		return MergeContiguous
	}
	return MergeSameDay
}

// ParseMergePolicy parses "contiguous" or "same_day". "auto" and the empty
// string select the policy of version.
func ParseMergePolicy(s string, version models.FormatVersion) (MergePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return PolicyFor(version), nil
	case "contiguous":
		return MergeContiguous, nil
	case "same_day", "sameday":
		return MergeSameDay, nil
	default:
		return 0, fmt.Errorf("unknown merge policy %q", s)
	}
}

// Normalizer converts decoded spans into one span per working day, merges
// runs of identical days and expresses the result in hours. It holds no
// state between calls.
type Normalizer struct {
	policy MergePolicy
}

// NewNormalizer creates a normalizer.
func NewNormalizer(policy MergePolicy) *Normalizer {
	return &Normalizer{policy: policy}
}

// Policy returns the same-day merge policy.
func (n *Normalizer) Policy() MergePolicy {
	return n.policy
}

// Normalize returns the normalized form of list, which must hold spans in
// minutes as produced by Factory. list is not modified.
func (n *Normalizer) Normalize(cal Calendar, list []models.TimephasedWork) []models.TimephasedWork {
	if len(list) == 0 {
		return nil
	}
	out := splitDays(cal, list)
	out = mergeSameDay(cal, out, n.policy)
	out = mergeSameWork(out)
	return convertToHours(out)
}

// splitDays breaks spans covering several days into one span per day.
func splitDays(cal Calendar, list []models.TimephasedWork) []models.TimephasedWork {
	result := make([]models.TimephasedWork, 0, len(list))
	remainderInserted := false

	for _, span := range list {
		if remainderInserted {
			// The previous span spilled into the next day. A span that no
			// longer ends after its shifted start moves as a whole.
			span.Start = span.Start.AddDate(0, 0, 1)
			if !span.Finish.After(span.Start) {
				span.Finish = span.Finish.AddDate(0, 0, 1)
			}
			remainderInserted = false
		}

		current := span
		for {
			if !current.Finish.After(current.Start) {
				break
			}

			startDay := calendar.DayStart(current.Start)
			finishDay := calendar.DayStart(current.Finish)
			// A finish at midnight belongs to the previous day
			if current.Finish.Equal(finishDay) {
				finishDay = finishDay.AddDate(0, 0, -1)
			}

			if startDay.Equal(finishDay) {
				total := current.TotalAmount.Value
				dayWork := assignmentWork(cal, current)
				if total-dayWork > remainderDelta {
					current.TotalAmount = minutes(dayWork)
					result = append(result, current)

					remainderStart := finishDay.AddDate(0, 0, 1)
					result = append(result, models.TimephasedWork{
						Start:        remainderStart,
						Finish:       remainderStart.AddDate(0, 0, 1),
						TotalAmount:  minutes(total - dayWork),
						AmountPerDay: current.AmountPerDay,
						Modified:     current.Modified,
					})
					remainderInserted = true
				} else {
					result = append(result, current)
				}
				break
			}

			first, rest, ok := splitFirstDay(cal, current)
			if !ok {
				// No working time in the span: nothing to apportion
				result = append(result, current)
				break
			}
			if first != nil {
				result = append(result, *first)
			}
			if rest == nil {
				break
			}
			if !rest.Start.After(current.Start) {
				result = append(result, *rest)
				break
			}
			current = *rest
		}
	}
	return result
}

// splitFirstDay splits the first day off a span. ok is false when the span
// contains no working time.
func splitFirstDay(cal Calendar, span models.TimephasedWork) (first, rest *models.TimephasedWork, ok bool) {
	if cal.Work(span.Start, span.Finish) == 0 {
		return nil, nil, false
	}

	perDay := span.AmountPerDay.Value
	splitFinish := span.Start
	var splitMinutes float64

	if cal.IsWorkingDate(span.Start) {
		splitFinish, _ = cal.FinishTime(span.Start)
		sliceWork := cal.Work(span.Start, splitFinish)
		dayWork := cal.WorkPerDay(span.Start)

		switch {
		case valueEquals(sliceWork, dayWork):
			splitMinutes = perDay
		case dayWork > 0:
			splitMinutes = perDay * sliceWork / dayWork
		}

		if splitFinish.After(span.Start) {
			first = &models.TimephasedWork{
				Start:        span.Start,
				Finish:       splitFinish,
				TotalAmount:  minutes(splitMinutes),
				AmountPerDay: span.AmountPerDay,
				Modified:     span.Modified,
			}
		} else {
			splitFinish = span.Start
			splitMinutes = 0
		}
	}

	restStart := cal.NextWorkStart(splitFinish)
	if restStart.Before(span.Finish) {
		rest = &models.TimephasedWork{
			Start:        restStart,
			Finish:       span.Finish,
			TotalAmount:  minutes(span.TotalAmount.Value - splitMinutes),
			AmountPerDay: span.AmountPerDay,
			Modified:     span.Modified,
		}
	}
	return first, rest, true
}

// assignmentWork is the work a single-day span can hold given its per-day
// rate: the rate scaled by the share of the calendar day left after start.
func assignmentWork(cal Calendar, span models.TimephasedWork) float64 {
	finish, ok := cal.FinishTime(span.Start)
	if !ok {
		return 0
	}
	dayWork := cal.WorkPerDay(span.Start)
	if dayWork == 0 {
		return 0
	}
	return span.AmountPerDay.Value * cal.Work(span.Start, finish) / dayWork
}

// mergeSameDay combines spans starting on the same day and sets each span's
// per-day amount to its total.
func mergeSameDay(cal Calendar, list []models.TimephasedWork, policy MergePolicy) []models.TimephasedWork {
	result := make([]models.TimephasedWork, 0, len(list))

	for _, span := range list {
		if len(result) == 0 {
			span.AmountPerDay = span.TotalAmount
			result = append(result, span)
			continue
		}

		prev := &result[len(result)-1]
		if !sameDay(prev.Start, span.Start) {
			span.AmountPerDay = span.TotalAmount
			result = append(result, span)
			continue
		}

		prevWork, work := prev.TotalAmount.Value, span.TotalAmount.Value
		if prevWork != 0 && work == 0 {
			continue
		}

		switch policy {
		case MergeSameDay:
			switch {
			case prevWork != 0:
				*prev = merged(*prev, span)
			case work != 0:
				span.AmountPerDay = span.TotalAmount
				*prev = span
			}
		default:
			if prev.Finish.Equal(span.Start) || cal.NextWorkStart(prev.Finish).Equal(span.Start) {
				*prev = merged(*prev, span)
			} else {
				span.AmountPerDay = span.TotalAmount
				result = append(result, span)
			}
		}
	}
	return result
}

func merged(a, b models.TimephasedWork) models.TimephasedWork {
	total := minutes(a.TotalAmount.Value + b.TotalAmount.Value)
	return models.TimephasedWork{
		Start:        a.Start,
		Finish:       b.Finish,
		TotalAmount:  total,
		AmountPerDay: total,
		Modified:     a.Modified || b.Modified,
	}
}

// mergeSameWork combines consecutive days carrying the same amount of work.
func mergeSameWork(list []models.TimephasedWork) []models.TimephasedWork {
	result := make([]models.TimephasedWork, 0, len(list))

	for _, span := range list {
		if len(result) == 0 {
			span.AmountPerDay = span.TotalAmount
			result = append(result, span)
			continue
		}

		prev := &result[len(result)-1]
		if math.Abs(prev.AmountPerDay.Value-span.TotalAmount.Value) < sameWorkDelta {
			*prev = models.TimephasedWork{
				Start:        prev.Start,
				Finish:       span.Finish,
				TotalAmount:  minutes(prev.TotalAmount.Value + span.TotalAmount.Value),
				AmountPerDay: span.TotalAmount,
				Modified:     prev.Modified || span.Modified,
			}
			continue
		}

		span.AmountPerDay = span.TotalAmount
		result = append(result, span)
	}
	return result
}

func convertToHours(list []models.TimephasedWork) []models.TimephasedWork {
	for i := range list {
		list[i].TotalAmount = models.NewDuration(list[i].TotalAmount.Value/60, models.Hours)
		list[i].AmountPerDay = models.NewDuration(list[i].AmountPerDay.Value/60, models.Hours)
	}
	return list
}

func sameDay(a, b time.Time) bool {
	return calendar.DayStart(a).Equal(calendar.DayStart(b))
}

func valueEquals(a, b float64) bool {
	return math.Abs(a-b) < valueDelta
}
