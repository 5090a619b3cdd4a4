// Package timephased decodes the compact timephased work and cost blocks of
// resource assignments and normalises them into day-granular spans.
package timephased

import (
	"time"

	"github.com/basekick-labs/mppread/internal/mppbin"
	"github.com/basekick-labs/mppread/pkg/models"
	"github.com/rs/zerolog"
)

// Calendar places work on dates. *calendar.Calendar implements it.
type Calendar interface {
	Date(start time.Time, minutes float64, nextWorkStart bool) time.Time
	NextWorkStart(t time.Time) time.Time
	Work(start, finish time.Time) float64
	FinishTime(t time.Time) (time.Time, bool)
	IsWorkingDate(t time.Time) bool
	WorkPerDay(t time.Time) float64
}

const (
	completeHeaderSize = 32
	completeBlockSize  = 20
	plannedHeaderSize  = 40
	plannedBlockSize   = 28

	baselineWorkHeaderSize = 8
	baselineWorkBlockSize  = 40
	baselineCostHeaderSize = 16
	baselineCostBlockSize  = 20

	countOffset  = 0
	finishOffset = 24

	// Stored times count 1/80 of a minute.
	timeScale = 80
	// Stored work counts 1/1000 of a minute.
	workScale = 1000

	plannedModifiedMask = 0x3000
	standardDayMinutes  = 480
)

// Factory decodes timephased blocks.
type Factory struct {
	logger zerolog.Logger
}

// NewFactory creates a factory that reports truncated blocks to logger.
func NewFactory(logger zerolog.Logger) *Factory {
	return &Factory{logger: logger.With().Str("component", "timephased").Logger()}
}

func minutes(v float64) models.Duration {
	return models.NewDuration(v, models.Minutes)
}

// closeLast sets the finish of the last span, dropping it when it is empty.
func closeLast(list []models.TimephasedWork, finish time.Time) []models.TimephasedWork {
	last := &list[len(list)-1]
	last.Finish = finish
	if last.Start.Equal(last.Finish) {
		return list[:len(list)-1]
	}
	return list
}

func (f *Factory) truncated(kind string, decoded, declared, size int) {
	f.logger.Debug().
		Str("block", kind).
		Int("decoded", decoded).
		Int("declared", declared).
		Int("size", size).
		Msg("Timephased block truncated")
}

// CompleteWork decodes the actual work performed on an assignment that
// started at start. Spans are returned in minutes.
func (f *Factory) CompleteWork(cal Calendar, start time.Time, data []byte) []models.TimephasedWork {
	var list []models.TimephasedWork
	if len(data) == 0 {
		return list
	}

	count := mppbin.Short(data, countOffset)
	var previousCumulative float64
	open := false

	block := 0
	index := completeHeaderSize
	for ; block < count && index+completeBlockSize <= len(data); block++ {
		offset := float64(mppbin.Int(data, index)) / timeScale

		cumulative := float64(int64(mppbin.Double(data, index+4)))
		total := (cumulative - previousCumulative) / workScale
		previousCumulative = cumulative

		perDay := float64(int64(mppbin.Double(data, index+12))) / 125 * 6

		spanStart := start
		if offset != 0 {
			spanStart = cal.Date(start, offset, true)
		}

		if open {
			list = closeLast(list, cal.Date(start, offset, false))
		}
		list = append(list, models.TimephasedWork{
			Start:        spanStart,
			TotalAmount:  minutes(total),
			AmountPerDay: minutes(perDay),
		})
		open = true
		index += completeBlockSize
	}
	if block < count {
		f.truncated("complete work", block, count, len(data))
	}

	if open {
		finish := float64(mppbin.Int(data, finishOffset)) / timeScale
		list = closeLast(list, cal.Date(start, finish, false))
	}
	return list
}

// PlannedWork decodes the work still to be performed on an assignment. It is
// anchored at the finish of the last complete span, or at start when there is
// no complete work. units is the assignment units as a percentage.
func (f *Factory) PlannedWork(cal Calendar, start time.Time, units float64, data []byte, complete []models.TimephasedWork) []models.TimephasedWork {
	var list []models.TimephasedWork
	if len(data) == 0 {
		return list
	}

	count := mppbin.Short(data, countOffset)
	if count == 0 {
		if len(complete) == 0 || units == 0 {
			return list
		}
		// The remaining work is held as two scalars: total work and the
		// per-day rate.
		last := complete[len(complete)-1]
		spanStart := cal.NextWorkStart(last.Finish)
		total := mppbin.Double(data, 16) / workScale
		adjusted := total * 100 / units
		perDay := mppbin.Double(data, 8) / 2000 * 6

		span := models.TimephasedWork{
			Start:        spanStart,
			Finish:       cal.Date(spanStart, adjusted, false),
			TotalAmount:  minutes(total),
			AmountPerDay: minutes(perDay),
		}
		if !span.Start.Equal(span.Finish) {
			list = append(list, span)
		}
		return list
	}

	anchor := start
	if len(complete) > 0 {
		anchor = complete[len(complete)-1].Finish
	}

	var previousCumulative float64
	open := false

	block := 0
	index := plannedHeaderSize
	for ; block < count && index+plannedBlockSize <= len(data); block++ {
		offset := float64(mppbin.Int(data, index)) / timeScale
		spanStart := anchor
		if offset != 0 {
			spanStart = cal.Date(anchor, offset, true)
		}

		cumulative := mppbin.Double(data, index+4)
		total := (cumulative - previousCumulative) / workScale
		previousCumulative = cumulative

		perDay := mppbin.Double(data, index+12) / 2000 * 6

		flag := mppbin.Short(data, index+22)
		// A zero flag after the first block, or any bit of the reserved
		// mask, marks a hand-edited contour.
		modified := (flag == 0 && block != 0) || flag&plannedModifiedMask != 0

		if open {
			list = closeLast(list, cal.Date(anchor, offset, false))
		}
		list = append(list, models.TimephasedWork{
			Start:        spanStart,
			TotalAmount:  minutes(total),
			AmountPerDay: minutes(perDay),
			Modified:     modified,
		})
		open = true
		index += plannedBlockSize
	}
	if block < count {
		f.truncated("planned work", block, count, len(data))
	}

	if open {
		finish := float64(mppbin.Int(data, finishOffset)) / timeScale
		list = closeLast(list, cal.Date(anchor, finish, false))
	}
	return list
}

// WorkModified reports whether any span was hand edited.
func WorkModified(list []models.TimephasedWork) bool {
	for _, w := range list {
		if w.Modified {
			return true
		}
	}
	return false
}

// BaselineWork decodes a baseline work block. The last span is closed at
// finish, the assignment finish. Each span's per-day amount is a standard
// working day scaled by the overtime share of its work.
func (f *Factory) BaselineWork(finish time.Time, data []byte) []models.TimephasedWork {
	var list []models.TimephasedWork
	if len(data) < baselineWorkHeaderSize+baselineWorkBlockSize {
		return list
	}

	index := baselineWorkHeaderSize
	blockStart, _ := mppbin.TimestampFromTenths(data, index+36)
	index += baselineWorkBlockSize

	var previousCumulative float64
	for ; index+baselineWorkBlockSize <= len(data); index += baselineWorkBlockSize {
		cumulative := float64(int64(mppbin.Double(data, index+20))) / workScale
		if !valueEquals(cumulative, previousCumulative) {
			normalActual := float64(mppbin.Int(data, index+8)) / 10
			normalRemaining := float64(mppbin.Int(data, index+28)) / 10
			normal := normalActual + normalRemaining
			period := cumulative - previousCumulative

			var overtimeFactor float64
			if normal != 0 {
				overtimeFactor = (period - normal) / normal
			}

			spanFinish, _ := mppbin.TimestampFromTenths(data, index+16)
			list = append(list, models.TimephasedWork{
				Start:        blockStart,
				Finish:       spanFinish,
				TotalAmount:  minutes(period),
				AmountPerDay: minutes(standardDayMinutes + standardDayMinutes*overtimeFactor),
			})
			previousCumulative = cumulative
		}
		blockStart, _ = mppbin.TimestampFromTenths(data, index+36)
	}

	if len(list) > 0 {
		list[len(list)-1].Finish = finish
	}
	return list
}

// BaselineCost decodes a baseline cost block into spans of incurred cost.
func (f *Factory) BaselineCost(data []byte) []models.TimephasedCost {
	var list []models.TimephasedCost
	if len(data) < baselineCostHeaderSize+baselineCostBlockSize {
		return list
	}

	index := baselineCostHeaderSize
	blockStart, _ := mppbin.TimestampFromTenths(data, index+16)
	index += baselineCostBlockSize

	var previousTotal float64
	for ; index+baselineCostBlockSize <= len(data); index += baselineCostBlockSize {
		blockEnd, _ := mppbin.TimestampFromTenths(data, index+16)
		total := float64(int64(mppbin.Double(data, index+8))) / 100
		if !valueEquals(total, previousTotal) {
			list = append(list, models.TimephasedCost{
				Start:       blockStart,
				Finish:      blockEnd,
				TotalAmount: total - previousTotal,
			})
			previousTotal = total
		}
		blockStart = blockEnd
	}
	return list
}
