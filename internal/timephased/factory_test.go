package timephased

import (
	"testing"
	"time"

	"github.com/basekick-labs/mppread/internal/blocktest"
	"github.com/basekick-labs/mppread/internal/calendar"
	"github.com/basekick-labs/mppread/pkg/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// at returns a time on the week starting Monday 4 March 2024
func at(day, hour int) time.Time {
	return time.Date(2024, time.March, 4+day, hour, 0, 0, 0, time.UTC)
}

type workBlock struct {
	offsetMinutes float64
	cumulative    float64
	perDay        float64
	flag          int
}

// completeBlob encodes complete work blocks; finish is in minutes of work
func completeBlob(finish float64, blocks ...workBlock) []byte {
	rec := blocktest.NewRecord(completeHeaderSize + len(blocks)*completeBlockSize)
	rec.PutShort(0, len(blocks))
	rec.PutInt(finishOffset, int32(finish*timeScale))
	for i, b := range blocks {
		index := completeHeaderSize + i*completeBlockSize
		rec.PutInt(index, int32(b.offsetMinutes*timeScale))
		rec.PutDouble(index+4, b.cumulative)
		rec.PutDouble(index+12, b.perDay)
	}
	return rec
}

func plannedBlob(finish float64, blocks ...workBlock) []byte {
	rec := blocktest.NewRecord(plannedHeaderSize + len(blocks)*plannedBlockSize)
	rec.PutShort(0, len(blocks))
	rec.PutInt(finishOffset, int32(finish*timeScale))
	for i, b := range blocks {
		index := plannedHeaderSize + i*plannedBlockSize
		rec.PutInt(index, int32(b.offsetMinutes*timeScale))
		rec.PutDouble(index+4, b.cumulative)
		rec.PutDouble(index+12, b.perDay)
		rec.PutShort(index+22, b.flag)
	}
	return rec
}

func newFactory() *Factory {
	return NewFactory(zerolog.Nop())
}

func TestCompleteWorkTwoDays(t *testing.T) {
	cal := calendar.Standard()
	// 480 minutes per day is stored as 10000 after the 125/6 scaling
	data := completeBlob(960,
		workBlock{offsetMinutes: 0, cumulative: 480000, perDay: 10000},
		workBlock{offsetMinutes: 480, cumulative: 960000, perDay: 10000},
	)

	list := newFactory().CompleteWork(cal, at(0, 8), data)
	require.Len(t, list, 2)

	assert.Equal(t, at(0, 8), list[0].Start)
	assert.Equal(t, at(0, 17), list[0].Finish)
	assert.Equal(t, at(1, 8), list[1].Start)
	assert.Equal(t, at(1, 17), list[1].Finish)

	for _, span := range list {
		hours := span.TotalAmount.ConvertTo(models.Hours, models.DefaultProjectDefaults())
		assert.InDelta(t, 8, hours.Value, 1e-9)
		assert.InDelta(t, 480, span.AmountPerDay.Value, 1e-9)
		assert.False(t, span.Modified)
	}
}

func TestCompleteWorkEdgeCases(t *testing.T) {
	cal := calendar.Standard()
	f := newFactory()

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, f.CompleteWork(cal, at(0, 8), nil))
	})

	t.Run("zero length span dropped", func(t *testing.T) {
		data := completeBlob(480,
			workBlock{offsetMinutes: 0, cumulative: 0},
			workBlock{offsetMinutes: 0, cumulative: 480000},
		)
		list := f.CompleteWork(cal, at(0, 8), data)
		require.Len(t, list, 1)
		assert.Equal(t, at(0, 8), list[0].Start)
		assert.InDelta(t, 480, list[0].TotalAmount.Value, 1e-9)
	})

	t.Run("truncated", func(t *testing.T) {
		data := completeBlob(1440,
			workBlock{offsetMinutes: 0, cumulative: 480000},
			workBlock{offsetMinutes: 480, cumulative: 960000},
			workBlock{offsetMinutes: 960, cumulative: 1440000},
		)
		list := f.CompleteWork(cal, at(0, 8), data[:len(data)-5])
		require.Len(t, list, 2)
		assert.Equal(t, at(2, 17), list[1].Finish)
	})
}

func TestPlannedWorkWithoutBlocks(t *testing.T) {
	cal := calendar.Standard()
	f := newFactory()
	complete := []models.TimephasedWork{{Start: at(0, 8), Finish: at(0, 17), TotalAmount: minutes(480)}}

	data := blocktest.NewRecord(24).PutDouble(8, 160000).PutDouble(16, 480000)

	t.Run("full units", func(t *testing.T) {
		list := f.PlannedWork(cal, at(0, 8), 100, data, complete)
		require.Len(t, list, 1)
		assert.Equal(t, at(1, 8), list[0].Start)
		assert.Equal(t, at(1, 17), list[0].Finish)
		assert.InDelta(t, 480, list[0].TotalAmount.Value, 1e-9)
		assert.InDelta(t, 480, list[0].AmountPerDay.Value, 1e-9)
		assert.False(t, list[0].Modified)
	})

	t.Run("half units stretch the finish", func(t *testing.T) {
		list := f.PlannedWork(cal, at(0, 8), 50, data, complete)
		require.Len(t, list, 1)
		assert.Equal(t, at(2, 17), list[0].Finish)
		assert.InDelta(t, 480, list[0].TotalAmount.Value, 1e-9)
	})

	t.Run("requires complete work and units", func(t *testing.T) {
		assert.Empty(t, f.PlannedWork(cal, at(0, 8), 100, data, nil))
		assert.Empty(t, f.PlannedWork(cal, at(0, 8), 0, data, complete))
	})
}

func TestPlannedWorkBlocks(t *testing.T) {
	cal := calendar.Standard()
	data := plannedBlob(960,
		workBlock{offsetMinutes: 0, cumulative: 480000, perDay: 160000},
		workBlock{offsetMinutes: 480, cumulative: 960000, perDay: 160000},
	)

	t.Run("anchored at assignment start", func(t *testing.T) {
		list := newFactory().PlannedWork(cal, at(0, 8), 100, data, nil)
		require.Len(t, list, 2)
		assert.Equal(t, at(0, 8), list[0].Start)
		assert.Equal(t, at(1, 17), list[1].Finish)
		assert.InDelta(t, 480, list[1].TotalAmount.Value, 1e-9)
	})

	t.Run("anchored after complete work", func(t *testing.T) {
		complete := []models.TimephasedWork{{Start: at(0, 8), Finish: at(0, 17)}}
		list := newFactory().PlannedWork(cal, at(0, 8), 100, data, complete)
		require.Len(t, list, 2)
		// The first block starts exactly at the anchor
		assert.Equal(t, at(0, 17), list[0].Start)
		assert.Equal(t, at(1, 17), list[0].Finish)
		assert.Equal(t, at(2, 8), list[1].Start)
		assert.Equal(t, at(2, 17), list[1].Finish)
	})
}

// The modified marker is read as stored: a zero flag on any block after the
// first counts as modified, as does any bit of 0x3000.
func TestPlannedWorkModifiedFlag(t *testing.T) {
	cal := calendar.Standard()
	data := plannedBlob(2400,
		workBlock{offsetMinutes: 0, cumulative: 480000, flag: 0},
		workBlock{offsetMinutes: 480, cumulative: 960000, flag: 0},
		workBlock{offsetMinutes: 960, cumulative: 1440000, flag: 0x0400},
		workBlock{offsetMinutes: 1440, cumulative: 1920000, flag: 0x2000},
		workBlock{offsetMinutes: 1920, cumulative: 2400000, flag: 0x1001},
	)

	list := newFactory().PlannedWork(cal, at(0, 8), 100, data, nil)
	require.Len(t, list, 5)

	got := make([]bool, len(list))
	for i, span := range list {
		got[i] = span.Modified
	}
	assert.Equal(t, []bool{false, true, false, true, true}, got)
	assert.True(t, WorkModified(list))
	assert.False(t, WorkModified(list[:1]))
	assert.False(t, WorkModified(nil))
}

func TestBaselineWork(t *testing.T) {
	const size = baselineWorkHeaderSize + 4*baselineWorkBlockSize
	rec := blocktest.NewRecord(size)
	rec.PutTenths(baselineWorkHeaderSize+36, at(0, 8))

	block := func(i int) int { return baselineWorkHeaderSize + i*baselineWorkBlockSize }

	rec.PutDouble(block(1)+20, 480000)
	rec.PutInt(block(1)+8, 4800)
	rec.PutTenths(block(1)+16, at(0, 17))
	rec.PutTenths(block(1)+36, at(1, 8))

	// No change in cumulative work: skipped
	rec.PutDouble(block(2)+20, 480000)
	rec.PutTenths(block(2)+36, at(2, 8))

	rec.PutDouble(block(3)+20, 1200000)
	rec.PutInt(block(3)+8, 2400)
	rec.PutInt(block(3)+28, 2400)
	rec.PutTenths(block(3)+16, at(2, 17))

	finish := at(3, 12)
	list := newFactory().BaselineWork(finish, rec)
	require.Len(t, list, 2)

	assert.Equal(t, at(0, 8), list[0].Start)
	assert.Equal(t, at(0, 17), list[0].Finish)
	assert.InDelta(t, 480, list[0].TotalAmount.Value, 1e-9)
	assert.InDelta(t, 480, list[0].AmountPerDay.Value, 1e-9)

	assert.Equal(t, at(2, 8), list[1].Start)
	assert.Equal(t, finish, list[1].Finish)
	assert.InDelta(t, 720, list[1].TotalAmount.Value, 1e-9)
	assert.InDelta(t, 720, list[1].AmountPerDay.Value, 1e-9, "half again as overtime")

	assert.Empty(t, newFactory().BaselineWork(finish, rec[:20]))
}

func TestBaselineCost(t *testing.T) {
	const size = baselineCostHeaderSize + 4*baselineCostBlockSize
	rec := blocktest.NewRecord(size)
	rec.PutTenths(baselineCostHeaderSize+16, at(0, 8))

	block := func(i int) int { return baselineCostHeaderSize + i*baselineCostBlockSize }
	rec.PutTenths(block(1)+16, at(0, 17))
	rec.PutDouble(block(1)+8, 10000)
	rec.PutTenths(block(2)+16, at(1, 17))
	rec.PutDouble(block(2)+8, 10000)
	rec.PutTenths(block(3)+16, at(2, 17))
	rec.PutDouble(block(3)+8, 25050)

	list := newFactory().BaselineCost(rec)
	require.Len(t, list, 2)

	assert.Equal(t, at(0, 8), list[0].Start)
	assert.Equal(t, at(0, 17), list[0].Finish)
	assert.InDelta(t, 100, list[0].TotalAmount, 1e-9)

	assert.Equal(t, at(1, 17), list[1].Start)
	assert.Equal(t, at(2, 17), list[1].Finish)
	assert.InDelta(t, 150.5, list[1].TotalAmount, 1e-9)
}
