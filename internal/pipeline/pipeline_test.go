package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/basekick-labs/mppread/internal/bundle"
	"github.com/basekick-labs/mppread/internal/calendar"
	"github.com/basekick-labs/mppread/internal/config"
	"github.com/basekick-labs/mppread/internal/metrics"
	"github.com/basekick-labs/mppread/internal/mppbin"
	"github.com/basekick-labs/mppread/pkg/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeline(cfg config.DecodeConfig) (*Pipeline, *metrics.Metrics) {
	m := metrics.New()
	return New(cfg, calendar.Spec{}, zerolog.Nop(), WithMetrics(m)), m
}

func TestRunSample(t *testing.T) {
	p, m := newPipeline(config.DecodeConfig{Workers: 4})
	result, err := p.Run(context.Background(), bundle.Sample())
	require.NoError(t, err)

	assert.Equal(t, models.MPP9, result.Version)
	assert.Equal(t, bundle.SampleProjectGUID, result.Project.GUID)
	assert.Equal(t, "$", result.Project.CurrencySymbol)

	tasks := result.Class(models.TaskClass)
	require.NotNil(t, tasks)
	require.Len(t, tasks.Entities, 2)
	assert.Equal(t, int32(1), tasks.Entities[0].UniqueID)
	assert.Equal(t, int32(2), tasks.Entities[1].UniqueID)

	name, ok := tasks.Entities[0].Get(models.TaskName)
	require.True(t, ok)
	assert.Equal(t, "Design", name)
	start, ok := tasks.Entities[0].Time(models.TaskStart)
	require.True(t, ok)
	assert.Equal(t, bundle.SampleStart, start)
	_, ok = tasks.Entities[0].Get(models.TaskActualStart)
	assert.True(t, ok, "block 1 fields are matched by index")

	require.NotNil(t, result.Class(models.ResourceClass))
	require.Len(t, result.Class(models.ResourceClass).Entities, 1)
	require.NotNil(t, result.Class(models.RelationClass))
	require.Len(t, result.Class(models.RelationClass).Entities, 1)

	report := result.Report
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "MPP9", report.Version)
	assert.Equal(t, 5, report.Entities())
	assert.Equal(t, 1, report.Skipped())
	assert.Equal(t, 5, len(result.Entities()))

	var taskReport ClassReport
	for _, c := range report.Classes {
		if c.Class == "task" {
			taskReport = c
		}
	}
	assert.Equal(t, 3, taskReport.Records)
	assert.Equal(t, 2, taskReport.Decoded)
	assert.Equal(t, map[string]int{metrics.ReasonDeleted: 1}, taskReport.Skipped)
	require.NotNil(t, taskReport.Var)
	assert.Equal(t, 6, taskReport.Var.Entries)

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.Bundles)
	assert.Equal(t, int64(2), snap.Entities["task"])
	assert.Equal(t, int64(1), snap.Skipped["task/deleted"])
	assert.Equal(t, int64(5), snap.EntityDecode.Count)
}

func TestRunTimephased(t *testing.T) {
	monday := bundle.SampleStart
	tuesday := monday.AddDate(0, 0, 1)

	t.Run("as stored", func(t *testing.T) {
		p, m := newPipeline(config.DecodeConfig{Workers: 2})
		result, err := p.Run(context.Background(), bundle.Sample())
		require.NoError(t, err)

		asg := result.Class(models.AssignmentClass).Entities[0]
		require.NotNil(t, asg.Work)

		require.Len(t, asg.Work.Complete, 1)
		assert.Equal(t, monday, asg.Work.Complete[0].Start)
		assert.Equal(t, monday.Add(9*time.Hour), asg.Work.Complete[0].Finish)
		assert.InDelta(t, 480, asg.Work.Complete[0].TotalAmount.Value, 1e-9)

		require.Len(t, asg.Work.Planned, 1)
		assert.Equal(t, monday.Add(9*time.Hour), asg.Work.Planned[0].Start)
		assert.Equal(t, tuesday.Add(9*time.Hour), asg.Work.Planned[0].Finish)
		assert.False(t, asg.Work.Modified)

		_, ok := asg.Get(models.AssignmentTimephasedWork)
		assert.False(t, ok, "raw block is dropped once decoded")
		_, ok = asg.Values["timephased_work"]
		assert.False(t, ok)

		assert.Equal(t, map[string]int{KindComplete: 1, KindPlanned: 1, KindBaseline: 0, KindBaselineCost: 0}, result.Report.Timephased)
		assert.Equal(t, int64(1), m.Snapshot().TimephasedSpans[KindPlanned])
	})

	t.Run("normalized", func(t *testing.T) {
		p, _ := newPipeline(config.DecodeConfig{Workers: 2, Normalize: true})
		result, err := p.Run(context.Background(), bundle.Sample())
		require.NoError(t, err)
		assert.Equal(t, "contiguous", result.Report.Policy)

		work := result.Class(models.AssignmentClass).Entities[0].Work
		require.NotNil(t, work)

		require.Len(t, work.Complete, 1)
		assert.Equal(t, models.Hours, work.Complete[0].TotalAmount.Units)
		assert.InDelta(t, 8, work.Complete[0].TotalAmount.Value, 1e-9)

		require.Len(t, work.Planned, 1)
		assert.Equal(t, tuesday.YearDay(), work.Planned[0].Start.YearDay())
		assert.Equal(t, tuesday, work.Planned[0].Start)
		assert.InDelta(t, 8, work.Planned[0].TotalAmount.Value, 1e-9)
	})
}

func TestRunWorkerCountDoesNotChangeOutput(t *testing.T) {
	uniqueIDs := func(workers int) []int32 {
		p, _ := newPipeline(config.DecodeConfig{Workers: workers})
		result, err := p.Run(context.Background(), bundle.Sample())
		require.NoError(t, err)
		var ids []int32
		for _, e := range result.Entities() {
			ids = append(ids, int32(e.Class)<<16|e.UniqueID)
		}
		return ids
	}
	assert.Equal(t, uniqueIDs(1), uniqueIDs(16))
}

func TestRunClassFilter(t *testing.T) {
	p, _ := newPipeline(config.DecodeConfig{Workers: 1, Classes: []string{"task"}})
	result, err := p.Run(context.Background(), bundle.Sample())
	require.NoError(t, err)
	require.Len(t, result.Classes, 1)
	assert.Equal(t, models.TaskClass, result.Classes[0].Class)
	assert.Nil(t, result.Report.Timephased)

	p, _ = newPipeline(config.DecodeConfig{Workers: 1, Classes: []string{"calendar"}})
	_, err = p.Run(context.Background(), bundle.Sample())
	assert.Error(t, err)
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.DecodeConfig
		mutate func(b *bundle.Bundle)
		check  func(t *testing.T, err error)
	}{
		{
			name: "unknown version override",
			cfg:  config.DecodeConfig{FormatVersion: "MPP3"},
		},
		{
			name: "missing version",
			mutate: func(b *bundle.Bundle) {
				b.FormatVersion = ""
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, bundle.ErrNoVersion)
			},
		},
		{
			name: "unknown merge policy",
			cfg:  config.DecodeConfig{MergePolicy: "weekly"},
		},
		{
			name: "bad calendar",
			cfg:  config.DecodeConfig{},
			mutate: func(b *bundle.Bundle) {
				b.Calendar = &calendar.Spec{WorkingDays: []string{"someday"}}
			},
		},
		{
			name: "corrupt fixed meta",
			mutate: func(b *bundle.Bundle) {
				b.Class(models.TaskClass).Fixed[0].Meta = []byte{1, 2, 3, 4, 5, 6, 7, 8}
			},
			check: func(t *testing.T, err error) {
				var fe *mppbin.FormatError
				require.True(t, errors.As(err, &fe))
				assert.ErrorIs(t, err, mppbin.ErrShortHeader)
			},
		},
		{
			name: "corrupt var meta",
			mutate: func(b *bundle.Bundle) {
				meta := b.Class(models.ResourceClass).VarMeta
				bad := append([]byte(nil), meta...)
				bad[0] ^= 0xFF
				b.Class(models.ResourceClass).VarMeta = bad
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, mppbin.ErrBadMagic)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bundle.Sample()
			if tt.mutate != nil {
				tt.mutate(b)
			}
			p, m := newPipeline(tt.cfg)
			_, err := p.Run(context.Background(), b)
			require.Error(t, err)
			if tt.check != nil {
				tt.check(t, err)
			}
			assert.Equal(t, int64(1), m.Snapshot().BundleErrors)
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, _ := newPipeline(config.DecodeConfig{Workers: 1})
	_, err := p.Run(ctx, bundle.Sample())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSchema(t *testing.T) {
	p, _ := newPipeline(config.DecodeConfig{})
	b := bundle.Sample()

	s, err := p.Schema(b, models.TaskClass)
	require.NoError(t, err)
	assert.False(t, s.Embedded())
	assert.Equal(t, models.MPP9, s.Version())
	loc, ok := s.Location(models.TaskName)
	require.True(t, ok)
	assert.Equal(t, "var key=14", loc.String())

	p, _ = newPipeline(config.DecodeConfig{FormatVersion: "MPP14"})
	s, err = p.Schema(b, models.TaskClass)
	require.NoError(t, err)
	_, ok = s.Location(models.TaskGUID)
	assert.True(t, ok, "version override selects the newer defaults")
}
