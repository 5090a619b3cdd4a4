package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot(t *testing.T) {
	m := New()
	m.IncBundles()
	m.IncBundleErrors()
	m.AddEntities("task", 3)
	m.AddEntities("task", 2)
	m.AddEntities("resource", 1)
	m.AddSkipped("task", ReasonDeleted, 1)
	m.AddVarItemsSkipped("assignment", 2)
	m.AddTimephasedSpans("planned", 4)
	m.AddExportBytes("json", 1024)

	s := m.Snapshot()
	assert.Equal(t, int64(1), s.Bundles)
	assert.Equal(t, int64(1), s.BundleErrors)
	assert.Equal(t, map[string]int64{"task": 5, "resource": 1}, s.Entities)
	assert.Equal(t, int64(6), s.TotalEntities())
	assert.Equal(t, map[string]int64{"task/deleted": 1}, s.Skipped)
	assert.Equal(t, map[string]int64{"assignment": 2}, s.VarItemsSkipped)
	assert.Equal(t, map[string]int64{"planned": 4}, s.TimephasedSpans)
	assert.Equal(t, map[string]int64{"json": 1024}, s.ExportBytes)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.entitiesTotal.WithLabelValues("task")))
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.AddEntities("task", 1)
	assert.Equal(t, int64(0), b.Snapshot().TotalEntities())
	assert.Same(t, Get(), Get())
}

func TestObserveEntityDecode(t *testing.T) {
	m := New()
	for i := 1; i <= 100; i++ {
		m.ObserveEntityDecode("task", time.Duration(i)*time.Microsecond)
	}
	m.ObserveEntityDecode("task", time.Hour)

	lat := m.Snapshot().EntityDecode
	assert.Equal(t, int64(101), lat.Count)
	assert.InDelta(t, 50, lat.P50, 2)
	assert.GreaterOrEqual(t, lat.Max, int64(59_000_000))
	assert.Equal(t, 1, testutil.CollectAndCount(m.entityDecode))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.AddEntities("assignment", 7)

	path := filepath.Join(t.TempDir(), "mppread.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `mppread_entities_decoded_total{class="assignment"} 7`))
}

func TestProgressBufferWraps(t *testing.T) {
	buf := newProgressBuffer(3)
	base := time.Now().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		buf.add(ProgressPoint{Timestamp: base.Add(time.Duration(i) * time.Second), Entities: int64(i)})
	}

	all := buf.recent(time.Time{})
	require.Len(t, all, 3)
	assert.Equal(t, []int64{2, 3, 4}, []int64{all[0].Entities, all[1].Entities, all[2].Entities})
	assert.Len(t, buf.recent(base.Add(3*time.Second)), 1)
}

func TestProgress(t *testing.T) {
	m := New()
	p := NewProgress(m, 10*time.Millisecond, 100, zerolog.Nop())
	p.Start()

	m.AddEntities("task", 50)
	time.Sleep(30 * time.Millisecond)
	p.Stop()
	p.Stop()

	points := p.Recent(time.Minute)
	require.NotEmpty(t, points)
	last := points[len(points)-1]
	assert.Equal(t, int64(50), last.Entities)
	for _, point := range points {
		assert.GreaterOrEqual(t, point.Rate, 0.0)
	}
}
