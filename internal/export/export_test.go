package export

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/basekick-labs/mppread/internal/bundle"
	"github.com/basekick-labs/mppread/internal/calendar"
	"github.com/basekick-labs/mppread/internal/config"
	"github.com/basekick-labs/mppread/internal/metrics"
	"github.com/basekick-labs/mppread/internal/pipeline"
	"github.com/basekick-labs/mppread/internal/storage"
	"github.com/basekick-labs/mppread/pkg/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult(t *testing.T) *pipeline.Result {
	t.Helper()
	p := pipeline.New(config.DecodeConfig{Workers: 2, Normalize: true}, calendar.Spec{}, zerolog.Nop(), pipeline.WithMetrics(metrics.New()))
	result, err := p.Run(context.Background(), bundle.Sample())
	require.NoError(t, err)
	return result
}

func localBackend(t *testing.T) (*storage.LocalBackend, string) {
	t.Helper()
	dir := t.TempDir()
	b, err := storage.NewLocalBackend(dir, zerolog.Nop())
	require.NoError(t, err)
	return b, dir
}

// remoteBackend hides the local backend type so exporters treat it as an
// object store
type remoteBackend struct {
	storage.Backend
}

func TestNew(t *testing.T) {
	backend, _ := localBackend(t)

	tests := []struct {
		name    string
		cfg     config.ExportConfig
		format  string
		wantErr bool
	}{
		{"default is json", config.ExportConfig{}, FormatJSON, false},
		{"case insensitive", config.ExportConfig{Format: "Parquet", Compression: "zstd"}, FormatParquet, false},
		{"sqlite", config.ExportConfig{Format: "sqlite"}, FormatSQLite, false},
		{"unknown format", config.ExportConfig{Format: "csv"}, "", true},
		{"unknown compression", config.ExportConfig{Format: "parquet", Compression: "lz4"}, "", true},
		{"bad sort key", config.ExportConfig{Format: "json", SortKeys: []string{"task"}}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg, backend, metrics.New(), zerolog.Nop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.format, e.Format())
		})
	}
}

func TestExportJSON(t *testing.T) {
	backend, dir := localBackend(t)
	m := metrics.New()
	e, err := New(config.ExportConfig{Format: "json", Pretty: true, Output: "out/run.json"}, backend, m, zerolog.Nop())
	require.NoError(t, err)

	outputs, err := e.Export(context.Background(), sampleResult(t))
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, "out/run.json", outputs[0].Key)
	assert.Equal(t, filepath.Join(dir, "out", "run.json"), outputs[0].URI)

	data, err := os.ReadFile(filepath.Join(dir, "out", "run.json"))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), outputs[0].Bytes)
	assert.Contains(t, string(data), "\n  \"generator\": \"mppread\"")

	var doc struct {
		Result struct {
			Classes []struct {
				Class    int `json:"class"`
				Entities []struct {
					UniqueID int32          `json:"unique_id"`
					Fields   map[string]any `json:"fields"`
				} `json:"entities"`
			} `json:"classes"`
			Report struct {
				RunID string `json:"run_id"`
			} `json:"report"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Result.Classes, 4)
	assert.NotEmpty(t, doc.Result.Report.RunID)
	tasks := doc.Result.Classes[0].Entities
	require.Len(t, tasks, 2)
	assert.Equal(t, "Design", tasks[0].Fields["name"])

	assert.Equal(t, int64(len(data)), m.Snapshot().ExportBytes["json"])
}

func TestExportMsgpack(t *testing.T) {
	backend, dir := localBackend(t)
	e, err := New(config.ExportConfig{Format: "msgpack"}, backend, metrics.New(), zerolog.Nop())
	require.NoError(t, err)

	outputs, err := e.Export(context.Background(), sampleResult(t))
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, "sample.msgpack", outputs[0].Key)

	data, err := os.ReadFile(filepath.Join(dir, "sample.msgpack"))
	require.NoError(t, err)
	doc, err := ReadMsgpack(data)
	require.NoError(t, err)
	assert.Equal(t, "mppread", doc["generator"])
	result, ok := doc["result"].(map[string]any)
	require.True(t, ok)
	classes, ok := result["classes"].([]any)
	require.True(t, ok)
	assert.Len(t, classes, 4)
}

func TestExportParquet(t *testing.T) {
	backend, dir := localBackend(t)
	e, err := New(config.ExportConfig{Format: "parquet", Compression: "gzip", Output: "pq"}, backend, metrics.New(), zerolog.Nop())
	require.NoError(t, err)

	outputs, err := e.Export(context.Background(), sampleResult(t))
	require.NoError(t, err)

	var keys []string
	for _, o := range outputs {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{
		"pq/task.parquet",
		"pq/resource.parquet",
		"pq/assignment.parquet",
		"pq/relation.parquet",
		"pq/timephased.parquet",
	}, keys)

	readTable := func(name string) (rows int64, columns []string) {
		data, err := os.ReadFile(filepath.Join(dir, "pq", name))
		require.NoError(t, err)
		table, err := pqarrow.ReadTable(context.Background(), bytes.NewReader(data), nil, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
		require.NoError(t, err)
		defer table.Release()
		for _, f := range table.Schema().Fields() {
			columns = append(columns, f.Name)
		}
		return table.NumRows(), columns
	}

	rows, columns := readTable("task.parquet")
	assert.Equal(t, int64(2), rows)
	assert.Equal(t, "unique_id", columns[0])
	assert.Contains(t, columns, "name")
	assert.Contains(t, columns, "start")

	rows, columns = readTable("timephased.parquet")
	assert.Equal(t, int64(2), rows)
	assert.Contains(t, columns, "per_day")
}

// failingBackend rejects writes to one key
type failingBackend struct {
	storage.Backend
	key string
}

func (b failingBackend) Write(ctx context.Context, key string, data []byte) error {
	if key == b.key {
		return errors.New("disk full")
	}
	return b.Backend.Write(ctx, key, data)
}

func TestExportParquetRemovesPartialOutput(t *testing.T) {
	local, dir := localBackend(t)
	backend := failingBackend{Backend: local, key: "pq/timephased.parquet"}
	e, err := New(config.ExportConfig{Format: "parquet", Output: "pq"}, backend, metrics.New(), zerolog.Nop())
	require.NoError(t, err)

	outputs, err := e.Export(context.Background(), sampleResult(t))
	require.Error(t, err)
	assert.Nil(t, outputs)
	assert.NoFileExists(t, filepath.Join(dir, "pq", "task.parquet"))
	assert.NoFileExists(t, filepath.Join(dir, "pq", "relation.parquet"))
}

func TestExportSQLite(t *testing.T) {
	ctx := context.Background()
	result := sampleResult(t)

	count := func(t *testing.T, db *sql.DB, query string) int {
		var n int
		require.NoError(t, db.QueryRow(query).Scan(&n))
		return n
	}

	t.Run("local", func(t *testing.T) {
		backend, dir := localBackend(t)
		e, err := New(config.ExportConfig{Format: "sqlite"}, backend, metrics.New(), zerolog.Nop())
		require.NoError(t, err)

		_, err = e.Export(ctx, result)
		require.NoError(t, err)

		db, err := sql.Open("sqlite3", filepath.Join(dir, "sample.db"))
		require.NoError(t, err)
		defer db.Close()

		assert.Equal(t, 1, count(t, db, `SELECT COUNT(*) FROM runs`))
		assert.Equal(t, 5, count(t, db, `SELECT COUNT(*) FROM entities`))
		assert.Equal(t, 2, count(t, db, `SELECT COUNT(*) FROM entities WHERE class = 'task'`))
		assert.Equal(t, 2, count(t, db, `SELECT COUNT(*) FROM timephased`))

		var name string
		require.NoError(t, db.QueryRow(`SELECT text_value FROM fields WHERE class = 'task' AND unique_id = 1 AND name = 'name'`).Scan(&name))
		assert.Equal(t, "Design", name)
	})

	t.Run("object store appends runs", func(t *testing.T) {
		local, dir := localBackend(t)
		e, err := New(config.ExportConfig{Format: "sqlite", Output: "db/projects"}, remoteBackend{local}, metrics.New(), zerolog.Nop())
		require.NoError(t, err)

		_, err = e.Export(ctx, result)
		require.NoError(t, err)
		second := sampleResult(t)
		outputs, err := e.Export(ctx, second)
		require.NoError(t, err)
		require.Len(t, outputs, 1)
		assert.Equal(t, "db/projects.db", outputs[0].Key)

		db, err := sql.Open("sqlite3", filepath.Join(dir, "db", "projects.db"))
		require.NoError(t, err)
		defer db.Close()
		assert.Equal(t, 2, count(t, db, `SELECT COUNT(*) FROM runs`))
		assert.Equal(t, 10, count(t, db, `SELECT COUNT(*) FROM entities`))
	})
}

func TestOutputBase(t *testing.T) {
	backend, _ := localBackend(t)
	tests := []struct {
		output string
		name   string
		want   string
	}{
		{"", "plan", "plan"},
		{"", "", "mppread"},
		{"out/run.json", "plan", "out/run"},
		{"exports/", "plan", "exports/plan"},
	}
	for _, tt := range tests {
		t.Run(tt.output+"|"+tt.name, func(t *testing.T) {
			e, err := New(config.ExportConfig{Output: tt.output}, backend, metrics.New(), zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.base(&pipeline.Result{Name: tt.name}))
		})
	}
}

func TestSortEntities(t *testing.T) {
	entity := func(id int32, name string) *models.Entity {
		e := models.NewEntity(models.TaskClass, id)
		if name != "" {
			e.Set(models.TaskName, name)
		}
		return e
	}
	ids := func(list []*models.Entity) []int32 {
		var out []int32
		for _, e := range list {
			out = append(out, e.UniqueID)
		}
		return out
	}

	list := []*models.Entity{entity(3, "b"), entity(1, ""), entity(2, "a"), entity(4, "a")}

	sortEntities(list, []string{"unique_id"})
	assert.Equal(t, []int32{1, 2, 3, 4}, ids(list))

	sortEntities(list, []string{"name", "unique_id"})
	assert.Equal(t, []int32{2, 4, 3, 1}, ids(list), "missing names sort last")
}

func TestExportAppliesSortKeys(t *testing.T) {
	backend, _ := localBackend(t)
	e, err := New(config.ExportConfig{Format: "json", SortKeys: []string{"task:name"}}, backend, metrics.New(), zerolog.Nop())
	require.NoError(t, err)

	result := sampleResult(t)
	sorted := e.sorted(result)
	tasks := sorted.Class(models.TaskClass).Entities
	assert.Equal(t, "Build", tasks[0].Values["name"])
	assert.Equal(t, int32(1), result.Class(models.TaskClass).Entities[0].UniqueID, "input order is untouched")
}

func TestColumnsOf(t *testing.T) {
	a := models.NewEntity(models.TaskClass, 1)
	a.Set(models.TaskName, "x")
	a.Set(models.TaskPercentComplete, 50)
	b := models.NewEntity(models.TaskClass, 2)
	b.Set(models.TaskPercentComplete, 12.5)
	b.Set(models.TaskMilestone, true)

	cols := columnsOf([]*models.Entity{a, b})
	kinds := map[string]columnKind{}
	for _, c := range cols {
		kinds[c.name] = c.kind
	}
	assert.Equal(t, kindString, kinds["name"])
	assert.Equal(t, kindFloat, kinds["percent_complete"])
	assert.Equal(t, kindBool, kinds["milestone"])
}
