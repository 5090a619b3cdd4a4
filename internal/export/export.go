// Package export writes decoded bundles to a storage backend as JSON,
// MessagePack, Parquet or SQLite.
package export

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/basekick-labs/mppread/internal/config"
	"github.com/basekick-labs/mppread/internal/metrics"
	"github.com/basekick-labs/mppread/internal/pipeline"
	"github.com/basekick-labs/mppread/internal/storage"
	"github.com/basekick-labs/mppread/pkg/models"
	"github.com/rs/zerolog"
)

// Supported formats.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
	FormatParquet = "parquet"
	FormatSQLite  = "sqlite"
)

// Formats lists the supported formats.
var Formats = []string{FormatJSON, FormatMsgpack, FormatParquet, FormatSQLite}

// Output describes one written object.
type Output struct {
	Key    string `json:"key" msgpack:"key"`
	URI    string `json:"uri" msgpack:"uri"`
	Format string `json:"format" msgpack:"format"`
	Bytes  int64  `json:"bytes" msgpack:"bytes"`
}

// sink encodes a result into one or more objects.
type sink interface {
	write(ctx context.Context, e *Exporter, result *pipeline.Result, base string) ([]Output, error)
}

// Exporter writes results in a single format.
type Exporter struct {
	cfg      config.ExportConfig
	backend  storage.Backend
	sink     sink
	sortKeys map[string][]string
	defaults []string
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// New creates an exporter for cfg.Format writing through backend.
func New(cfg config.ExportConfig, backend storage.Backend, m *metrics.Metrics, logger zerolog.Logger) (*Exporter, error) {
	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if format == "" {
		format = FormatJSON
	}
	cfg.Format = format

	var s sink
	switch format {
	case FormatJSON:
		s = jsonSink{pretty: cfg.Pretty}
	case FormatMsgpack:
		s = msgpackSink{}
	case FormatParquet:
		codec, err := parseCompression(cfg.Compression)
		if err != nil {
			return nil, err
		}
		s = parquetSink{compression: codec}
	case FormatSQLite:
		s = sqliteSink{}
	default:
		return nil, fmt.Errorf("unsupported export format: %s (supported: %s)", cfg.Format, strings.Join(Formats, ", "))
	}

	sortKeys, defaults, err := config.ParseSortKeys(cfg)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = metrics.Get()
	}

	return &Exporter{
		cfg:      cfg,
		backend:  backend,
		sink:     s,
		sortKeys: sortKeys,
		defaults: defaults,
		metrics:  m,
		logger:   logger.With().Str("component", "export").Str("format", format).Logger(),
	}, nil
}

// Format returns the output format.
func (e *Exporter) Format() string {
	return e.cfg.Format
}

// Close releases nothing itself; the backend is closed by its owner.
func (e *Exporter) Close() error {
	return nil
}

// Export writes result. Entities are ordered by the configured sort keys.
func (e *Exporter) Export(ctx context.Context, result *pipeline.Result) ([]Output, error) {
	start := time.Now()
	sorted := e.sorted(result)

	outputs, err := e.sink.write(ctx, e, sorted, e.base(result))
	if err != nil {
		return nil, fmt.Errorf("%s export: %w", e.cfg.Format, err)
	}

	var total int64
	for _, o := range outputs {
		total += o.Bytes
	}
	e.metrics.AddExportBytes(e.cfg.Format, total)
	e.logger.Info().
		Int("objects", len(outputs)).
		Int64("bytes", total).
		Dur("duration", time.Since(start)).
		Msg("Export complete")
	return outputs, nil
}

// base is the key the outputs are named after: the configured output with
// any extension removed, or the bundle name. An output ending in "/" is a
// prefix for the bundle name.
func (e *Exporter) base(result *pipeline.Result) string {
	name := result.Name
	if name == "" {
		name = "mppread"
	}
	base := e.cfg.Output
	switch {
	case base == "":
		base = name
	case strings.HasSuffix(base, "/"):
		base = storage.JoinKey(base, name)
	}
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

func (e *Exporter) put(ctx context.Context, key string, data []byte) (Output, error) {
	if err := e.backend.Write(ctx, key, data); err != nil {
		return Output{}, fmt.Errorf("failed to write %s: %w", key, err)
	}
	return Output{Key: key, URI: e.backend.URI(key), Format: e.cfg.Format, Bytes: int64(len(data))}, nil
}

// remove deletes objects written by a failed export. Cleanup runs on its
// own context so a cancelled run still removes its partial output.
func (e *Exporter) remove(outputs []Output) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, o := range outputs {
		if err := e.backend.Delete(ctx, o.Key); err != nil {
			e.logger.Warn().Err(err).Str("key", o.Key).Msg("Failed to remove partial export")
			continue
		}
		e.logger.Debug().Str("key", o.Key).Msg("Removed partial export")
	}
}

// sorted returns a shallow copy of result with each class ordered by its
// sort keys.
func (e *Exporter) sorted(result *pipeline.Result) *pipeline.Result {
	out := *result
	out.Classes = make([]*pipeline.ClassResult, len(result.Classes))
	for i, c := range result.Classes {
		keys, ok := e.sortKeys[c.Class.String()]
		if !ok {
			keys = e.defaults
		}
		cc := *c
		cc.Entities = append([]*models.Entity(nil), c.Entities...)
		sortEntities(cc.Entities, keys)
		out.Classes[i] = &cc
	}
	return &out
}

// sortEntities orders entities by keys, each a field name or "unique_id".
// Entities missing a key sort after those that have it.
func sortEntities(entities []*models.Entity, keys []string) {
	sort.SliceStable(entities, func(i, j int) bool {
		for _, key := range keys {
			a, aok := sortValue(entities[i], key)
			b, bok := sortValue(entities[j], key)
			switch {
			case !aok && !bok:
				continue
			case !aok:
				return false
			case !bok:
				return true
			}
			if c := compareValues(a, b); c != 0 {
				return c < 0
			}
		}
		return false
	})
}

func sortValue(e *models.Entity, key string) (any, bool) {
	if key == "unique_id" {
		return int64(e.UniqueID), true
	}
	v, ok := e.Values[key]
	return v, ok
}

func compareValues(a, b any) int {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(stringValue(a), stringValue(b))
}
