package metrics

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

const namespace = "mppread"

// Skip reasons recorded by AddSkipped
const (
	ReasonDeleted = "deleted"
	ReasonNoID    = "no_unique_id"
	ReasonEmpty   = "empty"
)

// Metrics collects decode counters for the run report and the optional
// Prometheus text file
type Metrics struct {
	startTime time.Time
	registry  *prometheus.Registry

	bundlesTotal    prometheus.Counter
	bundleErrors    prometheus.Counter
	entitiesTotal   *prometheus.CounterVec
	skippedTotal    *prometheus.CounterVec
	varItemsSkipped *prometheus.CounterVec
	timephasedSpans *prometheus.CounterVec
	exportBytes     *prometheus.CounterVec
	entityDecode    *prometheus.HistogramVec

	// Entity decode latency in microseconds for percentile reporting
	latencyMu sync.Mutex
	latency   *hdrhistogram.Histogram

	logger zerolog.Logger
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the process-wide metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// Init attaches a logger to the process-wide instance
func Init(logger zerolog.Logger) *Metrics {
	m := Get()
	m.logger = logger.With().Str("component", "metrics").Logger()
	return m
}

// New creates an independent metrics set with its own registry
func New() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),
		bundlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundles_decoded_total",
			Help:      "Bundles decoded",
		}),
		bundleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundle_errors_total",
			Help:      "Bundles rejected as structurally invalid",
		}),
		entitiesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_decoded_total",
			Help:      "Entities decoded per class",
		}, []string{"class"}),
		skippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Fixed records skipped per class and reason",
		}, []string{"class", "reason"}),
		varItemsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "var_items_skipped_total",
			Help:      "Variable data entries dropped as corrupt per class",
		}, []string{"class"}),
		timephasedSpans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timephased_spans_total",
			Help:      "Timephased spans produced per kind",
		}, []string{"kind"}),
		exportBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_bytes_total",
			Help:      "Bytes written by exporters per format",
		}, []string{"format"}),
		entityDecode: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "entity_decode_seconds",
			Help:      "Time to decode one entity",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"class"}),
		latency: hdrhistogram.New(1, int64(time.Minute/time.Microsecond), 3),
		logger:  zerolog.Nop(),
	}

	m.registry.MustRegister(
		m.bundlesTotal,
		m.bundleErrors,
		m.entitiesTotal,
		m.skippedTotal,
		m.varItemsSkipped,
		m.timephasedSpans,
		m.exportBytes,
		m.entityDecode,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) IncBundles()      { m.bundlesTotal.Inc() }
func (m *Metrics) IncBundleErrors() { m.bundleErrors.Inc() }

func (m *Metrics) AddEntities(class string, n int) {
	m.entitiesTotal.WithLabelValues(class).Add(float64(n))
}

func (m *Metrics) AddSkipped(class, reason string, n int) {
	m.skippedTotal.WithLabelValues(class, reason).Add(float64(n))
}

func (m *Metrics) AddVarItemsSkipped(class string, n int) {
	m.varItemsSkipped.WithLabelValues(class).Add(float64(n))
}

func (m *Metrics) AddTimephasedSpans(kind string, n int) {
	m.timephasedSpans.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) AddExportBytes(format string, n int64) {
	m.exportBytes.WithLabelValues(format).Add(float64(n))
}

// ObserveEntityDecode records the time taken to decode one entity
func (m *Metrics) ObserveEntityDecode(class string, d time.Duration) {
	m.entityDecode.WithLabelValues(class).Observe(d.Seconds())

	micros := d.Microseconds()
	if micros < 1 {
		micros = 1
	}
	m.latencyMu.Lock()
	// Out-of-range values are clamped to the top of the range
	if err := m.latency.RecordValue(micros); err != nil {
		m.latency.RecordValue(m.latency.HighestTrackableValue())
	}
	m.latencyMu.Unlock()
}

// Latency summarizes entity decode times in microseconds
type Latency struct {
	Count int64   `json:"count" msgpack:"count"`
	Mean  float64 `json:"mean_us" msgpack:"mean_us"`
	P50   int64   `json:"p50_us" msgpack:"p50_us"`
	P99   int64   `json:"p99_us" msgpack:"p99_us"`
	Max   int64   `json:"max_us" msgpack:"max_us"`
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	UptimeSeconds   float64          `json:"uptime_seconds" msgpack:"uptime_seconds"`
	Goroutines      int              `json:"goroutines" msgpack:"goroutines"`
	Bundles         int64            `json:"bundles" msgpack:"bundles"`
	BundleErrors    int64            `json:"bundle_errors" msgpack:"bundle_errors"`
	Entities        map[string]int64 `json:"entities" msgpack:"entities"`
	Skipped         map[string]int64 `json:"skipped,omitempty" msgpack:"skipped,omitempty"`
	VarItemsSkipped map[string]int64 `json:"var_items_skipped,omitempty" msgpack:"var_items_skipped,omitempty"`
	TimephasedSpans map[string]int64 `json:"timephased_spans,omitempty" msgpack:"timephased_spans,omitempty"`
	ExportBytes     map[string]int64 `json:"export_bytes,omitempty" msgpack:"export_bytes,omitempty"`
	EntityDecode    Latency          `json:"entity_decode" msgpack:"entity_decode"`
}

// TotalEntities sums the per-class entity counters
func (s Snapshot) TotalEntities() int64 {
	var total int64
	for _, n := range s.Entities {
		total += n
	}
	return total
}

// Snapshot gathers the registry into plain maps keyed by label values.
// Multi-label series are keyed "a/b".
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		UptimeSeconds:   time.Since(m.startTime).Seconds(),
		Goroutines:      runtime.NumGoroutine(),
		Entities:        map[string]int64{},
		Skipped:         map[string]int64{},
		VarItemsSkipped: map[string]int64{},
		TimephasedSpans: map[string]int64{},
		ExportBytes:     map[string]int64{},
	}

	families, err := m.registry.Gather()
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to gather metrics")
	}
	targets := map[string]map[string]int64{
		namespace + "_entities_decoded_total":  s.Entities,
		namespace + "_records_skipped_total":   s.Skipped,
		namespace + "_var_items_skipped_total": s.VarItemsSkipped,
		namespace + "_timephased_spans_total":  s.TimephasedSpans,
		namespace + "_export_bytes_total":      s.ExportBytes,
	}
	for _, mf := range families {
		switch mf.GetName() {
		case namespace + "_bundles_decoded_total":
			for _, metric := range mf.GetMetric() {
				s.Bundles += int64(metric.GetCounter().GetValue())
			}
		case namespace + "_bundle_errors_total":
			for _, metric := range mf.GetMetric() {
				s.BundleErrors += int64(metric.GetCounter().GetValue())
			}
		default:
			target, ok := targets[mf.GetName()]
			if !ok {
				continue
			}
			for _, metric := range mf.GetMetric() {
				labels := make([]string, 0, len(metric.GetLabel()))
				for _, lp := range metric.GetLabel() {
					labels = append(labels, lp.GetValue())
				}
				key := labels[0]
				for _, l := range labels[1:] {
					key += "/" + l
				}
				target[key] += int64(metric.GetCounter().GetValue())
			}
		}
	}

	m.latencyMu.Lock()
	s.EntityDecode = Latency{
		Count: m.latency.TotalCount(),
		Mean:  m.latency.Mean(),
		P50:   m.latency.ValueAtQuantile(50),
		P99:   m.latency.ValueAtQuantile(99),
		Max:   m.latency.Max(),
	}
	m.latencyMu.Unlock()
	return s
}

// WriteTextfile writes the registry in Prometheus text format, for the node
// exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	m.logger.Debug().Str("path", path).Msg("Wrote metrics textfile")
	return nil
}

// Log writes a one-line summary of the snapshot
func (s Snapshot) Log(logger zerolog.Logger) {
	classes := make([]string, 0, len(s.Entities))
	for class := range s.Entities {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	evt := logger.Info().Int64("bundles", s.Bundles).Int64("entities", s.TotalEntities())
	for _, class := range classes {
		evt = evt.Int64(class, s.Entities[class])
	}
	evt.Int64("decode_p99_us", s.EntityDecode.P99).Msg("Decode summary")
}
