// Package pipeline turns a block bundle into decoded entities. It builds the
// record stores and field schema of each class, decodes every live record
// and expands the timephased work of assignments.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/basekick-labs/mppread/internal/bundle"
	"github.com/basekick-labs/mppread/internal/calendar"
	"github.com/basekick-labs/mppread/internal/config"
	"github.com/basekick-labs/mppread/internal/fieldmap"
	"github.com/basekick-labs/mppread/internal/fixedstore"
	"github.com/basekick-labs/mppread/internal/logger"
	"github.com/basekick-labs/mppread/internal/metrics"
	"github.com/basekick-labs/mppread/internal/mppbin"
	"github.com/basekick-labs/mppread/internal/props"
	"github.com/basekick-labs/mppread/internal/timephased"
	"github.com/basekick-labs/mppread/internal/varstore"
	"github.com/basekick-labs/mppread/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pipeline decodes bundles. It is safe for concurrent use; each Run works on
// its own stores.
type Pipeline struct {
	cfg      config.DecodeConfig
	calendar calendar.Spec
	metrics  *metrics.Metrics
	warnings *logger.Buffer
	factory  *timephased.Factory
	logger   zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records counters in m instead of the process-wide instance.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithWarnings attaches the log buffer whose recent warnings go into reports.
func WithWarnings(b *logger.Buffer) Option {
	return func(p *Pipeline) { p.warnings = b }
}

// New creates a pipeline. cal is the calendar used for bundles that carry
// none of their own.
func New(cfg config.DecodeConfig, cal calendar.Spec, log zerolog.Logger, opts ...Option) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	p := &Pipeline{
		cfg:      cfg,
		calendar: cal,
		metrics:  metrics.Get(),
		factory:  timephased.NewFactory(log),
		logger:   log.With().Str("component", "pipeline").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is the decoded content of one bundle.
type Result struct {
	Name     string                   `json:"name,omitempty" msgpack:"name,omitempty"`
	Version  models.FormatVersion     `json:"-" msgpack:"-"`
	Project  models.ProjectProperties `json:"project" msgpack:"project"`
	Classes  []*ClassResult           `json:"classes" msgpack:"classes"`
	Report   *Report                  `json:"report" msgpack:"report"`
	Calendar *calendar.Calendar       `json:"-" msgpack:"-"`
}

// Class returns the result for class, or nil.
func (r *Result) Class(class models.FieldClass) *ClassResult {
	for _, c := range r.Classes {
		if c.Class == class {
			return c
		}
	}
	return nil
}

// Entities returns every decoded entity in class order.
func (r *Result) Entities() []*models.Entity {
	var out []*models.Entity
	for _, c := range r.Classes {
		out = append(out, c.Entities...)
	}
	return out
}

// ClassResult holds the decoded entities of one class in record order.
type ClassResult struct {
	Class    models.FieldClass `json:"class" msgpack:"class"`
	Entities []*models.Entity  `json:"entities" msgpack:"entities"`
	Schema   *fieldmap.Schema  `json:"-" msgpack:"-"`
}

// context for one class, built before any entity is decoded and read-only
// afterwards.
type classDecode struct {
	class   models.FieldClass
	fixed   []*fixedstore.Store
	vars    *varstore.Store
	decoder *fieldmap.Decoder
	report  *ClassReport
}

// Run decodes every requested class of b.
func (p *Pipeline) Run(ctx context.Context, b *bundle.Bundle) (*Result, error) {
	started := time.Now()
	runID := uuid.New().String()
	log := p.logger.With().Str("run_id", runID).Str("bundle", b.Name).Logger()

	result, err := p.run(ctx, b, runID, log)
	if err != nil {
		p.metrics.IncBundleErrors()
		log.Error().Err(err).Msg("Bundle decode failed")
		return nil, err
	}
	p.metrics.IncBundles()

	result.Report.StartedAt = started
	result.Report.Duration = time.Since(started)
	result.Report.Metrics = p.metrics.Snapshot()
	if p.warnings != nil {
		result.Report.Warnings = p.warnings.Recent(50, "warn", started)
	}

	log.Info().
		Str("version", result.Version.String()).
		Int("entities", result.Report.Entities()).
		Dur("duration", result.Report.Duration).
		Msg("Bundle decoded")
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, b *bundle.Bundle, runID string, log zerolog.Logger) (*Result, error) {
	if err := b.Validate(); err != nil && p.cfg.FormatVersion == "" {
		return nil, err
	}
	version, err := p.version(b)
	if err != nil {
		return nil, err
	}

	pb, err := p.props(b)
	if err != nil {
		return nil, err
	}
	cal, err := p.resolveCalendar(b)
	if err != nil {
		return nil, err
	}
	policy, err := timephased.ParseMergePolicy(p.cfg.MergePolicy, version)
	if err != nil {
		return nil, err
	}
	classes, err := p.classes(b)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Name:     b.Name,
		Version:  version,
		Project:  pb.Project(),
		Calendar: cal,
		Report: &Report{
			RunID:    runID,
			Bundle:   b.Name,
			Version:  version.String(),
			Calendar: cal.Name(),
			Policy:   policy.String(),
		},
	}

	// Stores and schemas are built up front so that the workers below only
	// ever read them.
	decodes := make([]*classDecode, 0, len(classes))
	for _, class := range classes {
		cd, err := p.prepare(b, version, class, pb, log)
		if err != nil {
			return nil, err
		}
		decodes = append(decodes, cd)
	}

	sem := semaphore.NewWeighted(int64(p.cfg.Workers))
	g, gctx := errgroup.WithContext(ctx)
	classResults := make([]*ClassResult, len(decodes))
	for i, cd := range decodes {
		g.Go(func() error {
			entities, err := p.decodeClass(gctx, sem, cd)
			if err != nil {
				return err
			}
			classResults[i] = &ClassResult{Class: cd.class, Entities: entities, Schema: cd.decoder.Schema()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	result.Classes = classResults
	for _, cd := range decodes {
		result.Report.Classes = append(result.Report.Classes, *cd.report)
	}

	if asg := result.Class(models.AssignmentClass); asg != nil {
		var normalizer *timephased.Normalizer
		if p.cfg.Normalize {
			normalizer = timephased.NewNormalizer(policy)
		}
		vars := decodes[indexOf(decodes, models.AssignmentClass)].vars
		result.Report.Timephased = p.expandTimephased(asg, vars, cal, normalizer)
	}
	return result, nil
}

func indexOf(decodes []*classDecode, class models.FieldClass) int {
	for i, cd := range decodes {
		if cd.class == class {
			return i
		}
	}
	return -1
}

func (p *Pipeline) version(b *bundle.Bundle) (models.FormatVersion, error) {
	if p.cfg.FormatVersion != "" {
		return models.ParseFormatVersion(p.cfg.FormatVersion)
	}
	return b.Version()
}

func (p *Pipeline) props(b *bundle.Bundle) (*props.Props, error) {
	if len(b.Props) == 0 {
		return props.Empty(), nil
	}
	pb, err := props.New(b.Props)
	if err != nil {
		return nil, fmt.Errorf("project properties: %w", err)
	}
	return pb, nil
}

func (p *Pipeline) resolveCalendar(b *bundle.Bundle) (*calendar.Calendar, error) {
	spec := p.calendar
	if b.Calendar != nil {
		spec = *b.Calendar
	}
	cal, err := calendar.FromSpec(spec)
	if err != nil {
		return nil, fmt.Errorf("calendar: %w", err)
	}
	return cal, nil
}

// classes returns the classes to decode: the configured subset, or every
// class the bundle carries.
func (p *Pipeline) classes(b *bundle.Bundle) ([]models.FieldClass, error) {
	present := b.PresentClasses()
	if len(p.cfg.Classes) == 0 {
		return present, nil
	}
	wanted := make(map[models.FieldClass]bool, len(p.cfg.Classes))
	for _, name := range p.cfg.Classes {
		c, err := models.ParseFieldClass(name)
		if err != nil {
			return nil, err
		}
		wanted[c] = true
	}
	var out []models.FieldClass
	for _, c := range present {
		if wanted[c] {
			out = append(out, c)
		}
	}
	return out, nil
}

// Schema returns the field schema the pipeline would use for class.
func (p *Pipeline) Schema(b *bundle.Bundle, class models.FieldClass) (*fieldmap.Schema, error) {
	version, err := p.version(b)
	if err != nil {
		return nil, err
	}
	pb, err := p.props(b)
	if err != nil {
		return nil, err
	}
	return schemaFor(version, class, b.Class(class), pb), nil
}

// schemaFor prefers the bundle's own field map, then the one embedded in the
// property block, then the version defaults.
func schemaFor(version models.FormatVersion, class models.FieldClass, blocks *bundle.ClassBlocks, pb *props.Props) *fieldmap.Schema {
	var s *fieldmap.Schema
	if blocks != nil && len(blocks.FieldMap) > 0 {
		s = fieldmap.Build(version, class, blocks.FieldMap)
	} else {
		s = fieldmap.BuildFromProps(version, class, pb)
	}
	if blocks != nil && len(blocks.EnterpriseCustom) > 0 {
		s.Merge(fieldmap.BuildEnterpriseCustom(version, class, blocks.EnterpriseCustom))
	}
	return s
}

func (p *Pipeline) prepare(b *bundle.Bundle, version models.FormatVersion, class models.FieldClass, pb *props.Props, log zerolog.Logger) (*classDecode, error) {
	blocks := b.Class(class)
	schema := schemaFor(version, class, blocks, pb)
	cd := &classDecode{
		class: class,
		decoder: fieldmap.NewDecoder(schema,
			fieldmap.WithProjectDefaults(pb.ProjectDefaults()),
			fieldmap.WithLookupTable(fieldmap.LookupMap(b.ValueLists)),
		),
		report: &ClassReport{
			Class:    class.String(),
			Fields:   schema.Len(),
			Embedded: schema.Embedded(),
			Skipped:  map[string]int{},
		},
	}
	classLog := log.With().Str("class", class.String()).Logger()

	for k, fb := range blocks.Fixed {
		name := fmt.Sprintf("%s fixed %d", class, k)
		if fb.Uniform() {
			cd.fixed = append(cd.fixed, fixedstore.NewUniform(fb.Data, fb.ItemSize, true))
			continue
		}
		opts := []fixedstore.Option{fixedstore.WithLogger(classLog), fixedstore.WithBlockName(name)}
		if size := schema.MaxFixedDataSize(k); size > 0 {
			opts = append(opts, fixedstore.WithMinItemSize(size))
		}
		store, err := fixedstore.New(fb.Meta, fb.Data, fb.ItemSize, opts...)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", class, err)
		}
		cd.fixed = append(cd.fixed, store)
	}
	if len(cd.fixed) == 0 {
		return nil, &mppbin.FormatError{Block: class.String() + " fixed 0", Err: mppbin.ErrShortHeader}
	}

	if len(blocks.VarMeta) > 0 {
		vars, err := varstore.NewFromBytes(blocks.VarMeta, blocks.VarData,
			varstore.WithLogger(classLog),
			varstore.WithBlockName(class.String()+" var"),
		)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", class, err)
		}
		cd.vars = vars
		stats := vars.Stats()
		cd.report.Var = &stats
		if dropped := stats.Skipped + stats.Failed; dropped > 0 {
			p.metrics.AddVarItemsSkipped(class.String(), dropped)
		}
	}
	return cd, nil
}

// decodeClass decodes every live record of block 0. Records of the other
// fixed blocks are matched to it by index.
func (p *Pipeline) decodeClass(ctx context.Context, sem *semaphore.Weighted, cd *classDecode) ([]*models.Entity, error) {
	primary := cd.fixed[0]
	count := primary.Count()
	entities := make([]*models.Entity, count)
	skipped := make([]string, count)

	var vars fieldmap.VarSource
	if cd.vars != nil {
		vars = cd.vars
	}
	className := cd.class.String()

	var wg sync.WaitGroup
	var acquireErr error
	for i := 0; i < count; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			acquireErr = err
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)

			start := time.Now()
			entity, reason := p.decodeEntity(cd, vars, i)
			if entity == nil {
				skipped[i] = reason
				return
			}
			entities[i] = entity
			p.metrics.ObserveEntityDecode(className, time.Since(start))
		}(i)
	}
	wg.Wait()
	if acquireErr != nil {
		return nil, fmt.Errorf("class %s: %w", cd.class, acquireErr)
	}

	out := make([]*models.Entity, 0, count)
	for i, e := range entities {
		if e != nil {
			out = append(out, e)
			continue
		}
		cd.report.Skipped[skipped[i]]++
	}
	for reason, n := range cd.report.Skipped {
		p.metrics.AddSkipped(className, reason, n)
	}
	cd.report.Records = count
	cd.report.Decoded = len(out)
	p.metrics.AddEntities(className, len(out))
	return out, nil
}

func (p *Pipeline) decodeEntity(cd *classDecode, vars fieldmap.VarSource, i int) (*models.Entity, string) {
	primary := cd.fixed[0]
	if primary.Deleted(i) {
		return nil, metrics.ReasonDeleted
	}
	record := primary.Get(i)
	if record == nil {
		return nil, metrics.ReasonEmpty
	}
	if len(record) < 4 {
		return nil, metrics.ReasonNoID
	}
	uniqueID := mppbin.Int(record, 0)

	fixed := make([][]byte, len(cd.fixed))
	fixed[0] = record
	for k := 1; k < len(cd.fixed); k++ {
		fixed[k] = cd.fixed[k].Get(i)
	}

	entity := models.NewEntity(cd.class, uniqueID)
	cd.decoder.Populate(entity, uniqueID, fixed, vars)
	return entity, ""
}
