package main

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/basekick-labs/mppread/internal/bundle"
	"github.com/basekick-labs/mppread/internal/export"
	"github.com/basekick-labs/mppread/internal/logger"
	"github.com/basekick-labs/mppread/internal/metrics"
	"github.com/basekick-labs/mppread/internal/pipeline"
	"github.com/basekick-labs/mppread/internal/shutdown"
	"github.com/basekick-labs/mppread/internal/storage"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type decodeFlags struct {
	output          string
	format          string
	compression     string
	normalize       bool
	mergePolicy     string
	workers         int
	classes         []string
	version         string
	metricsTextfile string
	progress        time.Duration
}

type decodeSummary struct {
	Bundle  string           `json:"bundle"`
	Report  *pipeline.Report `json:"report"`
	Outputs []export.Output  `json:"outputs"`
}

func newDecodeCommand() *cobra.Command {
	var f decodeFlags
	cmd := &cobra.Command{
		Use:   "decode <bundle-key>...",
		Short: "Decode bundles and export the records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyDecodeFlags(cmd, &f)
			return runDecode(cmd.Context(), args, f)
		},
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output key; a trailing / names a prefix for each bundle")
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "export format: "+strings.Join(export.Formats, ", "))
	cmd.Flags().StringVar(&f.compression, "compression", "", "parquet compression: snappy, gzip, zstd, none")
	cmd.Flags().BoolVar(&f.normalize, "normalize", false, "split timephased work into working-day spans")
	cmd.Flags().StringVar(&f.mergePolicy, "merge-policy", "", "timephased merge policy: auto, contiguous or same_day")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "entities decoded in parallel")
	cmd.Flags().StringSliceVar(&f.classes, "class", nil, "decode only these classes (task, resource, assignment, relation)")
	cmd.Flags().StringVar(&f.version, "format-version", "", "override the bundle format version, e.g. MPP14")
	cmd.Flags().StringVar(&f.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file on exit")
	cmd.Flags().DurationVar(&f.progress, "progress", 0, "log progress at this interval")
	return cmd
}

// applyDecodeFlags overrides configuration with the flags the user set
func applyDecodeFlags(cmd *cobra.Command, f *decodeFlags) {
	changed := cmd.Flags().Changed
	if changed("output") {
		cfg.Export.Output = f.output
	}
	if changed("format") {
		cfg.Export.Format = f.format
	}
	if changed("compression") {
		cfg.Export.Compression = f.compression
	}
	if changed("normalize") {
		cfg.Decode.Normalize = f.normalize
	}
	if changed("merge-policy") {
		cfg.Decode.MergePolicy = f.mergePolicy
	}
	if changed("workers") {
		cfg.Decode.Workers = f.workers
	}
	if changed("class") {
		cfg.Decode.Classes = f.classes
	}
	if changed("format-version") {
		cfg.Decode.FormatVersion = f.version
	}
}

func runDecode(parent context.Context, keys []string, f decodeFlags) error {
	log := logger.Get("decode")
	if err := cfg.Validate(); err != nil {
		return cmdFailedf("invalid configuration: %s", err)
	}

	coord := shutdown.New(time.Duration(cfg.Shutdown.TimeoutSeconds)*time.Second, logger.Get("shutdown"))
	ctx, stop := coord.Context(parent)
	defer stop()
	defer func() {
		if err := coord.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Shutdown completed with errors")
		}
	}()

	backend, err := storage.Open(cfg.Storage, logger.Get("storage"))
	if err != nil {
		return cmdFailedf("failed to open storage: %s", err)
	}
	coord.Register("storage", backend, shutdown.PriorityStorage)
	if r, ok := backend.(*storage.ResilientBackend); ok {
		coord.RegisterHook("storage-stats", func(context.Context) error {
			stats := r.CircuitBreakerStats()
			log.Debug().
				Str("state", stats.State).
				Int("failures", stats.Failures).
				Int("successes", stats.Successes).
				Msg("Storage circuit breaker")
			return nil
		}, shutdown.PriorityStorage)
	}

	keys, err = expandKeys(ctx, backend, keys)
	if err != nil {
		return cmdFailedf("%s", err)
	}

	m := metrics.Init(logger.Get("metrics"))
	if f.progress > 0 {
		progress := metrics.NewProgress(m, f.progress, 600, logger.Get("progress"))
		progress.Start()
		coord.RegisterHook("progress", func(context.Context) error {
			progress.Stop()
			return nil
		}, shutdown.PriorityProgress)
	}
	if f.metricsTextfile != "" {
		coord.RegisterHook("metrics-textfile", func(context.Context) error {
			return m.WriteTextfile(f.metricsTextfile)
		}, shutdown.PriorityMetrics)
	}

	// Several bundles exported to one key would overwrite each other
	if len(keys) > 1 && cfg.Export.Output != "" && !strings.HasSuffix(cfg.Export.Output, "/") {
		cfg.Export.Output += "/"
	}
	exporter, err := export.New(cfg.Export, backend, m, logger.Get("export"))
	if err != nil {
		return cmdFailedf("invalid export configuration: %s", err)
	}
	coord.Register("export", exporter, shutdown.PriorityExport)

	pipe := pipeline.New(cfg.Decode, cfg.Calendar, logger.Get("pipeline"),
		pipeline.WithMetrics(m),
		pipeline.WithWarnings(logger.GetBuffer()),
	)

	summaries := make([]decodeSummary, 0, len(keys))
	for _, key := range keys {
		s, err := decodeOne(ctx, backend, pipe, exporter, key)
		if err != nil {
			return cmdFailedf("%s: %s", key, err)
		}
		summaries = append(summaries, s)
	}

	m.Snapshot().Log(log)
	if isJSONOutput() {
		return printJSON(summaries)
	}
	printSummaries(summaries)
	return nil
}

func decodeOne(ctx context.Context, backend storage.Backend, pipe *pipeline.Pipeline, exporter *export.Exporter, key string) (decodeSummary, error) {
	data, err := backend.Read(ctx, key)
	if err != nil {
		return decodeSummary{}, fmt.Errorf("failed to read bundle: %w", err)
	}
	b, err := bundle.Decode(data, cfg.Decode.MaxBundleSize)
	if err != nil {
		return decodeSummary{}, err
	}
	// Outputs are named after the stored key, not the name embedded in the bundle
	b.Name = bundleName(key)

	result, err := pipe.Run(ctx, b)
	if err != nil {
		return decodeSummary{}, err
	}
	outputs, err := exporter.Export(ctx, result)
	if err != nil {
		return decodeSummary{}, err
	}
	return decodeSummary{Bundle: key, Report: result.Report, Outputs: outputs}, nil
}

// expandKeys replaces each key ending in "/" with the bundles stored under it
func expandKeys(ctx context.Context, backend storage.Backend, keys []string) ([]string, error) {
	var out []string
	for _, key := range keys {
		if !strings.HasSuffix(key, "/") {
			out = append(out, key)
			continue
		}
		listed, err := backend.List(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", key, err)
		}
		found := 0
		for _, k := range listed {
			if strings.HasSuffix(k, bundle.Ext) {
				out = append(out, k)
				found++
			}
		}
		if found == 0 {
			return nil, fmt.Errorf("no bundles under %s", key)
		}
	}
	return out, nil
}

// bundleName is the key's base name without its extension
func bundleName(key string) string {
	base := path.Base(key)
	return strings.TrimSuffix(base, path.Ext(base))
}

func printSummaries(summaries []decodeSummary) {
	t := newTable(table.Row{"Bundle", "Version", "Class", "Records", "Decoded", "Skipped", "Fields"}, 4, 5, 6, 7)
	for _, s := range summaries {
		for _, c := range s.Report.Classes {
			skipped := 0
			for _, n := range c.Skipped {
				skipped += n
			}
			t.AppendRow(table.Row{s.Bundle, s.Report.Version, c.Class, c.Records, c.Decoded, skipped, c.Fields})
		}
		t.AppendSeparator()
	}
	t.Render()

	out := newTable(table.Row{"Output", "Format", "Size"}, 3)
	for _, s := range summaries {
		for _, o := range s.Outputs {
			out.AppendRow(table.Row{o.URI, o.Format, humanBytes(o.Bytes)})
		}
	}
	out.Render()

	for _, s := range summaries {
		for _, w := range s.Report.Warnings {
			color.Yellow("warning: %s %s", w.Component, w.Message)
		}
	}
}
