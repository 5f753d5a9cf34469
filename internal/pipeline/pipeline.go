package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/glider-data-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/glider-data-etl/internal/adapter/rawfile"
	"github.com/couchcryptid/glider-data-etl/internal/domain"
	"github.com/couchcryptid/glider-data-etl/internal/observability"
)

// Ingester reads and merges raw payload files.
type Ingester interface {
	Ingest(ctx context.Context, files []rawfile.File) (*rawfile.Result, error)
}

// TableStore persists stage outputs and loads previously written ones.
type TableStore interface {
	Save(name string, t *domain.Table) (string, error)
	Load(path string) (*domain.Table, error)
}

// Converter applies the unit conversions to a table.
type Converter interface {
	Apply(ctx context.Context, t *domain.Table) (*domain.Table, domain.Outcome, error)
}

// Ledger records runs and their stage reports.
type Ledger interface {
	StartRun(ctx context.Context, run *domain.Run) error
	RecordStage(ctx context.Context, runID string, seq int, r domain.StageReport) error
	CompleteRun(ctx context.Context, run *domain.Run) error
}

// Publisher sends the final standard table downstream.
type Publisher interface {
	Publish(ctx context.Context, runID string, t *domain.Table) (int, error)
}

// Options controls which files the pipeline writes.
type Options struct {
	Prefix           string
	KeepIntermediate bool
	WriteSeparate    bool
	WriteBackup      bool
	SampleRows       int
}

// Option configures optional collaborators.
type Option func(*Pipeline)

// WithLedger records every run in l.
func WithLedger(l Ledger) Option {
	return func(p *Pipeline) { p.ledger = l }
}

// WithPublisher publishes the final table of every run that reaches the
// rename stage.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// TransformStages are the stages that run on an ingested table, in order.
var TransformStages = []string{domain.StageCoerce, domain.StageNormalize, domain.StageConvert, domain.StageRename}

var stageLabels = map[string]string{
	domain.StageIngest:    "merged",
	domain.StageCoerce:    "numeric",
	domain.StageNormalize: "decimal_coordinates",
	domain.StageConvert:   "converted",
	domain.StageRename:    "standard",
}

// Pipeline drives the stages over a mission's raw files, persisting each
// stage's table and recording a report per stage.
type Pipeline struct {
	ingester   Ingester
	store      TableStore
	normalizer domain.CoordinateNormalizer
	converter  Converter
	renamer    *domain.Renamer
	ledger     Ledger
	publisher  Publisher
	opts       Options
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(in Ingester, store TableStore, normalizer domain.CoordinateNormalizer, conv Converter, renamer *domain.Renamer, opts Options, logger *slog.Logger, metrics *observability.Metrics, options ...Option) *Pipeline {
	p := &Pipeline{
		ingester:   in,
		store:      store,
		normalizer: normalizer,
		converter:  conv,
		renamer:    renamer,
		opts:       opts,
		logger:     logger,
		metrics:    metrics,
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// CheckReadiness returns nil once the pipeline has ingested data, or an
// error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not ingested any data yet")
	}
	return nil
}

// Run ingests files and applies every transform stage. The returned Run is
// always non-nil and carries the reports of the stages that ran.
func (p *Pipeline) Run(ctx context.Context, files []rawfile.File) (*domain.Run, error) {
	run := p.begin(ctx, filePaths(files))
	err := p.runAll(ctx, run, files)
	return p.end(ctx, run, err)
}

// Ingest runs only the ingestion stage and persists the merged table.
func (p *Pipeline) Ingest(ctx context.Context, files []rawfile.File) (*domain.Run, error) {
	run := p.begin(ctx, filePaths(files))
	_, err := p.ingest(ctx, run, files, true)
	return p.end(ctx, run, err)
}

// Transform loads the table persisted at path and applies stages to it in
// the given order. The last stage's output is always persisted.
func (p *Pipeline) Transform(ctx context.Context, path string, stages ...string) (*domain.Run, error) {
	run := p.begin(ctx, []string{path})
	err := func() error {
		for _, s := range stages {
			if _, ok := stageLabels[s]; !ok || s == domain.StageIngest {
				return fmt.Errorf("unknown transform stage %q", s)
			}
		}
		t, err := p.store.Load(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		p.ready.Store(true)
		return p.transform(ctx, run, t, stages)
	}()
	return p.end(ctx, run, err)
}

func (p *Pipeline) begin(ctx context.Context, inputs []string) *domain.Run {
	run := domain.NewRun(inputs)
	p.logger.Info("pipeline started", "run_id", run.ID, "inputs", len(inputs))
	p.metrics.PipelineRunning.Set(1)

	if p.ledger != nil {
		if err := p.ledger.StartRun(ctx, run); err != nil {
			p.logger.Warn("ledger start run failed", "run_id", run.ID, "error", err)
		}
	}
	return run
}

func (p *Pipeline) end(ctx context.Context, run *domain.Run, err error) (*domain.Run, error) {
	run.Finish(err)
	p.metrics.PipelineRunning.Set(0)
	p.metrics.RunsTotal.WithLabelValues(string(run.Status)).Inc()

	if p.ledger != nil {
		// The run's own context may be cancelled; the terminal state is still recorded.
		if lerr := p.ledger.CompleteRun(context.WithoutCancel(ctx), run); lerr != nil {
			p.logger.Warn("ledger complete run failed", "run_id", run.ID, "error", lerr)
		}
	}

	if err != nil {
		p.logger.Error("pipeline failed", "run_id", run.ID, "error", err)
		return run, err
	}
	p.logger.Info("pipeline finished",
		"run_id", run.ID,
		"duration", run.FinishedAt.Sub(run.StartedAt),
		"warnings", len(run.Warnings()),
	)
	return run, nil
}

func (p *Pipeline) runAll(ctx context.Context, run *domain.Run, files []rawfile.File) error {
	t, err := p.ingest(ctx, run, files, false)
	if err != nil {
		return err
	}
	return p.transform(ctx, run, t, TransformStages)
}

// ingest reads the raw files and persists the merged table when final or
// when intermediate outputs are kept.
func (p *Pipeline) ingest(ctx context.Context, run *domain.Run, files []rawfile.File, final bool) (*domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	report := domain.StageReport{Stage: domain.StageIngest}

	res, err := p.ingester.Ingest(ctx, files)
	if err != nil {
		return nil, p.fail(ctx, run, report, start, err)
	}

	dropped := 0
	for _, fr := range res.Files {
		dropped += fr.Dropped
	}
	skipped := len(res.Warnings())
	p.metrics.FilesIngested.Add(float64(len(res.Files)))
	p.metrics.FilesSkipped.Add(float64(skipped))
	p.metrics.RowsDropped.Add(float64(dropped))

	report.RowsOut = res.Table.Len()
	report.Processed = res.Table.Len() + dropped
	report.Affected = res.Table.Len()
	report.Skipped = dropped
	report.Warnings = res.Warnings()

	if p.opts.WriteSeparate {
		for i, fr := range res.Files {
			seq := fr.File.Sequence
			if seq < 0 {
				seq = i + 1
			}
			path, err := p.store.Save(p.fileName(run, fmt.Sprintf("%03d", seq)), fr.Table)
			if err != nil {
				return nil, p.fail(ctx, run, report, start, err)
			}
			run.Artifacts = append(run.Artifacts, path)
		}
	}

	if err := p.persist(run, &report, res.Table, final); err != nil {
		return nil, p.fail(ctx, run, report, start, err)
	}
	p.ready.Store(true)
	p.record(ctx, run, report, start)
	return res.Table, nil
}

// transform applies stages to t in order. The backup is written before the
// convert stage and the sample after it.
func (p *Pipeline) transform(ctx context.Context, run *domain.Run, t *domain.Table, stages []string) error {
	for i, name := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		final := i == len(stages)-1

		if name == domain.StageConvert && p.opts.WriteBackup {
			path, err := p.store.Save(p.fileName(run, "backup_before_conversions"), t)
			if err != nil {
				return fmt.Errorf("write backup: %w", err)
			}
			run.Artifacts = append(run.Artifacts, path)
		}

		next, err := p.stage(ctx, run, name, t, final)
		if err != nil {
			return err
		}
		t = next

		if name == domain.StageConvert && p.opts.SampleRows > 0 {
			path, err := p.store.Save(p.fileName(run, "SAMPLE"), domain.Sample(t, p.opts.SampleRows))
			if err != nil {
				return fmt.Errorf("write sample: %w", err)
			}
			run.Artifacts = append(run.Artifacts, path)
		}
	}

	if p.publisher != nil && len(stages) > 0 && stages[len(stages)-1] == domain.StageRename {
		n, err := p.publisher.Publish(ctx, run.ID, t)
		p.metrics.RowsPublished.Add(float64(n))
		if err != nil {
			return fmt.Errorf("publish final table: %w", err)
		}
		p.logger.Info("final table published", "run_id", run.ID, "rows", n)
	}
	return nil
}

func (p *Pipeline) stage(ctx context.Context, run *domain.Run, name string, t *domain.Table, final bool) (*domain.Table, error) {
	start := time.Now()
	report := domain.StageReport{Stage: name, RowsIn: t.Len()}

	var (
		out *domain.Table
		o   domain.Outcome
		err error
	)
	switch name {
	case domain.StageCoerce:
		out, o = domain.CoerceNumeric(t)
	case domain.StageNormalize:
		out, o = p.normalizer.Apply(t)
	case domain.StageConvert:
		out, o, err = p.converter.Apply(ctx, t)
	case domain.StageRename:
		out, o, err = p.renamer.Apply(t)
	default:
		err = fmt.Errorf("unknown stage %q", name)
	}
	if err != nil {
		report.Steps = o.Steps
		return nil, p.fail(ctx, run, report, start, err)
	}

	report.FromOutcome(o)
	report.RowsOut = out.Len()
	for _, st := range o.Steps {
		p.metrics.StepOutcomes.WithLabelValues(name, string(st.Status)).Inc()
		if st.Status == domain.StatusFailed {
			p.metrics.ConversionFailures.WithLabelValues(st.Step).Inc()
			p.logger.Warn("step failed", "stage", name, "step", st.Step, "error", st.Err)
		}
	}

	if err := p.persist(run, &report, out, final); err != nil {
		return nil, p.fail(ctx, run, report, start, err)
	}
	p.record(ctx, run, report, start)
	return out, nil
}

// persist writes t for the stage when it is the final one or intermediate
// outputs are kept.
func (p *Pipeline) persist(run *domain.Run, report *domain.StageReport, t *domain.Table, final bool) error {
	if !final && !p.opts.KeepIntermediate {
		return nil
	}
	path, err := p.store.Save(p.fileName(run, stageLabels[report.Stage]), t)
	if err != nil {
		return fmt.Errorf("persist %s output: %w", report.Stage, err)
	}
	report.Output = path
	return nil
}

// fail records a failed stage and returns err wrapped with the stage name.
func (p *Pipeline) fail(ctx context.Context, run *domain.Run, report domain.StageReport, start time.Time, err error) error {
	report.Warnings = append(report.Warnings, err.Error())
	p.record(ctx, run, report, start)
	return fmt.Errorf("%s stage: %w", report.Stage, err)
}

func (p *Pipeline) record(ctx context.Context, run *domain.Run, report domain.StageReport, start time.Time) {
	report.Duration = time.Since(start)
	run.Stages = append(run.Stages, report)

	p.metrics.StageRows.WithLabelValues(report.Stage, "in").Set(float64(report.RowsIn))
	p.metrics.StageRows.WithLabelValues(report.Stage, "out").Set(float64(report.RowsOut))
	p.metrics.StageAffected.WithLabelValues(report.Stage).Set(float64(report.Affected))
	p.metrics.StageDuration.WithLabelValues(report.Stage).Observe(report.Duration.Seconds())

	p.logger.Info("stage finished",
		"run_id", run.ID,
		"stage", report.Stage,
		"rows_in", report.RowsIn,
		"rows_out", report.RowsOut,
		"affected", report.Affected,
		"skipped", report.Skipped,
		"output", report.Output,
		"warnings", len(report.Warnings),
	)

	if p.ledger != nil {
		if err := p.ledger.RecordStage(context.WithoutCancel(ctx), run.ID, len(run.Stages)-1, report); err != nil {
			p.logger.Warn("ledger record stage failed", "run_id", run.ID, "stage", report.Stage, "error", err)
		}
	}
}

func (p *Pipeline) fileName(run *domain.Run, label string) string {
	return csvfile.FileName(p.opts.Prefix, label, run.StartedAt)
}

func filePaths(files []rawfile.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}
