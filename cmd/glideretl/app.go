package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/couchcryptid/glider-data-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/glider-data-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/glider-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/glider-data-etl/internal/adapter/ledger"
	"github.com/couchcryptid/glider-data-etl/internal/adapter/rawfile"
	"github.com/couchcryptid/glider-data-etl/internal/adapter/saar"
	"github.com/couchcryptid/glider-data-etl/internal/config"
	"github.com/couchcryptid/glider-data-etl/internal/domain"
	"github.com/couchcryptid/glider-data-etl/internal/observability"
	"github.com/couchcryptid/glider-data-etl/internal/pipeline"
	"github.com/couchcryptid/glider-data-etl/internal/report"
)

// app holds the process-wide collaborators shared by every command.
type app struct {
	ctx     context.Context
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	ledger    *ledger.Store
	anomaly   *saar.CachedSource
	publisher *kafkaadapter.Publisher
	closers   []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("close error", "error", err)
		}
	}
	a.closers = nil
}

// openLedger opens the run ledger unless LEDGER_PATH disables it.
func (a *app) openLedger() (*ledger.Store, error) {
	if a.ledger != nil || a.cfg.LedgerPath == "" {
		return a.ledger, nil
	}
	store, err := ledger.Open(a.ctx, a.cfg.LedgerPath, a.logger)
	if err != nil {
		return nil, err
	}
	a.ledger = store
	a.closers = append(a.closers, store.Close)
	return store, nil
}

func (a *app) densityModel() (domain.DensityModel, error) {
	if a.cfg.SAARTable == "" {
		a.logger.Info("salinity anomaly ratio disabled, using reference composition")
		return domain.NewTEOS10(nil), nil
	}
	grid, err := saar.LoadGrid(a.cfg.SAARTable)
	if err != nil {
		return nil, fmt.Errorf("load SAAR table: %w", err)
	}
	a.anomaly = saar.NewCachedSource(grid, a.cfg.SAARCacheSize)
	a.logger.Info("salinity anomaly ratio table loaded", "file", a.cfg.SAARTable, "cache_size", a.cfg.SAARCacheSize)
	return domain.NewTEOS10(a.anomaly), nil
}

// pipeline assembles the stage driver from configuration. The Kafka
// publisher is attached only when publish is set and Kafka is enabled.
func (a *app) pipeline(publish bool) (*pipeline.Pipeline, error) {
	model, err := a.densityModel()
	if err != nil {
		return nil, err
	}
	var convOpts []domain.ConverterOption
	if a.cfg.FallbackPosition != nil {
		convOpts = append(convOpts, domain.WithFallbackPosition(*a.cfg.FallbackPosition))
	}

	var opts []pipeline.Option
	store, err := a.openLedger()
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, pipeline.WithLedger(store))
	}
	if publish && a.cfg.KafkaEnabled {
		a.publisher = kafkaadapter.NewPublisher(a.cfg, a.logger)
		a.closers = append(a.closers, a.publisher.Close)
		opts = append(opts, pipeline.WithPublisher(a.publisher))
	}

	return pipeline.New(
		rawfile.NewIngester(a.logger, a.cfg.SortByTime),
		csvfile.NewStore(a.cfg.OutputDir, a.logger),
		domain.NewCoordinateNormalizer(a.cfg.LongitudeHemisphere),
		domain.NewUnitConverter(model, convOpts...),
		domain.NewStandardRenamer(),
		pipeline.Options{
			Prefix:           a.cfg.OutputPrefix,
			KeepIntermediate: a.cfg.KeepIntermediate,
			WriteSeparate:    a.cfg.WriteSeparate,
			WriteBackup:      a.cfg.WriteBackup,
			SampleRows:       a.cfg.SampleRows,
		},
		a.logger, a.metrics, opts...,
	), nil
}

// execute runs fn with the optional HTTP listener up, then reports the run.
func (a *app) execute(p *pipeline.Pipeline, reportPath string, fn func(context.Context) (*domain.Run, error)) error {
	if a.cfg.HTTPAddr != "" {
		var runs httpadapter.RunSource
		if a.ledger != nil {
			runs = a.ledger
		}
		srv := httpadapter.NewServer(a.cfg.HTTPAddr, p, a.metrics.Gatherer(), runs, a.logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("http server error", "error", err)
			}
		}()
		a.closers = append(a.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		})
	}

	run, runErr := fn(a.ctx)
	a.finish(run, reportPath)
	return runErr
}

// finish prints and stores the run summary and exports metrics.
func (a *app) finish(run *domain.Run, reportPath string) {
	if a.anomaly != nil {
		hits, misses := a.anomaly.Stats()
		a.metrics.AnomalyCache.WithLabelValues("hit").Add(float64(hits))
		a.metrics.AnomalyCache.WithLabelValues("miss").Add(float64(misses))
	}

	if err := report.Write(os.Stdout, run); err != nil {
		a.logger.Error("print run summary", "error", err)
	}
	if reportPath == "" {
		reportPath = filepath.Join(a.cfg.OutputDir, fmt.Sprintf("%s_report_%s.txt", a.cfg.OutputPrefix, run.StartedAt.UTC().Format(csvfile.StampLayout)))
	}
	if err := report.WriteFile(reportPath, run); err != nil {
		a.logger.Error("write run summary", "file", reportPath, "error", err)
	} else {
		a.logger.Info("run summary written", "file", reportPath)
	}

	if a.cfg.MetricsTextfile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
			a.logger.Error("export metrics", "error", err)
		}
	}
}
