package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/couchcryptid/glider-data-etl/internal/adapter/rawfile"
	"github.com/couchcryptid/glider-data-etl/internal/domain"
	"github.com/couchcryptid/glider-data-etl/internal/report"
)

type runCmd struct {
	Inputs []string `arg:"" name:"input" help:"Raw payload files or glob patterns."`
	Report string   `help:"Run summary path (default: <OUTPUT_DIR>/<prefix>_report_<stamp>.txt)." type:"path"`
}

func (c *runCmd) Run(a *app) error {
	files, err := a.discover(c.Inputs)
	if err != nil {
		return err
	}
	p, err := a.pipeline(true)
	if err != nil {
		return err
	}
	return a.execute(p, c.Report, func(ctx context.Context) (*domain.Run, error) {
		return p.Run(ctx, files)
	})
}

type ingestCmd struct {
	Inputs []string `arg:"" name:"input" help:"Raw payload files or glob patterns."`
	Report string   `help:"Run summary path." type:"path"`
}

func (c *ingestCmd) Run(a *app) error {
	files, err := a.discover(c.Inputs)
	if err != nil {
		return err
	}
	p, err := a.pipeline(false)
	if err != nil {
		return err
	}
	return a.execute(p, c.Report, func(ctx context.Context) (*domain.Run, error) {
		return p.Ingest(ctx, files)
	})
}

type convertCmd struct {
	Input  string `arg:"" help:"Merged table CSV written by ingest." type:"existingfile"`
	Report string `help:"Run summary path." type:"path"`
}

func (c *convertCmd) Run(a *app) error {
	p, err := a.pipeline(false)
	if err != nil {
		return err
	}
	return a.execute(p, c.Report, func(ctx context.Context) (*domain.Run, error) {
		return p.Transform(ctx, c.Input, domain.StageCoerce, domain.StageNormalize, domain.StageConvert)
	})
}

type renameCmd struct {
	Input  string `arg:"" help:"Converted table CSV." type:"existingfile"`
	Report string `help:"Run summary path." type:"path"`
}

func (c *renameCmd) Run(a *app) error {
	p, err := a.pipeline(true)
	if err != nil {
		return err
	}
	return a.execute(p, c.Report, func(ctx context.Context) (*domain.Run, error) {
		return p.Transform(ctx, c.Input, domain.StageRename)
	})
}

type runsCmd struct {
	Limit int    `default:"20" help:"Number of runs to list."`
	ID    string `arg:"" optional:"" help:"Show the full report of this run."`
}

func (c *runsCmd) Run(a *app) error {
	store, err := a.openLedger()
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("run ledger is disabled (LEDGER_PATH=-)")
	}
	if c.ID != "" {
		run, err := store.GetRun(a.ctx, c.ID)
		if err != nil {
			return err
		}
		return report.Write(os.Stdout, run)
	}
	if c.Limit < 1 {
		return fmt.Errorf("--limit must be positive, got %d", c.Limit)
	}
	runs, err := store.ListRuns(a.ctx, c.Limit)
	if err != nil {
		return err
	}
	return report.WriteRuns(os.Stdout, runs)
}

func (a *app) discover(patterns []string) ([]rawfile.File, error) {
	files, err := rawfile.Discover(patterns, rawfile.Window{Min: a.cfg.SequenceMin, Max: a.cfg.SequenceMax})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: nothing matched %v", domain.ErrNoInputFiles, patterns)
	}
	a.logger.Info("raw files discovered", "count", len(files), "first", files[0].Path, "last", files[len(files)-1].Path)
	return files, nil
}
