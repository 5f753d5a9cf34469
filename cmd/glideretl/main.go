// Command glideretl turns SeaExplorer glider payload logs into a single
// time-ordered table in standard oceanographic units and names.
//
// Usage:
//
//	glideretl run 'data/raw/sea074.67.pld1.raw.*'
//	glideretl ingest data/raw/sea074.67.pld1.raw.1 data/raw/sea074.67.pld1.raw.2
//	glideretl convert output/mission_merged_20240601_120000.csv
//	glideretl rename output/mission_converted_20240601_120000.csv
//	glideretl runs --limit 5
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/couchcryptid/glider-data-etl/internal/config"
	"github.com/couchcryptid/glider-data-etl/internal/observability"
	"github.com/joho/godotenv"
)

type cli struct {
	EnvFile string `name:"env-file" default:".env" help:"Environment file loaded before configuration (missing is fine)."`

	Run     runCmd     `cmd:"" help:"Ingest raw payload files and run every stage."`
	Ingest  ingestCmd  `cmd:"" help:"Merge raw payload files into one table."`
	Convert convertCmd `cmd:"" help:"Coerce, normalize coordinates and convert units of a merged table."`
	Rename  renameCmd  `cmd:"" help:"Rename the columns of a converted table to the standard vocabulary."`
	Runs    runsCmd    `cmd:"" help:"List recorded runs or show one."`
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("glideretl"),
		kong.Description("Glider telemetry ETL: raw payload logs to standard oceanographic tables."),
		kong.UsageOnError(),
	)

	if err := godotenv.Load(c.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load env file", "file", c.EnvFile, "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{ctx: ctx, cfg: cfg, logger: logger, metrics: metrics}
	err = kctx.Run(a)
	a.close()
	if err != nil {
		logger.Error("command failed", "command", kctx.Command(), "error", err)
		stop()
		os.Exit(1)
	}
}
