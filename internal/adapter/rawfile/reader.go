package rawfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/glider-data-etl/internal/domain"
	"github.com/hashicorp/go-multierror"
)

// ClockLayout is the day-first layout of PLD_REALTIMECLOCK. Fractional
// seconds are accepted after the seconds field.
const ClockLayout = "2/1/2006 15:04:05"

// ErrEmptyFile is returned for a raw file without a header row.
var ErrEmptyFile = errors.New("raw file has no header")

// FileResult describes one raw file that was read successfully.
type FileResult struct {
	File    File
	Rows    int
	Dropped int
	// Table holds the file's rows with provenance columns attached.
	Table *domain.Table
}

// Result is the outcome of ingesting a set of raw files.
type Result struct {
	Table *domain.Table
	Files []FileResult
	// Skipped aggregates the errors of files that could not be read.
	Skipped *multierror.Error
}

// Warnings renders the per-file errors for reporting.
func (r *Result) Warnings() []string {
	if r.Skipped == nil {
		return nil
	}
	out := make([]string, 0, len(r.Skipped.Errors))
	for _, err := range r.Skipped.Errors {
		out = append(out, err.Error())
	}
	return out
}

// Ingester reads and merges raw payload files.
type Ingester struct {
	logger     *slog.Logger
	sortByTime bool
}

// NewIngester creates an Ingester. With sortByTime the merged rows are
// stably ordered by the realtime clock; otherwise file order is kept.
func NewIngester(logger *slog.Logger, sortByTime bool) *Ingester {
	return &Ingester{logger: logger, sortByTime: sortByTime}
}

// Ingest reads every file in order. A file that cannot be read is skipped
// and its error collected in Result.Skipped. Ingest fails with
// domain.ErrNoInputFiles when no file could be read.
func (in *Ingester) Ingest(ctx context.Context, files []File) (*Result, error) {
	res := &Result{}
	tables := make([]*domain.Table, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, dropped, err := ReadFile(f.Path)
		if err != nil {
			in.logger.Warn("skipping raw file", "file", f.Path, "error", err)
			res.Skipped = multierror.Append(res.Skipped, fmt.Errorf("%s: %w", f.Path, err))
			continue
		}
		if err := tagProvenance(t, f); err != nil {
			res.Skipped = multierror.Append(res.Skipped, fmt.Errorf("%s: %w", f.Path, err))
			continue
		}
		in.logger.Debug("raw file read", "file", f.Path, "sequence", f.Sequence, "rows", t.Len(), "dropped", dropped)
		res.Files = append(res.Files, FileResult{File: f, Rows: t.Len(), Dropped: dropped, Table: t})
		tables = append(tables, t)
	}

	if len(tables) == 0 {
		if res.Skipped != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrNoInputFiles, res.Skipped.ErrorOrNil())
		}
		return nil, domain.ErrNoInputFiles
	}

	merged := domain.Concat(tables...)
	if in.sortByTime {
		if s, ok := domain.SensorFor(domain.RoleTime); ok {
			merged = merged.SortByTime(s.Native)
		}
	}
	res.Table = merged
	return res, nil
}

// ReadFile parses one semicolon-delimited raw file. Cells are kept as
// strings except the realtime clock, which is parsed day-first in UTC; an
// unparsable timestamp is missing. Rows whose cells are all empty are
// dropped and counted.
func ReadFile(path string) (*domain.Table, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open raw file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses raw payload records from r.
func Read(r io.Reader) (*domain.Table, int, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, ErrEmptyFile
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}

	// Payload lines end with a trailing separator, which yields an unnamed
	// last column.
	var names []string
	var cols []int
	for j, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			continue
		}
		names = append(names, h)
		cols = append(cols, j)
	}
	if len(names) == 0 {
		return nil, 0, ErrEmptyFile
	}

	var rows [][]domain.Value
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read record: %w", err)
		}
		row := make([]domain.Value, len(names))
		for k, j := range cols {
			if j >= len(rec) {
				continue
			}
			row[k] = parseCell(names[k], rec[j])
		}
		rows = append(rows, row)
	}

	t, err := domain.NewTableFromRows(names, rows)
	if err != nil {
		return nil, 0, err
	}
	t, dropped := t.DropEmptyRows()
	return t, dropped, nil
}

func parseCell(column, cell string) domain.Value {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return domain.Missing()
	}
	if domain.IsTimeColumn(column) {
		ts, err := time.ParseInLocation(ClockLayout, cell, time.UTC)
		if err != nil {
			return domain.Missing()
		}
		return domain.Time(ts)
	}
	return domain.String(cell)
}

func tagProvenance(t *domain.Table, f File) error {
	src := make([]domain.Value, t.Len())
	num := make([]domain.Value, t.Len())
	name := filepath.Base(f.Path)
	for i := range src {
		src[i] = domain.String(name)
		if f.Sequence >= 0 {
			num[i] = domain.Float(float64(f.Sequence))
		}
	}
	if err := t.AddColumn(&domain.Column{Name: domain.ColSourceFile, Values: src}); err != nil {
		return err
	}
	return t.AddColumn(&domain.Column{Name: domain.ColFileNumber, Values: num})
}
