// Command validate performs end-to-end integrity checks on a processed
// mission: it re-derives the standard table from the raw payload files with
// the domain transforms and compares it with the final CSV written by
// glideretl. It verifies row counts, schema and unit labels, time ordering,
// physical ranges, and value-level agreement.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -raw 'data/mock/*.pld1.raw.*' \
//	  -final output/mission_standard_20240601_120000.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/glider-data-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/glider-data-etl/internal/adapter/rawfile"
	"github.com/couchcryptid/glider-data-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// maxErrors caps the per-phase detail so a systematic failure stays readable.
const maxErrors = 20

func main() {
	raw := flag.String("raw", "", "glob pattern of the raw payload files")
	final := flag.String("final", "", "path to the final standard CSV")
	hemisphere := flag.String("hemisphere", string(domain.HemisphereWest), "longitude hemisphere policy used for the run")
	sorted := flag.Bool("sorted", true, "whether the run time-ordered the merged rows")
	tolerance := flag.Float64("tolerance", 1e-9, "relative tolerance for value comparisons")
	flag.Parse()

	if *raw == "" || *final == "" {
		flag.Usage()
		os.Exit(1)
	}

	h, err := domain.ParseHemisphere(*hemisphere)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	if code := run(os.Stdout, strings.Split(*raw, ","), *final, h, *sorted, *tolerance); code != 0 {
		os.Exit(code)
	}
}

func run(w io.Writer, patterns []string, finalPath string, h domain.Hemisphere, sorted bool, tolerance float64) int {
	fmt.Fprintln(w, "=== Glider Data Integrity Validation ===")
	fmt.Fprintln(w)

	// ── Load data ──
	files, err := rawfile.Discover(patterns, rawfile.Window{})
	if err != nil || len(files) == 0 {
		fmt.Fprintf(w, "FATAL: discover raw files: %v (%d found)\n", err, len(files))
		return 1
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	res, err := rawfile.NewIngester(logger, sorted).Ingest(context.Background(), files)
	if err != nil {
		fmt.Fprintf(w, "FATAL: ingest raw files: %v\n", err)
		return 1
	}
	expected, err := derive(res.Table, h)
	if err != nil {
		fmt.Fprintf(w, "FATAL: derive expected table: %v\n", err)
		return 1
	}
	final, err := csvfile.Load(finalPath)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load final CSV: %v\n", err)
		return 1
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateRowParity(final, expected),
		validateSchema(final, expected),
		validateTimeOrder(final, sorted),
		validateRanges(final),
		validateValues(final, expected, tolerance),
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Records: %d raw files, %d raw rows, %d final rows\n", len(res.Files), res.Table.Len(), final.Len())

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxErrors {
				fmt.Fprintf(w, "  ... %d more\n", len(p.errors)-maxErrors)
				break
			}
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

// derive applies the transform stages to the merged raw table in memory.
func derive(t *domain.Table, h domain.Hemisphere) (*domain.Table, error) {
	t, _ = domain.CoerceNumeric(t)
	t, _ = domain.NewCoordinateNormalizer(h).Apply(t)
	t, _, err := domain.NewUnitConverter(nil).Apply(context.Background(), t)
	if err != nil {
		return nil, err
	}
	t, _, err = domain.NewStandardRenamer().Apply(t)
	return t, err
}

// ── Validation phases ──

func validateRowParity(final, expected *domain.Table) *phase {
	p := &phase{name: "Row parity (raw vs final)"}
	if final.Len() != expected.Len() {
		p.errorf("final has %d rows, raw files have %d non-empty rows", final.Len(), expected.Len())
	}
	return p
}

func validateSchema(final, expected *domain.Table) *phase {
	p := &phase{name: "Schema and unit labels"}
	for _, ec := range expected.Columns() {
		s, ok := domain.SensorByName(ec.Name)
		if !ok {
			continue
		}
		c, ok := final.Column(s.Standard)
		if !ok {
			p.errorf("missing column %s", s.Standard)
			continue
		}
		if !domain.IsTimeColumn(s.Standard) && c.Unit != s.OutputUnit {
			p.errorf("column %s has unit %q, want %q", s.Standard, c.Unit, s.OutputUnit)
		}
	}
	for _, name := range final.Names() {
		if s, ok := domain.SensorByName(name); ok && name == s.Native {
			p.errorf("column %s still has its native name", name)
		}
	}
	return p
}

func validateTimeOrder(final *domain.Table, sorted bool) *phase {
	p := &phase{name: "Time ordering"}
	if !sorted {
		return p
	}
	c, ok := final.Column("TIME")
	if !ok {
		p.errorf("missing TIME column")
		return p
	}
	var (
		prev        time.Time
		havePrev    bool
		seenMissing bool
	)
	for i, v := range c.Values {
		ts, ok := v.TimeValue()
		if !ok {
			seenMissing = true
			continue
		}
		if seenMissing {
			p.errorf("row %d: timestamp after a missing one", i)
			continue
		}
		if havePrev && ts.Before(prev) {
			p.errorf("row %d: %s before %s", i, ts.Format(domain.TimeLayout), prev.Format(domain.TimeLayout))
		}
		prev, havePrev = ts, true
	}
	return p
}

type bounds struct {
	min, max float64
}

var physicalRanges = map[string]bounds{
	"LATITUDE":  {-90, 90},
	"LONGITUDE": {-180, 180},
	"TEMP":      {-2.5, 40},
	"CNDC":      {0, 7},
	"PRES":      {-5, 11000},
	"DEPTH":     {-5, 11000},
	"DOXY":      {0, 1000},
}

func validateRanges(final *domain.Table) *phase {
	p := &phase{name: "Physical ranges"}
	for name, b := range physicalRanges {
		c, ok := final.Column(name)
		if !ok {
			continue
		}
		for i, v := range c.Values {
			f, ok := v.Float64()
			if !ok {
				continue
			}
			if math.IsNaN(f) || math.IsInf(f, 0) || f < b.min || f > b.max {
				p.errorf("%s row %d: %g outside [%g, %g]", name, i, f, b.min, b.max)
			}
		}
	}
	return p
}

func validateValues(final, expected *domain.Table, tolerance float64) *phase {
	p := &phase{name: "Value agreement with raw derivation"}
	if final.Len() != expected.Len() {
		p.errorf("row counts differ, skipping value comparison")
		return p
	}
	for _, ec := range expected.Columns() {
		fc, ok := final.Column(ec.Name)
		if !ok {
			p.errorf("final is missing column %s", ec.Name)
			continue
		}
		for i := range ec.Values {
			if !approxEqual(ec.Values[i], fc.Values[i], tolerance) {
				p.errorf("%s row %d: final %q, expected %q", ec.Name, i, fc.Values[i].Text(), ec.Values[i].Text())
			}
		}
	}
	return p
}

func approxEqual(want, got domain.Value, tolerance float64) bool {
	wf, wok := want.Float64()
	gf, gok := got.Float64()
	if wok && gok {
		return math.Abs(wf-gf) <= tolerance*math.Max(1, math.Abs(wf))
	}
	// Text covers missing, string, and timestamp cells at CSV precision.
	return want.Text() == got.Text()
}
