// Package report renders human-readable summaries of pipeline runs.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/glider-data-etl/internal/adapter/ledger"
	"github.com/couchcryptid/glider-data-etl/internal/domain"
	"github.com/dustin/go-humanize"
)

// Write renders the summary of run to w: one line per stage with its row
// counts, the files each stage produced, and every warning.
func Write(w io.Writer, run *domain.Run) error {
	ew := &errWriter{w: w}

	ew.printf("Glider ETL run %s\n", run.ID)
	ew.printf("Status:   %s\n", run.Status)
	ew.printf("Started:  %s\n", run.StartedAt.Format(time.RFC3339))
	if !run.FinishedAt.IsZero() {
		ew.printf("Finished: %s (%s)\n", run.FinishedAt.Format(time.RFC3339), run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	ew.printf("Inputs:   %s raw files\n", humanize.Comma(int64(len(run.Inputs))))
	if run.Error != "" {
		ew.printf("Error:    %s\n", run.Error)
	}

	ew.printf("\n")
	tw := tabwriter.NewWriter(ew, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "stage\trows in\trows out\tprocessed\taffected\tskipped\tduration\t")
	for _, s := range run.Stages {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			s.Stage,
			humanize.Comma(int64(s.RowsIn)),
			humanize.Comma(int64(s.RowsOut)),
			humanize.Comma(int64(s.Processed)),
			humanize.Comma(int64(s.Affected)),
			humanize.Comma(int64(s.Skipped)),
			s.Duration.Round(time.Millisecond),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	var steps []string
	for _, s := range run.Stages {
		for _, st := range s.Steps {
			if st.Status == domain.StatusMissingColumn {
				continue
			}
			line := fmt.Sprintf("  %-10s %-28s %-16s changed=%s", s.Stage, st.Step, st.Status, humanize.Comma(int64(st.Changed)))
			if st.Nulled > 0 {
				line += " nulled=" + humanize.Comma(int64(st.Nulled))
			}
			steps = append(steps, line)
		}
	}
	if len(steps) > 0 {
		ew.printf("\nSteps:\n%s\n", strings.Join(steps, "\n"))
	}

	var outputs []string
	for _, s := range run.Stages {
		if s.Output != "" {
			outputs = append(outputs, fileLine(s.Output))
		}
	}
	for _, path := range run.Artifacts {
		outputs = append(outputs, fileLine(path))
	}
	if len(outputs) > 0 {
		ew.printf("\nOutputs:\n%s\n", strings.Join(outputs, "\n"))
	}

	if warnings := run.Warnings(); len(warnings) > 0 {
		ew.printf("\nWarnings (%d):\n", len(warnings))
		for _, msg := range warnings {
			ew.printf("  - %s\n", msg)
		}
	}
	return ew.err
}

func fileLine(path string) string {
	size := "missing"
	if fi, err := os.Stat(path); err == nil {
		size = humanize.Bytes(uint64(fi.Size()))
	}
	return fmt.Sprintf("  %s (%s)", path, size)
}

// WriteFile writes the run summary to path.
func WriteFile(path string, run *domain.Run) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, run); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteRuns renders a run listing, newest first.
func WriteRuns(w io.Writer, runs []ledger.RunSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tINPUTS\tSTAGES\tROWS\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID,
			humanize.Time(r.StartedAt),
			r.Status,
			r.Inputs,
			r.Stages,
			humanize.Comma(int64(r.RowsOut)),
			r.Error.String,
		)
	}
	return tw.Flush()
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

func (e *errWriter) printf(format string, args ...any) {
	fmt.Fprintf(e, format, args...)
}
