package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stage names, in execution order.
const (
	StageIngest    = "ingest"
	StageCoerce    = "coerce"
	StageNormalize = "normalize"
	StageConvert   = "convert"
	StageRename    = "rename"
)

// StageReport summarizes one pipeline stage for reporting and the run ledger.
type StageReport struct {
	Stage     string
	RowsIn    int
	RowsOut   int
	Processed int
	Affected  int
	Skipped   int
	Steps     []StepResult
	Warnings  []string
	Output    string
	Duration  time.Duration
}

// FromOutcome copies the row counts and steps of o into the report.
func (s *StageReport) FromOutcome(o Outcome) {
	s.Processed = o.Processed
	s.Affected = o.Affected
	s.Skipped = o.Skipped
	s.Steps = append(s.Steps, o.Steps...)
	for _, err := range o.Failures() {
		s.Warnings = append(s.Warnings, err.Error())
	}
}

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one execution of the pipeline over a set of input files.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Inputs     []string
	Stages     []StageReport
	Status     RunStatus
	Error      string

	// Artifacts lists auxiliary files written alongside the stage outputs:
	// per-file CSVs, the pre-conversion backup and the sample.
	Artifacts []string
}

// NewRun starts a run over inputs, stamped with the package clock.
func NewRun(inputs []string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		StartedAt: Now(),
		Inputs:    inputs,
		Status:    RunRunning,
	}
}

// Finish records the terminal state of the run.
func (r *Run) Finish(err error) {
	r.FinishedAt = Now()
	if err != nil {
		r.Status = RunFailed
		r.Error = err.Error()
		return
	}
	r.Status = RunSucceeded
}

// Stage returns the report for the named stage.
func (r *Run) Stage(name string) (StageReport, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageReport{}, false
}

// Warnings returns every stage warning in execution order.
func (r *Run) Warnings() []string {
	var out []string
	for _, s := range r.Stages {
		out = append(out, s.Warnings...)
	}
	return out
}
