package domain

import "errors"

var (
	// ErrNameCollision is returned when renaming would give two columns the same name.
	ErrNameCollision = errors.New("column name collision")
	// ErrNoInputFiles is returned when ingestion has nothing to read.
	ErrNoInputFiles = errors.New("no input files")
	// ErrNonFiniteDensity is returned when the density model yields NaN, ±Inf or a non-positive value.
	ErrNonFiniteDensity = errors.New("non-finite density")
	// ErrCoordinatesNotNormalized is returned when oxygen conversion sees DDMM.MMMM coordinates.
	ErrCoordinatesNotNormalized = errors.New("coordinates not normalized to decimal degrees")
)

// Status is the result of one step within a stage.
type Status string

const (
	StatusApplied        Status = "applied"
	StatusAlreadyApplied Status = "already-applied"
	StatusMissingColumn  Status = "missing-column"
	StatusFailed         Status = "failed"
)

// StepResult describes what one transform did to one column.
type StepResult struct {
	Step    string
	Column  string
	Status  Status
	Changed int // values rewritten
	Skipped int // present values left untouched (missing inputs, failed precondition)
	Nulled  int // values turned into missing
	Err     error
}

// Outcome aggregates the per-step results of a stage with row-level counts.
// A row is affected when at least one of its values changed.
type Outcome struct {
	Processed int
	Affected  int
	Skipped   int
	Steps     []StepResult
}

// Failures returns the errors of failed steps.
func (o Outcome) Failures() []error {
	var errs []error
	for _, s := range o.Steps {
		if s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	return errs
}

// Step returns the first result recorded for the named step.
func (o Outcome) Step(name string) (StepResult, bool) {
	for _, s := range o.Steps {
		if s.Step == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// rowTracker marks rows touched by any step of a stage.
type rowTracker struct {
	touched []bool
}

func newRowTracker(n int) *rowTracker {
	return &rowTracker{touched: make([]bool, n)}
}

func (r *rowTracker) mark(i int) { r.touched[i] = true }

func (r *rowTracker) outcome(steps []StepResult) Outcome {
	affected := 0
	for _, t := range r.touched {
		if t {
			affected++
		}
	}
	return Outcome{
		Processed: len(r.touched),
		Affected:  affected,
		Skipped:   len(r.touched) - affected,
		Steps:     steps,
	}
}
