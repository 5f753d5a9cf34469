package domain

import (
	"strconv"
	"strings"
)

// StepCoerce names the numeric coercion step in stage outcomes.
const StepCoerce = "coerce"

// CoerceNumeric parses every declared sensor column of t as float64.
// Unparsable, empty and non-finite values become missing; values that are
// already numeric are kept. Undeclared columns pass through unchanged.
func CoerceNumeric(t *Table) (*Table, Outcome) {
	out := t.Clone()
	rows := newRowTracker(out.Len())

	var steps []StepResult
	for _, c := range out.Columns() {
		if !IsNumericSensor(c.Name) {
			continue
		}
		step := StepResult{Step: StepCoerce, Column: c.Name, Status: StatusApplied}
		for i, v := range c.Values {
			switch v.Kind() {
			case KindMissing, KindFloat:
				continue
			case KindString:
				s, _ := v.Str()
				c.Values[i] = ParseNumber(s)
			default:
				c.Values[i] = Missing()
			}
			rows.mark(i)
			if c.Values[i].IsMissing() {
				step.Nulled++
			} else {
				step.Changed++
			}
		}
		steps = append(steps, step)
	}
	return out, rows.outcome(steps)
}

// ParseNumber parses s with locale-independent decimal syntax. Anything
// that is not a finite number is missing.
func ParseNumber(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return Missing()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Missing()
	}
	return Float(f)
}
