package domain

import "fmt"

// StepRename names the renaming step in stage outcomes.
const StepRename = "rename"

// Mapping renames one native column to its standard name.
type Mapping struct {
	From string
	To   string
}

// Renamer applies a fixed injective column mapping.
type Renamer struct {
	mappings []Mapping
}

// NewRenamer validates that mappings is injective in both directions and
// returns a Renamer. A repeated source or target name is ErrNameCollision.
func NewRenamer(mappings []Mapping) (*Renamer, error) {
	from := make(map[string]bool, len(mappings))
	to := make(map[string]string, len(mappings))
	for _, m := range mappings {
		if from[m.From] {
			return nil, fmt.Errorf("%w: %s mapped twice", ErrNameCollision, m.From)
		}
		if prev, ok := to[m.To]; ok {
			return nil, fmt.Errorf("%w: %s and %s both map to %s", ErrNameCollision, prev, m.From, m.To)
		}
		from[m.From] = true
		to[m.To] = m.From
	}
	cp := make([]Mapping, len(mappings))
	copy(cp, mappings)
	return &Renamer{mappings: cp}, nil
}

// StandardMappings returns the native → standard vocabulary mapping.
func StandardMappings() []Mapping {
	out := make([]Mapping, 0, len(Sensors))
	for _, s := range Sensors {
		out = append(out, Mapping{From: s.Native, To: s.Standard})
	}
	return out
}

// NewStandardRenamer returns the Renamer for the standard vocabulary.
func NewStandardRenamer() *Renamer {
	r, err := NewRenamer(StandardMappings())
	if err != nil {
		panic(err) // the vocabulary is static
	}
	return r
}

// Mappings returns a copy of the configured mappings.
func (r *Renamer) Mappings() []Mapping {
	cp := make([]Mapping, len(r.mappings))
	copy(cp, r.mappings)
	return cp
}

// Apply renames the columns of t that appear in the mapping. Mappings whose
// source column is absent are reported with StatusMissingColumn. Columns
// outside the mapping keep their name, unit and values. If any rename
// target already exists as a column that is not itself renamed away, Apply
// returns ErrNameCollision and no table.
func (r *Renamer) Apply(t *Table) (*Table, Outcome, error) {
	renamed := make(map[string]bool)
	for _, m := range r.mappings {
		if t.Has(m.From) {
			renamed[m.From] = true
		}
	}
	for _, m := range r.mappings {
		if !renamed[m.From] || m.From == m.To {
			continue
		}
		if t.Has(m.To) && !renamed[m.To] {
			return nil, Outcome{}, fmt.Errorf("%w: renaming %s to %s would overwrite an existing column", ErrNameCollision, m.From, m.To)
		}
	}

	out := t.Clone()
	// Two passes through temporary names so chains like A→B, B→C cannot clobber.
	tmp := make(map[string]string, len(renamed))
	for _, m := range r.mappings {
		if renamed[m.From] {
			name := "\x00" + m.From
			out.renameColumn(m.From, name)
			tmp[m.From] = name
		}
	}

	steps := make([]StepResult, 0, len(r.mappings))
	for _, m := range r.mappings {
		step := StepResult{Step: StepRename + ":" + m.To, Column: m.From}
		if !renamed[m.From] {
			step.Status = StatusMissingColumn
			steps = append(steps, step)
			continue
		}
		out.renameColumn(tmp[m.From], m.To)
		step.Status = StatusApplied
		steps = append(steps, step)
	}

	o := Outcome{Processed: out.Len(), Skipped: out.Len(), Steps: steps}
	if len(renamed) > 0 {
		o.Affected, o.Skipped = out.Len(), 0
	}
	return out, o, nil
}
