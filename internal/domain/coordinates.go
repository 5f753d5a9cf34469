package domain

import (
	"fmt"
	"math"
	"strings"
)

// StepCoordinates names the coordinate normalization step in stage outcomes.
const StepCoordinates = "coordinates"

// Hemisphere is the longitude sign policy applied after DDMM decoding.
// Glider NMEA fixes carry the magnitude only; the deployment region decides
// the sign.
type Hemisphere string

const (
	// HemisphereWest forces longitudes negative.
	HemisphereWest Hemisphere = "west"
	// HemisphereEast forces longitudes positive.
	HemisphereEast Hemisphere = "east"
	// HemisphereSigned keeps the sign of the raw value.
	HemisphereSigned Hemisphere = "signed"
)

// ParseHemisphere validates a policy name.
func ParseHemisphere(s string) (Hemisphere, error) {
	switch h := Hemisphere(strings.ToLower(strings.TrimSpace(s))); h {
	case HemisphereWest, HemisphereEast, HemisphereSigned:
		return h, nil
	default:
		return "", fmt.Errorf("unknown longitude hemisphere %q (want west, east or signed)", s)
	}
}

// DDMMToDecimal converts a packed DDMM.MMMM value to decimal degrees,
// keeping its sign.
func DDMMToDecimal(v float64) float64 {
	mag := math.Abs(v)
	deg := math.Floor(mag / 100)
	minutes := mag - deg*100
	return math.Copysign(deg+minutes/60, v)
}

// applyHemisphere applies the longitude sign policy to a decimal value.
func applyHemisphere(v float64, h Hemisphere) float64 {
	switch h {
	case HemisphereWest:
		return -math.Abs(v)
	case HemisphereEast:
		return math.Abs(v)
	default:
		return v
	}
}

// CoordinateNormalizer converts navigation latitude and longitude from
// DDMM.MMMM to decimal degrees.
type CoordinateNormalizer struct {
	Longitude Hemisphere
}

// NewCoordinateNormalizer returns a normalizer with the given longitude
// policy. An empty policy defaults to HemisphereWest.
func NewCoordinateNormalizer(h Hemisphere) CoordinateNormalizer {
	if h == "" {
		h = HemisphereWest
	}
	return CoordinateNormalizer{Longitude: h}
}

// Apply returns a copy of t with coordinates in decimal degrees. Zero and
// missing values are treated as "no fix" and left as they are. Columns
// already labelled in decimal degrees are not converted again.
func (n CoordinateNormalizer) Apply(t *Table) (*Table, Outcome) {
	out := t.Clone()
	rows := newRowTracker(out.Len())

	steps := []StepResult{
		n.normalize(out, RoleLatitude, HemisphereSigned, rows),
		n.normalize(out, RoleLongitude, n.Longitude, rows),
	}
	return out, rows.outcome(steps)
}

func (n CoordinateNormalizer) normalize(t *Table, role Role, h Hemisphere, rows *rowTracker) StepResult {
	step := StepResult{Step: StepCoordinates + ":" + string(role)}
	c, ok := ResolveColumn(t, role)
	if !ok {
		step.Status = StatusMissingColumn
		return step
	}
	step.Column = c.Name
	if c.Unit == UnitDecimalDegrees {
		step.Status = StatusAlreadyApplied
		return step
	}

	for i, v := range c.Values {
		f, ok := v.Float64()
		if !ok || f == 0 {
			continue
		}
		c.Values[i] = Float(applyHemisphere(DDMMToDecimal(f), h))
		rows.mark(i)
		step.Changed++
	}
	c.Unit = UnitDecimalDegrees
	step.Status = StatusApplied
	return step
}
