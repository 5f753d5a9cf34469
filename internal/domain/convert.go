package domain

import (
	"context"
	"fmt"
	"math"
)

// Step names used in converter outcomes.
const (
	StepTurbidity    = "turbidity"
	StepChlorophyll  = "chlorophyll"
	StepConductivity = "conductivity"
	StepOxygen       = "oxygen"
)

const (
	// TurbidityFactor converts FLBBCD backscatter to NTU (1/0.002727).
	TurbidityFactor = 366.70
	// ConductivityFactor converts mS/cm to S/m.
	ConductivityFactor = 0.1
)

// Position is a geographic fix in decimal degrees.
type Position struct {
	Latitude  float64
	Longitude float64
}

// UnitConverter applies the fixed set of physical unit transforms. Each
// transform is guarded by its column's unit label, so converting a table
// twice leaves the second pass as a no-op.
type UnitConverter struct {
	density  DensityModel
	fallback *Position
}

// ConverterOption customizes a UnitConverter.
type ConverterOption func(*UnitConverter)

// WithFallbackPosition sets the position used for oxygen conversion when a
// row has no usable fix. Without it such rows keep their original value.
func WithFallbackPosition(p Position) ConverterOption {
	return func(c *UnitConverter) { c.fallback = &p }
}

// NewUnitConverter returns a converter using model for the oxygen density
// computation. A nil model selects TEOS-10 with zero salinity anomaly.
func NewUnitConverter(model DensityModel, opts ...ConverterOption) *UnitConverter {
	if model == nil {
		model = NewTEOS10(nil)
	}
	c := &UnitConverter{density: model}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Apply returns a converted copy of t. Transforms are independent: a failed
// oxygen conversion leaves the oxygen column exactly as it was and is
// reported in the outcome while the other transforms still apply. The error
// return is reserved for context cancellation.
func (u *UnitConverter) Apply(ctx context.Context, t *Table) (*Table, Outcome, error) {
	out := t.Clone()
	rows := newRowTracker(out.Len())

	steps := make([]StepResult, 0, 4)
	steps = append(steps,
		scaleColumn(out, RoleTurbidity, StepTurbidity, TurbidityFactor, rows),
		relabelColumn(out, RoleChlorophyll, StepChlorophyll),
	)

	// Oxygen reads conductivity, so it runs before the conductivity rescale.
	oxy, err := u.convertOxygen(ctx, out, rows)
	if err != nil {
		return nil, Outcome{}, err
	}
	steps = append(steps, oxy, scaleColumn(out, RoleConductivity, StepConductivity, ConductivityFactor, rows))

	return out, rows.outcome(steps), nil
}

// scaleColumn multiplies every present value of role's column by factor and
// relabels it with the output unit.
func scaleColumn(t *Table, role Role, step string, factor float64, rows *rowTracker) StepResult {
	res := StepResult{Step: step}
	c, ok := ResolveColumn(t, role)
	if !ok {
		res.Status = StatusMissingColumn
		return res
	}
	res.Column = c.Name
	s, _ := SensorFor(role)
	if c.Unit == s.OutputUnit {
		res.Status = StatusAlreadyApplied
		return res
	}

	for i, v := range c.Values {
		f, ok := v.Float64()
		if !ok {
			continue
		}
		c.Values[i] = Float(f * factor)
		rows.mark(i)
		res.Changed++
	}
	c.Unit = s.OutputUnit
	res.Status = StatusApplied
	return res
}

// relabelColumn changes only the unit label of role's column.
func relabelColumn(t *Table, role Role, step string) StepResult {
	res := StepResult{Step: step}
	c, ok := ResolveColumn(t, role)
	if !ok {
		res.Status = StatusMissingColumn
		return res
	}
	res.Column = c.Name
	s, _ := SensorFor(role)
	if c.Unit == s.OutputUnit {
		res.Status = StatusAlreadyApplied
		return res
	}
	c.Unit = s.OutputUnit
	res.Status = StatusApplied
	return res
}

// oxygenInputs are the co-variable columns of the oxygen conversion.
type oxygenInputs struct {
	cond, temp, pres, lat, lon *Column
	condScale                  float64
}

func (u *UnitConverter) resolveOxygenInputs(t *Table) (oxygenInputs, []string) {
	var in oxygenInputs
	var missing []string
	lookup := func(role Role) *Column {
		c, ok := ResolveColumn(t, role)
		if !ok {
			missing = append(missing, string(role))
		}
		return c
	}
	in.cond = lookup(RoleConductivity)
	in.temp = lookup(RoleTemperature)
	in.pres = lookup(RolePressure)
	in.lat, _ = ResolveColumn(t, RoleLatitude)
	in.lon, _ = ResolveColumn(t, RoleLongitude)
	if u.fallback == nil {
		if in.lat == nil {
			missing = append(missing, string(RoleLatitude))
		}
		if in.lon == nil {
			missing = append(missing, string(RoleLongitude))
		}
	}

	in.condScale = 1
	if in.cond != nil && in.cond.Unit == UnitSiemensM {
		in.condScale = 1 / ConductivityFactor
	}
	return in, missing
}

// convertOxygen converts dissolved oxygen from µmol/L to µmol/kg using the
// in-situ density of each row. All rows are computed into a buffer and the
// column is only replaced once every row has succeeded.
func (u *UnitConverter) convertOxygen(ctx context.Context, t *Table, rows *rowTracker) (StepResult, error) {
	res := StepResult{Step: StepOxygen}
	oxy, ok := ResolveColumn(t, RoleOxygen)
	if !ok {
		res.Status = StatusMissingColumn
		return res, nil
	}
	res.Column = oxy.Name
	if oxy.Unit == UnitMicromolPerKg {
		res.Status = StatusAlreadyApplied
		return res, nil
	}

	in, missing := u.resolveOxygenInputs(t)
	if len(missing) > 0 {
		res.Status = StatusMissingColumn
		res.Err = fmt.Errorf("oxygen conversion needs %v columns", missing)
		return res, nil
	}
	if (in.lat != nil && in.lat.Unit == UnitDDMM) || (in.lon != nil && in.lon.Unit == UnitDDMM) {
		res.Status = StatusFailed
		res.Err = ErrCoordinatesNotNormalized
		return res, nil
	}

	buf := make([]Value, len(oxy.Values))
	copy(buf, oxy.Values)
	var changed []int

	for i, v := range oxy.Values {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		o, ok := v.Float64()
		if !ok {
			continue
		}
		sample, ok := u.sampleAt(in, i)
		if !ok {
			res.Skipped++
			continue
		}
		rho, err := u.density.Density(ctx, sample)
		if err == nil && (math.IsNaN(rho) || math.IsInf(rho, 0) || rho <= 0) {
			err = fmt.Errorf("%w: %g", ErrNonFiniteDensity, rho)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			res.Status = StatusFailed
			res.Skipped = 0
			res.Err = fmt.Errorf("oxygen conversion aborted at row %d: %w", i, err)
			return res, nil
		}
		buf[i] = Float(o * 1000 / rho)
		changed = append(changed, i)
	}

	oxy.Values = buf
	oxy.Unit = UnitMicromolPerKg
	for _, i := range changed {
		rows.mark(i)
	}
	res.Changed = len(changed)
	res.Status = StatusApplied
	return res, nil
}

// sampleAt gathers the co-variables of row i. It reports false when any is
// missing or physically invalid: conductivity must be positive and the
// position non-zero, unless a fallback position is configured.
func (u *UnitConverter) sampleAt(in oxygenInputs, i int) (SeawaterSample, bool) {
	c, okC := in.cond.Values[i].Float64()
	temp, okT := in.temp.Values[i].Float64()
	p, okP := in.pres.Values[i].Float64()
	if !okC || !okT || !okP || c <= 0 {
		return SeawaterSample{}, false
	}

	lat, lon, ok := position(in, i)
	if !ok {
		if u.fallback == nil {
			return SeawaterSample{}, false
		}
		lat, lon = u.fallback.Latitude, u.fallback.Longitude
	}

	return SeawaterSample{
		Conductivity: c * in.condScale,
		Temperature:  temp,
		Pressure:     p,
		Latitude:     lat,
		Longitude:    lon,
	}, true
}

func position(in oxygenInputs, i int) (float64, float64, bool) {
	if in.lat == nil || in.lon == nil {
		return 0, 0, false
	}
	lat, okLat := in.lat.Values[i].Float64()
	lon, okLon := in.lon.Values[i].Float64()
	if !okLat || !okLon || lat == 0 || lon == 0 {
		return 0, 0, false
	}
	return lat, lon, true
}
