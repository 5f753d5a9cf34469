package domain

import (
	"context"
	"fmt"
	"math"

	"github.com/couchcryptid/glider-data-etl/internal/gsw"
)

// SeawaterSample holds the CTD readings and position of one observation.
type SeawaterSample struct {
	Conductivity float64 // mS/cm
	Temperature  float64 // °C, ITS-90
	Pressure     float64 // dbar
	Latitude     float64 // decimal degrees
	Longitude    float64 // decimal degrees
}

// DensityModel computes in-situ seawater density in kg/m³.
type DensityModel interface {
	Density(ctx context.Context, s SeawaterSample) (float64, error)
}

// AnomalySource supplies the Absolute Salinity Anomaly Ratio (SAAR) for a
// position and pressure.
type AnomalySource interface {
	AnomalyRatio(ctx context.Context, p, lon, lat float64) (float64, error)
}

// ZeroAnomaly is an AnomalySource returning 0 everywhere, which reduces
// Absolute Salinity to Reference Salinity.
type ZeroAnomaly struct{}

func (ZeroAnomaly) AnomalyRatio(context.Context, float64, float64, float64) (float64, error) {
	return 0, nil
}

// TEOS10 is the DensityModel defined by the TEOS-10 chain
// SP_from_C → SA_from_SP → CT_from_t → rho.
type TEOS10 struct {
	anomaly AnomalySource
}

// NewTEOS10 returns a TEOS-10 density model. Pass a nil source to use a
// zero anomaly ratio.
func NewTEOS10(anomaly AnomalySource) *TEOS10 {
	if anomaly == nil {
		anomaly = ZeroAnomaly{}
	}
	return &TEOS10{anomaly: anomaly}
}

func (m *TEOS10) Density(ctx context.Context, s SeawaterSample) (float64, error) {
	sp := gsw.SPFromC(s.Conductivity, s.Temperature, s.Pressure)
	if math.IsNaN(sp) {
		return 0, fmt.Errorf("practical salinity undefined for C=%g t=%g p=%g", s.Conductivity, s.Temperature, s.Pressure)
	}

	saar, err := m.anomaly.AnomalyRatio(ctx, s.Pressure, s.Longitude, s.Latitude)
	if err != nil {
		return 0, fmt.Errorf("salinity anomaly ratio: %w", err)
	}

	sa := gsw.SAFromSP(sp, saar, s.Longitude, s.Latitude)
	ct := gsw.CTFromT(sa, s.Temperature, s.Pressure)
	rho := gsw.Rho(sa, ct, s.Pressure)
	if math.IsNaN(rho) || math.IsInf(rho, 0) || rho <= 0 {
		return 0, fmt.Errorf("%w: SA=%g CT=%g p=%g", ErrNonFiniteDensity, sa, ct, s.Pressure)
	}
	return rho, nil
}
