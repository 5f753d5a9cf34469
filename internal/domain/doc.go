// Package domain models SeaExplorer glider payload data and the pure
// transforms applied to it between raw ingestion and the standard output.
//
// # Data Source
//
// Each dive produces a payload file named like "sea074.12.pld1.raw.183",
// where the number after "raw." is the sequence of the file within the
// mission. Files are semicolon-separated with a header row; empty cells
// mean "no reading".
//
// # Table
//
// A mission is held in memory as a column-oriented [Table]. Every [Column]
// carries a [Unit] label. Stages return new tables and never modify their
// input.
//
// # Payload Conventions
//
// Time format:
//
//	PLD_REALTIMECLOCK is "DD/MM/YYYY hh:mm:ss.ffffff" in UTC, day first.
//	Values that do not parse become missing.
//
// Position format:
//
//	NAV_LATITUDE and NAV_LONGITUDE are packed NMEA DDMM.MMMM magnitudes,
//	e.g. 2838.767 = 28° 38.767' = 28.646117°. 0 means "no fix".
//	The hemisphere is not encoded; longitude sign is a deployment policy,
//	see [Hemisphere].
//
// Sensor units:
//
//	LEGATO_TEMPERATURE    °C
//	LEGATO_CONDUCTIVITY   mS/cm     → S/m (×0.1)
//	LEGATO_PRESSURE       dbar
//	LEGATO_CODA_DO        µmol/L    → µmol/kg (×1000/ρ, TEOS-10)
//	FLBBCD_BB_700_SCALED  m⁻¹ sr⁻¹  → NTU (×366.70)
//	FLBBCD_CHL_SCALED     µg/L      → mg/m³ (numerically equal)
//
// # Idempotence
//
// Each transform checks the unit label of its column and skips columns
// already in the target unit, reporting [StatusAlreadyApplied]. Labels are
// persisted alongside output files so re-running a stage on its own output
// changes nothing.
//
// # Oxygen
//
// Oxygen is converted row by row only where conductivity (> 0),
// temperature, pressure, latitude and longitude (non-zero) are present.
// Other rows keep their µmol/L value. If the [DensityModel] fails for any
// row, the whole column is left as it was and the failure is reported.
package domain
