package domain

// Unit is the physical unit label carried by a column. Converted columns are
// relabelled so a second pass over the same table can tell the transform has
// already been applied.
type Unit string

const (
	UnitNone             Unit = ""
	UnitTimestamp        Unit = "timestamp"
	UnitDDMM             Unit = "DDMM.MMMM"
	UnitDecimalDegrees   Unit = "degrees"
	UnitCelsius          Unit = "degC"
	UnitMilliSiemensCm   Unit = "mS/cm"
	UnitSiemensM         Unit = "S/m"
	UnitDecibar          Unit = "dbar"
	UnitMeter            Unit = "m"
	UnitMicromolPerLiter Unit = "umol/L"
	UnitMicromolPerKg    Unit = "umol/kg"
	UnitBackscatter      Unit = "m-1 sr-1"
	UnitNTU              Unit = "NTU"
	UnitMicrogramPerL    Unit = "ug/L"
	UnitMilligramPerM3   Unit = "mg/m3"
)

// Role is the physical quantity a column represents.
type Role string

const (
	RoleTime         Role = "time"
	RoleLatitude     Role = "latitude"
	RoleLongitude    Role = "longitude"
	RoleTemperature  Role = "temperature"
	RoleConductivity Role = "conductivity"
	RolePressure     Role = "pressure"
	RoleDepth        Role = "depth"
	RoleOxygen       Role = "oxygen"
	RoleTurbidity    Role = "turbidity"
	RoleChlorophyll  Role = "chlorophyll"
)

// Provenance columns added during ingestion.
const (
	ColSourceFile = "source_file"
	ColFileNumber = "file_number"
)

// Sensor describes one column of the glider payload vocabulary.
type Sensor struct {
	Role       Role
	Native     string
	Standard   string
	NativeUnit Unit
	OutputUnit Unit
	// Aliases are other names the same quantity is known by, tried after
	// Native and Standard when locating a column.
	Aliases []string
}

// Sensors is the fixed SeaExplorer payload vocabulary.
var Sensors = []Sensor{
	{
		Role: RoleTime, Native: "PLD_REALTIMECLOCK", Standard: "TIME",
		NativeUnit: UnitTimestamp, OutputUnit: UnitTimestamp,
	},
	{
		Role: RoleLatitude, Native: "NAV_LATITUDE", Standard: "LATITUDE",
		NativeUnit: UnitDDMM, OutputUnit: UnitDecimalDegrees,
	},
	{
		Role: RoleLongitude, Native: "NAV_LONGITUDE", Standard: "LONGITUDE",
		NativeUnit: UnitDDMM, OutputUnit: UnitDecimalDegrees,
	},
	{
		Role: RoleTemperature, Native: "LEGATO_TEMPERATURE", Standard: "TEMP",
		NativeUnit: UnitCelsius, OutputUnit: UnitCelsius,
		Aliases: []string{"TEMPERATURE", "CTD_TEMP"},
	},
	{
		Role: RoleConductivity, Native: "LEGATO_CONDUCTIVITY", Standard: "CNDC",
		NativeUnit: UnitMilliSiemensCm, OutputUnit: UnitSiemensM,
		Aliases: []string{"CONDUCTIVITY", "CTD_CONDUCTIVITY"},
	},
	{
		Role: RolePressure, Native: "LEGATO_PRESSURE", Standard: "PRES",
		NativeUnit: UnitDecibar, OutputUnit: UnitDecibar,
		Aliases: []string{"PRESSURE", "CTD_PRESSURE"},
	},
	{
		Role: RoleDepth, Native: "NAV_DEPTH", Standard: "DEPTH",
		NativeUnit: UnitMeter, OutputUnit: UnitMeter,
	},
	{
		Role: RoleOxygen, Native: "LEGATO_CODA_DO", Standard: "DOXY",
		NativeUnit: UnitMicromolPerLiter, OutputUnit: UnitMicromolPerKg,
		Aliases: []string{"DISSOLVED_OXYGEN", "OXYGEN", "O2"},
	},
	{
		Role: RoleTurbidity, Native: "FLBBCD_BB_700_SCALED", Standard: "TURB",
		NativeUnit: UnitBackscatter, OutputUnit: UnitNTU,
		Aliases: []string{"TURBIDITY", "BACKSCATTER", "FLBBCD_BB_700_NTU"},
	},
	{
		Role: RoleChlorophyll, Native: "FLBBCD_CHL_SCALED", Standard: "CHLA",
		NativeUnit: UnitMicrogramPerL, OutputUnit: UnitMilligramPerM3,
		Aliases: []string{"CHLOROPHYLL", "CHL_A"},
	},
}

// SensorFor returns the vocabulary entry for role.
func SensorFor(role Role) (Sensor, bool) {
	for _, s := range Sensors {
		if s.Role == role {
			return s, true
		}
	}
	return Sensor{}, false
}

// SensorByName returns the vocabulary entry whose native, standard or alias
// name equals name.
func SensorByName(name string) (Sensor, bool) {
	for _, s := range Sensors {
		if s.Native == name || s.Standard == name {
			return s, true
		}
		for _, a := range s.Aliases {
			if a == name {
				return s, true
			}
		}
	}
	return Sensor{}, false
}

// names lists every name the sensor may appear under, in lookup order.
func (s Sensor) names() []string {
	out := make([]string, 0, 2+len(s.Aliases))
	out = append(out, s.Native, s.Standard)
	return append(out, s.Aliases...)
}

// ResolveColumn locates the column holding role in t, trying the native
// name, then the standard name, then the aliases.
func ResolveColumn(t *Table, role Role) (*Column, bool) {
	s, ok := SensorFor(role)
	if !ok {
		return nil, false
	}
	for _, name := range s.names() {
		if c, ok := t.Column(name); ok {
			return c, true
		}
	}
	return nil, false
}

// IsNumericSensor reports whether name is a declared numeric sensor column.
func IsNumericSensor(name string) bool {
	s, ok := SensorByName(name)
	return ok && s.Role != RoleTime
}

// IsTimeColumn reports whether name holds the realtime clock.
func IsTimeColumn(name string) bool {
	s, ok := SensorByName(name)
	return ok && s.Role == RoleTime
}

// NativeUnitFor returns the unit a freshly ingested column carries.
func NativeUnitFor(name string) Unit {
	if s, ok := SensorByName(name); ok && s.Native == name {
		return s.NativeUnit
	}
	return UnitNone
}
