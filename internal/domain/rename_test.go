package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenamer_Injective(t *testing.T) {
	tests := []struct {
		name     string
		mappings []Mapping
		wantErr  bool
	}{
		{name: "standard vocabulary", mappings: StandardMappings()},
		{name: "two sources one target", mappings: []Mapping{{"A", "X"}, {"B", "X"}}, wantErr: true},
		{name: "source mapped twice", mappings: []Mapping{{"A", "X"}, {"A", "Y"}}, wantErr: true},
		{name: "empty", mappings: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRenamer(tt.mappings)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNameCollision)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStandardMappings(t *testing.T) {
	want := map[string]string{
		"PLD_REALTIMECLOCK":    "TIME",
		"LEGATO_CODA_DO":       "DOXY",
		"FLBBCD_BB_700_SCALED": "TURB",
		"FLBBCD_CHL_SCALED":    "CHLA",
		"LEGATO_CONDUCTIVITY":  "CNDC",
		"LEGATO_TEMPERATURE":   "TEMP",
		"LEGATO_PRESSURE":      "PRES",
		"NAV_DEPTH":            "DEPTH",
		"NAV_LATITUDE":         "LATITUDE",
		"NAV_LONGITUDE":        "LONGITUDE",
	}
	got := map[string]string{}
	for _, m := range StandardMappings() {
		got[m.From] = m.To
	}
	assert.Equal(t, want, got)
}

func TestRenamer_Apply(t *testing.T) {
	tbl := newTestTable(t,
		&Column{Name: "LEGATO_CODA_DO", Unit: UnitMicromolPerKg, Values: floats(1, 2)},
		&Column{Name: "NAV_LATITUDE", Values: floats(28.6, 28.7)},
		&Column{Name: "source_file", Values: strs("a.raw.1", "a.raw.1")},
		&Column{Name: "NAV_RESOURCE", Values: floats(5, 6)},
	)

	got, out, err := NewStandardRenamer().Apply(tbl)
	require.NoError(t, err)

	assert.Equal(t, []string{"DOXY", "LATITUDE", "source_file", "NAV_RESOURCE"}, got.Names())
	doxy, _ := got.Column("DOXY")
	assert.Equal(t, UnitMicromolPerKg, doxy.Unit, "unit survives renaming")
	assert.Equal(t, []float64{5, 6}, floatsOf(t, got, "NAV_RESOURCE"), "unmapped columns pass through")
	assert.Equal(t, tbl.Len(), got.Len())

	missing := 0
	for _, s := range out.Steps {
		if s.Status == StatusMissingColumn {
			missing++
		}
	}
	assert.Equal(t, len(Sensors)-2, missing, "absent mappings are reported")
	assert.Equal(t, 2, out.Affected)
	assert.True(t, tbl.Has("LEGATO_CODA_DO"), "input table is not modified")
}

func TestRenamer_CollisionWithExistingColumn(t *testing.T) {
	tbl := newTestTable(t,
		&Column{Name: "LEGATO_CODA_DO", Values: floats(1)},
		&Column{Name: "DOXY", Values: floats(2)},
	)

	got, _, err := NewStandardRenamer().Apply(tbl)
	require.ErrorIs(t, err, ErrNameCollision)
	assert.Nil(t, got)
}

func TestRenamer_Chain(t *testing.T) {
	r, err := NewRenamer([]Mapping{{"A", "B"}, {"B", "C"}})
	require.NoError(t, err)

	tbl := newTestTable(t,
		&Column{Name: "A", Values: floats(1)},
		&Column{Name: "B", Values: floats(2)},
	)
	got, _, err := r.Apply(tbl)
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "C"}, got.Names())
	assert.Equal(t, []float64{1}, floatsOf(t, got, "B"))
	assert.Equal(t, []float64{2}, floatsOf(t, got, "C"))
}

func TestRenamer_Idempotent(t *testing.T) {
	tbl := newTestTable(t, &Column{Name: "LEGATO_TEMPERATURE", Values: floats(10)})
	r := NewStandardRenamer()

	once, _, err := r.Apply(tbl)
	require.NoError(t, err)
	twice, out, err := r.Apply(once)
	require.NoError(t, err)

	assert.Equal(t, once.Names(), twice.Names())
	assert.Equal(t, 0, out.Affected)
}
