package csvfile

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/glider-data-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *domain.Table {
	t.Helper()
	ts := time.Date(2024, 6, 1, 10, 0, 0, 250_000_000, time.UTC)
	tbl := domain.NewTable(3)
	cols := []*domain.Column{
		{Name: "PLD_REALTIMECLOCK", Unit: domain.UnitTimestamp, Values: []domain.Value{domain.Time(ts), domain.Missing(), domain.Time(ts.Add(time.Second))}},
		{Name: "DOXY", Unit: domain.UnitMicromolPerKg, Values: []domain.Value{domain.Float(195.123456789), domain.Float(0.1), domain.Missing()}},
		{Name: "NAV_LATITUDE", Unit: domain.UnitDecimalDegrees, Values: []domain.Value{domain.Float(28.646116666666668), domain.Float(0), domain.Float(28.7)}},
		{Name: domain.ColSourceFile, Values: []domain.Value{domain.String("sea074.67.pld1.raw.1"), domain.String("a,b"), domain.String(`quote"d`)}},
	}
	for _, c := range cols {
		require.NoError(t, tbl.AddColumn(c))
	}
	return tbl
}

func TestWriteLoad_PreservesValuesAndUnits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mission.csv")
	in := sampleTable(t)

	require.NoError(t, Write(path, in))
	out, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, in.Names(), out.Names())
	for _, c := range in.Columns() {
		got, ok := out.Column(c.Name)
		require.True(t, ok)
		assert.Equal(t, c.Unit, got.Unit, c.Name)
		if diff := cmp.Diff(c.Values, got.Values); diff != "" {
			t.Errorf("column %s mismatch (-want +got):\n%s", c.Name, diff)
		}
	}
}

func TestWrite_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mission.csv")
	require.NoError(t, Write(path, sampleTable(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "PLD_REALTIMECLOCK,DOXY,NAV_LATITUDE,source_file\n" +
		"2024-06-01 10:00:00.250000,195.123456789,28.646116666666668,sea074.67.pld1.raw.1\n" +
		",0.1,0,\"a,b\"\n" +
		"2024-06-01 10:00:01.250000,,28.7,\"quote\"\"d\"\n"
	assert.Equal(t, want, string(data))

	_, err = os.Stat(path + SidecarSuffix)
	assert.NoError(t, err)
}

func TestWrite_LeavesNoTemporaryFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(filepath.Join(dir, "a.csv"), sampleTable(t)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"a.csv", "a.csv" + SidecarSuffix}, names)
}

func TestWrite_MissingDirectoryFails(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "nope", "a.csv"), sampleTable(t))
	assert.Error(t, err)
}

func TestLoad_WithoutSidecar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	content := "NAV_LATITUDE,DOXY,NAV_RESOURCE\n2838.767,200,x\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tbl, err := Load(path)
	require.NoError(t, err)

	lat, _ := tbl.Column("NAV_LATITUDE")
	assert.Equal(t, domain.UnitDDMM, lat.Unit, "native name gets its native unit")
	doxy, _ := tbl.Column("DOXY")
	assert.Equal(t, domain.UnitMicromolPerKg, doxy.Unit, "standard name gets its output unit")
	res, _ := tbl.Column("NAV_RESOURCE")
	assert.Equal(t, domain.UnitNone, res.Unit)
	s, ok := res.Values[0].Str()
	require.True(t, ok)
	assert.Equal(t, "x", s)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "absent.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = Load(empty)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("A\n1\n"), 0o644))
	require.NoError(t, os.WriteFile(bad+SidecarSuffix, []byte("{"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestStore_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	s := NewStore(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))

	name := FileName("mission", "merged", time.Date(2024, 6, 1, 9, 5, 7, 0, time.UTC))
	assert.Equal(t, "mission_merged_20240601_090507.csv", name)

	path, err := s.Save(name, sampleTable(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, name), path)
	assert.FileExists(t, path)
}
