package rawfile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/glider-data-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHeader = "PLD_REALTIMECLOCK;NAV_LATITUDE;NAV_LONGITUDE;LEGATO_TEMPERATURE;LEGATO_CODA_DO;"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeRaw writes a payload file whose rows start at the given minute and
// carry the sequence number in the temperature column.
func writeRaw(t *testing.T, dir string, seq, rows, startMinute int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(testHeader + "\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "01/06/2024 %02d:%02d:00.250;2838.767;1530.0;%d;200.5;\n", (startMinute+i)/60, (startMinute+i)%60, seq)
	}
	path := filepath.Join(dir, fmt.Sprintf("sea074.67.pld1.raw.%d", seq))
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestSequenceNumber(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"sea074.67.pld1.raw.123", 123},
		{"/data/logs/sea074.67.pld1.raw.2", 2},
		{"sea074.67.pld1.raw.10.gz", 10},
		{"mission.0042", 42},
		{"mission.csv", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SequenceNumber(tt.name))
		})
	}
}

func TestDiscover_NumericOrder(t *testing.T) {
	dir := t.TempDir()
	for _, seq := range []int{10, 2, 1} {
		writeRaw(t, dir, seq, 1, 0)
	}

	files, err := Discover([]string{filepath.Join(dir, "*.pld1.raw.*")}, Window{})
	require.NoError(t, err)

	var seqs []int
	for _, f := range files {
		seqs = append(seqs, f.Sequence)
	}
	assert.Equal(t, []int{1, 2, 10}, seqs)
}

func TestDiscover_DeduplicatesAndWindows(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, seq := range []int{1, 2, 3, 4} {
		paths = append(paths, writeRaw(t, dir, seq, 1, 0))
	}

	files, err := Discover([]string{filepath.Join(dir, "*"), paths[1]}, Window{Min: 2, Max: 3})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, 2, files[0].Sequence)
	assert.Equal(t, 3, files[1].Sequence)
}

func TestDiscover_LiteralMissingPathIsKept(t *testing.T) {
	files, err := Discover([]string{"/nonexistent/sea.pld1.raw.7"}, Window{})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, 7, files[0].Sequence)
}

func TestRead(t *testing.T) {
	in := testHeader + "\n" +
		"01/06/2024 10:00:00.500;2838.767;1530.0;12.5;;\n" +
		";;;;;\n" +
		"not a date;0;0;;;\n"

	tbl, dropped, err := Read(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, 1, dropped)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"PLD_REALTIMECLOCK", "NAV_LATITUDE", "NAV_LONGITUDE", "LEGATO_TEMPERATURE", "LEGATO_CODA_DO"}, tbl.Names())

	clock, _ := tbl.Column("PLD_REALTIMECLOCK")
	ts, ok := clock.Values[0].TimeValue()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 500_000_000, time.UTC), ts)
	assert.True(t, clock.Values[1].IsMissing(), "unparsable timestamp becomes missing")

	lat, _ := tbl.Column("NAV_LATITUDE")
	assert.Equal(t, domain.UnitDDMM, lat.Unit)
	s, ok := lat.Values[0].Str()
	require.True(t, ok)
	assert.Equal(t, "2838.767", s)

	do, _ := tbl.Column("LEGATO_CODA_DO")
	assert.True(t, do.Values[0].IsMissing())
}

func TestRead_Errors(t *testing.T) {
	_, _, err := Read(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, _, err = Read(strings.NewReader("A;A\n1;2\n"))
	assert.ErrorIs(t, err, domain.ErrDuplicateColumn)
}

func TestIngest_MergesInSequenceOrder(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, 1, 10, 0)
	writeRaw(t, dir, 2, 10, 10)
	writeRaw(t, dir, 10, 10, 20)

	files, err := Discover([]string{filepath.Join(dir, "*.pld1.raw.*")}, Window{})
	require.NoError(t, err)

	for _, sortByTime := range []bool{true, false} {
		t.Run(fmt.Sprintf("sort=%v", sortByTime), func(t *testing.T) {
			res, err := NewIngester(discardLogger(), sortByTime).Ingest(context.Background(), files)
			require.NoError(t, err)

			assert.Equal(t, 30, res.Table.Len())
			assert.True(t, res.Table.Has(domain.ColSourceFile))
			assert.True(t, res.Table.Has(domain.ColFileNumber))
			assert.Nil(t, res.Skipped)

			num, _ := res.Table.Column(domain.ColFileNumber)
			var order []float64
			for _, v := range num.Values {
				f, _ := v.Float64()
				if len(order) == 0 || order[len(order)-1] != f {
					order = append(order, f)
				}
			}
			assert.Equal(t, []float64{1, 2, 10}, order)
		})
	}
}

func TestIngest_SkipsUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeRaw(t, dir, 1, 3, 0)
	empty := filepath.Join(dir, "sea.pld1.raw.2")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	files := []File{{Path: good, Sequence: 1}, {Path: empty, Sequence: 2}, {Path: filepath.Join(dir, "missing.raw.3"), Sequence: 3}}
	res, err := NewIngester(discardLogger(), true).Ingest(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Table.Len())
	require.NotNil(t, res.Skipped)
	assert.Len(t, res.Skipped.Errors, 2)
	assert.Len(t, res.Warnings(), 2)
	assert.Len(t, res.Files, 1)
}

func TestIngest_NoReadableFiles(t *testing.T) {
	_, err := NewIngester(discardLogger(), true).Ingest(context.Background(), []File{{Path: "/nonexistent/raw.1", Sequence: 1}})
	assert.ErrorIs(t, err, domain.ErrNoInputFiles)

	_, err = NewIngester(discardLogger(), true).Ingest(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrNoInputFiles)
}

func TestIngest_SortsByTime(t *testing.T) {
	dir := t.TempDir()
	late := writeRaw(t, dir, 1, 2, 30)
	early := writeRaw(t, dir, 2, 2, 0)

	res, err := NewIngester(discardLogger(), true).Ingest(context.Background(), []File{{late, 1}, {early, 2}})
	require.NoError(t, err)

	num, _ := res.Table.Column(domain.ColFileNumber)
	first, _ := num.Values[0].Float64()
	assert.Equal(t, 2.0, first)
}

func TestIngest_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewIngester(discardLogger(), true).Ingest(ctx, []File{{Path: "x", Sequence: 1}})
	assert.ErrorIs(t, err, context.Canceled)
}
