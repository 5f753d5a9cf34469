package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/glider-data-etl/internal/adapter/rawfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams(dir string) params {
	return params{
		out:       dir,
		glider:    "sea074",
		mission:   67,
		files:     3,
		rows:      25,
		interval:  2 * time.Second,
		start:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		maxDepth:  50,
		latitude:  28.646117,
		longitude: -15.5,
		gapRate:   0.1,
		emptyRows: 2,
		seed:      7,
	}
}

func TestGenerate_ReadableByIngester(t *testing.T) {
	dir := t.TempDir()
	paths, err := generate(testParams(dir))
	require.NoError(t, err)
	require.Len(t, paths, 3)

	files, err := rawfile.Discover([]string{filepath.Join(dir, "*.pld1.raw.*")}, rawfile.Window{})
	require.NoError(t, err)
	res, err := rawfile.NewIngester(slog.New(slog.NewTextHandler(io.Discard, nil)), true).Ingest(t.Context(), files)
	require.NoError(t, err)

	assert.Equal(t, 75, res.Table.Len())
	for _, fr := range res.Files {
		assert.Equal(t, 2, fr.Dropped, fr.File.Path)
	}
	clock, ok := res.Table.Column("PLD_REALTIMECLOCK")
	require.True(t, ok)
	last, ok := clock.Values[74].TimeValue()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 2, 28, 0, time.UTC), last)
}

func TestGenerate_Reproducible(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	pa, err := generate(testParams(a))
	require.NoError(t, err)
	pb, err := generate(testParams(b))
	require.NoError(t, err)

	for i := range pa {
		da, err := os.ReadFile(pa[i])
		require.NoError(t, err)
		db, err := os.ReadFile(pb[i])
		require.NoError(t, err)
		assert.Equal(t, string(da), string(db))
	}
}

func TestGenerate_SkipLeavesGap(t *testing.T) {
	p := testParams(t.TempDir())
	p.skipNumber = 2
	paths, err := generate(p)
	require.NoError(t, err)

	require.Len(t, paths, 2)
	assert.Equal(t, 1, rawfile.SequenceNumber(paths[0]))
	assert.Equal(t, 3, rawfile.SequenceNumber(paths[1]))
}

func TestDDMM(t *testing.T) {
	assert.Equal(t, "2838.7670", ddmm(28.646117))
	assert.Equal(t, "1530.0000", ddmm(-15.5))
}
