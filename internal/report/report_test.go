package report

import (
	"bytes"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/glider-data-etl/internal/adapter/ledger"
	"github.com/couchcryptid/glider-data-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRun(t *testing.T) *domain.Run {
	t.Helper()
	out := filepath.Join(t.TempDir(), "mission_renamed.csv")
	require.NoError(t, os.WriteFile(out, bytes.Repeat([]byte("x"), 2048), 0o644))

	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Run{
		ID:         "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(2500 * time.Millisecond),
		Inputs:     []string{"a.raw.1", "a.raw.2"},
		Status:     domain.RunSucceeded,
		Artifacts:  []string{filepath.Join(filepath.Dir(out), "gone.csv")},
		Stages: []domain.StageReport{
			{Stage: domain.StageIngest, RowsOut: 12345, Processed: 12345, Affected: 12345, Warnings: []string{"a.raw.3: raw file has no header"}},
			{
				Stage: domain.StageConvert, RowsIn: 12345, RowsOut: 12345, Processed: 12345, Affected: 10000, Skipped: 2345,
				Steps: []domain.StepResult{
					{Step: domain.StepTurbidity, Status: domain.StatusApplied, Changed: 10000},
					{Step: domain.StepChlorophyll, Status: domain.StatusMissingColumn},
					{Step: domain.StepOxygen, Status: domain.StatusFailed, Err: errors.New("oxygen aborted")},
				},
				Warnings: []string{"oxygen aborted"},
			},
			{Stage: domain.StageRename, RowsIn: 12345, RowsOut: 12345, Output: out},
		},
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testRun(t)))
	out := buf.String()

	assert.Contains(t, out, "Glider ETL run run-1")
	assert.Contains(t, out, "Status:   succeeded")
	assert.Contains(t, out, "(2.5s)")
	assert.Contains(t, out, "12,345")
	assert.Contains(t, out, "turbidity")
	assert.NotContains(t, out, "chlorophyll", "missing-column steps are left out")
	assert.Contains(t, out, "2.0 kB")
	assert.Contains(t, out, "gone.csv (missing)")
	assert.Contains(t, out, "Warnings (2):")
	assert.Contains(t, out, "  - oxygen aborted")
}

func TestWrite_PropagatesWriterErrors(t *testing.T) {
	err := Write(failingWriter{}, testRun(t))
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.txt")
	require.NoError(t, WriteFile(path, testRun(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Glider ETL run run-1"))
}

func TestWriteRuns(t *testing.T) {
	var buf bytes.Buffer
	runs := []ledger.RunSummary{
		{ID: "run-2", StartedAt: time.Now().Add(-time.Hour), Status: domain.RunSucceeded, Inputs: 3, Stages: 5, RowsOut: 30000},
		{ID: "run-1", StartedAt: time.Now().Add(-48 * time.Hour), Status: domain.RunFailed, Error: sql.NullString{String: "column name collision", Valid: true}},
	}
	require.NoError(t, WriteRuns(&buf, runs))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "30,000")
	assert.Contains(t, lines[1], "1 hour ago")
	assert.Contains(t, lines[2], "column name collision")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }
