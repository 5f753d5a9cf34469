package ledger

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/glider-data-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := New(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testRun(id string, started time.Time) *domain.Run {
	return &domain.Run{
		ID:        id,
		StartedAt: started,
		Inputs:    []string{"sea.pld1.raw.1", "sea.pld1.raw.2"},
		Status:    domain.RunRunning,
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Migrate(ctx))
	v, err := s.MigrationVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
}

func TestRun_StartRecordComplete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	run := testRun("run-1", started)
	require.NoError(t, s.StartRun(ctx, run))

	ingest := domain.StageReport{
		Stage: domain.StageIngest, RowsIn: 0, RowsOut: 30, Processed: 30, Affected: 30,
		Warnings: []string{"sea.pld1.raw.3: raw file has no header"},
		Output:   "output/mission_merged.csv", Duration: 1500 * time.Millisecond,
	}
	convert := domain.StageReport{
		Stage: domain.StageConvert, RowsIn: 30, RowsOut: 30, Processed: 30, Affected: 20, Skipped: 10,
		Steps: []domain.StepResult{
			{Step: domain.StepTurbidity, Column: "FLBBCD_BB_700_SCALED", Status: domain.StatusApplied, Changed: 20},
			{Step: domain.StepOxygen, Column: "LEGATO_CODA_DO", Status: domain.StatusFailed, Err: errors.New("density failed")},
		},
	}
	require.NoError(t, s.RecordStage(ctx, run.ID, 0, ingest))
	require.NoError(t, s.RecordStage(ctx, run.ID, 1, convert))

	run.Stages = []domain.StageReport{ingest, convert}
	run.FinishedAt = started.Add(time.Minute)
	run.Status = domain.RunSucceeded
	require.NoError(t, s.CompleteRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, started.Equal(got.StartedAt))
	assert.True(t, run.FinishedAt.Equal(got.FinishedAt))
	assert.Equal(t, domain.RunSucceeded, got.Status)
	assert.Equal(t, run.Inputs, got.Inputs)
	require.Len(t, got.Stages, 2)

	assert.Equal(t, ingest.Warnings, got.Stages[0].Warnings)
	assert.Equal(t, ingest.Output, got.Stages[0].Output)
	assert.Equal(t, ingest.Duration, got.Stages[0].Duration)

	steps := got.Stages[1].Steps
	require.Len(t, steps, 2)
	assert.Equal(t, 20, steps[0].Changed)
	assert.NoError(t, steps[0].Err)
	assert.Equal(t, domain.StatusFailed, steps[1].Status)
	require.Error(t, steps[1].Err)
	assert.Equal(t, "density failed", steps[1].Err.Error())
}

func TestRecordStage_ReplacesExisting(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	run := testRun("run-1", time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, s.StartRun(ctx, run))

	r := domain.StageReport{Stage: domain.StageRename, RowsOut: 5, Steps: []domain.StepResult{{Step: "rename:DOXY", Status: domain.StatusApplied}}}
	require.NoError(t, s.RecordStage(ctx, run.ID, 4, r))
	r.RowsOut = 6
	require.NoError(t, s.RecordStage(ctx, run.ID, 4, r))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got.Stages, 1)
	assert.Equal(t, 6, got.Stages[0].RowsOut)
	assert.Len(t, got.Stages[0].Steps, 1)
}

func TestListRuns(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	first := testRun("run-1", base)
	second := testRun("run-2", base.Add(time.Hour))
	require.NoError(t, s.StartRun(ctx, first))
	require.NoError(t, s.StartRun(ctx, second))
	require.NoError(t, s.RecordStage(ctx, first.ID, 0, domain.StageReport{Stage: domain.StageIngest, RowsOut: 30}))
	require.NoError(t, s.RecordStage(ctx, first.ID, 1, domain.StageReport{Stage: domain.StageCoerce, RowsOut: 29}))

	first.Finish(errors.New("renaming aborted"))
	require.NoError(t, s.CompleteRun(ctx, first))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "run-2", runs[0].ID, "newest first")
	assert.False(t, runs[0].FinishedAt.Valid)
	assert.Equal(t, 0, runs[0].Stages)

	assert.Equal(t, "run-1", runs[1].ID)
	assert.Equal(t, domain.RunFailed, runs[1].Status)
	assert.Equal(t, 2, runs[1].Inputs)
	assert.Equal(t, 2, runs[1].Stages)
	assert.Equal(t, 29, runs[1].RowsOut)
	assert.Equal(t, "renaming aborted", runs[1].Error.String)

	limited, err := s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGetRun_NotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)

	err = s.CompleteRun(context.Background(), &domain.Run{ID: "nope", Status: domain.RunSucceeded})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger", "runs.db")
	s, err := Open(context.Background(), path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.StartRun(context.Background(), testRun("run-1", time.Now().UTC())))
	assert.FileExists(t, path)
}
