// Package ledger records pipeline runs and their stage reports in SQLite.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/glider-data-etl/internal/domain"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Store is the run ledger.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// New wraps an open database. Call Migrate before use.
func New(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger, now: domain.Now}
}

// Open opens (creating if needed) the ledger database at path and migrates it.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := New(db, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun inserts a run in the running state.
func (s *Store) StartRun(ctx context.Context, run *domain.Run) error {
	inputs, err := json.Marshal(nonNil(run.Inputs))
	if err != nil {
		return fmt.Errorf("encode run inputs: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, status, inputs)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.StartedAt, string(run.Status), string(inputs))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// RecordStage stores one stage report and its step outcomes. seq orders
// the stages of a run.
func (s *Store) RecordStage(ctx context.Context, runID string, seq int, r domain.StageReport) (err error) {
	warnings, err := json.Marshal(nonNil(r.Warnings))
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stage tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stage_reports (run_id, seq, stage, rows_in, rows_out, processed, affected, skipped, warnings, output, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, stage) DO UPDATE SET
			seq = excluded.seq,
			rows_in = excluded.rows_in,
			rows_out = excluded.rows_out,
			processed = excluded.processed,
			affected = excluded.affected,
			skipped = excluded.skipped,
			warnings = excluded.warnings,
			output = excluded.output,
			duration_ms = excluded.duration_ms
	`, runID, seq, r.Stage, r.RowsIn, r.RowsOut, r.Processed, r.Affected, r.Skipped,
		string(warnings), nullString(r.Output), r.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert stage %s: %w", r.Stage, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM step_results WHERE run_id = ? AND stage = ?", runID, r.Stage); err != nil {
		return fmt.Errorf("clear steps of %s: %w", r.Stage, err)
	}
	for _, st := range r.Steps {
		var msg sql.NullString
		if st.Err != nil {
			msg = sql.NullString{String: st.Err.Error(), Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO step_results (run_id, stage, step, column_name, status, changed, skipped, nulled, error_message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, r.Stage, st.Step, nullString(st.Column), string(st.Status), st.Changed, st.Skipped, st.Nulled, msg)
		if err != nil {
			return fmt.Errorf("insert step %s: %w", st.Step, err)
		}
	}
	return tx.Commit()
}

// CompleteRun records the terminal state of run.
func (s *Store) CompleteRun(ctx context.Context, run *domain.Run) error {
	finished := run.FinishedAt
	if finished.IsZero() {
		finished = s.now()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, status = ?, error_message = ?
		WHERE id = ?
	`, finished, string(run.Status), nullString(run.Error), run.ID)
	if err != nil {
		return fmt.Errorf("complete run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// RunSummary is one line of the run listing.
type RunSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     domain.RunStatus
	Inputs     int
	Stages     int
	RowsOut    int
	Error      sql.NullString
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.started_at, r.finished_at, r.status, r.inputs, r.error_message,
			COUNT(sr.id),
			COALESCE((SELECT rows_out FROM stage_reports WHERE run_id = r.id ORDER BY seq DESC LIMIT 1), 0)
		FROM runs r
		LEFT JOIN stage_reports sr ON sr.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			rs     RunSummary
			status string
			inputs string
		)
		if err := rows.Scan(&rs.ID, &rs.StartedAt, &rs.FinishedAt, &status, &inputs, &rs.Error, &rs.Stages, &rs.RowsOut); err != nil {
			return nil, err
		}
		rs.Status = domain.RunStatus(status)
		var list []string
		if err := json.Unmarshal([]byte(inputs), &list); err == nil {
			rs.Inputs = len(list)
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// GetRun loads a run with its stage reports and step outcomes.
func (s *Store) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	var (
		run      = &domain.Run{ID: id}
		finished sql.NullTime
		status   string
		inputs   string
		errMsg   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT started_at, finished_at, status, inputs, error_message FROM runs WHERE id = ?
	`, id).Scan(&run.StartedAt, &finished, &status, &inputs, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	run.FinishedAt = finished.Time
	run.Status = domain.RunStatus(status)
	run.Error = errMsg.String
	if err := json.Unmarshal([]byte(inputs), &run.Inputs); err != nil {
		return nil, fmt.Errorf("decode inputs of run %s: %w", id, err)
	}

	stages, err := s.stages(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Stages = stages
	return run, nil
}

func (s *Store) stages(ctx context.Context, runID string) ([]domain.StageReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stage, rows_in, rows_out, processed, affected, skipped, warnings, output, duration_ms
		FROM stage_reports WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StageReport
	for rows.Next() {
		var (
			r        domain.StageReport
			warnings string
			output   sql.NullString
			ms       int64
		)
		if err := rows.Scan(&r.Stage, &r.RowsIn, &r.RowsOut, &r.Processed, &r.Affected, &r.Skipped, &warnings, &output, &ms); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(warnings), &r.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings of %s: %w", r.Stage, err)
		}
		if len(r.Warnings) == 0 {
			r.Warnings = nil
		}
		r.Output = output.String
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range out {
		steps, err := s.steps(ctx, runID, out[i].Stage)
		if err != nil {
			return nil, err
		}
		out[i].Steps = steps
	}
	return out, nil
}

func (s *Store) steps(ctx context.Context, runID, stage string) ([]domain.StepResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step, column_name, status, changed, skipped, nulled, error_message
		FROM step_results WHERE run_id = ? AND stage = ? ORDER BY id
	`, runID, stage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StepResult
	for rows.Next() {
		var (
			st     domain.StepResult
			column sql.NullString
			status string
			msg    sql.NullString
		)
		if err := rows.Scan(&st.Step, &column, &status, &st.Changed, &st.Skipped, &st.Nulled, &msg); err != nil {
			return nil, err
		}
		st.Column = column.String
		st.Status = domain.Status(status)
		if msg.Valid {
			st.Err = errors.New(msg.String)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
