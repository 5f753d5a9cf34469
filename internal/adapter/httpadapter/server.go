package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/glider-data-etl/internal/adapter/ledger"
	"github.com/couchcryptid/glider-data-etl/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultRunLimit = 20

// RunSource reads recorded pipeline runs.
type RunSource interface {
	ListRuns(ctx context.Context, limit int) ([]ledger.RunSummary, error)
	GetRun(ctx context.Context, id string) (*domain.Run, error)
}

// Server exposes health, readiness, metrics, and run history endpoints
// while a pipeline run is in progress.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and,
// when runs is non-nil, /runs and /runs/{id}.
func NewServer(addr string, ready sharedobs.ReadinessChecker, gatherer prometheus.Gatherer, runs RunSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	if runs != nil {
		mux.HandleFunc("GET /runs", s.handleListRuns(runs))
		mux.HandleFunc("GET /runs/{id}", s.handleGetRun(runs))
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type runJSON struct {
	ID         string      `json:"id"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Status     string      `json:"status"`
	Inputs     any         `json:"inputs"`
	Stages     []stageJSON `json:"stages,omitempty"`
	RowsOut    *int        `json:"rows_out,omitempty"`
	Error      string      `json:"error,omitempty"`
}

type stageJSON struct {
	Stage      string     `json:"stage"`
	RowsIn     int        `json:"rows_in"`
	RowsOut    int        `json:"rows_out"`
	Affected   int        `json:"affected"`
	Skipped    int        `json:"skipped"`
	DurationMS int64      `json:"duration_ms"`
	Output     string     `json:"output,omitempty"`
	Warnings   []string   `json:"warnings,omitempty"`
	Steps      []stepJSON `json:"steps,omitempty"`
}

type stepJSON struct {
	Step    string `json:"step"`
	Column  string `json:"column,omitempty"`
	Status  string `json:"status"`
	Changed int    `json:"changed"`
	Nulled  int    `json:"nulled,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleListRuns(runs RunSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRunLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}

		summaries, err := runs.ListRuns(r.Context(), limit)
		if err != nil {
			s.logger.Error("list runs", "error", err)
			sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not list runs"})
			return
		}

		out := make([]runJSON, 0, len(summaries))
		for _, sum := range summaries {
			rows := sum.RowsOut
			rj := runJSON{
				ID:        sum.ID,
				StartedAt: sum.StartedAt,
				Status:    string(sum.Status),
				Inputs:    sum.Inputs,
				RowsOut:   &rows,
				Error:     sum.Error.String,
			}
			if sum.FinishedAt.Valid {
				rj.FinishedAt = &sum.FinishedAt.Time
			}
			out = append(out, rj)
		}
		sharedobs.WriteJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleGetRun(runs RunSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := runs.GetRun(r.Context(), r.PathValue("id"))
		if errors.Is(err, ledger.ErrRunNotFound) {
			sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		if err != nil {
			s.logger.Error("get run", "id", r.PathValue("id"), "error", err)
			sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load run"})
			return
		}
		sharedobs.WriteJSON(w, http.StatusOK, toRunJSON(run))
	}
}

func toRunJSON(run *domain.Run) runJSON {
	rj := runJSON{
		ID:        run.ID,
		StartedAt: run.StartedAt,
		Status:    string(run.Status),
		Inputs:    run.Inputs,
		Error:     run.Error,
	}
	if !run.FinishedAt.IsZero() {
		rj.FinishedAt = &run.FinishedAt
	}
	for _, st := range run.Stages {
		sj := stageJSON{
			Stage:      st.Stage,
			RowsIn:     st.RowsIn,
			RowsOut:    st.RowsOut,
			Affected:   st.Affected,
			Skipped:    st.Skipped,
			DurationMS: st.Duration.Milliseconds(),
			Output:     st.Output,
			Warnings:   st.Warnings,
		}
		for _, step := range st.Steps {
			pj := stepJSON{
				Step:    step.Step,
				Column:  step.Column,
				Status:  string(step.Status),
				Changed: step.Changed,
				Nulled:  step.Nulled,
			}
			if step.Err != nil {
				pj.Error = step.Err.Error()
			}
			sj.Steps = append(sj.Steps, pj)
		}
		rj.Stages = append(rj.Stages, sj)
	}
	return rj
}
