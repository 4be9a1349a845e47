// Package api serves read access to the latest reconciliation run over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/profmatch/internal/adapters/repository"
	"github.com/okian/profmatch/internal/domain/matching"
	"github.com/okian/profmatch/internal/domain/model"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	MatchDependencies
	UnmatchedDependencies
	ReconcileDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	matchesHandler   *MatchesHandler
	unmatchedHandler *UnmatchedHandler
	reconcileHandler *ReconcileHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		matchesHandler:   NewMatchesHandler(deps),
		unmatchedHandler: NewUnmatchedHandler(deps),
		reconcileHandler: NewReconcileHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/matches/", MetricsMiddleware(s.matchesHandler.HandleGetMatch, "matches"))
	mux.HandleFunc("/unmatched", MetricsMiddleware(s.unmatchedHandler.HandleGetUnmatched, "unmatched"))
	mux.HandleFunc("/reconcile", MetricsMiddleware(s.reconcileHandler.HandlePostReconcile, "reconcile"))
}

// Summary is the wire shape of a run.
type Summary struct {
	RunID          string                     `json:"run_id"`
	StartedAt      time.Time                  `json:"started_at"`
	FinishedAt     time.Time                  `json:"finished_at"`
	Threshold      int                        `json:"threshold"`
	Matched        int                        `json:"matched"`
	Counts         matching.Counts            `json:"counts"`
	Rejections     []matching.Rejection       `json:"rejections"`
	PairsEvaluated int                        `json:"pairs_evaluated"`
	DurationsMS    map[matching.Phase]float64 `json:"durations_ms"`
}

// NewSummary builds the wire summary of res.
func NewSummary(res *matching.Result) Summary {
	rejections := res.Rejections
	if rejections == nil {
		rejections = []matching.Rejection{}
	}
	return Summary{
		RunID:          res.RunID,
		StartedAt:      res.StartedAt,
		FinishedAt:     res.FinishedAt,
		Threshold:      res.Threshold,
		Matched:        res.Counts.Matched(),
		Counts:         res.Counts,
		Rejections:     rejections,
		PairsEvaluated: res.PairsEvaluated,
		DurationsMS:    res.DurationsMS(),
	}
}

type matchResponse struct {
	Name    string               `json:"name"`
	Entries []model.MatchedEntry `json:"entries"`
}

type unmatchedResponse struct {
	Source string   `json:"source"`
	Count  int      `json:"count"`
	Names  []string `json:"names"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeLookupError maps store errors to responses.
func writeLookupError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, repository.ErrNoRun):
		writeError(w, http.StatusServiceUnavailable, "no_run", WrapKind(op, ErrNoRun, err))
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "cancelled", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
