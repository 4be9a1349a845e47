package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/profmatch/internal/domain/matching"
)

// ReconcileDependencies defines the interface for triggering a run.
// Reconcile returns ErrBackpressure while another run is in progress.
type ReconcileDependencies interface {
	Reconcile(ctx context.Context) (*matching.Result, error)
}

// ReconcileHandler handles run requests.
type ReconcileHandler struct {
	deps ReconcileDependencies
}

// NewReconcileHandler creates a new reconcile handler.
func NewReconcileHandler(deps ReconcileDependencies) *ReconcileHandler {
	return &ReconcileHandler{deps: deps}
}

// HandlePostReconcile handles POST /reconcile requests. The pipeline re-runs
// from the configured snapshots and the run summary is returned.
func (h *ReconcileHandler) HandlePostReconcile(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_reconcile"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	res, err := h.deps.Reconcile(r.Context())
	if errors.Is(err, ErrBackpressure) {
		writeError(w, http.StatusTooManyRequests, "backpressure", Wrap(op, err))
		return
	}
	if err != nil {
		writeLookupError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSummary(res))
}
