package api

import (
	"context"
	"net/http"

	"github.com/okian/profmatch/internal/adapters/repository"
)

// UnmatchedDependencies defines the interface for residual name listings.
type UnmatchedDependencies interface {
	Unmatched(ctx context.Context, source string) ([]string, error)
}

// UnmatchedHandler handles unmatched listings.
type UnmatchedHandler struct {
	deps UnmatchedDependencies
}

// NewUnmatchedHandler creates a new unmatched handler.
func NewUnmatchedHandler(deps UnmatchedDependencies) *UnmatchedHandler {
	return &UnmatchedHandler{deps: deps}
}

// HandleGetUnmatched handles GET /unmatched?source=ratings|reviews requests.
func (h *UnmatchedHandler) HandleGetUnmatched(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_unmatched"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	source := r.URL.Query().Get("source")
	if source == "" {
		source = repository.SourceRatings
	}
	if source != repository.SourceRatings && source != repository.SourceReviews {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	names, err := h.deps.Unmatched(r.Context(), source)
	if err != nil {
		writeLookupError(w, op, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, unmatchedResponse{Source: source, Count: len(names), Names: names})
}
