package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/profmatch/internal/domain/model"
)

// MatchDependencies defines the interface for match lookups.
type MatchDependencies interface {
	Match(ctx context.Context, name string) ([]model.MatchedEntry, error)
}

// MatchesHandler handles match lookups.
type MatchesHandler struct {
	deps MatchDependencies
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps MatchDependencies) *MatchesHandler {
	return &MatchesHandler{deps: deps}
}

// HandleGetMatch handles GET /matches/{name} requests. The name may be the
// raw rating-side name or any spelling that normalizes to it.
func (h *MatchesHandler) HandleGetMatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_match"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	name := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/matches/"))
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	entries, err := h.deps.Match(r.Context(), name)
	if err != nil {
		writeLookupError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{Name: name, Entries: entries})
}
