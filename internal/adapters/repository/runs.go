package repository

import (
	"context"
	"maps"
	"slices"
	"sync/atomic"

	"github.com/okian/profmatch/internal/domain/matching"
	"github.com/okian/profmatch/internal/domain/model"
	"github.com/okian/profmatch/internal/domain/names"
)

// Unmatched sources.
const (
	SourceRatings = "ratings"
	SourceReviews = "reviews"
)

// runSnapshot is an immutable view of one completed run.
type runSnapshot struct {
	result *matching.Result

	// normalized key -> raw matched names, for lookups by any spelling.
	byKey map[string][]string

	unmatchedRatings []string
	unmatchedReviews []string
}

// RunStore keeps the latest pipeline result for readers.
// Put swaps in a new immutable snapshot; reads never block.
type RunStore struct {
	fold     bool
	snapshot atomic.Pointer[runSnapshot]
}

// NewRunStore creates an empty run store.
func NewRunStore(opts ...RunOption) *RunStore {
	s := &RunStore{fold: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put publishes res as the latest run.
func (s *RunStore) Put(_ context.Context, res *matching.Result) {
	if res == nil {
		return
	}
	snap := &runSnapshot{
		result:           res,
		byKey:            make(map[string][]string, len(res.Matched)),
		unmatchedRatings: slices.Sorted(maps.Keys(res.UnmatchedRatings)),
		unmatchedReviews: slices.Sorted(maps.Keys(res.UnmatchedReviews)),
	}
	for _, raw := range slices.Sorted(maps.Keys(res.Matched)) {
		key := names.Key(raw, s.fold)
		if key == "" {
			continue
		}
		snap.byKey[key] = append(snap.byKey[key], raw)
	}
	s.snapshot.Store(snap)
}

// Last returns the latest run, or ErrNoRun.
func (s *RunStore) Last(_ context.Context) (*matching.Result, error) {
	snap := s.snapshot.Load()
	if snap == nil {
		return nil, ErrNoRun
	}
	return snap.result, nil
}

// Match returns the merged entries for name, looked up first by raw name and
// then by normalized name. Entries of every raw spelling sharing the key are returned.
func (s *RunStore) Match(_ context.Context, name string) ([]model.MatchedEntry, error) {
	snap := s.snapshot.Load()
	if snap == nil {
		return nil, ErrNoRun
	}
	if entries, ok := snap.result.Matched[name]; ok {
		return entries, nil
	}
	raws := snap.byKey[names.Key(name, s.fold)]
	if len(raws) == 0 {
		return nil, ErrNotFound
	}
	var out []model.MatchedEntry
	for _, raw := range raws {
		out = append(out, snap.result.Matched[raw]...)
	}
	return out, nil
}

// Unmatched returns the sorted residual names of one source.
func (s *RunStore) Unmatched(_ context.Context, source string) ([]string, error) {
	snap := s.snapshot.Load()
	if snap == nil {
		return nil, ErrNoRun
	}
	switch source {
	case SourceRatings:
		return snap.unmatchedRatings, nil
	case SourceReviews:
		return snap.unmatchedReviews, nil
	default:
		return nil, ErrNotFound
	}
}
