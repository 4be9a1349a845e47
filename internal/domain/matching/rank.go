package matching

import (
	"context"
	"sort"

	"github.com/okian/profmatch/internal/domain/names"
	"github.com/okian/profmatch/internal/domain/similarity"
)

// Query is a normalized name together with its variations.
type Query struct {
	Key        string
	Variations []string
}

// NewQuery builds the Query for a normalized key.
func NewQuery(key string) Query {
	return Query{Key: key, Variations: names.Variations(key)}
}

// Candidate is a review-side name that reached the threshold for one
// rating-side name.
type Candidate struct {
	Key   string
	Score int
	Pos   int // position of the review name in sorted order
}

// Ranker scores every query against every target. The returned slice is
// parallel to queries. Implementations must treat queries and targets as
// read-only.
type Ranker interface {
	Rank(ctx context.Context, queries, targets []Query, threshold int, score similarity.Scorer) ([][]Candidate, error)
}

// RankOne returns the targets whose best variation score reaches threshold,
// highest score first and, among equal scores, in target order.
func RankOne(q Query, targets []Query, threshold int, score similarity.Scorer) []Candidate {
	var out []Candidate
	for pos, t := range targets {
		s := similarity.Best(q.Variations, t.Variations, score)
		if s >= threshold {
			out = append(out, Candidate{Key: t.Key, Score: s, Pos: pos})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// SequentialRanker ranks queries one after another on the calling goroutine.
type SequentialRanker struct{}

// Rank implements Ranker.
func (SequentialRanker) Rank(ctx context.Context, queries, targets []Query, threshold int, score similarity.Scorer) ([][]Candidate, error) {
	out := make([][]Candidate, len(queries))
	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = RankOne(q, targets, threshold, score)
	}
	return out, nil
}
