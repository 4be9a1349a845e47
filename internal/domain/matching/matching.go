// Package matching resolves instructor rating records against review
// profiles: operator overrides first, then identical normalized names, then
// fuzzy name similarity confirmed by course evidence.
package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/profmatch/internal/domain/consume"
	"github.com/okian/profmatch/internal/domain/index"
	"github.com/okian/profmatch/internal/domain/model"
	"github.com/okian/profmatch/internal/domain/similarity"
	"github.com/okian/profmatch/pkg/logger"
)

// DefaultThreshold is the minimum fuzzy score accepted when none is configured.
const DefaultThreshold = 80

// ErrNilInput is returned when the ratings or reviews mapping is missing.
var ErrNilInput = errors.New("matching: nil input")

type (
	ratingRef = index.Ref[model.RatingRecord]
	reviewRef = index.Ref[model.ReviewRecord]
)

// Matcher runs the matching pipeline. It holds configuration only and is
// safe for concurrent use; every Match call owns its working state.
type Matcher struct {
	threshold int
	naAsZero  bool
	fold      bool
	scorer    similarity.Scorer
	ranker    Ranker
	logger    logger.Logger
}

// New creates a Matcher with configuration options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		threshold: DefaultThreshold,
		fold:      true,
		scorer:    similarity.Ratio,
		ranker:    SequentialRanker{},
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the configured fuzzy threshold.
func (m *Matcher) Threshold() int { return m.threshold }

// run is the working state of one Match call.
type run struct {
	m      *Matcher
	log    logger.Logger
	ledger consume.Ledger
	merged map[string]struct{}
	result *Result

	ratings *index.Index[model.RatingRecord]
	reviews *index.Index[model.ReviewRecord]
}

// Match reconciles ratings with reviews. Overrides may be nil.
// Only a nil ratings or reviews mapping is an error; every record that
// finds no counterpart is returned in the unmatched sets.
func (m *Matcher) Match(ctx context.Context, ratings model.Ratings, reviews model.Reviews, overrides []model.Override) (*Result, error) {
	if ratings == nil || reviews == nil {
		return nil, ErrNilInput
	}

	r := &run{
		m:      m,
		ledger: consume.NewLedger(consume.WithCapacity(ratings.Count() + reviews.Count())),
		merged: make(map[string]struct{}),
		result: &Result{
			RunID:     uuid.NewString(),
			StartedAt: time.Now().UTC(),
			Threshold: m.threshold,
			Matched:   make(model.Matched),
			Durations: make(map[Phase]time.Duration, 3),
		},
		ratings: index.Build(ratings, m.fold),
		reviews: index.Build(reviews, m.fold),
	}
	r.log = m.logger.Named("pipeline")

	r.log.Info(ctx, "pipeline started",
		logger.String("run_id", r.result.RunID),
		logger.Int("rating_names", r.ratings.Len()),
		logger.Int("review_names", r.reviews.Len()),
		logger.Int("overrides", len(overrides)),
		logger.Int("threshold", m.threshold),
	)

	if err := r.phase(ctx, PhaseOverrides, func(ctx context.Context) error { return r.applyOverrides(ctx, overrides) }); err != nil {
		return nil, err
	}
	if err := r.phase(ctx, PhaseExact, r.matchExact); err != nil {
		return nil, err
	}
	if err := r.phase(ctx, PhaseFuzzy, r.matchFuzzy); err != nil {
		return nil, err
	}

	r.collectUnmatched(ratings, reviews)
	r.result.FinishedAt = time.Now().UTC()
	r.result.Counts.Rejected = len(r.result.Rejections)

	c := r.result.Counts
	r.log.Info(ctx, "pipeline finished",
		logger.String("run_id", r.result.RunID),
		logger.Int("override", c.Override),
		logger.Int("direct", c.Direct),
		logger.Int("fuzzy", c.Fuzzy),
		logger.Int("rejected", c.Rejected),
		logger.Int("unmatched_ratings", c.UnmatchedRatings),
		logger.Int("unmatched_reviews", c.UnmatchedReviews),
	)
	return r.result, nil
}

func (r *run) phase(ctx context.Context, p Phase, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s phase: %w", p, err)
	}
	start := time.Now()
	err := fn(ctx)
	r.result.Durations[p] = time.Since(start)
	if err != nil {
		return fmt.Errorf("%s phase: %w", p, err)
	}
	r.log.Debug(ctx, "phase finished",
		logger.String("phase", string(p)),
		logger.Int("matched", r.result.Matched.Count()),
		logger.Int("consumed", int(r.ledger.Size())),
	)
	return nil
}

// available returns the records of a group that are not yet consumed.
func available[R any](g *index.Group[R], consumed func(id string) bool) []index.Ref[R] {
	if g == nil {
		return nil
	}
	var out []index.Ref[R]
	for _, ref := range g.Refs {
		if !consumed(ref.ID) {
			out = append(out, ref)
		}
	}
	return out
}

func ratingID(ref ratingRef) string { return "rating:" + ref.ID }
func reviewID(ref reviewRef) string { return "review:" + ref.ID }

func (r *run) consumedRating(id string) bool { return r.ledger.Seen("rating:" + id) }
func (r *run) consumedReview(id string) bool { return r.ledger.Seen("review:" + id) }

// merge records the pairing. It returns false if either record was already used.
func (r *run) merge(ctx context.Context, rating ratingRef, review reviewRef, tier string, score int) bool {
	if !consume.Pair(ctx, r.ledger, ratingID(rating), reviewID(review)) {
		return false
	}
	r.merged[ratingID(rating)] = struct{}{}
	r.merged[reviewID(review)] = struct{}{}

	entry := model.Merge(rating.Record, review.Record, tier, score)
	r.result.Matched[rating.RawName] = append(r.result.Matched[rating.RawName], entry)
	return true
}

func (r *run) reject(ctx context.Context, rej Rejection) {
	r.result.Rejections = append(r.result.Rejections, rej)
	r.log.Info(ctx, "match rejected",
		logger.String("phase", string(rej.Phase)),
		logger.String("rating", rej.RatingName),
		logger.String("review", rej.ReviewName),
		logger.String("reason", rej.Reason),
		logger.Int("score", rej.Score),
	)
}

// applyOverrides forces operator pairings. Every record under an override's
// names is withdrawn from automatic matching whether or not a pair merges.
func (r *run) applyOverrides(ctx context.Context, overrides []model.Override) error {
	for _, o := range overrides {
		rg, _ := r.ratings.Lookup(o.RatingsName, r.m.fold)
		vg, _ := r.reviews.Lookup(o.ReviewName, r.m.fold)
		rs := available(rg, r.consumedRating)
		vs := available(vg, r.consumedReview)

		if len(rs) == 0 || len(vs) == 0 {
			r.log.Warn(ctx, "override references unknown name",
				logger.String("ratings_name", o.RatingsName),
				logger.String("rmp_name", o.ReviewName),
				logger.Bool("rating_found", len(rs) > 0),
				logger.Bool("review_found", len(vs) > 0),
			)
			r.reject(ctx, Rejection{Phase: PhaseOverrides, RatingName: o.RatingsName, ReviewName: o.ReviewName, Reason: ReasonOverrideUnknownName})
			continue
		}

		choice := Disambiguate(rs, vs, r.m.naAsZero)
		r.result.PairsEvaluated += choice.Pairs
		if choice.OK && r.merge(ctx, rs[choice.Rating], vs[choice.Review], model.TierOverride, 0) {
			r.result.Counts.Override++
		} else {
			r.reject(ctx, Rejection{Phase: PhaseOverrides, RatingName: o.RatingsName, ReviewName: o.ReviewName, Reason: ReasonOverrideNoOverlap})
		}

		for _, ref := range rs {
			r.ledger.SeenAndRecord(ctx, ratingID(ref))
		}
		for _, ref := range vs {
			r.ledger.SeenAndRecord(ctx, reviewID(ref))
		}
	}
	return nil
}

// matchExact pairs names that normalize identically on both sides.
func (r *run) matchExact(ctx context.Context) error {
	ratings := r.ratings.Without(r.consumedRating)
	reviews := r.reviews.Without(r.consumedReview)

	for _, key := range ratings.Keys() {
		vg, ok := reviews.Get(key)
		if !ok {
			continue
		}
		rg, _ := ratings.Get(key)
		if len(rg.Refs) > 1 || len(vg.Refs) > 1 {
			r.log.Debug(ctx, "homonym group",
				logger.String("name", key),
				logger.Int("ratings", len(rg.Refs)),
				logger.Int("reviews", len(vg.Refs)),
			)
		}

		choice := Disambiguate(rg.Refs, vg.Refs, r.m.naAsZero)
		r.result.PairsEvaluated += choice.Pairs
		if !choice.OK {
			r.log.Debug(ctx, "exact name without course evidence", logger.String("name", key))
			continue
		}
		if r.merge(ctx, rg.Refs[choice.Rating], vg.Refs[choice.Review], model.TierExact, 100) {
			r.result.Counts.Direct++
		}
	}
	return nil
}

// matchFuzzy scores the remaining names, then gives every remaining rating
// record, name by name in sorted order, its best candidate with free records. Scoring reads a snapshot; only this
// coordinating loop consumes records.
func (r *run) matchFuzzy(ctx context.Context) error {
	ratings := r.ratings.Without(r.consumedRating)
	reviews := r.reviews.Without(r.consumedReview)
	if ratings.Len() == 0 || reviews.Len() == 0 {
		return nil
	}

	queries := make([]Query, 0, ratings.Len())
	for _, key := range ratings.Keys() {
		queries = append(queries, NewQuery(key))
	}
	targets := make([]Query, 0, reviews.Len())
	for _, key := range reviews.Keys() {
		targets = append(targets, NewQuery(key))
	}

	ranked, err := r.m.ranker.Rank(ctx, queries, targets, r.m.threshold, r.m.scorer)
	if err != nil {
		return fmt.Errorf("rank candidates: %w", err)
	}
	if len(ranked) != len(queries) {
		return fmt.Errorf("rank candidates: got %d results for %d names", len(ranked), len(queries))
	}

	for i, q := range queries {
		rg, _ := ratings.Get(q.Key)
		r.fuzzyName(ctx, rg, reviews, ranked[i])
	}
	return nil
}

// fuzzyName pairs the free records of one rating name with its ranked
// candidates. After each merge the walk restarts so leftover homonyms can take
// the next candidate with free records; a rejection ends the name.
func (r *run) fuzzyName(ctx context.Context, rg *index.Group[model.RatingRecord], reviews *index.Index[model.ReviewRecord], ranked []Candidate) {
	for {
		rs := available(rg, r.consumedRating)
		if len(rs) == 0 {
			return
		}

		var (
			best Candidate
			vg   *index.Group[model.ReviewRecord]
			vs   []reviewRef
		)
		for _, c := range ranked {
			g, _ := reviews.Get(c.Key)
			if vs = available(g, r.consumedReview); len(vs) > 0 {
				best, vg = c, g
				break
			}
		}
		if len(vs) == 0 {
			r.log.Debug(ctx, "no fuzzy candidate", logger.String("name", rg.Key))
			return
		}

		choice := Disambiguate(rs, vs, r.m.naAsZero)
		r.result.PairsEvaluated += choice.Pairs
		if choice.OK && r.merge(ctx, rs[choice.Rating], vs[choice.Review], model.TierFuzzy, best.Score) {
			r.result.Counts.Fuzzy++
			continue
		}
		r.reject(ctx, Rejection{
			Phase:      PhaseFuzzy,
			RatingName: rg.RawName,
			ReviewName: vg.RawName,
			Reason:     ReasonNoCourseOverlap,
			Score:      best.Score,
		})
		return
	}
}

// collectUnmatched gathers every record that was not merged, keyed by its raw name.
func (r *run) collectUnmatched(ratings model.Ratings, reviews model.Reviews) {
	r.result.UnmatchedRatings = make(model.Ratings)
	for raw, recs := range ratings {
		for pos, rec := range recs {
			if _, ok := r.merged["rating:"+index.RefID(raw, pos)]; !ok {
				r.result.UnmatchedRatings[raw] = append(r.result.UnmatchedRatings[raw], rec)
			}
		}
	}
	r.result.UnmatchedReviews = make(model.Reviews)
	for raw, recs := range reviews {
		for pos, rec := range recs {
			if _, ok := r.merged["review:"+index.RefID(raw, pos)]; !ok {
				r.result.UnmatchedReviews[raw] = append(r.result.UnmatchedReviews[raw], rec)
			}
		}
	}
	r.result.Counts.UnmatchedRatings = r.result.UnmatchedRatings.Count()
	r.result.Counts.UnmatchedReviews = r.result.UnmatchedReviews.Count()
}
