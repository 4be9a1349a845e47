package matching

import (
	"time"

	"github.com/okian/profmatch/internal/domain/model"
)

// Phase names a pipeline stage.
type Phase string

// Pipeline phases, in execution order.
const (
	PhaseOverrides Phase = "overrides"
	PhaseExact     Phase = "exact"
	PhaseFuzzy     Phase = "fuzzy"
)

// Rejection reasons.
const (
	// ReasonNoCourseOverlap: a fuzzy candidate was found but no pair shared course evidence.
	ReasonNoCourseOverlap = "no_course_overlap"
	// ReasonOverrideUnknownName: an override named a record that does not exist or is already used.
	ReasonOverrideUnknownName = "override_unknown_name"
	// ReasonOverrideNoOverlap: both override names exist but no pair shared course evidence.
	ReasonOverrideNoOverlap = "override_no_overlap"
)

// Rejection explains why a pairing attempt produced no merge.
type Rejection struct {
	Phase      Phase  `json:"phase"`
	RatingName string `json:"ratings_name"`
	ReviewName string `json:"rmp_name,omitempty"`
	Reason     string `json:"reason"`
	Score      int    `json:"score,omitempty"`
}

// Counts summarizes a run.
type Counts struct {
	Override         int `json:"override"`
	Direct           int `json:"direct"`
	Fuzzy            int `json:"fuzzy"`
	Rejected         int `json:"rejected"`
	UnmatchedRatings int `json:"unmatched_ratings"`
	UnmatchedReviews int `json:"unmatched_reviews"`
}

// Matched returns the number of merged entries.
func (c Counts) Matched() int {
	return c.Override + c.Direct + c.Fuzzy
}

// Result is the output of one pipeline run.
type Result struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Threshold  int       `json:"threshold"`

	Matched          model.Matched `json:"-"`
	UnmatchedRatings model.Ratings `json:"-"`
	UnmatchedReviews model.Reviews `json:"-"`

	Counts         Counts                  `json:"counts"`
	Rejections     []Rejection             `json:"rejections"`
	PairsEvaluated int                     `json:"pairs_evaluated"`
	Durations      map[Phase]time.Duration `json:"-"`
}

// DurationsMS returns phase durations in milliseconds.
func (r *Result) DurationsMS() map[Phase]float64 {
	out := make(map[Phase]float64, len(r.Durations))
	for p, d := range r.Durations {
		out[p] = float64(d.Microseconds()) / 1000
	}
	return out
}
