// Package model contains domain models passed between layers.
package model

import (
	"maps"
	"slices"
)

// Match tiers recorded on merged entries.
const (
	TierOverride = "override"
	TierExact    = "exact"
	TierFuzzy    = "fuzzy"
)

// RatingRecord is one grade-distribution rating for an instructor id.
type RatingRecord struct {
	InstructorID  string           `json:"instructor_id"`
	OverallRating Value            `json:"overall_grade_rating"`
	TotalCount    int              `json:"total_grade_count"`
	CourseRatings map[string]Value `json:"course_ratings"`
}

// Courses returns the sorted course codes carrying a rating.
func (r RatingRecord) Courses() []string {
	return slices.Sorted(maps.Keys(r.CourseRatings))
}

// ReviewRecord is one review-site profile.
type ReviewRecord struct {
	ID               string   `json:"rmp_id"`
	Department       string   `json:"department"`
	URL              string   `json:"url"`
	QualityRating    Value    `json:"quality_rating"`
	DifficultyRating Value    `json:"difficulty_rating"`
	WouldTakeAgain   Value    `json:"would_take_again"`
	Courses          []string `json:"courses"`
	Tags             []string `json:"tags"`
	RatingsCount     Value    `json:"ratings_count"`
	OriginalFormat   string   `json:"original_rmp_format,omitempty"`
	LastUpdated      string   `json:"last_updated,omitempty"`
}

// MatchedEntry is the merge of one RatingRecord and one ReviewRecord.
// Review course codes are not carried; they only serve as matching evidence.
type MatchedEntry struct {
	// Identity and grades, from the rating side.
	InstructorID  string           `json:"instructor_id"`
	OverallRating Value            `json:"overall_grade_rating"`
	TotalCount    int              `json:"total_grade_count"`
	CourseRatings map[string]Value `json:"course_ratings"`

	// Profile and popularity, from the review side.
	ReviewID         string   `json:"rmp_id"`
	Department       string   `json:"department"`
	URL              string   `json:"url"`
	QualityRating    Value    `json:"quality_rating"`
	DifficultyRating Value    `json:"difficulty_rating"`
	WouldTakeAgain   Value    `json:"would_take_again"`
	Tags             []string `json:"tags"`
	RatingsCount     Value    `json:"ratings_count"`
	OriginalFormat   string   `json:"original_rmp_format,omitempty"`
	LastUpdated      string   `json:"last_updated,omitempty"`

	// Provenance.
	Tier  string `json:"match_tier,omitempty"`
	Score int    `json:"match_score,omitempty"`
}

// Merge combines a rating and a review into one entry.
// Rating-side fields own identity and grades; review-side fields own the
// profile and popularity. Maps and slices are copied.
func Merge(rating RatingRecord, review ReviewRecord, tier string, score int) MatchedEntry {
	return MatchedEntry{
		InstructorID:  rating.InstructorID,
		OverallRating: rating.OverallRating,
		TotalCount:    rating.TotalCount,
		CourseRatings: maps.Clone(rating.CourseRatings),

		ReviewID:         review.ID,
		Department:       review.Department,
		URL:              review.URL,
		QualityRating:    review.QualityRating,
		DifficultyRating: review.DifficultyRating,
		WouldTakeAgain:   review.WouldTakeAgain,
		Tags:             slices.Clone(review.Tags),
		RatingsCount:     review.RatingsCount,
		OriginalFormat:   review.OriginalFormat,
		LastUpdated:      review.LastUpdated,

		Tier:  tier,
		Score: score,
	}
}

// Override is an operator-supplied forced pairing.
type Override struct {
	RatingsName string `json:"ratings_name"`
	ReviewName  string `json:"rmp_name"`
}

// Ratings maps a raw name to every rating record published under it.
type Ratings map[string][]RatingRecord

// Reviews maps a raw name to every review profile published under it.
type Reviews map[string][]ReviewRecord

// Matched maps a raw rating-side name to its merged entries.
type Matched map[string][]MatchedEntry

// Count returns the total number of records across all names.
func (r Ratings) Count() int {
	n := 0
	for _, recs := range r {
		n += len(recs)
	}
	return n
}

// Count returns the total number of records across all names.
func (r Reviews) Count() int {
	n := 0
	for _, recs := range r {
		n += len(recs)
	}
	return n
}

// Count returns the total number of entries across all names.
func (m Matched) Count() int {
	n := 0
	for _, entries := range m {
		n += len(entries)
	}
	return n
}
