package matching

import (
	"github.com/okian/profmatch/internal/domain/evidence"
	"github.com/okian/profmatch/internal/domain/index"
	"github.com/okian/profmatch/internal/domain/model"
)

// Choice is the outcome of Disambiguate.
type Choice struct {
	Rating int // index into the rating candidates
	Review int // index into the review candidates
	Pairs  int // pairs evaluated
	OK     bool
}

// Disambiguate picks one rating/review pair from two candidate lists.
//
// One candidate on each side merges directly. Otherwise every pair is
// checked for course overlap and, among overlapping pairs, the review with
// the highest ratings count wins; the first such pair wins ties. A review
// count of "N/A" never beats a number, or counts as 0 when naAsZero is set.
// No overlapping pair means no choice.
func Disambiguate(
	ratings []index.Ref[model.RatingRecord],
	reviews []index.Ref[model.ReviewRecord],
	naAsZero bool,
) Choice {
	if len(ratings) == 0 || len(reviews) == 0 {
		return Choice{}
	}
	if len(ratings) == 1 && len(reviews) == 1 {
		return Choice{Rating: 0, Review: 0, OK: true}
	}

	best := Choice{}
	pairs := 0
	for ri := range ratings {
		courses := ratings[ri].Record.Courses()
		for vi := range reviews {
			pairs++
			if !evidence.HasOverlap(courses, reviews[vi].Record.Courses) {
				continue
			}
			if !best.OK || reviews[vi].Record.RatingsCount.Better(reviews[best.Review].Record.RatingsCount, naAsZero) {
				best = Choice{Rating: ri, Review: vi, OK: true}
			}
		}
	}
	best.Pairs = pairs
	return best
}
