package matching_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/okian/profmatch/internal/domain/matching"
	"github.com/okian/profmatch/internal/domain/model"
	"github.com/okian/profmatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func rating(id string, courses ...string) model.RatingRecord {
	cr := make(map[string]model.Value, len(courses))
	for _, c := range courses {
		cr[c] = model.Num(4.0)
	}
	return model.RatingRecord{InstructorID: id, OverallRating: model.Num(4.0), TotalCount: 10, CourseRatings: cr}
}

func review(id string, count float64, courses ...string) model.ReviewRecord {
	return model.ReviewRecord{ID: id, Courses: courses, RatingsCount: model.Num(count), QualityRating: model.Num(4.1)}
}

func TestMatchEndToEnd(t *testing.T) {
	Convey("Given a matcher with default settings", t, func() {
		ctx := context.Background()
		m := matching.New()

		Convey("When a Last, First rating meets its First Last review", func() {
			ratings := model.Ratings{"Smith, John": {rating("1", "CS1336")}}
			reviews := model.Reviews{"john smith": {review("9", 10, "CS1336")}}

			res, err := m.Match(ctx, ratings, reviews, nil)

			Convey("Then the exact phase merges them and nothing is left over", func() {
				So(err, ShouldBeNil)
				So(res.Counts.Direct, ShouldEqual, 1)
				So(res.Counts.Fuzzy, ShouldEqual, 0)
				So(res.Matched["Smith, John"], ShouldHaveLength, 1)
				entry := res.Matched["Smith, John"][0]
				So(entry.InstructorID, ShouldEqual, "1")
				So(entry.ReviewID, ShouldEqual, "9")
				So(entry.Tier, ShouldEqual, model.TierExact)
				So(res.UnmatchedRatings, ShouldBeEmpty)
				So(res.UnmatchedReviews, ShouldBeEmpty)
				So(res.RunID, ShouldNotBeEmpty)
				So(res.Threshold, ShouldEqual, 80)
			})
		})

		Convey("When a long legal name meets a short review name", func() {
			ratings := model.Ratings{"Sanchez De La Rosa, Andres Ricardo": {rating("2", "EE3301")}}
			reviews := model.Reviews{"andres sanchez": {review("7", 3, "EE3301")}}

			res, err := m.Match(ctx, ratings, reviews, nil)

			Convey("Then there is no exact match but the fuzzy phase pairs them", func() {
				So(err, ShouldBeNil)
				So(res.Counts.Direct, ShouldEqual, 0)
				So(res.Counts.Fuzzy, ShouldEqual, 1)
				entry := res.Matched["Sanchez De La Rosa, Andres Ricardo"][0]
				So(entry.Tier, ShouldEqual, model.TierFuzzy)
				So(entry.Score, ShouldEqual, 100)
				So(res.Counts.UnmatchedRatings, ShouldEqual, 0)
				So(res.Counts.UnmatchedReviews, ShouldEqual, 0)
			})
		})

		Convey("When two rating homonyms share one review", func() {
			ratings := model.Ratings{"John Smith": {rating("1", "MATH2413"), rating("2", "CS1336")}}
			reviews := model.Reviews{"john smith": {review("9", 10, "CS1336")}}

			res, err := m.Match(ctx, ratings, reviews, nil)

			Convey("Then the instructor sharing a course is matched and the other is left", func() {
				So(err, ShouldBeNil)
				So(res.Counts.Direct, ShouldEqual, 1)
				So(res.Matched["John Smith"], ShouldHaveLength, 1)
				So(res.Matched["John Smith"][0].InstructorID, ShouldEqual, "2")
				So(res.UnmatchedRatings["John Smith"], ShouldHaveLength, 1)
				So(res.UnmatchedRatings["John Smith"][0].InstructorID, ShouldEqual, "1")
				So(res.UnmatchedReviews, ShouldBeEmpty)
			})
		})

		Convey("When rating homonyms have close but different review spellings", func() {
			ratings := model.Ratings{"Smith, John": {rating("1", "CS1336"), rating("2", "MATH2413")}}
			reviews := model.Reviews{
				"jon smith":    {review("A", 10, "CS1336")},
				"johnny smith": {review("B", 4, "MATH2413")},
			}

			res, err := m.Match(ctx, ratings, reviews, nil)

			Convey("Then each rating record takes the next candidate with free records", func() {
				So(err, ShouldBeNil)
				So(res.Counts.Fuzzy, ShouldEqual, 2)
				So(res.Rejections, ShouldBeEmpty)
				entries := res.Matched["Smith, John"]
				So(entries, ShouldHaveLength, 2)
				So(entries[0].InstructorID, ShouldEqual, "1")
				So(entries[0].ReviewID, ShouldEqual, "A")
				So(entries[1].InstructorID, ShouldEqual, "2")
				So(entries[1].ReviewID, ShouldEqual, "B")
				So(entries[1].Score, ShouldEqual, 91)
				So(res.UnmatchedRatings, ShouldBeEmpty)
				So(res.UnmatchedReviews, ShouldBeEmpty)
			})
		})

		Convey("When two review profiles compete for one rating", func() {
			ratings := model.Ratings{"Smith, John": {rating("1", "CS1336")}}
			reviews := model.Reviews{"John Smith": {review("popular", 500, "MATH1000"), review("relevant", 3, "CS1336")}}

			res, err := m.Match(ctx, ratings, reviews, nil)

			Convey("Then the profile sharing a course wins regardless of popularity", func() {
				So(err, ShouldBeNil)
				So(res.Matched["Smith, John"][0].ReviewID, ShouldEqual, "relevant")
				So(res.UnmatchedReviews["John Smith"], ShouldHaveLength, 1)
				So(res.UnmatchedReviews["John Smith"][0].ID, ShouldEqual, "popular")
			})
		})
	})
}

func TestMatchFuzzy(t *testing.T) {
	Convey("Given a scorer that rates every pair at exactly 80", t, func() {
		ctx := context.Background()
		fixed := func(a, b string) int { return 80 }
		ratings := model.Ratings{"Alpha, Ann": {rating("1", "CS1")}}
		reviews := model.Reviews{"zed qux": {review("9", 1, "BIO2")}}

		Convey("When the threshold is 80", func() {
			res, err := matching.New(matching.WithScorer(fixed), matching.WithThreshold(80)).Match(ctx, ratings, reviews, nil)

			Convey("Then the pair is accepted", func() {
				So(err, ShouldBeNil)
				So(res.Counts.Fuzzy, ShouldEqual, 1)
				So(res.Matched["Alpha, Ann"][0].Score, ShouldEqual, 80)
			})
		})

		Convey("When the threshold is 81", func() {
			res, err := matching.New(matching.WithScorer(fixed), matching.WithThreshold(81)).Match(ctx, ratings, reviews, nil)

			Convey("Then the pair is not a candidate", func() {
				So(err, ShouldBeNil)
				So(res.Counts.Fuzzy, ShouldEqual, 0)
				So(res.Rejections, ShouldBeEmpty)
				So(res.Counts.UnmatchedRatings, ShouldEqual, 1)
				So(res.Counts.UnmatchedReviews, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a best fuzzy candidate without course evidence", t, func() {
		ctx := context.Background()
		var buf bytes.Buffer
		m := matching.New(matching.WithLogger(logger.New(&buf, slog.LevelDebug)))

		ratings := model.Ratings{"Adams, John": {rating("1", "CS1336")}}
		reviews := model.Reviews{
			"jon adams":  {review("7", 4, "BIO1000"), review("8", 9, "HIST2000")},
			"john adamz": {review("5", 1, "CS1336")},
		}

		res, err := m.Match(ctx, ratings, reviews, nil)

		Convey("Then the rating is rejected without falling back to a weaker name", func() {
			So(err, ShouldBeNil)
			So(res.Counts.Fuzzy, ShouldEqual, 0)
			So(res.Rejections, ShouldHaveLength, 1)
			So(res.Rejections[0].Reason, ShouldEqual, matching.ReasonNoCourseOverlap)
			So(res.Rejections[0].ReviewName, ShouldEqual, "jon adams")
			So(res.Rejections[0].Score, ShouldEqual, 95)
			So(res.Counts.Rejected, ShouldEqual, 1)
			So(res.UnmatchedRatings["Adams, John"], ShouldHaveLength, 1)
			So(res.Counts.UnmatchedReviews, ShouldEqual, 3)
		})

		Convey("Then the rejection is logged apart from missing candidates", func() {
			So(buf.String(), ShouldContainSubstring, "match rejected")
			So(buf.String(), ShouldContainSubstring, matching.ReasonNoCourseOverlap)
		})
	})

	Convey("Given two rating names competing for one review name", t, func() {
		ctx := context.Background()
		ratings := model.Ratings{
			"Brown, Rob": {rating("2", "CS1")},
			"Brown, Bob": {rating("1", "CS1")},
		}
		reviews := model.Reviews{"bob browne": {review("9", 1, "CS1")}}

		res, err := matching.New().Match(ctx, ratings, reviews, nil)

		Convey("Then the first rating name in sorted order takes it", func() {
			So(err, ShouldBeNil)
			So(res.Counts.Fuzzy, ShouldEqual, 1)
			So(res.Matched["Brown, Bob"], ShouldHaveLength, 1)
			So(res.Matched["Brown, Bob"][0].Score, ShouldEqual, 95)
			So(res.UnmatchedRatings["Brown, Rob"], ShouldHaveLength, 1)
			So(res.Rejections, ShouldBeEmpty)
		})
	})
}

func TestMatchOverrides(t *testing.T) {
	Convey("Given operator overrides", t, func() {
		ctx := context.Background()
		m := matching.New()

		Convey("When an override pairs dissimilar names", func() {
			ratings := model.Ratings{"Doe, Jane": {rating("5", "CS1")}}
			reviews := model.Reviews{"jd smithers": {review("6", 2, "PHYS9")}}
			overrides := []model.Override{{RatingsName: "Doe, Jane", ReviewName: "jd smithers"}}

			res, err := m.Match(ctx, ratings, reviews, overrides)

			Convey("Then they merge in the override phase", func() {
				So(err, ShouldBeNil)
				So(res.Counts.Override, ShouldEqual, 1)
				So(res.Matched["Doe, Jane"][0].Tier, ShouldEqual, model.TierOverride)
				So(res.Counts.Matched(), ShouldEqual, 1)
			})
		})

		Convey("When an override names an unknown instructor", func() {
			ratings := model.Ratings{"Smith, John": {rating("1", "CS1336")}}
			reviews := model.Reviews{"john smith": {review("9", 10, "CS1336")}}
			overrides := []model.Override{{RatingsName: "Nobody, Here", ReviewName: "john smith"}}

			res, err := m.Match(ctx, ratings, reviews, overrides)

			Convey("Then it is reported and the run continues", func() {
				So(err, ShouldBeNil)
				So(res.Rejections, ShouldHaveLength, 1)
				So(res.Rejections[0].Reason, ShouldEqual, matching.ReasonOverrideUnknownName)
				So(res.Counts.Direct, ShouldEqual, 1)
			})
		})

		Convey("When an override fails for lack of course evidence", func() {
			ratings := model.Ratings{"Park, Kim": {rating("10", "BIO1100")}}
			reviews := model.Reviews{
				"k park":   {review("20", 5, "HIST3300"), review("21", 2, "ART4400")},
				"kim park": {review("22", 1, "BIO1100")},
			}
			overrides := []model.Override{{RatingsName: "Park, Kim", ReviewName: "k park"}}

			res, err := m.Match(ctx, ratings, reviews, overrides)

			Convey("Then its records are withdrawn from later phases but still reported", func() {
				So(err, ShouldBeNil)
				So(res.Counts.Override, ShouldEqual, 0)
				So(res.Counts.Direct, ShouldEqual, 0)
				So(res.Counts.Fuzzy, ShouldEqual, 0)
				So(res.Rejections, ShouldHaveLength, 1)
				So(res.Rejections[0].Reason, ShouldEqual, matching.ReasonOverrideNoOverlap)
				So(res.UnmatchedRatings["Park, Kim"], ShouldHaveLength, 1)
				So(res.UnmatchedReviews["k park"], ShouldHaveLength, 2)
				So(res.UnmatchedReviews["kim park"], ShouldHaveLength, 1)
			})
		})
	})
}

func TestMatchInvariants(t *testing.T) {
	Convey("Given a mixed dataset", t, func() {
		ctx := context.Background()
		ratings := model.Ratings{
			"Smith, John":                        {rating("1", "CS1336")},
			"John Smith":                         {rating("2", "MATH2413")},
			"Busso Recabarren, Carlos":           {rating("3", "EE4325")},
			"Sanchez De La Rosa, Andres Ricardo": {rating("4", "CS2305")},
			"Lee, Ann":                           {rating("5", "BIO2311")},
			"Nguyen, Thi":                        {rating("6", "CHEM1311")},
		}
		reviews := model.Reviews{
			"john smith":     {review("a", 10, "CS1336"), review("b", 4, "MATH2413")},
			"carlos busso":   {review("c", 7, "EE4325")},
			"andres sanchez": {review("d", 2, "CS2305")},
			"ann lee":        {review("e", 1, "BIO2311")},
			"zoe quinn":      {review("f", 3, "ART1301")},
		}
		overrides := []model.Override{{RatingsName: "Nobody", ReviewName: "nobody"}}

		res, err := matching.New().Match(ctx, ratings, reviews, overrides)
		So(err, ShouldBeNil)

		Convey("Then no record appears in two entries or in both outputs", func() {
			seenRatings := map[string]int{}
			seenReviews := map[string]int{}
			for _, entries := range res.Matched {
				for _, e := range entries {
					seenRatings[e.InstructorID]++
					seenReviews[e.ReviewID]++
				}
			}
			for _, n := range seenRatings {
				So(n, ShouldEqual, 1)
			}
			for _, n := range seenReviews {
				So(n, ShouldEqual, 1)
			}
			for _, recs := range res.UnmatchedRatings {
				for _, rec := range recs {
					So(seenRatings[rec.InstructorID], ShouldEqual, 0)
				}
			}
			for _, recs := range res.UnmatchedReviews {
				for _, rec := range recs {
					So(seenReviews[rec.ID], ShouldEqual, 0)
				}
			}
			So(res.Matched.Count()+res.Counts.UnmatchedRatings, ShouldEqual, ratings.Count())
			So(res.Matched.Count()+res.Counts.UnmatchedReviews, ShouldEqual, reviews.Count())
		})

		Convey("Then each resolution lands in the expected phase", func() {
			So(res.Counts.Direct, ShouldEqual, 2)
			So(res.Counts.Fuzzy, ShouldEqual, 3)
			So(res.UnmatchedRatings, ShouldContainKey, "Nguyen, Thi")
			So(res.UnmatchedReviews, ShouldContainKey, "zoe quinn")
			So(res.Durations, ShouldContainKey, matching.PhaseFuzzy)
		})

		Convey("Then a second run produces the same pairing", func() {
			again, err := matching.New().Match(ctx, ratings, reviews, overrides)
			So(err, ShouldBeNil)
			So(again.Matched, ShouldResemble, res.Matched)
			So(again.Counts, ShouldResemble, res.Counts)
			So(again.RunID, ShouldNotEqual, res.RunID)
		})
	})
}

func TestMatchPreconditions(t *testing.T) {
	Convey("Given a matcher", t, func() {
		m := matching.New()

		Convey("When an input mapping is nil", func() {
			_, err := m.Match(context.Background(), nil, model.Reviews{}, nil)
			So(errors.Is(err, matching.ErrNilInput), ShouldBeTrue)
			_, err = m.Match(context.Background(), model.Ratings{}, nil, nil)
			So(errors.Is(err, matching.ErrNilInput), ShouldBeTrue)
		})

		Convey("When both inputs are empty", func() {
			res, err := m.Match(context.Background(), model.Ratings{}, model.Reviews{}, nil)
			So(err, ShouldBeNil)
			So(res.Matched, ShouldBeEmpty)
			So(res.Counts, ShouldResemble, matching.Counts{})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := m.Match(ctx, model.Ratings{"a b": {rating("1")}}, model.Reviews{}, nil)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})

		Convey("When the threshold option is out of range", func() {
			So(matching.New(matching.WithThreshold(150)).Threshold(), ShouldEqual, 100)
			So(matching.New(matching.WithThreshold(-3)).Threshold(), ShouldEqual, 0)
		})
	})
}
