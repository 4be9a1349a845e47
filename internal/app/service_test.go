package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/profmatch/internal/app"
	"github.com/okian/profmatch/internal/adapters/repository"
	"github.com/okian/profmatch/internal/config"
	"github.com/okian/profmatch/internal/domain/model"
	"github.com/okian/profmatch/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

const ratingsFixture = `{
  "John P. Cole": {"instructor_id": "jc1", "overall_grade_rating": 4.5, "total_grade_count": 20, "course_ratings": {"CS1336": 4.5}},
  "Smith, Jon": {"instructor_id": "js1", "overall_grade_rating": 3.9, "total_grade_count": 8, "course_ratings": {"MATH2413": 3.9}},
  "Ann Zed": {"instructor_id": "az1", "overall_grade_rating": "N/A", "total_grade_count": 0, "course_ratings": {}}
}`

const reviewsFixture = `{
  "john cole": {"rmp_id": "77", "department": "Computer Science", "url": "https://example.test/77",
    "quality_rating": 4.1, "difficulty_rating": 3.0, "would_take_again": 80, "courses": ["CS1336"], "tags": ["Caring"], "ratings_count": 12},
  "john smith": {"rmp_id": "78", "department": "Mathematics", "url": "https://example.test/78",
    "quality_rating": 3.0, "difficulty_rating": 4.0, "would_take_again": "N/A", "courses": ["MATH2413"], "tags": [], "ratings_count": 5},
  "bob ray": {"rmp_id": "79", "department": "Physics", "url": "https://example.test/79",
    "quality_rating": 2.0, "difficulty_rating": 2.0, "would_take_again": 50, "courses": ["PHYS2325"], "tags": [], "ratings_count": 3}
}`

type fakeFetcher struct {
	reviews model.Reviews
	err     error
}

func (f *fakeFetcher) Fetch(context.Context) (model.Reviews, error) {
	return f.reviews, f.err
}

func testConfig(dir string) *config.Config {
	cfg := config.New()
	cfg.WorkerCount = 1
	cfg.RatingsPath = filepath.Join(dir, "ratings.json")
	cfg.ReviewsPath = filepath.Join(dir, "reviews.json")
	cfg.OverridesPath = filepath.Join(dir, "overrides.json")
	cfg.MatchedPath = filepath.Join(dir, "matched.json")
	cfg.UnmatchedRatingsPath = filepath.Join(dir, "unmatched_ratings.json")
	cfg.UnmatchedReviewsPath = filepath.Join(dir, "unmatched_reviews.json")
	cfg.GradesDir = filepath.Join(dir, "grades")
	cfg.SectionsDir = filepath.Join(dir, "sections")
	return cfg
}

func write(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithConfig(testConfig(t.TempDir())))
		defer svc.Stop()

		Convey("Operations before Start fail", func() {
			_, err := svc.Reconcile(context.Background())
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)

			_, err = svc.Match(context.Background(), "anyone")
			So(errors.Is(err, repository.ErrNoRun), ShouldBeTrue)
		})

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it should be marked as started", func() {
				So(svc.GetStats()["started"], ShouldEqual, true)
			})

			Convey("And stopping marks it stopped", func() {
				svc.Stop()
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_Reconcile(t *testing.T) {
	for _, workers := range []int{1, 4} {
		Convey("Given snapshots on disk", t, func() {
			dir := t.TempDir()
			cfg := testConfig(dir)
			cfg.WorkerCount = workers
			write(t, cfg.RatingsPath, ratingsFixture)
			write(t, cfg.ReviewsPath, reviewsFixture)

			ctx := context.Background()
			svc := service.New(service.WithConfig(cfg))
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			Convey("Reconcile merges exact and fuzzy pairs and writes every output", func() {
				res, err := svc.Reconcile(ctx)
				So(err, ShouldBeNil)
				So(res.Counts.Direct, ShouldEqual, 1)
				So(res.Counts.Fuzzy, ShouldEqual, 1)
				So(res.Counts.UnmatchedRatings, ShouldEqual, 1)
				So(res.Counts.UnmatchedReviews, ShouldEqual, 1)

				data, err := os.ReadFile(cfg.MatchedPath)
				So(err, ShouldBeNil)
				var matched map[string]json.RawMessage
				So(json.Unmarshal(data, &matched), ShouldBeNil)
				So(matched, ShouldContainKey, "John P. Cole")
				So(matched, ShouldContainKey, "Smith, Jon")

				_, err = os.Stat(cfg.UnmatchedRatingsPath)
				So(err, ShouldBeNil)
				_, err = os.Stat(cfg.UnmatchedReviewsPath)
				So(err, ShouldBeNil)

				Convey("and readers see the run", func() {
					entries, err := svc.Match(ctx, "cole, john")
					So(err, ShouldBeNil)
					So(entries, ShouldHaveLength, 1)
					So(entries[0].ReviewID, ShouldEqual, "77")
					So(entries[0].Tier, ShouldEqual, model.TierExact)

					names, err := svc.Unmatched(ctx, repository.SourceReviews)
					So(err, ShouldBeNil)
					So(names, ShouldResemble, []string{"bob ray"})

					last, err := svc.Last(ctx)
					So(err, ShouldBeNil)
					So(last.RunID, ShouldEqual, res.RunID)
					So(svc.GetStats()["lastRunId"], ShouldEqual, res.RunID)
				})
			})

			Convey("An override pairs names the pipeline would not", func() {
				write(t, cfg.OverridesPath, `[{"ratings_name": "Ann Zed", "rmp_name": "bob ray"}]`)
				res, err := svc.Reconcile(ctx)
				So(err, ShouldBeNil)
				So(res.Counts.Override, ShouldEqual, 1)
				So(res.Counts.UnmatchedRatings, ShouldEqual, 0)
			})

			Convey("A missing ratings snapshot is reported", func() {
				So(os.Remove(cfg.RatingsPath), ShouldBeNil)
				_, err := svc.Reconcile(ctx)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	}
}

func TestService_StartContextEnded(t *testing.T) {
	Convey("Given a parallel service whose start context has ended", t, func() {
		dir := t.TempDir()
		cfg := testConfig(dir)
		cfg.WorkerCount = 4
		write(t, cfg.RatingsPath, ratingsFixture)
		write(t, cfg.ReviewsPath, reviewsFixture)

		startCtx, cancel := context.WithCancel(context.Background())
		svc := service.New(service.WithConfig(cfg))
		So(svc.Start(startCtx), ShouldBeNil)
		cancel()

		Convey("Reconcile still completes and Stop returns", func() {
			done := make(chan error, 1)
			go func() {
				_, err := svc.Reconcile(context.Background())
				svc.Stop()
				done <- err
			}()
			select {
			case err := <-done:
				if err != nil {
					So(err.Error(), ShouldContainSubstring, "scoring pool stopped")
				}
			case <-time.After(5 * time.Second):
				t.Fatal("reconcile or stop blocked after the start context ended")
			}
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})
}

func TestService_Producers(t *testing.T) {
	Convey("Given a started service with a fake fetcher", t, func() {
		dir := t.TempDir()
		cfg := testConfig(dir)
		fetcher := &fakeFetcher{reviews: model.Reviews{
			"john cole": {{ID: "77", Courses: []string{"CS1336"}, Tags: []string{}}},
		}}
		ctx := context.Background()
		svc := service.New(service.WithConfig(cfg), service.WithFetcher(fetcher))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Scrape saves the reviews snapshot", func() {
			revs, err := svc.Scrape(ctx)
			So(err, ShouldBeNil)
			So(revs.Count(), ShouldEqual, 1)

			store := repository.NewFileStore(repository.Paths{Reviews: cfg.ReviewsPath})
			loaded, err := store.LoadReviews(ctx)
			So(err, ShouldBeNil)
			So(loaded["john cole"][0].ID, ShouldEqual, "77")
		})

		Convey("A failing fetch leaves no snapshot", func() {
			fetcher.err = errors.New("offline")
			_, err := svc.Scrape(ctx)
			So(err, ShouldNotBeNil)
			_, statErr := os.Stat(cfg.ReviewsPath)
			So(os.IsNotExist(statErr), ShouldBeTrue)
		})

		Convey("Aggregate saves the ratings snapshot", func() {
			write(t, filepath.Join(cfg.SectionsDir, "fall.json"),
				`[{"course_prefix": "cs", "course_number": 1336, "instructors": "John P Cole", "instructor_ids": "jc1"}]`)
			write(t, filepath.Join(cfg.GradesDir, "fall.csv"),
				"Subject,Catalog Nbr,Instructor 1,A,B\nCS,1336,\"Cole, John P\",10,10\n")

			ratings, err := svc.Aggregate(ctx)
			So(err, ShouldBeNil)
			So(ratings, ShouldContainKey, "john cole")

			store := repository.NewFileStore(repository.Paths{Ratings: cfg.RatingsPath})
			loaded, err := store.LoadRatings(ctx)
			So(err, ShouldBeNil)
			So(loaded["john cole"][0].InstructorID, ShouldEqual, "jc1")
		})
	})
}
