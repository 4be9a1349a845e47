package reviews_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/okian/profmatch/internal/adapters/reviews"
	"github.com/okian/profmatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const page1 = `{"data": {"search": {"teachers": {
	"edges": [
		{"cursor": "c1", "node": {"legacyId": 101, "firstName": "John", "lastName": "Smith", "department": "Computer Science",
			"avgRating": 4.2, "avgDifficulty": 2.5, "numRatings": 12, "wouldTakeAgainPercent": 87.5,
			"courseCodes": [{"courseName": "cs-1336", "courseCount": 3}, {"courseName": "CS 1336", "courseCount": 1}, {"courseName": "cs_2305", "courseCount": 2}],
			"teacherRatingTags": [
				{"tagName": "Caring", "tagCount": 2}, {"tagName": "Tough grader", "tagCount": 9},
				{"tagName": "Funny", "tagCount": 5}, {"tagName": "Clear", "tagCount": 5},
				{"tagName": "Inspirational", "tagCount": 1}, {"tagName": "Lecture heavy", "tagCount": 7}
			]}}
	],
	"pageInfo": {"hasNextPage": true, "endCursor": "c1"},
	"resultCount": 2
}}}}`

const page2 = `{"data": {"search": {"teachers": {
	"edges": [
		{"cursor": "c2", "node": {"legacyId": 202, "firstName": "john ", "lastName": " SMITH", "department": "Mathematics",
			"avgRating": 0, "avgDifficulty": 0, "numRatings": 0, "wouldTakeAgainPercent": -1,
			"courseCodes": [], "teacherRatingTags": []}}
	],
	"pageInfo": {"hasNextPage": false, "endCursor": "c2"},
	"resultCount": 2
}}}}`

type recorded struct {
	mu      sync.Mutex
	cursors []string
	auth    []string
}

func newServer(rec *recorded, status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Variables struct {
				Count  int    `json:"count"`
				Cursor string `json:"cursor"`
				Query  struct {
					SchoolID string `json:"schoolID"`
				} `json:"query"`
			} `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		rec.mu.Lock()
		rec.cursors = append(rec.cursors, body.Variables.Cursor)
		rec.auth = append(rec.auth, r.Header.Get("Authorization"))
		rec.mu.Unlock()

		if status != http.StatusOK {
			http.Error(w, "denied", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if body.Variables.Cursor == "" {
			_, _ = w.Write([]byte(page1))
			return
		}
		_, _ = w.Write([]byte(page2))
	}))
}

func TestFetch(t *testing.T) {
	Convey("Given a paginated search endpoint", t, func() {
		rec := &recorded{}
		srv := newServer(rec, http.StatusOK)
		defer srv.Close()

		fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		client := reviews.NewClient(reviews.Config{
			Endpoint:      srv.URL,
			SchoolID:      "U2Nob29sLTEyNzM=",
			Authorization: "Basic dGVzdDp0ZXN0",
			ProfileBase:   "https://reviews.example/professor/",
		}, reviews.WithClock(func() time.Time { return fixed }))

		Convey("When every page is fetched", func() {
			out, err := client.Fetch(context.Background())
			So(err, ShouldBeNil)

			Convey("Then pages are followed by end cursor with the auth header", func() {
				So(rec.cursors, ShouldResemble, []string{"", "c1"})
				So(rec.auth, ShouldResemble, []string{"Basic dGVzdDp0ZXN0", "Basic dGVzdDp0ZXN0"})
			})

			Convey("Then same-named profiles accumulate under one key", func() {
				So(out, ShouldHaveLength, 1)
				So(out["john smith"], ShouldHaveLength, 2)
			})

			Convey("Then the first profile is fully shaped", func() {
				r := out["john smith"][0]
				So(r.ID, ShouldEqual, "101")
				So(r.URL, ShouldEqual, "https://reviews.example/professor/101")
				So(r.Department, ShouldEqual, "Computer Science")
				So(r.QualityRating, ShouldResemble, model.Num(4.2))
				So(r.WouldTakeAgain, ShouldResemble, model.Num(88))
				So(r.RatingsCount, ShouldResemble, model.Num(12))
				So(r.Courses, ShouldResemble, []string{"CS1336", "CS2305"})
				So(r.Tags, ShouldResemble, []string{"Tough grader", "Lecture heavy", "Funny", "Clear", "Caring"})
				So(r.OriginalFormat, ShouldEqual, "John Smith")
				So(r.LastUpdated, ShouldEqual, "2026-01-02T03:04:05Z")
			})

			Convey("Then a negative would-take-again becomes N/A", func() {
				r := out["john smith"][1]
				So(r.WouldTakeAgain.Valid, ShouldBeFalse)
				So(r.Courses, ShouldBeEmpty)
				So(r.Tags, ShouldBeEmpty)
			})
		})
	})

	Convey("Given an endpoint that refuses the request", t, func() {
		rec := &recorded{}
		srv := newServer(rec, http.StatusForbidden)
		defer srv.Close()

		_, err := reviews.NewClient(reviews.Config{Endpoint: srv.URL}).Fetch(context.Background())

		Convey("Then ErrHTTPStatus is returned", func() {
			So(errors.Is(err, reviews.ErrHTTPStatus), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "403")
		})
	})

	Convey("Given a cancelled context", t, func() {
		rec := &recorded{}
		srv := newServer(rec, http.StatusOK)
		defer srv.Close()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := reviews.NewClient(reviews.Config{Endpoint: srv.URL}).Fetch(ctx)

		Convey("Then the context error is returned", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestNormalizeCourse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"cs-1336", "CS1336"},
		{"CS 1336", "CS1336"},
		{"math_2413", "MATH2413"},
		{" ", ""},
	}
	for _, tt := range tests {
		if got := reviews.NormalizeCourse(tt.in); got != tt.want {
			t.Errorf("NormalizeCourse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
