package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/profmatch/internal/adapters/repository"
	"github.com/okian/profmatch/internal/domain/matching"
	"github.com/okian/profmatch/internal/domain/model"
)

func sampleResult() *matching.Result {
	return &matching.Result{
		RunID: "run-1",
		Matched: model.Matched{
			"Sánchez, Andrés": {{InstructorID: "as1", ReviewID: "10"}},
			"Smith, John":     {{InstructorID: "js1", ReviewID: "11"}},
		},
		UnmatchedRatings: model.Ratings{"Zed, Ann": nil, "Doe, Jane": nil},
		UnmatchedReviews: model.Reviews{"Bob Lee": nil},
	}
}

func TestRunStore_Empty(t *testing.T) {
	ctx := context.Background()
	store := repository.NewRunStore()

	if _, err := store.Last(ctx); !errors.Is(err, repository.ErrNoRun) {
		t.Errorf("expected ErrNoRun, got %v", err)
	}
	if _, err := store.Match(ctx, "Smith, John"); !errors.Is(err, repository.ErrNoRun) {
		t.Errorf("expected ErrNoRun, got %v", err)
	}
	store.Put(ctx, nil)
	if _, err := store.Last(ctx); !errors.Is(err, repository.ErrNoRun) {
		t.Errorf("expected nil result to be ignored, got %v", err)
	}
}

func TestRunStore_Lookups(t *testing.T) {
	ctx := context.Background()
	store := repository.NewRunStore()
	store.Put(ctx, sampleResult())

	last, err := store.Last(ctx)
	if err != nil || last.RunID != "run-1" {
		t.Fatalf("expected run-1, got %v (%v)", last, err)
	}

	tests := []struct {
		name string
		want string
	}{
		{"Smith, John", "js1"},
		{"john smith", "js1"},
		{"JOHN  SMITH", "js1"},
		{"andres sanchez", "as1"},
	}
	for _, tt := range tests {
		got, err := store.Match(ctx, tt.name)
		if err != nil {
			t.Errorf("%q: unexpected error %v", tt.name, err)
			continue
		}
		if len(got) != 1 || got[0].InstructorID != tt.want {
			t.Errorf("%q: expected %s, got %+v", tt.name, tt.want, got)
		}
	}

	if _, err := store.Match(ctx, "nobody here"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	ratings, err := store.Unmatched(ctx, repository.SourceRatings)
	if err != nil || len(ratings) != 2 || ratings[0] != "Doe, Jane" {
		t.Errorf("unexpected unmatched ratings %v (%v)", ratings, err)
	}
	reviews, err := store.Unmatched(ctx, repository.SourceReviews)
	if err != nil || len(reviews) != 1 {
		t.Errorf("unexpected unmatched reviews %v (%v)", reviews, err)
	}
	if _, err := store.Unmatched(ctx, "other"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown source, got %v", err)
	}
}

func TestRunStore_WithoutFolding(t *testing.T) {
	ctx := context.Background()
	store := repository.NewRunStore(repository.WithFoldAccents(false))
	store.Put(ctx, sampleResult())

	if _, err := store.Match(ctx, "andres sanchez"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected accent-sensitive lookup to miss, got %v", err)
	}
	if _, err := store.Match(ctx, "andrés sánchez"); err != nil {
		t.Errorf("expected exact accented lookup to hit, got %v", err)
	}
}

func TestRunStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := repository.NewRunStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.Put(ctx, sampleResult())
		}()
		go func() {
			defer wg.Done()
			_, _ = store.Match(ctx, "john smith")
		}()
	}
	wg.Wait()

	if _, err := store.Match(ctx, "john smith"); err != nil {
		t.Errorf("expected lookup to succeed after concurrent puts, got %v", err)
	}
}
