// Package repository persists reconciliation snapshots and serves the latest run.
package repository

import (
	"context"

	"github.com/okian/profmatch/internal/domain/model"
)

// Snapshot kinds, used in metrics and object keys.
const (
	KindRatings          = "ratings"
	KindReviews          = "reviews"
	KindOverrides        = "overrides"
	KindMatched          = "matched"
	KindUnmatchedRatings = "unmatched_ratings"
	KindUnmatchedReviews = "unmatched_reviews"
	KindParquet          = "parquet"
)

// Snapshots reads the pipeline inputs and writes its outputs.
type Snapshots interface {
	// LoadRatings returns ErrNotFound if the ratings snapshot does not exist.
	LoadRatings(ctx context.Context) (model.Ratings, error)
	// LoadReviews returns ErrNotFound if the reviews snapshot does not exist.
	LoadReviews(ctx context.Context) (model.Reviews, error)
	// LoadOverrides returns an empty list when no overrides file exists.
	LoadOverrides(ctx context.Context) ([]model.Override, error)

	SaveRatings(ctx context.Context, ratings model.Ratings) error
	SaveReviews(ctx context.Context, reviews model.Reviews) error
	SaveMatched(ctx context.Context, matched model.Matched) error
	SaveUnmatched(ctx context.Context, ratings model.Ratings, reviews model.Reviews) error
}

// Publisher copies a written snapshot file somewhere else.
type Publisher interface {
	Publish(ctx context.Context, kind, path string) error
}

// Paths locates every snapshot on disk. Empty output paths skip that write.
type Paths struct {
	Ratings          string
	Reviews          string
	Overrides        string
	Matched          string
	UnmatchedRatings string
	UnmatchedReviews string
	Parquet          string
}
