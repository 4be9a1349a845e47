// Package config defines process configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and PROFMATCH_* env vars.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Popularity policies for review counts that hold "N/A".
const (
	NAPopularitySkip = "skip"
	NAPopularityZero = "zero"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// FuzzyThreshold is the minimum similarity (0..100) accepted by the fuzzy phase.
	FuzzyThreshold int `koanf:"fuzzy_threshold"`

	// WorkerCount sets the number of fuzzy scoring workers. 1 scores sequentially.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the scoring job queue.
	QueueSize int `koanf:"queue_size"`

	// NAPopularity decides how "N/A" review counts compare: skip or zero.
	NAPopularity string `koanf:"na_popularity"`

	// FoldAccents strips diacritics from normalized index keys.
	FoldAccents bool `koanf:"fold_accents"`

	// Snapshot locations.
	RatingsPath          string `koanf:"ratings_path"`
	ReviewsPath          string `koanf:"reviews_path"`
	OverridesPath        string `koanf:"overrides_path"`
	MatchedPath          string `koanf:"matched_path"`
	UnmatchedRatingsPath string `koanf:"unmatched_ratings_path"`
	UnmatchedReviewsPath string `koanf:"unmatched_reviews_path"`
	ParquetPath          string `koanf:"parquet_path"`

	// Grade aggregation inputs.
	GradesDir   string `koanf:"grades_dir"`
	SectionsDir string `koanf:"sections_dir"`

	// Review fetcher.
	ReviewEndpoint   string `koanf:"review_endpoint"`
	ReviewSchoolID   string `koanf:"review_school_id"`
	ReviewAuth       string `koanf:"review_auth"`
	ReviewPageSize   int    `koanf:"review_page_size"`
	RequestTimeoutMS int    `koanf:"request_timeout_ms"`

	// S3 publishing; disabled when the bucket is empty.
	S3Bucket string `koanf:"s3_bucket"`
	S3Prefix string `koanf:"s3_prefix"`
	S3Region string `koanf:"s3_region"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		FuzzyThreshold:       80,
		WorkerCount:          runtime.NumCPU(),
		QueueSize:            10_000,
		NAPopularity:         NAPopularitySkip,
		FoldAccents:          true,
		RatingsPath:          "data/grade_ratings.json",
		ReviewsPath:          "data/rmp_data.json",
		OverridesPath:        "data/manual_matches.json",
		MatchedPath:          "data/matched_professor_data.json",
		UnmatchedRatingsPath: "data/unmatched_ratings.json",
		UnmatchedReviewsPath: "data/unmatched_reviews.json",
		ParquetPath:          "",
		GradesDir:            "data/grades",
		SectionsDir:          "data/sections",
		ReviewEndpoint:       "https://www.ratemyprofessors.com/graphql",
		ReviewSchoolID:       "U2Nob29sLTEyNzM=",
		ReviewAuth:           "Basic dGVzdDp0ZXN0",
		ReviewPageSize:       1000,
		RequestTimeoutMS:     30_000,
		S3Prefix:             "profmatch/",
		S3Region:             "us-east-1",
	}
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.FuzzyThreshold < 0 || c.FuzzyThreshold > 100 {
		return fmt.Errorf("%w: fuzzy_threshold must be within 0..100, got %d", ErrInvalidConfig, c.FuzzyThreshold)
	}
	switch strings.ToLower(c.NAPopularity) {
	case NAPopularitySkip, NAPopularityZero:
	default:
		return fmt.Errorf("%w: unknown na_popularity %q", ErrInvalidConfig, c.NAPopularity)
	}
	if c.ReviewPageSize < 0 {
		return fmt.Errorf("%w: review_page_size must not be negative", ErrInvalidConfig)
	}
	return nil
}

// NAAsZero reports whether "N/A" review counts compare as 0.
func (c *Config) NAAsZero() bool {
	return strings.EqualFold(c.NAPopularity, NAPopularityZero)
}
