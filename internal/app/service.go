// Package service wires configuration, snapshot storage and the matching
// pipeline together and implements the dependencies of the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/profmatch/internal/adapters/grades"
	"github.com/okian/profmatch/internal/adapters/http/api"
	eventqueue "github.com/okian/profmatch/internal/adapters/mq/queue"
	workerpool "github.com/okian/profmatch/internal/adapters/mq/worker"
	"github.com/okian/profmatch/internal/adapters/repository"
	"github.com/okian/profmatch/internal/adapters/reviews"
	"github.com/okian/profmatch/internal/config"
	"github.com/okian/profmatch/internal/domain/matching"
	"github.com/okian/profmatch/internal/domain/model"
	"github.com/okian/profmatch/pkg/logger"
	"github.com/okian/profmatch/pkg/metrics"
)

// ErrNotStarted is returned by operations that need a started service.
var ErrNotStarted = errors.New("service not started")

// Fetcher produces the reviews snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) (model.Reviews, error)
}

// Service runs reconciliations and serves their results.
type Service struct {
	mu    sync.RWMutex
	runMu sync.Mutex

	cfg        *config.Config
	store      repository.Snapshots
	fetcher    Fetcher
	aggregator *grades.Aggregator
	runs       *repository.RunStore
	matcher    *matching.Matcher

	queue *eventqueue.InMemoryQueue
	pool  *workerpool.Pool

	started bool
	logger  logger.Logger
}

var _ api.Dependencies = (*Service)(nil)

// New constructs a Service. Components are created by Start.
func New(opts ...Option) *Service {
	s := &Service{cfg: config.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the store, the fetcher and the matcher, and starts the
// scoring pool when more than one worker is configured.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	cfg := s.cfg

	if s.store == nil {
		store, err := s.fileStore(ctx)
		if err != nil {
			return err
		}
		s.store = store
	}
	if s.fetcher == nil {
		s.fetcher = reviews.NewClient(reviews.Config{
			Endpoint:      cfg.ReviewEndpoint,
			SchoolID:      cfg.ReviewSchoolID,
			Authorization: cfg.ReviewAuth,
			PageSize:      cfg.ReviewPageSize,
			Timeout:       time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		}, reviews.WithLogger(s.logger.Named("reviews")))
	}
	s.aggregator = grades.New(grades.WithLogger(s.logger.Named("grades")))
	s.runs = repository.NewRunStore(repository.WithFoldAccents(cfg.FoldAccents))

	opts := []matching.Option{
		matching.WithThreshold(cfg.FuzzyThreshold),
		matching.WithNAAsZero(cfg.NAAsZero()),
		matching.WithFoldAccents(cfg.FoldAccents),
		matching.WithLogger(s.logger),
	}
	if cfg.WorkerCount > 1 {
		s.queue = eventqueue.NewInMemoryQueue(
			eventqueue.WithCapacity(cfg.QueueSize),
			eventqueue.WithBufferSize(cfg.QueueSize),
		)
		s.pool = workerpool.NewPool(cfg.WorkerCount, s.queue)
		s.pool.Start(ctx)
		opts = append(opts, matching.WithRanker(s.pool))
	}
	s.matcher = matching.New(opts...)

	s.started = true
	s.logger.Info(ctx, "service started",
		logger.Int("workers", cfg.WorkerCount),
		logger.Int("threshold", s.matcher.Threshold()),
		logger.String("na_popularity", cfg.NAPopularity),
		logger.Bool("fold_accents", cfg.FoldAccents),
	)
	return nil
}

func (s *Service) fileStore(ctx context.Context) (*repository.FileStore, error) {
	cfg := s.cfg
	opts := []repository.Option{repository.WithLogger(s.logger.Named("snapshots"))}
	if cfg.S3Bucket != "" {
		pub, err := repository.NewS3Publisher(ctx, repository.S3Config{
			Bucket: cfg.S3Bucket,
			Prefix: cfg.S3Prefix,
			Region: cfg.S3Region,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 publisher: %w", err)
		}
		opts = append(opts, repository.WithPublisher(pub))
		s.logger.Info(ctx, "publishing snapshots to s3", logger.String("bucket", cfg.S3Bucket), logger.String("prefix", cfg.S3Prefix))
	}
	return repository.NewFileStore(repository.Paths{
		Ratings:          cfg.RatingsPath,
		Reviews:          cfg.ReviewsPath,
		Overrides:        cfg.OverridesPath,
		Matched:          cfg.MatchedPath,
		UnmatchedRatings: cfg.UnmatchedRatingsPath,
		UnmatchedReviews: cfg.UnmatchedReviewsPath,
		Parquet:          cfg.ParquetPath,
	}, opts...), nil
}

// Stop gracefully shuts down the scoring pool.
func (s *Service) Stop() {
	// Stop the pool before taking the write lock: an in-flight Reconcile
	// holds the read lock until its ranking returns.
	s.mu.RLock()
	pool := s.pool
	s.mu.RUnlock()
	if pool != nil {
		pool.Stop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.pool != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = s.pool.Shutdown(ctx)
		cancel()
		s.pool, s.queue = nil, nil
	}
	s.started = false
	s.logger.Info(context.Background(), "service stopped")
}

// Reconcile loads the snapshots, runs the pipeline, writes the outputs and
// publishes the result to readers. It returns api.ErrBackpressure while
// another reconciliation is running.
func (s *Service) Reconcile(ctx context.Context) (*matching.Result, error) {
	if !s.runMu.TryLock() {
		return nil, api.ErrBackpressure
	}
	defer s.runMu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}

	ratings, err := s.store.LoadRatings(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("service", "load_ratings")
		return nil, err
	}
	revs, err := s.store.LoadReviews(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("service", "load_reviews")
		return nil, err
	}
	overrides, err := s.store.LoadOverrides(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("service", "load_overrides")
		return nil, err
	}

	res, err := s.matcher.Match(ctx, ratings, revs, overrides)
	if err != nil {
		metrics.RecordErrorByComponent("service", "match")
		return nil, fmt.Errorf("match: %w", err)
	}

	if err := s.store.SaveMatched(ctx, res.Matched); err != nil {
		metrics.RecordErrorByComponent("service", "save_matched")
		return nil, fmt.Errorf("save matched: %w", err)
	}
	if err := s.store.SaveUnmatched(ctx, res.UnmatchedRatings, res.UnmatchedReviews); err != nil {
		metrics.RecordErrorByComponent("service", "save_unmatched")
		return nil, fmt.Errorf("save unmatched: %w", err)
	}

	s.runs.Put(ctx, res)
	recordRun(res)
	return res, nil
}

// Aggregate builds the ratings snapshot from section listings and grade CSVs.
func (s *Service) Aggregate(ctx context.Context) (model.Ratings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}

	ratings, err := s.aggregator.Run(ctx, s.cfg.SectionsDir, s.cfg.GradesDir)
	if err != nil {
		return nil, fmt.Errorf("aggregate grades: %w", err)
	}
	if err := s.store.SaveRatings(ctx, ratings); err != nil {
		return nil, fmt.Errorf("save ratings: %w", err)
	}
	return ratings, nil
}

// Scrape fetches the reviews snapshot and saves it.
func (s *Service) Scrape(ctx context.Context) (model.Reviews, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}

	revs, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch reviews: %w", err)
	}
	if err := s.store.SaveReviews(ctx, revs); err != nil {
		return nil, fmt.Errorf("save reviews: %w", err)
	}
	return revs, nil
}

// Match returns the merged entries of the latest run for name.
func (s *Service) Match(ctx context.Context, name string) ([]model.MatchedEntry, error) {
	runs, err := s.runStore()
	if err != nil {
		return nil, err
	}
	return runs.Match(ctx, name)
}

// Unmatched returns the residual names of the latest run for source.
func (s *Service) Unmatched(ctx context.Context, source string) ([]string, error) {
	runs, err := s.runStore()
	if err != nil {
		return nil, err
	}
	return runs.Unmatched(ctx, source)
}

// Last returns the latest run.
func (s *Service) Last(ctx context.Context) (*matching.Result, error) {
	runs, err := s.runStore()
	if err != nil {
		return nil, err
	}
	return runs.Last(ctx)
}

func (s *Service) runStore() (*repository.RunStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.runs == nil {
		return nil, repository.ErrNoRun
	}
	return s.runs, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":       s.started,
		"threshold":     s.cfg.FuzzyThreshold,
		"workerCount":   s.cfg.WorkerCount,
		"naPopularity":  s.cfg.NAPopularity,
		"foldAccents":   s.cfg.FoldAccents,
		"parallelRanks": s.pool != nil,
	}
	if s.queue != nil {
		n := s.queue.Len(context.Background())
		stats["queueLength"] = n
		metrics.UpdateQueueSize(n)
	}
	if s.runs != nil {
		if res, err := s.runs.Last(context.Background()); err == nil {
			stats["lastRunId"] = res.RunID
			stats["lastRunFinishedAt"] = res.FinishedAt
			stats["matched"] = res.Counts.Matched()
			stats["rejected"] = res.Counts.Rejected
			stats["unmatchedRatings"] = res.Counts.UnmatchedRatings
			stats["unmatchedReviews"] = res.Counts.UnmatchedReviews
		}
	}
	return stats
}

func recordRun(res *matching.Result) {
	c := res.Counts
	for tier, n := range map[string]int{
		model.TierOverride: c.Override,
		model.TierExact:    c.Direct,
		model.TierFuzzy:    c.Fuzzy,
	} {
		for range n {
			metrics.RecordMatch(tier)
		}
	}
	for _, rej := range res.Rejections {
		metrics.RecordRejection(rej.Reason)
	}
	metrics.UpdateUnmatched(repository.SourceRatings, c.UnmatchedRatings)
	metrics.UpdateUnmatched(repository.SourceReviews, c.UnmatchedReviews)
	for phase, ms := range res.DurationsMS() {
		metrics.RecordPhaseDuration(string(phase), ms)
	}
	metrics.RecordDisambiguationPairs(res.PairsEvaluated)
	metrics.RecordRun()
}
