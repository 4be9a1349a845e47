package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/okian/profmatch/internal/domain/model"
	"github.com/okian/profmatch/pkg/logger"
	"github.com/okian/profmatch/pkg/metrics"
)

const jsonIndent = "    "

// FileStore keeps snapshots as indented JSON files.
type FileStore struct {
	paths     Paths
	publisher Publisher
	logger    logger.Logger
}

var _ Snapshots = (*FileStore)(nil)

// NewFileStore creates a snapshot store over the given paths.
func NewFileStore(paths Paths, opts ...Option) *FileStore {
	s := &FileStore{
		paths:  paths,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Paths returns the configured snapshot locations.
func (s *FileStore) Paths() Paths {
	return s.paths
}

// LoadRatings reads the ratings snapshot. A name may hold one record or a list.
func (s *FileStore) LoadRatings(_ context.Context) (model.Ratings, error) {
	grouped, err := loadGrouped[model.RatingRecord](s.paths.Ratings)
	if err != nil {
		return nil, fmt.Errorf("load ratings: %w", err)
	}
	metrics.UpdateSnapshotNames(KindRatings, len(grouped))
	return model.Ratings(grouped), nil
}

// LoadReviews reads the reviews snapshot. A name may hold one record or a list.
func (s *FileStore) LoadReviews(_ context.Context) (model.Reviews, error) {
	grouped, err := loadGrouped[model.ReviewRecord](s.paths.Reviews)
	if err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	metrics.UpdateSnapshotNames(KindReviews, len(grouped))
	return model.Reviews(grouped), nil
}

// LoadOverrides reads the manual match list. A missing or unset file yields no overrides.
func (s *FileStore) LoadOverrides(ctx context.Context) ([]model.Override, error) {
	if s.paths.Overrides == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.paths.Overrides)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug(ctx, "no overrides file", logger.String("path", s.paths.Overrides))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}
	var out []model.Override
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("load overrides: %w: %w", ErrMalformed, err)
	}
	return out, nil
}

// SaveRatings writes the ratings snapshot.
func (s *FileStore) SaveRatings(ctx context.Context, ratings model.Ratings) error {
	return s.save(ctx, KindRatings, s.paths.Ratings, ratings, len(ratings))
}

// SaveReviews writes the reviews snapshot.
func (s *FileStore) SaveReviews(ctx context.Context, reviews model.Reviews) error {
	return s.save(ctx, KindReviews, s.paths.Reviews, reviews, len(reviews))
}

// SaveMatched writes the merged entries keyed by rating-side name.
func (s *FileStore) SaveMatched(ctx context.Context, matched model.Matched) error {
	if err := s.save(ctx, KindMatched, s.paths.Matched, matched, len(matched)); err != nil {
		return err
	}
	if s.paths.Parquet == "" {
		return nil
	}
	if _, err := ExportParquet(ctx, s.paths.Parquet, matched); err != nil {
		return err
	}
	metrics.RecordSnapshotWrite(KindParquet, "file")
	return s.publish(ctx, KindParquet, s.paths.Parquet)
}

// SaveUnmatched writes the residual records of both sources.
func (s *FileStore) SaveUnmatched(ctx context.Context, ratings model.Ratings, reviews model.Reviews) error {
	if err := s.save(ctx, KindUnmatchedRatings, s.paths.UnmatchedRatings, ratings, len(ratings)); err != nil {
		return err
	}
	return s.save(ctx, KindUnmatchedReviews, s.paths.UnmatchedReviews, reviews, len(reviews))
}

func (s *FileStore) save(ctx context.Context, kind, path string, v any, names int) error {
	if path == "" {
		return nil
	}
	if err := writeJSON(path, v); err != nil {
		metrics.RecordErrorByComponent("repository", "write_failed")
		return fmt.Errorf("save %s: %w", kind, err)
	}
	metrics.RecordSnapshotWrite(kind, "file")
	metrics.UpdateSnapshotNames(kind, names)
	s.logger.Info(ctx, "snapshot written",
		logger.String("kind", kind),
		logger.String("path", path),
		logger.Int("names", names),
	)
	return s.publish(ctx, kind, path)
}

func (s *FileStore) publish(ctx context.Context, kind, path string) error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Publish(ctx, kind, path); err != nil {
		metrics.RecordErrorByComponent("repository", "publish_failed")
		return fmt.Errorf("publish %s: %w", kind, err)
	}
	return nil
}

// loadGrouped decodes name -> record or name -> [record] into name -> [record].
func loadGrouped[T any](path string) (map[string][]T, error) {
	if path == "" {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrMalformed, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w: not a mapping", path, ErrMalformed)
	}

	out := make(map[string][]T, len(raw))
	for name, msg := range raw {
		msg = bytes.TrimSpace(msg)
		if len(msg) > 0 && msg[0] == '[' {
			var list []T
			if err := json.Unmarshal(msg, &list); err != nil {
				return nil, fmt.Errorf("%s: %q: %w: %w", path, name, ErrMalformed, err)
			}
			out[name] = list
			continue
		}
		var one T
		if err := json.Unmarshal(msg, &one); err != nil {
			return nil, fmt.Errorf("%s: %q: %w: %w", path, name, ErrMalformed, err)
		}
		out[name] = []T{one}
	}
	return out, nil
}

// writeJSON replaces path atomically with the indented encoding of v.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", jsonIndent)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return writeFile(path, buf.Bytes())
}

func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
