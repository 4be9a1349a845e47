package repository

import "github.com/okian/profmatch/pkg/logger"

// Option applies a configuration option to the FileStore.
type Option func(*FileStore)

// WithPublisher copies every written snapshot to p after the local write succeeds.
func WithPublisher(p Publisher) Option {
	return func(s *FileStore) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger sets a custom logger for the FileStore.
func WithLogger(l logger.Logger) Option {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// RunOption applies a configuration option to the RunStore.
type RunOption func(*RunStore)

// WithFoldAccents makes name lookups ignore diacritics, matching the pipeline setting.
func WithFoldAccents(enabled bool) RunOption {
	return func(s *RunStore) {
		s.fold = enabled
	}
}
