package matching

import (
	"github.com/okian/profmatch/internal/domain/similarity"
	"github.com/okian/profmatch/pkg/logger"
)

// Option applies a configuration option to the Matcher.
type Option func(*Matcher)

// WithThreshold sets the minimum fuzzy score (0..100). Out of range values
// are clamped.
func WithThreshold(threshold int) Option {
	return func(m *Matcher) {
		m.threshold = min(max(threshold, 0), 100)
	}
}

// WithNAAsZero makes "N/A" review counts compare as 0 instead of losing to
// every number.
func WithNAAsZero(enabled bool) Option {
	return func(m *Matcher) {
		m.naAsZero = enabled
	}
}

// WithFoldAccents toggles diacritic folding of normalized names.
func WithFoldAccents(enabled bool) Option {
	return func(m *Matcher) {
		m.fold = enabled
	}
}

// WithScorer replaces the name similarity function.
func WithScorer(score similarity.Scorer) Option {
	return func(m *Matcher) {
		if score != nil {
			m.scorer = score
		}
	}
}

// WithRanker replaces how fuzzy candidates are scored, e.g. with a worker pool.
func WithRanker(r Ranker) Option {
	return func(m *Matcher) {
		if r != nil {
			m.ranker = r
		}
	}
}

// WithLogger sets a custom logger for the Matcher.
func WithLogger(l logger.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}
