// Package consume tracks which source records a pipeline run has already
// merged, so that each record is used at most once.
package consume

import (
	"context"
	"sync"
	"sync/atomic"
)

// Ledger records consumed record IDs.
type Ledger interface {
	// SeenAndRecord atomically checks if id was consumed and records it if not.
	// Returns true if id was already consumed, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord releases an id recorded for a pairing that did not complete.
	Unrecord(ctx context.Context, id string)

	// Seen reports whether id is consumed without recording it.
	Seen(id string) bool

	Size() int64
}

// inMemoryLedger implements Ledger with a map. It never evicts: forgetting a
// consumed id would let the record be merged twice.
type inMemoryLedger struct {
	mu   sync.RWMutex
	seen map[string]struct{}
	size atomic.Int64
	hint int
}

// NewLedger creates an empty in-memory ledger.
func NewLedger(opts ...Option) Ledger {
	l := &inMemoryLedger{}
	for _, opt := range opts {
		opt(l)
	}
	l.seen = make(map[string]struct{}, l.hint)
	return l
}

func (l *inMemoryLedger) SeenAndRecord(_ context.Context, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.seen[id]; exists {
		return true
	}
	l.seen[id] = struct{}{}
	l.size.Add(1)
	return false
}

func (l *inMemoryLedger) Unrecord(_ context.Context, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.seen[id]; exists {
		delete(l.seen, id)
		l.size.Add(-1)
	}
}

func (l *inMemoryLedger) Seen(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, exists := l.seen[id]
	return exists
}

// Size returns the number of consumed ids.
func (l *inMemoryLedger) Size() int64 {
	return l.size.Load()
}

// Pair records both ids, or neither. It returns false when either id was
// already consumed.
func Pair(ctx context.Context, l Ledger, a, b string) bool {
	if l.SeenAndRecord(ctx, a) {
		return false
	}
	if l.SeenAndRecord(ctx, b) {
		l.Unrecord(ctx, a)
		return false
	}
	return true
}
