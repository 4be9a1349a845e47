package consume

// Option applies a configuration option to the in-memory ledger.
type Option func(*inMemoryLedger)

// WithCapacity presizes the ledger for n ids. Values <= 0 are ignored.
func WithCapacity(n int) Option {
	return func(l *inMemoryLedger) {
		if n > 0 {
			l.hint = n
		}
	}
}
