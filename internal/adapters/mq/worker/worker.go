// Package worker runs the fuzzy scoring workers that rank candidate names in parallel.
//
// The pool implements matching.Ranker. Workers only read the name snapshots
// handed to them; consuming records stays with the single pipeline goroutine.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/profmatch/internal/adapters/mq/queue"
	"github.com/okian/profmatch/internal/domain/matching"
	"github.com/okian/profmatch/internal/domain/similarity"
	"github.com/okian/profmatch/pkg/logger"
	"github.com/okian/profmatch/pkg/metrics"
)

// Default worker configuration constants.
const (
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Queue defines how workers receive jobs.
type Queue interface {
	Enqueue(ctx context.Context, j queue.Job) bool
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker ranks candidates for the jobs it dequeues.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue Queue
	name  string

	stopOnce sync.Once
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.process(j)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.signal()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) signal() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

func (w *InMemoryWorker) process(j queue.Job) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	ranked := matching.RankOne(j.Query, j.Targets, j.Threshold, j.Scorer)
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)

	if j.Done != nil {
		j.Done(j.Pos, ranked)
	}
}

// Pool manages multiple workers and ranks fuzzy candidates through them.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	stopOnce sync.Once
	shutdown chan struct{}

	logger logger.Logger
}

var _ matching.Ranker = (*Pool)(nil)

// NewPool creates a new worker pool. A non-positive count uses runtime.NumCPU().
func NewPool(workerCount int, q Queue, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, wopts...)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool. When ctx ends the pool stops: the
// queue refuses further jobs and pending Rank calls return queue.ErrStopped.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go func() {
		select {
		case <-ctx.Done():
			p.logger.Info(context.Background(), "worker context ended; stopping pool")
			p.closeQueue(context.Background())
			p.signal()
		case <-p.shutdown:
		}
	}()
}

// Stopped is closed once the pool stops accepting work.
func (p *Pool) Stopped() <-chan struct{} {
	return p.shutdown
}

func (p *Pool) stopped() bool {
	select {
	case <-p.shutdown:
		return true
	default:
		return false
	}
}

// Rank scores every query against targets on the pool. Jobs the queue refuses,
// and every job once the pool has stopped, are scored on the calling goroutine,
// so the result never depends on queue pressure.
func (p *Pool) Rank(ctx context.Context, queries, targets []matching.Query, threshold int, score similarity.Scorer) ([][]matching.Candidate, error) {
	out := make([][]matching.Candidate, len(queries))
	if len(queries) == 0 {
		return out, nil
	}

	// Buffered so late workers never block once Rank has returned.
	finished := make(chan struct{}, len(queries))
	done := func(pos int, ranked []matching.Candidate) {
		out[pos] = ranked
		finished <- struct{}{}
	}

	inline, pending := 0, 0
	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		j := queue.Job{Pos: i, Query: q, Targets: targets, Threshold: threshold, Scorer: score, Done: done}
		if p.stopped() || !p.queue.Enqueue(ctx, j) {
			inline++
			out[i] = matching.RankOne(q, targets, threshold, score)
			continue
		}
		pending++
	}
	if inline > 0 {
		p.logger.Debug(ctx, "scored jobs inline", logger.Int("jobs", inline))
	}

	for range pending {
		select {
		case <-finished:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.shutdown:
			return nil, queue.ErrStopped
		}
	}
	return out, nil
}

func (p *Pool) signal() {
	p.stopOnce.Do(func() {
		close(p.shutdown)
		for _, w := range p.workers {
			w.signal()
		}
	})
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	p.signal()

	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown closes the queue and waits for every worker to exit.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.closeQueue(ctx)
	p.signal()

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	metrics.UpdateWorkerCount(0)
	return nil
}

func (p *Pool) closeQueue(ctx context.Context) {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
}
