package sched

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// QueryHandle is one query's handle to its scheduler state: its
// partitions, its shared cancel flag, and the metrics each partition
// reports on completion (spec.md §4.5/§5: "QueryHandle::cancel() sets a
// query-wide flag" and re-spawns every task). Grounded on
// tenant/tnproto/remote.go's Exec/cancellation shape, adapted from an
// RPC-call handle to an in-process scheduling handle.
type QueryHandle struct {
	pool     *Pool
	canceled *Canceler

	mu       sync.Mutex
	metrics  Metrics
	firstErr error
	tasks    []*PartitionPipelineTask
}

// NewQueryHandle builds a handle over the given pool with one
// PartitionPipelineTask per partition pipeline. Each task's ErrorSink and
// MetricSink are wired to the handle's own aggregation (a QueryHandle
// owns its tasks' reporting for the lifetime of the query).
func NewQueryHandle(pool *Pool, pipelines []*Chain) *QueryHandle {
	h := &QueryHandle{pool: pool, canceled: &Canceler{}}
	h.tasks = make([]*PartitionPipelineTask, len(pipelines))
	for i, p := range pipelines {
		t := &PartitionPipelineTask{Pipeline: p, Canceled: h.canceled}
		t.ErrorSink = func(err error) { h.reportErr(err) }
		t.MetricSink = func(m Metrics) { h.reportMetrics(m) }
		h.tasks[i] = t
	}
	return h
}

func (h *QueryHandle) reportErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.firstErr == nil {
		h.firstErr = err
	}
}

func (h *QueryHandle) reportMetrics(m Metrics) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metrics.Merge(m)
}

// Run submits every partition to the pool and blocks until they have all
// reached a terminal outcome, canceling the query if ctx is done first.
// One goroutine per partition waits on that partition's own completion
// (golang.org/x/sync/errgroup.Group, a one-shot fixed-N join — unlike
// Pool itself, a query's partition count never grows after Run starts,
// so errgroup's Go-then-Wait pairing is safe here).
func (h *QueryHandle) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range h.tasks {
		t := t
		h.pool.Submit(t)
		g.Go(func() error {
			select {
			case <-t.doneChan():
				return nil
			case <-gctx.Done():
				h.Cancel()
				<-t.doneChan()
				return gctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.firstErr
}

// Cancel sets the query-wide cancellation flag every partition's task
// shares and re-spawns every task so a parked one notices without
// needing its own operator to wake it first (spec.md §5: "cancellation
// sets a query-wide flag and re-spawns every task").
func (h *QueryHandle) Cancel() {
	h.canceled.Set()
	for _, t := range h.tasks {
		h.pool.Spawn(t)
	}
}

// Metrics returns the metrics merged in from every partition that has
// reached ExecuteDone so far. Safe to call before Run returns for a
// running total.
func (h *QueryHandle) Metrics() Metrics {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.metrics
}
