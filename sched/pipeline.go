package sched

import (
	"sync"

	"github.com/coredbio/coredb/array"
	"github.com/coredbio/coredb/coreerr"
	"github.com/coredbio/coredb/exec"
)

// Chain is one partition's linear operator pipeline: Stage[0] is always a
// pure source (pull-only), Stage[len-1] is the partition's terminal
// consumer (a Sink, or simply the stage whose output the caller pulls via
// Results). Each interior stage both accepts pushed batches from its
// upstream neighbor and offers pulled batches to its downstream neighbor,
// matching every operator's uniform poll_push/poll_pull contract
// (spec.md §4.3).
type Chain struct {
	Stages []exec.Operator
	States []any

	// Results, if non-nil, receives batches pulled off the final stage
	// instead of requiring a terminal Sink operator.
	Results func(batch *array.Batch)

	finalizedUpTo int // stages [0, finalizedUpTo) have finished pushing
	pending       *array.Batch
}

// ExecuteOutcome is poll_execute's result (spec.md §4.5): Continue means
// more work is possible without suspending, Done means the pipeline has
// fully drained, Pending means a waker has been installed and the task
// must not re-poll until it fires. A failure is returned as PollExecute's
// error result rather than as an outcome.
type ExecuteOutcome int

const (
	ExecuteContinue ExecuteOutcome = iota
	ExecuteDone
	ExecutePending
)

// PollExecute advances the chain by one step: it pulls a batch from the
// earliest not-yet-finalized stage that has output ready and pushes it
// into the next stage, or drives the finalize barrier forward when a
// stage's upstream is exhausted. It never blocks; a suspension point
// returns ExecutePending after installing cx's waker into whatever
// operator suspended (spec.md §5).
func (c *Chain) PollExecute(cx *exec.Context) (ExecuteOutcome, error) {
	n := len(c.Stages)
	if c.finalizedUpTo >= n-1 {
		return c.drainFinal(cx)
	}

	from := c.finalizedUpTo
	to := from + 1

	if c.pending == nil {
		r := c.Stages[from].PollPull(cx, c.States[from])
		if r.Err != nil {
			return 0, r.Err
		}
		switch r.Status {
		case exec.PullPending:
			return ExecutePending, nil
		case exec.PullExhausted:
			return c.finalizeStage(cx, to)
		case exec.PullBatch:
			c.pending = r.Batch
		}
	}

	pushRes := c.Stages[to].PollPush(cx, c.States[to], c.pending)
	switch pushRes.Status {
	case exec.Pushed:
		c.pending = nil
		return ExecuteContinue, nil
	case exec.PushPending:
		c.pending = pushRes.Batch
		return ExecutePending, nil
	case exec.PushBreak:
		c.pending = nil
		c.finalizedUpTo = to // stop pulling more from `from`; treat as finalized
		return ExecuteContinue, nil
	}
	return ExecuteContinue, nil
}

// finalizeStage is called once Stages[stage-1]'s output is exhausted:
// nothing more will ever be pushed into Stages[stage], so its
// PollFinalizePush is driven to completion before the chain advances to
// treating Stages[stage] as the next pull source.
func (c *Chain) finalizeStage(cx *exec.Context, stage int) (ExecuteOutcome, error) {
	r := c.Stages[stage].PollFinalizePush(cx, c.States[stage])
	if r.Err != nil {
		return 0, r.Err
	}
	if r.Status == exec.FinalizePending {
		return ExecutePending, nil
	}
	c.finalizedUpTo = stage
	return ExecuteContinue, nil
}

func (c *Chain) drainFinal(cx *exec.Context) (ExecuteOutcome, error) {
	last := len(c.Stages) - 1
	r := c.Stages[last].PollPull(cx, c.States[last])
	if r.Err != nil {
		return 0, r.Err
	}
	switch r.Status {
	case exec.PullBatch:
		if c.Results != nil {
			c.Results(r.Batch)
		}
		return ExecuteContinue, nil
	case exec.PullPending:
		return ExecutePending, nil
	default:
		return ExecuteDone, nil
	}
}

// PartitionPipelineTask wraps one partition's Chain with the cancel flag,
// error sink, and metrics sink spec.md §4.5 names, and drives poll_execute
// in a loop under the pipeline's exclusive lock.
type PartitionPipelineTask struct {
	Pipeline   *Chain
	Canceled   *Canceler
	ErrorSink  func(error)
	MetricSink func(Metrics)

	mu      sync.Mutex
	metrics Metrics
	once    sync.Once
	done    chan struct{}
}

func (t *PartitionPipelineTask) doneChan() chan struct{} {
	t.once.Do(func() { t.done = make(chan struct{}) })
	return t.done
}

func (t *PartitionPipelineTask) finish() {
	close(t.doneChan())
}

// Canceler is the query-wide cancellation flag every task in a query
// shares (spec.md §5: "QueryHandle::cancel() sets a query-wide flag").
type Canceler struct {
	flag bool
	mu   sync.Mutex
}

func (c *Canceler) Set() {
	c.mu.Lock()
	c.flag = true
	c.mu.Unlock()
}

func (c *Canceler) Get() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flag
}

// Run acquires the pipeline's exclusive lock, checks the cancel flag, and
// calls poll_execute in a loop until the pipeline drains, suspends, or is
// canceled (spec.md §4.5). A Pending result is not an error: the operator
// that returned it has already installed a waker bound to a
// PartitionPipelineWaker, and Run simply returns without re-scheduling,
// trusting that waker to re-submit the task to pool.
func (t *PartitionPipelineTask) Run(pool *Pool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-t.doneChan():
		return // already terminal; a later re-spawn has nothing to do
	default:
	}

	for {
		if t.Canceled != nil && t.Canceled.Get() {
			t.ErrorSink(coreerr.New(coreerr.Canceled, "query canceled"))
			pool.taskFinished()
			t.finish()
			return
		}
		waker := &PartitionPipelineWaker{pool: pool, task: t}
		cx := &exec.Context{Waker: waker, Canceled: func() bool { return t.Canceled != nil && t.Canceled.Get() }}
		outcome, err := t.Pipeline.PollExecute(cx)
		if err != nil {
			t.metrics.Errors++
			t.ErrorSink(err)
			pool.taskFinished()
			t.finish()
			return
		}
		switch outcome {
		case ExecuteContinue:
			continue
		case ExecutePending:
			t.metrics.Suspensions++
			return
		case ExecuteDone:
			if t.MetricSink != nil {
				t.MetricSink(t.metrics)
			}
			pool.taskFinished()
			t.finish()
			return
		}
	}
}
