package exec

import (
	"sync"

	"github.com/coredbio/coredb/array"
)

// DefaultMaterializeCapacity bounds how many pushed batches may sit
// buffered ahead of the slowest consumer before PollPush starts returning
// Pending, the same role resultstream.DefaultCapacity plays for the
// scheduler-to-client boundary.
const DefaultMaterializeCapacity = 4

// Materialize buffers pushed batches and fans them out to NumConsumers
// independent pull cursors, each seeing every batch exactly once in
// arrival order (spec.md §4.3.7: "broadcast fan-out to N receivers").
// Used for plans that reference the same intermediate result more than
// once (e.g. a CTE read twice). Grounded on the teacher's own N-way
// fan-out operator (vm/tee.go), adapted to the explicit per-consumer
// cursor the poll/waker contract needs.
//
// Push is capacity-bounded against the slowest consumer rather than
// appending to an unboundedly-growing buffer, per spec.md §9's design
// note: "fan-out is implemented with a broadcast channel, not a shared
// arc to the same batch, to give each consumer independent
// back-pressure." Once the slowest consumer falls Capacity batches
// behind, PollPush returns Pending and registers a waker that fires the
// moment that consumer's next PollPull drains a batch and frees room.
type Materialize struct {
	NumConsumers int
	// Capacity overrides DefaultMaterializeCapacity when positive.
	Capacity int

	mu      sync.Mutex
	batches []*array.Batch // batches[i] holds absolute index base+i
	base    int
	cursors []int // cursors[c] is consumer c's absolute read position
	done    bool

	pullWaiters [][]Waker // per-consumer: waiting for a batch to pull
	pushWaiters []Waker   // waiting for backlog room to free up
}

type materializePartitionState struct {
	consumer int
	cursor   int
}

// ConsumerPartitionState lets a caller pin a particular consumer index to
// a partition state before the first poll, since Materialize's fan-out
// identity (which of the N logical consumers a given partition pipeline
// represents) is a wiring decision the scheduler makes, not something
// Materialize can infer on its own.
func (m *Materialize) ConsumerPartitionState(consumer int) any {
	return &materializePartitionState{consumer: consumer}
}

func (m *Materialize) NewPartitionState() any { return &materializePartitionState{} }

func (m *Materialize) numConsumers() int {
	if m.NumConsumers <= 0 {
		return 1
	}
	return m.NumConsumers
}

func (m *Materialize) capacity() int {
	if m.Capacity <= 0 {
		return DefaultMaterializeCapacity
	}
	return m.Capacity
}

// initLocked lazily sizes the per-consumer bookkeeping to numConsumers();
// m.mu must be held.
func (m *Materialize) initLocked() {
	if m.cursors == nil {
		m.cursors = make([]int, m.numConsumers())
		m.pullWaiters = make([][]Waker, m.numConsumers())
	}
}

// minCursorLocked returns the slowest consumer's absolute read position;
// m.mu must be held.
func (m *Materialize) minCursorLocked() int {
	min := m.cursors[0]
	for _, c := range m.cursors[1:] {
		if c < min {
			min = c
		}
	}
	return min
}

// trimLocked drops batches every consumer has already read, so memory
// tracks the slowest consumer's backlog rather than the whole history;
// m.mu must be held.
func (m *Materialize) trimLocked() {
	min := m.minCursorLocked()
	for m.base < min && len(m.batches) > 0 {
		m.batches = m.batches[1:]
		m.base++
	}
}

func (m *Materialize) PollPush(cx *Context, partitionState any, batch *array.Batch) PollPushResult {
	m.mu.Lock()
	m.initLocked()
	backlog := (m.base + len(m.batches)) - m.minCursorLocked()
	if backlog >= m.capacity() {
		if cx != nil && cx.Waker != nil {
			m.pushWaiters = append(m.pushWaiters, cx.Waker)
		}
		m.mu.Unlock()
		return PollPushResult{Status: PushPending, Batch: batch}
	}

	m.batches = append(m.batches, batch)
	waiters := m.pullWaiters
	m.pullWaiters = make([][]Waker, m.numConsumers())
	m.mu.Unlock()

	for _, ws := range waiters {
		for _, w := range ws {
			w.Wake()
		}
	}
	return PollPushResult{Status: Pushed}
}

func (m *Materialize) PollFinalizePush(cx *Context, partitionState any) PollFinalizeResult {
	m.mu.Lock()
	m.initLocked()
	m.done = true
	waiters := m.pullWaiters
	m.pullWaiters = make([][]Waker, m.numConsumers())
	m.mu.Unlock()
	for _, ws := range waiters {
		for _, w := range ws {
			w.Wake()
		}
	}
	return PollFinalizeResult{Status: Finalized}
}

func (m *Materialize) PollPull(cx *Context, partitionState any) PollPullResult {
	ps := partitionState.(*materializePartitionState)

	m.mu.Lock()
	m.initLocked()
	if ps.consumer < 0 || ps.consumer >= len(m.cursors) {
		// A consumer index outside NumConsumers has no cursor slot to
		// track and can never be released by trimLocked/backpressure
		// bookkeeping; treat it as having nothing to read rather than
		// silently corrupting another consumer's slot.
		m.mu.Unlock()
		return PollPullResult{Status: PullExhausted}
	}

	idx := ps.cursor - m.base
	if idx >= 0 && idx < len(m.batches) {
		b := m.batches[idx]
		ps.cursor++
		m.cursors[ps.consumer] = ps.cursor
		m.trimLocked()
		pushWaiters := m.pushWaiters
		m.pushWaiters = nil
		m.mu.Unlock()
		for _, w := range pushWaiters {
			w.Wake()
		}
		return PollPullResult{Status: PullBatch, Batch: b}
	}
	if m.done {
		m.mu.Unlock()
		return PollPullResult{Status: PullExhausted}
	}
	if cx != nil && cx.Waker != nil {
		m.pullWaiters[ps.consumer] = append(m.pullWaiters[ps.consumer], cx.Waker)
	}
	m.mu.Unlock()
	return PollPullResult{Status: PullPending}
}
