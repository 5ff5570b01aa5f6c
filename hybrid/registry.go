package hybrid

import (
	"sync"

	"github.com/coredbio/coredb/coreerr"
)

// partitionKey scopes a stream's FIFO queue to one (stream, partition)
// pair (spec.md §4.6: "Ordering is per-(stream, partition) FIFO").
type partitionKey struct {
	stream    StreamId
	partition int
}

// PullStatus is what pull_batch hands back for one (stream, partition):
// either the next queued frame, or an indication that none is ready yet,
// or that the stream has been finalized and drained.
type PullStatus int

const (
	PullBatch PullStatus = iota
	PullPending
	PullFinished
)

type queuedFrame struct {
	body  []byte
	final bool
}

type partitionQueue struct {
	mu       sync.Mutex
	frames   []queuedFrame
	finished bool
}

// Registry holds every active stream's per-partition FIFO queues. A
// server instance owns exactly one Registry; it is safe for concurrent
// use from many HTTP handler goroutines.
type Registry struct {
	mu    sync.Mutex
	parts map[partitionKey]*partitionQueue
}

// NewRegistry builds an empty stream registry.
func NewRegistry() *Registry {
	return &Registry{parts: make(map[partitionKey]*partitionQueue)}
}

func (r *Registry) queue(key partitionKey) *partitionQueue {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.parts[key]
	if !ok {
		q = &partitionQueue{}
		r.parts[key] = q
	}
	return q
}

// Push appends one IPC-encoded batch body to (stream, partition)'s
// queue (spec.md §4.6: "push issues an RPC carrying (stream_id,
// partition, batch bytes)").
func (r *Registry) Push(stream StreamId, partition int, body []byte) {
	q := r.queue(partitionKey{stream, partition})
	q.mu.Lock()
	defer q.mu.Unlock()
	q.frames = append(q.frames, queuedFrame{body: body})
}

// Finalize marks (stream, partition) as having no further batches
// (spec.md §4.6: "finalize issues a terminator RPC").
func (r *Registry) Finalize(stream StreamId, partition int) {
	q := r.queue(partitionKey{stream, partition})
	q.mu.Lock()
	defer q.mu.Unlock()
	q.finished = true
}

// Pull dequeues the next frame for (stream, partition), or reports
// Pending if the queue is empty but not finalized, or Finished once
// every pushed frame has been drained and Finalize was called.
func (r *Registry) Pull(stream StreamId, partition int) (PullStatus, []byte, error) {
	q := r.queue(partitionKey{stream, partition})
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) > 0 {
		f := q.frames[0]
		q.frames = q.frames[1:]
		return PullBatch, f.body, nil
	}
	if q.finished {
		return PullFinished, nil, nil
	}
	return PullPending, nil, nil
}

// Drop discards a stream's queues entirely (query canceled or
// completed). Returns an error if the stream was never seen, which
// likely indicates a client/server StreamId mismatch.
func (r *Registry) Drop(stream StreamId) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	found := false
	for k := range r.parts {
		if k.stream == stream {
			delete(r.parts, k)
			found = true
		}
	}
	if !found {
		return coreerr.New(coreerr.User, "unknown stream %s", stream)
	}
	return nil
}
