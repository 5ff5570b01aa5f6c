// Package resultstream carries a query's output batches (and its
// terminal error, if any) from the scheduler to whatever consumes the
// query result — a CLI, an HTTP handler, or the hybrid stream bridge
// (spec.md §2.6, §4.6). Grounded on the teacher's own streaming-write
// boundary (tenant/tnproto/chunked_http_writer.go writes one
// length-framed chunk per flush and a single final Close), adapted from
// an io.WriteCloser chain to a bounded Go channel pair so a slow consumer
// applies backpressure to the scheduler instead of the scheduler
// buffering unboundedly in memory.
package resultstream

import "github.com/coredbio/coredb/array"

// DefaultCapacity bounds how many batches may be buffered between the
// scheduler and a result consumer before a Send call blocks.
const DefaultCapacity = 4

// Stream is a single-producer, single-consumer channel of result
// batches terminated by exactly one error value (nil on success),
// mirroring the chunked writer's "n data chunks then one Close" shape.
type Stream struct {
	batches chan *array.Batch
	done    chan error
}

// New builds a Stream with the given buffering capacity. A capacity of 0
// means every Send blocks until a Recv drains it (fully synchronous
// handoff).
func New(capacity int) *Stream {
	if capacity < 0 {
		capacity = 0
	}
	return &Stream{
		batches: make(chan *array.Batch, capacity),
		done:    make(chan error, 1),
	}
}

// Producer is the write side a scheduler task holds.
type Producer struct{ s *Stream }

// Consumer is the read side a result consumer holds.
type Consumer struct{ s *Stream }

// Split returns the producer and consumer halves of s. Call exactly one
// of each per Stream.
func (s *Stream) Split() (Producer, Consumer) {
	return Producer{s}, Consumer{s}
}

// Send enqueues a batch, blocking if the stream is at capacity (the
// backpressure point a slow consumer applies to the scheduler).
func (p Producer) Send(b *array.Batch) {
	p.s.batches <- b
}

// Close signals that no more batches will be sent, recording err (nil on
// success) as the stream's terminal result. Close must be called exactly
// once.
func (p Producer) Close(err error) {
	close(p.s.batches)
	p.s.done <- err
	close(p.s.done)
}

// Recv returns the next batch, or ok=false once the stream is drained —
// at which point Err reports the producer's terminal error, if any.
func (c Consumer) Recv() (b *array.Batch, ok bool) {
	b, ok = <-c.s.batches
	return b, ok
}

// Err blocks until the producer has closed the stream and returns its
// terminal error (nil on success). Safe to call only after Recv has
// returned ok=false.
func (c Consumer) Err() error {
	return <-c.s.done
}

// Drain reads every remaining batch via fn until the stream closes, then
// returns the producer's terminal error. fn may be nil to simply discard
// batches (useful when a caller only wants the error/row count).
func (c Consumer) Drain(fn func(*array.Batch)) error {
	for {
		b, ok := c.Recv()
		if !ok {
			return c.Err()
		}
		if fn != nil {
			fn(b)
		}
	}
}
