package resultstream

import (
	"errors"
	"testing"

	"github.com/coredbio/coredb/array"
)

func TestStreamRoundTrip(t *testing.T) {
	s := New(2)
	p, c := s.Split()

	go func() {
		p.Send(array.NewBatch(nil, 1))
		p.Send(array.NewBatch(nil, 2))
		p.Close(nil)
	}()

	var rows int64
	if err := c.Drain(func(b *array.Batch) { rows += int64(b.NumRows) }); err != nil {
		t.Fatal(err)
	}
	if rows != 3 {
		t.Fatalf("rows = %d, want 3", rows)
	}
}

func TestStreamPropagatesError(t *testing.T) {
	s := New(0)
	p, c := s.Split()
	boom := errors.New("boom")

	go func() {
		p.Send(array.NewBatch(nil, 1))
		p.Close(boom)
	}()

	var n int
	err := c.Drain(func(*array.Batch) { n++ })
	if err != boom {
		t.Fatalf("err = %v, want boom", err)
	}
	if n != 1 {
		t.Fatalf("n = %d, want 1", n)
	}
}
