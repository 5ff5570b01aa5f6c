package hybrid

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestServerClientPushPull(t *testing.T) {
	srv := &Server{Registry: NewRegistry()}
	ts := httptest.NewServer(srv.Mux("/rpc/v0/hybrid"))
	defer ts.Close()

	c := &Client{BaseURL: ts.URL + "/rpc/v0/hybrid"}
	ctx := context.Background()

	if err := c.Healthz(ctx); err != nil {
		t.Fatal(err)
	}

	stream := NewStreamId(uuid.New())

	status, _, err := c.PullBatch(ctx, stream, 0)
	if err != nil {
		t.Fatal(err)
	}
	if status != PullPending {
		t.Fatalf("status = %v, want Pending", status)
	}

	if err := c.PushBatch(ctx, stream, 0, []byte("frame-1")); err != nil {
		t.Fatal(err)
	}
	status, body, err := c.PullBatch(ctx, stream, 0)
	if err != nil {
		t.Fatal(err)
	}
	if status != PullBatch || string(body) != "frame-1" {
		t.Fatalf("status=%v body=%q", status, body)
	}

	if err := c.Finalize(ctx, stream, 0); err != nil {
		t.Fatal(err)
	}
	status, _, err = c.PullBatch(ctx, stream, 0)
	if err != nil {
		t.Fatal(err)
	}
	if status != PullFinished {
		t.Fatalf("status = %v, want Finished", status)
	}
}

func TestClientPollUntilBatch(t *testing.T) {
	srv := &Server{Registry: NewRegistry()}
	ts := httptest.NewServer(srv.Mux("/rpc/v0/hybrid"))
	defer ts.Close()

	c := &Client{BaseURL: ts.URL + "/rpc/v0/hybrid"}
	ctx := context.Background()
	stream := NewStreamId(uuid.New())

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = c.PushBatch(ctx, stream, 1, []byte("late-frame"))
	}()

	status, body, err := c.PollUntilBatch(ctx, stream, 1, 5*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if status != PullBatch || string(body) != "late-frame" {
		t.Fatalf("status=%v body=%q", status, body)
	}
}

func TestServerRunHandler(t *testing.T) {
	srv := &Server{
		Registry: NewRegistry(),
		Run: func(stmt, bind []byte) ([]byte, error) {
			return append(append([]byte{}, stmt...), bind...), nil
		},
	}
	ts := httptest.NewServer(srv.Mux("/rpc/v0/hybrid"))
	defer ts.Close()

	c := &Client{BaseURL: ts.URL + "/rpc/v0/hybrid"}
	out, err := c.Run(context.Background(), []byte("stmt"), []byte("bind"))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "stmtbind" {
		t.Fatalf("out = %q", out)
	}
}
