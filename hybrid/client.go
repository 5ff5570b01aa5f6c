package hybrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coredbio/coredb/coreerr"
)

// Client is the remote-source side of the hybrid bridge: it calls a
// Server's RPC endpoints over HTTP. Grounded on
// tenant/tnproto/remote.go's Remote (a dial-and-call Transport wrapping
// the network address a request targets), adapted from sneller's raw TCP
// plan.Client protocol to the JSON-over-HTTP surface spec.md §6 names
// for the hybrid endpoints.
type Client struct {
	BaseURL string // e.g. "http://host:port/rpc/v0/hybrid"
	HTTP    *http.Client
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) post(ctx context.Context, path string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return coreerr.Wrap(coreerr.Internal, err, "hybrid: encoding request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return coreerr.Wrap(coreerr.IO, err, "hybrid: building request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpResp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return coreerr.Wrap(coreerr.IO, err, "hybrid: %s", path)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return coreerr.New(coreerr.IO, "hybrid: %s: status %d", path, httpResp.StatusCode)
	}
	if resp == nil {
		return nil
	}
	if err := json.NewDecoder(httpResp.Body).Decode(resp); err != nil {
		return coreerr.Wrap(coreerr.Internal, err, "hybrid: decoding %s response", path)
	}
	return nil
}

// Healthz calls POST /healthz.
func (c *Client) Healthz(ctx context.Context) error {
	return c.post(ctx, "/healthz", struct{}{}, nil)
}

// Run calls POST /run, handing the server a serialized bound statement
// and bind data and returning the client-side pipeline descriptors it
// replies with (spec.md §6).
func (c *Client) Run(ctx context.Context, boundStatement, bindData []byte) ([]byte, error) {
	var resp runResponse
	err := c.post(ctx, "/run", runRequest{BoundStatement: boundStatement, BindData: bindData}, &resp)
	return resp.Descriptors, err
}

// PushBatch calls POST /push_batch with one IPC-encoded batch body.
func (c *Client) PushBatch(ctx context.Context, stream StreamId, partition int, ipcBody []byte) error {
	req := pushBatchRequest{QueryID: stream.QueryID, StreamID: stream.StreamID, Partition: partition, IPCBody: ipcBody}
	return c.post(ctx, "/push_batch", req, nil)
}

// Finalize calls POST /push_batch with Final set, the terminator RPC for
// (stream, partition).
func (c *Client) Finalize(ctx context.Context, stream StreamId, partition int) error {
	req := pushBatchRequest{QueryID: stream.QueryID, StreamID: stream.StreamID, Partition: partition, Final: true}
	return c.post(ctx, "/push_batch", req, nil)
}

// PullBatch calls POST /pull_batch once and reports the decoded status.
func (c *Client) PullBatch(ctx context.Context, stream StreamId, partition int) (PullStatus, []byte, error) {
	req := pullBatchRequest{QueryID: stream.QueryID, StreamID: stream.StreamID, Partition: partition}
	var resp pullBatchResponse
	if err := c.post(ctx, "/pull_batch", req, &resp); err != nil {
		return 0, nil, err
	}
	switch resp.Status {
	case "Batch":
		return PullBatch, resp.IPCBody, nil
	case "Pending":
		return PullPending, nil, nil
	case "Finished":
		return PullFinished, nil, nil
	default:
		return 0, nil, coreerr.New(coreerr.Internal, "hybrid: unrecognized pull status %q", resp.Status)
	}
}

// PollUntilBatch repeatedly calls PullBatch with the given backoff until
// a batch or Finished arrives, blocking the caller's goroutine — a
// simple stand-in for the scheduler's own non-blocking poll/waker model
// at the network boundary, where a real waker would instead be driven by
// the HTTP round trip completing asynchronously.
func (c *Client) PollUntilBatch(ctx context.Context, stream StreamId, partition int, backoff time.Duration) (PullStatus, []byte, error) {
	for {
		status, body, err := c.PullBatch(ctx, stream, partition)
		if err != nil || status != PullPending {
			return status, body, err
		}
		select {
		case <-ctx.Done():
			return 0, nil, fmt.Errorf("hybrid: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}
}
