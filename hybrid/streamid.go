// Package hybrid implements the optional hybrid stream bridge of
// spec.md §4.6/§6: a local sink pushes batches to a remote stream source
// over RPC, and a remote source polls for them. Grounded on
// cmd/snellerd's HTTP handler shape (handler_query.go,
// handler_execute_query.go) and tenant/tnproto/remote.go's dial-and-call
// Transport pattern, both adapted from sneller's tenant-proxy RPCs to the
// stream push/pull/finalize surface spec.md §4.6 names.
package hybrid

import "github.com/google/uuid"

// StreamId identifies one directed byte stream within a query (spec.md
// §4.6: "A StreamId{query_id, stream_id} identifies a directed byte
// stream"). Reuses github.com/google/uuid, already a teacher dependency,
// rather than adding a second UUID library for the stream half of the
// pair.
type StreamId struct {
	QueryID  uuid.UUID
	StreamID uuid.UUID
}

// NewStreamId allocates a fresh StreamId scoped to queryID.
func NewStreamId(queryID uuid.UUID) StreamId {
	return StreamId{QueryID: queryID, StreamID: uuid.New()}
}

func (s StreamId) String() string {
	return s.QueryID.String() + "/" + s.StreamID.String()
}
