package hybrid

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// Server implements the /rpc/v0/hybrid/* endpoints spec.md §6 names
// (healthz, run, push_batch, pull_batch), backed by a Registry. Grounded
// on cmd/snellerd/server.go's handler-per-route mux style and
// handler_execute_query.go's request/response JSON shape.
type Server struct {
	Registry *Registry
	// Run, if set, handles POST /run: it is handed the raw serialized
	// bound statement + bind data and returns client-side pipeline
	// descriptors, both opaque to Server itself (spec.md §6: "accepts a
	// serialized bound statement + bind data, returns client-side
	// pipeline descriptors").
	Run func(boundStatement, bindData []byte) (descriptors []byte, err error)
}

// Mux builds an http.ServeMux wired to every hybrid endpoint under the
// given prefix (typically "/rpc/v0/hybrid").
func (s *Server) Mux(prefix string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(prefix+"/healthz", s.handleHealthz)
	mux.HandleFunc(prefix+"/run", s.handleRun)
	mux.HandleFunc(prefix+"/push_batch", s.handlePushBatch)
	mux.HandleFunc(prefix+"/pull_batch", s.handlePullBatch)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

type runRequest struct {
	BoundStatement []byte `json:"bound_statement"`
	BindData       []byte `json:"bind_data"`
}

type runResponse struct {
	Descriptors []byte `json:"descriptors"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.Run == nil {
		http.Error(w, "run not configured", http.StatusNotImplemented)
		return
	}
	desc, err := s.Run(req.BoundStatement, req.BindData)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, runResponse{Descriptors: desc})
}

type pushBatchRequest struct {
	QueryID   uuid.UUID `json:"query_id"`
	StreamID  uuid.UUID `json:"stream_id"`
	Partition int       `json:"partition"`
	IPCBody   []byte    `json:"ipc_body,omitempty"`
	// Final, when true, is the terminator RPC for this (stream,
	// partition) — spec.md §4.6's "finalize issues a terminator RPC" —
	// rather than a batch push.
	Final bool `json:"final,omitempty"`
}

func (s *Server) handlePushBatch(w http.ResponseWriter, r *http.Request) {
	var req pushBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stream := StreamId{QueryID: req.QueryID, StreamID: req.StreamID}
	if req.Final {
		s.Registry.Finalize(stream, req.Partition)
	} else {
		s.Registry.Push(stream, req.Partition, req.IPCBody)
	}
	writeJSON(w, struct{}{})
}

type pullBatchRequest struct {
	QueryID   uuid.UUID `json:"query_id"`
	StreamID  uuid.UUID `json:"stream_id"`
	Partition int       `json:"partition"`
}

type pullBatchResponse struct {
	Status  string `json:"status"` // "Batch", "Pending", or "Finished"
	IPCBody []byte `json:"ipc_body,omitempty"`
}

func (s *Server) handlePullBatch(w http.ResponseWriter, r *http.Request) {
	var req pullBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stream := StreamId{QueryID: req.QueryID, StreamID: req.StreamID}
	status, body, err := s.Registry.Pull(stream, req.Partition)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := pullBatchResponse{IPCBody: body}
	switch status {
	case PullBatch:
		resp.Status = "Batch"
	case PullPending:
		resp.Status = "Pending"
	case PullFinished:
		resp.Status = "Finished"
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
