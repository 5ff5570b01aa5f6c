package exec

import "github.com/coredbio/coredb/array"

// DDLAction performs one catalog mutation (CREATE SCHEMA / CREATE TABLE)
// and reports the single status row to emit, or an error. coredb treats
// the catalog itself as an external collaborator (spec.md §1), so
// DDLAction is a caller-supplied closure rather than a concrete catalog
// implementation.
type DDLAction func() (*array.Batch, error)

// DDL runs CreateSchema/CreateTable as a one-shot source operator: the
// first PollPull executes Action and returns its single status batch,
// every subsequent poll reports Exhausted (spec.md §4.3: "CreateSchema/
// CreateTable"). Grounded on the teacher's own DDL handler shape
// (cmd/snellerd's admin-path handlers execute once and report a status),
// adapted to the poll/waker source contract.
type DDL struct {
	Action DDLAction
}

type ddlPartitionState struct {
	ran bool
}

func (d *DDL) NewPartitionState() any { return &ddlPartitionState{} }

func (d *DDL) PollPush(cx *Context, partitionState any, batch *array.Batch) PollPushResult {
	panic("exec: DDL has no push side")
}

func (d *DDL) PollFinalizePush(cx *Context, partitionState any) PollFinalizeResult {
	return PollFinalizeResult{Status: Finalized}
}

func (d *DDL) PollPull(cx *Context, partitionState any) PollPullResult {
	ps := partitionState.(*ddlPartitionState)
	if ps.ran {
		return PollPullResult{Status: PullExhausted}
	}
	ps.ran = true
	batch, err := d.Action()
	if err != nil {
		return PollPullResult{Err: err}
	}
	return PollPullResult{Status: PullBatch, Batch: batch}
}
