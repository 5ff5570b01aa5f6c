// Package ipcformat implements the Arrow-style IPC streaming framing
// described in spec.md §6: a continuation-marker-prefixed sequence of
// length-delimited messages (a Schema message, then zero or more
// RecordBatch messages, terminated by a zero-length message), used both
// to persist batches and as the on-wire body of the hybrid stream bridge
// (spec.md §4.6). Grounded on the teacher's own length-prefixed framing
// idiom (ion/writer.go's TLV segments), with the field-node/buffer-offset
// body shape adapted from rayexec_bullet's ipc writer/reader
// (original_source).
package ipcformat

import (
	"github.com/coredbio/coredb/array"
)

// ContinuationMarker is the four-byte marker spec.md §6 prefixes every
// IPC message with.
const ContinuationMarker = 0xFFFFFFFF

// FieldNode carries a column's (length, null_count) pair, as spec.md §6
// describes ("field nodes carry (length, null_count)").
type FieldNode struct {
	Length    int64
	NullCount int64
}

// BufferRange is a (offset, length) reference into a RecordBatch
// message's body (spec.md §6: "references buffers by offset/length into
// the body").
type BufferRange struct {
	Offset int64
	Length int64
}

// FieldSchema is one column's type, used by the Schema message.
type FieldSchema struct {
	Name     string
	Type     array.DataType
	Nullable bool
}

// Schema is the first message of an IPC stream.
type Schema struct {
	Fields []FieldSchema
}

// SchemaOf derives a Schema from a batch's column types and the given
// names, for callers that don't otherwise track a schema alongside their
// batches.
func SchemaOf(batch *array.Batch, names []string) Schema {
	fields := make([]FieldSchema, batch.NumCols())
	for i, c := range batch.Columns {
		fields[i] = FieldSchema{Name: names[i], Type: c.Type, Nullable: true}
	}
	return Schema{Fields: fields}
}

// RecordBatch is one batch's metadata: field nodes in column order and
// the buffer ranges each column's physical storage occupies in the
// message body, plus the body bytes themselves.
type RecordBatch struct {
	NumRows int64
	Nodes   []FieldNode
	Buffers []BufferRange
	Body    []byte
}
