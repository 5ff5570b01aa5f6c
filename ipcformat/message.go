package ipcformat

import "github.com/coredbio/coredb/array"

// messageKind tags which of the two message shapes a decoded message
// metadata block is (spec.md §6: "Schema is the first message; record
// batches follow").
type messageKind int

const (
	messageSchema messageKind = iota
	messageRecordBatch
)

func encodeULEB(buf []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}

func decodeULEB(buf []byte, pos *int) uint64 {
	var value uint64
	var shift uint
	for *pos < len(buf) {
		b := buf[*pos]
		*pos++
		value |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return value
		}
		shift += 7
	}
	return value
}

func encodeStr(buf []byte, s string) []byte {
	buf = encodeULEB(buf, uint64(len(s)))
	return append(buf, s...)
}

func decodeStr(buf []byte, pos *int) string {
	n := int(decodeULEB(buf, pos))
	s := string(buf[*pos : *pos+n])
	*pos += n
	return s
}

func encodeSchemaMessage(s Schema) []byte {
	var buf []byte
	buf = encodeULEB(buf, uint64(messageSchema))
	buf = encodeULEB(buf, uint64(len(s.Fields)))
	for _, f := range s.Fields {
		buf = encodeStr(buf, f.Name)
		buf = encodeULEB(buf, uint64(f.Type.ID))
		if f.Nullable {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}

func decodeSchemaMessage(buf []byte) Schema {
	pos := 0
	_ = decodeULEB(buf, &pos) // messageSchema tag, already dispatched on by caller
	n := int(decodeULEB(buf, &pos))
	fields := make([]FieldSchema, n)
	for i := range fields {
		fields[i].Name = decodeStr(buf, &pos)
		fields[i].Type = array.DataType{ID: array.TypeID(decodeULEB(buf, &pos))}
		fields[i].Nullable = buf[pos] != 0
		pos++
	}
	return Schema{Fields: fields}
}

func encodeRecordBatchMessage(rb *RecordBatch) []byte {
	var buf []byte
	buf = encodeULEB(buf, uint64(messageRecordBatch))
	buf = encodeULEB(buf, uint64(rb.NumRows))
	buf = encodeULEB(buf, uint64(len(rb.Nodes)))
	for _, n := range rb.Nodes {
		buf = encodeULEB(buf, uint64(n.Length))
		buf = encodeULEB(buf, uint64(n.NullCount))
	}
	buf = encodeULEB(buf, uint64(len(rb.Buffers)))
	for _, b := range rb.Buffers {
		buf = encodeULEB(buf, uint64(b.Offset))
		buf = encodeULEB(buf, uint64(b.Length))
	}
	return buf
}

// decodeRecordBatchMessage decodes the metadata of a RecordBatch message;
// Body must be filled in separately by the caller, which knows the body's
// byte length from the message framing.
func decodeRecordBatchMessage(buf []byte) *RecordBatch {
	pos := 0
	_ = decodeULEB(buf, &pos) // messageRecordBatch tag
	rb := &RecordBatch{}
	rb.NumRows = int64(decodeULEB(buf, &pos))
	numNodes := int(decodeULEB(buf, &pos))
	rb.Nodes = make([]FieldNode, numNodes)
	for i := range rb.Nodes {
		rb.Nodes[i].Length = int64(decodeULEB(buf, &pos))
		rb.Nodes[i].NullCount = int64(decodeULEB(buf, &pos))
	}
	numBufs := int(decodeULEB(buf, &pos))
	rb.Buffers = make([]BufferRange, numBufs)
	for i := range rb.Buffers {
		rb.Buffers[i].Offset = int64(decodeULEB(buf, &pos))
		rb.Buffers[i].Length = int64(decodeULEB(buf, &pos))
	}
	return rb
}

func peekMessageKind(buf []byte) messageKind {
	pos := 0
	return messageKind(decodeULEB(buf, &pos))
}
