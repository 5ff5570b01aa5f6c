package ipcformat

import (
	"encoding/binary"
	"math"

	"github.com/coredbio/coredb/array"
	"github.com/coredbio/coredb/coreerr"
)

// EncodeRecordBatch flattens a Batch's columns into field nodes, buffer
// ranges, and a single concatenated body: each column contributes a
// validity buffer (always (rows+7)/8 bytes, even when all-valid) followed by its value
// buffer(s), matching spec.md §6's "RecordBatch references buffers by
// offset/length into the body".
func EncodeRecordBatch(batch *array.Batch) (*RecordBatch, error) {
	rb := &RecordBatch{NumRows: int64(batch.NumRows)}
	var body []byte
	for _, col := range batch.Columns {
		n := col.LogicalLen()
		nullCount := 0
		for i := 0; i < n; i++ {
			if !col.IsValid(i) {
				nullCount++
			}
		}
		rb.Nodes = append(rb.Nodes, FieldNode{Length: int64(n), NullCount: int64(nullCount)})

		validity := encodeValidity(col, n)
		body, rb.Buffers = appendBuffer(body, rb.Buffers, validity)

		valueBufs, err := encodeValueBuffers(col, n)
		if err != nil {
			return nil, err
		}
		for _, vb := range valueBufs {
			body, rb.Buffers = appendBuffer(body, rb.Buffers, vb)
		}
	}
	rb.Body = body
	return rb, nil
}

func appendBuffer(body []byte, ranges []BufferRange, buf []byte) ([]byte, []BufferRange) {
	ranges = append(ranges, BufferRange{Offset: int64(len(body)), Length: int64(len(buf))})
	return append(body, buf...), ranges
}

func encodeValidity(col *array.Array, n int) []byte {
	out := make([]byte, (n+7)/8)
	for i := 0; i < n; i++ {
		if col.IsValid(i) {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

// encodeValueBuffers returns the value buffer(s) for one column's logical
// rows: fixed-width types produce one densely packed buffer; varlen types
// produce an offsets buffer followed by a data buffer (spec.md §3's
// offset+data layout carried straight onto the wire).
func encodeValueBuffers(col *array.Array, n int) ([][]byte, error) {
	switch col.Type.ID {
	case array.Boolean:
		out := make([]byte, (n+7)/8)
		for i := 0; i < n; i++ {
			if col.IsValid(i) && col.LogicalValue(i).Bool {
				out[i/8] |= 1 << uint(i%8)
			}
		}
		return [][]byte{out}, nil
	case array.Int32:
		out := make([]byte, n*4)
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(col.LogicalValue(i).I32))
		}
		return [][]byte{out}, nil
	case array.Int64:
		out := make([]byte, n*8)
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint64(out[i*8:], uint64(col.LogicalValue(i).I64))
		}
		return [][]byte{out}, nil
	case array.Float32:
		out := make([]byte, n*4)
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(col.LogicalValue(i).F32))
		}
		return [][]byte{out}, nil
	case array.Float64:
		out := make([]byte, n*8)
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(col.LogicalValue(i).F64))
		}
		return [][]byte{out}, nil
	case array.Utf8, array.Binary:
		offsets := make([]byte, (n+1)*4)
		var data []byte
		for i := 0; i < n; i++ {
			v := col.LogicalValue(i)
			var b []byte
			if col.Type.ID == array.Utf8 {
				b = []byte(v.Str)
			} else {
				b = v.Bytes
			}
			data = append(data, b...)
			binary.LittleEndian.PutUint32(offsets[(i+1)*4:], uint32(len(data)))
		}
		return [][]byte{offsets, data}, nil
	default:
		return nil, coreerr.New(coreerr.NotImplemented, "ipc: encode type %s", col.Type)
	}
}

// DecodeRecordBatch reconstructs a Batch from a RecordBatch message and
// its field schema, reversing EncodeRecordBatch.
func DecodeRecordBatch(schema Schema, rb *RecordBatch) (*array.Batch, error) {
	n := int(rb.NumRows)
	cols := make([]*array.Array, len(schema.Fields))
	bi := 0
	for ci, f := range schema.Fields {
		validityRange := rb.Buffers[bi]
		bi++
		validity := decodeBitmap(rb.Body[validityRange.Offset:validityRange.Offset+validityRange.Length], n)

		switch f.Type.ID {
		case array.Boolean:
			r := rb.Buffers[bi]
			bi++
			bits := decodeBitmap(rb.Body[r.Offset:r.Offset+r.Length], n)
			cols[ci] = &array.Array{Type: f.Type, Storage: &array.BoolStorage{Bits: bits, N: n}, Validity: validity}
		case array.Int32:
			r := rb.Buffers[bi]
			bi++
			vals := make([]int32, n)
			buf := rb.Body[r.Offset : r.Offset+r.Length]
			for i := range vals {
				vals[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
			}
			cols[ci] = &array.Array{Type: f.Type, Storage: &array.Int32Storage{Values: vals}, Validity: validity}
		case array.Int64:
			r := rb.Buffers[bi]
			bi++
			vals := make([]int64, n)
			buf := rb.Body[r.Offset : r.Offset+r.Length]
			for i := range vals {
				vals[i] = int64(binary.LittleEndian.Uint64(buf[i*8:]))
			}
			cols[ci] = &array.Array{Type: f.Type, Storage: &array.Int64Storage{Values: vals}, Validity: validity}
		case array.Float32:
			r := rb.Buffers[bi]
			bi++
			vals := make([]float32, n)
			buf := rb.Body[r.Offset : r.Offset+r.Length]
			for i := range vals {
				vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
			}
			cols[ci] = &array.Array{Type: f.Type, Storage: &array.Float32Storage{Values: vals}, Validity: validity}
		case array.Float64:
			r := rb.Buffers[bi]
			bi++
			vals := make([]float64, n)
			buf := rb.Body[r.Offset : r.Offset+r.Length]
			for i := range vals {
				vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
			}
			cols[ci] = &array.Array{Type: f.Type, Storage: &array.Float64Storage{Values: vals}, Validity: validity}
		case array.Utf8, array.Binary:
			or := rb.Buffers[bi]
			bi++
			dr := rb.Buffers[bi]
			bi++
			offBuf := rb.Body[or.Offset : or.Offset+or.Length]
			offsets := make([]int32, n+1)
			for i := range offsets {
				offsets[i] = int32(binary.LittleEndian.Uint32(offBuf[i*4:]))
			}
			data := rb.Body[dr.Offset : dr.Offset+dr.Length]
			cols[ci] = &array.Array{Type: f.Type, Storage: &array.VarlenStorage{Offsets: offsets, Data: data}, Validity: validity}
		default:
			return nil, coreerr.New(coreerr.NotImplemented, "ipc: decode type %s", f.Type)
		}
	}
	return array.NewBatch(cols, n), nil
}

func decodeBitmap(buf []byte, n int) *array.Bitmap {
	b := array.NewBitmap(n)
	for i := 0; i < n; i++ {
		if i/8 < len(buf) && buf[i/8]&(1<<uint(i%8)) != 0 {
			b.Set(i)
		}
	}
	return b
}
