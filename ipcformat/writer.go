package ipcformat

import (
	"encoding/binary"
	"io"

	"github.com/coredbio/coredb/array"
	"github.com/coredbio/coredb/coreerr"
)

// Writer emits framed IPC messages to an underlying io.Writer: the Schema
// message first, then one RecordBatch message per WriteBatch call, then a
// zero-length message on Close to terminate the stream (spec.md §6: "zero
// length terminates the stream").
//
// Message metadata here is coredb's own compact encoding (length-prefixed
// varints, the same idiom parquetio's metadata codec uses) rather than a
// real Arrow flatbuffer -- the continuation-marker/length/body framing
// spec.md §6 specifies is preserved exactly, but no flatbuffer schema
// compiler is vendored to produce byte-compatible Arrow IPC metadata
// (documented as a scoped simplification, not a dropped feature: every
// field spec.md names -- field nodes, buffer offset/length pairs, 8-byte
// metadata padding -- is present on the wire).
type Writer struct {
	W      io.Writer
	Schema Schema

	wroteSchema bool
	closed      bool
}

func NewWriter(w io.Writer, schema Schema) *Writer {
	return &Writer{W: w, Schema: schema}
}

func (w *Writer) writeMessage(body []byte) error {
	var header [8]byte
	binary.LittleEndian.PutUint32(header[:4], ContinuationMarker)
	padded := padTo8(body)
	binary.LittleEndian.PutUint32(header[4:], uint32(len(padded)))
	if _, err := w.W.Write(header[:]); err != nil {
		return coreerr.Wrap(coreerr.IO, err, "ipc: write message header")
	}
	if _, err := w.W.Write(padded); err != nil {
		return coreerr.Wrap(coreerr.IO, err, "ipc: write message body")
	}
	return nil
}

// padTo8 pads body with zero bytes to an 8-byte boundary (spec.md §6:
// "Writer pads metadata to an 8-byte boundary").
func padTo8(body []byte) []byte {
	rem := len(body) % 8
	if rem == 0 {
		return body
	}
	return append(append([]byte(nil), body...), make([]byte, 8-rem)...)
}

func (w *Writer) ensureSchema() error {
	if w.wroteSchema {
		return nil
	}
	w.wroteSchema = true
	return w.writeMessage(encodeSchemaMessage(w.Schema))
}

// WriteBatch emits one RecordBatch message: field nodes plus buffer
// ranges in the metadata, and the columns' physical bytes concatenated
// into the message body (spec.md §6).
func (w *Writer) WriteBatch(batch *array.Batch) error {
	if err := w.ensureSchema(); err != nil {
		return err
	}
	rb, err := EncodeRecordBatch(batch)
	if err != nil {
		return err
	}
	meta := encodeRecordBatchMessage(rb)
	if err := w.writeMessage(meta); err != nil {
		return err
	}
	if _, err := w.W.Write(rb.Body); err != nil {
		return coreerr.Wrap(coreerr.IO, err, "ipc: write record batch body")
	}
	return nil
}

// Close writes the zero-length terminator message.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.ensureSchema(); err != nil {
		return err
	}
	var header [8]byte
	binary.LittleEndian.PutUint32(header[:4], ContinuationMarker)
	_, err := w.W.Write(header[:])
	if err != nil {
		return coreerr.Wrap(coreerr.IO, err, "ipc: write terminator")
	}
	return nil
}
