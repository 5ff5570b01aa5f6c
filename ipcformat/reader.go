package ipcformat

import (
	"encoding/binary"
	"io"

	"github.com/coredbio/coredb/array"
	"github.com/coredbio/coredb/coreerr"
)

// Reader drives an IPC stream written by Writer: the first message is the
// Schema, then ReadBatch returns one *array.Batch per RecordBatch message
// until the zero-length terminator is reached (spec.md §6).
type Reader struct {
	R      io.Reader
	Schema Schema

	readSchema bool
	done       bool
}

func NewReader(r io.Reader) *Reader {
	return &Reader{R: r}
}

// readMessage reads one framed message's metadata bytes, or (nil, true,
// nil) at the zero-length terminator.
func (r *Reader) readMessage() ([]byte, bool, error) {
	var header [8]byte
	if _, err := io.ReadFull(r.R, header[:]); err != nil {
		return nil, false, coreerr.Wrap(coreerr.IO, err, "ipc: read message header")
	}
	marker := binary.LittleEndian.Uint32(header[:4])
	if marker != ContinuationMarker {
		return nil, false, coreerr.New(coreerr.Parse, "ipc: missing continuation marker")
	}
	mlen := binary.LittleEndian.Uint32(header[4:])
	if mlen == 0 {
		return nil, true, nil
	}
	buf := make([]byte, mlen)
	if _, err := io.ReadFull(r.R, buf); err != nil {
		return nil, false, coreerr.Wrap(coreerr.IO, err, "ipc: read message body")
	}
	return buf, false, nil
}

func (r *Reader) ensureSchema() error {
	if r.readSchema {
		return nil
	}
	meta, terminator, err := r.readMessage()
	if err != nil {
		return err
	}
	if terminator || peekMessageKind(meta) != messageSchema {
		return coreerr.New(coreerr.Parse, "ipc: expected schema message first")
	}
	r.Schema = decodeSchemaMessage(meta)
	r.readSchema = true
	return nil
}

// ReadBatch returns the next record batch, or (nil, false, nil) once the
// stream's terminator message has been reached.
func (r *Reader) ReadBatch() (*array.Batch, bool, error) {
	if err := r.ensureSchema(); err != nil {
		return nil, false, err
	}
	if r.done {
		return nil, false, nil
	}
	meta, terminator, err := r.readMessage()
	if err != nil {
		return nil, false, err
	}
	if terminator {
		r.done = true
		return nil, false, nil
	}
	if peekMessageKind(meta) != messageRecordBatch {
		return nil, false, coreerr.New(coreerr.Parse, "ipc: expected record batch message")
	}
	rb := decodeRecordBatchMessage(meta)
	bodyLen := int64(0)
	for _, b := range rb.Buffers {
		if end := b.Offset + b.Length; end > bodyLen {
			bodyLen = end
		}
	}
	rb.Body = make([]byte, bodyLen)
	if _, err := io.ReadFull(r.R, rb.Body); err != nil {
		return nil, false, coreerr.Wrap(coreerr.IO, err, "ipc: read record batch body")
	}
	batch, err := DecodeRecordBatch(r.Schema, rb)
	if err != nil {
		return nil, false, err
	}
	return batch, true, nil
}
