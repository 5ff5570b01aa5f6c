package parquetio

import (
	"encoding/binary"
	"io"

	"github.com/coredbio/coredb/array"
	"github.com/coredbio/coredb/coreerr"
)

// Magic is the 4-byte Parquet header/trailer marker (spec.md §6: "header
// magic `PAR1`").
const Magic = "PAR1"

// PhysicalType is the on-disk physical representation of a column's
// values, independent of the logical array.DataType it decodes into.
type PhysicalType int

const (
	PhysicalBoolean PhysicalType = iota
	PhysicalInt32
	PhysicalInt64
	PhysicalFloat
	PhysicalDouble
	PhysicalByteArray
)

// Encoding enumerates the page value encodings spec.md §4.4 names. The
// reader and writer implement only EncodingPlain and
// EncodingDeltaLengthByteArray and reject the others as NotImplemented.
type Encoding int

const (
	EncodingPlain Encoding = iota
	EncodingRLEDictionary
	EncodingPlainDictionary
	EncodingDeltaBinaryPacked
	EncodingDeltaLengthByteArray
	EncodingDeltaByteArray
	EncodingByteStreamSplit
	EncodingRLE
)

// CompressionCodec names the page-body compressor.
type CompressionCodec int

const (
	CompressionUncompressed CompressionCodec = iota
	CompressionZstd
)

// ColumnDescriptor is one leaf schema column: its dotted path, physical
// representation, and the max definition/repetition levels a preorder
// schema walk accumulated for it (spec.md §4.4: "a leaf element ...
// produces one ColumnDescriptor with the accumulated path, max
// definition level, and max repetition level").
type ColumnDescriptor struct {
	Path        []string
	Physical    PhysicalType
	Logical     array.DataType
	MaxDefLevel int
	MaxRepLevel int
	Optional    bool
	// Encoding is the page value encoding a Writer should use for this
	// column (zero value EncodingPlain). A reader instead takes its
	// encoding from the page header it reads off disk, since the writer
	// of the file being read need not be this package.
	Encoding Encoding
}

// SchemaElement is one node of the flattened preorder schema tree; leaves
// have NumChildren == 0.
type SchemaElement struct {
	Name        string
	NumChildren int
	Optional    bool
	Physical    PhysicalType
	Logical     array.DataType
}

// ColumnChunkMeta is the per-row-group metadata for one column.
type ColumnChunkMeta struct {
	PathInSchema          []string
	Codec                 CompressionCodec
	Encodings             []Encoding
	NumValues             int64
	TotalUncompressedSize int64
	TotalCompressedSize   int64
	DataPageOffset        int64
}

// RowGroupMeta describes one row group's columns.
type RowGroupMeta struct {
	Columns       []ColumnChunkMeta
	NumRows       int64
	TotalByteSize int64
}

// FileMetadata is the full decoded footer: schema plus every row group
// (spec.md §4.4: "decodes it into schema + row groups + column chunks +
// statistics").
type FileMetadata struct {
	Schema    []SchemaElement
	RowGroups []RowGroupMeta
	NumRows   int64
}

// ColumnDescriptors walks Schema in preorder, accumulating definition and
// repetition levels exactly the way spec.md §4.4 describes, and returns
// one ColumnDescriptor per leaf (num_children absent or zero). Schema[0]
// is the implicit file-level root group and contributes no path segment
// of its own -- only its descendants' names build a column's path.
func (m *FileMetadata) ColumnDescriptors() []ColumnDescriptor {
	var out []ColumnDescriptor
	var walk func(idx int, path []string, def, rep int) int
	walk = func(idx int, path []string, def, rep int) int {
		el := m.Schema[idx]
		p := append(append([]string(nil), path...), el.Name)
		nextDef := def
		if el.Optional {
			nextDef++
		}
		if el.NumChildren == 0 {
			out = append(out, ColumnDescriptor{
				Path:        p,
				Physical:    el.Physical,
				Logical:     el.Logical,
				MaxDefLevel: nextDef,
				MaxRepLevel: rep,
				Optional:    el.Optional,
			})
			return idx + 1
		}
		next := idx + 1
		for c := 0; c < el.NumChildren; c++ {
			next = walk(next, p, nextDef, rep)
		}
		return next
	}
	if len(m.Schema) == 0 {
		return nil
	}
	root := m.Schema[0]
	next := 1
	for c := 0; c < root.NumChildren; c++ {
		next = walk(next, nil, 0, 0)
	}
	return out
}

// WriteTrailer writes the thrift-compact-shaped metadata block (encoded
// by encodeMetadata) followed by the 8-byte trailer `[u32 metadata
// length][4-byte magic]` (spec.md §4.4/§6).
func WriteTrailer(w io.Writer, meta *FileMetadata) error {
	body := encodeMetadata(meta)
	if _, err := w.Write(body); err != nil {
		return coreerr.Wrap(coreerr.IO, err, "parquet: write metadata")
	}
	var trailer [8]byte
	binary.LittleEndian.PutUint32(trailer[:4], uint32(len(body)))
	copy(trailer[4:], Magic)
	if _, err := w.Write(trailer[:]); err != nil {
		return coreerr.Wrap(coreerr.IO, err, "parquet: write trailer")
	}
	return nil
}

// ReadTrailer loads file metadata from the end of a Parquet file: it
// reads the last 8 bytes, decodes the metadata length, reads the
// metadata block, and decodes it (spec.md §4.4's four-step loader).
func ReadTrailer(r io.ReaderAt, size int64) (*FileMetadata, error) {
	if size < 8 {
		return nil, coreerr.New(coreerr.Parse, "parquet: file too small for trailer")
	}
	var trailer [8]byte
	if _, err := r.ReadAt(trailer[:], size-8); err != nil {
		return nil, coreerr.Wrap(coreerr.IO, err, "parquet: read trailer")
	}
	if string(trailer[4:]) != Magic {
		return nil, coreerr.New(coreerr.Parse, "parquet: bad trailer magic %q", trailer[4:])
	}
	mlen := int64(binary.LittleEndian.Uint32(trailer[:4]))
	if mlen < 0 || mlen > size-8 {
		return nil, coreerr.New(coreerr.Parse, "parquet: implausible metadata length %d", mlen)
	}
	body := make([]byte, mlen)
	if _, err := r.ReadAt(body, size-8-mlen); err != nil {
		return nil, coreerr.Wrap(coreerr.IO, err, "parquet: read metadata block")
	}
	return decodeMetadata(body)
}
