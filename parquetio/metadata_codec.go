package parquetio

import (
	"github.com/coredbio/coredb/array"
	"github.com/coredbio/coredb/coreerr"
)

// encodeMetadata/decodeMetadata serialize FileMetadata using the same
// length-prefixed-varint framing idiom Thrift's compact protocol uses for
// strings and collections (a ULEB128 count or byte-length ahead of the
// payload), without implementing the general Thrift compact protocol:
// coredb's metadata shape is fixed (schema/row-groups/column-chunks), so
// a direct field-by-field varint encoder captures the on-disk framing
// spec.md §4.4 describes (ULEB128-driven length prefixes) without the
// overhead of a generic struct encoder.

func encodeMetadata(m *FileMetadata) []byte {
	var buf []byte
	buf = EncodeULEB128(buf, uint64(m.NumRows))
	buf = EncodeULEB128(buf, uint64(len(m.Schema)))
	for _, el := range m.Schema {
		buf = encodeString(buf, el.Name)
		buf = EncodeULEB128(buf, uint64(el.NumChildren))
		buf = appendBool(buf, el.Optional)
		buf = EncodeULEB128(buf, uint64(el.Physical))
		buf = encodeDataType(buf, el.Logical)
	}
	buf = EncodeULEB128(buf, uint64(len(m.RowGroups)))
	for _, rg := range m.RowGroups {
		buf = EncodeULEB128(buf, uint64(rg.NumRows))
		buf = EncodeULEB128(buf, uint64(rg.TotalByteSize))
		buf = EncodeULEB128(buf, uint64(len(rg.Columns)))
		for _, cc := range rg.Columns {
			buf = EncodeULEB128(buf, uint64(len(cc.PathInSchema)))
			for _, p := range cc.PathInSchema {
				buf = encodeString(buf, p)
			}
			buf = EncodeULEB128(buf, uint64(cc.Codec))
			buf = EncodeULEB128(buf, uint64(len(cc.Encodings)))
			for _, e := range cc.Encodings {
				buf = EncodeULEB128(buf, uint64(e))
			}
			buf = EncodeULEB128(buf, uint64(cc.NumValues))
			buf = EncodeULEB128(buf, uint64(cc.TotalUncompressedSize))
			buf = EncodeULEB128(buf, uint64(cc.TotalCompressedSize))
			buf = EncodeULEB128(buf, uint64(cc.DataPageOffset))
		}
	}
	return buf
}

func decodeMetadata(buf []byte) (*FileMetadata, error) {
	dec := &metaDecoder{buf: buf}
	m := &FileMetadata{}
	m.NumRows = int64(dec.uleb())
	numSchema := int(dec.uleb())
	m.Schema = make([]SchemaElement, numSchema)
	for i := range m.Schema {
		m.Schema[i].Name = dec.str()
		m.Schema[i].NumChildren = int(dec.uleb())
		m.Schema[i].Optional = dec.boolean()
		m.Schema[i].Physical = PhysicalType(dec.uleb())
		m.Schema[i].Logical = dec.dataType()
	}
	numRG := int(dec.uleb())
	m.RowGroups = make([]RowGroupMeta, numRG)
	for i := range m.RowGroups {
		rg := &m.RowGroups[i]
		rg.NumRows = int64(dec.uleb())
		rg.TotalByteSize = int64(dec.uleb())
		numCols := int(dec.uleb())
		rg.Columns = make([]ColumnChunkMeta, numCols)
		for c := range rg.Columns {
			cc := &rg.Columns[c]
			pathLen := int(dec.uleb())
			cc.PathInSchema = make([]string, pathLen)
			for p := range cc.PathInSchema {
				cc.PathInSchema[p] = dec.str()
			}
			cc.Codec = CompressionCodec(dec.uleb())
			numEnc := int(dec.uleb())
			cc.Encodings = make([]Encoding, numEnc)
			for e := range cc.Encodings {
				cc.Encodings[e] = Encoding(dec.uleb())
			}
			cc.NumValues = int64(dec.uleb())
			cc.TotalUncompressedSize = int64(dec.uleb())
			cc.TotalCompressedSize = int64(dec.uleb())
			cc.DataPageOffset = int64(dec.uleb())
		}
	}
	if dec.err != nil {
		return nil, dec.err
	}
	return m, nil
}

type metaDecoder struct {
	buf []byte
	pos int
	err error
}

func (d *metaDecoder) uleb() uint64 {
	if d.err != nil {
		return 0
	}
	v, n, err := DecodeULEB128(d.buf[d.pos:])
	if err != nil {
		d.err = err
		return 0
	}
	d.pos += n
	return v
}

func (d *metaDecoder) boolean() bool {
	if d.err != nil || d.pos >= len(d.buf) {
		d.err = coreerr.New(coreerr.Parse, "parquet metadata: truncated bool")
		return false
	}
	v := d.buf[d.pos] != 0
	d.pos++
	return v
}

func (d *metaDecoder) str() string {
	n := int(d.uleb())
	if d.err != nil {
		return ""
	}
	if d.pos+n > len(d.buf) {
		d.err = coreerr.New(coreerr.Parse, "parquet metadata: truncated string")
		return ""
	}
	s := string(d.buf[d.pos : d.pos+n])
	d.pos += n
	return s
}

// dataType decodes the logical element type recorded for a schema leaf.
// Only the primitive TypeIDs parquet columns carry (Boolean/Int32/Int64/
// Float32/Float64/Utf8/Binary) are meaningful here; List/Struct never
// appear as a leaf's Logical since nested types are expressed through
// NumChildren, not a leaf physical column.
func (d *metaDecoder) dataType() array.DataType {
	return array.DataType{ID: array.TypeID(d.uleb())}
}

func encodeDataType(buf []byte, t array.DataType) []byte {
	return EncodeULEB128(buf, uint64(t.ID))
}

func encodeString(buf []byte, s string) []byte {
	buf = EncodeULEB128(buf, uint64(len(s)))
	return append(buf, s...)
}

func appendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}
