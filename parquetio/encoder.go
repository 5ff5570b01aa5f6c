package parquetio

import (
	"encoding/binary"
	"math"

	"github.com/klauspost/compress/zstd"

	"github.com/coredbio/coredb/coreerr"
)

// PageHeaderV2 is the subset of the Parquet V2 data page header spec.md
// §4.4/§6 requires: encoding, null count, value count, row count, and
// (V2-specific) the uncompressed byte length of the definition- and
// repetition-level sections that precede the (possibly compressed) value
// bytes.
type PageHeaderV2 struct {
	Encoding              Encoding
	NumValues             int
	NumNulls              int
	NumRows               int
	DefLevelsByteLength   int
	RepLevelsByteLength   int
	UncompressedPageSize  int
	CompressedPageSize    int
}

// EncodePageHeaderV2 serializes a PageHeaderV2 with the same ULEB128
// field framing encodeMetadata uses.
func EncodePageHeaderV2(h PageHeaderV2) []byte {
	var buf []byte
	buf = EncodeULEB128(buf, uint64(h.Encoding))
	buf = EncodeULEB128(buf, uint64(h.NumValues))
	buf = EncodeULEB128(buf, uint64(h.NumNulls))
	buf = EncodeULEB128(buf, uint64(h.NumRows))
	buf = EncodeULEB128(buf, uint64(h.DefLevelsByteLength))
	buf = EncodeULEB128(buf, uint64(h.RepLevelsByteLength))
	buf = EncodeULEB128(buf, uint64(h.UncompressedPageSize))
	buf = EncodeULEB128(buf, uint64(h.CompressedPageSize))
	return buf
}

// DecodePageHeaderV2 decodes a PageHeaderV2 and returns the number of
// bytes consumed.
func DecodePageHeaderV2(buf []byte) (PageHeaderV2, int, error) {
	d := &metaDecoder{buf: buf}
	var h PageHeaderV2
	h.Encoding = Encoding(d.uleb())
	h.NumValues = int(d.uleb())
	h.NumNulls = int(d.uleb())
	h.NumRows = int(d.uleb())
	h.DefLevelsByteLength = int(d.uleb())
	h.RepLevelsByteLength = int(d.uleb())
	h.UncompressedPageSize = int(d.uleb())
	h.CompressedPageSize = int(d.uleb())
	if d.err != nil {
		return h, 0, d.err
	}
	return h, d.pos, nil
}

// Compress compresses src per codec; CompressionUncompressed returns src
// unchanged.
func Compress(codec CompressionCodec, src []byte) ([]byte, error) {
	switch codec {
	case CompressionUncompressed:
		return src, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, coreerr.Wrap(coreerr.Internal, err, "parquet: zstd writer")
		}
		defer enc.Close()
		return enc.EncodeAll(src, nil), nil
	default:
		return nil, coreerr.New(coreerr.NotImplemented, "parquet: compression codec %d", codec)
	}
}

// Decompress inverts Compress, given the expected uncompressed length.
func Decompress(codec CompressionCodec, src []byte, uncompressedLen int) ([]byte, error) {
	switch codec {
	case CompressionUncompressed:
		return src, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, coreerr.Wrap(coreerr.Internal, err, "parquet: zstd reader")
		}
		defer dec.Close()
		out, err := dec.DecodeAll(src, make([]byte, 0, uncompressedLen))
		if err != nil {
			return nil, coreerr.Wrap(coreerr.Parse, err, "parquet: zstd decode")
		}
		return out, nil
	default:
		return nil, coreerr.New(coreerr.NotImplemented, "parquet: compression codec %d", codec)
	}
}

// PlainEncode appends the PLAIN physical encoding of values to buf.
// Booleans pack 8 per byte LSB-first; INT32/INT64/FLOAT/DOUBLE are
// fixed-width little-endian; BYTE_ARRAY is a u32 length prefix per value
// followed by its raw bytes (spec.md §4.4: "Encoding selection ... first
// applicable of PLAIN ...").
func PlainEncodeInt32(buf []byte, values []int32) []byte {
	for _, v := range values {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(v))
		buf = append(buf, tmp[:]...)
	}
	return buf
}

func PlainEncodeInt64(buf []byte, values []int64) []byte {
	for _, v := range values {
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(v))
		buf = append(buf, tmp[:]...)
	}
	return buf
}

func PlainEncodeFloat32(buf []byte, values []float32) []byte {
	for _, v := range values {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(v))
		buf = append(buf, tmp[:]...)
	}
	return buf
}

func PlainEncodeFloat64(buf []byte, values []float64) []byte {
	for _, v := range values {
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
		buf = append(buf, tmp[:]...)
	}
	return buf
}

func PlainEncodeBoolean(buf []byte, values []bool) []byte {
	nbytes := (len(values) + 7) / 8
	start := len(buf)
	buf = append(buf, make([]byte, nbytes)...)
	for i, v := range values {
		if v {
			buf[start+i/8] |= 1 << uint(i%8)
		}
	}
	return buf
}

func PlainEncodeByteArray(buf []byte, values [][]byte) []byte {
	for _, v := range values {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(v)))
		buf = append(buf, tmp[:]...)
		buf = append(buf, v...)
	}
	return buf
}

func PlainDecodeInt32(buf []byte, n int) ([]int32, error) {
	if len(buf) < n*4 {
		return nil, coreerr.New(coreerr.Parse, "parquet: truncated INT32 page")
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, nil
}

func PlainDecodeInt64(buf []byte, n int) ([]int64, error) {
	if len(buf) < n*8 {
		return nil, coreerr.New(coreerr.Parse, "parquet: truncated INT64 page")
	}
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return out, nil
}

func PlainDecodeFloat32(buf []byte, n int) ([]float32, error) {
	if len(buf) < n*4 {
		return nil, coreerr.New(coreerr.Parse, "parquet: truncated FLOAT page")
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, nil
}

func PlainDecodeFloat64(buf []byte, n int) ([]float64, error) {
	if len(buf) < n*8 {
		return nil, coreerr.New(coreerr.Parse, "parquet: truncated DOUBLE page")
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return out, nil
}

func PlainDecodeBoolean(buf []byte, n int) ([]bool, error) {
	if len(buf) < (n+7)/8 {
		return nil, coreerr.New(coreerr.Parse, "parquet: truncated BOOLEAN page")
	}
	out := make([]bool, n)
	for i := range out {
		out[i] = buf[i/8]&(1<<uint(i%8)) != 0
	}
	return out, nil
}

func PlainDecodeByteArray(buf []byte, n int) ([][]byte, error) {
	out := make([][]byte, n)
	pos := 0
	for i := 0; i < n; i++ {
		if pos+4 > len(buf) {
			return nil, coreerr.New(coreerr.Parse, "parquet: truncated BYTE_ARRAY length")
		}
		l := int(binary.LittleEndian.Uint32(buf[pos:]))
		pos += 4
		if pos+l > len(buf) {
			return nil, coreerr.New(coreerr.Parse, "parquet: truncated BYTE_ARRAY value")
		}
		out[i] = buf[pos : pos+l]
		pos += l
	}
	return out, nil
}

// DeltaEncodeLengths is DELTA_LENGTH_BYTE_ARRAY's length stream: lengths
// delta-encoded then bit-packed is the general Parquet scheme, but since
// coredb targets the teacher's own compression stack rather than a
// dedicated delta-bitpacking codec, lengths are ULEB128-varint-encoded
// directly -- still a strict byte-size win over fixed 4-byte lengths for
// the common case of small, similar string lengths, and it is the
// "DELTA_LENGTH_BYTE_ARRAY convention" recorded as the chosen Open
// Question resolution (spec.md §9(c)).
func DeltaEncodeLengths(buf []byte, lengths []int) []byte {
	for _, l := range lengths {
		buf = EncodeULEB128(buf, uint64(l))
	}
	return buf
}

func DeltaDecodeLengths(buf []byte, n int) ([]int, int, error) {
	out := make([]int, n)
	pos := 0
	for i := 0; i < n; i++ {
		v, used, err := DecodeULEB128(buf[pos:])
		if err != nil {
			return nil, 0, coreerr.Wrap(coreerr.Parse, err, "delta length %d", i)
		}
		out[i] = int(v)
		pos += used
	}
	return out, pos, nil
}
