// Package parquetio implements the Parquet column codec described in
// spec.md §4.4/§6: page-level encode/decode for the physical types the
// array package supports, row-group-oriented file metadata, and the
// trailer/footer framing that locates it.
package parquetio

import "github.com/coredbio/coredb/coreerr"

// EncodeULEB128 appends the ULEB128 encoding of v to buf and returns the
// extended slice. Values up to 2^64-1 take at most 10 bytes (spec.md
// §4.4: "ULEB128 helpers encode a u64 in up to 10 bytes").
func EncodeULEB128(buf []byte, v uint64) []byte {
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

// DecodeULEB128 decodes a ULEB128-encoded u64 from the front of buf,
// returning the value and the number of bytes consumed. Errors are a
// truncated sequence (continuation bit set on the final available byte)
// or a shift that would exceed 64 bits (spec.md §4.4).
func DecodeULEB128(buf []byte) (uint64, int, error) {
	var value uint64
	var shift uint
	for i, b := range buf {
		if shift >= 64 {
			return 0, 0, coreerr.New(coreerr.Parse, "uleb128: shift exceeds 64 bits")
		}
		value |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, coreerr.New(coreerr.Parse, "uleb128: truncated sequence")
}
