package parquetio

import "github.com/coredbio/coredb/coreerr"

// bitWidthFor returns the number of bits needed to represent values in
// [0, maxValue].
func bitWidthFor(maxValue int) int {
	w := 0
	for (1 << w) <= maxValue {
		w++
	}
	return w
}

// EncodeHybridRLE encodes levels (each < 1<<bitWidth) using the RLE/bit-
// packing hybrid Parquet uses for definition and repetition levels, and
// for BOOLEAN/RLE-encoded pages: a run of equal values is a ULEB128
// (count<<1) header followed by the value in ceil(bitWidth/8) bytes;
// runs that don't repeat are bit-packed in groups of 8, headed by a
// ULEB128 ((numGroups<<1)|1) header.
//
// This implementation always emits a single RLE run when all levels are
// equal (the common case: no nulls, or a fully-null column) and falls
// back to one bit-packed run otherwise; it does not attempt the optimal
// run-split a general encoder would.
func EncodeHybridRLE(levels []int, bitWidth int) []byte {
	if bitWidth == 0 || len(levels) == 0 {
		return nil
	}
	allEqual := true
	for _, v := range levels {
		if v != levels[0] {
			allEqual = false
			break
		}
	}
	byteWidth := (bitWidth + 7) / 8
	var out []byte
	if allEqual {
		out = EncodeULEB128(out, uint64(len(levels))<<1)
		out = appendLEBytes(out, uint64(levels[0]), byteWidth)
		return out
	}
	// Bit-packed run: pad to a multiple of 8 values with zero.
	padded := len(levels)
	if padded%8 != 0 {
		padded += 8 - padded%8
	}
	numGroups := padded / 8
	out = EncodeULEB128(out, uint64(numGroups<<1)|1)
	bitBuf := make([]byte, (padded*bitWidth+7)/8)
	bitPos := 0
	for i := 0; i < padded; i++ {
		var v int
		if i < len(levels) {
			v = levels[i]
		}
		for b := 0; b < bitWidth; b++ {
			if v&(1<<b) != 0 {
				bitBuf[bitPos/8] |= 1 << uint(bitPos%8)
			}
			bitPos++
		}
	}
	return append(out, bitBuf...)
}

func appendLEBytes(buf []byte, v uint64, n int) []byte {
	for i := 0; i < n; i++ {
		buf = append(buf, byte(v))
		v >>= 8
	}
	return buf
}

// DecodeHybridRLE decodes exactly count levels of the given bitWidth from
// buf, returning the levels and the number of input bytes consumed.
func DecodeHybridRLE(buf []byte, bitWidth int, count int) ([]int, int, error) {
	if bitWidth == 0 {
		levels := make([]int, count)
		return levels, 0, nil
	}
	levels := make([]int, 0, count)
	total := 0
	byteWidth := (bitWidth + 7) / 8
	for len(levels) < count {
		header, n, err := DecodeULEB128(buf[total:])
		if err != nil {
			return nil, 0, coreerr.Wrap(coreerr.Parse, err, "hybrid RLE header")
		}
		total += n
		if header&1 == 0 {
			runLen := int(header >> 1)
			if total+byteWidth > len(buf) {
				return nil, 0, coreerr.New(coreerr.Parse, "hybrid RLE: truncated run value")
			}
			var v uint64
			for i := 0; i < byteWidth; i++ {
				v |= uint64(buf[total+i]) << uint(8*i)
			}
			total += byteWidth
			for i := 0; i < runLen && len(levels) < count; i++ {
				levels = append(levels, int(v))
			}
			continue
		}
		numGroups := int(header >> 1)
		nbytes := (numGroups*8*bitWidth + 7) / 8
		if total+nbytes > len(buf) {
			return nil, 0, coreerr.New(coreerr.Parse, "hybrid RLE: truncated bit-packed run")
		}
		bitBuf := buf[total : total+nbytes]
		total += nbytes
		bitPos := 0
		for g := 0; g < numGroups*8 && len(levels) < count; g++ {
			var v int
			for b := 0; b < bitWidth; b++ {
				if bitBuf[bitPos/8]&(1<<uint(bitPos%8)) != 0 {
					v |= 1 << b
				}
				bitPos++
			}
			levels = append(levels, v)
		}
	}
	return levels, total, nil
}
