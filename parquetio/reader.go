package parquetio

import (
	"github.com/coredbio/coredb/array"
	"github.com/coredbio/coredb/coreerr"
)

// Page is one already-located (but still possibly compressed) data page:
// the raw header plus its body bytes, as a reader would get them off of a
// row group's column chunk (spec.md §4.4/§6: "row groups ... a sequence
// of pages with a page header preceding page data").
type Page struct {
	Header PageHeaderV2
	Body   []byte // compressed, CompressedPageSize bytes
}

// ValuesReader drives one column's pages into arrays: it holds the column
// descriptor, the codec, and a page source, and decodes each page's
// definition levels and values into a fresh array as it is read. Grounded on the teacher's
// own page-at-a-time column reader shape (ion's chunker.go drives a
// sequence of chunks the same way coredb drives a sequence of pages), with
// Parquet-specific decode logic adapted from parquet_redux's bullet/read
// path (original_source).
type ValuesReader struct {
	Col   ColumnDescriptor
	Codec CompressionCodec
	Pages func() (Page, bool, error) // returns (page, ok, err); ok=false means exhausted

	pending    Page
	havePage   bool
}

func NewValuesReader(col ColumnDescriptor, codec CompressionCodec, pages func() (Page, bool, error)) *ValuesReader {
	return &ValuesReader{Col: col, Codec: codec, Pages: pages}
}

// decodedPage is one page's decoded values plus definition levels.
type decodedPage struct {
	defLevels []int
	rawBytes  []byte // post-decompression value bytes (after def/rep level sections)
	numRows   int
	encoding  Encoding
}

func (r *ValuesReader) nextDecodedPage() (*decodedPage, bool, error) {
	if !r.havePage {
		p, ok, err := r.Pages()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		r.pending = p
		r.havePage = true
	}
	r.havePage = false
	h := r.pending.Header
	body, err := Decompress(r.Codec, r.pending.Body, h.UncompressedPageSize)
	if err != nil {
		return nil, false, err
	}
	pos := 0
	var defLevels []int
	if h.DefLevelsByteLength > 0 {
		lv, _, err := DecodeHybridRLE(body[pos:pos+h.DefLevelsByteLength], bitWidthFor(r.Col.MaxDefLevel), h.NumValues)
		if err != nil {
			return nil, false, coreerr.Wrap(coreerr.Parse, err, "definition levels")
		}
		defLevels = lv
		pos += h.DefLevelsByteLength
	} else {
		defLevels = make([]int, h.NumValues)
		for i := range defLevels {
			defLevels[i] = r.Col.MaxDefLevel
		}
	}
	pos += h.RepLevelsByteLength // repetition levels unused: coredb has no nested/repeated columns
	return &decodedPage{defLevels: defLevels, rawBytes: body[pos:], numRows: h.NumRows, encoding: h.Encoding}, true, nil
}

// ReadRecords drives the page reader until either n records have been
// read or the column is exhausted; each page is decoded into its own
// array and the pages are concatenated, then padded with nulls if fewer
// values were read than levels requested (spec.md §4.4). It returns an
// array.Array of the column's logical type.
func (r *ValuesReader) ReadRecords(n int) (*array.Array, error) {
	var parts []*array.Array
	read := 0
	for read < n {
		page, ok, err := r.nextDecodedPage()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		arr, err := buildArray(r.Col, page.defLevels, page.rawBytes, page.encoding)
		if err != nil {
			return nil, err
		}
		parts = append(parts, arr)
		read += arr.LogicalLen()
	}
	out := concatArrays(r.Col.Logical, parts)
	if out.LogicalLen() < n {
		out = padWithNulls(out, n)
	} else if out.LogicalLen() > n {
		idx := make([]int32, n)
		for i := range idx {
			idx[i] = int32(i)
		}
		out = out.Select(array.NewSelection(idx))
	}
	return out, nil
}
