package pformat

// PNG scanline filter tags (RFC2083 §6.2). Filter 2 (Up) is deliberately
// never selected by the parser (spec.md §4.5's "skip filter 2" policy) but
// its predict/unpredict functions are kept for decode-side completeness and
// for FirstFilter/LastFilter ranges that include it.
const (
	FilterNone    = 0
	FilterSub     = 1
	FilterUp      = 2
	FilterAverage = 3
	FilterPaeth   = 4
)

// paeth selects among a (left), b (above), c (upper-left) by nearest match
// to p = a+b-c, tie-broken a <= b <= c. Ported from
// original_source/rdopng.cpp's paeth().
func paeth(a, b, c int) uint8 {
	p := a + b - c
	pa := absI(p - a)
	pb := absI(p - b)
	pc := absI(p - c)
	if pa <= pb && pa <= pc {
		return uint8(a)
	}
	if pb <= pc {
		return uint8(b)
	}
	return uint8(c)
}

func absI(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func avg(a, b int) uint8 {
	return uint8((a + b) / 2)
}

// neighbors returns a (left), b (above), c (upper-left) for coded-plane
// byte position (x,y) within a W-byte-wide, C-components-per-pixel
// scanline, using zero for any neighbor past an edge. This differs from
// rdoimage's AtClamped-based edge policy (used by masking): PNG filtering
// is defined in terms of zero-padding past row/column 0, not clamping.
func neighbors(plane []byte, stride, x, y, bpp int) (a, b, c int) {
	if x >= bpp {
		a = int(plane[y*stride+x-bpp])
	}
	if y > 0 {
		b = int(plane[(y-1)*stride+x])
		if x >= bpp {
			c = int(plane[(y-1)*stride+x-bpp])
		}
	}
	return
}

// PredictByte returns the filtered (encoded) value of raw byte x in row y
// of a bpp-bytes-per-pixel plane, under the given filter.
func PredictByte(plane []byte, stride, x, y, bpp, filter int) uint8 {
	raw := int(plane[y*stride+x])
	a, b, c := neighbors(plane, stride, x, y, bpp)
	switch filter {
	case FilterNone:
		return uint8(raw)
	case FilterSub:
		return uint8(raw - a)
	case FilterUp:
		return uint8(raw - b)
	case FilterAverage:
		return uint8(raw - int(avg(a, b)))
	case FilterPaeth:
		return uint8(raw - int(paeth(a, b, c)))
	default:
		panic("pformat: unknown filter")
	}
}

// UnpredictByte reconstructs the raw byte at offset x of row y from its
// filtered delta, using the already-committed neighbors. The inverse of
// PredictByte.
func UnpredictByte(plane []byte, stride, x, y, bpp, filter int, delta uint8) uint8 {
	a, b, c := neighbors(plane, stride, x, y, bpp)
	switch filter {
	case FilterNone:
		return delta
	case FilterSub:
		return uint8(int(delta) + a)
	case FilterUp:
		return uint8(int(delta) + b)
	case FilterAverage:
		return uint8(int(delta) + int(avg(a, b)))
	case FilterPaeth:
		return uint8(int(delta) + int(paeth(a, b, c)))
	default:
		panic("pformat: unknown filter")
	}
}

// UnpredictRow reconstructs raw bytes for scanline y in place, given its
// filter tag and the already-reconstructed plane up to row y (row y itself
// holds filtered deltas on entry and raw bytes on return).
func UnpredictRow(plane []byte, stride, y, bpp, filter int) {
	rowStart := y * stride
	for x := 0; x < stride; x++ {
		delta := plane[rowStart+x]
		plane[rowStart+x] = UnpredictByte(plane, stride, x, y, bpp, filter, delta)
	}
}

// PredictRow computes the filtered bytes for scanline y given the raw
// (unfiltered) plane, writing into dst (len == stride).
func PredictRow(plane []byte, stride, y, bpp, filter int, dst []byte) {
	for x := 0; x < stride; x++ {
		dst[x] = PredictByte(plane, stride, x, y, bpp, filter)
	}
}
