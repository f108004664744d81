package pformat

import "testing"

func TestPaethTieBreak(t *testing.T) {
	// a == b == c: paeth must pick a (tie-break a <= b <= c).
	if got := paeth(5, 5, 5); got != 5 {
		t.Fatalf("paeth(5,5,5) = %d, want 5", got)
	}
	// p = a+b-c = 10+20-10 = 20, closest to b.
	if got := paeth(10, 20, 10); got != 20 {
		t.Fatalf("paeth(10,20,10) = %d, want 20", got)
	}
}

func TestPredictUnpredictRoundTrip(t *testing.T) {
	const w, bpp = 4, 3
	stride := w * bpp
	raw := []byte{
		10, 20, 30, 12, 22, 32, 14, 24, 34, 16, 26, 36,
		11, 21, 31, 13, 23, 33, 15, 25, 35, 17, 27, 37,
	}

	for _, filter := range []int{FilterNone, FilterSub, FilterAverage, FilterPaeth} {
		plane := make([]byte, len(raw))
		copy(plane, raw)

		filtered := make([]byte, len(raw))
		for y := 0; y < 2; y++ {
			PredictRow(plane, stride, y, bpp, filter, filtered[y*stride:(y+1)*stride])
		}

		// Decode in place: filtered bytes become raw bytes row by row.
		decoded := make([]byte, len(raw))
		copy(decoded, filtered)
		for y := 0; y < 2; y++ {
			UnpredictRow(decoded, stride, y, bpp, filter)
		}

		for i := range raw {
			if decoded[i] != raw[i] {
				t.Fatalf("filter %d: byte %d = %d, want %d", filter, i, decoded[i], raw[i])
			}
		}
	}
}
