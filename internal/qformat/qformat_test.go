package qformat

import (
	"testing"

	"github.com/richgel999/rdopng/internal/colormodel"
	"github.com/richgel999/rdopng/internal/masking"
	"github.com/richgel999/rdopng/internal/rdoimage"
)

func flatImage(t *testing.T) *rdoimage.Image {
	t.Helper()
	img := rdoimage.NewImage(8, 8, 3)
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			img.Set(x, y, rdoimage.Pixel{R: 10, G: 20, B: 30, A: 255})
		}
	}
	return img
}

func TestEncodeFlatImageIsMostlyRuns(t *testing.T) {
	img := flatImage(t)
	table := colormodel.BuildTable()
	mask := masking.Build(img, masking.DefaultParams(masking.DefaultsQ))

	data := Encode(img, mask, table, DefaultParams())
	if len(data) >= len(img.Pix)*3 {
		t.Fatalf("flat image encoded to %d bytes, expected heavy RUN compression", len(data))
	}
	// header (14) + terminator (8) is the floor for any output.
	if len(data) < 22 {
		t.Fatalf("output %d bytes shorter than header+terminator", len(data))
	}
}

// TestEncodeRunLongerThan62PixelsRoundTrips exercises the run-counter
// boundary directly: a flat region of more than 62 pixels forces step to
// flush mid-run, and this checks the flushed bytes actually decode back to
// every one of those pixels rather than silently vanishing.
func TestEncodeRunLongerThan62PixelsRoundTrips(t *testing.T) {
	img := rdoimage.NewImage(20, 10, 3) // 200 pixels, well past the 62-run boundary twice over
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			img.Set(x, y, rdoimage.Pixel{R: 5, G: 6, B: 7, A: 255})
		}
	}
	table := colormodel.BuildTable()
	mask := masking.Build(img, masking.DefaultParams(masking.DefaultsQ))

	data := Encode(img, mask, table, DefaultParams())
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.W != img.W || got.H != img.H {
		t.Fatalf("decoded size %dx%d, want %dx%d", got.W, got.H, img.W, img.H)
	}
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			want := img.At(x, y)
			gotPix := got.At(x, y)
			if gotPix.R != want.R || gotPix.G != want.G || gotPix.B != want.B {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, gotPix, want)
			}
		}
	}
}

func TestHashKeyWithinRange(t *testing.T) {
	for r := 0; r < 256; r += 37 {
		k := hashKey(uint8(r), 1, 2, 3)
		if k < 0 || k >= 64 {
			t.Fatalf("hashKey out of range: %d", k)
		}
	}
}
