package masking

import (
	"testing"

	"github.com/richgel999/rdopng/internal/rdoimage"
)

func flatImage(t *testing.T, w, h int, v uint8) *rdoimage.Image {
	t.Helper()
	img := rdoimage.NewImage(w, h, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, rdoimage.Pixel{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func noisyImage(t *testing.T, w, h int) *rdoimage.Image {
	t.Helper()
	img := rdoimage.NewImage(w, h, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x*37 + y*89) % 256)
			img.Set(x, y, rdoimage.Pixel{R: v, G: 255 - v, B: v / 2, A: 255})
		}
	}
	return img
}

func TestBuildFlatImageGetsHighScale(t *testing.T) {
	img := flatImage(t, 16, 16, 128)
	p := DefaultParams(DefaultsP)
	m := Build(img, p)
	if got := m.At(8, 8); got < p.SmoothMaxMSEScale/2 {
		t.Fatalf("flat region got scale %v, want at least half the smooth ceiling %v", got, p.SmoothMaxMSEScale)
	}
}

func TestBuildNoisyImageGetsLowScale(t *testing.T) {
	img := noisyImage(t, 16, 16)
	p := DefaultParams(DefaultsP)
	m := Build(img, p)
	if got := m.At(8, 8); got > p.SmoothMaxMSEScale/4 {
		t.Fatalf("noisy region got scale %v, want close to the floor of 1", got)
	}
}

func TestBuildNoMSEScalingReturnsFlatMap(t *testing.T) {
	img := noisyImage(t, 8, 8)
	p := DefaultParams(DefaultsP)
	p.NoMSEScaling = true
	m := Build(img, p)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if m.At(x, y) != 1 {
				t.Fatalf("At(%d,%d) = %v, want 1 with NoMSEScaling", x, y, m.At(x, y))
			}
		}
	}
}

func TestDefaultsDifferPerFormat(t *testing.T) {
	if DefaultsP.SmoothMaxMSEScale >= DefaultsQ.SmoothMaxMSEScale {
		t.Fatalf("expected DefaultsP < DefaultsQ smooth ceiling, got %v >= %v", DefaultsP.SmoothMaxMSEScale, DefaultsQ.SmoothMaxMSEScale)
	}
	if DefaultsQ.SmoothMaxMSEScale >= DefaultsL.SmoothMaxMSEScale {
		t.Fatalf("expected DefaultsQ < DefaultsL smooth ceiling, got %v >= %v", DefaultsQ.SmoothMaxMSEScale, DefaultsL.SmoothMaxMSEScale)
	}
}
