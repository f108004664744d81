package pformat

import (
	"testing"

	"github.com/richgel999/rdopng/internal/colormodel"
	"github.com/richgel999/rdopng/internal/rdoimage"
)

func smallGradientImage(t *testing.T) *rdoimage.Image {
	t.Helper()
	img := rdoimage.NewImage(16, 8, 3)
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			img.Set(x, y, rdoimage.Pixel{
				R: uint8(x * 8), G: uint8(y * 16), B: uint8((x + y) * 4),
			})
		}
	}
	return img
}

func TestEncodeProducesValidPNGSignature(t *testing.T) {
	img := smallGradientImage(t)
	table := colormodel.BuildTable()

	p := DefaultParams()
	p.Level = 0 // cheapest level keeps the test fast

	res, err := Encode(img, table, p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	sig := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	if len(res.PNG) < len(sig) {
		t.Fatalf("output too short")
	}
	for i, b := range sig {
		if res.PNG[i] != b {
			t.Fatalf("bad PNG signature byte %d: %x", i, res.PNG[i])
		}
	}
}

func TestEncodeLambdaZeroMinimizesDistortion(t *testing.T) {
	img := smallGradientImage(t)
	table := colormodel.BuildTable()

	p := DefaultParams()
	p.Level = 0
	p.Lambda = 0
	p.TwoPass = false

	res, err := Encode(img, table, p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if res.TotalSE < 0 {
		t.Fatalf("squared error should never be negative, got %f", res.TotalSE)
	}
}
