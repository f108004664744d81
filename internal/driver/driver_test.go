package driver

import (
	"testing"

	"github.com/richgel999/rdopng/internal/colormodel"
	"github.com/richgel999/rdopng/internal/qformat"
	"github.com/richgel999/rdopng/internal/rdoimage"
)

func smallTestImage(numComps int) *rdoimage.Image {
	img := rdoimage.NewImage(6, 5, numComps)
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			v := uint8((x*29 + y*53) % 256)
			p := rdoimage.Pixel{R: v, G: 255 - v, B: v / 2, A: 255}
			if numComps == 4 && (x+y)%7 == 0 {
				p.A = 128
			}
			img.Set(x, y, p)
		}
	}
	return img
}

func TestEncodeFormatPRoundTrips(t *testing.T) {
	img := smallTestImage(3)
	table := colormodel.BuildTable()
	p := DefaultParams()
	p.Format = FormatP
	p.Level = 6

	res, err := Encode(img, table, p)
	if err != nil {
		t.Fatalf("Encode(FormatP) failed: %v", err)
	}
	if len(res.Data) == 0 {
		t.Fatalf("Encode(FormatP) produced empty output")
	}
	if res.Ext != ".png" {
		t.Fatalf("Ext = %q, want .png", res.Ext)
	}
}

func TestEncodeFormatQRoundTrips(t *testing.T) {
	img := smallTestImage(4)
	table := colormodel.BuildTable()
	p := DefaultParams()
	p.Format = FormatQ

	res, err := Encode(img, table, p)
	if err != nil {
		t.Fatalf("Encode(FormatQ) failed: %v", err)
	}
	if len(res.Data) == 0 {
		t.Fatalf("Encode(FormatQ) produced empty output")
	}
	if res.Ext != ".qoi" {
		t.Fatalf("Ext = %q, want .qoi", res.Ext)
	}

	got, err := qformat.Decode(res.Data)
	if err != nil {
		t.Fatalf("qformat.Decode: %v", err)
	}
	if got.W != img.W || got.H != img.H {
		t.Fatalf("decoded size %dx%d, want %dx%d", got.W, got.H, img.W, img.H)
	}
	// The encoder is lossy. In the default perceptual mode the OkLab L/ab
	// reject thresholds limit colour error and the alpha threshold limits
	// alpha error to 32; the check allows up to 32 per channel.
	const maxDelta = 32
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			want := img.At(x, y)
			gotPix := got.At(x, y)
			if absDelta(want.R, gotPix.R) > maxDelta || absDelta(want.G, gotPix.G) > maxDelta ||
				absDelta(want.B, gotPix.B) > maxDelta || absDelta(want.A, gotPix.A) > maxDelta {
				t.Fatalf("pixel (%d,%d) = %v, want close to %v", x, y, gotPix, want)
			}
		}
	}
}

func absDelta(a, b uint8) int {
	d := int(a) - int(b)
	if d < 0 {
		return -d
	}
	return d
}

func TestEncodeFormatLRoundTrips(t *testing.T) {
	img := smallTestImage(3)
	table := colormodel.BuildTable()
	p := DefaultParams()
	p.Format = FormatL

	res, err := Encode(img, table, p)
	if err != nil {
		t.Fatalf("Encode(FormatL) failed: %v", err)
	}
	if len(res.Data) == 0 {
		t.Fatalf("Encode(FormatL) produced empty output")
	}
	if res.Ext != ".lz4i" {
		t.Fatalf("Ext = %q, want .lz4i", res.Ext)
	}
}

func TestEncodeUnknownFormatErrors(t *testing.T) {
	img := smallTestImage(3)
	table := colormodel.BuildTable()
	p := DefaultParams()
	p.Format = Format(99)

	if _, err := Encode(img, table, p); err == nil {
		t.Fatalf("Encode with an unknown format should return an error")
	}
}

func TestMaskingDefaultsVaryByFormat(t *testing.T) {
	pP := Params{Format: FormatP}
	pQ := Params{Format: FormatQ}
	pL := Params{Format: FormatL}
	if pP.maskingDefaults().SmoothMaxMSEScale >= pQ.maskingDefaults().SmoothMaxMSEScale {
		t.Fatalf("expected FormatP ceiling < FormatQ ceiling")
	}
	if pQ.maskingDefaults().SmoothMaxMSEScale >= pL.maskingDefaults().SmoothMaxMSEScale {
		t.Fatalf("expected FormatQ ceiling < FormatL ceiling")
	}
}

func TestMaskingParamsOverridesAppliedWhenPositive(t *testing.T) {
	p := Params{Format: FormatP, SmoothMaxMSEScale: 42}
	mp := p.maskingParams()
	if mp.SmoothMaxMSEScale != 42 {
		t.Fatalf("SmoothMaxMSEScale = %v, want the override 42", mp.SmoothMaxMSEScale)
	}
}

func TestMaskingParamsIgnoresNonPositiveOverride(t *testing.T) {
	defaults := DefaultParams()
	defaults.Format = FormatP
	base := defaults.maskingParams().SmoothMaxMSEScale

	p := Params{Format: FormatP, SmoothMaxMSEScale: 0}
	if got := p.maskingParams().SmoothMaxMSEScale; got != base {
		t.Fatalf("SmoothMaxMSEScale = %v, want the unmodified default %v for a zero override", got, base)
	}
}

func TestReprojectNormalMapPreservesAlpha(t *testing.T) {
	img := rdoimage.NewImage(2, 2, 4)
	img.Set(0, 0, rdoimage.Pixel{R: 128, G: 128, B: 255, A: 200})
	out := reprojectNormalMap(img, false)
	if got := out.At(0, 0).A; got != 200 {
		t.Fatalf("reprojectNormalMap changed alpha: got %d, want 200", got)
	}
}
