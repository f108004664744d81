package rdoimage

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestPixelGetSet(t *testing.T) {
	var p Pixel
	p.Set(0, 10)
	p.Set(1, 20)
	p.Set(2, 30)
	p.Set(3, 40)
	if p.Get(0) != 10 || p.Get(1) != 20 || p.Get(2) != 30 || p.Get(3) != 40 {
		t.Fatalf("Get/Set round-trip mismatch: %+v", p)
	}
}

func TestNewImagePresetsAlphaFor3Comp(t *testing.T) {
	img := NewImage(4, 4, 3)
	for i, p := range img.Pix {
		if p.A != 255 {
			t.Fatalf("Pix[%d].A = %d, want 255 for a 3-component image", i, p.A)
		}
	}
}

func TestNewImageLeavesAlphaZeroFor4Comp(t *testing.T) {
	img := NewImage(4, 4, 4)
	for i, p := range img.Pix {
		if p.A != 0 {
			t.Fatalf("Pix[%d].A = %d, want 0 for an untouched 4-component image", i, p.A)
		}
	}
}

func TestAtSetRoundTrip(t *testing.T) {
	img := NewImage(3, 3, 4)
	want := Pixel{R: 1, G: 2, B: 3, A: 4}
	img.Set(2, 1, want)
	if got := img.At(2, 1); got != want {
		t.Fatalf("At(2,1) = %+v, want %+v", got, want)
	}
}

func TestAtClampedClampsToImageBorder(t *testing.T) {
	img := NewImage(4, 4, 3)
	corner := Pixel{R: 9, G: 9, B: 9, A: 255}
	img.Set(0, 0, corner)
	far := Pixel{R: 1, G: 1, B: 1, A: 255}
	img.Set(3, 3, far)

	if got := img.AtClamped(-5, -5); got != corner {
		t.Fatalf("AtClamped(-5,-5) = %+v, want %+v", got, corner)
	}
	if got := img.AtClamped(100, 100); got != far {
		t.Fatalf("AtClamped(100,100) = %+v, want %+v", got, far)
	}
	if got := img.AtClamped(2, 2); got != img.At(2, 2) {
		t.Fatalf("AtClamped in-bounds should match At")
	}
}

func TestFromGoImageDetectsOpaque(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	img := FromGoImage(src)
	if img.NumComps != 3 {
		t.Fatalf("NumComps = %d, want 3 for a fully opaque source", img.NumComps)
	}
	for i, p := range img.Pix {
		if p.A != 255 {
			t.Fatalf("Pix[%d].A = %d, want 255 for a forced-opaque image", i, p.A)
		}
	}
}

func TestFromGoImageDetectsTransparency(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 128})
	src.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetNRGBA(0, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetNRGBA(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img := FromGoImage(src)
	if img.NumComps != 4 {
		t.Fatalf("NumComps = %d, want 4 when any pixel has non-255 alpha", img.NumComps)
	}
	if got := img.At(0, 0).A; got != 128 {
		t.Fatalf("At(0,0).A = %d, want 128 preserved", got)
	}
}

func TestToGoImageRoundTrips(t *testing.T) {
	img := NewImage(2, 2, 4)
	img.Set(0, 0, Pixel{R: 1, G: 2, B: 3, A: 4})
	img.Set(1, 1, Pixel{R: 5, G: 6, B: 7, A: 8})
	out := img.ToGoImage()
	r, g, b, a := out.NRGBAAt(0, 0).R, out.NRGBAAt(0, 0).G, out.NRGBAAt(0, 0).B, out.NRGBAAt(0, 0).A
	if r != 1 || g != 2 || b != 3 || a != 4 {
		t.Fatalf("ToGoImage()(0,0) = (%d,%d,%d,%d), want (1,2,3,4)", r, g, b, a)
	}
}

func TestDecodePNGRoundTrips(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(1, 1, color.NRGBA{R: 7, G: 8, B: 9, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	img, err := DecodePNG(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodePNG failed: %v", err)
	}
	if img.W != 3 || img.H != 2 {
		t.Fatalf("decoded size = %dx%d, want 3x2", img.W, img.H)
	}
	if got := img.At(1, 1); got.R != 7 || got.G != 8 || got.B != 9 {
		t.Fatalf("At(1,1) = %+v, want R=7 G=8 B=9", got)
	}
}

func TestDecodePNGRejectsGarbage(t *testing.T) {
	if _, err := DecodePNG([]byte("not a png")); err == nil {
		t.Fatalf("DecodePNG should fail on non-PNG input")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	img := NewImage(2, 2, 3)
	clone := img.Clone()
	clone.Set(0, 0, Pixel{R: 99, G: 99, B: 99, A: 255})
	if img.At(0, 0).R == 99 {
		t.Fatalf("mutating the clone affected the original")
	}
	if clone.W != img.W || clone.H != img.H || clone.NumComps != img.NumComps {
		t.Fatalf("clone metadata mismatch: %+v vs %+v", clone, img)
	}
}

func TestNewMaskingMapStartsAtFloor(t *testing.T) {
	m := NewMaskingMap(3, 3)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			if got := m.At(x, y); got != 1 {
				t.Fatalf("At(%d,%d) = %v, want the 1.0 floor", x, y, got)
			}
		}
	}
}

func TestMaskingMapAtSetRoundTrip(t *testing.T) {
	m := NewMaskingMap(2, 2)
	m.Set(1, 0, 4.5)
	if got := m.At(1, 0); got != 4.5 {
		t.Fatalf("At(1,0) = %v, want 4.5", got)
	}
}

func TestMaskingMapMaxOverPicksLargest(t *testing.T) {
	m := NewMaskingMap(5, 1)
	m.Set(0, 0, 1)
	m.Set(1, 0, 3)
	m.Set(2, 0, 2)
	m.Set(3, 0, 7)
	m.Set(4, 0, 1)
	if got := m.MaxOver(0, 0, 4); got != 7 {
		t.Fatalf("MaxOver(0,0,4) = %v, want 7", got)
	}
	if got := m.MaxOver(0, 0, 2); got != 3 {
		t.Fatalf("MaxOver(0,0,2) = %v, want 3", got)
	}
}

func TestMaskingMapValidatePassesForDefaultMap(t *testing.T) {
	m := NewMaskingMap(4, 4)
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate() on a freshly built map: %v", err)
	}
}

func TestMaskingMapValidateCatchesBelowFloor(t *testing.T) {
	m := NewMaskingMap(2, 2)
	m.Set(0, 0, 0.5)
	if err := m.Validate(); err == nil {
		t.Fatalf("Validate should reject an entry below the 1.0 floor")
	}
}

func TestMaskingMapValidateCatchesNaN(t *testing.T) {
	m := NewMaskingMap(2, 2)
	nan := 0.0
	nan = nan / nan
	m.Set(1, 1, nan)
	if err := m.Validate(); err == nil {
		t.Fatalf("Validate should reject a NaN entry")
	}
}
