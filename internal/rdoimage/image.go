// Package rdoimage holds the data model shared by every RDO parser: the
// source raster and the per-pixel masking map.
package rdoimage

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

// Pixel is a 4-channel sample in [0,255]. Alpha is 255 for 3-channel images.
type Pixel struct {
	R, G, B, A uint8
}

// Get returns channel c (0=R,1=G,2=B,3=A).
func (p Pixel) Get(c int) uint8 {
	switch c {
	case 0:
		return p.R
	case 1:
		return p.G
	case 2:
		return p.B
	default:
		return p.A
	}
}

// Set assigns channel c.
func (p *Pixel) Set(c int, v uint8) {
	switch c {
	case 0:
		p.R = v
	case 1:
		p.G = v
	case 2:
		p.B = v
	default:
		p.A = v
	}
}

// Image is a rectangular, pixel-major, row-contiguous W×H raster. Once
// loaded it is never mutated — the encoders treat it as read-only and route
// their working state through separate Coded/Delta planes.
type Image struct {
	W, H     int
	NumComps int // 3 or 4
	Pix      []Pixel
}

// NewImage allocates a black W×H image. Alpha is preset to 255 for
// 3-channel images; 4-channel images start with alpha 0.
func NewImage(w, h, numComps int) *Image {
	img := &Image{W: w, H: h, NumComps: numComps, Pix: make([]Pixel, w*h)}
	if numComps == 3 {
		for i := range img.Pix {
			img.Pix[i].A = 255
		}
	}
	return img
}

// FromGoImage converts a standard library image.Image into an *Image,
// detecting whether the source carries meaningful alpha.
func FromGoImage(src image.Image) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	img := &Image{W: w, H: h, NumComps: 3, Pix: make([]Pixel, w*h)}

	opaque := true
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			p := Pixel{R: c.R, G: c.G, B: c.B, A: c.A}
			img.Pix[y*w+x] = p
			if p.A != 255 {
				opaque = false
			}
		}
	}
	if !opaque {
		img.NumComps = 4
	} else {
		for i := range img.Pix {
			img.Pix[i].A = 255
		}
	}
	return img
}

// ToGoImage renders the image back to a standard library *image.NRGBA, used
// by the format-L verification decoder and by -unpack/-unpack_qoi_to_png.
func (img *Image) ToGoImage() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.W, img.H))
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			p := img.At(x, y)
			out.SetNRGBA(x, y, color.NRGBA{R: p.R, G: p.G, B: p.B, A: p.A})
		}
	}
	return out
}

// At returns the pixel at (x,y). No bounds clamping — callers that need
// edge-clamped neighbor access should use AtClamped.
func (img *Image) At(x, y int) Pixel {
	return img.Pix[y*img.W+x]
}

// Set assigns the pixel at (x,y).
func (img *Image) Set(x, y int, p Pixel) {
	img.Pix[y*img.W+x] = p
}

// AtClamped returns the pixel at (x,y), clamping out-of-range coordinates to
// the image border. Used by the masking-map builder's neighborhood scans,
// which must never wrap around the image.
func (img *Image) AtClamped(x, y int) Pixel {
	if x < 0 {
		x = 0
	} else if x >= img.W {
		x = img.W - 1
	}
	if y < 0 {
		y = 0
	} else if y >= img.H {
		y = img.H - 1
	}
	return img.At(x, y)
}

// DecodePNG parses a PNG byte stream via the standard library's image/png
// decoder — the verifying decode step for format P's output. No pack
// dependency offers a PNG decoder; klauspost/compress/flate only covers
// the DEFLATE layer this package writes, not chunk framing, so the
// standard library is the correct tool for this boundary.
func DecodePNG(data []byte) (*Image, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return FromGoImage(src), nil
}

// Clone returns a deep copy.
func (img *Image) Clone() *Image {
	out := &Image{W: img.W, H: img.H, NumComps: img.NumComps, Pix: make([]Pixel, len(img.Pix))}
	copy(out.Pix, img.Pix)
	return out
}

// MaskingMap holds the per-pixel multiplicative squared-error scale
// s(x,y) >= 1 built once per encode (C3) and read concurrently by every
// scoring site during parsing.
type MaskingMap struct {
	W, H int
	S    []float64
}

// NewMaskingMap allocates a map of all 1.0 entries (the "no scaling" floor).
func NewMaskingMap(w, h int) *MaskingMap {
	m := &MaskingMap{W: w, H: h, S: make([]float64, w*h)}
	for i := range m.S {
		m.S[i] = 1
	}
	return m
}

// At returns s(x,y).
func (m *MaskingMap) At(x, y int) float64 {
	return m.S[y*m.W+x]
}

// Set assigns s(x,y).
func (m *MaskingMap) Set(x, y int, v float64) {
	m.S[y*m.W+x] = v
}

// MaxOver returns the maximum scale covered by the half-open pixel run
// [x, x+n) on row y, a single scale for a multi-pixel run.
func (m *MaskingMap) MaxOver(x, y, n int) float64 {
	best := 0.0
	for i := 0; i < n; i++ {
		if v := m.At(x+i, y); v > best {
			best = v
		}
	}
	return best
}

// Validate checks the masking-floor invariant: every entry is finite and
// >= 1.
func (m *MaskingMap) Validate() error {
	for i, v := range m.S {
		if v < 1 || v != v || v > 1e300 {
			return fmt.Errorf("rdoimage: masking map entry %d = %v violates floor/finite invariant", i, v)
		}
	}
	return nil
}
