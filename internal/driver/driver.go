// Package driver orchestrates one end-to-end encode: masking-map
// construction, optional normal-map re-projection, dispatch to exactly one
// of pformat/qformat/lformat, and the post-encode metrics report. The
// OkLab table is built or loaded by the caller and passed in, and the
// parameters are used as given, without validation.
//
// Grounded on original_source/rdopng.cpp's rdo_png() driver shell (table
// warmup, parameter handling, dispatch, post-encode print_image_metrics
// call) and on the teacher's main.go/utils.go for the CLI-facing error and
// flag conventions this module carries into its own cmd/rdopng.
package driver

import (
	"fmt"

	"github.com/richgel999/rdopng/internal/colormodel"
	"github.com/richgel999/rdopng/internal/lformat"
	"github.com/richgel999/rdopng/internal/masking"
	"github.com/richgel999/rdopng/internal/metrics"
	"github.com/richgel999/rdopng/internal/normalmap"
	"github.com/richgel999/rdopng/internal/pformat"
	"github.com/richgel999/rdopng/internal/qformat"
	"github.com/richgel999/rdopng/internal/rdoimage"
)

// Format selects the output container.
type Format int

const (
	FormatP Format = iota
	FormatQ
	FormatL
)

// Params bundles every CLI-facing knob (spec.md §6) in one struct instead
// of the per-format structs each threading it further down.
type Params struct {
	Format Format

	ColorModel colormodel.Params
	Lambda     float64

	// Format P only.
	Level   int
	TwoPass bool

	// Formats Q and L only.
	Speed int // 0=normal, 1=faster, 2=fastest

	NormalMap bool
	Snorm     bool
	Normalize bool

	NoMSEScaling           bool
	MaxSmoothStdDev        float64
	SmoothMaxMSEScale      float64
	MaxUltraSmoothStdDev   float64
	UltraSmoothMaxMSEScale float64

	MatchOnly bool
	Quiet     bool
	Debug     bool
}

// DefaultParams returns format P at lambda 300, level 16, two-pass on —
// the CLI's baseline before any flags are applied.
func DefaultParams() Params {
	return Params{
		Format:     FormatP,
		ColorModel: colormodel.DefaultParams(),
		Lambda:     300,
		Level:      16,
		TwoPass:    true,
	}
}

func (p Params) maskingDefaults() masking.Defaults {
	switch p.Format {
	case FormatQ:
		return masking.DefaultsQ
	case FormatL:
		return masking.DefaultsL
	default:
		return masking.DefaultsP
	}
}

func (p Params) maskingParams() masking.Params {
	mp := masking.DefaultParams(p.maskingDefaults())
	mp.NoMSEScaling = p.NoMSEScaling
	mp.AlphaIsOpacity = p.ColorModel.AlphaIsOpacity
	if p.MaxSmoothStdDev > 0 {
		mp.MaxSmoothStdDev = p.MaxSmoothStdDev
	}
	if p.SmoothMaxMSEScale > 0 {
		mp.SmoothMaxMSEScale = p.SmoothMaxMSEScale
	}
	if p.MaxUltraSmoothStdDev > 0 {
		mp.MaxUltraSmoothStdDev = p.MaxUltraSmoothStdDev
	}
	if p.UltraSmoothMaxMSEScale > 0 {
		mp.UltraSmoothMaxMSEScale = p.UltraSmoothMaxMSEScale
	}
	return mp
}

// Result is the outcome of one Encode call, plus enough information for
// the CLI to write the output file and print the metrics report.
type Result struct {
	Data    []byte
	Ext     string
	Report  metrics.Report
	Warning string
}

// Encode dispatches to exactly one of C6/C7/C8 per p.Format and computes
// the post-encode quality report against the (possibly normal-map
// re-projected) source image.
func Encode(img *rdoimage.Image, table *colormodel.Table, p Params) (*Result, error) {
	src := img
	if p.NormalMap && p.Normalize {
		src = reprojectNormalMap(img, p.Snorm)
	}

	switch p.Format {
	case FormatP:
		return encodeP(src, table, p)
	case FormatQ:
		return encodeQ(src, table, p)
	case FormatL:
		return encodeL(src, table, p)
	default:
		return nil, fmt.Errorf("driver: unknown format %d", p.Format)
	}
}

// reprojectNormalMap snaps every source pixel to the closest representable
// unit-vector encoding before parsing, per spec.md §4.9's "-normalize"
// behavior.
func reprojectNormalMap(img *rdoimage.Image, snorm bool) *rdoimage.Image {
	out := img.Clone()
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			px := img.At(x, y)
			v := normalmap.Decode(px.R, px.G, px.B, snorm).Normalize()
			r, g, b := normalmap.ExhaustiveReencode(v, snorm)
			np := px
			np.R, np.G, np.B = r, g, b
			out.Set(x, y, np)
		}
	}
	return out
}

func encodeP(img *rdoimage.Image, table *colormodel.Table, p Params) (*Result, error) {
	pp := pformat.DefaultParams()
	pp.ColorModel = p.ColorModel
	pp.Lambda = p.Lambda
	pp.Level = p.Level
	pp.TwoPass = p.TwoPass
	pp.MatchOnly = p.MatchOnly
	pp.MaskingDefaults = p.maskingDefaults()
	pp.MaskingParams = p.maskingParams()

	res, err := pformat.Encode(img, table, pp)
	if err != nil {
		return nil, fmt.Errorf("driver: format P encode: %w", err)
	}
	if p.Debug {
		probeZstdSize("format P output", res.PNG)
	}

	rep, err := computeReport(img, res.PNG, p, decodePNGStub)
	if err != nil {
		return nil, err
	}
	return &Result{Data: res.PNG, Ext: ".png", Report: rep}, nil
}

func encodeQ(img *rdoimage.Image, table *colormodel.Table, p Params) (*Result, error) {
	mp := p.maskingParams()
	mask := masking.Build(img, mp)

	qp := qformat.DefaultParams()
	qp.ColorModel = p.ColorModel
	qp.Lambda = p.Lambda
	qp.Speed = qformat.SpeedMode(p.Speed)

	data := qformat.Encode(img, mask, table, qp)
	if p.Debug {
		probeZstdSize("format Q output", data)
	}

	recon, err := qformat.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("driver: format Q verify-decode: %w", err)
	}
	rep, err := metrics.Compute(img, recon, p.NormalMap, p.Snorm)
	if err != nil {
		return nil, err
	}
	return &Result{Data: data, Ext: ".qoi", Report: rep}, nil
}

func encodeL(img *rdoimage.Image, table *colormodel.Table, p Params) (*Result, error) {
	lp := lformat.DefaultParams()
	lp.ColorModel = p.ColorModel
	lp.Lambda = p.Lambda
	lp.Speed = lformat.SpeedMode(p.Speed)

	data, err := lformat.Encode(img, table, lp)
	if err != nil {
		return nil, fmt.Errorf("driver: format L encode: %w", err)
	}
	if p.Debug {
		probeZstdSize("format L output", data)
	}

	recon, err := lformat.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("driver: format L verify-decode: %w", err)
	}
	rep, err := metrics.Compute(img, recon, p.NormalMap, p.Snorm)
	if err != nil {
		return nil, err
	}
	return &Result{Data: data, Ext: ".lz4i", Report: rep}, nil
}

// decodePNGStub exists because format P's verifying decode path is a
// standard PNG decode (image/png from the standard library is the right
// tool here: it is a decoder for a wire format, not a domain concern any
// pack dependency claims, so no third-party substitute applies) — kept as
// a named function so computeReport's signature stays uniform across
// formats.
func decodePNGStub(data []byte) (*rdoimage.Image, error) {
	return rdoimage.DecodePNG(data)
}

func computeReport(orig *rdoimage.Image, encoded []byte, p Params, decode func([]byte) (*rdoimage.Image, error)) (metrics.Report, error) {
	recon, err := decode(encoded)
	if err != nil {
		return metrics.Report{}, fmt.Errorf("driver: verify-decode: %w", err)
	}
	return metrics.Compute(orig, recon, p.NormalMap, p.Snorm)
}
