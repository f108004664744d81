// Package pformat implements the RDO recompressor for container format P:
// a DEFLATE/PNG-style scanline-filtered lossless container, made lossy by
// substituting perceptually-admissible pixel values and filter/match
// choices that minimize distortion*mse_scale + lambda*bits rather than
// merely reproducing the source exactly.
//
// Grounded on original_source/rdopng.cpp's rdo_png() driver: the masking
// map, two-pass entropy freeze, per-scanline filter loop, and
// find_optimal1/find_optimal_n/eval_matches sub-problem search all carry
// over from there, generalized into the explicit types this package
// exports instead of rdo_png's single monolithic function with file-scope
// globals.
package pformat

import (
	"fmt"

	"github.com/richgel999/rdopng/internal/colormodel"
	"github.com/richgel999/rdopng/internal/masking"
	"github.com/richgel999/rdopng/internal/rdoimage"
)

// Params bundles every knob the driver exposes for format P (spec.md §6).
type Params struct {
	ColorModel        colormodel.Params
	Level             int // index into Levels, 0..29
	Lambda            float64
	TwoPass           bool
	MatchOnly         bool
	CompressionLevel  int // klauspost/compress/flate level for the final IDAT
	MaskingDefaults   masking.Defaults
	MaskingParams     masking.Params
}

// DefaultParams returns level 16 (a representative mid-search level),
// lambda 1.0, two-pass entropy freezing enabled, and the format-P masking
// defaults.
func DefaultParams() Params {
	return Params{
		ColorModel:       colormodel.DefaultParams(),
		Level:            16,
		Lambda:           1.0,
		TwoPass:          true,
		CompressionLevel: 9,
		MaskingDefaults:  masking.DefaultsP,
	}
}

// Result is the outcome of one Encode call.
type Result struct {
	PNG       []byte
	TotalSE   float64
	TotalBits uint32
}

// avgFilteredBaseline returns the filter-tagged scanline stream that
// forcing every row's filter to Average over the untouched source pixels
// would produce: the same pre-encode baseline statistic
// original_source/rdopng.cpp's rdo_png() deflates once up front (before
// either encoder pass runs) to seed its first entropy table.
func avgFilteredBaseline(rawPlane []byte, rowStride, height, bpp int) []byte {
	stride := rowStride + 1
	out := make([]byte, height*stride)
	for y := 0; y < height; y++ {
		out[y*stride] = FilterAverage
		PredictRow(rawPlane, rowStride, y, bpp, FilterAverage, out[y*stride+1:(y+1)*stride])
	}
	return out
}

// Encode runs the full RDO pipeline: build the masking map, optionally
// observe a first pass to freeze entropy tables, parse every scanline
// (or scanline pair, for double-width levels) against the active Level,
// and deflate the resulting filter-tagged byte stream into a PNG file.
func Encode(img *rdoimage.Image, table *colormodel.Table, p Params) (*Result, error) {
	if p.Level < 0 || p.Level >= len(Levels) {
		return nil, fmt.Errorf("pformat: level %d out of range", p.Level)
	}
	level := Levels[p.Level]

	mp := p.MaskingParams
	if mp == (masking.Params{}) {
		mp = masking.DefaultParams(p.MaskingDefaults)
	}
	mp.AlphaIsOpacity = p.ColorModel.AlphaIsOpacity
	mask := masking.Build(img, mp)

	bpp := img.NumComps
	rowStride := img.W * bpp  // raw bytes per scanline, no filter tag
	stride := 1 + rowStride  // PNG scanline width, +1 for the filter tag

	// The entropy table that seeds every encode, one-pass or two-pass
	// alike, is frozen from an all-average-filtered baseline of the
	// untouched source image, never from the RDO's own substituted bytes.
	srcPlane := make([]byte, img.H*rowStride)
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			px := img.At(x, y)
			for c := 0; c < bpp; c++ {
				srcPlane[y*rowStride+x*bpp+c] = px.Get(c)
			}
		}
	}
	baseline := avgFilteredBaseline(srcPlane, rowStride, img.H, bpp)
	oracle := NewEntropyOracle()
	baselineObs := NewFrequencyObserver()
	baselineObs.Observe(baseline, level.SearchDist)
	litLenHist, distHist := baselineObs.Histograms()
	oracle.Freeze(litLenHist, distHist)

	out := make([]byte, img.H*stride)
	var totalSE float64
	var totalBits uint32

	runPass := func() {
		rawPlane := make([]byte, img.H*rowStride)
		deltaPlane := make([]byte, img.H*rowStride)
		totalSE = 0
		totalBits = 0
		for y := 0; y < img.H; y++ {
			result := ParseScanline(img, mask, table, p.ColorModel, oracle, p.Lambda, level, rawPlane, deltaPlane, rowStride, y, bpp)
			out[y*stride] = byte(result.Filter)
			PredictRow(rawPlane, rowStride, y, bpp, result.Filter, out[y*stride+1:(y+1)*stride])
			totalSE += result.TotalSE
			totalBits += result.TotalBits
		}
	}

	// Pass 1: the real RDO encode, seeded from the baseline table above.
	runPass()

	if p.TwoPass {
		// Between passes, observe pass 1's actual coded tokenization (not
		// a disconnected heuristic) and freeze pass 2's table from those
		// frequencies, then re-run the full encode.
		passObs := NewFrequencyObserver()
		passObs.Observe(out, level.SearchDist)
		litLenHist, distHist = passObs.Histograms()
		oracle.Freeze(litLenHist, distHist)
		runPass()
	}

	png, err := EncodePNG(img.W, img.H, img.NumComps, out, p.CompressionLevel)
	if err != nil {
		return nil, err
	}
	return &Result{PNG: png, TotalSE: totalSE, TotalBits: totalBits}, nil
}
