// Package masking builds the per-pixel MaskingMap (C3): a multiplicative
// squared-error scale derived from local RGB(A) activity, with an
// alpha-edge boost and an "ultra smooth" lift for very flat regions.
//
// Grounded on original_source/rdopng.cpp's tracked_stat (running mean/std)
// pattern; rdopng.cpp itself does not build a full masking map (it applies
// smooth_block_mse_scales as a single precomputed table referenced by the
// RDO parser, which is exactly this component's output), so the
// neighborhood-statistics formulas here follow spec.md §4.3 directly.
package masking

import (
	"math"

	"github.com/richgel999/rdopng/internal/rdoimage"
)

// Defaults differ per container format because the three streams have
// different baseline rate-distortion slopes (spec.md §4.3).
type Defaults struct {
	SmoothMaxMSEScale      float64
	UltraSmoothMaxMSEScale float64
}

var (
	DefaultsP = Defaults{SmoothMaxMSEScale: 250, UltraSmoothMaxMSEScale: 1500}
	DefaultsQ = Defaults{SmoothMaxMSEScale: 2500, UltraSmoothMaxMSEScale: 5000}
	DefaultsL = Defaults{SmoothMaxMSEScale: 8000, UltraSmoothMaxMSEScale: 10000}
)

// Params controls the masking-map build (SPEC_FULL.md / spec.md §6).
type Params struct {
	NoMSEScaling        bool
	MaxSmoothStdDev      float64 // sigma_max for the 3x3 smooth factor
	SmoothMaxMSEScale    float64
	MaxUltraSmoothStdDev float64 // sigma_ultra_max for the 10x10 ultra-smooth factor
	UltraSmoothMaxMSEScale float64
	AlphaIsOpacity         bool
}

// DefaultParams fills in the per-format defaults plus the fixed stddev
// ceilings (35 and 5), matching max_smooth_block_std_dev and
// max_ultra_smooth_block_std_dev in the original source.
func DefaultParams(d Defaults) Params {
	return Params{
		MaxSmoothStdDev:        35,
		SmoothMaxMSEScale:      d.SmoothMaxMSEScale,
		MaxUltraSmoothStdDev:   5,
		UltraSmoothMaxMSEScale: d.UltraSmoothMaxMSEScale,
		AlphaIsOpacity:         true,
	}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// stdDevOverWindow computes the standard deviation of channel ch over a
// side x side window centered at (x,y), edge-clamped. For even side the
// window is biased one sample toward the negative direction (e.g. side=10
// covers offsets -5..4), matching the source's fixed-size neighborhood
// scans which never recenter on a half pixel.
func stdDevOverWindow(img *rdoimage.Image, x, y, side, ch int) float64 {
	lo := -(side / 2)
	hi := lo + side - 1
	n := 0
	var sum, sum2 float64
	for dy := lo; dy <= hi; dy++ {
		for dx := lo; dx <= hi; dx++ {
			v := float64(img.AtClamped(x+dx, y+dy).Get(ch))
			sum += v
			sum2 += v * v
			n++
		}
	}
	mean := sum / float64(n)
	variance := sum2/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// maxChannelStdDev returns the max stddev across RGB (and alpha, if
// 4-channel) over the given window.
func maxChannelStdDev(img *rdoimage.Image, x, y, side int) float64 {
	best := 0.0
	numCh := 3
	if img.NumComps == 4 {
		numCh = 4
	}
	for ch := 0; ch < numCh; ch++ {
		if v := stdDevOverWindow(img, x, y, side, ch); v > best {
			best = v
		}
	}
	return best
}

// Build computes the W×H MaskingMap per spec.md §4.3.
func Build(img *rdoimage.Image, p Params) *rdoimage.MaskingMap {
	m := rdoimage.NewMaskingMap(img.W, img.H)
	if p.NoMSEScaling {
		return m
	}

	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			var alphaEdge float64
			if img.NumComps == 4 && p.AlphaIsOpacity {
				sigma := stdDevOverWindow(img, x, y, 7, 3)
				f := sigma / p.MaxSmoothStdDev
				if f > 1 {
					f = 1
				}
				alphaEdge = f * f
			}

			smoothSigma := maxChannelStdDev(img, x, y, 3)
			sf := smoothSigma / p.MaxSmoothStdDev
			if sf > 1 {
				sf = 1
			}
			smooth := sf * sf

			ultraSigma := maxChannelStdDev(img, x, y, 10)
			uf := ultraSigma / p.MaxUltraSmoothStdDev
			if uf > 1 {
				uf = 1
			}
			ultraSmooth := uf * uf * uf

			s0 := lerp(p.SmoothMaxMSEScale, 1, smooth)
			if img.NumComps == 4 {
				s0 = lerp(s0, p.SmoothMaxMSEScale, alphaEdge)
			}
			s := lerp(p.UltraSmoothMaxMSEScale, s0, ultraSmooth)
			if s < 1 {
				s = 1
			}
			m.Set(x, y, s)
		}
	}
	return m
}
