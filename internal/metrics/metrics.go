// Package metrics computes the reference-quality report the driver prints
// after an encode: PSNR (RGB, RGBA, per-channel, Y-709) always, plus
// normal-map angular-error statistics when normal-map mode is active.
//
// Grounded on original_source/rdopng.cpp's print_image_metrics (name only
// survives in that source; its PSNR-over-squared-error body is standard
// and reimplemented here against this module's own Image/Vec3 types).
package metrics

import (
	"fmt"
	"io"
	"math"

	"github.com/richgel999/rdopng/internal/normalmap"
	"github.com/richgel999/rdopng/internal/rdoimage"
)

// psnr converts a mean squared error to decibels; a perfect match (mse==0)
// reports +Inf, matching the convention the reference encoder's console
// output uses.
func psnr(mse float64, maxVal float64) float64 {
	if mse <= 0 {
		return math.Inf(1)
	}
	return 20*math.Log10(maxVal) - 10*math.Log10(mse)
}

// Report is the full set of quality figures computed for one encode.
type Report struct {
	PSNRRGB     float64
	PSNRRGBA    float64
	PSNRR       float64
	PSNRG       float64
	PSNRB       float64
	PSNRA       float64
	PSNRY709    float64
	HasAlpha    bool

	NormalMap      bool
	AngularMinDeg  float64
	AngularMeanDeg float64
	AngularStdDeg  float64
	AngularMaxDeg  float64
	AngularRMSDeg  float64
	InvalidLengths int
}

// y709 applies the Rec.709 luma coefficients to an RGB triple (Compute
// passes the 8-bit sample values unchanged) for the Y-channel PSNR figure.
func y709(r, g, b float64) float64 {
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// Compute measures orig against recon pixel-by-pixel. When normalMap is
// true, every pixel is also decoded as a normal-map direction (snorm8 if
// snorm is true, else unorm8) and the angular-error statistics are filled
// in (spec.md §4.9).
func Compute(orig, recon *rdoimage.Image, normalMap bool, snorm bool) (Report, error) {
	if orig.W != recon.W || orig.H != recon.H {
		return Report{}, fmt.Errorf("metrics: size mismatch %dx%d vs %dx%d", orig.W, orig.H, recon.W, recon.H)
	}

	var seR, seG, seB, seA, seY float64
	n := float64(orig.W * orig.H)
	hasAlpha := orig.NumComps == 4 && recon.NumComps == 4

	var angles []float64
	invalid := 0

	for y := 0; y < orig.H; y++ {
		for x := 0; x < orig.W; x++ {
			a := orig.At(x, y)
			b := recon.At(x, y)

			dr := float64(a.R) - float64(b.R)
			dg := float64(a.G) - float64(b.G)
			db := float64(a.B) - float64(b.B)
			seR += dr * dr
			seG += dg * dg
			seB += db * db
			if hasAlpha {
				da := float64(a.A) - float64(b.A)
				seA += da * da
			}

			ya := y709(float64(a.R), float64(a.G), float64(a.B))
			yb := y709(float64(b.R), float64(b.G), float64(b.B))
			dy := ya - yb
			seY += dy * dy

			if normalMap {
				va := normalmap.Decode(a.R, a.G, a.B, snorm)
				vb := normalmap.Decode(b.R, b.G, b.B, snorm)
				ang := normalmap.AngularErrorDeg(va, vb, false)
				angles = append(angles, ang)
				l := vb.Length()
				if l < 0.4 || l > 1.4 {
					invalid++
				}
			}
		}
	}

	mseR, mseG, mseB := seR/n, seG/n, seB/n
	mseRGB := (seR + seG + seB) / (3 * n)
	mseY := seY / n

	rep := Report{
		PSNRRGB:  psnr(mseRGB, 255),
		PSNRR:    psnr(mseR, 255),
		PSNRG:    psnr(mseG, 255),
		PSNRB:    psnr(mseB, 255),
		PSNRY709: psnr(mseY, 255),
		HasAlpha: hasAlpha,
	}
	if hasAlpha {
		mseA := seA / n
		rep.PSNRA = psnr(mseA, 255)
		rep.PSNRRGBA = psnr((seR+seG+seB+seA)/(4*n), 255)
	}

	if normalMap && len(angles) > 0 {
		rep.NormalMap = true
		rep.InvalidLengths = invalid
		rep.AngularMinDeg = angles[0]
		var sum, sumSq float64
		for _, a := range angles {
			if a < rep.AngularMinDeg {
				rep.AngularMinDeg = a
			}
			if a > rep.AngularMaxDeg {
				rep.AngularMaxDeg = a
			}
			sum += a
			sumSq += a * a
		}
		cnt := float64(len(angles))
		rep.AngularMeanDeg = sum / cnt
		variance := sumSq/cnt - rep.AngularMeanDeg*rep.AngularMeanDeg
		if variance < 0 {
			variance = 0
		}
		rep.AngularStdDeg = math.Sqrt(variance)
		rep.AngularRMSDeg = math.Sqrt(sumSq / cnt)
	}

	return rep, nil
}

// WriteText prints the report in the plain key:value console style the
// teacher's CLI uses for -debug output.
func WriteText(w io.Writer, r Report) {
	fmt.Fprintf(w, "PSNR RGB: %.3f dB\n", r.PSNRRGB)
	if r.HasAlpha {
		fmt.Fprintf(w, "PSNR RGBA: %.3f dB\n", r.PSNRRGBA)
		fmt.Fprintf(w, "PSNR A: %.3f dB\n", r.PSNRA)
	}
	fmt.Fprintf(w, "PSNR R: %.3f dB\n", r.PSNRR)
	fmt.Fprintf(w, "PSNR G: %.3f dB\n", r.PSNRG)
	fmt.Fprintf(w, "PSNR B: %.3f dB\n", r.PSNRB)
	fmt.Fprintf(w, "PSNR Y709: %.3f dB\n", r.PSNRY709)
	if r.NormalMap {
		fmt.Fprintf(w, "Angular error (deg) min/mean/std/max/rms: %.3f/%.3f/%.3f/%.3f/%.3f\n",
			r.AngularMinDeg, r.AngularMeanDeg, r.AngularStdDeg, r.AngularMaxDeg, r.AngularRMSDeg)
		fmt.Fprintf(w, "Invalid lengths: %d\n", r.InvalidLengths)
	}
}
