// Package colormodel implements the perceptual error model shared by every
// RDO parser (C1 in SPEC_FULL.md): sRGB<->linear conversion, the OkLab
// lookup table, perceptual/linear squared error, and the reject predicate.
package colormodel

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/richgel999/rdopng/internal/rdoimage"
)

// reject-threshold sentinel: a configured max >= 256 means "disabled",
// mirroring the source's unsigned-wrap-proof uint8_t comparison.
const RejectDisabled = 256

// Oklab is a single OkLab color sample.
type Oklab struct {
	L, A, B float64
}

const (
	minL, maxL = 0.0, 1.0
	minA, maxA = -0.233888, 0.276217
	minB, maxB = -0.311529, 0.198570

	scaleL = 1.0 / 65535.0
	scaleA = (1.0 / 65535.0) * (maxA - minA)
	scaleB = (1.0 / 65535.0) * (maxB - minB)
)

// lab16 is the on-disk/in-memory quantized table entry: 16-bit L,a,b.
type lab16 struct {
	L, A, B uint16
}

// Table is the process-wide, read-only sRGB->OkLab lookup: 256^3 entries of
// quantized (L,a,b), built once at startup and shared across any future
// parallelization per SPEC_FULL.md §5.
type Table struct {
	entries []lab16 // indexed by r + g*256 + b*65536
	srgbLin [256]float64
}

// TableSizeBytes is the exact persisted size: 256*256*256*6 bytes.
const TableSizeBytes = 256 * 256 * 256 * 6

func srgbInverseGamma(x float64) float64 {
	if x <= 0.04045 {
		return x / 12.92
	}
	return math.Pow((x+0.055)/1.055, 2.4)
}

func linearSrgbToOklab(r, g, b float64) Oklab {
	l := 0.4122214708*r + 0.5363325363*g + 0.0514459929*b
	m := 0.2119034982*r + 0.6806995451*g + 0.1073969566*b
	s := 0.0883024619*r + 0.2817188376*g + 0.6299787005*b

	l_ := math.Cbrt(l)
	m_ := math.Cbrt(m)
	s_ := math.Cbrt(s)

	return Oklab{
		L: 0.2104542553*l_ + 0.7936177850*m_ - 0.0040720468*s_,
		A: 1.9779984951*l_ - 2.4285922050*m_ + 0.4505937099*s_,
		B: 0.0259040371*l_ + 0.7827717662*m_ - 0.8086757660*s_,
	}
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BuildTable computes the table from scratch. This is the ~256^3 pass
// described in SPEC_FULL.md §A/4.1; it runs once at process start when no
// usable cache file is present.
func BuildTable() *Table {
	t := &Table{entries: make([]lab16, 256*256*256)}
	for i := 0; i < 256; i++ {
		t.srgbLin[i] = srgbInverseGamma(float64(i) / 255.0)
	}

	for r := 0; r <= 255; r++ {
		for g := 0; g <= 255; g++ {
			for b := 0; b <= 255; b++ {
				lab := linearSrgbToOklab(t.srgbLin[r], t.srgbLin[g], t.srgbLin[b])

				ql := math.Round(((lab.L - minL) / (maxL - minL)) * 65535.0)
				qa := math.Round(((lab.A - minA) / (maxA - minA)) * 65535.0)
				qb := math.Round(((lab.B - minB) / (maxB - minB)) * 65535.0)

				ql = clampf(ql, 0, 65535)
				qa = clampf(qa, 0, 65535)
				qb = clampf(qb, 0, 65535)

				t.entries[r+g*256+b*65536] = lab16{L: uint16(ql), A: uint16(qa), B: uint16(qb)}
			}
		}
	}
	return t
}

// LoadOrBuildTable tries to memory-read the cache file at path; on any
// mismatch (missing file, wrong size) it recomputes and, unless
// noCacheWrite is set, persists the freshly built table.
func LoadOrBuildTable(path string, quiet, noCacheWrite bool) (*Table, error) {
	if data, err := os.ReadFile(path); err == nil && len(data) == TableSizeBytes {
		t := &Table{entries: make([]lab16, 256*256*256)}
		for i := 0; i < 256; i++ {
			t.srgbLin[i] = srgbInverseGamma(float64(i) / 255.0)
		}
		for i := range t.entries {
			off := i * 6
			t.entries[i] = lab16{
				L: binary.LittleEndian.Uint16(data[off:]),
				A: binary.LittleEndian.Uint16(data[off+2:]),
				B: binary.LittleEndian.Uint16(data[off+4:]),
			}
		}
		if !quiet {
			fmt.Printf("Read Oklab table data from file %s\n", path)
		}
		return t, nil
	}

	if !quiet {
		fmt.Println("Computing Oklab table")
	}
	t := BuildTable()

	if !noCacheWrite {
		if err := t.save(path); err != nil {
			fmt.Fprintf(os.Stderr, "Failed writing oklab lookup table to file %s: %v\n", path, err)
		} else if !quiet {
			fmt.Printf("Wrote oklab lookup table to file %s\n", path)
		}
	}
	return t, nil
}

func (t *Table) save(path string) error {
	data := make([]byte, TableSizeBytes)
	for i, e := range t.entries {
		off := i * 6
		binary.LittleEndian.PutUint16(data[off:], e.L)
		binary.LittleEndian.PutUint16(data[off+2:], e.A)
		binary.LittleEndian.PutUint16(data[off+4:], e.B)
	}
	return os.WriteFile(path, data, 0o644)
}

// SrgbToLinear returns the precomputed inverse-gamma value for an 8-bit
// channel sample.
func (t *Table) SrgbToLinear(c uint8) float64 { return t.srgbLin[c] }

// SrgbToOklab returns the dequantized OkLab sample for color c via table
// lookup.
func (t *Table) SrgbToOklab(c rdoimage.Pixel) Oklab {
	e := t.entries[int(c.R)+int(c.G)*256+int(c.B)*65536]
	return Oklab{
		L: float64(e.L) * scaleL,
		A: float64(e.A)*scaleA + minA,
		B: float64(e.B)*scaleB + minB,
	}
}

// SrgbToOklabNorm returns the table entry scaled uniformly into [0,1] on all
// three axes — the form compute_se/reject actually compare against, so that
// per-axis deltas are directly comparable without re-applying the (unequal)
// per-axis OkLab ranges.
func (t *Table) SrgbToOklabNorm(c rdoimage.Pixel) Oklab {
	e := t.entries[int(c.R)+int(c.G)*256+int(c.B)*65536]
	return Oklab{L: float64(e.L) * scaleL, A: float64(e.A) * scaleL, B: float64(e.B) * scaleL}
}

// Params bundles every error-model knob the CLI exposes (SPEC_FULL.md §6).
type Params struct {
	PerceptualError bool

	UseChanWeights bool
	ChanWeights    [4]float64 // linear-mode RGBA weights

	ChanWeightsLab [4]float64 // L,a,b,alpha, normalized to unit length over L/a/b

	UseRejectThresholds   bool
	RejectThresholds      [4]uint32 // RGBA, RejectDisabled sentinel = off
	RejectThresholdsLab   [2]float64 // [0]=L, [1]=ab euclidean

	TransparentRejectTest bool
	AlphaIsOpacity        bool

	MatchOnly bool
	TwoPass   bool
}

// DefaultParams mirrors rdo_png_params::clear() in the original source.
func DefaultParams() Params {
	p := Params{
		PerceptualError:     true,
		ChanWeights:         [4]float64{1, 1, 1, 1},
		UseRejectThresholds: true,
		RejectThresholds:    [4]uint32{32, 32, 32, 32},
		RejectThresholdsLab: [2]float64{0.05, 0.05},
		AlphaIsOpacity:      true,
	}
	lw, aw, bw := 2.0, 1.5, 1.0
	l := math.Sqrt(lw*lw + aw*aw + bw*bw)
	p.ChanWeightsLab = [4]float64{lw / l, aw / l, bw / l, 1.0}
	return p
}

func square(f float64) float64 { return f * f }

// ComputeSE dispatches to the perceptual or linear squared-error function
// per params.PerceptualError, matching compute_se in the original source.
func (t *Table) ComputeSE(a, b rdoimage.Pixel, numComps int, p Params) float64 {
	if p.PerceptualError {
		return t.PerceptualSE(a, b, numComps, p)
	}
	return LinearSE(a, b, numComps, p)
}

// PerceptualSE computes the OkLab-space weighted squared error between two
// colors, scaled by the fixed 350,000 constant so λ stays comparable across
// modes (SPEC_FULL.md / spec.md §4.1).
func (t *Table) PerceptualSE(a, b rdoimage.Pixel, numComps int, p Params) float64 {
	la := t.SrgbToOklabNorm(a)
	lb := t.SrgbToOklabNorm(b)

	dL := la.L - lb.L
	dA := la.A - lb.A
	dB := la.B - lb.B

	dist := dL*dL*p.ChanWeightsLab[0] + dA*dA*p.ChanWeightsLab[1] + dB*dB*p.ChanWeightsLab[2]
	const scale = 350000.0
	dist *= scale

	if numComps == 4 {
		da := float64(int(a.A) - int(b.A))
		dist += p.ChanWeightsLab[3] * square(da)
	}
	return dist
}

// LinearSE computes a (possibly channel-weighted) linear RGB(A) sum of
// squared differences.
func LinearSE(a, b rdoimage.Pixel, numComps int, p Params) float64 {
	dr := float64(int(a.R) - int(b.R))
	dg := float64(int(a.G) - int(b.G))
	db := float64(int(a.B) - int(b.B))

	var dist float64
	if p.UseChanWeights {
		dist = p.ChanWeights[0]*dr*dr + p.ChanWeights[1]*dg*dg + p.ChanWeights[2]*db*db
		if numComps == 4 {
			da := float64(int(a.A) - int(b.A))
			dist += p.ChanWeights[3] * da * da
		}
	} else {
		dist = dr*dr + dg*dg + db*db
		if numComps == 4 {
			da := float64(int(a.A) - int(b.A))
			dist += da * da
		}
	}
	return dist
}

// Reject implements the hard admissibility filter: true iff the trial color
// must never be committed regardless of its RD score.
func (t *Table) Reject(trial, orig rdoimage.Pixel, numComps int, p Params) bool {
	if p.TransparentRejectTest && numComps == 4 {
		if orig.A == 0 && trial.A > 0 {
			return true
		}
		if orig.A == 255 && trial.A < 255 {
			return true
		}
	}

	if !p.UseRejectThresholds {
		return false
	}

	if p.PerceptualError {
		to := t.SrgbToOklabNorm(trial)
		oo := t.SrgbToOklabNorm(orig)

		if p.RejectThresholdsLab[0] < RejectDisabled {
			if math.Abs(to.L-oo.L) > p.RejectThresholdsLab[0] {
				return true
			}
		}
		if p.RejectThresholdsLab[1] < RejectDisabled {
			abDist := square(to.A-oo.A) + square(to.B-oo.B)
			if abDist > square(p.RejectThresholdsLab[1]) {
				return true
			}
		}
		if numComps == 4 && p.RejectThresholds[3] < RejectDisabled {
			da := absInt(int(trial.A) - int(orig.A))
			if uint32(da) > p.RejectThresholds[3] {
				return true
			}
		}
		return false
	}

	for c := 0; c < 3; c++ {
		if p.RejectThresholds[c] >= RejectDisabled {
			continue
		}
		d := absInt(int(trial.Get(c)) - int(orig.Get(c)))
		if uint32(d) > p.RejectThresholds[c] {
			return true
		}
	}
	if numComps == 4 && p.RejectThresholds[3] < RejectDisabled {
		d := absInt(int(trial.A) - int(orig.A))
		if uint32(d) > p.RejectThresholds[3] {
			return true
		}
	}
	return false
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
