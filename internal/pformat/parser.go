package pformat

import (
	"github.com/richgel999/rdopng/internal/colormodel"
	"github.com/richgel999/rdopng/internal/rdoimage"
)

// Candidate is one trial pixel value considered for a literal sub-problem:
// the true value, a per-channel-subset delta-space shrink of it, or a
// window-copy/match substitution sourced from an earlier position's
// committed filtered delta bytes.
type Candidate struct {
	Pixel rdoimage.Pixel
	Bits  uint32 // this candidate's own bit cost (literal or match, already final)
}

// subProblemKey memoizes a literal choice within a single scanline's
// window: x is the pixel's offset, and deltas packs every channel's
// already-committed raw byte of the up to MaxDeltaColors pixels
// immediately to its left on the same row. Using a small fixed-size value type as the map key
// avoids the pointer-chasing intrusive hash node the original builds per
// sub-problem (spec.md's "pointer-heavy hash key" re-architecture note).
type subProblemKey struct {
	x      int
	deltas [MaxDeltaColors * 4]byte // 4 bytes per pixel for up to MaxDeltaColors pixels, zero-padded
}

// subProblemValue is a memoized sub-problem result: the chosen candidate
// and its RD contribution.
type subProblemValue struct {
	cand Candidate
	rd   float64
	se   float64
}

// Window holds the state threaded through one scanline's parse.
type Window struct {
	img    *rdoimage.Image
	mask   *rdoimage.MaskingMap
	table  *colormodel.Table
	params colormodel.Params
	oracle *EntropyOracle
	lambda float64
	y      int
	bpp    int
	memo   map[subProblemKey]subProblemValue
}

func newWindow(img *rdoimage.Image, mask *rdoimage.MaskingMap, table *colormodel.Table, params colormodel.Params, oracle *EntropyOracle, lambda float64, y, bpp int) *Window {
	return &Window{
		img: img, mask: mask, table: table, params: params,
		oracle: oracle, lambda: lambda, y: y, bpp: bpp,
		memo: make(map[subProblemKey]subProblemValue, 256),
	}
}

// rdScore combines distortion and rate per spec.md's D*mse_scale + lambda*R.
func (w *Window) rdScore(se, mseScale float64, bits uint32) float64 {
	return se*mseScale + w.lambda*float64(bits)
}

// pngMatchDist returns the byte distance, in the final filter-tagged
// scanline stream, between destination byte (xa,ya) and source byte
// (xb,yb). Every row contributes one extra byte (its filter tag) ahead of
// its width*numComps pixel bytes, so a cross-row distance is not simply
// (ya-yb)*width*numComps — it needs the +1 per row in between. Ported from
// original_source/rdopng.cpp's compute_png_match_dist.
func pngMatchDist(xa, ya, xb, yb, width, numComps int) int {
	return (xa*numComps + ya*(width*numComps+1)) - (xb*numComps + yb*(width*numComps+1))
}

func maxI(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minI(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// xRange is one (row, column-range) slice of the cross-row search space for
// a run of the given length starting at column x on row y.
type xRange struct {
	yd           int // rows back from y
	xStart, xEnd int
}

// rowSearchRanges enumerates the (row, column-range) slices find_optimal1/
// find_optimal_n search for a runLen-pixel window-copy or match source,
// ported verbatim from their yd/pass/x_start/x_end branch structure
// (original_source/rdopng.cpp). level.ScanlinesToCheck bounds how many rows
// back are visited; level.Exhaustive widens every range to the whole row
// (or, for y itself, everything already committed to its left);
// level.SearchDist bounds the non-exhaustive ranges.
func rowSearchRanges(level Level, x, y, runLen, width int) []xRange {
	var ranges []xRange
	for yd := 0; yd < level.ScanlinesToCheck; yd++ {
		if y-yd < 0 {
			break
		}
		totalPasses := 1
		if yd == 1 && !level.Exhaustive {
			totalPasses = 2
		}
		for pass := 0; pass < totalPasses; pass++ {
			var xStart, xEnd int
			switch {
			case level.Exhaustive:
				xStart = 0
				if yd != 0 {
					xEnd = width - runLen
				} else {
					xEnd = x - runLen
				}
			case yd == 0:
				if x < runLen {
					continue
				}
				xStart = maxI(x-level.SearchDist*2, 0)
				xEnd = maxI(x-runLen, 0)
			case yd == 1 && pass == 0:
				if width <= level.SearchDist*2 {
					continue
				}
				xStart = maxI(width-level.SearchDist, 0)
				xEnd = width - runLen
			default:
				xStart = maxI(x-level.SearchDist, 0)
				xEnd = minI(x+level.SearchDist, width-runLen)
			}
			ranges = append(ranges, xRange{yd: yd, xStart: xStart, xEnd: xEnd})
		}
	}
	return ranges
}

// literalBits writes trueVal's bytes into rawPlane at x and returns the
// literal bit cost of emitting it under filter, per spec.md §4.6's true
// (lossless) delta sub-problem.
func (w *Window) literalBits(rawPlane []byte, stride, x, filter int, pixel rdoimage.Pixel) uint32 {
	var bits uint32
	for c := 0; c < w.img.NumComps; c++ {
		off := x*w.bpp + c
		rawPlane[w.y*stride+off] = pixel.Get(c)
		delta := PredictByte(rawPlane, stride, off, w.y, w.bpp, filter)
		bits += w.oracle.LiteralBits(delta)
	}
	return bits
}

// channelShrinkCandidates enumerates, for every nonzero channel subset
// (1..2^numComps-1), the candidate formed by shrinking that subset's
// filtered delta by one toward zero and unpredicting the result back to a
// raw byte against x's own neighbor context. Ported from find_optimal1's
// type-1 sub-problem (original_source/rdopng.cpp), which operates entirely
// in delta space — never on the raw pixel value directly — so a negative
// delta shrinks by +1, not -1.
func (w *Window) channelShrinkCandidates(rawPlane []byte, stride, x, filter int, trueVal rdoimage.Pixel) []Candidate {
	numComps := w.img.NumComps
	trueDelta := make([]uint8, numComps)
	allZero := true
	for c := 0; c < numComps; c++ {
		off := x*w.bpp + c
		rawPlane[w.y*stride+off] = trueVal.Get(c)
		d := PredictByte(rawPlane, stride, off, w.y, w.bpp, filter)
		trueDelta[c] = d
		if d != 0 {
			allZero = false
		}
	}
	if allZero {
		return nil
	}

	var out []Candidate
	numSubsets := 1 << numComps
	for t := 1; t < numSubsets; t++ {
		cand := trueVal
		var bits uint32
		for c := 0; c < numComps; c++ {
			delta := trueDelta[c]
			if t&(1<<c) != 0 {
				v := int8(delta)
				if v < 0 {
					v++
				} else if v > 0 {
					v--
				}
				delta = uint8(v)
			}
			off := x*w.bpp + c
			raw := UnpredictByte(rawPlane, stride, off, w.y, w.bpp, filter, delta)
			cand.Set(c, raw)
			bits += w.oracle.LiteralBits(delta)
		}
		if cand == trueVal {
			continue
		}
		if w.table.Reject(cand, trueVal, numComps, w.params) {
			continue
		}
		out = append(out, Candidate{Pixel: cand, Bits: bits})
	}
	return out
}

// candidatesFor enumerates every literal candidate admissible at pixel x:
// the true value, every channel-subset shrink (skipped entirely in
// match-only mode, matching rdo_png_params::m_match_only), and the single
// best window-copy substitution EvalMatches finds for a length-1 run.
func (w *Window) candidatesFor(rawPlane, deltaPlane []byte, stride, x, filter int, level Level, trueVal rdoimage.Pixel) []Candidate {
	bits := w.literalBits(rawPlane, stride, x, filter, trueVal)
	out := []Candidate{{Pixel: trueVal, Bits: bits}}

	if !w.params.MatchOnly {
		out = append(out, w.channelShrinkCandidates(rawPlane, stride, x, filter, trueVal)...)
	}

	if m := w.EvalMatches(rawPlane, deltaPlane, stride, x, 1, level, filter); m != nil {
		w.commitMatchRun(rawPlane, deltaPlane, stride, x, m.srcX, m.srcY, 1, filter)
		cand := readPixel(rawPlane, stride, x, w.y, w.bpp)
		if cand != trueVal {
			out = append(out, Candidate{Pixel: cand, Bits: m.bits})
		}
	}

	return out
}

// commitDelta recomputes and writes the filtered delta byte for every
// channel of pixel x into deltaPlane, from whatever raw bytes are currently
// in rawPlane at that position.
func (w *Window) commitDelta(rawPlane, deltaPlane []byte, stride, x, filter int) {
	for c := 0; c < w.img.NumComps; c++ {
		off := x*w.bpp + c
		deltaPlane[w.y*stride+off] = PredictByte(rawPlane, stride, off, w.y, w.bpp, filter)
	}
}

// FindOptimal1 solves the single-pixel sub-problem at x: pick the
// admissible candidate pixel value minimizing rdScore, encoded as a
// literal under filter, and commit it to both rawPlane (raw bytes) and
// deltaPlane (its filtered delta bytes, the form a later window-copy or
// match candidate sources from).
func (w *Window) FindOptimal1(rawPlane, deltaPlane []byte, stride, x, filter int, level Level) (rdoimage.Pixel, float64, uint32) {
	trueVal := w.img.At(x, w.y)
	mseScale := w.mask.At(x, w.y)

	key := subProblemKey{x: x}
	for k := 0; k < MaxDeltaColors && x-1-k >= 0; k++ {
		for c := 0; c < w.bpp; c++ {
			key.deltas[k*4+c] = rawPlane[w.y*stride+(x-1-k)*w.bpp+c]
		}
	}
	if cached, ok := w.memo[key]; ok {
		for c := 0; c < w.img.NumComps; c++ {
			rawPlane[w.y*stride+x*w.bpp+c] = cached.cand.Pixel.Get(c)
		}
		w.commitDelta(rawPlane, deltaPlane, stride, x, filter)
		return cached.cand.Pixel, cached.se, cached.cand.Bits
	}

	best := rdoimage.Pixel{}
	bestRD := -1.0
	var bestSE float64
	var bestBits uint32

	for _, cand := range w.candidatesFor(rawPlane, deltaPlane, stride, x, filter, level, trueVal) {
		se := w.table.ComputeSE(trueVal, cand.Pixel, w.img.NumComps, w.params)
		rd := w.rdScore(se, mseScale, cand.Bits)
		if bestRD < 0 || rd < bestRD {
			best, bestRD, bestSE, bestBits = cand.Pixel, rd, se, cand.Bits
		}
	}

	for c := 0; c < w.img.NumComps; c++ {
		rawPlane[w.y*stride+x*w.bpp+c] = best.Get(c)
	}
	w.commitDelta(rawPlane, deltaPlane, stride, x, filter)

	w.memo[key] = subProblemValue{cand: Candidate{Pixel: best, Bits: bestBits}, rd: bestRD, se: bestSE}
	return best, bestSE, bestBits
}

// matchCandidate describes one admissible whole-run substitution, sourced
// from deltaPlane at (srcX,srcY), at the cost of one LZ77 match token.
type matchCandidate struct {
	srcX, srcY int
	se         float64
	bits       uint32
	t          float64 // mse_scale-weighted RD score, directly comparable across candidates
}

// readPixel reads a bpp-channel pixel out of the coded raw-byte plane
// (alpha defaults to 255 for 3-component images, matching rdoimage.Pixel's
// convention).
func readPixel(plane []byte, stride, x, y, bpp int) rdoimage.Pixel {
	base := y*stride + x*bpp
	p := rdoimage.Pixel{A: 255}
	for c := 0; c < bpp; c++ {
		p.Set(c, plane[base+c])
	}
	return p
}

// commitMatchRun unpredicts runLen pixels' worth of deltaPlane bytes from
// (srcX,srcY) into rawPlane starting at x, against the destination's own
// (rawPlane) neighbor context, writing each pixel before moving to the
// next since a run's later pixels see earlier ones as committed left
// neighbors. Returns the total unscaled squared error and whether every
// substituted pixel individually passes the color model's reject test.
func (w *Window) commitMatchRun(rawPlane, deltaPlane []byte, stride, x, srcX, srcY, runLen, filter int) (se float64, ok bool) {
	numComps := w.img.NumComps
	ok = true
	for k := 0; k < runLen; k++ {
		var trial rdoimage.Pixel
		for c := 0; c < numComps; c++ {
			off := (x+k)*w.bpp + c
			srcOff := (srcX+k)*w.bpp + c
			d := deltaPlane[srcY*stride+srcOff]
			raw := UnpredictByte(rawPlane, stride, off, w.y, w.bpp, filter, d)
			trial.Set(c, raw)
			rawPlane[w.y*stride+off] = raw
		}
		orig := w.img.At(x+k, w.y)
		if w.table.Reject(trial, orig, numComps, w.params) {
			ok = false
			continue
		}
		se += w.table.ComputeSE(orig, trial, numComps, w.params)
	}
	return se, ok
}

// EvalMatches searches every admissible source row/column (per
// rowSearchRanges, i.e. respecting level.ScanlinesToCheck, level.Exhaustive
// and level.SearchDist) for the lowest-RD runLen-pixel substitution sourced
// from deltaPlane, ported from find_optimal1's type-2 branch (runLen==1)
// and find_optimal_n (runLen>1) in original_source/rdopng.cpp. Evaluating
// a source writes its reconstruction into rawPlane's run bytes, so on
// return they hold the last source tried, not necessarily the returned
// one, and deltaPlane is not updated; callers re-run
// FindOptimal1/commitMatchRun to commit their choice.
func (w *Window) EvalMatches(rawPlane, deltaPlane []byte, stride, x, runLen int, level Level, filter int) *matchCandidate {
	var best *matchCandidate
	for _, r := range rowSearchRanges(level, x, w.y, runLen, w.img.W) {
		srcY := w.y - r.yd
		for xd := r.xEnd; xd >= r.xStart; xd-- {
			if xd < 0 || xd+runLen > w.img.W {
				continue
			}
			se, ok := w.commitMatchRun(rawPlane, deltaPlane, stride, x, xd, srcY, runLen, filter)
			if !ok {
				continue
			}
			dist := pngMatchDist(x, w.y, xd, srcY, w.img.W, w.bpp)
			bits := w.oracle.ComputeMatchCost(uint32(dist), uint32(runLen*w.bpp))
			mseScale := 0.0
			for k := 0; k < runLen; k++ {
				if s := w.mask.At(x+k, w.y); s > mseScale {
					mseScale = s
				}
			}
			mse := se / float64(runLen)
			t := mseScale*mse + w.lambda*float64(bits)
			if best == nil || t < best.t {
				best = &matchCandidate{srcX: xd, srcY: srcY, se: se, bits: bits, t: t}
			}
		}
	}
	return best
}

// FindOptimalN solves the sub-problem of covering a runLen-pixel run
// starting at x with either literals (one FindOptimal1 call per pixel) or
// a single match token, picking whichever RD score is lower. rawPlane and
// deltaPlane are the full-height coded-byte and filtered-delta planes: rows
// above w.y are already committed, row w.y is scratch for the duration of
// this call.
func (w *Window) FindOptimalN(rawPlane, deltaPlane []byte, stride, x, runLen, filter int, level Level) (se float64, bits uint32) {
	if runLen == 1 {
		_, se1, bits1 := w.FindOptimal1(rawPlane, deltaPlane, stride, x, filter, level)
		return se1, bits1
	}

	match := w.EvalMatches(rawPlane, deltaPlane, stride, x, runLen, level, filter)

	var litSE float64
	var litBits uint32
	var litT float64
	for k := 0; k < runLen; k++ {
		_, s, b := w.FindOptimal1(rawPlane, deltaPlane, stride, x+k, filter, level)
		litSE += s
		litBits += b
		litT += w.mask.At(x+k, w.y) * s
	}
	litT += w.lambda * float64(litBits)

	if match == nil || litT <= match.t {
		// rawPlane/deltaPlane already hold the literal commit above.
		return litSE, litBits
	}

	w.commitMatchRun(rawPlane, deltaPlane, stride, x, match.srcX, match.srcY, runLen, filter)
	for k := 0; k < runLen; k++ {
		w.commitDelta(rawPlane, deltaPlane, stride, x+k, filter)
	}
	return match.se, match.bits
}

// evalMenu tries the cover patterns in menu, in order, against the m-pixel
// window starting at x — partitioning it into runs per pattern.Runs and
// solving each run via FindOptimalN/FindOptimal1 — and commits whichever
// partition scores lowest under mse*mse_scale + lambda*bits, mse_scale
// being the max mask weight over the window. It stops early after the
// first pattern whose partition has zero squared error. Ported from eval_matches
// (original_source/rdopng.cpp), which resets its per-run-length memo once
// per window for exactly this reason: every pattern re-solves the same
// handful of sub-problems (a literal at x, a 3-run at x+1, ...) and w.memo
// already caches those hits across patterns without needing a separate
// per-window reset.
func (w *Window) evalMenu(rawPlane, deltaPlane []byte, stride, x, m, filter int, level Level, menu []MatchOrder) (se float64, bits uint32) {
	mseScale := 0.0
	for k := 0; k < m; k++ {
		if s := w.mask.At(x+k, w.y); s > mseScale {
			mseScale = s
		}
	}

	savedRow := append([]byte(nil), rawPlane[w.y*stride:(w.y+1)*stride]...)
	savedDeltaRow := append([]byte(nil), deltaPlane[w.y*stride:(w.y+1)*stride]...)

	bestT := -1.0
	var bestRow, bestDeltaRow []byte

	for _, order := range menu {
		copy(rawPlane[w.y*stride:(w.y+1)*stride], savedRow)
		copy(deltaPlane[w.y*stride:(w.y+1)*stride], savedDeltaRow)

		var trialSE float64
		var trialBits uint32
		xOfs := 0
		for _, runLen := range order.Runs {
			s, b := w.FindOptimalN(rawPlane, deltaPlane, stride, x+xOfs, runLen, filter, level)
			trialSE += s
			trialBits += b
			xOfs += runLen
		}

		mse := trialSE / float64(m)
		t := mse*mseScale + w.lambda*float64(trialBits)
		if bestT < 0 || t < bestT {
			bestT = t
			se, bits = trialSE, trialBits
			bestRow = append(bestRow[:0], rawPlane[w.y*stride:(w.y+1)*stride]...)
			bestDeltaRow = append(bestDeltaRow[:0], deltaPlane[w.y*stride:(w.y+1)*stride]...)
		}

		if mse == 0 {
			break
		}
	}

	copy(rawPlane[w.y*stride:(w.y+1)*stride], bestRow)
	copy(deltaPlane[w.y*stride:(w.y+1)*stride], bestDeltaRow)
	return se, bits
}

// ScanlineResult is the outcome of parsing one scanline under one filter.
type ScanlineResult struct {
	Filter    int
	TotalSE   float64
	TotalBits uint32
	Plane     []byte
}

// ParseScanline tries every filter in [level.FirstFilter, level.LastFilter]
// (skipping FilterUp, per spec.md §4.5) against the active menu(s), and
// returns the winner. Per spec.md §4.6 and §9, the winner is chosen by
// lowest TotalSE, not by RD score — a deliberately codified quirk carried
// over unchanged from the source.
//
// rawPlane and deltaPlane are the full-image raw (unfiltered) and filtered
// (delta) coded-byte planes: rows above y are already committed from
// earlier calls and are read for cross-row window-copy/match search and for
// Sub/Average/Paeth neighbor context; row y is scratch across filter trials
// and holds the winning trial's bytes on return.
func ParseScanline(img *rdoimage.Image, mask *rdoimage.MaskingMap, table *colormodel.Table, params colormodel.Params, oracle *EntropyOracle, lambda float64, level Level, rawPlane, deltaPlane []byte, stride, y, bpp int) ScanlineResult {
	var best ScanlineResult
	haveBest := false
	bestRow := make([]byte, stride)
	bestDeltaRow := make([]byte, stride)

	for filter := level.FirstFilter; filter <= level.LastFilter; filter++ {
		if filter == FilterUp {
			continue
		}

		w := newWindow(img, mask, table, params, oracle, lambda, y, bpp)

		var totalSE float64
		var totalBits uint32
		x := 0
		for x < img.W {
			var se float64
			var bits uint32
			var consumed int
			if level.DoubleWidth {
				consumed, se, bits = w.parseDoubleWidthStep(rawPlane, deltaPlane, stride, x, filter, level)
			} else if remaining := img.W - x; remaining >= level.M && len(level.MenuA) > 0 {
				se, bits = w.evalMenu(rawPlane, deltaPlane, stride, x, level.M, filter, level, level.MenuA)
				consumed = level.M
			} else {
				se, bits = w.FindOptimalN(rawPlane, deltaPlane, stride, x, 1, filter, level)
				consumed = 1
			}
			totalSE += se
			totalBits += bits
			x += consumed
		}

		if !haveBest || totalSE < best.TotalSE {
			best = ScanlineResult{Filter: filter, TotalSE: totalSE, TotalBits: totalBits}
			haveBest = true
			copy(bestRow, rawPlane[y*stride:(y+1)*stride])
			copy(bestDeltaRow, deltaPlane[y*stride:(y+1)*stride])
		}
	}

	copy(rawPlane[y*stride:(y+1)*stride], bestRow)
	copy(deltaPlane[y*stride:(y+1)*stride], bestDeltaRow)
	best.Plane = bestRow
	return best
}

// parseDoubleWidthStep decides, for a double-width level, between two
// independent level.M-wide windows each searched over every level.MenuA
// cover pattern and one 2*level.M-wide window searched over every
// level.MenuB cover pattern, committing whichever option totals the lower
// RD score and returning how many pixels it consumed. At the tail, where
// not even 2*level.M pixels remain, falls back to a bare per-pixel literal,
// exactly mirroring the widths rdo_png()'s double-width loop
// (original_source/rdopng.cpp) falls back on.
func (w *Window) parseDoubleWidthStep(rawPlane, deltaPlane []byte, stride, x, filter int, level Level) (consumed int, se float64, bits uint32) {
	remaining := w.img.W - x
	if remaining < 2*level.M {
		se, bits = w.FindOptimalN(rawPlane, deltaPlane, stride, x, 1, filter, level)
		return 1, se, bits
	}

	savedRow := append([]byte(nil), rawPlane[w.y*stride:(w.y+1)*stride]...)
	savedDeltaRow := append([]byte(nil), deltaPlane[w.y*stride:(w.y+1)*stride]...)

	seA1, bitsA1 := w.evalMenu(rawPlane, deltaPlane, stride, x, level.M, filter, level, level.MenuA)
	seA2, bitsA2 := w.evalMenu(rawPlane, deltaPlane, stride, x+level.M, level.M, filter, level, level.MenuA)
	seA := seA1 + seA2
	bitsA := bitsA1 + bitsA2

	overallMseScale := 0.0
	for k := 0; k < 2*level.M; k++ {
		if s := w.mask.At(x+k, w.y); s > overallMseScale {
			overallMseScale = s
		}
	}
	mseA := seA / float64(2*level.M)
	rdA := mseA*overallMseScale + w.lambda*float64(bitsA)

	rowA := append([]byte(nil), rawPlane[w.y*stride:(w.y+1)*stride]...)
	deltaRowA := append([]byte(nil), deltaPlane[w.y*stride:(w.y+1)*stride]...)

	copy(rawPlane[w.y*stride:(w.y+1)*stride], savedRow)
	copy(deltaPlane[w.y*stride:(w.y+1)*stride], savedDeltaRow)

	seB, bitsB := w.evalMenu(rawPlane, deltaPlane, stride, x, 2*level.M, filter, level, level.MenuB)
	mseB := seB / float64(2*level.M)
	rdB := mseB*overallMseScale + w.lambda*float64(bitsB)

	if rdA < rdB {
		copy(rawPlane[w.y*stride:(w.y+1)*stride], rowA)
		copy(deltaPlane[w.y*stride:(w.y+1)*stride], deltaRowA)
		return 2 * level.M, seA, bitsA
	}
	return 2 * level.M, seB, bitsB
}
