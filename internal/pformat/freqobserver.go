package pformat

// FrequencyObserver accumulates literal/length and distance symbol
// histograms from a greedy LZ77 tokenization of an already-filtered
// scanline stream, for use as the observation pass of a two-pass encode.
// original_source/rdopng.cpp accumulates these as a pair of file-scope
// global arrays updated by whichever function happens to run; spec.md's
// "Source patterns needing re-architecture" note calls that out
// explicitly, so this is a plain object with no shared mutable state
// across observers.
type FrequencyObserver struct {
	litLenHist [numLitLenSyms]uint64
	distHist   [numDistSyms]uint64
}

// NewFrequencyObserver returns an observer with all histogram counts
// initialized to zero.
func NewFrequencyObserver() *FrequencyObserver {
	return &FrequencyObserver{}
}

// ObserveLiteral records one literal byte.
func (f *FrequencyObserver) ObserveLiteral(b byte) {
	f.litLenHist[b]++
}

// ObserveMatch records one length/distance match.
func (f *FrequencyObserver) ObserveMatch(dist, matchLen uint32) {
	lenSym, _ := lenToSymbol(matchLen)
	f.litLenHist[lenSym]++
	distSym, _ := distToSymbol(dist)
	f.distHist[distSym]++
}

// ObserveEndOfBlock records one end-of-block marker (symbol 256), matching
// the litLen histogram's combined-alphabet convention.
func (f *FrequencyObserver) ObserveEndOfBlock() {
	f.litLenHist[256]++
}

// Histograms returns copies of the accumulated litLen and dist histograms,
// ready to hand to EntropyOracle.Freeze.
func (f *FrequencyObserver) Histograms() (litLen []uint64, dist []uint64) {
	litLen = make([]uint64, numLitLenSyms)
	copy(litLen, f.litLenHist[:])
	dist = make([]uint64, numDistSyms)
	copy(dist, f.distHist[:])
	return
}

// minMatchLen is the shortest LZ77 match this tokenizer will emit; shorter
// runs are always cheaper as literals under DEFLATE's symbol costs.
const minMatchLen = 3

// greedyMatchAt finds the longest match starting at position i whose
// source starts within searchDist bytes before i, scanning at most maxCandidates distances
// (a simplified, capped stand-in for a real hash-chain match finder — this
// observer only needs representative statistics, not optimal matches).
func greedyMatchAt(data []byte, i, searchDist, maxCandidates int) (bestDist, bestLen uint32) {
	n := len(data)
	lo := i - searchDist
	if lo < 0 {
		lo = 0
	}
	tried := 0
	for j := i - 1; j >= lo && tried < maxCandidates; j-- {
		tried++
		l := 0
		for i+l < n && data[j+l] == data[i+l] {
			l++
			if l >= 258 {
				break
			}
		}
		if l >= minMatchLen && l > int(bestLen) {
			bestLen = uint32(l)
			bestDist = uint32(i - j)
		}
	}
	return
}

// Observe tokenizes data with a greedy longest-match-in-window scan and
// feeds the resulting symbol stream into f. searchDist bounds how far back
// matches may reach; it should track the active Level.SearchDist.
func (f *FrequencyObserver) Observe(data []byte, searchDist int) {
	const maxCandidates = 32
	i := 0
	n := len(data)
	for i < n {
		dist, length := greedyMatchAt(data, i, searchDist, maxCandidates)
		if length >= minMatchLen {
			f.ObserveMatch(dist, length)
			i += int(length)
		} else {
			f.ObserveLiteral(data[i])
			i++
		}
	}
	f.ObserveEndOfBlock()
}
