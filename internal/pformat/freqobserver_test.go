package pformat

import "testing"

func TestFrequencyObserverFindsRepeatedRun(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i % 4)
	}
	obs := NewFrequencyObserver()
	obs.Observe(data, 256)

	litLen, dist := obs.Histograms()
	var matchSymbolCount uint64
	for i := 257; i < numLitLenSyms; i++ {
		matchSymbolCount += litLen[i]
	}
	if matchSymbolCount == 0 {
		t.Fatalf("expected at least one match token on a periodic input")
	}
	var distCount uint64
	for _, c := range dist {
		distCount += c
	}
	if distCount == 0 {
		t.Fatalf("expected at least one distance symbol on a periodic input")
	}
}

func TestGreedyMatchAtRespectsSearchDist(t *testing.T) {
	data := []byte{1, 2, 3, 1, 2, 3}
	dist, length := greedyMatchAt(data, 3, 2, 8)
	if length != 0 {
		t.Fatalf("match distance 3 should be unreachable with searchDist 2, got len %d dist %d", length, dist)
	}

	dist, length = greedyMatchAt(data, 3, 3, 8)
	if length < minMatchLen || dist != 3 {
		t.Fatalf("expected a length>=3 match at distance 3, got len %d dist %d", length, dist)
	}
}
