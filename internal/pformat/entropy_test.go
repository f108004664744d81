package pformat

import "testing"

func TestEntropyOracleFlatCosts(t *testing.T) {
	o := NewEntropyOracle()
	if got := o.LiteralBits(42); got != 8 {
		t.Fatalf("flat literal cost = %d, want 8", got)
	}
}

func TestEntropyOracleFreezeLowersCommonSymbolCost(t *testing.T) {
	litLenHist := make([]uint64, numLitLenSyms)
	distHist := make([]uint64, numDistSyms)

	// byte 0 dominates; everything else appears once.
	for i := range litLenHist {
		litLenHist[i] = 1
	}
	litLenHist[0] = 100000

	o := NewEntropyOracle()
	o.Freeze(litLenHist, distHist)

	if o.LiteralBits(0) >= o.LiteralBits(1) {
		t.Fatalf("dominant symbol cost %d should be cheaper than rare symbol cost %d",
			o.LiteralBits(0), o.LiteralBits(1))
	}
}

func TestComputeMatchCostIncreasesWithDistance(t *testing.T) {
	o := NewEntropyOracle()
	near := o.ComputeMatchCost(4, 8)
	far := o.ComputeMatchCost(30000, 8)
	if far < near {
		t.Fatalf("match cost at large distance (%d) should not be cheaper than nearby (%d)", far, near)
	}
}
