package packagemerge

import "testing"

func TestMergeProducesNonIncreasingLengthForHigherFrequency(t *testing.T) {
	hist := []uint64{1, 1, 1, 100}
	lens := Merge(15, hist)
	if len(lens) != len(hist) {
		t.Fatalf("len(lens) = %d, want %d", len(lens), len(hist))
	}
	if lens[3] > lens[0] {
		t.Fatalf("most frequent symbol got longer code: lens[3]=%d lens[0]=%d", lens[3], lens[0])
	}
}

func TestMergeRespectsMaxLength(t *testing.T) {
	hist := make([]uint64, 32)
	for i := range hist {
		hist[i] = 1
	}
	lens := Merge(4, hist)
	for i, l := range lens {
		if l > 4 {
			t.Fatalf("lens[%d] = %d, exceeds max length 4", i, l)
		}
	}
}

func TestMergeZeroEntriesGetZeroLength(t *testing.T) {
	lens := Merge(15, []uint64{5, 0, 3, 0})
	if lens[1] != 0 || lens[3] != 0 {
		t.Fatalf("zero-frequency symbols should get code length 0, got %v", lens)
	}
	if lens[0] == 0 || lens[2] == 0 {
		t.Fatalf("nonzero-frequency symbols should get a nonzero code length, got %v", lens)
	}
}

func TestMergeAllZeroHistogram(t *testing.T) {
	lens := Merge(15, []uint64{0, 0, 0})
	for i, l := range lens {
		if l != 0 {
			t.Fatalf("lens[%d] = %d, want 0 for an all-zero histogram", i, l)
		}
	}
}
