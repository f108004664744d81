package colormodel

import (
	"sync"
	"testing"

	"github.com/richgel999/rdopng/internal/rdoimage"
)

var (
	testTable     *Table
	testTableOnce sync.Once
)

func sharedTable() *Table {
	testTableOnce.Do(func() { testTable = BuildTable() })
	return testTable
}

func TestComputeSEZeroForIdenticalColors(t *testing.T) {
	table := sharedTable()
	p := DefaultParams()
	c := rdoimage.Pixel{R: 120, G: 80, B: 200, A: 255}
	if se := table.ComputeSE(c, c, 4, p); se != 0 {
		t.Fatalf("ComputeSE(c, c) = %v, want 0", se)
	}
}

func TestComputeSEIncreasesWithDistance(t *testing.T) {
	table := sharedTable()
	p := DefaultParams()
	a := rdoimage.Pixel{R: 100, G: 100, B: 100, A: 255}
	near := rdoimage.Pixel{R: 101, G: 100, B: 100, A: 255}
	far := rdoimage.Pixel{R: 200, G: 100, B: 100, A: 255}
	seNear := table.ComputeSE(a, near, 3, p)
	seFar := table.ComputeSE(a, far, 3, p)
	if seNear >= seFar {
		t.Fatalf("ComputeSE(near)=%v should be < ComputeSE(far)=%v", seNear, seFar)
	}
}

func TestRejectDisabledSentinelNeverRejects(t *testing.T) {
	table := sharedTable()
	p := DefaultParams()
	p.RejectThresholds = [4]uint32{RejectDisabled, RejectDisabled, RejectDisabled, RejectDisabled}
	p.RejectThresholdsLab = [2]float64{RejectDisabled, RejectDisabled}
	orig := rdoimage.Pixel{R: 10, G: 10, B: 10, A: 255}
	trial := rdoimage.Pixel{R: 250, G: 250, B: 250, A: 255}
	if table.Reject(trial, orig, 3, p) {
		t.Fatalf("Reject should never trigger with all-disabled thresholds")
	}
}

func TestRejectLinearModeHonorsPerChannelThreshold(t *testing.T) {
	table := sharedTable()
	p := DefaultParams()
	p.PerceptualError = false
	p.RejectThresholds = [4]uint32{10, RejectDisabled, RejectDisabled, RejectDisabled}
	orig := rdoimage.Pixel{R: 100, G: 10, B: 10, A: 255}
	small := rdoimage.Pixel{R: 105, G: 10, B: 10, A: 255}
	big := rdoimage.Pixel{R: 130, G: 10, B: 10, A: 255}
	if table.Reject(small, orig, 3, p) {
		t.Fatalf("a within-threshold delta should not be rejected")
	}
	if !table.Reject(big, orig, 3, p) {
		t.Fatalf("a beyond-threshold delta should be rejected")
	}
}

func TestTransparentRejectTestBlocksOpacityFlip(t *testing.T) {
	table := sharedTable()
	p := DefaultParams()
	p.TransparentRejectTest = true
	orig := rdoimage.Pixel{R: 0, G: 0, B: 0, A: 0}
	trial := rdoimage.Pixel{R: 0, G: 0, B: 0, A: 1}
	if !table.Reject(trial, orig, 4, p) {
		t.Fatalf("making a fully transparent pixel non-transparent should be rejected")
	}
}

func TestSrgbToOklabNormMonotonicInLuma(t *testing.T) {
	table := sharedTable()
	dark := table.SrgbToOklabNorm(rdoimage.Pixel{R: 10, G: 10, B: 10, A: 255})
	bright := table.SrgbToOklabNorm(rdoimage.Pixel{R: 240, G: 240, B: 240, A: 255})
	if dark.L >= bright.L {
		t.Fatalf("expected dark.L < bright.L, got %v >= %v", dark.L, bright.L)
	}
}
