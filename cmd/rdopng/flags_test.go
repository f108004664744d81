package main

import (
	"testing"

	"github.com/richgel999/rdopng/internal/driver"
)

func TestToDriverParamsDefaultsToFormatP(t *testing.T) {
	f := newFlagSet()
	if err := f.fs.Parse([]string{}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	p := f.toDriverParams()
	if p.Format != driver.FormatP {
		t.Fatalf("Format = %v, want FormatP when neither -qoi nor -lz4i is set", p.Format)
	}
}

func TestToDriverParamsHonorsQOIFlag(t *testing.T) {
	f := newFlagSet()
	if err := f.fs.Parse([]string{"-qoi"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := f.toDriverParams().Format; got != driver.FormatQ {
		t.Fatalf("Format = %v, want FormatQ", got)
	}
}

func TestToDriverParamsHonorsLZ4IFlag(t *testing.T) {
	f := newFlagSet()
	if err := f.fs.Parse([]string{"-lz4i"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := f.toDriverParams().Format; got != driver.FormatL {
		t.Fatalf("Format = %v, want FormatL", got)
	}
}

func TestToDriverParamsSpeedMapping(t *testing.T) {
	cases := map[string]int{"uber": 0, "better": 1, "fastest": 2, "": 1, "garbage": 1}
	for speed, want := range cases {
		f := newFlagSet()
		args := []string{}
		if speed != "" {
			args = []string{"-speed", speed}
		}
		if err := f.fs.Parse(args); err != nil {
			t.Fatalf("Parse(%q) failed: %v", speed, err)
		}
		if got := f.toDriverParams().Speed; got != want {
			t.Fatalf("speed %q => Speed = %d, want %d", speed, got, want)
		}
	}
}

func TestToDriverParamsNoRejectDisablesThresholds(t *testing.T) {
	f := newFlagSet()
	if err := f.fs.Parse([]string{"-no_reject"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	p := f.toDriverParams()
	if p.ColorModel.UseRejectThresholds {
		t.Fatalf("-no_reject should set UseRejectThresholds = false")
	}
}

func TestToDriverParamsChannelWeightsOptInOnlyWhenNonDefault(t *testing.T) {
	f := newFlagSet()
	if err := f.fs.Parse([]string{}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if f.toDriverParams().ColorModel.UseChanWeights {
		t.Fatalf("UseChanWeights should stay false when -wr/-wg/-wb/-wa are all left at 1")
	}

	f2 := newFlagSet()
	if err := f2.fs.Parse([]string{"-wr", "3"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	p2 := f2.toDriverParams()
	if !p2.ColorModel.UseChanWeights {
		t.Fatalf("UseChanWeights should flip true once any weight flag deviates from 1")
	}
	if p2.ColorModel.ChanWeights[0] != 3 {
		t.Fatalf("ChanWeights[0] = %v, want 3", p2.ColorModel.ChanWeights[0])
	}
}

func TestToDriverParamsNormalMapTightensRejectThresholds(t *testing.T) {
	f := newFlagSet()
	if err := f.fs.Parse([]string{"-normal_map"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	p := f.toDriverParams()
	want := [4]uint32{20, 20, 20, 256}
	if p.ColorModel.RejectThresholds != want {
		t.Fatalf("RejectThresholds = %v, want %v for -normal_map", p.ColorModel.RejectThresholds, want)
	}
}

func TestToDriverParamsRlabOverrideRequiresPositiveValue(t *testing.T) {
	f := newFlagSet()
	if err := f.fs.Parse([]string{"-rl", "0.1", "-rlab", "0.2"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	p := f.toDriverParams()
	want := [2]float64{0.1, 0.2}
	if p.ColorModel.RejectThresholdsLab != want {
		t.Fatalf("RejectThresholdsLab = %v, want %v", p.ColorModel.RejectThresholdsLab, want)
	}
}
