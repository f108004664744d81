package main

import (
	"flag"
	"image"
	"math"

	"github.com/richgel999/rdopng/internal/colormodel"
	"github.com/richgel999/rdopng/internal/driver"
	"github.com/richgel999/rdopng/internal/rdoimage"
)

// flagSet wraps the standard flag.FlagSet with every knob spec.md §6
// documents, translated into driver.Params by toDriverParams.
type flagSet struct {
	fs *flag.FlagSet

	qoi  bool
	lz4i bool

	unpack         bool
	unpackQOIToPNG bool

	output string

	lambda  float64
	level   int
	twoPass bool
	linear  bool

	normalMap bool
	snorm     bool
	normalize bool

	noReject bool
	rl       float64
	rlab     float64
	rr, rg, rb, ra int

	wr, wg, wb, wa int
	wlabL, wlabA, wlabB, wlabAlpha float64

	speed string // "uber" | "better" | "fastest"

	noMSEScaling           bool
	maxSmoothStdDev        float64
	smoothMaxMSEScale      float64
	maxUltraSmoothStdDev   float64
	ultraSmoothMaxMSEScale float64

	rt             bool
	noAlphaOpacity bool
	matchOnly      bool
	debug          bool
	quiet          bool
	noProgress     bool
	noCache        bool
}

func newFlagSet() *flagSet {
	f := &flagSet{fs: flag.NewFlagSet("rdopng", flag.ContinueOnError)}

	f.fs.BoolVar(&f.qoi, "qoi", false, "encode to format Q (QOI-style opcode stream)")
	f.fs.BoolVar(&f.lz4i, "lz4i", false, "encode to format L (LZ77-backed byte stream)")
	f.fs.BoolVar(&f.unpack, "unpack", false, "decode a format-L file to PNG")
	f.fs.BoolVar(&f.unpackQOIToPNG, "unpack_qoi_to_png", false, "after a format-Q encode, also write the decoded image as a PNG")
	f.fs.StringVar(&f.output, "output", "", "output file path")

	f.fs.Float64Var(&f.lambda, "lambda", 300, "RDO weight, in [0, 250000]")
	f.fs.IntVar(&f.level, "level", 16, "format-P level row, in [0, 29]")
	f.fs.BoolVar(&f.twoPass, "two_pass", false, "enable pass-1/freeze-table/pass-2 flow for format P")
	f.fs.BoolVar(&f.linear, "linear", false, "use linear-RGB MSE instead of perceptual OkLab error")

	f.fs.BoolVar(&f.normalMap, "normal_map", false, "switch the error function to angular (normal maps)")
	f.fs.BoolVar(&f.snorm, "snorm", false, "decode normal maps as snorm8 instead of unorm8")
	f.fs.BoolVar(&f.normalize, "normalize", false, "re-project every source pixel to its closest encodable unit vector first")

	f.fs.BoolVar(&f.noReject, "no_reject", false, "disable all reject thresholds")
	f.fs.Float64Var(&f.rl, "rl", 0, "OkLab L reject threshold")
	f.fs.Float64Var(&f.rlab, "rlab", 0, "OkLab combined a/b reject threshold")
	f.fs.IntVar(&f.rr, "rr", 256, "R channel reject threshold")
	f.fs.IntVar(&f.rg, "rg", 256, "G channel reject threshold")
	f.fs.IntVar(&f.rb, "rb", 256, "B channel reject threshold")
	f.fs.IntVar(&f.ra, "ra", 256, "A channel reject threshold")

	f.fs.IntVar(&f.wr, "wr", 1, "R channel weight")
	f.fs.IntVar(&f.wg, "wg", 1, "G channel weight")
	f.fs.IntVar(&f.wb, "wb", 1, "B channel weight")
	f.fs.IntVar(&f.wa, "wa", 1, "A channel weight")
	f.fs.Float64Var(&f.wlabL, "wlabL", 2, "OkLab L weight component")
	f.fs.Float64Var(&f.wlabA, "wlabA", 1.5, "OkLab a weight component")
	f.fs.Float64Var(&f.wlabB, "wlabB", 1, "OkLab b weight component")
	f.fs.Float64Var(&f.wlabAlpha, "wlabAlpha", 1, "OkLab-mode alpha weight component")

	f.fs.StringVar(&f.speed, "speed", "better", "speed mode for formats Q and L: uber|better|fastest")

	f.fs.BoolVar(&f.noMSEScaling, "no_mse_scaling", false, "disable the masking map (flat scale of 1 everywhere)")
	f.fs.Float64Var(&f.maxSmoothStdDev, "max_smooth_std_dev", 0, "masking-map smooth-window stddev ceiling")
	f.fs.Float64Var(&f.smoothMaxMSEScale, "smooth_max_mse_scale", 0, "masking-map smooth-window MSE scale ceiling")
	f.fs.Float64Var(&f.maxUltraSmoothStdDev, "max_ultra_smooth_std_dev", 0, "masking-map ultra-smooth-window stddev ceiling")
	f.fs.Float64Var(&f.ultraSmoothMaxMSEScale, "ultra_smooth_max_mse_scale", 0, "masking-map ultra-smooth-window MSE scale ceiling")

	f.fs.BoolVar(&f.rt, "rt", false, "enable strict alpha-opacity reject (orig.a in {0,255} => coded.a = orig.a)")
	f.fs.BoolVar(&f.noAlphaOpacity, "no_alpha_opacity", false, "disable the alpha-is-opacity masking boost")
	f.fs.BoolVar(&f.matchOnly, "match_only", false, "format-P: disable lossy literal substitution, matches only")
	f.fs.BoolVar(&f.debug, "debug", false, "print extra diagnostics")
	f.fs.BoolVar(&f.quiet, "quiet", false, "suppress all non-error console output")
	f.fs.BoolVar(&f.noProgress, "no_progress", false, "suppress progress output")
	f.fs.BoolVar(&f.noCache, "no_cache", false, "never write the OkLab table cache file")

	return f
}

func (f *flagSet) toDriverParams() driver.Params {
	p := driver.DefaultParams()

	switch {
	case f.qoi:
		p.Format = driver.FormatQ
	case f.lz4i:
		p.Format = driver.FormatL
	default:
		p.Format = driver.FormatP
	}

	p.Lambda = f.lambda
	p.Level = f.level
	p.TwoPass = f.twoPass
	p.MatchOnly = f.matchOnly
	p.Quiet = f.quiet
	p.Debug = f.debug
	p.NormalMap = f.normalMap
	p.Snorm = f.snorm
	p.Normalize = f.normalize

	switch f.speed {
	case "uber":
		p.Speed = 0
	case "fastest":
		p.Speed = 2
	default:
		p.Speed = 1
	}

	cm := colormodel.DefaultParams()
	cm.PerceptualError = !f.linear
	cm.AlphaIsOpacity = !f.noAlphaOpacity
	cm.TransparentRejectTest = f.rt
	cm.RejectThresholds = [4]uint32{uint32(f.rr), uint32(f.rg), uint32(f.rb), uint32(f.ra)}
	if f.normalMap {
		cm.RejectThresholds = [4]uint32{20, 20, 20, 256}
	}
	if f.rlab > 0 {
		cm.RejectThresholdsLab = [2]float64{f.rl, f.rlab}
	}
	if f.noReject {
		cm.UseRejectThresholds = false
	}
	if f.wr != 1 || f.wg != 1 || f.wb != 1 || f.wa != 1 {
		cm.UseChanWeights = true
		cm.ChanWeights = [4]float64{float64(f.wr), float64(f.wg), float64(f.wb), float64(f.wa)}
	}
	// Only override the default's already-unit-length OkLab weights when the
	// user actually passed one of -wlabL/-wlabA/-wlabB/-wlabAlpha; otherwise
	// every invocation would re-apply the un-normalized flag defaults and
	// silently scale the perceptual distance ~2.69x, mirroring how wr/wg/wb/wa
	// above are gated on differing from their own defaults.
	if f.wlabL != 2 || f.wlabA != 1.5 || f.wlabB != 1 || f.wlabAlpha != 1 {
		l := math.Sqrt(f.wlabL*f.wlabL + f.wlabA*f.wlabA + f.wlabB*f.wlabB)
		cm.ChanWeightsLab = [4]float64{f.wlabL / l, f.wlabA / l, f.wlabB / l, f.wlabAlpha}
	}
	p.ColorModel = cm

	p.NoMSEScaling = f.noMSEScaling
	p.MaxSmoothStdDev = f.maxSmoothStdDev
	p.SmoothMaxMSEScale = f.smoothMaxMSEScale
	p.MaxUltraSmoothStdDev = f.maxUltraSmoothStdDev
	p.UltraSmoothMaxMSEScale = f.ultraSmoothMaxMSEScale

	return p
}

func goImageToRDO(src image.Image) *rdoimage.Image {
	return rdoimage.FromGoImage(src)
}
