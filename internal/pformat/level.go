package pformat

// MatchOrder is a single cover pattern: a partition of an M-pixel (or
// 2M-pixel, for double-width levels) window into runs, each run length
// being 1 (literal) or >=2 (match). Ported verbatim from
// original_source/rdopng.cpp's g_match_order4/6/6c/12 tables — these are
// the concrete menus spec.md §3's "MatchOrder" glossary entry refers to.
type MatchOrder struct {
	Runs []int
}

func mo(runs ...int) MatchOrder { return MatchOrder{Runs: runs} }

// MatchOrder4 covers 4-pixel windows.
var MatchOrder4 = []MatchOrder{
	mo(4),
	mo(1, 3),
	mo(3, 1),
	mo(2, 2),
	mo(1, 2, 1),
	mo(2, 1, 1),
	mo(1, 1, 2),
	mo(1, 1, 1, 1),
}

// MatchOrder6 covers 6-pixel windows.
var MatchOrder6 = []MatchOrder{
	mo(6),
	mo(1, 5),
	mo(5, 1),
	mo(3, 3),
	mo(2, 2, 2),
	mo(2, 4),
	mo(4, 2),
	mo(1, 1, 4),
	mo(4, 1, 1),
	mo(1, 2, 3),
	mo(2, 1, 3),
	mo(3, 1, 2),
	mo(3, 2, 1),
	mo(1, 1, 1, 3),
	mo(3, 1, 1, 1),
	mo(1, 2, 1, 2),
	mo(2, 1, 1, 2),
	mo(1, 2, 2, 1),
	mo(2, 2, 1, 1),
	mo(1, 1, 2, 2),
	mo(1, 1, 1, 1, 1, 1),
}

// MatchOrder6C is an alternative 6-pixel menu with denser coverage of
// small match lengths; it holds more patterns than MatchOrder6.
var MatchOrder6C = []MatchOrder{
	mo(6),
	mo(5, 1),
	mo(4, 2),
	mo(3, 3),
	mo(2, 4),
	mo(1, 5),
	mo(4, 1, 1),
	mo(3, 2, 1),
	mo(2, 3, 1),
	mo(1, 4, 1),
	mo(3, 1, 2),
	mo(2, 2, 2),
	mo(1, 3, 2),
	mo(2, 1, 3),
	mo(1, 2, 3),
	mo(1, 1, 4),
	mo(3, 1, 1, 1),
	mo(2, 2, 1, 1),
	mo(1, 3, 1, 1),
	mo(2, 1, 2, 1),
	mo(1, 2, 2, 1),
	mo(1, 1, 3, 1),
	mo(2, 1, 1, 2),
	mo(1, 2, 1, 2),
	mo(1, 1, 2, 2),
	mo(1, 1, 1, 3),
	mo(2, 1, 1, 1, 1),
	mo(1, 2, 1, 1, 1),
	mo(1, 1, 2, 1, 1),
	mo(1, 1, 1, 2, 1),
	mo(1, 1, 1, 1, 2),
	mo(1, 1, 1, 1, 1, 1),
}

// MatchOrder12 covers 12-pixel (double-width) windows.
var MatchOrder12 = []MatchOrder{
	mo(12),
	mo(11, 1),
	mo(1, 11),
	mo(10, 2),
	mo(2, 10),
	mo(9, 3),
	mo(3, 9),
	mo(8, 4),
	mo(4, 8),
	mo(7, 5),
	mo(5, 7),
	mo(6, 3, 3),
	mo(3, 3, 6),
}

// Level is a descriptor controlling the per-scanline parse: how far back to
// look, which filters to try, window width, search distance, and the
// active menu(s). Ported from original_source/rdopng.cpp's rdo_png_level.
type Level struct {
	ScanlinesToCheck int
	FirstFilter      int
	LastFilter       int
	DoubleWidth      bool
	M                int
	SearchDist       int
	Exhaustive       bool
	MenuA            []MatchOrder
	MenuB            []MatchOrder // only set for double-width levels
}

// Levels is the 30-row table selected by -level (spec.md §6).
var Levels = [30]Level{
	{1, 3, 3, false, 4, 16, false, MatchOrder4, nil},
	{1, 3, 3, false, 4, 32, false, MatchOrder4, nil},

	{2, 3, 3, false, 4, 32, false, MatchOrder4, nil},
	{2, 3, 4, false, 4, 32, false, MatchOrder4, nil},

	{2, 3, 4, false, 4, 64, false, MatchOrder4, nil},
	{4, 3, 4, false, 4, 64, false, MatchOrder4, nil},

	{4, 3, 4, false, 4, 128, false, MatchOrder4, nil},
	{4, 3, 4, false, 4, 256, false, MatchOrder4, nil},

	{6, 3, 4, false, 4, 256, false, MatchOrder4, nil},
	{8, 3, 4, false, 4, 256, false, MatchOrder4, nil},

	{1, 3, 3, false, 6, 16, false, MatchOrder6C, nil},
	{1, 3, 4, false, 6, 32, false, MatchOrder6C, nil},

	{2, 3, 4, false, 6, 32, false, MatchOrder6, nil},
	{4, 3, 4, false, 6, 64, false, MatchOrder6C, nil},

	{4, 3, 4, false, 6, 128, false, MatchOrder6C, nil},
	{4, 3, 4, false, 6, 256, false, MatchOrder6C, nil},

	{8, 3, 4, false, 6, 256, false, MatchOrder6C, nil},
	{8, 1, 4, false, 6, 256, false, MatchOrder6C, nil},

	{1, 3, 3, true, 6, 16, false, MatchOrder6, MatchOrder12},
	{1, 3, 4, true, 6, 32, false, MatchOrder6C, MatchOrder12},

	{4, 3, 4, true, 6, 64, false, MatchOrder6, MatchOrder12},
	{4, 3, 4, true, 6, 128, false, MatchOrder6C, MatchOrder12},

	{4, 3, 4, true, 6, 256, false, MatchOrder6C, MatchOrder12},
	{8, 3, 4, true, 6, 256, false, MatchOrder6C, MatchOrder12},

	{4, 1, 4, false, 4, 256, true, MatchOrder4, nil},
	{8, 1, 4, false, 4, 256, true, MatchOrder4, nil},

	{4, 1, 4, false, 6, 256, true, MatchOrder6C, nil},
	{8, 1, 4, false, 6, 256, true, MatchOrder6C, nil},

	{4, 1, 4, false, 6, 256, true, MatchOrder6, nil},
	{8, 1, 4, false, 6, 256, true, MatchOrder6, nil},
}

// MaxDeltaColors bounds the widest single sub-problem run length (the
// widest double-window menu entry, 12).
const MaxDeltaColors = 12
