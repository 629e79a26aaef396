// Package scoring scores bubble marks and write-in areas on a normalized
// ballot page image against a template, producing the deterministic
// fixed-range match scores the orchestrator attaches to each option.
// Grounded on the original Rust project's scoring module (referenced from
// interpret.rs as score_bubble_marks_from_grid_layout and
// score_write_in_areas); that module's source was not part of the
// retrieved corpus, so the match-score formula (normalized mean absolute
// pixel difference against the template) is this package's own
// deterministic scheme.
package scoring

import (
	"image"

	"github.com/cacvote/server/internal/ballotcard"
	"github.com/cacvote/server/internal/election"
	"github.com/cacvote/server/internal/geometry"
	"github.com/cacvote/server/internal/layout"
	"github.com/cacvote/server/internal/timingmarks"
)

// ContestOption keys a scored mark or write-in area to the contest and
// option it belongs to.
type ContestOption struct {
	ContestID election.ContestId
	OptionID  election.OptionId
}

// ScoredBubbleMarks maps each grid position on a side to its bubble match
// score in [0, 1], where 1 is a perfect match against the template (a
// fully filled-in bubble).
type ScoredBubbleMarks map[ContestOption]float64

// ScoredPositionAreas maps each grid position on a side to its write-in
// area's fill score in [0, 1].
type ScoredPositionAreas map[ContestOption]float64

// bubbleHalfWidth/Height are the pixel half-extents of the region sampled
// around a bubble's center along an axis where half the template's size
// rounds to zero; otherwise half the template's size is used.
const (
	bubbleHalfWidth  = 5
	bubbleHalfHeight = 1
)

// ScoreBubbleMarksFromGridLayout scores every option on the given side of a
// normalized page image against the bubble template.
func ScoreBubbleMarksFromGridLayout(img *image.Gray, bubbleTemplate *image.Gray, grid timingmarks.TimingMarkGrid, gridLayout election.GridLayout, side ballotcard.BallotSide) ScoredBubbleMarks {
	marks := make(ScoredBubbleMarks)
	for _, pos := range gridLayout.GridPositions {
		if pos.Location().Side != side {
			continue
		}
		score, ok := scoreBubbleAt(img, bubbleTemplate, grid, pos)
		if !ok {
			continue
		}
		marks[ContestOption{ContestID: pos.ContestID, OptionID: pos.OptionID}] = score
	}
	return marks
}

func scoreBubbleAt(img, template *image.Gray, grid timingmarks.TimingMarkGrid, pos election.GridPosition) (float64, bool) {
	loc := pos.Location()
	gridSize := grid.Geometry.GridSize
	col := clampGrid(loc.Column, 0, gridSize.Width-1)
	row := clampGrid(loc.Row, 0, gridSize.Height-1)

	center, ok := grid.PointForLocation(col, row)
	if !ok {
		return 0, false
	}

	cx := int(center.X)
	cy := int(center.Y)
	tb := template.Bounds()
	halfW, halfH := tb.Dx()/2, tb.Dy()/2
	if halfW == 0 {
		halfW = bubbleHalfWidth
	}
	if halfH == 0 {
		halfH = bubbleHalfHeight
	}

	return matchTemplate(img, template, cx-halfW, cy-halfH), true
}

func clampGrid(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// matchTemplate computes a deterministic similarity score between the
// template and the region of img starting at (x0, y0) of the same
// dimensions as the template: 1 minus the mean absolute pixel difference,
// normalized to [0, 1]. Out-of-bounds template pixels are skipped.
func matchTemplate(img, template *image.Gray, x0, y0 int) float64 {
	tb := template.Bounds()
	ib := img.Bounds()

	var sumDiff float64
	count := 0
	for ty := tb.Min.Y; ty < tb.Max.Y; ty++ {
		for tx := tb.Min.X; tx < tb.Max.X; tx++ {
			ix := x0 + (tx - tb.Min.X)
			iy := y0 + (ty - tb.Min.Y)
			if ix < ib.Min.X || ix >= ib.Max.X || iy < ib.Min.Y || iy >= ib.Max.Y {
				continue
			}
			diff := int(template.GrayAt(tx, ty).Y) - int(img.GrayAt(ix, iy).Y)
			if diff < 0 {
				diff = -diff
			}
			sumDiff += float64(diff)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	meanDiff := sumDiff / float64(count)
	return 1 - meanDiff/255
}

// ScoreWriteInAreas scores the bounding box of each option in the given
// contest layouts on a side, when write-in scoring is enabled. Callers skip
// this call entirely (passing an empty ScoredPositionAreas) when
// score_write_ins is false, per spec.
func ScoreWriteInAreas(img *image.Gray, contestLayouts []layout.InterpretedContestLayout) ScoredPositionAreas {
	areas := make(ScoredPositionAreas)
	for _, contest := range contestLayouts {
		for _, opt := range contest.Options {
			areas[ContestOption{ContestID: contest.ContestID, OptionID: opt.OptionID}] = writeInFillScore(img, opt.Bounds)
		}
	}
	return areas
}

// writeInFillScore is the fraction of dark pixels in the option's bounding
// box, a proxy for handwritten fill density.
func writeInFillScore(img *image.Gray, bounds geometry.Rect) float64 {
	ib := img.Bounds()
	threshold := 128
	dark, total := 0, 0
	for y := bounds.Top; y < bounds.Bottom(); y++ {
		for x := bounds.Left; x < bounds.Right(); x++ {
			if x < ib.Min.X || x >= ib.Max.X || y < ib.Min.Y || y >= ib.Max.Y {
				continue
			}
			total++
			if int(img.GrayAt(x, y).Y) <= threshold {
				dark++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(dark) / float64(total)
}
