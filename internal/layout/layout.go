// Package layout maps an election's grid positions onto pixel-space
// bounding boxes for a scored, normalized ballot page. Ported directly
// from the original Rust project's layout.rs (build_interpreted_page_layout
// and build_option_layout), translating its itertools::unique first-
// occurrence dedup into an explicit seen-set pass.
package layout

import (
	"github.com/cacvote/server/internal/ballotcard"
	"github.com/cacvote/server/internal/election"
	"github.com/cacvote/server/internal/geometry"
	"github.com/cacvote/server/internal/timingmarks"
)

// Option bounding box parameters, relative to the bubble's grid location.
// Matches layout.rs exactly; not yet configurable per election.
const (
	columnOffset = -9
	rowOffset    = -1
	boxWidth     = 10
	boxHeight    = 2
)

// InterpretedContestOptionLayout is one option's pixel-space bounding box
// within a contest.
type InterpretedContestOptionLayout struct {
	OptionID election.OptionId
	Bounds   geometry.Rect
}

// InterpretedContestLayout is one contest's pixel-space bounding box, and
// its options' bounding boxes, on one side of a ballot card.
type InterpretedContestLayout struct {
	ContestID election.ContestId
	Bounds    geometry.Rect
	Options   []InterpretedContestOptionLayout
}

func clamp(v, lo, hi geometry.GridUnit) geometry.GridUnit {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func buildOptionLayout(grid timingmarks.TimingMarkGrid, pos election.GridPosition) (InterpretedContestOptionLayout, bool) {
	gridSize := grid.Geometry.GridSize
	loc := pos.Location()

	topLeftCol := clamp(loc.Column+columnOffset, 0, gridSize.Width-1)
	topLeftRow := clamp(loc.Row+rowOffset, 0, gridSize.Height-1)
	bottomRightCol := clamp(loc.Column+columnOffset+boxWidth, 0, gridSize.Width-1)
	bottomRightRow := clamp(loc.Row+rowOffset+boxHeight, 0, gridSize.Height-1)

	topLeft, ok := grid.PointForLocation(topLeftCol, topLeftRow)
	if !ok {
		return InterpretedContestOptionLayout{}, false
	}
	bottomRight, ok := grid.PointForLocation(bottomRightCol, bottomRightRow)
	if !ok {
		return InterpretedContestOptionLayout{}, false
	}

	bounds := geometry.RectFromPoints(geometry.RoundPoint(topLeft), geometry.RoundPoint(bottomRight))
	return InterpretedContestOptionLayout{OptionID: pos.OptionID, Bounds: bounds}, true
}

// BuildInterpretedPageLayout builds the contest layouts for one side of a
// ballot card. Returns false if any option's bounding box could not be
// computed (a grid location outside the detected grid).
func BuildInterpretedPageLayout(grid timingmarks.TimingMarkGrid, gridLayout election.GridLayout, side ballotcard.BallotSide) ([]InterpretedContestLayout, bool) {
	var contestIDs []election.ContestId
	seen := make(map[election.ContestId]bool)
	for _, pos := range gridLayout.GridPositions {
		if pos.Location().Side != side {
			continue
		}
		if seen[pos.ContestID] {
			continue
		}
		seen[pos.ContestID] = true
		contestIDs = append(contestIDs, pos.ContestID)
	}

	layouts := make([]InterpretedContestLayout, 0, len(contestIDs))
	for _, contestID := range contestIDs {
		var options []InterpretedContestOptionLayout
		for _, pos := range gridLayout.GridPositions {
			if pos.Location().Side != side || pos.ContestID != contestID {
				continue
			}
			option, ok := buildOptionLayout(grid, pos)
			if !ok {
				return nil, false
			}
			options = append(options, option)
		}
		if len(options) == 0 {
			continue
		}

		bounds := options[0].Bounds
		for _, opt := range options[1:] {
			bounds = bounds.Union(opt.Bounds)
		}

		layouts = append(layouts, InterpretedContestLayout{
			ContestID: contestID,
			Bounds:    bounds,
			Options:   options,
		})
	}

	return layouts, true
}
