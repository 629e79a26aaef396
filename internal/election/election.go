// Package election holds the static election definition: ballot styles and
// the grid layout that maps timing-mark grid positions to contests and
// options. This is authored data (grid layout) consumed by the
// interpreter; producing or editing it is out of scope here.
package election

import (
	"github.com/cacvote/server/internal/ballotcard"
	"github.com/cacvote/server/internal/geometry"
)

// ContestId identifies a contest within an election definition.
type ContestId string

// OptionId identifies an option within a contest.
type OptionId string

// BallotStyleId identifies a ballot style within an election.
type BallotStyleId string

// GridLocation is a single (side, column, row) coordinate in a ballot
// card's timing-mark grid.
type GridLocation struct {
	Side   ballotcard.BallotSide
	Column geometry.GridUnit
	Row    geometry.GridUnit
}

// GridPosition associates one grid location with the contest and option it
// represents — the printed bubble for (ContestID, OptionID) is centered at
// Loc.
type GridPosition struct {
	Loc        GridLocation
	ContestID  ContestId
	OptionID   OptionId
}

// Location returns the grid coordinate of this position.
func (p GridPosition) Location() GridLocation { return p.Loc }

// GridLayout is the full set of grid positions for one ballot style,
// across both sides of the card.
type GridLayout struct {
	BallotStyleID BallotStyleId
	GridPositions []GridPosition
}

// BallotStyle names one printable ballot configuration.
type BallotStyle struct {
	ID BallotStyleId
}

// Election is the static definition an interpreted ballot card is scored
// against: the set of ballot styles it may be printed as, and the grid
// layout for each.
type Election struct {
	BallotStyles []BallotStyle
	GridLayouts  []GridLayout
}

// GridLayoutForBallotStyle returns the layout for the given style, if any.
func (e Election) GridLayoutForBallotStyle(id BallotStyleId) (GridLayout, bool) {
	for _, layout := range e.GridLayouts {
		if layout.BallotStyleID == id {
			return layout, true
		}
	}
	return GridLayout{}, false
}

// AllBallotStylesUseCardNumberIDs reports whether every ballot style in the
// election is named "card-number-{n}" — the signal the orchestrator uses to
// decide whether to resolve ballot style by card-number-derived ID or by
// indexing into BallotStyles directly.
func (e Election) AllBallotStylesUseCardNumberIDs() bool {
	if len(e.BallotStyles) == 0 {
		return false
	}
	for _, style := range e.BallotStyles {
		if !hasCardNumberPrefix(string(style.ID)) {
			return false
		}
	}
	return true
}

const cardNumberPrefix = "card-number-"

func hasCardNumberPrefix(s string) bool {
	return len(s) >= len(cardNumberPrefix) && s[:len(cardNumberPrefix)] == cardNumberPrefix
}
