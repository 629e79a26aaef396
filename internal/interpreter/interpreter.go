// Package interpreter is the ballot-card orchestrator (C6): it coordinates
// two-sided interpretation of a scanned paper ballot, from raw grayscale
// page images to a fully scored InterpretedBallotCard. Ported directly
// from the original Rust project's interpret.rs (interpret_ballot_card,
// prepare_ballot_card_images, the Error enum and Options struct), with its
// rayon::join parallel-pair idiom translated to a sync.WaitGroup running
// two goroutines per step, since no rayon-equivalent library is present in
// the retrieved corpus.
package interpreter

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/cacvote/server/internal/ballotcard"
	"github.com/cacvote/server/internal/election"
	"github.com/cacvote/server/internal/geometry"
	"github.com/cacvote/server/internal/imageprep"
	"github.com/cacvote/server/internal/layout"
	"github.com/cacvote/server/internal/scoring"
	"github.com/cacvote/server/internal/timingmarks"
)

// Options configures one ballot-card interpretation.
type Options struct {
	Election      election.Election
	BubbleTemplate *image.Gray
	ScoreWriteIns bool
}

const (
	SideALabel = "side A"
	SideBLabel = "side B"
)

// BallotPageAndGeometry pairs a side's label, detected border inset, and
// derived geometry — used to report a MismatchedBallotCardGeometries
// error with enough detail to diagnose it.
type BallotPageAndGeometry struct {
	Label       string
	BorderInset imageprep.Inset
	Geometry    ballotcard.Geometry
}

// Error variants. Each is a distinct exported type implementing error, per
// the tagged-union convention used throughout this repository instead of a
// single error type with a discriminant field.

type BorderInsetNotFoundError struct{ Label string }

func (e *BorderInsetNotFoundError) Error() string {
	return fmt.Sprintf("could not find border inset for %s", e.Label)
}

type UnexpectedDimensionsError struct {
	Label  string
	Width  int
	Height int
}

func (e *UnexpectedDimensionsError) Error() string {
	return fmt.Sprintf("unexpected dimensions for %s: %dx%d", e.Label, e.Width, e.Height)
}

type MismatchedBallotCardGeometriesError struct {
	SideA BallotPageAndGeometry
	SideB BallotPageAndGeometry
}

func (e *MismatchedBallotCardGeometriesError) Error() string {
	return fmt.Sprintf("mismatched ballot card geometries: %s vs %s", e.SideA.Label, e.SideB.Label)
}

type InvalidCardMetadataError struct {
	SideA timingmarks.BallotPageMetadata
	SideB timingmarks.BallotPageMetadata
}

func (e *InvalidCardMetadataError) Error() string {
	return fmt.Sprintf("invalid card metadata: side A: %+v, side B: %+v", e.SideA, e.SideB)
}

type InvalidMetadataError struct {
	Label string
	Err   error
}

func (e *InvalidMetadataError) Error() string {
	return fmt.Sprintf("invalid metadata for %s: %v", e.Label, e.Err)
}
func (e *InvalidMetadataError) Unwrap() error { return e.Err }

type MissingGridLayoutError struct {
	Front timingmarks.BallotPageMetadata
	Back  timingmarks.BallotPageMetadata
}

func (e *MissingGridLayoutError) Error() string {
	return fmt.Sprintf("missing grid layout: front: %+v, back: %+v", e.Front, e.Back)
}

type MissingTimingMarksError struct {
	Rects []geometry.Rect
}

func (e *MissingTimingMarksError) Error() string {
	return fmt.Sprintf("missing timing marks: %d candidate rects", len(e.Rects))
}

type CouldNotComputeLayoutError struct {
	Side ballotcard.BallotSide
}

func (e *CouldNotComputeLayoutError) Error() string {
	return fmt.Sprintf("could not compute layout for %s", e.Side)
}

// BallotStyleIndexOutOfRangeError is returned when a front page's decoded
// card number does not index any ballot style in the election — the
// resolution for the "undefined behavior... should fail loudly" open
// question: we fail loudly with a typed error rather than panicking.
type BallotStyleIndexOutOfRangeError struct {
	CardNumber int
	NumStyles  int
}

func (e *BallotStyleIndexOutOfRangeError) Error() string {
	return fmt.Sprintf("card number %d is out of range for %d ballot styles", e.CardNumber, e.NumStyles)
}

// InterpretedBallotPage is one side's fully scored interpretation.
type InterpretedBallotPage struct {
	Grid            timingmarks.TimingMarkGrid
	Marks           scoring.ScoredBubbleMarks
	WriteIns        scoring.ScoredPositionAreas
	NormalizedImage *image.Gray
	ContestLayouts  []layout.InterpretedContestLayout
}

// InterpretedBallotCard is the final result of interpreting both sides of
// a ballot card.
type InterpretedBallotCard struct {
	Front InterpretedBallotPage
	Back  InterpretedBallotPage
}

type preparedPage struct {
	image  *image.Gray
	inset  imageprep.Inset
	geom   ballotcard.Geometry
	err    error
}

// prepareBallotPageImage crops the scanner border, matches and optionally
// resizes to a candidate paper geometry.
func prepareBallotPageImage(label string, img *image.Gray) preparedPage {
	cropped, _, inset, err := imageprep.CropBorders(img)
	if err != nil {
		return preparedPage{err: &BorderInsetNotFoundError{Label: label}}
	}

	bounds := cropped.Bounds()
	paperInfo, ok := imageprep.MatchPaperInfo(bounds.Dx(), bounds.Dy(), ballotcard.Scanned(), imageprep.Fit)
	if !ok {
		return preparedPage{err: &UnexpectedDimensionsError{Label: label, Width: bounds.Dx(), Height: bounds.Dy()}}
	}

	geom, err := paperInfo.ComputeGeometry()
	if err != nil {
		return preparedPage{err: &UnexpectedDimensionsError{Label: label, Width: bounds.Dx(), Height: bounds.Dy()}}
	}

	resized := imageprep.ResizeToFit(cropped, geom.CanvasSize.Width, geom.CanvasSize.Height)
	return preparedPage{image: resized, inset: inset, geom: geom}
}

// prepareBallotCardImages prepares both sides in parallel and confirms
// their derived geometries agree.
func prepareBallotCardImages(sideAImage, sideBImage *image.Gray) (preparedPage, preparedPage, ballotcard.Geometry, error) {
	var sideA, sideB preparedPage
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sideA = prepareBallotPageImage(SideALabel, sideAImage)
	}()
	go func() {
		defer wg.Done()
		sideB = prepareBallotPageImage(SideBLabel, sideBImage)
	}()
	wg.Wait()

	if sideA.err != nil {
		return preparedPage{}, preparedPage{}, ballotcard.Geometry{}, sideA.err
	}
	if sideB.err != nil {
		return preparedPage{}, preparedPage{}, ballotcard.Geometry{}, sideB.err
	}

	if sideA.geom != sideB.geom {
		return preparedPage{}, preparedPage{}, ballotcard.Geometry{}, &MismatchedBallotCardGeometriesError{
			SideA: BallotPageAndGeometry{Label: SideALabel, BorderInset: sideA.inset, Geometry: sideA.geom},
			SideB: BallotPageAndGeometry{Label: SideBLabel, BorderInset: sideB.inset, Geometry: sideB.geom},
		}
	}

	return sideA, sideB, sideA.geom, nil
}

type gridResult struct {
	grid       timingmarks.TimingMarkGrid
	normalized *image.Gray
	err        error
}

func findGridsInParallel(geom ballotcard.Geometry, sideAImg, sideBImg *image.Gray) (gridResult, gridResult) {
	var a, b gridResult
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		grid, normalized, err := timingmarks.FindTimingMarkGrid(SideALabel, geom, sideAImg)
		a = gridResult{grid: grid, normalized: normalized, err: err}
	}()
	go func() {
		defer wg.Done()
		grid, normalized, err := timingmarks.FindTimingMarkGrid(SideBLabel, geom, sideBImg)
		b = gridResult{grid: grid, normalized: normalized, err: err}
	}()
	wg.Wait()
	return a, b
}

// resolveBallotStyleID derives a ballot style id from a scanned card
// number: if every ballot style in the election is named
// "card-number-{n}", derive the id from the card number directly;
// otherwise treat the card number as an index into BallotStyles.
func resolveBallotStyleID(e election.Election, cardNumber int) (election.BallotStyleId, error) {
	if e.AllBallotStylesUseCardNumberIDs() {
		return election.BallotStyleId(fmt.Sprintf("card-number-%d", cardNumber)), nil
	}
	if cardNumber < 0 || cardNumber >= len(e.BallotStyles) {
		return "", &BallotStyleIndexOutOfRangeError{CardNumber: cardNumber, NumStyles: len(e.BallotStyles)}
	}
	return e.BallotStyles[cardNumber].ID, nil
}

// InterpretBallotCard runs the full nine-step interpretation pipeline
// against two scanned page images in arbitrary physical order, returning
// the logical Front/Back assignment regardless of which image arrived as
// side A or side B (side-order invariance).
func InterpretBallotCard(sideAImage, sideBImage *image.Gray, opts Options) (InterpretedBallotCard, error) {
	sideA, sideB, geom, err := prepareBallotCardImages(sideAImage, sideBImage)
	if err != nil {
		return InterpretedBallotCard{}, err
	}

	sideAGridResult, sideBGridResult := findGridsInParallel(geom, sideA.image, sideB.image)
	if sideAGridResult.err != nil {
		return InterpretedBallotCard{}, wrapMissingTimingMarks(sideAGridResult.err)
	}
	if sideBGridResult.err != nil {
		return InterpretedBallotCard{}, wrapMissingTimingMarks(sideBGridResult.err)
	}

	var frontImage, backImage *image.Gray
	var frontGrid, backGrid timingmarks.TimingMarkGrid

	switch {
	case sideAGridResult.grid.Metadata.IsFront() && sideBGridResult.grid.Metadata.IsBack():
		frontImage, frontGrid = normalizedOr(sideA.image, sideAGridResult.normalized), sideAGridResult.grid
		backImage, backGrid = normalizedOr(sideB.image, sideBGridResult.normalized), sideBGridResult.grid
	case sideAGridResult.grid.Metadata.IsBack() && sideBGridResult.grid.Metadata.IsFront():
		frontImage, frontGrid = normalizedOr(sideB.image, sideBGridResult.normalized), sideBGridResult.grid
		backImage, backGrid = normalizedOr(sideA.image, sideAGridResult.normalized), sideAGridResult.grid
	default:
		return InterpretedBallotCard{}, &InvalidCardMetadataError{
			SideA: sideAGridResult.grid.Metadata,
			SideB: sideBGridResult.grid.Metadata,
		}
	}

	ballotStyleID, err := resolveBallotStyleID(opts.Election, frontGrid.Metadata.CardNumber)
	if err != nil {
		return InterpretedBallotCard{}, err
	}

	gridLayout, ok := opts.Election.GridLayoutForBallotStyle(ballotStyleID)
	if !ok {
		return InterpretedBallotCard{}, &MissingGridLayoutError{Front: frontGrid.Metadata, Back: backGrid.Metadata}
	}

	var frontMarks, backMarks scoring.ScoredBubbleMarks
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		frontMarks = scoring.ScoreBubbleMarksFromGridLayout(frontImage, opts.BubbleTemplate, frontGrid, gridLayout, ballotcard.Front)
	}()
	go func() {
		defer wg.Done()
		backMarks = scoring.ScoreBubbleMarksFromGridLayout(backImage, opts.BubbleTemplate, backGrid, gridLayout, ballotcard.Back)
	}()
	wg.Wait()

	frontLayouts, ok := layout.BuildInterpretedPageLayout(frontGrid, gridLayout, ballotcard.Front)
	if !ok {
		return InterpretedBallotCard{}, &CouldNotComputeLayoutError{Side: ballotcard.Front}
	}
	backLayouts, ok := layout.BuildInterpretedPageLayout(backGrid, gridLayout, ballotcard.Back)
	if !ok {
		return InterpretedBallotCard{}, &CouldNotComputeLayoutError{Side: ballotcard.Back}
	}

	frontWriteIns := scoring.ScoredPositionAreas{}
	backWriteIns := scoring.ScoredPositionAreas{}
	if opts.ScoreWriteIns {
		wg.Add(2)
		go func() {
			defer wg.Done()
			frontWriteIns = scoring.ScoreWriteInAreas(frontImage, frontLayouts)
		}()
		go func() {
			defer wg.Done()
			backWriteIns = scoring.ScoreWriteInAreas(backImage, backLayouts)
		}()
		wg.Wait()
	}

	return InterpretedBallotCard{
		Front: InterpretedBallotPage{
			Grid:            frontGrid,
			Marks:           frontMarks,
			WriteIns:        frontWriteIns,
			NormalizedImage: frontImage,
			ContestLayouts:  frontLayouts,
		},
		Back: InterpretedBallotPage{
			Grid:            backGrid,
			Marks:           backMarks,
			WriteIns:        backWriteIns,
			NormalizedImage: backImage,
			ContestLayouts:  backLayouts,
		},
	}, nil
}

// wrapMissingTimingMarks converts the grid finder's own error type into
// this package's tagged-union Error variant, keeping internal/interpreter
// the single place callers match error kinds against.
func wrapMissingTimingMarks(err error) error {
	var missing *timingmarks.MissingTimingMarksError
	if errors.As(err, &missing) {
		return &MissingTimingMarksError{Rects: missing.Rects}
	}
	return err
}

func normalizedOr(original, normalized *image.Gray) *image.Gray {
	if normalized != nil {
		return normalized
	}
	return original
}
