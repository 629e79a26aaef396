// Package ballotcard holds the paper-geometry data model shared by the
// timing-mark grid finder, the layout builder, and the orchestrator:
// paper sizes, sides, orientation, and the derivation of pixel geometry
// from physical paper dimensions. Ported from the original Rust
// implementation's ballot_card.rs, which this package mirrors field for
// field.
package ballotcard

import (
	"fmt"
	"math"

	"github.com/cacvote/server/internal/geometry"
)

// BallotPaperSize enumerates the supported physical paper sizes.
type BallotPaperSize string

const (
	Letter BallotPaperSize = "letter"
	Legal  BallotPaperSize = "legal"
)

// Orientation describes whether a scanned page is right-side up.
type Orientation string

const (
	Portrait         Orientation = "portrait"
	PortraitReversed Orientation = "portrait-reversed"
)

// BallotSide is which side of the card a page represents.
type BallotSide string

const (
	Front BallotSide = "front"
	Back  BallotSide = "back"
)

// Other returns the opposite side.
func (s BallotSide) Other() BallotSide {
	if s == Front {
		return Back
	}
	return Front
}

// Expected pixels-per-inch for scanned ballot images and for the templates
// used to author election layouts.
const (
	scanPixelsPerInch     geometry.PixelUnit = 200
	templatePixelsPerInch geometry.PixelUnit = 72
)

var (
	scanMargins     = geometry.Size[geometry.Inch]{Width: 0, Height: 0}
	templateMargins = geometry.Size[geometry.Inch]{Width: 0.5, Height: 0.5}
)

// Geometry is the fully-derived pixel-space layout of a ballot page for a
// given paper size and scan resolution.
type Geometry struct {
	BallotPaperSize BallotPaperSize
	PixelsPerInch   geometry.PixelUnit
	CanvasSize      geometry.Size[geometry.PixelUnit]
	ContentArea     geometry.Rect
	TimingMarkSize  geometry.Size[geometry.SubPixelUnit]
	GridSize        geometry.Size[geometry.GridUnit]
}

// PaperInfo is the input to Geometry derivation: a paper size, its margins,
// and a scan resolution.
type PaperInfo struct {
	Size          BallotPaperSize
	Margins       geometry.Size[geometry.Inch]
	PixelsPerInch geometry.PixelUnit
}

// ScannedLetter is the PaperInfo preset for a letter-sized scanned image.
func ScannedLetter() PaperInfo {
	return PaperInfo{Size: Letter, Margins: scanMargins, PixelsPerInch: scanPixelsPerInch}
}

// ScannedLegal is the PaperInfo preset for a legal-sized scanned image.
func ScannedLegal() PaperInfo {
	return PaperInfo{Size: Legal, Margins: scanMargins, PixelsPerInch: scanPixelsPerInch}
}

// TemplateLetter is the PaperInfo preset for a letter-sized layout template.
func TemplateLetter() PaperInfo {
	return PaperInfo{Size: Letter, Margins: templateMargins, PixelsPerInch: templatePixelsPerInch}
}

// TemplateLegal is the PaperInfo preset for a legal-sized layout template.
func TemplateLegal() PaperInfo {
	return PaperInfo{Size: Legal, Margins: templateMargins, PixelsPerInch: templatePixelsPerInch}
}

// Scanned returns every supported scanned paper size.
func Scanned() []PaperInfo {
	return []PaperInfo{ScannedLetter(), ScannedLegal()}
}

// Template returns every supported template paper size.
func Template() []PaperInfo {
	return []PaperInfo{TemplateLetter(), TemplateLegal()}
}

// paperDimensionsInches returns (width, height) in inches for a paper size.
func paperDimensionsInches(size BallotPaperSize) (geometry.Inch, geometry.Inch, error) {
	switch size {
	case Letter:
		return 8.5, 11.0, nil
	case Legal:
		return 8.5, 14.0, nil
	default:
		return 0, 0, fmt.Errorf("unknown ballot paper size %q", size)
	}
}

// gridSizeFor returns the timing-mark grid dimensions for a paper size.
func gridSizeFor(size BallotPaperSize) (geometry.Size[geometry.GridUnit], error) {
	switch size {
	case Letter:
		return geometry.Size[geometry.GridUnit]{Width: 34, Height: 41}, nil
	case Legal:
		return geometry.Size[geometry.GridUnit]{Width: 34, Height: 53}, nil
	default:
		return geometry.Size[geometry.GridUnit]{}, fmt.Errorf("unknown ballot paper size %q", size)
	}
}

// ComputeGeometry is a pure function deriving pixel-space Geometry from
// paper info. Equal inputs always give equal outputs.
func (p PaperInfo) ComputeGeometry() (Geometry, error) {
	width, height, err := paperDimensionsInches(p.Size)
	if err != nil {
		return Geometry{}, err
	}
	gridSize, err := gridSizeFor(p.Size)
	if err != nil {
		return Geometry{}, err
	}

	ppi := float64(p.PixelsPerInch)
	canvasWidth := int(math.Round(ppi * (width + 2*p.Margins.Width)))
	canvasHeight := int(math.Round(ppi * (height + 2*p.Margins.Height)))
	marginWidthPx := int(math.Round(ppi * p.Margins.Width))
	marginHeightPx := int(math.Round(ppi * p.Margins.Height))

	return Geometry{
		BallotPaperSize: p.Size,
		PixelsPerInch:   p.PixelsPerInch,
		CanvasSize: geometry.Size[geometry.PixelUnit]{
			Width:  canvasWidth,
			Height: canvasHeight,
		},
		ContentArea: geometry.NewRect(
			marginWidthPx,
			marginHeightPx,
			canvasWidth-2*marginWidthPx,
			canvasHeight-2*marginHeightPx,
		),
		TimingMarkSize: geometry.Size[geometry.SubPixelUnit]{
			Width:  (3.0 / 16.0) * ppi,
			Height: (1.0 / 16.0) * ppi,
		},
		GridSize: gridSize,
	}, nil
}
