// Package timingmarks locates the printed fiducial grid on a cropped ballot
// page image and exposes a grid → sub-pixel point mapping the layout and
// scoring packages build on. Grounded on the original Rust project's
// timing_marks module (referenced from interpret.rs as
// find_timing_mark_grid) for the overall shape — detect border marks,
// decode page metadata from the mark pattern, interpolate interior points —
// though the original module's source was not part of the retrieved
// corpus, so the bit-level metadata encoding below is this package's own
// deterministic scheme rather than a port.
package timingmarks

import (
	"fmt"
	"image"

	"github.com/cacvote/server/internal/ballotcard"
	"github.com/cacvote/server/internal/geometry"
	"github.com/cacvote/server/internal/imageprep"
)

// PageSide is which side of the card the detected metadata claims to be.
type PageSide int

const (
	MetadataFront PageSide = iota
	MetadataBack
)

// BallotPageMetadata is the page identity decoded from the bottom row of
// timing marks: which side of the card this page is, and — for the front
// side only — which card (ballot style) number it was printed as.
type BallotPageMetadata struct {
	Side       PageSide
	CardNumber int
}

func (m BallotPageMetadata) IsFront() bool { return m.Side == MetadataFront }
func (m BallotPageMetadata) IsBack() bool  { return m.Side == MetadataBack }

// MissingTimingMarksError reports that a page's detected mark count along
// some edge did not match the expected grid dimensions (on the bottom edge,
// the fixed marks plus the metadata marks read as present).
type MissingTimingMarksError struct {
	Rects []geometry.Rect
}

func (e *MissingTimingMarksError) Error() string {
	return fmt.Sprintf("missing timing marks: found %d candidate rects", len(e.Rects))
}

// TimingMarkGrid is the result of successfully locating a page's fiducial
// grid: the page metadata it decoded, and the geometry used to derive
// sub-pixel coordinates for any (column, row) inside the grid.
type TimingMarkGrid struct {
	Geometry ballotcard.Geometry
	Metadata BallotPageMetadata
}

// PointForLocation returns the sub-pixel point for a (column, row) inside
// the grid, linearly interpolated across the content area between the
// evenly spaced border marks. Returns false if the location is outside
// grid_size.
func (g TimingMarkGrid) PointForLocation(col, row geometry.GridUnit) (geometry.Point[geometry.SubPixelUnit], bool) {
	gridSize := g.Geometry.GridSize
	if col < 0 || row < 0 || col >= gridSize.Width || row >= gridSize.Height {
		return geometry.Point[geometry.SubPixelUnit]{}, false
	}

	area := g.Geometry.ContentArea
	markW := g.Geometry.TimingMarkSize.Width
	markH := g.Geometry.TimingMarkSize.Height

	usableWidth := float64(area.Width) - markW
	usableHeight := float64(area.Bottom()-area.Top) - markH

	var xFrac, yFrac float64
	if gridSize.Width > 1 {
		xFrac = float64(col) / float64(gridSize.Width-1)
	}
	if gridSize.Height > 1 {
		yFrac = float64(row) / float64(gridSize.Height-1)
	}

	x := float64(area.Left) + markW/2 + xFrac*usableWidth
	y := float64(area.Top) + markH/2 + yFrac*usableHeight

	return geometry.NewPoint(x, y), true
}

// darkFraction is the minimum fraction of dark pixels within a mark-sized
// band along the scan line for that band to count as a printed mark.
const darkFraction = 0.5

func rowBandIsDark(img *image.Gray, y0, y1, x, threshold int) bool {
	bounds := img.Bounds()
	if y0 < bounds.Min.Y {
		y0 = bounds.Min.Y
	}
	if y1 > bounds.Max.Y {
		y1 = bounds.Max.Y
	}
	dark, total := 0, 0
	for y := y0; y < y1; y++ {
		if x < bounds.Min.X || x >= bounds.Max.X {
			continue
		}
		total++
		if int(img.GrayAt(x, y).Y) <= threshold {
			dark++
		}
	}
	if total == 0 {
		return false
	}
	return float64(dark)/float64(total) >= darkFraction
}

func colBandIsDark(img *image.Gray, x0, x1, y, threshold int) bool {
	bounds := img.Bounds()
	if x0 < bounds.Min.X {
		x0 = bounds.Min.X
	}
	if x1 > bounds.Max.X {
		x1 = bounds.Max.X
	}
	dark, total := 0, 0
	for x := x0; x < x1; x++ {
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		total++
		if int(img.GrayAt(x, y).Y) <= threshold {
			dark++
		}
	}
	if total == 0 {
		return false
	}
	return float64(dark)/float64(total) >= darkFraction
}

// detectEdgeMarkCount scans one horizontal edge row (at pixel row y, spanning
// markThickness pixels) for evenly spaced dark marks, sampling at the
// column center of each of the expected gridWidth positions using the ideal
// grid spacing. This matches real timing-mark printing: marks sit at fixed,
// known column offsets, so detection is "is this expected slot dark?"
// rather than free-form blob finding.
func detectEdgeMarkCount(img *image.Gray, threshold uint8, area geometry.Rect, markW, markH float64, y int, gridWidth int) (int, []geometry.Rect) {
	present := make([]bool, gridWidth)
	var rects []geometry.Rect
	usableWidth := float64(area.Width) - markW
	for col := 0; col < gridWidth; col++ {
		var xFrac float64
		if gridWidth > 1 {
			xFrac = float64(col) / float64(gridWidth-1)
		}
		cx := float64(area.Left) + markW/2 + xFrac*usableWidth
		x0 := int(cx - markW/2)
		x1 := int(cx + markW/2)
		if rowBandIsDark(img, y, y+int(markH), (x0+x1)/2, int(threshold)) {
			present[col] = true
			rects = append(rects, geometry.NewRect(x0, y, x1-x0, int(markH)))
		}
	}
	n := 0
	for _, p := range present {
		if p {
			n++
		}
	}
	return n, rects
}

func detectEdgeMarkCountVertical(img *image.Gray, threshold uint8, area geometry.Rect, markW, markH float64, x int, gridHeight int) (int, []geometry.Rect) {
	present := make([]bool, gridHeight)
	var rects []geometry.Rect
	usableHeight := float64(area.Bottom()-area.Top) - markH
	for row := 0; row < gridHeight; row++ {
		var yFrac float64
		if gridHeight > 1 {
			yFrac = float64(row) / float64(gridHeight-1)
		}
		cy := float64(area.Top) + markH/2 + yFrac*usableHeight
		y0 := int(cy - markH/2)
		y1 := int(cy + markH/2)
		if colBandIsDark(img, x, x+int(markW), (y0+y1)/2, int(threshold)) {
			present[row] = true
			rects = append(rects, geometry.NewRect(x, y0, int(markW), y1-y0))
		}
	}
	n := 0
	for _, p := range present {
		if p {
			n++
		}
	}
	return n, rects
}

// decodeMetadata reads the bottom-row mark presence pattern into a
// BallotPageMetadata: the second-from-right mark distinguishes Front/Back,
// and the next 8 marks (reading leftward) hold the card number as an
// 8-bit binary value, one bit per mark, present = 1.
func decodeMetadata(img *image.Gray, threshold uint8, area geometry.Rect, markW, markH float64, bottomY int, gridWidth int) BallotPageMetadata {
	usableWidth := float64(area.Width) - markW
	markPresent := func(col int) bool {
		var xFrac float64
		if gridWidth > 1 {
			xFrac = float64(col) / float64(gridWidth-1)
		}
		cx := float64(area.Left) + markW/2 + xFrac*usableWidth
		return rowBandIsDark(img, bottomY, bottomY+int(markH), int(cx), int(threshold))
	}

	side := MetadataFront
	if gridWidth >= 2 && markPresent(gridWidth-2) {
		side = MetadataBack
	}

	cardNumber := 0
	for bit := 0; bit < 8; bit++ {
		col := gridWidth - 3 - bit
		if col < 0 {
			break
		}
		if markPresent(col) {
			cardNumber |= 1 << uint(bit)
		}
	}

	return BallotPageMetadata{Side: side, CardNumber: cardNumber}
}

// rotate180 returns a new image rotated 180 degrees.
func rotate180(img *image.Gray) *image.Gray {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src := img.GrayAt(bounds.Min.X+x, bounds.Min.Y+y)
			out.SetGray(w-1-x, h-1-y, src)
		}
	}
	return out
}

// FindTimingMarkGrid locates the fiducial grid on a cropped page image and
// decodes its metadata. If the marks do not match the expected pattern as
// scanned (as on a page scanned upside down), it rotates the image 180
// degrees and retries once, returning the rotated image as normalizedImage.
func FindTimingMarkGrid(label string, geom ballotcard.Geometry, img *image.Gray) (TimingMarkGrid, *image.Gray, error) {
	grid, ok, rects := tryFindGrid(geom, img)
	if ok {
		return grid, nil, nil
	}

	rotated := rotate180(img)
	grid, ok, rotatedRects := tryFindGrid(geom, rotated)
	if ok {
		return grid, rotated, nil
	}

	allRects := append(rects, rotatedRects...)
	return TimingMarkGrid{}, nil, &MissingTimingMarksError{Rects: allRects}
}

func tryFindGrid(geom ballotcard.Geometry, img *image.Gray) (TimingMarkGrid, bool, []geometry.Rect) {
	threshold := imageprep.OtsuThreshold(img)
	area := geom.ContentArea
	markW := geom.TimingMarkSize.Width
	markH := geom.TimingMarkSize.Height
	gridSize := geom.GridSize

	topY := area.Top
	bottomY := area.Bottom() - int(markH)
	leftX := area.Left
	rightX := area.Right() - int(markW)

	topCount, topRects := detectEdgeMarkCount(img, threshold, area, markW, markH, topY, gridSize.Width)
	bottomCount, bottomRects := detectEdgeMarkCount(img, threshold, area, markW, markH, bottomY, gridSize.Width)
	leftCount, leftRects := detectEdgeMarkCountVertical(img, threshold, area, markW, markH, leftX, gridSize.Height)
	rightCount, rightRects := detectEdgeMarkCountVertical(img, threshold, area, markW, markH, rightX, gridSize.Height)

	// The bottom row carries the metadata bits, so its expected count is the
	// fixed marks plus whichever metadata marks decodeMetadata read as present.
	metadata := decodeMetadata(img, threshold, area, markW, markH, bottomY, gridSize.Width)
	expectedBottom := gridSize.Width
	if gridSize.Width >= 2 && !metadata.IsBack() {
		expectedBottom--
	}
	for bit := 0; bit < 8 && gridSize.Width-3-bit >= 0; bit++ {
		if metadata.CardNumber&(1<<uint(bit)) == 0 {
			expectedBottom--
		}
	}
	if topCount != gridSize.Width || bottomCount != expectedBottom ||
		leftCount != gridSize.Height || rightCount != gridSize.Height {
		var rects []geometry.Rect
		rects = append(rects, topRects...)
		rects = append(rects, bottomRects...)
		rects = append(rects, leftRects...)
		rects = append(rects, rightRects...)
		return TimingMarkGrid{}, false, rects
	}

	return TimingMarkGrid{Geometry: geom, Metadata: metadata}, true, nil
}
