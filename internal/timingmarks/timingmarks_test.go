package timingmarks

import (
	"image"
	"image/color"
	"testing"

	"github.com/cacvote/server/internal/ballotcard"
)

// synthesizeGrid paints a white canvas with perimeter timing marks matching
// geom, with the metadata bits set for the given side/cardNumber, so
// FindTimingMarkGrid can be exercised without real scan fixtures.
func synthesizeGrid(t *testing.T, geom ballotcard.Geometry, side PageSide, cardNumber int) *image.Gray {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, geom.CanvasSize.Width, geom.CanvasSize.Height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	area := geom.ContentArea
	markW := geom.TimingMarkSize.Width
	markH := geom.TimingMarkSize.Height
	gridSize := geom.GridSize

	paintRow := func(y int) {
		usableWidth := float64(area.Width) - markW
		for col := 0; col < gridSize.Width; col++ {
			var xFrac float64
			if gridSize.Width > 1 {
				xFrac = float64(col) / float64(gridSize.Width-1)
			}
			cx := float64(area.Left) + markW/2 + xFrac*usableWidth
			paintRect(img, int(cx-markW/2), y, int(markW), int(markH))
		}
	}
	paintCol := func(x int) {
		usableHeight := float64(area.Bottom()-area.Top) - markH
		for row := 0; row < gridSize.Height; row++ {
			var yFrac float64
			if gridSize.Height > 1 {
				yFrac = float64(row) / float64(gridSize.Height-1)
			}
			cy := float64(area.Top) + markH/2 + yFrac*usableHeight
			paintRect(img, x, int(cy-markH/2), int(markW), int(markH))
		}
	}

	topY := area.Top
	bottomY := area.Bottom() - int(markH)
	leftX := area.Left
	rightX := area.Right() - int(markW)

	paintRow(topY)
	paintCol(leftX)
	paintCol(rightX)

	// Bottom row: paint every mark, then erase the ones that should be
	// absent to encode metadata, matching decodeMetadata's bit layout.
	usableWidth := float64(area.Width) - markW
	markPresent := make([]bool, gridSize.Width)
	for i := range markPresent {
		markPresent[i] = true
	}
	if gridSize.Width >= 2 {
		markPresent[gridSize.Width-2] = side == MetadataBack
	}
	for bit := 0; bit < 8; bit++ {
		col := gridSize.Width - 3 - bit
		if col < 0 {
			break
		}
		markPresent[col] = cardNumber&(1<<uint(bit)) != 0
	}
	for col, present := range markPresent {
		if !present {
			continue
		}
		var xFrac float64
		if gridSize.Width > 1 {
			xFrac = float64(col) / float64(gridSize.Width-1)
		}
		cx := float64(area.Left) + markW/2 + xFrac*usableWidth
		paintRect(img, int(cx-markW/2), bottomY, int(markW), int(markH))
	}

	return img
}

func paintRect(img *image.Gray, x, y, w, h int) {
	bounds := img.Bounds()
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			px, py := x+dx, y+dy
			if px < bounds.Min.X || px >= bounds.Max.X || py < bounds.Min.Y || py >= bounds.Max.Y {
				continue
			}
			img.SetGray(px, py, grayBlack)
		}
	}
}

var grayBlack = color.Gray{Y: 0}

func TestFindTimingMarkGridFront(t *testing.T) {
	geom, err := ballotcard.ScannedLetter().ComputeGeometry()
	if err != nil {
		t.Fatalf("ComputeGeometry() error = %v", err)
	}
	img := synthesizeGrid(t, geom, MetadataFront, 3)

	grid, normalized, err := FindTimingMarkGrid("test", geom, img)
	if err != nil {
		t.Fatalf("FindTimingMarkGrid() error = %v", err)
	}
	if normalized != nil {
		t.Errorf("expected no rotation for upright scan")
	}
	if !grid.Metadata.IsFront() {
		t.Errorf("expected Front metadata, got %+v", grid.Metadata)
	}
	if grid.Metadata.CardNumber != 3 {
		t.Errorf("CardNumber = %d, want 3", grid.Metadata.CardNumber)
	}
}

func TestFindTimingMarkGridBack(t *testing.T) {
	geom, err := ballotcard.ScannedLetter().ComputeGeometry()
	if err != nil {
		t.Fatalf("ComputeGeometry() error = %v", err)
	}
	img := synthesizeGrid(t, geom, MetadataBack, 0)

	grid, _, err := FindTimingMarkGrid("test", geom, img)
	if err != nil {
		t.Fatalf("FindTimingMarkGrid() error = %v", err)
	}
	if !grid.Metadata.IsBack() {
		t.Errorf("expected Back metadata, got %+v", grid.Metadata)
	}
}

func TestFindTimingMarkGridMissingMarks(t *testing.T) {
	geom, err := ballotcard.ScannedLetter().ComputeGeometry()
	if err != nil {
		t.Fatalf("ComputeGeometry() error = %v", err)
	}
	img := image.NewGray(image.Rect(0, 0, geom.CanvasSize.Width, geom.CanvasSize.Height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	_, _, err = FindTimingMarkGrid("test", geom, img)
	if err == nil {
		t.Fatalf("expected MissingTimingMarksError for blank page")
	}
	if _, ok := err.(*MissingTimingMarksError); !ok {
		t.Errorf("error = %T, want *MissingTimingMarksError", err)
	}
}

func TestPointForLocationOutOfRange(t *testing.T) {
	geom, err := ballotcard.ScannedLetter().ComputeGeometry()
	if err != nil {
		t.Fatalf("ComputeGeometry() error = %v", err)
	}
	grid := TimingMarkGrid{Geometry: geom}
	if _, ok := grid.PointForLocation(-1, 0); ok {
		t.Errorf("expected PointForLocation to reject negative column")
	}
	if _, ok := grid.PointForLocation(0, geom.GridSize.Height); ok {
		t.Errorf("expected PointForLocation to reject out-of-range row")
	}
}
