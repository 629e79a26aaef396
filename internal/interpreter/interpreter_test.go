package interpreter

import (
	"image"
	"image/color"
	"testing"

	"github.com/cacvote/server/internal/ballotcard"
	"github.com/cacvote/server/internal/election"
)

// buildScannedPage synthesizes a full scanned-page image (black scanner
// border + white interior + perimeter timing marks encoding side/card
// number), so the orchestrator can be exercised end to end without real
// scan fixtures.
func buildScannedPage(t *testing.T, geom ballotcard.Geometry, front bool, cardNumber int) *image.Gray {
	t.Helper()
	const border = 20
	outerW := geom.CanvasSize.Width + 2*border
	outerH := geom.CanvasSize.Height + 2*border
	img := image.NewGray(image.Rect(0, 0, outerW, outerH))
	for i := range img.Pix {
		img.Pix[i] = 0
	}
	for y := border; y < border+geom.CanvasSize.Height; y++ {
		for x := border; x < border+geom.CanvasSize.Width; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	area := geom.ContentArea
	markW := geom.TimingMarkSize.Width
	markH := geom.TimingMarkSize.Height
	gridSize := geom.GridSize
	usableWidth := float64(area.Width) - markW
	usableHeight := float64(area.Height) - markH

	paint := func(x, y, w, h int) {
		for dy := 0; dy < h; dy++ {
			for dx := 0; dx < w; dx++ {
				px, py := border+x+dx, border+y+dy
				if px < 0 || px >= outerW || py < 0 || py >= outerH {
					continue
				}
				img.SetGray(px, py, color.Gray{Y: 0})
			}
		}
	}

	topY := area.Top
	bottomY := area.Bottom() - int(markH)
	leftX := area.Left
	rightX := area.Right() - int(markW)

	for col := 0; col < gridSize.Width; col++ {
		var xFrac float64
		if gridSize.Width > 1 {
			xFrac = float64(col) / float64(gridSize.Width-1)
		}
		cx := float64(area.Left) + markW/2 + xFrac*usableWidth
		paint(int(cx-markW/2), topY, int(markW), int(markH))
	}
	for row := 0; row < gridSize.Height; row++ {
		var yFrac float64
		if gridSize.Height > 1 {
			yFrac = float64(row) / float64(gridSize.Height-1)
		}
		cy := float64(area.Top) + markH/2 + yFrac*usableHeight
		paint(leftX, int(cy-markH/2), int(markW), int(markH))
		paint(rightX, int(cy-markH/2), int(markW), int(markH))
	}

	markPresent := make([]bool, gridSize.Width)
	for i := range markPresent {
		markPresent[i] = true
	}
	if gridSize.Width >= 2 {
		markPresent[gridSize.Width-2] = !front
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
		paint(int(cx-markW/2), bottomY, int(markW), int(markH))
	}

	return img
}

func testElection() election.Election {
	var positions []election.GridPosition
	positions = append(positions, election.GridPosition{
		Loc:       election.GridLocation{Side: ballotcard.Front, Column: 20, Row: 10},
		ContestID: "contest-1",
		OptionID:  "option-yes",
	})
	positions = append(positions, election.GridPosition{
		Loc:       election.GridLocation{Side: ballotcard.Back, Column: 20, Row: 10},
		ContestID: "contest-2",
		OptionID:  "option-no",
	})
	return election.Election{
		BallotStyles: []election.BallotStyle{{ID: "card-number-0"}},
		GridLayouts: []election.GridLayout{
			{BallotStyleID: "card-number-0", GridPositions: positions},
		},
	}
}

func TestInterpretBallotCardSideOrderInvariance(t *testing.T) {
	geom, err := ballotcard.ScannedLetter().ComputeGeometry()
	if err != nil {
		t.Fatalf("ComputeGeometry() error = %v", err)
	}
	front := buildScannedPage(t, geom, true, 0)
	back := buildScannedPage(t, geom, false, 0)
	bubbleTemplate := image.NewGray(image.Rect(0, 0, 10, 4))

	opts := Options{Election: testElection(), BubbleTemplate: bubbleTemplate}

	resultAB, err := InterpretBallotCard(front, back, opts)
	if err != nil {
		t.Fatalf("InterpretBallotCard(front, back) error = %v", err)
	}
	resultBA, err := InterpretBallotCard(back, front, opts)
	if err != nil {
		t.Fatalf("InterpretBallotCard(back, front) error = %v", err)
	}

	if !resultAB.Front.Grid.Metadata.IsFront() || !resultBA.Front.Grid.Metadata.IsFront() {
		t.Errorf("expected Front result to carry Front metadata regardless of physical side order")
	}
	if len(resultAB.Front.ContestLayouts) != len(resultBA.Front.ContestLayouts) {
		t.Errorf("contest layout count differs by side order")
	}
}

func TestInterpretBallotCardInvalidCardMetadata(t *testing.T) {
	geom, err := ballotcard.ScannedLetter().ComputeGeometry()
	if err != nil {
		t.Fatalf("ComputeGeometry() error = %v", err)
	}
	frontA := buildScannedPage(t, geom, true, 0)
	frontB := buildScannedPage(t, geom, true, 0)
	bubbleTemplate := image.NewGray(image.Rect(0, 0, 10, 4))
	opts := Options{Election: testElection(), BubbleTemplate: bubbleTemplate}

	_, err = InterpretBallotCard(frontA, frontB, opts)
	if err == nil {
		t.Fatalf("expected InvalidCardMetadataError for two Front pages")
	}
	if _, ok := err.(*InvalidCardMetadataError); !ok {
		t.Errorf("error = %T, want *InvalidCardMetadataError", err)
	}
}

func TestInterpretBallotCardMissingGridLayout(t *testing.T) {
	geom, err := ballotcard.ScannedLetter().ComputeGeometry()
	if err != nil {
		t.Fatalf("ComputeGeometry() error = %v", err)
	}
	front := buildScannedPage(t, geom, true, 5)
	back := buildScannedPage(t, geom, false, 0)
	bubbleTemplate := image.NewGray(image.Rect(0, 0, 10, 4))
	opts := Options{Election: testElection(), BubbleTemplate: bubbleTemplate}

	_, err = InterpretBallotCard(front, back, opts)
	if err == nil {
		t.Fatalf("expected an error for an unregistered ballot style")
	}
}
