package imageprep

import (
	"image"
	"image/color"
	"math"

	"github.com/cacvote/server/internal/ballotcard"
)

// ResizeStrategy controls how a cropped page's dimensions are matched
// against a candidate PaperInfo's expected canvas size.
type ResizeStrategy string

const (
	// Fit compares aspect ratios and allows a subsequent resize.
	Fit ResizeStrategy = "fit"
	// NoResize compares absolute dimensions; the caller must not resize.
	NoResize ResizeStrategy = "no-resize"
)

// maxMatchError is the error value above which no candidate PaperInfo is
// considered an acceptable match.
const maxMatchError = 0.05

// computeError scores how well actualDimensions matches expectedDimensions
// under the given strategy. Lower is better. Mirrors the original Rust
// ResizeStrategy::compute_error exactly.
func computeError(strategy ResizeStrategy, expectedWidth, expectedHeight, actualWidth, actualHeight int) float64 {
	switch strategy {
	case Fit:
		expectedAspect := float64(expectedWidth) / float64(expectedHeight)
		actualAspect := float64(actualWidth) / float64(actualHeight)
		return math.Abs(expectedAspect - actualAspect)
	case NoResize:
		widthError := math.Abs(float64(expectedWidth)-float64(actualWidth)) / float64(expectedWidth)
		heightError := math.Abs(float64(expectedHeight)-float64(actualHeight)) / float64(expectedHeight)
		return widthError + heightError
	default:
		return math.Inf(1)
	}
}

// MatchPaperInfo selects the PaperInfo among candidates whose derived canvas
// size best matches the given pixel dimensions, under strategy. Returns
// false if no candidate is within the acceptance threshold.
func MatchPaperInfo(width, height int, candidates []ballotcard.PaperInfo, strategy ResizeStrategy) (ballotcard.PaperInfo, bool) {
	var best ballotcard.PaperInfo
	bestErr := math.Inf(1)
	found := false

	for _, candidate := range candidates {
		geom, err := candidate.ComputeGeometry()
		if err != nil {
			continue
		}
		e := computeError(strategy, geom.CanvasSize.Width, geom.CanvasSize.Height, width, height)
		if e < bestErr {
			bestErr = e
			best = candidate
			found = true
		}
	}

	if !found || bestErr > maxMatchError {
		return ballotcard.PaperInfo{}, false
	}
	return best, true
}

// ResizeToFit scales img to canvasWidth x canvasHeight if its dimensions
// differ using bilinear interpolation. If the dimensions already match, img
// is returned unchanged. There is no pure-Go image-resize library in the
// retrieved corpus (the only image library available, gocv, is a cgo
// binding to a native OpenCV install and unusable here), so this is a
// deliberately small hand-rolled bilinear sampler rather than stdlib
// "image" offering one itself.
func ResizeToFit(img *image.Gray, canvasWidth, canvasHeight int) *image.Gray {
	bounds := img.Bounds()
	srcWidth, srcHeight := bounds.Dx(), bounds.Dy()
	if srcWidth == canvasWidth && srcHeight == canvasHeight {
		return img
	}

	dst := image.NewGray(image.Rect(0, 0, canvasWidth, canvasHeight))
	xRatio := float64(srcWidth) / float64(canvasWidth)
	yRatio := float64(srcHeight) / float64(canvasHeight)

	for dy := 0; dy < canvasHeight; dy++ {
		srcY := (float64(dy) + 0.5) * yRatio
		y0 := int(math.Floor(srcY - 0.5))
		y1 := y0 + 1
		wy := srcY - 0.5 - float64(y0)
		y0 = clampInt(y0, 0, srcHeight-1)
		y1 = clampInt(y1, 0, srcHeight-1)

		for dx := 0; dx < canvasWidth; dx++ {
			srcX := (float64(dx) + 0.5) * xRatio
			x0 := int(math.Floor(srcX - 0.5))
			x1 := x0 + 1
			wx := srcX - 0.5 - float64(x0)
			x0 = clampInt(x0, 0, srcWidth-1)
			x1 = clampInt(x1, 0, srcWidth-1)

			top := lerp(
				float64(img.GrayAt(bounds.Min.X+x0, bounds.Min.Y+y0).Y),
				float64(img.GrayAt(bounds.Min.X+x1, bounds.Min.Y+y0).Y),
				wx,
			)
			bottom := lerp(
				float64(img.GrayAt(bounds.Min.X+x0, bounds.Min.Y+y1).Y),
				float64(img.GrayAt(bounds.Min.X+x1, bounds.Min.Y+y1).Y),
				wx,
			)
			dst.SetGray(dx, dy, grayValue(lerp(top, bottom, wy)))
		}
	}

	return dst
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func grayValue(v float64) color.Gray {
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return color.Gray{Y: uint8(math.Round(v))}
}
