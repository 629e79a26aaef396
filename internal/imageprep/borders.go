package imageprep

import (
	"errors"
	"image"
)

// Inset describes the black scanner border thickness on each edge of a
// scanned page, in pixels.
type Inset struct {
	Top    int
	Bottom int
	Left   int
	Right  int
}

// ErrBorderInsetNotFound is returned when no dark scanner border can be
// located along any edge of the image — e.g. a constant-white image.
var ErrBorderInsetNotFound = errors.New("border inset not found")

// darkRowFraction is the fraction of pixels in a row/column that must be at
// or below the Otsu threshold for that row/column to count as part of the
// scanner's black border. High on purpose: a real scanner border is solid
// black, while a row of densely packed timing marks just inside it is only
// partially dark and must not be mistaken for more border.
const darkRowFraction = 0.9

// CropBorders computes the Otsu threshold of img, locates the black scanner
// border on each edge, and returns the interior image with that border
// removed. It fails with ErrBorderInsetNotFound if no border can be found on
// every edge (the page is floating inside pure white, or the scan has no
// border at all).
func CropBorders(img *image.Gray) (cropped *image.Gray, threshold uint8, inset Inset, err error) {
	threshold = OtsuThreshold(img)
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	inset.Top = countDarkRows(img, threshold, true)
	inset.Bottom = countDarkRows(img, threshold, false)
	inset.Left = countDarkCols(img, threshold, true)
	inset.Right = countDarkCols(img, threshold, false)

	if inset.Top == 0 && inset.Bottom == 0 && inset.Left == 0 && inset.Right == 0 {
		return nil, threshold, Inset{}, ErrBorderInsetNotFound
	}
	if inset.Top+inset.Bottom >= height || inset.Left+inset.Right >= width {
		return nil, threshold, Inset{}, ErrBorderInsetNotFound
	}

	sub := img.SubImage(image.Rect(
		bounds.Min.X+inset.Left,
		bounds.Min.Y+inset.Top,
		bounds.Max.X-inset.Right,
		bounds.Max.Y-inset.Bottom,
	)).(*image.Gray)

	// Copy out of the sub-image so the result owns its own backing array and
	// later mutation (e.g. 180-degree rotation) can't alias the original.
	out := image.NewGray(image.Rect(0, 0, sub.Bounds().Dx(), sub.Bounds().Dy()))
	for y := 0; y < out.Rect.Dy(); y++ {
		for x := 0; x < out.Rect.Dx(); x++ {
			out.SetGray(x, y, sub.GrayAt(sub.Bounds().Min.X+x, sub.Bounds().Min.Y+y))
		}
	}

	return out, threshold, inset, nil
}

func rowIsDark(img *image.Gray, y int, threshold uint8) bool {
	bounds := img.Bounds()
	dark := 0
	width := bounds.Dx()
	for x := bounds.Min.X; x < bounds.Max.X; x++ {
		if img.GrayAt(x, y).Y <= threshold {
			dark++
		}
	}
	return float64(dark)/float64(width) >= darkRowFraction
}

func colIsDark(img *image.Gray, x int, threshold uint8) bool {
	bounds := img.Bounds()
	dark := 0
	height := bounds.Dy()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		if img.GrayAt(x, y).Y <= threshold {
			dark++
		}
	}
	return float64(dark)/float64(height) >= darkRowFraction
}

// countDarkRows counts consecutive dark rows starting from the top (or
// bottom, if fromTop is false) of the image.
func countDarkRows(img *image.Gray, threshold uint8, fromTop bool) int {
	bounds := img.Bounds()
	count := 0
	if fromTop {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			if !rowIsDark(img, y, threshold) {
				break
			}
			count++
		}
	} else {
		for y := bounds.Max.Y - 1; y >= bounds.Min.Y; y-- {
			if !rowIsDark(img, y, threshold) {
				break
			}
			count++
		}
	}
	return count
}

// countDarkCols counts consecutive dark columns starting from the left (or
// right, if fromLeft is false) of the image.
func countDarkCols(img *image.Gray, threshold uint8, fromLeft bool) int {
	bounds := img.Bounds()
	count := 0
	if fromLeft {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if !colIsDark(img, x, threshold) {
				break
			}
			count++
		}
	} else {
		for x := bounds.Max.X - 1; x >= bounds.Min.X; x-- {
			if !colIsDark(img, x, threshold) {
				break
			}
			count++
		}
	}
	return count
}
