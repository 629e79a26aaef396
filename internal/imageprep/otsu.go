// Package imageprep prepares a scanned grayscale ballot page for timing-mark
// detection: Otsu thresholding, black-border detection and cropping, and
// matching/resizing against the candidate paper geometries. Grounded on the
// corpus's only image-binarization example (a 2D-Otsu GoCV transform) for
// algorithm shape, reimplemented over the standard library's image.Gray
// since the interpreter must build as plain Go, not cgo bound to OpenCV.
package imageprep

import "image"

// OtsuThreshold computes the single global Otsu threshold for a grayscale
// image: the gray level that maximizes the between-class variance of the
// image split into a background class and a foreground class.
func OtsuThreshold(img *image.Gray) uint8 {
	var histogram [256]int
	bounds := img.Bounds()
	total := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		rowOffset := img.PixOffset(bounds.Min.X, y)
		row := img.Pix[rowOffset : rowOffset+bounds.Dx()]
		for _, v := range row {
			histogram[v]++
			total++
		}
	}
	if total == 0 {
		return 128
	}

	var sumTotal float64
	for level, count := range histogram {
		sumTotal += float64(level * count)
	}

	var sumBackground float64
	var weightBackground int
	bestThreshold := 0
	bestVariance := -1.0

	for level := 0; level < 256; level++ {
		weightBackground += histogram[level]
		if weightBackground == 0 {
			continue
		}
		weightForeground := total - weightBackground
		if weightForeground == 0 {
			break
		}
		sumBackground += float64(level * histogram[level])

		meanBackground := sumBackground / float64(weightBackground)
		meanForeground := (sumTotal - sumBackground) / float64(weightForeground)
		meanDiff := meanBackground - meanForeground

		betweenClassVariance := float64(weightBackground) * float64(weightForeground) * meanDiff * meanDiff
		if betweenClassVariance > bestVariance {
			bestVariance = betweenClassVariance
			bestThreshold = level
		}
	}

	return uint8(bestThreshold)
}
