// Package geometry computes signature placement rectangles.
package geometry

import "fmt"

// Rect is an axis-aligned rectangle in PDF user space units (points), with
// X and Y locating the lower-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FitRect computes the largest rectangle with the image's aspect ratio that
// fits inside box, centered on the axis it does not fill. Images strictly
// wider than the box span its full width and float to the vertical center;
// everything else, equal aspect ratios included, spans the full height and
// floats to the horizontal center.
func FitRect(imageWidth, imageHeight float64, box Rect) (Rect, error) {
	if imageWidth <= 0 || imageHeight <= 0 {
		return Rect{}, fmt.Errorf("image dimensions must be positive, got %gx%g", imageWidth, imageHeight)
	}
	if box.Width <= 0 || box.Height <= 0 {
		return Rect{}, fmt.Errorf("box dimensions must be positive, got %gx%g", box.Width, box.Height)
	}

	imageAspect := imageWidth / imageHeight
	boxAspect := box.Width / box.Height

	if imageAspect > boxAspect {
		height := box.Width / imageAspect
		return Rect{
			X:      box.X,
			Y:      box.Y + (box.Height-height)/2,
			Width:  box.Width,
			Height: height,
		}, nil
	}

	width := box.Height * imageAspect
	return Rect{
		X:      box.X + (box.Width-width)/2,
		Y:      box.Y,
		Width:  width,
		Height: box.Height,
	}, nil
}
