package codec

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Scale resamples img to exactly w x h. One fixed high-quality filter is
// used for all scaling; imaging.Lanczos matches the output of the other
// resize paths in this project.
func Scale(img image.Image, w, h int) image.Image {
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// Crop extracts a w x h window whose top-left corner sits at (x, y) in
// img's coordinate space. The window must lie fully inside the canvas.
func Crop(img image.Image, x, y, w, h int) (image.Image, error) {
	b := img.Bounds()
	if x < 0 || y < 0 || w <= 0 || h <= 0 || x+w > b.Dx() || y+h > b.Dy() {
		return nil, fmt.Errorf("crop window %dx%d at (%d,%d) outside canvas %dx%d", w, h, x, y, b.Dx(), b.Dy())
	}
	r := image.Rect(b.Min.X+x, b.Min.Y+y, b.Min.X+x+w, b.Min.Y+y+h)
	return imaging.Crop(img, r), nil
}
