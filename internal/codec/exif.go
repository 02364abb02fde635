package codec

import (
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// orientation reads the EXIF orientation tag from r. A missing or
// unreadable tag reports 1 (upright); non-JPEG data simply has no tag.
func orientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 1
	}
	return o
}

// transposed reports whether orientation o swaps width and height.
func transposed(o int) bool {
	return o >= 5 && o <= 8
}

// reorient applies the flip/rotation for EXIF orientation values 1-8.
// Unknown values return the image unchanged.
func reorient(img image.Image, o int) image.Image {
	switch o {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Rotate270(imaging.FlipH(img))
	case 6:
		return imaging.Rotate90(img)
	case 7:
		return imaging.Rotate90(imaging.FlipH(img))
	case 8:
		return imaging.Rotate270(img)
	default:
		return img
	}
}
