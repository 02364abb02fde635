package codec

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
)

// DefaultQuality is the JPEG quality used when the caller supplies none.
const DefaultQuality = 75

// Encode writes img to w in the given format. Quality (0-100) is honored
// by the JPEG encoder; PNG and GIF are lossless/palette formats and
// ignore it. Out-of-range quality falls back to DefaultQuality.
func Encode(w io.Writer, img image.Image, f Format, quality int) error {
	if img == nil {
		return errors.New("nil image")
	}
	if w == nil {
		return errors.New("nil writer")
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	switch f {
	case JPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case PNG:
		return png.Encode(w, img)
	case GIF:
		return gif.Encode(w, img, nil)
	default:
		return fmt.Errorf("no encoder for format %s", f)
	}
}
