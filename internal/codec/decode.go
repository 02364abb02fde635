package codec

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
)

// Probe reads the header of the image at path and returns its pixel
// dimensions and format without decoding pixel data. For JPEG sources the
// EXIF orientation is consulted and the reported width/height are swapped
// for the four transposed orientations, so the dimensions match what
// Decode will later produce.
func Probe(path string) (int, int, Format, error) {
	f := FromPath(path)
	if f == Unknown {
		return 0, 0, Unknown, fmt.Errorf("unrecognized image extension in %q", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return 0, 0, f, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var cfg image.Config
	switch f {
	case JPEG:
		cfg, err = jpeg.DecodeConfig(file)
	case PNG:
		cfg, err = png.DecodeConfig(file)
	case GIF:
		cfg, err = gif.DecodeConfig(file)
	default:
		return 0, 0, f, fmt.Errorf("no decoder for format %s", f)
	}
	if err != nil {
		return 0, 0, f, fmt.Errorf("read header of %s: %w", path, err)
	}

	w, h := cfg.Width, cfg.Height
	if f == JPEG {
		if _, err := file.Seek(0, io.SeekStart); err == nil {
			if transposed(orientation(file)) {
				w, h = h, w
			}
		}
	}
	return w, h, f, nil
}

// Decode reads the full raster at path. JPEG sources come back already
// rotated into upright position per their EXIF orientation.
func Decode(path string) (image.Image, error) {
	f := FromPath(path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var img image.Image
	switch f {
	case JPEG:
		img, err = jpeg.Decode(file)
	case PNG:
		img, err = png.Decode(file)
	case GIF:
		img, err = gif.Decode(file)
	case Unknown:
		return nil, fmt.Errorf("unrecognized image extension in %q", path)
	default:
		return nil, fmt.Errorf("no decoder for format %s", f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if f == JPEG {
		if _, err := file.Seek(0, io.SeekStart); err == nil {
			img = reorient(img, orientation(file))
		}
	}
	return img, nil
}
