// Package testutil generates image fixtures for tests. Fixtures are real
// encoded files so tests exercise the same decode paths as production.
package testutil

import (
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Gradient returns a width x height RGBA image filled with a color
// gradient, so scaled output is visually distinguishable from a blank
// canvas when debugging by eye.
func Gradient(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{R: r, G: g, B: 128, A: 255})
		}
	}
	return img
}

// WriteImage encodes a gradient image of the given size to path. The
// format is chosen by the path's extension (jpg/jpeg, png or gif).
func WriteImage(t *testing.T, path string, width, height int) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for fixture %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture %s: %v", path, err)
	}
	defer f.Close()

	img := Gradient(width, height)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	case ".png":
		err = png.Encode(f, img)
	case ".gif":
		err = gif.Encode(f, img, nil)
	default:
		t.Fatalf("unsupported fixture extension in %s", path)
	}
	if err != nil {
		t.Fatalf("encode fixture %s: %v", path, err)
	}
	return path
}

// TempImage writes a gradient fixture named name into a fresh temp dir
// and returns its full path.
func TempImage(t *testing.T, name string, width, height int) string {
	t.Helper()
	return WriteImage(t, filepath.Join(t.TempDir(), name), width, height)
}

// ImageSize reads back the pixel dimensions of an encoded image file.
func ImageSize(t *testing.T, path string) (int, int) {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode config %s: %v", path, err)
	}
	return cfg.Width, cfg.Height
}
