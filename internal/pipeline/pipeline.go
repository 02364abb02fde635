// Package pipeline turns one source image and one bounding box into one
// written destination file: validate -> resolve geometry -> decode ->
// scale -> crop -> encode. Sources that already fit the box are copied
// byte for byte without touching the codec.
package pipeline

import (
	"bytes"
	"fmt"
	"regexp"
	"time"

	"imagefit/internal/codec"
	"imagefit/internal/geometry"
	"imagefit/internal/storage"
)

// Source describes a validated input image. Callers fill it from a codec
// probe; the pipeline trusts the dimensions but re-checks they are positive.
type Source struct {
	Path   string
	Width  int
	Height int
	Format codec.Format
}

// Box is the target bounding box for one save. Force makes the output
// fill the box exactly instead of fitting inside it.
type Box struct {
	MaxWidth  int
	MaxHeight int
	Force     bool
}

// settleWait bounds how long the post-write verification polls for the
// destination file before reporting it missing.
const settleWait = 500 * time.Millisecond

var pathCharset = regexp.MustCompile(`[^A-Za-z0-9./\-_:]`)

// SanitizePath strips every character outside the allowed path charset.
func SanitizePath(path string) string {
	return pathCharset.ReplaceAllString(path, "")
}

// Process writes the image described by src to destPath, scaled and
// cropped according to box. It returns the sanitized destination path
// actually written. Every failure comes back wrapped around one of the
// package sentinels; a ErrWriteVerification result means the write itself
// reported success but the file was not observed afterwards.
func Process(src Source, box Box, destPath string, quality int) (string, error) {
	dest := SanitizePath(destPath)
	destFormat := codec.FromPath(dest)
	if dest == "" || destFormat == codec.Unknown {
		return "", fmt.Errorf("%w: %q", ErrInvalidDestination, destPath)
	}

	// JPEG input must stay JPEG. The reverse direction (png/gif into
	// jpeg) is allowed.
	if src.Format == codec.JPEG && destFormat != codec.JPEG {
		return "", fmt.Errorf("%w: %s -> %s", ErrFormatMismatch, src.Path, dest)
	}

	if src.Width <= 0 || src.Height <= 0 {
		return "", fmt.Errorf("%w: %dx%d", ErrInvalidSourceDimensions, src.Width, src.Height)
	}

	if quality <= 0 {
		quality = codec.DefaultQuality
	}
	if quality > 100 {
		quality = 100
	}

	plan := geometry.Resolve(src.Width, src.Height, box.MaxWidth, box.MaxHeight, box.Force)
	if !plan.Resize {
		if err := storage.Copy(src.Path, dest); err != nil {
			return "", fmt.Errorf("%w: %v", ErrCopy, err)
		}
	} else {
		if err := encodeResized(src, box, plan, dest, destFormat, quality); err != nil {
			return "", err
		}
	}

	if !storage.ExistsAfterSettle(dest, settleWait) {
		return dest, fmt.Errorf("%w: %s", ErrWriteVerification, dest)
	}
	return dest, nil
}

func encodeResized(src Source, box Box, plan geometry.Plan, dest string, destFormat codec.Format, quality int) error {
	if plan.Width > MaxDimension || plan.Height > MaxDimension {
		return fmt.Errorf("%w: %dx%d", ErrCanvas, plan.Width, plan.Height)
	}

	img, err := codec.Decode(src.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	scaled := codec.Scale(img, plan.Width, plan.Height)
	if scaled == nil || scaled.Bounds().Dx() != plan.Width || scaled.Bounds().Dy() != plan.Height {
		return fmt.Errorf("%w: wanted %dx%d", ErrScale, plan.Width, plan.Height)
	}

	final := scaled
	if plan.Crop {
		final, err = codec.Crop(scaled, plan.CropX, plan.CropY, box.MaxWidth, box.MaxHeight)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCrop, err)
		}
	}

	var buf bytes.Buffer
	if err := codec.Encode(&buf, final, destFormat, quality); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if err := storage.AtomicWrite(dest, &buf); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return nil
}
