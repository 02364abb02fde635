// Package geometry decides how a source image maps onto a bounding box.
// It is pure math: no I/O, no image data, just dimensions.
package geometry

// Plan is the resolved outcome for one source/box pairing. When Resize is
// false the remaining fields are zero and the caller should copy the file
// untouched. When Crop is true the scaled canvas covers the box and the
// crop window of box size starts at (CropX, CropY).
type Plan struct {
	Resize bool
	Width  int
	Height int
	Crop   bool
	CropX  int
	CropY  int
}

// Resolve computes the scaled dimensions and crop window for fitting a
// srcW x srcH image into a maxW x maxH box.
//
// Without force, sources smaller than the box in either axis are left
// alone (never enlarge), and resized output always fits inside the box.
// With force, the output exactly fills the box: the scale anchors on
// whichever axis under-fills, and the overshoot on the other axis is
// cropped around the center.
//
// Callers must pass positive dimensions; zero-size sources are rejected
// upstream and zero box values are replaced with defaults before this
// point. All divisions truncate.
func Resolve(srcW, srcH, maxW, maxH int, force bool) Plan {
	if (maxW > srcW || maxH > srcH) && !force {
		return Plan{}
	}

	p := Plan{Resize: true, Width: maxW, Height: (srcH * maxW) / srcW}

	// Re-anchor on height when the width anchor under-fills a forced box
	// or overflows an unforced one.
	if (p.Height < maxH && force) || (p.Height > maxH && !force) {
		p.Height = maxH
		p.Width = (srcW * maxH) / srcH
	}

	if p.Width > maxW || p.Height > maxH {
		p.Crop = true
		p.CropX = (p.Width - maxW) / 2
		p.CropY = (p.Height - maxH) / 2
		if p.CropX < 0 {
			p.CropX = 0
		}
		if p.CropY < 0 {
			p.CropY = 0
		}
	}

	return p
}
