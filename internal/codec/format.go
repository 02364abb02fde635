package codec

import (
	"path/filepath"
	"strings"
)

// Format identifies one of the raster formats this package handles. The
// zero value means the extension was not recognized. Every dispatch over
// Format is an exhaustive switch so a new format cannot slip through a
// partially updated code path.
type Format int

const (
	Unknown Format = iota
	JPEG
	PNG
	GIF
)

var extFormats = map[string]Format{
	".jpg":  JPEG,
	".jpeg": JPEG,
	".png":  PNG,
	".gif":  GIF,
}

// FromPath maps a file extension to its Format, case-insensitively.
// Recognition is by extension only; file contents are never sniffed.
func FromPath(path string) Format {
	return extFormats[strings.ToLower(filepath.Ext(path))]
}

func (f Format) String() string {
	switch f {
	case JPEG:
		return "jpeg"
	case PNG:
		return "png"
	case GIF:
		return "gif"
	default:
		return "unknown"
	}
}
