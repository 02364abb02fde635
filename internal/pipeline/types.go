package pipeline

import "errors"

var (
	ErrInvalidDestination      = errors.New("destination is not a supported image path")
	ErrFormatMismatch          = errors.New("jpeg sources can only be saved to a jpeg destination")
	ErrInvalidSourceDimensions = errors.New("source dimensions out of range")
	ErrDecode                  = errors.New("decode failed")
	ErrCanvas                  = errors.New("scaled canvas exceeds dimension limit")
	ErrScale                   = errors.New("scale failed")
	ErrCrop                    = errors.New("crop failed")
	ErrCopy                    = errors.New("copy failed")
	ErrEncode                  = errors.New("encode failed")
	ErrWriteVerification       = errors.New("output file not observed after write")
)

// MaxDimension caps the width and height of any canvas the pipeline will
// allocate. Forced boxes can scale a source up, so the cap is checked
// against the planned canvas, not the source.
const MaxDimension = 8000
