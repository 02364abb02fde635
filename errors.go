package imagefit

import (
	"errors"

	"imagefit/internal/pipeline"
)

// Source assignment failures.
var (
	ErrInvalidSourceType = errors.New("source is not a supported image path")
	ErrSourceNotFound    = errors.New("source file not found")
	ErrSourceUnreadable  = errors.New("source file not readable")
)

// Save failures, surfaced from the pipeline so callers can match them
// with errors.Is without importing internal packages.
var (
	ErrInvalidSourceDimensions = pipeline.ErrInvalidSourceDimensions
	ErrInvalidDestination      = pipeline.ErrInvalidDestination
	ErrFormatMismatch          = pipeline.ErrFormatMismatch
	ErrDecode                  = pipeline.ErrDecode
	ErrCanvas                  = pipeline.ErrCanvas
	ErrScale                   = pipeline.ErrScale
	ErrCrop                    = pipeline.ErrCrop
	ErrCopy                    = pipeline.ErrCopy
	ErrEncode                  = pipeline.ErrEncode
	ErrWriteVerification       = pipeline.ErrWriteVerification
)

// ErrSourceNotCleared reports a ClearSource call refused because no
// destination has been produced yet, or because the source and the last
// destination are the same file.
var ErrSourceNotCleared = errors.New("source not cleared: need a saved destination distinct from the source")
