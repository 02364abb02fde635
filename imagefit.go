// Package imagefit resizes raster images into a bounding box. Output
// either fits inside the box preserving aspect ratio (never enlarged), or,
// when forced, exactly fills the box via a proportional scale and a
// centered crop. Supported formats are JPEG, PNG and GIF, recognized by
// file extension.
//
// The entry point is a chainable Session:
//
//	s := imagefit.New().
//		WithSource("in/photo.jpg").
//		WithBox(400, 300, false).
//		Save("out/photo.jpg")
//	if err := s.Err(); err != nil { ... }
//
// A Session never panics and never aborts the chain: every failure is
// recorded in its error log and the Session stays usable for further
// calls.
package imagefit

import (
	"errors"
	"fmt"

	"imagefit/internal/codec"
	"imagefit/internal/pipeline"
	"imagefit/internal/storage"
)

// Defaults applied when a box dimension or quality is zero or negative.
const (
	DefaultMaxWidth  = 1200
	DefaultMaxHeight = 800
	DefaultQuality   = 75
)

// Session carries one current source image, one target box and an
// append-only error log across chained calls. The zero value is not
// ready; use New.
type Session struct {
	src     pipeline.Source
	box     pipeline.Box
	log     []string
	lastErr error
	dest    string
}

// New returns an empty Session with the default 1200x800 box.
func New() *Session {
	return &Session{
		box: pipeline.Box{MaxWidth: DefaultMaxWidth, MaxHeight: DefaultMaxHeight},
	}
}

// WithSource adopts path as the current source. The path is sanitized,
// its extension checked against the supported formats, the file checked
// for existence and readability, and its dimensions probed. On any
// failure the error is logged and the current source resets to the zero
// descriptor, so a following Save fails fast instead of operating on a
// stale image.
func (s *Session) WithSource(path string) *Session {
	p := pipeline.SanitizePath(path)
	f := codec.FromPath(p)
	if p == "" || f == codec.Unknown {
		return s.dropSource(fmt.Errorf("%w: %q", ErrInvalidSourceType, path))
	}
	if !storage.Exists(p) {
		return s.dropSource(fmt.Errorf("%w: %s", ErrSourceNotFound, p))
	}
	if !storage.IsReadable(p) {
		return s.dropSource(fmt.Errorf("%w: %s", ErrSourceUnreadable, p))
	}

	w, h, f, err := codec.Probe(p)
	if err != nil || w <= 0 || h <= 0 {
		return s.dropSource(fmt.Errorf("%w: %s", ErrInvalidSourceDimensions, p))
	}

	s.src = pipeline.Source{Path: p, Width: w, Height: h, Format: f}
	return s
}

// WithBox sets the bounding box for the next Save. Zero or negative
// dimensions fall back to the defaults. WithBox always succeeds.
func (s *Session) WithBox(maxW, maxH int, force bool) *Session {
	if maxW <= 0 {
		maxW = DefaultMaxWidth
	}
	if maxH <= 0 {
		maxH = DefaultMaxHeight
	}
	s.box = pipeline.Box{MaxWidth: maxW, MaxHeight: maxH, Force: force}
	return s
}

// Save writes the current source into dest using the current box. The
// optional quality (0-100) defaults to DefaultQuality when absent or not
// positive. On success the sanitized destination is recorded as the last
// destination; a write-verification failure is advisory and records both
// the error and the destination.
func (s *Session) Save(dest string, quality ...int) *Session {
	q := DefaultQuality
	if len(quality) > 0 && quality[0] > 0 {
		q = quality[0]
	}

	written, err := pipeline.Process(s.src, s.box, dest, q)
	if err != nil {
		s.fail(err)
	}
	if written != "" && (err == nil || errors.Is(err, ErrWriteVerification)) {
		s.dest = written
	}
	return s
}

// ClearSource deletes the current source file, but only after a
// destination has been produced and only when the source is not that
// same file. A refused clear is logged, not silently dropped.
func (s *Session) ClearSource() *Session {
	if s.dest == "" || s.src.Path == "" || s.src.Path == s.dest {
		return s.fail(ErrSourceNotCleared)
	}
	if err := storage.Delete(s.src.Path); err != nil {
		return s.fail(err)
	}
	return s
}

// Errors returns a copy of the accumulated error log, oldest first. The
// log is never cleared; it spans the whole lifetime of the Session.
func (s *Session) Errors() []string {
	out := make([]string, len(s.log))
	copy(out, s.log)
	return out
}

// Err returns the most recent error, or nil when nothing has failed yet.
func (s *Session) Err() error {
	return s.lastErr
}

// LastDest returns the destination path of the most recent successful
// save, or "" when none has happened.
func (s *Session) LastDest() string {
	return s.dest
}

// Source returns the path and probed dimensions of the current source.
// All zero values mean no valid source is set.
func (s *Session) Source() (path string, width, height int) {
	return s.src.Path, s.src.Width, s.src.Height
}

// fail records err in the log. Session state beyond the log is untouched.
func (s *Session) fail(err error) *Session {
	s.log = append(s.log, err.Error())
	s.lastErr = err
	return s
}

// dropSource records err and resets the current source to the zero
// descriptor, so subsequent saves fail fast on zero dimensions.
func (s *Session) dropSource(err error) *Session {
	s.src = pipeline.Source{}
	return s.fail(err)
}
