package storage

import "path/filepath"

// RenditionPath returns the on-disk location of a rendition, laid out as
// {baseDir}/{preset}/{key}. Key is a slash-separated path relative to the
// source tree, already validated by the caller.
func RenditionPath(baseDir, preset, key string) string {
	return filepath.Join(baseDir, preset, filepath.FromSlash(key))
}

// SourcePath returns the on-disk location of a source image for a key.
func SourcePath(baseDir, key string) string {
	return filepath.Join(baseDir, filepath.FromSlash(key))
}
