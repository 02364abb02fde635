package server

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"imagefit/internal/codec"
)

var keyRE = regexp.MustCompile(`^[a-zA-Z0-9/._-]+$`)

// validateKey rejects anything that could escape the source tree or name
// a file the codec cannot handle. Keys are slash-separated relative
// paths like "2026/trip/beach.jpg".
func validateKey(key string) error {
	if !keyRE.MatchString(key) {
		return fmt.Errorf("invalid key: %v", key)
	}

	cleaned := path.Clean(key)
	if cleaned != key ||
		cleaned == "." ||
		cleaned[0] == '/' ||
		strings.Contains(cleaned, "..") {
		return fmt.Errorf("invalid key: %v", key)
	}

	if codec.FromPath(key) == codec.Unknown {
		return fmt.Errorf("unsupported extension: %v", key)
	}
	return nil
}
