// Package naming builds the final file name of a downloaded document.
package naming

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	disallowed = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

// SanitizeTitle turns whitespace runs into a single underscore and drops
// every character outside [A-Za-z0-9_-].
func SanitizeTitle(title string) string {
	return disallowed.ReplaceAllString(whitespace.ReplaceAllString(title, "_"), "")
}

// Compose returns {sanitizedTitle}_{code}{ext} where code and ext come from
// the name the file was detected under. An absent title yields "_code.ext".
func Compose(title, detected string) string {
	base := filepath.Base(detected)
	ext := filepath.Ext(base)
	code := strings.TrimSuffix(base, ext)
	return SanitizeTitle(title) + "_" + code + ext
}
