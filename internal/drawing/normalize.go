package drawing

import (
	"regexp"
	"strings"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize trims, lowercases and collapses internal whitespace.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// NormalizeName returns the normalized form of an optional name, or nil
// when the name is absent or blank.
func NormalizeName(name *string) *string {
	if name == nil {
		return nil
	}
	norm := Normalize(*name)
	if norm == "" {
		return nil
	}
	return &norm
}
