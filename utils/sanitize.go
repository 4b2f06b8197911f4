package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// SanitizeText strips all markup from user supplied plain text such as
// display names, and trims it to at most max runes.
func SanitizeText(input string, max int) string {
	out := strings.TrimSpace(html.UnescapeString(strict.Sanitize(input)))
	if max > 0 {
		if r := []rune(out); len(r) > max {
			out = string(r[:max])
		}
	}
	return out
}
