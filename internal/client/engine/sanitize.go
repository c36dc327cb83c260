package engine

import (
	"regexp"
	"strings"
)

var (
	inlineHandler = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)
	scriptURI     = regexp.MustCompile(`(?i)javascript\s*:`)
	angleBracket  = regexp.MustCompile(`[<>]`)
)

// Sanitize strips markup that could execute when user text is rendered.
// Removing a match can join its neighbours into a new one, so the rules
// repeat until nothing changes.
func Sanitize(s string) string {
	s = angleBracket.ReplaceAllString(s, "")
	for {
		next := scriptURI.ReplaceAllString(s, "")
		next = inlineHandler.ReplaceAllString(next, "")
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}
