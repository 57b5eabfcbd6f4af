package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var reservedChars = strings.NewReplacer(
	`\`, "_", "/", "_", "<", "_", ">", "_", ":", "_",
	`"`, "_", "|", "_", "?", "_", "*", "_",
)

// SanitizeSegment turns a display name into a filesystem safe path segment.
// The result may be empty, in which case callers omit the segment.
// SanitizeSegment(SanitizeSegment(s)) == SanitizeSegment(s).
func SanitizeSegment(name string) string {
	s := norm.NFC.String(name)
	s = reservedChars.Replace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	for {
		t := strings.TrimSpace(strings.Trim(s, "."))
		if t == s {
			return s
		}
		s = t
	}
}
