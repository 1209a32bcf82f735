package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

const fileNameLimit = 120

var tokenUnsafe = regexp.MustCompile(`[^a-z0-9-]+`)

// SanitizeFileName makes a concept name usable as a video file name. Path
// separators become dashes, characters rejected by common filesystems are
// dropped and whitespace runs collapse to a single space.
func SanitizeFileName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(`/\:*`, r):
			return '-'
		case strings.ContainsRune(`?"<>|`, r):
			return -1
		case unicode.IsControl(r) && !unicode.IsSpace(r):
			return -1
		}
		return r
	}, name)
	out := strings.Join(strings.Fields(mapped), " ")
	if runes := []rune(out); len(runes) > fileNameLimit {
		out = strings.TrimSpace(string(runes[:fileNameLimit]))
	}
	return out
}

// SanitizeToken lowercases value and replaces every run of characters outside
// [a-z0-9-] with one underscore. Empty results become "unknown".
func SanitizeToken(value string) string {
	lower := strings.ToLower(strings.TrimSpace(value))
	if out := strings.Trim(tokenUnsafe.ReplaceAllString(lower, "_"), "_-"); out != "" {
		return out
	}
	return "unknown"
}
