package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize lowercases title and drops every rune that is neither an ASCII
// letter, an ASCII digit, nor a non-Latin rune (code point >= U+0080).
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(title string) string {
	if title == "" {
		return ""
	}
	lowered := cases.Lower(language.Und).String(title)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if keepRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeForSearch strips the leading run of symbols from title and trims
// surrounding whitespace. The result may be empty; use SearchQuery when a
// usable query is required.
func SanitizeForSearch(title string) string {
	trimmed := strings.TrimLeftFunc(title, func(r rune) bool {
		return !keepRune(r)
	})
	return strings.TrimSpace(trimmed)
}

// SearchQuery returns the sanitized title, or the trimmed original when
// sanitizing would leave nothing to search for (e.g. a title that is all symbols).
func SearchQuery(title string) string {
	if sanitized := SanitizeForSearch(title); sanitized != "" {
		return sanitized
	}
	return strings.TrimSpace(title)
}

func keepRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	default:
		return r >= 0x80
	}
}
