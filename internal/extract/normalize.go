package extract

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	// Mexican phone numbers: optional +52 country prefix, 2-3 digit area
	// code (optionally parenthesized), 3-4 digit exchange, 4 digit line.
	phoneRe = regexp.MustCompile(`(?:\+?52[\s.\-]*)?(?:\(\d{2,3}\)|\d{2,3})[\s.\-]*\d{3,4}[\s.\-]*\d{4}`)

	nonDigitRe = regexp.MustCompile(`\D`)

	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

// CollapseWhitespace trims and collapses runs of whitespace to single spaces.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// NormalizePhone extracts a Mexican phone number from raw text and returns
// its 10 significant digits with separators and country prefix stripped.
// Returns the empty string when no plausible number is found.
func NormalizePhone(raw string) string {
	match := phoneRe.FindString(raw)
	if match == "" {
		return ""
	}
	digits := nonDigitRe.ReplaceAllString(match, "")
	if strings.HasPrefix(digits, "52") && len(digits) == 12 {
		digits = digits[2:]
	}
	if len(digits) != 10 {
		return ""
	}
	return digits
}

// FirstEmail returns the first RFC-shaped email address in the raw markup,
// or the empty string.
func FirstEmail(raw string) string {
	return emailRe.FindString(raw)
}
