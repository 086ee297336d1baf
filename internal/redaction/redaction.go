// Package redaction masks credentials out of text before it reaches reports,
// logs, or the terminal. Odoo fault strings and transport errors can embed
// request URLs or serialized payloads that carry the instance passwords.
package redaction

import (
	"regexp"
)

// sensitivePatterns are compiled once at package init and applied in order.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password['"\s]*[:=]\s*['"]?)[^'",\s]+`), // password = ...
	regexp.MustCompile(`(?i)(api[_-]?key['"\s]*[:=]\s*['"]?)[^'",\s]+`),
	regexp.MustCompile(`(://[^/:@\s]+:)[^@\s]+(@)`), // userinfo in URLs
}

const replacement = "[REDACTED]"

// Mask replaces credential material in text with [REDACTED], keeping the
// surrounding context (key names, URL structure) intact.
func Mask(text string) string {
	for _, re := range sensitivePatterns {
		text = re.ReplaceAllString(text, "${1}"+replacement+"${2}")
	}
	return text
}

// MaskAll applies Mask to every string in a slice, returning a new slice.
func MaskAll(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = Mask(t)
	}
	return out
}
