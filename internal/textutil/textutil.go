// Package textutil holds the text normalization shared by diffs, metrics
// and the review report.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeLF converts CRLF and lone CR to LF and replaces invalid UTF-8
// sequences with the Unicode replacement character.
func NormalizeLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return s
}

// EnsureTrailingLF appends a single \n if not already present.
func EnsureTrailingLF(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// Words splits s on whitespace and strips surrounding punctuation. Tokens
// made only of punctuation are dropped.
func Words(s string) []string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.TrimFunc(f, unicode.IsPunct)
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// WordCount returns len(Words(s)).
func WordCount(s string) int {
	return len(Words(s))
}

// Clip shortens s to at most n runes, marking the cut with an ellipsis.
func Clip(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
