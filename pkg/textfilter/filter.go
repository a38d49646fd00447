// Package textfilter holds the two regex gates around the LLM: the prompt
// guard that screens player free text before any agent sees it, and the canon
// guard that screens generated prose before it reaches the player.
package textfilter

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// rule is one compiled pattern with a label.
type rule struct {
	label string
	re    *regexp.Regexp
}

// compileRules pre-compiles every pattern case-insensitively.
// Patterns are static; a bad pattern is a programming error.
func compileRules(defs [][2]string) []rule {
	out := make([]rule, 0, len(defs))
	for _, d := range defs {
		out = append(out, rule{label: d[0], re: regexp.MustCompile(`(?i)` + d[1])})
	}
	return out
}

// Normalize composes text to NFC so that precomposed and decomposed
// Vietnamese input match the same patterns.
func Normalize(text string) string {
	return norm.NFC.String(text)
}

// stripControl removes control characters other than newlines and tabs.
func stripControl(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, text)
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// Preview returns at most n runes of s on a single line, for logs.
func Preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return TruncateRunes(s, n) + "..."
}
