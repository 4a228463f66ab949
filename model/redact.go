package model

import (
	"regexp"
	"strings"
)

// cardPattern matches 13-19 digit runs with optional single space or dash
// separators between digits, the shape of payment card numbers.
var cardPattern = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)

// RedactCardNumbers masks payment-card-shaped digit sequences in s, keeping
// only the last four digits and any separators. Conversations are persisted
// and may be replayed, so this runs on every tool result and on message
// content before each save.
//
// The operation is idempotent: a masked token no longer contains a 13-19
// digit run, so re-running the sanitizer leaves it unchanged.
func RedactCardNumbers(s string) string {
	if !cardPattern.MatchString(s) {
		return s
	}

	return cardPattern.ReplaceAllStringFunc(s, func(match string) string {
		digits := 0
		for _, r := range match {
			if r >= '0' && r <= '9' {
				digits++
			}
		}

		var b strings.Builder
		b.Grow(len(match))
		seen := 0
		for _, r := range match {
			if r >= '0' && r <= '9' {
				seen++
				if seen <= digits-4 {
					b.WriteRune('*')
					continue
				}
			}
			b.WriteRune(r)
		}
		return b.String()
	})
}
