package qhtml

import "strings"

// Balance repairs unbalanced braces before segmentation. Stray closers
// that would take the running depth below zero are consumed, and any
// residual open depth is closed at the end of the text. Authors routinely
// leave trailing braces off deeply nested markup; the result always has
// non-negative running depth and ends at depth zero.
//
// Balance is idempotent: Balance(Balance(x)) == Balance(x).
func Balance(text string) string {
	depth := 0
	drop := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			if depth == 0 {
				drop++
			} else {
				depth--
			}
		}
	}
	if drop == 0 && depth == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + depth)
	level := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '{':
			level++
		case '}':
			if level == 0 {
				continue // stray closer, consume it
			}
			level--
		}
		b.WriteByte(c)
	}
	for ; level > 0; level-- {
		b.WriteByte('}')
	}
	return b.String()
}
