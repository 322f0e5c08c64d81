package qhtml

import "strings"

// Scanning primitives shared by the macro expander and the script pass.
// These operate on raw source text and must not be confused by braces
// inside string literals, comments or template-literal interpolations,
// since definition bodies and q-script blocks may contain arbitrary
// embedded script.

func isTokenByte(c byte) bool {
	return c == '_' || c == '-' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// skipString returns the index just past the closing quote of the string
// starting at i. Backslash escapes are honored; an unterminated string
// consumes the rest of the text.
func skipString(s string, i int) int {
	quote := s[i]
	i++
	for i < len(s) {
		switch s[i] {
		case '\\':
			i += 2
		case quote:
			return i + 1
		default:
			i++
		}
	}
	return i
}

func skipLineComment(s string, i int) int {
	for i < len(s) && s[i] != '\n' {
		i++
	}
	return i
}

func skipBlockComment(s string, i int) int {
	end := strings.Index(s[i+2:], "*/")
	if end < 0 {
		return len(s)
	}
	return i + 2 + end + 2
}

// skipTemplate consumes a backtick template literal starting at i,
// re-entering brace matching for each ${ ... } interpolation.
func skipTemplate(s string, i int) int {
	i++
	for i < len(s) {
		switch s[i] {
		case '\\':
			i += 2
		case '`':
			return i + 1
		case '$':
			if i+1 < len(s) && s[i+1] == '{' {
				end := matchBrace(s, i+1)
				if end < 0 {
					return len(s)
				}
				i = end + 1
			} else {
				i++
			}
		default:
			i++
		}
	}
	return i
}

// matchBrace returns the index of the '}' matching the '{' at open, or -1
// if the block never closes. Quotes, comments and template literals are
// skipped so embedded script cannot terminate the block early.
func matchBrace(s string, open int) int {
	if open < 0 || open >= len(s) || s[open] != '{' {
		return -1
	}
	depth := 0
	i := open
	for i < len(s) {
		switch c := s[i]; c {
		case '{':
			depth++
			i++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
			i++
		case '\'', '"':
			i = skipString(s, i)
		case '`':
			i = skipTemplate(s, i)
		case '/':
			if i+1 < len(s) && s[i+1] == '/' {
				i = skipLineComment(s, i)
			} else if i+1 < len(s) && s[i+1] == '*' {
				i = skipBlockComment(s, i)
			} else {
				i++
			}
		default:
			i++
		}
	}
	return -1
}

// matchBracePlain is the matcher used on percent-encoded segment text,
// where quoted spans can no longer contain structural characters. Plain
// depth tracking is sufficient there (and is what css blocks need).
func matchBracePlain(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// findStandalone locates the next occurrence of kw at or after from that
// is a whole token (not a substring of a longer identifier) and sits in
// code context rather than inside a string or comment.
func findStandalone(s, kw string, from int) int {
	if from < 0 {
		from = 0
	}
	i := from
	for i < len(s) {
		switch c := s[i]; c {
		case '\'', '"':
			i = skipString(s, i)
		case '`':
			i = skipTemplate(s, i)
		case '/':
			if i+1 < len(s) && s[i+1] == '/' {
				i = skipLineComment(s, i)
			} else if i+1 < len(s) && s[i+1] == '*' {
				i = skipBlockComment(s, i)
			} else {
				i++
			}
		default:
			if c == kw[0] && strings.HasPrefix(s[i:], kw) &&
				(i == 0 || !isIdentByte(s[i-1])) &&
				(i+len(kw) == len(s) || !isIdentByte(s[i+len(kw)])) {
				return i
			}
			i++
		}
	}
	return -1
}

// findStandaloneFold is findStandalone with ASCII case-insensitive
// matching, used for invocation ids. It scans s directly; indexing into a
// lowered copy would misalign on multi-byte case folds (U+0130, U+212A).
func findStandaloneFold(s, kw string, from int) int {
	if from < 0 {
		from = 0
	}
	i := from
	for i < len(s) {
		switch c := s[i]; c {
		case '\'', '"':
			i = skipString(s, i)
		case '`':
			i = skipTemplate(s, i)
		case '/':
			if i+1 < len(s) && s[i+1] == '/' {
				i = skipLineComment(s, i)
			} else if i+1 < len(s) && s[i+1] == '*' {
				i = skipBlockComment(s, i)
			} else {
				i++
			}
		default:
			if foldEqualASCII(c, kw[0]) && foldHasPrefixASCII(s[i:], kw) &&
				(i == 0 || !isIdentByte(s[i-1])) &&
				(i+len(kw) == len(s) || !isIdentByte(s[i+len(kw)])) {
				return i
			}
			i++
		}
	}
	return -1
}

func foldEqualASCII(a, b byte) bool {
	if a >= 'A' && a <= 'Z' {
		a += 'a' - 'A'
	}
	if b >= 'A' && b <= 'Z' {
		b += 'a' - 'A'
	}
	return a == b
}

func foldHasPrefixASCII(s, kw string) bool {
	if len(s) < len(kw) {
		return false
	}
	for i := 0; i < len(kw); i++ {
		if !foldEqualASCII(s[i], kw[i]) {
			return false
		}
	}
	return true
}

func nextNonSpace(s string, i int) int {
	for i < len(s) && isSpaceByte(s[i]) {
		i++
	}
	return i
}

// ancestor describes one enclosing brace block at a given source
// position: the token immediately before the '{' and whether the block is
// a property value (token followed by ':') rather than an element body.
type ancestor struct {
	Token  string
	IsProp bool
	Open   int
}

// ancestryAt returns the stack of enclosing blocks for pos, outermost
// first. An empty result means pos sits at the document root.
func ancestryAt(s string, pos int) []ancestor {
	var stack []ancestor
	i := 0
	for i < len(s) && i < pos {
		switch c := s[i]; c {
		case '{':
			tok, isProp := tokenBeforeBrace(s, i)
			stack = append(stack, ancestor{Token: tok, IsProp: isProp, Open: i})
			i++
		case '}':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			i++
		case '\'', '"':
			i = skipString(s, i)
		case '`':
			i = skipTemplate(s, i)
		case '/':
			if i+1 < len(s) && s[i+1] == '/' {
				i = skipLineComment(s, i)
			} else if i+1 < len(s) && s[i+1] == '*' {
				i = skipBlockComment(s, i)
			} else {
				i++
			}
		default:
			i++
		}
	}
	return stack
}

// tokenBeforeBrace reads the token immediately preceding the '{' at open.
// A trailing ':' marks a property-value block.
func tokenBeforeBrace(s string, open int) (string, bool) {
	k := open - 1
	for k >= 0 && isSpaceByte(s[k]) {
		k--
	}
	isProp := false
	if k >= 0 && s[k] == ':' {
		isProp = true
		k--
		for k >= 0 && isSpaceByte(s[k]) {
			k--
		}
	}
	end := k + 1
	for k >= 0 && isTokenByte(s[k]) {
		k--
	}
	return s[k+1 : end], isProp
}

// braceDepthAt reports the structural brace depth of pos relative to the
// document root.
func braceDepthAt(s string, pos int) int {
	return len(ancestryAt(s, pos))
}
