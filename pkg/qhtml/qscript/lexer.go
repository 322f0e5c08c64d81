package qscript

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind string

const (
	tokEOF    tokenKind = "EOF"
	tokIdent  tokenKind = "IDENT"
	tokNumber tokenKind = "NUMBER"
	tokString tokenKind = "STRING"
	tokOp     tokenKind = "OP"
	tokPunct  tokenKind = "PUNCT"
)

type token struct {
	Kind tokenKind
	Val  string
	Pos  int
}

type lexer struct {
	text   string
	pos    int
	buffer *token
}

func newLexer(text string) *lexer {
	return &lexer{text: text}
}

func (l *lexer) peek() token {
	if l.buffer == nil {
		tok := l.nextToken()
		l.buffer = &tok
	}
	return *l.buffer
}

func (l *lexer) next() token {
	if l.buffer != nil {
		tok := *l.buffer
		l.buffer = nil
		return tok
	}
	return l.nextToken()
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.text) {
		c := l.text[l.pos]
		if unicode.IsSpace(rune(c)) {
			l.pos++
			continue
		}
		if c == '/' && l.pos+1 < len(l.text) {
			if l.text[l.pos+1] == '/' {
				for l.pos < len(l.text) && l.text[l.pos] != '\n' {
					l.pos++
				}
				continue
			}
			if l.text[l.pos+1] == '*' {
				end := strings.Index(l.text[l.pos+2:], "*/")
				if end < 0 {
					l.pos = len(l.text)
				} else {
					l.pos += 2 + end + 2
				}
				continue
			}
		}
		break
	}
}

var twoByteOps = []string{"==", "!=", "<=", ">=", "&&", "||"}

func (l *lexer) nextToken() token {
	l.skipSpaceAndComments()
	if l.pos >= len(l.text) {
		return token{Kind: tokEOF, Pos: l.pos}
	}
	start := l.pos
	c := l.text[l.pos]

	if c == '"' || c == '\'' {
		return l.lexString(c)
	}
	if c >= '0' && c <= '9' || (c == '.' && l.pos+1 < len(l.text) && l.text[l.pos+1] >= '0' && l.text[l.pos+1] <= '9') {
		for l.pos < len(l.text) && (isDigitByte(l.text[l.pos]) || l.text[l.pos] == '.') {
			l.pos++
		}
		return token{Kind: tokNumber, Val: l.text[start:l.pos], Pos: start}
	}
	if isIdentStart(c) {
		for l.pos < len(l.text) && isIdentPart(l.text[l.pos]) {
			l.pos++
		}
		return token{Kind: tokIdent, Val: l.text[start:l.pos], Pos: start}
	}

	for _, op := range twoByteOps {
		if strings.HasPrefix(l.text[l.pos:], op) {
			l.pos += 2
			return token{Kind: tokOp, Val: op, Pos: start}
		}
	}
	switch c {
	case '+', '-', '*', '/', '%', '<', '>', '!', '=', '?':
		l.pos++
		return token{Kind: tokOp, Val: string(c), Pos: start}
	case '(', ')', ',', '.', ':', ';':
		l.pos++
		return token{Kind: tokPunct, Val: string(c), Pos: start}
	}
	l.pos++
	return token{Kind: tokPunct, Val: string(c), Pos: start}
}

func (l *lexer) lexString(quote byte) token {
	start := l.pos
	l.pos++
	var b strings.Builder
	for l.pos < len(l.text) {
		c := l.text[l.pos]
		if c == '\\' && l.pos+1 < len(l.text) {
			esc := l.text[l.pos+1]
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(esc)
			}
			l.pos += 2
			continue
		}
		if c == quote {
			l.pos++
			return token{Kind: tokString, Val: b.String(), Pos: start}
		}
		b.WriteByte(c)
		l.pos++
	}
	return token{Kind: tokString, Val: b.String(), Pos: start}
}

func (l *lexer) expectPunct(val string) error {
	tok := l.next()
	if tok.Kind != tokPunct || tok.Val != val {
		return fmt.Errorf("expected %q at offset %d, got %q", val, tok.Pos, tok.Val)
	}
	return nil
}

func isDigitByte(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigitByte(c)
}
