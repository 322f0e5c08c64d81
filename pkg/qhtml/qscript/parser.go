package qscript

import "fmt"

// The native expression language is deliberately small: literals,
// arithmetic, comparison, logic, a conditional operator, assignment into
// context variables, member access on "this" and a handful of built-in
// functions. It exists so the compiler's script pass has a concrete,
// host-independent evaluator; richer hosts plug in their own.

type expr interface{}

type literal struct{ value any }

type varRef struct{ name string }

type member struct {
	obj  expr
	name string
}

type call struct {
	name string
	args []expr
}

type unary struct {
	op      string
	operand expr
}

type binary struct {
	op          string
	left, right expr
}

type ternary struct {
	cond, thenE, elseE expr
}

type assign struct {
	name  string
	value expr
}

// program is a ';'-separated sequence of expressions; its value is the
// value of the last one.
type program struct {
	stmts []expr
}

func parseProgram(body string) (*program, error) {
	l := newLexer(body)
	p := &program{}
	for {
		if l.peek().Kind == tokEOF {
			break
		}
		e, err := parseExpr(l)
		if err != nil {
			return nil, err
		}
		p.stmts = append(p.stmts, e)
		tok := l.peek()
		if tok.Kind == tokPunct && tok.Val == ";" {
			l.next()
			continue
		}
		if tok.Kind != tokEOF {
			return nil, fmt.Errorf("unexpected %q at offset %d", tok.Val, tok.Pos)
		}
	}
	if len(p.stmts) == 0 {
		return nil, ErrUndefined
	}
	return p, nil
}

func parseExpr(l *lexer) (expr, error) {
	// assignment: ident = expr
	if l.peek().Kind == tokIdent {
		save := *l
		name := l.next()
		tok := l.peek()
		if tok.Kind == tokOp && tok.Val == "=" {
			l.next()
			value, err := parseExpr(l)
			if err != nil {
				return nil, err
			}
			return assign{name: name.Val, value: value}, nil
		}
		*l = save
	}
	return parseTernary(l)
}

func parseTernary(l *lexer) (expr, error) {
	cond, err := parseBinary(l, 0)
	if err != nil {
		return nil, err
	}
	tok := l.peek()
	if tok.Kind == tokOp && tok.Val == "?" {
		l.next()
		thenE, err := parseExpr(l)
		if err != nil {
			return nil, err
		}
		if err := l.expectPunct(":"); err != nil {
			return nil, err
		}
		elseE, err := parseExpr(l)
		if err != nil {
			return nil, err
		}
		return ternary{cond: cond, thenE: thenE, elseE: elseE}, nil
	}
	return cond, nil
}

var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3,
	"<": 4, "<=": 4, ">": 4, ">=": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

func parseBinary(l *lexer, minPrec int) (expr, error) {
	left, err := parseUnary(l)
	if err != nil {
		return nil, err
	}
	for {
		tok := l.peek()
		if tok.Kind != tokOp {
			return left, nil
		}
		prec, ok := binaryPrec[tok.Val]
		if !ok || prec < minPrec {
			return left, nil
		}
		l.next()
		right, err := parseBinary(l, prec+1)
		if err != nil {
			return nil, err
		}
		left = binary{op: tok.Val, left: left, right: right}
	}
}

func parseUnary(l *lexer) (expr, error) {
	tok := l.peek()
	if tok.Kind == tokOp && (tok.Val == "-" || tok.Val == "!") {
		l.next()
		operand, err := parseUnary(l)
		if err != nil {
			return nil, err
		}
		return unary{op: tok.Val, operand: operand}, nil
	}
	return parsePostfix(l)
}

func parsePostfix(l *lexer) (expr, error) {
	e, err := parsePrimary(l)
	if err != nil {
		return nil, err
	}
	for {
		tok := l.peek()
		if tok.Kind == tokPunct && tok.Val == "." {
			l.next()
			name := l.next()
			if name.Kind != tokIdent {
				return nil, fmt.Errorf("expected member name at offset %d", name.Pos)
			}
			e = member{obj: e, name: name.Val}
			continue
		}
		return e, nil
	}
}

func parsePrimary(l *lexer) (expr, error) {
	tok := l.next()
	switch tok.Kind {
	case tokNumber:
		return literal{value: parseNumber(tok.Val)}, nil
	case tokString:
		return literal{value: tok.Val}, nil
	case tokIdent:
		switch tok.Val {
		case "true":
			return literal{value: true}, nil
		case "false":
			return literal{value: false}, nil
		case "null", "undefined":
			return literal{value: nil}, nil
		}
		// function call?
		nxt := l.peek()
		if nxt.Kind == tokPunct && nxt.Val == "(" {
			l.next()
			var args []expr
			for {
				if t := l.peek(); t.Kind == tokPunct && t.Val == ")" {
					l.next()
					break
				}
				a, err := parseExpr(l)
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if t := l.peek(); t.Kind == tokPunct && t.Val == "," {
					l.next()
				}
			}
			return call{name: tok.Val, args: args}, nil
		}
		return varRef{name: tok.Val}, nil
	case tokPunct:
		if tok.Val == "(" {
			e, err := parseExpr(l)
			if err != nil {
				return nil, err
			}
			if err := l.expectPunct(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
	}
	return nil, fmt.Errorf("unexpected token %q at offset %d", tok.Val, tok.Pos)
}
