package qscript

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// NativeEvaluator interprets qscript expression bodies directly. Parsed
// programs are cached by body text, so identical handler bodies across
// many instances compile once.
type NativeEvaluator struct {
	mu    sync.Mutex
	cache map[string]*cachedProgram
}

type cachedProgram struct {
	prog *program
	err  error
}

// NewNativeEvaluator returns an evaluator backed by the built-in
// expression interpreter.
func NewNativeEvaluator() *NativeEvaluator {
	return &NativeEvaluator{cache: map[string]*cachedProgram{}}
}

func (n *NativeEvaluator) compile(body string) (*program, error) {
	n.mu.Lock()
	c, ok := n.cache[body]
	n.mu.Unlock()
	if !ok {
		prog, err := parseProgram(body)
		c = &cachedProgram{prog: prog, err: err}
		n.mu.Lock()
		n.cache[body] = c
		n.mu.Unlock()
	}
	return c.prog, c.err
}

// Evaluate implements Evaluator.
func (n *NativeEvaluator) Evaluate(body string, ctx *Context) (string, error) {
	prog, err := n.compile(body)
	if err != nil {
		return "", err
	}
	var last any
	for _, stmt := range prog.stmts {
		last, err = evalExpr(stmt, ctx)
		if err != nil {
			return "", err
		}
	}
	return FormatValue(last)
}

// FormatValue stringifies an evaluation result. A nil result is the
// "undefined" case and reports ErrUndefined.
func FormatValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", ErrUndefined
	case string:
		return x, nil
	case bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		return fmt.Sprintf("%v", x), nil
	}
}

func parseNumber(s string) any {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return f
}

func evalExpr(e expr, ctx *Context) (any, error) {
	switch x := e.(type) {
	case literal:
		return x.value, nil
	case varRef:
		return evalVar(x.name, ctx)
	case member:
		return evalMember(x, ctx)
	case assign:
		v, err := evalExpr(x.value, ctx)
		if err != nil {
			return nil, err
		}
		if ctx.Vars == nil {
			ctx.Vars = map[string]any{}
		}
		ctx.Vars[x.name] = v
		return v, nil
	case unary:
		v, err := evalExpr(x.operand, ctx)
		if err != nil {
			return nil, err
		}
		switch x.op {
		case "-":
			f, ok := toNumber(v)
			if !ok {
				return nil, fmt.Errorf("cannot negate %T", v)
			}
			return -f, nil
		case "!":
			return !toBool(v), nil
		}
		return nil, fmt.Errorf("unknown unary operator %q", x.op)
	case binary:
		return evalBinary(x, ctx)
	case ternary:
		c, err := evalExpr(x.cond, ctx)
		if err != nil {
			return nil, err
		}
		if toBool(c) {
			return evalExpr(x.thenE, ctx)
		}
		return evalExpr(x.elseE, ctx)
	case call:
		return evalCall(x, ctx)
	}
	return nil, fmt.Errorf("unknown expression %T", e)
}

func evalVar(name string, ctx *Context) (any, error) {
	if v, ok := ctx.Var(name); ok {
		return v, nil
	}
	switch name {
	case "this":
		return ctx, nil
	case "parent":
		return strOrNil(ctx.Parent), nil
	case "slot":
		return strOrNil(ctx.Slot), nil
	case "component":
		return strOrNil(ctx.Component), nil
	}
	return nil, nil
}

func evalMember(m member, ctx *Context) (any, error) {
	obj, err := evalExpr(m.obj, ctx)
	if err != nil {
		return nil, err
	}
	c, ok := obj.(*Context)
	if !ok {
		return nil, fmt.Errorf("cannot access %q on %T", m.name, obj)
	}
	switch m.name {
	case "tag":
		return c.Tag, nil
	case "classes":
		return strings.Join(c.Classes, " "), nil
	case "parent":
		return strOrNil(c.Parent), nil
	case "slot":
		return strOrNil(c.Slot), nil
	case "component":
		return strOrNil(c.Component), nil
	}
	if v, ok := c.Var(m.name); ok {
		return v, nil
	}
	return nil, nil
}

func evalBinary(b binary, ctx *Context) (any, error) {
	// short-circuit logic first
	switch b.op {
	case "&&":
		l, err := evalExpr(b.left, ctx)
		if err != nil {
			return nil, err
		}
		if !toBool(l) {
			return false, nil
		}
		r, err := evalExpr(b.right, ctx)
		if err != nil {
			return nil, err
		}
		return toBool(r), nil
	case "||":
		l, err := evalExpr(b.left, ctx)
		if err != nil {
			return nil, err
		}
		if toBool(l) {
			return true, nil
		}
		r, err := evalExpr(b.right, ctx)
		if err != nil {
			return nil, err
		}
		return toBool(r), nil
	}

	l, err := evalExpr(b.left, ctx)
	if err != nil {
		return nil, err
	}
	r, err := evalExpr(b.right, ctx)
	if err != nil {
		return nil, err
	}

	switch b.op {
	case "+":
		if lf, ok := toNumber(l); ok {
			if rf, ok := toNumber(r); ok {
				return lf + rf, nil
			}
		}
		ls, _ := FormatValue(l)
		rs, _ := FormatValue(r)
		return ls + rs, nil
	case "-", "*", "/", "%":
		lf, lok := toNumber(l)
		rf, rok := toNumber(r)
		if !lok || !rok {
			return nil, fmt.Errorf("operator %q needs numbers, got %T and %T", b.op, l, r)
		}
		switch b.op {
		case "-":
			return lf - rf, nil
		case "*":
			return lf * rf, nil
		case "/":
			if rf == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return lf / rf, nil
		case "%":
			if rf == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return float64(int64(lf) % int64(rf)), nil
		}
	case "==":
		return looseEqual(l, r), nil
	case "!=":
		return !looseEqual(l, r), nil
	case "<", "<=", ">", ">=":
		lf, lok := toNumber(l)
		rf, rok := toNumber(r)
		if lok && rok {
			switch b.op {
			case "<":
				return lf < rf, nil
			case "<=":
				return lf <= rf, nil
			case ">":
				return lf > rf, nil
			case ">=":
				return lf >= rf, nil
			}
		}
		ls, _ := FormatValue(l)
		rs, _ := FormatValue(r)
		switch b.op {
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}
	return nil, fmt.Errorf("unknown operator %q", b.op)
}

func evalCall(c call, ctx *Context) (any, error) {
	args := make([]any, len(c.args))
	for i, a := range c.args {
		v, err := evalExpr(a, ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	str := func(i int) string {
		if i >= len(args) {
			return ""
		}
		s, _ := FormatValue(args[i])
		return s
	}
	switch c.name {
	case "len":
		return float64(len(str(0))), nil
	case "upper":
		return strings.ToUpper(str(0)), nil
	case "lower":
		return strings.ToLower(str(0)), nil
	case "trim":
		return strings.TrimSpace(str(0)), nil
	case "contains":
		return strings.Contains(str(0), str(1)), nil
	case "replace":
		return strings.ReplaceAll(str(0), str(1), str(2)), nil
	case "concat":
		var b strings.Builder
		for i := range args {
			b.WriteString(str(i))
		}
		return b.String(), nil
	case "str":
		return str(0), nil
	case "num":
		if len(args) == 0 {
			return nil, fmt.Errorf("num: missing argument")
		}
		f, ok := toNumber(args[0])
		if !ok {
			return nil, fmt.Errorf("num: cannot convert %T", args[0])
		}
		return f, nil
	}
	return nil, fmt.Errorf("unknown function %q", c.name)
}

func strOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func toBool(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	}
	return true
}

func looseEqual(l, r any) bool {
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	if lf, ok := toNumber(l); ok {
		if rf, ok := toNumber(r); ok {
			return lf == rf
		}
	}
	ls, _ := FormatValue(l)
	rs, _ := FormatValue(r)
	return ls == rs
}