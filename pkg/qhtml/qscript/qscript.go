// Package qscript provides the expression-evaluation capability the qHTML
// compiler injects into its script pass. The compiler only depends on the
// Evaluator interface; the concrete evaluator is host-specific. Two
// implementations ship with the package: a native expression interpreter
// and a WASM-backed evaluator for hosts that compile their scripting
// runtime to a guest module.
package qscript

import "errors"

// ErrUndefined is returned when a script evaluates to no value at all.
// The compiler logs it and substitutes empty text.
var ErrUndefined = errors.New("qscript: undefined result")

// Context is the resolved invocation context for one script or handler
// body: the element the block syntactically belongs to, plus the nearest
// structural parent, named slot ancestor and enclosing component host.
type Context struct {
	Tag       string
	Classes   []string
	Parent    string
	Slot      string
	Component string

	// Vars carries named bindings visible to the body. Handler binding
	// injects temporary aliases here for the duration of a call.
	Vars map[string]any
}

// Var returns a context variable, consulting the built-in "this" fields
// before user bindings.
func (c *Context) Var(name string) (any, bool) {
	if c == nil {
		return nil, false
	}
	if c.Vars != nil {
		if v, ok := c.Vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Evaluator executes a script body as an expression yielding a string.
// Implementations must never panic; failures are reported as errors and
// the compiler degrades them to empty output.
type Evaluator interface {
	Evaluate(body string, ctx *Context) (string, error)
}
