package qhtml

import (
	"strings"
	"sync"

	"github.com/qhtml/qhtml-go/pkg/qhtml/qscript"
)

// Handler is a compiled event-handler body. Handlers are compiled once
// per unique sanitized body and shared across every instance that binds
// the same text.
type Handler struct {
	Name string
	Body string

	eval qscript.Evaluator
}

// aliasNames are the contextual bindings injected for the duration of one
// handler call and restored afterwards.
var aliasNames = [...]string{"parent", "slot", "component"}

// Invoke runs the handler with temporary contextual aliases bound on ctx.
// Prior definitions of the aliases are restored after the call; a failure
// to inject an alias never prevents the handler from running.
func (h *Handler) Invoke(ctx *qscript.Context) (string, error) {
	if ctx == nil {
		ctx = &qscript.Context{}
	}
	if ctx.Vars == nil {
		ctx.Vars = map[string]any{}
	}

	type saved struct {
		val any
		had bool
	}
	prior := map[string]saved{}
	for _, name := range aliasNames {
		v, had := ctx.Vars[name]
		prior[name] = saved{val: v, had: had}
	}
	ctx.Vars["parent"] = ctx.Parent
	ctx.Vars["slot"] = ctx.Slot
	ctx.Vars["component"] = ctx.Component
	defer func() {
		for _, name := range aliasNames {
			if p := prior[name]; p.had {
				ctx.Vars[name] = p.val
			} else {
				delete(ctx.Vars, name)
			}
		}
	}()

	return h.eval.Evaluate(h.Body, ctx)
}

// handlerCache deduplicates handler compilation by sanitized body text.
// It is append-only and shared for the lifetime of a Compiler.
type handlerCache struct {
	mu sync.Mutex
	m  map[string]*Handler
}

func newHandlerCache() *handlerCache {
	return &handlerCache{m: map[string]*Handler{}}
}

func (c *handlerCache) compile(eval qscript.Evaluator, name, body string) *Handler {
	key := sanitizeBody(body)
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.m[key]; ok {
		return h
	}
	h := &Handler{Name: name, Body: key, eval: eval}
	c.m[key] = h
	return h
}

func (c *handlerCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// sanitizeBody normalizes whitespace outside of string literals so that
// trivially reformatted copies of the same handler share one compilation.
func sanitizeBody(body string) string {
	var b strings.Builder
	b.Grow(len(body))
	i := 0
	pendingSpace := false
	for i < len(body) {
		c := body[i]
		if c == '"' || c == '\'' || c == '`' {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			var end int
			if c == '`' {
				end = skipTemplate(body, i)
			} else {
				end = skipString(body, i)
			}
			b.WriteString(body[i:end])
			i = end
			continue
		}
		if c == '/' && i+1 < len(body) && body[i+1] == '/' {
			i = skipLineComment(body, i)
			pendingSpace = true
			continue
		}
		if c == '/' && i+1 < len(body) && body[i+1] == '*' {
			i = skipBlockComment(body, i)
			pendingSpace = true
			continue
		}
		if isSpaceByte(c) {
			pendingSpace = true
			i++
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteByte(c)
		i++
	}
	return strings.TrimSpace(b.String())
}

// lifecycleHook is one queued onReady/onLoad/onLoaded body awaiting its
// node's subtree completion.
type lifecycleHook struct {
	body string
	ctx  *qscript.Context
}

// lifecycleQueue holds per-node lifecycle hooks. Hooks are flushed
// synchronously once the node's full child tree has been constructed, so
// every hook observes a stable subtree.
type lifecycleQueue struct {
	hooks map[*Element][]lifecycleHook
}

func newLifecycleQueue() *lifecycleQueue {
	return &lifecycleQueue{hooks: map[*Element][]lifecycleHook{}}
}

func (q *lifecycleQueue) add(el *Element, body string, ctx *qscript.Context) {
	q.hooks[el] = append(q.hooks[el], lifecycleHook{body: body, ctx: ctx})
}

// flush runs and discards the hooks queued for el. Failures are logged
// and never propagate.
func (q *lifecycleQueue) flush(el *Element, eval qscript.Evaluator, d *Diagnostics) {
	hooks := q.hooks[el]
	if len(hooks) == 0 {
		return
	}
	delete(q.hooks, el)
	for _, h := range hooks {
		if _, err := eval.Evaluate(h.body, h.ctx); err != nil && err != qscript.ErrUndefined {
			d.Errorf(el.Tag, "lifecycle hook failed: %v", err)
		}
	}
}
