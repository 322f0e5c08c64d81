package qhtml

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/qhtml/qhtml-go/pkg/qhtml/qscript"
)

// Compiler turns qHTML source text into a Node tree. It owns the
// definition registry and the compiled-handler caches, which are the only
// state shared between compile calls; everything else lives for exactly
// one Compile invocation.
//
// Compilation is synchronous and single-threaded: passes run strictly in
// the order Balance, top-level script evaluation, macro expansion, full
// script evaluation, segmentation and node construction.
type Compiler struct {
	reg      *Registry
	eval     qscript.Evaluator
	d        *Diagnostics
	handlers *handlerCache
	sigCache *signalHandlerCache

	passFactor    int
	scriptCeiling int
	wrapBare      bool
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger injects the diagnostics sink. All recoverable problems are
// reported there; the default discards them.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Compiler) { c.d = NewDiagnostics(log) }
}

// WithEvaluator injects the script evaluation capability. The default is
// the native qscript interpreter.
func WithEvaluator(eval qscript.Evaluator) Option {
	return func(c *Compiler) { c.eval = eval }
}

// WithRegistry shares a definition registry between compilers, keeping
// component definitions across compiles of different hosts.
func WithRegistry(reg *Registry) Option {
	return func(c *Compiler) { c.reg = reg }
}

// WithPassFactor overrides the macro-expansion pass bound multiplier
// (default 3; the bound is factor × definitionCount).
func WithPassFactor(factor int) Option {
	return func(c *Compiler) { c.passFactor = factor }
}

// WithScriptCeiling overrides the per-pass script evaluation ceiling
// (default 250).
func WithScriptCeiling(n int) Option {
	return func(c *Compiler) { c.scriptCeiling = n }
}

// WithWrapBareResults wraps bare top-level script results in a synthetic
// text { ... } block.
func WithWrapBareResults(wrap bool) Option {
	return func(c *Compiler) { c.wrapBare = wrap }
}

// New creates a Compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		passFactor:    3,
		scriptCeiling: 250,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.reg == nil {
		c.reg = NewRegistry()
	}
	if c.eval == nil {
		c.eval = qscript.NewNativeEvaluator()
	}
	if c.d == nil {
		c.d = nopDiagnostics()
	}
	c.handlers = newHandlerCache()
	c.sigCache = newSignalHandlerCache()
	return c
}

// Registry exposes the compiler's definition registry.
func (c *Compiler) Registry() *Registry { return c.reg }

// Result is the outcome of one compile: the node tree (owned by the
// caller), the host wirings for every generated component instance, and
// diagnostic counts.
type Result struct {
	Roots    []Node
	Wirings  []*HostWiring
	Warnings int
	Errors   int
}

// Compile runs the full pipeline over one compile unit. It never fails:
// structural problems are repaired, everything else degrades to
// diagnostics plus whatever tree could be built.
func (c *Compiler) Compile(source string) *Result {
	warnsBefore, errsBefore := c.d.Warnings(), c.d.Errors()

	src := Balance(source)

	exp := newExpander(c.reg, c.eval, c.sigCache, c.passFactor, c.d)
	scripts := newScriptPass(c.eval, c.reg, c.scriptCeiling, c.d)

	// scripts at the document root run before expansion, so their output
	// can contain definitions and invocations
	src = scripts.run(src, scriptPassOptions{TopLevelOnly: true, WrapBare: c.wrapBare})
	src = exp.Expand(src)
	// now that structure exists, nested blocks see their invocation
	// context
	src = scripts.run(src, scriptPassOptions{WrapBare: c.wrapBare})

	b := &treeBuilder{c: c, wirings: exp.wirings, lifecycle: newLifecycleQueue()}
	roots := b.build(prepareSource(src), buildScope{parentTag: "document"})

	return &Result{
		Roots:    roots,
		Wirings:  b.attached,
		Warnings: c.d.Warnings() - warnsBefore,
		Errors:   c.d.Errors() - errsBefore,
	}
}

// Expand runs only the macro-expansion rewrite, returning the rewritten
// source. Useful to hosts that cache expanded text, and for verifying the
// rewrite has reached a fixed point.
func (c *Compiler) Expand(source string) string {
	exp := newExpander(c.reg, c.eval, c.sigCache, c.passFactor, c.d)
	return exp.Expand(Balance(source))
}

// buildScope carries the structural context a subtree is built under.
type buildScope struct {
	parentTag string
	slot      string
	component string
}

type treeBuilder struct {
	c         *Compiler
	wirings   map[string]*HostWiring
	lifecycle *lifecycleQueue
	attached  []*HostWiring
}

// build constructs nodes from encoded source. Sibling segments are
// processed left-to-right and child trees complete before a parent's
// lifecycle hooks flush, so hooks always observe a stable subtree.
func (b *treeBuilder) build(encoded string, scope buildScope) []Node {
	segs := segmentEncoded(encoded, b.c.d)
	var nodes []Node
	for _, seg := range segs {
		switch seg.Kind {
		case SegElement:
			nodes = append(nodes, b.buildElement(seg, scope))
		case SegText:
			nodes = append(nodes, &Text{Value: seg.Value})
		case SegRawMarkup:
			nodes = append(nodes, &RawMarkup{Value: seg.Value})
		case SegRawStyle:
			nodes = append(nodes, &Style{Value: seg.Value})
		case SegStyleBlock:
			nodes = append(nodes, &Style{Value: seg.Value, Scoped: true})
		case SegProperty, SegEventBlock, SegFunctionDef:
			b.c.d.Warnf("builder", "%q has no enclosing element, dropped", seg.Name)
		}
	}
	return nodes
}

func (b *treeBuilder) buildElement(seg Segment, scope buildScope) *Element {
	el := newElement(seg.Name)

	kids := segmentEncoded(seg.Value, b.c.d)

	childScope := buildScope{
		parentTag: el.Tag,
		slot:      scope.slot,
		component: scope.component,
	}
	if el.Tag == "slot" || el.Tag == "into" {
		childScope.slot = slotScopeName(el.Tag, kids)
	}
	if def, ok := b.c.reg.Lookup(el.Tag); ok && def.Kind == KindComponent {
		childScope.component = def.ID
	}

	ctx := &qscript.Context{
		Tag:       el.Tag,
		Classes:   el.Classes,
		Parent:    scope.parentTag,
		Slot:      scope.slot,
		Component: childScope.component,
		Vars:      map[string]any{},
	}

	for _, child := range kids {
		switch child.Kind {
		case SegProperty:
			b.applyProperty(el, child, ctx)
		case SegEventBlock:
			name := strings.ToLower(child.Name)
			if readyLifecycleNames[name] {
				b.lifecycle.add(el, child.Value, ctx)
				continue
			}
			h := b.c.handlers.compile(b.c.eval, name, child.Value)
			if el.Handlers == nil {
				el.Handlers = map[string]*Handler{}
			}
			el.Handlers[name] = h
		case SegFunctionDef:
			el.Actions = append(el.Actions, Action{Name: child.Name, Params: child.Params, Body: child.Value})
		case SegElement:
			el.Children = append(el.Children, b.buildElement(child, childScope))
		case SegText:
			el.Children = append(el.Children, &Text{Value: child.Value})
		case SegRawMarkup:
			el.Children = append(el.Children, &RawMarkup{Value: child.Value})
		case SegRawStyle:
			el.Children = append(el.Children, &Style{Value: child.Value})
		case SegStyleBlock:
			el.Children = append(el.Children, &Style{Value: child.Value, Scoped: true})
		}
	}

	if id, ok := el.Attributes[markerInstance]; ok {
		if w, ok := b.wirings[id]; ok {
			b.attached = append(b.attached, w)
		}
	}

	// the subtree is complete; flush this node's lifecycle hooks
	b.lifecycle.flush(el, b.c.eval, b.c.d)
	return el
}

// slotScopeName resolves the slot name a slot or into element puts its
// descendants under: the into carrier's slot property, or the
// placeholder's bare name. An unnamed block falls back to its tag.
func slotScopeName(tag string, kids []Segment) string {
	if tag == "into" {
		for _, k := range kids {
			if k.Kind == SegProperty && strings.EqualFold(k.Name, "slot") {
				return strings.ToLower(k.Value)
			}
		}
		return tag
	}
	for _, k := range kids {
		if k.Kind == SegText && strings.TrimSpace(k.Value) != "" {
			return strings.ToLower(strings.TrimSpace(k.Value))
		}
	}
	return tag
}

func (b *treeBuilder) applyProperty(el *Element, seg Segment, ctx *qscript.Context) {
	name := strings.ToLower(seg.Name)
	switch {
	case seg.IsReadyLifecycle:
		b.lifecycle.add(el, seg.Value, ctx)
	case seg.IsFunction && eventTokenRe.MatchString(name):
		h := b.c.handlers.compile(b.c.eval, name, seg.Value)
		if el.Handlers == nil {
			el.Handlers = map[string]*Handler{}
		}
		el.Handlers[name] = h
	case name == "class":
		for _, cl := range strings.Fields(seg.Value) {
			el.AddClass(cl)
		}
	default:
		el.Attributes[seg.Name] = seg.Value
	}
}
