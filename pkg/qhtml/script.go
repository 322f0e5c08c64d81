package qhtml

import (
	"regexp"
	"strings"

	"github.com/qhtml/qhtml-go/pkg/qhtml/qscript"
)

const scriptKeyword = "q-script"

// scriptPass finds q-script { ... } blocks, executes their bodies through
// the injected evaluator and substitutes the stringified result back into
// the source. Script failures never abort compilation: errors and
// undefined results are logged and replaced with empty text.
type scriptPass struct {
	eval    qscript.Evaluator
	reg     *Registry
	d       *Diagnostics
	ceiling int // max evaluations per pass, the non-termination guard
}

type scriptPassOptions struct {
	// TopLevelOnly restricts evaluation to blocks whose nearest enclosing
	// brace is the document root. Used before macro expansion, when no
	// component structure exists yet.
	TopLevelOnly bool

	// WrapBare wraps a bare, non-markup-shaped top-level result in a
	// synthetic text { ... } block so it becomes valid markup.
	WrapBare bool
}

func newScriptPass(eval qscript.Evaluator, reg *Registry, ceiling int, d *Diagnostics) *scriptPass {
	if ceiling <= 0 {
		ceiling = 250
	}
	return &scriptPass{eval: eval, reg: reg, d: d, ceiling: ceiling}
}

func (p *scriptPass) run(src string, opts scriptPassOptions) string {
	evaluations := 0
	i := 0
	for {
		at := findStandalone(src, scriptKeyword, i)
		if at < 0 {
			return src
		}
		open := nextNonSpace(src, at+len(scriptKeyword))
		if open >= len(src) || src[open] != '{' {
			i = at + len(scriptKeyword)
			continue
		}
		close := matchBrace(src, open)
		if close < 0 {
			p.d.Errorf("script", "q-script block never closes, ignoring rest of input")
			return src
		}

		stack := ancestryAt(src, at)
		if opts.TopLevelOnly && len(stack) > 0 {
			i = close + 1
			continue
		}

		if evaluations >= p.ceiling {
			p.d.WarnOnce("script-ceiling", "script",
				"script evaluation ceiling (%d) reached, leaving remaining blocks", p.ceiling)
			return src
		}
		evaluations++

		body := src[open+1 : close]
		ctx := p.contextFor(src, stack)
		result, err := p.eval.Evaluate(body, ctx)
		switch {
		case err == qscript.ErrUndefined:
			p.d.Warnf(ctx.Tag, "script produced undefined, substituting empty text")
			result = ""
		case err != nil:
			p.d.Errorf(ctx.Tag, "script failed: %v", err)
			result = ""
		}

		if opts.WrapBare && len(stack) == 0 && result != "" && !looksLikeMarkup(result) {
			result = "text { " + quoteValue(result) + " }"
		}

		src = src[:at] + result + src[close+1:]
		i = at + len(result)
	}
}

// contextFor builds the script invocation context from the enclosing
// brace stack: the nearest opening tag supplies the base tag and class
// list; parent, slot and component ancestors come from walking outward.
// With no live ancestry available at compile time this is the macro-time
// template context.
func (p *scriptPass) contextFor(src string, stack []ancestor) *qscript.Context {
	ctx := &qscript.Context{Vars: map[string]any{}}

	elems := make([]ancestor, 0, len(stack))
	for _, a := range stack {
		if !a.IsProp && a.Token != "" {
			elems = append(elems, a)
		}
	}
	if len(elems) == 0 {
		ctx.Tag = "document"
		return ctx
	}

	tag, classes := splitTagClasses(elems[len(elems)-1].Token)
	ctx.Tag = tag
	ctx.Classes = classes
	if len(elems) > 1 {
		ctx.Parent, _ = splitTagClasses(elems[len(elems)-2].Token)
	}
	for k := len(elems) - 1; k >= 0; k-- {
		base := baseTag(elems[k].Token)
		if ctx.Slot == "" && (base == "slot" || base == "into") {
			if name := enclosingSlotName(src, elems[k], base); name != "" {
				ctx.Slot = name
			} else {
				ctx.Slot = base
			}
		}
		if ctx.Component == "" && p.reg != nil {
			if def, ok := p.reg.Lookup(base); ok && def.Kind == KindComponent {
				ctx.Component = def.ID
			}
		}
	}
	return ctx
}

// enclosingSlotName reads the declared slot name off a slot or into
// ancestor block: the into block's slot property, or the placeholder's
// bare name. Empty when the block declares none.
func enclosingSlotName(src string, a ancestor, base string) string {
	close := matchBrace(src, a.Open)
	if close < 0 {
		close = len(src)
	}
	body := src[a.Open+1 : close]
	items := topLevelItems(body)
	if base == "into" {
		for _, it := range items {
			if it.IsProp && strings.EqualFold(it.Name, "slot") {
				return strings.ToLower(it.propValue(body))
			}
		}
		return ""
	}
	for _, it := range items {
		if it.IsProp {
			continue
		}
		for _, f := range strings.Fields(it.Name) {
			if !strings.EqualFold(f, scriptKeyword) {
				return strings.ToLower(stripOuterQuotes(f))
			}
		}
	}
	return ""
}

var markupShapeRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*\s*[{:]`)

// looksLikeMarkup reports whether a script result already parses as
// markup (a token followed by a brace or colon) rather than stray text.
func looksLikeMarkup(s string) bool {
	return markupShapeRe.MatchString(strings.TrimSpace(s))
}

func quoteValue(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
