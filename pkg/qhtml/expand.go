package qhtml

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/qhtml/qhtml-go/pkg/qhtml/qscript"
)

// Reserved marker properties stamped onto generated component instances.
// q-component carries the component identity; q-instance marks the site
// as a generated instance (the idempotence guard) and keys its HostWiring.
const (
	markerComponent = "q-component"
	markerInstance  = "q-instance"
)

// expander performs the source-to-source macro rewrite: definition
// collection, slot classification and iterated invocation rewriting to a
// fixed point bounded by passFactor × definitionCount.
type expander struct {
	reg        *Registry
	d          *Diagnostics
	eval       qscript.Evaluator
	sigCache   *signalHandlerCache
	passFactor int
	wirings    map[string]*HostWiring
	newID      func() string
}

func newExpander(reg *Registry, eval qscript.Evaluator, sigCache *signalHandlerCache, passFactor int, d *Diagnostics) *expander {
	if passFactor <= 0 {
		passFactor = 3
	}
	return &expander{
		reg:        reg,
		d:          d,
		eval:       eval,
		sigCache:   sigCache,
		passFactor: passFactor,
		wirings:    map[string]*HostWiring{},
		newID:      func() string { return uuid.NewString() },
	}
}

// Expand rewrites src until no definition block and no resolvable
// invocation remains, or the pass bound is hit. Exceeding the bound is
// logged once and leaves residual invocations unexpanded, which bounds
// the cost of mutually recursive definitions.
func (e *expander) Expand(src string) string {
	src = collectDefinitions(src, e.reg, e.d)
	defs := e.reg.All()
	if len(defs) == 0 {
		return src
	}
	for _, def := range defs {
		classifySlots(def, e.reg)
	}

	limit := max(1, e.passFactor*len(defs))
	for pass := 0; pass < limit; pass++ {
		changed := false
		for _, def := range defs {
			var c bool
			src, c = e.rewriteInvocations(src, def)
			changed = changed || c
		}
		if !changed {
			return src
		}
		if pass == limit-1 {
			e.d.WarnOnce("expand-pass-limit", "expander",
				"macro expansion pass limit (%d) reached, leaving residual invocations unexpanded", limit)
		}
	}
	return src
}

// rewriteInvocations rewrites every invocation of def found in src during
// one pass. Generated instances are skipped via the q-instance marker;
// new text is not rescanned within the same pass, so recursion only
// advances one level per pass and stays inside the bound.
func (e *expander) rewriteInvocations(src string, def *Definition) (string, bool) {
	changed := false
	i := 0
	for {
		at := findStandaloneFold(src, def.ID, i)
		if at < 0 {
			break
		}
		if at > 0 && src[at-1] == '.' {
			// class suffix of another tag, not an invocation
			i = at + len(def.ID)
			continue
		}
		tokEnd := at + len(def.ID)
		for tokEnd < len(src) && isTokenByte(src[tokEnd]) {
			tokEnd++
		}
		suffix := src[at+len(def.ID) : tokEnd]
		if suffix != "" && suffix[0] != '.' {
			i = tokEnd
			continue
		}
		open := nextNonSpace(src, tokEnd)
		if open >= len(src) || src[open] != '{' {
			i = tokEnd
			continue
		}
		close := matchBrace(src, open)
		if close < 0 {
			i = tokEnd
			continue
		}
		body := src[open+1 : close]
		if hasInstanceMarker(body) {
			i = close + 1
			continue
		}

		var classes []string
		for _, c := range strings.Split(suffix, ".") {
			if c = strings.TrimSpace(c); c != "" {
				classes = append(classes, c)
			}
		}

		replacement := e.rewriteSite(def, classes, body)
		src = src[:at] + replacement + src[close+1:]
		changed = true
		i = at + len(replacement)
	}
	return src, changed
}

func hasInstanceMarker(body string) bool {
	if !strings.Contains(body, markerInstance) {
		return false
	}
	for _, it := range topLevelItems(body) {
		if it.IsProp && it.Name == markerInstance {
			return true
		}
	}
	return false
}

// rewriteSite classifies one invocation body and produces either an
// inlined template expansion or a component host-invocation shape.
func (e *expander) rewriteSite(def *Definition, classes []string, body string) string {
	items := topLevelItems(body)

	var attrs, handlers, leftovers []rawItem
	var contribs []slotContribution
	explicitSlotUse := false

	for _, it := range items {
		switch {
		case it.IsProp:
			if strings.HasSuffix(strings.ToLower(it.Name), ".slot") {
				e.d.Errorf(def.ID, "property %q targets a non-slot location, dropped", it.Name)
				continue
			}
			attrs = append(attrs, it)
		case it.isEventItem() || it.isFunctionItem():
			handlers = append(handlers, it)
		case !it.Bare && strings.EqualFold(it.Name, "into"):
			explicitSlotUse = true
			if c, ok := e.parseIntoBlock(def, it, body); ok {
				contribs = append(contribs, c)
			}
		case !it.Bare && def.HasSlot(baseTag(it.Name)):
			explicitSlotUse = true
			contribs = append(contribs, slotContribution{
				Target:  baseTag(it.Name),
				Content: it.body(body),
				Pos:     it.Start,
			})
		default:
			leftovers = append(leftovers, it)
		}
	}

	// single-slot auto-wrap: with exactly one declared slot and no
	// explicit slot markup, everything that is not a handler is projected
	// into that slot
	if def.TotalSlots() == 1 && !explicitSlotUse && len(leftovers) > 0 {
		var b strings.Builder
		for _, it := range leftovers {
			b.WriteString(strings.TrimSpace(it.whole(body)))
			b.WriteByte(' ')
		}
		contribs = append(contribs, slotContribution{
			Target:  def.Slots[0].Name,
			Content: strings.TrimSpace(b.String()),
			Pos:     leftovers[0].Start,
		})
		leftovers = nil
	}

	// resolve targets against the definition's slot classification
	resolved := contribs[:0]
	for _, c := range contribs {
		name, err := def.resolveSlot(c.Target)
		if err != nil {
			e.d.Errorf(def.ID, "dropping slot contribution: %v", err)
			continue
		}
		c.Target = name
		resolved = append(resolved, c)
	}
	sort.SliceStable(resolved, func(i, j int) bool { return resolved[i].Pos < resolved[j].Pos })

	if def.Kind == KindTemplate {
		return e.expandTemplate(def, classes, attrs, handlers, leftovers, resolved, body)
	}
	return e.componentShape(def, classes, attrs, handlers, leftovers, resolved, body)
}

// parseIntoBlock reads an explicit into { slot: "name"; ... } assignment.
// A missing or repeated slot target drops the whole contribution.
func (e *expander) parseIntoBlock(def *Definition, it rawItem, outer string) (slotContribution, bool) {
	inner := it.body(outer)
	var slotProps []rawItem
	for _, sub := range topLevelItems(inner) {
		if sub.IsProp && strings.EqualFold(sub.Name, "slot") {
			slotProps = append(slotProps, sub)
		}
	}
	switch {
	case len(slotProps) == 0:
		e.d.Errorf(def.ID, "into block has no slot target, dropped")
		return slotContribution{}, false
	case len(slotProps) > 1:
		e.d.Errorf(def.ID, "into block has %d slot targets, dropped", len(slotProps))
		return slotContribution{}, false
	}
	return slotContribution{
		Target:  slotProps[0].propValue(inner),
		Content: strings.TrimSpace(spliceOut(inner, slotProps)),
		Pos:     it.Start,
	}, true
}

// expandTemplate substitutes resolved content into the definition's slot
// placeholders and inlines the result at the invocation site. Extra
// classes, attributes and handlers are copied onto the expansion's first
// markable child.
func (e *expander) expandTemplate(def *Definition, classes []string, attrs, handlers, leftovers []rawItem, contribs []slotContribution, body string) string {
	filled := map[string][]string{}
	for _, c := range contribs {
		key := strings.ToLower(c.Target)
		filled[key] = append(filled[key], c.Content)
	}

	out := substituteSlots(def.TemplateSource, filled)
	out = attachToFirstChild(out, classes, emitItems(attrs, body)+emitItems(handlers, body), e.d, def.ID)

	if len(leftovers) > 0 {
		out = out + " " + emitItems(leftovers, body)
	}
	return strings.TrimSpace(out)
}

// componentShape rewrites an invocation into the host-invocation form:
// reserved markers, root attributes, slot-carrier children and the
// macro-time ready wiring. The template body itself is expanded lazily by
// the renderer from the registered definition, so slot placeholders stay
// stable anchors for later content updates.
func (e *expander) componentShape(def *Definition, classes []string, attrs, handlers, leftovers []rawItem, contribs []slotContribution, body string) string {
	instanceID := e.newID()
	wiring := &HostWiring{
		ComponentID: def.ID,
		InstanceID:  instanceID,
		Signals:     def.Signals,
		Handlers:    map[string]*Handler{},
		Actions:     def.Actions,
	}
	for _, h := range def.SignalHandlers {
		wiring.Handlers[strings.ToLower(h.SignalName)] = e.sigCache.compile(e.eval, h)
	}
	e.wirings[instanceID] = wiring

	var b strings.Builder
	b.WriteString(def.ID)
	for _, c := range classes {
		b.WriteByte('.')
		b.WriteString(c)
	}
	b.WriteString(" { ")
	b.WriteString(markerComponent + ": " + def.ID + "; ")
	b.WriteString(markerInstance + ": " + instanceID + "; ")
	b.WriteString(emitItems(attrs, body))
	b.WriteString(emitItems(handlers, body))
	for _, c := range contribs {
		b.WriteString("into { slot: \"" + c.Target + "\"; " + c.Content + " } ")
	}
	b.WriteString(emitItems(leftovers, body))
	b.WriteString("}")
	return b.String()
}

// substituteSlots replaces every slot { name } placeholder with the
// joined contributions for that name; unfilled slots become empty.
func substituteSlots(src string, filled map[string][]string) string {
	var b strings.Builder
	b.Grow(len(src))
	i := 0
	for {
		at := findStandalone(src, "slot", i)
		if at < 0 {
			b.WriteString(src[i:])
			break
		}
		open := nextNonSpace(src, at+len("slot"))
		if open >= len(src) || src[open] != '{' {
			b.WriteString(src[i : at+len("slot")])
			i = at + len("slot")
			continue
		}
		close := matchBrace(src, open)
		if close < 0 {
			b.WriteString(src[i:])
			break
		}
		name := slotPlaceholderName(src[open+1 : close])
		b.WriteString(src[i:at])
		b.WriteString(strings.Join(filled[name], " "))
		i = close + 1
	}
	return b.String()
}

// attachToFirstChild copies extra classes and raw property/handler text
// onto the first markable (element) child of expansion.
func attachToFirstChild(expansion string, classes []string, extra string, d *Diagnostics, id string) string {
	if len(classes) == 0 && strings.TrimSpace(extra) == "" {
		return expansion
	}
	for _, it := range topLevelItems(expansion) {
		if it.IsProp || it.Bare || it.isEventItem() || it.isFunctionItem() {
			continue
		}
		if reservedBlockName(baseTag(it.Name)) {
			continue
		}
		tag := it.Name
		for _, c := range classes {
			tag += "." + c
		}
		return expansion[:it.Start] + tag + " { " + extra +
			expansion[it.BodyStart:it.BodyEnd] + " }" + expansion[it.End:]
	}
	d.Infof(id, "expansion has no markable child for invocation classes/attributes")
	return expansion
}

func reservedBlockName(name string) bool {
	switch name {
	case "html", "css", "text", "style", "slot", "into":
		return true
	}
	return false
}

func baseTag(token string) string {
	if i := strings.IndexByte(token, '.'); i >= 0 {
		return token[:i]
	}
	return token
}

// emitItems re-emits raw items verbatim, ensuring property items keep a
// terminating semicolon.
func emitItems(items []rawItem, src string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	for _, it := range items {
		text := strings.TrimSpace(it.whole(src))
		b.WriteString(text)
		if it.IsProp && !strings.HasSuffix(text, ";") {
			b.WriteByte(';')
		}
		b.WriteByte(' ')
	}
	return b.String()
}
