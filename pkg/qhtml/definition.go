package qhtml

import (
	"regexp"
	"strings"
)

// DefinitionKind separates components (host-invoked custom elements) from
// templates (inlined at the invocation site).
type DefinitionKind int

const (
	KindComponent DefinitionKind = iota
	KindTemplate
)

// SlotDecl is one slot { name } placeholder declared in a definition
// body. Direct slots sit in the body itself; indirect slots are nested
// inside a sub-component invocation within that body.
type SlotDecl struct {
	Name     string
	IsDirect bool
	Pos      int
}

// SignalDecl is a q-signal declaration. Only components carry signals.
type SignalDecl struct {
	Name   string
	Params []string
}

// SignalHandlerDecl is an onX { ... } body bound to a declared signal.
type SignalHandlerDecl struct {
	SignalName string
	Params     []string
	Body       string
}

// Definition is a collected q-component or q-template block. Definitions
// are the only state that survives a compile call; they live in the
// Registry keyed by lower-cased id.
type Definition struct {
	Kind           DefinitionKind
	ID             string
	TemplateSource string
	Slots          []SlotDecl
	Signals        []SignalDecl
	SignalHandlers []SignalHandlerDecl
	Actions        []Action
}

// TotalSlots reports the number of declared slots across the definition.
func (def *Definition) TotalSlots() int { return len(def.Slots) }

// HasSlot reports whether name resolves to any declared slot.
func (def *Definition) HasSlot(name string) bool {
	name = strings.ToLower(name)
	for _, sd := range def.Slots {
		if strings.ToLower(sd.Name) == name {
			return true
		}
	}
	return false
}

var (
	definitionIDRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
	signalDeclRe   = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_-]*)\s*(?:\(([^)]*)\))?\s*$`)
)

// definitionKinds is ordered: components are collected before templates
// so extraction order never depends on map iteration.
var definitionKinds = []struct {
	keyword string
	kind    DefinitionKind
}{
	{"q-component", KindComponent},
	{"q-template", KindTemplate},
}

// collectDefinitions extracts every q-component / q-template block found
// at the document root of src, registers the parsed definitions, and
// returns src with the definition blocks removed. Nested occurrences stay
// where they are. Malformed definitions are logged and skipped; their
// text is still removed so later passes never see them.
func collectDefinitions(src string, reg *Registry, d *Diagnostics) string {
	for _, dk := range definitionKinds {
		keyword, kind := dk.keyword, dk.kind
		from := 0
		for {
			at := findStandalone(src, keyword, from)
			if at < 0 {
				break
			}
			if braceDepthAt(src, at) > 0 {
				from = at + len(keyword)
				continue
			}
			from = at
			idStart := nextNonSpace(src, at+len(keyword))
			idEnd := idStart
			for idEnd < len(src) && isIdentByte(src[idEnd]) {
				idEnd++
			}
			id := src[idStart:idEnd]

			open := nextNonSpace(src, idEnd)
			if open >= len(src) || src[open] != '{' {
				d.Errorf(id, "%s %q has no body, ignoring", keyword, id)
				src = src[:at] + src[min(idEnd, len(src)):]
				continue
			}
			close := matchBrace(src, open)
			if close < 0 {
				d.Errorf(id, "%s %q body never closes, ignoring rest of input", keyword, id)
				src = src[:at]
				break
			}
			body := src[open+1 : close]
			src = src[:at] + src[close+1:]

			switch {
			case id == "":
				d.Errorf(keyword, "definition is missing an id, skipped")
				continue
			case !definitionIDRe.MatchString(id):
				d.Errorf(id, "invalid definition id %q, skipped", id)
				continue
			case kind == KindComponent && !strings.Contains(id, "-"):
				// custom hosts need a hyphenated id on every platform we
				// target; templates have no such restriction
				d.Errorf(id, "component id %q is not a valid custom-host id (needs a hyphen), skipped", id)
				continue
			}

			def := parseDefinitionBody(id, kind, body, d)
			reg.Register(def, d)
		}
	}
	return src
}

// parseDefinitionBody splits a definition body into signal declarations,
// signal handlers, action functions and the cleaned template source.
func parseDefinitionBody(id string, kind DefinitionKind, body string, d *Diagnostics) *Definition {
	def := &Definition{Kind: kind, ID: id}

	var remove []rawItem
	items := topLevelItems(body)

	// signals first so handler extraction can match against them
	for _, it := range items {
		if !it.Bare || !strings.HasPrefix(it.Name, "q-signal") {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(it.Name, "q-signal"))
		if kind == KindTemplate {
			d.Errorf(id, "templates cannot declare signals, dropping %q", rest)
			remove = append(remove, it)
			continue
		}
		m := signalDeclRe.FindStringSubmatch(rest)
		if m == nil {
			d.Errorf(id, "malformed q-signal declaration %q, dropped", rest)
			remove = append(remove, it)
			continue
		}
		decl := SignalDecl{Name: m[1], Params: splitParams(m[2])}
		dup := false
		for _, existing := range def.Signals {
			if strings.EqualFold(existing.Name, decl.Name) {
				d.Errorf(id, "duplicate signal %q, keeping the first declaration", decl.Name)
				dup = true
				break
			}
		}
		if !dup {
			def.Signals = append(def.Signals, decl)
		}
		remove = append(remove, it)
	}

	for _, it := range items {
		switch {
		case it.Bare:
			// handled above or plain text, keep
		case it.isFunctionItem():
			m := functionDefRe.FindStringSubmatch(it.Name)
			def.Actions = append(def.Actions, Action{
				Name:   m[1],
				Params: splitParams(m[2]),
				Body:   it.body(body),
			})
			remove = append(remove, it)
		case it.isEventItem():
			if decl, ok := def.signalFor(it.Name); ok {
				def.SignalHandlers = append(def.SignalHandlers, SignalHandlerDecl{
					SignalName: decl.Name,
					Params:     decl.Params,
					Body:       it.body(body),
				})
				remove = append(remove, it)
			}
			// an onX block for a non-signal stays in the template as an
			// ordinary event handler
		case it.IsProp && (strings.EqualFold(it.Name, "id") || strings.EqualFold(it.Name, "slots")):
			// legacy properties from the pre-slot syntax, stripped
			remove = append(remove, it)
		}
	}

	def.TemplateSource = strings.TrimSpace(spliceOut(body, mergeSorted(remove)))
	return def
}

// signalFor matches an onX event token against the declared signals,
// case-insensitively.
func (def *Definition) signalFor(eventToken string) (SignalDecl, bool) {
	name := strings.ToLower(strings.TrimPrefix(strings.ToLower(eventToken), "on"))
	for _, s := range def.Signals {
		if strings.ToLower(s.Name) == name {
			return s, true
		}
	}
	return SignalDecl{}, false
}

// mergeSorted orders removal spans by start; topLevelItems already yields
// source order per scan, but signals and the second pass interleave.
func mergeSorted(items []rawItem) []rawItem {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].Start < items[j-1].Start; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
	return items
}
