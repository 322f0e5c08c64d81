package qhtml

import "strings"

// NodeType identifies the type of a compiled node.
type NodeType int

const (
	NodeElement NodeType = iota
	NodeText
	NodeRawMarkup
	NodeStyle
)

// Node is one node of the compiled output tree. The tree is owned
// exclusively by the caller once Compile returns.
type Node interface {
	Type() NodeType
}

// Element is a renderable element with a tag, classes, attributes and
// children. Event handlers and action functions are carried alongside the
// attributes so an external renderer can attach them to the live instance.
type Element struct {
	Tag        string
	Classes    []string
	Attributes map[string]string
	Children   []Node

	// Handlers maps event names ("onclick") to their compiled bodies.
	Handlers map[string]*Handler

	// Actions holds function definitions declared directly on this element.
	Actions []Action
}

func (e *Element) Type() NodeType { return NodeElement }

// Text is a literal text node.
type Text struct {
	Value string
}

func (t *Text) Type() NodeType { return NodeText }

// RawMarkup carries an html { ... } block verbatim. The renderer decides
// how (and whether) to trust it.
type RawMarkup struct {
	Value string
}

func (r *RawMarkup) Type() NodeType { return NodeRawMarkup }

// Style carries the contents of a css { ... } or style { ... } block.
type Style struct {
	Value string

	// Scoped is set for style { ... } blocks, which the renderer should
	// scope to the enclosing element rather than hoist to the document.
	Scoped bool
}

func (s *Style) Type() NodeType { return NodeStyle }

// Action is a function { ... } definition attached to an element or to a
// component definition.
type Action struct {
	Name   string
	Params []string
	Body   string
}

func newElement(tagToken string) *Element {
	tag, classes := splitTagClasses(tagToken)
	return &Element{
		Tag:        tag,
		Classes:    classes,
		Attributes: map[string]string{},
	}
}

// splitTagClasses splits "div.red.big" into the tag and its class
// shorthand suffixes. A leading dot means an implicit div.
func splitTagClasses(token string) (string, []string) {
	parts := strings.Split(token, ".")
	tag := strings.TrimSpace(parts[0])
	if tag == "" {
		tag = "div"
	}
	var classes []string
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p != "" {
			classes = append(classes, p)
		}
	}
	return tag, classes
}

// AddClass appends a class if not already present; class lists behave as
// ordered sets so structural and dynamic classes merge instead of
// duplicating.
func (e *Element) AddClass(class string) {
	for _, c := range e.Classes {
		if c == class {
			return
		}
	}
	e.Classes = append(e.Classes, class)
}

// Walk visits n and all its descendants depth-first, children
// left-to-right.
func Walk(n Node, visit func(Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	if el, ok := n.(*Element); ok {
		for _, c := range el.Children {
			Walk(c, visit)
		}
	}
}
