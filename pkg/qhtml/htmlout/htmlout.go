// Package htmlout renders a compiled qHTML node tree to HTML text. It
// fills the external-renderer role for the CLI and dev server: a real
// host platform would materialize nodes into its own render tree instead.
package htmlout

import (
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/qhtml/qhtml-go/pkg/qhtml"
)

var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// Render writes the tree as an HTML fragment.
func Render(nodes []qhtml.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		writeNode(&b, n)
	}
	return b.String()
}

// Write renders the tree to w.
func Write(w io.Writer, nodes []qhtml.Node) error {
	_, err := io.WriteString(w, Render(nodes))
	return err
}

// Page wraps a rendered fragment in a minimal HTML document, hoisting
// root-level unscoped style nodes into the head.
func Page(title string, nodes []qhtml.Node) string {
	var styles, body strings.Builder
	for _, n := range nodes {
		if s, ok := n.(*qhtml.Style); ok && !s.Scoped {
			styles.WriteString(strings.TrimSpace(s.Value))
			styles.WriteByte('\n')
			continue
		}
		writeNode(&body, n)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title>\n")
	if styles.Len() > 0 {
		b.WriteString("<style>\n")
		b.WriteString(styles.String())
		b.WriteString("\n</style>\n")
	}
	b.WriteString("</head>\n<body>\n")
	b.WriteString(body.String())
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}

func writeNode(b *strings.Builder, n qhtml.Node) {
	switch x := n.(type) {
	case *qhtml.Element:
		writeElement(b, x)
	case *qhtml.Text:
		b.WriteString(html.EscapeString(x.Value))
	case *qhtml.RawMarkup:
		b.WriteString(normalizeFragment(x.Value))
	case *qhtml.Style:
		// Page hoists unscoped styles into the head; rendered as a bare
		// fragment they appear in place
		b.WriteString("<style>")
		b.WriteString(x.Value)
		b.WriteString("</style>")
	}
}

func writeElement(b *strings.Builder, el *qhtml.Element) {
	b.WriteByte('<')
	b.WriteString(el.Tag)
	if len(el.Classes) > 0 {
		b.WriteString(` class="`)
		b.WriteString(html.EscapeString(strings.Join(el.Classes, " ")))
		b.WriteByte('"')
	}
	keys := make([]string, 0, len(el.Attributes))
	for k := range el.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(el.Attributes[k]))
		b.WriteByte('"')
	}
	if voidTags[el.Tag] && len(el.Children) == 0 {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	for _, c := range el.Children {
		writeNode(b, c)
	}
	b.WriteString("</")
	b.WriteString(el.Tag)
	b.WriteByte('>')
}

// normalizeFragment round-trips raw author HTML through the x/net/html
// fragment parser, so malformed markup degrades the same way a browser
// would instead of corrupting the surrounding output.
func normalizeFragment(raw string) string {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(raw), body)
	if err != nil {
		return raw
	}
	var b strings.Builder
	for _, n := range nodes {
		if err := html.Render(&b, n); err != nil {
			return raw
		}
	}
	return b.String()
}
