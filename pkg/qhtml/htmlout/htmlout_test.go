package htmlout

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/qhtml/qhtml-go/pkg/qhtml"
)

func TestRenderFixtures(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "pages.txtar"))
	require.NoError(t, err)
	archive := txtar.Parse(data)

	type fixture struct{ input, want string }
	cases := map[string]*fixture{}
	order := []string{}
	for _, f := range archive.Files {
		name, part, ok := strings.Cut(f.Name, "/")
		require.True(t, ok, "fixture file %q must be <case>/<part>", f.Name)
		fx := cases[name]
		if fx == nil {
			fx = &fixture{}
			cases[name] = fx
			order = append(order, name)
		}
		switch part {
		case "input":
			fx.input = string(f.Data)
		case "want":
			fx.want = strings.TrimSpace(string(f.Data))
		default:
			t.Fatalf("unknown fixture part %q", f.Name)
		}
	}

	for _, name := range order {
		fx := cases[name]
		t.Run(name, func(t *testing.T) {
			c := qhtml.New()
			res := c.Compile(fx.input)
			require.Zero(t, res.Errors, "compile errors for %s", name)
			got := Render(res.Roots)
			assert.Contains(t, got, fx.want)
		})
	}
}

func TestRenderRawMarkupNormalized(t *testing.T) {
	got := Render([]qhtml.Node{&qhtml.RawMarkup{Value: "<b>hi"}})
	assert.Equal(t, "<b>hi</b>", got)
}

func TestRenderEscapesText(t *testing.T) {
	got := Render([]qhtml.Node{&qhtml.Text{Value: `<script>`}})
	assert.Equal(t, "&lt;script&gt;", got)
}

func TestRenderVoidTagWithChildrenFallsBack(t *testing.T) {
	el := &qhtml.Element{
		Tag:        "br",
		Attributes: map[string]string{},
		Children:   []qhtml.Node{&qhtml.Text{Value: "x"}},
	}
	got := Render([]qhtml.Node{el})
	assert.Equal(t, "<br>x</br>", got)
}

func TestPageHoistsRootStyles(t *testing.T) {
	nodes := []qhtml.Node{
		&qhtml.Style{Value: ".a { color: red; }"},
		&qhtml.Text{Value: "body text"},
	}
	page := Page("Home", nodes)

	head := page[:strings.Index(page, "<body>")]
	body := page[strings.Index(page, "<body>"):]
	assert.Contains(t, head, ".a { color: red; }")
	assert.NotContains(t, body, ".a { color: red; }")
	assert.Contains(t, body, "body text")
	assert.Contains(t, head, "<title>Home</title>")
}

func TestPageKeepsScopedStylesInPlace(t *testing.T) {
	nodes := []qhtml.Node{&qhtml.Style{Value: ".b { margin: 0; }", Scoped: true}}
	page := Page("x", nodes)
	body := page[strings.Index(page, "<body>"):]
	assert.Contains(t, body, ".b { margin: 0; }")
}

func TestPageEscapesTitle(t *testing.T) {
	page := Page(`<img>`, nil)
	assert.Contains(t, page, "<title>&lt;img&gt;</title>")
	assert.NotContains(t, page, "<title><img></title>")
}
