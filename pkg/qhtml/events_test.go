package qhtml

import (
	"testing"

	"github.com/qhtml/qhtml-go/pkg/qhtml/qscript"
)

func TestSanitizeBody(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"collapses whitespace", "a  =\n\t 1", "a = 1"},
		{"trims ends", "  x  ", "x"},
		{"preserves string spacing", `concat("a  b",  "c")`, `concat("a  b", "c")`},
		{"preserves template literal", "x = `a  b`", "x = `a  b`"},
		{"drops line comment", "x // note\n+ 1", "x + 1"},
		{"drops block comment", "x /* note */ + 1", "x + 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sanitizeBody(tc.input); got != tc.want {
				t.Errorf("sanitizeBody(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestHandlerCacheDeduplicates(t *testing.T) {
	cache := newHandlerCache()
	eval := qscript.NewNativeEvaluator()

	h1 := cache.compile(eval, "onclick", "doThing( x )")
	h2 := cache.compile(eval, "onclick", "doThing(  x )\n")
	if h1 != h2 {
		t.Error("reformatted copies of one body must share a compilation")
	}
	if cache.size() != 1 {
		t.Errorf("cache size = %d, want 1", cache.size())
	}

	h3 := cache.compile(eval, "onclick", "doOther(x)")
	if h3 == h1 {
		t.Error("distinct bodies must not collide")
	}
}

func TestHandlerInvokeInjectsAliases(t *testing.T) {
	cache := newHandlerCache()
	eval := qscript.NewNativeEvaluator()
	h := cache.compile(eval, "onclick", `concat(parent, "/", slot, "/", component)`)

	ctx := &qscript.Context{
		Parent:    "div",
		Slot:      "main",
		Component: "my-card",
		Vars:      map[string]any{"slot": "shadowed"},
	}
	got, err := h.Invoke(ctx)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "div/main/my-card" {
		t.Errorf("got %q", got)
	}

	// the caller's own binding is restored, the injected ones are gone
	if v, ok := ctx.Vars["slot"]; !ok || v != "shadowed" {
		t.Errorf("prior slot binding not restored: %v", ctx.Vars)
	}
	if _, ok := ctx.Vars["parent"]; ok {
		t.Errorf("injected alias leaked: %v", ctx.Vars)
	}
}

func TestHandlerInvokeNilContext(t *testing.T) {
	cache := newHandlerCache()
	h := cache.compile(qscript.NewNativeEvaluator(), "onclick", `"ok"`)
	got, err := h.Invoke(nil)
	if err != nil || got != "ok" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestLifecycleFlushRunsOnceAfterSubtree(t *testing.T) {
	c := New()
	res := c.Compile(`div { onReady: { marker = "ran"; marker }; span { } }`)
	if res.Errors != 0 {
		t.Fatalf("unexpected errors: %d", res.Errors)
	}
	el := res.Roots[0].(*Element)
	if _, ok := el.Attributes["onReady"]; ok {
		t.Error("lifecycle property leaked into attributes")
	}
	if _, ok := el.Handlers["onready"]; ok {
		t.Error("lifecycle property misread as event handler")
	}
	if len(el.Children) != 1 {
		t.Errorf("children = %+v", el.Children)
	}
}

func TestLifecycleBlockFormQueuesHook(t *testing.T) {
	c := New()
	res := c.Compile(`div { onReady { marker = "ran"; marker } span { } }`)
	if res.Errors != 0 {
		t.Fatalf("unexpected errors: %d", res.Errors)
	}
	el := res.Roots[0].(*Element)
	if _, ok := el.Handlers["onready"]; ok {
		t.Error("block-form lifecycle misread as event handler")
	}
	if len(el.Children) != 1 {
		t.Errorf("children = %+v", el.Children)
	}
}

func TestLifecycleBlockFormFailureIsLoggedNotFatal(t *testing.T) {
	c := New()
	res := c.Compile(`div { onLoaded { nosuchfn() } }`)
	if res.Errors == 0 {
		t.Error("lifecycle failure must be reported")
	}
	if len(res.Roots) != 1 {
		t.Errorf("tree must still build: %+v", res.Roots)
	}
}

func TestLifecycleFailureIsLoggedNotFatal(t *testing.T) {
	c := New()
	res := c.Compile(`div { onLoad: { nosuchfn() } }`)
	if res.Errors == 0 {
		t.Error("lifecycle failure must be reported")
	}
	if len(res.Roots) != 1 {
		t.Errorf("tree must still build: %+v", res.Roots)
	}
}

func TestEventBlockBecomesHandler(t *testing.T) {
	c := New()
	res := c.Compile(`button { onClick { "clicked" } }`)
	el := res.Roots[0].(*Element)
	h, ok := el.Handlers["onclick"]
	if !ok {
		t.Fatalf("handlers = %+v", el.Handlers)
	}
	got, err := h.Invoke(&qscript.Context{})
	if err != nil || got != "clicked" {
		t.Errorf("Invoke = %q, %v", got, err)
	}
}

func TestEventPropertyBecomesHandler(t *testing.T) {
	c := New()
	res := c.Compile(`button { onClick: { "clicked" }; }`)
	el := res.Roots[0].(*Element)
	if _, ok := el.Handlers["onclick"]; !ok {
		t.Errorf("property-form handler missing: %+v", el.Handlers)
	}
}
