package qhtml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandTemplateSlotFill(t *testing.T) {
	c := New()
	out := c.Expand(`
q-template row { div.row { slot { content } } }
row { into { slot: "content"; text { "hi" } } }
`)
	assert.Contains(t, out, "div.row")
	assert.Contains(t, out, `text { "hi" }`)
	assert.NotContains(t, out, "into")
	assert.NotContains(t, out, "q-template")
}

func TestExpandTemplateShorthandFill(t *testing.T) {
	c := New()
	out := c.Expand(`
q-template badge { span.badge { slot { label } } }
badge { label { text { "new" } } }
`)
	assert.Contains(t, out, "span.badge")
	assert.Contains(t, out, `text { "new" }`)
	assert.NotContains(t, out, "label {")
}

func TestExpandSingleSlotAutoWrap(t *testing.T) {
	c := New()
	out := c.Expand(`
q-template wrap { section { slot { body } } }
wrap { p { text { "x" } } h2 { text { "y" } } }
`)
	require.Contains(t, out, "section {")
	assert.Contains(t, out, `p { text { "x" } }`)
	assert.Contains(t, out, `h2 { text { "y" } }`)
	// projected content lands inside the section, not after it
	secBody := out[strings.Index(out, "section {"):]
	assert.True(t, strings.Index(secBody, "p {") < strings.Index(secBody, "}"),
		"content must sit inside the wrapper")
}

func TestExpandMultipleContributionsKeepSourceOrder(t *testing.T) {
	c := New()
	out := c.Expand(`
q-template list { ul { slot { items } } }
list {
	into { slot: "items"; li { text { "first" } } }
	into { slot: "items"; li { text { "second" } } }
}
`)
	first := strings.Index(out, "first")
	second := strings.Index(out, "second")
	require.True(t, first >= 0 && second >= 0, "contributions lost: %q", out)
	assert.Less(t, first, second)
}

func TestExpandUnknownSlotDropsContribution(t *testing.T) {
	c := New()
	src := `
q-template wrap { section { slot { body } } }
wrap { into { slot: "nope"; text { "y" } } }
`
	res := c.Compile(src)
	assert.Greater(t, res.Errors, 0)
	require.Len(t, res.Roots, 1)
	el, ok := res.Roots[0].(*Element)
	require.True(t, ok)
	assert.Equal(t, "section", el.Tag)
	assert.Empty(t, el.Children, "dropped contribution must not be projected")
}

func TestExpandInvocationClassesAttach(t *testing.T) {
	c := New()
	out := c.Expand(`
q-template note { aside { slot { body } } }
note.warning { title: "careful"; text { "watch out" } }
`)
	assert.Contains(t, out, "aside.warning")
	assert.Contains(t, out, `title: "careful"`)
}

func TestExpandComponentShape(t *testing.T) {
	c := New()
	out := c.Expand(`
q-component my-card {
	q-signal picked(item);
	div { slot { main } }
	onPicked { item }
}
my-card.fancy { title: "T"; into { slot: "main"; text { "hi" } } }
`)
	assert.Contains(t, out, "my-card.fancy {")
	assert.Contains(t, out, "q-component: my-card;")
	assert.Contains(t, out, "q-instance:")
	assert.Contains(t, out, `into { slot: "main";`)
	assert.Contains(t, out, `title: "T"`)
}

func TestExpandIsIdempotentOnComponentShapes(t *testing.T) {
	c := New()
	out := c.Expand(`
q-component my-card { div { slot { main } } }
my-card { text { "x" } }
`)
	again := c.Expand(out)
	assert.Equal(t, out, again, "generated instances must not re-expand")
}

func TestExpandSkipsClassSuffixMatches(t *testing.T) {
	c := New()
	out := c.Expand(`
q-template row { div { slot { c } } }
section.row { text { "plain" } }
`)
	assert.Contains(t, out, "section.row", "class suffix mistaken for an invocation")
}

func TestExpandAfterMultibyteText(t *testing.T) {
	c := New()
	out := c.Expand(`
q-template row { div.row { slot { s } } }
text { "İstanbul" }
row { into { slot: "s"; text { "x" } } }
`)
	assert.Contains(t, out, "div.row", "invocation after multibyte text not expanded")
	assert.NotContains(t, out, "into {")
	assert.Contains(t, out, `text { "İstanbul" }`)
}

func TestExpandInvocationCaseInsensitive(t *testing.T) {
	c := New()
	out := c.Expand(`
q-template row { div.row { slot { s } } }
ROW { into { slot: "s"; text { "x" } } }
`)
	assert.Contains(t, out, "div.row")
	assert.NotContains(t, out, "ROW {")
}

func TestExpandSlotTargetedPropertyRejected(t *testing.T) {
	c := New()
	res := c.Compile(`
q-component my-card { div { slot { main } } }
my-card { header.slot: "x"; }
`)
	assert.Greater(t, res.Errors, 0)
}

func TestExpandMutualRecursionTerminates(t *testing.T) {
	c := New()
	res := c.Compile(`
q-template ping { pong { } }
q-template pong { ping { } }
ping { }
`)
	assert.Greater(t, res.Warnings, 0, "pass limit must be reported")
	assert.NotNil(t, res.Roots)
}

func TestExpandNestedComponentsAdvancePerPass(t *testing.T) {
	c := New()
	out := c.Expand(`
q-template inner { em { slot { s } } }
q-template outer { div { inner { into { slot: "s"; slot { s } } } } }
outer { into { slot: "s"; text { "deep" } } }
`)
	assert.Contains(t, out, "em {")
	assert.Contains(t, out, `text { "deep" }`)
}

func TestExpandWiringsCarrySignals(t *testing.T) {
	c := New()
	res := c.Compile(`
q-component my-card {
	q-signal picked(item);
	div { slot { main } }
	onPicked { item }
}
my-card { text { "x" } }
`)
	require.Len(t, res.Wirings, 1)
	w := res.Wirings[0]
	assert.Equal(t, "my-card", w.ComponentID)
	assert.NotEmpty(t, w.InstanceID)
	require.Len(t, w.Signals, 1)
	assert.Equal(t, "picked", w.Signals[0].Name)
	assert.NotNil(t, w.Handlers["picked"])
}

func TestExpandDeterministicInstanceIDs(t *testing.T) {
	seq := 0
	c := New()
	exp := newExpander(c.reg, c.eval, c.sigCache, 3, nopDiagnostics())
	exp.newID = func() string { seq++; return "id-1" }

	out := exp.Expand(`
q-component my-card { div { slot { main } } }
my-card { }
`)
	assert.Contains(t, out, "q-instance: id-1;")
	assert.Equal(t, 1, seq)
	assert.NotNil(t, exp.wirings["id-1"])
}
