package qhtml

import (
	"strings"
	"testing"
)

func TestBalance(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"already balanced", "div { span { } }", "div { span { } }"},
		{"missing one closer", "div { span {", "div { span {}}"},
		{"missing several closers", "a { b { c {", "a { b { c {}}}"},
		{"stray closer at root", "} div { }", " div { }"},
		{"stray closer between elements", "div { } } span { }", "div { }  span { }"},
		{"empty input", "", ""},
		{"only closers", "}}}", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Balance(tc.input)
			if got != tc.want {
				t.Errorf("Balance(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestBalanceIdempotent(t *testing.T) {
	inputs := []string{
		"div { span {",
		"}} p { text { \"x\" }",
		"a { b } } { c",
		strings.Repeat("{", 20),
		strings.Repeat("}", 20) + "div {",
	}
	for _, in := range inputs {
		once := Balance(in)
		twice := Balance(once)
		if once != twice {
			t.Errorf("Balance not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestBalanceDepthNeverNegative(t *testing.T) {
	out := Balance("} } div { } }")
	depth := 0
	for i := 0; i < len(out); i++ {
		switch out[i] {
		case '{':
			depth++
		case '}':
			depth--
		}
		if depth < 0 {
			t.Fatalf("running depth went negative in %q", out)
		}
	}
	if depth != 0 {
		t.Errorf("result %q ends at depth %d, want 0", out, depth)
	}
}
