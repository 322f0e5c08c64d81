package qscript

import (
	"testing"
)

func TestEvaluate(t *testing.T) {
	ctx := &Context{
		Tag:       "div",
		Classes:   []string{"red", "big"},
		Parent:    "section",
		Slot:      "main",
		Component: "my-card",
		Vars:      map[string]any{"count": 3.0, "name": "qhtml"},
	}

	cases := []struct {
		name string
		body string
		want string
	}{
		{"integer arithmetic", "1 + 1", "2"},
		{"precedence", "2 + 3 * 4", "14"},
		{"parens", "(2 + 3) * 4", "20"},
		{"division", "10 / 4", "2.5"},
		{"modulo", "7 % 3", "1"},
		{"unary minus", "-3 + 5", "2"},
		{"string concat", `"a" + "b"`, "ab"},
		{"number to string concat", `"n=" + 2`, "n=2"},
		{"comparison", "1 < 2", "true"},
		{"loose equality", `1 == "1"`, "true"},
		{"inequality", `"a" != "b"`, "true"},
		{"logic and", "true && false", "false"},
		{"logic or", "false || true", "true"},
		{"not", "!false", "true"},
		{"ternary", `1 < 2 ? "yes" : "no"`, "yes"},
		{"nested ternary", `false ? "a" : true ? "b" : "c"`, "b"},
		{"this tag", "this.tag", "div"},
		{"this classes", "this.classes", "red big"},
		{"this parent", "this.parent", "section"},
		{"this slot", "this.slot", "main"},
		{"this component", "this.component", "my-card"},
		{"bare parent", "parent", "section"},
		{"context var", "count + 1", "4"},
		{"context var via this", "this.name", "qhtml"},
		{"assignment", "x = 2; x * 3", "6"},
		{"sequence value is last", "1; 2; 3", "3"},
		{"upper", `upper("abc")`, "ABC"},
		{"lower", `lower("ABC")`, "abc"},
		{"trim", `trim("  x  ")`, "x"},
		{"len", `len("abcd")`, "4"},
		{"contains", `contains("hello", "ell")`, "true"},
		{"replace", `replace("a-b-c", "-", "+")`, "a+b+c"},
		{"concat", `concat("a", 1, true)`, "a1true"},
		{"str", "str(2)", "2"},
		{"num", `num("3") + 1`, "4"},
		{"float formatting drops trailing zero", "4 / 2", "2"},
	}

	eval := NewNativeEvaluator()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := eval.Evaluate(tc.body, ctx)
			if err != nil {
				t.Fatalf("Evaluate(%q): %v", tc.body, err)
			}
			if got != tc.want {
				t.Errorf("Evaluate(%q) = %q, want %q", tc.body, got, tc.want)
			}
		})
	}
}

func TestEvaluateUndefined(t *testing.T) {
	eval := NewNativeEvaluator()
	for _, body := range []string{"", "   ", "null", "undefined", "nosuchvar"} {
		if _, err := eval.Evaluate(body, &Context{}); err != ErrUndefined {
			t.Errorf("Evaluate(%q) err = %v, want ErrUndefined", body, err)
		}
	}
}

func TestEvaluateErrors(t *testing.T) {
	eval := NewNativeEvaluator()
	cases := []string{
		"1 / 0",
		"1 % 0",
		`nosuchfn()`,
		`"a" * 2`,
		`-"abc"`,
		"foo(",
		"1 +",
		`"str".tag`,
		`num("abc")`,
		"num()",
	}
	for _, body := range cases {
		if _, err := eval.Evaluate(body, &Context{}); err == nil || err == ErrUndefined {
			t.Errorf("Evaluate(%q) err = %v, want a hard error", body, err)
		}
	}
}

func TestEvaluateAssignmentWritesContext(t *testing.T) {
	eval := NewNativeEvaluator()
	ctx := &Context{Vars: map[string]any{}}
	if _, err := eval.Evaluate(`state = "open"; state`, ctx); err != nil {
		t.Fatal(err)
	}
	if ctx.Vars["state"] != "open" {
		t.Errorf("Vars = %v", ctx.Vars)
	}
}

func TestEvaluateNilVarsMap(t *testing.T) {
	eval := NewNativeEvaluator()
	ctx := &Context{}
	got, err := eval.Evaluate("x = 1; x", ctx)
	if err != nil || got != "1" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestEvaluatorCachesPrograms(t *testing.T) {
	eval := NewNativeEvaluator()
	if _, err := eval.Evaluate("1 + 1", &Context{}); err != nil {
		t.Fatal(err)
	}
	if _, err := eval.Evaluate("1 + 1", &Context{}); err != nil {
		t.Fatal(err)
	}
	eval.mu.Lock()
	n := len(eval.cache)
	eval.mu.Unlock()
	if n != 1 {
		t.Errorf("cache size = %d, want 1", n)
	}
}

func TestFormatValue(t *testing.T) {
	if _, err := FormatValue(nil); err != ErrUndefined {
		t.Errorf("nil err = %v, want ErrUndefined", err)
	}
	if s, _ := FormatValue(2.0); s != "2" {
		t.Errorf("2.0 = %q", s)
	}
	if s, _ := FormatValue(2.5); s != "2.5" {
		t.Errorf("2.5 = %q", s)
	}
	if s, _ := FormatValue(true); s != "true" {
		t.Errorf("true = %q", s)
	}
	if s, _ := FormatValue("x"); s != "x" {
		t.Errorf("x = %q", s)
	}
}
