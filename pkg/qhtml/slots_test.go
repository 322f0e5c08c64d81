package qhtml

import (
	"strings"
	"testing"
)

func defineAll(t *testing.T, src string) *Registry {
	t.Helper()
	reg := NewRegistry()
	collectDefinitions(src, reg, nopDiagnostics())
	for _, def := range reg.All() {
		classifySlots(def, reg)
	}
	return reg
}

func TestClassifySlotsDirect(t *testing.T) {
	reg := defineAll(t, `q-template card {
	div { slot { title } slot { "body" } }
}`)
	def, _ := reg.Lookup("card")
	if def.TotalSlots() != 2 {
		t.Fatalf("slots = %+v", def.Slots)
	}
	for _, sd := range def.Slots {
		if !sd.IsDirect {
			t.Errorf("slot %q classified indirect", sd.Name)
		}
	}
	if def.Slots[0].Name != "title" || def.Slots[1].Name != "body" {
		t.Errorf("slot names = %+v", def.Slots)
	}
}

func TestClassifySlotsIndirect(t *testing.T) {
	reg := defineAll(t, `
q-template inner-box { div { slot { extra } } }
q-template outer-box {
	section {
		slot { main }
		inner-box { slot { extra } }
	}
}`)
	def, _ := reg.Lookup("outer-box")
	byName := map[string]SlotDecl{}
	for _, sd := range def.Slots {
		byName[sd.Name] = sd
	}
	if sd, ok := byName["main"]; !ok || !sd.IsDirect {
		t.Errorf("main = %+v, want direct", sd)
	}
	if sd, ok := byName["extra"]; !ok || sd.IsDirect {
		t.Errorf("extra = %+v, want indirect", sd)
	}
}

func TestClassifySlotsIndirectAfterMultibyteText(t *testing.T) {
	reg := defineAll(t, `
q-template inner-box { div { slot { extra } } }
q-template outer-box {
	section {
		text { "İstanbul" }
		inner-box { slot { extra } }
	}
}`)
	def, _ := reg.Lookup("outer-box")
	if def.TotalSlots() != 1 {
		t.Fatalf("slots = %+v", def.Slots)
	}
	if def.Slots[0].Name != "extra" || def.Slots[0].IsDirect {
		t.Errorf("extra = %+v, want indirect", def.Slots[0])
	}
}

func TestResolveSlot(t *testing.T) {
	def := &Definition{ID: "x", Slots: []SlotDecl{
		{Name: "title", IsDirect: true},
		{Name: "shared", IsDirect: true},
		{Name: "shared", IsDirect: false},
		{Name: "nested", IsDirect: false},
		{Name: "twice", IsDirect: false},
		{Name: "twice", IsDirect: false},
		{Name: "both", IsDirect: true},
		{Name: "both", IsDirect: true},
	}}

	cases := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"title", "title", false},
		{"TITLE", "title", false},
		{"shared", "shared", false}, // one direct wins over one indirect
		{"nested", "nested", false}, // unique indirect is fine
		{"twice", "", true},         // two indirect, no direct
		{"both", "", true},          // two direct
		{"missing", "", true},
	}
	for _, tc := range cases {
		got, err := def.resolveSlot(tc.name)
		if tc.wantErr {
			if err == nil {
				t.Errorf("resolveSlot(%q) = %q, want error", tc.name, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("resolveSlot(%q) = %q, %v, want %q", tc.name, got, err, tc.want)
		}
	}
}

func TestSlotPlaceholderName(t *testing.T) {
	cases := map[string]string{
		" title ":        "title",
		`"body"`:         "body",
		" 'Main' ":       "main",
		" name; ":        "name",
		"/* c */ label ": "label",
	}
	for in, want := range cases {
		if got := slotPlaceholderName(in); got != want {
			t.Errorf("slotPlaceholderName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClassifySlotsReclassifies(t *testing.T) {
	reg := defineAll(t, `q-template one { div { slot { a } } }`)
	def, _ := reg.Lookup("one")
	classifySlots(def, reg)
	classifySlots(def, reg)
	if def.TotalSlots() != 1 {
		t.Errorf("repeated classification duplicated slots: %+v", def.Slots)
	}
	if !strings.Contains(def.TemplateSource, "slot { a }") {
		t.Errorf("classification mutated the template: %q", def.TemplateSource)
	}
}
