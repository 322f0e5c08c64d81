package qhtml

import (
	"fmt"
	"strings"
)

// slotContribution is one piece of invocation content assigned to a slot:
// an explicit into { } block, a tag-name shorthand child, or the
// single-slot auto-wrap. Contributions keep their source position so
// multiple pieces targeting one slot land in document order.
type slotContribution struct {
	Target  string // requested slot name
	Content string // raw source text to project
	Pos     int
}

// classifySlots walks a definition's template source for slot { name }
// placeholders and classifies each as direct (declared in the body
// itself) or indirect (nested inside a recognized sub-component
// invocation within the body). Classification must run after every
// definition has been collected, since indirectness depends on which ids
// are known.
func classifySlots(def *Definition, reg *Registry) {
	src := def.TemplateSource
	def.Slots = def.Slots[:0]

	ranges := subInvocationRanges(src, def.ID, reg)

	i := 0
	for {
		at := findStandalone(src, "slot", i)
		if at < 0 {
			break
		}
		open := nextNonSpace(src, at+len("slot"))
		if open >= len(src) || src[open] != '{' {
			i = at + len("slot")
			continue
		}
		close := matchBrace(src, open)
		if close < 0 {
			break
		}
		name := slotPlaceholderName(src[open+1 : close])
		if name != "" {
			direct := true
			for _, r := range ranges {
				if at > r[0] && at < r[1] {
					direct = false
					break
				}
			}
			def.Slots = append(def.Slots, SlotDecl{Name: name, IsDirect: direct, Pos: at})
		}
		i = close + 1
	}
}

// slotPlaceholderName extracts the declared name from a slot body, which
// is either a bare identifier or a quoted string.
func slotPlaceholderName(body string) string {
	body = strings.TrimSpace(stripBlockComments(body))
	body = strings.TrimSuffix(body, ";")
	return strings.ToLower(stripOuterQuotes(strings.TrimSpace(body)))
}

// subInvocationRanges finds the body spans of invocations of other known
// definitions inside src. Matching is case-insensitive, like invocation
// rewriting itself.
func subInvocationRanges(src, selfID string, reg *Registry) [][2]int {
	var ranges [][2]int
	for _, other := range reg.All() {
		if strings.EqualFold(other.ID, selfID) {
			continue
		}
		id := other.ID
		i := 0
		for {
			at := findStandaloneFold(src, id, i)
			if at < 0 {
				break
			}
			end := at + len(id)
			for end < len(src) && isTokenByte(src[end]) {
				end++ // class suffixes
			}
			open := nextNonSpace(src, end)
			if open >= len(src) || src[open] != '{' {
				i = end
				continue
			}
			close := matchBrace(src, open)
			if close < 0 {
				break
			}
			ranges = append(ranges, [2]int{open, close})
			i = close + 1
		}
	}
	return ranges
}

// resolveSlot applies the ambiguity rule: a name must match exactly one
// direct declaration, else exactly one indirect declaration. Two or more
// of either is an authoring error, as is no match at all.
func (def *Definition) resolveSlot(name string) (string, error) {
	want := strings.ToLower(name)
	direct, indirect := 0, 0
	var resolved string
	for _, sd := range def.Slots {
		if strings.ToLower(sd.Name) != want {
			continue
		}
		if sd.IsDirect {
			direct++
			if direct == 1 {
				resolved = sd.Name
			}
		} else {
			indirect++
			if direct == 0 && indirect == 1 {
				resolved = sd.Name
			}
		}
	}
	switch {
	case direct == 1:
		return resolved, nil
	case direct > 1:
		return "", fmt.Errorf("slot %q is declared directly %d times in %q", name, direct, def.ID)
	case indirect == 1:
		return resolved, nil
	case indirect > 1:
		return "", fmt.Errorf("slot %q matches %d indirect declarations in %q", name, indirect, def.ID)
	default:
		return "", fmt.Errorf("slot %q does not exist in %q", name, def.ID)
	}
}
