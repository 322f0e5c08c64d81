package qhtml

import "strings"

// rawItem is one top-level construct of a brace body, addressed by spans
// into the original text. The macro expander works on raw spans so that
// rewrites splice author text verbatim instead of round-tripping it
// through the segmenter.
type rawItem struct {
	Name   string // leading token, "" for bare text
	IsProp bool   // token followed by ':'
	Bare   bool   // no structure at all (stray text or value)

	Start, End         int // full span, End exclusive (includes any ';')
	BodyStart, BodyEnd int // inner span: block body or property value
}

func (it rawItem) body(s string) string  { return s[it.BodyStart:it.BodyEnd] }
func (it rawItem) whole(s string) string { return s[it.Start:it.End] }

// topLevelItems walks body at depth zero with the strict matcher and
// returns its items in source order.
func topLevelItems(s string) []rawItem {
	var items []rawItem
	i := 0
	for i < len(s) {
		i = nextNonSpace(s, i)
		if i >= len(s) {
			break
		}
		if s[i] == ';' {
			i++
			continue
		}
		if s[i] == '}' {
			// stray closer; skip
			i++
			continue
		}

		start := i
		j := i
		for j < len(s) && s[j] != '{' && s[j] != ':' && s[j] != ';' && s[j] != '}' {
			switch s[j] {
			case '"', '\'':
				j = skipString(s, j)
			case '`':
				j = skipTemplate(s, j)
			case '/':
				if j+1 < len(s) && s[j+1] == '*' {
					j = skipBlockComment(s, j)
				} else if j+1 < len(s) && s[j+1] == '/' {
					j = skipLineComment(s, j)
				} else {
					j++
				}
			default:
				j++
			}
		}
		token := strings.TrimSpace(s[start:j])

		if j >= len(s) || s[j] == ';' || s[j] == '}' {
			end := j
			if j < len(s) && s[j] == ';' {
				end = j + 1
			}
			if token != "" {
				items = append(items, rawItem{
					Name: token, Bare: true,
					Start: start, End: end,
					BodyStart: start, BodyEnd: j,
				})
			}
			if j < len(s) && s[j] == ';' {
				j++
			}
			i = j
			continue
		}

		if s[j] == '{' {
			close := matchBrace(s, j)
			if close < 0 {
				close = len(s)
				items = append(items, rawItem{
					Name:  token,
					Start: start, End: len(s),
					BodyStart: j + 1, BodyEnd: len(s),
				})
				break
			}
			items = append(items, rawItem{
				Name:  token,
				Start: start, End: close + 1,
				BodyStart: j + 1, BodyEnd: close,
			})
			i = close + 1
			continue
		}

		// property: token ':' value
		k := nextNonSpace(s, j+1)
		if k < len(s) && s[k] == '{' {
			close := matchBrace(s, k)
			if close < 0 {
				close = len(s) - 1
			}
			end := close + 1
			if n := nextNonSpace(s, end); n < len(s) && s[n] == ';' {
				end = n + 1
			}
			items = append(items, rawItem{
				Name: token, IsProp: true,
				Start: start, End: end,
				BodyStart: k, BodyEnd: close + 1, // braces included: marks function value
			})
			i = end
			continue
		}
		e := k
		for e < len(s) && s[e] != ';' && s[e] != '}' {
			switch s[e] {
			case '"', '\'':
				e = skipString(s, e)
			case '`':
				e = skipTemplate(s, e)
			default:
				e++
			}
		}
		end := e
		if e < len(s) && s[e] == ';' {
			end = e + 1
		}
		items = append(items, rawItem{
			Name: token, IsProp: true,
			Start: start, End: end,
			BodyStart: k, BodyEnd: e,
		})
		i = end
	}
	return items
}

// propValue returns a property item's value with surrounding quotes
// stripped.
func (it rawItem) propValue(s string) string {
	return stripOuterQuotes(strings.TrimSpace(it.body(s)))
}

// isFunctionProp reports whether a property item's value is a brace body.
func (it rawItem) isFunctionProp(s string) bool {
	return it.IsProp && it.BodyStart < len(s) && s[it.BodyStart] == '{'
}

// isEventItem reports whether a block item is an onX handler block.
func (it rawItem) isEventItem() bool {
	return !it.IsProp && !it.Bare && eventTokenRe.MatchString(it.Name)
}

// isFunctionItem reports whether a block item is a function definition.
func (it rawItem) isFunctionItem() bool {
	return !it.IsProp && !it.Bare && functionDefRe.MatchString(it.Name)
}

// spliceOut removes the spans of the given items from s, keeping
// everything else in order. Items must be non-overlapping and sorted.
func spliceOut(s string, items []rawItem) string {
	if len(items) == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prev := 0
	for _, it := range items {
		if it.Start > prev {
			b.WriteString(s[prev:it.Start])
		}
		prev = it.End
	}
	if prev < len(s) {
		b.WriteString(s[prev:])
	}
	return b.String()
}
