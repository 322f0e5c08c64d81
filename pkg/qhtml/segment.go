package qhtml

import (
	"regexp"
	"strings"
)

// SegmentKind discriminates the typed segments produced by the segmenter.
type SegmentKind int

const (
	SegProperty SegmentKind = iota
	SegElement
	SegText
	SegRawMarkup
	SegRawStyle
	SegStyleBlock
	SegEventBlock
	SegFunctionDef
)

// Segment is one flat unit of a segmented body. Segments are consumed
// immediately to build nodes and never persisted.
//
// For SegElement the Value holds the still-encoded inner source, which is
// fed back through segmentEncoded when the element's children are built.
// All other kinds carry fully decoded values.
type Segment struct {
	Kind   SegmentKind
	Name   string // tag token, property name, event name or function name
	Value  string
	Params []string // function parameters, SegFunctionDef only

	IsFunction       bool // property whose value is a { ... } body
	IsReadyLifecycle bool // onReady / onLoad / onLoaded property

	Pos int
}

var (
	eventTokenRe  = regexp.MustCompile(`^on[A-Za-z0-9_]+$`)
	functionDefRe = regexp.MustCompile(`^function\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(([^)]*)\)$`)
)

// Quoted string contents are percent-encoded before the structural scan so
// literal braces, colons and semicolons inside strings never perturb
// parsing; values are decoded again on extraction. Unquoted '%' is encoded
// too, keeping decode a true inverse: a literal %7B the author wrote is
// not confused with an encoded brace.

func encodeQuoted(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		c := s[i]
		if c != '"' && c != '\'' {
			if c == '%' {
				b.WriteString("%25")
			} else {
				b.WriteByte(c)
			}
			i++
			continue
		}
		end := skipString(s, i)
		closed := end > i+1 && s[end-1] == c && !(end >= 2 && s[end-2] == '\\')
		inner := s[i+1 : end]
		if closed {
			inner = s[i+1 : end-1]
		}
		b.WriteByte(c)
		for k := 0; k < len(inner); k++ {
			b.WriteString(encodeByte(inner[k]))
		}
		if closed {
			b.WriteByte(c)
		}
		i = end
	}
	return b.String()
}

func encodeByte(c byte) string {
	switch c {
	case '%':
		return "%25"
	case '{':
		return "%7B"
	case '}':
		return "%7D"
	case ':':
		return "%3A"
	case ';':
		return "%3B"
	default:
		return string(c)
	}
}

func decodeQuoted(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	r := strings.NewReplacer("%7B", "{", "%7D", "}", "%3A", ":", "%3B", ";")
	return strings.ReplaceAll(r.Replace(s), "%25", "%")
}

// stripBlockComments removes /* ... */ spans, preserving comment-like
// sequences inside quoted strings.
func stripBlockComments(s string) string {
	if !strings.Contains(s, "/*") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '"' || c == '\'' {
			end := skipString(s, i)
			b.WriteString(s[i:end])
			i = end
			continue
		}
		if c == '/' && i+1 < len(s) && s[i+1] == '*' {
			i = skipBlockComment(s, i)
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

// prepareSource normalizes raw source for segmentation: comments out,
// quoted structural characters encoded.
func prepareSource(s string) string {
	return encodeQuoted(stripBlockComments(s))
}

func stripOuterQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

var readyLifecycleNames = map[string]bool{
	"onready":  true,
	"onload":   true,
	"onloaded": true,
}

// segmentSource is the public entry: it prepares raw text and segments it.
func segmentSource(s string, d *Diagnostics) []Segment {
	return segmentEncoded(prepareSource(s), d)
}

// segmentEncoded performs the structural scan over already-encoded text.
// An index-advancing cursor reads, at the current level, a token up to '{'
// or ':'; the token decides the segment kind. The scan is total: every
// iteration advances the cursor, so it always terminates.
func segmentEncoded(s string, d *Diagnostics) []Segment {
	var segs []Segment
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
			// stray closer the balancer did not see; ignore it
			i++
			continue
		}

		start := i
		j := i
		for j < len(s) && s[j] != '{' && s[j] != ':' && s[j] != '}' && s[j] != ';' {
			j++
		}
		token := strings.TrimSpace(s[start:j])

		if j >= len(s) || s[j] == '}' || s[j] == ';' {
			// bare chunk with no structure; keep it as text rather than
			// dropping author content
			if token != "" {
				segs = append(segs, Segment{
					Kind:  SegText,
					Value: stripOuterQuotes(decodeQuoted(token)),
					Pos:   start,
				})
			}
			if j < len(s) {
				j++
			}
			i = j
			continue
		}

		if s[j] == '{' {
			end := matchBracePlain(s, j)
			if end < 0 {
				d.Warnf(token, "unterminated block for %q, consuming rest of input", token)
				end = len(s)
			}
			body := s[j+1 : min(end, len(s))]
			segs = append(segs, classifyBlock(token, body, start, d))
			i = end + 1
			continue
		}

		// token ':' — a property
		seg, next := readProperty(s, token, start, j, d)
		segs = append(segs, seg)
		i = next
	}
	return segs
}

// classifyBlock decides the segment kind for token { body }.
func classifyBlock(token, body string, pos int, d *Diagnostics) Segment {
	switch {
	case token == "html":
		return Segment{Kind: SegRawMarkup, Value: decodeQuoted(body), Pos: pos}
	case token == "css":
		return Segment{Kind: SegRawStyle, Value: decodeQuoted(body), Pos: pos}
	case token == "text":
		return Segment{Kind: SegText, Value: stripOuterQuotes(strings.TrimSpace(decodeQuoted(body))), Pos: pos}
	case token == "style":
		return Segment{Kind: SegStyleBlock, Value: decodeQuoted(body), Pos: pos}
	case eventTokenRe.MatchString(token):
		return Segment{Kind: SegEventBlock, Name: token, Value: decodeQuoted(body), Pos: pos}
	default:
		if m := functionDefRe.FindStringSubmatch(token); m != nil {
			return Segment{
				Kind:   SegFunctionDef,
				Name:   m[1],
				Params: splitParams(m[2]),
				Value:  decodeQuoted(body),
				Pos:    pos,
			}
		}
		if token == "" {
			d.Warnf("segmenter", "anonymous block has no tag, defaulting to div")
			token = "div"
		}
		return Segment{Kind: SegElement, Name: token, Value: body, Pos: pos}
	}
}

// readProperty reads a property starting with name at pos whose ':' sits
// at colon. It returns the segment and the cursor position after the
// value.
func readProperty(s, name string, pos, colon int, d *Diagnostics) (Segment, int) {
	k := nextNonSpace(s, colon+1)
	if k < len(s) && s[k] == '{' {
		end := matchBracePlain(s, k)
		if end < 0 {
			d.Warnf(name, "unterminated function body for property %q", name)
			end = len(s)
		}
		body := decodeQuoted(s[k+1 : min(end, len(s))])
		seg := Segment{Kind: SegProperty, Name: name, Value: body, Pos: pos}
		if readyLifecycleNames[strings.ToLower(name)] {
			seg.IsReadyLifecycle = true
		} else {
			seg.IsFunction = true
		}
		next := end + 1
		// a trailing ';' after the body is tolerated
		n := nextNonSpace(s, next)
		if n < len(s) && s[n] == ';' {
			next = n + 1
		}
		return seg, next
	}

	end := k
	for end < len(s) && s[end] != ';' && s[end] != '}' {
		end++
	}
	raw := strings.TrimSpace(s[k:end])
	value := stripOuterQuotes(decodeQuoted(raw))
	next := end
	if next < len(s) && s[next] == ';' {
		next++
	}
	return Segment{Kind: SegProperty, Name: name, Value: value, Pos: pos}, next
}

func splitParams(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
