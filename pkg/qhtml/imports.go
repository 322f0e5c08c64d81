package qhtml

import "strings"

const importKeyword = "q-import"

// DefaultImportLimit caps the total number of resolved imports per
// compile unit.
const DefaultImportLimit = 50

// FetchFunc retrieves the text of one imported source fragment. Fetching
// is the caller's concern (network, filesystem, cache); the compiler core
// never performs I/O itself.
type FetchFunc func(ref string) (string, error)

// AssembleImports resolves q-import "ref"; directives in src by splicing
// in the fetched fragment text. It is a caller-side helper that runs
// before Compile.
//
// A fetched fragment may not itself contain an import directive: that is
// the nested compile-unit marker, and such fragments are rejected. The
// total number of resolved imports is capped; hitting the cap is logged
// once and the remaining directives are dropped.
func AssembleImports(src string, fetch FetchFunc, limit int, d *Diagnostics) string {
	if limit <= 0 {
		limit = DefaultImportLimit
	}
	resolved := 0
	i := 0
	for {
		at := findStandalone(src, importKeyword, i)
		if at < 0 {
			return src
		}
		refStart := nextNonSpace(src, at+len(importKeyword))
		if refStart >= len(src) || (src[refStart] != '"' && src[refStart] != '\'') {
			d.Errorf("import", "q-import needs a quoted reference, dropped")
			src = src[:at] + src[min(refStart, len(src)):]
			continue
		}
		refEnd := skipString(src, refStart)
		ref := stripOuterQuotes(src[refStart:refEnd])
		end := refEnd
		if n := nextNonSpace(src, end); n < len(src) && src[n] == ';' {
			end = n + 1
		}

		if resolved >= limit {
			d.WarnOnce("import-limit", "import",
				"import limit (%d) reached, dropping remaining imports", limit)
			src = src[:at] + src[end:]
			i = at
			continue
		}

		fragment, err := fetch(ref)
		if err != nil {
			d.Errorf("import", "fetching %q failed: %v", ref, err)
			src = src[:at] + src[end:]
			i = at
			continue
		}
		if findStandalone(fragment, importKeyword, 0) >= 0 {
			d.Errorf("import", "fragment %q contains a nested compile unit, rejected", ref)
			src = src[:at] + src[end:]
			i = at
			continue
		}

		resolved++
		src = src[:at] + strings.TrimSpace(fragment) + src[end:]
		i = at
	}
}
