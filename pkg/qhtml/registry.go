package qhtml

import (
	"sort"
	"strings"
	"sync"
)

// Registry holds component and template definitions across compile calls.
// It is an explicit value owned by the Compiler rather than a hidden
// process-wide singleton; a host that shares one Registry between
// compilers gets a cross-compile definition cache.
// Ids are normalized to lower case so duplicate registrations
// of differently-cased ids cannot race past each other.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty definition registry.
func NewRegistry() *Registry {
	return &Registry{defs: map[string]*Definition{}}
}

// Register stores a definition under its normalized id. Re-registering an
// id replaces the previous definition; a kind change is logged since it
// usually means two unrelated files used the same name.
func (r *Registry) Register(def *Definition, d *Diagnostics) {
	key := strings.ToLower(def.ID)
	r.mu.Lock()
	prev, existed := r.defs[key]
	r.defs[key] = def
	r.mu.Unlock()
	if existed && prev.Kind != def.Kind {
		d.Warnf(def.ID, "definition %q re-registered as a different kind", def.ID)
	}
}

// Lookup returns the definition for id, if any.
func (r *Registry) Lookup(id string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[strings.ToLower(id)]
	return def, ok
}

// Len reports the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// All returns the registered definitions ordered by id, so expansion
// passes visit definitions deterministically.
func (r *Registry) All() []*Definition {
	r.mu.RLock()
	out := make([]*Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].ID) < strings.ToLower(out[j].ID)
	})
	return out
}
