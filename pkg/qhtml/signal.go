package qhtml

import (
	"strings"
	"sync"

	"github.com/qhtml/qhtml-go/pkg/qhtml/qscript"
)

// Listener is a callback registered on a Signal.
type Listener func(args ...any)

// HostNotifyFunc lets the host platform observe emissions through its own
// event mechanism. It is invoked best-effort; failures are ignored.
type HostNotifyFunc func(signal string, args ...any)

// Signal is a declared, named event-emission point on a component. It
// owns an ordered set of subscriber handles and supports identity-based
// unsubscribe via Connect/Disconnect targets.
type Signal struct {
	Name   string
	Params []string

	// Handler is the on<Name> property handler, invoked after added
	// listeners if distinct from the emitter itself.
	Handler Listener

	// HostNotify, when set, is called last on every emission.
	HostNotify HostNotifyFunc

	nextID    int
	listeners []signalEntry
	connected map[any]int
}

type signalEntry struct {
	id        int
	fn        Listener
	connected bool
}

// NewSignal creates a signal with the declared parameter names.
func NewSignal(name string, params ...string) *Signal {
	return &Signal{Name: name, Params: params, connected: map[any]int{}}
}

// Emit invokes, in order: all added/connected listeners in registration
// order, then the on<Name> property handler, then the host notification.
// Nothing a listener does can stop later listeners from running.
func (s *Signal) Emit(args ...any) {
	for _, e := range s.listeners {
		if e.fn != nil {
			e.fn(args...)
		}
	}
	if s.Handler != nil {
		s.Handler(args...)
	}
	if s.HostNotify != nil {
		s.HostNotify(s.Name, args...)
	}
}

// Add registers a listener and returns its handle for Remove.
func (s *Signal) Add(fn Listener) int {
	s.nextID++
	s.listeners = append(s.listeners, signalEntry{id: s.nextID, fn: fn})
	return s.nextID
}

// Remove unregisters a listener by handle.
func (s *Signal) Remove(id int) {
	for i, e := range s.listeners {
		if e.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// Connect registers at most one forwarding listener per distinct target;
// repeated connects for the same target are no-ops.
func (s *Signal) Connect(target any, fn Listener) {
	if _, ok := s.connected[target]; ok {
		return
	}
	s.nextID++
	s.listeners = append(s.listeners, signalEntry{id: s.nextID, fn: fn, connected: true})
	s.connected[target] = s.nextID
}

// Disconnect removes the forwarding listener for each given target. With
// no arguments it clears all connected listeners, leaving manually added
// ones in place.
func (s *Signal) Disconnect(targets ...any) {
	if len(targets) == 0 {
		kept := s.listeners[:0]
		for _, e := range s.listeners {
			if !e.connected {
				kept = append(kept, e)
			}
		}
		s.listeners = kept
		s.connected = map[any]int{}
		return
	}
	for _, t := range targets {
		id, ok := s.connected[t]
		if !ok {
			continue
		}
		delete(s.connected, t)
		s.Remove(id)
	}
}

// ListenerCount reports the number of registered listeners.
func (s *Signal) ListenerCount() int {
	return len(s.listeners)
}

// signalHandlerCache compiles signal handler bodies once per unique
// (signal name, params, body) key so re-registration never duplicates
// work.
type signalHandlerCache struct {
	mu sync.Mutex
	m  map[string]*Handler
}

func newSignalHandlerCache() *signalHandlerCache {
	return &signalHandlerCache{m: map[string]*Handler{}}
}

func (c *signalHandlerCache) compile(eval qscript.Evaluator, decl SignalHandlerDecl) *Handler {
	key := strings.ToLower(decl.SignalName) + "|" + strings.Join(decl.Params, ",") + "|" + sanitizeBody(decl.Body)
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.m[key]; ok {
		return h
	}
	h := &Handler{Name: decl.SignalName, Body: sanitizeBody(decl.Body), eval: eval}
	c.m[key] = h
	return h
}

// HostWiring is the macro-time "ready" contract a component rewrite emits
// for its eventual host instance: declared signals, compiled signal
// handlers and action functions, keyed by the generated instance id.
type HostWiring struct {
	ComponentID string
	InstanceID  string
	Signals     []SignalDecl
	Handlers    map[string]*Handler // lower-cased signal name -> compiled body
	Actions     []Action
}

// Materialize builds the live Signal emitters for this wiring, binding
// each compiled handler and the host notification hook.
func (w *HostWiring) Materialize(notify HostNotifyFunc, ctx *qscript.Context) map[string]*Signal {
	out := make(map[string]*Signal, len(w.Signals))
	for _, decl := range w.Signals {
		sig := NewSignal(decl.Name, decl.Params...)
		sig.HostNotify = notify
		if h, ok := w.Handlers[strings.ToLower(decl.Name)]; ok {
			handler := h
			sig.Handler = func(args ...any) {
				callCtx := ctx
				if callCtx == nil {
					callCtx = &qscript.Context{}
				}
				if callCtx.Vars == nil {
					callCtx.Vars = map[string]any{}
				}
				for i, p := range decl.Params {
					if i < len(args) {
						callCtx.Vars[p] = args[i]
					}
				}
				handler.Invoke(callCtx)
			}
		}
		out[strings.ToLower(decl.Name)] = sig
	}
	return out
}
