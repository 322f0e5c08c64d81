package qhtml

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Diagnostics is the compiler's leveled logging sink. Every recoverable
// parsing or expansion problem is reported here, keyed by the component id
// it concerns; nothing reported through Diagnostics ever aborts a compile.
type Diagnostics struct {
	log zerolog.Logger

	mu       sync.Mutex
	warns    int
	errors   int
	reported map[string]bool
}

// NewDiagnostics wraps a zerolog logger as a diagnostics sink.
func NewDiagnostics(log zerolog.Logger) *Diagnostics {
	return &Diagnostics{log: log, reported: map[string]bool{}}
}

// nopDiagnostics discards everything; used when the caller injects no
// logger.
func nopDiagnostics() *Diagnostics {
	return NewDiagnostics(zerolog.Nop())
}

func (d *Diagnostics) Infof(component, format string, args ...any) {
	d.log.Info().Str("component", component).Msg(fmt.Sprintf(format, args...))
}

func (d *Diagnostics) Warnf(component, format string, args ...any) {
	d.mu.Lock()
	d.warns++
	d.mu.Unlock()
	d.log.Warn().Str("component", component).Msg(fmt.Sprintf(format, args...))
}

func (d *Diagnostics) Errorf(component, format string, args ...any) {
	d.mu.Lock()
	d.errors++
	d.mu.Unlock()
	d.log.Error().Str("component", component).Msg(fmt.Sprintf(format, args...))
}

// WarnOnce logs a warning at most once per key for the lifetime of this
// sink. Used for pass-limit and import-cap exhaustion, which would
// otherwise flood the log.
func (d *Diagnostics) WarnOnce(key, component, format string, args ...any) {
	d.mu.Lock()
	seen := d.reported[key]
	if !seen {
		d.reported[key] = true
		d.warns++
	}
	d.mu.Unlock()
	if seen {
		return
	}
	d.log.Warn().Str("component", component).Msg(fmt.Sprintf(format, args...))
}

// Warnings returns the number of warnings reported so far.
func (d *Diagnostics) Warnings() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.warns
}

// Errors returns the number of errors reported so far.
func (d *Diagnostics) Errors() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.errors
}
