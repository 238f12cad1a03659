package instrument

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry enforces process-wide uniqueness of instrument names and
// provides lookup by name for code that receives instrument references
// over the wire (HTTP, MQTT).
//
// Registration and unregistration are atomic with respect to the
// uniqueness check: a single mutex guards check-then-insert. The registry
// is the only shared mutable global state in the core; everything else is
// owned by an instrument.
type Registry struct {
	mu          sync.Mutex
	instruments map[string]*Base
}

// NewRegistry creates an empty registry. Most code uses Default();
// explicit registries exist for tests and embedding.
func NewRegistry() *Registry {
	return &Registry{instruments: make(map[string]*Base)}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// register claims name for b. Fails with ErrNameTaken if another live
// instrument holds the name.
func (r *Registry) register(name string, b *Base) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.instruments[name]; taken {
		return fmt.Errorf("%w: %q", ErrNameTaken, name)
	}
	r.instruments[name] = b
	return nil
}

// unregister releases name if it is still held by b. Called from Close;
// idempotent.
func (r *Registry) unregister(name string, b *Base) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.instruments[name]; ok && cur == b {
		delete(r.instruments, name)
	}
}

// Find resolves an instrument by name. Dotted paths descend into
// submodules: "psu.ch2" returns the ch2 submodule of instrument "psu".
// Fails with ErrNotFound if any path segment is missing.
func (r *Registry) Find(path string) (*Base, error) {
	segments := strings.Split(path, ".")

	r.mu.Lock()
	b, ok := r.instruments[segments[0]]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: instrument %q", ErrNotFound, segments[0])
	}

	for _, seg := range segments[1:] {
		sub, ok := b.Submodule(seg)
		if !ok {
			return nil, fmt.Errorf("%w: submodule %q of %q", ErrNotFound, seg, b.FullName())
		}
		b = sub.base()
	}
	return b, nil
}

// Names returns the registered root instrument names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.instruments))
	for name := range r.instruments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered instruments.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instruments)
}

// CloseAll closes every registered instrument. Used during shutdown;
// individual close failures are ignored (Close is best-effort by
// contract).
func (r *Registry) CloseAll() {
	r.mu.Lock()
	instruments := make([]*Base, 0, len(r.instruments))
	for _, b := range r.instruments {
		instruments = append(instruments, b)
	}
	r.mu.Unlock()

	for _, b := range instruments {
		_ = b.Close()
	}
}
