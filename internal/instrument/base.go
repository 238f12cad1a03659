package instrument

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Transport is the hardware-facing surface used by command-template
// parameters. It is a narrow contract over whatever session the owning
// instrument holds (TCP, GPIB, serial); the core never depends on a
// specific transport.
//
// Implementations must be synchronous: a command fully completes before
// the next is issued on the same session.
type Transport interface {
	// Write sends a command with no response expected.
	Write(ctx context.Context, cmd string) error

	// Ask sends a command and returns the raw response string.
	Ask(ctx context.Context, cmd string) (string, error)
}

// Options configures a new instrument. All options are named fields;
// there is deliberately no positional constructor surface, so adding
// options later cannot silently rebind existing call sites.
type Options struct {
	// Label is a human-readable label shown in snapshots.
	Label string

	// Metadata is free-form metadata included in snapshots.
	Metadata map[string]any

	// Transport connects command-template parameters to hardware.
	// Instruments without hardware (containers, virtual instruments)
	// leave it nil and use func-backed parameters.
	Transport Transport

	// Closer is closed when the instrument closes. Session-bound
	// instruments pass their hardware session here so that closing the
	// instrument (directly or via Registry.CloseAll) releases the
	// communication session.
	Closer io.Closer

	// Registry is the instrument registry to register with.
	// Nil selects the process-wide default registry.
	Registry *Registry
}

// Update describes a parameter cache change. Updates bubble from the
// parameter through the owning instrument chain to the root, where
// monitoring code typically subscribes.
type Update struct {
	// Instrument is the full dotted path of the owning instrument
	// (e.g. "psu.ch2").
	Instrument string

	// Parameter is the parameter name within that instrument.
	Parameter string

	// Value is the new cached value.
	Value any

	// Raw is the wire string the value came from or was encoded to.
	// Empty for func-backed parameters.
	Raw string

	// TS is the cache timestamp of the update.
	TS time.Time
}

// Submodule is implemented by anything that can be nested under an
// instrument: plain Base modules, driver channel types, or full
// instruments. Embedding *Base satisfies it.
type Submodule interface {
	Name() string
	base() *Base
}

// Base is a container of parameters and submodules. Drivers embed it
// (directly or via visa.Instrument) and register parameters against it.
type Base struct {
	name     string
	label    string
	metadata map[string]any

	registry  *Registry // nil for submodules
	parent    *Base     // nil for root instruments
	transport Transport
	closer    io.Closer

	mu         sync.Mutex
	params     map[string]Handle
	paramOrder []string
	subs       map[string]Submodule
	subOrder   []string

	closed atomic.Bool

	updateMu sync.RWMutex
	onUpdate []func(Update)
}

// New creates a root instrument and registers it with the registry named
// in opts (the process-wide default if nil). Registration is atomic with
// the uniqueness check; a second live instrument with the same name fails
// with ErrNameTaken.
func New(name string, opts Options) (*Base, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	b := newBase(name, opts)
	b.registry = opts.Registry
	if b.registry == nil {
		b.registry = Default()
	}

	if err := b.registry.register(name, b); err != nil {
		return nil, err
	}
	return b, nil
}

// NewModule creates a child instrument owned by parent. Modules share the
// parent's transport, are not registered process-wide, and are closed with
// their parent. Register the module with AddSubmodule to include it in
// snapshots.
func NewModule(parent *Base, name string, opts Options) (*Base, error) {
	if parent == nil {
		return nil, fmt.Errorf("%w: module parent is required", ErrInvalidConfig)
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if opts.Registry != nil {
		return nil, fmt.Errorf("%w: modules are not registry-registered", ErrInvalidConfig)
	}
	if opts.Closer != nil {
		return nil, fmt.Errorf("%w: modules do not own a session", ErrInvalidConfig)
	}

	b := newBase(name, opts)
	b.parent = parent
	if b.transport == nil {
		b.transport = parent.transport
	}
	return b, nil
}

func newBase(name string, opts Options) *Base {
	return &Base{
		name:      name,
		label:     opts.Label,
		metadata:  opts.Metadata,
		transport: opts.Transport,
		closer:    opts.Closer,
		params:    make(map[string]Handle),
		subs:      make(map[string]Submodule),
	}
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if strings.Contains(name, ".") {
		return fmt.Errorf("%w: name %q must not contain '.'", ErrInvalidConfig, name)
	}
	return nil
}

// base implements Submodule.
func (b *Base) base() *Base { return b }

// Name returns the instrument's own name (one path segment).
func (b *Base) Name() string { return b.name }

// Label returns the human-readable label.
func (b *Base) Label() string { return b.label }

// FullName returns the dotted path from the root instrument down to this
// module (e.g. "psu.ch2"). For root instruments it equals Name.
func (b *Base) FullName() string {
	if b.parent == nil {
		return b.name
	}
	return b.parent.FullName() + "." + b.name
}

// Transport returns the transport shared by this instrument's
// command-template parameters, or nil for virtual instruments.
func (b *Base) Transport() Transport { return b.transport }

// AddSubmodule registers a nested instrument under the given name,
// enabling recursive snapshots and hierarchical naming. Fails with
// ErrDuplicateName if the name is already taken on this instrument.
func (b *Base) AddSubmodule(name string, sub Submodule) error {
	if sub == nil {
		return fmt.Errorf("%w: submodule is required", ErrInvalidConfig)
	}
	if err := validateName(name); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subs[name]; exists {
		return fmt.Errorf("%w: submodule %q on instrument %q", ErrDuplicateName, name, b.FullName())
	}
	b.subs[name] = sub
	b.subOrder = append(b.subOrder, name)

	sb := sub.base()
	if sb.parent == nil && sb != b {
		sb.parent = b
	}
	return nil
}

// Parameter returns the untyped handle registered under name.
func (b *Base) Parameter(name string) (Handle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.params[name]
	return h, ok
}

// Parameters returns the registered parameter handles in insertion order.
func (b *Base) Parameters() []Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Handle, 0, len(b.paramOrder))
	for _, name := range b.paramOrder {
		out = append(out, b.params[name])
	}
	return out
}

// Submodule returns the submodule registered under name.
func (b *Base) Submodule(name string) (Submodule, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.subs[name]
	return s, ok
}

// Submodules returns the registered submodules in insertion order.
func (b *Base) Submodules() []Submodule {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Submodule, 0, len(b.subOrder))
	for _, name := range b.subOrder {
		out = append(out, b.subs[name])
	}
	return out
}

// OnUpdate registers a handler invoked after every parameter cache change
// on this instrument or any of its submodules. Handlers run synchronously
// on the goroutine that performed the get/set; they should hand off
// long-running work.
func (b *Base) OnUpdate(fn func(Update)) {
	b.updateMu.Lock()
	b.onUpdate = append(b.onUpdate, fn)
	b.updateMu.Unlock()
}

// notifyUpdate delivers an update to this instrument's handlers and
// bubbles it up the parent chain.
func (b *Base) notifyUpdate(u Update) {
	b.updateMu.RLock()
	handlers := b.onUpdate
	b.updateMu.RUnlock()

	for _, fn := range handlers {
		fn(u)
	}
	if b.parent != nil {
		b.parent.notifyUpdate(u)
	}
}

// Close releases the instrument: submodules are closed first, then the
// communication session (Options.Closer) if the instrument owns one,
// then the instrument is removed from the registry. Further get/set
// operations fail with ErrClosed. Close is idempotent and never returns
// an error; releasing is best-effort by contract.
func (b *Base) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	for _, sub := range b.Submodules() {
		_ = sub.base().Close()
	}

	if b.closer != nil {
		_ = b.closer.Close()
	}

	if b.registry != nil {
		b.registry.unregister(b.name, b)
	}
	return nil
}

// isClosed reports whether this instrument or any ancestor is closed.
func (b *Base) isClosed() bool {
	if b.closed.Load() {
		return true
	}
	if b.parent != nil {
		return b.parent.isClosed()
	}
	return false
}

// Snapshot captures the current state of the instrument, its parameters,
// and its submodules. When update is true, every gettable parameter is
// re-read from hardware first; parameters that cannot be read keep their
// cached value, and parameters with no cache at all are recorded with a
// null value marker. Individual read failures never abort the walk:
// partial state capture is more useful than none.
func (b *Base) Snapshot(ctx context.Context, update bool) *Snapshot {
	snap := &Snapshot{
		Name:       b.name,
		Label:      b.label,
		Metadata:   b.metadata,
		Parameters: make(map[string]ParameterSnapshot),
	}

	for _, h := range b.Parameters() {
		if update && h.Gettable() {
			// Best effort; a failed read falls back to the cache.
			_, _ = h.GetAny(ctx)
		}
		snap.Parameters[h.Name()] = h.snapshotEntry()
	}

	subs := b.namedSubmodules()
	if len(subs) > 0 {
		snap.Submodules = make(map[string]*Snapshot, len(subs))
		for _, ns := range subs {
			snap.Submodules[ns.name] = ns.sub.base().Snapshot(ctx, update)
		}
	}
	return snap
}

type namedSub struct {
	name string
	sub  Submodule
}

// namedSubmodules returns (registered name, submodule) pairs in insertion
// order. The registered name wins over Submodule.Name() so a module can be
// mounted under a different key (channel lists do this).
func (b *Base) namedSubmodules() []namedSub {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]namedSub, 0, len(b.subOrder))
	for _, name := range b.subOrder {
		out = append(out, namedSub{name: name, sub: b.subs[name]})
	}
	return out
}
