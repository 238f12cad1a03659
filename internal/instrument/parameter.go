package instrument

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openlabctl/labcore/internal/validate"
)

// Handle is the untyped view of a registered parameter. It is what the
// snapshot walk, the HTTP API, and the monitor use; driver code holds the
// typed *Parameter[T] returned by AddParameter instead.
type Handle interface {
	Name() string
	Label() string
	Unit() string
	Gettable() bool
	Settable() bool

	// GetAny performs a hardware read (or func call) and returns the value.
	GetAny(ctx context.Context) (any, error)

	// SetAny validates and applies a value. JSON-decoded numbers
	// (float64) are converted to the parameter's value type where the
	// conversion is lossless; inconvertible values are rejected with
	// validate.ErrInvalidValue.
	SetAny(ctx context.Context, v any) error

	// LatestAny returns the cached value, raw wire string, and timestamp
	// without touching hardware. ok is false if never read or set.
	LatestAny() (v any, raw string, ts time.Time, ok bool)

	// CacheValidFor reports whether the cache holds a value younger than
	// maxAge. Callers layer TTL-style reuse policies on top of this.
	CacheValidFor(maxAge time.Duration) bool

	snapshotEntry() ParameterSnapshot
}

// ParameterConfig configures a new parameter. All fields are named
// options; exactly one get source (GetFunc or GetCmd) and at most one set
// source may be given. A parameter with no set source is get-only; one
// with no get source is set-only and its cache is authoritative.
type ParameterConfig[T any] struct {
	// Label is a human-readable label for snapshots and UIs.
	Label string

	// Unit is the physical unit of the value (e.g. "V", "dBm").
	Unit string

	// Validator rejects out-of-domain values before any hardware I/O.
	// Nil skips validation.
	Validator validate.Validator[T]

	// GetFunc reads the value directly, bypassing command formatting.
	GetFunc func(ctx context.Context) (T, error)

	// SetFunc applies the value directly, bypassing command formatting.
	SetFunc func(ctx context.Context, v T) error

	// GetCmd is a query sent verbatim over the owning instrument's
	// transport (e.g. ":MEAS:VOLT? CH2"). Requires GetParser.
	GetCmd string

	// SetCmd is a command template with a single %s verb substituted
	// with the SetParser-encoded value (e.g. ":VOLT %s"). Requires
	// SetParser.
	SetCmd string

	// GetParser converts a raw wire response into a value.
	GetParser func(raw string) (T, error)

	// SetParser encodes a value for the wire.
	SetParser func(v T) string
}

// Change describes a single cache transition, delivered to OnCacheChange
// hooks after the cache has been updated.
type Change[T any] struct {
	Old   T
	OldOK bool // false if the cache was empty before this change
	New   T
	Raw   string
	TS    time.Time
}

// Parameter is a named, typed, validated unit of instrument state.
// Create parameters with AddParameter; the zero value is not usable.
type Parameter[T any] struct {
	name  string
	label string
	unit  string
	owner *Base

	validator validate.Validator[T]
	getFunc   func(ctx context.Context) (T, error)
	setFunc   func(ctx context.Context, v T) error
	getCmd    string
	setCmd    string
	getParser func(raw string) (T, error)
	setParser func(v T) string

	cacheMu    sync.Mutex
	cacheVal   T
	cacheRaw   string
	cacheTS    time.Time
	cacheValid bool

	hookMu sync.RWMutex
	hooks  []func(Change[T])
}

// AddParameter constructs a parameter from cfg and registers it on owner
// under name. It returns the typed handle so the caller can bind it to a
// declared struct field. Fails with ErrDuplicateName if the name is
// already registered on this instrument (the same name on a different
// instrument is fine), or ErrInvalidConfig if the configuration is
// malformed.
func AddParameter[T any](owner *Base, name string, cfg ParameterConfig[T]) (*Parameter[T], error) {
	if owner == nil {
		return nil, fmt.Errorf("%w: parameter owner is required", ErrInvalidConfig)
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateParameterConfig(owner, name, cfg); err != nil {
		return nil, err
	}

	p := &Parameter[T]{
		name:      name,
		label:     cfg.Label,
		unit:      cfg.Unit,
		owner:     owner,
		validator: cfg.Validator,
		getFunc:   cfg.GetFunc,
		setFunc:   cfg.SetFunc,
		getCmd:    cfg.GetCmd,
		setCmd:    cfg.SetCmd,
		getParser: cfg.GetParser,
		setParser: cfg.SetParser,
	}

	owner.mu.Lock()
	defer owner.mu.Unlock()

	if _, exists := owner.params[name]; exists {
		return nil, fmt.Errorf("%w: parameter %q on instrument %q",
			ErrDuplicateName, name, owner.FullName())
	}
	owner.params[name] = p
	owner.paramOrder = append(owner.paramOrder, name)
	return p, nil
}

func validateParameterConfig[T any](owner *Base, name string, cfg ParameterConfig[T]) error {
	if cfg.GetFunc != nil && cfg.GetCmd != "" {
		return fmt.Errorf("%w: parameter %q has both GetFunc and GetCmd", ErrInvalidConfig, name)
	}
	if cfg.SetFunc != nil && cfg.SetCmd != "" {
		return fmt.Errorf("%w: parameter %q has both SetFunc and SetCmd", ErrInvalidConfig, name)
	}
	if cfg.GetFunc == nil && cfg.GetCmd == "" && cfg.SetFunc == nil && cfg.SetCmd == "" {
		return fmt.Errorf("%w: parameter %q has no get or set source", ErrInvalidConfig, name)
	}
	if cfg.GetCmd != "" {
		if cfg.GetParser == nil {
			return fmt.Errorf("%w: parameter %q has GetCmd without GetParser", ErrInvalidConfig, name)
		}
		if owner.transport == nil {
			return fmt.Errorf("%w: parameter %q has GetCmd but instrument %q has no transport",
				ErrInvalidConfig, name, owner.FullName())
		}
	}
	if cfg.SetCmd != "" {
		if cfg.SetParser == nil {
			return fmt.Errorf("%w: parameter %q has SetCmd without SetParser", ErrInvalidConfig, name)
		}
		if !strings.Contains(cfg.SetCmd, "%s") {
			return fmt.Errorf("%w: parameter %q SetCmd %q has no %%s verb", ErrInvalidConfig, name, cfg.SetCmd)
		}
		if owner.transport == nil {
			return fmt.Errorf("%w: parameter %q has SetCmd but instrument %q has no transport",
				ErrInvalidConfig, name, owner.FullName())
		}
	}
	return nil
}

// Name returns the parameter name.
func (p *Parameter[T]) Name() string { return p.name }

// Label returns the human-readable label.
func (p *Parameter[T]) Label() string { return p.label }

// Unit returns the physical unit.
func (p *Parameter[T]) Unit() string { return p.unit }

// Gettable reports whether the parameter has a get source.
func (p *Parameter[T]) Gettable() bool { return p.getFunc != nil || p.getCmd != "" }

// Settable reports whether the parameter has a set source.
func (p *Parameter[T]) Settable() bool { return p.setFunc != nil || p.setCmd != "" }

// Get reads the value from hardware, validates it, updates the cache with
// the current timestamp, and returns it. The cache is only updated on
// success. Transport failures wrap ErrCommunication; values the validator
// rejects wrap validate.ErrInvalidValue.
func (p *Parameter[T]) Get(ctx context.Context) (T, error) {
	var zero T

	if p.owner.isClosed() {
		return zero, fmt.Errorf("%w: instrument %q, parameter %q", ErrClosed, p.owner.FullName(), p.name)
	}
	if !p.Gettable() {
		return zero, fmt.Errorf("%w: %q on instrument %q", ErrNotGettable, p.name, p.owner.FullName())
	}

	var (
		v   T
		raw string
		err error
	)
	if p.getFunc != nil {
		v, err = p.getFunc(ctx)
		if err != nil {
			return zero, fmt.Errorf("getting parameter %q on instrument %q: %w",
				p.name, p.owner.FullName(), err)
		}
	} else {
		raw, err = p.owner.transport.Ask(ctx, p.getCmd)
		if err != nil {
			return zero, err
		}
		v, err = p.getParser(raw)
		if err != nil {
			return zero, fmt.Errorf("parsing response %q for parameter %q on instrument %q: %w",
				raw, p.name, p.owner.FullName(), err)
		}
	}

	if p.validator != nil {
		if err := p.validator.Validate(v); err != nil {
			return zero, fmt.Errorf("parameter %q on instrument %q: %w",
				p.name, p.owner.FullName(), err)
		}
	}

	p.updateCache(v, raw)
	return v, nil
}

// Set validates v and applies it to hardware. Validation happens first:
// an invalid value fails with zero hardware I/O. On success the cache is
// updated to the validated setpoint without a readback (optimistic; see
// the package documentation for the divergence trade-off).
func (p *Parameter[T]) Set(ctx context.Context, v T) error {
	if p.owner.isClosed() {
		return fmt.Errorf("%w: instrument %q, parameter %q", ErrClosed, p.owner.FullName(), p.name)
	}
	if !p.Settable() {
		return fmt.Errorf("%w: %q on instrument %q", ErrNotSettable, p.name, p.owner.FullName())
	}

	if p.validator != nil {
		if err := p.validator.Validate(v); err != nil {
			return fmt.Errorf("setting parameter %q on instrument %q: %w",
				p.name, p.owner.FullName(), err)
		}
	}

	var raw string
	if p.setFunc != nil {
		if err := p.setFunc(ctx, v); err != nil {
			return fmt.Errorf("setting parameter %q on instrument %q: %w",
				p.name, p.owner.FullName(), err)
		}
	} else {
		raw = p.setParser(v)
		cmd := fmt.Sprintf(p.setCmd, raw)
		if err := p.owner.transport.Write(ctx, cmd); err != nil {
			return err
		}
	}

	p.updateCache(v, raw)
	return nil
}

// GetLatest returns the cached value and its timestamp without touching
// hardware. ok is false if the parameter has never been read or set; the
// cache stays strictly empty in that case, there is no lazy read.
func (p *Parameter[T]) GetLatest() (v T, ts time.Time, ok bool) {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	return p.cacheVal, p.cacheTS, p.cacheValid
}

// CacheValidFor implements Handle.
func (p *Parameter[T]) CacheValidFor(maxAge time.Duration) bool {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	return p.cacheValid && time.Since(p.cacheTS) <= maxAge
}

// OnCacheChange registers a hook invoked after every cache update from
// Get or Set. Hooks run synchronously; hand off long-running work.
func (p *Parameter[T]) OnCacheChange(fn func(Change[T])) {
	p.hookMu.Lock()
	p.hooks = append(p.hooks, fn)
	p.hookMu.Unlock()
}

func (p *Parameter[T]) updateCache(v T, raw string) {
	now := time.Now().UTC()

	p.cacheMu.Lock()
	old := p.cacheVal
	oldOK := p.cacheValid
	p.cacheVal = v
	p.cacheRaw = raw
	p.cacheTS = now
	p.cacheValid = true
	p.cacheMu.Unlock()

	change := Change[T]{Old: old, OldOK: oldOK, New: v, Raw: raw, TS: now}
	p.hookMu.RLock()
	hooks := p.hooks
	p.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(change)
	}

	p.owner.notifyUpdate(Update{
		Instrument: p.owner.FullName(),
		Parameter:  p.name,
		Value:      v,
		Raw:        raw,
		TS:         now,
	})
}

// GetAny implements Handle.
func (p *Parameter[T]) GetAny(ctx context.Context) (any, error) {
	v, err := p.Get(ctx)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// SetAny implements Handle.
func (p *Parameter[T]) SetAny(ctx context.Context, v any) error {
	tv, err := convertTo[T](v)
	if err != nil {
		return fmt.Errorf("parameter %q on instrument %q: %w",
			p.name, p.owner.FullName(), err)
	}
	return p.Set(ctx, tv)
}

// LatestAny implements Handle.
func (p *Parameter[T]) LatestAny() (any, string, time.Time, bool) {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	if !p.cacheValid {
		return nil, "", time.Time{}, false
	}
	return p.cacheVal, p.cacheRaw, p.cacheTS, true
}

// snapshotEntry implements Handle.
func (p *Parameter[T]) snapshotEntry() ParameterSnapshot {
	entry := ParameterSnapshot{
		Unit:  p.unit,
		Label: p.label,
	}
	v, raw, ts, ok := p.LatestAny()
	if ok {
		entry.Value = v
		entry.RawValue = raw
		entry.TS = &ts
	}
	return entry
}

// convertTo converts a dynamically-typed value (typically JSON-decoded)
// to the parameter's value type. Numeric conversions are accepted only
// when lossless; anything else is a rejected value, reported with
// validate.ErrInvalidValue like any other validation failure.
func convertTo[T any](v any) (T, error) {
	var zero T

	if tv, ok := v.(T); ok {
		return tv, nil
	}

	// JSON numbers decode as float64; bridge them to int parameters.
	switch any(zero).(type) {
	case int:
		if f, ok := v.(float64); ok && f == float64(int(f)) {
			return any(int(f)).(T), nil
		}
	case float64:
		switch n := v.(type) {
		case int:
			return any(float64(n)).(T), nil
		case int64:
			return any(float64(n)).(T), nil
		}
	}

	return zero, fmt.Errorf("%w: cannot use %T as %T", validate.ErrInvalidValue, v, zero)
}
