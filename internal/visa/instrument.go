package visa

import (
	"context"
	"fmt"

	"github.com/openlabctl/labcore/internal/instrument"
)

// DefaultTerminator is appended to outgoing commands when Options does
// not override it.
const DefaultTerminator = "\n"

// Options configures a session-bound instrument.
type Options struct {
	// Label is a human-readable label shown in snapshots.
	Label string

	// Metadata is free-form metadata included in snapshots.
	Metadata map[string]any

	// Terminator is appended to every outgoing command. Defaults to
	// DefaultTerminator when empty.
	Terminator string

	// Registry selects the instrument registry; nil means the
	// process-wide default.
	Registry *instrument.Registry
}

// Instrument is an instrument.Base bound to exactly one hardware Session.
// It implements instrument.Transport, so command-template parameters
// registered against it talk to the session with the configured
// terminator appended and communication failures wrapped as
// instrument.ErrCommunication.
type Instrument struct {
	*instrument.Base

	session    Session
	terminator string
}

// New creates a session-bound instrument and registers it under name.
// The session is owned by the instrument from here on: closing the
// instrument (directly or via Registry.CloseAll) closes the session.
func New(name string, session Session, opts Options) (*Instrument, error) {
	if session == nil {
		return nil, fmt.Errorf("%w: session is required", instrument.ErrInvalidConfig)
	}

	vi := &Instrument{
		session:    session,
		terminator: opts.Terminator,
	}
	if vi.terminator == "" {
		vi.terminator = DefaultTerminator
	}

	base, err := instrument.New(name, instrument.Options{
		Label:     opts.Label,
		Metadata:  opts.Metadata,
		Transport: vi,
		Closer:    session,
		Registry:  opts.Registry,
	})
	if err != nil {
		return nil, err
	}
	vi.Base = base
	return vi, nil
}

// Write implements instrument.Transport.
func (vi *Instrument) Write(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := vi.session.Write(cmd + vi.terminator); err != nil {
		return fmt.Errorf("%w: instrument %q, command %q: %v",
			instrument.ErrCommunication, vi.Name(), cmd, err)
	}
	return nil
}

// Ask implements instrument.Transport.
func (vi *Instrument) Ask(ctx context.Context, cmd string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	resp, err := vi.session.Ask(cmd + vi.terminator)
	if err != nil {
		return "", fmt.Errorf("%w: instrument %q, command %q: %v",
			instrument.ErrCommunication, vi.Name(), cmd, err)
	}
	return resp, nil
}
