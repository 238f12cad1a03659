package instrument

import (
	"fmt"
)

// ChannelList is an ordered sequence of channel submodules sharing the
// parent instrument's transport. Each channel exposes the same parameter
// names, with the channel index baked into the wire commands when the
// channel's parameters are registered (there is no runtime re-templating,
// so commands for channel 2 can never leak to channel 3).
//
// The type parameter C is the driver's channel type, so iteration yields
// fully typed channels:
//
//	for _, ch := range psu.Channels.All() {
//	    v, _ := ch.Voltage.Get(ctx)
//	}
type ChannelList[C Submodule] struct {
	name     string
	owner    *Base
	channels []C
}

// NewChannelList registers channels as submodules of owner (each under
// its own name) and returns the list. Channel order is preserved.
func NewChannelList[C Submodule](owner *Base, name string, channels []C) (*ChannelList[C], error) {
	if owner == nil {
		return nil, fmt.Errorf("%w: channel list owner is required", ErrInvalidConfig)
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	for _, ch := range channels {
		if err := owner.AddSubmodule(ch.Name(), ch); err != nil {
			return nil, err
		}
	}

	return &ChannelList[C]{name: name, owner: owner, channels: channels}, nil
}

// Name returns the list's name.
func (l *ChannelList[C]) Name() string { return l.name }

// Len returns the number of channels.
func (l *ChannelList[C]) Len() int { return len(l.channels) }

// Get returns the channel at the zero-based index i.
func (l *ChannelList[C]) Get(i int) (C, error) {
	var zero C
	if i < 0 || i >= len(l.channels) {
		return zero, fmt.Errorf("%w: channel index %d of %q (have %d)",
			ErrNotFound, i, l.name, len(l.channels))
	}
	return l.channels[i], nil
}

// All returns the channels in order. The returned slice is a copy; the
// channels themselves are shared.
func (l *ChannelList[C]) All() []C {
	out := make([]C, len(l.channels))
	copy(out, l.channels)
	return out
}
