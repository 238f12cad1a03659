package instrument

import (
	"context"
	"fmt"
	"time"
)

// Sweep steps a settable parameter through a sequence of values with a
// fixed delay between steps. It is the building block measurement scripts
// iterate over; anything that needs adaptive stepping can drive the
// parameter directly instead.
type Sweep[T any] struct {
	param  *Parameter[T]
	values []T
	delay  time.Duration
}

// NewSweep creates a sweep over the given values. Fails with
// ErrNotSettable if the parameter has no set source.
func NewSweep[T any](p *Parameter[T], values []T, delay time.Duration) (*Sweep[T], error) {
	if p == nil {
		return nil, fmt.Errorf("%w: sweep parameter is required", ErrInvalidConfig)
	}
	if !p.Settable() {
		return nil, fmt.Errorf("%w: %q on instrument %q", ErrNotSettable, p.name, p.owner.FullName())
	}
	return &Sweep[T]{param: p, values: values, delay: delay}, nil
}

// Values returns the sweep's value sequence.
func (s *Sweep[T]) Values() []T {
	out := make([]T, len(s.values))
	copy(out, s.values)
	return out
}

// Run sets each value in order, calling step (if non-nil) after each set,
// and waits the configured delay between steps. The first set failure or
// context cancellation stops the sweep.
func (s *Sweep[T]) Run(ctx context.Context, step func(i int, v T) error) error {
	for i, v := range s.values {
		if err := s.param.Set(ctx, v); err != nil {
			return fmt.Errorf("sweep step %d: %w", i, err)
		}
		if step != nil {
			if err := step(i, v); err != nil {
				return fmt.Errorf("sweep step %d: %w", i, err)
			}
		}
		if s.delay > 0 && i < len(s.values)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}
	return nil
}

// SweepValues returns n evenly spaced values from start to stop
// inclusive. n < 2 returns just the start value.
func SweepValues(start, stop float64, n int) []float64 {
	if n < 2 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop // avoid accumulated rounding at the endpoint
	return out
}
