package validate

import (
	"fmt"
	"math"
	"strings"
)

// Validator checks whether a candidate value is acceptable.
//
// Validate must be deterministic and side-effect free. A nil return means
// the value is accepted; a rejection returns an error wrapping
// ErrInvalidValue.
type Validator[T any] interface {
	Validate(v T) error
}

// Func adapts a plain function to the Validator interface.
type Func[T any] func(v T) error

// Validate implements Validator.
func (f Func[T]) Validate(v T) error { return f(v) }

// NumberRange validates float64 values against an inclusive [min, max]
// range. NaN is rejected by default.
type NumberRange struct {
	min, max float64
	allowNaN bool
}

// Numbers returns a validator accepting values in [min, max] inclusive.
func Numbers(min, max float64) *NumberRange {
	return &NumberRange{min: min, max: max}
}

// AllowNaN returns a copy of the range that also accepts NaN. Some
// instruments report NaN for "no reading"; opt in explicitly.
func (n *NumberRange) AllowNaN() *NumberRange {
	cpy := *n
	cpy.allowNaN = true
	return &cpy
}

// Validate implements Validator.
func (n *NumberRange) Validate(v float64) error {
	if math.IsNaN(v) {
		if n.allowNaN {
			return nil
		}
		return fmt.Errorf("%w: NaN not allowed", ErrInvalidValue)
	}
	if v < n.min || v > n.max {
		return fmt.Errorf("%w: %v outside [%v, %v]", ErrInvalidValue, v, n.min, n.max)
	}
	return nil
}

// Min returns the lower bound of the range.
func (n *NumberRange) Min() float64 { return n.min }

// Max returns the upper bound of the range.
func (n *NumberRange) Max() float64 { return n.max }

// IntRange validates int values against an inclusive [min, max] range.
type IntRange struct {
	min, max int
}

// Ints returns a validator accepting integers in [min, max] inclusive.
func Ints(min, max int) *IntRange {
	return &IntRange{min: min, max: max}
}

// Validate implements Validator.
func (n *IntRange) Validate(v int) error {
	if v < n.min || v > n.max {
		return fmt.Errorf("%w: %d outside [%d, %d]", ErrInvalidValue, v, n.min, n.max)
	}
	return nil
}

// EnumSet validates membership in a fixed set of allowed values.
type EnumSet[T comparable] struct {
	allowed map[T]struct{}
	// names preserves declaration order for error messages.
	names []T
}

// Enum returns a validator accepting exactly the listed values.
func Enum[T comparable](allowed ...T) *EnumSet[T] {
	set := make(map[T]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return &EnumSet[T]{allowed: set, names: allowed}
}

// Validate implements Validator.
func (e *EnumSet[T]) Validate(v T) error {
	if _, ok := e.allowed[v]; !ok {
		parts := make([]string, len(e.names))
		for i, n := range e.names {
			parts[i] = fmt.Sprintf("%v", n)
		}
		return fmt.Errorf("%w: %v not in {%s}", ErrInvalidValue, v, strings.Join(parts, ", "))
	}
	return nil
}

// StringLength validates strings against inclusive length bounds.
type StringLength struct {
	minLen, maxLen int
}

// Strings returns a validator accepting strings whose length in bytes is
// within [minLen, maxLen] inclusive.
func Strings(minLen, maxLen int) *StringLength {
	return &StringLength{minLen: minLen, maxLen: maxLen}
}

// Validate implements Validator.
func (s *StringLength) Validate(v string) error {
	if len(v) < s.minLen || len(v) > s.maxLen {
		return fmt.Errorf("%w: string length %d outside [%d, %d]", ErrInvalidValue, len(v), s.minLen, s.maxLen)
	}
	return nil
}

// Bool returns a validator accepting any bool. It exists so boolean
// parameters carry an explicit validator like every other kind.
func Bool() Validator[bool] {
	return Func[bool](func(bool) error { return nil })
}

// ArrayShape validates slices against an expected length and a per-element
// validator. A shape of -1 accepts any length.
type ArrayShape[T any] struct {
	shape int
	elem  Validator[T]
}

// Arrays returns a validator for []T with the given expected length.
// Pass -1 for shape to accept any length; pass nil for elem to skip
// element validation.
func Arrays[T any](shape int, elem Validator[T]) *ArrayShape[T] {
	return &ArrayShape[T]{shape: shape, elem: elem}
}

// Validate implements Validator.
func (a *ArrayShape[T]) Validate(v []T) error {
	if a.shape >= 0 && len(v) != a.shape {
		return fmt.Errorf("%w: array length %d, expected %d", ErrInvalidValue, len(v), a.shape)
	}
	if a.elem == nil {
		return nil
	}
	for i, e := range v {
		if err := a.elem.Validate(e); err != nil {
			return fmt.Errorf("%w (element %d)", err, i)
		}
	}
	return nil
}

// Union accepts a value if any of its member validators accepts it,
// short-circuiting on the first success.
type Union[T any] struct {
	members []Validator[T]
}

// Any returns a union validator over the given members.
func Any[T any](members ...Validator[T]) *Union[T] {
	return &Union[T]{members: members}
}

// Validate implements Validator.
func (u *Union[T]) Validate(v T) error {
	if len(u.members) == 0 {
		return fmt.Errorf("%w: union validator has no members", ErrInvalidValue)
	}
	var firstErr error
	for _, m := range u.members {
		err := m.Validate(v)
		if err == nil {
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return fmt.Errorf("%w: rejected by all %d member validators (first: %v)",
		ErrInvalidValue, len(u.members), firstErr)
}
