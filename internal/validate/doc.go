// Package validate provides pluggable value validators for instrument
// parameters.
//
// A validator is a pure predicate over a value domain: it either accepts a
// candidate value or returns an error wrapping ErrInvalidValue describing
// the expected domain. Validators never coerce, never mutate, and hold no
// state, so they are safe to share across goroutines without locking.
//
// # Built-in validators
//
//   - Numbers: inclusive float64 range, NaN rejected unless allowed
//   - Ints: inclusive int range
//   - Enum: membership in a fixed set
//   - Strings: length-bounded strings
//   - Bool: any bool
//   - Arrays: length-bounded slices with per-element validation
//   - Any: union of validators, accepting on the first success
//
// Driver authors can supply their own validator by implementing the
// Validator interface, or by wrapping a plain function with Func.
//
// # Usage
//
//	v := validate.Numbers(0, 30)
//	if err := v.Validate(32.5); err != nil {
//	    // err wraps validate.ErrInvalidValue
//	}
package validate
