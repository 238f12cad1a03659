package validate

import "errors"

// ErrInvalidValue is returned when a candidate value is rejected by a
// validator. Check with errors.Is(); the wrapped message describes the
// expected domain.
var ErrInvalidValue = errors.New("validate: invalid value")
