package types

import (
	"errors"
	"fmt"
)

// ErrNonUniform is matched by every NonUniformError.
var ErrNonUniform = errors.New("dataset records are not uniform")

// NonUniformError reports the first record whose key set differs from the
// first record of the dataset.
type NonUniformError struct {
	Index  int
	Reason string
}

func (e *NonUniformError) Error() string {
	return fmt.Sprintf("record %d: %s", e.Index, e.Reason)
}

// Is lets errors.Is match ErrNonUniform.
func (e *NonUniformError) Is(target error) bool {
	return target == ErrNonUniform
}
