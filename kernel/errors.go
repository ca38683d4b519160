package kernel

import (
	"errors"
	"fmt"
)

// ErrMaxIterations is the cause recorded on an Exceeded outcome. Run does
// not return it as an error.
var ErrMaxIterations = errors.New("max iterations reached")

// ProducerError reports a failed call to the directive producer. It aborts
// the run and is never retried.
type ProducerError struct {
	Iteration int
	Err       error
}

func (e *ProducerError) Error() string {
	return fmt.Sprintf("producer failed on iteration %d: %v", e.Iteration, e.Err)
}

func (e *ProducerError) Unwrap() error {
	return e.Err
}
