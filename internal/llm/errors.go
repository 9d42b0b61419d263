package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutError indicates a model call exceeded its per-call budget.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
}

// ParseError indicates the model returned output that could not be decoded
// into the expected structure.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s returned unparseable output: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ServiceError indicates the provider rejected or failed the call.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a per-call timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded)
}

// IsParse reports whether err is a decode failure of model output.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
