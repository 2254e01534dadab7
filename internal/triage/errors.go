package triage

import (
	"errors"
	"fmt"
)

var (
	// ErrProfileNotFound is returned when the requesting user has no stored profile.
	ErrProfileNotFound = errors.New("user not found")
	// ErrDecisionUnavailable is returned when the model failed and no fallback is configured.
	ErrDecisionUnavailable = errors.New("decision unavailable")
)

// Fault is an unexpected failure caught at the pipeline boundary.
type Fault struct {
	State State
	Cause any
}

func (f *Fault) Error() string {
	return fmt.Sprintf("pipeline fault in state %s: %v", f.State, f.Cause)
}

// Unwrap exposes the cause when it is an error.
func (f *Fault) Unwrap() error {
	if err, ok := f.Cause.(error); ok {
		return err
	}
	return nil
}
