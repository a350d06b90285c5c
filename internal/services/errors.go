package services

import (
	"errors"
	"fmt"
)

// ErrUnknownSystem is returned for system keys that are not configured
var ErrUnknownSystem = errors.New("unknown system")

// SummarizationError wraps a provider failure that exhausted its retries or
// was permanent. The summary is left exactly as it was.
type SummarizationError struct {
	SystemKey string
	Err       error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarization for %s failed: %v", e.SystemKey, e.Err)
}

func (e *SummarizationError) Unwrap() error {
	return e.Err
}

// PersistenceError is returned when the store rejected a write. The in-memory
// state is not advanced.
type PersistenceError struct {
	SystemKey string
	Op        string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s state for %s: %v", e.Op, e.SystemKey, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func unknownSystem(key string) error {
	return fmt.Errorf("%w: %s", ErrUnknownSystem, key)
}
