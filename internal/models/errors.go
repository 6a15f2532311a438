package models

import (
	"errors"
	"fmt"
)

// Error classes shared by the single-item and batch geocoders.
var (
	// ErrValidation is returned when a caller supplies a missing or empty required argument.
	ErrValidation = errors.New("validation error")
	// ErrTransport is returned for HTTP-level failures: connection errors and non-success statuses.
	ErrTransport = errors.New("transport error")
	// ErrProvider is returned when a response arrived but its structure is not what was expected.
	ErrProvider = errors.New("provider error")
)

// TransportError describes a failed HTTP exchange with the provider.
type TransportError struct {
	Op         string // Op names the provider call, e.g. "submit".
	StatusCode int    // StatusCode is zero when no response was received.
	Body       string // Body holds a prefix of the error response, if any.
	Err        error  // Err is the underlying client error, if any.
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: provider returned status %d: %s", e.Op, e.StatusCode, e.Body)
	}

	return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is makes every TransportError match ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Validationf returns an error wrapping ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Providerf returns an error wrapping ErrProvider.
func Providerf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProvider, fmt.Sprintf(format, args...))
}
