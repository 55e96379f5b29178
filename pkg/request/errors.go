package request

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched by the typed errors below via errors.Is.
var (
	// ErrConfiguration marks conflicting or missing parameter groups.
	ErrConfiguration = errors.New("invalid parameter configuration")

	// ErrValidation marks unknown keys, unknown operations and bad value types.
	ErrValidation = errors.New("invalid parameter")
)

// ConfigurationError reports a mutually exclusive or missing parameter group.
type ConfigurationError struct {
	Operation Operation
	Keys      []string
	Reason    string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if len(e.Keys) == 0 {
		return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Operation, e.Reason, strings.Join(e.Keys, ", "))
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// ValidationError reports a parameter that is unknown or has an unsupported type.
type ValidationError struct {
	Operation Operation
	Key       string
	Reason    string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
	}
	return fmt.Sprintf("%s: parameter %q: %s", e.Operation, e.Key, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
