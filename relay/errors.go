package relay

import (
	"errors"
	"fmt"
)

// ValidationError is a request the relay refuses before any upstream call
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ConfigurationError is a missing upstream credential. Key names the
// configuration entry; the secret itself is never part of the error.
type ConfigurationError struct {
	Key      string
	Provider string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("API key not configured. Please set %s in the service environment.", e.Key)
}

// Details is the hint returned next to the error message
func (e *ConfigurationError) Details() string {
	return fmt.Sprintf("The %s provider requires the %s environment variable to be set.", e.Provider, e.Key)
}

// ErrStreamClosed is returned by a sink written to after its terminal event
var ErrStreamClosed = errors.New("stream already terminated")

// ErrNoPrompt is the validation message for a missing prompt
const ErrNoPrompt = "No prompt provided"
