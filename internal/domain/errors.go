package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAgentNotFound  = errors.New("agent not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrProviderError  = errors.New("provider error")
	ErrStreamClosed   = errors.New("stream already terminated")
	ErrEmptyResponse  = errors.New("provider returned no text content")
	ErrToolNotFound   = errors.New("tool not found")
	ErrDivisionByZero = errors.New("division by zero")
)

// UnknownErrorCode is the error-event code used when the provider did not
// report an HTTP status.
const UnknownErrorCode = "UNKNOWN"

// ProviderError is a failure reported by the upstream LLM API. StatusCode
// is zero when the request never got an HTTP response.
type ProviderError struct {
	StatusCode int
	ErrType    string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("provider error: %s", e.Message)
	}
	return fmt.Sprintf("provider error: status=%d type=%s: %s", e.StatusCode, e.ErrType, e.Message)
}

// Code returns the machine-readable code carried by an error event.
func (e *ProviderError) Code() string {
	if e.StatusCode == 0 {
		return UnknownErrorCode
	}
	return fmt.Sprintf("%d", e.StatusCode)
}
