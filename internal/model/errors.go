package model

import (
	"errors"
	"fmt"
)

// FetchError reports a content fetch failure (network, status or timeout).
type FetchError struct {
	URL   string
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// SearchProviderError reports a non-success response from a search backend.
type SearchProviderError struct {
	Provider string
	Query    string
	Status   string
	Cause    error
}

func (e *SearchProviderError) Error() string {
	msg := fmt.Sprintf("search %s %q", e.Provider, e.Query)
	if e.Status != "" {
		msg += ": " + e.Status
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SearchProviderError) Unwrap() error { return e.Cause }

// ModelInvocationError reports a failed language model call.
type ModelInvocationError struct {
	Provider string
	Phase    string
	Cause    error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("model %s (%s): %v", e.Provider, e.Phase, e.Cause)
}

func (e *ModelInvocationError) Unwrap() error { return e.Cause }

// MalformedOutputError reports model output that is not the expected
// structured shape. Raw keeps the offending text for prompt debugging.
type MalformedOutputError struct {
	Raw    string
	Reason string
	Cause  error
}

func (e *MalformedOutputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed model output: %s: %v", e.Reason, e.Cause)
	}
	return "malformed model output: " + e.Reason
}

func (e *MalformedOutputError) Unwrap() error { return e.Cause }

// CancelledError is returned when a run observes a cancellation request at
// a stage checkpoint.
type CancelledError struct {
	ClientID string
	Stage    string
	Reason   string
}

func (e *CancelledError) Error() string {
	msg := fmt.Sprintf("enrichment for client %s cancelled before stage %s", e.ClientID, e.Stage)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// AlreadyInProgressError rejects a run while another is pending or running.
type AlreadyInProgressError struct {
	ClientID  string
	SessionID string
	Status    SessionStatus
}

func (e *AlreadyInProgressError) Error() string {
	return fmt.Sprintf("enrichment already in progress for client %s (session %s is %s)", e.ClientID, e.SessionID, e.Status)
}

// ConfigurationError reports a provider invoked without its required setting.
type ConfigurationError struct {
	Provider string
	Setting  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s is not configured", e.Provider, e.Setting)
}

// ValidationError rejects malformed run input before any state is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid client input: %s %s", e.Field, e.Reason)
}

// StageError tags a failure with the pipeline stage that produced it.
type StageError struct {
	Stage string
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error { return e.Cause }

// IsCancelled reports whether err carries a CancelledError.
func IsCancelled(err error) bool {
	var ce *CancelledError
	return errors.As(err, &ce)
}

// ErrorKind returns a short, stable label for err, used in metrics and logs.
func ErrorKind(err error) string {
	var (
		fetchErr     *FetchError
		searchErr    *SearchProviderError
		modelErr     *ModelInvocationError
		malformedErr *MalformedOutputError
		cancelErr    *CancelledError
		progressErr  *AlreadyInProgressError
		configErr    *ConfigurationError
		validErr     *ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cancelErr):
		return "cancelled"
	case errors.As(err, &configErr):
		return "configuration"
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &searchErr):
		return "search"
	case errors.As(err, &malformedErr):
		return "malformed_output"
	case errors.As(err, &modelErr):
		return "model"
	case errors.As(err, &progressErr):
		return "already_in_progress"
	case errors.As(err, &validErr):
		return "validation"
	default:
		return "internal"
	}
}
