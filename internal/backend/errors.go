package backend

import (
	"errors"
	"fmt"
)

// Validation failures detected before any request is made.
var (
	ErrNoFiles          = errors.New("no files selected")
	ErrNoURL            = errors.New("no video URL provided")
	ErrInvalidRange     = errors.New("invalid time range")
	ErrNoFormatSelected = errors.New("no format selected")
)

// ValidationError reports input that was rejected locally.
type ValidationError struct {
	Err     error
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Invalid builds a ValidationError around one of the sentinel errors.
func Invalid(err error, msg string) error {
	return &ValidationError{Err: err, Message: msg}
}

// TransportError reports a request that failed before a usable response
// arrived: connection failures, non-2xx replies without an error body,
// and undecodable bodies.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Network reports whether the failure looks like the backend being
// unreachable rather than answering badly.
func (e *TransportError) Network() bool {
	return IsNetworkError(e.Err)
}

// BackendError carries the "error" field of a backend response.
type BackendError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	return e.Message
}

// UserMessage returns the text shown to the user for err.
func UserMessage(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}

	var berr *BackendError
	if errors.As(err, &berr) {
		if berr.Message == "" {
			return "Unknown error"
		}
		return berr.Message
	}

	var terr *TransportError
	if errors.As(err, &terr) {
		return "Request failed: " + terr.Error()
	}

	return err.Error()
}
