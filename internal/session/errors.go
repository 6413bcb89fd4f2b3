package session

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// ErrSessionExpired is the terminal authentication failure: the refresh
// protocol has been exhausted and the stored credentials were cleared. The
// caller must return the user to an unauthenticated state.
var ErrSessionExpired = errors.New("session expired: re-authentication required")

// APIError is a non-2xx response from the server.
// For 400 responses Fields holds the field-keyed validation messages.
type APIError struct {
	StatusCode int
	Detail     string
	Fields     map[string][]string
}

func (e *APIError) Error() string {
	if msg := e.FirstFieldMessage(); msg != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, msg)
	}
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// FirstFieldMessage returns the first validation message in deterministic
// field order, or "" when there are none. The UI surfaces only this one.
func (e *APIError) FirstFieldMessage() string {
	if len(e.Fields) == 0 {
		return ""
	}
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		if msgs := e.Fields[f]; len(msgs) > 0 {
			return msgs[0]
		}
	}
	return ""
}

// IsValidation reports whether err is a 400 validation failure.
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest
}

// IsAuth reports whether err is a 401 authorization failure that survived the
// refresh protocol.
func IsAuth(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// NetworkError wraps timeouts and connection failures. These are never
// retried automatically; the UI shows a generic connectivity message.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetwork reports whether err is a connectivity failure.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
