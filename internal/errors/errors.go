package errors

import "fmt"

// ErrorCode represents a Will error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"     // 400
	ErrUnknownAction      ErrorCode = "UNKNOWN_ACTION"      // 400
	ErrNotFound           ErrorCode = "NOT_FOUND"           // 404
	ErrInternal           ErrorCode = "INTERNAL"            // 500
	ErrBrowserUnavailable ErrorCode = "BROWSER_UNAVAILABLE" // 503
	ErrDaemonUnavailable  ErrorCode = "DAEMON_UNAVAILABLE"  // 503
)

// WillError represents a structured error with code, status, and details.
type WillError struct {
	Code    ErrorCode      `json:"code"`
	Status  int            `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *WillError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *WillError {
	return &WillError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnknownAction creates a 400 error for a message action nobody handles.
func NewUnknownAction(action string) *WillError {
	return &WillError{
		Code:    ErrUnknownAction,
		Status:  400,
		Message: fmt.Sprintf("unknown action: %q", action),
		Details: map[string]any{"action": action},
	}
}

// NewNotFound creates a 404 error for a missing resource.
func NewNotFound(identifier string) *WillError {
	return &WillError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewBrowserUnavailable creates a 503 error when the browser cannot be reached.
func NewBrowserUnavailable(err error) *WillError {
	msg := "browser unavailable"
	if err != nil {
		msg = fmt.Sprintf("browser unavailable: %v", err)
	}
	return &WillError{
		Code:    ErrBrowserUnavailable,
		Status:  503,
		Message: msg,
	}
}

// NewDaemonUnavailable creates a 503 error when the will daemon cannot be reached.
func NewDaemonUnavailable(addr string, err error) *WillError {
	return &WillError{
		Code:    ErrDaemonUnavailable,
		Status:  503,
		Message: fmt.Sprintf("daemon not reachable at %s: %v (is `will serve` running?)", addr, err),
		Details: map[string]any{"addr": addr},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *WillError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &WillError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a WillError with the given code.
func Is(err error, code ErrorCode) bool {
	if wErr, ok := err.(*WillError); ok {
		return wErr.Code == code
	}
	return false
}
