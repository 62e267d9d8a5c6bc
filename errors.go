package subgrab

import (
	"errors"
	"fmt"
)

// Application error codes. These map internal failures to the handful of
// outcomes callers actually branch on.
const (
	EINTERNAL    = "internal"    // unexpected failure
	EINVALID     = "invalid"     // rejected input, nothing was attempted
	ENOTFOUND    = "not_found"   // the resource vanished or never existed
	ESTORAGE     = "storage"     // merge/write failure, prior state intact
	EUNAVAILABLE = "unavailable" // upstream unreachable after retries
)

// Error represents an application error with a machine-readable code and a
// human-readable message.
type Error struct {
	// Code is one of the constants above.
	Code string

	// Message is a human-readable description safe to show the user.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("subgrab error: code=%s message=%s", e.Code, e.Message)
}

// Errorf is a helper to construct an *Error with a formatted message.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode unwraps err looking for an *Error and returns its code.
// Returns the empty string for nil and EINTERNAL for non-application errors.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage unwraps err looking for an *Error and returns its message.
// Non-application errors report a generic message so internals don't leak
// to the user.
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error."
}
