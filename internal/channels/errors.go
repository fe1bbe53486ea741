package channels

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a transport failure for metrics and retry decisions.
type ErrorCode string

const (
	ErrCodeConnection     ErrorCode = "CONNECTION_ERROR"
	ErrCodeAuthentication ErrorCode = "AUTH_ERROR" // bot token invalid or revoked
	ErrCodeRateLimit      ErrorCode = "RATE_LIMIT_ERROR"
	ErrCodeInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrCodeForbidden      ErrorCode = "FORBIDDEN" // user blocked the bot or never started it
	ErrCodeTimeout        ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
	ErrCodeConfig         ErrorCode = "CONFIG_ERROR"
)

// Transient failures worth another attempt.
var retryable = map[ErrorCode]bool{
	ErrCodeConnection: true,
	ErrCodeRateLimit:  true,
	ErrCodeTimeout:    true,
}

// Error is a classified transport error. Context carries fields such as
// chat_id for logs.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// WithContext attaches key=value to e and returns e.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context[key] = value
	return e
}

// IsRetryable reports whether the failure is transient.
func (e *Error) IsRetryable() bool { return retryable[e.Code] }

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func ErrConnection(message string, err error) *Error {
	return newError(ErrCodeConnection, message, err)
}

func ErrAuthentication(message string, err error) *Error {
	return newError(ErrCodeAuthentication, message, err)
}

func ErrRateLimit(message string, err error) *Error {
	return newError(ErrCodeRateLimit, message, err)
}

func ErrInvalidInput(message string, err error) *Error {
	return newError(ErrCodeInvalidInput, message, err)
}

func ErrForbidden(message string, err error) *Error {
	return newError(ErrCodeForbidden, message, err)
}

func ErrTimeout(message string, err error) *Error {
	return newError(ErrCodeTimeout, message, err)
}

func ErrInternal(message string, err error) *Error {
	return newError(ErrCodeInternal, message, err)
}

func ErrConfig(message string, err error) *Error {
	return newError(ErrCodeConfig, message, err)
}

// GetErrorCode returns the code of the first *Error in err's chain, or
// ErrCodeInternal when there is none.
func GetErrorCode(err error) ErrorCode {
	var chErr *Error
	if errors.As(err, &chErr) {
		return chErr.Code
	}
	return ErrCodeInternal
}

// IsRetryable reports whether err wraps a transient *Error.
func IsRetryable(err error) bool {
	var chErr *Error
	return errors.As(err, &chErr) && chErr.IsRetryable()
}
