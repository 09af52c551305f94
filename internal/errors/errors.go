package errors

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError carrying the same code, so errors.Is(err, ErrValidation)
// holds for every validation failure regardless of its message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

const (
	CodeValidation   = "VAL_001"
	CodeDailyLimit   = "DOSE_001"
	CodeProfileGuard = "PROFILE_001"
	CodeNotFound     = "GEN_001"
	CodeBadRequest   = "GEN_002"
	CodeInternal     = "GEN_003"
	CodeUnauthorized = "AUTH_001"
	CodeForbidden    = "AUTH_002"
	CodeConflict     = "AUTH_003"
	CodeStorage      = "STORE_001"
	CodeConfig       = "CONFIG_002"
)

var (
	ErrConfigNotFound = &AppError{Code: "CONFIG_001", Message: "configuration not found"}
	ErrConfigInvalid  = &AppError{Code: CodeConfig, Message: "invalid configuration"}

	ErrValidation   = &AppError{Code: CodeValidation, Message: "validation failed"}
	ErrDailyLimit   = &AppError{Code: CodeDailyLimit, Message: "daily dose limit reached"}
	ErrProfileGuard = &AppError{Code: CodeProfileGuard, Message: "profile cannot be removed"}

	ErrUnauthorized = &AppError{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrForbidden    = &AppError{Code: CodeForbidden, Message: "forbidden"}
	ErrConflict     = &AppError{Code: CodeConflict, Message: "account already exists"}

	ErrStorage = &AppError{Code: CodeStorage, Message: "storage unavailable"}

	ErrNotFound   = &AppError{Code: CodeNotFound, Message: "resource not found"}
	ErrBadRequest = &AppError{Code: CodeBadRequest, Message: "bad request"}
	ErrInternal   = &AppError{Code: CodeInternal, Message: "internal error"}
)

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func GetCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Validation builds a validation error with a formatted message.
func Validation(format string, args ...interface{}) *AppError {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

// NotFound reports a missing entity of the given kind.
func NotFound(kind, id string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s %q not found", kind, id))
}
