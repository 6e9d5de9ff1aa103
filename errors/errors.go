package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"detail"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// InvalidInput reports a malformed request. Never retried.
func InvalidInput(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func NotFound(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// InvalidTransition reports a status change the job lifecycle does not allow.
func InvalidTransition(op string, from, to string) *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Message: fmt.Sprintf("cannot transition job from %s to %s", from, to),
		Op:      op,
	}
}

// Internal reports a store or infrastructure failure.
func Internal(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// As is errors.As from the standard library, re-exported so callers need one import.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

func codeOf(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return 0
}

func IsNotFound(err error) bool {
	return codeOf(err) == http.StatusNotFound
}

func IsInvalidTransition(err error) bool {
	return codeOf(err) == http.StatusConflict
}

func IsInvalidInput(err error) bool {
	return codeOf(err) == http.StatusBadRequest
}

// IsStoreFailure is true for Internal errors and for any error that is not an AppError.
func IsStoreFailure(err error) bool {
	if err == nil {
		return false
	}
	code := codeOf(err)
	return code == 0 || code >= http.StatusInternalServerError
}

// StatusCode returns the HTTP status for err, defaulting to 500.
func StatusCode(err error) int {
	if code := codeOf(err); code != 0 {
		return code
	}
	return http.StatusInternalServerError
}
