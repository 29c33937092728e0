package errors

import "fmt"

// ErrorCode represents a cjkfmt error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"  // 400
	ErrFileNotFound    ErrorCode = "FILE_NOT_FOUND"   // 404
	ErrInvalidEncoding ErrorCode = "INVALID_ENCODING" // 422
	ErrCancelled       ErrorCode = "CANCELLED"        // 499
	ErrInternal        ErrorCode = "INTERNAL"         // 500

	// ErrUnclosedFence never travels as an error value. It is the code
	// carried by the non-fatal advisory the engine attaches to its output.
	ErrUnclosedFence ErrorCode = "UNCLOSED_FENCE"
)

// FmtError represents a structured error with code, status, and details.
type FmtError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Err     error // wrapped cause, if any
}

// Error implements the error interface.
func (e *FmtError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause so errors.Is/As see through FmtError.
func (e *FmtError) Unwrap() error {
	return e.Err
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *FmtError {
	return &FmtError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewFileNotFound creates a 404 error for a path that does not exist.
func NewFileNotFound(path string) *FmtError {
	return &FmtError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("File not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewInvalidEncoding creates a 422 error for input that is not well-formed UTF-8.
// offset is the byte offset of the first invalid sequence.
func NewInvalidEncoding(offset int) *FmtError {
	return &FmtError{
		Code:    ErrInvalidEncoding,
		Status:  422,
		Message: fmt.Sprintf("input is not valid UTF-8 (first invalid byte at offset %d)", offset),
		Details: map[string]any{"offset": offset},
	}
}

// NewCancelled creates a 499 error for an operation stopped by its context.
func NewCancelled(operation string) *FmtError {
	return &FmtError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *FmtError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &FmtError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// WithPath returns a copy of e carrying the path of the file it concerns.
func (e *FmtError) WithPath(path string) *FmtError {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details["path"] = path
	cp := *e
	cp.Details = details
	return &cp
}

// Is checks if an error is a FmtError with the given code.
func Is(err error, code ErrorCode) bool {
	if fErr, ok := err.(*FmtError); ok {
		return fErr.Code == code
	}
	return false
}
