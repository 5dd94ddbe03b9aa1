package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a sketchlab error code.
type ErrorCode string

const (
	ErrInvalidRequest              ErrorCode = "INVALID_REQUEST"               // 400
	ErrNotFound                    ErrorCode = "NOT_FOUND"                     // 404
	ErrFileNotFound                ErrorCode = "FILE_NOT_FOUND"                // 404
	ErrConflict                    ErrorCode = "CONFLICT"                      // 409
	ErrHistoryEmpty                ErrorCode = "HISTORY_EMPTY"                 // 409
	ErrAssistDisabled              ErrorCode = "ASSIST_DISABLED"               // 403
	ErrInvalidGeometry             ErrorCode = "INVALID_GEOMETRY"              // 422
	ErrCancelled                   ErrorCode = "CANCELLED"                     // 499
	ErrInternal                    ErrorCode = "INTERNAL"                      // 500
	ErrSuggestionSourceUnavailable ErrorCode = "SUGGESTION_SOURCE_UNAVAILABLE" // 503
)

// SketchError represents a structured error with code, status, and details.
type SketchError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *SketchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *SketchError {
	return &SketchError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing shape, suggestion or drawing.
func NewNotFound(kind, identifier string) *SketchError {
	return &SketchError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *SketchError {
	return &SketchError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *SketchError {
	return &SketchError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewNothingToUndo is returned by an undo on an empty history.
func NewNothingToUndo() *SketchError {
	return &SketchError{
		Code:    ErrHistoryEmpty,
		Status:  409,
		Message: "nothing to undo",
		Details: map[string]any{"stack": "undo"},
	}
}

// NewNothingToRedo is returned by a redo on an empty redo stack.
func NewNothingToRedo() *SketchError {
	return &SketchError{
		Code:    ErrHistoryEmpty,
		Status:  409,
		Message: "nothing to redo",
		Details: map[string]any{"stack": "redo"},
	}
}

// NewAssistDisabled is returned when suggestions are used under the H_ONLY condition.
func NewAssistDisabled() *SketchError {
	return &SketchError{
		Code:    ErrAssistDisabled,
		Status:  403,
		Message: "suggestions are disabled for this condition",
	}
}

// NewInvalidGeometry creates a 422 error for malformed shape geometry.
func NewInvalidGeometry(kind, reason string) *SketchError {
	return &SketchError{
		Code:    ErrInvalidGeometry,
		Status:  422,
		Message: fmt.Sprintf("invalid %s geometry: %s", kind, reason),
		Details: map[string]any{"kind": kind, "reason": reason},
	}
}

// NewCancelled creates an error for an operation aborted by its context.
func NewCancelled(op string) *SketchError {
	return &SketchError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
		Details: map[string]any{"operation": op},
	}
}

// NewSourceUnavailable wraps a failing suggestion source.
func NewSourceUnavailable(source string, err error) *SketchError {
	msg := fmt.Sprintf("suggestion source %s unavailable", source)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &SketchError{
		Code:    ErrSuggestionSourceUnavailable,
		Status:  503,
		Message: msg,
		Details: map[string]any{"source": source},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *SketchError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &SketchError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is (or wraps) a SketchError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *SketchError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}

// IsBenign reports whether err is a no-op condition the editor should
// surface as a notice rather than a failure.
func IsBenign(err error) bool {
	return Is(err, ErrHistoryEmpty) || Is(err, ErrNotFound)
}
