// Package pdferr defines the coded errors returned at the public boundaries of
// the grid renderer and the page stamper.
//
// Internals wrap with fmt.Errorf; the operation that the caller invoked
// converts the failure into an *Error carrying one of the codes below so the
// caller can branch on it:
//
//	out, err := stamper.Stamp(ctx, src, opts)
//	if pdferr.Is(err, pdferr.ImageUnavailable) {
//	    // retry with another image
//	}
package pdferr

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error category.
type Code string

const (
	// InvalidDimension reports a grid with a non-positive row or column count.
	InvalidDimension Code = "INVALID_DIMENSION"
	// SourceDocumentUnreadable reports a stamp source that is not a usable PDF.
	SourceDocumentUnreadable Code = "SOURCE_DOCUMENT_UNREADABLE"
	// ImageUnavailable reports an overlay image that cannot be loaded or decoded.
	ImageUnavailable Code = "IMAGE_UNAVAILABLE"
	// FontUnavailable reports a font file that cannot be loaded.
	FontUnavailable Code = "FONT_UNAVAILABLE"

	// InvalidInput reports malformed grid sources, configuration or arguments.
	InvalidInput Code = "INVALID_INPUT"
	// Internal reports unexpected failures while serializing output.
	Internal Code = "INTERNAL_ERROR"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around cause. A nil cause yields a plain coded error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether any *Error in err's chain carries code.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode returns the code of the outermost *Error in err's chain, or "".
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
