package ingest

import (
	"errors"
	"fmt"
)

// ValidationError indicates an upload was rejected before parsing.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// SizeLimitError indicates the file exceeded the upload limit.
type SizeLimitError struct {
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("File size too large. Maximum size is %dMB.", e.Limit/(1<<20))
}

// UnsupportedTypeError indicates neither the MIME type nor the extension is
// an accepted spreadsheet format.
type UnsupportedTypeError struct {
	MimeType string
	FileName string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("Only Excel (.xlsx, .xls) and CSV (.csv) files are allowed. Received: %s", e.MimeType)
}

// ParseError indicates the bytes could not be read as the claimed format.
// Error returns the user-facing message; the cause is available via Unwrap.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return "Invalid file format. Please ensure the file contains valid data."
}

func (e *ParseError) Unwrap() error { return e.Err }

// NotFoundError indicates the upload named a well that does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsRejected reports whether err is one of the pre-parse rejections: the
// request was refused rather than failing while being processed.
func IsRejected(err error) bool {
	var ve *ValidationError
	var se *SizeLimitError
	var ue *UnsupportedTypeError
	var nf *NotFoundError
	return errors.As(err, &ve) || errors.As(err, &se) || errors.As(err, &ue) || errors.As(err, &nf)
}
