package errors

import (
	"errors"
	"fmt"
)

var (
	ErrFileNotFound      = errors.New("file not found")
	ErrInvalidFileFormat = errors.New("invalid file format")
	ErrMissingSheet      = errors.New("required sheet category not found")
	ErrDecodeFailed      = errors.New("workbook could not be decoded")
	ErrRelayFailed       = errors.New("relay failed")
	ErrRunCancelled      = errors.New("run cancelled")
	ErrRunNotFound       = errors.New("run not found")
)

// FormatError reports a workbook that decoded fine but does not look like a manifest.
type FormatError struct {
	Sheet   string
	Message string
}

func (e FormatError) Error() string {
	if e.Sheet == "" {
		return fmt.Sprintf("wrong file format: %s", e.Message)
	}
	return fmt.Sprintf("wrong file format in sheet %q: %s", e.Sheet, e.Message)
}

func (e FormatError) Unwrap() error {
	return ErrInvalidFileFormat
}

// RelayError carries the position of the row the sink rejected.
// Row is 1-based over the whole run, pickups first.
type RelayError struct {
	Category string
	Row      int
	Key      int
	Err      error
}

func (e RelayError) Error() string {
	return fmt.Sprintf("upload failed at row %d (%s, key %d): %v", e.Row, e.Category, e.Key, e.Err)
}

func (e RelayError) Unwrap() []error {
	return []error{ErrRelayFailed, e.Err}
}

func NewDecodeError(err error) error {
	return fmt.Errorf("%w: %w", ErrDecodeFailed, err)
}
