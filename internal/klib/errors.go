package klib

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"klibexport/internal/diag"
)

// ErrRead marks every fatal failure to load a library.
var ErrRead = errors.New("klib read error")

// ReadError describes why a library could not be loaded.
type ReadError struct {
	Path string
	Code diag.Code
	Err  error
}

func (e *ReadError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

func readError(path string, code diag.Code, err error) error {
	return errors.Mark(&ReadError{Path: path, Code: code, Err: err}, ErrRead)
}

func readErrorf(path string, code diag.Code, format string, args ...any) error {
	return readError(path, code, errors.Newf(format, args...))
}

// NewReadError builds a fatal read error for problems found after decoding,
// such as two inputs sharing a unique name.
func NewReadError(path string, code diag.Code, format string, args ...any) error {
	return readErrorf(path, code, format, args...)
}

// CodeOf extracts the diagnostic code of a read error, or UnknownCode.
func CodeOf(err error) diag.Code {
	var re *ReadError
	if errors.As(err, &re) {
		return re.Code
	}
	return diag.UnknownCode
}
