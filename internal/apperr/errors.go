package apperr

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrNoSelection     = errors.New("no items selected")
	ErrSuperseded      = errors.New("upload superseded")
	ErrNoDraft         = errors.New("no draft open")
	ErrUnknownField    = errors.New("unknown field")
)

// RepoError wraps a failed repository or blob-store call. These are surfaced
// to the caller as operation-level failures; the engine never retries them.
type RepoError struct {
	Op  string
	Err error
}

func (e *RepoError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *RepoError) Unwrap() error { return e.Err }

// Repo wraps err with the failing operation name. Returns nil for nil err.
func Repo(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RepoError{Op: op, Err: err}
}

func IsRepo(err error) bool {
	var re *RepoError
	return errors.As(err, &re)
}

// IsValidation reports whether err is an aggregated required-field error
// produced by draft validation.
func IsValidation(err error) bool {
	var ve validation.Errors
	return errors.As(err, &ve)
}
