// Package apperr defines error kinds shared by the auth and chatroom components.
// Components wrap the underlying cause with one of these kinds so the transport
// layer can pick a status without knowing about storage.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidSession     = errors.New("invalid session")
	ErrInternalWrite      = errors.New("internal write failure")
	ErrInvalidInput       = errors.New("invalid input")
)

// Wrap returns an error matching both kind and cause with errors.Is.
func Wrap(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// Kind returns the first known kind found in err's chain or nil.
func Kind(err error) error {
	for _, k := range []error{
		ErrStorageUnavailable,
		ErrNotFound,
		ErrConflict,
		ErrForbidden,
		ErrInvalidSession,
		ErrInternalWrite,
		ErrInvalidInput,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Internal wraps err with ErrInternalWrite unless it already carries a kind
func Internal(err error) error {
	if err == nil || Kind(err) != nil {
		return err
	}
	return Wrap(ErrInternalWrite, err)
}
