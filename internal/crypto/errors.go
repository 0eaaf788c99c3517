/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package crypto

import (
	"errors"
	"fmt"
	"os"
)

// Error kinds. Every failure returned by the vault matches exactly one of
// these with errors.Is, or is an *IOError.
var (
	ErrInvalidKey             = errors.New("invalid key")
	ErrEmptyPassphrase        = errors.New("passphrase cannot be empty")
	ErrUnsupportedAlgorithm   = errors.New("unsupported algorithm")
	ErrAuthentication         = errors.New("message authentication failed")
	ErrMalformedContainer     = errors.New("malformed container")
	ErrNotFound               = errors.New("stored file not found")
	ErrUnsupportedPreviewType = errors.New("file type not supported for preview")
	ErrNamesExhausted         = errors.New("no free name left for upload")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation           = errors.New("validation failed")
	ErrEmptyFilename        = errors.New("empty filename")
	ErrUnsupportedExtension = errors.New("file type not allowed")
	ErrPayloadTooLarge      = errors.New("file too large")
)

// SanitizeError removes sensitive details for external consumption.
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrEmptyFilename):
		return errors.New("empty filename")
	case errors.Is(err, ErrUnsupportedExtension):
		return errors.New("file type not allowed")
	case errors.Is(err, ErrPayloadTooLarge):
		return errors.New("file too large")
	case errors.Is(err, ErrNotFound), errors.Is(err, os.ErrNotExist):
		return errors.New("file not found")
	case errors.Is(err, ErrAuthentication), errors.Is(err, ErrMalformedContainer):
		return errors.New("corrupted encrypted file")
	case errors.Is(err, ErrUnsupportedPreviewType):
		return errors.New("file type not supported for preview")
	case errors.Is(err, os.ErrPermission):
		return errors.New("insufficient permissions")
	default:
		return errors.New("operation failed")
	}
}

// ValidationError reports bad caller input: a missing or disallowed filename
// or an oversized payload.
type ValidationError struct {
	Field string // "filename" or "payload"
	Value any
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation error: %s %v: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("validation error: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

// NewValidationError creates a ValidationError wrapping one of the
// validation sentinels.
func NewValidationError(field string, value any, err error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Err: err}
}

// EncryptionError represents an encryption/decryption error with context.
type EncryptionError struct {
	Op   string // "encrypt", "decrypt", "derive"
	Name string // stored file name, if any
	Err  error
}

func (e *EncryptionError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// NewEncryptionError creates a new EncryptionError.
func NewEncryptionError(op, name string, err error) *EncryptionError {
	return &EncryptionError{Op: op, Name: name, Err: err}
}

// IOError is a filesystem failure in the storage directory. It is surfaced
// as-is and never retried.
type IOError struct {
	Op   string // "list", "read", "write", "delete", "stat"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// WrapError adds context to an error.
func WrapError(context string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}
