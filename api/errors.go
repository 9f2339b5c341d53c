package api

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrIndexOutOfRange is returned when a cursor is read or advanced
	// beyond the bounds of its collection.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrDuplicate is returned by Database.Add when a document with the same
	// identifier is already present.
	ErrDuplicate = errors.New("duplicate document identifier")

	// ErrMissingIdentifier is returned when a document without identifier is
	// added to a database.
	ErrMissingIdentifier = errors.New("missing document identifier")

	// ErrInvalidIdentifier is returned for database or document identifiers
	// that cannot be used.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrDocumentNotFound is returned when no document matches the given
	// identifier.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrCannotModifyID is returned when trying to change the _id property
	// of an existing document.
	ErrCannotModifyID = errors.New("the _id property cannot be modified")

	// ErrDatabaseNotFound is returned by a Gateway when no durable
	// representation exists for a database.
	ErrDatabaseNotFound = errors.New("database not found")
)

func outOfRange(position, count int) error {
	return errors.Wrapf(ErrIndexOutOfRange, "position %d, count %d", position, count)
}

// ReaderError reports a database that could not be read from durable storage,
// either because it does not exist or because its representation is corrupt.
type ReaderError struct {
	Identifier string
	Err        error
}

func (e *ReaderError) Error() string {
	return fmt.Sprintf("could not read database %q: %v", e.Identifier, e.Err)
}

func (e *ReaderError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether the database has no durable representation.
func (e *ReaderError) IsNotFound() bool {
	return errors.Is(e.Err, ErrDatabaseNotFound)
}

// WriterError reports a failure to persist a database.
type WriterError struct {
	Identifier string
	Err        error
}

func (e *WriterError) Error() string {
	return fmt.Sprintf("could not persist database %q: %v", e.Identifier, e.Err)
}

func (e *WriterError) Unwrap() error {
	return e.Err
}
