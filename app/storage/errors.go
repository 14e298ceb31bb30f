package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

var (
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict matches every *ConflictError.
	ErrConflict = errors.New("storage: conflict")
)

// NotFoundError reports a missing row.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("storage: %s not found", e.Entity) }

// Is makes errors.Is(err, ErrNotFound) hold.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Code names the error for handler summaries.
func (e *NotFoundError) Code() string { return "not_found" }

// ConflictError reports a uniqueness violation on Field.
type ConflictError struct {
	Field string
	Err   error
}

func (e *ConflictError) Error() string { return fmt.Sprintf("storage: duplicate %s", e.Field) }

// Is makes errors.Is(err, ErrConflict) hold.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func (e *ConflictError) Unwrap() error { return e.Err }

// Code names the error for handler summaries.
func (e *ConflictError) Code() string { return "conflict" }

// PersistenceError wraps any other database failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

// Code names the error for handler summaries.
func (e *PersistenceError) Code() string { return "persistence" }

// IsPersistence reports whether err is, or wraps, a *PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// sqlite extended result codes for unique and primary key violations.
const (
	sqliteConstraintUnique     = 2067
	sqliteConstraintPrimaryKey = 1555
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() {
		case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// wrap classifies a driver error for op. Unique violations become a
// *ConflictError on field; everything else becomes a *PersistenceError.
func wrap(op, field string, err error) error {
	if err == nil {
		return nil
	}
	if field != "" && isUniqueViolation(err) {
		return &ConflictError{Field: field, Err: err}
	}
	return &PersistenceError{Op: op, Err: err}
}
