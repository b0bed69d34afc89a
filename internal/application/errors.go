package application

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the requested reservation or computer does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrOverlapConflict is returned when a window intersects another reservation of the same computer.
	ErrOverlapConflict = errors.New("application: overlap conflict")
	// ErrStorageUnavailable wraps failures of the backing store.
	ErrStorageUnavailable = errors.New("application: storage unavailable")
	// ErrAlreadyExists is returned when a computer name is already taken.
	ErrAlreadyExists = errors.New("application: already exists")

	// errEmptyID is an internal failure, never a validation error.
	errEmptyID = errors.New("application: id generator returned an empty identifier")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// ConflictError identifies the reservation a rejected window collides with.
type ConflictError struct {
	ReservationID string
	ComputerID    string
	Start         time.Time
	End           time.Time
}

// Error implements the error interface.
func (c *ConflictError) Error() string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("reservation overlaps %s on computer %s", c.ReservationID, c.ComputerID)
}

// Unwrap lets errors.Is match ErrOverlapConflict.
func (c *ConflictError) Unwrap() error {
	return ErrOverlapConflict
}

func storageError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
