package repositories

import (
	"errors"
	"fmt"
)

type ErrNotFound struct {
}

func (e *ErrNotFound) Error() string {
	return "not found"
}

func IsNotFound(err error) bool {
	var notFound *ErrNotFound
	return errors.As(err, &notFound)
}

// ErrCorrupt is returned when stored data exists but cannot be decoded.
type ErrCorrupt struct {
	Err error
}

func (e *ErrCorrupt) Error() string {
	return fmt.Sprintf("corrupt save data: %v", e.Err)
}

func (e *ErrCorrupt) Unwrap() error {
	return e.Err
}

func IsCorrupt(err error) bool {
	var corrupt *ErrCorrupt
	return errors.As(err, &corrupt)
}
