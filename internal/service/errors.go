package service

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrCustomOrderNotFound = errors.New("custom order not found")
	ErrMessageNotFound     = errors.New("message not found")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrTerminalStatus      = errors.New("order is in a terminal status")
	ErrCheckoutInProgress  = errors.New("checkout already in progress")
)

// UploadError is a blob store failure. No order record is written after one.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s failed: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// PersistenceError is a record store write failure. The caller may retry
// with the same input; Conflict marks a uniqueness collision, which a retry
// resolves by generating a fresh order id.
type PersistenceError struct {
	Op       string
	Conflict bool
	Err      error
}

func (e *PersistenceError) Error() string {
	if e.Conflict {
		return fmt.Sprintf("%s: conflicting record: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
