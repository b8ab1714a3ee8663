package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyTLDList   = errors.New("tld list is empty")
	ErrUnknownIOCType = errors.New("unknown ioc type")
)

// FetchError means the TLD registry could not be loaded.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to load tld registry from %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StorageError wraps an I/O failure of the IOC store. Op names the store
// operation that failed (insert, query, ...).
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
