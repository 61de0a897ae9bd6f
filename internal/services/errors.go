package services

import "finassist/internal/core"

// storageErr marks err as a failure of the persisted table rather than of
// the caller's input.
func storageErr(table, op string, err error) error {
	return &core.StorageError{Table: table, Op: op, Err: err}
}
