// Package store defines the error contract shared by the durable store
// implementations and their callers.
package store

import "errors"

var (
	// ErrNotFound is returned when an entity's natural key matches no row.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateKey is returned when a create collides with an existing
	// natural key that is not covered by upsert semantics (message ids and
	// task ids; node registration upserts instead).
	ErrDuplicateKey = errors.New("entity already exists")

	// ErrStatusConflict is returned when a conditional status update matches
	// no row: the entity is already terminal or another writer got there
	// first. The row is left unchanged.
	ErrStatusConflict = errors.New("status transition rejected")
)
