package types

import "errors"

// Store is the backend-agnostic storage for a schema. Callers attach to a
// backend, access list tables by name, and detach when done.
type Store interface {
	// Schema returns the declaration the store was built from.
	Schema() *Schema

	// GetTable returns the ListTable for the given list name.
	// Returns ErrListNotFound if the schema has no such list.
	GetTable(name string) (ListTable, error)

	// Attach connects the store to the backend described by config and
	// migrates the storage schema. Returns ErrAlreadyAttached if called
	// while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls succeed.
	// After Detach, operations return ErrStoreDetached.
	Detach() error
}

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)
