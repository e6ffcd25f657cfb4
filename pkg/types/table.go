package types

import (
	"context"
	"errors"

	"github.com/mesh-intelligence/shelf/pkg/document"
)

// Filter selects items in ListTable.Fetch and Count. Keys are filterable
// field names matched by equality, plus the reserved keys "limit" and
// "offset".
type Filter map[string]any

// Reserved filter keys.
const (
	FilterLimit  = "limit"
	FilterOffset = "offset"
)

// ListTable provides uniform CRUD operations for the items of one list.
// Every operation reads the session from ctx and checks the list's access
// rule for that operation before touching storage.
type ListTable interface {
	// Get retrieves the item with the given ID.
	// Returns ErrNotFound if no item exists with that ID.
	Get(ctx context.Context, id string) (*Item, error)

	// Set creates or updates an item. When id is empty a new item is
	// created with a UUID v7; otherwise the provided values are merged into
	// the stored item. Returns the ID used.
	Set(ctx context.Context, id string, item *Item) (string, error)

	// Delete removes the item with the given ID and clears references to
	// it from related lists.
	// Returns ErrNotFound if no item exists with that ID.
	Delete(ctx context.Context, id string) error

	// Fetch returns all items matching the filter in creation order. An
	// empty filter returns every item in the list.
	Fetch(ctx context.Context, filter Filter) ([]*Item, error)

	// Count returns the number of items matching the filter.
	Count(ctx context.Context, filter Filter) (int, error)
}

// Item operation errors.
var (
	ErrNotFound      = errors.New("item not found")
	ErrInvalidID     = errors.New("invalid item ID")
	ErrInvalidData   = errors.New("invalid item data")
	ErrAccessDenied  = errors.New("access denied")
	ErrInvalidFilter = errors.New("invalid filter")
)

// Field validation errors, reported inside a ValidationError.
var (
	ErrRequired      = errors.New("value is required")
	ErrDuplicate     = errors.New("value must be unique")
	ErrUnknownField  = errors.New("unknown field")
	ErrTypeMismatch  = errors.New("type mismatch")
	ErrInvalidOption = errors.New("value is not an allowed option")
	ErrInvalidValue  = errors.New("invalid value")

	// ErrInvalidDocument matches document fields that fail document.Validate.
	ErrInvalidDocument = document.ErrInvalid
)

// ErrInvalidCredentials is returned when a sign-in identity or secret does
// not match a stored item.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Schema declaration errors.
var (
	ErrListNotFound  = errors.New("list not found")
	ErrInvalidSchema = errors.New("invalid schema")
)
