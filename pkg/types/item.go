package types

import (
	"encoding/json"
	"time"
)

// Item is one stored entry of a list. Values are keyed by field name.
//
// Value representation by field type: text and select hold string (select
// may be nil), checkbox holds bool, timestamp holds time.Time or nil,
// document holds document.Document, a single relationship holds the related
// item ID or nil, a many relationship holds []string, and password holds a
// PasswordState (the hash is never returned).
type Item struct {
	ID     string
	List   string
	Values map[string]any
}

// NewItem returns an item of the given list with the given values.
func NewItem(list string, values map[string]any) *Item {
	if values == nil {
		values = make(map[string]any)
	}
	return &Item{List: list, Values: values}
}

// PasswordState reports whether a password field holds a hash.
type PasswordState struct {
	IsSet bool `json:"isSet"`
}

// Get returns the value of a field.
func (i *Item) Get(field string) (any, bool) {
	v, ok := i.Values[field]
	return v, ok
}

// String returns a text or select value, or "".
func (i *Item) String(field string) string {
	s, _ := i.Values[field].(string)
	return s
}

// Bool returns a checkbox value.
func (i *Item) Bool(field string) bool {
	b, _ := i.Values[field].(bool)
	return b
}

// Time returns a timestamp value and whether it is set.
func (i *Item) Time(field string) (time.Time, bool) {
	t, ok := i.Values[field].(time.Time)
	return t, ok
}

// IDs returns the related item IDs of a relationship field. A single
// relationship yields zero or one ID.
func (i *Item) IDs(field string) []string {
	switch v := i.Values[field].(type) {
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// MarshalJSON flattens the item into one object with "id" next to the
// field values.
func (i *Item) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(i.Values)+1)
	for k, v := range i.Values {
		out[k] = v
	}
	out["id"] = i.ID
	return json.Marshal(out)
}
