package sqlite

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/shelf/pkg/document"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// timeLayout is the stored timestamp format. RFC3339Nano in UTC sorts
// lexically in time order.
const timeLayout = time.RFC3339Nano

// encodeValue validates a field value and converts it to its column value.
// Relationship fields are handled by relationIDs.
func (b *Backend) encodeValue(f *types.Field, v any) (any, error) {
	switch f.Type {
	case types.FieldText:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: want text, got %T", types.ErrTypeMismatch, v)
		}
		if f.Validation.IsRequired && strings.TrimSpace(s) == "" {
			return nil, types.ErrRequired
		}
		return s, nil

	case types.FieldPassword:
		if v == nil {
			if f.Validation.IsRequired {
				return nil, types.ErrRequired
			}
			return nil, nil
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: want text, got %T", types.ErrTypeMismatch, v)
		}
		if s == "" && f.Validation.IsRequired {
			return nil, types.ErrRequired
		}
		if utf8.RuneCountInString(s) < types.MinPasswordLength {
			return nil, fmt.Errorf("%w: must be at least %d characters", types.ErrInvalidValue, types.MinPasswordLength)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(s), b.passwordCost)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidValue, err)
		}
		return string(hash), nil

	case types.FieldCheckbox:
		on, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: want boolean, got %T", types.ErrTypeMismatch, v)
		}
		if on {
			return 1, nil
		}
		return 0, nil

	case types.FieldSelect:
		if v == nil {
			if f.Validation.IsRequired {
				return nil, types.ErrRequired
			}
			return nil, nil
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: want text, got %T", types.ErrTypeMismatch, v)
		}
		if !f.HasOption(s) {
			return nil, fmt.Errorf("%w: %q", types.ErrInvalidOption, s)
		}
		return s, nil

	case types.FieldTimestamp:
		t, set, err := toTime(v)
		if err != nil {
			return nil, err
		}
		if !set {
			if f.Validation.IsRequired {
				return nil, types.ErrRequired
			}
			return nil, nil
		}
		return t.UTC().Format(timeLayout), nil

	case types.FieldDocument:
		doc, err := document.From(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrTypeMismatch, err)
		}
		if err := document.Validate(doc, f.DocumentConfig()); err != nil {
			return nil, err
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		return string(data), nil

	default:
		return nil, fmt.Errorf("%w: %s fields are not stored in columns", types.ErrInvalidData, f.Type)
	}
}

// toTime accepts time.Time, *time.Time, RFC3339 strings and nil. An empty
// string clears the value.
func toTime(v any) (time.Time, bool, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return t, !t.IsZero(), nil
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false, nil
		}
		return *t, true, nil
	case string:
		if t == "" {
			return time.Time{}, false, nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%w: %q is not an RFC 3339 timestamp", types.ErrInvalidValue, t)
		}
		return parsed, true, nil
	default:
		return time.Time{}, false, fmt.Errorf("%w: want timestamp, got %T", types.ErrTypeMismatch, v)
	}
}

// relationIDs validates a relationship value: an ID or nil for a single
// relationship, a list of IDs for a many relationship. Duplicates collapse.
func relationIDs(f *types.Field, v any) ([]string, error) {
	if !f.Many {
		switch id := v.(type) {
		case nil:
			return nil, nil
		case string:
			if id == "" {
				return nil, nil
			}
			return []string{id}, nil
		default:
			return nil, fmt.Errorf("%w: want an item ID, got %T", types.ErrTypeMismatch, v)
		}
	}

	var raw []string
	switch ids := v.(type) {
	case nil:
	case []string:
		raw = ids
	case []any:
		for _, e := range ids {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: want item IDs, got %T element", types.ErrTypeMismatch, e)
			}
			raw = append(raw, s)
		}
	default:
		return nil, fmt.Errorf("%w: want a list of item IDs, got %T", types.ErrTypeMismatch, v)
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, id := range raw {
		if id == "" {
			return nil, fmt.Errorf("%w: empty item ID", types.ErrInvalidValue)
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// decodeValue converts a scanned column value back to the item
// representation of the field.
func decodeValue(f *types.Field, v any) (any, error) {
	switch f.Type {
	case types.FieldText:
		return asString(v), nil
	case types.FieldPassword:
		return types.PasswordState{IsSet: asString(v) != ""}, nil
	case types.FieldCheckbox:
		switch n := v.(type) {
		case int64:
			return n != 0, nil
		case float64:
			return n != 0, nil
		case bool:
			return n, nil
		default:
			return false, nil
		}
	case types.FieldSelect:
		if v == nil {
			return nil, nil
		}
		return asString(v), nil
	case types.FieldTimestamp:
		if v == nil {
			return nil, nil
		}
		t, err := time.Parse(timeLayout, asString(v))
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", f.Name, err)
		}
		return t, nil
	case types.FieldDocument:
		doc, err := document.Parse([]byte(asString(v)))
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", f.Name, err)
		}
		return doc, nil
	case types.FieldRelationship:
		if v == nil {
			return nil, nil
		}
		return asString(v), nil
	default:
		return v, nil
	}
}

// asString converts a scanned TEXT value to string.
func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

// filterValue converts a filter value for comparison with a column.
func filterValue(f *types.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case types.FieldText, types.FieldSelect, types.FieldRelationship:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s wants text, got %T", types.ErrInvalidFilter, f.Name, v)
		}
		return s, nil
	case types.FieldCheckbox:
		switch b := v.(type) {
		case bool:
			if b {
				return 1, nil
			}
			return 0, nil
		case string:
			switch b {
			case "true", "1":
				return 1, nil
			case "false", "0":
				return 0, nil
			}
		}
		return nil, fmt.Errorf("%w: %s wants a boolean, got %v", types.ErrInvalidFilter, f.Name, v)
	case types.FieldTimestamp:
		t, set, err := toTime(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", types.ErrInvalidFilter, f.Name, err)
		}
		if !set {
			return nil, nil
		}
		return t.UTC().Format(timeLayout), nil
	default:
		return nil, fmt.Errorf("%w: %s cannot be filtered", types.ErrInvalidFilter, f.Name)
	}
}
