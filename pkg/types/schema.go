package types

import (
	"fmt"
	"strings"
)

// RelationKind classifies a relationship by the cardinality of both sides,
// seen from the declaring field.
type RelationKind int

// Relationship kinds.
const (
	// OneToMany: this side is many, the other side holds a single reference.
	OneToMany RelationKind = iota
	// ManyToOne: this side holds a single reference, the other side is many.
	ManyToOne
	OneToOne
	ManyToMany
)

// String returns the relationship kind name.
func (k RelationKind) String() string {
	switch k {
	case OneToMany:
		return "one-to-many"
	case ManyToOne:
		return "many-to-one"
	case OneToOne:
		return "one-to-one"
	case ManyToMany:
		return "many-to-many"
	default:
		return "unknown"
	}
}

// Relation is a resolved relationship field together with its back
// reference.
type Relation struct {
	List       *List
	Field      *Field
	Other      *List
	OtherField *Field
	Kind       RelationKind

	// Owner is true when this side stores the link: the foreign key column
	// of a many-to-one, or the join table / key column of a many-to-many or
	// one-to-one whose key sorts first.
	Owner bool
}

// Key returns "List.field" for this side.
func (r Relation) Key() string {
	return r.List.Name + "." + r.Field.Name
}

// JoinTable returns the join table name of a many-to-many relation, named
// after the owning side.
func (r Relation) JoinTable() string {
	if r.Owner {
		return "_" + r.List.Name + "_" + r.Field.Name
	}
	return "_" + r.Other.Name + "_" + r.OtherField.Name
}

// Schema is a validated, immutable set of lists.
type Schema struct {
	lists  []*List
	byName map[string]*List
}

// NewSchema builds a schema from lists in declaration order and validates it.
func NewSchema(lists ...*List) (*Schema, error) {
	s := &Schema{byName: make(map[string]*List, len(lists))}
	for _, l := range lists {
		if _, dup := s.byName[l.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate list %q", ErrInvalidSchema, l.Name)
		}
		s.lists = append(s.lists, l)
		s.byName[l.Name] = l
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Lists returns the lists in declaration order.
func (s *Schema) Lists() []*List {
	return s.lists
}

// List returns the named list or ErrListNotFound.
func (s *Schema) List(name string) (*List, error) {
	l, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrListNotFound, name)
	}
	return l, nil
}

// Relation resolves a relationship field of a list.
func (s *Schema) Relation(listName, fieldName string) (Relation, error) {
	l, err := s.List(listName)
	if err != nil {
		return Relation{}, err
	}
	f, ok := l.Field(fieldName)
	if !ok || !f.IsRelationship() {
		return Relation{}, fmt.Errorf("%w: %s.%s is not a relationship", ErrInvalidSchema, listName, fieldName)
	}
	other, err := s.List(f.RefList())
	if err != nil {
		return Relation{}, fmt.Errorf("%w: %s.%s refers to %w", ErrInvalidSchema, listName, fieldName, err)
	}
	otherField, ok := other.Field(f.RefField())
	if !ok {
		return Relation{}, fmt.Errorf("%w: %s.%s refers to missing field %s", ErrInvalidSchema, listName, fieldName, f.Ref)
	}

	r := Relation{List: l, Field: f, Other: other, OtherField: otherField}
	thisKey := l.Name + "." + f.Name
	switch {
	case f.Many && otherField.Many:
		r.Kind = ManyToMany
		r.Owner = thisKey <= f.Ref
	case f.Many:
		r.Kind = OneToMany
	case otherField.Many:
		r.Kind = ManyToOne
		r.Owner = true
	default:
		r.Kind = OneToOne
		r.Owner = thisKey <= f.Ref
	}
	return r, nil
}

// Relations returns the resolved relationship fields of a list in
// declaration order.
func (s *Schema) Relations(listName string) ([]Relation, error) {
	l, err := s.List(listName)
	if err != nil {
		return nil, err
	}
	var out []Relation
	for _, f := range l.Fields {
		if !f.IsRelationship() {
			continue
		}
		r, err := s.Relation(listName, f.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Validate checks the declaration: field names and types, select options
// and defaults, symmetric relationship back references, document layouts,
// and that UI hints name real fields.
func (s *Schema) Validate() error {
	for _, l := range s.lists {
		if l.Name == "" {
			return fmt.Errorf("%w: list with empty name", ErrInvalidSchema)
		}
		seen := map[string]bool{"id": true}
		for i := range l.Fields {
			f := &l.Fields[i]
			if f.Name == "" {
				return fmt.Errorf("%w: %s has a field with an empty name", ErrInvalidSchema, l.Name)
			}
			if seen[f.Name] {
				return fmt.Errorf("%w: %s.%s declared twice", ErrInvalidSchema, l.Name, f.Name)
			}
			seen[f.Name] = true
			if err := s.validateField(l, f); err != nil {
				return err
			}
		}
		for _, col := range l.UI.ListView.InitialColumns {
			if _, ok := l.Field(col); !ok && col != "id" {
				return fmt.Errorf("%w: %s initial column %q is not a field", ErrInvalidSchema, l.Name, col)
			}
		}
	}
	return nil
}

func (s *Schema) validateField(l *List, f *Field) error {
	where := l.Name + "." + f.Name
	if !IsValidFieldType(f.Type) {
		return fmt.Errorf("%w: %s has unknown type %q", ErrInvalidSchema, where, f.Type)
	}
	switch f.IsIndexed {
	case IndexNone, IndexIndex, IndexUnique:
	default:
		return fmt.Errorf("%w: %s has unknown index mode %q", ErrInvalidSchema, where, f.IsIndexed)
	}

	switch f.Type {
	case FieldSelect:
		if len(f.Options) == 0 {
			return fmt.Errorf("%w: %s has no options", ErrInvalidSchema, where)
		}
		if f.DefaultValue != nil {
			v, ok := f.DefaultValue.(string)
			if !ok || !f.HasOption(v) {
				return fmt.Errorf("%w: %s default %v is not an option", ErrInvalidSchema, where, f.DefaultValue)
			}
		}

	case FieldDocument:
		for _, layout := range f.DocumentConfig().Layouts {
			if len(layout) == 0 {
				return fmt.Errorf("%w: %s has an empty layout", ErrInvalidSchema, where)
			}
			for _, w := range layout {
				if w <= 0 {
					return fmt.Errorf("%w: %s layout %v has a non-positive width", ErrInvalidSchema, where, layout)
				}
			}
		}

	case FieldRelationship:
		r, err := s.Relation(l.Name, f.Name)
		if err != nil {
			return err
		}
		if !r.OtherField.IsRelationship() || r.OtherField.Ref != where {
			return fmt.Errorf("%w: %s refers to %s which does not refer back", ErrInvalidSchema, where, f.Ref)
		}
		for _, cf := range f.UI.CardFields {
			if _, ok := r.Other.Field(cf); !ok {
				return fmt.Errorf("%w: %s card field %q is not a field of %s", ErrInvalidSchema, where, cf, r.Other.Name)
			}
		}
		if f.IsIndexed == IndexUnique || f.Validation.IsRequired {
			return fmt.Errorf("%w: %s relationships cannot be unique or required", ErrInvalidSchema, where)
		}
	}
	return nil
}

func splitRef(ref string) (string, string) {
	list, field, _ := strings.Cut(ref, ".")
	return list, field
}
