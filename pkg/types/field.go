package types

import "github.com/mesh-intelligence/shelf/pkg/document"

// Field types determine storage, accepted values and admin rendering.
const (
	FieldText         = "text"
	FieldPassword     = "password"
	FieldCheckbox     = "checkbox"
	FieldSelect       = "select"
	FieldTimestamp    = "timestamp"
	FieldRelationship = "relationship"
	FieldDocument     = "document"
)

// validFieldTypes is the set of recognized field types.
var validFieldTypes = map[string]bool{
	FieldText:         true,
	FieldPassword:     true,
	FieldCheckbox:     true,
	FieldSelect:       true,
	FieldTimestamp:    true,
	FieldRelationship: true,
	FieldDocument:     true,
}

// IsValidFieldType reports whether the given string is a recognized field type.
func IsValidFieldType(ft string) bool {
	return validFieldTypes[ft]
}

// Index modes for Field.IsIndexed.
const (
	IndexNone   = ""
	IndexIndex  = "index"
	IndexUnique = "unique"
)

// Select storage types. Enum selects are declared as a named enum in the
// API; both are stored as text.
const (
	SelectString = "string"
	SelectEnum   = "enum"
)

// Display modes for select and relationship fields.
const (
	DisplaySelect           = "select"
	DisplaySegmentedControl = "segmented-control"
	DisplayRadio            = "radio"
	DisplayCards            = "cards"
	DisplayCount            = "count"
)

// MinPasswordLength is the shortest password accepted by password fields.
const MinPasswordLength = 8

// Validation holds per-field validation rules.
type Validation struct {
	IsRequired bool `json:"isRequired,omitempty" yaml:"isRequired,omitempty"`
}

// Option is one allowed value of a select field.
type Option struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// InlineFields names the fields shown by an inline edit or create form.
type InlineFields struct {
	Fields []string `json:"fields" yaml:"fields"`
}

// FieldUI holds admin presentation hints for a field.
type FieldUI struct {
	DisplayMode   string        `json:"displayMode,omitempty" yaml:"displayMode,omitempty"`
	CardFields    []string      `json:"cardFields,omitempty" yaml:"cardFields,omitempty"`
	InlineEdit    *InlineFields `json:"inlineEdit,omitempty" yaml:"inlineEdit,omitempty"`
	InlineCreate  *InlineFields `json:"inlineCreate,omitempty" yaml:"inlineCreate,omitempty"`
	InlineConnect bool          `json:"inlineConnect,omitempty" yaml:"inlineConnect,omitempty"`
	LinkToItem    bool          `json:"linkToItem,omitempty" yaml:"linkToItem,omitempty"`
}

// Field declares one attribute of a list.
type Field struct {
	Name         string     `json:"name" yaml:"name"`
	Type         string     `json:"type" yaml:"type"`
	Validation   Validation `json:"validation,omitzero" yaml:"validation,omitempty"`
	IsIndexed    string     `json:"isIndexed,omitempty" yaml:"isIndexed,omitempty"`
	IsFilterable bool       `json:"isFilterable,omitempty" yaml:"isFilterable,omitempty"`

	// DefaultValue applies on create when no value is given.
	DefaultValue any `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`

	// Options and SelectType apply to select fields.
	Options    []Option `json:"options,omitempty" yaml:"options,omitempty"`
	SelectType string   `json:"selectType,omitempty" yaml:"selectType,omitempty"`

	// Ref ("List.field") and Many apply to relationship fields.
	Ref  string `json:"ref,omitempty" yaml:"ref,omitempty"`
	Many bool   `json:"many,omitempty" yaml:"many,omitempty"`

	// Document applies to document fields.
	Document *document.Config `json:"document,omitempty" yaml:"document,omitempty"`

	UI FieldUI `json:"ui,omitzero" yaml:"ui,omitempty"`
}

// IsRelationship reports whether the field links to another list.
func (f *Field) IsRelationship() bool {
	return f.Type == FieldRelationship
}

// RefList returns the list part of Ref.
func (f *Field) RefList() string {
	list, _ := splitRef(f.Ref)
	return list
}

// RefField returns the field part of Ref.
func (f *Field) RefField() string {
	_, field := splitRef(f.Ref)
	return field
}

// Filterable reports whether Fetch accepts the field as a filter key.
// Declared-filterable and indexed fields qualify, as do single
// relationships, whose key column is always indexed. Secrets, documents and
// to-many relationships never do.
func (f *Field) Filterable() bool {
	switch f.Type {
	case FieldPassword, FieldDocument:
		return false
	case FieldRelationship:
		return !f.Many
	}
	return f.IsFilterable || f.IsIndexed != IndexNone
}

// HasOption reports whether value is one of the select options.
func (f *Field) HasOption(value string) bool {
	for _, o := range f.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// OptionLabel returns the label for a select value, or the value itself.
func (f *Field) OptionLabel(value string) string {
	for _, o := range f.Options {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

// DocumentConfig returns the field's document configuration, or the zero
// configuration when none is declared.
func (f *Field) DocumentConfig() document.Config {
	if f.Document == nil {
		return document.Config{}
	}
	return *f.Document
}

// InitialValue returns the value a new item gets when the field is omitted.
func (f *Field) InitialValue() any {
	if f.DefaultValue != nil {
		return f.DefaultValue
	}
	switch f.Type {
	case FieldText:
		return ""
	case FieldCheckbox:
		return false
	case FieldDocument:
		return document.Empty()
	case FieldRelationship:
		if f.Many {
			return []string{}
		}
		return nil
	default:
		return nil
	}
}
