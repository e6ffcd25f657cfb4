package types

import (
	"fmt"
	"strings"
)

// Operation names a list-level operation gated by access rules.
type Operation string

// List operations.
const (
	OperationQuery  Operation = "query"
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// AccessFunc decides whether a session may perform an operation.
type AccessFunc func(session *Session) bool

// OperationAccess gates each operation with one rule. A nil rule allows
// the operation.
type OperationAccess struct {
	Query  AccessFunc
	Create AccessFunc
	Update AccessFunc
	Delete AccessFunc
}

// Access holds the access rules of a list.
type Access struct {
	Operation OperationAccess
}

// Rule returns the rule gating op, or nil when the operation is ungated.
func (a Access) Rule(op Operation) AccessFunc {
	switch op {
	case OperationQuery:
		return a.Operation.Query
	case OperationCreate:
		return a.Operation.Create
	case OperationUpdate:
		return a.Operation.Update
	case OperationDelete:
		return a.Operation.Delete
	default:
		return func(*Session) bool { return false }
	}
}

// Allowed reports whether the session may perform op.
func (a Access) Allowed(op Operation, s *Session) bool {
	rule := a.Rule(op)
	return rule == nil || rule(s)
}

// ListView holds hints for the admin list page.
type ListView struct {
	InitialColumns []string `json:"initialColumns,omitempty" yaml:"initialColumns,omitempty"`
}

// ListUI holds admin presentation hints for a list.
type ListUI struct {
	IsHidden bool     `json:"isHidden,omitempty" yaml:"isHidden,omitempty"`
	ListView ListView `json:"listView,omitzero" yaml:"listView,omitempty"`
}

// List declares one content type: its fields, access rules and UI hints.
type List struct {
	Name   string  `json:"name" yaml:"name"`
	Access Access  `json:"-" yaml:"-"`
	Fields []Field `json:"fields" yaml:"fields"`
	UI     ListUI  `json:"ui,omitzero" yaml:"ui,omitempty"`
}

// Field returns the named field.
func (l *List) Field(name string) (*Field, bool) {
	for i := range l.Fields {
		if l.Fields[i].Name == name {
			return &l.Fields[i], true
		}
	}
	return nil, false
}

// MustField returns the named field and panics if it does not exist.
func (l *List) MustField(name string) *Field {
	f, ok := l.Field(name)
	if !ok {
		panic(fmt.Sprintf("list %s has no field %s", l.Name, name))
	}
	return f
}

// LabelField returns the field used to label items: "name" or "title" when
// present as text fields, otherwise "id".
func (l *List) LabelField() string {
	for _, candidate := range []string{"name", "title", "label"} {
		if f, ok := l.Field(candidate); ok && f.Type == FieldText {
			return candidate
		}
	}
	return "id"
}

// Plural returns the plural form of the list name used in paths and titles.
func (l *List) Plural() string {
	switch {
	case strings.HasSuffix(l.Name, "s"), strings.HasSuffix(l.Name, "x"):
		return l.Name + "es"
	case strings.HasSuffix(l.Name, "y") && len(l.Name) > 1 && !strings.ContainsRune("aeiou", rune(l.Name[len(l.Name)-2])):
		return l.Name[:len(l.Name)-1] + "ies"
	default:
		return l.Name + "s"
	}
}

// InitialColumns returns the declared list view columns, or the label field
// followed by the first non-relationship fields up to three columns.
func (l *List) InitialColumns() []string {
	if len(l.UI.ListView.InitialColumns) > 0 {
		return l.UI.ListView.InitialColumns
	}
	label := l.LabelField()
	cols := []string{label}
	for _, f := range l.Fields {
		if len(cols) == 3 {
			break
		}
		if f.Name == label || f.IsRelationship() || f.Type == FieldPassword || f.Type == FieldDocument {
			continue
		}
		cols = append(cols, f.Name)
	}
	return cols
}
