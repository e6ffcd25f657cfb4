// Package document defines the structured rich-text document stored by
// document fields: a JSON tree of block elements and text leaves, the
// per-field feature configuration, validation against that configuration,
// and HTML rendering.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalid is returned when a document is malformed or uses a feature
// its field does not enable.
var ErrInvalid = errors.New("invalid document")

// Element types.
const (
	TypeParagraph       = "paragraph"
	TypeHeading         = "heading"
	TypeBlockquote      = "blockquote"
	TypeCode            = "code"
	TypeOrderedList     = "ordered-list"
	TypeUnorderedList   = "unordered-list"
	TypeListItem        = "list-item"
	TypeListItemContent = "list-item-content"
	TypeLayout          = "layout"
	TypeLayoutArea      = "layout-area"
	TypeLink            = "link"
	TypeDivider         = "divider"
)

// Text alignments accepted on paragraphs and headings.
const (
	AlignCenter = "center"
	AlignEnd    = "end"
)

// Config enables document features for a field. The zero value allows
// plain paragraphs only.
type Config struct {
	Formatting bool    `json:"formatting" yaml:"formatting"`
	Layouts    [][]int `json:"layouts,omitempty" yaml:"layouts,omitempty"`
	Links      bool    `json:"links" yaml:"links"`
	Dividers   bool    `json:"dividers" yaml:"dividers"`
}

// AllowsLayout reports whether the column configuration is one of the
// configured layouts.
func (c Config) AllowsLayout(layout []int) bool {
	for _, l := range c.Layouts {
		if equalInts(l, layout) {
			return true
		}
	}
	return false
}

// Node is either an element (Type set, Children present) or a text leaf
// (Text non-nil). Marks only apply to leaves.
type Node struct {
	Type      string `json:"type,omitempty"`
	Children  []Node `json:"children,omitempty"`
	Level     int    `json:"level,omitempty"`
	Href      string `json:"href,omitempty"`
	Layout    []int  `json:"layout,omitempty"`
	TextAlign string `json:"textAlign,omitempty"`

	Text          *string `json:"text,omitempty"`
	Bold          bool    `json:"bold,omitempty"`
	Italic        bool    `json:"italic,omitempty"`
	Underline     bool    `json:"underline,omitempty"`
	Strikethrough bool    `json:"strikethrough,omitempty"`
	Code          bool    `json:"code,omitempty"`
	Superscript   bool    `json:"superscript,omitempty"`
	Subscript     bool    `json:"subscript,omitempty"`
	Keyboard      bool    `json:"keyboard,omitempty"`
}

// IsLeaf reports whether the node is a text leaf.
func (n Node) IsLeaf() bool {
	return n.Text != nil
}

func (n Node) hasMarks() bool {
	return n.Bold || n.Italic || n.Underline || n.Strikethrough ||
		n.Code || n.Superscript || n.Subscript || n.Keyboard
}

// Document is the top-level list of block elements.
type Document []Node

// Leaf returns a plain text leaf.
func Leaf(text string) Node {
	return Node{Text: &text}
}

// Paragraph returns a paragraph holding the given inline nodes.
func Paragraph(children ...Node) Node {
	if len(children) == 0 {
		children = []Node{Leaf("")}
	}
	return Node{Type: TypeParagraph, Children: children}
}

// Empty returns the document stored when no content is given: a single
// empty paragraph.
func Empty() Document {
	return Document{Paragraph()}
}

// Parse decodes a JSON document.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return doc, nil
}

// From converts a loosely typed value (as produced by decoding a JSON
// request body) into a Document.
func From(v any) (Document, error) {
	switch d := v.(type) {
	case Document:
		return d, nil
	case []Node:
		return Document(d), nil
	case json.RawMessage:
		return Parse(d)
	case []byte:
		return Parse(d)
	case string:
		return Parse([]byte(d))
	case nil:
		return nil, fmt.Errorf("%w: empty value", ErrInvalid)
	default:
		data, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		return Parse(data)
	}
}

// PlainText concatenates the text of all leaves, separating blocks with
// newlines. Used for list views and search.
func (d Document) PlainText() string {
	var out []byte
	for i, n := range d {
		if i > 0 {
			out = append(out, '\n')
		}
		out = appendText(out, n)
	}
	return string(out)
}

func appendText(out []byte, n Node) []byte {
	if n.IsLeaf() {
		return append(out, *n.Text...)
	}
	for _, c := range n.Children {
		out = appendText(out, c)
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
