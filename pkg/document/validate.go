package document

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the document structure and rejects any feature that cfg
// does not enable. Errors wrap ErrInvalid.
func Validate(doc Document, cfg Config) error {
	if len(doc) == 0 {
		return fmt.Errorf("%w: document has no blocks", ErrInvalid)
	}
	for i, n := range doc {
		if err := validateBlock(n, cfg, fmt.Sprintf("[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func invalid(path, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalid, path, fmt.Sprintf(format, args...))
}

func validateBlock(n Node, cfg Config, path string) error {
	if n.IsLeaf() {
		return invalid(path, "text leaf where a block was expected")
	}
	if err := validateAlign(n, cfg, path); err != nil {
		return err
	}

	switch n.Type {
	case TypeParagraph:
		return validateInlines(n.Children, cfg, path)

	case TypeHeading:
		if !cfg.Formatting {
			return invalid(path, "headings are not enabled")
		}
		if n.Level < 1 || n.Level > 6 {
			return invalid(path, "heading level %d out of range", n.Level)
		}
		return validateInlines(n.Children, cfg, path)

	case TypeBlockquote:
		if !cfg.Formatting {
			return invalid(path, "blockquotes are not enabled")
		}
		return validateBlocks(n.Children, cfg, path)

	case TypeCode:
		if !cfg.Formatting {
			return invalid(path, "code blocks are not enabled")
		}
		for i, c := range n.Children {
			if !c.IsLeaf() || c.hasMarks() {
				return invalid(fmt.Sprintf("%s[%d]", path, i), "code blocks hold unmarked text only")
			}
		}
		return nil

	case TypeOrderedList, TypeUnorderedList:
		if !cfg.Formatting {
			return invalid(path, "lists are not enabled")
		}
		if len(n.Children) == 0 {
			return invalid(path, "empty list")
		}
		for i, c := range n.Children {
			if err := validateListItem(c, cfg, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil

	case TypeLayout:
		if len(cfg.Layouts) == 0 {
			return invalid(path, "layouts are not enabled")
		}
		if !cfg.AllowsLayout(n.Layout) {
			return invalid(path, "layout %v is not one of %v", n.Layout, cfg.Layouts)
		}
		if len(n.Children) != len(n.Layout) {
			return invalid(path, "layout %v has %d areas", n.Layout, len(n.Children))
		}
		for i, c := range n.Children {
			p := fmt.Sprintf("%s[%d]", path, i)
			if c.Type != TypeLayoutArea {
				return invalid(p, "expected %s, got %q", TypeLayoutArea, c.Type)
			}
			if err := validateBlocks(c.Children, cfg, p); err != nil {
				return err
			}
		}
		return nil

	case TypeDivider:
		if !cfg.Dividers {
			return invalid(path, "dividers are not enabled")
		}
		for i, c := range n.Children {
			if !c.IsLeaf() || *c.Text != "" {
				return invalid(fmt.Sprintf("%s[%d]", path, i), "divider must be empty")
			}
		}
		return nil

	case "":
		return invalid(path, "element has no type")

	default:
		return invalid(path, "unknown block type %q", n.Type)
	}
}

func validateBlocks(nodes []Node, cfg Config, path string) error {
	if len(nodes) == 0 {
		return invalid(path, "no blocks")
	}
	for i, c := range nodes {
		if err := validateBlock(c, cfg, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

// A list item holds one list-item-content followed by optional nested lists.
func validateListItem(n Node, cfg Config, path string) error {
	if n.Type != TypeListItem {
		return invalid(path, "expected %s, got %q", TypeListItem, n.Type)
	}
	if len(n.Children) == 0 || n.Children[0].Type != TypeListItemContent {
		return invalid(path, "list item must start with %s", TypeListItemContent)
	}
	if err := validateInlines(n.Children[0].Children, cfg, path+"[0]"); err != nil {
		return err
	}
	for i, c := range n.Children[1:] {
		p := fmt.Sprintf("%s[%d]", path, i+1)
		if c.Type != TypeOrderedList && c.Type != TypeUnorderedList {
			return invalid(p, "unexpected %q inside list item", c.Type)
		}
		if err := validateBlock(c, cfg, p); err != nil {
			return err
		}
	}
	return nil
}

func validateInlines(nodes []Node, cfg Config, path string) error {
	if len(nodes) == 0 {
		return invalid(path, "no inline content")
	}
	for i, c := range nodes {
		p := fmt.Sprintf("%s[%d]", path, i)
		if c.IsLeaf() {
			if err := validateLeaf(c, cfg, p); err != nil {
				return err
			}
			continue
		}
		if c.Type != TypeLink {
			return invalid(p, "block %q where inline content was expected", c.Type)
		}
		if !cfg.Links {
			return invalid(p, "links are not enabled")
		}
		if c.Href == "" {
			return invalid(p, "link has no href")
		}
		if !SafeHref(c.Href) {
			return invalid(p, "unsafe href %q", c.Href)
		}
		for j, l := range c.Children {
			if !l.IsLeaf() {
				return invalid(fmt.Sprintf("%s[%d]", p, j), "links hold text only")
			}
			if err := validateLeaf(l, cfg, fmt.Sprintf("%s[%d]", p, j)); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateLeaf(n Node, cfg Config, path string) error {
	if len(n.Children) > 0 || n.Type != "" {
		return invalid(path, "text leaf cannot have a type or children")
	}
	if n.hasMarks() && !cfg.Formatting {
		return invalid(path, "inline marks are not enabled")
	}
	return nil
}

func validateAlign(n Node, cfg Config, path string) error {
	switch n.TextAlign {
	case "":
		return nil
	case AlignCenter, AlignEnd:
		if !cfg.Formatting {
			return invalid(path, "alignment is not enabled")
		}
		if n.Type != TypeParagraph && n.Type != TypeHeading {
			return invalid(path, "alignment applies to paragraphs and headings")
		}
		return nil
	default:
		return invalid(path, "unknown alignment %q", n.TextAlign)
	}
}

// SafeHref reports whether href is a relative URL or uses one of the
// http, https, mailto or tel schemes.
func SafeHref(href string) bool {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto", "tel":
		return true
	}
	return false
}
