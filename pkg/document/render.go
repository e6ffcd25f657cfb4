package document

import (
	"fmt"
	"strings"

	g "github.com/maragudk/gomponents"
	. "github.com/maragudk/gomponents/html"
)

// Render converts the document into HTML nodes. Unknown element types
// render their children only.
func Render(doc Document) g.Node {
	nodes := make([]g.Node, 0, len(doc))
	for _, n := range doc {
		nodes = append(nodes, renderNode(n))
	}
	return Div(Class("document"), g.Group(nodes))
}

func renderChildren(n Node) []g.Node {
	out := make([]g.Node, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, renderNode(c))
	}
	return out
}

func renderNode(n Node) g.Node {
	if n.IsLeaf() {
		return renderLeaf(n)
	}
	children := renderChildren(n)
	if n.TextAlign != "" {
		children = append(children, Style("text-align: "+n.TextAlign))
	}

	switch n.Type {
	case TypeParagraph:
		return P(children...)
	case TypeHeading:
		level := n.Level
		if level < 1 || level > 6 {
			level = 1
		}
		return g.El(fmt.Sprintf("h%d", level), children...)
	case TypeBlockquote:
		return g.El("blockquote", children...)
	case TypeCode:
		return Pre(Code(children...))
	case TypeOrderedList:
		return Ol(children...)
	case TypeUnorderedList:
		return Ul(children...)
	case TypeListItem:
		return Li(children...)
	case TypeLayout:
		cols := make([]string, len(n.Layout))
		for i, w := range n.Layout {
			cols[i] = fmt.Sprintf("%dfr", w)
		}
		return Div(Class("layout"),
			Style("display: grid; grid-template-columns: "+strings.Join(cols, " ")),
			g.Group(children))
	case TypeLayoutArea:
		return Div(Class("layout-area"), g.Group(children))
	case TypeLink:
		if !SafeHref(n.Href) {
			return g.Group(children)
		}
		return A(Href(n.Href), g.Group(children))
	case TypeDivider:
		return Hr()
	default:
		return g.Group(children)
	}
}

func renderLeaf(n Node) g.Node {
	out := g.Text(*n.Text)
	wrap := func(tag string) {
		out = g.El(tag, out)
	}
	if n.Code {
		wrap("code")
	}
	if n.Keyboard {
		wrap("kbd")
	}
	if n.Superscript {
		wrap("sup")
	}
	if n.Subscript {
		wrap("sub")
	}
	if n.Strikethrough {
		wrap("s")
	}
	if n.Underline {
		wrap("u")
	}
	if n.Italic {
		wrap("em")
	}
	if n.Bold {
		wrap("strong")
	}
	return out
}
