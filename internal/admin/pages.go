package admin

import (
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	g "github.com/maragudk/gomponents"
	. "github.com/maragudk/gomponents/html"

	"github.com/mesh-intelligence/shelf/pkg/document"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

const stylesheet = `
body { font-family: system-ui, sans-serif; margin: 0; color: #1f2328; }
.container { max-width: 960px; margin: 1.5em auto; padding: 0 1em; }
.nav { display: flex; justify-content: space-between; border-bottom: 1px solid #d0d7de; padding-bottom: .5em; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: .4em .6em; border-bottom: 1px solid #d0d7de; }
dt { font-weight: 600; margin-top: 1em; }
.segmented-control { display: inline-flex; border: 1px solid #d0d7de; border-radius: 6px; }
.segmented-control label { padding: .3em .8em; }
.segmented-control input { margin-right: .3em; }
.cards { display: flex; flex-wrap: wrap; gap: .5em; }
.card { border: 1px solid #d0d7de; border-radius: 6px; padding: .5em .8em; }
.layout { display: grid; gap: 1em; }
.signin { display: grid; gap: .4em; max-width: 320px; }
.signout { display: inline; margin-left: .8em; }
.error { color: #cf222e; }
`

type layoutProps struct {
	Title   string
	Session *types.Session
}

func navbar(h *Handler, props layoutProps) g.Node {
	return Nav(Class("nav"),
		Div(Class("brand"), A(Href(h.prefix), g.Text("Shelf admin"))),
		Div(
			g.If(props.Session == nil && h.sessions == nil, g.Text("Not signed in")),
			g.If(props.Session == nil && h.sessions != nil,
				A(Href(h.signInURL()), g.Text("Sign in"))),
			g.If(props.Session != nil && props.Session.Data != nil,
				g.Textf("Signed in as %s", sessionUser(props.Session))),
			g.If(props.Session != nil && h.sessions != nil,
				FormEl(Class("signout"), Method("post"), Action(h.prefix+"/signout"),
					Button(Type("submit"), g.Text("Sign out")),
				)),
		),
	)
}

func sessionUser(s *types.Session) string {
	if s == nil || s.Data == nil {
		return ""
	}
	if s.Data.IsAdmin {
		return s.Data.ID + " (admin)"
	}
	return s.Data.ID
}

func layout(h *Handler, props layoutProps, children ...g.Node) g.Node {
	return Doctype(
		HTML(
			Lang("en"),
			Head(
				Meta(Charset("utf-8")),
				Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
				TitleEl(g.Text(props.Title)),
				StyleEl(g.Raw(stylesheet)),
			),
			Body(
				Div(Class("container"),
					navbar(h, props),
					Main(g.Group(children)),
				),
			),
		),
	)
}

func props(r *http.Request, title string) layoutProps {
	return layoutProps{Title: title, Session: types.SessionFromContext(r.Context())}
}

func indexPage(h *Handler, r *http.Request, lists []*types.List) g.Node {
	links := make([]g.Node, 0, len(lists))
	for _, l := range lists {
		links = append(links, Li(A(Href(h.listURL(l)), g.Text(l.Plural()))))
	}
	return layout(h, props(r, "Dashboard"),
		H1(g.Text("Dashboard")),
		Ul(Class("lists"), g.Group(links)),
	)
}

func listPage(h *Handler, r *http.Request, l *types.List, items []*types.Item) g.Node {
	columns := l.InitialColumns()
	label := l.LabelField()

	head := make([]g.Node, 0, len(columns))
	for _, c := range columns {
		head = append(head, Th(g.Text(humanize(c))))
	}

	rows := make([]g.Node, 0, len(items))
	for _, item := range items {
		cells := make([]g.Node, 0, len(columns))
		for _, c := range columns {
			var cell g.Node
			if c == label || c == "id" {
				cell = A(Href(h.itemURL(l, item.ID)), g.Text(itemLabel(l, item)))
			} else {
				cell = cellValue(h, r, l.MustField(c), item)
			}
			cells = append(cells, Td(cell))
		}
		rows = append(rows, Tr(g.Group(cells)))
	}

	return layout(h, props(r, l.Plural()),
		H1(g.Text(l.Plural())),
		P(g.Textf("%d %s", len(items), pluralize(len(items), "item"))),
		g.If(len(items) > 0,
			Table(
				THead(Tr(g.Group(head))),
				TBody(g.Group(rows)),
			),
		),
	)
}

func itemPage(h *Handler, r *http.Request, l *types.List, item *types.Item) g.Node {
	fields := make([]g.Node, 0, 2*len(l.Fields))
	for i := range l.Fields {
		f := &l.Fields[i]
		fields = append(fields,
			Dt(g.Text(humanize(f.Name))),
			Dd(Class("field-"+f.Type), fieldValue(h, r, f, item)),
		)
	}
	title := itemLabel(l, item)
	return layout(h, props(r, title),
		P(A(Href(h.listURL(l)), g.Text(l.Plural()))),
		H1(g.Text(title)),
		Dl(g.Group(fields)),
	)
}

func errorPage(h *Handler, r *http.Request, status int, message string) g.Node {
	p := props(r, http.StatusText(status))
	return layout(h, p,
		H1(g.Text(http.StatusText(status))),
		P(g.Text(message)),
		g.If(status == http.StatusForbidden && p.Session == nil && h.sessions != nil,
			P(A(Href(h.signInURL()), g.Text("Sign in")), g.Text(" to see more."))),
	)
}

func signInPage(h *Handler, r *http.Request, email, problem string) g.Node {
	return layout(h, props(r, "Sign in"),
		H1(g.Text("Sign in")),
		g.If(problem != "", P(Class("error"), g.Text(problem))),
		FormEl(Class("signin"), Method("post"), Action(h.signInURL()),
			Label(For("email"), g.Text("Email")),
			Input(ID("email"), Name("email"), Type("email"), Value(email), Required(), g.Attr("autocomplete", "username")),
			Label(For("password"), g.Text("Password")),
			Input(ID("password"), Name("password"), Type("password"), Required(), g.Attr("autocomplete", "current-password")),
			Button(Type("submit"), g.Text("Sign in")),
		),
	)
}

// cellValue renders a field compactly for a list view row.
func cellValue(h *Handler, r *http.Request, f *types.Field, item *types.Item) g.Node {
	switch f.Type {
	case types.FieldRelationship:
		if f.Many {
			n := len(item.IDs(f.Name))
			return g.Textf("%d %s", n, pluralize(n, "item"))
		}
		return relatedLinks(h, r, f, item)
	case types.FieldDocument:
		doc, _ := item.Values[f.Name].(document.Document)
		return g.Text(truncate(doc.PlainText(), 80))
	default:
		return fieldValue(h, r, f, item)
	}
}

// fieldValue renders a field on the item page, following its display mode.
func fieldValue(h *Handler, r *http.Request, f *types.Field, item *types.Item) g.Node {
	switch f.Type {
	case types.FieldText:
		return g.Text(item.String(f.Name))
	case types.FieldPassword:
		state, _ := item.Values[f.Name].(types.PasswordState)
		if state.IsSet {
			return g.Text("Set")
		}
		return g.Text("Not set")
	case types.FieldCheckbox:
		return Input(Type("checkbox"), Disabled(), g.If(item.Bool(f.Name), Checked()))
	case types.FieldSelect:
		if f.UI.DisplayMode == types.DisplaySegmentedControl {
			return segmentedControl(f, item.String(f.Name))
		}
		if v := item.String(f.Name); v != "" {
			return g.Text(f.OptionLabel(v))
		}
		return Em(g.Text("None"))
	case types.FieldTimestamp:
		if t, ok := item.Time(f.Name); ok {
			return Time(g.Attr("datetime", t.Format(time.RFC3339)), g.Text(t.Format("2006-01-02 15:04 MST")))
		}
		return Em(g.Text("None"))
	case types.FieldDocument:
		doc, _ := item.Values[f.Name].(document.Document)
		return document.Render(doc)
	case types.FieldRelationship:
		if f.UI.DisplayMode == types.DisplayCards {
			return relatedCards(h, r, f, item)
		}
		return relatedLinks(h, r, f, item)
	default:
		return g.Text(fmt.Sprint(item.Values[f.Name]))
	}
}

// segmentedControl renders the options of a select field as a row of
// radio buttons with the current value checked.
func segmentedControl(f *types.Field, current string) g.Node {
	options := make([]g.Node, 0, len(f.Options))
	for _, o := range f.Options {
		id := f.Name + "-" + o.Value
		options = append(options, Label(For(id),
			Input(ID(id), Type("radio"), Name(f.Name), Value(o.Value), Disabled(), g.If(o.Value == current, Checked())),
			g.Text(o.Label),
		))
	}
	return Div(Class("segmented-control"), g.Attr("role", "radiogroup"), g.Group(options))
}

func relatedLinks(h *Handler, r *http.Request, f *types.Field, item *types.Item) g.Node {
	other, err := h.store.Schema().List(f.RefList())
	if err != nil {
		return nil
	}
	items := h.related(r, f, item.IDs(f.Name))
	if len(items) == 0 {
		return Em(g.Text("None"))
	}
	links := make([]g.Node, 0, len(items))
	for i, rel := range items {
		if i > 0 {
			links = append(links, g.Text(", "))
		}
		links = append(links, A(Href(h.itemURL(other, rel.ID)), g.Text(itemLabel(other, rel))))
	}
	return g.Group(links)
}

// relatedCards renders each related item as a card showing the field's
// card fields.
func relatedCards(h *Handler, r *http.Request, f *types.Field, item *types.Item) g.Node {
	other, err := h.store.Schema().List(f.RefList())
	if err != nil {
		return nil
	}
	items := h.related(r, f, item.IDs(f.Name))
	if len(items) == 0 {
		return Em(g.Text("None"))
	}

	cardFields := f.UI.CardFields
	if len(cardFields) == 0 {
		cardFields = []string{other.LabelField()}
	}
	cards := make([]g.Node, 0, len(items))
	for _, rel := range items {
		body := make([]g.Node, 0, len(cardFields)+1)
		for _, name := range cardFields {
			cf, ok := other.Field(name)
			if !ok {
				continue
			}
			body = append(body, Div(Class("card-field"), fieldValue(h, r, cf, rel)))
		}
		if f.UI.LinkToItem {
			body = append(body, A(Href(h.itemURL(other, rel.ID)), g.Text("View")))
		}
		cards = append(cards, Div(Class("card"), g.Group(body)))
	}
	return Div(Class("cards"), g.Group(cards))
}

func itemLabel(l *types.List, item *types.Item) string {
	if name := l.LabelField(); name != "id" {
		if s := item.String(name); s != "" {
			return s
		}
	}
	return item.ID
}

// humanize turns a field name like "publishDate" into "Publish Date".
func humanize(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func pluralize(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func truncate(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}
