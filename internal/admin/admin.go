// Package admin serves a read-only HTML view of the content lists. Pages
// follow the list and field UI hints of the schema and the same access
// rules as the JSON API.
package admin

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gosimple/slug"
	g "github.com/maragudk/gomponents"

	"github.com/mesh-intelligence/shelf/internal/logging"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// maxFormBytes caps the sign-in form body.
const maxFormBytes = 64 << 10

// Sessions signs browser users in and out. Implementations set or clear the
// session cookie on w.
type Sessions interface {
	SignIn(w http.ResponseWriter, r *http.Request, identity, secret string) error
	SignOut(w http.ResponseWriter, r *http.Request) error
}

// Handler renders the admin pages for every list of a store.
type Handler struct {
	store    types.Store
	sessions Sessions
	prefix   string
	paths    map[string]*types.List
	router   chi.Router
}

// NewHandler returns a Handler whose links start with prefix, the path the
// handler is mounted at (for example "/admin"). With a nil sessions the
// pages have no sign-in form.
func NewHandler(store types.Store, prefix string, sessions Sessions) *Handler {
	h := &Handler{
		store:    store,
		sessions: sessions,
		prefix:   prefix,
		paths:    make(map[string]*types.List),
	}
	for _, l := range store.Schema().Lists() {
		h.paths[ListPath(l)] = l
	}

	r := chi.NewRouter()
	r.Get("/", h.index)
	if sessions != nil {
		r.Get("/signin", h.signInForm)
		r.Post("/signin", h.signIn)
		r.Post("/signout", h.signOut)
	}
	r.Get("/{path}", h.listItems)
	r.Get("/{path}/{id}", h.showItem)
	h.router = r
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// ListPath returns the URL segment of a list: the slug of its plural name.
func ListPath(l *types.List) string {
	return slug.Make(l.Plural())
}

func (h *Handler) listURL(l *types.List) string {
	return h.prefix + "/" + ListPath(l)
}

func (h *Handler) itemURL(l *types.List, id string) string {
	return h.listURL(l) + "/" + id
}

func (h *Handler) signInURL() string {
	return h.prefix + "/signin"
}

func (h *Handler) signInForm(w http.ResponseWriter, r *http.Request) {
	if types.SessionFromContext(r.Context()) != nil {
		http.Redirect(w, r, h.prefix, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, signInPage(h, r, "", ""))
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	email := r.PostFormValue("email")
	err := h.sessions.SignIn(w, r, email, r.PostFormValue("password"))
	switch {
	case err == nil:
		http.Redirect(w, r, h.prefix, http.StatusSeeOther)
	case errors.Is(err, types.ErrInvalidCredentials):
		h.render(w, r, http.StatusUnauthorized, signInPage(h, r, email, "Invalid email or password."))
	default:
		h.fail(w, r, err)
	}
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.SignOut(w, r); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, h.signInURL(), http.StatusSeeOther)
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	var visible []*types.List
	for _, l := range h.store.Schema().Lists() {
		if !l.UI.IsHidden {
			visible = append(visible, l)
		}
	}
	h.render(w, r, http.StatusOK, indexPage(h, r, visible))
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	l, ok := h.paths[chi.URLParam(r, "path")]
	if !ok {
		h.fail(w, r, types.ErrListNotFound)
		return
	}
	table, err := h.store.GetTable(l.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := table.Fetch(r.Context(), nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, listPage(h, r, l, items))
}

func (h *Handler) showItem(w http.ResponseWriter, r *http.Request) {
	l, ok := h.paths[chi.URLParam(r, "path")]
	if !ok {
		h.fail(w, r, types.ErrListNotFound)
		return
	}
	table, err := h.store.GetTable(l.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := table.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, itemPage(h, r, l, item))
}

// related loads the items a relationship field points at. Items the
// session may not read are left out.
func (h *Handler) related(r *http.Request, f *types.Field, ids []string) []*types.Item {
	if len(ids) == 0 {
		return nil
	}
	table, err := h.store.GetTable(f.RefList())
	if err != nil {
		return nil
	}
	out := make([]*types.Item, 0, len(ids))
	for _, id := range ids {
		item, err := table.Get(r.Context(), id)
		if err != nil {
			logging.Debug().Err(err).Str("list", f.RefList()).Str("id", id).Msg("skipping related item")
			continue
		}
		out = append(out, item)
	}
	return out
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page g.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Render(w); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("rendering admin page")
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "Something went wrong."
	switch {
	case errors.Is(err, types.ErrAccessDenied):
		status = http.StatusForbidden
		message = "You do not have access to this page."
	case errors.Is(err, types.ErrListNotFound), errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrInvalidID):
		status = http.StatusNotFound
		message = "Not found."
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("admin request failed")
	}
	h.render(w, r, status, errorPage(h, r, status, message))
}
