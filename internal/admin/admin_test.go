package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/shelf/internal/sqlite"
	"github.com/mesh-intelligence/shelf/pkg/document"
	"github.com/mesh-intelligence/shelf/pkg/schema"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

var sudo = types.Sudo(context.Background())

// fakeSessions accepts ada@example.com with "correct horse" and records
// sign-outs.
type fakeSessions struct {
	signedOut int
}

func (f *fakeSessions) SignIn(w http.ResponseWriter, r *http.Request, identity, secret string) error {
	if identity != "ada@example.com" || secret != "correct horse" {
		return types.ErrInvalidCredentials
	}
	http.SetCookie(w, &http.Cookie{Name: "session", Value: "token"})
	return nil
}

func (f *fakeSessions) SignOut(w http.ResponseWriter, r *http.Request) error {
	f.signedOut++
	return nil
}

type fixture struct {
	backend  *sqlite.Backend
	handler  *Handler
	sessions *fakeSessions
	userID  string
	postID  string
}

func setup(t *testing.T) fixture {
	t.Helper()
	b := sqlite.NewBackend(schema.Lists(), sqlite.WithPasswordCost(bcrypt.MinCost))
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })

	set := func(list string, values map[string]any) string {
		table, err := b.GetTable(list)
		require.NoError(t, err)
		id, err := table.Set(sudo, "", types.NewItem(list, values))
		require.NoError(t, err)
		return id
	}

	userID := set(schema.User, map[string]any{
		"name":     "Ada Lovelace",
		"email":    "ada@example.com",
		"password": "correct horse",
		"isAdmin":  true,
	})
	tagID := set(schema.Tag, map[string]any{"name": "engines"})
	postID := set(schema.Post, map[string]any{
		"title":   "Notes on the engine",
		"status":  schema.StatusPublished,
		"author":  userID,
		"tags":    []string{tagID},
		"content": document.Document{document.Paragraph(document.Leaf("It weaves algebraic patterns."))},
	})

	sessions := &fakeSessions{}
	return fixture{backend: b, handler: NewHandler(b, "/admin", sessions), sessions: sessions, userID: userID, postID: postID}
}

func get(t *testing.T, h http.Handler, path string, session *types.Session) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if session != nil {
		req = req.WithContext(types.WithSession(req.Context(), session))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListPath(t *testing.T) {
	s := schema.Lists()
	want := map[string]string{
		schema.User: "users",
		schema.Post: "posts",
		schema.Tag:  "tags",
		schema.Todo: "todos",
	}
	for name, path := range want {
		l, err := s.List(name)
		require.NoError(t, err)
		assert.Equal(t, path, ListPath(l))
	}
}

func TestIndex(t *testing.T) {
	f := setup(t)
	rec := get(t, f.handler, "/", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `href="/admin/users"`)
	assert.Contains(t, body, `href="/admin/posts"`)
	assert.Contains(t, body, `href="/admin/todos"`)
	assert.NotContains(t, body, `href="/admin/tags"`, "hidden lists are not linked")
}

func TestListPage(t *testing.T) {
	f := setup(t)
	member := types.NewSession(f.userID, false)

	tests := []struct {
		name     string
		path     string
		session  *types.Session
		status   int
		contains []string
	}{
		{
			name:   "users list shows the initial columns",
			path:   "/users",
			status: http.StatusOK,
			contains: []string{
				"<th>Name</th>", "<th>Email</th>", "<th>Is Admin</th>", "<th>Posts</th>",
				"ada@example.com", "1 item",
				`href="/admin/users/` + f.userID + `"`,
			},
		},
		{
			name:     "posts need a session",
			path:     "/posts",
			status:   http.StatusForbidden,
			contains: []string{"You do not have access to this page."},
		},
		{
			name:     "posts with a session",
			path:     "/posts",
			session:  member,
			status:   http.StatusOK,
			contains: []string{"Notes on the engine", "<th>Publish Date</th>", `value="published" disabled checked`},
		},
		{
			name:    "hidden lists stay reachable by path",
			path:    "/tags",
			session: member,
			status:  http.StatusOK,
		},
		{
			name:   "unknown list",
			path:   "/comments",
			status: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, f.handler, tt.path, tt.session)
			assert.Equal(t, tt.status, rec.Code)
			for _, c := range tt.contains {
				assert.Contains(t, rec.Body.String(), c)
			}
		})
	}
}

func TestItemPage(t *testing.T) {
	f := setup(t)
	member := types.NewSession(f.userID, false)

	rec := get(t, f.handler, "/posts/"+f.postID, member)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	// Segmented control with the stored status checked.
	assert.Contains(t, body, `class="segmented-control"`)
	assert.Contains(t, body, `<input id="status-published" type="radio" name="status" value="published" disabled checked>`)
	assert.Contains(t, body, `<input id="status-draft" type="radio" name="status" value="draft" disabled>`)

	// Tags rendered as cards with a link to the tag.
	assert.Contains(t, body, `class="cards"`)
	assert.Contains(t, body, "engines")
	assert.Contains(t, body, `href="/admin/tags/`)

	// Author rendered as a link to the user.
	assert.Contains(t, body, `href="/admin/users/`+f.userID+`">Ada Lovelace</a>`)

	assert.Contains(t, body, "<p>It weaves algebraic patterns.</p>")
	assert.Contains(t, body, "<dt>Publish Date</dt>")

	rec = get(t, f.handler, "/posts/"+f.postID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = get(t, f.handler, "/posts/missing", member)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserPageHidesPassword(t *testing.T) {
	f := setup(t)
	rec := get(t, f.handler, "/users/"+f.userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "<dt>Password</dt>")
	assert.Contains(t, body, "Set")
	assert.NotContains(t, body, "$2a$")

	// Posts are behind login, so an anonymous viewer sees none.
	assert.Contains(t, body, "<em>None</em>")
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Publish Date", humanize("publishDate"))
	assert.Equal(t, "Is Admin", humanize("isAdmin"))
	assert.Equal(t, "Name", humanize("name"))
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSignIn(t *testing.T) {
	f := setup(t)

	t.Run("form", func(t *testing.T) {
		rec := get(t, f.handler, "/signin", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `<form class="signin" method="post" action="/admin/signin">`)
		assert.Contains(t, rec.Body.String(), `name="password" type="password"`)
	})

	t.Run("signed in users skip the form", func(t *testing.T) {
		rec := get(t, f.handler, "/signin", types.NewSession(f.userID, true))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/admin", rec.Header().Get("Location"))
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := postForm(t, f.handler, "/signin", url.Values{"email": {"ada@example.com"}, "password": {"nope"}})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid email or password.")
		assert.Contains(t, rec.Body.String(), `value="ada@example.com"`)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("success", func(t *testing.T) {
		rec := postForm(t, f.handler, "/signin", url.Values{"email": {"ada@example.com"}, "password": {"correct horse"}})
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/admin", rec.Header().Get("Location"))
		require.Len(t, rec.Result().Cookies(), 1)
	})

	t.Run("sign out", func(t *testing.T) {
		rec := postForm(t, f.handler, "/signout", nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/admin/signin", rec.Header().Get("Location"))
		assert.Equal(t, 1, f.sessions.signedOut)
	})
}

func TestSignInLinks(t *testing.T) {
	f := setup(t)

	rec := get(t, f.handler, "/posts", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `<a href="/admin/signin">Sign in</a> to see more.`)

	rec = get(t, f.handler, "/", types.NewSession(f.userID, true))
	assert.Contains(t, rec.Body.String(), `action="/admin/signout"`)
	assert.NotContains(t, rec.Body.String(), `href="/admin/signin"`)

	// Without sessions there is no sign-in route.
	bare := NewHandler(f.backend, "/admin", nil)
	assert.Equal(t, http.StatusNotFound, get(t, bare, "/signin", nil).Code)
	assert.Contains(t, get(t, bare, "/", nil).Body.String(), "Not signed in")
}
