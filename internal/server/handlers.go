package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mesh-intelligence/shelf/internal/logging"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 4 << 20

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token   string         `json:"token,omitempty"`
	Session *types.Session `json:"session"`
}

type listResponse struct {
	Items []*types.Item `json:"items"`
	Count int           `json:"count"`
}

type listSummary struct {
	*types.List
	Path   string          `json:"path"`
	Access map[string]bool `json:"access"`
}

func (s *Server) getSchema(w http.ResponseWriter, r *http.Request) {
	session := types.SessionFromContext(r.Context())
	lists := s.store.Schema().Lists()
	out := make([]listSummary, 0, len(lists))
	for _, l := range lists {
		access := make(map[string]bool, 4)
		for _, op := range []types.Operation{types.OperationQuery, types.OperationCreate, types.OperationUpdate, types.OperationDelete} {
			access[string(op)] = l.Access.Allowed(op, session)
		}
		out = append(out, listSummary{List: l, Path: s.listPath(l), Access: access})
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"lists": out})
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := decodeBody(w, r, &creds); err != nil {
		writeError(w, r, err)
		return
	}
	token, session, err := s.auth.SignIn(r.Context(), creds.Email, creds.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.setCookie(w, token)
	writeJSON(w, r, http.StatusOK, sessionResponse{Token: token, Session: session})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, sessionResponse{Session: types.SessionFromContext(r.Context())})
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	token, _ := sessionToken(r)
	if err := s.auth.SignOut(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}
	s.clearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// table resolves the {list} URL parameter, which may be the list name or
// its path.
func (s *Server) table(r *http.Request) (*types.List, types.ListTable, error) {
	l, ok := s.lists[chi.URLParam(r, "list")]
	if !ok {
		return nil, nil, types.ErrListNotFound
	}
	table, err := s.store.GetTable(l.Name)
	if err != nil {
		return nil, nil, err
	}
	return l, table, nil
}

func (s *Server) fetchItems(w http.ResponseWriter, r *http.Request) {
	_, table, err := s.table(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filter := types.Filter{}
	for k, v := range r.URL.Query() {
		if len(v) != 1 {
			writeError(w, r, errBadRequest{fmt.Errorf("repeated query parameter %q", k)})
			return
		}
		filter[k] = v[0]
	}
	items, err := table.Fetch(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	delete(filter, types.FilterLimit)
	delete(filter, types.FilterOffset)
	count, err := table.Count(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, listResponse{Items: items, Count: count})
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	_, table, err := s.table(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := table.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, item)
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	s.saveItem(w, r, "", http.StatusCreated)
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	s.saveItem(w, r, chi.URLParam(r, "id"), http.StatusOK)
}

func (s *Server) saveItem(w http.ResponseWriter, r *http.Request, id string, status int) {
	l, table, err := s.table(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var values map[string]any
	if err := decodeBody(w, r, &values); err != nil {
		writeError(w, r, err)
		return
	}
	delete(values, "id")

	id, err = table.Set(r.Context(), id, types.NewItem(l.Name, values))
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := table.Get(r.Context(), id)
	if errors.Is(err, types.ErrAccessDenied) {
		// Written but not readable by this session.
		writeJSON(w, r, status, map[string]string{"id": id})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, status, item)
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	_, table, err := s.table(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := table.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listPath(l *types.List) string {
	for path, candidate := range s.lists {
		if candidate == l && path != l.Name {
			return path
		}
	}
	return l.Name
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return errBadRequest{err}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("encoding response")
	}
}
