package types

import "context"

// SessionData is the identity an authentication mechanism attaches to a
// session.
type SessionData struct {
	ID      string `json:"id"`
	IsAdmin bool   `json:"isAdmin"`
}

// Session is the authenticated-request context passed to access rules.
// A nil *Session means the request is anonymous.
type Session struct {
	Data *SessionData `json:"data"`
}

// NewSession returns a session for the given user.
func NewSession(id string, isAdmin bool) *Session {
	return &Session{Data: &SessionData{ID: id, IsAdmin: isAdmin}}
}

type sessionKey struct{}

type sudoKey struct{}

// WithSession returns a copy of ctx carrying the session.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session carried by ctx, or nil.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// Sudo returns a copy of ctx that bypasses access rules. It is meant for
// trusted callers such as the CLI and the sign-in lookup, never for request
// handling.
func Sudo(ctx context.Context) context.Context {
	return context.WithValue(ctx, sudoKey{}, true)
}

// IsSudo reports whether ctx bypasses access rules.
func IsSudo(ctx context.Context) bool {
	v, _ := ctx.Value(sudoKey{}).(bool)
	return v
}
