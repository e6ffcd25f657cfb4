package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/mesh-intelligence/shelf/internal/auth"
	"github.com/mesh-intelligence/shelf/internal/logging"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// requestLogger attaches a request-scoped logger to the context and logs
// each request when it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := logging.With().
			Str("request_id", middleware.GetReqID(r.Context())).
			Logger()
		r = r.WithContext(logger.WithContext(r.Context()))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// sessionToken returns the bearer token of the request, or the session
// cookie value. fromCookie reports where the token came from.
func sessionToken(r *http.Request) (token string, fromCookie bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t), false
		}
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value, true
	}
	return "", false
}

// sessionMiddleware resolves the request's token and puts the session in
// the context. Requests without a valid token continue anonymously, and a
// stale cookie is cleared.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := sessionToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, err := s.auth.Resolve(r.Context(), token)
		switch {
		case err == nil:
			r = r.WithContext(types.WithSession(r.Context(), session))
		case errors.Is(err, auth.ErrInvalidSession):
			if fromCookie {
				s.clearCookie(w)
			}
		default:
			logging.Ctx(r.Context()).Error().Err(err).Msg("resolving session")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.auth.MaxAge().Seconds()),
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// browserSessions signs admin page users in and out with the session
// cookie.
type browserSessions struct {
	s *Server
}

func (b browserSessions) SignIn(w http.ResponseWriter, r *http.Request, identity, secret string) error {
	token, _, err := b.s.auth.SignIn(r.Context(), identity, secret)
	if err != nil {
		return err
	}
	b.s.setCookie(w, token)
	return nil
}

func (b browserSessions) SignOut(w http.ResponseWriter, r *http.Request) error {
	token, _ := sessionToken(r)
	if err := b.s.auth.SignOut(r.Context(), token); err != nil {
		return err
	}
	b.s.clearCookie(w)
	return nil
}
