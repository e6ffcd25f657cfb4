// Package server exposes a store over HTTP: a JSON API for the lists and
// sessions, and the admin pages.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/mesh-intelligence/shelf/internal/admin"
	"github.com/mesh-intelligence/shelf/internal/auth"
	"github.com/mesh-intelligence/shelf/internal/logging"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// Defaults for Config.
const (
	DefaultListen    = "127.0.0.1:3000"
	DefaultRateLimit = 100

	// SessionCookieName holds the session token in browsers.
	SessionCookieName = "shelf_session"

	adminPrefix = "/admin"
)

// Config holds the HTTP server settings.
type Config struct {
	Listen string

	// CORSOrigins lists the origins allowed to call the API. Empty allows
	// any origin.
	CORSOrigins []string

	// RateLimit is the number of requests allowed per client IP per
	// minute. Zero or less disables rate limiting.
	RateLimit int

	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

// Server serves the API and admin pages for one store.
type Server struct {
	store  types.Store
	auth   *auth.Manager
	config Config
	lists  map[string]*types.List
}

// New returns a Server over store that authenticates with manager.
func New(store types.Store, manager *auth.Manager, config Config) *Server {
	if config.Listen == "" {
		config.Listen = DefaultListen
	}
	s := &Server{
		store:  store,
		auth:   manager,
		config: config,
		lists:  make(map[string]*types.List),
	}
	for _, l := range store.Schema().Lists() {
		s.lists[l.Name] = l
		s.lists[admin.ListPath(l)] = l
	}
	return s
}

// Handler returns the router serving every route.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	origins := s.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: len(s.config.CORSOrigins) > 0,
		MaxAge:           300,
	})

	r.Use(corsMiddleware.Handler)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	if s.config.RateLimit > 0 {
		r.Use(httprate.LimitByIP(s.config.RateLimit, time.Minute))
	}
	r.Use(middleware.Recoverer)
	r.Use(s.sessionMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, adminPrefix, http.StatusFound)
	})
	r.Mount(adminPrefix, admin.NewHandler(s.store, adminPrefix, browserSessions{s}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/schema", s.getSchema)

		r.Route("/session", func(r chi.Router) {
			r.Post("/", s.signIn)
			r.Get("/", s.getSession)
			r.Delete("/", s.signOut)
		})

		r.Route("/{list}", func(r chi.Router) {
			r.Get("/", s.fetchItems)
			r.Post("/", s.createItem)
			r.Get("/{id}", s.getItem)
			r.Patch("/{id}", s.updateItem)
			r.Delete("/{id}", s.deleteItem)
		})
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.config.Listen).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
