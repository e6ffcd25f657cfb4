package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/shelf/internal/auth"
	"github.com/mesh-intelligence/shelf/internal/logging"
	"github.com/mesh-intelligence/shelf/internal/server"
	"github.com/mesh-intelligence/shelf/internal/sqlite"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and admin pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				a.settings.Listen = listen
			}
			backend, err := a.attachBackend()
			if err != nil {
				return err
			}
			defer backend.Detach()

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if n, err := backend.PruneSessions(ctx); err != nil {
				logging.Warn().Err(err).Msg("pruning expired sessions")
			} else if n > 0 {
				logging.Info().Int64("sessions", n).Msg("pruned expired sessions")
			}

			if err := a.newServer(backend).ListenAndServe(ctx); err != nil {
				return systemError("serve: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default: listen from config.yaml)")
	return cmd
}

// newServer builds the HTTP server from the loaded settings.
func (a *app) newServer(backend *sqlite.Backend) *server.Server {
	authConfig := auth.DefaultConfig()
	authConfig.MaxAge = a.settings.SessionMaxAge
	return server.New(backend, auth.NewManager(backend, authConfig), server.Config{
		Listen:        a.settings.Listen,
		CORSOrigins:   a.settings.CORSOrigins,
		RateLimit:     a.settings.RateLimit,
		SecureCookies: a.settings.SecureCookies,
	})
}

// commandContext returns the command's context, or a background context
// when the command runs without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
