package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/qualtrack/qualtrack/internal/common/logtrace"
	"github.com/qualtrack/qualtrack/internal/portalsrv"
	srvconfig "github.com/qualtrack/qualtrack/internal/portalsrv/config"
)

// newServeDevCmd creates the serve-dev command, which runs the fixture-backed
// portal dev server.
func newServeDevCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-dev",
		Short: "Run the fixture-backed portal dev server",
		Long: `Run the portal dev server: a local, fixture-backed stand-in for the
production portal API, for development and CLI testing.

Example:
  qualtrack serve-dev --server-config ./portalsrv.toml`,
		RunE: runServeDev,
	}

	cmd.Flags().String("server-config", "", "Path to the server's TOML configuration file")
	cmd.MarkFlagRequired("server-config")
	return cmd
}

func runServeDev(cmd *cobra.Command, args []string) error {
	logtrace.InitLogger()

	serverConfig, _ := cmd.Flags().GetString("server-config")
	slog := log.With().Str("state", "init").Logger()

	slog.Info().Str("config_file", serverConfig).Msg("loading config file")
	if err := srvconfig.LoadConfig(serverConfig); err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}

	serverErrors, shutdownServer, err := createPortalServer(cmd.Context())
	if err != nil {
		return fmt.Errorf("creating portal server: %w", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		shutdownServer()
	}

	slog.Info().Msg("server stopped")
	return nil
}

func createPortalServer(ctx context.Context) (chan error, func(), error) {
	slog := log.With().Str("state", "init").Logger()

	s, err := portalsrv.CreateNewServer()
	if err != nil {
		return nil, nil, fmt.Errorf("creating server: %w", err)
	}
	s.MountHandlers()

	srv := &http.Server{
		Addr:              srvconfig.Config().ListenAddr(),
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		slog.Info().Str("addr", srv.Addr).Msg("server started")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := func() {
		// Give outstanding requests 5 seconds to complete and initiate the shutdown.
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error().Err(err).Msg("could not stop server gracefully")
			if err := srv.Close(); err != nil {
				slog.Error().Err(err).Msg("could not stop server")
			}
		}
	}

	return serverErrors, shutdown, nil
}
