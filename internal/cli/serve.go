package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"chatroom-service/internal/config"
	"chatroom-service/internal/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ln, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.Port))
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg, ln)
	},
}

// serve runs the server on ln until ctx ends, then drains websocket sessions
// before releasing dependencies.
func serve(ctx context.Context, cfg *config.Config, ln net.Listener) error {
	shutdownTracing, err := tracing.Init(ctx, cfg.OTel.Endpoint, cfg.OTel.ServiceName, cfg.Environment)
	if err != nil {
		log.Warn().Err(err).Str("module", "tracing").Msg("tracing disabled")
	}

	app, err := newApp(ctx, cfg)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("module", "server").Str("addr", ln.Addr().String()).Msg("listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info().Str("module", "server").Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Shutdown does not track hijacked websocket connections
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Str("module", "server").Msg("graceful shutdown failed")
	}
	app.CloseSockets(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Str("module", "tracing").Msg("flush spans")
	}
	return nil
}
