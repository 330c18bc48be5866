package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/history-river/pkg/api"
	"github.com/Sternrassler/history-river/pkg/logging"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().Int("port", 8000, "listen port")
	cmd.Flags().String("addr", "", "listen address (empty for all interfaces)")
	a.bindFlag("server.port", cmd.Flags().Lookup("port"))
	a.bindFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

// serve runs the API until ctx is cancelled, then drains open requests.
func (a *app) serve(ctx context.Context) error {
	logger := logging.NewLogger("server")

	gen, err := a.newGenerator()
	if err != nil {
		return err
	}

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	locker, closeLocker, err := a.newLocker(ctx)
	if err != nil {
		return err
	}
	defer closeLocker()

	manager := a.newManager(st, gen, locker)
	server := api.New(st, manager, api.Config{
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		RateLimitRPS:   a.cfg.RateLimit.RPS,
		RateLimitBurst: a.cfg.RateLimit.Burst,
	})

	logger.Info().
		Str("driver", a.cfg.Database.Driver).
		Str("model", gen.Model()).
		Bool("lease", locker != nil).
		Msg("Starting history-river")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(a.cfg.Server.Address())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Dur("timeout", a.cfg.Server.ShutdownTimeout).Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
