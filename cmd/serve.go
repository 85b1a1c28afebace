package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveListen string

// serveCmd is the command to run the proxy
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the compression proxy",
	Long: `Run the compression proxy.
Examples:
  bandwidth-hero-proxy serve
  bandwidth-hero-proxy serve --listen :9000
  PORT=3000 NO_ANIMATE=1 bandwidth-hero-proxy serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveListen != "" {
			Container.ConfigService.SetListenAddress(Container.Config, serveListen)
		}
		if err := Container.InitializeProxy(); err != nil {
			return fmt.Errorf("failed to initialize proxy: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- Container.Server.Start()
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		Container.Logger.Info("Shutdown signal received, draining connections")

		// Stop new origin dials first so in-flight requests finish or fall back
		Container.OriginClient.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), Container.Config.ShutdownTimeout)
		defer cancel()
		if err := Container.Server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("shutdown failed: %w", err)
		}

		return <-errCh
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Address to listen on (overrides listen_address)")
}
