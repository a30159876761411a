package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/aretw0/contract/pkg/adapters/http"
	"github.com/aretw0/contract/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Exposes parsing and checking as a JSON API over HTTP, together with the
contracts of the configured manifest, the recorded violations and prometheus
metrics on /metrics. With --watch a contract directory is reloaded on change.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()
		if err := env.metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}

		handler := httpAdapter.NewHandler(env.service,
			httpAdapter.WithLogger(env.logger),
			httpAdapter.WithGatherer(prometheus.DefaultGatherer),
		)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", env.config.GetInt(cfgKeyPort)),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			slog.Info("Starting Contract Server", "address", srv.Addr, "contracts", len(env.manifest.Contracts))
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		watchCtx, stopWatch := context.WithCancel(context.Background())
		defer stopWatch()
		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			if err := watchSource(watchCtx, env); err != nil {
				return err
			}
		}

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			slog.Info("Start shutdown", "signal", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Asking listener to shut down and shed load.
			if err := srv.Shutdown(ctx); err != nil {
				slog.Warn("Graceful shutdown did not complete", "timeout", 5*time.Second, "error", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("could not stop server: %w", err)
				}
			}
			slog.Info("Contract Server stopped gracefully")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", defaultPort, "Port to listen on")
	serveCmd.Flags().Bool("watch", false, "Reload the contracts when the contract directory changes")
}

// watchSource reloads env whenever its source reports a change. A reload
// that fails keeps the previous contracts.
func watchSource(ctx context.Context, env *environment) error {
	watchable, ok := env.source.(ports.Watchable)
	if !ok {
		return fmt.Errorf("--watch needs a contract directory as manifest")
	}
	changes, err := watchable.Watch(ctx)
	if err != nil {
		return err
	}

	go func() {
		for id := range changes {
			env.logger.Info("Change detected, reloading contracts", "document", id)
			if err := env.reload(ctx); err != nil {
				env.logger.Error("Reload failed, keeping previous contracts", "err", err)
			}
		}
	}()
	return nil
}
