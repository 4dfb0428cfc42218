// Package main provides the transcriptiond entry point: the HTTP intake
// server and the queue worker, selectable as subcommands.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sealium/transcription-api/internal/bootstrap"
	"github.com/sealium/transcription-api/internal/config"
	"github.com/sealium/transcription-api/internal/queue"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "transcriptiond",
		Short:         "Durable audio/video transcription pipeline service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newWorkerCmd())
	return root
}

// setup loads configuration and wires the dependency graph shared by both
// subcommands.
func setup() (*config.Config, *slog.Logger, *bootstrap.Dependencies, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialize dependencies: %w", err)
	}
	return cfg, logger, deps, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP intake server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, deps, err := setup()
			if err != nil {
				return err
			}
			defer deps.Close()

			logger.Info("starting transcription API",
				slog.Int("port", cfg.Port),
				slog.String("storage_root", cfg.StorageRoot),
				slog.String("chunk_mode", cfg.ChunkMode),
				slog.String("engine", cfg.Engine),
				slog.Bool("s3_enabled", cfg.S3Enabled()),
			)

			srv := &http.Server{
				Addr:         fmt.Sprintf(":%d", cfg.Port),
				Handler:      deps.Handler,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 300 * time.Second, // Large uploads and zip downloads.
				IdleTimeout:  60 * time.Second,
			}

			shutdownCh := make(chan os.Signal, 1)
			signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("HTTP server listening", slog.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- fmt.Errorf("server failed: %w", err)
				}
			}()

			select {
			case sig := <-shutdownCh:
				logger.Info("received shutdown signal", slog.String("signal", sig.String()))
			case err := <-errCh:
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			logger.Info("shutting down server...")
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown failed: %w", err)
			}

			logger.Info("server stopped gracefully")
			return nil
		},
	}
}

func newWorkerCmd() *cobra.Command {
	var queues []string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the pipeline stage worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, deps, err := setup()
			if err != nil {
				return err
			}
			defer deps.Close()

			for _, q := range queues {
				if !isKnownQueue(q) {
					return fmt.Errorf("unknown queue %q (valid: %s)", q, strings.Join(queue.Names(), ", "))
				}
			}

			logger.Info("starting transcription worker",
				slog.String("queues", strings.Join(queues, ",")),
				slog.Int("retry_max", cfg.RetryMax),
				slog.Int("max_parallel_chunks", cfg.MaxParallelChunks),
			)

			worker := deps.NewWorker(cfg, logger, queues)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("worker failed: %w", err)
			}

			logger.Info("worker stopped gracefully")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&queues, "queues", queue.Names(), "stage queues to consume")
	return cmd
}

func isKnownQueue(name string) bool {
	for _, q := range queue.Names() {
		if q == name {
			return true
		}
	}
	return false
}
