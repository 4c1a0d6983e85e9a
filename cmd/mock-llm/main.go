// Package main implements a mock generation backend for offline semcoach
// runs. It serves OpenAI-compatible /v1/chat/completions responses, routing
// by the "model" field of the request.
//
// Usage:
//
//	mock-llm --port 11434 --write-registry /tmp/mock-registry.json
//	SEMCOACH_REGISTRY_FILE=/tmp/mock-registry.json semcoach generate -r week.yaml
//
// Without --fixtures the server answers every stage with a complete, valid
// training week, one model per capability ("mock-analysis", "mock-planning",
// ...). --write-registry writes the model registry that points each
// capability at its mock model on this server.
//
// Fixture files are named by model ("mock-planning.json" or "planning.txt"
// both serve model "mock-planning"); the content is returned as the
// assistant message. Numbered files ("mock-reviewing.1.json",
// "mock-reviewing.2.json") are served in order, then the base file repeats.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		fixtureDir   string
		port         int
		registryPath string
	)

	cmd := &cobra.Command{
		Use:          "mock-llm",
		Short:        "Serve canned generation replies for offline runs",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))

			// Allow env var override
			if envDir := os.Getenv("MOCK_LLM_FIXTURES"); envDir != "" && fixtureDir == "" {
				fixtureDir = envDir
			}

			fixtures := cannedFixtures()
			if fixtureDir != "" {
				loaded, err := loadFixtures(fixtureDir)
				if err != nil {
					return fmt.Errorf("load fixtures from %s: %w", fixtureDir, err)
				}
				for name, seq := range loaded {
					fixtures[name] = seq
				}
				logger.Info("Loaded fixtures", "dir", fixtureDir, "models", len(loaded))
			}
			for name, seq := range fixtures {
				logger.Debug("Serving model", "model", name, "fixtures", len(seq))
			}

			if registryPath != "" {
				baseURL := fmt.Sprintf("http://localhost:%d/v1", port)
				if err := writeRegistry(registryPath, baseURL); err != nil {
					return err
				}
				logger.Info("Wrote model registry", "path", registryPath, "url", baseURL)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return listen(ctx, fmt.Sprintf(":%d", port), newServer(fixtures, logger), logger)
		},
	}

	cmd.Flags().StringVar(&fixtureDir, "fixtures", "", "Directory of fixture files overriding the canned week")
	cmd.Flags().IntVar(&port, "port", 11434, "Port to listen on")
	cmd.Flags().StringVar(&registryPath, "write-registry", "", "Write a semcoach model registry for this server to the path")
	return cmd
}

func listen(ctx context.Context, addr string, s *server, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Mock LLM server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
