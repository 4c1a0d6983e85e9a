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

	ssconfig "github.com/c360studio/semstreams/config"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/c360studio/semcoach/config"
	"github.com/c360studio/semcoach/pipeline"
	plangenerator "github.com/c360studio/semcoach/processor/plan-generator"
)

const (
	defaultNATSURL  = "nats://localhost:4222"
	shutdownTimeout = 30 * time.Second
)

func serveCmd(g *globalFlags) *cobra.Command {
	var (
		metricsAddr string
		workers     int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Generate plans for triggers published on NATS",
		Long: `Serve consumes plan triggers from the COACH JetStream stream
(coach.trigger.plan) and publishes each result on the trigger's callback
subject or on coach.result.plan.<request_id>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, closer, err := g.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()

			if cmd.Flags().Changed("metrics-addr") {
				cfg.Metrics.Addr = metricsAddr
			}
			return serve(cmd.Context(), cfg, workers, logger)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Listen address for /metrics (overrides metrics.addr)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent plan generations (0 uses nats.workers)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config, workers int, logger *slog.Logger) error {
	printBanner()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	natsClient, err := connectToNATS(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer natsClient.Close(context.Background())

	if err := ensureStreams(ctx, natsClient, logger); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := pipeline.NewMetrics(reg)

	if cfg.Metrics.Addr != "" {
		srv := startMetricsServer(cfg.Metrics.Addr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	comp, err := plangenerator.New(plangenerator.Config{Workers: workers}, cfg, natsClient, logger,
		plangenerator.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("create plan-generator: %w", err)
	}
	if err := comp.Initialize(); err != nil {
		return fmt.Errorf("initialize plan-generator: %w", err)
	}
	if err := comp.Start(ctx); err != nil {
		return fmt.Errorf("start plan-generator: %w", err)
	}

	logger.Info("Semcoach ready",
		"version", Version,
		"provider", cfg.Backend.Provider,
		"model", cfg.Backend.Model,
		"metrics_addr", cfg.Metrics.Addr)

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	if err := comp.Stop(shutdownTimeout); err != nil {
		logger.Error("Error stopping plan-generator", "error", err)
	}

	logger.Info("Semcoach shutdown complete")
	return nil
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════╗")
	fmt.Println("║             Semcoach v" + Version + "                    ║")
	fmt.Println("║      Weekly Running Plan Generator            ║")
	fmt.Println("╚═══════════════════════════════════════════════╝")
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()
	return srv
}

// natsURL resolves the server URL: NATS_URL, then the config, then the
// local default.
func natsURL(cfg *config.Config) string {
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		return envURL
	}
	if cfg.NATS.URL != "" {
		return cfg.NATS.URL
	}
	return defaultNATSURL
}

func connectToNATS(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*natsclient.Client, error) {
	url := natsURL(cfg)
	logger.Info("Connecting to NATS", "url", url)

	client, err := natsclient.NewClient(url,
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
		natsclient.WithCircuitBreakerThreshold(20),
		natsclient.WithHealthInterval(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, wrapNATSError(err, url)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, wrapNATSError(err, url)
	}

	logger.Info("Connected to NATS", "url", url)
	return client, nil
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker compose up -d nats

Or set NATS_URL environment variable to point to your NATS server.`, err, url)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}

// coachStreams declares the stream carrying plan triggers and results.
func coachStreams() *ssconfig.Config {
	return &ssconfig.Config{
		Streams: ssconfig.StreamConfigs{
			"COACH": ssconfig.StreamConfig{
				Subjects: []string{
					"coach.trigger.>",
					"coach.result.>",
				},
				MaxAge:   "24h",
				Storage:  "file",
				Replicas: 1,
			},
		},
	}
}

func ensureStreams(ctx context.Context, natsClient *natsclient.Client, logger *slog.Logger) error {
	logger.Debug("Creating JetStream streams")
	streamsManager := ssconfig.NewStreamsManager(natsClient, logger)

	if err := streamsManager.EnsureStreams(ctx, coachStreams()); err != nil {
		return fmt.Errorf("ensure streams: %w", err)
	}

	logger.Debug("JetStream streams ready")
	return nil
}
