// Package main provides the semcoach binary entry point.
// Semcoach generates weekly running plans through a staged LLM pipeline
// and serves plan generation over NATS.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/c360studio/semcoach/llm/providers"

	"github.com/c360studio/semcoach/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semcoach"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFile    string
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Weekly running plan generator",
		Long: `Semcoach builds a seven-day running plan from an athlete's training
load, a weekly objective and a training period.

Generation runs five specialised stages against a language model backend
(context analysis, week structure, session design, volume allocation and
quality review) and falls back to a single-shot generator when a stage
cannot produce usable output.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML), merged over the user and project configs")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&g.logFile, "log-file", "", "Write logs to a rotated file instead of stderr")

	cmd.AddCommand(
		generateCmd(g),
		targetsCmd(),
		zonesCmd(),
		askCmd(g),
		serveCmd(g),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

// setup loads the layered configuration, applies the global flags and
// builds the process logger. The returned closer releases the log file.
func (g *globalFlags) setup(stderr io.Writer) (*config.Config, *slog.Logger, io.Closer, error) {
	bootstrap := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: config.ParseLevel(g.logLevel)}))

	cfg, err := config.NewLoader(bootstrap).Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	if g.configPath != "" {
		fileCfg, err := config.LoadFromFile(g.configPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("load config file: %w", err)
		}
		cfg.Merge(fileCfg)
		if err := cfg.Validate(); err != nil {
			return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}

	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFile != "" {
		cfg.Log.File = g.logFile
	}

	logger, closer := cfg.Log.NewLogger(stderr)
	slog.SetDefault(logger)
	return cfg, logger, closer, nil
}
