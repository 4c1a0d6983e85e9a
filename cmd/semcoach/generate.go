package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/semcoach/pipeline"
)

func generateCmd(g *globalFlags) *cobra.Command {
	var (
		requestPath string
		outputPath  string
		format      string
		fullReport  bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a weekly plan for a request file",
		Long: `Generate reads a generation request (JSON or YAML) and prints the weekly
plan. With --report the whole run report is printed instead: targets,
stage timings, degradations and whether the fallback produced the plan.`,
		Example: `  semcoach generate -r week.yaml
  semcoach generate -r - -f yaml < week.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, closer, err := g.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()

			req, err := readRequest(requestPath, cmd.InOrStdin())
			if err != nil {
				return err
			}

			gen, err := pipeline.NewGeneratorFromConfig(cfg, logger, nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := gen.Generate(ctx, req)
			if err != nil {
				var genErr *pipeline.GenerationError
				if errors.As(err, &genErr) {
					logger.Debug("Generation failure detail", "error", genErr.Detail())
				}
				return err
			}

			logger.Info("Plan generated",
				"run_id", report.RunID,
				"total_km", report.Plan.TotalVolume(),
				"target_km", report.Targets.Target,
				"score", report.Quality.Score,
				"fallback", report.Fallback,
				"duration", report.Duration)

			out, closeOut, err := createOutput(outputPath, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			var v any = report.Plan
			if fullReport {
				v = report
			}
			if err := writeOutput(out, v, format); err != nil {
				_ = closeOut()
				return fmt.Errorf("write plan: %w", err)
			}
			return closeOut()
		},
	}

	cmd.Flags().StringVarP(&requestPath, "request", "r", "", "Request file (JSON or YAML), - for stdin")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the plan to a file instead of stdout")
	cmd.Flags().StringVarP(&format, "format", "f", formatJSON, "Output format (json, yaml)")
	cmd.Flags().BoolVar(&fullReport, "report", false, "Print the full run report")
	_ = cmd.MarkFlagRequired("request")

	return cmd
}
