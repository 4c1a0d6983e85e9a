package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/semcoach/agent"
	"github.com/c360studio/semcoach/config"
	"github.com/c360studio/semcoach/pipeline"
	"github.com/c360studio/semcoach/rag"
)

func askCmd(g *globalFlags) *cobra.Command {
	var (
		excerptsPath string
		k            int
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a coaching question with reference material",
		Long: `Ask answers a free-form coaching question. Reference excerpts come from
--excerpts (a YAML list of {source, text}) or, when nats.url is configured,
from the retrieval service over NATS request/reply.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closer, err := g.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()

			fetcher, release, err := newFetcher(cfg, excerptsPath, logger)
			if err != nil {
				return err
			}
			defer release()

			client, err := pipeline.NewClient(cfg, logger, nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			advisor := agent.NewAdvisor(client, fetcher, k,
				agent.WithLogger(logger),
				agent.WithMaxRetries(cfg.Pipeline.MaxRetries),
				agent.WithBackoff(cfg.Pipeline.Backoff))

			res := advisor.Ask(ctx, strings.Join(args, " "))
			if !res.Success {
				return fmt.Errorf("answer question: %w", res.Err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Data)
			return err
		},
	}

	cmd.Flags().StringVar(&excerptsPath, "excerpts", "", "YAML file of reference excerpts")
	cmd.Flags().IntVarP(&k, "k", "k", rag.DefaultK, "Number of excerpts to retrieve")
	return cmd
}

// newFetcher picks the reference source: a local excerpt file, the NATS
// retrieval service, or none.
func newFetcher(cfg *config.Config, excerptsPath string, logger *slog.Logger) (rag.Fetcher, func(), error) {
	if excerptsPath != "" {
		data, err := os.ReadFile(excerptsPath)
		if err != nil {
			return nil, nil, fmt.Errorf("read excerpts: %w", err)
		}
		var excerpts []rag.Excerpt
		if err := yaml.Unmarshal(data, &excerpts); err != nil {
			return nil, nil, fmt.Errorf("parse excerpts %s: %w", excerptsPath, err)
		}
		return &rag.StaticFetcher{Excerpts: excerpts}, func() {}, nil
	}

	if cfg.NATS.URL == "" {
		logger.Debug("No reference source configured, answering without context")
		return nil, func() {}, nil
	}

	conn, err := nats.Connect(cfg.NATS.URL, nats.Name(appName+"-ask"))
	if err != nil {
		return nil, nil, wrapNATSError(err, cfg.NATS.URL)
	}
	return rag.NewNATSFetcher(conn, rag.WithLogger(logger)), conn.Close, nil
}
