package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/c360studio/semcoach/calculator"
	"github.com/c360studio/semcoach/training"
)

func targetsCmd() *cobra.Command {
	var (
		ctl, atl, volume float64
		objective        string
		period           string
		format           string
	)

	cmd := &cobra.Command{
		Use:     "targets",
		Short:   "Compute the weekly volume band and zone split",
		Example: `  semcoach targets --ctl 50 --atl 50 --volume 80 --objective récupération --period général`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := training.GenerationRequest{
				AthleteStats: training.NewAthleteStats(ctl, atl, volume),
				Objective:    training.ParseObjective(objective),
				Period:       training.ParsePeriod(period),
			}
			if err := req.Validate(); err != nil {
				return fmt.Errorf("invalid stats: %w", err)
			}
			return writeOutput(cmd.OutOrStdout(), calculator.TargetsFor(req), format)
		},
	}

	cmd.Flags().Float64Var(&ctl, "ctl", 0, "Chronic training load")
	cmd.Flags().Float64Var(&atl, "atl", 0, "Acute training load")
	cmd.Flags().Float64Var(&volume, "volume", 0, "Recent weekly volume in km")
	cmd.Flags().StringVar(&objective, "objective", string(training.ObjectiveBase), "Weekly objective")
	cmd.Flags().StringVar(&period, "period", string(training.PeriodGeneral), "Training period")
	cmd.Flags().StringVarP(&format, "format", "f", formatJSON, "Output format (json, yaml)")
	return cmd
}

// zonesResult is the zones command output.
type zonesResult struct {
	Session    calculator.SessionSpec    `json:"session" yaml:"session"`
	Allocation training.VolumeAllocation `json:"allocation" yaml:"allocation"`
	Paces      calculator.Paces          `json:"paces" yaml:"paces"`
}

func zonesCmd() *cobra.Command {
	var (
		day    int
		vma    float64
		format string
	)

	cmd := &cobra.Command{
		Use:     "zones <description>",
		Short:   "Split a terse session description into zone distances",
		Example: `  semcoach zones "VMA 6x1000m r=1'30" --vma 16`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if day < 0 || day > 6 {
				return fmt.Errorf("day must be between 0 and 6, got %d", day)
			}
			if vma < 0 {
				return fmt.Errorf("vma must be non-negative")
			}
			paces := calculator.DefaultPaces(vma)
			return writeOutput(cmd.OutOrStdout(), zonesResult{
				Session:    calculator.ParseSession(args[0]),
				Allocation: calculator.SessionZones(day, args[0], paces),
				Paces:      paces,
			}, format)
		},
	}

	cmd.Flags().IntVar(&day, "day", 0, "Day of week, 0 is Monday")
	cmd.Flags().Float64Var(&vma, "vma", 0, "VMA in km/h (0 uses the default)")
	cmd.Flags().StringVarP(&format, "format", "f", formatJSON, "Output format (json, yaml)")
	return cmd
}
