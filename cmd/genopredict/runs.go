package main

import (
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"github.com/emilybillow27-sudo/genopredict/internal/store"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List recorded runs, or the pairs and CV1 folds of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Paths.ResultsDB == "" {
			return errors.NewValidationError("paths.results_db", "is required to list runs", "")
		}
		ctx := cmd.Context()
		s, err := store.Open(ctx, cfg.Paths.ResultsDB)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		out := cmd.OutOrStdout()
		if len(args) == 0 {
			ids, err := s.Runs(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		}

		pairs, err := s.Pairs(ctx, args[0])
		if err != nil {
			return err
		}
		folds, err := s.FoldPearson(ctx, args[0])
		if err != nil {
			return err
		}
		printStored(out, pairs, folds)
		return nil
	},
}

func printStored(out io.Writer, pairs []store.PairSummary, folds []float64) {
	for i, r := range folds {
		fmt.Fprintf(out, "CV1 fold %d: r = %s\n", i, formatR(r))
	}
	for _, p := range pairs {
		if p.Error != "" {
			fmt.Fprintf(out, "%-28s %-4s FAILED: %s\n", p.FocalEnv, p.Protocol, p.Error)
			continue
		}
		fallback := ""
		if p.Fallback {
			fallback = " (fallback)"
		}
		fmt.Fprintf(out, "%-28s %-4s scored %d  r = %s%s\n", p.FocalEnv, p.Protocol, p.Scored, formatR(p.PearsonR), fallback)
	}
}

func formatR(r float64) string {
	if math.IsNaN(r) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", r)
}
