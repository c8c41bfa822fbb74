package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/emilybillow27-sudo/genopredict/config"
	"github.com/emilybillow27-sudo/genopredict/evaluate"
	"github.com/emilybillow27-sudo/genopredict/genotype"
	"github.com/emilybillow27-sudo/genopredict/grm"
	"github.com/emilybillow27-sudo/genopredict/internal/store"
	"github.com/emilybillow27-sudo/genopredict/phenotype"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
	"github.com/emilybillow27-sudo/genopredict/pkg/log"
	"github.com/emilybillow27-sudo/genopredict/report"
	"github.com/emilybillow27-sudo/genopredict/submission"
)

var runID string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate CV1, then predict every focal trial under CV0 and CV00",
	Long: `Reads phenotypes and markers, builds the relationship matrix and runs:
  1. CV1: k-fold by accession, written to <output>/cv1_results.csv
  2. CV0 and CV00 for each focal trial, written to
     <output>/<trial>/<P>/<P>predictions.csv, <P>trials.csv, <P>accessions.csv

A failed pair is logged and gets a header-only predictions file; the
remaining pairs are still written. A CV1 failure is reported after the
CV0 and CV00 output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runPipeline(ctx, cfg, cmd.OutOrStdout())
	},
}

func init() {
	runCmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (default: random uuid)")
}

// inputs are the loaded tables shared by every subcommand.
type inputs struct {
	table *phenotype.Table
	rel   *grm.Relationship
}

func loadInputs(ctx context.Context, c *config.Config, logger log.Logger) (*inputs, error) {
	table, err := phenotype.NewResolver(c.Phenotype).ReadFile(c.Paths.Phenotypes)
	if err != nil {
		return nil, err
	}
	markers, err := genotype.ReadFile(c.Paths.Markers, c.GenotypeReadOptions())
	if err != nil {
		return nil, err
	}
	method, err := c.GRMMethod()
	if err != nil {
		return nil, err
	}
	rel, err := grm.NewBuilder(
		grm.WithMethod(method),
		grm.WithParallelThreshold(c.GRM.ParallelThreshold, c.Execution.Workers),
	).Build(ctx, markers)
	if err != nil {
		return nil, err
	}

	a := phenotype.Align(table, rel.Index())
	logger.Info("accessions aligned",
		"trait", table.Trait(),
		log.AccessionsKey, rel.Len(),
		"both", len(a.Both),
		"phenotype_only", len(a.PhenotypeOnly),
		"genotype_only", len(a.GenotypeOnly),
		log.EnvironmentsKey, len(table.Environments()),
	)
	return &inputs{table: table, rel: rel}, nil
}

func runPipeline(ctx context.Context, c *config.Config, out io.Writer) error {
	logger := log.GetLoggerWithName("genopredict")
	in, err := loadInputs(ctx, c, logger)
	if err != nil {
		return err
	}

	kind, err := c.ModelKind()
	if err != nil {
		return err
	}
	protocols, err := c.Protocols()
	if err != nil {
		return err
	}
	runner := evaluate.NewRunner(
		evaluate.WithKind(kind),
		evaluate.WithModelOptions(c.ModelOptions()...),
		evaluate.WithWorkers(c.Execution.Workers),
		evaluate.WithKFold(c.KFold()),
		evaluate.WithRunID(runID),
	)
	writer := submission.NewWriter(c.Paths.Output, nil)

	var ledger *store.Store
	if c.Paths.ResultsDB != "" {
		if ledger, err = store.Open(ctx, c.Paths.ResultsDB); err != nil {
			return err
		}
		defer func() { _ = ledger.Close() }()
	}

	// A CV1 failure does not stop the pair loop; the error is returned
	// after the pairs are written.
	var cv1Err error
	if c.CV.RunCV1 {
		res, err := runner.RunCV1(ctx, in.table, in.rel)
		if err != nil {
			logger.Error("CV1 failed", err)
			cv1Err = err
		}
		if res != nil {
			if err := writeCV1(context.WithoutCancel(ctx), out, writer, ledger, c.Paths.Plots, res, logger); err != nil {
				return errors.CombineErrors(cv1Err, err)
			}
		}
		if ctx.Err() != nil {
			return cv1Err
		}
	}

	rep, runErr := runner.Run(ctx, in.table, in.rel, c.CV.FocalTrials, protocols)
	runErr = errors.CombineErrors(runErr, cv1Err)
	if rep == nil {
		return runErr
	}
	written, err := writer.WriteReport(rep)
	if err != nil {
		return errors.CombineErrors(runErr, err)
	}
	printReport(out, rep)
	fmt.Fprintf(out, "%d of %d pairs written to %s (run %s)\n", written, len(rep.Pairs), c.Paths.Output, rep.RunID)
	if ledger != nil {
		// the run is recorded even when ctx was cancelled mid-loop
		if err := ledger.RecordReport(context.WithoutCancel(ctx), rep); err != nil {
			return errors.CombineErrors(runErr, err)
		}
	}
	return runErr
}

// writeCV1 writes res, which may hold only the folds that finished, to the
// submission tree, the ledger and the optional plots directory.
func writeCV1(ctx context.Context, out io.Writer, writer *submission.Writer, ledger *store.Store, plots string, res *evaluate.CV1Result, logger log.Logger) error {
	path, err := writer.WriteCV1(res)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "CV1 (%d folds): r = %.4f over %d rows -> %s\n", res.K, res.Pooled.PearsonR, res.Pooled.N, path)
	if ledger != nil {
		if err := ledger.RecordCV1(ctx, res); err != nil {
			return err
		}
	}
	if plots != "" {
		if err := savePlots(plots, res); err != nil {
			// plots are optional output
			logger.Warn("CV1 plots not written", err)
		}
	}
	return nil
}

func savePlots(dir string, res *evaluate.CV1Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	return report.SaveCV1Plots(res,
		filepath.Join(dir, "cv1_observed_vs_predicted.png"),
		filepath.Join(dir, "cv1_fold_pearson.png"),
	)
}

func printReport(out io.Writer, rep *evaluate.Report) {
	for _, p := range rep.Pairs {
		switch {
		case !p.OK():
			fmt.Fprintf(out, "%-28s %-4s FAILED: %v\n", p.FocalEnv, p.Protocol, p.Err)
		case p.Scores.N == 0:
			fmt.Fprintf(out, "%-28s %-4s %4d predictions\n", p.FocalEnv, p.Protocol, len(p.Predictions))
		default:
			fmt.Fprintf(out, "%-28s %-4s %4d predictions  r = %.4f  rmse = %.4f\n",
				p.FocalEnv, p.Protocol, len(p.Predictions), p.Scores.PearsonR, p.Scores.RMSE)
		}
	}
}
