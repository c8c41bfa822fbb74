package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emilybillow27-sudo/genopredict/cv"
	"github.com/emilybillow27-sudo/genopredict/gblup"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
	"github.com/emilybillow27-sudo/genopredict/pkg/log"
	"github.com/emilybillow27-sudo/genopredict/submission"
)

var (
	fitFocal    string
	fitProtocol string
	fitOut      string
	fitWeights  string

	predictModel string
	predictEnv   string
)

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit one model on a CV0 or CV00 partition and save it",
	Long: `Builds the partition of --focal under --protocol, fits the configured
model kind on its training rows and writes a gob snapshot (--out) and/or
the JSON weights (--weights).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if fitOut == "" && fitWeights == "" {
			return errors.NewValidationError("out", "one of --out or --weights is required", "")
		}
		protocol, err := cv.ParseProtocol(fitProtocol)
		if err != nil {
			return err
		}
		kind, err := cfg.ModelKind()
		if err != nil {
			return err
		}
		logger := log.GetLoggerWithName("genopredict")
		in, err := loadInputs(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}

		part, err := cv.Build(in.table, fitFocal, protocol, cv.WithUniverse(in.rel.IDs()))
		if err != nil {
			return err
		}
		m, err := gblup.Fit(kind, in.rel, part.Train, cfg.ModelOptions()...)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		d := m.Diagnostics()
		fmt.Fprintf(out, "%s on %d observations (%d accessions), lambda = %.4g, fallback = %v\n",
			m.Kind(), d.TrainObservations, d.TrainAccessions, d.Lambda, d.Fallback)

		if fitOut != "" {
			if err := gblup.SaveFile(m, fitOut); err != nil {
				return err
			}
			fmt.Fprintf(out, "model written to %s\n", fitOut)
		}
		if fitWeights != "" {
			w, err := gblup.ExportWeights(m)
			if err != nil {
				return err
			}
			data, err := w.ToJSON()
			if err != nil {
				return errors.Wrap(err, "encode weights")
			}
			if err := os.WriteFile(fitWeights, data, 0o644); err != nil {
				return errors.Wrapf(err, "write %s", fitWeights)
			}
			fmt.Fprintf(out, "weights written to %s\n", fitWeights)
		}
		return nil
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict [accession...]",
	Short: "Predict accessions in an environment with a saved model",
	Long: `Loads a model written by "fit --out" and prints a prediction table for
the given accessions in --env. Without arguments every genotyped
accession is predicted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := gblup.LoadFile(predictModel)
		if err != nil {
			return err
		}
		logger := log.GetLoggerWithName("genopredict")
		in, err := loadInputs(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		ids := args
		if len(ids) == 0 {
			ids = in.rel.IDs()
		}
		preds, err := gblup.Predict(m, in.rel, predictEnv, ids)
		if err != nil {
			return err
		}
		return submission.WritePredictions(cmd.OutOrStdout(), preds)
	},
}

func init() {
	fitCmd.Flags().StringVar(&fitFocal, "focal", "", "Focal trial to hold out")
	fitCmd.Flags().StringVar(&fitProtocol, "protocol", string(cv.CV0), "CV0 or CV00")
	fitCmd.Flags().StringVar(&fitOut, "out", "", "Write the model snapshot (gob)")
	fitCmd.Flags().StringVar(&fitWeights, "weights", "", "Write the model weights (JSON)")
	_ = fitCmd.MarkFlagRequired("focal")

	predictCmd.Flags().StringVar(&predictModel, "model", "", "Model snapshot written by fit")
	predictCmd.Flags().StringVar(&predictEnv, "env", "", "Environment to predict in")
	_ = predictCmd.MarkFlagRequired("model")
	_ = predictCmd.MarkFlagRequired("env")
}
