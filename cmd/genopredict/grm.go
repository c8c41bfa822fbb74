package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/emilybillow27-sudo/genopredict/grm"
	"github.com/emilybillow27-sudo/genopredict/phenotype"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
	"github.com/emilybillow27-sudo/genopredict/pkg/log"
	"github.com/emilybillow27-sudo/genopredict/submission"
)

var (
	grmOut       string
	alignmentOut string
)

var grmCmd = &cobra.Command{
	Use:   "grm",
	Short: "Build the relationship matrix and report accession overlap",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.GetLoggerWithName("genopredict")
		in, err := loadInputs(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printRelationship(out, in.rel)

		if grmOut != "" {
			if err := submission.WriteFile(grmOut, func(cw *csv.Writer) error { return writeRelationship(cw, in.rel) }); err != nil {
				return err
			}
			fmt.Fprintf(out, "relationship matrix written to %s\n", grmOut)
		}
		if alignmentOut != "" {
			a := phenotype.Align(in.table, in.rel.Index())
			if err := submission.WriteFile(alignmentOut, func(cw *csv.Writer) error { return writeAlignment(cw, a) }); err != nil {
				return err
			}
			fmt.Fprintf(out, "alignment written to %s\n", alignmentOut)
		}
		return nil
	},
}

func init() {
	grmCmd.Flags().StringVar(&grmOut, "out", "", "Write the relationship matrix as CSV")
	grmCmd.Flags().StringVar(&alignmentOut, "alignment", "", "Write the accession alignment report as CSV")
}

func printRelationship(out io.Writer, rel *grm.Relationship) {
	fmt.Fprintf(out, "accessions:       %d\n", rel.Len())
	fmt.Fprintf(out, "method:           %s\n", rel.Method())
	fmt.Fprintf(out, "markers retained: %d (dropped %d)\n", rel.RetainedMarkers(), rel.DroppedMarkers())
	if rel.Empty() {
		fmt.Fprintln(out, "relationship matrix is empty: no informative markers")
		return
	}
	lo, hi := rel.DiagonalRange()
	fmt.Fprintf(out, "diagonal range:   [%.4f, %.4f]\n", lo, hi)
}

// writeRelationship writes a square table with an accession id column.
func writeRelationship(cw *csv.Writer, rel *grm.Relationship) error {
	ids := rel.IDs()
	if err := cw.Write(append([]string{"accession_id"}, ids...)); err != nil {
		return errors.WithStack(err)
	}
	rec := make([]string, len(ids)+1)
	for i, id := range ids {
		rec[0] = id
		for j := range ids {
			rec[j+1] = strconv.FormatFloat(rel.At(i, j), 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func writeAlignment(cw *csv.Writer, a phenotype.Alignment) error {
	if err := cw.Write([]string{"accession_id", "status"}); err != nil {
		return errors.WithStack(err)
	}
	for _, row := range a.Rows() {
		if err := cw.Write([]string{row.AccessionID, string(row.Status)}); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
