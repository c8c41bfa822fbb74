// Package genopredict predicts trait values of breeding accessions in
// trials where they were never grown, from genome-wide marker data.
//
// A genomic relationship matrix (GRM) is built from marker dosages and
// used by two estimators: a single-environment GBLUP baseline and a
// multi-environment GBLUP (ME-GBLUP) with environment fixed effects.
// Accuracy is measured under three cross-validation protocols:
//
//   - CV0: predict a focal trial from every other trial
//   - CV00: CV0 with the focal trial's accessions also removed from training
//   - CV1: k-fold by accession across all trials
//
// # Quick Start
//
//	m, err := genotype.ReadFile("geno.csv", genotype.ReadOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rel, err := grm.NewBuilder().Build(ctx, m)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	table, err := phenotype.NewResolver(phenotype.DefaultColumnConfig()).ReadFile("pheno.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	part, err := cv.Build(table, "YT_Urb_25", cv.CV0, cv.WithUniverse(rel.IDs()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	model, err := gblup.Fit(gblup.KindMultiEnv, rel, part.Train)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	preds, err := gblup.Predict(model, rel, "YT_Urb_25", part.TestAccessions)
//
// The genopredict command (cmd/genopredict) runs the whole evaluation from
// a YAML config and writes the submission tree.
//
// # Packages
//
//   - genotype: marker matrices and the accession index
//   - preprocessing: dosage standardization (VanRaden, centered)
//   - grm: relationship matrix construction
//   - phenotype: trial observations, column resolution, alignment
//   - cv: CV0/CV00 partitions and CV1 folds
//   - linear: SPD solves and ridge regression
//   - gblup: GBLUP and ME-GBLUP estimators, persistence
//   - metrics: Pearson r, RMSE, MAE
//   - evaluate: the focal trial × protocol loop and the CV1 loop
//   - submission: CSV output in the challenge layout
//   - report: CV1 plots
//   - config: YAML and environment configuration
//   - core/parallel: bounded parallel loops
//   - core/model: fitted-state tracking, weight export
//   - pkg/errors, pkg/log: error types and structured logging
//
// # Concurrency
//
// A Relationship and a Table are read-only after construction and may be
// shared by any number of goroutines. evaluate.Runner runs pairs and folds
// concurrently with evaluate.WithWorkers; results do not depend on the
// worker count.
package genopredict
