package main

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilybillow27-sudo/genopredict/evaluate"
	"github.com/emilybillow27-sudo/genopredict/internal/store"
	"github.com/emilybillow27-sudo/genopredict/metrics"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
	"github.com/emilybillow27-sudo/genopredict/pkg/log"
	"github.com/emilybillow27-sudo/genopredict/submission"
)

var accessions = []string{"A", "B", "C", "D", "E", "F", "G", "H"}

// writeFixture writes phenotype, marker and config files and returns the
// config path and the output directory.
func writeFixture(t *testing.T) (string, string) {
	t.Helper()
	return writeFixtureFolds(t, 2)
}

func writeFixtureFolds(t *testing.T, folds int) (string, string) {
	t.Helper()
	dir := t.TempDir()

	var geno strings.Builder
	geno.WriteString("germplasmName")
	for j := 0; j < 30; j++ {
		fmt.Fprintf(&geno, ",m%d", j)
	}
	geno.WriteString("\n")
	rng := rand.New(rand.NewPCG(11, 13))
	for _, id := range accessions {
		geno.WriteString(id)
		for j := 0; j < 30; j++ {
			fmt.Fprintf(&geno, ",%d", rng.IntN(3))
		}
		geno.WriteString("\n")
	}

	var pheno strings.Builder
	pheno.WriteString("germplasmName,environment_id,Grain yield - kg/ha\n")
	for e, env := range []string{"e1", "e2", "e3"} {
		for i, id := range accessions {
			if (i+e)%4 == 0 {
				continue
			}
			fmt.Fprintf(&pheno, "%s,%s,%g\n", id, env, 10*float64(e+1)+float64(i%3)+0.1*float64(i))
		}
	}
	// Z has no markers
	pheno.WriteString("Z,e1,11\n")

	genoPath := filepath.Join(dir, "geno.csv")
	phenoPath := filepath.Join(dir, "pheno.csv")
	require.NoError(t, os.WriteFile(genoPath, []byte(geno.String()), 0o600))
	require.NoError(t, os.WriteFile(phenoPath, []byte(pheno.String()), 0o600))

	out := filepath.Join(dir, "out")
	cfgPath := filepath.Join(dir, "genopredict.yaml")
	body := fmt.Sprintf(`paths:
  phenotypes: %s
  markers: %s
  output: %s
  results_db: %s
cv:
  focal_trials: [e1, e2, e3]
  folds: %d
execution:
  workers: 2
logging:
  level: error
  format: json
`, phenoPath, genoPath, out, filepath.Join(dir, "runs.db"), folds)
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))
	return cfgPath, out
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, err := executeErr(args...)
	require.NoError(t, err, stderr)
	return stdout
}

func executeErr(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRunWritesSubmission(t *testing.T) {
	cfgPath, out := writeFixture(t)

	stdout := execute(t, "run", "--config", cfgPath, "--run-id", "run-1")
	assert.Contains(t, stdout, "CV1 (2 folds)")
	assert.Contains(t, stdout, "6 of 6 pairs written")

	for _, trial := range []string{"e1", "e2", "e3"} {
		for _, p := range []string{"CV0", "CV00"} {
			dir := filepath.Join(out, trial, p)
			for _, name := range []string{"predictions.csv", "trials.csv", "accessions.csv"} {
				assert.FileExists(t, filepath.Join(dir, p+name))
			}
		}
	}
	assert.FileExists(t, filepath.Join(out, "cv1_results.csv"))

	preds, err := os.ReadFile(filepath.Join(out, "e1", "CV0", "CV0predictions.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(preds), "accession_id,predicted_value,environment_id\n"))
	assert.Contains(t, string(preds), "Z,NA,e1")

	trials, err := os.ReadFile(filepath.Join(out, "e1", "CV0", "CV0trials.csv"))
	require.NoError(t, err)
	assert.Equal(t, "trial\ne2\ne3\n", string(trials))

	stdout = execute(t, "runs", "--config", cfgPath)
	assert.Equal(t, "run-1\n", stdout)

	stdout = execute(t, "runs", "--config", cfgPath, "run-1")
	assert.Contains(t, stdout, "CV1 fold 0")
	assert.Contains(t, stdout, "e3")
}

func TestRunWritesPairsWhenCV1Fails(t *testing.T) {
	// 9 phenotyped accessions cannot be split into 20 folds
	cfgPath, out := writeFixtureFolds(t, 20)

	stdout, _, err := executeErr("run", "--config", cfgPath, "--run-id", "run-cv1-fails")
	require.Error(t, err)
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr), "%v", err)

	assert.Contains(t, stdout, "6 of 6 pairs written")
	assert.NotContains(t, stdout, "CV1 (")
	assert.FileExists(t, filepath.Join(out, "e1", "CV0", "CV0predictions.csv"))
	assert.FileExists(t, filepath.Join(out, "e3", "CV00", "CV00accessions.csv"))
	assert.NoFileExists(t, filepath.Join(out, "cv1_results.csv"))

	stdout = execute(t, "runs", "--config", cfgPath)
	assert.Equal(t, "run-cv1-fails\n", stdout)
}

func TestWriteCV1KeepsFinishedFolds(t *testing.T) {
	dir := t.TempDir()
	ledger, err := store.Open(context.Background(), filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer ledger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// fold 1 never ran
	res := &evaluate.CV1Result{
		RunID: "partial",
		K:     2,
		Rows: []evaluate.CV1Row{
			{AccessionID: "A", EnvironmentID: "e1", Observed: 2, Predicted: 1.5, Fold: 0},
			{AccessionID: "B", EnvironmentID: "e1", Observed: 3, Predicted: 2.5, Fold: 0},
		},
		FoldPearson: []float64{1, math.NaN()},
		FoldErrors:  []error{nil, context.Canceled},
		Pooled:      metrics.Scores{N: 2, PearsonR: 1},
	}

	var buf bytes.Buffer
	w := submission.NewWriter(filepath.Join(dir, "out"), log.NewTestLogger(log.LevelError))
	require.NoError(t, writeCV1(context.WithoutCancel(ctx), &buf, w, ledger, "", res, log.NewTestLogger(log.LevelError)))
	assert.Contains(t, buf.String(), "CV1 (2 folds)")

	data, err := os.ReadFile(filepath.Join(dir, "out", "cv1_results.csv"))
	require.NoError(t, err)
	assert.Equal(t, "accession_id,environment_id,value,pred,fold\nA,e1,2,1.5,0\nB,e1,3,2.5,0\n", string(data))

	folds, err := ledger.FoldPearson(context.Background(), "partial")
	require.NoError(t, err)
	require.Len(t, folds, 2)
	assert.Equal(t, 1.0, folds[0])
	assert.True(t, math.IsNaN(folds[1]))
}

func TestGRMCommand(t *testing.T) {
	cfgPath, _ := writeFixture(t)
	dir := t.TempDir()
	grmPath := filepath.Join(dir, "grm.csv")
	alignPath := filepath.Join(dir, "alignment.csv")

	stdout := execute(t, "grm", "--config", cfgPath, "--out", grmPath, "--alignment", alignPath)
	assert.Contains(t, stdout, "accessions:       8")
	assert.Contains(t, stdout, "method:           vanraden")

	g, err := os.ReadFile(grmPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(g)), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, "accession_id,A,B,C,D,E,F,G,H", lines[0])

	a, err := os.ReadFile(alignPath)
	require.NoError(t, err)
	assert.Contains(t, string(a), "Z,phenotype_only")
	assert.Contains(t, string(a), "A,both")
}

func TestFitAndPredict(t *testing.T) {
	cfgPath, _ := writeFixture(t)
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.gob")
	weightsPath := filepath.Join(dir, "weights.json")

	stdout := execute(t, "fit", "--config", cfgPath, "--focal", "e1", "--protocol", "CV00",
		"--out", modelPath, "--weights", weightsPath)
	assert.Contains(t, stdout, "me_gblup on")
	assert.FileExists(t, modelPath)

	weights, err := os.ReadFile(weightsPath)
	require.NoError(t, err)
	assert.Contains(t, string(weights), `"model_type": "me_gblup"`)
	assert.Contains(t, string(weights), `"breeding_values"`)

	stdout = execute(t, "predict", "--config", cfgPath, "--model", modelPath, "--env", "e1", "B", "Z")
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "accession_id,predicted_value,environment_id", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "B,"))
	assert.Equal(t, "Z,NA,e1", lines[2])
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "genopredict dev\n", execute(t, "version"))
}
