// Package submission writes prediction tables in the challenge layout:
//
//	<root>/<trial>/<P>/<P>predictions.csv
//	<root>/<trial>/<P>/<P>trials.csv
//	<root>/<trial>/<P>/<P>accessions.csv
//
// where P is the protocol (CV0 or CV00). Missing predictions are written as
// NA.
package submission

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/emilybillow27-sudo/genopredict/cv"
	"github.com/emilybillow27-sudo/genopredict/evaluate"
	"github.com/emilybillow27-sudo/genopredict/gblup"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
	"github.com/emilybillow27-sudo/genopredict/pkg/log"
)

// NA is written for a missing value.
const NA = "NA"

// Column headers.
var (
	PredictionHeader = []string{"accession_id", "predicted_value", "environment_id"}
	TrialsHeader     = []string{"trial"}
	AccessionsHeader = []string{"accession"}
	CV1Header        = []string{"accession_id", "environment_id", "value", "pred", "fold"}
)

// FormatValue renders v, or NA when v is NaN.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return NA
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Writer writes submission trees under a root directory.
type Writer struct {
	root   string
	logger log.Logger
}

// NewWriter returns a Writer rooted at root.
func NewWriter(root string, logger log.Logger) *Writer {
	if logger == nil {
		logger = log.GetLoggerWithName("submission")
	}
	return &Writer{root: root, logger: logger}
}

// Dir returns the directory for trial under protocol p.
func (w *Writer) Dir(trial string, p cv.Protocol) string {
	return filepath.Join(w.root, trial, string(p))
}

// WritePair writes the three files of one completed pair. The trials and
// accessions files list the partition's training environments and
// training accessions.
func (w *Writer) WritePair(pr evaluate.PairResult) error {
	if !pr.OK() || pr.Partition == nil {
		return errors.NewValidationError("pair", "cannot write a failed pair", string(pr.Protocol)+"/"+pr.FocalEnv)
	}
	dir := w.Dir(pr.FocalEnv, pr.Protocol)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	prefix := filepath.Join(dir, string(pr.Protocol))

	if err := WriteFile(prefix+"predictions.csv", func(cw *csv.Writer) error {
		return writePredictions(cw, pr.Predictions)
	}); err != nil {
		return err
	}
	if err := WriteFile(prefix+"trials.csv", func(cw *csv.Writer) error {
		return writeColumn(cw, TrialsHeader, pr.Partition.TrainEnvironments)
	}); err != nil {
		return err
	}
	if err := WriteFile(prefix+"accessions.csv", func(cw *csv.Writer) error {
		return writeColumn(cw, AccessionsHeader, pr.Partition.TrainAccessions)
	}); err != nil {
		return err
	}

	w.logger.Info("submission written",
		log.ProtocolKey, string(pr.Protocol),
		log.FocalEnvKey, pr.FocalEnv,
		log.TestAccessionsKey, len(pr.Predictions),
		"dir", dir,
	)
	return nil
}

// WriteReport writes every completed pair of r and returns the number
// written. A failed pair gets a header-only predictions file so every
// focal trial × protocol directory exists.
func (w *Writer) WriteReport(r *evaluate.Report) (int, error) {
	n := 0
	for _, pr := range r.Pairs {
		if !pr.OK() {
			w.logger.Warn("failed pair, writing empty predictions",
				log.ProtocolKey, string(pr.Protocol),
				log.FocalEnvKey, pr.FocalEnv,
			)
			if err := w.writeEmpty(pr.FocalEnv, pr.Protocol); err != nil {
				return n, err
			}
			continue
		}
		if err := w.WritePair(pr); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (w *Writer) writeEmpty(trial string, p cv.Protocol) error {
	dir := w.Dir(trial, p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	return WriteFile(filepath.Join(dir, string(p)+"predictions.csv"), func(cw *csv.Writer) error {
		return writePredictions(cw, nil)
	})
}

// WriteCV1 writes res as <root>/cv1_results.csv and returns the path.
func (w *Writer) WriteCV1(res *evaluate.CV1Result) (string, error) {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return "", errors.Wrapf(err, "create %s", w.root)
	}
	path := filepath.Join(w.root, "cv1_results.csv")
	return path, WriteFile(path, func(cw *csv.Writer) error {
		return WriteCV1Rows(cw, res.Rows)
	})
}

// WritePredictions writes a prediction table to out.
func WritePredictions(out io.Writer, preds []gblup.Prediction) error {
	cw := csv.NewWriter(out)
	if err := writePredictions(cw, preds); err != nil {
		return err
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "write predictions")
}

func writePredictions(cw *csv.Writer, preds []gblup.Prediction) error {
	if err := cw.Write(PredictionHeader); err != nil {
		return errors.WithStack(err)
	}
	for _, p := range preds {
		value := FormatValue(p.Value)
		if p.Missing {
			value = NA
		}
		if err := cw.Write([]string{p.AccessionID, value, p.EnvironmentID}); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// WriteCV1Rows writes CV1 rows with CV1Header.
func WriteCV1Rows(cw *csv.Writer, rows []evaluate.CV1Row) error {
	if err := cw.Write(CV1Header); err != nil {
		return errors.WithStack(err)
	}
	for _, row := range rows {
		rec := []string{
			row.AccessionID,
			row.EnvironmentID,
			FormatValue(row.Observed),
			FormatValue(row.Predicted),
			strconv.Itoa(row.Fold),
		}
		if err := cw.Write(rec); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func writeColumn(cw *csv.Writer, header, values []string) error {
	if err := cw.Write(header); err != nil {
		return errors.WithStack(err)
	}
	for _, v := range values {
		if err := cw.Write([]string{v}); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// WriteFile creates path and fills it through a csv.Writer.
func WriteFile(path string, fill func(*csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	cw := csv.NewWriter(f)
	if err := fill(cw); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "flush %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
