package genotype

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

// DefaultIDColumn is the accession column written by the breeding database export.
const DefaultIDColumn = "germplasmName"

// ReadOptions controls ReadCSV.
type ReadOptions struct {
	// IDColumn names the accession column. Empty means the first column.
	IDColumn string
	// MissingTokens are cell values read as a missing call. Defaults to
	// "", "NA", "NaN", "." when nil.
	MissingTokens []string
}

func (o ReadOptions) missing() map[string]struct{} {
	tokens := o.MissingTokens
	if tokens == nil {
		tokens = []string{"", "NA", "NaN", "nan", "."}
	}
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// ReadCSV parses a wide marker table: one accession column plus one numeric
// column per marker. A header with only the accession column gives a
// zero-marker matrix.
func ReadCSV(r io.Reader, opts ReadOptions) (*MarkerMatrix, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewSchemaError("marker", "header", "file is empty", nil)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read marker header")
	}

	idCol := 0
	if opts.IDColumn != "" {
		idCol = -1
		for i, h := range header {
			if strings.TrimSpace(h) == opts.IDColumn {
				idCol = i
				break
			}
		}
		if idCol < 0 {
			return nil, errors.NewSchemaError("marker", opts.IDColumn, "accession column not found", header)
		}
	}

	markers := make([]string, 0, len(header)-1)
	markerCols := make([]int, 0, len(header)-1)
	for i, h := range header {
		if i == idCol {
			continue
		}
		markers = append(markers, strings.TrimSpace(h))
		markerCols = append(markerCols, i)
	}

	missing := opts.missing()
	var ids []string
	var values []float64
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read marker row %d", line+1)
		}
		line++

		ids = append(ids, strings.TrimSpace(record[idCol]))
		for k, c := range markerCols {
			cell := strings.TrimSpace(record[c])
			if _, ok := missing[cell]; ok {
				values = append(values, math.NaN())
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.NewSchemaError("marker", markers[k],
					"non-numeric dosage "+strconv.Quote(cell)+" on line "+strconv.Itoa(line), nil)
			}
			values = append(values, v)
		}
	}

	if len(ids) == 0 || len(markers) == 0 {
		return NewMarkerMatrix(ids, markers, nil)
	}
	return NewMarkerMatrix(ids, markers, mat.NewDense(len(ids), len(markers), values))
}

// ReadFile opens path and calls ReadCSV.
func ReadFile(path string, opts ReadOptions) (*MarkerMatrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open marker file %s", path)
	}
	defer f.Close()
	return ReadCSV(f, opts)
}
