package phenotype

import (
	"slices"

	"github.com/emilybillow27-sudo/genopredict/genotype"
)

// Status classifies an accession by where it appears.
type Status string

const (
	StatusBoth          Status = "both"
	StatusPhenotypeOnly Status = "phenotype_only"
	StatusGenotypeOnly  Status = "genotype_only"
)

// AccessionStatus is one row of the alignment report.
type AccessionStatus struct {
	AccessionID string
	Status      Status
}

// Alignment reports the overlap between phenotyped and genotyped accessions.
// Gaps are informational only.
type Alignment struct {
	Both          []string
	PhenotypeOnly []string
	GenotypeOnly  []string
}

// Align compares the table's accessions with the marker index.
func Align(t *Table, index *genotype.Index) Alignment {
	var a Alignment
	phenotyped := t.Accessions()
	seen := make(map[string]struct{}, len(phenotyped))
	for _, id := range phenotyped {
		seen[id] = struct{}{}
		if index.Contains(id) {
			a.Both = append(a.Both, id)
		} else {
			a.PhenotypeOnly = append(a.PhenotypeOnly, id)
		}
	}
	for _, id := range index.IDs() {
		if _, ok := seen[id]; !ok {
			a.GenotypeOnly = append(a.GenotypeOnly, id)
		}
	}
	slices.Sort(a.GenotypeOnly)
	return a
}

// Rows lists every accession with its status: both, then phenotype-only,
// then genotype-only, each sorted.
func (a Alignment) Rows() []AccessionStatus {
	rows := make([]AccessionStatus, 0, len(a.Both)+len(a.PhenotypeOnly)+len(a.GenotypeOnly))
	for _, group := range []struct {
		ids    []string
		status Status
	}{
		{a.Both, StatusBoth},
		{a.PhenotypeOnly, StatusPhenotypeOnly},
		{a.GenotypeOnly, StatusGenotypeOnly},
	} {
		for _, id := range group.ids {
			rows = append(rows, AccessionStatus{AccessionID: id, Status: group.status})
		}
	}
	return rows
}
