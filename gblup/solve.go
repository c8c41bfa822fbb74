package gblup

import (
	"gonum.org/v1/gonum/mat"

	"github.com/emilybillow27-sudo/genopredict/grm"
	"github.com/emilybillow27-sudo/genopredict/linear"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
	"github.com/emilybillow27-sudo/genopredict/pkg/log"
)

// solve fits (G[rows, rows] + λI)α = y and sets u for each unique training
// accession. rows are the relationship rows of g.TrainIDs.
func (g *genetic) solve(op string, rel *grm.Relationship, rows []int, y []float64, lambda float64, logger log.Logger) error {
	n := len(rows)
	g.Alpha = make([]float64, n)
	g.U = make(map[string]float64, n)
	g.Diag.Lambda = lambda

	if rel.Empty() || n == 0 {
		g.Diag.Degenerate = rel.Empty()
		for _, id := range g.TrainIDs {
			g.U[id] = 0
		}
		return nil
	}

	a := linear.AddDiagonal(rel.Principal(rows), lambda)
	alpha, info, err := linear.SolveSPD(op, a, mat.NewVecDense(n, y))
	if err != nil {
		return err
	}
	g.Alpha = mat.Col(nil, 0, alpha)
	g.Diag.Fallback = info.Fallback
	g.Diag.FallbackReason = info.Reason
	g.Diag.Rank = info.Rank
	if info.Fallback {
		logger.Warn("genetic system solved by least-squares fallback",
			log.OperationKey, log.OperationFit,
			log.AccessionsKey, n,
			log.LambdaKey, lambda,
			"reason", info.Reason,
			"rank", info.Rank,
		)
	}

	for i, id := range g.TrainIDs {
		if _, done := g.U[id]; done {
			continue
		}
		g.U[id] = g.value(rel, rows[i], rows)
	}
	return nil
}

// value returns G[row, cols]·α.
func (g *genetic) value(rel *grm.Relationship, row int, cols []int) float64 {
	var v float64
	for k, c := range cols {
		v += rel.At(row, c) * g.Alpha[k]
	}
	return v
}

// columns resolves g.TrainIDs against rel.
func (g *genetic) columns(op string, rel *grm.Relationship) ([]int, error) {
	idx := rel.Index()
	cols := make([]int, len(g.TrainIDs))
	for k, id := range g.TrainIDs {
		r, ok := idx.Row(id)
		if !ok {
			return nil, errors.NewModelError(op, "training accession "+id+" is not in the relationship", errors.ErrUnknownAccession)
		}
		cols[k] = r
	}
	return cols, nil
}

// predict adds the genetic part to fixed for every accession.
func (g *genetic) predict(op string, rel *grm.Relationship, fixed float64, focalEnv string, accessions []string) ([]Prediction, error) {
	var cols []int
	if !rel.Empty() {
		var err error
		if cols, err = g.columns(op, rel); err != nil {
			return nil, err
		}
	}

	idx := rel.Index()
	out := make([]Prediction, len(accessions))
	for i, id := range accessions {
		p := Prediction{AccessionID: id, EnvironmentID: focalEnv, Value: fixed}
		row, ok := idx.Row(id)
		switch {
		case ok && cols != nil:
			p.Value += g.value(rel, row, cols)
		case ok:
			// degenerate relationship: fixed effect only
		case g.Policy == UngenotypedFixedEffect:
		default:
			p.Value = nan
			p.Missing = true
		}
		out[i] = p
	}
	return out, nil
}
