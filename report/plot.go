// Package report renders CV1 accuracy plots.
package report

import (
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/emilybillow27-sudo/genopredict/evaluate"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

// Default figure sizes.
var (
	ScatterSize = 6 * vg.Inch
	BarWidth    = 6 * vg.Inch
	BarHeight   = 4 * vg.Inch
)

// Scatter builds an observed-vs-predicted plot, one series per fold, with
// the pooled Pearson r in the title. Rows with a missing prediction are
// skipped.
func Scatter(res *evaluate.CV1Result) (*plot.Plot, error) {
	byFold := make([]plotter.XYs, res.K)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range res.Rows {
		if math.IsNaN(row.Predicted) || math.IsNaN(row.Observed) {
			continue
		}
		byFold[row.Fold] = append(byFold[row.Fold], plotter.XY{X: row.Observed, Y: row.Predicted})
		lo = math.Min(lo, math.Min(row.Observed, row.Predicted))
		hi = math.Max(hi, math.Max(row.Observed, row.Predicted))
	}
	if math.IsInf(lo, 1) {
		return nil, errors.NewModelError("report.Scatter", "no complete rows", errors.ErrEmptyData)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("CV1 Observed vs Predicted (r = %.3f)", res.Pooled.PearsonR)
	p.X.Label.Text = "Observed"
	p.Y.Label.Text = "Predicted"

	diag, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return nil, errors.Wrap(err, "identity line")
	}
	diag.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(diag)

	for fold, xys := range byFold {
		if len(xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", fold)
		}
		s.GlyphStyle.Color = plotutil.Color(fold)
		s.GlyphStyle.Shape = plotutil.Shape(fold)
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("Fold %d", fold), s)
	}
	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}

// FoldBars builds a bar chart of per-fold Pearson r. A fold whose r is
// undefined is drawn at zero and labelled "n/a".
func FoldBars(res *evaluate.CV1Result) (*plot.Plot, error) {
	if len(res.FoldPearson) == 0 {
		return nil, errors.NewModelError("report.FoldBars", "no folds", errors.ErrEmptyData)
	}
	values := make(plotter.Values, len(res.FoldPearson))
	names := make([]string, len(res.FoldPearson))
	for i, r := range res.FoldPearson {
		names[i] = fmt.Sprintf("%d", i)
		if math.IsNaN(r) {
			names[i] += " (n/a)"
			continue
		}
		values[i] = r
	}

	p := plot.New()
	p.Title.Text = "CV1 Fold-wise Accuracy"
	p.X.Label.Text = "Fold"
	p.Y.Label.Text = "Pearson r"

	bars, err := plotter.NewBarChart(values, vg.Points(24))
	if err != nil {
		return nil, errors.Wrap(err, "fold bars")
	}
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalX(names...)
	return p, nil
}

// WritePNG renders p as PNG to w.
func WritePNG(w io.Writer, p *plot.Plot, width, height vg.Length) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return errors.Wrap(err, "png canvas")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "write png")
	}
	return nil
}

// SaveCV1Plots writes the scatter and fold bar chart PNGs.
func SaveCV1Plots(res *evaluate.CV1Result, scatterPath, barsPath string) error {
	scatter, err := Scatter(res)
	if err != nil {
		return err
	}
	if err := savePNG(scatter, scatterPath, ScatterSize, ScatterSize); err != nil {
		return err
	}
	bars, err := FoldBars(res)
	if err != nil {
		return err
	}
	return savePNG(bars, barsPath, BarWidth, BarHeight)
}

func savePNG(p *plot.Plot, path string, width, height vg.Length) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := WritePNG(f, p, width, height); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "close "+path)
}
