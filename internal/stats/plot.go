package stats

import (
	"errors"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var ErrNoHistory = errors.New("fitness history is empty")

// WriteFitnessPlot draws best-of-run error per generation, and the
// population mean when given, to a PNG at path.
func WriteFitnessPlot(path, title string, best, mean []float64) error {
	if len(best) == 0 {
		return ErrNoHistory
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Error"
	p.Y.Min = 0

	bestLine, err := plotter.NewLine(seriesXYs(best))
	if err != nil {
		return err
	}
	p.Add(bestLine)
	p.Legend.Add("best", bestLine)

	if len(mean) > 0 {
		meanLine, err := plotter.NewLine(seriesXYs(mean))
		if err != nil {
			return err
		}
		meanLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(meanLine)
		p.Legend.Add("mean", meanLine)
	}
	p.Legend.Top = true

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

func seriesXYs(values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i + 1)
		pts[i].Y = v
	}
	return pts
}
