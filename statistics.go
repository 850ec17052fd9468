package ram

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Statistics records how the Agent fared over its lifetime.
type Statistics struct {
	Costs    []float32 // mean training cost of every training iteration
	Accuracy []float64 // accuracy of every evaluation
}

func makeStatistics() Statistics {
	return Statistics{
		Costs:    make([]float32, 0, 64),
		Accuracy: make([]float64, 0, 64),
	}
}

func (s *Statistics) update(costs []float32) { s.Costs = append(s.Costs, costs...) }

func (s *Statistics) evaluated(accuracy float64) { s.Accuracy = append(s.Accuracy, accuracy) }

// Dump writes the statistics into filename as CSV records of (kind, index, value).
func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.writeCSV(f)
}

func (s *Statistics) writeCSV(out io.Writer) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"kind", "index", "value"}); err != nil {
		return err
	}
	var records [][]string
	for i, c := range s.Costs {
		records = append(records, []string{"cost", strconv.Itoa(i), strconv.FormatFloat(float64(c), 'f', 5, 32)})
	}
	for i, acc := range s.Accuracy {
		records = append(records, []string{"accuracy", strconv.Itoa(i), strconv.FormatFloat(acc, 'f', 3, 64)})
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// Plot draws the training costs into filename. The format follows the extension of filename (svg, png, pdf...).
func (s *Statistics) Plot(filename string) error {
	if len(s.Costs) == 0 {
		return errors.New("no training costs to plot")
	}
	p, err := plot.New()
	if err != nil {
		return errors.WithStack(err)
	}
	p.Title.Text = "Training"
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Cost"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(s.Costs))
	for i, c := range s.Costs {
		pts[i].X, pts[i].Y = float64(i), float64(c)
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return errors.WithStack(err)
	}
	l.Width = 2
	l.Color = plotutil.Color(0)
	p.Add(l)
	return p.Save(6*vg.Inch, 4*vg.Inch, filename)
}
