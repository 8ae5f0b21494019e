// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package metrics

import (
	"errors"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Plot size in inches.
const (
	plotWidth  = 6 * vg.Inch
	plotHeight = 4 * vg.Inch
)

// Plot writes per-epoch loss and accuracy curves to path. Accuracy is a
// fraction, so both share the y axis. The format follows the extension
// (.svg, .png, .pdf).
func (h *History) Plot(path string) error {
	if len(h.Epochs) == 0 {
		return errors.New("plot: empty history")
	}

	p := plot.New()
	p.Title.Text = "Training"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss / accuracy"
	p.Y.Min = 0
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	series := []struct {
		name  string
		value func(EpochStats) float64
		val   bool
	}{
		{name: "training loss", value: func(s EpochStats) float64 { return s.TrainLoss }},
		{name: "training accuracy", value: func(s EpochStats) float64 { return s.TrainAcc }},
		{name: "validation loss", value: func(s EpochStats) float64 { return s.ValLoss }, val: true},
		{name: "validation accuracy", value: func(s EpochStats) float64 { return s.ValAcc }, val: true},
	}

	for i, ser := range series {
		pts := make(plotter.XYs, 0, len(h.Epochs))
		for _, s := range h.Epochs {
			if ser.val && !s.HasVal {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(s.Epoch), Y: ser.value(s)})
		}
		if len(pts) == 0 {
			continue
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("plot %s: %w", ser.name, err)
		}
		line.Width = vg.Points(2)
		line.Color = plotutil.Color(i)
		if ser.val {
			line.Dashes = plotutil.Dashes(1)
		}
		p.Add(line)
		p.Legend.Add(ser.name, line)
	}

	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	return nil
}
