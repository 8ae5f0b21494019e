// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package train

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/mnist-mlp/internal/dataset"
)

// ParamTrace describes what one optimizer step did to a parameter.
type ParamTrace struct {
	Name       string  // e.g. "layer0.weight"
	Shape      []int   // parameter shape
	Norm       float64 // L2 norm before the step
	GradNorm   float64 // L2 norm of the gradient
	UpdateNorm float64 // L2 norm of (after - before)
}

// StepTrace is the result of TraceStep.
type StepTrace struct {
	Loss     float32
	Accuracy float32
	Params   []ParamTrace
}

// TraceStep performs one training step like Step and reports, for every
// parameter, the gradient norm and the size of the applied update.
// Parameters without a gradient are reported with zero norms.
func (t *Trainer[B]) TraceStep(batch *dataset.Batch) (StepTrace, error) {
	params := t.model.Parameters()
	before := make([][]float64, len(params))
	for i, p := range params {
		before[i] = toFloat64(p.Tensor().Data())
	}

	defer t.backend.Tape().Clear()

	grads, loss, acc, err := t.backward(batch)
	if err != nil {
		return StepTrace{}, err
	}

	trace := StepTrace{Loss: loss, Accuracy: acc, Params: make([]ParamTrace, len(params))}
	for i, p := range params {
		pt := ParamTrace{
			Name:  fmt.Sprintf("layer%d.%s", i/2, p.Name()),
			Shape: append([]int(nil), p.Tensor().Shape()...),
			Norm:  floats.Norm(before[i], 2),
		}
		if g, ok := grads[p.Tensor().Raw()]; ok && g != nil {
			pt.GradNorm = floats.Norm(toFloat64(g.AsFloat32()), 2)
		}
		trace.Params[i] = pt
	}

	t.update(grads)

	for i, p := range params {
		after := toFloat64(p.Tensor().Data())
		floats.Sub(after, before[i])
		trace.Params[i].UpdateNorm = floats.Norm(after, 2)
	}

	return trace, nil
}

// Print writes the trace as a table.
func (s StepTrace) Print(w io.Writer) {
	fmt.Fprintf(w, "Single step: loss=%.4f accuracy=%.2f%%\n", s.Loss, s.Accuracy*100)
	fmt.Fprintf(w, "  %-16s %-12s %12s %12s %12s\n", "parameter", "shape", "|w|", "|grad|", "|update|")
	for _, p := range s.Params {
		fmt.Fprintf(w, "  %-16s %-12s %12.5f %12.5f %12.7f\n", p.Name, fmt.Sprint(p.Shape), p.Norm, p.GradNorm, p.UpdateNorm)
	}
}

func toFloat64(xs []float32) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}
