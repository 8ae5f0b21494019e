// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/born/backend/cpu"

	"github.com/born-ml/mnist-mlp/internal/model"
	"github.com/born-ml/mnist-mlp/internal/predict"
)

func runPredict(_ context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	modelPath := fs.String("model", "", "Saved .born model")
	invert := fs.Bool("invert", false, "Invert images (dark digit on light background)")
	top := fs.Int("top", 3, "Number of classes to show per image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" {
		return errNoModel
	}
	if fs.NArg() == 0 {
		return errors.New("no image files given")
	}
	if *top < 0 {
		return fmt.Errorf("-top must be >= 0 (got %d)", *top)
	}

	backend := cpu.New()
	m, meta, err := model.LoadFile(*modelPath, backend)
	if err != nil {
		return err
	}
	p := predict.NewPredictor(m, backend)
	opts := predict.PreprocessOptions{Mean: meta.Mean, Std: meta.Std, Invert: *invert}

	for _, path := range fs.Args() {
		pred, err := predictFile(p, path, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d (%.1f%%)", path, pred.Label, pred.Confidence*100)
		for _, c := range topClasses(pred.Probabilities, *top) {
			fmt.Fprintf(out, "  %d=%.3f", c, pred.Probabilities[c])
		}
		fmt.Fprintln(out)
	}
	return nil
}

func predictFile(p *predict.Predictor[*cpu.Backend], path string, opts predict.PreprocessOptions) (predict.Prediction, error) {
	f, err := os.Open(path)
	if err != nil {
		return predict.Prediction{}, err
	}
	defer f.Close()

	img, err := predict.DecodeImage(f)
	if err != nil {
		return predict.Prediction{}, fmt.Errorf("%s: %w", path, err)
	}
	return p.Predict(predict.Preprocess(img, opts))
}

// topClasses returns the indices of the k largest probabilities, largest first.
func topClasses(probs []float64, k int) []int {
	k = max(0, min(k, len(probs)))
	idx := make([]int, 0, k)
	used := make([]bool, len(probs))
	for len(idx) < k {
		best := -1
		for i, v := range probs {
			if !used[i] && (best < 0 || v > probs[best]) {
				best = i
			}
		}
		used[best] = true
		idx = append(idx, best)
	}
	return idx
}
