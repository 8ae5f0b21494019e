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

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/mnist-mlp/internal/config"
	"github.com/born-ml/mnist-mlp/internal/dataset"
	"github.com/born-ml/mnist-mlp/internal/device"
	"github.com/born-ml/mnist-mlp/internal/model"
	"github.com/born-ml/mnist-mlp/internal/train"
)

var errNoModel = errors.New("-model is required")

func runEval(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	rf := addRunFlags(fs)
	var data dataOptions
	modelPath := fs.String("model", "", "Saved .born model")
	fs.BoolVar(&data.download, "download", false, "Download MNIST into -data if missing")
	fs.BoolVar(&data.synthetic, "synthetic", false, "Use synthetic data instead of MNIST")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" {
		return errNoModel
	}

	cfg, err := rf.resolve(fs)
	if err != nil {
		return err
	}
	meta, err := model.ReadMeta(*modelPath)
	if err != nil {
		return err
	}
	// The model was trained on data normalized this way.
	cfg.Normalize = config.Normalize{Mean: meta.Mean, Std: meta.Std}
	cfg.ValSplit = 0

	kind, _ := device.Parse(cfg.Device)
	if err := device.Check(kind); err != nil {
		return err
	}

	s, err := loadSets(ctx, cfg, data, out)
	if err != nil {
		return err
	}

	if kind == device.WebGPU {
		return evalWebGPU(*modelPath, cfg, s, out)
	}
	return evalOn(cpu.New(), *modelPath, cfg, s, out)
}

func evalOn[B tensor.Backend](base B, path string, cfg *config.Config, s *sets, out io.Writer) error {
	backend := autodiff.New(base)
	m, meta, err := model.LoadFile(path, backend)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %s (%s, trained %d epochs)\n", path, model.FormatSizes(meta.Sizes), meta.Epochs)

	loss, acc, err := train.Evaluate(m, backend, dataset.NewLoader(s.test, cfg.EvalLoaderOptions()))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Test loss: %.4f  Test accuracy: %.2f%%\n", loss, acc*100)
	return nil
}
