// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/mnist-mlp/internal/config"
	"github.com/born-ml/mnist-mlp/internal/dataset"
	"github.com/born-ml/mnist-mlp/internal/device"
	"github.com/born-ml/mnist-mlp/internal/metrics"
	"github.com/born-ml/mnist-mlp/internal/model"
	"github.com/born-ml/mnist-mlp/internal/train"
)

type trainOutputs struct {
	save    string
	plot    string
	history string
	trace   bool
}

func runTrain(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	rf := addRunFlags(fs)
	var data dataOptions
	var outputs trainOutputs
	fs.BoolVar(&data.download, "download", false, "Download MNIST into -data if missing")
	fs.BoolVar(&data.synthetic, "synthetic", false, "Use synthetic data instead of MNIST")
	fs.StringVar(&outputs.save, "save", "", "Save the trained model to this .born file")
	fs.StringVar(&outputs.plot, "plot", "", "Write the loss and accuracy curves to this image (.png, .svg, .pdf)")
	fs.StringVar(&outputs.history, "history", "", "Write per-epoch metrics to this CSV file")
	fs.BoolVar(&outputs.trace, "trace", false, "Run and report one traced optimizer step before training")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := rf.resolve(fs)
	if err != nil {
		return err
	}
	kind, _ := device.Parse(cfg.Device)
	if err := device.Check(kind); err != nil {
		return err
	}

	banner(out, "Training", cfg)

	s, err := loadSets(ctx, cfg, data, out)
	if err != nil {
		return err
	}

	if kind == device.WebGPU {
		return trainWebGPU(ctx, cfg, s, outputs, out)
	}
	return trainOn(ctx, cpu.New(), cfg, s, outputs, out)
}

func banner(out io.Writer, what string, cfg *config.Config) {
	fmt.Fprintf(out, "Born ML Framework - MNIST MLP %s\n", what)
	fmt.Fprintln(out, strings.Repeat("=", 72))
	fmt.Fprintf(out, "Device: %s on %s\n", cfg.Device, device.Info())
	fmt.Fprintf(out, "Optimizer: %s (lr=%g, momentum=%g)  Batch size: %d  Epochs: %d\n",
		strings.ToUpper(cfg.Optimizer), cfg.LearningRate, cfg.Momentum, cfg.BatchSize, cfg.Epochs)
}

func trainOn[B tensor.Backend](ctx context.Context, base B, cfg *config.Config, s *sets, outputs trainOutputs, out io.Writer) error {
	backend := autodiff.New(base)

	m, err := model.New(cfg.Sizes, backend)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s\n%d trainable parameters\n\n", m, m.NumParameters())

	tr, err := train.New(m, backend, cfg.TrainOptions(), out)
	if err != nil {
		return err
	}

	trainLoader := dataset.NewLoader(s.train, cfg.LoaderOptions())
	var valLoader *dataset.Loader
	if s.val != nil {
		valLoader = dataset.NewLoader(s.val, cfg.EvalLoaderOptions())
	}

	if outputs.trace {
		batch, ok := trainLoader.Next()
		if !ok {
			return dataset.ErrEmpty
		}
		trace, err := tr.TraceStep(batch)
		if err != nil {
			return fmt.Errorf("trace: %w", err)
		}
		trace.Print(out)
		fmt.Fprintln(out)
	}

	start := time.Now()
	history, err := tr.Fit(ctx, trainLoader, valLoader)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, strings.Repeat("=", 72))
	fmt.Fprintf(out, "Training complete in %s (%d steps)\n", time.Since(start).Round(time.Millisecond), tr.Steps())

	testLoss, testAcc, err := tr.Evaluate(dataset.NewLoader(s.test, cfg.EvalLoaderOptions()))
	if err != nil {
		return fmt.Errorf("test: %w", err)
	}
	fmt.Fprintf(out, "Test loss: %.4f  Test accuracy: %.2f%%\n", testLoss, testAcc*100)

	return writeOutputs(m, cfg, history, outputs, out)
}

func writeOutputs[B tensor.Backend](m *model.MLP[B], cfg *config.Config, history *metrics.History, outputs trainOutputs, out io.Writer) error {
	if outputs.save != "" {
		meta := model.Meta{Mean: cfg.Normalize.Mean, Std: cfg.Normalize.Std, Epochs: history.Len()}
		if last, ok := history.Last(); ok {
			meta.TrainLoss = last.TrainLoss
			meta.ValAcc = last.ValAcc
		}
		if err := m.Save(outputs.save, meta); err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved model to %s\n", outputs.save)
	}

	if outputs.plot != "" {
		if err := history.Plot(outputs.plot); err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved plot to %s\n", outputs.plot)
	}

	if outputs.history != "" {
		f, err := os.Create(outputs.history)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		if err := history.WriteCSV(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("history: %w", err)
		}
		fmt.Fprintf(out, "Saved history to %s\n", outputs.history)
	}
	return nil
}
