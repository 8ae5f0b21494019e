// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"

	"github.com/born-ml/mnist-mlp/internal/config"
	"github.com/born-ml/mnist-mlp/internal/model"
)

// runFlags binds the config-backed flags of train and eval. Flags the user
// set override the config file; the rest keep the file's (or default) value.
type runFlags struct {
	configPath string
	values     *config.Config

	lr, momentum, mean, std float64
	sizes                   string
	noShuffle               bool
}

func addRunFlags(fs *flag.FlagSet) *runFlags {
	def := config.Default()
	f := &runFlags{values: config.Default()}

	fs.StringVar(&f.configPath, "config", "", "YAML config file")
	fs.StringVar(&f.values.DataDir, "data", def.DataDir, "Directory containing MNIST files")
	fs.IntVar(&f.values.BatchSize, "batch", def.BatchSize, "Batch size")
	fs.IntVar(&f.values.Epochs, "epochs", def.Epochs, "Number of training epochs")
	fs.Float64Var(&f.lr, "lr", float64(def.LearningRate), "Learning rate")
	fs.Float64Var(&f.momentum, "momentum", float64(def.Momentum), "SGD momentum")
	fs.StringVar(&f.values.Optimizer, "optimizer", def.Optimizer, "Optimizer: sgd or adam")
	fs.Float64Var(&f.mean, "mean", float64(def.Normalize.Mean), "Normalization mean")
	fs.Float64Var(&f.std, "std", float64(def.Normalize.Std), "Normalization std")
	fs.StringVar(&f.sizes, "sizes", model.FormatSizes(def.Sizes), "Layer sizes, e.g. 784-128-64-10")
	fs.BoolVar(&f.noShuffle, "no-shuffle", false, "Keep the training order fixed")
	fs.Int64Var(&f.values.Seed, "seed", def.Seed, "Shuffle seed")
	fs.Float64Var(&f.values.ValSplit, "val", def.ValSplit, "Fraction of the training set held out for validation")
	fs.IntVar(&f.values.Limit, "limit", def.Limit, "Max samples per split (0 = all)")
	fs.StringVar(&f.values.Device, "device", def.Device, "Compute device: cpu or webgpu")
	fs.IntVar(&f.values.LogEvery, "log-every", def.LogEvery, "Print the batch loss every N batches (0 = off)")
	return f
}

// resolve loads the config file and applies the flags that were set.
func (f *runFlags) resolve(fs *flag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	var sizesErr error
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "data":
			cfg.DataDir = f.values.DataDir
		case "batch":
			cfg.BatchSize = f.values.BatchSize
		case "epochs":
			cfg.Epochs = f.values.Epochs
		case "lr":
			cfg.LearningRate = float32(f.lr)
		case "momentum":
			cfg.Momentum = float32(f.momentum)
		case "optimizer":
			cfg.Optimizer = f.values.Optimizer
		case "mean":
			cfg.Normalize.Mean = float32(f.mean)
		case "std":
			cfg.Normalize.Std = float32(f.std)
		case "sizes":
			cfg.Sizes, sizesErr = model.ParseSizes(f.sizes)
		case "no-shuffle":
			cfg.Shuffle = !f.noShuffle
		case "seed":
			cfg.Seed = f.values.Seed
		case "val":
			cfg.ValSplit = f.values.ValSplit
		case "limit":
			cfg.Limit = f.values.Limit
		case "device":
			cfg.Device = f.values.Device
		case "log-every":
			cfg.LogEvery = f.values.LogEvery
		}
	})
	if sizesErr != nil {
		return nil, fmt.Errorf("-sizes: %w", sizesErr)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
