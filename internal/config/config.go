// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package config holds the settings of a training run.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/mnist-mlp/internal/dataset"
	"github.com/born-ml/mnist-mlp/internal/device"
	"github.com/born-ml/mnist-mlp/internal/model"
	"github.com/born-ml/mnist-mlp/internal/train"
)

// Validation errors.
var (
	ErrInvalidBatchSize    = errors.New("config: batch_size must be > 0")
	ErrInvalidEpochs       = errors.New("config: epochs must be > 0")
	ErrInvalidLearningRate = errors.New("config: learning_rate must be > 0")
	ErrInvalidMomentum     = errors.New("config: momentum must be in [0, 1)")
	ErrInvalidOptimizer    = errors.New("config: optimizer must be sgd or adam")
	ErrInvalidSplit        = errors.New("config: val_split must be in [0, 1)")
	ErrInvalidDevice       = errors.New("config: unknown device")
	ErrInvalidNormalize    = errors.New("config: normalize std must be > 0")
)

// Normalize is the per-pixel transform (x - Mean) / Std.
type Normalize struct {
	Mean float32 `yaml:"mean"`
	Std  float32 `yaml:"std"`
}

// Config captures the knobs of a training run.
type Config struct {
	DataDir      string    `yaml:"data_dir"`
	BatchSize    int       `yaml:"batch_size"`
	Epochs       int       `yaml:"epochs"`
	LearningRate float32   `yaml:"learning_rate"`
	Momentum     float32   `yaml:"momentum"`
	Optimizer    string    `yaml:"optimizer"`
	Normalize    Normalize `yaml:"normalize"`
	Sizes        []int     `yaml:"sizes"`
	Shuffle      bool      `yaml:"shuffle"`
	Seed         int64     `yaml:"seed"`
	ValSplit     float64   `yaml:"val_split"`
	Limit        int       `yaml:"limit"`
	Device       string    `yaml:"device"`
	LogEvery     int       `yaml:"log_every"`
}

// Default returns the tutorial settings.
func Default() *Config {
	return &Config{
		DataDir:      filepath.Join("~", ".born", "MNIST_data"),
		BatchSize:    64,
		Epochs:       5,
		LearningRate: 0.003,
		Momentum:     0,
		Optimizer:    train.OptimizerSGD,
		Normalize:    Normalize{Mean: 0.5, Std: 0.5},
		Sizes:        append([]int(nil), model.DefaultSizes...),
		Shuffle:      true,
		Seed:         1,
		Device:       string(device.CPU),
	}
}

// Load reads a YAML file on top of the defaults and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML from r on top of the defaults. Unknown keys are errors.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidBatchSize, c.BatchSize)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidEpochs, c.Epochs)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("%w (got %g)", ErrInvalidLearningRate, c.LearningRate)
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return fmt.Errorf("%w (got %g)", ErrInvalidMomentum, c.Momentum)
	}
	switch strings.ToLower(c.Optimizer) {
	case train.OptimizerSGD, train.OptimizerAdam:
	default:
		return fmt.Errorf("%w (got %q)", ErrInvalidOptimizer, c.Optimizer)
	}
	if c.ValSplit < 0 || c.ValSplit >= 1 {
		return fmt.Errorf("%w (got %g)", ErrInvalidSplit, c.ValSplit)
	}
	if c.Normalize.Std <= 0 {
		return fmt.Errorf("%w (got %g)", ErrInvalidNormalize, c.Normalize.Std)
	}
	if _, err := device.Parse(c.Device); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDevice, err)
	}
	if err := model.ValidateSizes(c.Sizes); err != nil {
		return fmt.Errorf("config: sizes: %w", err)
	}
	if in, out := c.Sizes[0], c.Sizes[len(c.Sizes)-1]; in != dataset.Pixels || out != dataset.NumClasses {
		return fmt.Errorf("config: sizes %s: %w: must start at %d inputs and end at %d classes",
			model.FormatSizes(c.Sizes), model.ErrInvalidSizes, dataset.Pixels, dataset.NumClasses)
	}
	return nil
}

// ResolvedDataDir returns DataDir with a leading "~" expanded.
func (c *Config) ResolvedDataDir() (string, error) {
	return ExpandHome(c.DataDir)
}

// TrainOptions returns the trainer settings.
func (c *Config) TrainOptions() train.Options {
	return train.Options{
		Epochs:       c.Epochs,
		LearningRate: c.LearningRate,
		Momentum:     c.Momentum,
		Optimizer:    strings.ToLower(c.Optimizer),
		LogEvery:     c.LogEvery,
	}
}

// LoaderOptions returns the training loader settings.
func (c *Config) LoaderOptions() dataset.LoaderOptions {
	return dataset.LoaderOptions{
		BatchSize: c.BatchSize,
		Shuffle:   c.Shuffle,
		Seed:      c.Seed,
	}
}

// EvalLoaderOptions returns loader settings for evaluation: same batch
// size, fixed order.
func (c *Config) EvalLoaderOptions() dataset.LoaderOptions {
	return dataset.LoaderOptions{BatchSize: c.BatchSize}
}

// String renders the config as YAML.
func (c *Config) String() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(out)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, path[1:]), nil
}
