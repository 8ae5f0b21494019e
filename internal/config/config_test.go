// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mnist-mlp/internal/model"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 64, cfg.BatchSize)
	assert.Equal(t, 5, cfg.Epochs)
	assert.Equal(t, float32(0.003), cfg.LearningRate)
	assert.Equal(t, []int{784, 128, 64, 10}, cfg.Sizes)
	assert.Equal(t, Normalize{Mean: 0.5, Std: 0.5}, cfg.Normalize)
	assert.True(t, cfg.Shuffle)

	opts := cfg.TrainOptions()
	assert.Equal(t, "sgd", opts.Optimizer)
	assert.NoError(t, opts.Validate())

	lo := cfg.LoaderOptions()
	assert.Equal(t, 64, lo.BatchSize)
	assert.True(t, lo.Shuffle)
	assert.False(t, cfg.EvalLoaderOptions().Shuffle)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
		want error
	}{
		{"batch", func(c *Config) { c.BatchSize = 0 }, ErrInvalidBatchSize},
		{"epochs", func(c *Config) { c.Epochs = -1 }, ErrInvalidEpochs},
		{"lr", func(c *Config) { c.LearningRate = 0 }, ErrInvalidLearningRate},
		{"momentum", func(c *Config) { c.Momentum = 1.5 }, ErrInvalidMomentum},
		{"optimizer", func(c *Config) { c.Optimizer = "rmsprop" }, ErrInvalidOptimizer},
		{"split", func(c *Config) { c.ValSplit = 1 }, ErrInvalidSplit},
		{"device", func(c *Config) { c.Device = "tpu" }, ErrInvalidDevice},
		{"std", func(c *Config) { c.Normalize.Std = 0 }, ErrInvalidNormalize},
		{"sizes too short", func(c *Config) { c.Sizes = []int{784} }, model.ErrInvalidSizes},
		{"sizes wrong classes", func(c *Config) { c.Sizes = []int{784, 16, 5} }, model.ErrInvalidSizes},
		{"sizes wrong inputs", func(c *Config) { c.Sizes = []int{100, 10} }, model.ErrInvalidSizes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
epochs: 10
learning_rate: 0.01
optimizer: Adam
sizes: [784, 256, 10]
normalize:
  mean: 0.1307
  std: 0.3081
`))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Epochs)
	assert.Equal(t, float32(0.01), cfg.LearningRate)
	assert.Equal(t, "adam", cfg.TrainOptions().Optimizer)
	assert.Equal(t, []int{784, 256, 10}, cfg.Sizes)
	assert.InDelta(t, 0.1307, cfg.Normalize.Mean, 1e-6)
	assert.Equal(t, 64, cfg.BatchSize, "unset keys keep their default")
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("epoch: 3\n"))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = Parse(strings.NewReader("batch_size: 0\n"))
	assert.ErrorIs(t, err, ErrInvalidBatchSize)

	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: 42\nval_split: 0.1\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 0.1, cfg.ValSplit)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	// String round-trips through Parse.
	again, err := Parse(strings.NewReader(cfg.String()))
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandHome("~/data")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data"), got)

	got, err = ExpandHome("/tmp/x")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", got)

	got, err = ExpandHome("~user/x")
	require.NoError(t, err)
	assert.Equal(t, "~user/x", got)
}
