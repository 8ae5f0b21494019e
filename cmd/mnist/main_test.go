// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mnist-mlp/internal/model"
)

func parseRunFlags(t *testing.T, args ...string) (*runFlags, *flag.FlagSet) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	rf := addRunFlags(fs)
	require.NoError(t, fs.Parse(args))
	return rf, fs
}

func TestResolveFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("epochs: 9\nbatch_size: 32\nlearning_rate: 0.05\n"), 0o600))

	rf, fs := parseRunFlags(t, "-config", path, "-batch", "128", "-sizes", "784-32-10", "-no-shuffle")
	cfg, err := rf.resolve(fs)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Epochs, "file value kept")
	assert.Equal(t, 128, cfg.BatchSize, "flag overrides file")
	assert.Equal(t, float32(0.05), cfg.LearningRate, "unset flag does not reset file value")
	assert.Equal(t, []int{784, 32, 10}, cfg.Sizes)
	assert.False(t, cfg.Shuffle)
}

func TestResolveRejectsBadValues(t *testing.T) {
	rf, fs := parseRunFlags(t, "-sizes", "784-x")
	_, err := rf.resolve(fs)
	assert.Error(t, err)

	rf, fs = parseRunFlags(t, "-lr", "0")
	_, err = rf.resolve(fs)
	assert.Error(t, err)

	rf, fs = parseRunFlags(t, "-sizes", "784-16-5")
	_, err = rf.resolve(fs)
	assert.ErrorIs(t, err, model.ErrInvalidSizes)
}

func TestTopClasses(t *testing.T) {
	assert.Equal(t, []int{2, 0}, topClasses([]float64{0.3, 0.1, 0.6}, 2))
	assert.Equal(t, []int{1, 0}, topClasses([]float64{0.4, 0.6}, 5))
	assert.Empty(t, topClasses([]float64{0.4, 0.6}, -1))
	assert.Empty(t, topClasses([]float64{0.4, 0.6}, 0))
}

func TestPredictRejectsNegativeTop(t *testing.T) {
	err := runPredict(context.Background(), []string{"-model", "m.born", "-top", "-1", "digit.png"}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-top")
}

func TestTrainSynthetic(t *testing.T) {
	dir := t.TempDir()
	save := filepath.Join(dir, "model.born")
	hist := filepath.Join(dir, "history.csv")

	var out bytes.Buffer
	err := runTrain(context.Background(), []string{
		"-synthetic", "-limit", "200", "-epochs", "2", "-batch", "20",
		"-lr", "0.1", "-sizes", "784-16-10", "-val", "0.2",
		"-save", save, "-history", hist, "-trace",
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(out.String(), "Training loss:"))
	assert.Contains(t, out.String(), "Single step:")
	assert.Contains(t, out.String(), "Test accuracy:")
	assert.FileExists(t, save)
	assert.FileExists(t, hist)

	out.Reset()
	err = runEval(context.Background(), []string{"-model", save, "-synthetic", "-limit", "100"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Test accuracy:")
}
