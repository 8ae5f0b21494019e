//go:build windows

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/born-ml/born/backend/webgpu"

	"github.com/born-ml/mnist-mlp/internal/config"
)

func trainWebGPU(ctx context.Context, cfg *config.Config, s *sets, outputs trainOutputs, out io.Writer) error {
	gpu, err := webgpu.New()
	if err != nil {
		return fmt.Errorf("webgpu: %w", err)
	}
	defer gpu.Release()

	return trainOn(ctx, gpu, cfg, s, outputs, out)
}

func evalWebGPU(path string, cfg *config.Config, s *sets, out io.Writer) error {
	gpu, err := webgpu.New()
	if err != nil {
		return fmt.Errorf("webgpu: %w", err)
	}
	defer gpu.Release()

	return evalOn(gpu, path, cfg, s, out)
}
