//go:build !windows

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"io"

	"github.com/born-ml/mnist-mlp/internal/config"
	"github.com/born-ml/mnist-mlp/internal/device"
)

func trainWebGPU(context.Context, *config.Config, *sets, trainOutputs, io.Writer) error {
	return device.Check(device.WebGPU)
}

func evalWebGPU(string, *config.Config, *sets, io.Writer) error {
	return device.Check(device.WebGPU)
}
