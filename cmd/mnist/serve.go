// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"io"

	"github.com/born-ml/born/backend/cpu"

	"github.com/born-ml/mnist-mlp/internal/model"
	"github.com/born-ml/mnist-mlp/internal/predict"
	"github.com/born-ml/mnist-mlp/internal/server"
)

func runServe(ctx context.Context, args []string, _ io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	modelPath := fs.String("model", "", "Saved .born model")
	addr := fs.String("addr", "localhost:8080", "Listen address")
	invert := fs.Bool("invert", false, "Invert uploaded images by default")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" {
		return errNoModel
	}

	backend := cpu.New()
	m, meta, err := model.LoadFile(*modelPath, backend)
	if err != nil {
		return err
	}

	info := server.ModelInfo{
		Architecture: m.String(),
		Sizes:        m.Sizes(),
		Parameters:   m.NumParameters(),
		Meta:         meta,
	}
	srv := server.New(predict.NewPredictor(m, backend), info, server.WithInvert(*invert))
	return srv.Run(ctx, *addr)
}
