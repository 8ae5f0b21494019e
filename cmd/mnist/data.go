// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/born-ml/mnist-mlp/internal/config"
	"github.com/born-ml/mnist-mlp/internal/dataset"
)

// syntheticSize is the number of training samples used with -synthetic
// when -limit is not set.
const syntheticSize = 2000

// sets holds the normalized splits of one run. val is nil without a
// validation split.
type sets struct {
	train, val, test *dataset.Set
}

type dataOptions struct {
	synthetic bool
	download  bool
}

func loadSets(ctx context.Context, cfg *config.Config, opts dataOptions, out io.Writer) (*sets, error) {
	var train, test *dataset.Set

	if opts.synthetic {
		n := syntheticSize
		if cfg.Limit > 0 {
			n = cfg.Limit
		}
		fmt.Fprintf(out, "Using synthetic data (%d train / %d test samples)\n", n, n/5)
		train = dataset.Synthetic(n, cfg.Seed)
		test = dataset.Synthetic(n/5, cfg.Seed+1)
	} else {
		dir, err := cfg.ResolvedDataDir()
		if err != nil {
			return nil, err
		}
		if opts.download {
			if err := downloadTo(ctx, dir, out); err != nil {
				return nil, err
			}
		}

		fmt.Fprintf(out, "Loading MNIST from %s\n", dir)
		if train, err = loadSplit(dir, dataset.Train, cfg.Limit); err != nil {
			return nil, err
		}
		if test, err = loadSplit(dir, dataset.Test, cfg.Limit); err != nil {
			return nil, err
		}
	}

	train.Normalize(cfg.Normalize.Mean, cfg.Normalize.Std)
	test.Normalize(cfg.Normalize.Mean, cfg.Normalize.Std)

	s := &sets{train: train, test: test}
	if cfg.ValSplit > 0 {
		s.train, s.val = train.Split(float32(cfg.ValSplit))
	}

	fmt.Fprintf(out, "  train: %d samples", s.train.Len())
	if s.val != nil {
		fmt.Fprintf(out, ", val: %d samples", s.val.Len())
	}
	fmt.Fprintf(out, ", test: %d samples\n", s.test.Len())
	return s, nil
}

func loadSplit(dir string, split dataset.Split, limit int) (*dataset.Set, error) {
	set, err := dataset.Load(dir, split, limit)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w\n\nrun 'mnist download -data %s', pass -download, or use -synthetic", err, dir)
	}
	return set, err
}

func downloadTo(ctx context.Context, dir string, out io.Writer) error {
	return dataset.Download(ctx, dir, dataset.DownloadOptions{
		Logf: func(format string, args ...any) {
			fmt.Fprintf(out, "  "+format+"\n", args...)
		},
	})
}
