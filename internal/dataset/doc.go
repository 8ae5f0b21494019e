// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package dataset loads, normalizes, and batches MNIST.
//
// The official IDX files are read directly (plain or gzip-compressed).
// Kaggle-style CSV and a synthetic set for offline runs are also supported.
//
// Load takes a literal directory; "~" is not expanded (see
// config.ExpandHome).
//
// Example:
//
//	set, err := dataset.Load("/data/mnist", dataset.Train, 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	set.Normalize(0.5, 0.5)
//	loader := dataset.NewLoader(set, dataset.LoaderOptions{BatchSize: 64, Shuffle: true})
package dataset
