// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/born-ml/mnist-mlp/internal/config"
)

func runDownload(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	dataDir := fs.String("data", config.Default().DataDir, "Destination directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dir, err := config.ExpandHome(*dataDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Downloading MNIST into %s\n", dir)
	if err := downloadTo(ctx, dir, out); err != nil {
		return err
	}
	fmt.Fprintln(out, "Done.")
	return nil
}
