// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Command mnist trains and serves a feed-forward MNIST classifier built on
// the Born ML Framework.
//
// Usage:
//
//	mnist train    [-config run.yaml] [-download] [-synthetic] [-save model.born] ...
//	mnist eval     -model model.born [-data dir]
//	mnist predict  -model model.born image.png...
//	mnist serve    -model model.born [-addr :8080]
//	mnist download [-data dir]
//	mnist version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
)

const version = "v0.1.0"

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string, out io.Writer) error
}

var commands = []command{
	{"train", "Train the classifier and report the loss per epoch", runTrain},
	{"eval", "Evaluate a saved model on the test set", runEval},
	{"predict", "Classify image files with a saved model", runPredict},
	{"serve", "Serve a saved model over HTTP", runServe},
	{"download", "Download the MNIST archives", runDownload},
	{"version", "Show version", runVersion},
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("mnist: ")

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name, args := os.Args[1], os.Args[2:]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		err := c.run(ctx, args, os.Stdout)
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		if err != nil {
			stop()
			log.Fatalf("%s: %v", name, err)
		}
		return
	}

	if name == "help" || name == "-h" || name == "--help" {
		usage(os.Stdout)
		return
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
	usage(os.Stderr)
	os.Exit(2)
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "MNIST MLP on Born ML Framework %s\n\n", version)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w, "\nRun 'mnist <command> -h' for the flags of a command.")
}

func runVersion(_ context.Context, _ []string, out io.Writer) error {
	fmt.Fprintf(out, "mnist %s\n", version)
	return nil
}
