// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package dataset

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Download errors.
var (
	ErrNoMirror       = errors.New("no mirror could serve the file")
	ErrCorruptArchive = errors.New("corrupt mnist archive")
)

// DefaultMirrors lists base URLs serving the gzip-compressed MNIST files,
// tried in order.
var DefaultMirrors = []string{
	"https://ossci-datasets.s3.amazonaws.com/mnist/",
	"https://storage.googleapis.com/cvdf-datasets/mnist/",
	"http://yann.lecun.com/exdb/mnist/",
}

// Fetcher retrieves the body of a URL.
type Fetcher interface {
	Get(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPFetcher fetches over HTTP(S) with the given client.
type HTTPFetcher struct {
	Client *http.Client
}

// Get implements Fetcher.
func (f HTTPFetcher) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return resp.Body, nil
}

// DownloadOptions configures Download.
type DownloadOptions struct {
	Mirrors []string             // Base URLs (default: DefaultMirrors)
	Fetcher Fetcher              // Transport (default: HTTPFetcher)
	Logf    func(string, ...any) // Progress callback (optional)
}

// Files lists the archive names of both splits.
func Files() []string {
	var names []string
	for _, s := range []Split{Train, Test} {
		images, labels := s.files()
		names = append(names, images+".gz", labels+".gz")
	}
	return names
}

// Download fetches the MNIST archives into dir.
//
// Valid files already present in dir, compressed or not, are left
// untouched, so dir acts as the dataset cache. Each file is written to a
// temporary file and renamed into place only after a complete transfer that
// decompresses to an IDX stream with the expected magic; anything else
// (an HTML error page, a truncated body) moves on to the next mirror.
func Download(ctx context.Context, dir string, opts DownloadOptions) error {
	if len(opts.Mirrors) == 0 {
		opts.Mirrors = DefaultMirrors
	}
	if opts.Fetcher == nil {
		opts.Fetcher = HTTPFetcher{}
	}
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("download: %w", err)
	}

	for _, name := range Files() {
		dst := filepath.Join(dir, name)
		if cached(dst, opts.Logf) {
			opts.Logf("%s: cached", name)
			continue
		}
		if err := fetchFile(ctx, dst, name, opts); err != nil {
			return err
		}
	}
	return nil
}

// cached reports whether a valid copy of the archive at dst, or of its
// decompressed file, is already present. Invalid copies are removed so they
// are fetched again.
func cached(dst string, logf func(string, ...any)) bool {
	magic := archiveMagic(dst)
	for _, c := range []struct {
		path    string
		gzipped bool
	}{
		{strings.TrimSuffix(dst, ".gz"), false},
		{dst, true},
	} {
		if !exists(c.path) {
			continue
		}
		if err := verifyIDX(c.path, c.gzipped, magic); err != nil {
			logf("%s: %v, removing", filepath.Base(c.path), err)
			_ = os.Remove(c.path)
			continue
		}
		return true
	}
	return false
}

func fetchFile(ctx context.Context, dst, name string, opts DownloadOptions) error {
	var lastErr error
	for _, mirror := range opts.Mirrors {
		if err := ctx.Err(); err != nil {
			return err
		}

		url := strings.TrimSuffix(mirror, "/") + "/" + name
		opts.Logf("%s: fetching %s", name, url)

		n, err := fetchTo(ctx, opts.Fetcher, url, dst)
		if err == nil {
			opts.Logf("%s: %d bytes", name, n)
			return nil
		}
		lastErr = err
		opts.Logf("%s: %v", name, err)
	}
	return fmt.Errorf("download %s: %w: %w", name, ErrNoMirror, lastErr)
}

func fetchTo(ctx context.Context, f Fetcher, url, dst string) (int64, error) {
	body, err := f.Get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, body)
	if err != nil {
		_ = tmp.Close()
		return n, err
	}
	if err := tmp.Close(); err != nil {
		return n, err
	}
	if err := verifyIDX(tmp.Name(), true, archiveMagic(dst)); err != nil {
		return n, err
	}
	return n, os.Rename(tmp.Name(), dst)
}

// archiveMagic returns the IDX magic expected in the archive at path.
func archiveMagic(path string) uint32 {
	if strings.Contains(filepath.Base(path), "images") {
		return idxImagesMagic
	}
	return idxLabelsMagic
}

// verifyIDX checks that path holds a complete IDX stream with the given
// magic. Gzipped files are decompressed to the end so the gzip checksum is
// verified as well.
func verifyIDX(path string, gzipped bool, magic uint32) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if gzipped {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptArchive, err)
		}
		defer zr.Close()
		r = zr
	}
	if err := readMagic(r, magic); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptArchive, err)
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptArchive, err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
