// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package dataset

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves fixed bodies keyed by URL and records every request.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  []string
}

func (f *fakeFetcher) Get(_ context.Context, url string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	body, ok := f.bodies[url]
	if !ok {
		return nil, errors.New("404 Not Found")
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

// idxPayload returns the uncompressed IDX content for an archive name.
func idxPayload(t *testing.T, name string) []byte {
	t.Helper()
	var buf bytes.Buffer
	if strings.Contains(name, "images") {
		require.NoError(t, WriteIDXImages(&buf, 2, 2, [][]byte{{1, 2, 3, 4}}))
	} else {
		require.NoError(t, WriteIDXLabels(&buf, []byte{7}))
	}
	return buf.Bytes()
}

// archive returns the gzip-compressed IDX content for an archive name.
func archive(t *testing.T, name string) []byte {
	t.Helper()
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write(idxPayload(t, name))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return gz.Bytes()
}

func TestDownloadFallsBackToNextMirror(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{bodies: map[string][]byte{}}
	for _, name := range Files() {
		fetcher.bodies["https://b.example/mnist/"+name] = archive(t, name)
	}

	err := Download(context.Background(), dir, DownloadOptions{
		Mirrors: []string{"https://a.example/mnist", "https://b.example/mnist/"},
		Fetcher: fetcher,
	})
	require.NoError(t, err)

	for _, name := range Files() {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, archive(t, name), data)
	}
	assert.Len(t, fetcher.calls, 2*len(Files()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, len(Files()), "no temp files left behind")

	set, err := Load(dir, Train, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
}

func TestDownloadRejectsInvalidPayload(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{bodies: map[string][]byte{}}
	for _, name := range Files() {
		fetcher.bodies["https://portal.example/"+name] = []byte("<html>captive portal</html>")
		full := archive(t, name)
		fetcher.bodies["https://short.example/"+name] = full[:len(full)-6]
		fetcher.bodies["https://good.example/"+name] = full
	}

	err := Download(context.Background(), dir, DownloadOptions{
		Mirrors: []string{"https://portal.example", "https://short.example", "https://good.example"},
		Fetcher: fetcher,
	})
	require.NoError(t, err)
	assert.Len(t, fetcher.calls, 3*len(Files()))

	for _, name := range Files() {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, archive(t, name), data)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, len(Files()), "rejected payloads are not left behind")
}

func TestDownloadOnlyInvalidPayloads(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{bodies: map[string][]byte{}}
	for _, name := range Files() {
		fetcher.bodies["https://portal.example/"+name] = []byte("<html>captive portal</html>")
	}

	err := Download(context.Background(), dir, DownloadOptions{
		Mirrors: []string{"https://portal.example"},
		Fetcher: fetcher,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMirror)
	assert.ErrorIs(t, err, ErrCorruptArchive)

	_, statErr := os.Stat(filepath.Join(dir, Files()[0]))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownloadSkipsCachedFiles(t *testing.T) {
	dir := t.TempDir()
	files := Files()
	require.NoError(t, os.WriteFile(filepath.Join(dir, files[0]), archive(t, files[0]), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, strings.TrimSuffix(files[1], ".gz")), idxPayload(t, files[1]), 0o644))

	fetcher := &fakeFetcher{bodies: map[string][]byte{}}
	for _, name := range files {
		fetcher.bodies["https://m.example/"+name] = archive(t, name)
	}

	require.NoError(t, Download(context.Background(), dir, DownloadOptions{
		Mirrors: []string{"https://m.example"},
		Fetcher: fetcher,
	}))
	assert.Len(t, fetcher.calls, len(files)-2)
}

func TestDownloadReplacesCorruptCache(t *testing.T) {
	dir := t.TempDir()
	files := Files()
	require.NoError(t, os.WriteFile(filepath.Join(dir, files[0]), []byte("<html>captive portal</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, strings.TrimSuffix(files[1], ".gz")), []byte("junk"), 0o644))

	fetcher := &fakeFetcher{bodies: map[string][]byte{}}
	for _, name := range files {
		fetcher.bodies["https://m.example/"+name] = archive(t, name)
	}

	require.NoError(t, Download(context.Background(), dir, DownloadOptions{
		Mirrors: []string{"https://m.example"},
		Fetcher: fetcher,
	}))
	assert.Len(t, fetcher.calls, len(files))

	data, err := os.ReadFile(filepath.Join(dir, files[0]))
	require.NoError(t, err)
	assert.Equal(t, archive(t, files[0]), data)
	assert.NoFileExists(t, filepath.Join(dir, strings.TrimSuffix(files[1], ".gz")))
}

func TestDownloadAllMirrorsFail(t *testing.T) {
	err := Download(context.Background(), t.TempDir(), DownloadOptions{
		Mirrors: []string{"https://a.example", "https://b.example"},
		Fetcher: &fakeFetcher{},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMirror)
	assert.Contains(t, err.Error(), "404")
}

func TestDownloadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Download(ctx, t.TempDir(), DownloadOptions{Fetcher: &fakeFetcher{}})
	assert.ErrorIs(t, err, context.Canceled)
}
