// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// IDX magic numbers (unsigned byte data; 3 and 1 dimensions).
const (
	idxImagesMagic = 0x00000803
	idxLabelsMagic = 0x00000801
)

// maxIDXItems bounds the item count read from a header so that a corrupt
// file cannot trigger a huge allocation.
const maxIDXItems = 1 << 24

// ReadIDXImages reads an image file in IDX format.
//
// IDX file format for images:
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes (28)
//	number of cols: 4 bytes (28)
//	pixel data: unsigned bytes (0-255)
func ReadIDXImages(r io.Reader) (rows, cols int, images [][]byte, err error) {
	if err := readMagic(r, idxImagesMagic); err != nil {
		return 0, 0, nil, err
	}
	header := make([]uint32, 3)
	if err := binary.Read(r, binary.BigEndian, header); err != nil {
		return 0, 0, nil, fmt.Errorf("read idx header: %w", err)
	}

	count := int(header[0])
	rows, cols = int(header[1]), int(header[2])
	if count > maxIDXItems || rows*cols <= 0 {
		return 0, 0, nil, fmt.Errorf("idx images: implausible header %d x %d x %d", count, rows, cols)
	}

	imageSize := rows * cols
	images = make([][]byte, count)
	for i := range images {
		images[i] = make([]byte, imageSize)
		if _, err := io.ReadFull(r, images[i]); err != nil {
			return 0, 0, nil, fmt.Errorf("read image %d: %w", i, err)
		}
	}

	return rows, cols, images, nil
}

// ReadIDXLabels reads a label file in IDX format.
//
// IDX file format for labels:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes (0-9)
func ReadIDXLabels(r io.Reader) ([]byte, error) {
	if err := readMagic(r, idxLabelsMagic); err != nil {
		return nil, err
	}
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("read idx header: %w", err)
	}
	if count > maxIDXItems {
		return nil, fmt.Errorf("idx labels: implausible count %d", count)
	}

	labels := make([]byte, count)
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}

	return labels, nil
}

// readMagic reads the 4-byte magic number and checks it against want.
func readMagic(r io.Reader, want uint32) error {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return fmt.Errorf("read idx magic: %w", err)
	}
	if magic != want {
		return fmt.Errorf("%w: got %#08x, want %#08x", ErrBadMagic, magic, want)
	}
	return nil
}

// WriteIDXImages writes images in IDX format. All images must be rows*cols long.
func WriteIDXImages(w io.Writer, rows, cols int, images [][]byte) error {
	header := []uint32{idxImagesMagic, uint32(len(images)), uint32(rows), uint32(cols)}
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return err
	}
	for i, img := range images {
		if len(img) != rows*cols {
			return fmt.Errorf("image %d: got %d bytes, want %d", i, len(img), rows*cols)
		}
		if _, err := w.Write(img); err != nil {
			return err
		}
	}
	return nil
}

// WriteIDXLabels writes labels in IDX format.
func WriteIDXLabels(w io.Writer, labels []byte) error {
	header := []uint32{idxLabelsMagic, uint32(len(labels))}
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return err
	}
	_, err := w.Write(labels)
	return err
}

// idxFile is an opened, possibly gzip-compressed IDX file.
type idxFile struct {
	io.Reader
	closers []io.Closer
}

func (f *idxFile) Close() error {
	var first error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenIDX opens an IDX file for reading.
//
// Paths ending in ".gz" are decompressed transparently. If path does not
// exist but path+".gz" does, the compressed variant is opened instead, so a
// data directory holding only the downloaded archives works as-is.
func OpenIDX(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) && !strings.HasSuffix(path, ".gz") {
		if gz, gzErr := os.Open(path + ".gz"); gzErr == nil {
			file, err, path = gz, nil, path+".gz"
		}
	}
	if err != nil {
		return nil, err
	}

	f := &idxFile{Reader: bufio.NewReader(file), closers: []io.Closer{file}}
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f.Reader)
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		f.Reader = zr
		f.closers = append(f.closers, zr)
	}
	return f, nil
}
