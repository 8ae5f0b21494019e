// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
)

// Image geometry and class count of MNIST.
const (
	Rows       = 28
	Cols       = 28
	Pixels     = Rows * Cols
	NumClasses = 10
)

// Common errors.
var (
	ErrBadMagic      = errors.New("invalid idx magic number")
	ErrCountMismatch = errors.New("image count does not match label count")
	ErrLabelRange    = errors.New("label out of range [0, 9]")
	ErrEmpty         = errors.New("dataset is empty")
)

// Split selects the MNIST training or test partition.
type Split int

// Available splits.
const (
	Train Split = iota
	Test
)

func (s Split) String() string {
	if s == Test {
		return "test"
	}
	return "train"
}

// files returns the image and label file names of the split.
func (s Split) files() (images, labels string) {
	if s == Test {
		return "t10k-images-idx3-ubyte", "t10k-labels-idx1-ubyte"
	}
	return "train-images-idx3-ubyte", "train-labels-idx1-ubyte"
}

// Set holds labeled images as flattened float32 pixel rows.
type Set struct {
	Images [][]float32 // [num_samples, Rows*Cols]
	Labels []int32     // [num_samples]
	Rows   int
	Cols   int
}

// Len returns the number of samples.
func (s *Set) Len() int {
	return len(s.Images)
}

// Features returns the flattened image size.
func (s *Set) Features() int {
	return s.Rows * s.Cols
}

// Subset returns a view of the first n samples (all when n <= 0 or n >= Len).
func (s *Set) Subset(n int) *Set {
	if n <= 0 || n >= s.Len() {
		return s
	}
	return &Set{Images: s.Images[:n], Labels: s.Labels[:n], Rows: s.Rows, Cols: s.Cols}
}

// Split splits the set into train and validation parts.
//
// The last valRatio fraction of samples becomes the validation set. Both
// results share storage with s.
func (s *Set) Split(valRatio float32) (train, val *Set) {
	splitIdx := int(float32(s.Len()) * (1.0 - valRatio))
	if splitIdx < 0 {
		splitIdx = 0
	}
	if splitIdx > s.Len() {
		splitIdx = s.Len()
	}
	return &Set{Images: s.Images[:splitIdx], Labels: s.Labels[:splitIdx], Rows: s.Rows, Cols: s.Cols},
		&Set{Images: s.Images[splitIdx:], Labels: s.Labels[splitIdx:], Rows: s.Rows, Cols: s.Cols}
}

// Normalize applies (x - mean) / std to every pixel in place.
//
// With mean = std = 0.5 pixels in [0, 1] map to [-1, 1].
func (s *Set) Normalize(mean, std float32) {
	if std == 0 {
		std = 1
	}
	for _, img := range s.Images {
		for j, v := range img {
			img[j] = (v - mean) / std
		}
	}
}

// Load loads an MNIST split from official IDX files in dir.
//
// Expected files in dir (optionally gzip-compressed with a .gz suffix):
//   - train-images-idx3-ubyte, train-labels-idx1-ubyte
//   - t10k-images-idx3-ubyte, t10k-labels-idx1-ubyte
//
// Pixels are scaled to [0, 1]. limit > 0 keeps only the first limit samples.
func Load(dir string, split Split, limit int) (*Set, error) {
	imageFile, labelFile := split.files()

	imgR, err := OpenIDX(filepath.Join(dir, imageFile))
	if err != nil {
		return nil, fmt.Errorf("load %s images: %w", split, err)
	}
	defer imgR.Close()

	rows, cols, imagesRaw, err := ReadIDXImages(imgR)
	if err != nil {
		return nil, fmt.Errorf("load %s images: %w", split, err)
	}

	lblR, err := OpenIDX(filepath.Join(dir, labelFile))
	if err != nil {
		return nil, fmt.Errorf("load %s labels: %w", split, err)
	}
	defer lblR.Close()

	labelsRaw, err := ReadIDXLabels(lblR)
	if err != nil {
		return nil, fmt.Errorf("load %s labels: %w", split, err)
	}

	return FromBytes(rows, cols, imagesRaw, labelsRaw, limit)
}

// FromBytes builds a Set from raw IDX payloads, scaling pixels to [0, 1].
func FromBytes(rows, cols int, images [][]byte, labels []byte, limit int) (*Set, error) {
	if len(images) != len(labels) {
		return nil, fmt.Errorf("%w: %d images, %d labels", ErrCountMismatch, len(images), len(labels))
	}

	n := len(images)
	if limit > 0 && n > limit {
		n = limit
	}

	set := &Set{
		Images: make([][]float32, n),
		Labels: make([]int32, n),
		Rows:   rows,
		Cols:   cols,
	}
	for i := 0; i < n; i++ {
		if labels[i] >= NumClasses {
			return nil, fmt.Errorf("%w: sample %d has label %d", ErrLabelRange, i, labels[i])
		}
		img := make([]float32, rows*cols)
		for j, px := range images[i] {
			img[j] = float32(px) / 255.0
		}
		set.Images[i] = img
		set.Labels[i] = int32(labels[i])
	}
	return set, nil
}

// LoadCSV loads MNIST data from a CSV file.
//
// CSV Format (Kaggle-style):
//
//	label,pixel0,pixel1,...,pixel783
//	5,0,0,12,...,0
//
// Pixels are scaled to [0, 1]. limit > 0 keeps only the first limit samples.
func LoadCSV(path string, limit int) (*Set, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load csv: %w", err)
	}
	defer file.Close()

	return ReadCSV(file, limit)
}

// ReadCSV parses Kaggle-style MNIST CSV from r. See LoadCSV.
func ReadCSV(r io.Reader, limit int) (*Set, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	reader.FieldsPerRecord = Pixels + 1

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv: %w: missing header", ErrEmpty)
		}
		return nil, fmt.Errorf("csv header: %w", err)
	}

	set := &Set{Rows: Rows, Cols: Cols}
	for row := 1; limit <= 0 || set.Len() < limit; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w", row, err)
		}

		label, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("csv row %d: invalid label: %w", row, err)
		}
		if label < 0 || label >= NumClasses {
			return nil, fmt.Errorf("csv row %d: %w: %d", row, ErrLabelRange, label)
		}

		img := make([]float32, Pixels)
		for j := 0; j < Pixels; j++ {
			px, err := strconv.Atoi(record[j+1])
			if err != nil {
				return nil, fmt.Errorf("csv row %d, column %d: invalid pixel: %w", row, j+1, err)
			}
			img[j] = float32(px) / 255.0
		}
		set.Images = append(set.Images, img)
		set.Labels = append(set.Labels, int32(label))
	}

	if set.Len() == 0 {
		return nil, fmt.Errorf("csv: %w", ErrEmpty)
	}
	return set, nil
}

// Synthetic creates a deterministic synthetic digit set for offline runs.
//
// Class k is drawn as a bright horizontal band starting at row 2k, with a
// little uniform noise. The set cycles through the classes, so any n >= 10
// contains every class. This is NOT realistic MNIST data.
func Synthetic(n int, seed int64) *Set {
	rng := rand.New(rand.NewSource(seed))
	set := &Set{
		Images: make([][]float32, n),
		Labels: make([]int32, n),
		Rows:   Rows,
		Cols:   Cols,
	}

	for i := 0; i < n; i++ {
		digit := i % NumClasses
		img := make([]float32, Pixels)
		for j := range img {
			img[j] = rng.Float32() * 0.1
		}
		startRow := digit * 2
		for row := startRow; row < startRow+8 && row < Rows; row++ {
			for col := 5; col < 23; col++ {
				img[row*Cols+col] = 0.8 + rng.Float32()*0.2
			}
		}
		set.Images[i] = img
		set.Labels[i] = int32(digit)
	}
	return set
}
