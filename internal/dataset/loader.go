// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package dataset

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/born/tensor"
)

// Batch represents a mini-batch of flattened images and their labels.
type Batch struct {
	Images   []float32 // row-major [Size, Features]
	Labels   []int32   // [Size]
	Size     int
	Features int
}

// Tensors copies the batch into framework tensors on the given backend.
//
// Returns images with shape [Size, Features] and labels with shape [Size].
func Tensors[B tensor.Backend](b *Batch, backend B) (*tensor.Tensor[float32, B], *tensor.Tensor[int32, B], error) {
	images, err := tensor.FromSlice(b.Images, tensor.Shape{b.Size, b.Features}, backend)
	if err != nil {
		return nil, nil, fmt.Errorf("batch images tensor: %w", err)
	}
	labels, err := tensor.FromSlice(b.Labels, tensor.Shape{b.Size}, backend)
	if err != nil {
		return nil, nil, fmt.Errorf("batch labels tensor: %w", err)
	}
	return images, labels, nil
}

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	BatchSize int   // Samples per batch (default: 64)
	Shuffle   bool  // Draw a new permutation on every Reset
	Seed      int64 // Seed of the shuffle source
	DropLast  bool  // Drop the final short batch
}

// Loader yields mini-batches over a Set, one epoch at a time.
//
// Example:
//
//	loader := dataset.NewLoader(set, dataset.LoaderOptions{BatchSize: 64, Shuffle: true})
//	for batch, ok := loader.Next(); ok; batch, ok = loader.Next() {
//	    ...
//	}
//	loader.Reset() // next epoch
type Loader struct {
	set     *Set
	opts    LoaderOptions
	rng     *rand.Rand
	indices []int
	pos     int
}

// NewLoader creates a loader positioned at the start of the first epoch.
func NewLoader(set *Set, opts LoaderOptions) *Loader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	l := &Loader{
		set:     set,
		opts:    opts,
		rng:     rand.New(rand.NewSource(opts.Seed)),
		indices: make([]int, set.Len()),
	}
	l.Reset()
	return l
}

// Reset rewinds the loader, reshuffling when Shuffle is set.
func (l *Loader) Reset() {
	l.pos = 0
	for i := range l.indices {
		l.indices[i] = i
	}
	if l.opts.Shuffle {
		l.rng.Shuffle(len(l.indices), func(i, j int) {
			l.indices[i], l.indices[j] = l.indices[j], l.indices[i]
		})
	}
}

// NumBatches returns the number of batches per epoch.
func (l *Loader) NumBatches() int {
	n := l.set.Len()
	if l.opts.DropLast {
		return n / l.opts.BatchSize
	}
	return (n + l.opts.BatchSize - 1) / l.opts.BatchSize
}

// Len returns the number of samples per epoch.
func (l *Loader) Len() int {
	if l.opts.DropLast {
		return l.NumBatches() * l.opts.BatchSize
	}
	return l.set.Len()
}

// Next returns the next batch of the current epoch, or false when the epoch
// is exhausted.
func (l *Loader) Next() (*Batch, bool) {
	remaining := len(l.indices) - l.pos
	if remaining <= 0 || (l.opts.DropLast && remaining < l.opts.BatchSize) {
		return nil, false
	}

	size := l.opts.BatchSize
	if remaining < size {
		size = remaining
	}

	features := l.set.Features()
	batch := &Batch{
		Images:   make([]float32, size*features),
		Labels:   make([]int32, size),
		Size:     size,
		Features: features,
	}
	for j := 0; j < size; j++ {
		idx := l.indices[l.pos+j]
		copy(batch.Images[j*features:(j+1)*features], l.set.Images[idx])
		batch.Labels[j] = l.set.Labels[idx]
	}
	l.pos += size

	return batch, true
}
