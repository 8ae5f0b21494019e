// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package model defines the feed-forward classifier trained on MNIST.
package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// ErrInvalidSizes is returned for an unusable layer-size list.
var ErrInvalidSizes = errors.New("model: need at least two positive layer sizes")

// DefaultSizes is the tutorial architecture: 784 -> 128 -> 64 -> 10.
var DefaultSizes = []int{784, 128, 64, 10}

// modelType is the type name recorded in saved checkpoints.
const modelType = "MLP"

// MLP is a multilayer perceptron built from Born's nn modules.
//
// Architecture for sizes [s0, s1, ..., sn]:
//
//	Linear(s0 -> s1), ReLU, Linear(s1 -> s2), ReLU, ..., Linear(sn-1 -> sn)
//
// The last layer has no activation: Forward returns raw logits, which
// CrossEntropyLoss turns into log-probabilities internally.
type MLP[B tensor.Backend] struct {
	sizes  []int
	layers []*nn.Linear[B]
	seq    *nn.Sequential[B]
}

// New creates an MLP with Xavier-initialized weights and zero biases.
func New[B tensor.Backend](sizes []int, backend B) (*MLP[B], error) {
	if err := ValidateSizes(sizes); err != nil {
		return nil, err
	}

	m := &MLP[B]{sizes: append([]int(nil), sizes...)}
	modules := make([]nn.Module[B], 0, 2*len(sizes)-3)
	for i := 0; i < len(sizes)-1; i++ {
		layer := nn.NewLinear[B](sizes[i], sizes[i+1], backend)
		m.layers = append(m.layers, layer)
		modules = append(modules, layer)
		if i < len(sizes)-2 {
			modules = append(modules, nn.NewReLU[B]())
		}
	}
	m.seq = nn.NewSequential[B](modules...)

	return m, nil
}

// ValidateSizes checks a layer-size list.
func ValidateSizes(sizes []int) error {
	if len(sizes) < 2 {
		return ErrInvalidSizes
	}
	for _, s := range sizes {
		if s <= 0 {
			return fmt.Errorf("%w: got %v", ErrInvalidSizes, sizes)
		}
	}
	return nil
}

// Forward computes logits for a batch.
//
// Input has shape [batch_size, in] or [in] (a single sample). The output
// has shape [batch_size, out].
func (m *MLP[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) == 1 {
		input = input.Reshape(1, shape[0])
	} else if len(shape) != 2 || shape[1] != m.sizes[0] {
		panic(fmt.Sprintf("MLP: input must have shape [batch_size, %d] or [%d], got %v", m.sizes[0], m.sizes[0], shape))
	}
	return m.seq.Forward(input)
}

// Parameters returns all trainable parameters (weight and bias per layer).
func (m *MLP[B]) Parameters() []*nn.Parameter[B] {
	return m.seq.Parameters()
}

// Layers returns the affine layers in order.
func (m *MLP[B]) Layers() []*nn.Linear[B] {
	return m.layers
}

// Sizes returns a copy of the layer sizes.
func (m *MLP[B]) Sizes() []int {
	return append([]int(nil), m.sizes...)
}

// InFeatures returns the input width.
func (m *MLP[B]) InFeatures() int { return m.sizes[0] }

// NumClasses returns the output width.
func (m *MLP[B]) NumClasses() int { return m.sizes[len(m.sizes)-1] }

// NumParameters counts the trainable scalars.
func (m *MLP[B]) NumParameters() int {
	total := 0
	for _, param := range m.Parameters() {
		total += param.Tensor().Shape().NumElements()
	}
	return total
}

// String returns a string representation of the architecture.
func (m *MLP[B]) String() string {
	var sb strings.Builder
	sb.WriteString("MLP(\n")
	for i, layer := range m.layers {
		fmt.Fprintf(&sb, "  Linear(in=%d, out=%d)\n", layer.InFeatures(), layer.OutFeatures())
		if i < len(m.layers)-1 {
			sb.WriteString("  ReLU()\n")
		}
	}
	sb.WriteString(")")
	return sb.String()
}

// FormatSizes renders sizes as "784,128,64,10".
func FormatSizes(sizes []int) string {
	parts := make([]string, len(sizes))
	for i, s := range sizes {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ",")
}

// ParseSizes parses "784,128,64,10" (or "784-128-64-10").
func ParseSizes(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '-' || r == ' ' })
	sizes := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSizes, s)
		}
		sizes = append(sizes, n)
	}
	if err := ValidateSizes(sizes); err != nil {
		return nil, err
	}
	return sizes, nil
}
