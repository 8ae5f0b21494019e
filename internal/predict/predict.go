// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package predict classifies individual images with a trained model.
package predict

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"math"

	"github.com/born-ml/born/tensor"
	"github.com/nfnt/resize"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/mnist-mlp/internal/model"
)

// ErrInputSize is returned when the pixel count does not match the model.
var ErrInputSize = errors.New("predict: input size does not match model")

// PreprocessOptions controls how an arbitrary image is turned into model input.
type PreprocessOptions struct {
	Rows, Cols int     // Target size (default: 28x28)
	Mean, Std  float32 // Normalization applied after scaling to [0, 1]
	Invert     bool    // Map dark-on-light images to MNIST's light-on-dark
}

// DecodeImage decodes a PNG, JPEG, or GIF image.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Preprocess converts img to grayscale, resizes it to Rows x Cols, scales
// pixels to [0, 1], and normalizes them. The result is row-major.
func Preprocess(img image.Image, opts PreprocessOptions) []float32 {
	if opts.Rows <= 0 {
		opts.Rows = 28
	}
	if opts.Cols <= 0 {
		opts.Cols = 28
	}
	if opts.Std == 0 {
		opts.Std = 1
	}

	b := img.Bounds()
	if b.Dx() != opts.Cols || b.Dy() != opts.Rows {
		img = resize.Resize(uint(opts.Cols), uint(opts.Rows), img, resize.Bilinear)
		b = img.Bounds()
	}

	pixels := make([]float32, 0, opts.Rows*opts.Cols)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			v := float32(gray.Y) / 255.0
			if opts.Invert {
				v = 1 - v
			}
			pixels = append(pixels, (v-opts.Mean)/opts.Std)
		}
	}
	return pixels
}

// Prediction is the classifier output for one image.
type Prediction struct {
	Label         int       `json:"label"`
	Confidence    float64   `json:"confidence"`
	Probabilities []float64 `json:"probabilities"`
}

// Softmax converts logits to probabilities using log-sum-exp for stability.
func Softmax(logits []float32) []float64 {
	z := make([]float64, len(logits))
	for i, v := range logits {
		z[i] = float64(v)
	}
	lse := floats.LogSumExp(z)
	for i := range z {
		z[i] = math.Exp(z[i] - lse)
	}
	return z
}

// Predictor classifies preprocessed pixel rows with a model.
type Predictor[B tensor.Backend] struct {
	model   *model.MLP[B]
	backend B
}

// NewPredictor wraps a trained model.
func NewPredictor[B tensor.Backend](m *model.MLP[B], backend B) *Predictor[B] {
	return &Predictor[B]{model: m, backend: backend}
}

// Model returns the wrapped model.
func (p *Predictor[B]) Model() *model.MLP[B] {
	return p.model
}

// Predict returns the most likely class of one image.
func (p *Predictor[B]) Predict(pixels []float32) (Prediction, error) {
	if len(pixels) != p.model.InFeatures() {
		return Prediction{}, fmt.Errorf("%w: got %d values, want %d", ErrInputSize, len(pixels), p.model.InFeatures())
	}

	input, err := tensor.FromSlice(pixels, tensor.Shape{1, len(pixels)}, p.backend)
	if err != nil {
		return Prediction{}, fmt.Errorf("predict: %w", err)
	}
	logits := p.model.Forward(input).Data()

	probs := Softmax(logits)
	label := floats.MaxIdx(probs)
	return Prediction{Label: label, Confidence: probs[label], Probabilities: probs}, nil
}
