// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package train runs the optimization loop of the MNIST classifier.
//
// Gradients and parameter updates are delegated to Born: the model's
// forward pass is recorded on the autodiff tape, autodiff.Backward walks it,
// and an optim.Optimizer applies the update in place.
package train

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/optim"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/mnist-mlp/internal/dataset"
	"github.com/born-ml/mnist-mlp/internal/metrics"
	"github.com/born-ml/mnist-mlp/internal/model"
)

// Supported optimizers.
const (
	OptimizerSGD  = "sgd"
	OptimizerAdam = "adam"
)

// Option errors.
var (
	ErrEpochs       = errors.New("train: epochs must be > 0")
	ErrLearningRate = errors.New("train: learning rate must be > 0")
	ErrMomentum     = errors.New("train: momentum must be in [0, 1)")
	ErrOptimizer    = errors.New("train: unknown optimizer")
)

// Options configures a Trainer.
type Options struct {
	Epochs       int     // Passes over the training set
	LearningRate float32 // Step size
	Momentum     float32 // SGD momentum (0 disables)
	Optimizer    string  // "sgd" (default) or "adam"
	LogEvery     int     // Print batch loss every N batches (0 disables)
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Epochs <= 0 {
		return ErrEpochs
	}
	if o.LearningRate <= 0 {
		return ErrLearningRate
	}
	if o.Momentum < 0 || o.Momentum >= 1 {
		return ErrMomentum
	}
	switch strings.ToLower(o.Optimizer) {
	case "", OptimizerSGD, OptimizerAdam:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrOptimizer, o.Optimizer)
	}
}

// Trainer owns one model and its optimizer on an autodiff backend.
type Trainer[B tensor.Backend] struct {
	model     *model.MLP[*autodiff.Backend[B]]
	backend   *autodiff.Backend[B]
	criterion *nn.CrossEntropyLoss[*autodiff.Backend[B]]
	optimizer optim.Optimizer
	opts      Options
	out       io.Writer
	steps     int64
}

// New creates a trainer and starts gradient recording on the backend.
//
// Progress is written to out (io.Discard when nil).
func New[B tensor.Backend](
	m *model.MLP[*autodiff.Backend[B]],
	backend *autodiff.Backend[B],
	opts Options,
	out io.Writer,
) (*Trainer[B], error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if out == nil {
		out = io.Discard
	}

	var optimizer optim.Optimizer
	switch strings.ToLower(opts.Optimizer) {
	case OptimizerAdam:
		optimizer = optim.NewAdam(m.Parameters(), optim.AdamConfig{
			LR:    opts.LearningRate,
			Betas: [2]float32{0.9, 0.999},
			Eps:   1e-8,
		}, backend)
	default:
		optimizer = optim.NewSGD(m.Parameters(), optim.SGDConfig{
			LR:       opts.LearningRate,
			Momentum: opts.Momentum,
		}, backend)
	}

	backend.Tape().StartRecording()

	return &Trainer[B]{
		model:     m,
		backend:   backend,
		criterion: nn.NewCrossEntropyLoss(backend),
		optimizer: optimizer,
		opts:      opts,
		out:       out,
	}, nil
}

// Model returns the model being trained.
func (t *Trainer[B]) Model() *model.MLP[*autodiff.Backend[B]] {
	return t.model
}

// Steps returns the number of optimizer steps taken.
func (t *Trainer[B]) Steps() int64 {
	return t.steps
}

// forward computes logits and the scalar loss of a batch.
func (t *Trainer[B]) forward(batch *dataset.Batch) (
	logits *tensor.Tensor[float32, *autodiff.Backend[B]],
	labels *tensor.Tensor[int32, *autodiff.Backend[B]],
	loss *tensor.Tensor[float32, *autodiff.Backend[B]],
	err error,
) {
	images, labels, err := dataset.Tensors(batch, t.backend)
	if err != nil {
		return nil, nil, nil, err
	}
	logits = t.model.Forward(images)
	loss = t.criterion.Forward(logits, labels)
	return logits, labels, loss, nil
}

// Step performs one training iteration on a batch.
//
// Gradients are cleared, the forward pass and loss are recorded, gradients
// are computed by backpropagation, and the optimizer updates the parameters.
// The tape is empty on return. Returns the batch loss and accuracy.
func (t *Trainer[B]) Step(batch *dataset.Batch) (loss, accuracy float32, err error) {
	defer t.backend.Tape().Clear()

	grads, loss, accuracy, err := t.backward(batch)
	if err != nil {
		return 0, 0, err
	}
	t.update(grads)
	return loss, accuracy, nil
}

// update applies the optimizer step. The caller clears the tape afterwards,
// since the update itself is recorded.
func (t *Trainer[B]) update(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	t.optimizer.Step(grads)
	t.steps++
}

// backward runs forward and backward with the parameters untouched. The ops
// stay on the tape until the caller clears it.
func (t *Trainer[B]) backward(batch *dataset.Batch) (map[*tensor.RawTensor]*tensor.RawTensor, float32, float32, error) {
	t.optimizer.ZeroGrad()

	logits, labels, loss, err := t.forward(batch)
	if err != nil {
		return nil, 0, 0, err
	}
	lossValue := loss.Raw().AsFloat32()[0]
	accuracy := nn.Accuracy(logits, labels)

	grads := autodiff.Backward(loss, t.backend)
	return grads, lossValue, accuracy, nil
}

// Epoch trains on every batch of loader once. The loader is reset (and
// reshuffled) first. ctx is checked between batches.
func (t *Trainer[B]) Epoch(ctx context.Context, epoch int, loader *dataset.Loader) (metrics.EpochStats, error) {
	start := time.Now()
	loader.Reset()

	stats := metrics.EpochStats{Epoch: epoch}
	losses := make([]float64, 0, loader.NumBatches())
	correct, samples := 0.0, 0

	for batch, ok := loader.Next(); ok; batch, ok = loader.Next() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		loss, acc, err := t.Step(batch)
		if err != nil {
			return stats, fmt.Errorf("epoch %d, batch %d: %w", epoch, len(losses)+1, err)
		}
		losses = append(losses, float64(loss))
		correct += float64(acc) * float64(batch.Size)
		samples += batch.Size

		if t.opts.LogEvery > 0 && len(losses)%t.opts.LogEvery == 0 {
			fmt.Fprintf(t.out, "  batch %4d/%d  loss=%.4f\n", len(losses), loader.NumBatches(), loss)
		}
	}

	stats.Batches = len(losses)
	stats.TrainLoss, stats.BatchLossStd = metrics.Summarize(losses)
	if samples > 0 {
		stats.TrainAcc = correct / float64(samples)
	}
	stats.Elapsed = time.Since(start)
	return stats, nil
}

// Evaluate computes the sample-weighted mean loss and the accuracy over
// loader without recording gradients. The tape's recording state is
// restored afterwards.
func (t *Trainer[B]) Evaluate(loader *dataset.Loader) (loss, accuracy float64, err error) {
	return Evaluate(t.model, t.backend, loader)
}

// Evaluate computes loss and accuracy of m over loader with gradient
// recording stopped.
func Evaluate[B tensor.Backend](
	m *model.MLP[*autodiff.Backend[B]],
	backend *autodiff.Backend[B],
	loader *dataset.Loader,
) (loss, accuracy float64, err error) {
	tape := backend.Tape()
	wasRecording := tape.IsRecording()
	tape.StopRecording()
	defer func() {
		if wasRecording {
			tape.StartRecording()
		}
	}()

	criterion := nn.NewCrossEntropyLoss(backend)
	loader.Reset()

	totalLoss, correct, samples := 0.0, 0.0, 0
	for batch, ok := loader.Next(); ok; batch, ok = loader.Next() {
		images, labels, err := dataset.Tensors(batch, backend)
		if err != nil {
			return 0, 0, err
		}
		logits := m.Forward(images)
		lossValue := criterion.Forward(logits, labels).Raw().AsFloat32()[0]

		totalLoss += float64(lossValue) * float64(batch.Size)
		correct += float64(nn.Accuracy(logits, labels)) * float64(batch.Size)
		samples += batch.Size
	}

	if samples == 0 {
		return 0, 0, dataset.ErrEmpty
	}
	return totalLoss / float64(samples), correct / float64(samples), nil
}

// Fit runs opts.Epochs epochs over train and, when val is non-nil,
// evaluates after each one. Each epoch's training loss is reported as
// "Training loss: <value>".
func (t *Trainer[B]) Fit(ctx context.Context, trainLoader, valLoader *dataset.Loader) (*metrics.History, error) {
	history := &metrics.History{}

	for epoch := 1; epoch <= t.opts.Epochs; epoch++ {
		stats, err := t.Epoch(ctx, epoch, trainLoader)
		if err != nil {
			return history, err
		}

		if valLoader != nil {
			stats.ValLoss, stats.ValAcc, err = t.Evaluate(valLoader)
			if err != nil {
				return history, fmt.Errorf("epoch %d: validate: %w", epoch, err)
			}
			stats.HasVal = true
		}

		history.Add(stats)
		t.report(stats)
	}

	return history, nil
}

func (t *Trainer[B]) report(s metrics.EpochStats) {
	fmt.Fprintf(t.out, "Epoch %2d/%d  Training loss: %.4f (±%.4f)  Train Acc: %.2f%%",
		s.Epoch, t.opts.Epochs, s.TrainLoss, s.BatchLossStd, s.TrainAcc*100)
	if s.HasVal {
		fmt.Fprintf(t.out, "  Val Loss: %.4f  Val Acc: %.2f%%", s.ValLoss, s.ValAcc*100)
	}
	fmt.Fprintf(t.out, "  [%s]\n", s.Elapsed.Round(time.Millisecond))
}
