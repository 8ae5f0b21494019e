// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package metrics records per-epoch training statistics and renders them.
package metrics

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"
)

// EpochStats summarizes one training epoch.
type EpochStats struct {
	Epoch        int           // 1-based
	TrainLoss    float64       // mean batch loss
	BatchLossStd float64       // stddev of batch losses
	TrainAcc     float64       // fraction in [0, 1]
	ValLoss      float64       // zero when no validation set
	ValAcc       float64       // zero when no validation set
	HasVal       bool          // validation numbers are set
	Batches      int           // batches seen
	Elapsed      time.Duration // wall time of the epoch
}

// Summarize returns the mean and sample standard deviation of xs.
// The standard deviation is zero for fewer than two values.
func Summarize(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	if len(xs) == 1 {
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}

// History is the ordered list of epoch statistics of a run.
type History struct {
	Epochs []EpochStats
}

// Add appends the stats of a finished epoch.
func (h *History) Add(s EpochStats) {
	h.Epochs = append(h.Epochs, s)
}

// Len returns the number of recorded epochs.
func (h *History) Len() int {
	return len(h.Epochs)
}

// Last returns the most recent epoch, or false when empty.
func (h *History) Last() (EpochStats, bool) {
	if len(h.Epochs) == 0 {
		return EpochStats{}, false
	}
	return h.Epochs[len(h.Epochs)-1], true
}

// Best returns the epoch with the highest validation accuracy, or with the
// lowest training loss when no validation numbers were recorded.
func (h *History) Best() (EpochStats, bool) {
	if len(h.Epochs) == 0 {
		return EpochStats{}, false
	}
	best := h.Epochs[0]
	for _, s := range h.Epochs[1:] {
		if s.HasVal && best.HasVal {
			if s.ValAcc > best.ValAcc {
				best = s
			}
		} else if s.TrainLoss < best.TrainLoss {
			best = s
		}
	}
	return best, true
}

// TrainLosses returns the training loss of every epoch.
func (h *History) TrainLosses() []float64 {
	out := make([]float64, len(h.Epochs))
	for i, s := range h.Epochs {
		out[i] = s.TrainLoss
	}
	return out
}

// WriteCSV writes the history as a table with a header row.
func (h *History) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"epoch", "train_loss", "train_loss_std", "train_acc", "val_loss", "val_acc", "batches", "elapsed_ms"}); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, s := range h.Epochs {
		valLoss, valAcc := "", ""
		if s.HasVal {
			valLoss, valAcc = f(s.ValLoss), f(s.ValAcc)
		}
		record := []string{
			strconv.Itoa(s.Epoch), f(s.TrainLoss), f(s.BatchLossStd), f(s.TrainAcc),
			valLoss, valAcc, strconv.Itoa(s.Batches), strconv.FormatInt(s.Elapsed.Milliseconds(), 10),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
