// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package model

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Meta describes a saved model. It is stored next to the weights as
// "<path>.json" so the architecture can be rebuilt before loading.
type Meta struct {
	Sizes     []int     `json:"sizes"`
	Mean      float32   `json:"normalize_mean"`
	Std       float32   `json:"normalize_std"`
	Epochs    int       `json:"epochs,omitempty"`
	TrainLoss float64   `json:"train_loss,omitempty"`
	ValAcc    float64   `json:"val_accuracy,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MetaPath returns the sidecar path for a weights file.
func MetaPath(path string) string {
	return path + ".json"
}

// Save writes the weights in Born's .born format plus the JSON sidecar.
//
// meta.Sizes is filled in from the model.
func (m *MLP[B]) Save(path string, meta Meta) error {
	meta.Sizes = m.Sizes()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	if err := nn.Save[B](m.seq, path, modelType, map[string]string{
		"sizes": FormatSizes(meta.Sizes),
	}); err != nil {
		return fmt.Errorf("save weights: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := os.WriteFile(MetaPath(path), data, 0o644); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	return nil
}

// ReadMeta reads the sidecar of a weights file.
func ReadMeta(path string) (Meta, error) {
	var meta Meta
	data, err := os.ReadFile(MetaPath(path))
	if err != nil {
		return meta, fmt.Errorf("read meta: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("read meta %s: %w", MetaPath(path), err)
	}
	if err := ValidateSizes(meta.Sizes); err != nil {
		return meta, fmt.Errorf("read meta %s: %w", MetaPath(path), err)
	}
	return meta, nil
}

// LoadFile rebuilds a model from a weights file and its sidecar.
func LoadFile[B tensor.Backend](path string, backend B) (*MLP[B], Meta, error) {
	meta, err := ReadMeta(path)
	if err != nil {
		return nil, meta, err
	}

	m, err := New(meta.Sizes, backend)
	if err != nil {
		return nil, meta, err
	}
	if err := m.Load(path, backend); err != nil {
		return nil, meta, err
	}
	return m, meta, nil
}

// Load replaces the model weights with those stored at path.
// The architecture must match.
func (m *MLP[B]) Load(path string, backend B) error {
	if _, err := nn.Load[B](path, backend, m.seq); err != nil {
		return fmt.Errorf("load weights %s: %w", path, err)
	}
	return nil
}
