//go:build windows

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package device

import "github.com/born-ml/born/backend/webgpu"

// WebGPUAvailable reports whether a WebGPU adapter can be initialized.
func WebGPUAvailable() bool {
	return webgpu.IsAvailable()
}
