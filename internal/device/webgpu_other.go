//go:build !windows

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package device

// WebGPUAvailable reports whether a WebGPU adapter can be initialized.
// Born's WebGPU backend is only built on windows.
func WebGPUAvailable() bool {
	return false
}
