// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package device selects and describes the compute device.
package device

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// Kind names a compute device.
type Kind string

// Supported devices.
const (
	CPU    Kind = "cpu"
	WebGPU Kind = "webgpu"
)

// Device errors.
var (
	ErrUnknown     = errors.New("unknown device")
	ErrUnavailable = errors.New("device not available")
)

// Parse parses a device name (case-insensitive).
func Parse(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case CPU, WebGPU:
		return k, nil
	case "":
		return CPU, nil
	default:
		return "", fmt.Errorf("%w: %q (want cpu or webgpu)", ErrUnknown, s)
	}
}

// Check reports whether k can be used on this machine.
func Check(k Kind) error {
	if k == WebGPU && !WebGPUAvailable() {
		return fmt.Errorf("%w: webgpu on %s/%s", ErrUnavailable, runtime.GOOS, runtime.GOARCH)
	}
	return nil
}

// CPUInfo describes the host processor.
type CPUInfo struct {
	Brand   string
	Cores   int
	Threads int
	AVX2    bool
	AVX512F bool
	FMA3    bool
	NEON    bool
	GOOS    string
	GOARCH  string
}

// Info returns the host processor description.
func Info() CPUInfo {
	return CPUInfo{
		Brand:   strings.TrimSpace(cpuid.CPU.BrandName),
		Cores:   cpuid.CPU.PhysicalCores,
		Threads: cpuid.CPU.LogicalCores,
		AVX2:    cpuid.CPU.Supports(cpuid.AVX2),
		AVX512F: cpuid.CPU.Supports(cpuid.AVX512F),
		FMA3:    cpuid.CPU.Supports(cpuid.FMA3),
		NEON:    cpuid.CPU.Supports(cpuid.ASIMD),
		GOOS:    runtime.GOOS,
		GOARCH:  runtime.GOARCH,
	}
}

// String renders the description for a run banner.
func (c CPUInfo) String() string {
	brand := c.Brand
	if brand == "" {
		brand = "unknown CPU"
	}

	var features []string
	for _, f := range []struct {
		name string
		ok   bool
	}{{"AVX2", c.AVX2}, {"AVX512F", c.AVX512F}, {"FMA3", c.FMA3}, {"NEON", c.NEON}} {
		if f.ok {
			features = append(features, f.name)
		}
	}
	if len(features) == 0 {
		features = append(features, "no SIMD extensions detected")
	}

	return fmt.Sprintf("%s (%d cores / %d threads, %s/%s, %s)",
		brand, c.Cores, c.Threads, c.GOOS, c.GOARCH, strings.Join(features, " "))
}
