// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package device

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	for in, want := range map[string]Kind{"": CPU, "cpu": CPU, " CPU ": CPU, "WebGPU": WebGPU} {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := Parse("tpu")
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(CPU))
	if runtime.GOOS != "windows" {
		assert.ErrorIs(t, Check(WebGPU), ErrUnavailable)
	}
}

func TestInfo(t *testing.T) {
	info := Info()
	assert.Equal(t, runtime.GOOS, info.GOOS)
	assert.Equal(t, runtime.GOARCH, info.GOARCH)
	assert.Contains(t, info.String(), runtime.GOARCH)

	assert.Contains(t, CPUInfo{}.String(), "unknown CPU")
	assert.Contains(t, CPUInfo{AVX2: true}.String(), "AVX2")
}
