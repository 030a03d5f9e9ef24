// Copyright 2025 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tegradrm defines the DRM core and Tegra DRM ioctl ABI: the legacy
// job submission interface with relocations and the unified channel
// interface with explicit per-channel buffer mappings.
package tegradrm

import (
	"unsafe"

	"gvisor.dev/tegravid/pkg/abi/host1x"
)

// DRM_IOCTL_BASE is the ioctl type of every DRM request.
const DRM_IOCTL_BASE = uint32('d')

// DRM_COMMAND_BASE is the first driver specific ioctl number.
const DRM_COMMAND_BASE = 0x40

// DRM core ioctl numbers, from include/uapi/drm/drm.h.
const (
	DRM_NR_GEM_CLOSE          = 0x09
	DRM_NR_GEM_FLINK          = 0x0a
	DRM_NR_GEM_OPEN           = 0x0b
	DRM_NR_PRIME_HANDLE_TO_FD = 0x2d
)

// Flags for PrimeHandle.Flags.
const (
	DRM_CLOEXEC = 0x80000 // O_CLOEXEC
	DRM_RDWR    = 0x2     // O_RDWR
)

// GemClose is struct drm_gem_close.
type GemClose struct {
	Handle uint32
	Pad    uint32
}

// GemFlink is struct drm_gem_flink.
type GemFlink struct {
	Handle uint32
	Name   uint32
}

// GemOpen is struct drm_gem_open.
type GemOpen struct {
	Name   uint32
	Handle uint32
	Size   uint64
}

// PrimeHandle is struct drm_prime_handle.
type PrimeHandle struct {
	Handle uint32
	Flags  uint32
	FD     int32
}

// DRM core requests.
var (
	DRM_IOCTL_GEM_CLOSE          = host1x.IOW(DRM_IOCTL_BASE, DRM_NR_GEM_CLOSE, uint32(unsafe.Sizeof(GemClose{})))
	DRM_IOCTL_GEM_FLINK          = host1x.IOWR(DRM_IOCTL_BASE, DRM_NR_GEM_FLINK, uint32(unsafe.Sizeof(GemFlink{})))
	DRM_IOCTL_GEM_OPEN           = host1x.IOWR(DRM_IOCTL_BASE, DRM_NR_GEM_OPEN, uint32(unsafe.Sizeof(GemOpen{})))
	DRM_IOCTL_PRIME_HANDLE_TO_FD = host1x.IOWR(DRM_IOCTL_BASE, DRM_NR_PRIME_HANDLE_TO_FD, uint32(unsafe.Sizeof(PrimeHandle{})))
)

func driverIOWR(nr uint32, size uintptr) uint32 {
	return host1x.IOWR(DRM_IOCTL_BASE, DRM_COMMAND_BASE+nr, uint32(size))
}
