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

package tegradrm

import "unsafe"

// Legacy Tegra DRM ioctl numbers, relative to DRM_COMMAND_BASE. From
// include/uapi/drm/tegra_drm.h.
const (
	DRM_TEGRA_GEM_CREATE    = 0x00
	DRM_TEGRA_GEM_MMAP      = 0x01
	DRM_TEGRA_SYNCPT_READ   = 0x02
	DRM_TEGRA_SYNCPT_INCR   = 0x03
	DRM_TEGRA_SYNCPT_WAIT   = 0x04
	DRM_TEGRA_OPEN_CHANNEL  = 0x05
	DRM_TEGRA_CLOSE_CHANNEL = 0x06
	DRM_TEGRA_GET_SYNCPT    = 0x07
	DRM_TEGRA_SUBMIT        = 0x08
)

// TegraGemCreate is struct drm_tegra_gem_create.
type TegraGemCreate struct {
	Size   uint64
	Flags  uint32
	Handle uint32
}

// TegraGemMmap is struct drm_tegra_gem_mmap.
type TegraGemMmap struct {
	Handle uint32
	Pad    uint32
	Offset uint64
}

// TegraSyncptWait is struct drm_tegra_syncpt_wait. Timeout is in
// milliseconds.
type TegraSyncptWait struct {
	ID      uint32
	Thresh  uint32
	Timeout uint32
	Value   uint32
}

// TegraOpenChannel is struct drm_tegra_open_channel.
type TegraOpenChannel struct {
	Client  uint32
	Pad     uint32
	Context uint64
}

// TegraCloseChannel is struct drm_tegra_close_channel.
type TegraCloseChannel struct {
	Context uint64
}

// TegraGetSyncpt is struct drm_tegra_get_syncpt.
type TegraGetSyncpt struct {
	Context uint64
	Index   uint32
	ID      uint32
}

// TegraSyncpt is struct drm_tegra_syncpt.
type TegraSyncpt struct {
	ID    uint32
	Incrs uint32
}

// TegraCmdbuf is struct drm_tegra_cmdbuf.
type TegraCmdbuf struct {
	Handle uint32
	Offset uint32
	Words  uint32
	Pad    uint32
}

// TegraRelocTarget is a (handle, byte offset) pair within struct
// drm_tegra_reloc.
type TegraRelocTarget struct {
	Handle uint32
	Offset uint32
}

// TegraReloc is struct drm_tegra_reloc. Cmdbuf.Offset is the byte offset of
// the patched word in the command buffer.
type TegraReloc struct {
	Cmdbuf TegraRelocTarget
	Target TegraRelocTarget
	Shift  uint32
	Pad    uint32
}

// TegraSubmit is struct drm_tegra_submit. The pointer fields hold user
// addresses of arrays of TegraSyncpt, TegraCmdbuf and TegraReloc.
type TegraSubmit struct {
	Context     uint64
	NumSyncpts  uint32
	NumCmdbufs  uint32
	NumRelocs   uint32
	NumWaitchks uint32
	WaitchkMask uint32
	Timeout     uint32
	Syncpts     uint64
	Cmdbufs     uint64
	Relocs      uint64
	Waitchks    uint64
	Fence       uint32
	Reserved    [5]uint32
}

// Legacy Tegra DRM requests.
var (
	DRM_IOCTL_TEGRA_GEM_CREATE    = driverIOWR(DRM_TEGRA_GEM_CREATE, unsafe.Sizeof(TegraGemCreate{}))
	DRM_IOCTL_TEGRA_GEM_MMAP      = driverIOWR(DRM_TEGRA_GEM_MMAP, unsafe.Sizeof(TegraGemMmap{}))
	DRM_IOCTL_TEGRA_SYNCPT_WAIT   = driverIOWR(DRM_TEGRA_SYNCPT_WAIT, unsafe.Sizeof(TegraSyncptWait{}))
	DRM_IOCTL_TEGRA_OPEN_CHANNEL  = driverIOWR(DRM_TEGRA_OPEN_CHANNEL, unsafe.Sizeof(TegraOpenChannel{}))
	DRM_IOCTL_TEGRA_CLOSE_CHANNEL = driverIOWR(DRM_TEGRA_CLOSE_CHANNEL, unsafe.Sizeof(TegraCloseChannel{}))
	DRM_IOCTL_TEGRA_GET_SYNCPT    = driverIOWR(DRM_TEGRA_GET_SYNCPT, unsafe.Sizeof(TegraGetSyncpt{}))
	DRM_IOCTL_TEGRA_SUBMIT        = driverIOWR(DRM_TEGRA_SUBMIT, unsafe.Sizeof(TegraSubmit{}))
)
