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

// Unified Tegra DRM channel ioctl numbers, relative to DRM_COMMAND_BASE.
const (
	DRM_TEGRA_CHANNEL_OPEN   = 0x10
	DRM_TEGRA_CHANNEL_CLOSE  = 0x11
	DRM_TEGRA_CHANNEL_MAP    = 0x12
	DRM_TEGRA_CHANNEL_UNMAP  = 0x13
	DRM_TEGRA_CHANNEL_SUBMIT = 0x14
)

// Flags for TegraChannelMap.Flags.
const (
	DRM_TEGRA_CHANNEL_MAP_READ       = 1 << 0
	DRM_TEGRA_CHANNEL_MAP_WRITE      = 1 << 1
	DRM_TEGRA_CHANNEL_MAP_READ_WRITE = DRM_TEGRA_CHANNEL_MAP_READ | DRM_TEGRA_CHANNEL_MAP_WRITE
)

// Values for TegraSubmitCmd.Type.
const (
	DRM_TEGRA_SUBMIT_CMD_GATHER_UPTR          = 0
	DRM_TEGRA_SUBMIT_CMD_WAIT_SYNCPT          = 1
	DRM_TEGRA_SUBMIT_CMD_WAIT_SYNCPT_RELATIVE = 2
)

// TegraChannelOpen is struct drm_tegra_channel_open.
type TegraChannelOpen struct {
	Host1xClass  uint32
	Flags        uint32
	Context      uint32
	Version      uint32
	Capabilities uint32
	Padding      uint32
}

// TegraChannelClose is struct drm_tegra_channel_close.
type TegraChannelClose struct {
	Context uint32
	Padding uint32
}

// TegraChannelMap is struct drm_tegra_channel_map.
type TegraChannelMap struct {
	Context uint32
	Handle  uint32
	Flags   uint32
	Mapping uint32
}

// TegraChannelUnmap is struct drm_tegra_channel_unmap.
type TegraChannelUnmap struct {
	Context uint32
	Mapping uint32
}

// TegraSubmitReloc is the relocation member of struct drm_tegra_submit_buf.
// GatherOffsetWords indexes the patched word in the gather data.
type TegraSubmitReloc struct {
	TargetOffset      uint64
	GatherOffsetWords uint32
	Shift             uint32
}

// TegraSubmitBuf is struct drm_tegra_submit_buf.
type TegraSubmitBuf struct {
	Mapping  uint32
	Flags    uint32
	Reloc    TegraSubmitReloc
	Reserved [9]uint64
}

// TegraSubmitCmd is struct drm_tegra_submit_cmd with the gather_uptr member
// of its union. Words is the number of gather data words consumed.
type TegraSubmitCmd struct {
	Type     uint32
	Flags    uint32
	Words    uint32
	Reserved [3]uint32
}

// TegraSubmitSyncpt is struct drm_tegra_submit_syncpt. SyncptFD is the
// syncpoint file handed out by the host1x device. FenceValue receives the
// syncpoint threshold that marks job completion.
type TegraSubmitSyncpt struct {
	SyncptFD   int32
	Flags      uint32
	NumIncrs   uint32
	FenceValue uint32
}

// TegraChannelSubmit is struct drm_tegra_channel_submit. The pointer fields
// hold user addresses of TegraSubmitBuf, TegraSubmitCmd and uint32 arrays.
type TegraChannelSubmit struct {
	Context         uint32
	NumBufs         uint32
	NumCmds         uint32
	GatherDataWords uint32
	BufsPtr         uint64
	CmdsPtr         uint64
	GatherDataPtr   uint64
	SyncobjIn       uint32
	SyncobjOut      uint32
	SyncptIncr      TegraSubmitSyncpt
}

// Unified Tegra DRM requests.
var (
	DRM_IOCTL_TEGRA_CHANNEL_OPEN   = driverIOWR(DRM_TEGRA_CHANNEL_OPEN, unsafe.Sizeof(TegraChannelOpen{}))
	DRM_IOCTL_TEGRA_CHANNEL_CLOSE  = driverIOWR(DRM_TEGRA_CHANNEL_CLOSE, unsafe.Sizeof(TegraChannelClose{}))
	DRM_IOCTL_TEGRA_CHANNEL_MAP    = driverIOWR(DRM_TEGRA_CHANNEL_MAP, unsafe.Sizeof(TegraChannelMap{}))
	DRM_IOCTL_TEGRA_CHANNEL_UNMAP  = driverIOWR(DRM_TEGRA_CHANNEL_UNMAP, unsafe.Sizeof(TegraChannelUnmap{}))
	DRM_IOCTL_TEGRA_CHANNEL_SUBMIT = driverIOWR(DRM_TEGRA_CHANNEL_SUBMIT, unsafe.Sizeof(TegraChannelSubmit{}))
)
