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

package host1x

import "unsafe"

// The host1x character device hands out syncpoints as file descriptors and
// creates sync_file fences for syncpoint thresholds.
const (
	HOST1X_IOCTL_MAGIC = uint32('X')

	HOST1X_IOCTL_NR_ALLOCATE_SYNCPOINT = 0x00
	HOST1X_IOCTL_NR_SYNCPOINT_INFO     = 0x01
	HOST1X_IOCTL_NR_CREATE_FENCE       = 0x04
)

// AllocateSyncpoint is the parameter type for HOST1X_IOCTL_ALLOCATE_SYNCPOINT,
// issued on the host1x device. FD receives the new syncpoint file.
type AllocateSyncpoint struct {
	FD       int32
	Reserved [3]uint32
}

// SyncpointInfo is the parameter type for HOST1X_IOCTL_SYNCPOINT_INFO, issued
// on a syncpoint file.
type SyncpointInfo struct {
	ID       uint32
	Reserved [3]uint32
}

// CreateFence is the parameter type for HOST1X_IOCTL_CREATE_FENCE, issued on
// the host1x device. FenceFD receives a sync_file that signals once syncpoint
// ID reaches Threshold.
type CreateFence struct {
	ID        uint32
	Threshold uint32
	FenceFD   int32
	Reserved  uint32
}

// Host1x device ioctl requests.
var (
	HOST1X_IOCTL_ALLOCATE_SYNCPOINT = IOWR(HOST1X_IOCTL_MAGIC, HOST1X_IOCTL_NR_ALLOCATE_SYNCPOINT, uint32(unsafe.Sizeof(AllocateSyncpoint{})))
	HOST1X_IOCTL_SYNCPOINT_INFO     = IOWR(HOST1X_IOCTL_MAGIC, HOST1X_IOCTL_NR_SYNCPOINT_INFO, uint32(unsafe.Sizeof(SyncpointInfo{})))
	HOST1X_IOCTL_CREATE_FENCE       = IOWR(HOST1X_IOCTL_MAGIC, HOST1X_IOCTL_NR_CREATE_FENCE, uint32(unsafe.Sizeof(CreateFence{})))
)
