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

package drm

import (
	"runtime"
	"time"

	"golang.org/x/sys/unix"
	"gvisor.dev/tegravid/pkg/abi/host1x"
	"gvisor.dev/tegravid/pkg/abi/tegradrm"
	"gvisor.dev/tegravid/pkg/errors/hwerr"
	"gvisor.dev/tegravid/pkg/log"
)

// legacyTransport drives the Tegra DRM job interface. Syncpoints belong to
// the channel they were obtained from, and buffers need no channel mapping.
type legacyTransport struct {
	kernel Kernel
	fd     int32
}

// Generation implements Transport.Generation.
func (*legacyTransport) Generation() Generation { return GenerationLegacy }

// OpenChannel implements Transport.OpenChannel.
func (t *legacyTransport) OpenChannel(class host1x.Class) (uint64, error) {
	args := tegradrm.TegraOpenChannel{Client: uint32(class)}
	if err := ioctl(t.kernel, t.fd, tegradrm.DRM_IOCTL_TEGRA_OPEN_CHANNEL, &args); err != nil {
		return 0, hwerr.Wrapf(hwerr.ChannelOpenFailed, err, "class %v", class)
	}
	return args.Context, nil
}

// CloseChannel implements Transport.CloseChannel.
func (t *legacyTransport) CloseChannel(context uint64) error {
	args := tegradrm.TegraCloseChannel{Context: context}
	return ioctl(t.kernel, t.fd, tegradrm.DRM_IOCTL_TEGRA_CLOSE_CHANNEL, &args)
}

// AllocateSyncpoint implements Transport.AllocateSyncpoint.
func (t *legacyTransport) AllocateSyncpoint(context uint64) (uint32, error) {
	args := tegradrm.TegraGetSyncpt{Context: context, Index: 0}
	if err := ioctl(t.kernel, t.fd, tegradrm.DRM_IOCTL_TEGRA_GET_SYNCPT, &args); err != nil {
		return 0, hwerr.Wrap(hwerr.SyncpointAllocFailed, err)
	}
	return args.ID, nil
}

// FreeSyncpoint implements Transport.FreeSyncpoint. The syncpoint is released
// with its channel.
func (*legacyTransport) FreeSyncpoint(uint32) error { return nil }

// MapBuffer implements Transport.MapBuffer. Buffers are bound through
// relocations at submission time instead.
func (*legacyTransport) MapBuffer(uint64, uint32, bool) (uint32, error) { return 0, nil }

// UnmapBuffer implements Transport.UnmapBuffer.
func (*legacyTransport) UnmapBuffer(uint64, uint32) error { return nil }

// Submit implements Transport.Submit.
func (t *legacyTransport) Submit(s *Submission) (uint32, error) {
	syncpts := []tegradrm.TegraSyncpt{{ID: s.Syncpoint, Incrs: 1}}
	cmdbufs := []tegradrm.TegraCmdbuf{{Handle: s.Cmdbuf.Handle(), Offset: 0, Words: s.Words}}
	relocs := make([]tegradrm.TegraReloc, 0, len(s.Relocs))
	for _, r := range s.Relocs {
		relocs = append(relocs, tegradrm.TegraReloc{
			Cmdbuf: tegradrm.TegraRelocTarget{Handle: s.Cmdbuf.Handle(), Offset: r.Word * 4},
			Target: tegradrm.TegraRelocTarget{Handle: r.Target.Handle(), Offset: r.Offset},
			Shift:  r.Shift,
		})
	}
	args := tegradrm.TegraSubmit{
		Context:    s.Context,
		NumSyncpts: uint32(len(syncpts)),
		NumCmdbufs: uint32(len(cmdbufs)),
		NumRelocs:  uint32(len(relocs)),
		Syncpts:    addrOf(syncpts),
		Cmdbufs:    addrOf(cmdbufs),
		Relocs:     addrOf(relocs),
	}
	err := ioctl(t.kernel, t.fd, tegradrm.DRM_IOCTL_TEGRA_SUBMIT, &args)
	runtime.KeepAlive(syncpts)
	runtime.KeepAlive(cmdbufs)
	runtime.KeepAlive(relocs)
	if err != nil {
		return 0, hwerr.Wrap(hwerr.SubmitFailed, err)
	}
	return args.Fence, nil
}

// WaitSyncpoint implements Transport.WaitSyncpoint.
func (t *legacyTransport) WaitSyncpoint(id, threshold uint32, timeout time.Duration) error {
	args := tegradrm.TegraSyncptWait{
		ID:      id,
		Thresh:  threshold,
		Timeout: uint32(timeout.Milliseconds()),
	}
	switch err := ioctl(t.kernel, t.fd, tegradrm.DRM_IOCTL_TEGRA_SYNCPT_WAIT, &args); err {
	case nil:
		return nil
	case unix.EAGAIN, unix.ETIMEDOUT:
		return hwerr.Wrapf(hwerr.WaitTimeout, err, "syncpoint %d threshold %d", id, threshold)
	default:
		return hwerr.Wrapf(hwerr.WaitFailed, err, "syncpoint %d threshold %d", id, threshold)
	}
}

// Release implements Transport.Release.
func (*legacyTransport) Release() {
	log.Debugf("Legacy transport released")
}
