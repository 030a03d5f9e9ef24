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
	"maps"
	"runtime"
	"slices"
	"time"

	"gvisor.dev/tegravid/pkg/abi/host1x"
	"gvisor.dev/tegravid/pkg/abi/tegradrm"
	"gvisor.dev/tegravid/pkg/errors/hwerr"
	"gvisor.dev/tegravid/pkg/log"
)

// unifiedTransport drives the host1x channel interface. Syncpoints are files
// allocated from the host1x device; fences for waits are created there too.
type unifiedTransport struct {
	kernel Kernel
	fd     int32
	hostFD int32

	// syncpts maps syncpoint id to its file. Mutated only while engines are
	// opened or closed, which callers serialize.
	syncpts map[uint32]int32
}

// Generation implements Transport.Generation.
func (*unifiedTransport) Generation() Generation { return GenerationUnified }

// OpenChannel implements Transport.OpenChannel.
func (t *unifiedTransport) OpenChannel(class host1x.Class) (uint64, error) {
	args := tegradrm.TegraChannelOpen{Host1xClass: uint32(class)}
	if err := ioctl(t.kernel, t.fd, tegradrm.DRM_IOCTL_TEGRA_CHANNEL_OPEN, &args); err != nil {
		return 0, hwerr.Wrapf(hwerr.ChannelOpenFailed, err, "class %v", class)
	}
	return uint64(args.Context), nil
}

// CloseChannel implements Transport.CloseChannel.
func (t *unifiedTransport) CloseChannel(context uint64) error {
	args := tegradrm.TegraChannelClose{Context: uint32(context)}
	return ioctl(t.kernel, t.fd, tegradrm.DRM_IOCTL_TEGRA_CHANNEL_CLOSE, &args)
}

// AllocateSyncpoint implements Transport.AllocateSyncpoint.
func (t *unifiedTransport) AllocateSyncpoint(uint64) (uint32, error) {
	var alloc host1x.AllocateSyncpoint
	if err := ioctl(t.kernel, t.hostFD, host1x.HOST1X_IOCTL_ALLOCATE_SYNCPOINT, &alloc); err != nil {
		return 0, hwerr.Wrap(hwerr.SyncpointAllocFailed, err)
	}
	var info host1x.SyncpointInfo
	if err := ioctl(t.kernel, alloc.FD, host1x.HOST1X_IOCTL_SYNCPOINT_INFO, &info); err != nil {
		t.kernel.Close(alloc.FD)
		return 0, hwerr.Wrapf(hwerr.SyncpointAllocFailed, err, "querying syncpoint file %d", alloc.FD)
	}
	t.syncpts[info.ID] = alloc.FD
	return info.ID, nil
}

// FreeSyncpoint implements Transport.FreeSyncpoint.
func (t *unifiedTransport) FreeSyncpoint(id uint32) error {
	fd, ok := t.syncpts[id]
	if !ok {
		return nil
	}
	delete(t.syncpts, id)
	return t.kernel.Close(fd)
}

// MapBuffer implements Transport.MapBuffer.
func (t *unifiedTransport) MapBuffer(context uint64, handle uint32, readWrite bool) (uint32, error) {
	args := tegradrm.TegraChannelMap{
		Context: uint32(context),
		Handle:  handle,
		Flags:   tegradrm.DRM_TEGRA_CHANNEL_MAP_READ,
	}
	if readWrite {
		args.Flags = tegradrm.DRM_TEGRA_CHANNEL_MAP_READ_WRITE
	}
	if err := ioctl(t.kernel, t.fd, tegradrm.DRM_IOCTL_TEGRA_CHANNEL_MAP, &args); err != nil {
		return 0, hwerr.Wrapf(hwerr.ChannelMapFailed, err, "handle %d context %d", handle, context)
	}
	return args.Mapping, nil
}

// UnmapBuffer implements Transport.UnmapBuffer.
func (t *unifiedTransport) UnmapBuffer(context uint64, mapping uint32) error {
	args := tegradrm.TegraChannelUnmap{Context: uint32(context), Mapping: mapping}
	return ioctl(t.kernel, t.fd, tegradrm.DRM_IOCTL_TEGRA_CHANNEL_UNMAP, &args)
}

// Submit implements Transport.Submit. The gather data is read straight from
// the command buffer's CPU mapping.
func (t *unifiedTransport) Submit(s *Submission) (uint32, error) {
	fd, ok := t.syncpts[s.Syncpoint]
	if !ok {
		return 0, hwerr.Wrapf(hwerr.SubmitFailed, nil, "syncpoint %d not allocated from this device", s.Syncpoint)
	}
	gather, err := s.Cmdbuf.Map()
	if err != nil {
		return 0, hwerr.Wrap(hwerr.SubmitFailed, err)
	}
	if int(s.Words)*4 > len(gather) {
		return 0, hwerr.Wrapf(hwerr.SubmitFailed, nil, "%d words exceed the %d byte command buffer", s.Words, len(gather))
	}
	bufs := make([]tegradrm.TegraSubmitBuf, 0, len(s.Relocs))
	for _, r := range s.Relocs {
		mapping, ok := r.Target.MappingID(s.Context)
		if !ok {
			return 0, hwerr.Wrapf(hwerr.SubmitFailed, nil, "handle %d is not mapped into context %d", r.Target.Handle(), s.Context)
		}
		bufs = append(bufs, tegradrm.TegraSubmitBuf{
			Mapping: mapping,
			Reloc: tegradrm.TegraSubmitReloc{
				TargetOffset:      uint64(r.Offset),
				GatherOffsetWords: r.Word,
				Shift:             r.Shift,
			},
		})
	}
	cmds := []tegradrm.TegraSubmitCmd{{
		Type:  tegradrm.DRM_TEGRA_SUBMIT_CMD_GATHER_UPTR,
		Words: s.Words,
	}}
	args := tegradrm.TegraChannelSubmit{
		Context:         uint32(s.Context),
		NumBufs:         uint32(len(bufs)),
		NumCmds:         uint32(len(cmds)),
		GatherDataWords: s.Words,
		BufsPtr:         addrOf(bufs),
		CmdsPtr:         addrOf(cmds),
		GatherDataPtr:   addrOf(gather),
		SyncptIncr: tegradrm.TegraSubmitSyncpt{
			SyncptFD: fd,
			NumIncrs: 1,
		},
	}
	err = ioctl(t.kernel, t.fd, tegradrm.DRM_IOCTL_TEGRA_CHANNEL_SUBMIT, &args)
	runtime.KeepAlive(bufs)
	runtime.KeepAlive(cmds)
	if err != nil {
		return 0, hwerr.Wrap(hwerr.SubmitFailed, err)
	}
	return args.SyncptIncr.FenceValue, nil
}

// WaitSyncpoint implements Transport.WaitSyncpoint.
func (t *unifiedTransport) WaitSyncpoint(id, threshold uint32, timeout time.Duration) error {
	args := host1x.CreateFence{ID: id, Threshold: threshold}
	if err := ioctl(t.kernel, t.hostFD, host1x.HOST1X_IOCTL_CREATE_FENCE, &args); err != nil {
		return hwerr.Wrapf(hwerr.WaitFailed, err, "creating fence for syncpoint %d threshold %d", id, threshold)
	}
	defer t.kernel.Close(args.FenceFD)

	ready, err := t.kernel.Poll(args.FenceFD, timeout)
	if err != nil {
		return hwerr.Wrapf(hwerr.WaitFailed, err, "polling fence for syncpoint %d threshold %d", id, threshold)
	}
	if !ready {
		return hwerr.Wrapf(hwerr.WaitTimeout, nil, "syncpoint %d threshold %d after %v", id, threshold, timeout)
	}
	return nil
}

// Release implements Transport.Release.
func (t *unifiedTransport) Release() {
	for _, id := range slices.Sorted(maps.Keys(t.syncpts)) {
		if err := t.FreeSyncpoint(id); err != nil {
			log.Warningf("Freeing syncpoint %d: %v", id, err)
		}
	}
	if err := t.kernel.Close(t.hostFD); err != nil {
		log.Warningf("Closing host1x device: %v", err)
	}
}
