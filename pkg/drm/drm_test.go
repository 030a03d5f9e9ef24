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

package drm_test

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"
	"unsafe"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"
	"gvisor.dev/tegravid/pkg/abi/host1x"
	"gvisor.dev/tegravid/pkg/abi/tegradrm"
	"gvisor.dev/tegravid/pkg/abi/vic"
	"gvisor.dev/tegravid/pkg/drm"
	"gvisor.dev/tegravid/pkg/drm/drmtest"
	"gvisor.dev/tegravid/pkg/errors/hwerr"
)

type generation struct {
	name string
	new  func(socID string) *drmtest.Kernel
	want drm.Generation
}

var generations = []generation{
	{"legacy", drmtest.NewLegacy, drm.GenerationLegacy},
	{"host1x", drmtest.NewUnified, drm.GenerationUnified},
}

func open(t *testing.T, k *drmtest.Kernel) *drm.Device {
	t.Helper()
	d, err := drm.Open(k.Options())
	if err != nil {
		t.Fatalf("drm.Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestPlatformDetection(t *testing.T) {
	for _, tc := range []struct {
		socID     string
		platform  drm.Platform
		condShift uint
		vic       vic.Version
	}{
		{drmtest.SocT210, drm.PlatformT210, 8, vic.Version40},
		{drmtest.SocT186, drm.PlatformT186, 10, vic.Version41},
		{drmtest.SocT194, drm.PlatformT194, 10, vic.Version41},
	} {
		t.Run(tc.platform.String(), func(t *testing.T) {
			d := open(t, drmtest.NewLegacy(tc.socID))
			p := d.Platform()
			if p != tc.platform {
				t.Errorf("Platform: got %v, want %v", p, tc.platform)
			}
			if got := p.SyncpointCondShift(); got != tc.condShift {
				t.Errorf("SyncpointCondShift: got %d, want %d", got, tc.condShift)
			}
			if got := p.VICVersion(); got != tc.vic {
				t.Errorf("VICVersion: got %v, want %v", got, tc.vic)
			}
		})
	}
}

func TestUnsupportedPlatform(t *testing.T) {
	k := drmtest.NewLegacy("40\n")
	if _, err := drm.Open(k.Options()); !errors.Is(err, hwerr.UnsupportedPlatform) {
		t.Errorf("Open with unknown SoC: got %v, want %v", err, hwerr.UnsupportedPlatform)
	}
	opts := k.Options()
	opts.SocIDPath = "/nonexistent"
	_, err := drm.Open(opts)
	if !errors.Is(err, hwerr.UnsupportedPlatform) || !errors.Is(err, unix.ENOENT) {
		t.Errorf("Open without SoC id: got %v, want %v and ENOENT", err, hwerr.UnsupportedPlatform)
	}
	if k.OpenFiles() != 0 {
		t.Errorf("failed Open leaked %d files", k.OpenFiles())
	}
}

func TestProtocolSelection(t *testing.T) {
	for _, tc := range []struct {
		name     string
		kernel   *drmtest.Kernel
		protocol drm.Protocol
		want     drm.Generation
		wantErr  bool
	}{
		{"auto legacy", drmtest.NewLegacy(drmtest.SocT210), drm.ProtocolAuto, drm.GenerationLegacy, false},
		{"auto unified", drmtest.NewUnified(drmtest.SocT194), drm.ProtocolAuto, drm.GenerationUnified, false},
		{"forced legacy", drmtest.NewUnified(drmtest.SocT194), drm.ProtocolLegacy, drm.GenerationLegacy, false},
		{"forced host1x", drmtest.NewUnified(drmtest.SocT186), drm.ProtocolHost1x, drm.GenerationUnified, false},
		{"forced host1x without device", drmtest.NewLegacy(drmtest.SocT186), drm.ProtocolHost1x, 0, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			opts := tc.kernel.Options()
			opts.Protocol = tc.protocol
			d, err := drm.Open(opts)
			if tc.wantErr {
				if err == nil {
					d.Close()
					t.Fatalf("Open succeeded, want error")
				}
				if n := tc.kernel.OpenFiles(); n != 0 {
					t.Errorf("failed Open leaked %d files", n)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer d.Close()
			if got := d.Generation(); got != tc.want {
				t.Errorf("Generation: got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestProtocolFlag(t *testing.T) {
	var p drm.Protocol
	if err := p.Set("host1x"); err != nil || p != drm.ProtocolHost1x {
		t.Errorf("Set(host1x): got %q, %v", p, err)
	}
	if err := p.Set("nouveau"); err == nil {
		t.Errorf("Set(nouveau) succeeded")
	}
}

func TestChannelMapIdempotent(t *testing.T) {
	k := drmtest.NewUnified(drmtest.SocT186)
	d := open(t, k)
	ctx, err := d.OpenChannel(host1x.ClassVIC)
	if err != nil {
		t.Fatalf("OpenChannel: %v", err)
	}
	b, err := d.Allocate(0x1000)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer b.Close()

	first, err := b.ChannelMap(ctx, true)
	if err != nil {
		t.Fatalf("ChannelMap: %v", err)
	}
	for i := 0; i < 3; i++ {
		id, err := b.ChannelMap(ctx, i%2 == 0)
		if err != nil {
			t.Fatalf("ChannelMap #%d: %v", i+2, err)
		}
		if id != first {
			t.Errorf("ChannelMap #%d: got mapping %d, want %d", i+2, id, first)
		}
	}
	if got := k.Calls(tegradrm.DRM_IOCTL_TEGRA_CHANNEL_MAP); got != 1 {
		t.Errorf("kernel map calls: got %d, want 1", got)
	}
	if id, ok := b.MappingID(ctx); !ok || id != first {
		t.Errorf("MappingID: got %d, %t, want %d, true", id, ok, first)
	}
	if flags, _ := k.MappingFlags(ctx, b.Handle()); flags != tegradrm.DRM_TEGRA_CHANNEL_MAP_READ_WRITE {
		t.Errorf("mapping flags: got %#x, want read-write", flags)
	}
}

func TestChannelMapLegacyIsLocal(t *testing.T) {
	k := drmtest.NewLegacy(drmtest.SocT210)
	d := open(t, k)
	ctx, err := d.OpenChannel(host1x.ClassNVDEC)
	if err != nil {
		t.Fatalf("OpenChannel: %v", err)
	}
	b, err := d.Allocate(64)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer b.Close()
	if _, err := b.ChannelMap(ctx, false); err != nil {
		t.Fatalf("ChannelMap: %v", err)
	}
	if got := k.Calls(tegradrm.DRM_IOCTL_TEGRA_CHANNEL_MAP); got != 0 {
		t.Errorf("kernel map calls: got %d, want 0", got)
	}
}

func TestChannelMapNilBuffer(t *testing.T) {
	var b *drm.Buffer
	if _, err := b.ChannelMap(1, true); !errors.Is(err, hwerr.InternalNullBuffer) {
		t.Errorf("ChannelMap on nil buffer: got %v, want %v", err, hwerr.InternalNullBuffer)
	}
}

func TestChannelMapFailure(t *testing.T) {
	k := drmtest.NewUnified(drmtest.SocT194)
	d := open(t, k)
	ctx, err := d.OpenChannel(host1x.ClassVIC)
	if err != nil {
		t.Fatalf("OpenChannel: %v", err)
	}
	b, err := d.Allocate(64)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer b.Close()

	k.Fail(tegradrm.DRM_IOCTL_TEGRA_CHANNEL_MAP, unix.ENOMEM)
	_, err = b.ChannelMap(ctx, false)
	if !errors.Is(err, hwerr.ChannelMapFailed) || !errors.Is(err, unix.ENOMEM) {
		t.Errorf("ChannelMap: got %v, want %v wrapping ENOMEM", err, hwerr.ChannelMapFailed)
	}
	if _, ok := b.MappingID(ctx); ok {
		t.Errorf("failed ChannelMap recorded a mapping")
	}
	k.Fail(tegradrm.DRM_IOCTL_TEGRA_CHANNEL_MAP, 0)
	if _, err := b.ChannelMap(ctx, false); err != nil {
		t.Errorf("ChannelMap after failure: %v", err)
	}
}

func TestMapReturnsSameSlice(t *testing.T) {
	k := drmtest.NewLegacy(drmtest.SocT210)
	d := open(t, k)
	b, err := d.Allocate(0x2000)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer b.Close()

	k.Fail(tegradrm.DRM_IOCTL_TEGRA_GEM_MMAP, unix.EFAULT)
	if _, err := b.Map(); !errors.Is(err, hwerr.MapFailed) {
		t.Fatalf("Map: got %v, want %v", err, hwerr.MapFailed)
	}
	k.Fail(tegradrm.DRM_IOCTL_TEGRA_GEM_MMAP, 0)

	m1, err := b.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	m2, err := b.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if len(m1) != 0x2000 {
		t.Errorf("mapping length: got %#x, want 0x2000", len(m1))
	}
	if unsafe.SliceData(m1) != unsafe.SliceData(m2) {
		t.Errorf("Map returned different mappings")
	}
	if got := k.Calls(tegradrm.DRM_IOCTL_TEGRA_GEM_MMAP); got != 2 {
		t.Errorf("GEM_MMAP calls: got %d, want 2 (one failed, one successful)", got)
	}
	for _, v := range m1 {
		if v != 0 {
			t.Fatalf("new buffer is not zeroed")
		}
	}
}

func TestCloseUnmapsEveryChannel(t *testing.T) {
	k := drmtest.NewUnified(drmtest.SocT186)
	d := open(t, k)
	vicCtx, err := d.OpenChannel(host1x.ClassVIC)
	if err != nil {
		t.Fatalf("OpenChannel: %v", err)
	}
	nvdecCtx, err := d.OpenChannel(host1x.ClassNVDEC)
	if err != nil {
		t.Fatalf("OpenChannel: %v", err)
	}
	b, err := d.Allocate(0x1000)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	for _, ctx := range []uint64{vicCtx, nvdecCtx} {
		if _, err := b.ChannelMap(ctx, true); err != nil {
			t.Fatalf("ChannelMap(%d): %v", ctx, err)
		}
	}
	if _, err := b.Map(); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if got := k.Mappings(); got != 0 {
		t.Errorf("channel mappings after Close: got %d, want 0", got)
	}
	if got := k.Calls(tegradrm.DRM_IOCTL_TEGRA_CHANNEL_UNMAP); got != 2 {
		t.Errorf("unmap calls: got %d, want 2", got)
	}
	if got := k.Munmaps(); got != 1 {
		t.Errorf("munmaps: got %d, want 1", got)
	}
	if got := k.Objects(); got != 0 {
		t.Errorf("GEM objects after Close: got %d, want 0", got)
	}
}

func TestBufferFailures(t *testing.T) {
	k := drmtest.NewUnified(drmtest.SocT194)
	d := open(t, k)

	k.Fail(tegradrm.DRM_IOCTL_TEGRA_GEM_CREATE, unix.ENOMEM)
	if _, err := d.Allocate(64); !errors.Is(err, hwerr.AllocationFailed) || !errors.Is(err, unix.ENOMEM) {
		t.Errorf("Allocate: got %v, want %v wrapping ENOMEM", err, hwerr.AllocationFailed)
	}
	k.Fail(tegradrm.DRM_IOCTL_TEGRA_GEM_CREATE, 0)

	if _, err := d.OpenByName(1234); !errors.Is(err, hwerr.ImportFailed) {
		t.Errorf("OpenByName of unknown name: got %v, want %v", err, hwerr.ImportFailed)
	}

	b, err := d.Allocate(64)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer b.Close()
	k.Fail(tegradrm.DRM_IOCTL_PRIME_HANDLE_TO_FD, unix.EPERM)
	if _, err := b.ExportFD(true); !errors.Is(err, hwerr.ExportFailed) {
		t.Errorf("ExportFD: got %v, want %v", err, hwerr.ExportFailed)
	}
	k.Fail(tegradrm.DRM_IOCTL_PRIME_HANDLE_TO_FD, 0)
	fd, err := b.ExportFD(false)
	if err != nil || fd < 0 {
		t.Errorf("ExportFD: got %d, %v", fd, err)
	}
}

func TestOpenByName(t *testing.T) {
	k := drmtest.NewLegacy(drmtest.SocT210)
	d := open(t, k)
	b, err := d.Allocate(0x3000)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer b.Close()
	name, err := b.Name()
	if err != nil {
		t.Fatalf("Name: %v", err)
	}
	imported, err := d.OpenByName(name)
	if err != nil {
		t.Fatalf("OpenByName: %v", err)
	}
	defer imported.Close()
	if imported.Size() != b.Size() {
		t.Errorf("imported size: got %#x, want %#x", imported.Size(), b.Size())
	}
	m, err := b.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	m[0x10] = 0x5a
	im, err := imported.Map()
	if err != nil {
		t.Fatalf("Map imported: %v", err)
	}
	if im[0x10] != 0x5a {
		t.Errorf("imported buffer does not share memory")
	}
}

func TestSubmit(t *testing.T) {
	for _, g := range generations {
		t.Run(g.name, func(t *testing.T) {
			k := g.new(drmtest.SocT186)
			d := open(t, k)
			ctx, err := d.OpenChannel(host1x.ClassVIC)
			if err != nil {
				t.Fatalf("OpenChannel: %v", err)
			}
			syncpt, err := d.AllocateSyncpoint(ctx)
			if err != nil {
				t.Fatalf("AllocateSyncpoint: %v", err)
			}
			cmd, err := d.Allocate(0x1000)
			if err != nil {
				t.Fatalf("Allocate: %v", err)
			}
			defer cmd.Close()
			target, err := d.Allocate(0x1000)
			if err != nil {
				t.Fatalf("Allocate: %v", err)
			}
			defer target.Close()
			if _, err := target.ChannelMap(ctx, false); err != nil {
				t.Fatalf("ChannelMap: %v", err)
			}

			words := []uint32{host1x.OpcodeIncr(host1x.UclassMethodOffset, 2), 0x708 >> 2, 0xdeadbeef}
			m, err := cmd.Map()
			if err != nil {
				t.Fatalf("Map: %v", err)
			}
			for i, w := range words {
				binary.NativeEndian.PutUint32(m[4*i:], w)
			}
			fence, err := d.Submit(&drm.Submission{
				Context:   ctx,
				Syncpoint: syncpt,
				Cmdbuf:    cmd,
				Words:     uint32(len(words)),
				Relocs:    []drm.Reloc{{Target: target, Offset: 0x40, Word: 2, Shift: 8}},
			})
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if err := d.WaitSyncpoint(syncpt, fence); err != nil {
				t.Fatalf("WaitSyncpoint: %v", err)
			}

			subs := k.Submissions()
			if len(subs) != 1 {
				t.Fatalf("submissions: got %d, want 1", len(subs))
			}
			want := drmtest.Submission{
				Class:     host1x.ClassVIC,
				Context:   ctx,
				Syncpoint: syncpt,
				Words:     words,
				Relocs:    []drmtest.Reloc{{Word: 2, Handle: target.Handle(), Offset: 0x40, Shift: 8}},
			}
			if diff := cmp.Diff(want, subs[0]); diff != "" {
				t.Errorf("submission mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSubmitFailure(t *testing.T) {
	k := drmtest.NewLegacy(drmtest.SocT210)
	d := open(t, k)
	ctx, err := d.OpenChannel(host1x.ClassNVDEC)
	if err != nil {
		t.Fatalf("OpenChannel: %v", err)
	}
	syncpt, err := d.AllocateSyncpoint(ctx)
	if err != nil {
		t.Fatalf("AllocateSyncpoint: %v", err)
	}
	cmd, err := d.Allocate(0x1000)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer cmd.Close()
	k.Fail(tegradrm.DRM_IOCTL_TEGRA_SUBMIT, unix.EINVAL)
	_, err = d.Submit(&drm.Submission{Context: ctx, Syncpoint: syncpt, Cmdbuf: cmd, Words: 2})
	if !errors.Is(err, hwerr.SubmitFailed) || !errors.Is(err, unix.EINVAL) {
		t.Errorf("Submit: got %v, want %v wrapping EINVAL", err, hwerr.SubmitFailed)
	}
}

func TestChannelFailures(t *testing.T) {
	for _, g := range generations {
		t.Run(g.name, func(t *testing.T) {
			k := g.new(drmtest.SocT194)
			d := open(t, k)
			openReq := tegradrm.DRM_IOCTL_TEGRA_OPEN_CHANNEL
			syncptReq := tegradrm.DRM_IOCTL_TEGRA_GET_SYNCPT
			if g.want == drm.GenerationUnified {
				openReq = tegradrm.DRM_IOCTL_TEGRA_CHANNEL_OPEN
				syncptReq = host1x.HOST1X_IOCTL_ALLOCATE_SYNCPOINT
			}
			k.Fail(openReq, unix.ENODEV)
			if _, err := d.OpenChannel(host1x.ClassNVDEC); !errors.Is(err, hwerr.ChannelOpenFailed) || !errors.Is(err, unix.ENODEV) {
				t.Errorf("OpenChannel: got %v, want %v wrapping ENODEV", err, hwerr.ChannelOpenFailed)
			}
			k.Fail(openReq, 0)
			ctx, err := d.OpenChannel(host1x.ClassNVDEC)
			if err != nil {
				t.Fatalf("OpenChannel: %v", err)
			}
			k.Fail(syncptReq, unix.EBUSY)
			if _, err := d.AllocateSyncpoint(ctx); !errors.Is(err, hwerr.SyncpointAllocFailed) {
				t.Errorf("AllocateSyncpoint: got %v, want %v", err, hwerr.SyncpointAllocFailed)
			}
			if err := d.CloseChannel(ctx); err != nil {
				t.Errorf("CloseChannel: %v", err)
			}
			if err := d.CloseChannel(0); err != nil {
				t.Errorf("CloseChannel(0): %v", err)
			}
		})
	}
}

func TestWaitTimeout(t *testing.T) {
	for _, g := range generations {
		t.Run(g.name, func(t *testing.T) {
			t.Parallel()
			k := g.new(drmtest.SocT186)
			d := open(t, k)
			ctx, err := d.OpenChannel(host1x.ClassVIC)
			if err != nil {
				t.Fatalf("OpenChannel: %v", err)
			}
			syncpt, err := d.AllocateSyncpoint(ctx)
			if err != nil {
				t.Fatalf("AllocateSyncpoint: %v", err)
			}
			start := time.Now()
			err = d.WaitSyncpoint(syncpt, 1)
			elapsed := time.Since(start)
			if !errors.Is(err, hwerr.WaitTimeout) {
				t.Errorf("WaitSyncpoint: got %v, want %v", err, hwerr.WaitTimeout)
			}
			if elapsed < drm.SyncpointWaitTimeout-100*time.Millisecond || elapsed > drm.SyncpointWaitTimeout+time.Second {
				t.Errorf("WaitSyncpoint returned after %v, want about %v", elapsed, drm.SyncpointWaitTimeout)
			}
		})
	}
}

func TestWaitFailed(t *testing.T) {
	k := drmtest.NewUnified(drmtest.SocT194)
	d := open(t, k)
	k.Fail(host1x.HOST1X_IOCTL_CREATE_FENCE, unix.EINVAL)
	if err := d.WaitSyncpoint(7, 1); !errors.Is(err, hwerr.WaitFailed) {
		t.Errorf("WaitSyncpoint: got %v, want %v", err, hwerr.WaitFailed)
	}
}

func TestCloseFreesSyncpoints(t *testing.T) {
	k := drmtest.NewUnified(drmtest.SocT194)
	d, err := drm.Open(k.Options())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx, err := d.OpenChannel(host1x.ClassVIC)
	if err != nil {
		t.Fatalf("OpenChannel: %v", err)
	}
	a, err := d.AllocateSyncpoint(ctx)
	if err != nil {
		t.Fatalf("AllocateSyncpoint: %v", err)
	}
	if _, err := d.AllocateSyncpoint(ctx); err != nil {
		t.Fatalf("AllocateSyncpoint: %v", err)
	}
	if err := d.FreeSyncpoint(a); err != nil {
		t.Fatalf("FreeSyncpoint: %v", err)
	}
	if got := k.Syncpoints(); got != 1 {
		t.Errorf("syncpoints after free: got %d, want 1", got)
	}
	if err := d.CloseChannel(ctx); err != nil {
		t.Fatalf("CloseChannel: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := k.Syncpoints(); got != 0 {
		t.Errorf("syncpoints after Close: got %d, want 0", got)
	}
	if got := k.OpenFiles(); got != 0 {
		t.Errorf("open files after Close: got %d, want 0", got)
	}
}

func TestIoctlPassthrough(t *testing.T) {
	k := drmtest.NewLegacy(drmtest.SocT210)
	d := open(t, k)
	args := tegradrm.TegraGemCreate{Size: 0x1000}
	if err := d.Ioctl(tegradrm.DRM_IOCTL_TEGRA_GEM_CREATE, unsafe.Pointer(&args)); err != nil {
		t.Fatalf("Ioctl: %v", err)
	}
	if args.Handle == 0 {
		t.Errorf("GEM_CREATE returned handle 0")
	}
	k.Fail(tegradrm.DRM_IOCTL_TEGRA_GEM_CREATE, unix.ENOSPC)
	if err := d.Ioctl(tegradrm.DRM_IOCTL_TEGRA_GEM_CREATE, unsafe.Pointer(&args)); err != unix.ENOSPC {
		t.Errorf("Ioctl: got %v, want ENOSPC", err)
	}
}
