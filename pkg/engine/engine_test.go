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

package engine

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"
	"gvisor.dev/tegravid/pkg/abi/host1x"
	"gvisor.dev/tegravid/pkg/abi/tegradrm"
	"gvisor.dev/tegravid/pkg/drm"
	"gvisor.dev/tegravid/pkg/drm/drmtest"
	"gvisor.dev/tegravid/pkg/errors/hwerr"
)

func openChannel(t *testing.T, k *drmtest.Kernel, class host1x.Class) (*drm.Device, *Channel) {
	t.Helper()
	dev, err := drm.Open(k.Options())
	if err != nil {
		t.Fatalf("drm.Open: %v", err)
	}
	var ch Channel
	if err := ch.Open(dev, class); err != nil {
		t.Fatalf("Channel.Open: %v", err)
	}
	t.Cleanup(func() {
		ch.Close()
		dev.Close()
	})
	return dev, &ch
}

func TestStreamEncoding(t *testing.T) {
	for _, tc := range []struct {
		name      string
		kernel    *drmtest.Kernel
		condShift uint
	}{
		{"T210 legacy", drmtest.NewLegacy(drmtest.SocT210), 8},
		{"T186 host1x", drmtest.NewUnified(drmtest.SocT186), 10},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dev, ch := openChannel(t, tc.kernel, host1x.ClassVIC)
			b, err := dev.Allocate(0x100)
			if err != nil {
				t.Fatalf("Allocate: %v", err)
			}
			defer b.Close()

			s := ch.Begin()
			s.Method(0x200, 1)
			s.Buffer(0x708, b, 0x40, false)
			if err := s.Submit(); err != nil {
				t.Fatalf("Submit: %v", err)
			}

			incr := host1x.OpcodeIncr(host1x.UclassMethodOffset, 2)
			want := drmtest.Submission{
				Class:     host1x.ClassVIC,
				Context:   ch.Context(),
				Syncpoint: ch.Syncpoint(),
				Words: []uint32{
					incr, 0x200 >> 2, 1,
					incr, 0x708 >> 2, Placeholder,
					0x20000001, ch.Syncpoint() | 1<<tc.condShift,
				},
				Relocs: []drmtest.Reloc{{Word: 5, Handle: b.Handle(), Offset: 0x40, Shift: 8}},
			}
			subs := tc.kernel.Submissions()
			if len(subs) != 1 {
				t.Fatalf("submissions: got %d, want 1", len(subs))
			}
			if diff := cmp.Diff(want, subs[0]); diff != "" {
				t.Errorf("submission mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStreamNullBuffer(t *testing.T) {
	k := drmtest.NewUnified(drmtest.SocT194)
	_, ch := openChannel(t, k, host1x.ClassNVDEC)
	s := ch.Begin()
	s.Method(0x200, 1)
	s.Buffer(0x400, nil, 0, true)
	s.Method(0x300, 1<<8)
	if err := s.Submit(); !errors.Is(err, hwerr.InternalNullBuffer) {
		t.Errorf("Submit: got %v, want %v", err, hwerr.InternalNullBuffer)
	}
	if n := len(k.Submissions()); n != 0 {
		t.Errorf("submissions: got %d, want 0", n)
	}
}

func TestStreamMapFailure(t *testing.T) {
	k := drmtest.NewUnified(drmtest.SocT194)
	dev, ch := openChannel(t, k, host1x.ClassNVDEC)
	b, err := dev.Allocate(0x100)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer b.Close()
	k.Fail(tegradrm.DRM_IOCTL_TEGRA_CHANNEL_MAP, unix.ENOMEM)

	s := ch.Begin()
	s.Buffer(0x400, b, 0, true)
	err = s.Submit()
	if !errors.Is(err, hwerr.OperationFailed) || !errors.Is(err, hwerr.ChannelMapFailed) {
		t.Errorf("Submit: got %v, want %v wrapping %v", err, hwerr.OperationFailed, hwerr.ChannelMapFailed)
	}
	if got := hwerr.CodeOf(err); got != hwerr.CodeChannelMapFailed {
		t.Errorf("CodeOf: got %d, want %d", got, hwerr.CodeChannelMapFailed)
	}
	if n := len(k.Submissions()); n != 0 {
		t.Errorf("submissions: got %d, want 0", n)
	}
}

func TestStreamOverflow(t *testing.T) {
	k := drmtest.NewLegacy(drmtest.SocT210)
	_, ch := openChannel(t, k, host1x.ClassVIC)
	s := ch.Begin()
	for i := 0; i < CommandBufferSize/4/MethodWords; i++ {
		s.Method(0x200, uint32(i))
	}
	if err := s.Submit(); !errors.Is(err, hwerr.OperationFailed) {
		t.Errorf("Submit: got %v, want %v", err, hwerr.OperationFailed)
	}
}

func TestStreamUnopened(t *testing.T) {
	var ch Channel
	if err := ch.Begin().Submit(); !errors.Is(err, hwerr.OperationFailed) {
		t.Errorf("Submit on unopened channel: got %v, want %v", err, hwerr.OperationFailed)
	}
}

func TestChannelOpenResumes(t *testing.T) {
	k := drmtest.NewUnified(drmtest.SocT186)
	dev, err := drm.Open(k.Options())
	if err != nil {
		t.Fatalf("drm.Open: %v", err)
	}
	defer dev.Close()

	var ch Channel
	k.Fail(host1x.HOST1X_IOCTL_ALLOCATE_SYNCPOINT, unix.EBUSY)
	if err := ch.Open(dev, host1x.ClassVIC); !errors.Is(err, hwerr.SyncpointAllocFailed) {
		t.Fatalf("Open: got %v, want %v", err, hwerr.SyncpointAllocFailed)
	}
	if ch.Opened() {
		t.Errorf("Opened after failure")
	}
	k.Fail(host1x.HOST1X_IOCTL_ALLOCATE_SYNCPOINT, 0)
	if err := ch.Open(dev, host1x.ClassVIC); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := k.Calls(tegradrm.DRM_IOCTL_TEGRA_CHANNEL_OPEN); got != 1 {
		t.Errorf("channel opens: got %d, want 1", got)
	}
	if got := k.Calls(tegradrm.DRM_IOCTL_TEGRA_GEM_CREATE); got != 1 {
		t.Errorf("command buffer allocations: got %d, want 1", got)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if k.Contexts() != 0 || k.Syncpoints() != 0 || k.Objects() != 0 {
		t.Errorf("after Close: %d contexts, %d syncpoints, %d objects", k.Contexts(), k.Syncpoints(), k.Objects())
	}
}
