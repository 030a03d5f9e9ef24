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

import (
	"testing"
	"unsafe"
)

func TestOpcodes(t *testing.T) {
	for _, tc := range []struct {
		name string
		got  uint32
		want uint32
	}{
		{"incr method offset", OpcodeIncr(UclassMethodOffset, 2), 0x10100002},
		{"nonincr syncpt", OpcodeNonIncr(UclassIncrSyncpt, 1), 0x20000001},
		{"setclass vic", OpcodeSetClass(ClassVIC, 0, 0), 0x00001740},
		{"setclass nvdec mask", OpcodeSetClass(ClassNVDEC, 0x10, 3), 0x00103c03},
		{"syncpt t210", IncrSyncptArg(7, 8), 0x107},
		{"syncpt t186", IncrSyncptArg(7, 10), 0x407},
	} {
		if tc.got != tc.want {
			t.Errorf("%s: got %#x, want %#x", tc.name, tc.got, tc.want)
		}
	}
}

func TestSyncpointDeviceABI(t *testing.T) {
	for _, size := range []uintptr{
		unsafe.Sizeof(AllocateSyncpoint{}),
		unsafe.Sizeof(SyncpointInfo{}),
		unsafe.Sizeof(CreateFence{}),
	} {
		if size != 16 {
			t.Errorf("parameter size: got %d, want 16", size)
		}
	}
	if got, want := HOST1X_IOCTL_CREATE_FENCE, uint32(0xc0105804); got != want {
		t.Errorf("HOST1X_IOCTL_CREATE_FENCE: got %#x, want %#x", got, want)
	}
	if got := IOC_SIZE(HOST1X_IOCTL_ALLOCATE_SYNCPOINT); got != 16 {
		t.Errorf("IOC_SIZE(ALLOCATE_SYNCPOINT): got %d, want 16", got)
	}
}
