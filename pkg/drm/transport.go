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
	"fmt"
	"time"

	"gvisor.dev/tegravid/pkg/abi/host1x"
)

// Generation is a kernel submission protocol generation.
type Generation int

const (
	// GenerationLegacy is the Tegra DRM job interface: channels and
	// syncpoints are obtained from the DRM device, and buffers are
	// referenced by per-submission relocations against GEM handles.
	GenerationLegacy Generation = iota

	// GenerationUnified is the host1x channel interface: buffers are
	// mapped into a channel explicitly before use, and syncpoints are files
	// handed out by the separate host1x device.
	GenerationUnified
)

// String implements fmt.Stringer.
func (g Generation) String() string {
	switch g {
	case GenerationLegacy:
		return "legacy"
	case GenerationUnified:
		return "host1x"
	default:
		return fmt.Sprintf("Generation(%d)", int(g))
	}
}

// Protocol selects the generation when opening a Device.
type Protocol string

// Protocol values.
const (
	ProtocolAuto   Protocol = "auto"
	ProtocolLegacy Protocol = "legacy"
	ProtocolHost1x Protocol = "host1x"
)

// Set implements flag.Value.
func (p *Protocol) Set(v string) error {
	switch Protocol(v) {
	case ProtocolAuto, ProtocolLegacy, ProtocolHost1x:
		*p = Protocol(v)
		return nil
	default:
		return fmt.Errorf("invalid protocol %q, must be one of auto, legacy, host1x", v)
	}
}

// String implements flag.Value.
func (p *Protocol) String() string {
	return string(*p)
}

// Get implements flag.Getter.
func (p *Protocol) Get() any {
	return *p
}

// UnmarshalText implements encoding.TextUnmarshaler, for configuration files.
func (p *Protocol) UnmarshalText(b []byte) error {
	return p.Set(string(b))
}

// Reloc asks the kernel to patch a word of a command stream with the device
// address of Target plus Offset, shifted right by Shift.
type Reloc struct {
	Target *Buffer
	Offset uint32
	// Word is the index of the patched word in the command stream.
	Word  uint32
	Shift uint32
}

// Submission is one command stream submitted to a channel. The stream
// occupies the first Words words of Cmdbuf and increments Syncpoint once on
// completion.
type Submission struct {
	Context   uint64
	Syncpoint uint32
	Cmdbuf    *Buffer
	Words     uint32
	Relocs    []Reloc
}

// Transport is the protocol generation specific half of a Device. Engines
// never see it; they use the Device and Buffer methods built on top of it.
type Transport interface {
	Generation() Generation
	OpenChannel(class host1x.Class) (uint64, error)
	CloseChannel(context uint64) error
	AllocateSyncpoint(context uint64) (uint32, error)
	FreeSyncpoint(id uint32) error
	MapBuffer(context uint64, handle uint32, readWrite bool) (uint32, error)
	UnmapBuffer(context uint64, mapping uint32) error

	// Submit queues s and returns the syncpoint threshold that marks its
	// completion.
	Submit(s *Submission) (uint32, error)
	WaitSyncpoint(id, threshold uint32, timeout time.Duration) error

	// Release frees every resource the transport holds. It is called once,
	// when the Device is closed.
	Release()
}
