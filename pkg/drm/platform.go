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
	"bytes"
	"fmt"

	"gvisor.dev/tegravid/pkg/abi/vic"
	"gvisor.dev/tegravid/pkg/errors/hwerr"
)

// Platform is a Tegra SoC generation.
type Platform int

// Supported platforms.
const (
	PlatformT210 Platform = iota + 1
	PlatformT186
	PlatformT194
)

// socIDs maps the contents of the SoC id file to a platform.
var socIDs = map[string]Platform{
	"33": PlatformT210,
	"24": PlatformT186,
	"25": PlatformT194,
}

// String implements fmt.Stringer.
func (p Platform) String() string {
	switch p {
	case PlatformT210:
		return "T210"
	case PlatformT186:
		return "T186"
	case PlatformT194:
		return "T194"
	default:
		return fmt.Sprintf("Platform(%d)", int(p))
	}
}

// SyncpointCondShift returns the position of the condition field in the
// host1x syncpoint increment argument.
func (p Platform) SyncpointCondShift() uint {
	if p == PlatformT210 {
		return 8
	}
	return 10
}

// VICVersion returns the VIC generation of the SoC.
func (p Platform) VICVersion() vic.Version {
	if p == PlatformT210 {
		return vic.Version40
	}
	return vic.Version41
}

// ParsePlatform decodes the contents of the SoC id file.
func ParsePlatform(socID []byte) (Platform, error) {
	id := string(bytes.TrimSpace(socID))
	p, ok := socIDs[id]
	if !ok {
		return 0, hwerr.Wrapf(hwerr.UnsupportedPlatform, nil, "unknown SoC id %q", id)
	}
	return p, nil
}
