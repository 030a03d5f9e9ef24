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

// Fourcc is a DRM pixel format code, from include/uapi/drm/drm_fourcc.h.
type Fourcc uint32

func fourccCode(a, b, c, d byte) Fourcc {
	return Fourcc(a) | Fourcc(b)<<8 | Fourcc(c)<<16 | Fourcc(d)<<24
}

// Pixel formats.
var (
	DRM_FORMAT_R8       = fourccCode('R', '8', ' ', ' ')
	DRM_FORMAT_GR88     = fourccCode('G', 'R', '8', '8')
	DRM_FORMAT_ARGB8888 = fourccCode('A', 'R', '2', '4')
	DRM_FORMAT_NV12     = fourccCode('N', 'V', '1', '2')
)

func (f Fourcc) String() string {
	return string([]byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)})
}

// Modifier is a DRM format modifier describing a buffer's memory layout.
type Modifier uint64

// DRM_FORMAT_MOD_VENDOR_NVIDIA is the NVIDIA vendor code.
const DRM_FORMAT_MOD_VENDOR_NVIDIA = 0x03

// Layout modifiers.
const (
	DRM_FORMAT_MOD_LINEAR Modifier = 0

	// DRM_FORMAT_MOD_NVIDIA_16BX2_BLOCK_TWO_GOB is the 16Bx2 block linear
	// layout with blocks two GOBs high.
	DRM_FORMAT_MOD_NVIDIA_16BX2_BLOCK_TWO_GOB Modifier = DRM_FORMAT_MOD_VENDOR_NVIDIA<<56 | 0x10 | 1
)
