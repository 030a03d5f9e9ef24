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

// Package vic defines the VIC (video image compositor) method interface and
// the configuration structure the compositor firmware reads from memory, for
// VIC 4.0 (T210) and VIC 4.1 (T186, T194).
//
// Every structure is a sequence of 64-bit little-endian words holding C bit
// fields; no field straddles a word. Field offsets below are absolute bit
// offsets from the start of the containing structure.
package vic

import "fmt"

// Version is a VIC hardware revision.
type Version int

// Supported revisions.
const (
	Version40 Version = iota
	Version41
)

func (v Version) String() string {
	switch v {
	case Version40:
		return "4.0"
	case Version41:
		return "4.1"
	default:
		return fmt.Sprintf("Version(%d)", int(v))
	}
}

// Slots returns the number of input slots in the configuration structure.
func (v Version) Slots() int {
	if v == Version41 {
		return 16
	}
	return 8
}

// Methods shared by NVB0B6 and NVB1B6.
const (
	SET_APPLICATION_ID                  = 0x200
	EXECUTE                             = 0x300
	SET_CONTROL_PARAMS                  = 0x704
	SET_CONFIG_STRUCT_OFFSET            = 0x708
	SET_FILTER_STRUCT_OFFSET            = 0x70C
	SET_PALETTE_OFFSET                  = 0x710
	SET_HIST_OFFSET                     = 0x714
	SET_OUTPUT_SURFACE_LUMA_OFFSET      = 0x720
	SET_OUTPUT_SURFACE_CHROMA_U_OFFSET  = 0x724
	SET_OUTPUT_SURFACE_CHROMA_V_OFFSET  = 0x728
	nvb0b6SetSurface0Slot0LumaOffset    = 0x400
	nvb0b6SetSurface0Slot0ChromaUOffset = 0x404
	nvb1b6SetSurface0Slot0LumaOffset    = 0x1200
	nvb1b6SetSurface0Slot0ChromaUOffset = 0x1204
)

// EXECUTE arguments.
const (
	EXECUTE_AWAKEN_ENABLE = 1 << 8
)

// ApplicationID is the SET_APPLICATION_ID argument for composition.
const ApplicationID = 1

// Slot0LumaOffset returns the SET_SURFACE0_SLOT0_LUMA_OFFSET method.
func (v Version) Slot0LumaOffset() uint32 {
	if v == Version41 {
		return nvb1b6SetSurface0Slot0LumaOffset
	}
	return nvb0b6SetSurface0Slot0LumaOffset
}

// Slot0ChromaUOffset returns the SET_SURFACE0_SLOT0_CHROMA_U_OFFSET method.
func (v Version) Slot0ChromaUOffset() uint32 {
	if v == Version41 {
		return nvb1b6SetSurface0Slot0ChromaUOffset
	}
	return nvb0b6SetSurface0Slot0ChromaUOffset
}

// ControlParams returns the SET_CONTROL_PARAMS argument: the configuration
// structure size in 16-byte units, in bits 16 and up.
func (v Version) ControlParams() uint32 {
	return uint32(ConfigStructSize(v)/16) << 16
}

// PixelFormat is a VIC surface pixel format.
type PixelFormat uint8

// Pixel formats.
const (
	PIXEL_FORMAT_L8           PixelFormat = 1
	PIXEL_FORMAT_R8           PixelFormat = 4
	PIXEL_FORMAT_A8R8G8B8     PixelFormat = 32
	PIXEL_FORMAT_Y8_U8V8_N420 PixelFormat = 67
	PIXEL_FORMAT_Y8_V8U8_N420 PixelFormat = 68
)

// BlockKind is a VIC surface memory layout.
type BlockKind uint8

// Block kinds.
const (
	BLK_KIND_PITCH         BlockKind = 0
	BLK_KIND_GENERIC_16Bx2 BlockKind = 1
)

// CacheWidth is the VIC surface fetch cache geometry.
type CacheWidth uint8

// Cache widths.
const (
	CACHE_WIDTH_32Bx8  CacheWidth = 1
	CACHE_WIDTH_64Bx4  CacheWidth = 2
	CACHE_WIDTH_128Bx2 CacheWidth = 3
)

// Buffer sizes the firmware expects.
const (
	// FilterStructSize is the size of the filter coefficient buffer bound
	// with SET_FILTER_STRUCT_OFFSET.
	FilterStructSize = 0x3000
)
