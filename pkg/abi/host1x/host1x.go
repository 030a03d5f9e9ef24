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

// Package host1x defines the host1x command stream encoding, the engine class
// identifiers and the ABI of the host1x syncpoint device.
package host1x

// Class identifies an engine behind host1x.
type Class uint32

// Engine classes, from include/linux/host1x.h.
const (
	ClassHost1x Class = 0x01
	ClassVIC    Class = 0x5D
	ClassNVDEC  Class = 0xF0
)

func (c Class) String() string {
	switch c {
	case ClassHost1x:
		return "host1x"
	case ClassVIC:
		return "vic"
	case ClassNVDEC:
		return "nvdec"
	default:
		return "unknown"
	}
}

// Falcon engine uclass methods shared by NVDEC and VIC. An engine method is
// written by storing its byte offset >> 2 to UclassMethodOffset and then the
// argument to UclassMethodData.
const (
	UclassIncrSyncpt   = 0x00
	UclassMethodOffset = 0x10
	UclassMethodData   = 0x11
)

// Syncpoint increment conditions, the high bits of the UclassIncrSyncpt
// argument.
const (
	SyncptCondImmediate = 0
	SyncptCondOpDone    = 1
)

// Opcodes, from drivers/gpu/host1x/hw/host1x0x_opcodes.h.
const (
	opcodeSetClass = 0
	opcodeIncr     = 1
	opcodeNonIncr  = 2
)

// OpcodeSetClass selects class for the following methods. mask selects which
// of the 6 registers starting at offset are written by the words that follow.
func OpcodeSetClass(class Class, offset, mask uint32) uint32 {
	return opcodeSetClass<<28 | offset<<16 | uint32(class)<<6 | mask
}

// OpcodeIncr writes the next count words to consecutive registers starting at
// offset.
func OpcodeIncr(offset, count uint32) uint32 {
	return opcodeIncr<<28 | offset<<16 | count
}

// OpcodeNonIncr writes the next count words to the register at offset.
func OpcodeNonIncr(offset, count uint32) uint32 {
	return opcodeNonIncr<<28 | offset<<16 | count
}

// IncrSyncptArg is the UclassIncrSyncpt argument that increments syncpoint id
// once the engine has completed the preceding work. condShift is the position
// of the condition field, which differs between host1x generations.
func IncrSyncptArg(id uint32, condShift uint) uint32 {
	return id | SyncptCondOpDone<<condShift
}
