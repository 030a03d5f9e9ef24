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

package bits

import (
	"encoding/binary"
	"fmt"
)

// Field describes a bit field inside a little-endian sequence of 64-bit
// words, as laid out by a C compiler for "unsigned long long x : Width"
// members. Offset is the absolute bit offset from the start of the structure.
// A field never straddles a 64-bit word boundary.
type Field struct {
	Offset uint
	Width  uint
}

func (f Field) check(dst []byte) (word, shift uint) {
	word = f.Offset / 64
	shift = f.Offset % 64
	if f.Width == 0 || shift+f.Width > 64 {
		panic(fmt.Sprintf("bit field %+v straddles a 64-bit word", f))
	}
	if int(word*8+8) > len(dst) {
		panic(fmt.Sprintf("bit field %+v out of range for %d bytes", f, len(dst)))
	}
	return word, shift
}

// Put stores the low Width bits of v into dst. Bits of v above Width are
// discarded, which matches C bit field assignment semantics.
func (f Field) Put(dst []byte, v uint64) {
	word, shift := f.check(dst)
	b := dst[word*8 : word*8+8]
	mask := LowMask64(f.Width) << shift
	cur := binary.LittleEndian.Uint64(b)
	cur = (cur &^ mask) | ((v << shift) & mask)
	binary.LittleEndian.PutUint64(b, cur)
}

// Get loads the field from src.
func (f Field) Get(src []byte) uint64 {
	word, shift := f.check(src)
	cur := binary.LittleEndian.Uint64(src[word*8 : word*8+8])
	return (cur >> shift) & LowMask64(f.Width)
}

// At returns f displaced by base bytes, for fields of embedded structures.
func (f Field) At(base int) Field {
	return Field{Offset: f.Offset + uint(base)*8, Width: f.Width}
}

// Field32 is the 32-bit word variant of Field, used by structures declared
// with "uint32_t x : Width" members.
type Field32 struct {
	Offset uint
	Width  uint
}

// Put stores the low Width bits of v into dst.
func (f Field32) Put(dst []byte, v uint32) {
	word := f.Offset / 32
	shift := f.Offset % 32
	if f.Width == 0 || shift+f.Width > 32 {
		panic(fmt.Sprintf("bit field %+v straddles a 32-bit word", f))
	}
	b := dst[word*4 : word*4+4]
	mask := uint32(LowMask64(f.Width)) << shift
	cur := binary.LittleEndian.Uint32(b)
	cur = (cur &^ mask) | ((v << shift) & mask)
	binary.LittleEndian.PutUint32(b, cur)
}

// Get loads the field from src.
func (f Field32) Get(src []byte) uint32 {
	word := f.Offset / 32
	shift := f.Offset % 32
	cur := binary.LittleEndian.Uint32(src[word*4 : word*4+4])
	return (cur >> shift) & uint32(LowMask64(f.Width))
}
