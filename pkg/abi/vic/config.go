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

package vic

import "gvisor.dev/tegravid/pkg/bits"

func f(offset, width uint) bits.Field {
	return bits.Field{Offset: offset, Width: width}
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// begin zeroes the first size bytes of dst and returns them.
func begin(dst []byte, size int) []byte {
	s := dst[:size]
	clear(s)
	return s
}

// Rect is an inclusive rectangle in pixels, or in 16.16 fixed point for slot
// source rectangles.
type Rect struct {
	Left, Right, Top, Bottom uint32
}

// PipeConfig is the pipeline configuration.
type PipeConfig struct {
	DownsampleHoriz uint16 // 11 bits
	DownsampleVert  uint16 // 11 bits
}

// PipeConfigSize is sizeof(PipeConfig).
const PipeConfigSize = 16

// SizeBytes implements marshal.Marshaller.SizeBytes.
func (*PipeConfig) SizeBytes() int { return PipeConfigSize }

// MarshalBytes implements marshal.Marshaller.MarshalBytes.
func (p *PipeConfig) MarshalBytes(dst []byte) []byte {
	s := begin(dst, PipeConfigSize)
	f(0, 11).Put(s, uint64(p.DownsampleHoriz))
	f(16, 11).Put(s, uint64(p.DownsampleVert))
	return dst[PipeConfigSize:]
}

// OutputConfig is the output compositing configuration.
type OutputConfig struct {
	AlphaFillMode   uint8  // 3 bits
	AlphaFillSlot   uint8  // 3 bits
	BackgroundAlpha uint16 // 10 bits
	BackgroundR     uint16 // 10 bits
	BackgroundG     uint16 // 10 bits
	BackgroundB     uint16 // 10 bits
	RegammaMode     uint8  // 2 bits
	OutputFlipX     bool
	OutputFlipY     bool
	OutputTranspose bool
	TargetRect      Rect // 14 bits each
}

// OutputConfigSize is sizeof(OutputConfig).
const OutputConfigSize = 16

// Fields of OutputConfig.
var (
	OutputBackgroundAlpha = f(6, 10)
	OutputBackgroundR     = f(16, 10)
	OutputBackgroundG     = f(26, 10)
	OutputBackgroundB     = f(36, 10)
	OutputTargetRectLeft  = f(64, 14)
	OutputTargetRectRight = f(80, 14)
	OutputTargetRectTop   = f(96, 14)
	OutputTargetRectBot   = f(112, 14)
)

// SizeBytes implements marshal.Marshaller.SizeBytes.
func (*OutputConfig) SizeBytes() int { return OutputConfigSize }

// MarshalBytes implements marshal.Marshaller.MarshalBytes.
func (o *OutputConfig) MarshalBytes(dst []byte) []byte {
	s := begin(dst, OutputConfigSize)
	f(0, 3).Put(s, uint64(o.AlphaFillMode))
	f(3, 3).Put(s, uint64(o.AlphaFillSlot))
	OutputBackgroundAlpha.Put(s, uint64(o.BackgroundAlpha))
	OutputBackgroundR.Put(s, uint64(o.BackgroundR))
	OutputBackgroundG.Put(s, uint64(o.BackgroundG))
	OutputBackgroundB.Put(s, uint64(o.BackgroundB))
	f(46, 2).Put(s, uint64(o.RegammaMode))
	f(48, 1).Put(s, b2u(o.OutputFlipX))
	f(49, 1).Put(s, b2u(o.OutputFlipY))
	f(50, 1).Put(s, b2u(o.OutputTranspose))
	OutputTargetRectLeft.Put(s, uint64(o.TargetRect.Left))
	OutputTargetRectRight.Put(s, uint64(o.TargetRect.Right))
	OutputTargetRectTop.Put(s, uint64(o.TargetRect.Top))
	OutputTargetRectBot.Put(s, uint64(o.TargetRect.Bottom))
	return dst[OutputConfigSize:]
}

// SurfaceConfig is the geometry and format shared by OutputSurfaceConfig and
// SlotSurfaceConfig. All sizes are stored minus one.
type SurfaceConfig struct {
	PixelFormat    PixelFormat
	ChromaLocHoriz uint8 // 2 bits
	ChromaLocVert  uint8 // 2 bits
	BlkKind        BlockKind
	BlkHeight      uint8      // 4 bits
	CacheWidth     CacheWidth // slots only
	SurfaceWidth   uint32     // 14 bits
	SurfaceHeight  uint32     // 14 bits
	LumaWidth      uint32     // 14 bits
	LumaHeight     uint32     // 14 bits
	ChromaWidth    uint32     // 14 bits
	ChromaHeight   uint32     // 14 bits
}

// SurfaceConfigSize is sizeof(OutputSurfaceConfig) and
// sizeof(SlotSurfaceConfig).
const SurfaceConfigSize = 16

// Fields of OutputSurfaceConfig and SlotSurfaceConfig.
var (
	SurfacePixelFormat    = f(0, 7)
	SurfaceChromaLocHoriz = f(7, 2)
	SurfaceChromaLocVert  = f(9, 2)
	SurfaceBlkKind        = f(11, 4)
	SurfaceBlkHeight      = f(15, 4)
	SurfaceCacheWidth     = f(19, 3)
	SurfaceWidth          = f(32, 14)
	SurfaceHeight         = f(46, 14)
	SurfaceLumaWidth      = f(64, 14)
	SurfaceLumaHeight     = f(78, 14)
	SurfaceChromaWidth    = f(96, 14)
	SurfaceChromaHeight   = f(110, 14)
)

// SizeBytes implements marshal.Marshaller.SizeBytes.
func (*SurfaceConfig) SizeBytes() int { return SurfaceConfigSize }

// MarshalBytes implements marshal.Marshaller.MarshalBytes.
func (c *SurfaceConfig) MarshalBytes(dst []byte) []byte {
	s := begin(dst, SurfaceConfigSize)
	SurfacePixelFormat.Put(s, uint64(c.PixelFormat))
	SurfaceChromaLocHoriz.Put(s, uint64(c.ChromaLocHoriz))
	SurfaceChromaLocVert.Put(s, uint64(c.ChromaLocVert))
	SurfaceBlkKind.Put(s, uint64(c.BlkKind))
	SurfaceBlkHeight.Put(s, uint64(c.BlkHeight))
	SurfaceCacheWidth.Put(s, uint64(c.CacheWidth))
	SurfaceWidth.Put(s, uint64(c.SurfaceWidth))
	SurfaceHeight.Put(s, uint64(c.SurfaceHeight))
	SurfaceLumaWidth.Put(s, uint64(c.LumaWidth))
	SurfaceLumaHeight.Put(s, uint64(c.LumaHeight))
	SurfaceChromaWidth.Put(s, uint64(c.ChromaWidth))
	SurfaceChromaHeight.Put(s, uint64(c.ChromaHeight))
	return dst[SurfaceConfigSize:]
}

// MatrixStruct is a 3x4 colour transform. Coeff[r][c] is the 20-bit two's
// complement coefficient for output row r; column 3 is the translation.
type MatrixStruct struct {
	Coeff  [3][4]int32
	RShift uint8 // 4 bits
	Enable bool
}

// MatrixStructSize is sizeof(MatrixStruct).
const MatrixStructSize = 32

// Fields of MatrixStruct.
var (
	MatrixRShift = f(60, 4)
	MatrixEnable = f(127, 1)

	// MatrixCoeff[r][c] locates coefficient r,c.
	MatrixCoeff = [3][4]bits.Field{
		{f(0, 20), f(64, 20), f(128, 20), f(192, 20)},
		{f(20, 20), f(84, 20), f(148, 20), f(212, 20)},
		{f(40, 20), f(104, 20), f(168, 20), f(232, 20)},
	}
)

// SizeBytes implements marshal.Marshaller.SizeBytes.
func (*MatrixStruct) SizeBytes() int { return MatrixStructSize }

// MarshalBytes implements marshal.Marshaller.MarshalBytes.
func (m *MatrixStruct) MarshalBytes(dst []byte) []byte {
	s := begin(dst, MatrixStructSize)
	for r := range m.Coeff {
		for c, v := range m.Coeff[r] {
			MatrixCoeff[r][c].Put(s, uint64(uint32(v)))
		}
	}
	MatrixRShift.Put(s, uint64(m.RShift))
	MatrixEnable.Put(s, b2u(m.Enable))
	return dst[MatrixStructSize:]
}

// ClearRectStruct holds two clear rectangles.
type ClearRectStruct struct {
	Rect [2]Rect // 14 bits each
}

// ClearRectStructSize is sizeof(ClearRectStruct).
const ClearRectStructSize = 16

// SizeBytes implements marshal.Marshaller.SizeBytes.
func (*ClearRectStruct) SizeBytes() int { return ClearRectStructSize }

// MarshalBytes implements marshal.Marshaller.MarshalBytes.
func (c *ClearRectStruct) MarshalBytes(dst []byte) []byte {
	s := begin(dst, ClearRectStructSize)
	for i, r := range c.Rect {
		base := uint(i) * 64
		f(base, 14).Put(s, uint64(r.Left))
		f(base+16, 14).Put(s, uint64(r.Right))
		f(base+32, 14).Put(s, uint64(r.Top))
		f(base+48, 14).Put(s, uint64(r.Bottom))
	}
	return dst[ClearRectStructSize:]
}
