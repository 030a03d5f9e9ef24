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

// SlotConfig configures one input slot.
type SlotConfig struct {
	SlotEnable            bool
	DeNoise               bool
	AdvancedDenoise       bool
	CadenceDetect         bool
	MotionMap             bool
	MMapCombine           bool
	IsEven                bool
	ChromaEven            bool
	CurrentFieldEnable    bool
	PrevFieldEnable       bool
	NextFieldEnable       bool
	NextNrFieldEnable     bool
	CurMotionFieldEnable  bool
	PrevMotionFieldEnable bool
	PpMotionFieldEnable   bool
	CombMotionFieldEnable bool
	FrameFormat           uint8  // 4 bits
	FilterLengthY         uint8  // 2 bits
	FilterLengthX         uint8  // 2 bits
	Panoramic             uint16 // 12 bits
	DetailFltClamp        uint8  // 6 bits
	FilterNoise           uint16 // 10 bits
	FilterDetail          uint16 // 10 bits
	ChromaNoise           uint16 // 10 bits
	ChromaDetail          uint16 // 10 bits
	DeinterlaceMode       uint8  // 4 bits
	MotionAccumWeight     uint8  // 3 bits
	NoiseIir              uint16 // 11 bits
	LightLevel            uint8  // 4 bits

	SoftClampLow       uint16 // 10 bits
	SoftClampHigh      uint16 // 10 bits
	PlanarAlpha        uint16 // 10 bits
	ConstantAlpha      bool
	StereoInterleave   uint8 // 3 bits
	ClipEnabled        bool
	ClearRectMask      uint8
	DegammaMode        uint8 // 2 bits
	DecompressEnable   bool
	DecompressCtbCount uint8
	DecompressZbcColor uint32

	// SourceRect is in 16.16 fixed point, 30 bits per edge.
	SourceRect Rect
	// DestRect is in pixels, 14 bits per edge.
	DestRect Rect
}

// SlotConfigSize is sizeof(SlotConfig).
const SlotConfigSize = 64

// Fields of SlotConfig.
var (
	SlotEnable         = f(0, 1)
	SlotCurrentField   = f(8, 1)
	SlotSoftClampLow   = f(128, 10)
	SlotSoftClampHigh  = f(138, 10)
	SlotPlanarAlpha    = f(160, 10)
	SlotConstantAlpha  = f(170, 1)
	SlotSourceRectLeft = f(256, 30)
	SlotSourceRectRght = f(288, 30)
	SlotSourceRectTop  = f(320, 30)
	SlotSourceRectBot  = f(352, 30)
	SlotDestRectLeft   = f(384, 14)
	SlotDestRectRight  = f(400, 14)
	SlotDestRectTop    = f(416, 14)
	SlotDestRectBot    = f(432, 14)
)

// SizeBytes implements marshal.Marshaller.SizeBytes.
func (*SlotConfig) SizeBytes() int { return SlotConfigSize }

// MarshalBytes implements marshal.Marshaller.MarshalBytes.
func (c *SlotConfig) MarshalBytes(dst []byte) []byte {
	s := begin(dst, SlotConfigSize)
	for i, on := range []bool{
		c.SlotEnable,
		c.DeNoise,
		c.AdvancedDenoise,
		c.CadenceDetect,
		c.MotionMap,
		c.MMapCombine,
		c.IsEven,
		c.ChromaEven,
		c.CurrentFieldEnable,
		c.PrevFieldEnable,
		c.NextFieldEnable,
		c.NextNrFieldEnable,
		c.CurMotionFieldEnable,
		c.PrevMotionFieldEnable,
		c.PpMotionFieldEnable,
		c.CombMotionFieldEnable,
	} {
		f(uint(i), 1).Put(s, b2u(on))
	}
	f(16, 4).Put(s, uint64(c.FrameFormat))
	f(20, 2).Put(s, uint64(c.FilterLengthY))
	f(22, 2).Put(s, uint64(c.FilterLengthX))
	f(24, 12).Put(s, uint64(c.Panoramic))
	f(58, 6).Put(s, uint64(c.DetailFltClamp))
	f(64, 10).Put(s, uint64(c.FilterNoise))
	f(74, 10).Put(s, uint64(c.FilterDetail))
	f(84, 10).Put(s, uint64(c.ChromaNoise))
	f(94, 10).Put(s, uint64(c.ChromaDetail))
	f(104, 4).Put(s, uint64(c.DeinterlaceMode))
	f(108, 3).Put(s, uint64(c.MotionAccumWeight))
	f(111, 11).Put(s, uint64(c.NoiseIir))
	f(122, 4).Put(s, uint64(c.LightLevel))

	SlotSoftClampLow.Put(s, uint64(c.SoftClampLow))
	SlotSoftClampHigh.Put(s, uint64(c.SoftClampHigh))
	SlotPlanarAlpha.Put(s, uint64(c.PlanarAlpha))
	SlotConstantAlpha.Put(s, b2u(c.ConstantAlpha))
	f(171, 3).Put(s, uint64(c.StereoInterleave))
	f(174, 1).Put(s, b2u(c.ClipEnabled))
	f(175, 8).Put(s, uint64(c.ClearRectMask))
	f(183, 2).Put(s, uint64(c.DegammaMode))
	f(186, 1).Put(s, b2u(c.DecompressEnable))
	f(192, 8).Put(s, uint64(c.DecompressCtbCount))
	f(200, 32).Put(s, uint64(c.DecompressZbcColor))

	SlotSourceRectLeft.Put(s, uint64(c.SourceRect.Left))
	SlotSourceRectRght.Put(s, uint64(c.SourceRect.Right))
	SlotSourceRectTop.Put(s, uint64(c.SourceRect.Top))
	SlotSourceRectBot.Put(s, uint64(c.SourceRect.Bottom))
	SlotDestRectLeft.Put(s, uint64(c.DestRect.Left))
	SlotDestRectRight.Put(s, uint64(c.DestRect.Right))
	SlotDestRectTop.Put(s, uint64(c.DestRect.Top))
	SlotDestRectBot.Put(s, uint64(c.DestRect.Bottom))
	return dst[SlotConfigSize:]
}

// LumaKeyStruct configures luma keying for a slot.
type LumaKeyStruct struct {
	Coeff   [4]int32 // 20 bits each
	RShift  uint8    // 4 bits
	Lower   uint16   // 10 bits
	Upper   uint16   // 10 bits
	Enabled bool
}

// LumaKeyStructSize is sizeof(LumaKeyStruct).
const LumaKeyStructSize = 16

// SizeBytes implements marshal.Marshaller.SizeBytes.
func (*LumaKeyStruct) SizeBytes() int { return LumaKeyStructSize }

// MarshalBytes implements marshal.Marshaller.MarshalBytes.
func (l *LumaKeyStruct) MarshalBytes(dst []byte) []byte {
	s := begin(dst, LumaKeyStructSize)
	f(0, 20).Put(s, uint64(uint32(l.Coeff[0])))
	f(20, 20).Put(s, uint64(uint32(l.Coeff[1])))
	f(40, 20).Put(s, uint64(uint32(l.Coeff[2])))
	f(60, 4).Put(s, uint64(l.RShift))
	f(64, 20).Put(s, uint64(uint32(l.Coeff[3])))
	f(84, 10).Put(s, uint64(l.Lower))
	f(94, 10).Put(s, uint64(l.Upper))
	f(104, 1).Put(s, b2u(l.Enabled))
	return dst[LumaKeyStructSize:]
}

// BlendingSlotStruct configures how a slot is blended into the output.
type BlendingSlotStruct struct {
	AlphaK1             uint16    // 10 bits
	AlphaK2             uint16    // 10 bits
	SrcFactCMatchSelect uint8     // 3 bits
	DstFactCMatchSelect uint8     // 3 bits
	SrcFactAMatchSelect uint8     // 3 bits
	DstFactAMatchSelect uint8     // 3 bits
	Override            [4]uint16 // R, G, B, A; 10 bits each
	UseOverride         [4]bool
	Mask                [4]bool
}

// BlendingSlotStructSize is sizeof(BlendingSlotStruct).
const BlendingSlotStructSize = 16

// SizeBytes implements marshal.Marshaller.SizeBytes.
func (*BlendingSlotStruct) SizeBytes() int { return BlendingSlotStructSize }

// MarshalBytes implements marshal.Marshaller.MarshalBytes.
func (b *BlendingSlotStruct) MarshalBytes(dst []byte) []byte {
	s := begin(dst, BlendingSlotStructSize)
	f(0, 10).Put(s, uint64(b.AlphaK1))
	f(16, 10).Put(s, uint64(b.AlphaK2))
	f(32, 3).Put(s, uint64(b.SrcFactCMatchSelect))
	f(36, 3).Put(s, uint64(b.DstFactCMatchSelect))
	f(40, 3).Put(s, uint64(b.SrcFactAMatchSelect))
	f(44, 3).Put(s, uint64(b.DstFactAMatchSelect))
	for i := 0; i < 4; i++ {
		f(66+10*uint(i), 10).Put(s, uint64(b.Override[i]))
		f(108+uint(i), 1).Put(s, b2u(b.UseOverride[i]))
		f(112+uint(i), 1).Put(s, b2u(b.Mask[i]))
	}
	return dst[BlendingSlotStructSize:]
}

// SlotStruct is the complete configuration of one input slot.
type SlotStruct struct {
	SlotConfig         SlotConfig
	SlotSurfaceConfig  SurfaceConfig
	LumaKeyStruct      LumaKeyStruct
	ColorMatrixStruct  MatrixStruct
	GamutMatrixStruct  MatrixStruct
	BlendingSlotStruct BlendingSlotStruct
}

// Byte offsets within SlotStruct.
const (
	SlotConfigOffset        = 0
	SlotSurfaceConfigOffset = SlotConfigOffset + SlotConfigSize
	SlotLumaKeyOffset       = SlotSurfaceConfigOffset + SurfaceConfigSize
	SlotColorMatrixOffset   = SlotLumaKeyOffset + LumaKeyStructSize
	SlotGamutMatrixOffset   = SlotColorMatrixOffset + MatrixStructSize
	SlotBlendingOffset      = SlotGamutMatrixOffset + MatrixStructSize
	SlotStructSize          = SlotBlendingOffset + BlendingSlotStructSize
)

// SizeBytes implements marshal.Marshaller.SizeBytes.
func (*SlotStruct) SizeBytes() int { return SlotStructSize }

// MarshalBytes implements marshal.Marshaller.MarshalBytes.
func (s *SlotStruct) MarshalBytes(dst []byte) []byte {
	dst = s.SlotConfig.MarshalBytes(dst)
	dst = s.SlotSurfaceConfig.MarshalBytes(dst)
	dst = s.LumaKeyStruct.MarshalBytes(dst)
	dst = s.ColorMatrixStruct.MarshalBytes(dst)
	dst = s.GamutMatrixStruct.MarshalBytes(dst)
	return s.BlendingSlotStruct.MarshalBytes(dst)
}

// ConfigStruct is the compositor configuration bound with
// SET_CONFIG_STRUCT_OFFSET. Only the first Version.Slots() entries of
// SlotStruct are part of the structure.
type ConfigStruct struct {
	Version              Version
	PipeConfig           PipeConfig
	OutputConfig         OutputConfig
	OutputSurfaceConfig  SurfaceConfig
	OutColorMatrixStruct MatrixStruct
	ClearRectStruct      [4]ClearRectStruct
	SlotStruct           [16]SlotStruct
}

// Byte offsets within ConfigStruct.
const (
	ConfigPipeOffset           = 0
	ConfigOutputOffset         = ConfigPipeOffset + PipeConfigSize
	ConfigOutputSurfaceOffset  = ConfigOutputOffset + OutputConfigSize
	ConfigOutColorMatrixOffset = ConfigOutputSurfaceOffset + SurfaceConfigSize
	ConfigClearRectOffset      = ConfigOutColorMatrixOffset + MatrixStructSize
	ConfigSlotOffset           = ConfigClearRectOffset + 4*ClearRectStructSize
)

// ConfigStructSize returns sizeof(ConfigStruct_VIC40) or
// sizeof(ConfigStruct_VIC41).
func ConfigStructSize(v Version) int {
	return ConfigSlotOffset + v.Slots()*SlotStructSize
}

// MaxConfigStructSize is the size of the largest supported ConfigStruct.
const MaxConfigStructSize = ConfigSlotOffset + 16*SlotStructSize

// SlotOffset returns the byte offset of slot i within ConfigStruct.
func SlotOffset(i int) int {
	return ConfigSlotOffset + i*SlotStructSize
}

// SizeBytes implements marshal.Marshaller.SizeBytes.
func (c *ConfigStruct) SizeBytes() int { return ConfigStructSize(c.Version) }

// MarshalBytes implements marshal.Marshaller.MarshalBytes.
func (c *ConfigStruct) MarshalBytes(dst []byte) []byte {
	dst = c.PipeConfig.MarshalBytes(dst)
	dst = c.OutputConfig.MarshalBytes(dst)
	dst = c.OutputSurfaceConfig.MarshalBytes(dst)
	dst = c.OutColorMatrixStruct.MarshalBytes(dst)
	for i := range c.ClearRectStruct {
		dst = c.ClearRectStruct[i].MarshalBytes(dst)
	}
	for i := 0; i < c.Version.Slots(); i++ {
		dst = c.SlotStruct[i].MarshalBytes(dst)
	}
	return dst
}
