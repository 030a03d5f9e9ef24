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

package nvdec

// MPEG2PicSetup is nvdec_mpeg2_pic_s, the MPEG-1/2 picture setup descriptor
// referenced by SET_DRV_PIC_SETUP_OFFSET.
type MPEG2PicSetup struct {
	Reserved0              [13]uint32
	EOS                    [16]uint8
	ExplicitEOSPresentFlag uint8
	Reserved1              [3]uint8
	StreamLen              uint32
	SliceCount             uint32
	GPTimerTimeoutValue    uint32

	FrameWidth               uint16
	FrameHeight              uint16
	PictureStructure         uint8
	PictureCodingType        uint8
	IntraDCPrecision         uint8
	FramePredFrameDCT        int8
	ConcealmentMotionVectors int8
	IntraVLCFormat           int8
	TileFormat               uint8 // 2 bits
	GOBHeight                uint8 // 3 bits
	Reserved2                int8
	FCode                    [4]int8

	PicWidthInMbs     uint16
	FrameHeightInMbs  uint16
	PitchLuma         uint32
	PitchChroma       uint32
	LumaTopOffset     uint32
	LumaBotOffset     uint32
	LumaFrameOffset   uint32
	ChromaTopOffset   uint32
	ChromaBotOffset   uint32
	ChromaFrameOffset uint32
	HistBufferSize    uint32

	OutputMemoryLayout uint16
	AlternateScan      uint16
	SecondField        uint16
	RoundingType       uint16
	MbInfoSizeInBytes  uint32
	QScaleType         uint32
	TopFieldFirst      uint32
	FullPelFwdVector   uint32
	FullPelBwdVector   uint32

	QuantMat8x8Intra    [64]uint8
	QuantMat8x8NonIntra [64]uint8
	RefMemoryLayout     [2]uint32

	DisplayPara DisplayParam
	Reserved3   [3]uint32
}

// MPEG2PicSetupSize is sizeof(nvdec_mpeg2_pic_s).
const MPEG2PicSetupSize = 344

// SizeBytes implements marshal.Marshaller.SizeBytes.
func (*MPEG2PicSetup) SizeBytes() int {
	return MPEG2PicSetupSize
}

// MarshalBytes implements marshal.Marshaller.MarshalBytes.
func (p *MPEG2PicSetup) MarshalBytes(dst []byte) []byte {
	dst = putUint32s(dst, p.Reserved0[:])
	dst = putBytes(dst, p.EOS[:])
	dst[0] = p.ExplicitEOSPresentFlag
	dst = putBytes(dst[1:], p.Reserved1[:])
	dst = putUint32(dst, p.StreamLen)
	dst = putUint32(dst, p.SliceCount)
	dst = putUint32(dst, p.GPTimerTimeoutValue)

	dst = putUint16(dst, p.FrameWidth)
	dst = putUint16(dst, p.FrameHeight)
	dst[0] = p.PictureStructure
	dst[1] = p.PictureCodingType
	dst[2] = p.IntraDCPrecision
	dst[3] = uint8(p.FramePredFrameDCT)
	dst[4] = uint8(p.ConcealmentMotionVectors)
	dst[5] = uint8(p.IntraVLCFormat)
	dst[6] = p.TileFormat&0x3 | (p.GOBHeight&0x7)<<2
	dst[7] = uint8(p.Reserved2)
	dst = dst[8:]
	for i, v := range p.FCode {
		dst[i] = uint8(v)
	}
	dst = dst[4:]

	dst = putUint16(dst, p.PicWidthInMbs)
	dst = putUint16(dst, p.FrameHeightInMbs)
	dst = putUint32s(dst, []uint32{
		p.PitchLuma,
		p.PitchChroma,
		p.LumaTopOffset,
		p.LumaBotOffset,
		p.LumaFrameOffset,
		p.ChromaTopOffset,
		p.ChromaBotOffset,
		p.ChromaFrameOffset,
		p.HistBufferSize,
	})

	dst = putUint16(dst, p.OutputMemoryLayout)
	dst = putUint16(dst, p.AlternateScan)
	dst = putUint16(dst, p.SecondField)
	dst = putUint16(dst, p.RoundingType)
	dst = putUint32s(dst, []uint32{
		p.MbInfoSizeInBytes,
		p.QScaleType,
		p.TopFieldFirst,
		p.FullPelFwdVector,
		p.FullPelBwdVector,
	})

	dst = putBytes(dst, p.QuantMat8x8Intra[:])
	dst = putBytes(dst, p.QuantMat8x8NonIntra[:])
	dst = putUint32s(dst, p.RefMemoryLayout[:])

	dst = p.DisplayPara.MarshalBytes(dst)
	return putUint32s(dst, p.Reserved3[:])
}
