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

import (
	nvdecabi "gvisor.dev/tegravid/pkg/abi/nvdec"
	"gvisor.dev/tegravid/pkg/bits"
)

// Default quantiser matrices of ISO/IEC 13818-2 6.3.11, in the order the
// engine reads them.
var (
	defaultIntraQuant = [64]uint8{
		8, 16, 19, 22, 26, 27, 29, 34,
		16, 16, 22, 24, 27, 29, 34, 37,
		19, 22, 26, 27, 29, 34, 34, 38,
		22, 22, 26, 27, 29, 34, 37, 40,
		22, 26, 27, 29, 32, 35, 40, 48,
		26, 27, 29, 32, 35, 40, 48, 58,
		26, 27, 29, 34, 38, 46, 56, 69,
		27, 29, 35, 38, 46, 56, 69, 83,
	}
	defaultNonIntraQuant = [64]uint8{
		16, 16, 16, 16, 16, 16, 16, 16,
		16, 16, 16, 16, 16, 16, 16, 16,
		16, 16, 16, 16, 16, 16, 16, 16,
		16, 16, 16, 16, 16, 16, 16, 16,
		16, 16, 16, 16, 16, 16, 16, 16,
		16, 16, 16, 16, 16, 16, 16, 16,
		16, 16, 16, 16, 16, 16, 16, 16,
		16, 16, 16, 16, 16, 16, 16, 16,
	}
)

func b2i8(b bool) int8 {
	if b {
		return 1
	}
	return 0
}

func b2u16(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

func b2u32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// mpeg2Setup translates op into the MPEG-2 picture setup descriptor.
func mpeg2Setup(op *Op) *nvdecabi.MPEG2PicSetup {
	pic := &op.MPEG2.Picture
	q := &op.MPEG2.Quant
	c := &nvdecabi.MPEG2PicSetup{
		StreamLen:                op.SliceDataLength,
		SliceCount:               op.NumSlices,
		FrameWidth:               pic.HorizontalSize,
		FrameHeight:              pic.VerticalSize,
		PictureStructure:         pic.PictureStructure,
		PictureCodingType:        pic.PictureCodingType,
		IntraDCPrecision:         pic.IntraDCPrecision,
		FramePredFrameDCT:        b2i8(pic.FramePredFrameDCT),
		ConcealmentMotionVectors: b2i8(pic.ConcealmentMotionVectors),
		IntraVLCFormat:           b2i8(pic.IntraVLCFormat),
		FCode: [4]int8{
			int8(pic.FCode>>12) & 0xf,
			int8(pic.FCode>>8) & 0xf,
			int8(pic.FCode>>4) & 0xf,
			int8(pic.FCode) & 0xf,
		},
		PicWidthInMbs:    uint16(bits.AlignUp32(uint32(pic.HorizontalSize), 16) >> 4),
		FrameHeightInMbs: uint16(bits.AlignUp32(uint32(pic.VerticalSize), 16) >> 4),
		PitchLuma:        op.Output.Pitch,
		PitchChroma:      op.Output.Pitch,
		AlternateScan:    b2u16(pic.AlternateScan),
		SecondField:      b2u16(pic.PictureStructure != MPEG2PictureStructureFrame && !pic.IsFirstField),
		QScaleType:       b2u32(pic.QScaleType),
		TopFieldFirst:    b2u32(pic.TopFieldFirst),
	}
	if q.LoadIntra {
		c.QuantMat8x8Intra = q.Intra
	} else {
		c.QuantMat8x8Intra = defaultIntraQuant
	}
	if q.LoadNonIntra {
		c.QuantMat8x8NonIntra = q.NonIntra
	} else {
		c.QuantMat8x8NonIntra = defaultNonIntraQuant
	}
	return c
}
