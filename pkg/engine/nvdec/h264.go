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

// Reference field markings of a DPB entry.
const (
	markingShortTerm = 1
	markingLongTerm  = 2
)

// colocSize returns the size of the co-located motion vector buffer for a
// frame of mbs macroblocks: one 64 byte record per macroblock for each
// picture slot.
func colocSize(mbs uint32) uint64 {
	return bits.AlignUp(uint64(mbs)*64*nvdecabi.NumPictureSlots, 0x100)
}

// historySize returns the size of the intra prediction history buffer for a
// frame widthInMbs macroblocks wide.
func historySize(widthInMbs uint32) uint64 {
	return bits.AlignUp(uint64(widthInMbs)*0x200, 0x100)
}

func dpbEntry(slot int, ref *H264Picture) nvdecabi.DPBEntry {
	e := nvdecabi.DPBEntry{
		Index:         uint8(slot),
		ColIdx:        uint8(slot),
		IsLongTerm:    ref.LongTerm,
		IsField:       ref.TopField != ref.BottomField,
		FieldOrderCnt: [2]uint32{uint32(ref.TopFieldOrderCnt), uint32(ref.BottomFieldOrderCnt)},
		FrameIdx:      ref.FrameIdx,
	}
	marking := uint8(markingShortTerm)
	if ref.LongTerm {
		marking = markingLongTerm
	}
	switch {
	case ref.TopField && !ref.BottomField:
		e.State = nvdecabi.DPBStateTopRef
		e.TopFieldMarking = marking
	case ref.BottomField && !ref.TopField:
		e.State = nvdecabi.DPBStateBottomRef
		e.BottomFieldMarking = marking
	default:
		e.State = nvdecabi.DPBStateFrameRef
		e.TopFieldMarking = marking
		e.BottomFieldMarking = marking
	}
	return e
}

// h264Setup translates op into the H.264 picture setup descriptor. slot is
// the current picture's slot and refSlots holds the slot of each entry of
// op.H264.References, or -1 for references without one, whose DPB entries
// stay empty.
func h264Setup(op *Op, slot int, secondField bool, refSlots []int) *nvdecabi.H264PicSetup {
	h := &op.H264
	c := &nvdecabi.H264PicSetup{
		StreamLen:                   op.SliceDataLength,
		SliceCount:                  op.NumSlices,
		Log2MaxPicOrderCntLsbMinus4: int32(h.Log2MaxPicOrderCntLsbMinus4),
		DeltaPicOrderAlwaysZeroFlag: int32(b2u32(h.DeltaPicOrderAlwaysZeroFlag)),
		FrameMbsOnlyFlag:            int32(b2u32(h.FrameMbsOnlyFlag)),
		PicWidthInMbs:               int32(h.WidthInMbs),
		FrameHeightInMbs:            int32(h.HeightInMbs),

		EntropyCodingModeFlag:              int32(b2u32(h.EntropyCodingModeFlag)),
		PicOrderPresentFlag:                int32(b2u32(h.PicOrderPresentFlag)),
		NumRefIdxL0ActiveMinus1:            int32(h.NumRefIdxL0ActiveMinus1),
		NumRefIdxL1ActiveMinus1:            int32(h.NumRefIdxL1ActiveMinus1),
		DeblockingFilterControlPresentFlag: int32(b2u32(h.DeblockingFilterControlPresentFlag)),
		RedundantPicCntPresentFlag:         int32(b2u32(h.RedundantPicCntPresentFlag)),
		Transform8x8ModeFlag:               int32(b2u32(h.Transform8x8ModeFlag)),

		PitchLuma:      op.Output.Pitch,
		PitchChroma:    op.Output.Pitch,
		HistBufferSize: uint32(historySize(uint32(h.WidthInMbs)) >> 8),

		MbaffFrameFlag:            h.MbAdaptiveFrameFieldFlag && !h.FieldPicFlag,
		Direct8x8InferenceFlag:    h.Direct8x8InferenceFlag,
		WeightedPredFlag:          h.WeightedPredFlag,
		ConstrainedIntraPredFlag:  h.ConstrainedIntraPredFlag,
		RefPicFlag:                h.ReferencePicFlag,
		FieldPicFlag:              h.FieldPicFlag,
		BottomFieldFlag:           h.FieldPicFlag && h.CurrPic.BottomField && !h.CurrPic.TopField,
		SecondField:               h.FieldPicFlag && secondField,
		Log2MaxFrameNumMinus4:     h.Log2MaxFrameNumMinus4,
		ChromaFormatIdc:           h.ChromaFormatIdc,
		PicOrderCntType:           h.PicOrderCntType,
		PicInitQPMinus26:          h.PicInitQPMinus26,
		ChromaQPIndexOffset:       h.ChromaQPIndexOffset,
		SecondChromaQPIndexOffset: h.SecondChromaQPIndexOffset,

		WeightedBipredIdc: h.WeightedBipredIdc,
		CurrPicIdx:        uint8(slot),
		CurrColIdx:        uint8(slot),
		FrameNum:          h.FrameNum,

		CurrFieldOrderCnt: [2]int32{h.CurrPic.TopFieldOrderCnt, h.CurrPic.BottomFieldOrderCnt},
	}
	for i, s := range refSlots {
		if i >= len(c.DPB) {
			break
		}
		if s >= 0 {
			c.DPB[i] = dpbEntry(s, &h.References[i])
		}
	}
	for i := range h.ScalingList4x4 {
		for j, v := range h.ScalingList4x4[i] {
			c.WeightScale[i][j/4][j%4] = v
		}
	}
	for i := range h.ScalingList8x8 {
		for j, v := range h.ScalingList8x8[i] {
			c.WeightScale8x8[i][j/8][j%8] = v
		}
	}
	return c
}
