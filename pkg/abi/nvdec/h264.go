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

import "gvisor.dev/tegravid/pkg/bits"

// DPBEntry is nvdec_dpb_entry_s, one decoded picture buffer entry of the
// H.264 descriptor.
type DPBEntry struct {
	Index              uint8 // 7 bits, picture slot
	ColIdx             uint8 // 5 bits, co-located buffer index
	State              uint8 // 2 bits: bit 0 top, bit 1 bottom used for reference
	IsLongTerm         bool
	NotExisting        bool
	IsField            bool
	TopFieldMarking    uint8 // 4 bits
	BottomFieldMarking uint8 // 4 bits
	OutputMemoryLayout uint8 // 1 bit
	FieldOrderCnt      [2]uint32
	FrameIdx           int32
}

// DPB entry state bits.
const (
	DPBStateTopRef    = 1 << 0
	DPBStateBottomRef = 1 << 1
	DPBStateFrameRef  = DPBStateTopRef | DPBStateBottomRef
)

var (
	dpbIndex              = bits.Field32{Offset: 0, Width: 7}
	dpbColIdx             = bits.Field32{Offset: 7, Width: 5}
	dpbState              = bits.Field32{Offset: 12, Width: 2}
	dpbIsLongTerm         = bits.Field32{Offset: 14, Width: 1}
	dpbNotExisting        = bits.Field32{Offset: 15, Width: 1}
	dpbIsField            = bits.Field32{Offset: 16, Width: 1}
	dpbTopFieldMarking    = bits.Field32{Offset: 17, Width: 4}
	dpbBottomFieldMarking = bits.Field32{Offset: 21, Width: 4}
	dpbOutputMemoryLayout = bits.Field32{Offset: 25, Width: 1}
)

// SizeBytes implements marshal.Marshaller.SizeBytes.
func (*DPBEntry) SizeBytes() int {
	return 16
}

// MarshalBytes implements marshal.Marshaller.MarshalBytes.
func (e *DPBEntry) MarshalBytes(dst []byte) []byte {
	w := dst[:4]
	clear(w)
	dpbIndex.Put(w, uint32(e.Index))
	dpbColIdx.Put(w, uint32(e.ColIdx))
	dpbState.Put(w, uint32(e.State))
	dpbIsLongTerm.Put(w, b2u(e.IsLongTerm))
	dpbNotExisting.Put(w, b2u(e.NotExisting))
	dpbIsField.Put(w, b2u(e.IsField))
	dpbTopFieldMarking.Put(w, uint32(e.TopFieldMarking))
	dpbBottomFieldMarking.Put(w, uint32(e.BottomFieldMarking))
	dpbOutputMemoryLayout.Put(w, uint32(e.OutputMemoryLayout))
	dst = putUint32s(dst[4:], e.FieldOrderCnt[:])
	return putUint32(dst, uint32(e.FrameIdx))
}

// H264PicSetup is nvdec_h264_pic_s, the H.264 picture setup descriptor
// referenced by SET_DRV_PIC_SETUP_OFFSET.
type H264PicSetup struct {
	Reserved0              [13]uint32
	EOS                    [16]uint8
	ExplicitEOSPresentFlag uint8
	HintDumpEn             uint8
	Reserved1              [2]uint8
	StreamLen              uint32
	SliceCount             uint32
	MBHistBufferSize       uint32
	GPTimerTimeoutValue    uint32

	Log2MaxPicOrderCntLsbMinus4 int32
	DeltaPicOrderAlwaysZeroFlag int32
	FrameMbsOnlyFlag            int32
	PicWidthInMbs               int32
	FrameHeightInMbs            int32

	TileFormat uint8 // 2 bits
	GOBHeight  uint8 // 3 bits

	EntropyCodingModeFlag              int32
	PicOrderPresentFlag                int32
	NumRefIdxL0ActiveMinus1            int32
	NumRefIdxL1ActiveMinus1            int32
	DeblockingFilterControlPresentFlag int32
	RedundantPicCntPresentFlag         int32
	Transform8x8ModeFlag               int32

	PitchLuma         uint32
	PitchChroma       uint32
	LumaTopOffset     uint32
	LumaBotOffset     uint32
	LumaFrameOffset   uint32
	ChromaTopOffset   uint32
	ChromaBotOffset   uint32
	ChromaFrameOffset uint32
	HistBufferSize    uint32

	MbaffFrameFlag            bool
	Direct8x8InferenceFlag    bool
	WeightedPredFlag          bool
	ConstrainedIntraPredFlag  bool
	RefPicFlag                bool
	FieldPicFlag              bool
	BottomFieldFlag           bool
	SecondField               bool
	Log2MaxFrameNumMinus4     uint8 // 4 bits
	ChromaFormatIdc           uint8 // 2 bits
	PicOrderCntType           uint8 // 2 bits
	PicInitQPMinus26          int8  // 6 bits signed
	ChromaQPIndexOffset       int8  // 5 bits signed
	SecondChromaQPIndexOffset int8  // 5 bits signed

	WeightedBipredIdc  uint8  // 2 bits
	CurrPicIdx         uint8  // 7 bits
	CurrColIdx         uint8  // 5 bits
	FrameNum           uint16 // 16 bits
	FrameSurfaces      bool
	OutputMemoryLayout uint8 // 1 bit

	CurrFieldOrderCnt [2]int32
	DPB               [16]DPBEntry
	WeightScale       [6][4][4]uint8
	WeightScale8x8    [2][8][8]uint8

	NumInterViewRefsLX [2]uint8
	InterViewRefIdxLX  [2][16]int8

	LosslessIPred8x8FilterEnable    bool
	QPPrimeYZeroTransformBypassFlag bool

	DisplayPara DisplayParam
}

// H264PicSetupSize is sizeof(nvdec_h264_pic_s).
const H264PicSetupSize = 768

var (
	h264TileFormat = bits.Field32{Offset: 0, Width: 2}
	h264GOBHeight  = bits.Field32{Offset: 2, Width: 3}

	h264MbaffFrameFlag            = bits.Field32{Offset: 0, Width: 1}
	h264Direct8x8InferenceFlag    = bits.Field32{Offset: 1, Width: 1}
	h264WeightedPredFlag          = bits.Field32{Offset: 2, Width: 1}
	h264ConstrainedIntraPredFlag  = bits.Field32{Offset: 3, Width: 1}
	h264RefPicFlag                = bits.Field32{Offset: 4, Width: 1}
	h264FieldPicFlag              = bits.Field32{Offset: 5, Width: 1}
	h264BottomFieldFlag           = bits.Field32{Offset: 6, Width: 1}
	h264SecondField               = bits.Field32{Offset: 7, Width: 1}
	h264Log2MaxFrameNumMinus4     = bits.Field32{Offset: 8, Width: 4}
	h264ChromaFormatIdc           = bits.Field32{Offset: 12, Width: 2}
	h264PicOrderCntType           = bits.Field32{Offset: 14, Width: 2}
	h264PicInitQPMinus26          = bits.Field32{Offset: 16, Width: 6}
	h264ChromaQPIndexOffset       = bits.Field32{Offset: 22, Width: 5}
	h264SecondChromaQPIndexOffset = bits.Field32{Offset: 27, Width: 5}

	h264WeightedBipredIdc  = bits.Field32{Offset: 0, Width: 2}
	h264CurrPicIdx         = bits.Field32{Offset: 2, Width: 7}
	h264CurrColIdx         = bits.Field32{Offset: 9, Width: 5}
	h264FrameNum           = bits.Field32{Offset: 14, Width: 16}
	h264FrameSurfaces      = bits.Field32{Offset: 30, Width: 1}
	h264OutputMemoryLayout = bits.Field32{Offset: 31, Width: 1}

	h264LosslessIPred8x8FilterEnable    = bits.Field32{Offset: 0, Width: 1}
	h264QPPrimeYZeroTransformBypassFlag = bits.Field32{Offset: 1, Width: 1}
)

// SizeBytes implements marshal.Marshaller.SizeBytes.
func (*H264PicSetup) SizeBytes() int {
	return H264PicSetupSize
}

// MarshalBytes implements marshal.Marshaller.MarshalBytes.
func (p *H264PicSetup) MarshalBytes(dst []byte) []byte {
	dst = putUint32s(dst, p.Reserved0[:])
	dst = putBytes(dst, p.EOS[:])
	dst[0] = p.ExplicitEOSPresentFlag
	dst[1] = p.HintDumpEn
	dst = putBytes(dst[2:], p.Reserved1[:])
	dst = putUint32s(dst, []uint32{
		p.StreamLen,
		p.SliceCount,
		p.MBHistBufferSize,
		p.GPTimerTimeoutValue,
	})

	dst = putInt32s(dst, []int32{
		p.Log2MaxPicOrderCntLsbMinus4,
		p.DeltaPicOrderAlwaysZeroFlag,
		p.FrameMbsOnlyFlag,
		p.PicWidthInMbs,
		p.FrameHeightInMbs,
	})

	w := dst[:4]
	clear(w)
	h264TileFormat.Put(w, uint32(p.TileFormat))
	h264GOBHeight.Put(w, uint32(p.GOBHeight))
	dst = dst[4:]

	dst = putInt32s(dst, []int32{
		p.EntropyCodingModeFlag,
		p.PicOrderPresentFlag,
		p.NumRefIdxL0ActiveMinus1,
		p.NumRefIdxL1ActiveMinus1,
		p.DeblockingFilterControlPresentFlag,
		p.RedundantPicCntPresentFlag,
		p.Transform8x8ModeFlag,
	})

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

	w = dst[:8]
	clear(w)
	h264MbaffFrameFlag.Put(w, b2u(p.MbaffFrameFlag))
	h264Direct8x8InferenceFlag.Put(w, b2u(p.Direct8x8InferenceFlag))
	h264WeightedPredFlag.Put(w, b2u(p.WeightedPredFlag))
	h264ConstrainedIntraPredFlag.Put(w, b2u(p.ConstrainedIntraPredFlag))
	h264RefPicFlag.Put(w, b2u(p.RefPicFlag))
	h264FieldPicFlag.Put(w, b2u(p.FieldPicFlag))
	h264BottomFieldFlag.Put(w, b2u(p.BottomFieldFlag))
	h264SecondField.Put(w, b2u(p.SecondField))
	h264Log2MaxFrameNumMinus4.Put(w, uint32(p.Log2MaxFrameNumMinus4))
	h264ChromaFormatIdc.Put(w, uint32(p.ChromaFormatIdc))
	h264PicOrderCntType.Put(w, uint32(p.PicOrderCntType))
	// Signed bit fields store the two's complement truncated to width.
	h264PicInitQPMinus26.Put(w, uint32(int32(p.PicInitQPMinus26)))
	h264ChromaQPIndexOffset.Put(w, uint32(int32(p.ChromaQPIndexOffset)))
	h264SecondChromaQPIndexOffset.Put(w, uint32(int32(p.SecondChromaQPIndexOffset)))
	w2 := w[4:]
	h264WeightedBipredIdc.Put(w2, uint32(p.WeightedBipredIdc))
	h264CurrPicIdx.Put(w2, uint32(p.CurrPicIdx))
	h264CurrColIdx.Put(w2, uint32(p.CurrColIdx))
	h264FrameNum.Put(w2, uint32(p.FrameNum))
	h264FrameSurfaces.Put(w2, b2u(p.FrameSurfaces))
	h264OutputMemoryLayout.Put(w2, uint32(p.OutputMemoryLayout))
	dst = dst[8:]

	dst = putInt32s(dst, p.CurrFieldOrderCnt[:])
	for i := range p.DPB {
		dst = p.DPB[i].MarshalBytes(dst)
	}
	for i := range p.WeightScale {
		for j := range p.WeightScale[i] {
			dst = putBytes(dst, p.WeightScale[i][j][:])
		}
	}
	for i := range p.WeightScale8x8 {
		for j := range p.WeightScale8x8[i] {
			dst = putBytes(dst, p.WeightScale8x8[i][j][:])
		}
	}

	dst = putBytes(dst, p.NumInterViewRefsLX[:])
	clear(dst[:14])
	dst = dst[14:]
	for i := range p.InterViewRefIdxLX {
		for j, v := range p.InterViewRefIdxLX[i] {
			dst[j] = uint8(v)
		}
		dst = dst[16:]
	}

	w = dst[:4]
	clear(w)
	h264LosslessIPred8x8FilterEnable.Put(w, b2u(p.LosslessIPred8x8FilterEnable))
	h264QPPrimeYZeroTransformBypassFlag.Put(w, b2u(p.QPPrimeYZeroTransformBypassFlag))
	dst = dst[4:]

	dst = p.DisplayPara.MarshalBytes(dst)

	// nvdec_pass2_otf_ext_s, unused.
	clear(dst[:16])
	return dst[16:]
}
