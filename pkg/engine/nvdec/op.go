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
	"fmt"

	"gvisor.dev/tegravid/pkg/drm"
	"gvisor.dev/tegravid/pkg/surface"
)

// Codec selects the bitstream format of an Op.
type Codec int

// Supported codecs.
const (
	CodecMPEG2 Codec = iota + 1
	CodecH264
)

// String implements fmt.Stringer.
func (c Codec) String() string {
	switch c {
	case CodecMPEG2:
		return "mpeg2"
	case CodecH264:
		return "h264"
	default:
		return fmt.Sprintf("Codec(%d)", int(c))
	}
}

// MPEG2Picture holds the MPEG-2 picture header and picture coding extension
// fields of the picture being decoded.
type MPEG2Picture struct {
	HorizontalSize    uint16
	VerticalSize      uint16
	PictureCodingType uint8

	// FCode packs f_code[0][0], [0][1], [1][0] and [1][1] as four nibbles,
	// most significant first.
	FCode uint16

	IntraDCPrecision         uint8
	PictureStructure         uint8
	TopFieldFirst            bool
	FramePredFrameDCT        bool
	ConcealmentMotionVectors bool
	QScaleType               bool
	IntraVLCFormat           bool
	AlternateScan            bool
	IsFirstField             bool
}

// MPEG2PictureStructureFrame is the picture_structure of a frame picture.
const MPEG2PictureStructureFrame = 3

// MPEG2Quant holds quantiser matrices loaded from the stream. Matrices not
// loaded fall back to the defaults of ISO/IEC 13818-2.
type MPEG2Quant struct {
	LoadIntra    bool
	LoadNonIntra bool
	Intra        [64]uint8
	NonIntra     [64]uint8
}

// MPEG2Params is the MPEG-2 part of an Op. Forward and Backward are the
// reference pictures, nil when absent.
type MPEG2Params struct {
	Picture  MPEG2Picture
	Quant    MPEG2Quant
	Forward  *drm.Buffer
	Backward *drm.Buffer
}

// H264Picture identifies a picture of an H.264 stream. ID is the caller's
// identity for the picture and must be unique among pictures in flight.
type H264Picture struct {
	ID                  uint32
	Buffer              *drm.Buffer
	FrameIdx            int32
	TopField            bool
	BottomField         bool
	LongTerm            bool
	TopFieldOrderCnt    int32
	BottomFieldOrderCnt int32
}

// H264MaxReferences is the maximum number of reference frames.
const H264MaxReferences = 16

// H264Params is the H.264 part of an Op: the active sequence and picture
// parameter set fields, the slice header fields the engine needs, and the
// reference list.
type H264Params struct {
	CurrPic    H264Picture
	References []H264Picture

	// Frame size in macroblocks.
	WidthInMbs  uint16
	HeightInMbs uint16

	ChromaFormatIdc             uint8
	FrameMbsOnlyFlag            bool
	MbAdaptiveFrameFieldFlag    bool
	Direct8x8InferenceFlag      bool
	Log2MaxFrameNumMinus4       uint8
	PicOrderCntType             uint8
	Log2MaxPicOrderCntLsbMinus4 uint8
	DeltaPicOrderAlwaysZeroFlag bool

	PicInitQPMinus26                   int8
	ChromaQPIndexOffset                int8
	SecondChromaQPIndexOffset          int8
	EntropyCodingModeFlag              bool
	WeightedPredFlag                   bool
	WeightedBipredIdc                  uint8
	Transform8x8ModeFlag               bool
	FieldPicFlag                       bool
	ConstrainedIntraPredFlag           bool
	PicOrderPresentFlag                bool
	DeblockingFilterControlPresentFlag bool
	RedundantPicCntPresentFlag         bool
	ReferencePicFlag                   bool
	FrameNum                           uint16

	NumRefIdxL0ActiveMinus1 uint8
	NumRefIdxL1ActiveMinus1 uint8

	ScalingList4x4 [6][16]uint8
	ScalingList8x8 [2][64]uint8
}

// Op is one picture to decode. It is built by the caller for each picture
// and not retained by Run.
type Op struct {
	Codec Codec
	MPEG2 MPEG2Params
	H264  H264Params

	// SliceData holds the slices back to back followed by the end of
	// sequence pattern; SliceOffsets holds the byte offset of each slice
	// and of the pattern. See Bitstream.
	SliceData       *drm.Buffer
	SliceDataLength uint32
	NumSlices       uint32
	SliceOffsets    *drm.Buffer

	Output surface.Surface
}
