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

// Package nvdec defines the NVDEC (NVC5B0 class) method interface and the
// picture setup descriptors the decoder firmware reads from memory.
//
// Descriptors are plain Go values. MarshalBytes lays them out exactly as the
// firmware expects: little-endian, C structure order, C bit fields packed
// from the least significant bit.
package nvdec

import "encoding/binary"

var byteOrder = binary.LittleEndian

// NVC5B0 methods. Offsets are byte offsets; the command stream carries
// offset >> 2.
const (
	SET_APPLICATION_ID           = 0x200
	EXECUTE                      = 0x300
	SET_CONTROL_PARAMS           = 0x400
	SET_DRV_PIC_SETUP_OFFSET     = 0x404
	SET_IN_BUF_BASE_OFFSET       = 0x408
	SET_PICTURE_INDEX            = 0x40C
	SET_SLICE_OFFSETS_BUF_OFFSET = 0x410
	SET_COLOC_DATA_OFFSET        = 0x414
	SET_HISTORY_OFFSET           = 0x418
	SET_DISPLAY_BUF_SIZE         = 0x41C
	SET_HISTOGRAM_OFFSET         = 0x420
	SET_NVDEC_STATUS_OFFSET      = 0x424
	SET_PICTURE_LUMA_OFFSET0     = 0x430
	SET_PICTURE_CHROMA_OFFSET0   = 0x474
)

// NumPictureSlots is the number of picture surface slots the engine can
// address: SET_PICTURE_LUMA_OFFSET0..16.
const NumPictureSlots = 17

// PictureLumaOffset returns the SET_PICTURE_LUMA_OFFSET method for slot.
func PictureLumaOffset(slot int) uint32 {
	return SET_PICTURE_LUMA_OFFSET0 + 4*uint32(slot)
}

// PictureChromaOffset returns the SET_PICTURE_CHROMA_OFFSET method for slot.
func PictureChromaOffset(slot int) uint32 {
	return SET_PICTURE_CHROMA_OFFSET0 + 4*uint32(slot)
}

// SET_APPLICATION_ID arguments.
const (
	APPLICATION_ID_MPEG12 = 1
	APPLICATION_ID_VC1    = 2
	APPLICATION_ID_H264   = 3
	APPLICATION_ID_MPEG4  = 4
	APPLICATION_ID_VP8    = 5
	APPLICATION_ID_HEVC   = 7
	APPLICATION_ID_VP9    = 9
)

// EXECUTE arguments.
const (
	EXECUTE_NOTIFY_ENABLE = 1 << 0
	EXECUTE_AWAKEN_ENABLE = 1 << 8
)

// SET_CONTROL_PARAMS fields.
const (
	CONTROL_PARAMS_CODEC_TYPE_MPEG1 = 0
	CONTROL_PARAMS_CODEC_TYPE_MPEG2 = 1
	CONTROL_PARAMS_CODEC_TYPE_VC1   = 2
	CONTROL_PARAMS_CODEC_TYPE_H264  = 3

	CONTROL_PARAMS_GPTIMER_ON                       = 1 << 4
	CONTROL_PARAMS_RET_ERROR                        = 1 << 5
	CONTROL_PARAMS_ERR_CONCEAL_ON                   = 1 << 6
	CONTROL_PARAMS_MBTIMER_ON                       = 1 << 13
	CONTROL_PARAMS_EC_INTRA_FRAME_USING_PSLC        = 1 << 14
	CONTROL_PARAMS_ALL_INTRA_FRAME                  = 1 << 17
	controlParamsErrorFrameIndexShift               = 7
	controlParamsErrorFrameIndexMask         uint32 = 0x3f
)

// ControlParamsErrorFrameIndex encodes the ERROR_FRM_IDX field.
func ControlParamsErrorFrameIndex(idx uint32) uint32 {
	return (idx & controlParamsErrorFrameIndexMask) << controlParamsErrorFrameIndexShift
}

// HistogramPlaceholder is written to SET_HISTOGRAM_OFFSET when no histogram
// buffer is bound. The engine does not write the histogram unless
// displayPara.enableHistogram is set.
const HistogramPlaceholder = 0xdead1400
