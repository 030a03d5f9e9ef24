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
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// marshal serializes m into a buffer with a guard tail and checks that
// MarshalBytes consumed exactly SizeBytes.
func marshal(t *testing.T, m interface {
	SizeBytes() int
	MarshalBytes([]byte) []byte
}) []byte {
	t.Helper()
	buf := make([]byte, m.SizeBytes()+8)
	for i := range buf {
		buf[i] = 0xa5
	}
	rest := m.MarshalBytes(buf)
	if len(rest) != 8 {
		t.Fatalf("MarshalBytes consumed %d bytes, want %d", len(buf)-len(rest), m.SizeBytes())
	}
	return buf[:m.SizeBytes()]
}

func TestMPEG2Layout(t *testing.T) {
	p := MPEG2PicSetup{
		StreamLen:           0x1234,
		SliceCount:          3,
		FrameWidth:          720,
		FrameHeight:         576,
		PictureStructure:    3,
		PictureCodingType:   2,
		IntraDCPrecision:    1,
		FramePredFrameDCT:   1,
		IntraVLCFormat:      1,
		TileFormat:          1,
		GOBHeight:           2,
		FCode:               [4]int8{1, 2, 3, 4},
		PicWidthInMbs:       45,
		FrameHeightInMbs:    36,
		PitchLuma:           768,
		PitchChroma:         768,
		SecondField:         1,
		FullPelBwdVector:    1,
		RefMemoryLayout:     [2]uint32{5, 6},
		QuantMat8x8Intra:    [64]uint8{0: 8, 63: 83},
		QuantMat8x8NonIntra: [64]uint8{0: 16},
	}
	b := marshal(t, &p)
	le := binary.LittleEndian
	for _, tc := range []struct {
		name string
		got  uint64
		want uint64
	}{
		{"stream_len", uint64(le.Uint32(b[72:])), 0x1234},
		{"slice_count", uint64(le.Uint32(b[76:])), 3},
		{"FrameWidth", uint64(le.Uint16(b[84:])), 720},
		{"FrameHeight", uint64(le.Uint16(b[86:])), 576},
		{"picture_structure", uint64(b[88]), 3},
		{"picture_coding_type", uint64(b[89]), 2},
		{"intra_dc_precision", uint64(b[90]), 1},
		{"frame_pred_frame_dct", uint64(b[91]), 1},
		{"intra_vlc_format", uint64(b[93]), 1},
		{"tileFormat|gob_height", uint64(b[94]), 1 | 2<<2},
		{"f_code[0]", uint64(b[96]), 1},
		{"f_code[3]", uint64(b[99]), 4},
		{"PicWidthInMbs", uint64(le.Uint16(b[100:])), 45},
		{"FrameHeightInMbs", uint64(le.Uint16(b[102:])), 36},
		{"pitch_luma", uint64(le.Uint32(b[104:])), 768},
		{"pitch_chroma", uint64(le.Uint32(b[108:])), 768},
		{"secondfield", uint64(le.Uint16(b[144:])), 1},
		{"full_pel_bwd_vector", uint64(le.Uint32(b[164:])), 1},
		{"quant_mat_8x8intra[0]", uint64(b[168]), 8},
		{"quant_mat_8x8intra[63]", uint64(b[231]), 83},
		{"quant_mat_8x8nonintra[0]", uint64(b[232]), 16},
		{"ref_memory_layout[1]", uint64(le.Uint32(b[300:])), 6},
	} {
		if tc.got != tc.want {
			t.Errorf("%s: got %#x, want %#x", tc.name, tc.got, tc.want)
		}
	}
}

func TestH264Layout(t *testing.T) {
	p := H264PicSetup{
		SliceCount:              2,
		PicWidthInMbs:           120,
		FrameHeightInMbs:        68,
		FrameMbsOnlyFlag:        1,
		NumRefIdxL0ActiveMinus1: 2,
		Transform8x8ModeFlag:    1,
		PitchLuma:               2048,
		RefPicFlag:              true,
		Log2MaxFrameNumMinus4:   5,
		ChromaFormatIdc:         1,
		PicInitQPMinus26:        -3,
		ChromaQPIndexOffset:     -2,
		CurrPicIdx:              4,
		CurrColIdx:              4,
		FrameNum:                0xbeef,
		CurrFieldOrderCnt:       [2]int32{10, 11},
	}
	p.DPB[1] = DPBEntry{Index: 3, ColIdx: 3, State: DPBStateFrameRef, IsLongTerm: true, FieldOrderCnt: [2]uint32{6, 7}, FrameIdx: 9}
	p.WeightScale[0][0][0] = 16
	p.WeightScale8x8[1][7][7] = 99
	p.DisplayPara.OutputTop = [2]int32{1, 2}

	b := marshal(t, &p)
	le := binary.LittleEndian
	word1 := le.Uint32(b[176:])
	word2 := le.Uint32(b[180:])
	dpb1 := le.Uint32(b[192+16:])
	for _, tc := range []struct {
		name string
		got  uint32
		want uint32
	}{
		{"slice_count", le.Uint32(b[76:]), 2},
		{"frame_mbs_only_flag", le.Uint32(b[96:]), 1},
		{"PicWidthInMbs", le.Uint32(b[100:]), 120},
		{"FrameHeightInMbs", le.Uint32(b[104:]), 68},
		{"num_ref_idx_l0_active_minus1", le.Uint32(b[120:]), 2},
		{"transform_8x8_mode_flag", le.Uint32(b[136:]), 1},
		{"pitch_luma", le.Uint32(b[140:]), 2048},
		{"ref_pic_flag", word1 >> 4 & 1, 1},
		{"log2_max_frame_num_minus4", word1 >> 8 & 0xf, 5},
		{"chroma_format_idc", word1 >> 12 & 3, 1},
		{"pic_init_qp_minus26", word1 >> 16 & 0x3f, 0x3d},
		{"chroma_qp_index_offset", word1 >> 22 & 0x1f, 0x1e},
		{"CurrPicIdx", word2 >> 2 & 0x7f, 4},
		{"CurrColIdx", word2 >> 9 & 0x1f, 4},
		{"frame_num", word2 >> 14 & 0xffff, 0xbeef},
		{"CurrFieldOrderCnt[1]", le.Uint32(b[188:]), 11},
		{"dpb[1].index", dpb1 & 0x7f, 3},
		{"dpb[1].col_idx", dpb1 >> 7 & 0x1f, 3},
		{"dpb[1].state", dpb1 >> 12 & 3, 3},
		{"dpb[1].is_long_term", dpb1 >> 14 & 1, 1},
		{"dpb[1].FieldOrderCnt[1]", le.Uint32(b[192+16+8:]), 7},
		{"dpb[1].FrameIdx", le.Uint32(b[192+16+12:]), 9},
		{"WeightScale[0][0][0]", uint32(b[448]), 16},
		{"WeightScale8x8[1][7][7]", uint32(b[671]), 99},
		{"displayPara.OutputTop[1]", le.Uint32(b[724+8:]), 2},
	} {
		if tc.got != tc.want {
			t.Errorf("%s: got %#x, want %#x", tc.name, tc.got, tc.want)
		}
	}
}

func TestDisplayParamLayout(t *testing.T) {
	d := DisplayParam{
		EnableTFOutput:  true,
		OutStride:       0xff,
		TilingFormat:    2,
		OutputBottom:    [2]int32{-1, 5},
		EnableHistogram: true,
		HistogramStartX: 0xfff,
		HistogramEndY:   0x123,
	}
	b := marshal(t, &d)
	le := binary.LittleEndian
	if got, want := le.Uint32(b[0:]), uint32(1|0xff<<9|2<<17); got != want {
		t.Errorf("word 0: got %#x, want %#x", got, want)
	}
	if got, want := int32(le.Uint32(b[12:])), int32(-1); got != want {
		t.Errorf("OutputBottom[0]: got %d, want %d", got, want)
	}
	if got, want := le.Uint32(b[20:]), uint32(1|0xfff<<1); got != want {
		t.Errorf("histogram start word: got %#x, want %#x", got, want)
	}
	if got, want := le.Uint32(b[24:]), uint32(0x123<<12); got != want {
		t.Errorf("histogram end word: got %#x, want %#x", got, want)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	want := Status{MbsCorrectlyDecoded: 1620, MbsInError: 2, ErrorStatus: 0x10, SliceHeaderErrorCode: 7}
	want.CodecStatus[8] = 0xabcd
	b := marshal(t, &want)
	var got Status
	if rest := got.UnmarshalBytes(b); len(rest) != 0 {
		t.Errorf("UnmarshalBytes left %d bytes", len(rest))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
	if !got.Failed() {
		t.Errorf("Failed() = false for damaged picture")
	}
	if (&Status{MbsCorrectlyDecoded: 10}).Failed() {
		t.Errorf("Failed() = true for clean picture")
	}
}

func TestMethods(t *testing.T) {
	if got := PictureLumaOffset(16); got != 0x470 {
		t.Errorf("PictureLumaOffset(16): got %#x, want 0x470", got)
	}
	if got := PictureChromaOffset(2); got != 0x47c {
		t.Errorf("PictureChromaOffset(2): got %#x, want 0x47c", got)
	}
	if got := ControlParamsErrorFrameIndex(0); got != 0 {
		t.Errorf("ControlParamsErrorFrameIndex(0): got %#x", got)
	}
	if got := ControlParamsErrorFrameIndex(3); got != 3<<7 {
		t.Errorf("ControlParamsErrorFrameIndex(3): got %#x", got)
	}
}
