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
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/tegravid/pkg/drm"
	"gvisor.dev/tegravid/pkg/drm/drmtest"
)

func TestBitstreamMPEG2(t *testing.T) {
	b := NewBitstream(CodecMPEG2)
	b.AddSlice([]byte{0x00, 0x00, 0x01, 0x01, 0xaa})
	b.AddSlice([]byte{0x00, 0x00, 0x01, 0x02, 0xbb, 0xcc})

	want := append([]byte{
		0x00, 0x00, 0x01, 0x01, 0xaa,
		0x00, 0x00, 0x01, 0x02, 0xbb, 0xcc,
	}, mpeg2Terminator[:]...)
	if got := b.Bytes(); !bytes.Equal(got, want) {
		t.Errorf("Bytes: got %x, want %x", got, want)
	}
	if got := b.Len(); got != 11+16 {
		t.Errorf("Len: got %d, want %d", got, 11+16)
	}
	if diff := cmp.Diff([]uint32{0, 5, 11}, b.Offsets()); diff != "" {
		t.Errorf("Offsets mismatch (-want +got):\n%s", diff)
	}
}

func TestBitstreamH264StartCodes(t *testing.T) {
	b := NewBitstream(CodecH264)
	b.AddSlice([]byte{0x65, 0x88})
	b.AddSlice([]byte{0x41})

	want := append([]byte{
		0x00, 0x00, 0x01, 0x65, 0x88,
		0x00, 0x00, 0x01, 0x41,
	}, h264Terminator[:]...)
	if got := b.Bytes(); !bytes.Equal(got, want) {
		t.Errorf("Bytes: got %x, want %x", got, want)
	}
	if diff := cmp.Diff([]uint32{0, 5, 9}, b.Offsets()); diff != "" {
		t.Errorf("Offsets mismatch (-want +got):\n%s", diff)
	}

	b.Reset()
	if b.NumSlices() != 0 || b.Len() != 16 {
		t.Errorf("after Reset: %d slices, %d bytes, want 0 slices, 16 bytes", b.NumSlices(), b.Len())
	}
}

func TestBitstreamUpload(t *testing.T) {
	dev, err := drm.Open(drmtest.NewLegacy(drmtest.SocT210).Options())
	if err != nil {
		t.Fatalf("drm.Open: %v", err)
	}
	defer dev.Close()

	var bufs SliceBuffers
	defer bufs.Close()

	b := NewBitstream(CodecMPEG2)
	b.AddSlice(bytes.Repeat([]byte{0x5a}, 100))
	var op Op
	if err := b.Upload(dev, &bufs, &op); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if op.SliceData != bufs.Data || op.SliceOffsets != bufs.Offsets {
		t.Errorf("Op does not point at the uploaded buffers")
	}
	if op.Codec != CodecMPEG2 || op.NumSlices != 1 || op.SliceDataLength != 116 {
		t.Errorf("Op: got codec %v, %d slices, %d bytes, want mpeg2, 1 slice, 116 bytes", op.Codec, op.NumSlices, op.SliceDataLength)
	}
	if got := bufs.Data.Size(); got != sliceDataAlign {
		t.Errorf("data buffer size: got %#x, want %#x", got, sliceDataAlign)
	}
	if got := bufs.Offsets.Size(); got != sliceOffsetsAlign {
		t.Errorf("offsets buffer size: got %#x, want %#x", got, sliceOffsetsAlign)
	}
	data, err := bufs.Data.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if !bytes.Equal(data[:116], b.Bytes()) {
		t.Errorf("slice data does not match the assembled stream")
	}
	table, err := bufs.Offsets.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if got := binary.LittleEndian.Uint32(table[4:]); got != 100 {
		t.Errorf("terminator offset: got %d, want 100", got)
	}

	// A stream that still fits reuses the buffers; a larger one replaces them.
	first := bufs.Data
	b.Reset()
	b.AddSlice(make([]byte, 10))
	if err := b.Upload(dev, &bufs, &op); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if bufs.Data != first {
		t.Errorf("small upload reallocated the data buffer")
	}
	if data[26] != 0 || data[102] != 0 {
		t.Errorf("stale bytes left after the terminator")
	}
	b.Reset()
	b.AddSlice(make([]byte, sliceDataAlign))
	if err := b.Upload(dev, &bufs, &op); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got, want := bufs.Data.Size(), uint64(2*sliceDataAlign); got != want {
		t.Errorf("grown data buffer size: got %#x, want %#x", got, want)
	}
}
