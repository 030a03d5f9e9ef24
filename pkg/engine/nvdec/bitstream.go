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

	"gvisor.dev/tegravid/pkg/bits"
	"gvisor.dev/tegravid/pkg/drm"
)

// Slice buffer allocation granularity.
const (
	sliceDataAlign    = 0x10000
	sliceOffsetsAlign = 0x1000
)

// End of sequence patterns appended after the last slice.
var (
	mpeg2Terminator = [16]byte{
		0x00, 0x00, 0x01, 0xb7, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x01, 0xb7, 0x00, 0x00, 0x00, 0x00,
	}
	h264Terminator = [16]byte{
		0x00, 0x00, 0x01, 0x0b, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x01, 0x0b, 0x00, 0x00, 0x00, 0x00,
	}
)

var h264StartCode = [3]byte{0x00, 0x00, 0x01}

// Bitstream gathers the slices of one picture.
type Bitstream struct {
	codec   Codec
	data    []byte
	offsets []uint32
}

// NewBitstream returns an empty Bitstream for codec.
func NewBitstream(codec Codec) *Bitstream {
	return &Bitstream{codec: codec}
}

// AddSlice appends one slice. H.264 slices are given without their start
// code.
func (b *Bitstream) AddSlice(slice []byte) {
	b.offsets = append(b.offsets, uint32(len(b.data)))
	if b.codec == CodecH264 {
		b.data = append(b.data, h264StartCode[:]...)
	}
	b.data = append(b.data, slice...)
}

// NumSlices returns the number of slices added.
func (b *Bitstream) NumSlices() int {
	return len(b.offsets)
}

// Reset drops every slice, keeping the codec.
func (b *Bitstream) Reset() {
	b.data = b.data[:0]
	b.offsets = b.offsets[:0]
}

func (b *Bitstream) terminator() []byte {
	if b.codec == CodecH264 {
		return h264Terminator[:]
	}
	return mpeg2Terminator[:]
}

// Len returns the length of the assembled stream, terminator included.
func (b *Bitstream) Len() uint32 {
	return uint32(len(b.data) + len(b.terminator()))
}

// Bytes returns the assembled stream.
func (b *Bitstream) Bytes() []byte {
	out := make([]byte, 0, b.Len())
	out = append(out, b.data...)
	return append(out, b.terminator()...)
}

// Offsets returns the offset of each slice followed by the offset of the
// terminator.
func (b *Bitstream) Offsets() []uint32 {
	return append(append([]uint32(nil), b.offsets...), uint32(len(b.data)))
}

// SliceBuffers are the slice data and slice offsets buffers of a decoder
// instance. They are reused across pictures and grown when a picture does
// not fit.
type SliceBuffers struct {
	Data    *drm.Buffer
	Offsets *drm.Buffer
}

// Close releases both buffers.
func (s *SliceBuffers) Close() error {
	var firstErr error
	for _, b := range []**drm.Buffer{&s.Data, &s.Offsets} {
		if *b == nil {
			continue
		}
		if err := (*b).Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		*b = nil
	}
	return firstErr
}

func ensure(dev *drm.Device, b **drm.Buffer, size, align uint64) ([]byte, error) {
	if *b == nil || (*b).Size() < size {
		nb, err := dev.Allocate(bits.AlignUp(size, align))
		if err != nil {
			return nil, err
		}
		if *b != nil {
			(*b).Close()
		}
		*b = nb
	}
	m, err := (*b).Map()
	if err != nil {
		return nil, err
	}
	clear(m)
	return m, nil
}

// Upload writes the stream and its offsets into bufs, growing them as
// needed, and points op's slice fields at them.
func (b *Bitstream) Upload(dev *drm.Device, bufs *SliceBuffers, op *Op) error {
	data, err := ensure(dev, &bufs.Data, uint64(b.Len()), sliceDataAlign)
	if err != nil {
		return err
	}
	copy(data, b.Bytes())

	offsets := b.Offsets()
	table, err := ensure(dev, &bufs.Offsets, uint64(len(offsets))*4, sliceOffsetsAlign)
	if err != nil {
		return err
	}
	for i, o := range offsets {
		binary.LittleEndian.PutUint32(table[i*4:], o)
	}

	op.Codec = b.codec
	op.SliceData = bufs.Data
	op.SliceDataLength = b.Len()
	op.NumSlices = uint32(b.NumSlices())
	op.SliceOffsets = bufs.Offsets
	return nil
}
