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

// DisplayParam is nvdec_display_param_s, shared by every codec descriptor.
type DisplayParam struct {
	EnableTFOutput  bool
	VC1MapYFlag     bool
	MapYValue       uint8 // 3 bits
	VC1MapUVFlag    bool
	MapUVValue      uint8 // 3 bits
	OutStride       uint8
	TilingFormat    uint8 // 3 bits
	OutputStructure uint8 // 1 bit
	OutputTop       [2]int32
	OutputBottom    [2]int32
	EnableHistogram bool
	HistogramStartX uint16 // 12 bits
	HistogramStartY uint16 // 12 bits
	HistogramEndX   uint16 // 12 bits
	HistogramEndY   uint16 // 12 bits
}

var (
	dpEnableTFOutput  = bits.Field32{Offset: 0, Width: 1}
	dpVC1MapYFlag     = bits.Field32{Offset: 1, Width: 1}
	dpMapYValue       = bits.Field32{Offset: 2, Width: 3}
	dpVC1MapUVFlag    = bits.Field32{Offset: 5, Width: 1}
	dpMapUVValue      = bits.Field32{Offset: 6, Width: 3}
	dpOutStride       = bits.Field32{Offset: 9, Width: 8}
	dpTilingFormat    = bits.Field32{Offset: 17, Width: 3}
	dpOutputStructure = bits.Field32{Offset: 20, Width: 1}

	dpEnableHistogram = bits.Field32{Offset: 0, Width: 1}
	dpHistogramStartX = bits.Field32{Offset: 1, Width: 12}
	dpHistogramStartY = bits.Field32{Offset: 13, Width: 12}
	dpHistogramEndX   = bits.Field32{Offset: 32, Width: 12}
	dpHistogramEndY   = bits.Field32{Offset: 44, Width: 12}
)

// SizeBytes implements marshal.Marshaller.SizeBytes.
func (*DisplayParam) SizeBytes() int {
	return 28
}

// MarshalBytes implements marshal.Marshaller.MarshalBytes.
func (d *DisplayParam) MarshalBytes(dst []byte) []byte {
	w := dst[:4]
	clear(w)
	dpEnableTFOutput.Put(w, b2u(d.EnableTFOutput))
	dpVC1MapYFlag.Put(w, b2u(d.VC1MapYFlag))
	dpMapYValue.Put(w, uint32(d.MapYValue))
	dpVC1MapUVFlag.Put(w, b2u(d.VC1MapUVFlag))
	dpMapUVValue.Put(w, uint32(d.MapUVValue))
	dpOutStride.Put(w, uint32(d.OutStride))
	dpTilingFormat.Put(w, uint32(d.TilingFormat))
	dpOutputStructure.Put(w, uint32(d.OutputStructure))
	dst = dst[4:]
	dst = putInt32s(dst, d.OutputTop[:])
	dst = putInt32s(dst, d.OutputBottom[:])
	h := dst[:8]
	clear(h)
	dpEnableHistogram.Put(h, b2u(d.EnableHistogram))
	dpHistogramStartX.Put(h, uint32(d.HistogramStartX))
	dpHistogramStartY.Put(h, uint32(d.HistogramStartY))
	dpHistogramEndX.Put(h, uint32(d.HistogramEndX))
	dpHistogramEndY.Put(h, uint32(d.HistogramEndY))
	return dst[8:]
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func putUint32s(dst []byte, vs []uint32) []byte {
	for _, v := range vs {
		byteOrder.PutUint32(dst[:4], v)
		dst = dst[4:]
	}
	return dst
}

func putInt32s(dst []byte, vs []int32) []byte {
	for _, v := range vs {
		byteOrder.PutUint32(dst[:4], uint32(v))
		dst = dst[4:]
	}
	return dst
}

func putUint16(dst []byte, v uint16) []byte {
	byteOrder.PutUint16(dst[:2], v)
	return dst[2:]
}

func putUint32(dst []byte, v uint32) []byte {
	byteOrder.PutUint32(dst[:4], v)
	return dst[4:]
}

func putBytes(dst []byte, b []byte) []byte {
	return dst[copy(dst, b):]
}
