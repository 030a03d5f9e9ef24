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

// Status is nvdec_status_s, written by the engine to the buffer bound with
// SET_NVDEC_STATUS_OFFSET once a picture completes. The codec specific
// union is kept raw.
type Status struct {
	MbsCorrectlyDecoded  uint32
	MbsInError           uint32
	Reserved             uint32
	ErrorStatus          uint32
	CodecStatus          [9]uint32
	SliceHeaderErrorCode uint32
}

// StatusSize is sizeof(nvdec_status_s).
const StatusSize = 56

// SizeBytes implements marshal.Marshallable.SizeBytes.
func (*Status) SizeBytes() int {
	return StatusSize
}

// MarshalBytes implements marshal.Marshallable.MarshalBytes.
func (s *Status) MarshalBytes(dst []byte) []byte {
	dst = putUint32s(dst, []uint32{s.MbsCorrectlyDecoded, s.MbsInError, s.Reserved, s.ErrorStatus})
	dst = putUint32s(dst, s.CodecStatus[:])
	return putUint32(dst, s.SliceHeaderErrorCode)
}

// UnmarshalBytes implements marshal.Marshallable.UnmarshalBytes.
func (s *Status) UnmarshalBytes(src []byte) []byte {
	s.MbsCorrectlyDecoded = byteOrder.Uint32(src[0:])
	s.MbsInError = byteOrder.Uint32(src[4:])
	s.Reserved = byteOrder.Uint32(src[8:])
	s.ErrorStatus = byteOrder.Uint32(src[12:])
	src = src[16:]
	for i := range s.CodecStatus {
		s.CodecStatus[i] = byteOrder.Uint32(src)
		src = src[4:]
	}
	s.SliceHeaderErrorCode = byteOrder.Uint32(src)
	return src[4:]
}

// Failed reports whether the engine flagged the picture as damaged.
func (s *Status) Failed() bool {
	return s.ErrorStatus != 0 || s.MbsInError != 0 || s.SliceHeaderErrorCode != 0
}
