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

package cmd

import (
	"fmt"

	"gvisor.dev/tegravid/pkg/abi/tegradrm"
	"gvisor.dev/tegravid/pkg/surface"
)

// nv12FrameSize returns the size of a tightly packed NV12 frame. Width and
// height must be even.
func nv12FrameSize(width, height uint32) int {
	return int(width*height + width*height/2)
}

// argbFrameSize returns the size of a tightly packed ARGB8888 frame.
func argbFrameSize(width, height uint32) int {
	return int(width * height * 4)
}

// copyRows copies rows of n bytes between buffers with different strides.
func copyRows(dst []byte, dstStride int, src []byte, srcStride int, n, rows int) {
	for r := 0; r < rows; r++ {
		copy(dst[r*dstStride:r*dstStride+n], src[r*srcStride:r*srcStride+n])
	}
}

// uploadNV12 writes a tightly packed NV12 frame into s.
func uploadNV12(s surface.Surface, frame []byte) error {
	if s.Fourcc != tegradrm.DRM_FORMAT_NV12 {
		return fmt.Errorf("surface format %v is not NV12", s.Fourcc)
	}
	if len(frame) != nv12FrameSize(s.Width, s.Height) {
		return fmt.Errorf("frame is %d bytes, want %d", len(frame), nv12FrameSize(s.Width, s.Height))
	}
	data, err := s.Buffer.Map()
	if err != nil {
		return err
	}
	w, h, pitch := int(s.Width), int(s.Height), int(s.Pitch)
	copyRows(data, pitch, frame, w, w, h)
	copyRows(data[s.ChromaOffset():], pitch, frame[w*h:], w, w, h/2)
	return nil
}

// downloadARGB returns the contents of an ARGB8888 surface, tightly packed.
func downloadARGB(s surface.Surface) ([]byte, error) {
	if s.Fourcc != tegradrm.DRM_FORMAT_ARGB8888 {
		return nil, fmt.Errorf("surface format %v is not ARGB8888", s.Fourcc)
	}
	data, err := s.Buffer.Map()
	if err != nil {
		return nil, err
	}
	out := make([]byte, argbFrameSize(s.Width, s.Height))
	row := int(s.Width) * 4
	copyRows(out, row, data, int(s.Pitch)*4, row, int(s.Height))
	return out, nil
}
