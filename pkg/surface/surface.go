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

// Package surface describes images stored in GEM buffers: their plane layout,
// allocation and export for sharing with other drivers.
package surface

import (
	"fmt"

	"gvisor.dev/tegravid/pkg/abi/tegradrm"
	"gvisor.dev/tegravid/pkg/bits"
	"gvisor.dev/tegravid/pkg/drm"
	"gvisor.dev/tegravid/pkg/errors/hwerr"
)

// Alignments required by the video engines.
const (
	PitchAlign  = 256
	HeightAlign = 16
)

// Layout is the geometry of an image. Pitch is the padded row length in
// pixels of the first plane.
type Layout struct {
	Fourcc   tegradrm.Fourcc
	Modifier tegradrm.Modifier
	Width    uint32
	Height   uint32
	Pitch    uint32
}

// NewLayout returns the linear layout the engines expect for a new image of
// the given format and size.
func NewLayout(fourcc tegradrm.Fourcc, width, height uint32) (Layout, error) {
	if width == 0 || height == 0 {
		return Layout{}, fmt.Errorf("invalid surface size %dx%d", width, height)
	}
	switch fourcc {
	case tegradrm.DRM_FORMAT_NV12, tegradrm.DRM_FORMAT_ARGB8888:
	default:
		return Layout{}, hwerr.Wrapf(hwerr.UnsupportedFormat, nil, "fourcc %v", fourcc)
	}
	return Layout{
		Fourcc:   fourcc,
		Modifier: tegradrm.DRM_FORMAT_MOD_LINEAR,
		Width:    width,
		Height:   height,
		Pitch:    bits.AlignUp32(width, PitchAlign),
	}, nil
}

// PaddedHeight is the height rounded up to whole macroblock rows.
func (l Layout) PaddedHeight() uint32 {
	return bits.AlignUp32(l.Height, HeightAlign)
}

// ChromaOffset is the byte offset of the interleaved chroma plane of a
// two-plane image.
func (l Layout) ChromaOffset() uint32 {
	return l.Pitch * l.PaddedHeight()
}

// BytesPerPixel returns the size of a first plane pixel.
func (l Layout) BytesPerPixel() uint32 {
	if l.Fourcc == tegradrm.DRM_FORMAT_ARGB8888 {
		return 4
	}
	return 1
}

// Size returns the number of bytes the image occupies.
func (l Layout) Size() uint64 {
	luma := uint64(l.Pitch) * uint64(l.PaddedHeight()) * uint64(l.BytesPerPixel())
	if l.Fourcc == tegradrm.DRM_FORMAT_NV12 {
		return luma + luma/2
	}
	return luma
}

// Plane is one plane of an exported image.
type Plane struct {
	Fourcc tegradrm.Fourcc
	Offset uint32
	// Pitch is in bytes.
	Pitch uint32
}

// Planes returns the planes of the image, as other drivers import them.
// An NV12 image is exported as an R8 luma plane and a GR88 chroma plane.
func (l Layout) Planes() []Plane {
	if l.Fourcc == tegradrm.DRM_FORMAT_NV12 {
		return []Plane{
			{Fourcc: tegradrm.DRM_FORMAT_R8, Offset: 0, Pitch: l.Pitch},
			{Fourcc: tegradrm.DRM_FORMAT_GR88, Offset: l.ChromaOffset(), Pitch: l.Pitch},
		}
	}
	return []Plane{{Fourcc: l.Fourcc, Offset: 0, Pitch: l.Pitch * l.BytesPerPixel()}}
}

// Surface is an image in a GEM buffer.
type Surface struct {
	Layout
	Buffer *drm.Buffer
}

// Allocate creates a zeroed surface with layout l.
func Allocate(dev *drm.Device, l Layout) (Surface, error) {
	b, err := dev.Allocate(l.Size())
	if err != nil {
		return Surface{}, err
	}
	return Surface{Layout: l, Buffer: b}, nil
}

// Close releases the surface's buffer.
func (s Surface) Close() error {
	return s.Buffer.Close()
}

// Export describes a surface exported as a PRIME file descriptor.
type Export struct {
	FD       int32
	Size     uint64
	Modifier tegradrm.Modifier
	Width    uint32
	Height   uint32
	Planes   []Plane
}

// Export exports the surface's buffer. The caller owns the returned file
// descriptor.
func (s Surface) Export(readWrite bool) (Export, error) {
	if s.Buffer == nil {
		return Export{}, hwerr.InternalNullBuffer
	}
	fd, err := s.Buffer.ExportFD(readWrite)
	if err != nil {
		return Export{}, err
	}
	return Export{
		FD:       fd,
		Size:     s.Buffer.Size(),
		Modifier: s.Modifier,
		Width:    s.Width,
		Height:   s.Height,
		Planes:   s.Planes(),
	}, nil
}
