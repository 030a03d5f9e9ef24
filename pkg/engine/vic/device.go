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

// Package vic builds and submits VIC composition jobs: colour conversion,
// scaling and clearing of surfaces on the video image compositor.
package vic

import (
	"gvisor.dev/tegravid/pkg/abi/host1x"
	"gvisor.dev/tegravid/pkg/abi/tegradrm"
	vicabi "gvisor.dev/tegravid/pkg/abi/vic"
	"gvisor.dev/tegravid/pkg/drm"
	"gvisor.dev/tegravid/pkg/engine"
	"gvisor.dev/tegravid/pkg/errors/hwerr"
	"gvisor.dev/tegravid/pkg/surface"
)

// Fixed values the compositor is programmed with.
const (
	opaqueAlpha    = 1023
	colourMax      = 1023
	softClampHigh  = 1023
	chromaLocation = 1
)

// Device is a compositor instance on one VIC channel. It is not safe for
// concurrent use; separate instances may run concurrently.
type Device struct {
	dev     *drm.Device
	version vicabi.Version
	ch      engine.Channel

	config *drm.Buffer
	filter *drm.Buffer
}

// New returns an unopened compositor on dev.
func New(dev *drm.Device) *Device {
	return &Device{dev: dev, version: dev.Platform().VICVersion()}
}

// Version returns the compositor version of the platform.
func (d *Device) Version() vicabi.Version {
	return d.version
}

// Open opens the channel and allocates the config and filter buffers. Like
// nvdec.Device.Open it resumes after a failure and is a no-op afterwards.
func (d *Device) Open() error {
	if err := d.ch.Open(d.dev, host1x.ClassVIC); err != nil {
		return err
	}
	if d.config == nil {
		b, err := d.dev.Allocate(uint64(vicabi.ConfigStructSize(d.version)))
		if err != nil {
			return err
		}
		d.config = b
	}
	if _, err := d.config.ChannelMap(d.ch.Context(), false); err != nil {
		return err
	}
	if d.filter == nil {
		b, err := d.dev.Allocate(vicabi.FilterStructSize)
		if err != nil {
			return err
		}
		d.filter = b
	}
	if _, err := d.filter.ChannelMap(d.ch.Context(), false); err != nil {
		return err
	}
	return nil
}

// Close releases every resource of the compositor.
func (d *Device) Close() error {
	var firstErr error
	for _, b := range []**drm.Buffer{&d.config, &d.filter} {
		if *b == nil {
			continue
		}
		if err := (*b).Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		*b = nil
	}
	if err := d.ch.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func pixelFormat(fourcc tegradrm.Fourcc) (vicabi.PixelFormat, error) {
	switch fourcc {
	case tegradrm.DRM_FORMAT_ARGB8888:
		return vicabi.PIXEL_FORMAT_A8R8G8B8, nil
	case tegradrm.DRM_FORMAT_NV12:
		return vicabi.PIXEL_FORMAT_Y8_U8V8_N420, nil
	}
	return 0, hwerr.Wrapf(hwerr.UnsupportedFormat, nil, "fourcc %v", fourcc)
}

// level scales a clear colour component to the 10-bit range.
func level(v float32) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return colourMax
	}
	return uint16(v * colourMax)
}

// surfaceConfig fills the geometry of l. Sizes are stored minus one; luma
// and chroma widths are the padded pitch.
func surfaceConfig(c *vicabi.SurfaceConfig, l surface.Layout) {
	c.SurfaceWidth = l.Width - 1
	c.SurfaceHeight = l.Height - 1
	c.LumaWidth = l.Pitch - 1
	c.LumaHeight = l.Height - 1
	c.ChromaWidth = l.Pitch/2 - 1
	c.ChromaHeight = l.Height/2 - 1
}

// checkGeometry rejects layouts whose minus-one size encodings would wrap.
func checkGeometry(what string, l surface.Layout) error {
	if l.Width == 0 || l.Height == 0 || l.Pitch < l.Width {
		return hwerr.Wrapf(hwerr.OperationFailed, nil, "%s surface %dx%d with pitch %d", what, l.Width, l.Height, l.Pitch)
	}
	return nil
}

// buildConfig translates op into the configuration structure.
func buildConfig(v vicabi.Version, op *Op) (*vicabi.ConfigStruct, error) {
	out := op.Output.Layout
	if err := checkGeometry("output", out); err != nil {
		return nil, err
	}
	if in := op.Input; in != nil {
		if err := checkGeometry("input", in.Layout); err != nil {
			return nil, err
		}
		if in.X >= in.Width || in.Y >= in.Height {
			return nil, hwerr.Wrapf(hwerr.OperationFailed, nil, "input origin (%d, %d) outside %dx%d surface", in.X, in.Y, in.Width, in.Height)
		}
	}
	c := &vicabi.ConfigStruct{Version: v}
	c.OutputConfig = vicabi.OutputConfig{
		BackgroundAlpha: opaqueAlpha,
		BackgroundR:     level(op.ClearR),
		BackgroundG:     level(op.ClearG),
		BackgroundB:     level(op.ClearB),
		TargetRect:      vicabi.Rect{Right: out.Width - 1, Bottom: out.Height - 1},
	}
	format, err := pixelFormat(out.Fourcc)
	if err != nil {
		return nil, err
	}
	if out.Modifier != tegradrm.DRM_FORMAT_MOD_LINEAR {
		return nil, hwerr.Wrapf(hwerr.UnsupportedFormat, nil, "output modifier %#x", uint64(out.Modifier))
	}
	c.OutputSurfaceConfig.PixelFormat = format
	c.OutputSurfaceConfig.BlkKind = vicabi.BLK_KIND_PITCH
	surfaceConfig(&c.OutputSurfaceConfig, out)

	in := op.Input
	if in == nil {
		return c, nil
	}
	slot := &c.SlotStruct[0]
	slot.SlotConfig = vicabi.SlotConfig{
		SlotEnable:         true,
		CurrentFieldEnable: true,
		PlanarAlpha:        opaqueAlpha,
		ConstantAlpha:      true,
		SoftClampHigh:      softClampHigh,
		SourceRect: vicabi.Rect{
			Left:   in.X << 16,
			Right:  (in.Width - 1) << 16,
			Top:    in.Y << 16,
			Bottom: (in.Height - 1) << 16,
		},
		DestRect: vicabi.Rect{Right: out.Width - 1, Bottom: out.Height - 1},
	}
	sc := &slot.SlotSurfaceConfig
	if sc.PixelFormat, err = pixelFormat(in.Fourcc); err != nil {
		return nil, err
	}
	if in.Fourcc == tegradrm.DRM_FORMAT_NV12 && out.Fourcc == tegradrm.DRM_FORMAT_ARGB8888 {
		slot.ColorMatrixStruct = MatrixToFixed(Rec601)
	}
	switch in.Modifier {
	case tegradrm.DRM_FORMAT_MOD_NVIDIA_16BX2_BLOCK_TWO_GOB:
		sc.BlkKind = vicabi.BLK_KIND_GENERIC_16Bx2
		sc.BlkHeight = 1
		sc.CacheWidth = vicabi.CACHE_WIDTH_32Bx8
	case tegradrm.DRM_FORMAT_MOD_LINEAR:
		sc.BlkKind = vicabi.BLK_KIND_PITCH
		sc.CacheWidth = vicabi.CACHE_WIDTH_64Bx4
	default:
		return nil, hwerr.Wrapf(hwerr.UnsupportedFormat, nil, "input modifier %#x", uint64(in.Modifier))
	}
	surfaceConfig(sc, in.Layout)
	sc.ChromaLocHoriz = chromaLocation
	sc.ChromaLocVert = chromaLocation
	return c, nil
}

// Run composes op and waits for the engine to finish.
func (d *Device) Run(op *Op) error {
	c, err := buildConfig(d.version, op)
	if err != nil {
		return err
	}
	if err := d.Open(); err != nil {
		return err
	}
	config, err := d.config.Map()
	if err != nil {
		return hwerr.Wrap(hwerr.OperationFailed, err)
	}
	clear(config)
	c.MarshalBytes(config)

	s := d.ch.Begin()
	s.Method(vicabi.SET_APPLICATION_ID, vicabi.ApplicationID)
	s.Method(vicabi.SET_CONTROL_PARAMS, d.version.ControlParams())
	s.Buffer(vicabi.SET_CONFIG_STRUCT_OFFSET, d.config, 0, false)
	s.Buffer(vicabi.SET_FILTER_STRUCT_OFFSET, d.filter, 0, false)
	s.Buffer(vicabi.SET_OUTPUT_SURFACE_LUMA_OFFSET, op.Output.Buffer, 0, true)
	s.Buffer(vicabi.SET_OUTPUT_SURFACE_CHROMA_U_OFFSET, op.Output.Buffer, op.Output.ChromaOffset(), true)
	if in := op.Input; in != nil {
		s.Buffer(d.version.Slot0LumaOffset(), in.Buffer, 0, false)
		s.Buffer(d.version.Slot0ChromaUOffset(), in.Buffer, in.ChromaOffset(), false)
	}
	s.Method(vicabi.EXECUTE, vicabi.EXECUTE_AWAKEN_ENABLE)
	return s.Submit()
}
