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

// Package nvdec builds and submits NVDEC decode jobs: it translates a
// picture's codec parameters into the engine's picture setup descriptor,
// assigns picture slots to reference frames and writes the method stream
// that binds every buffer the engine touches.
package nvdec

import (
	"time"

	"gvisor.dev/tegravid/pkg/abi/host1x"
	nvdecabi "gvisor.dev/tegravid/pkg/abi/nvdec"
	"gvisor.dev/tegravid/pkg/drm"
	"gvisor.dev/tegravid/pkg/engine"
	"gvisor.dev/tegravid/pkg/errors/hwerr"
	"gvisor.dev/tegravid/pkg/log"
	"gvisor.dev/tegravid/pkg/marshal"
)

const (
	// configBufferSize fits the largest picture setup descriptor.
	configBufferSize = nvdecabi.H264PicSetupSize

	statusBufferSize = 0x1000
)

// Device is a decoder instance on one NVDEC channel. It is not safe for
// concurrent use.
type Device struct {
	dev *drm.Device
	ch  engine.Channel

	config *drm.Buffer
	status *drm.Buffer

	// H.264 only, sized for the largest frame seen.
	coloc   *drm.Buffer
	history *drm.Buffer

	dpb          DPB
	pictureIndex uint32
	lastStatus   nvdecabi.Status

	missingRefs uint64
	warn        log.Logger
}

// New returns an unopened decoder on dev.
func New(dev *drm.Device) *Device {
	return &Device{
		dev:  dev,
		warn: log.BasicRateLimitedLogger(time.Second),
	}
}

// Open opens the channel and allocates the config and status buffers. It is
// a no-op once it has succeeded; after a failure, calling it again resumes
// from the failed step. Run calls Open.
func (d *Device) Open() error {
	if err := d.ch.Open(d.dev, host1x.ClassNVDEC); err != nil {
		return err
	}
	if d.config == nil {
		b, err := d.dev.Allocate(configBufferSize)
		if err != nil {
			return err
		}
		d.config = b
	}
	if _, err := d.config.ChannelMap(d.ch.Context(), false); err != nil {
		return err
	}
	if d.status == nil {
		b, err := d.dev.Allocate(statusBufferSize)
		if err != nil {
			return err
		}
		d.status = b
	}
	return nil
}

// Close releases every resource of the decoder.
func (d *Device) Close() error {
	var firstErr error
	for _, b := range []**drm.Buffer{&d.config, &d.status, &d.coloc, &d.history} {
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
	d.dpb.Reset()
	return firstErr
}

// DPB returns the decoder's reference slot table.
func (d *Device) DPB() *DPB {
	return &d.dpb
}

// LastStatus returns the status block the engine wrote for the last
// completed picture.
func (d *Device) LastStatus() nvdecabi.Status {
	return d.lastStatus
}

// MissingReferences returns the number of reference pictures a picture was
// decoded without: references that had no slot, and references beyond
// H264MaxReferences.
func (d *Device) MissingReferences() uint64 {
	return d.missingRefs
}

// Run decodes one picture into op.Output and waits for the engine to finish.
func (d *Device) Run(op *Op) error {
	if op.Codec != CodecMPEG2 && op.Codec != CodecH264 {
		return hwerr.Wrapf(hwerr.UnsupportedCodec, nil, "%v", op.Codec)
	}
	if err := d.Open(); err != nil {
		return err
	}

	config, err := d.config.Map()
	if err != nil {
		return hwerr.Wrap(hwerr.OperationFailed, err)
	}
	status, err := d.status.Map()
	if err != nil {
		return hwerr.Wrap(hwerr.OperationFailed, err)
	}
	clear(config)
	clear(status)

	s := d.ch.Begin()
	switch op.Codec {
	case CodecMPEG2:
		writeDescriptor(config, mpeg2Setup(op))
		d.header(s, op, nvdecabi.APPLICATION_ID_MPEG12, nvdecabi.CONTROL_PARAMS_CODEC_TYPE_MPEG2)
		d.bindMPEG2(s, op)
	case CodecH264:
		if err := d.prepareH264(s, op, config); err != nil {
			return err
		}
	}
	s.Method(nvdecabi.SET_HISTOGRAM_OFFSET, nvdecabi.HistogramPlaceholder)
	s.Buffer(nvdecabi.SET_NVDEC_STATUS_OFFSET, d.status, 0, true)
	s.Method(nvdecabi.EXECUTE, nvdecabi.EXECUTE_AWAKEN_ENABLE)
	if err := s.Submit(); err != nil {
		return err
	}

	d.lastStatus.UnmarshalBytes(status)
	if d.lastStatus.Failed() {
		log.Warningf("%v picture %d decoded with errors: status %#x, %d macroblocks in error", op.Codec, d.pictureIndex-1, d.lastStatus.ErrorStatus, d.lastStatus.MbsInError)
	}
	return nil
}

// header writes the methods common to every codec, up to and including the
// picture index.
func (d *Device) header(s *engine.Stream, op *Op, appID, codecType uint32) {
	s.Method(nvdecabi.SET_APPLICATION_ID, appID)
	s.Method(nvdecabi.SET_CONTROL_PARAMS, codecType|
		nvdecabi.CONTROL_PARAMS_GPTIMER_ON|
		nvdecabi.ControlParamsErrorFrameIndex(0)|
		nvdecabi.CONTROL_PARAMS_MBTIMER_ON)
	s.Buffer(nvdecabi.SET_DRV_PIC_SETUP_OFFSET, d.config, 0, false)
	s.Buffer(nvdecabi.SET_IN_BUF_BASE_OFFSET, op.SliceData, 0, false)
	s.Buffer(nvdecabi.SET_SLICE_OFFSETS_BUF_OFFSET, op.SliceOffsets, 0, false)
	s.Method(nvdecabi.SET_PICTURE_INDEX, d.pictureIndex)
	d.pictureIndex++
}

// bindPicture binds b as the picture in slot, laid out like the output.
func bindPicture(s *engine.Stream, op *Op, slot int, b *drm.Buffer) {
	s.Buffer(nvdecabi.PictureLumaOffset(slot), b, 0, true)
	s.Buffer(nvdecabi.PictureChromaOffset(slot), b, op.Output.ChromaOffset(), true)
}

// bindMPEG2 binds the output to slot 0, the forward reference to slot 1 and
// the backward reference to slot 2. A missing reference is replaced by the
// other one, then by the output.
func (d *Device) bindMPEG2(s *engine.Stream, op *Op) {
	out := op.Output.Buffer
	fwd, bwd := op.MPEG2.Forward, op.MPEG2.Backward
	slot1 := out
	switch {
	case fwd != nil:
		slot1 = fwd
	case bwd != nil:
		slot1 = bwd
	}
	slot2 := out
	if bwd != nil {
		slot2 = bwd
	}
	bindPicture(s, op, 0, out)
	bindPicture(s, op, 1, slot1)
	bindPicture(s, op, 2, slot2)
}

// prepareH264 assigns slots, writes the descriptor to config and the H.264
// methods to s.
func (d *Device) prepareH264(s *engine.Stream, op *Op, config []byte) error {
	h := &op.H264
	slot, err := d.dpb.Get(h.CurrPic.ID, false)
	secondField := err == nil
	if !secondField {
		if slot, err = d.dpb.Get(h.CurrPic.ID, true); err != nil {
			return err
		}
	}

	refs := h.References
	if extra := len(refs) - H264MaxReferences; extra > 0 {
		d.missingRefs += uint64(extra)
		d.warn.Warningf("H.264 picture %d has %d references, decoding without the last %d", h.CurrPic.ID, len(refs), extra)
		refs = refs[:H264MaxReferences]
	}
	refSlots := make([]int, len(refs))
	for i := range refs {
		rs, err := d.dpb.Get(refs[i].ID, false)
		if err != nil {
			d.missingRefs++
			d.warn.Warningf("H.264 reference picture %d has no slot, decoding without it", refs[i].ID)
			refSlots[i] = -1
			continue
		}
		refSlots[i] = rs
	}

	if err := d.ensureH264Buffers(uint32(h.WidthInMbs), uint32(h.HeightInMbs)); err != nil {
		return hwerr.Wrap(hwerr.OperationFailed, err)
	}
	writeDescriptor(config, h264Setup(op, slot, secondField, refSlots))

	d.header(s, op, nvdecabi.APPLICATION_ID_H264, nvdecabi.CONTROL_PARAMS_CODEC_TYPE_H264)
	s.Buffer(nvdecabi.SET_COLOC_DATA_OFFSET, d.coloc, 0, true)
	s.Buffer(nvdecabi.SET_HISTORY_OFFSET, d.history, 0, true)
	bindPicture(s, op, slot, op.Output.Buffer)
	for i, rs := range refSlots {
		if rs >= 0 && rs != slot {
			bindPicture(s, op, rs, refs[i].Buffer)
		}
	}
	return nil
}

// ensureH264Buffers (re)allocates the co-located and history buffers when
// the frame outgrows them.
func (d *Device) ensureH264Buffers(widthInMbs, heightInMbs uint32) error {
	if size := colocSize(widthInMbs * heightInMbs); d.coloc == nil || d.coloc.Size() < size {
		b, err := d.dev.Allocate(size)
		if err != nil {
			return err
		}
		if d.coloc != nil {
			d.coloc.Close()
		}
		d.coloc = b
	}
	if size := historySize(widthInMbs); d.history == nil || d.history.Size() < size {
		b, err := d.dev.Allocate(size)
		if err != nil {
			return err
		}
		if d.history != nil {
			d.history.Close()
		}
		d.history = b
	}
	return nil
}

// writeDescriptor marshals m at the start of the config buffer.
func writeDescriptor(config []byte, m marshal.Marshaller) {
	m.MarshalBytes(config[:m.SizeBytes()])
}
