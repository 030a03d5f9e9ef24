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

// Package drm is the device layer of the Tegra video engines: it owns the
// connection to the Tegra DRM driver, the optional host1x syncpoint device,
// and the GEM memory objects shared between engines.
//
// Two kernel protocol generations are supported and hidden behind Transport.
// The legacy generation submits jobs with relocations against GEM handles and
// obtains syncpoints from the channel. The unified generation maps buffers
// into each channel explicitly and allocates syncpoints from /dev/host1x.
//
// Nothing in this package retries a failed kernel operation; callers decide.
// Device is not safe for concurrent use while channels or syncpoints are being
// opened or closed.
package drm

import (
	stderrors "errors"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
	"gvisor.dev/tegravid/pkg/abi/host1x"
	"gvisor.dev/tegravid/pkg/cleanup"
	"gvisor.dev/tegravid/pkg/errors/hwerr"
	"gvisor.dev/tegravid/pkg/log"
)

// Default paths of the files Open consults.
const (
	DefaultDRMPath    = "/dev/dri/card0"
	DefaultHost1xPath = "/dev/host1x"
	DefaultSocIDPath  = "/sys/devices/soc0/soc_id"
)

// SyncpointWaitTimeout bounds every syncpoint wait.
const SyncpointWaitTimeout = 2 * time.Second

// Options configures Open. Zero values select the defaults.
type Options struct {
	DRMPath    string
	Host1xPath string
	SocIDPath  string
	Protocol   Protocol

	// Kernel defaults to HostKernel().
	Kernel Kernel
}

func (o *Options) setDefaults() {
	if o.DRMPath == "" {
		o.DRMPath = DefaultDRMPath
	}
	if o.Host1xPath == "" {
		o.Host1xPath = DefaultHost1xPath
	}
	if o.SocIDPath == "" {
		o.SocIDPath = DefaultSocIDPath
	}
	if o.Protocol == "" {
		o.Protocol = ProtocolAuto
	}
	if o.Kernel == nil {
		o.Kernel = HostKernel()
	}
}

// Device is an open Tegra DRM device.
type Device struct {
	kernel    Kernel
	fd        int32
	platform  Platform
	transport Transport
	closed    bool
}

// Open detects the platform, opens the DRM device and selects the protocol
// generation.
func Open(opts Options) (*Device, error) {
	opts.setDefaults()
	k := opts.Kernel

	socID, err := k.ReadFile(opts.SocIDPath)
	if err != nil {
		return nil, hwerr.Wrapf(hwerr.UnsupportedPlatform, err, "reading %s", opts.SocIDPath)
	}
	platform, err := ParsePlatform(socID)
	if err != nil {
		return nil, err
	}

	fd, err := k.Open(opts.DRMPath)
	if err != nil {
		return nil, fmt.Errorf("opening DRM device %q: %w", opts.DRMPath, err)
	}
	cu := cleanup.Make(func() { k.Close(fd) })
	defer cu.Clean()

	d := &Device{
		kernel:   k,
		fd:       fd,
		platform: platform,
	}
	switch opts.Protocol {
	case ProtocolLegacy:
		d.transport = &legacyTransport{kernel: k, fd: fd}
	case ProtocolHost1x, ProtocolAuto:
		hostFD, err := k.Open(opts.Host1xPath)
		switch {
		case err == nil:
			d.transport = &unifiedTransport{
				kernel:  k,
				fd:      fd,
				hostFD:  hostFD,
				syncpts: make(map[uint32]int32),
			}
		case opts.Protocol == ProtocolAuto && stderrors.Is(err, unix.ENOENT):
			d.transport = &legacyTransport{kernel: k, fd: fd}
		default:
			return nil, fmt.Errorf("opening host1x device %q: %w", opts.Host1xPath, err)
		}
	default:
		return nil, fmt.Errorf("invalid protocol %q", opts.Protocol)
	}
	cu.Release()

	log.Infof("Opened %s: platform %v, VIC %v, %v protocol", opts.DRMPath, platform, platform.VICVersion(), d.transport.Generation())
	return d, nil
}

// Platform returns the detected SoC.
func (d *Device) Platform() Platform {
	return d.platform
}

// Generation returns the kernel protocol generation in use.
func (d *Device) Generation() Generation {
	return d.transport.Generation()
}

// OpenChannel opens a channel to the engine of the given class and returns
// its context.
func (d *Device) OpenChannel(class host1x.Class) (uint64, error) {
	ctx, err := d.transport.OpenChannel(class)
	if err != nil {
		return 0, err
	}
	log.Infof("Opened %v channel, context %d", class, ctx)
	return ctx, nil
}

// CloseChannel closes a channel. A zero context is ignored.
func (d *Device) CloseChannel(context uint64) error {
	if context == 0 {
		return nil
	}
	if err := d.transport.CloseChannel(context); err != nil {
		return fmt.Errorf("closing channel context %d: %w", context, err)
	}
	log.Infof("Closed channel context %d", context)
	return nil
}

// AllocateSyncpoint reserves a syncpoint for the channel context.
func (d *Device) AllocateSyncpoint(context uint64) (uint32, error) {
	id, err := d.transport.AllocateSyncpoint(context)
	if err != nil {
		return 0, err
	}
	log.Debugf("Allocated syncpoint %d for context %d", id, context)
	return id, nil
}

// FreeSyncpoint releases a syncpoint obtained from AllocateSyncpoint.
func (d *Device) FreeSyncpoint(id uint32) error {
	return d.transport.FreeSyncpoint(id)
}

// WaitSyncpoint blocks until syncpoint id reaches threshold, for at most
// SyncpointWaitTimeout.
func (d *Device) WaitSyncpoint(id, threshold uint32) error {
	return d.transport.WaitSyncpoint(id, threshold, SyncpointWaitTimeout)
}

// Submit queues a command stream and returns its completion threshold.
func (d *Device) Submit(s *Submission) (uint32, error) {
	return d.transport.Submit(s)
}

// Ioctl issues a raw request on the DRM device. arg must point to the
// request's parameter structure. The kernel error is returned unchanged.
func (d *Device) Ioctl(req uint32, arg unsafe.Pointer) error {
	return d.kernel.Ioctl(d.fd, req, arg)
}

// Close releases every syncpoint the device tracks and closes the device
// files. Buffers and channels must be closed first.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.transport.Release()
	return d.kernel.Close(d.fd)
}
