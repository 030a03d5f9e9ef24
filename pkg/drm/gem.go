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

package drm

import (
	"fmt"
	"maps"
	"slices"

	"gvisor.dev/tegravid/pkg/abi/tegradrm"
	"gvisor.dev/tegravid/pkg/errors/hwerr"
)

// Buffer is a GEM memory object. It is owned by whoever allocated or imported
// it and must outlive every submission that references it.
type Buffer struct {
	dev    *Device
	handle uint32
	size   uint64

	// mapping is the CPU mapping, created by the first successful Map.
	mapping []byte

	// mappings holds the mapping id per channel context.
	mappings map[uint64]uint32

	closed bool
}

// Allocate creates a zeroed buffer of the given size.
func (d *Device) Allocate(size uint64) (*Buffer, error) {
	args := tegradrm.TegraGemCreate{Size: size}
	if err := ioctl(d.kernel, d.fd, tegradrm.DRM_IOCTL_TEGRA_GEM_CREATE, &args); err != nil {
		return nil, hwerr.Wrapf(hwerr.AllocationFailed, err, "%d bytes", size)
	}
	return d.newBuffer(args.Handle, size), nil
}

// OpenByName imports a buffer another process published with Buffer.Name.
func (d *Device) OpenByName(name uint32) (*Buffer, error) {
	args := tegradrm.GemOpen{Name: name}
	if err := ioctl(d.kernel, d.fd, tegradrm.DRM_IOCTL_GEM_OPEN, &args); err != nil {
		return nil, hwerr.Wrapf(hwerr.ImportFailed, err, "name %d", name)
	}
	return d.newBuffer(args.Handle, args.Size), nil
}

func (d *Device) newBuffer(handle uint32, size uint64) *Buffer {
	return &Buffer{
		dev:      d,
		handle:   handle,
		size:     size,
		mappings: make(map[uint64]uint32),
	}
}

// Handle returns the GEM handle.
func (b *Buffer) Handle() uint32 {
	return b.handle
}

// Size returns the size in bytes.
func (b *Buffer) Size() uint64 {
	return b.size
}

// Map returns the CPU mapping of the buffer, creating it on first use. Every
// call returns the same slice. A failed attempt is not remembered.
func (b *Buffer) Map() ([]byte, error) {
	if b.mapping != nil {
		return b.mapping, nil
	}
	args := tegradrm.TegraGemMmap{Handle: b.handle}
	if err := ioctl(b.dev.kernel, b.dev.fd, tegradrm.DRM_IOCTL_TEGRA_GEM_MMAP, &args); err != nil {
		return nil, hwerr.Wrapf(hwerr.MapFailed, err, "handle %d", b.handle)
	}
	m, err := b.dev.kernel.Mmap(b.dev.fd, int64(args.Offset), int(b.size))
	if err != nil {
		return nil, hwerr.Wrapf(hwerr.MapFailed, err, "mmap of handle %d at %#x", b.handle, args.Offset)
	}
	b.mapping = m
	return m, nil
}

// ChannelMap maps the buffer into the address space of a channel context and
// returns the mapping id. Only the first call per context reaches the kernel;
// later calls return the recorded id whatever readWrite says.
func (b *Buffer) ChannelMap(context uint64, readWrite bool) (uint32, error) {
	if b == nil {
		return 0, hwerr.InternalNullBuffer
	}
	if id, ok := b.mappings[context]; ok {
		return id, nil
	}
	id, err := b.dev.transport.MapBuffer(context, b.handle, readWrite)
	if err != nil {
		return 0, err
	}
	b.mappings[context] = id
	return id, nil
}

// MappingID returns the mapping id recorded by ChannelMap for context.
func (b *Buffer) MappingID(context uint64) (uint32, bool) {
	id, ok := b.mappings[context]
	return id, ok
}

// ExportFD exports the buffer as a PRIME file descriptor.
func (b *Buffer) ExportFD(readWrite bool) (int32, error) {
	args := tegradrm.PrimeHandle{Handle: b.handle, Flags: tegradrm.DRM_CLOEXEC}
	if readWrite {
		args.Flags |= tegradrm.DRM_RDWR
	}
	if err := ioctl(b.dev.kernel, b.dev.fd, tegradrm.DRM_IOCTL_PRIME_HANDLE_TO_FD, &args); err != nil {
		return -1, hwerr.Wrapf(hwerr.ExportFailed, err, "handle %d", b.handle)
	}
	return args.FD, nil
}

// Name publishes the buffer under a global name that other processes can pass
// to OpenByName.
func (b *Buffer) Name() (uint32, error) {
	args := tegradrm.GemFlink{Handle: b.handle}
	if err := ioctl(b.dev.kernel, b.dev.fd, tegradrm.DRM_IOCTL_GEM_FLINK, &args); err != nil {
		return 0, hwerr.Wrapf(hwerr.ExportFailed, err, "flink of handle %d", b.handle)
	}
	return args.Name, nil
}

// Close unmaps the buffer from every channel it was mapped into, drops the CPU
// mapping and releases the GEM handle. Calls after the first do nothing. The
// first error is returned; the remaining steps still run.
func (b *Buffer) Close() error {
	if b == nil || b.closed {
		return nil
	}
	b.closed = true

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, ctx := range slices.Sorted(maps.Keys(b.mappings)) {
		if err := b.dev.transport.UnmapBuffer(ctx, b.mappings[ctx]); err != nil {
			record(fmt.Errorf("unmapping handle %d from context %d: %w", b.handle, ctx, err))
		}
		delete(b.mappings, ctx)
	}
	if b.mapping != nil {
		record(b.dev.kernel.Munmap(b.mapping))
		b.mapping = nil
	}
	args := tegradrm.GemClose{Handle: b.handle}
	if err := ioctl(b.dev.kernel, b.dev.fd, tegradrm.DRM_IOCTL_GEM_CLOSE, &args); err != nil {
		record(fmt.Errorf("closing handle %d: %w", b.handle, err))
	}
	return firstErr
}
