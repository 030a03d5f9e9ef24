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

// Package drmtest provides an in-memory Kernel that emulates the Tegra DRM
// driver and the host1x syncpoint device well enough to run the device and
// engine layers without hardware.
package drmtest

import (
	"encoding/binary"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
	"gvisor.dev/tegravid/pkg/abi/host1x"
	"gvisor.dev/tegravid/pkg/abi/tegradrm"
	"gvisor.dev/tegravid/pkg/drm"
)

// Paths served by the fake.
const (
	DRMPath    = "/dev/dri/card0"
	Host1xPath = "/dev/host1x"
	SocIDPath  = "/sys/devices/soc0/soc_id"
)

// SoC ids.
const (
	SocT210 = "33\n"
	SocT186 = "24\n"
	SocT194 = "25\n"
)

type fileKind int

const (
	kindDRM fileKind = iota
	kindHost1x
	kindSyncpt
	kindFence
	kindDmabuf
)

type file struct {
	kind      fileKind
	syncpt    uint32
	threshold uint32
}

type object struct {
	data []byte
}

type syncpoint struct {
	value uint32
	max   uint32
	// context owns the syncpoint on the legacy interface.
	context uint64
}

type mapping struct {
	context uint64
	handle  uint32
	flags   uint32
}

// Reloc is a relocation as the kernel received it.
type Reloc struct {
	// Word is the index of the patched word in Words.
	Word   uint32
	Handle uint32
	Offset uint32
	Shift  uint32
}

// Submission is a command stream as the kernel received it, from either
// interface.
type Submission struct {
	Class     host1x.Class
	Context   uint64
	Syncpoint uint32
	Words     []uint32
	Relocs    []Reloc
}

// Kernel is a fake drm.Kernel. It is safe for concurrent use.
type Kernel struct {
	// OnSubmit, if set, is called after each successful submission, without
	// any lock held.
	OnSubmit func(Submission)

	mu          sync.Mutex
	files       map[string][]byte
	nodes       map[string]fileKind
	fds         map[int32]*file
	nextFD      int32
	objects     map[uint32]*object
	nextHandle  uint32
	names       map[uint32]*object
	nextName    uint32
	contexts    map[uint64]host1x.Class
	nextContext uint64
	syncpts     map[uint32]*syncpoint
	nextSyncpt  uint32
	mappings    map[uint32]mapping
	nextMapping uint32
	calls       map[uint32]int
	failures    map[uint32]unix.Errno
	stall       bool
	munmaps     int
	submissions []Submission
	// submitMappings holds the mapping ids each submission named, in the
	// order of its relocations. Legacy submissions name none.
	submitMappings [][]uint32
}

var _ drm.Kernel = (*Kernel)(nil)

func newKernel(socID string) *Kernel {
	return &Kernel{
		files:       map[string][]byte{SocIDPath: []byte(socID)},
		nodes:       map[string]fileKind{DRMPath: kindDRM},
		fds:         make(map[int32]*file),
		nextFD:      3,
		objects:     make(map[uint32]*object),
		nextHandle:  1,
		names:       make(map[uint32]*object),
		nextName:    1,
		contexts:    make(map[uint64]host1x.Class),
		nextContext: 1,
		syncpts:     make(map[uint32]*syncpoint),
		nextSyncpt:  20,
		mappings:    make(map[uint32]mapping),
		nextMapping: 1,
		calls:       make(map[uint32]int),
		failures:    make(map[uint32]unix.Errno),
	}
}

// NewLegacy returns a fake exposing only the legacy Tegra DRM interface.
func NewLegacy(socID string) *Kernel {
	return newKernel(socID)
}

// NewUnified returns a fake that also exposes the host1x device.
func NewUnified(socID string) *Kernel {
	k := newKernel(socID)
	k.nodes[Host1xPath] = kindHost1x
	return k
}

// Options returns drm.Options that open this fake with automatic protocol
// selection.
func (k *Kernel) Options() drm.Options {
	return drm.Options{
		DRMPath:    DRMPath,
		Host1xPath: Host1xPath,
		SocIDPath:  SocIDPath,
		Protocol:   drm.ProtocolAuto,
		Kernel:     k,
	}
}

// Fail makes every later ioctl with request req fail with errno. A zero errno
// clears the failure.
func (k *Kernel) Fail(req uint32, errno unix.Errno) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if errno == 0 {
		delete(k.failures, req)
		return
	}
	k.failures[req] = errno
}

// Stall stops submissions from advancing their syncpoint, so waits time out.
func (k *Kernel) Stall(stall bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.stall = stall
}

// Calls returns how many times request req was issued.
func (k *Kernel) Calls(req uint32) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.calls[req]
}

// Munmaps returns how many CPU mappings were dropped.
func (k *Kernel) Munmaps() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.munmaps
}

// OpenFiles returns the number of open file descriptors.
func (k *Kernel) OpenFiles() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.fds)
}

// Objects returns the number of live GEM handles.
func (k *Kernel) Objects() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.objects)
}

// Mappings returns the number of live channel mappings.
func (k *Kernel) Mappings() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.mappings)
}

// MappingFlags returns the flags handle was mapped into context with.
func (k *Kernel) MappingFlags(context uint64, handle uint32) (uint32, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, m := range k.mappings {
		if m.context == context && m.handle == handle {
			return m.flags, true
		}
	}
	return 0, false
}

// Contexts returns the number of open channels.
func (k *Kernel) Contexts() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.contexts)
}

// Syncpoints returns the number of allocated syncpoints.
func (k *Kernel) Syncpoints() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.syncpts)
}

// Submissions returns every submission received so far.
func (k *Kernel) Submissions() []Submission {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]Submission(nil), k.submissions...)
}

// SubmittedMappings returns, for every submission received so far, the
// channel mapping ids it named, parallel to its Relocs. Entries for legacy
// submissions are nil.
func (k *Kernel) SubmittedMappings() [][]uint32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([][]uint32(nil), k.submitMappings...)
}

// ObjectData returns the backing memory of a GEM handle, or nil.
func (k *Kernel) ObjectData(handle uint32) []byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	if o, ok := k.objects[handle]; ok {
		return o.data
	}
	return nil
}

// SyncpointValue returns the current value of syncpoint id.
func (k *Kernel) SyncpointValue(id uint32) uint32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	if s, ok := k.syncpts[id]; ok {
		return s.value
	}
	return 0
}

func (k *Kernel) newFD(f *file) int32 {
	fd := k.nextFD
	k.nextFD++
	k.fds[fd] = f
	return fd
}

// Open implements drm.Kernel.Open.
func (k *Kernel) Open(path string) (int32, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	kind, ok := k.nodes[path]
	if !ok {
		return -1, unix.ENOENT
	}
	return k.newFD(&file{kind: kind}), nil
}

// Close implements drm.Kernel.Close.
func (k *Kernel) Close(fd int32) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	f, ok := k.fds[fd]
	if !ok {
		return unix.EBADF
	}
	delete(k.fds, fd)
	if f.kind == kindSyncpt {
		delete(k.syncpts, f.syncpt)
	}
	return nil
}

// Mmap implements drm.Kernel.Mmap. Offsets are those handed out by
// DRM_IOCTL_TEGRA_GEM_MMAP.
func (k *Kernel) Mmap(fd int32, offset int64, length int) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if f, ok := k.fds[fd]; !ok || f.kind != kindDRM {
		return nil, unix.EBADF
	}
	o, ok := k.objects[uint32(offset>>16)]
	if !ok || length > len(o.data) {
		return nil, unix.EINVAL
	}
	return o.data[:length:length], nil
}

// Munmap implements drm.Kernel.Munmap.
func (k *Kernel) Munmap([]byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.munmaps++
	return nil
}

// Poll implements drm.Kernel.Poll for fence files.
func (k *Kernel) Poll(fd int32, timeout time.Duration) (bool, error) {
	k.mu.Lock()
	f, ok := k.fds[fd]
	if !ok || f.kind != kindFence {
		k.mu.Unlock()
		return false, unix.EBADF
	}
	signalled := k.reachedLocked(f.syncpt, f.threshold)
	k.mu.Unlock()
	if signalled {
		return true, nil
	}
	time.Sleep(timeout)
	return false, nil
}

// ReadFile implements drm.Kernel.ReadFile.
func (k *Kernel) ReadFile(path string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	b, ok := k.files[path]
	if !ok {
		return nil, unix.ENOENT
	}
	return append([]byte(nil), b...), nil
}

func (k *Kernel) reachedLocked(id, threshold uint32) bool {
	s, ok := k.syncpts[id]
	return ok && s.value >= threshold
}

func (k *Kernel) submitLocked(class host1x.Class, ctx uint64, id uint32, words []uint32, relocs []Reloc, mappings []uint32) (uint32, Submission) {
	s := k.syncpts[id]
	s.max++
	if !k.stall {
		s.value = s.max
	}
	sub := Submission{
		Class:     class,
		Context:   ctx,
		Syncpoint: id,
		Words:     words,
		Relocs:    relocs,
	}
	k.submissions = append(k.submissions, sub)
	k.submitMappings = append(k.submitMappings, mappings)
	return s.max, sub
}

// userSlice views n elements at a user address passed through an ioctl.
func userSlice[T any](addr uint64, n uint32) []T {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(uintptr(addr))), n)
}

// Ioctl implements drm.Kernel.Ioctl.
func (k *Kernel) Ioctl(fd int32, req uint32, arg unsafe.Pointer) error {
	k.mu.Lock()
	k.calls[req]++
	if errno, ok := k.failures[req]; ok {
		k.mu.Unlock()
		return errno
	}
	f, ok := k.fds[fd]
	if !ok {
		k.mu.Unlock()
		return unix.EBADF
	}
	var (
		sub       Submission
		submitted bool
		wait      *tegradrm.TegraSyncptWait
		err       error
	)
	switch f.kind {
	case kindDRM:
		sub, submitted, wait, err = k.drmIoctlLocked(req, arg)
	case kindHost1x:
		err = k.host1xIoctlLocked(req, arg)
	case kindSyncpt:
		if req != host1x.HOST1X_IOCTL_SYNCPOINT_INFO {
			err = unix.ENOTTY
			break
		}
		(*host1x.SyncpointInfo)(arg).ID = f.syncpt
	default:
		err = unix.ENOTTY
	}
	k.mu.Unlock()

	if wait != nil {
		time.Sleep(time.Duration(wait.Timeout) * time.Millisecond)
		return unix.EAGAIN
	}
	if submitted && k.OnSubmit != nil {
		k.OnSubmit(sub)
	}
	return err
}

func (k *Kernel) drmIoctlLocked(req uint32, arg unsafe.Pointer) (Submission, bool, *tegradrm.TegraSyncptWait, error) {
	switch req {
	case tegradrm.DRM_IOCTL_TEGRA_GEM_CREATE:
		p := (*tegradrm.TegraGemCreate)(arg)
		if p.Size == 0 {
			return Submission{}, false, nil, unix.EINVAL
		}
		p.Handle = k.nextHandle
		k.nextHandle++
		k.objects[p.Handle] = &object{data: make([]byte, p.Size)}

	case tegradrm.DRM_IOCTL_TEGRA_GEM_MMAP:
		p := (*tegradrm.TegraGemMmap)(arg)
		if _, ok := k.objects[p.Handle]; !ok {
			return Submission{}, false, nil, unix.ENOENT
		}
		p.Offset = uint64(p.Handle) << 16

	case tegradrm.DRM_IOCTL_GEM_CLOSE:
		p := (*tegradrm.GemClose)(arg)
		if _, ok := k.objects[p.Handle]; !ok {
			return Submission{}, false, nil, unix.EINVAL
		}
		delete(k.objects, p.Handle)

	case tegradrm.DRM_IOCTL_GEM_FLINK:
		p := (*tegradrm.GemFlink)(arg)
		o, ok := k.objects[p.Handle]
		if !ok {
			return Submission{}, false, nil, unix.ENOENT
		}
		p.Name = k.nextName
		k.nextName++
		k.names[p.Name] = o

	case tegradrm.DRM_IOCTL_GEM_OPEN:
		p := (*tegradrm.GemOpen)(arg)
		o, ok := k.names[p.Name]
		if !ok {
			return Submission{}, false, nil, unix.ENOENT
		}
		p.Handle = k.nextHandle
		k.nextHandle++
		p.Size = uint64(len(o.data))
		k.objects[p.Handle] = o

	case tegradrm.DRM_IOCTL_PRIME_HANDLE_TO_FD:
		p := (*tegradrm.PrimeHandle)(arg)
		if _, ok := k.objects[p.Handle]; !ok {
			return Submission{}, false, nil, unix.ENOENT
		}
		p.FD = k.newFD(&file{kind: kindDmabuf})

	case tegradrm.DRM_IOCTL_TEGRA_OPEN_CHANNEL:
		p := (*tegradrm.TegraOpenChannel)(arg)
		p.Context = k.openContextLocked(host1x.Class(p.Client))

	case tegradrm.DRM_IOCTL_TEGRA_CLOSE_CHANNEL:
		p := (*tegradrm.TegraCloseChannel)(arg)
		if err := k.closeContextLocked(p.Context); err != nil {
			return Submission{}, false, nil, err
		}

	case tegradrm.DRM_IOCTL_TEGRA_GET_SYNCPT:
		p := (*tegradrm.TegraGetSyncpt)(arg)
		if _, ok := k.contexts[p.Context]; !ok || p.Index != 0 {
			return Submission{}, false, nil, unix.EINVAL
		}
		for id, s := range k.syncpts {
			if s.context == p.Context {
				p.ID = id
				return Submission{}, false, nil, nil
			}
		}
		p.ID = k.nextSyncpt
		k.nextSyncpt++
		k.syncpts[p.ID] = &syncpoint{context: p.Context}

	case tegradrm.DRM_IOCTL_TEGRA_SYNCPT_WAIT:
		p := (*tegradrm.TegraSyncptWait)(arg)
		if _, ok := k.syncpts[p.ID]; !ok {
			return Submission{}, false, nil, unix.EINVAL
		}
		if k.reachedLocked(p.ID, p.Thresh) {
			p.Value = k.syncpts[p.ID].value
			return Submission{}, false, nil, nil
		}
		return Submission{}, false, p, nil

	case tegradrm.DRM_IOCTL_TEGRA_SUBMIT:
		p := (*tegradrm.TegraSubmit)(arg)
		class, ok := k.contexts[p.Context]
		if !ok || p.NumSyncpts != 1 || p.NumCmdbufs != 1 {
			return Submission{}, false, nil, unix.EINVAL
		}
		syncpt := userSlice[tegradrm.TegraSyncpt](p.Syncpts, 1)[0]
		if _, ok := k.syncpts[syncpt.ID]; !ok {
			return Submission{}, false, nil, unix.EINVAL
		}
		cmdbuf := userSlice[tegradrm.TegraCmdbuf](p.Cmdbufs, 1)[0]
		o, ok := k.objects[cmdbuf.Handle]
		if !ok || int(cmdbuf.Offset+cmdbuf.Words*4) > len(o.data) {
			return Submission{}, false, nil, unix.EINVAL
		}
		words := make([]uint32, cmdbuf.Words)
		for i := range words {
			words[i] = binary.NativeEndian.Uint32(o.data[int(cmdbuf.Offset)+4*i:])
		}
		var relocs []Reloc
		for _, r := range userSlice[tegradrm.TegraReloc](p.Relocs, p.NumRelocs) {
			if r.Cmdbuf.Handle != cmdbuf.Handle {
				return Submission{}, false, nil, unix.EINVAL
			}
			if _, ok := k.objects[r.Target.Handle]; !ok {
				return Submission{}, false, nil, unix.ENOENT
			}
			relocs = append(relocs, Reloc{
				Word:   (r.Cmdbuf.Offset - cmdbuf.Offset) / 4,
				Handle: r.Target.Handle,
				Offset: r.Target.Offset,
				Shift:  r.Shift,
			})
		}
		var sub Submission
		p.Fence, sub = k.submitLocked(class, p.Context, syncpt.ID, words, relocs, nil)
		return sub, true, nil, nil

	case tegradrm.DRM_IOCTL_TEGRA_CHANNEL_OPEN:
		p := (*tegradrm.TegraChannelOpen)(arg)
		p.Context = uint32(k.openContextLocked(host1x.Class(p.Host1xClass)))

	case tegradrm.DRM_IOCTL_TEGRA_CHANNEL_CLOSE:
		p := (*tegradrm.TegraChannelClose)(arg)
		if err := k.closeContextLocked(uint64(p.Context)); err != nil {
			return Submission{}, false, nil, err
		}

	case tegradrm.DRM_IOCTL_TEGRA_CHANNEL_MAP:
		p := (*tegradrm.TegraChannelMap)(arg)
		if _, ok := k.contexts[uint64(p.Context)]; !ok {
			return Submission{}, false, nil, unix.EINVAL
		}
		if _, ok := k.objects[p.Handle]; !ok {
			return Submission{}, false, nil, unix.ENOENT
		}
		p.Mapping = k.nextMapping
		k.nextMapping++
		k.mappings[p.Mapping] = mapping{context: uint64(p.Context), handle: p.Handle, flags: p.Flags}

	case tegradrm.DRM_IOCTL_TEGRA_CHANNEL_UNMAP:
		p := (*tegradrm.TegraChannelUnmap)(arg)
		m, ok := k.mappings[p.Mapping]
		if !ok || m.context != uint64(p.Context) {
			return Submission{}, false, nil, unix.EINVAL
		}
		delete(k.mappings, p.Mapping)

	case tegradrm.DRM_IOCTL_TEGRA_CHANNEL_SUBMIT:
		p := (*tegradrm.TegraChannelSubmit)(arg)
		ctx := uint64(p.Context)
		class, ok := k.contexts[ctx]
		if !ok || p.NumCmds != 1 {
			return Submission{}, false, nil, unix.EINVAL
		}
		sf, ok := k.fds[p.SyncptIncr.SyncptFD]
		if !ok || sf.kind != kindSyncpt || p.SyncptIncr.NumIncrs != 1 {
			return Submission{}, false, nil, unix.EINVAL
		}
		cmd := userSlice[tegradrm.TegraSubmitCmd](p.CmdsPtr, 1)[0]
		if cmd.Type != tegradrm.DRM_TEGRA_SUBMIT_CMD_GATHER_UPTR || cmd.Words != p.GatherDataWords {
			return Submission{}, false, nil, unix.EINVAL
		}
		words := append([]uint32(nil), userSlice[uint32](p.GatherDataPtr, p.GatherDataWords)...)
		var relocs []Reloc
		var mappings []uint32
		for _, b := range userSlice[tegradrm.TegraSubmitBuf](p.BufsPtr, p.NumBufs) {
			m, ok := k.mappings[b.Mapping]
			if !ok || m.context != ctx {
				return Submission{}, false, nil, unix.EINVAL
			}
			relocs = append(relocs, Reloc{
				Word:   b.Reloc.GatherOffsetWords,
				Handle: m.handle,
				Offset: uint32(b.Reloc.TargetOffset),
				Shift:  b.Reloc.Shift,
			})
			mappings = append(mappings, b.Mapping)
		}
		var sub Submission
		p.SyncptIncr.FenceValue, sub = k.submitLocked(class, ctx, sf.syncpt, words, relocs, mappings)
		return sub, true, nil, nil

	default:
		return Submission{}, false, nil, unix.ENOTTY
	}
	return Submission{}, false, nil, nil
}

func (k *Kernel) host1xIoctlLocked(req uint32, arg unsafe.Pointer) error {
	switch req {
	case host1x.HOST1X_IOCTL_ALLOCATE_SYNCPOINT:
		p := (*host1x.AllocateSyncpoint)(arg)
		id := k.nextSyncpt
		k.nextSyncpt++
		k.syncpts[id] = &syncpoint{}
		p.FD = k.newFD(&file{kind: kindSyncpt, syncpt: id})
	case host1x.HOST1X_IOCTL_CREATE_FENCE:
		p := (*host1x.CreateFence)(arg)
		if _, ok := k.syncpts[p.ID]; !ok {
			return unix.EINVAL
		}
		p.FenceFD = k.newFD(&file{kind: kindFence, syncpt: p.ID, threshold: p.Threshold})
	default:
		return unix.ENOTTY
	}
	return nil
}

func (k *Kernel) openContextLocked(class host1x.Class) uint64 {
	ctx := k.nextContext
	k.nextContext++
	k.contexts[ctx] = class
	return ctx
}

func (k *Kernel) closeContextLocked(ctx uint64) error {
	if _, ok := k.contexts[ctx]; !ok {
		return unix.EINVAL
	}
	delete(k.contexts, ctx)
	for id, s := range k.syncpts {
		if s.context == ctx {
			delete(k.syncpts, id)
		}
	}
	return nil
}
