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
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Kernel is the set of host system calls the device layer relies on. It is
// satisfied by HostKernel and by the fake in package drmtest.
type Kernel interface {
	// Open opens a device node read-write and close-on-exec.
	Open(path string) (int32, error)
	Close(fd int32) error

	// Ioctl issues req on fd. arg points to the request's parameter
	// structure, which the kernel may read and write.
	Ioctl(fd int32, req uint32, arg unsafe.Pointer) error

	// Mmap maps length bytes of fd at offset shared and read-write.
	Mmap(fd int32, offset int64, length int) ([]byte, error)
	Munmap(b []byte) error

	// Poll waits up to timeout for fd to become readable. It reports
	// whether fd is ready.
	Poll(fd int32, timeout time.Duration) (bool, error)

	ReadFile(path string) ([]byte, error)
}

type hostKernel struct{}

// HostKernel returns the Kernel backed by real system calls.
func HostKernel() Kernel {
	return hostKernel{}
}

// Open implements Kernel.Open.
func (hostKernel) Open(path string) (int32, error) {
	for {
		fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return -1, err
		}
		return int32(fd), nil
	}
}

// Close implements Kernel.Close.
func (hostKernel) Close(fd int32) error {
	return unix.Close(int(fd))
}

// Ioctl implements Kernel.Ioctl.
func (hostKernel) Ioctl(fd int32, req uint32, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		default:
			return errno
		}
	}
}

// Mmap implements Kernel.Mmap.
func (hostKernel) Mmap(fd int32, offset int64, length int) ([]byte, error) {
	return unix.Mmap(int(fd), offset, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// Munmap implements Kernel.Munmap.
func (hostKernel) Munmap(b []byte) error {
	return unix.Munmap(b)
}

// Poll implements Kernel.Poll.
func (hostKernel) Poll(fd int32, timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: fd, Events: unix.POLLIN}}
	deadline := time.Now().Add(timeout)
	for {
		ms := max(time.Until(deadline).Milliseconds(), 0)
		n, err := unix.Poll(fds, int(ms))
		if err == unix.EINTR {
			if time.Now().Before(deadline) {
				continue
			}
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}
}

// ReadFile implements Kernel.ReadFile.
func (hostKernel) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
