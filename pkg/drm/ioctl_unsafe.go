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
	"runtime"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// ioctl issues req on fd with params as the parameter structure. params must
// not contain Go pointers; user addresses are passed as integers.
func ioctl[Req constraints.Integer, Params any](k Kernel, fd int32, req Req, params *Params) error {
	err := k.Ioctl(fd, uint32(req), unsafe.Pointer(params))
	runtime.KeepAlive(params)
	return err
}

// addrOf returns the user address of the first element of s, or 0 for an
// empty slice. The caller keeps s alive until the ioctl consuming the address
// returns.
func addrOf[T any](s []T) uint64 {
	if len(s) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&s[0])))
}
