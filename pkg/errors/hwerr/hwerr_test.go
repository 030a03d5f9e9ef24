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

package hwerr

import (
	"errors"
	"fmt"
	"testing"

	"golang.org/x/sys/unix"
)

func TestWrapMatchesClassAndCause(t *testing.T) {
	err := Wrap(MapFailed, unix.ENOMEM)
	if !errors.Is(err, MapFailed) {
		t.Errorf("errors.Is(%v, MapFailed) = false", err)
	}
	if !errors.Is(err, unix.ENOMEM) {
		t.Errorf("errors.Is(%v, ENOMEM) = false", err)
	}
	if errors.Is(err, ChannelMapFailed) {
		t.Errorf("errors.Is(%v, ChannelMapFailed) = true", err)
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(WaitTimeout, nil); err != WaitTimeout {
		t.Errorf("Wrap(WaitTimeout, nil): got %v, want WaitTimeout", err)
	}
}

func TestCodeOf(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want uint32
	}{
		{"nil", nil, 0},
		{"plain", fmt.Errorf("boom"), 0},
		{"direct", SlotTableFull, uint32(CodeSlotTableFull)},
		{"wrapped", Wrapf(ChannelMapFailed, unix.EINVAL, "context %d", 3), uint32(CodeChannelMapFailed)},
		{"nested", Wrap(OperationFailed, Wrap(ChannelMapFailed, unix.EINVAL)), uint32(CodeChannelMapFailed)},
		{"operation only", Wrapf(OperationFailed, nil, "submit"), uint32(CodeOperationFailed)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := uint32(CodeOf(tc.err)); got != tc.want {
				t.Errorf("CodeOf(%v): got %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}
