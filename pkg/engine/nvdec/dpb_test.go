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

package nvdec

import (
	"errors"
	"testing"

	nvdecabi "gvisor.dev/tegravid/pkg/abi/nvdec"
	"gvisor.dev/tegravid/pkg/errors/hwerr"
)

func TestDPBFill(t *testing.T) {
	var d DPB
	for id := uint32(100); id < 100+nvdecabi.NumPictureSlots; id++ {
		slot, err := d.Get(id, true)
		if err != nil {
			t.Fatalf("Get(%d, true): %v", id, err)
		}
		if want := int(id - 100); slot != want {
			t.Errorf("Get(%d, true): got slot %d, want %d", id, slot, want)
		}
	}
	if _, err := d.Get(200, true); !errors.Is(err, hwerr.SlotTableFull) {
		t.Errorf("Get on a full table: got %v, want %v", err, hwerr.SlotTableFull)
	}
	if got := d.Len(); got != nvdecabi.NumPictureSlots {
		t.Errorf("Len: got %d, want %d", got, nvdecabi.NumPictureSlots)
	}
	for id := uint32(100); id < 100+nvdecabi.NumPictureSlots; id++ {
		for _, insert := range []bool{false, true} {
			if slot, err := d.Get(id, insert); err != nil || slot != int(id-100) {
				t.Errorf("Get(%d, %t): got (%d, %v), want (%d, nil)", id, insert, slot, err, id-100)
			}
		}
	}
}

func TestDPBLookupDoesNotInsert(t *testing.T) {
	var d DPB
	if _, err := d.Get(7, false); !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("Get(7, false): got %v, want %v", err, ErrSlotNotFound)
	}
	if got := d.Len(); got != 0 {
		t.Errorf("Len after lookup: got %d, want 0", got)
	}
}

func TestDPBForget(t *testing.T) {
	var d DPB
	for id := uint32(0); id < 3; id++ {
		if _, err := d.Get(id, true); err != nil {
			t.Fatalf("Get(%d, true): %v", id, err)
		}
	}
	if !d.Forget(1) {
		t.Errorf("Forget(1) = false, want true")
	}
	if d.Forget(1) {
		t.Errorf("second Forget(1) = true, want false")
	}
	// The freed slot is the first empty one.
	if slot, err := d.Get(9, true); err != nil || slot != 1 {
		t.Errorf("Get(9, true): got (%d, %v), want (1, nil)", slot, err)
	}
	d.Reset()
	if got := d.Len(); got != 0 {
		t.Errorf("Len after Reset: got %d, want 0", got)
	}
}
