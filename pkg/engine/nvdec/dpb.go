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

	nvdecabi "gvisor.dev/tegravid/pkg/abi/nvdec"
	"gvisor.dev/tegravid/pkg/errors/hwerr"
)

// ErrSlotNotFound is returned by DPB.Get for an identity without a slot when
// insertion was not requested.
var ErrSlotNotFound = errors.New("no reference slot for picture")

type dpbSlot struct {
	id   uint32
	used bool
}

// DPB assigns the engine's picture slots to reference pictures. A picture
// keeps its slot until the caller forgets it; a full table is never evicted.
type DPB struct {
	slots [nvdecabi.NumPictureSlots]dpbSlot
}

// Get returns the slot of picture id. If id has no slot and insert is set, id
// takes the first free slot, or SlotTableFull if there is none.
func (d *DPB) Get(id uint32, insert bool) (int, error) {
	free := -1
	for i, s := range d.slots {
		if s.used && s.id == id {
			return i, nil
		}
		if !s.used && free < 0 {
			free = i
		}
	}
	if !insert {
		return 0, ErrSlotNotFound
	}
	if free < 0 {
		return 0, hwerr.Wrapf(hwerr.SlotTableFull, nil, "inserting picture %d", id)
	}
	d.slots[free] = dpbSlot{id: id, used: true}
	return free, nil
}

// Forget releases the slot of picture id, for callers destroying the
// picture. It reports whether id had a slot.
func (d *DPB) Forget(id uint32) bool {
	for i, s := range d.slots {
		if s.used && s.id == id {
			d.slots[i] = dpbSlot{}
			return true
		}
	}
	return false
}

// Reset releases every slot.
func (d *DPB) Reset() {
	d.slots = [nvdecabi.NumPictureSlots]dpbSlot{}
}

// Len returns the number of slots in use.
func (d *DPB) Len() int {
	n := 0
	for _, s := range d.slots {
		if s.used {
			n++
		}
	}
	return n
}
