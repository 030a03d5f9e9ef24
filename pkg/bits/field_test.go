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

package bits

import (
	"bytes"
	"testing"
)

func TestFieldPut(t *testing.T) {
	for _, tc := range []struct {
		name  string
		field Field
		v     uint64
		want  []byte
	}{
		{
			name:  "low bit",
			field: Field{Offset: 0, Width: 1},
			v:     1,
			want:  []byte{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		},
		{
			name:  "ten bits at 6",
			field: Field{Offset: 6, Width: 10},
			v:     1023,
			want:  []byte{0xc0, 0xff, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		},
		{
			name:  "top bit of second word",
			field: Field{Offset: 127, Width: 1},
			v:     1,
			want:  []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x80},
		},
		{
			name:  "truncated",
			field: Field{Offset: 64, Width: 4},
			v:     0x1f,
			want:  []byte{0, 0, 0, 0, 0, 0, 0, 0, 0x0f, 0, 0, 0, 0, 0, 0, 0},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, 16)
			tc.field.Put(buf, tc.v)
			if !bytes.Equal(buf, tc.want) {
				t.Errorf("Put(%#x): got %x, want %x", tc.v, buf, tc.want)
			}
			if got, want := tc.field.Get(buf), tc.v&LowMask64(tc.field.Width); got != want {
				t.Errorf("Get: got %#x, want %#x", got, want)
			}
		})
	}
}

func TestFieldPreservesNeighbours(t *testing.T) {
	buf := bytes.Repeat([]byte{0xff}, 8)
	Field{Offset: 20, Width: 20}.Put(buf, 0)
	if got, want := (Field{Offset: 0, Width: 20}).Get(buf), uint64(0xfffff); got != want {
		t.Errorf("low neighbour: got %#x, want %#x", got, want)
	}
	if got, want := (Field{Offset: 40, Width: 24}).Get(buf), uint64(0xffffff); got != want {
		t.Errorf("high neighbour: got %#x, want %#x", got, want)
	}
}

func TestFieldStraddlePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Put across a word boundary did not panic")
		}
	}()
	Field{Offset: 60, Width: 8}.Put(make([]byte, 16), 1)
}

func TestField32(t *testing.T) {
	buf := make([]byte, 8)
	Field32{Offset: 1, Width: 12}.Put(buf, 0xabc)
	Field32{Offset: 32, Width: 8}.Put(buf, 0x5a)
	want := []byte{0x78, 0x15, 0, 0, 0x5a, 0, 0, 0}
	if !bytes.Equal(buf, want) {
		t.Errorf("got %x, want %x", buf, want)
	}
	if got := (Field32{Offset: 1, Width: 12}).Get(buf); got != 0xabc {
		t.Errorf("Get: got %#x, want 0xabc", got)
	}
}

func TestAlignUp(t *testing.T) {
	for _, tc := range []struct{ v, align, want uint64 }{
		{0, 16, 0},
		{1, 16, 16},
		{16, 16, 16},
		{1080, 16, 1088},
		{1920, 256, 2048},
		{5, 0x1000, 0x1000},
	} {
		if got := AlignUp(tc.v, tc.align); got != tc.want {
			t.Errorf("AlignUp(%d, %d): got %d, want %d", tc.v, tc.align, got, tc.want)
		}
	}
	if !IsOn64(0xf0, MaskOf64(4)|MaskOf64(7)) {
		t.Errorf("IsOn64(0xf0, bits 4,7) = false")
	}
}
