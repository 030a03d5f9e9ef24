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

package vic

import "gvisor.dev/tegravid/pkg/surface"

// Input is a source surface. X and Y are the top left corner of the source
// rectangle; it extends to the surface's bottom right corner.
type Input struct {
	surface.Surface
	X, Y uint32
}

// Op is one composition: the optional input scaled onto the whole output,
// over a background of the clear colour. Clear components range over
// [0, 1].
type Op struct {
	Output surface.Surface
	Input  *Input

	ClearR, ClearG, ClearB float32
}
