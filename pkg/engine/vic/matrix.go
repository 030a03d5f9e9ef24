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

import (
	vicabi "gvisor.dev/tegravid/pkg/abi/vic"
)

// Rec601 converts limited range BT.601 YCbCr to full range RGB. Rows are R,
// G and B; the last column is the translation.
var Rec601 = [3][4]float32{
	{1.16438356, 0.00000000, 1.59602679, -0.87420222},
	{1.16438356, -0.39176229, -0.81296765, 0.53166782},
	{1.16438356, 2.01723214, 0.00000000, -1.08563079},
}

const (
	// translationOne is 1.0 in the translation column.
	translationOne = 0x3ff00

	maxMatrixShift = 15
	coeffMax       = 1<<19 - 1
	coeffMin       = -(1 << 19)
)

func toFixed(v, one float32) int32 {
	// The conversion rounds the product before the addition so the result
	// does not depend on fused multiply-add. int32 truncates toward zero, so
	// negative coefficients land one above round(), as in the hardware
	// tables.
	x := float32(v*one) + 0.5
	switch {
	case x < coeffMin:
		return coeffMin
	case x > coeffMax:
		return coeffMax
	}
	return int32(x)
}

// MatrixToFixed converts m to the engine's fixed point form. The linear
// coefficients get as many fractional bits as fit, up to 15 plus 8, so that
// the largest magnitude reaches at least 1024; the shift is stored in
// RShift. Results are clamped to 20-bit two's complement.
func MatrixToFixed(m [3][4]float32) vicabi.MatrixStruct {
	peak := m[0][0]
	for _, row := range m {
		for _, v := range row {
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
	}
	shift := 0
	for shift < maxMatrixShift && peak < 1024 {
		shift++
		peak *= 2
	}

	out := vicabi.MatrixStruct{RShift: uint8(shift), Enable: true}
	one := float32(int32(1) << (shift + 8))
	for r, row := range m {
		for c := 0; c < 3; c++ {
			out.Coeff[r][c] = toFixed(row[c], one)
		}
		out.Coeff[r][3] = toFixed(row[3], translationOne)
	}
	return out
}
