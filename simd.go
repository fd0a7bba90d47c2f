// Copyright 2025 rawspeed Authors
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

package rawspeed

import (
	"github.com/ajroetker/go-highway/hwy"
)

// SIMD helpers for the per-row hot loops of the VC-5 path. All of them
// follow the bulk-vector-plus-scalar-tail pattern so the scalar tail
// stays the source of truth for the arithmetic.

// dequantizeRow multiplies each coefficient by quant in place.
// Coefficient magnitudes after decode are small enough that the int16
// product cannot overflow for the quantizer range VC-5 emits.
func dequantizeRow(row []int16, quant int16) {
	if quant == 1 {
		return
	}
	q := hwy.Set(quant)
	lanes := hwy.MaxLanes[int16]()
	i := 0
	for ; i+lanes <= len(row); i += lanes {
		v := hwy.Load(row[i:])
		hwy.Store(hwy.Mul(v, q), row[i:])
	}
	for ; i < len(row); i++ {
		row[i] *= quant
	}
}

// descaleRow arithmetic-right-shifts each sample in place.
func descaleRow(row []int16, shift int) {
	if shift == 0 {
		return
	}
	lanes := hwy.MaxLanes[int16]()
	i := 0
	for ; i+lanes <= len(row); i += lanes {
		v := hwy.Load(row[i:])
		hwy.Store(hwy.ShiftRight(v, shift), row[i:])
	}
	for ; i < len(row); i++ {
		row[i] >>= shift
	}
}

// clampRowUint clamps each sample in place to [0, 2^depth - 1].
func clampRowUint(row []int16, depth int) {
	maxVal := int16(1<<depth - 1)
	lo := hwy.Zero[int16]()
	hi := hwy.Set(maxVal)
	lanes := hwy.MaxLanes[int16]()
	i := 0
	for ; i+lanes <= len(row); i += lanes {
		v := hwy.Load(row[i:])
		hwy.Store(hwy.Min(hwy.Max(v, lo), hi), row[i:])
	}
	for ; i < len(row); i++ {
		if row[i] < 0 {
			row[i] = 0
		} else if row[i] > maxVal {
			row[i] = maxVal
		}
	}
}
