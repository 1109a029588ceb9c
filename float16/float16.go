// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package float16

import "math"

// F16 is a 16-bit half-precision floating-point value, represented as
// raw bits (uint16).
type F16 uint16

// BF16 is a 16-bit brain floating-point value, represented as raw
// bits (uint16).
type BF16 uint16

// Float32 converts the half-precision bits to a float32.
func (f F16) Float32() float32 {
	sign := uint32(f>>15) << 31
	exp := uint32(f>>10) & 0x1f
	frac := uint32(f) & 0x3ff

	switch exp {
	case 0:
		if frac == 0 {
			return math.Float32frombits(sign)
		}
		// subnormal: normalize into the float32 range
		e := uint32(127 - 15 + 1)
		for frac&0x400 == 0 {
			frac <<= 1
			e--
		}
		frac &= 0x3ff
		return math.Float32frombits(sign | e<<23 | frac<<13)
	case 0x1f:
		// infinity or NaN
		return math.Float32frombits(sign | 0xff<<23 | frac<<13)
	default:
		return math.Float32frombits(sign | (exp+127-15)<<23 | frac<<13)
	}
}

// Float32 converts the brain-float bits to a float32.
//
// BF16 is the upper half of a float32, so the conversion is exact.
func (b BF16) Float32() float32 {
	return math.Float32frombits(uint32(b) << 16)
}
