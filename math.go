// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package torchpickle

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

var errInt64Overflow = errors.New("int64 overflow")

// checkedMulInt64 multiplies two non-negative int64 values and checks
// for overflow.
func checkedMulInt64(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, fmt.Errorf("unexpected negative number")
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d * %d", errInt64Overflow, a, b)
	}
	return int64(lo), nil
}

// checkedAddInt64 adds two non-negative int64 values and checks for
// overflow.
func checkedAddInt64(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, fmt.Errorf("unexpected negative number")
	}
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 || sum > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d + %d", errInt64Overflow, a, b)
	}
	return int64(sum), nil
}
