// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package torchpickle

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/nlpodyssey/torchpickle/dtype"
	"github.com/nlpodyssey/torchpickle/float16"
)

// Elements interprets raw little-endian storage bytes as a slice of
// float64 values, for inspection and previewing. Integer and
// half-precision elements are widened; the conversion is lossy only
// for int64 values beyond 2^53.
//
// If max is positive, at most max elements are interpreted.
func Elements(dt dtype.DType, data []byte, max int) ([]float64, error) {
	size := dt.Size()
	if size <= 0 {
		return nil, fmt.Errorf("invalid DType(%d)", dt)
	}
	if len(data)%size != 0 {
		return nil, fmt.Errorf("data length %d is not a multiple of %s element size %d",
			len(data), dt, size)
	}
	n := len(data) / size
	if max > 0 && n > max {
		n = max
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		b := data[i*size:]
		switch dt {
		case dtype.Bool:
			if b[0] != 0 {
				out[i] = 1
			}
		case dtype.U8:
			out[i] = float64(b[0])
		case dtype.I8:
			out[i] = float64(int8(b[0]))
		case dtype.I16:
			out[i] = float64(int16(binary.LittleEndian.Uint16(b)))
		case dtype.I32:
			out[i] = float64(int32(binary.LittleEndian.Uint32(b)))
		case dtype.I64:
			out[i] = float64(int64(binary.LittleEndian.Uint64(b)))
		case dtype.F16:
			out[i] = float64(float16.F16(binary.LittleEndian.Uint16(b)).Float32())
		case dtype.BF16:
			out[i] = float64(float16.BF16(binary.LittleEndian.Uint16(b)).Float32())
		case dtype.F32:
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		case dtype.F64:
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
	}
	return out, nil
}
