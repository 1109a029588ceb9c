// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package torchpickle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlpodyssey/torchpickle/dtype"
)

func TestElements(t *testing.T) {
	testCases := []struct {
		name string
		dt   dtype.DType
		data []byte
		want []float64
	}{
		{"bool", dtype.Bool, []byte{0, 1, 2}, []float64{0, 1, 1}},
		{"uint8", dtype.U8, []byte{0, 127, 255}, []float64{0, 127, 255}},
		{"int8", dtype.I8, []byte{0xff, 0x7f}, []float64{-1, 127}},
		{"int16", dtype.I16, []byte{0xff, 0xff, 0x00, 0x01}, []float64{-1, 256}},
		{"int32", dtype.I32, []byte{0xfe, 0xff, 0xff, 0xff}, []float64{-2}},
		{"int64", dtype.I64, []byte{1, 0, 0, 0, 0, 0, 0, 0}, []float64{1}},
		{"float16", dtype.F16, []byte{0x00, 0x3c, 0x00, 0xc0}, []float64{1, -2}},
		{"bfloat16", dtype.BF16, []byte{0x80, 0x3f, 0x00, 0xc0}, []float64{1, -2}},
		{"float32", dtype.F32, []byte{0x00, 0x00, 0x20, 0x40}, []float64{2.5}},
		{"float64", dtype.F64, []byte{0, 0, 0, 0, 0, 0, 0x04, 0x40}, []float64{2.5}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Elements(tc.dt, tc.data, 0)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("max truncates", func(t *testing.T) {
		got, err := Elements(dtype.U8, []byte{1, 2, 3, 4}, 2)
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2}, got)
	})

	t.Run("ragged length", func(t *testing.T) {
		_, err := Elements(dtype.F32, []byte{1, 2, 3}, 0)
		assert.Error(t, err)
	})

	t.Run("invalid dtype", func(t *testing.T) {
		_, err := Elements(dtype.DType(0), []byte{1}, 0)
		assert.Error(t, err)
	})
}
