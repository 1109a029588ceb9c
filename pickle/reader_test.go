// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pickle

import (
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderNext_Success(t *testing.T) {
	binFloat := append([]byte{byte(OpBinFloat)}, binary.BigEndian.AppendUint64(nil, math.Float64bits(3.5))...)
	frame := append([]byte{byte(OpFrame)}, binary.LittleEndian.AppendUint64(nil, 13)...)

	testCases := []struct {
		name string
		data []byte
		want Op
	}{
		{"NONE", []byte("N"), Op{Code: OpNone}},
		{"MARK", []byte("("), Op{Code: OpMark}},
		{"MEMOIZE", []byte("\x94"), Op{Code: OpMemoize}},
		{"BININT positive", []byte("J\x2a\x00\x00\x00"), Op{Code: OpBinInt, Int: 42}},
		{"BININT negative", []byte("J\xff\xff\xff\xff"), Op{Code: OpBinInt, Int: -1}},
		{"BININT1", []byte("K\x07"), Op{Code: OpBinInt1, Uint: 7}},
		{"BININT2", []byte("M\x39\x05"), Op{Code: OpBinInt2, Uint: 1337}},
		{"BINFLOAT", binFloat, Op{Code: OpBinFloat, Float: 3.5}},
		{"SHORT_BINUNICODE", []byte("\x8c\x03abc"), Op{Code: OpShortBinUnicode, Text: "abc"}},
		{"BINUNICODE", []byte("X\x03\x00\x00\x00abc"), Op{Code: OpBinUnicode, Text: "abc"}},
		{"SHORT_BINBYTES", []byte("C\x02\x01\x02"), Op{Code: OpShortBinBytes, Bytes: []byte{1, 2}}},
		{"LONG1", []byte("\x8a\x01\xff"), Op{Code: OpLong1, Bytes: []byte{0xff}}},
		{"GLOBAL", []byte("ctorch\nFloatStorage\n"), Op{Code: OpGlobal, Module: "torch", Name: "FloatStorage"}},
		{"INT text", []byte("I42\n"), Op{Code: OpInt, Text: "42"}},
		{"GET text", []byte("g5\n"), Op{Code: OpGet, Text: "5"}},
		{"PROTO", []byte("\x80\x02"), Op{Code: OpProto, Uint: 2}},
		{"FRAME", frame, Op{Code: OpFrame, Uint: 13}},
		{"EXT2", []byte("\x83\xff\xff"), Op{Code: OpExt2, Int: -1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewReader(tc.data)
			op, err := r.Next()
			require.NoError(t, err)
			assert.Equal(t, tc.want, op)

			_, err = r.Next()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestReaderNext_Sequence(t *testing.T) {
	r := NewReader([]byte("\x80\x04]K\x01a."))

	wantCodes := []Opcode{OpProto, OpEmptyList, OpBinInt1, OpAppend, OpStop}
	wantOffsets := []int{0, 2, 3, 5, 6}

	for i, want := range wantCodes {
		op, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, want, op.Code)
		assert.Equal(t, wantOffsets[i], op.Offset)
	}

	_, err := r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderNext_Truncated(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"BININT missing bytes", []byte("J\x01\x02")},
		{"BININT1 missing byte", []byte("K")},
		{"BINFLOAT missing bytes", []byte("G\x00\x00")},
		{"SHORT_BINUNICODE short content", []byte("\x8c\x05ab")},
		{"BINUNICODE missing length", []byte("X\x03\x00")},
		{"BINBYTES8 giant length", []byte("\x8e\xff\xff\xff\xff\xff\xff\xff\xff")},
		{"GLOBAL missing newline", []byte("ctorch")},
		{"GLOBAL missing second line", []byte("ctorch\nFloatStorage")},
		{"INT missing newline", []byte("I42")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewReader(tc.data).Next()
			assert.ErrorIs(t, err, ErrTruncatedInput)
		})
	}
}

func TestReaderNext_UnknownOpcode(t *testing.T) {
	_, err := NewReader([]byte("\xff")).Next()
	assert.ErrorIs(t, err, ErrUnknownOpcode)
	assert.ErrorContains(t, err, "0xff")
}

func TestReaderNext_EOF(t *testing.T) {
	_, err := NewReader(nil).Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpcodeString(t *testing.T) {
	assert.Equal(t, "MARK", OpMark.String())
	assert.Equal(t, "STACK_GLOBAL", OpStackGlobal.String())
	assert.Equal(t, "UNKNOWN", Opcode(0xff).String())
}
