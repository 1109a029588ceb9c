// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pickle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Reader splits a pickle byte stream into a sequence of Op tokens,
// consuming exactly the bytes each opcode's encoding specifies.
//
// It performs no semantic validation beyond byte-level well-formedness:
// interpreting the tokens is the job of Decode. The sequence is finite
// and single-pass; Next returns io.EOF once all bytes are consumed.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a Reader over the given bytes. The slice is not
// copied and must not be mutated while the Reader is in use.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the byte position of the next opcode tag.
func (r *Reader) Offset() int {
	return r.pos
}

// Next decodes and returns the next Op.
//
// It fails with ErrTruncatedInput if fewer bytes remain than the opcode
// declares, and with ErrUnknownOpcode for an unrecognized tag byte.
// When no bytes remain at an opcode boundary, it returns io.EOF.
func (r *Reader) Next() (Op, error) {
	if r.pos >= len(r.data) {
		return Op{}, io.EOF
	}
	op := Op{Code: Opcode(r.data[r.pos]), Offset: r.pos}
	r.pos++

	var err error
	switch op.Code {
	case OpMark, OpStop, OpPop, OpPopMark, OpDup, OpNone, OpBinPersID,
		OpReduce, OpAppend, OpBuild, OpDict, OpEmptyDict, OpAppends,
		OpList, OpEmptyList, OpObj, OpSetItem, OpTuple, OpEmptyTuple,
		OpSetItems, OpNewObj, OpTuple1, OpTuple2, OpTuple3, OpNewTrue,
		OpNewFalse, OpEmptySet, OpAddItems, OpFrozenSet, OpNewObjEx,
		OpStackGlobal, OpMemoize, OpNextBuffer, OpReadonlyBuffer:
		// no operand

	case OpFloat, OpInt, OpLong, OpPersID, OpString, OpUnicode, OpGet, OpPut:
		op.Text, err = r.readLine(op)

	case OpGlobal, OpInst:
		if op.Module, err = r.readLine(op); err == nil {
			op.Name, err = r.readLine(op)
		}

	case OpBinInt:
		var u uint32
		if u, err = r.readUint32(op); err == nil {
			op.Int = int64(int32(u))
		}

	case OpBinInt1, OpBinGet, OpBinPut, OpProto, OpExt1:
		op.Uint, err = r.readUint8(op)

	case OpBinInt2:
		var u uint32
		if u, err = r.readUint16(op); err == nil {
			op.Uint = uint64(u)
		}

	case OpLongBinGet, OpLongBinPut:
		var u uint32
		if u, err = r.readUint32(op); err == nil {
			op.Uint = uint64(u)
		}

	case OpExt2:
		var u uint32
		if u, err = r.readUint16(op); err == nil {
			op.Int = int64(int16(u))
		}

	case OpExt4:
		var u uint32
		if u, err = r.readUint32(op); err == nil {
			op.Int = int64(int32(u))
		}

	case OpBinFloat:
		// unlike every other fixed-width operand, BINFLOAT is big-endian
		var b []byte
		if b, err = r.readN(8, op); err == nil {
			op.Float = math.Float64frombits(binary.BigEndian.Uint64(b))
		}

	case OpFrame:
		op.Uint, err = r.readUint64(op)

	case OpBinString, OpBinBytes, OpLong4:
		op.Bytes, err = r.readPrefixed32(op)

	case OpShortBinString, OpShortBinBytes, OpLong1:
		op.Bytes, err = r.readPrefixed8(op)

	case OpBinBytes8, OpByteArray8:
		op.Bytes, err = r.readPrefixed64(op)

	case OpBinUnicode:
		var b []byte
		if b, err = r.readPrefixed32(op); err == nil {
			op.Text = string(b)
		}

	case OpShortBinUnicode:
		var b []byte
		if b, err = r.readPrefixed8(op); err == nil {
			op.Text = string(b)
		}

	case OpBinUnicode8:
		var b []byte
		if b, err = r.readPrefixed64(op); err == nil {
			op.Text = string(b)
		}

	default:
		return Op{}, fmt.Errorf("%w: tag 0x%02x at offset %d", ErrUnknownOpcode, byte(op.Code), op.Offset)
	}

	if err != nil {
		return Op{}, err
	}
	return op, nil
}

func (r *Reader) truncated(op Op, want int) error {
	return fmt.Errorf("%w: %s at offset %d declares %d operand bytes, %d remain",
		ErrTruncatedInput, op.Code, op.Offset, want, len(r.data)-r.pos)
}

func (r *Reader) readN(n int, op Op) ([]byte, error) {
	if len(r.data)-r.pos < n {
		return nil, r.truncated(op, n)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// readLine consumes bytes up to and including the next newline,
// returning the content without the terminator.
func (r *Reader) readLine(op Op) (string, error) {
	i := bytes.IndexByte(r.data[r.pos:], '\n')
	if i < 0 {
		return "", fmt.Errorf("%w: %s at offset %d has no newline terminator",
			ErrTruncatedInput, op.Code, op.Offset)
	}
	s := string(r.data[r.pos : r.pos+i])
	r.pos += i + 1
	return s, nil
}

func (r *Reader) readUint8(op Op) (uint64, error) {
	b, err := r.readN(1, op)
	if err != nil {
		return 0, err
	}
	return uint64(b[0]), nil
}

func (r *Reader) readUint16(op Op) (uint32, error) {
	b, err := r.readN(2, op)
	if err != nil {
		return 0, err
	}
	return uint32(binary.LittleEndian.Uint16(b)), nil
}

func (r *Reader) readUint32(op Op) (uint32, error) {
	b, err := r.readN(4, op)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) readUint64(op Op) (uint64, error) {
	b, err := r.readN(8, op)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) readPrefixed8(op Op) ([]byte, error) {
	n, err := r.readUint8(op)
	if err != nil {
		return nil, err
	}
	return r.readN(int(n), op)
}

func (r *Reader) readPrefixed32(op Op) ([]byte, error) {
	n, err := r.readUint32(op)
	if err != nil {
		return nil, err
	}
	return r.readN(int(n), op)
}

func (r *Reader) readPrefixed64(op Op) ([]byte, error) {
	n, err := r.readUint64(op)
	if err != nil {
		return nil, err
	}
	if n > uint64(len(r.data)-r.pos) {
		return nil, fmt.Errorf("%w: %s at offset %d declares %d operand bytes, %d remain",
			ErrTruncatedInput, op.Code, op.Offset, n, len(r.data)-r.pos)
	}
	return r.readN(int(n), op)
}
