// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pickle decodes Python pickle byte streams into inspectable
// value graphs, without executing any of the arbitrary code the format
// can nominally invoke: referenced callables and classes are reified
// as inert data (Raw, Global, Build), never resolved or called.
package pickle

import (
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"
)

// PersistentResolver is the hook invoked for every persistent
// reference met during decoding. It receives the reference key and
// returns the value to push in its place. The machine itself never
// resolves keys; by default they are wrapped in *PersId unchanged.
type PersistentResolver func(key Value) (Value, error)

// Option configures a Decode call.
type Option func(*machine)

// WithPersistentResolver sets the persistent-reference hook.
func WithPersistentResolver(fn PersistentResolver) Option {
	return func(m *machine) { m.persist = fn }
}

// Decode folds a pickle byte stream into a single root Value.
//
// Decoding terminates at the first STOP opcode; any trailing bytes are
// ignored. It fails atomically (no partial Value is ever returned) with
// an error wrapping one of the structural sentinels of this package.
//
// Each call owns its operand stack, mark stack and memo table
// exclusively: independent calls are safe from independent goroutines.
func Decode(data []byte, opts ...Option) (Value, error) {
	m := &machine{
		r:    NewReader(data),
		memo: make(map[uint32]Value),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m.run()
}

type machine struct {
	r       *Reader
	stack   []Value
	marks   []int
	memo    map[uint32]Value
	persist PersistentResolver
}

func (m *machine) run() (Value, error) {
	for {
		op, err := m.r.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: stream ends without STOP", ErrTruncatedInput)
		}
		if err != nil {
			return nil, err
		}
		if op.Code == OpStop {
			if len(m.stack) != 1 {
				return nil, fmt.Errorf("%w: %d values on the stack at STOP, expected 1",
					ErrMalformedStream, len(m.stack))
			}
			return m.stack[0], nil
		}
		if err = m.exec(op); err != nil {
			return nil, err
		}
	}
}

func (m *machine) exec(op Op) error {
	switch op.Code {
	case OpMark:
		m.marks = append(m.marks, len(m.stack))

	case OpPop:
		_, err := m.pop(op)
		return err

	case OpPopMark:
		_, err := m.popMark(op)
		return err

	case OpDup:
		v, err := m.top(op)
		if err != nil {
			return err
		}
		m.push(v)

	// Push-literal opcodes.
	case OpNone:
		m.push(None{})
	case OpNewTrue:
		m.push(Bool(true))
	case OpNewFalse:
		m.push(Bool(false))
	case OpBinInt:
		m.push(Int(op.Int))
	case OpBinInt1, OpBinInt2:
		m.push(Int(op.Uint))
	case OpBinFloat:
		m.push(Float(op.Float))
	case OpInt:
		v, err := parseTextInt(op)
		if err != nil {
			return err
		}
		m.push(v)
	case OpLong:
		v, err := parseTextLong(op)
		if err != nil {
			return err
		}
		m.push(v)
	case OpFloat:
		f, err := strconv.ParseFloat(op.Text, 64)
		if err != nil {
			return fmt.Errorf("%w: bad FLOAT operand %q at offset %d", ErrMalformedStream, op.Text, op.Offset)
		}
		m.push(Float(f))
	case OpLong1, OpLong4:
		m.push(decodeLong(op.Bytes))
	case OpString, OpUnicode, OpBinUnicode, OpShortBinUnicode, OpBinUnicode8:
		m.push(String(op.Text))
	case OpBinString, OpShortBinString:
		// binary strings predate an explicit bytes type: keep them as
		// text when they happen to be valid UTF-8
		if utf8.Valid(op.Bytes) {
			m.push(String(op.Bytes))
		} else {
			m.push(Bytes(op.Bytes))
		}
	case OpBinBytes, OpShortBinBytes, OpBinBytes8, OpByteArray8:
		m.push(Bytes(op.Bytes))

	// Container builds.
	case OpEmptyTuple:
		m.push(&Seq{Kind: Tuple})
	case OpEmptyList:
		m.push(&Seq{Kind: List})
	case OpEmptyDict:
		m.push(&Seq{Kind: Dict})
	case OpEmptySet:
		m.push(&Seq{Kind: Set})
	case OpTuple:
		items, err := m.popMark(op)
		if err != nil {
			return err
		}
		m.push(&Seq{Kind: Tuple, Items: items})
	case OpTuple1, OpTuple2, OpTuple3:
		n := 1 + int(op.Code-OpTuple1)
		items, err := m.popN(n, op)
		if err != nil {
			return err
		}
		m.push(&Seq{Kind: Tuple, Items: items})
	case OpList:
		items, err := m.popMark(op)
		if err != nil {
			return err
		}
		m.push(&Seq{Kind: List, Items: items})
	case OpDict:
		items, err := m.popMark(op)
		if err != nil {
			return err
		}
		if len(items)&1 != 0 {
			return fmt.Errorf("%w: odd number of DICT items at offset %d", ErrMalformedStream, op.Offset)
		}
		m.push(&Seq{Kind: Dict, Items: items})
	case OpFrozenSet:
		items, err := m.popMark(op)
		if err != nil {
			return err
		}
		m.push(&Seq{Kind: FrozenSet, Items: items})

	// Incremental container extension: the target is found in place on
	// the stack, not re-pushed.
	case OpAppend:
		v, err := m.pop(op)
		if err != nil {
			return err
		}
		return m.appendTop(op, v)
	case OpAppends, OpAddItems:
		items, err := m.popMark(op)
		if err != nil {
			return err
		}
		return m.appendTop(op, items...)
	case OpSetItem:
		v, err := m.pop(op)
		if err != nil {
			return err
		}
		k, err := m.pop(op)
		if err != nil {
			return err
		}
		return m.setTop(op, []Value{k, v})
	case OpSetItems:
		items, err := m.popMark(op)
		if err != nil {
			return err
		}
		if len(items)&1 != 0 {
			return fmt.Errorf("%w: odd number of SETITEMS items at offset %d", ErrMalformedStream, op.Offset)
		}
		return m.setTop(op, items)

	// Memo table.
	case OpGet:
		id, err := strconv.ParseUint(op.Text, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: bad GET memo id %q at offset %d", ErrMalformedStream, op.Text, op.Offset)
		}
		return m.pushMemo(uint32(id), op)
	case OpBinGet, OpLongBinGet:
		return m.pushMemo(uint32(op.Uint), op)
	case OpPut:
		id, err := strconv.ParseUint(op.Text, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: bad PUT memo id %q at offset %d", ErrMalformedStream, op.Text, op.Offset)
		}
		return m.bindMemo(uint32(id), op)
	case OpBinPut, OpLongBinPut:
		return m.bindMemo(uint32(op.Uint), op)
	case OpMemoize:
		return m.bindMemo(uint32(len(m.memo)), op)

	// Object construction, reified as data; nothing is ever invoked.
	case OpGlobal:
		m.push(Raw{Module: op.Module, Name: op.Name})
	case OpStackGlobal:
		name, err := m.popString(op)
		if err != nil {
			return err
		}
		module, err := m.popString(op)
		if err != nil {
			return err
		}
		m.push(Raw{Module: module, Name: name})
	case OpReduce:
		args, err := m.pop(op)
		if err != nil {
			return err
		}
		callee, err := m.pop(op)
		if err != nil {
			return err
		}
		m.push(&Global{Callee: callee, Args: []Value{args}})
	case OpBuild:
		state, err := m.pop(op)
		if err != nil {
			return err
		}
		target, err := m.pop(op)
		if err != nil {
			return err
		}
		m.push(&Build{Target: target, State: state})
	case OpNewObj:
		args, err := m.pop(op)
		if err != nil {
			return err
		}
		cls, err := m.pop(op)
		if err != nil {
			return err
		}
		m.push(&Global{Callee: cls, Args: []Value{args}})
	case OpNewObjEx:
		kwargs, err := m.pop(op)
		if err != nil {
			return err
		}
		args, err := m.pop(op)
		if err != nil {
			return err
		}
		cls, err := m.pop(op)
		if err != nil {
			return err
		}
		m.push(&Global{Callee: cls, Args: []Value{args, kwargs}})
	case OpObj:
		items, err := m.popMark(op)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("%w: OBJ with no class at offset %d", ErrStackUnderflow, op.Offset)
		}
		m.push(&Global{Callee: items[0], Args: items[1:]})
	case OpInst:
		items, err := m.popMark(op)
		if err != nil {
			return err
		}
		m.push(&Global{Callee: Raw{Module: op.Module, Name: op.Name}, Args: items})
	case OpExt1, OpExt2, OpExt4:
		code := op.Int
		if op.Code == OpExt1 {
			code = int64(op.Uint)
		}
		m.push(Raw{Module: "copyreg._extension_registry", Name: strconv.FormatInt(code, 10)})

	// Persistent references.
	case OpPersID:
		return m.pushPersistent(String(op.Text))
	case OpBinPersID:
		key, err := m.pop(op)
		if err != nil {
			return err
		}
		return m.pushPersistent(key)

	// Protocol and frame markers are advisory; the declared version is
	// never a reason to reject a stream.
	case OpProto, OpFrame:

	case OpNextBuffer:
		return fmt.Errorf("%w: out-of-band buffer requested at offset %d but none provided",
			ErrMalformedStream, op.Offset)
	case OpReadonlyBuffer:
		// read-only marking has no meaning for inert data

	default:
		return fmt.Errorf("%w: tag 0x%02x at offset %d", ErrUnknownOpcode, byte(op.Code), op.Offset)
	}
	return nil
}

func (m *machine) push(v Value) {
	m.stack = append(m.stack, v)
}

func (m *machine) pop(op Op) (Value, error) {
	if len(m.stack) == 0 {
		return nil, fmt.Errorf("%w: %s at offset %d on empty stack", ErrStackUnderflow, op.Code, op.Offset)
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

// popN pops n values, returning them in push order.
func (m *machine) popN(n int, op Op) ([]Value, error) {
	if len(m.stack) < n {
		return nil, fmt.Errorf("%w: %s at offset %d requires %d operands, %d present",
			ErrStackUnderflow, op.Code, op.Offset, n, len(m.stack))
	}
	items := make([]Value, n)
	copy(items, m.stack[len(m.stack)-n:])
	m.stack = m.stack[:len(m.stack)-n]
	return items, nil
}

func (m *machine) top(op Op) (Value, error) {
	if len(m.stack) == 0 {
		return nil, fmt.Errorf("%w: %s at offset %d on empty stack", ErrStackUnderflow, op.Code, op.Offset)
	}
	return m.stack[len(m.stack)-1], nil
}

// popMark pops everything above the most recent mark, in push order,
// and discards the mark.
func (m *machine) popMark(op Op) ([]Value, error) {
	if len(m.marks) == 0 {
		return nil, fmt.Errorf("%w: %s at offset %d without a preceding MARK",
			ErrStackUnderflow, op.Code, op.Offset)
	}
	depth := m.marks[len(m.marks)-1]
	m.marks = m.marks[:len(m.marks)-1]
	if depth > len(m.stack) {
		return nil, fmt.Errorf("%w: mark depth %d exceeds stack size %d at offset %d",
			ErrMalformedStream, depth, len(m.stack), op.Offset)
	}
	items := make([]Value, len(m.stack)-depth)
	copy(items, m.stack[depth:])
	m.stack = m.stack[:depth]
	return items, nil
}

func (m *machine) popString(op Op) (string, error) {
	v, err := m.pop(op)
	if err != nil {
		return "", err
	}
	s, ok := v.(String)
	if !ok {
		return "", fmt.Errorf("%w: %s at offset %d expects a string operand, actual %T",
			ErrMalformedStream, op.Code, op.Offset, v)
	}
	return string(s), nil
}

// appendTop extends the container at the top of the stack in place.
func (m *machine) appendTop(op Op, items ...Value) error {
	top, err := m.top(op)
	if err != nil {
		return err
	}
	switch top := top.(type) {
	case *Seq:
		top.Items = append(top.Items, items...)
	case *Global:
		top.Args = append(top.Args, items...)
	default:
		return fmt.Errorf("%w: %s at offset %d cannot extend %T",
			ErrMalformedStream, op.Code, op.Offset, top)
	}
	return nil
}

// setTop adds flattened key/value items to the mapping at the top of
// the stack. A *Seq receives them verbatim; a *Global (reified
// constructor call) receives them grouped in one tuple argument.
func (m *machine) setTop(op Op, kvItems []Value) error {
	top, err := m.top(op)
	if err != nil {
		return err
	}
	switch top := top.(type) {
	case *Seq:
		top.Items = append(top.Items, kvItems...)
	case *Global:
		top.Args = append(top.Args, &Seq{Kind: Tuple, Items: kvItems})
	default:
		return fmt.Errorf("%w: %s at offset %d cannot extend %T",
			ErrMalformedStream, op.Code, op.Offset, top)
	}
	return nil
}

func (m *machine) pushMemo(id uint32, op Op) error {
	v, ok := m.memo[id]
	if !ok {
		return fmt.Errorf("%w: id %d at offset %d", ErrMissingMemoEntry, id, op.Offset)
	}
	m.push(v)
	return nil
}

// bindMemo binds the current top of the stack to a memo id, without
// popping. Rebinding an id is allowed.
func (m *machine) bindMemo(id uint32, op Op) error {
	v, err := m.top(op)
	if err != nil {
		return err
	}
	m.memo[id] = v
	return nil
}

func (m *machine) pushPersistent(key Value) error {
	if m.persist == nil {
		m.push(&PersId{Key: key})
		return nil
	}
	v, err := m.persist(key)
	if err != nil {
		return err
	}
	m.push(v)
	return nil
}

// parseTextInt interprets the decimal operand of a protocol-0 INT.
// The special forms "00" and "01" encode booleans.
func parseTextInt(op Op) (Value, error) {
	switch op.Text {
	case "00":
		return Bool(false), nil
	case "01":
		return Bool(true), nil
	}
	if n, err := strconv.ParseInt(op.Text, 10, 64); err == nil {
		return Int(n), nil
	}
	if n, ok := new(big.Int).SetString(op.Text, 10); ok {
		return BigInt{N: n}, nil
	}
	return nil, fmt.Errorf("%w: bad INT operand %q at offset %d", ErrMalformedStream, op.Text, op.Offset)
}

func parseTextLong(op Op) (Value, error) {
	text := strings.TrimSuffix(op.Text, "L")
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return Int(n), nil
	}
	if n, ok := new(big.Int).SetString(text, 10); ok {
		return BigInt{N: n}, nil
	}
	return nil, fmt.Errorf("%w: bad LONG operand %q at offset %d", ErrMalformedStream, op.Text, op.Offset)
}

// decodeLong interprets little-endian two's complement bytes, as
// encoded by LONG1 and LONG4. Values that fit an int64 become Int,
// larger ones BigInt.
func decodeLong(b []byte) Value {
	if len(b) == 0 {
		return Int(0)
	}
	if len(b) <= 8 {
		var n uint64
		for i := len(b) - 1; i >= 0; i-- {
			n = n<<8 | uint64(b[i])
		}
		// sign-extend from the encoded width
		shift := uint(64 - len(b)*8)
		return Int(int64(n<<shift) >> shift)
	}
	le := make([]byte, len(b))
	for i, v := range b {
		le[len(b)-1-i] = v
	}
	n := new(big.Int).SetBytes(le)
	if b[len(b)-1]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8)))
	}
	return BigInt{N: n}
}
