// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pickle

// Opcode identifies one instruction of the pickle stack-machine encoding.
//
// The set below covers pickle protocols 0 through 5. It is a closed
// enumeration: a tag byte outside of it makes the Reader fail with
// ErrUnknownOpcode.
type Opcode byte

const (
	OpMark     Opcode = '(' // push current stack depth on the mark stack
	OpStop     Opcode = '.' // end of stream; single remaining value is the result
	OpPop      Opcode = '0' // discard topmost stack item
	OpPopMark  Opcode = '1' // discard everything above the most recent mark
	OpDup      Opcode = '2' // duplicate top stack item
	OpFloat    Opcode = 'F' // push float; decimal string argument
	OpInt      Opcode = 'I' // push integer or bool; decimal string argument
	OpBinInt   Opcode = 'J' // push 4-byte signed little-endian int
	OpBinInt1  Opcode = 'K' // push 1-byte unsigned int
	OpLong     Opcode = 'L' // push long; decimal string argument
	OpBinInt2  Opcode = 'M' // push 2-byte unsigned little-endian int
	OpNone     Opcode = 'N' // push None
	OpPersID   Opcode = 'P' // push persistent reference; newline-terminated string key
	OpBinPersID Opcode = 'Q' // push persistent reference; key is taken from the stack
	OpReduce   Opcode = 'R' // reify a call: callee and argument tuple are on the stack
	OpString   Opcode = 'S' // push string; newline-terminated argument
	OpBinString Opcode = 'T' // push string; 4-byte length-prefixed argument
	OpShortBinString Opcode = 'U' // push string; 1-byte length-prefixed argument
	OpUnicode  Opcode = 'V' // push unicode string; newline-terminated argument
	OpBinUnicode Opcode = 'X' // push UTF-8 string; 4-byte length-prefixed argument
	OpAppend   Opcode = 'a' // append stack top to the sequence below it
	OpBuild    Opcode = 'b' // reify state application; state and target are on the stack
	OpGlobal   Opcode = 'c' // push reference to a module-qualified symbol; 2 string args
	OpDict     Opcode = 'd' // build a dict from stack items above the most recent mark
	OpEmptyDict Opcode = '}' // push empty dict
	OpAppends  Opcode = 'e' // extend the sequence below the most recent mark
	OpGet      Opcode = 'g' // push memoized value; id is a decimal string argument
	OpBinGet   Opcode = 'h' // push memoized value; 1-byte id
	OpInst     Opcode = 'i' // reify class instantiation; 2 string args plus marked items
	OpLongBinGet Opcode = 'j' // push memoized value; 4-byte id
	OpList     Opcode = 'l' // build a list from stack items above the most recent mark
	OpEmptyList Opcode = ']' // push empty list
	OpObj      Opcode = 'o' // reify class instantiation; class and args above the mark
	OpPut      Opcode = 'p' // memoize stack top; id is a decimal string argument
	OpBinPut   Opcode = 'q' // memoize stack top; 1-byte id
	OpLongBinPut Opcode = 'r' // memoize stack top; 4-byte id
	OpSetItem  Opcode = 's' // add one key/value pair to the dict below them
	OpTuple    Opcode = 't' // build a tuple from stack items above the most recent mark
	OpEmptyTuple Opcode = ')' // push empty tuple
	OpSetItems Opcode = 'u' // add marked key/value pairs to the dict below the mark
	OpBinFloat Opcode = 'G' // push float; 8-byte big-endian IEEE 754 argument

	// Protocol 2
	OpProto    Opcode = '\x80' // declare protocol version; advisory
	OpNewObj   Opcode = '\x81' // reify object creation from class and argument tuple
	OpExt1     Opcode = '\x82' // push extension-registry reference; 1-byte code
	OpExt2     Opcode = '\x83' // push extension-registry reference; 2-byte code
	OpExt4     Opcode = '\x84' // push extension-registry reference; 4-byte code
	OpTuple1   Opcode = '\x85' // build 1-tuple from the stack top
	OpTuple2   Opcode = '\x86' // build 2-tuple from the two topmost items
	OpTuple3   Opcode = '\x87' // build 3-tuple from the three topmost items
	OpNewTrue  Opcode = '\x88' // push True
	OpNewFalse Opcode = '\x89' // push False
	OpLong1    Opcode = '\x8a' // push little-endian two's complement int; 1-byte length
	OpLong4    Opcode = '\x8b' // push little-endian two's complement int; 4-byte length

	// Protocol 3
	OpBinBytes      Opcode = 'B' // push bytes; 4-byte length-prefixed argument
	OpShortBinBytes Opcode = 'C' // push bytes; 1-byte length-prefixed argument

	// Protocol 4
	OpShortBinUnicode Opcode = '\x8c' // push UTF-8 string; 1-byte length-prefixed argument
	OpBinUnicode8     Opcode = '\x8d' // push UTF-8 string; 8-byte length-prefixed argument
	OpBinBytes8       Opcode = '\x8e' // push bytes; 8-byte length-prefixed argument
	OpEmptySet        Opcode = '\x8f' // push empty set
	OpAddItems        Opcode = '\x90' // add marked items to the set below the mark
	OpFrozenSet       Opcode = '\x91' // build a frozenset from items above the mark
	OpNewObjEx        Opcode = '\x92' // like NEWOBJ with an extra keyword-arguments dict
	OpStackGlobal     Opcode = '\x93' // like GLOBAL but the two names are on the stack
	OpMemoize         Opcode = '\x94' // memoize stack top at the next free id
	OpFrame           Opcode = '\x95' // declare length of the following frame; advisory

	// Protocol 5
	OpByteArray8      Opcode = '\x96' // push bytearray; 8-byte length-prefixed argument
	OpNextBuffer      Opcode = '\x97' // request the next out-of-band buffer
	OpReadonlyBuffer  Opcode = '\x98' // mark the buffer at the stack top read-only
)

var opcodeNames = map[Opcode]string{
	OpMark: "MARK", OpStop: "STOP", OpPop: "POP", OpPopMark: "POP_MARK",
	OpDup: "DUP", OpFloat: "FLOAT", OpInt: "INT", OpBinInt: "BININT",
	OpBinInt1: "BININT1", OpLong: "LONG", OpBinInt2: "BININT2", OpNone: "NONE",
	OpPersID: "PERSID", OpBinPersID: "BINPERSID", OpReduce: "REDUCE",
	OpString: "STRING", OpBinString: "BINSTRING", OpShortBinString: "SHORT_BINSTRING",
	OpUnicode: "UNICODE", OpBinUnicode: "BINUNICODE", OpAppend: "APPEND",
	OpBuild: "BUILD", OpGlobal: "GLOBAL", OpDict: "DICT", OpEmptyDict: "EMPTY_DICT",
	OpAppends: "APPENDS", OpGet: "GET", OpBinGet: "BINGET", OpInst: "INST",
	OpLongBinGet: "LONG_BINGET", OpList: "LIST", OpEmptyList: "EMPTY_LIST",
	OpObj: "OBJ", OpPut: "PUT", OpBinPut: "BINPUT", OpLongBinPut: "LONG_BINPUT",
	OpSetItem: "SETITEM", OpTuple: "TUPLE", OpEmptyTuple: "EMPTY_TUPLE",
	OpSetItems: "SETITEMS", OpBinFloat: "BINFLOAT", OpProto: "PROTO",
	OpNewObj: "NEWOBJ", OpExt1: "EXT1", OpExt2: "EXT2", OpExt4: "EXT4",
	OpTuple1: "TUPLE1", OpTuple2: "TUPLE2", OpTuple3: "TUPLE3",
	OpNewTrue: "NEWTRUE", OpNewFalse: "NEWFALSE", OpLong1: "LONG1", OpLong4: "LONG4",
	OpBinBytes: "BINBYTES", OpShortBinBytes: "SHORT_BINBYTES",
	OpShortBinUnicode: "SHORT_BINUNICODE", OpBinUnicode8: "BINUNICODE8",
	OpBinBytes8: "BINBYTES8", OpEmptySet: "EMPTY_SET", OpAddItems: "ADDITEMS",
	OpFrozenSet: "FROZENSET", OpNewObjEx: "NEWOBJ_EX", OpStackGlobal: "STACK_GLOBAL",
	OpMemoize: "MEMOIZE", OpFrame: "FRAME", OpByteArray8: "BYTEARRAY8",
	OpNextBuffer: "NEXT_BUFFER", OpReadonlyBuffer: "READONLY_BUFFER",
}

// String returns the conventional upper-case mnemonic of the opcode.
func (c Opcode) String() string {
	if name, ok := opcodeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// Op is a single decoded instruction: an opcode tag plus its operand.
// Which operand fields are meaningful depends on Code; the rest are
// zero values.
type Op struct {
	Code Opcode
	// Offset is the byte position of the opcode tag within the stream.
	Offset int

	Int    int64   // signed integer operand (BININT, EXT2, EXT4)
	Uint   uint64  // unsigned operand (small ints, memo ids, PROTO, FRAME, EXT1)
	Float  float64 // BINFLOAT operand
	Text   string  // single text operand, or decoded UTF-8 string content
	Module string  // module part of GLOBAL and INST
	Name   string  // symbol part of GLOBAL and INST
	Bytes  []byte  // raw byte operand (binary strings, bytes, LONG1, LONG4)
}
