// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pickle

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// MaxDepth is the recursion ceiling applied to every traversal of a
// decoded value graph. Memo backreferences can make a graph reference
// itself; cycles are not detected or rewritten, so any walk must stop
// expanding once this many levels deep.
const MaxDepth = 250

// SeqKind distinguishes the kinds of Seq containers.
type SeqKind uint8

const (
	Tuple SeqKind = iota + 1
	List
	Dict
	Set
	FrozenSet
)

var seqKindNames = [...]string{
	Tuple:     "Tuple",
	List:      "List",
	Dict:      "Dict",
	Set:       "Set",
	FrozenSet: "FrozenSet",
}

// String returns the name of the sequence kind.
func (k SeqKind) String() string {
	if k == 0 || int(k) >= len(seqKindNames) {
		return fmt.Sprintf("SeqKind(%d)", uint8(k))
	}
	return seqKindNames[k]
}

// Value is one node of a decoded object graph.
//
// It is a closed tagged variant: the implementations are None, Bool,
// Int, BigInt, Float, String, Bytes, *Seq, *Global, Raw, *Build and
// *PersId. Container values are pointers, so a memoized container and
// its later backreferences share one node; a graph is therefore acyclic
// only up to MaxDepth and every traversal must be depth-bounded.
type Value interface {
	value()
}

// None is the origin format's null value.
type None struct{}

// Bool is a boolean leaf.
type Bool bool

// Int is an integer leaf. Integers that do not fit an int64 are
// represented by BigInt instead.
type Int int64

// BigInt is an arbitrary-precision integer leaf.
type BigInt struct {
	N *big.Int
}

// Float is a 64-bit floating point leaf.
type Float float64

// String is a text leaf.
type String string

// Bytes is a raw-octets leaf: byte strings, byte arrays, and binary
// strings that could not be kept as text.
type Bytes []byte

// Seq is an ordered container. Element order is preserved exactly as
// encountered during decoding and is semantically load-bearing.
//
// For the Dict kind, Items is a flattened, order-preserving list of
// alternating key/value entries rather than a native map: the origin
// format allows unhashable or duplicate-looking keys and preserves
// insertion order. Its length is always even; see DictItems.
type Seq struct {
	Kind  SeqKind
	Items []Value
}

// Global reifies "invoke Callee with Args" without invoking anything.
// Callee is typically a Raw reference.
type Global struct {
	Callee Value
	Args   []Value
}

// Raw is a named reference to an external, module-qualified symbol.
// It is inert data and is never resolved to a live object.
type Raw struct {
	Module string
	Name   string
}

// Build reifies "apply State to Target" (the origin format's
// object-state-restoration step), without executing it.
type Build struct {
	Target Value
	State  Value
}

// PersId is a persistent reference: the embedding application is
// responsible for resolving Key to real data; the decoder never does.
type PersId struct {
	Key Value
}

func (None) value()    {}
func (Bool) value()    {}
func (Int) value()     {}
func (BigInt) value()  {}
func (Float) value()   {}
func (String) value()  {}
func (Bytes) value()   {}
func (*Seq) value()    {}
func (*Global) value() {}
func (Raw) value()     {}
func (*Build) value()  {}
func (*PersId) value() {}

// DictItems re-pairs the flattened alternating key/value entries of a
// Dict sequence. It fails if the sequence is not a Dict or its length
// is odd.
func DictItems(s *Seq) ([][2]Value, error) {
	if s.Kind != Dict {
		return nil, fmt.Errorf("%w: expected Dict sequence, actual %s", ErrMalformedStream, s.Kind)
	}
	if len(s.Items)&1 != 0 {
		return nil, fmt.Errorf("%w: Dict sequence has odd length %d", ErrMalformedStream, len(s.Items))
	}
	items := make([][2]Value, 0, len(s.Items)/2)
	for i := 0; i < len(s.Items); i += 2 {
		items = append(items, [2]Value{s.Items[i], s.Items[i+1]})
	}
	return items, nil
}

// Format renders a value graph as indented text, for inspection.
//
// The traversal is depth-bounded: past MaxDepth levels it emits the
// "..." sentinel instead of recursing further, so rendering terminates
// even on self-referential graphs.
func Format(v Value) string {
	var sb strings.Builder
	formatValue(&sb, v, "", 0)
	return sb.String()
}

func formatValue(sb *strings.Builder, v Value, indent string, depth int) {
	if depth >= MaxDepth {
		sb.WriteString("...")
		return
	}
	switch v := v.(type) {
	case nil:
		sb.WriteString("<nil>")
	case None:
		sb.WriteString("None")
	case Bool:
		sb.WriteString(strconv.FormatBool(bool(v)))
	case Int:
		sb.WriteString(strconv.FormatInt(int64(v), 10))
	case BigInt:
		sb.WriteString(v.N.String())
	case Float:
		sb.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 64))
	case String:
		sb.WriteString(strconv.Quote(string(v)))
	case Bytes:
		fmt.Fprintf(sb, "bytes(%d)%q", len(v), truncateBytes(v))
	case Raw:
		fmt.Fprintf(sb, "%s.%s", v.Module, v.Name)
	case *Seq:
		sb.WriteString(v.Kind.String())
		formatItems(sb, v.Items, indent, depth)
	case *Global:
		sb.WriteString("Global ")
		formatValue(sb, v.Callee, indent, depth+1)
		formatItems(sb, v.Args, indent, depth)
	case *Build:
		sb.WriteString("Build")
		formatItems(sb, []Value{v.Target, v.State}, indent, depth)
	case *PersId:
		sb.WriteString("PersId")
		formatItems(sb, []Value{v.Key}, indent, depth)
	default:
		fmt.Fprintf(sb, "%v", v)
	}
}

func formatItems(sb *strings.Builder, items []Value, indent string, depth int) {
	if len(items) == 0 {
		sb.WriteString("()")
		return
	}
	if depth+1 >= MaxDepth {
		sb.WriteString("(...)")
		return
	}
	inner := indent + "  "
	sb.WriteString("(")
	for _, item := range items {
		sb.WriteString("\n")
		sb.WriteString(inner)
		formatValue(sb, item, inner, depth+1)
	}
	sb.WriteString("\n")
	sb.WriteString(indent)
	sb.WriteString(")")
}

func truncateBytes(b []byte) []byte {
	const max = 32
	if len(b) > max {
		return b[:max]
	}
	return b
}
