// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dtype

import (
	"fmt"
	"strings"
)

// DType represents the element type of a torch storage.
type DType uint8

const (
	// Bool represents an 8-bit boolean data type.
	Bool DType = iota + 1
	// U8 represents an 8-bit unsigned integer data type.
	U8
	// I8 represents an 8-bit signed integer data type.
	I8
	// I16 represents a 16-bit signed integer data type.
	I16
	// I32 represents a 32-bit signed integer data type.
	I32
	// I64 represents a 64-bit signed integer data type.
	I64
	// F16 represents a 16-bit half-precision floating point data type.
	F16
	// BF16 represents a 16-bit brain floating point data type.
	BF16
	// F32 represents a 32-bit floating point data type.
	F32
	// F64 represents a 64-bit floating point data type.
	F64
)

var (
	dTypeToString = [...]string{
		Bool: "bool",
		U8:   "uint8",
		I8:   "int8",
		I16:  "int16",
		I32:  "int32",
		I64:  "int64",
		F16:  "float16",
		BF16: "bfloat16",
		F32:  "float32",
		F64:  "float64",
	}
	dTypeToSize = [...]int{
		Bool: 1,
		U8:   1,
		I8:   1,
		I16:  2,
		I32:  4,
		I64:  8,
		F16:  2,
		BF16: 2,
		F32:  4,
		F64:  8,
	}
	// The origin ecosystem names each type several ways: the canonical
	// numeric name, a legacy C-like alias, and a storage class name
	// ("FloatStorage"). Parse accepts all of them.
	stringToDType = map[string]DType{
		"bool":     Bool,
		"uint8":    U8,
		"byte":     U8,
		"int8":     I8,
		"char":     I8,
		"int16":    I16,
		"short":    I16,
		"int32":    I32,
		"int":      I32,
		"int64":    I64,
		"long":     I64,
		"float16":  F16,
		"half":     F16,
		"bfloat16": BF16,
		"float32":  F32,
		"float":    F32,
		"float64":  F64,
		"double":   F64,
	}
)

// Validate returns an error if the DType is not valid, otherwise nil.
func (dt DType) Validate() error {
	if dt == 0 || dt > F64 {
		return fmt.Errorf("invalid DType(%d)", dt)
	}
	return nil
}

// String returns the canonical name of a DType.
func (dt DType) String() string {
	if err := dt.Validate(); err != nil {
		return err.Error()
	}
	return dTypeToString[dt]
}

// Size returns the size in bytes of one element of this data type,
// or -1 if the DType value is invalid.
func (dt DType) Size() int {
	if err := dt.Validate(); err != nil {
		return -1
	}
	return dTypeToSize[dt]
}

// Parse attempts to interpret a DType from its name.
//
// It accepts canonical names ("float32"), legacy aliases ("float",
// "half", "byte"...) and torch storage class names ("FloatStorage",
// "BFloat16Storage"...), case-insensitively.
func Parse(s string) (DType, error) {
	name := strings.ToLower(strings.TrimSuffix(s, "Storage"))
	dt, ok := stringToDType[name]
	if !ok {
		return 0, fmt.Errorf("unknown DType name %q", s)
	}
	return dt, nil
}

// MarshalText satisfies encoding.TextMarshaler interface.
func (dt DType) MarshalText() ([]byte, error) {
	if err := dt.Validate(); err != nil {
		return nil, err
	}
	return []byte(dTypeToString[dt]), nil
}

// UnmarshalText satisfies encoding.TextUnmarshaler interface.
func (dt *DType) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*dt = parsed
	return nil
}
