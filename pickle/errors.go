// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pickle

import "errors"

// Structural decode errors. They all indicate a non-conforming or
// adversarial byte stream; none of them is recoverable and a retry
// cannot help against a fixed input. Errors returned by Reader and
// Decode wrap one of these sentinels, adding position and opcode
// context, so callers can branch with errors.Is.
var (
	// ErrTruncatedInput reports that fewer bytes remain than an opcode's
	// operand encoding declares, or that the stream ends before STOP.
	ErrTruncatedInput = errors.New("truncated input")

	// ErrUnknownOpcode reports an unrecognized opcode tag byte.
	ErrUnknownOpcode = errors.New("unknown opcode")

	// ErrStackUnderflow reports an operator that required more operands
	// than the stack holds.
	ErrStackUnderflow = errors.New("stack underflow")

	// ErrMissingMemoEntry reports a memo get for an id that was never bound.
	ErrMissingMemoEntry = errors.New("missing memo entry")

	// ErrMalformedStream reports a structurally broken stream, such as a
	// wrong final stack shape at STOP or an operand of an impossible shape.
	ErrMalformedStream = errors.New("malformed stream")
)
