// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package torchpickle

import "errors"

var (
	// ErrEntryNotFound reports that a container holds no entry with the
	// requested name.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrContainerCorrupt reports a structurally broken outer container,
	// or an entry stored in a way that makes byte-range access impossible.
	ErrContainerCorrupt = errors.New("container corrupt")

	// ErrUnsupportedMetadataShape reports that the root of a decoded
	// metadata graph does not match the expected ordered-mapping call
	// shape. Individual unmatched mapping entries are tolerated and
	// never produce this error.
	ErrUnsupportedMetadataShape = errors.New("unsupported metadata shape")
)
