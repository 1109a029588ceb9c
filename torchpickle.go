// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package torchpickle locates and describes the tensor storages
// embedded in PyTorch ZIP checkpoint files.
//
// A checkpoint is an outer ZIP container wrapping a pickled metadata
// mapping plus one raw byte blob per storage. This package decodes the
// metadata with the pickle subpackage, which reifies the constructor
// calls the format records without ever executing them, and
// pattern-matches the resulting value graph to compute each tensor's
// element type, shape, stride and absolute byte position within the
// container file.
// Tensor payloads, which can reach many gigabytes, are not read unless
// explicitly asked for.
package torchpickle
