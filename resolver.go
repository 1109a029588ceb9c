// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package torchpickle

import (
	"fmt"
	"strings"

	"github.com/nlpodyssey/torchpickle/dtype"
	"github.com/nlpodyssey/torchpickle/pickle"
)

// metadataEntryName is the fixed name of the pickled mapping entry
// inside a checkpoint container, optionally below an archive prefix.
const metadataEntryName = "data.pkl"

// Symbols of the known tensor-construction call shape. They are only
// ever compared as inert references; nothing is looked up or invoked.
const (
	orderedDictModule = "collections"
	orderedDictName   = "OrderedDict"
	rebuildModule     = "torch._utils"
	rebuildName       = "_rebuild_tensor_v2"
)

// TensorDescriptor is the resolved, ready-to-read description of one
// tensor's location and layout within a checkpoint container.
//
// It is constructed once per matched metadata entry and holds no
// references into the value graph that produced it.
type TensorDescriptor struct {
	// Name of the tensor within the checkpoint mapping.
	Name string

	// Device the tensor was saved from (e.g. "cpu", "cuda:0").
	Device string

	// DType is the element type of the backing storage.
	DType dtype.DType

	// Storage names the container entry holding the raw bytes. Multiple
	// tensors can point into different (or the same) ranges of one
	// storage.
	Storage string

	// StorageLen is the element count of the whole storage.
	StorageLen int64

	// StorageOffset is the tensor's starting position within the
	// storage, verbatim as recorded by the producer. The conventional
	// unit is elements, but see AbsoluteOffset.
	StorageOffset int64

	// AbsoluteOffset is the byte position within the outer container
	// file where this tensor's data begins. It is computed assuming
	// StorageOffset counts elements; some producer variants record
	// bytes instead, so validate against sample files before trusting
	// computed offsets.
	AbsoluteOffset int64

	// Shape holds the dimension sizes.
	Shape []int64

	// Stride holds the per-dimension strides, matching Shape's rank.
	Stride []int64

	// RequiresGrad reports whether the tensor had gradients enabled.
	RequiresGrad bool
}

// NumElements returns the number of elements of the tensor, computed
// from its shape. An empty shape counts as one scalar value.
func (t TensorDescriptor) NumElements() (int64, error) {
	n := int64(1)
	for _, dim := range t.Shape {
		var err error
		if n, err = checkedMulInt64(n, dim); err != nil {
			return 0, fmt.Errorf("failed to compute element count from shape: %w", err)
		}
	}
	return n, nil
}

// ByteSize returns the tensor's data length in bytes.
func (t TensorDescriptor) ByteSize() (int64, error) {
	n, err := t.NumElements()
	if err != nil {
		return 0, err
	}
	size, err := checkedMulInt64(n, int64(t.DType.Size()))
	if err != nil {
		return 0, fmt.Errorf("failed to compute byte size: %w", err)
	}
	return size, nil
}

// ReadData reads the tensor's raw bytes from the container, starting
// at AbsoluteOffset. Data is little-endian; interpret it with
// Elements, or however you see fit.
func (t TensorDescriptor) ReadData(c *Container) ([]byte, error) {
	size, err := t.ByteSize()
	if err != nil {
		return nil, err
	}
	data, err := c.ReadRange(t.AbsoluteOffset, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read data of tensor %q: %w", t.Name, err)
	}
	return data, nil
}

// LoadTensors opens the checkpoint container at the given path and
// resolves all tensor descriptors it describes.
func LoadTensors(path string) ([]TensorDescriptor, error) {
	c, err := OpenContainer(path)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return ReadTensors(c)
}

// ReadTensors decodes the container's metadata entry and resolves one
// TensorDescriptor per mapping entry matching the known
// tensor-construction call shape. Entries of any other shape are
// skipped: a checkpoint may hold auxiliary non-tensor data.
//
// It fails with ErrUnsupportedMetadataShape only when the root of the
// decoded graph is not a recognizable ordered mapping.
//
// Tensor payloads are never materialized: resolution reads only the
// metadata entry and the container's entry table.
func ReadTensors(c *Container) ([]TensorDescriptor, error) {
	metaName, err := c.findSuffix(metadataEntryName)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimSuffix(metaName, metadataEntryName)

	data, err := c.ReadEntry(metaName)
	if err != nil {
		return nil, err
	}

	// Persistent references stay unresolved at decode time: the keys
	// pass through unchanged and gain meaning only below, when matched
	// against the storage-key shape.
	root, err := pickle.Decode(data, pickle.WithPersistentResolver(deferKey))
	if err != nil {
		return nil, fmt.Errorf("failed to decode metadata entry %q: %w", metaName, err)
	}

	pairs, err := mappingPairs(root)
	if err != nil {
		return nil, err
	}

	tensors := make([]TensorDescriptor, 0, len(pairs))
	for _, pair := range pairs {
		name, ok := pair[0].(pickle.String)
		if !ok {
			continue
		}
		call, ok := matchRebuildCall(pair[1])
		if !ok {
			continue
		}
		td, ok, err := resolveTensor(c, prefix, string(name), call)
		if err != nil {
			return nil, err
		}
		if ok {
			tensors = append(tensors, td)
		}
	}
	return tensors, nil
}

func deferKey(key pickle.Value) (pickle.Value, error) {
	return &pickle.PersId{Key: key}, nil
}

// mappingPairs extracts the flattened name/value pairs from the root
// of a decoded metadata graph.
//
// The root is ordinarily the reified construction of an ordered
// mapping, possibly wrapped in a state-application step; a plain dict
// is accepted too.
func mappingPairs(root pickle.Value) ([][2]pickle.Value, error) {
	if b, ok := root.(*pickle.Build); ok {
		root = b.Target
	}

	switch root := root.(type) {
	case *pickle.Global:
		callee, ok := root.Callee.(pickle.Raw)
		if !ok || callee.Module != orderedDictModule || callee.Name != orderedDictName {
			return nil, fmt.Errorf("%w: root constructs %s instead of %s.%s",
				ErrUnsupportedMetadataShape, pickle.Format(root.Callee), orderedDictModule, orderedDictName)
		}
		// Args[0] is the constructor's argument tuple; any key/value
		// items added afterwards follow as flattened tuples.
		var pairs [][2]pickle.Value
		if len(root.Args) == 0 {
			return nil, nil
		}
		for _, arg := range root.Args[1:] {
			run, ok := arg.(*pickle.Seq)
			if !ok || run.Kind != pickle.Tuple || len(run.Items)&1 != 0 {
				return nil, fmt.Errorf("%w: unexpected item run in ordered mapping", ErrUnsupportedMetadataShape)
			}
			for i := 0; i < len(run.Items); i += 2 {
				pairs = append(pairs, [2]pickle.Value{run.Items[i], run.Items[i+1]})
			}
		}
		return pairs, nil

	case *pickle.Seq:
		if root.Kind != pickle.Dict {
			return nil, fmt.Errorf("%w: root is a %s sequence", ErrUnsupportedMetadataShape, root.Kind)
		}
		pairs, err := pickle.DictItems(root)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedMetadataShape, err)
		}
		return pairs, nil

	default:
		return nil, fmt.Errorf("%w: root is %T", ErrUnsupportedMetadataShape, root)
	}
}

// rebuildCall is the decomposed argument list of a matched
// tensor-construction call.
type rebuildCall struct {
	key          *pickle.Seq // persistent storage-key tuple
	offset       int64
	shape        []int64
	stride       []int64
	requiresGrad bool
}

// matchRebuildCall pattern-matches a value against the known
// tensor-construction call shape:
//
//	Global(torch._utils._rebuild_tensor_v2,
//	       (PersId(key), offset, shape, stride, requires_grad, hooks))
func matchRebuildCall(v pickle.Value) (rebuildCall, bool) {
	g, ok := v.(*pickle.Global)
	if !ok {
		return rebuildCall{}, false
	}
	callee, ok := g.Callee.(pickle.Raw)
	if !ok || callee.Module != rebuildModule || callee.Name != rebuildName {
		return rebuildCall{}, false
	}
	if len(g.Args) != 1 {
		return rebuildCall{}, false
	}
	args, ok := g.Args[0].(*pickle.Seq)
	if !ok || args.Kind != pickle.Tuple || len(args.Items) < 5 {
		return rebuildCall{}, false
	}

	pid, ok := args.Items[0].(*pickle.PersId)
	if !ok {
		return rebuildCall{}, false
	}
	key, ok := pid.Key.(*pickle.Seq)
	if !ok || key.Kind != pickle.Tuple {
		return rebuildCall{}, false
	}
	offset, ok := args.Items[1].(pickle.Int)
	if !ok {
		return rebuildCall{}, false
	}
	shape, ok := intItems(args.Items[2])
	if !ok {
		return rebuildCall{}, false
	}
	stride, ok := intItems(args.Items[3])
	if !ok {
		return rebuildCall{}, false
	}
	grad, ok := args.Items[4].(pickle.Bool)
	if !ok {
		return rebuildCall{}, false
	}
	return rebuildCall{
		key:          key,
		offset:       int64(offset),
		shape:        shape,
		stride:       stride,
		requiresGrad: bool(grad),
	}, true
}

func intItems(v pickle.Value) ([]int64, bool) {
	seq, ok := v.(*pickle.Seq)
	if !ok || seq.Kind != pickle.Tuple {
		return nil, false
	}
	items := make([]int64, len(seq.Items))
	for i, item := range seq.Items {
		n, ok := item.(pickle.Int)
		if !ok {
			return nil, false
		}
		items[i] = int64(n)
	}
	return items, true
}

// resolveTensor decomposes the storage-key tuple of a matched call and
// computes the tensor's byte location within the container.
//
// The key's expected shape is ("storage", <storage class>, <id>,
// <device>, <element count>); a key of any other shape makes the entry
// a non-tensor and is skipped, not an error. Container-level failures
// (a referenced storage entry missing or compressed) are errors.
func resolveTensor(c *Container, prefix, name string, call rebuildCall) (TensorDescriptor, bool, error) {
	if len(call.key.Items) < 5 {
		return TensorDescriptor{}, false, nil
	}
	if tag, ok := call.key.Items[0].(pickle.String); !ok || tag != "storage" {
		return TensorDescriptor{}, false, nil
	}
	storageClass, ok := call.key.Items[1].(pickle.Raw)
	if !ok {
		return TensorDescriptor{}, false, nil
	}
	dt, err := dtype.Parse(storageClass.Name)
	if err != nil {
		// a storage element type this package does not enumerate
		return TensorDescriptor{}, false, nil
	}
	id, ok := call.key.Items[2].(pickle.String)
	if !ok {
		return TensorDescriptor{}, false, nil
	}
	device, ok := call.key.Items[3].(pickle.String)
	if !ok {
		return TensorDescriptor{}, false, nil
	}
	storageLen, ok := call.key.Items[4].(pickle.Int)
	if !ok {
		return TensorDescriptor{}, false, nil
	}

	storageName := prefix + "data/" + string(id)
	ent, err := c.Entry(storageName)
	if err != nil {
		return TensorDescriptor{}, false, fmt.Errorf("tensor %q: %w", name, err)
	}
	if ent.Compressed {
		return TensorDescriptor{}, false, fmt.Errorf(
			"%w: storage entry %q of tensor %q is compressed, byte offsets are unusable",
			ErrContainerCorrupt, storageName, name)
	}

	byteOffset, err := checkedMulInt64(call.offset, int64(dt.Size()))
	if err != nil {
		return TensorDescriptor{}, false, fmt.Errorf("tensor %q: %w", name, err)
	}
	absolute, err := checkedAddInt64(ent.Offset, byteOffset)
	if err != nil {
		return TensorDescriptor{}, false, fmt.Errorf("tensor %q: %w", name, err)
	}

	return TensorDescriptor{
		Name:           name,
		Device:         string(device),
		DType:          dt,
		Storage:        storageName,
		StorageLen:     int64(storageLen),
		StorageOffset:  call.offset,
		AbsoluteOffset: absolute,
		Shape:          call.shape,
		Stride:         call.stride,
		RequiresGrad:   call.requiresGrad,
	}, true, nil
}
