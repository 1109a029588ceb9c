// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package torchpickle

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Container navigates the outer ZIP file wrapping a checkpoint: a
// metadata stream plus raw auxiliary byte blobs. It resolves named
// entries to absolute byte ranges of the outer file without copying
// entry data unless asked.
type Container struct {
	r      io.ReaderAt
	size   int64
	zr     *zip.Reader
	closer io.Closer
}

// Entry locates a named container entry's data within the outer file.
type Entry struct {
	Name string
	// Offset is the absolute byte position of the entry's (possibly
	// compressed) data within the outer file.
	Offset int64
	// Size is the uncompressed length of the entry's content.
	Size int64
	// CompressedSize is the stored length of the entry's data.
	CompressedSize int64
	// Compressed reports whether the data is stored compressed. When it
	// is, Offset addresses compressed bytes and cannot be used to read
	// the content directly.
	Compressed bool
}

// OpenContainer opens the container file at the given path.
// The caller must Close it when done.
func OpenContainer(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	c, err := NewContainer(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	c.closer = f
	return c, nil
}

// NewContainer reads the container's entry table from "r".
//
// The reader must remain available for operations as long as you are
// handling the Container or reading data located through it.
func NewContainer(r io.ReaderAt, size int64) (*Container, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContainerCorrupt, err)
	}
	return &Container{r: r, size: size, zr: zr}, nil
}

// Close releases the underlying file, when the Container owns one.
func (c *Container) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// EntryNames returns the names of all entries, sorted.
func (c *Container) EntryNames() []string {
	if len(c.zr.File) == 0 {
		return nil
	}
	names := make([]string, len(c.zr.File))
	for i, f := range c.zr.File {
		names[i] = f.Name
	}
	sort.Strings(names)
	return names
}

// Entry returns the byte range of the named entry's data within the
// outer file. It fails with ErrEntryNotFound for an unknown name and
// with ErrContainerCorrupt when the entry's local record is broken.
func (c *Container) Entry(name string) (Entry, error) {
	f, err := c.find(name)
	if err != nil {
		return Entry{}, err
	}
	offset, err := f.DataOffset()
	if err != nil {
		return Entry{}, fmt.Errorf("%w: entry %q: %v", ErrContainerCorrupt, name, err)
	}
	return Entry{
		Name:           f.Name,
		Offset:         offset,
		Size:           int64(f.UncompressedSize64),
		CompressedSize: int64(f.CompressedSize64),
		Compressed:     f.Method != zip.Store,
	}, nil
}

// ReadEntry reads and returns the full content of the named entry,
// decompressing it if needed.
func (c *Container) ReadEntry(name string) ([]byte, error) {
	f, err := c.find(name)
	if err != nil {
		return nil, err
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: entry %q: %v", ErrContainerCorrupt, name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: entry %q: %v", ErrContainerCorrupt, name, err)
	}
	return data, nil
}

// ReadRange reads n bytes of the outer file starting at the absolute
// byte offset off. It is the access path for raw storage bytes located
// through Entry offsets.
func (c *Container) ReadRange(off, n int64) ([]byte, error) {
	if off < 0 || n < 0 || off+n > c.size {
		return nil, fmt.Errorf("%w: byte range [%d, %d) outside container size %d",
			ErrContainerCorrupt, off, off+n, c.size)
	}
	data := make([]byte, n)
	if _, err := c.r.ReadAt(data, off); err != nil {
		return nil, fmt.Errorf("%w: reading byte range [%d, %d): %v",
			ErrContainerCorrupt, off, off+n, err)
	}
	return data, nil
}

func (c *Container) find(name string) (*zip.File, error) {
	for _, f := range c.zr.File {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrEntryNotFound, name)
}

// findSuffix returns the name of the first entry whose name equals the
// suffix or ends with "/" plus the suffix.
func (c *Container) findSuffix(suffix string) (string, error) {
	for _, f := range c.zr.File {
		if f.Name == suffix || strings.HasSuffix(f.Name, "/"+suffix) {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("%w: no entry named %q", ErrEntryNotFound, suffix)
}
