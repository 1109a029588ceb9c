// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package torchpickle

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zipEntry struct {
	name     string
	data     []byte
	compress bool
}

func buildZip(t *testing.T, entries []zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		method := zip.Store
		if e.compress {
			method = zip.Deflate
		}
		fw, err := w.CreateHeader(&zip.FileHeader{Name: e.name, Method: method})
		require.NoError(t, err)
		_, err = fw.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func openZip(t *testing.T, raw []byte) *Container {
	t.Helper()
	c, err := NewContainer(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	return c
}

func TestNewContainer_Corrupt(t *testing.T) {
	_, err := NewContainer(bytes.NewReader([]byte("not a zip file")), 14)
	assert.ErrorIs(t, err, ErrContainerCorrupt)
}

func TestContainer_EntryNames(t *testing.T) {
	c := openZip(t, buildZip(t, []zipEntry{
		{name: "b/two", data: []byte("2")},
		{name: "a/one", data: []byte("1")},
	}))
	assert.Equal(t, []string{"a/one", "b/two"}, c.EntryNames())

	empty := openZip(t, buildZip(t, nil))
	assert.Nil(t, empty.EntryNames())
}

func TestContainer_Entry(t *testing.T) {
	payload := []byte("payload bytes")
	raw := buildZip(t, []zipEntry{
		{name: "stored", data: payload},
		{name: "squeezed", data: bytes.Repeat([]byte("abc"), 100), compress: true},
	})
	c := openZip(t, raw)

	t.Run("stored entry offset addresses its bytes", func(t *testing.T) {
		ent, err := c.Entry("stored")
		require.NoError(t, err)
		assert.Equal(t, "stored", ent.Name)
		assert.Equal(t, int64(len(payload)), ent.Size)
		assert.False(t, ent.Compressed)

		got, err := c.ReadRange(ent.Offset, ent.Size)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("compressed entry is flagged", func(t *testing.T) {
		ent, err := c.Entry("squeezed")
		require.NoError(t, err)
		assert.True(t, ent.Compressed)
		assert.Equal(t, int64(300), ent.Size)
		assert.Less(t, ent.CompressedSize, ent.Size)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := c.Entry("nope")
		assert.ErrorIs(t, err, ErrEntryNotFound)
	})
}

func TestContainer_ReadEntry(t *testing.T) {
	big := bytes.Repeat([]byte("abc"), 100)
	c := openZip(t, buildZip(t, []zipEntry{
		{name: "stored", data: []byte("hi")},
		{name: "squeezed", data: big, compress: true},
	}))

	got, err := c.ReadEntry("stored")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), got)

	got, err = c.ReadEntry("squeezed")
	require.NoError(t, err)
	assert.Equal(t, big, got)

	_, err = c.ReadEntry("nope")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestContainer_ReadRange(t *testing.T) {
	raw := buildZip(t, []zipEntry{{name: "x", data: []byte("0123456789")}})
	c := openZip(t, raw)

	testCases := []struct {
		name string
		off  int64
		n    int64
	}{
		{"negative offset", -1, 4},
		{"negative length", 0, -1},
		{"past the end", int64(len(raw)) - 2, 4},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.ReadRange(tc.off, tc.n)
			assert.ErrorIs(t, err, ErrContainerCorrupt)
		})
	}

	got, err := c.ReadRange(0, 4)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestContainer_FindSuffix(t *testing.T) {
	c := openZip(t, buildZip(t, []zipEntry{
		{name: "archive/data.pkl", data: []byte("x")},
		{name: "archive/data/0", data: []byte("y")},
	}))

	name, err := c.findSuffix("data.pkl")
	require.NoError(t, err)
	assert.Equal(t, "archive/data.pkl", name)

	_, err = c.findSuffix("version")
	assert.ErrorIs(t, err, ErrEntryNotFound)

	flat := openZip(t, buildZip(t, []zipEntry{{name: "data.pkl", data: []byte("x")}}))
	name, err = flat.findSuffix("data.pkl")
	require.NoError(t, err)
	assert.Equal(t, "data.pkl", name)
}

func TestOpenContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.bin")
	raw := buildZip(t, []zipEntry{{name: "archive/data.pkl", data: []byte("N.")}})
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	c, err := OpenContainer(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"archive/data.pkl"}, c.EntryNames())
	assert.NoError(t, c.Close())

	_, err = OpenContainer(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}
