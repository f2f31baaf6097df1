// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	base := t.TempDir()
	store, err := New(filepath.Join(base, "data"), filepath.Join(base, "tmp"))
	require.NoError(t, err)
	return store
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestWriteObjectRoundTrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	body := []byte("hello integration tests")
	result, err := store.WriteObject(ctx, "demo", "readme.txt", bytes.NewReader(body))
	require.NoError(t, err)

	assert.Equal(t, uint64(len(body)), result.Size)
	assert.Equal(t, sha256Hex(body), result.ETag)

	f, size, err := store.Open("demo", "readme.txt")
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, int64(len(body)), size)
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestWriteObjectLargeBody(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	// Larger than one 8 KiB chunk so the streaming loop runs repeatedly.
	body := bytes.Repeat([]byte("0123456789abcdef"), 8192)
	result, err := store.WriteObject(context.Background(), "demo", "big.bin", bytes.NewReader(body))
	require.NoError(t, err)

	assert.Equal(t, uint64(len(body)), result.Size)
	assert.Equal(t, sha256Hex(body), result.ETag)
}

func TestWriteObjectOverwriteWins(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.WriteObject(ctx, "demo", "obj", strings.NewReader("first"))
	require.NoError(t, err)
	_, err = store.WriteObject(ctx, "demo", "obj", strings.NewReader("second"))
	require.NoError(t, err)

	f, _, err := store.Open("demo", "obj")
	require.NoError(t, err)
	defer f.Close()
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

type failingReader struct {
	data []byte
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.read {
		r.read = true
		return copy(p, r.data), nil
	}
	return 0, io.ErrUnexpectedEOF
}

func TestWriteObjectFailureCleansTemp(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	tempDir := filepath.Join(base, "tmp")
	store, err := New(filepath.Join(base, "data"), tempDir)
	require.NoError(t, err)

	_, err = store.WriteObject(context.Background(), "demo", "broken", &failingReader{data: []byte("xx")})
	require.Error(t, err)

	// No stray temp files and no published object.
	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, "multipart", e.Name())
	}
	_, _, err = store.Open("demo", "broken")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenMissingObject(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	_, _, err := store.Open("demo", "nope")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDelete(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.WriteObject(ctx, "demo", "gone", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete("demo", "gone"))
	assert.ErrorIs(t, store.Delete("demo", "gone"), os.ErrNotExist)
}

func TestWritePartReplace(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.WritePart(ctx, "u1", 1, strings.NewReader("aaaa"))
	require.NoError(t, err)
	second, err := store.WritePart(ctx, "u1", 1, strings.NewReader("bb"))
	require.NoError(t, err)

	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, uint64(2), second.Size)

	got, err := os.ReadFile(second.Path)
	require.NoError(t, err)
	assert.Equal(t, "bb", string(got))
}

func TestAssembleObject(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	p1, err := store.WritePart(ctx, "u2", 1, strings.NewReader("aaaa"))
	require.NoError(t, err)
	p2, err := store.WritePart(ctx, "u2", 2, strings.NewReader("bb"))
	require.NoError(t, err)

	result, err := store.AssembleObject(ctx, "demo", "big.bin", "u2", []string{p1.Path, p2.Path})
	require.NoError(t, err)

	assert.Equal(t, uint64(6), result.Size)
	assert.Equal(t, sha256Hex([]byte("aaaabb")), result.ETag)

	f, _, err := store.Open("demo", "big.bin")
	require.NoError(t, err)
	defer f.Close()
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "aaaabb", string(got))
}

func TestRemoveUploadDir(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.WritePart(ctx, "u3", 1, strings.NewReader("x"))
	require.NoError(t, err)

	dir := store.UploadTempDir("u3")
	_, err = os.Stat(dir)
	require.NoError(t, err)

	require.NoError(t, store.RemoveUploadDir("u3"))
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
