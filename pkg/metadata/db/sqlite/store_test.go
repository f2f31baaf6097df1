// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nebulafs/nebulafs/pkg/metadata/db"
	"github.com/nebulafs/nebulafs/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(DefaultConfig(filepath.Join(t.TempDir(), "meta.db")))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Migrate(context.Background()))
}

func TestBucketLifecycle(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	bucket, err := store.CreateBucket(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "demo", bucket.Name)
	assert.NotZero(t, bucket.ID)
	assert.False(t, bucket.CreatedAt.IsZero())

	_, err = store.CreateBucket(ctx, "demo")
	assert.ErrorIs(t, err, db.ErrBucketExists)

	_, err = store.GetBucket(ctx, "missing")
	assert.ErrorIs(t, err, db.ErrBucketNotFound)

	_, err = store.CreateBucket(ctx, "alpha")
	require.NoError(t, err)

	buckets, err := store.ListBuckets(ctx)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, "alpha", buckets[0].Name)
	assert.Equal(t, "demo", buckets[1].Name)
}

func TestObjectUpsert(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateBucket(ctx, "demo")
	require.NoError(t, err)

	obj, err := store.UpsertObject(ctx, "demo", "readme.txt", 23, "etag1")
	require.NoError(t, err)
	assert.Equal(t, uint64(23), obj.Size)
	assert.Equal(t, "etag1", obj.ETag)
	created := obj.CreatedAt

	obj, err = store.UpsertObject(ctx, "demo", "readme.txt", 42, "etag2")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), obj.Size)
	assert.Equal(t, "etag2", obj.ETag)
	assert.Equal(t, created, obj.CreatedAt)

	_, err = store.UpsertObject(ctx, "missing", "readme.txt", 1, "x")
	assert.ErrorIs(t, err, db.ErrBucketNotFound)
}

func TestObjectListPrefix(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateBucket(ctx, "demo")
	require.NoError(t, err)

	for _, name := range []string{"logs/a", "logs/b", "img-1", "img-2"} {
		_, err := store.UpsertObject(ctx, "demo", name, 1, "e")
		require.NoError(t, err)
	}

	objects, err := store.ListObjects(ctx, "demo", "logs/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "logs/a", objects[0].Name)
	assert.Equal(t, "logs/b", objects[1].Name)

	all, err := store.ListObjects(ctx, "demo", "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	// LIKE metacharacters in the prefix match literally.
	none, err := store.ListObjects(ctx, "demo", "%")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = store.ListObjects(ctx, "missing", "")
	assert.ErrorIs(t, err, db.ErrBucketNotFound)
}

func TestObjectDeleteIdempotent(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateBucket(ctx, "demo")
	require.NoError(t, err)
	_, err = store.UpsertObject(ctx, "demo", "x", 1, "e")
	require.NoError(t, err)

	require.NoError(t, store.DeleteObject(ctx, "demo", "x"))
	require.NoError(t, store.DeleteObject(ctx, "demo", "x"))
	assert.ErrorIs(t, store.DeleteObject(ctx, "missing", "x"), db.ErrBucketNotFound)

	_, err = store.GetObject(ctx, "demo", "x")
	assert.ErrorIs(t, err, db.ErrObjectNotFound)
}

func newUpload(t *testing.T, store *Store, bucket string, expiresAt time.Time) *types.MultipartUpload {
	t.Helper()
	ctx := context.Background()

	b, err := store.GetBucket(ctx, bucket)
	require.NoError(t, err)

	upload := &types.MultipartUpload{
		UploadID:   "up-" + t.Name() + "-" + expiresAt.Format("150405.000000000"),
		BucketID:   b.ID,
		Bucket:     b.Name,
		ObjectName: "obj",
		State:      types.UploadStateInitiated,
		ExpiresAt:  expiresAt,
	}
	require.NoError(t, store.CreateUpload(ctx, upload))
	return upload
}

func TestUploadLifecycle(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateBucket(ctx, "demo")
	require.NoError(t, err)

	upload := newUpload(t, store, "demo", time.Now().Add(time.Hour))

	got, err := store.GetUpload(ctx, upload.UploadID)
	require.NoError(t, err)
	assert.Equal(t, types.UploadStateInitiated, got.State)
	assert.Equal(t, "demo", got.Bucket)
	assert.Equal(t, "obj", got.ObjectName)

	require.NoError(t, store.UpdateUploadState(ctx, upload.UploadID, types.UploadStateUploading))
	got, err = store.GetUpload(ctx, upload.UploadID)
	require.NoError(t, err)
	assert.Equal(t, types.UploadStateUploading, got.State)

	assert.ErrorIs(t, store.UpdateUploadState(ctx, "missing", types.UploadStateAborted), db.ErrUploadNotFound)

	require.NoError(t, store.DeleteUpload(ctx, upload.UploadID))
	_, err = store.GetUpload(ctx, upload.UploadID)
	assert.ErrorIs(t, err, db.ErrUploadNotFound)
}

func TestPartUpsertAndCascade(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateBucket(ctx, "demo")
	require.NoError(t, err)
	upload := newUpload(t, store, "demo", time.Now().Add(time.Hour))

	require.NoError(t, store.PutPart(ctx, &types.MultipartPart{
		UploadID: upload.UploadID, PartNumber: 2, Size: 4, ETag: "e2", TempPath: "/t/2",
	}))
	require.NoError(t, store.PutPart(ctx, &types.MultipartPart{
		UploadID: upload.UploadID, PartNumber: 1, Size: 2, ETag: "e1", TempPath: "/t/1",
	}))

	// Replacing a part number keeps one row with the new values.
	require.NoError(t, store.PutPart(ctx, &types.MultipartPart{
		UploadID: upload.UploadID, PartNumber: 1, Size: 8, ETag: "e1b", TempPath: "/t/1b",
	}))

	parts, err := store.ListParts(ctx, upload.UploadID)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, 1, parts[0].PartNumber)
	assert.Equal(t, "e1b", parts[0].ETag)
	assert.Equal(t, uint64(8), parts[0].Size)
	assert.Equal(t, 2, parts[1].PartNumber)

	// Deleting the upload cascades to its parts.
	require.NoError(t, store.DeleteUpload(ctx, upload.UploadID))
	parts, err = store.ListParts(ctx, upload.UploadID)
	require.NoError(t, err)
	assert.Empty(t, parts)
}

func TestListExpiredUploads(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateBucket(ctx, "demo")
	require.NoError(t, err)

	oldest := newUpload(t, store, "demo", time.Now().Add(-2*time.Hour))
	newer := newUpload(t, store, "demo", time.Now().Add(-time.Hour))
	fresh := newUpload(t, store, "demo", time.Now().Add(time.Hour))
	terminal := newUpload(t, store, "demo", time.Now().Add(-3*time.Hour))
	require.NoError(t, store.UpdateUploadState(ctx, terminal.UploadID, types.UploadStateAborted))

	expired, err := store.ListExpiredUploads(ctx, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, oldest.UploadID, expired[0].UploadID)
	assert.Equal(t, newer.UploadID, expired[1].UploadID)

	limited, err := store.ListExpiredUploads(ctx, time.Now().Add(-time.Minute), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, oldest.UploadID, limited[0].UploadID)

	_ = fresh
}
