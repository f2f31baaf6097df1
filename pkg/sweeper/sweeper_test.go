// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package sweeper

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nebulafs/nebulafs/pkg/metadata/db"
	"github.com/nebulafs/nebulafs/pkg/metadata/db/memory"
	"github.com/nebulafs/nebulafs/pkg/storage"
	"github.com/nebulafs/nebulafs/pkg/types"
)

type fixture struct {
	svc   *Service
	db    *memory.Store
	store *storage.LocalStore
}

func newFixture(t *testing.T, grace time.Duration, batch int) *fixture {
	t.Helper()

	root := t.TempDir()
	store, err := storage.New(filepath.Join(root, "data"), filepath.Join(root, "tmp"))
	require.NoError(t, err)

	metaDB := memory.New()
	_, err = metaDB.CreateBucket(context.Background(), "demo")
	require.NoError(t, err)

	svc := NewService(Config{
		DB:          metaDB,
		Storage:     store,
		Interval:    time.Hour,
		GracePeriod: grace,
		BatchSize:   batch,
	})
	return &fixture{svc: svc, db: metaDB, store: store}
}

func (f *fixture) addUpload(t *testing.T, id string, state types.UploadState, expiresAt time.Time, withTempFiles bool) {
	t.Helper()
	ctx := context.Background()

	bucket, err := f.db.GetBucket(ctx, "demo")
	require.NoError(t, err)

	require.NoError(t, f.db.CreateUpload(ctx, &types.MultipartUpload{
		UploadID:   id,
		BucketID:   bucket.ID,
		Bucket:     bucket.Name,
		ObjectName: "obj",
		State:      state,
		ExpiresAt:  expiresAt,
	}))
	if state != types.UploadStateInitiated {
		require.NoError(t, f.db.UpdateUploadState(ctx, id, state))
	}

	if withTempFiles {
		result, err := f.store.WritePart(ctx, id, 1, strings.NewReader("part data"))
		require.NoError(t, err)
		require.NoError(t, f.db.PutPart(ctx, &types.MultipartPart{
			UploadID: id, PartNumber: 1, Size: result.Size, ETag: result.ETag, TempPath: result.Path,
		}))
	}
}

func TestSweepReapsExpiredUploads(t *testing.T) {
	t.Parallel()
	f := newFixture(t, time.Minute, 100)
	ctx := context.Background()

	f.addUpload(t, "expired-1", types.UploadStateInitiated, time.Now().Add(-time.Hour), true)
	f.addUpload(t, "expired-2", types.UploadStateUploading, time.Now().Add(-2*time.Hour), true)

	f.svc.RunOnce(ctx)

	for _, id := range []string{"expired-1", "expired-2"} {
		_, err := f.db.GetUpload(ctx, id)
		assert.ErrorIs(t, err, db.ErrUploadNotFound, id)

		parts, err := f.db.ListParts(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, parts, id)

		_, err = os.Stat(f.store.UploadTempDir(id))
		assert.True(t, os.IsNotExist(err), id)
	}
}

func TestSweepHonorsGracePeriod(t *testing.T) {
	t.Parallel()
	f := newFixture(t, time.Hour, 100)
	ctx := context.Background()

	// Expired, but within the grace window.
	f.addUpload(t, "recent", types.UploadStateUploading, time.Now().Add(-time.Minute), false)

	f.svc.RunOnce(ctx)

	_, err := f.db.GetUpload(ctx, "recent")
	assert.NoError(t, err)
}

func TestSweepSkipsLiveAndTerminalUploads(t *testing.T) {
	t.Parallel()
	f := newFixture(t, time.Minute, 100)
	ctx := context.Background()

	f.addUpload(t, "live", types.UploadStateUploading, time.Now().Add(time.Hour), false)
	f.addUpload(t, "done", types.UploadStateCompleted, time.Now().Add(-time.Hour), false)

	f.svc.RunOnce(ctx)

	_, err := f.db.GetUpload(ctx, "live")
	assert.NoError(t, err)
	_, err = f.db.GetUpload(ctx, "done")
	assert.NoError(t, err)
}

func TestSweepBatchLimit(t *testing.T) {
	t.Parallel()
	f := newFixture(t, time.Minute, 1)
	ctx := context.Background()

	f.addUpload(t, "older", types.UploadStateInitiated, time.Now().Add(-2*time.Hour), false)
	f.addUpload(t, "newer", types.UploadStateInitiated, time.Now().Add(-time.Hour), false)

	f.svc.RunOnce(ctx)

	// Oldest expiry goes first; the second upload waits for the next tick.
	_, err := f.db.GetUpload(ctx, "older")
	assert.ErrorIs(t, err, db.ErrUploadNotFound)
	_, err = f.db.GetUpload(ctx, "newer")
	assert.NoError(t, err)

	f.svc.RunOnce(ctx)
	_, err = f.db.GetUpload(ctx, "newer")
	assert.ErrorIs(t, err, db.ErrUploadNotFound)
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	f := newFixture(t, time.Minute, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.svc.Start(ctx)
	// Second Start is a no-op while running.
	f.svc.Start(ctx)
	f.svc.Stop()
	f.svc.Stop()
}
