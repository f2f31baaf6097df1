// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage persists object bytes on the local filesystem. Writes
// stream through a temp file and publish with a rename; the rename is the
// only path to a visible object, so readers never observe partial content.
package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nebulafs/nebulafs/pkg/logger"
	"github.com/nebulafs/nebulafs/pkg/names"
	"github.com/nebulafs/nebulafs/pkg/utils"
)

// writeChunkSize is the unit objects are streamed and hashed in.
const writeChunkSize = 8 * 1024

var (
	bytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nebulafs_storage_bytes_written_total",
		Help: "Total object bytes committed to disk",
	})

	writeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nebulafs_storage_write_errors_total",
		Help: "Total failed object writes",
	})
)

func init() {
	prometheus.MustRegister(bytesWritten, writeErrors)
}

// LocalStore reads and writes object files under a base directory and
// keeps in-flight data under a separate temp directory.
type LocalStore struct {
	base string
	temp string
}

// New creates a LocalStore and its root directories.
func New(base, temp string) (*LocalStore, error) {
	for _, dir := range []string{filepath.Join(base, "buckets"), filepath.Join(temp, "multipart")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return &LocalStore{base: base, temp: temp}, nil
}

// WriteResult describes a committed write.
type WriteResult struct {
	Path string
	Size uint64
	ETag string
}

// EnsureBucket lazily creates the objects directory for a bucket.
func (s *LocalStore) EnsureBucket(bucket string) error {
	if err := os.MkdirAll(names.BucketDir(s.base, bucket), 0o755); err != nil {
		return fmt.Errorf("create bucket dir: %w", err)
	}
	return nil
}

// WriteObject streams r to a temp file, hashing as it goes, then renames
// onto the canonical object path. On any failure the temp file is removed.
func (s *LocalStore) WriteObject(ctx context.Context, bucket, object string, r io.Reader) (*WriteResult, error) {
	dst := names.ObjectPath(s.base, bucket, object)
	tempPath := filepath.Join(s.temp, uuid.NewString())

	result, err := s.writeTo(ctx, tempPath, dst, r)
	if err != nil {
		writeErrors.Inc()
		return nil, err
	}

	logger.Ctx(ctx).Debug().
		Str("bucket", bucket).
		Str("object", object).
		Str("size", humanize.Bytes(result.Size)).
		Msg("object committed")
	return result, nil
}

// writeTo is the shared temp-then-rename write path. dst parent
// directories are created before the rename.
func (s *LocalStore) writeTo(ctx context.Context, tempPath, dst string, r io.Reader) (_ *WriteResult, err error) {
	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	hasher := utils.Sha256PoolGetHasher()
	defer utils.Sha256PoolPutHasher(hasher)

	var size uint64
	buf := make([]byte, writeChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return nil, fmt.Errorf("write temp file: %w", err)
			}
			hasher.Write(buf[:n])
			size += uint64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read body: %w", readErr)
		}
	}

	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("create parent dir: %w", err)
	}
	if err := os.Rename(tempPath, dst); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("publish object: %w", err)
	}

	bytesWritten.Add(float64(size))
	return &WriteResult{
		Path: dst,
		Size: size,
		ETag: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open returns an open handle on a published object and its size.
// The caller owns the handle.
func (s *LocalStore) Open(bucket, object string) (*os.File, int64, error) {
	path := names.ObjectPath(s.base, bucket, object)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, os.ErrNotExist
		}
		return nil, 0, fmt.Errorf("open object: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat object: %w", err)
	}
	return f, info.Size(), nil
}

// Delete removes a published object file. Removing an absent file
// returns os.ErrNotExist so callers can distinguish it.
func (s *LocalStore) Delete(bucket, object string) error {
	err := os.Remove(names.ObjectPath(s.base, bucket, object))
	if err != nil {
		if os.IsNotExist(err) {
			return os.ErrNotExist
		}
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// RemoveObject removes a published object file, ignoring absence. Used
// to clean up an orphan when a metadata upsert fails after the rename.
func (s *LocalStore) RemoveObject(bucket, object string) {
	if err := os.Remove(names.ObjectPath(s.base, bucket, object)); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Str("bucket", bucket).Str("object", object).Msg("failed to remove orphan object")
	}
}

// WritePart persists one multipart part under the upload's temp
// directory. Replacing an existing part number rewrites the file
// atomically via a sibling temp file and rename.
func (s *LocalStore) WritePart(ctx context.Context, uploadID string, partNumber int, r io.Reader) (*WriteResult, error) {
	dir := names.UploadTempDir(s.temp, uploadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	dst := names.PartPath(s.temp, uploadID, partNumber)
	tempPath := filepath.Join(dir, ".part-"+uuid.NewString())

	result, err := s.writeTo(ctx, tempPath, dst, r)
	if err != nil {
		writeErrors.Inc()
		return nil, err
	}
	return result, nil
}

// AssembleObject concatenates part files in the given order into a
// reassembly temp file inside the upload's directory, hashing the whole
// stream, then renames onto the canonical object path.
func (s *LocalStore) AssembleObject(ctx context.Context, bucket, object, uploadID string, partPaths []string) (*WriteResult, error) {
	dir := names.UploadTempDir(s.temp, uploadID)
	tempPath := filepath.Join(dir, "complete-"+uuid.NewString())
	dst := names.ObjectPath(s.base, bucket, object)

	readers := make([]io.Reader, 0, len(partPaths))
	files := make([]*os.File, 0, len(partPaths))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, p := range partPaths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open part %s: %w", p, err)
		}
		files = append(files, f)
		readers = append(readers, f)
	}

	result, err := s.writeTo(ctx, tempPath, dst, io.MultiReader(readers...))
	if err != nil {
		writeErrors.Inc()
		return nil, err
	}
	return result, nil
}

// UploadTempDir exposes the temp directory owned by one upload.
func (s *LocalStore) UploadTempDir(uploadID string) string {
	return names.UploadTempDir(s.temp, uploadID)
}

// RemoveUploadDir deletes an upload's temp directory and everything in it.
func (s *LocalStore) RemoveUploadDir(uploadID string) error {
	if err := os.RemoveAll(names.UploadTempDir(s.temp, uploadID)); err != nil {
		return fmt.Errorf("remove upload dir: %w", err)
	}
	return nil
}
