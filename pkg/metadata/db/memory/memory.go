// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory provides an in-memory metadata store for tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nebulafs/nebulafs/pkg/metadata/db"
	"github.com/nebulafs/nebulafs/pkg/types"
)

// Store implements db.DB entirely in memory. It mirrors the SQLite
// store's semantics including FK cascades and upsert behavior.
type Store struct {
	mu      sync.RWMutex
	nextID  int64
	buckets map[string]*types.Bucket
	objects map[string]map[string]*types.Object     // bucket -> name -> object
	uploads map[string]*types.MultipartUpload       // upload_id -> upload
	parts   map[string]map[int]*types.MultipartPart // upload_id -> part_number -> part
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		buckets: make(map[string]*types.Bucket),
		objects: make(map[string]map[string]*types.Object),
		uploads: make(map[string]*types.MultipartUpload),
		parts:   make(map[string]map[int]*types.MultipartPart),
	}
}

func (s *Store) Migrate(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) allocID() int64 {
	s.nextID++
	return s.nextID
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func (s *Store) CreateBucket(ctx context.Context, name string) (*types.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.buckets[name]; exists {
		return nil, db.ErrBucketExists
	}
	bucket := &types.Bucket{
		ID:        s.allocID(),
		Name:      name,
		CreatedAt: now(),
	}
	s.buckets[name] = bucket
	s.objects[name] = make(map[string]*types.Object)

	cp := *bucket
	return &cp, nil
}

func (s *Store) GetBucket(ctx context.Context, name string) (*types.Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket, ok := s.buckets[name]
	if !ok {
		return nil, db.ErrBucketNotFound
	}
	cp := *bucket
	return &cp, nil
}

func (s *Store) ListBuckets(ctx context.Context) ([]*types.Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buckets := make([]*types.Bucket, 0, len(s.buckets))
	for _, b := range s.buckets {
		cp := *b
		buckets = append(buckets, &cp)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Name < buckets[j].Name })
	return buckets, nil
}

func (s *Store) UpsertObject(ctx context.Context, bucket, name string, size uint64, etag string) (*types.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[bucket]
	if !ok {
		return nil, db.ErrBucketNotFound
	}

	obj, exists := s.objects[bucket][name]
	if exists {
		obj.Size = size
		obj.ETag = etag
		obj.UpdatedAt = now()
	} else {
		ts := now()
		obj = &types.Object{
			ID:        s.allocID(),
			BucketID:  b.ID,
			Name:      name,
			Size:      size,
			ETag:      etag,
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		s.objects[bucket][name] = obj
	}

	cp := *obj
	return &cp, nil
}

func (s *Store) GetObject(ctx context.Context, bucket, name string) (*types.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[bucket][name]
	if !ok {
		return nil, db.ErrObjectNotFound
	}
	cp := *obj
	return &cp, nil
}

func (s *Store) ListObjects(ctx context.Context, bucket, prefix string) ([]*types.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.buckets[bucket]; !ok {
		return nil, db.ErrBucketNotFound
	}

	var objects []*types.Object
	for name, obj := range s.objects[bucket] {
		if strings.HasPrefix(name, prefix) {
			cp := *obj
			objects = append(objects, &cp)
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

func (s *Store) DeleteObject(ctx context.Context, bucket, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buckets[bucket]; !ok {
		return db.ErrBucketNotFound
	}
	delete(s.objects[bucket], name)
	return nil
}

func (s *Store) CreateUpload(ctx context.Context, upload *types.MultipartUpload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *upload
	cp.ID = s.allocID()
	if cp.State == "" {
		cp.State = types.UploadStateInitiated
	}
	ts := now()
	cp.CreatedAt = ts
	cp.UpdatedAt = ts
	s.uploads[cp.UploadID] = &cp
	s.parts[cp.UploadID] = make(map[int]*types.MultipartPart)
	return nil
}

func (s *Store) GetUpload(ctx context.Context, uploadID string) (*types.MultipartUpload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	upload, ok := s.uploads[uploadID]
	if !ok {
		return nil, db.ErrUploadNotFound
	}
	cp := *upload
	return &cp, nil
}

func (s *Store) ListExpiredUploads(ctx context.Context, cutoff time.Time, limit int) ([]*types.MultipartUpload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var uploads []*types.MultipartUpload
	for _, u := range s.uploads {
		if (u.State == types.UploadStateInitiated || u.State == types.UploadStateUploading) &&
			u.ExpiresAt.Before(cutoff) {
			cp := *u
			uploads = append(uploads, &cp)
		}
	}
	sort.Slice(uploads, func(i, j int) bool { return uploads[i].ExpiresAt.Before(uploads[j].ExpiresAt) })
	if limit > 0 && len(uploads) > limit {
		uploads = uploads[:limit]
	}
	return uploads, nil
}

func (s *Store) UpdateUploadState(ctx context.Context, uploadID string, state types.UploadState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	upload, ok := s.uploads[uploadID]
	if !ok {
		return db.ErrUploadNotFound
	}
	upload.State = state
	upload.UpdatedAt = now()
	return nil
}

func (s *Store) DeleteUpload(ctx context.Context, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.uploads, uploadID)
	delete(s.parts, uploadID)
	return nil
}

func (s *Store) PutPart(ctx context.Context, part *types.MultipartPart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byNumber, ok := s.parts[part.UploadID]
	if !ok {
		byNumber = make(map[int]*types.MultipartPart)
		s.parts[part.UploadID] = byNumber
	}

	cp := *part
	if existing, exists := byNumber[part.PartNumber]; exists {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.ID = s.allocID()
		cp.CreatedAt = now()
	}
	byNumber[part.PartNumber] = &cp
	return nil
}

func (s *Store) ListParts(ctx context.Context, uploadID string) ([]*types.MultipartPart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var parts []*types.MultipartPart
	for _, p := range s.parts[uploadID] {
		cp := *p
		parts = append(parts, &cp)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })
	return parts, nil
}

func (s *Store) DeleteParts(ctx context.Context, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.parts[uploadID] = make(map[int]*types.MultipartPart)
	return nil
}

var _ db.DB = (*Store)(nil)
