// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nebulafs/nebulafs/pkg/metadata/db"
	"github.com/nebulafs/nebulafs/pkg/types"
)

// ObjectColumns is the standard column list for object queries.
const ObjectColumns = `o.id, o.bucket_id, o.name, o.size_bytes, o.etag, o.created_at, o.updated_at`

func (s *Store) UpsertObject(ctx context.Context, bucket, name string, size uint64, etag string) (*types.Object, error) {
	b, err := s.GetBucket(ctx, bucket)
	if err != nil {
		return nil, err
	}

	now := db.FormatTime(time.Now())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO objects (bucket_id, name, size_bytes, etag, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(bucket_id, name) DO UPDATE SET
			size_bytes = excluded.size_bytes,
			etag = excluded.etag,
			updated_at = excluded.updated_at
	`, b.ID, name, size, etag, now, now)
	if err != nil {
		return nil, fmt.Errorf("upsert object: %w", err)
	}

	return s.GetObject(ctx, bucket, name)
}

func (s *Store) GetObject(ctx context.Context, bucket, name string) (*types.Object, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ObjectColumns+`
		FROM objects o JOIN buckets b ON o.bucket_id = b.id
		WHERE b.name = ? AND o.name = ?
	`, bucket, name)
	return scanObject(row)
}

func (s *Store) ListObjects(ctx context.Context, bucket, prefix string) ([]*types.Object, error) {
	if _, err := s.GetBucket(ctx, bucket); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ObjectColumns+`
		FROM objects o JOIN buckets b ON o.bucket_id = b.id
		WHERE b.name = ? AND o.name LIKE ? ESCAPE '\'
		ORDER BY o.name ASC
	`, bucket, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer rows.Close()

	var objects []*types.Object
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}

func (s *Store) DeleteObject(ctx context.Context, bucket, name string) error {
	b, err := s.GetBucket(ctx, bucket)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM objects WHERE bucket_id = ? AND name = ?`, b.ID, name)
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// escapeLike escapes LIKE metacharacters so a prefix matches literally.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' || c == '_' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}

func scanObject(sc scanner) (*types.Object, error) {
	var (
		obj                  types.Object
		createdAt, updatedAt string
	)
	err := sc.Scan(&obj.ID, &obj.BucketID, &obj.Name, &obj.Size, &obj.ETag, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrObjectNotFound
		}
		return nil, fmt.Errorf("scan object: %w", err)
	}

	if obj.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse object created_at: %w", err)
	}
	if obj.UpdatedAt, err = db.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse object updated_at: %w", err)
	}
	return &obj, nil
}
