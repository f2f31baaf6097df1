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

// BucketColumns is the standard column list for bucket queries.
const BucketColumns = `id, name, created_at`

func (s *Store) CreateBucket(ctx context.Context, name string) (*types.Bucket, error) {
	createdAt := db.FormatTime(time.Now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO buckets (name, created_at) VALUES (?, ?)`,
		name, createdAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, db.ErrBucketExists
		}
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return s.GetBucket(ctx, name)
}

func (s *Store) GetBucket(ctx context.Context, name string) (*types.Bucket, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+BucketColumns+` FROM buckets WHERE name = ?`, name)
	return scanBucket(row)
}

func (s *Store) ListBuckets(ctx context.Context) ([]*types.Bucket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+BucketColumns+` FROM buckets ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	defer rows.Close()

	var buckets []*types.Bucket
	for rows.Next() {
		bucket, err := scanBucket(rows)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, bucket)
	}
	return buckets, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBucket(sc scanner) (*types.Bucket, error) {
	var (
		bucket    types.Bucket
		createdAt string
	)
	if err := sc.Scan(&bucket.ID, &bucket.Name, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrBucketNotFound
		}
		return nil, fmt.Errorf("scan bucket: %w", err)
	}

	var err error
	bucket.CreatedAt, err = db.ParseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse bucket created_at: %w", err)
	}
	return &bucket, nil
}
