// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"fmt"
)

// schema is applied in order on every startup; every statement is
// idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS buckets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS objects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bucket_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		etag TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(bucket_id, name),
		FOREIGN KEY(bucket_id) REFERENCES buckets(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS multipart_uploads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		upload_id TEXT NOT NULL UNIQUE,
		bucket_id INTEGER NOT NULL,
		object_name TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'initiated',
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY(bucket_id) REFERENCES buckets(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS multipart_parts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		upload_id TEXT NOT NULL,
		part_number INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL,
		etag TEXT NOT NULL,
		temp_path TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(upload_id, part_number),
		FOREIGN KEY(upload_id) REFERENCES multipart_uploads(upload_id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_multipart_uploads_expires_at
		ON multipart_uploads(expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_multipart_parts_upload_id
		ON multipart_parts(upload_id)`,
}

// Migrate applies the schema. Safe to call on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
