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

// UploadColumns is the standard column list for upload queries. The join
// fills in the owning bucket's name.
const UploadColumns = `u.id, u.upload_id, u.bucket_id, b.name, u.object_name, u.state, u.expires_at, u.created_at, u.updated_at`

// PartColumns is the standard column list for part queries.
const PartColumns = `id, upload_id, part_number, size_bytes, etag, temp_path, created_at`

func (s *Store) CreateUpload(ctx context.Context, upload *types.MultipartUpload) error {
	now := db.FormatTime(time.Now())
	state := upload.State
	if state == "" {
		state = types.UploadStateInitiated
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO multipart_uploads (upload_id, bucket_id, object_name, state, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		upload.UploadID,
		upload.BucketID,
		upload.ObjectName,
		string(state),
		db.FormatTime(upload.ExpiresAt),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("create multipart upload: %w", err)
	}
	return nil
}

func (s *Store) GetUpload(ctx context.Context, uploadID string) (*types.MultipartUpload, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+UploadColumns+`
		FROM multipart_uploads u JOIN buckets b ON u.bucket_id = b.id
		WHERE u.upload_id = ?
	`, uploadID)
	return scanUpload(row)
}

func (s *Store) ListExpiredUploads(ctx context.Context, cutoff time.Time, limit int) ([]*types.MultipartUpload, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+UploadColumns+`
		FROM multipart_uploads u JOIN buckets b ON u.bucket_id = b.id
		WHERE u.state IN (?, ?) AND u.expires_at < ?
		ORDER BY u.expires_at ASC
		LIMIT ?
	`,
		string(types.UploadStateInitiated),
		string(types.UploadStateUploading),
		db.FormatTime(cutoff),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired uploads: %w", err)
	}
	defer rows.Close()

	var uploads []*types.MultipartUpload
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, rows.Err()
}

func (s *Store) UpdateUploadState(ctx context.Context, uploadID string, state types.UploadState) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE multipart_uploads SET state = ?, updated_at = ? WHERE upload_id = ?
	`, string(state), db.FormatTime(time.Now()), uploadID)
	if err != nil {
		return fmt.Errorf("update upload state: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return db.ErrUploadNotFound
	}
	return nil
}

func (s *Store) DeleteUpload(ctx context.Context, uploadID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM multipart_uploads WHERE upload_id = ?`, uploadID)
	if err != nil {
		return fmt.Errorf("delete multipart upload: %w", err)
	}
	return nil
}

func (s *Store) PutPart(ctx context.Context, part *types.MultipartPart) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO multipart_parts (upload_id, part_number, size_bytes, etag, temp_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(upload_id, part_number) DO UPDATE SET
			size_bytes = excluded.size_bytes,
			etag = excluded.etag,
			temp_path = excluded.temp_path
	`,
		part.UploadID,
		part.PartNumber,
		part.Size,
		part.ETag,
		part.TempPath,
		db.FormatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("put part: %w", err)
	}
	return nil
}

func (s *Store) ListParts(ctx context.Context, uploadID string) ([]*types.MultipartPart, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+PartColumns+`
		FROM multipart_parts
		WHERE upload_id = ?
		ORDER BY part_number ASC
	`, uploadID)
	if err != nil {
		return nil, fmt.Errorf("list parts: %w", err)
	}
	defer rows.Close()

	var parts []*types.MultipartPart
	for rows.Next() {
		part, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, rows.Err()
}

func (s *Store) DeleteParts(ctx context.Context, uploadID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM multipart_parts WHERE upload_id = ?`, uploadID)
	if err != nil {
		return fmt.Errorf("delete parts: %w", err)
	}
	return nil
}

func scanUpload(sc scanner) (*types.MultipartUpload, error) {
	var upload types.MultipartUpload
	var state, expiresAt, createdAt, updatedAt string
	err := sc.Scan(&upload.ID, &upload.UploadID, &upload.BucketID, &upload.Bucket,
		&upload.ObjectName, &state, &expiresAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrUploadNotFound
		}
		return nil, fmt.Errorf("scan upload: %w", err)
	}

	upload.State = types.UploadState(state)
	if upload.ExpiresAt, err = db.ParseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parse upload expires_at: %w", err)
	}
	if upload.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse upload created_at: %w", err)
	}
	if upload.UpdatedAt, err = db.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse upload updated_at: %w", err)
	}
	return &upload, nil
}

func scanPart(sc scanner) (*types.MultipartPart, error) {
	var part types.MultipartPart
	var createdAt string
	err := sc.Scan(&part.ID, &part.UploadID, &part.PartNumber, &part.Size,
		&part.ETag, &part.TempPath, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("scan part: %w", err)
	}

	if part.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse part created_at: %w", err)
	}
	return &part, nil
}
