package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Attachment is a file attached to a comment; the blob itself lives in
// object storage under ObjectKey.
type Attachment struct {
	ID          string
	CommentID   int64
	FileName    string
	ContentType string
	SizeBytes   int64
	ObjectKey   string
	UploadedBy  string
	CreatedAt   time.Time
}

func (s *PostgresStore) InsertAttachment(ctx context.Context, a Attachment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comment_attachments (id, comment_id, file_name, content_type, size_bytes, object_key, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.CommentID, a.FileName, a.ContentType, a.SizeBytes, a.ObjectKey, a.UploadedBy)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAttachment(ctx context.Context, attachmentID string) (Attachment, error) {
	var a Attachment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, comment_id, file_name, content_type, size_bytes, object_key, uploaded_by, created_at
		FROM comment_attachments WHERE id=$1
	`, attachmentID).Scan(&a.ID, &a.CommentID, &a.FileName, &a.ContentType, &a.SizeBytes, &a.ObjectKey, &a.UploadedBy, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Attachment{}, ErrNotFound
	}
	if err != nil {
		return Attachment{}, fmt.Errorf("get attachment: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListCommentAttachments(ctx context.Context, commentID int64) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, comment_id, file_name, content_type, size_bytes, object_key, uploaded_by, created_at
		FROM comment_attachments WHERE comment_id=$1 ORDER BY created_at ASC
	`, commentID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	attachments := make([]Attachment, 0)
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.CommentID, &a.FileName, &a.ContentType, &a.SizeBytes, &a.ObjectKey, &a.UploadedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		attachments = append(attachments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return attachments, nil
}
