package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/amrelngm6/crm-flutter-sub000/internal/model"
)

// InsertAttachment inserts an attachment row. The referenced storage
// path must already hold the payload: creation order is always
// storage-write-then-row-insert.
func (s *SQLiteStore) InsertAttachment(ctx context.Context, att *model.Attachment) error {
	if att.ID == "" {
		att.ID = uuid.New().String()
	}
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (id, message_id, filename, mime_type, size, storage_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		att.ID, att.MessageID, att.Filename, att.MIMEType, att.Size,
		att.StoragePath, att.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting attachment %s: %w", att.Filename, err)
	}

	return nil
}

// GetAttachment retrieves a single attachment by ID.
func (s *SQLiteStore) GetAttachment(ctx context.Context, id string) (*model.Attachment, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM attachments WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("querying attachment %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("querying attachment %s: %w", id, err)
		}
		return nil, fmt.Errorf("attachment %s: %w", id, ErrNotFound)
	}

	att, err := scanAttachment(rows)
	if err != nil {
		return nil, err
	}
	return &att, nil
}

// ListAttachments retrieves all attachments of a message.
func (s *SQLiteStore) ListAttachments(ctx context.Context, messageID string) ([]model.Attachment, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM attachments WHERE message_id = ? ORDER BY created_at", messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying attachments: %w", err)
	}
	defer rows.Close()

	var atts []model.Attachment
	for rows.Next() {
		att, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		atts = append(atts, att)
	}

	return atts, rows.Err()
}

// ListAccountAttachments retrieves every attachment belonging to an
// account's messages, used to unlink payloads before a cascade delete.
func (s *SQLiteStore) ListAccountAttachments(ctx context.Context, accountID string) ([]model.Attachment, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT a.* FROM attachments a
		JOIN messages m ON m.id = a.message_id
		WHERE m.account_id = ?`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying account attachments: %w", err)
	}
	defer rows.Close()

	var atts []model.Attachment
	for rows.Next() {
		att, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		atts = append(atts, att)
	}

	return atts, rows.Err()
}

// scanAttachment scans an attachment row from a sqlx.Rows result set.
func scanAttachment(rows *sqlx.Rows) (model.Attachment, error) {
	var att model.Attachment
	err := rows.Scan(
		&att.ID, &att.MessageID, &att.Filename, &att.MIMEType,
		&att.Size, &att.StoragePath, &att.CreatedAt,
	)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("scanning attachment row: %w", err)
	}
	return att, nil
}
