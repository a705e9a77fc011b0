package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/amrelngm6/crm-flutter-sub000/internal/model"
)

// InsertMessage inserts a new message row. A missing ID is generated.
// The (account_id, message_id) uniqueness constraint is the dedup
// backstop: callers are expected to check MessageExists first.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *model.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.FetchedAt.IsZero() {
		msg.FetchedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (
			id, account_id, folder_name, message_id,
			from_name, from_addr, subject, body, body_html, date,
			read, favourite, archived, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.AccountID, msg.FolderName, msg.MessageID,
		msg.FromName, msg.FromAddr, msg.Subject, msg.Body, msg.BodyHTML, msg.Date.UTC(),
		boolToInt(msg.Read), boolToInt(msg.Favourite), boolToInt(msg.Archived),
		msg.FetchedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting message %s: %w", msg.MessageID, err)
	}

	return nil
}

// MessageExists reports whether a message with the given protocol-level
// identifier is already stored for the account.
func (s *SQLiteStore) MessageExists(ctx context.Context, accountID, messageID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM messages WHERE account_id = ? AND message_id = ?",
		accountID, messageID,
	)
	if err != nil {
		return false, fmt.Errorf("checking message %s: %w", messageID, err)
	}
	return count > 0, nil
}

// GetMessage retrieves a single message by its row ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM messages WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("querying message %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("querying message %s: %w", id, err)
		}
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}

	msg, err := scanMessage(rows)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessages retrieves messages matching the provided filter options.
func (s *SQLiteStore) ListMessages(ctx context.Context, filter MessageFilter) ([]model.Message, error) {
	conditions := []string{"account_id = ?"}
	args := []interface{}{filter.AccountID}

	if filter.FolderName != nil {
		conditions = append(conditions, "folder_name = ?")
		args = append(args, *filter.FolderName)
	}
	if filter.Read != nil {
		conditions = append(conditions, "read = ?")
		args = append(args, boolToInt(*filter.Read))
	}
	if filter.Favourite != nil {
		conditions = append(conditions, "favourite = ?")
		args = append(args, boolToInt(*filter.Favourite))
	}
	if filter.Archived != nil {
		conditions = append(conditions, "archived = ?")
		args = append(args, boolToInt(*filter.Archived))
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, "(subject LIKE ? OR from_name LIKE ? OR from_addr LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q, q)
	}

	query := "SELECT * FROM messages WHERE " + strings.Join(conditions, " AND ")

	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	query += " ORDER BY date " + direction

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	return msgs, rows.Err()
}

// UpdateMessageFlags applies an explicit partial flag update. Re-sync
// never calls this: only user actions mutate flags.
func (s *SQLiteStore) UpdateMessageFlags(ctx context.Context, id string, upd model.FlagUpdate) error {
	var sets []string
	var args []interface{}

	if upd.Read != nil {
		sets = append(sets, "read = ?")
		args = append(args, boolToInt(*upd.Read))
	}
	if upd.Favourite != nil {
		sets = append(sets, "favourite = ?")
		args = append(args, boolToInt(*upd.Favourite))
	}
	if upd.Archived != nil {
		sets = append(sets, "archived = ?")
		args = append(args, boolToInt(*upd.Archived))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		"UPDATE messages SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...,
	)
	if err != nil {
		return fmt.Errorf("updating flags for message %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteMessage removes a message row; attachment rows cascade.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting message %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return nil
}

// scanMessage scans a message row from a sqlx.Rows result set.
func scanMessage(rows *sqlx.Rows) (model.Message, error) {
	var (
		msg       model.Message
		read      int
		favourite int
		archived  int
	)

	err := rows.Scan(
		&msg.ID, &msg.AccountID, &msg.FolderName, &msg.MessageID,
		&msg.FromName, &msg.FromAddr, &msg.Subject, &msg.Body, &msg.BodyHTML, &msg.Date,
		&read, &favourite, &archived, &msg.FetchedAt,
	)
	if err != nil {
		return model.Message{}, fmt.Errorf("scanning message row: %w", err)
	}

	msg.Read = read != 0
	msg.Favourite = favourite != 0
	msg.Archived = archived != 0
	return msg, nil
}
