package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/amrelngm6/crm-flutter-sub000/internal/model"
)

// CreateFolder inserts a new folder row. A missing ID is generated.
func (s *SQLiteStore) CreateFolder(ctx context.Context, folder *model.Folder) error {
	if folder.ID == "" {
		folder.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	folder.CreatedAt = now
	folder.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO folders (id, account_id, name, user_created, remote_missing, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		folder.ID, folder.AccountID, folder.Name,
		boolToInt(folder.UserCreated), boolToInt(folder.RemoteMissing),
		folder.CreatedAt, folder.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating folder %s/%s: %w", folder.AccountID, folder.Name, err)
	}

	return nil
}

// GetFolders retrieves all folders of an account ordered by name.
func (s *SQLiteStore) GetFolders(ctx context.Context, accountID string) ([]model.Folder, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM folders WHERE account_id = ? ORDER BY name", accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying folders: %w", err)
	}
	defer rows.Close()

	var folders []model.Folder
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}

	return folders, rows.Err()
}

// GetFolderByName retrieves a folder by its remote name. Folder names
// match case-sensitively.
func (s *SQLiteStore) GetFolderByName(ctx context.Context, accountID, name string) (*model.Folder, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM folders WHERE account_id = ? AND name = ?", accountID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("querying folder %s: %w", name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("querying folder %s: %w", name, err)
		}
		return nil, fmt.Errorf("folder %s: %w", name, ErrNotFound)
	}

	folder, err := scanFolder(rows)
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

// SetFolderRemoteMissing marks or clears the remote_missing flag.
func (s *SQLiteStore) SetFolderRemoteMissing(ctx context.Context, id string, missing bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE folders SET remote_missing = ?, updated_at = ? WHERE id = ?",
		boolToInt(missing), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("marking folder %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("folder %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteFolder removes a folder row.
func (s *SQLiteStore) DeleteFolder(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM folders WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting folder %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("folder %s: %w", id, ErrNotFound)
	}
	return nil
}

// scanFolder scans a folder row from a sqlx.Rows result set.
func scanFolder(rows *sqlx.Rows) (model.Folder, error) {
	var (
		folder        model.Folder
		userCreated   int
		remoteMissing int
	)

	err := rows.Scan(
		&folder.ID, &folder.AccountID, &folder.Name,
		&userCreated, &remoteMissing,
		&folder.CreatedAt, &folder.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Folder{}, ErrNotFound
		}
		return model.Folder{}, fmt.Errorf("scanning folder row: %w", err)
	}

	folder.UserCreated = userCreated != 0
	folder.RemoteMissing = remoteMissing != 0
	return folder, nil
}
