package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amrelngm6/crm-flutter-sub000/internal/model"
)

// GetSyncState retrieves the watermark for one folder of an account.
// If no state exists yet, it returns a zero state with the keys set.
func (s *SQLiteStore) GetSyncState(ctx context.Context, accountID, folderName string) (*model.SyncState, error) {
	var state model.SyncState
	err := s.db.QueryRowxContext(ctx,
		"SELECT account_id, folder_name, last_uid, last_sync FROM sync_state WHERE account_id = ? AND folder_name = ?",
		accountID, folderName,
	).Scan(&state.AccountID, &state.FolderName, &state.LastUID, &state.LastSync)

	if errors.Is(err, sql.ErrNoRows) {
		return &model.SyncState{AccountID: accountID, FolderName: folderName}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting sync state for %s/%s: %w", accountID, folderName, err)
	}

	return &state, nil
}

// SetSyncState inserts or updates the watermark for one folder. The
// stored last_uid never regresses: a lower value than the current one
// is ignored at the SQL level.
func (s *SQLiteStore) SetSyncState(ctx context.Context, state *model.SyncState) error {
	if state.LastSync.IsZero() {
		state.LastSync = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (account_id, folder_name, last_uid, last_sync)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id, folder_name) DO UPDATE SET
			last_uid  = MAX(last_uid, excluded.last_uid),
			last_sync = excluded.last_sync`,
		state.AccountID, state.FolderName, state.LastUID, state.LastSync.UTC(),
	)
	if err != nil {
		return fmt.Errorf("setting sync state for %s/%s: %w", state.AccountID, state.FolderName, err)
	}
	return nil
}
