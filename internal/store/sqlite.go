package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/amrelngm6/crm-flutter-sub000/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// CreateAccount inserts a new account row. A missing ID is generated.
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *model.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (
			id, business_id, user_id, name, email,
			recv_host, recv_port, recv_security, recv_username, recv_password,
			send_host, send_port, send_security, send_username, send_password,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.BusinessID, account.UserID, account.Name, account.Email,
		account.Receive.Host, account.Receive.Port, string(account.Receive.Security),
		account.Receive.Username, account.Receive.Password,
		account.Send.Host, account.Send.Port, string(account.Send.Security),
		account.Send.Username, account.Send.Password,
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating account %s: %w", account.ID, err)
	}

	return nil
}

// UpdateAccount replaces the mutable fields of an account row.
func (s *SQLiteStore) UpdateAccount(ctx context.Context, account *model.Account) error {
	account.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET
			name = ?, email = ?,
			recv_host = ?, recv_port = ?, recv_security = ?, recv_username = ?, recv_password = ?,
			send_host = ?, send_port = ?, send_security = ?, send_username = ?, send_password = ?,
			updated_at = ?
		WHERE id = ?`,
		account.Name, account.Email,
		account.Receive.Host, account.Receive.Port, string(account.Receive.Security),
		account.Receive.Username, account.Receive.Password,
		account.Send.Host, account.Send.Port, string(account.Send.Security),
		account.Send.Username, account.Send.Password,
		account.UpdatedAt, account.ID,
	)
	if err != nil {
		return fmt.Errorf("updating account %s: %w", account.ID, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s: %w", account.ID, ErrNotFound)
	}
	return nil
}

// DeleteAccount removes an account row. Folders, messages, attachments,
// and sync state cascade at the schema level; attachment payloads are
// unlinked by the caller beforehand.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting account %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetAccount retrieves a single account scoped by its owning business.
func (s *SQLiteStore) GetAccount(ctx context.Context, businessID, id string) (*model.Account, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT * FROM accounts WHERE business_id = ? AND id = ?", businessID, id,
	)
	account, err := scanAccountRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting account %s: %w", id, err)
	}
	return account, nil
}

// GetAccountByID retrieves a single account without tenant scoping, for
// internal callers that already resolved ownership.
func (s *SQLiteStore) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	row := s.db.QueryRowxContext(ctx, "SELECT * FROM accounts WHERE id = ?", id)
	account, err := scanAccountRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting account %s: %w", id, err)
	}
	return account, nil
}

// ListAccounts retrieves all accounts owned by a business.
func (s *SQLiteStore) ListAccounts(ctx context.Context, businessID string) ([]model.Account, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM accounts WHERE business_id = ? ORDER BY created_at", businessID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}

	return accounts, rows.Err()
}

// ListAllAccounts retrieves every account across all businesses, for
// the background sync loop.
func (s *SQLiteStore) ListAllAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM accounts ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}

	return accounts, rows.Err()
}

// accountDest returns the scan target order shared by the account scanners.
func accountDest(a *model.Account, recvSec, sendSec *string) []interface{} {
	return []interface{}{
		&a.ID, &a.BusinessID, &a.UserID, &a.Name, &a.Email,
		&a.Receive.Host, &a.Receive.Port, recvSec, &a.Receive.Username, &a.Receive.Password,
		&a.Send.Host, &a.Send.Port, sendSec, &a.Send.Username, &a.Send.Password,
		&a.CreatedAt, &a.UpdatedAt,
	}
}

// scanAccount scans an account row from a sqlx.Rows result set.
func scanAccount(rows *sqlx.Rows) (*model.Account, error) {
	var (
		account  model.Account
		recvSec  string
		sendSec  string
	)
	if err := rows.Scan(accountDest(&account, &recvSec, &sendSec)...); err != nil {
		return nil, fmt.Errorf("scanning account row: %w", err)
	}
	account.Receive.Security = model.SecurityMode(recvSec)
	account.Send.Security = model.SecurityMode(sendSec)
	return &account, nil
}

// scanAccountRow scans a single account row from a sqlx.Row.
func scanAccountRow(row *sqlx.Row) (*model.Account, error) {
	var (
		account  model.Account
		recvSec  string
		sendSec  string
	)
	if err := row.Scan(accountDest(&account, &recvSec, &sendSec)...); err != nil {
		return nil, err
	}
	account.Receive.Security = model.SecurityMode(recvSec)
	account.Send.Security = model.SecurityMode(sendSec)
	return &account, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
