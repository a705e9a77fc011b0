package store

import (
	"context"
	"errors"

	"github.com/amrelngm6/crm-flutter-sub000/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err (or any error in its chain) means the
// requested row is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// MessageFilter controls filtering, sorting, and pagination for message
// queries. All message queries are scoped to one account.
type MessageFilter struct {
	AccountID  string
	FolderName *string
	Read       *bool
	Favourite  *bool
	Archived   *bool
	Query      *string // search subject + sender
	SortDesc   bool    // by delivery date
	Limit      int
	Offset     int
}

// Store defines the persistence interface for accounts, folders,
// messages, attachments, and per-folder sync state.
type Store interface {
	// === Accounts ===

	CreateAccount(ctx context.Context, account *model.Account) error
	UpdateAccount(ctx context.Context, account *model.Account) error
	DeleteAccount(ctx context.Context, id string) error
	GetAccount(ctx context.Context, businessID, id string) (*model.Account, error)
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	ListAccounts(ctx context.Context, businessID string) ([]model.Account, error)
	ListAllAccounts(ctx context.Context) ([]model.Account, error)

	// === Folders ===

	CreateFolder(ctx context.Context, folder *model.Folder) error
	GetFolders(ctx context.Context, accountID string) ([]model.Folder, error)
	GetFolderByName(ctx context.Context, accountID, name string) (*model.Folder, error)
	SetFolderRemoteMissing(ctx context.Context, id string, missing bool) error
	DeleteFolder(ctx context.Context, id string) error

	// === Messages ===

	InsertMessage(ctx context.Context, msg *model.Message) error
	MessageExists(ctx context.Context, accountID, messageID string) (bool, error)
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	ListMessages(ctx context.Context, filter MessageFilter) ([]model.Message, error)
	UpdateMessageFlags(ctx context.Context, id string, upd model.FlagUpdate) error
	DeleteMessage(ctx context.Context, id string) error

	// === Attachments ===

	InsertAttachment(ctx context.Context, att *model.Attachment) error
	GetAttachment(ctx context.Context, id string) (*model.Attachment, error)
	ListAttachments(ctx context.Context, messageID string) ([]model.Attachment, error)
	ListAccountAttachments(ctx context.Context, accountID string) ([]model.Attachment, error)

	// === Sync state ===

	GetSyncState(ctx context.Context, accountID, folderName string) (*model.SyncState, error)
	SetSyncState(ctx context.Context, state *model.SyncState) error

	Close() error
}
