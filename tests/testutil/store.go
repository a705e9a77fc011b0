// Package testutil provides shared helpers and fakes for package tests:
// an in-memory store, an in-memory blob store, a deterministic vault,
// and scripted remote sessions.
package testutil

import (
	"context"
	"testing"

	"github.com/amrelngm6/crm-flutter-sub000/internal/model"
	"github.com/amrelngm6/crm-flutter-sub000/internal/store"
	"github.com/amrelngm6/crm-flutter-sub000/internal/vault"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewTestVault creates a Vault with a fixed all-zero key.
func NewTestVault(t *testing.T) *vault.Vault {
	t.Helper()

	v, err := vault.New(make([]byte, vault.KeySize))
	if err != nil {
		t.Fatalf("creating test vault: %v", err)
	}
	return v
}

// SeedAccount creates an account with both credentials protected by the
// given vault.
func SeedAccount(t *testing.T, s store.Store, v *vault.Vault, businessID string) *model.Account {
	t.Helper()

	recvPassword, err := v.Protect("receive-secret")
	if err != nil {
		t.Fatalf("protecting receive credential: %v", err)
	}
	sendPassword, err := v.Protect("send-secret")
	if err != nil {
		t.Fatalf("protecting send credential: %v", err)
	}

	account := &model.Account{
		BusinessID: businessID,
		UserID:     "user-1",
		Name:       "Test User",
		Email:      "test@example.com",
		Receive: model.Endpoint{
			Host:     "imap.example.com",
			Port:     993,
			Security: model.SecurityTLS,
			Username: "test@example.com",
			Password: recvPassword,
		},
		Send: model.Endpoint{
			Host:     "smtp.example.com",
			Port:     465,
			Security: model.SecurityTLS,
			Username: "test@example.com",
			Password: sendPassword,
		},
	}
	if err := s.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("seeding account: %v", err)
	}
	return account
}

// SeedFolder creates a folder for the account.
func SeedFolder(t *testing.T, s store.Store, accountID, name string, userCreated bool) *model.Folder {
	t.Helper()

	folder := &model.Folder{
		AccountID:   accountID,
		Name:        name,
		UserCreated: userCreated,
	}
	if err := s.CreateFolder(context.Background(), folder); err != nil {
		t.Fatalf("seeding folder %s: %v", name, err)
	}
	return folder
}

// SeedMessage creates a message row in the given folder.
func SeedMessage(t *testing.T, s store.Store, accountID, folderName, messageID string) *model.Message {
	t.Helper()

	msg := &model.Message{
		AccountID:  accountID,
		FolderName: folderName,
		MessageID:  messageID,
		FromName:   "Sender",
		FromAddr:   "sender@example.com",
		Subject:    "Subject of " + messageID,
		Body:       "body",
	}
	if err := s.InsertMessage(context.Background(), msg); err != nil {
		t.Fatalf("seeding message %s: %v", messageID, err)
	}
	return msg
}
