package mailbox_test

import (
	"context"
	"errors"
	"testing"

	"github.com/amrelngm6/crm-flutter-sub000/internal/mailbox"
	"github.com/amrelngm6/crm-flutter-sub000/internal/mailconn"
	"github.com/amrelngm6/crm-flutter-sub000/internal/mailout"
	"github.com/amrelngm6/crm-flutter-sub000/internal/mailsync"
	"github.com/amrelngm6/crm-flutter-sub000/internal/model"
	"github.com/amrelngm6/crm-flutter-sub000/internal/store"
	"github.com/amrelngm6/crm-flutter-sub000/internal/sync"
	"github.com/amrelngm6/crm-flutter-sub000/internal/vault"
	"github.com/amrelngm6/crm-flutter-sub000/tests/testutil"
)

type serviceEnv struct {
	service *mailbox.Service
	store   *store.SQLiteStore
	vault   *vault.Vault
	blobs   *testutil.MemBlobStore
	opener  *testutil.FakeOpener
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()

	s := testutil.NewTestStore(t)
	v := testutil.NewTestVault(t)
	blobs := testutil.NewMemBlobStore()
	opener := &testutil.FakeOpener{
		Receive: &testutil.FakeReceiveSession{Folders: []string{"INBOX"}},
		Send:    &testutil.FakeSendSession{},
	}

	orchestrator := sync.NewOrchestrator(
		s,
		opener,
		mailsync.NewFolderSyncer(s),
		mailsync.NewMessageSyncer(s, blobs, model.SyncConfig{}),
	)
	sender := mailout.NewSender(blobs, opener)
	conns := mailconn.NewManager(v, model.SyncConfig{ConnectTimeoutSec: 1, OperationTimeoutSec: 1})

	return &serviceEnv{
		service: mailbox.NewService(s, blobs, v, conns, sender, orchestrator),
		store:   s,
		vault:   v,
		blobs:   blobs,
		opener:  opener,
	}
}

func accountInput() mailbox.AccountInput {
	return mailbox.AccountInput{
		Name:  "Test User",
		Email: "test@example.com",
		Receive: mailbox.EndpointInput{
			Host: "imap.example.com", Port: 993,
			Security: model.SecurityTLS,
			Username: "test@example.com", Password: "imap-secret",
		},
		Send: mailbox.EndpointInput{
			Host: "smtp.example.com", Port: 587,
			Security: model.SecurityStartTLS,
			Username: "test@example.com", Password: "smtp-secret",
		},
	}
}

func TestCreateAccountEncryptsCredentials(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	account, err := env.service.CreateAccount(ctx, "biz-1", "user-1", accountInput())
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	stored, err := env.store.GetAccount(ctx, "biz-1", account.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if stored.Receive.Password == "imap-secret" || stored.Send.Password == "smtp-secret" {
		t.Fatalf("credentials stored in plaintext")
	}

	plain, err := env.vault.Reveal(stored.Receive.Password)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if plain != "imap-secret" {
		t.Errorf("revealed credential = %q", plain)
	}

	// The initial sync mirrored the remote folder list.
	folders, err := env.store.GetFolders(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetFolders: %v", err)
	}
	if len(folders) != 1 || folders[0].Name != "INBOX" {
		t.Errorf("initial sync folders = %+v", folders)
	}
}

func TestCreateAccountSurvivesFailedInitialSync(t *testing.T) {
	env := newServiceEnv(t)
	env.opener.ReceiveErr = &mailconn.ConnectError{
		Category: mailconn.NetworkUnreachable, Op: "dial",
	}

	account, err := env.service.CreateAccount(context.Background(), "biz-1", "user-1", accountInput())
	if err != nil {
		t.Fatalf("CreateAccount with unreachable server = %v, want account created anyway", err)
	}

	if _, err := env.store.GetAccount(context.Background(), "biz-1", account.ID); err != nil {
		t.Errorf("account not persisted: %v", err)
	}
}

func TestUpdateAccountPasswordRotation(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	account, err := env.service.CreateAccount(ctx, "biz-1", "user-1", accountInput())
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	stored, err := env.store.GetAccount(ctx, "biz-1", account.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	oldCiphertext := stored.Receive.Password

	// A blank password keeps the stored credential.
	input := accountInput()
	input.Name = "Renamed"
	input.Receive.Password = ""
	input.Send.Password = ""

	updated, err := env.service.UpdateAccount(ctx, "biz-1", account.ID, input)
	if err != nil {
		t.Fatalf("UpdateAccount: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Errorf("name not updated")
	}

	stored, err = env.store.GetAccount(ctx, "biz-1", account.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if stored.Receive.Password != oldCiphertext {
		t.Errorf("blank password replaced the stored credential")
	}

	// A new password is re-encrypted.
	input.Receive.Password = "rotated-secret"
	if _, err := env.service.UpdateAccount(ctx, "biz-1", account.ID, input); err != nil {
		t.Fatalf("UpdateAccount: %v", err)
	}

	stored, err = env.store.GetAccount(ctx, "biz-1", account.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if stored.Receive.Password == oldCiphertext {
		t.Errorf("rotated password kept the old ciphertext")
	}
	plain, err := env.vault.Reveal(stored.Receive.Password)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if plain != "rotated-secret" {
		t.Errorf("revealed rotated credential = %q", plain)
	}
}

func TestAccountReadsRedactCredentials(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	created, err := env.service.CreateAccount(ctx, "biz-1", "user-1", accountInput())
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if created.Receive.Password != "" || created.Send.Password != "" {
		t.Errorf("CreateAccount returned credential material")
	}

	got, err := env.service.GetAccount(ctx, "biz-1", created.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.Receive.Password != "" || got.Send.Password != "" {
		t.Errorf("GetAccount returned credential material")
	}

	accounts, err := env.service.ListAccounts(ctx, "biz-1")
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	for _, account := range accounts {
		if account.Receive.Password != "" || account.Send.Password != "" {
			t.Errorf("ListAccounts returned credential material")
		}
	}
}

func TestDeleteAccountUnlinksPayloads(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	account, err := env.service.CreateAccount(ctx, "biz-1", "user-1", accountInput())
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	msg := testutil.SeedMessage(t, env.store, account.ID, "INBOX", "<m@example.com>")
	path, err := env.blobs.Put(ctx, []byte("payload"), "file.bin")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	att := &model.Attachment{MessageID: msg.ID, Filename: "file.bin", StoragePath: path}
	if err := env.store.InsertAttachment(ctx, att); err != nil {
		t.Fatalf("InsertAttachment: %v", err)
	}

	if err := env.service.DeleteAccount(ctx, "biz-1", account.ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	if env.blobs.Len() != 0 {
		t.Errorf("%d payloads left after account delete", env.blobs.Len())
	}
	if _, err := env.store.GetAccountByID(ctx, account.ID); !store.IsNotFound(err) {
		t.Errorf("account still present: %v", err)
	}
	if _, err := env.store.GetMessage(ctx, msg.ID); !store.IsNotFound(err) {
		t.Errorf("message survived cascade: %v", err)
	}
}

func TestTenantIsolation(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	account, err := env.service.CreateAccount(ctx, "biz-1", "user-1", accountInput())
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	msg := testutil.SeedMessage(t, env.store, account.ID, "INBOX", "<m@example.com>")

	if _, err := env.service.GetAccount(ctx, "biz-2", account.ID); !store.IsNotFound(err) {
		t.Errorf("GetAccount across tenants = %v, want not found", err)
	}
	if err := env.service.DeleteAccount(ctx, "biz-2", account.ID); !store.IsNotFound(err) {
		t.Errorf("DeleteAccount across tenants = %v, want not found", err)
	}

	_, _, err = env.service.GetMessage(ctx, "biz-2", msg.ID)
	if !errors.Is(err, mailbox.ErrNotOwned) {
		t.Errorf("GetMessage across tenants = %v, want not owned", err)
	}

	read := true
	err = env.service.UpdateMessageFlags(ctx, "biz-2", msg.ID, model.FlagUpdate{Read: &read})
	if !errors.Is(err, mailbox.ErrNotOwned) {
		t.Errorf("UpdateMessageFlags across tenants = %v, want not owned", err)
	}
}

func TestFolderDeletionRules(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	account, err := env.service.CreateAccount(ctx, "biz-1", "user-1", accountInput())
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	// INBOX came from the remote and must not be deletable.
	err = env.service.DeleteFolder(ctx, "biz-1", account.ID, "INBOX")
	if !errors.Is(err, mailbox.ErrFolderNotDeletable) {
		t.Errorf("DeleteFolder(INBOX) = %v, want not deletable", err)
	}

	folder, err := env.service.CreateFolder(ctx, "biz-1", account.ID, "My Leads")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if !folder.UserCreated {
		t.Errorf("service-created folder not flagged user_created")
	}

	// Messages filed in a deleted user folder go with it.
	msg := testutil.SeedMessage(t, env.store, account.ID, "My Leads", "<lead@example.com>")
	path, err := env.blobs.Put(ctx, []byte("x"), "lead.bin")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	att := &model.Attachment{MessageID: msg.ID, StoragePath: path}
	if err := env.store.InsertAttachment(ctx, att); err != nil {
		t.Fatalf("InsertAttachment: %v", err)
	}

	if err := env.service.DeleteFolder(ctx, "biz-1", account.ID, "My Leads"); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}
	if _, err := env.store.GetMessage(ctx, msg.ID); !store.IsNotFound(err) {
		t.Errorf("message survived folder delete: %v", err)
	}
	if env.blobs.Len() != 0 {
		t.Errorf("payload left after folder delete")
	}
}

func TestDeleteMessageUnlinksPayload(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	account, err := env.service.CreateAccount(ctx, "biz-1", "user-1", accountInput())
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	msg := testutil.SeedMessage(t, env.store, account.ID, "INBOX", "<m@example.com>")
	path, err := env.blobs.Put(ctx, []byte("x"), "a.bin")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	att := &model.Attachment{MessageID: msg.ID, StoragePath: path}
	if err := env.store.InsertAttachment(ctx, att); err != nil {
		t.Fatalf("InsertAttachment: %v", err)
	}

	if err := env.service.DeleteMessage(ctx, "biz-1", msg.ID); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if env.blobs.Len() != 0 {
		t.Errorf("payload left after message delete")
	}
}

func TestUploadAndFetchAttachment(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	ref, err := env.service.UploadAttachment(ctx, []byte("upload payload"), "doc.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("UploadAttachment: %v", err)
	}
	if ref.Path == "" || ref.Filename != "doc.pdf" {
		t.Errorf("upload reference = %+v", ref)
	}

	data, err := env.blobs.Get(ctx, ref.Path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "upload payload" {
		t.Errorf("stored payload = %q", data)
	}
}

func TestSendThroughService(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	account, err := env.service.CreateAccount(ctx, "biz-1", "user-1", accountInput())
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	result, err := env.service.Send(ctx, "biz-1", model.ComposeRequest{
		AccountID: account.ID,
		To:        []string{"alice@example.com"},
		Subject:   "hi",
		Body:      "hello",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.RemoteMessageID == "" {
		t.Errorf("no remote message id")
	}

	// Sending under the wrong tenant never reaches the account.
	_, err = env.service.Send(ctx, "biz-2", model.ComposeRequest{
		AccountID: account.ID,
		To:        []string{"alice@example.com"},
	})
	if !store.IsNotFound(err) {
		t.Errorf("Send across tenants = %v, want not found", err)
	}
}
