// Package mailbox is the application-facing surface of the mail
// subsystem: tenant-scoped account, folder, message, and attachment
// operations, connection testing, sending, and sync triggering. Every
// operation resolves ownership through the business tenant before
// touching data.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/amrelngm6/crm-flutter-sub000/internal/blob"
	"github.com/amrelngm6/crm-flutter-sub000/internal/mailconn"
	"github.com/amrelngm6/crm-flutter-sub000/internal/mailout"
	"github.com/amrelngm6/crm-flutter-sub000/internal/model"
	"github.com/amrelngm6/crm-flutter-sub000/internal/store"
	"github.com/amrelngm6/crm-flutter-sub000/internal/sync"
	"github.com/amrelngm6/crm-flutter-sub000/internal/vault"
)

// ErrNotOwned is returned when a resource exists but does not belong to
// the caller's business.
var ErrNotOwned = errors.New("resource not owned by business")

// EndpointInput carries the plaintext connection settings for one side
// of an account. The password is encrypted before it is stored and the
// plaintext is never retained.
type EndpointInput struct {
	Host     string
	Port     int
	Security model.SecurityMode
	Username string
	Password string
}

// AccountInput is the payload for creating or updating an account.
type AccountInput struct {
	Name    string
	Email   string
	Receive EndpointInput
	Send    EndpointInput
}

// TestResult reports the outcome of probing both endpoints of an
// account configuration.
type TestResult struct {
	ReceiveOK    bool
	SendOK       bool
	ReceiveError string
	SendError    string
}

// Service wires the mail subsystem together behind tenant-scoped
// operations.
type Service struct {
	store        store.Store
	blobs        blob.Store
	vault        *vault.Vault
	conns        *mailconn.Manager
	sender       *mailout.Sender
	orchestrator *sync.Orchestrator
}

// NewService assembles the mailbox service from its parts.
func NewService(s store.Store, b blob.Store, v *vault.Vault, conns *mailconn.Manager, sender *mailout.Sender, orchestrator *sync.Orchestrator) *Service {
	return &Service{
		store:        s,
		blobs:        b,
		vault:        v,
		conns:        conns,
		sender:       sender,
		orchestrator: orchestrator,
	}
}

// CreateAccount encrypts the credentials, persists the account, and
// kicks off an initial sync. A failing initial sync is logged, not
// returned: the account is created either way and syncs later.
func (s *Service) CreateAccount(ctx context.Context, businessID, userID string, input AccountInput) (*model.Account, error) {
	account := &model.Account{
		BusinessID: businessID,
		UserID:     userID,
		Name:       input.Name,
		Email:      input.Email,
	}

	var err error
	account.Receive, err = s.protectEndpoint(input.Receive)
	if err != nil {
		return nil, err
	}
	account.Send, err = s.protectEndpoint(input.Send)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	if report, err := s.orchestrator.SyncAccount(ctx, account); err != nil {
		log.Printf("[mailbox] initial sync of account %s: %v", account.ID, err)
	} else if !report.AlreadySyncing {
		total := report.Total()
		log.Printf("[mailbox] initial sync of account %s: %d fetched, %d failed", account.ID, total.Fetched, total.Failed)
	}

	return redacted(account), nil
}

// UpdateAccount applies new settings to an owned account. An empty
// password input keeps the stored credential; a non-empty one replaces
// it with freshly encrypted ciphertext.
func (s *Service) UpdateAccount(ctx context.Context, businessID, id string, input AccountInput) (*model.Account, error) {
	account, err := s.store.GetAccount(ctx, businessID, id)
	if err != nil {
		return nil, err
	}

	account.Name = input.Name
	account.Email = input.Email

	account.Receive, err = s.updateEndpoint(account.Receive, input.Receive)
	if err != nil {
		return nil, err
	}
	account.Send, err = s.updateEndpoint(account.Send, input.Send)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, err
	}
	return redacted(account), nil
}

// DeleteAccount removes an owned account and everything under it:
// attachment payloads are unlinked first, then the rows cascade.
func (s *Service) DeleteAccount(ctx context.Context, businessID, id string) error {
	account, err := s.store.GetAccount(ctx, businessID, id)
	if err != nil {
		return err
	}

	attachments, err := s.store.ListAccountAttachments(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("listing attachments of account %s: %w", id, err)
	}
	for _, att := range attachments {
		if err := s.blobs.Delete(ctx, att.StoragePath); err != nil && !blob.IsNotFound(err) {
			log.Printf("[mailbox] unlinking blob %s: %v", att.StoragePath, err)
		}
	}

	return s.store.DeleteAccount(ctx, account.ID)
}

// GetAccount returns an owned account. Credential ciphertext never
// leaves the service on reads.
func (s *Service) GetAccount(ctx context.Context, businessID, id string) (*model.Account, error) {
	account, err := s.store.GetAccount(ctx, businessID, id)
	if err != nil {
		return nil, err
	}
	return redacted(account), nil
}

// ListAccounts returns all accounts of a business with credentials
// redacted.
func (s *Service) ListAccounts(ctx context.Context, businessID string) ([]model.Account, error) {
	accounts, err := s.store.ListAccounts(ctx, businessID)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		accounts[i].Receive.Password = ""
		accounts[i].Send.Password = ""
	}
	return accounts, nil
}

// redacted returns a copy of the account with credential ciphertext
// stripped.
func redacted(account *model.Account) *model.Account {
	out := *account
	out.Receive.Password = ""
	out.Send.Password = ""
	return &out
}

// TestConnection probes both endpoints of a configuration with the
// given plaintext credentials, without persisting anything. Failures
// are reported per side, never returned as errors.
func (s *Service) TestConnection(ctx context.Context, input AccountInput) TestResult {
	probe := &model.Account{Name: input.Name, Email: input.Email}
	var err error
	probe.Receive, err = s.protectEndpoint(input.Receive)
	if err == nil {
		probe.Send, err = s.protectEndpoint(input.Send)
	}
	if err != nil {
		return TestResult{ReceiveError: err.Error(), SendError: err.Error()}
	}

	return s.probe(ctx, probe)
}

// TestAccountConnection probes both endpoints of a stored account using
// its protected credentials.
func (s *Service) TestAccountConnection(ctx context.Context, businessID, id string) (TestResult, error) {
	account, err := s.store.GetAccount(ctx, businessID, id)
	if err != nil {
		return TestResult{}, err
	}
	return s.probe(ctx, account), nil
}

func (s *Service) probe(ctx context.Context, account *model.Account) TestResult {
	var result TestResult

	if sess, err := s.conns.OpenReceive(ctx, account); err != nil {
		result.ReceiveError = connErrText(err)
	} else {
		result.ReceiveOK = true
		sess.Close()
	}

	if sess, err := s.conns.OpenSend(ctx, account); err != nil {
		result.SendError = connErrText(err)
	} else {
		result.SendOK = true
		sess.Close()
	}

	return result
}

// SyncAccount triggers a sync run for an owned account.
func (s *Service) SyncAccount(ctx context.Context, businessID, id string) (*sync.AccountSyncReport, error) {
	account, err := s.store.GetAccount(ctx, businessID, id)
	if err != nil {
		return nil, err
	}
	return s.orchestrator.SyncAccount(ctx, account)
}

// Send validates ownership and submits an outgoing message through the
// account's send endpoint.
func (s *Service) Send(ctx context.Context, businessID string, req model.ComposeRequest) (model.SendResult, error) {
	account, err := s.store.GetAccount(ctx, businessID, req.AccountID)
	if err != nil {
		return model.SendResult{}, err
	}
	return s.sender.Send(ctx, account, req)
}

func (s *Service) protectEndpoint(input EndpointInput) (model.Endpoint, error) {
	ciphertext, err := s.vault.Protect(input.Password)
	if err != nil {
		return model.Endpoint{}, fmt.Errorf("protecting credential: %w", err)
	}
	return model.Endpoint{
		Host:     input.Host,
		Port:     input.Port,
		Security: input.Security,
		Username: input.Username,
		Password: ciphertext,
	}, nil
}

func (s *Service) updateEndpoint(current model.Endpoint, input EndpointInput) (model.Endpoint, error) {
	if input.Password == "" {
		// Keep the stored ciphertext when the password is not rotated.
		updated := current
		updated.Host = input.Host
		updated.Port = input.Port
		updated.Security = input.Security
		updated.Username = input.Username
		return updated, nil
	}
	return s.protectEndpoint(input)
}

// connErrText renders a connection failure for the caller without ever
// leaking credentials. Categorized errors surface their category.
func connErrText(err error) string {
	if ce, ok := mailconn.AsConnectError(err); ok {
		return string(ce.Category)
	}
	if vault.IsCorruptCredential(err) {
		return "corrupt stored credential"
	}
	return err.Error()
}
