package mailconn_test

import (
	"context"
	"testing"
	"time"

	"github.com/amrelngm6/crm-flutter-sub000/internal/mailconn"
	"github.com/amrelngm6/crm-flutter-sub000/internal/model"
	"github.com/amrelngm6/crm-flutter-sub000/internal/vault"
)

func newTestManager(t *testing.T) (*mailconn.Manager, *vault.Vault) {
	t.Helper()

	v, err := vault.New(make([]byte, vault.KeySize))
	if err != nil {
		t.Fatalf("creating vault: %v", err)
	}
	return mailconn.NewManager(v, model.SyncConfig{
		ConnectTimeoutSec:   2,
		OperationTimeoutSec: 2,
	}), v
}

func unreachableAccount(t *testing.T, v *vault.Vault) *model.Account {
	t.Helper()

	password, err := v.Protect("secret")
	if err != nil {
		t.Fatalf("protecting credential: %v", err)
	}
	endpoint := model.Endpoint{
		// Port 1 on loopback: refused immediately, no external traffic.
		Host:     "127.0.0.1",
		Port:     1,
		Security: model.SecurityTLS,
		Username: "user",
		Password: password,
	}
	return &model.Account{
		ID:      "acc-1",
		Email:   "user@example.com",
		Receive: endpoint,
		Send:    endpoint,
	}
}

func TestOpenReceiveUnreachableHost(t *testing.T) {
	m, v := newTestManager(t)
	account := unreachableAccount(t, v)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := m.OpenReceive(ctx, account)
	if err == nil {
		t.Fatalf("OpenReceive to closed port succeeded")
	}

	ce, ok := mailconn.AsConnectError(err)
	if !ok {
		t.Fatalf("OpenReceive error = %v, want categorized connect error", err)
	}
	if ce.Category != mailconn.NetworkUnreachable && ce.Category != mailconn.Timeout {
		t.Errorf("category = %s, want network failure", ce.Category)
	}
	if !ce.Retryable() {
		t.Errorf("network failure not marked retryable")
	}
}

func TestOpenSendUnreachableHost(t *testing.T) {
	m, v := newTestManager(t)
	account := unreachableAccount(t, v)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := m.OpenSend(ctx, account)
	if err == nil {
		t.Fatalf("OpenSend to closed port succeeded")
	}
	if _, ok := mailconn.AsConnectError(err); !ok {
		t.Errorf("OpenSend error = %v, want categorized connect error", err)
	}
}

func TestOpenReceiveCorruptCredential(t *testing.T) {
	m, v := newTestManager(t)
	account := unreachableAccount(t, v)
	account.Receive.Password = "not a valid ciphertext"

	_, err := m.OpenReceive(context.Background(), account)
	if !vault.IsCorruptCredential(err) {
		t.Fatalf("OpenReceive with corrupt credential = %v, want corrupt credential", err)
	}

	// A broken stored credential is not a server-side rejection.
	if ce, ok := mailconn.AsConnectError(err); ok && ce.Category == mailconn.AuthenticationRejected {
		t.Errorf("corrupt credential misclassified as authentication rejection")
	}
}

func TestConnectErrorCategories(t *testing.T) {
	retryable := map[mailconn.ErrorCategory]bool{
		mailconn.NetworkUnreachable:     true,
		mailconn.Timeout:                true,
		mailconn.TLSFailure:             false,
		mailconn.AuthenticationRejected: false,
		mailconn.ProtocolError:          false,
	}

	for category, want := range retryable {
		ce := &mailconn.ConnectError{Category: category, Op: "test"}
		if ce.Retryable() != want {
			t.Errorf("Retryable(%s) = %v, want %v", category, ce.Retryable(), want)
		}
	}
}
