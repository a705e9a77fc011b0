// Package sync coordinates full account synchronization runs: per-account
// locking, session lifecycle, folder reconciliation, and per-folder
// message fetching, plus an optional periodic polling loop.
package sync

import (
	"context"
	"fmt"
	"log"
	gosync "sync"
	"time"

	"github.com/amrelngm6/crm-flutter-sub000/internal/mailconn"
	"github.com/amrelngm6/crm-flutter-sub000/internal/mailsync"
	"github.com/amrelngm6/crm-flutter-sub000/internal/model"
	"github.com/amrelngm6/crm-flutter-sub000/internal/store"
	"github.com/amrelngm6/crm-flutter-sub000/internal/vault"
)

// State represents the current state of one account's sync.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateError
)

// Status holds the sync state for a single account.
type Status struct {
	AccountID string
	State     State
	LastSync  time.Time
	Error     error
}

// FolderReport is the outcome of syncing one folder.
type FolderReport struct {
	FolderName string
	Result     mailsync.SyncResult
	Err        error
}

// AccountSyncReport is the outcome of one full account sync run.
type AccountSyncReport struct {
	AccountID string

	// AlreadySyncing is set when another run holds the account's lock;
	// nothing was done.
	AlreadySyncing bool

	// Cancelled is set when the context ended mid-run. Progress made
	// before cancellation is already persisted.
	Cancelled bool

	// ConnectionError is set when the receive session could not be
	// opened; no folder work was attempted.
	ConnectionError error

	// CredentialError is set when the stored credential could not be
	// decrypted. It is distinct from a server-side authentication
	// rejection and requires re-entry of the credentials.
	CredentialError error

	Diff    mailsync.FolderDiff
	Folders []FolderReport
}

// Total sums the per-folder results.
func (r *AccountSyncReport) Total() mailsync.SyncResult {
	var total mailsync.SyncResult
	for _, f := range r.Folders {
		total.Add(f.Result)
	}
	return total
}

// ReceiveOpener opens authenticated receive sessions for an account.
type ReceiveOpener interface {
	OpenReceive(ctx context.Context, account *model.Account) (mailconn.ReceiveSession, error)
}

// Orchestrator runs account syncs. At most one run per account is
// active at a time; concurrent requests for the same account return
// immediately with AlreadySyncing instead of queueing.
type Orchestrator struct {
	store    store.Store
	conns    ReceiveOpener
	folders  *mailsync.FolderSyncer
	messages *mailsync.MessageSyncer

	mu       gosync.Mutex
	active   map[string]bool
	statuses map[string]*Status
}

// NewOrchestrator creates an Orchestrator over the given store, session
// opener, and syncers.
func NewOrchestrator(s store.Store, conns ReceiveOpener, folders *mailsync.FolderSyncer, messages *mailsync.MessageSyncer) *Orchestrator {
	return &Orchestrator{
		store:    s,
		conns:    conns,
		folders:  folders,
		messages: messages,
		active:   make(map[string]bool),
		statuses: make(map[string]*Status),
	}
}

// tryLock acquires the account's sync slot without blocking.
func (o *Orchestrator) tryLock(accountID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active[accountID] {
		return false
	}
	o.active[accountID] = true
	return true
}

func (o *Orchestrator) unlock(accountID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, accountID)
}

// setStatus updates the recorded status for an account.
func (o *Orchestrator) setStatus(accountID string, state State, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	status, ok := o.statuses[accountID]
	if !ok {
		status = &Status{AccountID: accountID}
		o.statuses[accountID] = status
	}

	status.State = state
	status.Error = err
	if state == StateIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// Statuses returns a snapshot of the sync status of every account seen
// so far.
func (o *Orchestrator) Statuses() []Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	statuses := make([]Status, 0, len(o.statuses))
	for _, s := range o.statuses {
		statuses = append(statuses, *s)
	}
	return statuses
}

// SyncAccount runs one full synchronization of the account: folder
// reconciliation first, then per-folder message fetch. A failing folder
// is reported and the run continues with the next one. The report is
// always returned, also alongside a non-nil error.
func (o *Orchestrator) SyncAccount(ctx context.Context, account *model.Account) (*AccountSyncReport, error) {
	report := &AccountSyncReport{AccountID: account.ID}

	if !o.tryLock(account.ID) {
		report.AlreadySyncing = true
		return report, nil
	}
	defer o.unlock(account.ID)

	o.setStatus(account.ID, StateRunning, nil)

	sess, err := o.conns.OpenReceive(ctx, account)
	if err != nil {
		o.setStatus(account.ID, StateError, err)
		if vault.IsCorruptCredential(err) {
			report.CredentialError = err
			log.Printf("[sync] account %s: stored credential is corrupt, reconfiguration required", account.ID)
		} else {
			report.ConnectionError = err
		}
		return report, err
	}
	defer sess.Close()

	diff, err := o.folders.Reconcile(ctx, account, sess)
	if err != nil {
		o.setStatus(account.ID, StateError, err)
		return report, fmt.Errorf("reconciling folders: %w", err)
	}
	report.Diff = diff

	folders, err := o.store.GetFolders(ctx, account.ID)
	if err != nil {
		o.setStatus(account.ID, StateError, err)
		return report, fmt.Errorf("loading folders: %w", err)
	}

	for _, folder := range folders {
		// Local-only folders have no remote counterpart to fetch from.
		if folder.UserCreated || folder.RemoteMissing {
			continue
		}

		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			o.setStatus(account.ID, StateIdle, nil)
			return report, err
		}

		result, err := o.messages.SyncFolder(ctx, account, folder.Name, sess)
		report.Folders = append(report.Folders, FolderReport{
			FolderName: folder.Name,
			Result:     result,
			Err:        err,
		})
		if err != nil {
			if ctx.Err() != nil {
				report.Cancelled = true
				o.setStatus(account.ID, StateIdle, nil)
				return report, err
			}
			// One broken folder must not abort the rest of the account.
			log.Printf("[sync] account %s folder %s: %v", account.ID, folder.Name, err)
		}
	}

	o.setStatus(account.ID, StateIdle, nil)
	return report, nil
}

// SyncAccountByID loads the account and runs SyncAccount.
func (o *Orchestrator) SyncAccountByID(ctx context.Context, accountID string) (*AccountSyncReport, error) {
	account, err := o.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("loading account: %w", err)
	}
	return o.SyncAccount(ctx, account)
}

// SyncAll runs a sync for every stored account sequentially. Per-account
// failures are reported, not propagated; only a store failure or context
// cancellation ends the run early.
func (o *Orchestrator) SyncAll(ctx context.Context) ([]*AccountSyncReport, error) {
	accounts, err := o.store.ListAllAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	reports := make([]*AccountSyncReport, 0, len(accounts))
	for i := range accounts {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		report, err := o.SyncAccount(ctx, &accounts[i])
		if err != nil && ctx.Err() != nil {
			reports = append(reports, report)
			return reports, err
		}
		if err != nil {
			log.Printf("[sync] account %s: %v", accounts[i].ID, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// RunPeriodic polls all accounts on the given interval until the context
// ends. An initial run happens immediately.
func (o *Orchestrator) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := o.SyncAll(ctx); err != nil && ctx.Err() == nil {
		log.Printf("[sync] poll: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := o.SyncAll(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[sync] poll: %v", err)
			}
		}
	}
}
