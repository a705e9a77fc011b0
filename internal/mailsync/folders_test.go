package mailsync_test

import (
	"context"
	"testing"

	"github.com/amrelngm6/crm-flutter-sub000/internal/mailsync"
	"github.com/amrelngm6/crm-flutter-sub000/tests/testutil"
)

func TestReconcileCreatesRemoteFolders(t *testing.T) {
	s := testutil.NewTestStore(t)
	v := testutil.NewTestVault(t)
	ctx := context.Background()

	account := testutil.SeedAccount(t, s, v, "biz-1")
	sess := &testutil.FakeReceiveSession{Folders: []string{"INBOX", "Sent", "Archive"}}

	diff, err := mailsync.NewFolderSyncer(s).Reconcile(ctx, account, sess)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if diff.Created != 3 || diff.Updated != 0 {
		t.Errorf("diff = %+v, want 3 created", diff)
	}

	folders, err := s.GetFolders(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetFolders: %v", err)
	}
	if len(folders) != 3 {
		t.Fatalf("GetFolders = %d folders, want 3", len(folders))
	}
	for _, folder := range folders {
		if folder.UserCreated || folder.RemoteMissing {
			t.Errorf("folder %s has unexpected flags: %+v", folder.Name, folder)
		}
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	s := testutil.NewTestStore(t)
	v := testutil.NewTestVault(t)
	ctx := context.Background()

	account := testutil.SeedAccount(t, s, v, "biz-1")
	sess := &testutil.FakeReceiveSession{Folders: []string{"INBOX"}}
	syncer := mailsync.NewFolderSyncer(s)

	if _, err := syncer.Reconcile(ctx, account, sess); err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}

	diff, err := syncer.Reconcile(ctx, account, sess)
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if diff.Created != 0 || diff.Updated != 0 || diff.Unchanged != 1 {
		t.Errorf("second run diff = %+v, want all unchanged", diff)
	}
}

func TestReconcileMarksMissingFolders(t *testing.T) {
	s := testutil.NewTestStore(t)
	v := testutil.NewTestVault(t)
	ctx := context.Background()

	account := testutil.SeedAccount(t, s, v, "biz-1")
	testutil.SeedFolder(t, s, account.ID, "INBOX", false)
	testutil.SeedFolder(t, s, account.ID, "Old", false)

	sess := &testutil.FakeReceiveSession{Folders: []string{"INBOX"}}
	syncer := mailsync.NewFolderSyncer(s)

	diff, err := syncer.Reconcile(ctx, account, sess)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if diff.Updated != 1 {
		t.Errorf("diff = %+v, want 1 updated", diff)
	}

	old, err := s.GetFolderByName(ctx, account.ID, "Old")
	if err != nil {
		t.Fatalf("GetFolderByName: %v", err)
	}
	if !old.RemoteMissing {
		t.Errorf("vanished folder not marked remote_missing")
	}

	// A second run leaves the already-marked folder alone.
	diff, err = syncer.Reconcile(ctx, account, sess)
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if diff.Updated != 0 {
		t.Errorf("second run diff = %+v, want no updates", diff)
	}
}

func TestReconcileClearsReappearedFolder(t *testing.T) {
	s := testutil.NewTestStore(t)
	v := testutil.NewTestVault(t)
	ctx := context.Background()

	account := testutil.SeedAccount(t, s, v, "biz-1")
	folder := testutil.SeedFolder(t, s, account.ID, "Projects", false)
	if err := s.SetFolderRemoteMissing(ctx, folder.ID, true); err != nil {
		t.Fatalf("SetFolderRemoteMissing: %v", err)
	}

	sess := &testutil.FakeReceiveSession{Folders: []string{"Projects"}}
	diff, err := mailsync.NewFolderSyncer(s).Reconcile(ctx, account, sess)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if diff.Updated != 1 {
		t.Errorf("diff = %+v, want 1 updated", diff)
	}

	got, err := s.GetFolderByName(ctx, account.ID, "Projects")
	if err != nil {
		t.Fatalf("GetFolderByName: %v", err)
	}
	if got.RemoteMissing {
		t.Errorf("reappeared folder still marked remote_missing")
	}
}

func TestReconcileLeavesUserFoldersAlone(t *testing.T) {
	s := testutil.NewTestStore(t)
	v := testutil.NewTestVault(t)
	ctx := context.Background()

	account := testutil.SeedAccount(t, s, v, "biz-1")
	testutil.SeedFolder(t, s, account.ID, "My Leads", true)

	sess := &testutil.FakeReceiveSession{Folders: []string{"INBOX"}}
	diff, err := mailsync.NewFolderSyncer(s).Reconcile(ctx, account, sess)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if diff.Created != 1 || diff.Updated != 0 {
		t.Errorf("diff = %+v, want only INBOX created", diff)
	}

	mine, err := s.GetFolderByName(ctx, account.ID, "My Leads")
	if err != nil {
		t.Fatalf("GetFolderByName: %v", err)
	}
	if mine.RemoteMissing || !mine.UserCreated {
		t.Errorf("user folder touched by reconciliation: %+v", mine)
	}
}
