// Package mailsync mirrors remote mailbox folders and messages into the
// local store: folder reconciliation, incremental message fetch with a
// per-folder watermark, deduplication, and attachment persistence.
package mailsync

import (
	"context"
	"fmt"

	"github.com/amrelngm6/crm-flutter-sub000/internal/mailconn"
	"github.com/amrelngm6/crm-flutter-sub000/internal/model"
	"github.com/amrelngm6/crm-flutter-sub000/internal/store"
)

// FolderDiff reports what a reconciliation run changed.
type FolderDiff struct {
	Created   int
	Updated   int
	Unchanged int
}

// FolderSyncer reconciles the remote folder list with local folder rows.
type FolderSyncer struct {
	store store.Store
}

// NewFolderSyncer creates a FolderSyncer over the given store.
func NewFolderSyncer(s store.Store) *FolderSyncer {
	return &FolderSyncer{store: s}
}

// Reconcile compares remote folder names case-sensitively against the
// account's local folders. Folders present remotely but absent locally
// are created; local remote-backed folders absent remotely are marked
// remote_missing, never hard-deleted. User-created folders are never
// touched. Running it twice with no remote change yields zero mutations.
func (f *FolderSyncer) Reconcile(ctx context.Context, account *model.Account, sess mailconn.ReceiveSession) (FolderDiff, error) {
	var diff FolderDiff

	remote, err := sess.ListFolders()
	if err != nil {
		return diff, fmt.Errorf("listing remote folders: %w", err)
	}

	local, err := f.store.GetFolders(ctx, account.ID)
	if err != nil {
		return diff, fmt.Errorf("loading local folders: %w", err)
	}

	localByName := make(map[string]model.Folder, len(local))
	for _, folder := range local {
		localByName[folder.Name] = folder
	}

	remoteSet := make(map[string]bool, len(remote))
	for _, name := range remote {
		remoteSet[name] = true

		folder, ok := localByName[name]
		if !ok {
			err := f.store.CreateFolder(ctx, &model.Folder{
				AccountID: account.ID,
				Name:      name,
			})
			if err != nil {
				return diff, fmt.Errorf("creating folder %s: %w", name, err)
			}
			diff.Created++
			continue
		}

		// A folder that went missing and reappeared is cleared.
		if folder.RemoteMissing && !folder.UserCreated {
			if err := f.store.SetFolderRemoteMissing(ctx, folder.ID, false); err != nil {
				return diff, fmt.Errorf("clearing folder %s: %w", name, err)
			}
			diff.Updated++
			continue
		}

		diff.Unchanged++
	}

	for _, folder := range local {
		if folder.UserCreated || remoteSet[folder.Name] {
			continue
		}

		if folder.RemoteMissing {
			diff.Unchanged++
			continue
		}

		if err := f.store.SetFolderRemoteMissing(ctx, folder.ID, true); err != nil {
			return diff, fmt.Errorf("marking folder %s: %w", folder.Name, err)
		}
		diff.Updated++
	}

	return diff, nil
}
