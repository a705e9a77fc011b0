package mailsync

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amrelngm6/crm-flutter-sub000/internal/blob"
	"github.com/amrelngm6/crm-flutter-sub000/internal/mailconn"
	"github.com/amrelngm6/crm-flutter-sub000/internal/model"
	"github.com/amrelngm6/crm-flutter-sub000/internal/store"
)

// SyncResult counts the outcome of one folder sync.
type SyncResult struct {
	Fetched int
	Skipped int
	Failed  int
}

// Add accumulates another result into r.
func (r *SyncResult) Add(other SyncResult) {
	r.Fetched += other.Fetched
	r.Skipped += other.Skipped
	r.Failed += other.Failed
}

// MessageSyncer fetches new messages per folder, deduplicates, parses,
// and persists metadata, bodies, and attachments.
type MessageSyncer struct {
	store     store.Store
	blobs     blob.Store
	pageSize  int
	bodyLimit int
}

// NewMessageSyncer creates a MessageSyncer with the configured page size
// and body cap.
func NewMessageSyncer(s store.Store, b blob.Store, cfg model.SyncConfig) *MessageSyncer {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}
	bodyLimit := cfg.BodyLimitBytes
	if bodyLimit <= 0 {
		bodyLimit = 5 * 1024 * 1024
	}
	return &MessageSyncer{store: s, blobs: b, pageSize: pageSize, bodyLimit: bodyLimit}
}

// SyncFolder fetches messages above the folder's watermark in pages,
// oldest-first. Already-known messages are skipped without touching
// their user-set flags. The watermark advances only across durably
// persisted messages, so a failed message is retried on the next run.
// Cancellation is honored between pages.
func (m *MessageSyncer) SyncFolder(ctx context.Context, account *model.Account, folderName string, sess mailconn.ReceiveSession) (SyncResult, error) {
	var result SyncResult

	state, err := m.store.GetSyncState(ctx, account.ID, folderName)
	if err != nil {
		return result, fmt.Errorf("loading watermark: %w", err)
	}

	// cursor tracks paging progress within this run; watermark tracks
	// the durable resume point and stops advancing at the first failure.
	cursor := state.LastUID
	watermark := state.LastUID
	advance := true

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := sess.FetchNewer(folderName, cursor, m.pageSize)
		if err != nil {
			return result, fmt.Errorf("fetching page after uid %d: %w", cursor, err)
		}
		if len(page) == 0 {
			break
		}

		for _, remote := range page {
			if remote.UID > cursor {
				cursor = remote.UID
			}

			ok := m.syncMessage(ctx, account, folderName, remote, &result)
			if !ok {
				advance = false
			}
			if ok && advance && remote.UID > watermark {
				watermark = remote.UID
			}
		}

		// Persist per page so an interrupted run resumes where it left off.
		if watermark > state.LastUID {
			err := m.store.SetSyncState(ctx, &model.SyncState{
				AccountID:  account.ID,
				FolderName: folderName,
				LastUID:    watermark,
			})
			if err != nil {
				return result, fmt.Errorf("saving watermark: %w", err)
			}
			state.LastUID = watermark
		}

		if len(page) < m.pageSize {
			break
		}
	}

	return result, nil
}

// syncMessage persists one remote message, counting it as fetched,
// skipped, or failed. It reports whether the message is durably
// persisted (fetched or already present).
func (m *MessageSyncer) syncMessage(ctx context.Context, account *model.Account, folderName string, remote mailconn.RemoteMessage, result *SyncResult) bool {
	id := remote.MessageID
	if id == "" {
		id = fmt.Sprintf("uid-%s-%d", folderName, remote.UID)
	}

	exists, err := m.store.MessageExists(ctx, account.ID, id)
	if err != nil {
		log.Printf("[sync] checking message %s: %v", id, err)
		result.Failed++
		return false
	}
	if exists {
		result.Skipped++
		return true
	}

	parsed := parseMIMEBody(remote.Raw)
	plain, html := renderBody(parsed, m.bodyLimit)

	date := remote.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	// Storage-write-then-row-insert: every attachment payload must be
	// durable before any row references it. One failed write fails the
	// whole message so it is retried, never stored with a missing part.
	stored := make([]model.Attachment, 0, len(parsed.Attachments))
	for _, att := range parsed.Attachments {
		path, err := m.blobs.Put(ctx, att.Data, att.Filename)
		if err != nil {
			log.Printf("[sync] storing attachment %q of message %s: %v", att.Filename, id, err)
			m.unlinkBlobs(ctx, stored)
			result.Failed++
			return false
		}
		stored = append(stored, model.Attachment{
			Filename:    att.Filename,
			MIMEType:    att.MIMEType,
			Size:        int64(len(att.Data)),
			StoragePath: path,
		})
	}

	msg := &model.Message{
		AccountID:  account.ID,
		FolderName: folderName,
		MessageID:  id,
		FromName:   remote.FromName,
		FromAddr:   remote.FromAddr,
		Subject:    remote.Subject,
		Body:       plain,
		BodyHTML:   html,
		Date:       date,
	}
	if err := m.store.InsertMessage(ctx, msg); err != nil {
		log.Printf("[sync] inserting message %s: %v", id, err)
		m.unlinkBlobs(ctx, stored)
		result.Failed++
		return false
	}

	for i := range stored {
		stored[i].MessageID = msg.ID
		if err := m.store.InsertAttachment(ctx, &stored[i]); err != nil {
			// The message text is already durable; losing one attachment
			// row must not abort it. Drop the orphaned payload instead.
			log.Printf("[sync] inserting attachment row %q of message %s: %v", stored[i].Filename, id, err)
			if delErr := m.blobs.Delete(ctx, stored[i].StoragePath); delErr != nil && !blob.IsNotFound(delErr) {
				log.Printf("[sync] unlinking orphaned blob %s: %v", stored[i].StoragePath, delErr)
			}
		}
	}

	result.Fetched++
	return true
}

// unlinkBlobs removes already-written payloads of an aborted message.
// Failures are logged and otherwise ignored.
func (m *MessageSyncer) unlinkBlobs(ctx context.Context, stored []model.Attachment) {
	for _, att := range stored {
		if err := m.blobs.Delete(ctx, att.StoragePath); err != nil && !blob.IsNotFound(err) {
			log.Printf("[sync] unlinking blob %s: %v", att.StoragePath, err)
		}
	}
}
