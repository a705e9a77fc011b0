package mailbox

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/amrelngm6/crm-flutter-sub000/internal/blob"
	"github.com/amrelngm6/crm-flutter-sub000/internal/model"
	"github.com/amrelngm6/crm-flutter-sub000/internal/store"
)

// ErrFolderNotDeletable is returned when deletion is requested for a
// folder that mirrors a remote one.
var ErrFolderNotDeletable = errors.New("only user-created folders can be deleted")

// ListFolders returns the folders of an owned account.
func (s *Service) ListFolders(ctx context.Context, businessID, accountID string) ([]model.Folder, error) {
	account, err := s.store.GetAccount(ctx, businessID, accountID)
	if err != nil {
		return nil, err
	}
	return s.store.GetFolders(ctx, account.ID)
}

// CreateFolder adds a local-only folder to an owned account. It is
// never reconciled against the remote folder list.
func (s *Service) CreateFolder(ctx context.Context, businessID, accountID, name string) (*model.Folder, error) {
	account, err := s.store.GetAccount(ctx, businessID, accountID)
	if err != nil {
		return nil, err
	}

	folder := &model.Folder{
		AccountID:   account.ID,
		Name:        name,
		UserCreated: true,
	}
	if err := s.store.CreateFolder(ctx, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

// DeleteFolder removes a user-created folder together with the messages
// filed in it. Remote-backed folders are refused; the remote server
// owns their lifecycle.
func (s *Service) DeleteFolder(ctx context.Context, businessID, accountID, name string) error {
	account, err := s.store.GetAccount(ctx, businessID, accountID)
	if err != nil {
		return err
	}

	folder, err := s.store.GetFolderByName(ctx, account.ID, name)
	if err != nil {
		return err
	}
	if !folder.UserCreated {
		return ErrFolderNotDeletable
	}

	messages, err := s.store.ListMessages(ctx, store.MessageFilter{
		AccountID:  account.ID,
		FolderName: &folder.Name,
	})
	if err != nil {
		return fmt.Errorf("listing folder messages: %w", err)
	}
	for i := range messages {
		if err := s.deleteMessage(ctx, &messages[i]); err != nil {
			return err
		}
	}

	return s.store.DeleteFolder(ctx, folder.ID)
}

// ListMessages returns messages of an owned account, filtered and
// paginated.
func (s *Service) ListMessages(ctx context.Context, businessID string, filter store.MessageFilter) ([]model.Message, error) {
	account, err := s.store.GetAccount(ctx, businessID, filter.AccountID)
	if err != nil {
		return nil, err
	}
	filter.AccountID = account.ID
	return s.store.ListMessages(ctx, filter)
}

// GetMessage returns one owned message together with its attachment
// rows.
func (s *Service) GetMessage(ctx context.Context, businessID, id string) (*model.Message, []model.Attachment, error) {
	msg, err := s.ownedMessage(ctx, businessID, id)
	if err != nil {
		return nil, nil, err
	}

	attachments, err := s.store.ListAttachments(ctx, msg.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing attachments: %w", err)
	}
	return msg, attachments, nil
}

// UpdateMessageFlags applies a partial flag update to an owned message.
func (s *Service) UpdateMessageFlags(ctx context.Context, businessID, id string, upd model.FlagUpdate) error {
	msg, err := s.ownedMessage(ctx, businessID, id)
	if err != nil {
		return err
	}
	return s.store.UpdateMessageFlags(ctx, msg.ID, upd)
}

// DeleteMessage removes an owned message locally: attachment payloads
// are unlinked, then the rows go. The remote copy is untouched.
func (s *Service) DeleteMessage(ctx context.Context, businessID, id string) error {
	msg, err := s.ownedMessage(ctx, businessID, id)
	if err != nil {
		return err
	}
	return s.deleteMessage(ctx, msg)
}

func (s *Service) deleteMessage(ctx context.Context, msg *model.Message) error {
	attachments, err := s.store.ListAttachments(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("listing attachments: %w", err)
	}
	for _, att := range attachments {
		if err := s.blobs.Delete(ctx, att.StoragePath); err != nil && !blob.IsNotFound(err) {
			log.Printf("[mailbox] unlinking blob %s: %v", att.StoragePath, err)
		}
	}
	return s.store.DeleteMessage(ctx, msg.ID)
}

// ListAttachments returns the attachment rows of an owned message.
func (s *Service) ListAttachments(ctx context.Context, businessID, messageID string) ([]model.Attachment, error) {
	msg, err := s.ownedMessage(ctx, businessID, messageID)
	if err != nil {
		return nil, err
	}
	return s.store.ListAttachments(ctx, msg.ID)
}

// GetAttachmentContent resolves an owned attachment row and loads its
// payload.
func (s *Service) GetAttachmentContent(ctx context.Context, businessID, id string) (*model.Attachment, []byte, error) {
	att, err := s.store.GetAttachment(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.ownedMessage(ctx, businessID, att.MessageID); err != nil {
		return nil, nil, err
	}

	data, err := s.blobs.Get(ctx, att.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading attachment payload: %w", err)
	}
	return att, data, nil
}

// UploadAttachment stores an outgoing attachment payload and returns a
// reference usable in a compose request.
func (s *Service) UploadAttachment(ctx context.Context, data []byte, filename, mimeType string) (model.ComposeAttachment, error) {
	path, err := s.blobs.Put(ctx, data, filename)
	if err != nil {
		return model.ComposeAttachment{}, fmt.Errorf("storing attachment: %w", err)
	}
	return model.ComposeAttachment{
		Path:     path,
		Filename: filename,
		MIMEType: mimeType,
	}, nil
}

// ownedMessage loads a message and verifies that its account belongs to
// the business.
func (s *Service) ownedMessage(ctx context.Context, businessID, id string) (*model.Message, error) {
	msg, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetAccount(ctx, businessID, msg.AccountID); err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("message %s: %w", id, ErrNotOwned)
		}
		return nil, err
	}
	return msg, nil
}
