package mailconn

import (
	"fmt"
	"sort"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// imapSession wraps go-imap v2 as a ReceiveSession.
type imapSession struct {
	client *imapclient.Client
}

// ListFolders returns the names of all remote folders.
func (s *imapSession) ListFolders() ([]string, error) {
	boxes, err := s.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}

	names := make([]string, 0, len(boxes))
	for _, box := range boxes {
		names = append(names, box.Mailbox)
	}
	return names, nil
}

// FetchNewer selects the folder, searches for UIDs strictly above
// afterUID, and fetches up to limit messages oldest-first with their
// envelope and raw body.
func (s *imapSession) FetchNewer(folder string, afterUID uint32, limit int) ([]RemoteMessage, error) {
	if _, err := s.client.Select(folder, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", folder, err)
	}

	criteria := &imap.SearchCriteria{
		UID: []imap.UIDSet{
			{imap.UIDRange{Start: imap.UID(afterUID + 1), Stop: 0}},
		},
	}

	searchData, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", folder, err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	// Oldest-first so the watermark can advance monotonically.
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(imap.UIDSetNum(uids...), fetchOpts)

	var msgs []RemoteMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		msgs = append(msgs, remoteFromBuffer(buf, bodySection))
	}

	if err := fetchCmd.Close(); err != nil {
		return msgs, fmt.Errorf("fetching from %s: %w", folder, err)
	}

	// The server may deliver fetch responses out of order.
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].UID < msgs[j].UID })

	return msgs, nil
}

// Close logs out, releasing the remote connection slot.
func (s *imapSession) Close() error {
	return s.client.Logout().Wait()
}

// remoteFromBuffer extracts a RemoteMessage from a FetchMessageBuffer.
func remoteFromBuffer(buf *imapclient.FetchMessageBuffer, section *imap.FetchItemBodySection) RemoteMessage {
	msg := RemoteMessage{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		msg.MessageID = buf.Envelope.MessageID
		msg.Subject = buf.Envelope.Subject
		msg.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			msg.FromName = from.Name
			msg.FromAddr = from.Addr()
		}
	}

	if raw := buf.FindBodySection(section); raw != nil {
		msg.Raw = append([]byte(nil), raw...)
	}

	return msg
}
