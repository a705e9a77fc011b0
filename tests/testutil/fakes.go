package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/amrelngm6/crm-flutter-sub000/internal/blob"
	"github.com/amrelngm6/crm-flutter-sub000/internal/mailconn"
	"github.com/amrelngm6/crm-flutter-sub000/internal/model"
)

// MemBlobStore is an in-memory blob.Store.
type MemBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	next  int

	// PutErr, when set, fails every Put call.
	PutErr error
}

// NewMemBlobStore creates an empty in-memory blob store.
func NewMemBlobStore() *MemBlobStore {
	return &MemBlobStore{blobs: make(map[string][]byte)}
}

func (m *MemBlobStore) Put(ctx context.Context, data []byte, suggestedName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PutErr != nil {
		return "", m.PutErr
	}

	m.next++
	path := fmt.Sprintf("%d_%s", m.next, suggestedName)
	stored := make([]byte, len(data))
	copy(stored, data)
	m.blobs[path] = stored
	return path, nil
}

func (m *MemBlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.blobs[path]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", path, blob.ErrNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemBlobStore) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blobs[path]; !ok {
		return fmt.Errorf("blob %s: %w", path, blob.ErrNotFound)
	}
	delete(m.blobs, path)
	return nil
}

func (m *MemBlobStore) Exists(ctx context.Context, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.blobs[path]
	return ok
}

// Len returns the number of stored payloads.
func (m *MemBlobStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

// FakeReceiveSession is a scripted mailconn.ReceiveSession backed by
// in-memory folder contents.
type FakeReceiveSession struct {
	Folders  []string
	Messages map[string][]mailconn.RemoteMessage

	// ListErr and FetchErr, when set, fail the respective call.
	ListErr  error
	FetchErr error

	Closed bool
}

func (f *FakeReceiveSession) ListFolders() ([]string, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return f.Folders, nil
}

func (f *FakeReceiveSession) FetchNewer(folder string, afterUID uint32, limit int) ([]mailconn.RemoteMessage, error) {
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}

	var out []mailconn.RemoteMessage
	for _, msg := range f.Messages[folder] {
		if msg.UID > afterUID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeReceiveSession) Close() error {
	f.Closed = true
	return nil
}

// FakeSendSession records submitted messages.
type FakeSendSession struct {
	From   string
	Rcpts  []string
	Raw    []byte
	Closed bool

	// SubmitErr, when set, fails Submit.
	SubmitErr error
}

func (f *FakeSendSession) Submit(from string, rcpts []string, raw []byte) error {
	if f.SubmitErr != nil {
		return f.SubmitErr
	}
	f.From = from
	f.Rcpts = rcpts
	f.Raw = raw
	return nil
}

func (f *FakeSendSession) Close() error {
	f.Closed = true
	return nil
}

// FakeOpener hands out the configured sessions as a connection manager
// would.
type FakeOpener struct {
	Receive    *FakeReceiveSession
	Send       *FakeSendSession
	ReceiveErr error
	SendErr    error
}

func (f *FakeOpener) OpenReceive(ctx context.Context, account *model.Account) (mailconn.ReceiveSession, error) {
	if f.ReceiveErr != nil {
		return nil, f.ReceiveErr
	}
	return f.Receive, nil
}

func (f *FakeOpener) OpenSend(ctx context.Context, account *model.Account) (mailconn.SendSession, error) {
	if f.SendErr != nil {
		return nil, f.SendErr
	}
	return f.Send, nil
}
