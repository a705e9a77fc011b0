package model

import (
	"net"
	"strconv"
	"time"
)

// SecurityMode identifies how the TCP connection to a mail server is secured.
type SecurityMode string

const (
	// SecurityTLS is implicit TLS: the connection is encrypted from the
	// first byte (commonly port 993/465).
	SecurityTLS SecurityMode = "ssl"
	// SecurityStartTLS upgrades a plaintext connection via STARTTLS
	// (commonly port 143/587).
	SecurityStartTLS SecurityMode = "starttls"
)

// Endpoint describes one side (receive or send) of a mail account.
type Endpoint struct {
	Host     string
	Port     int
	Security SecurityMode
	Username string
	// Password holds the vault ciphertext, never the plaintext secret.
	Password string
}

// Addr returns the host:port address of the endpoint.
func (e Endpoint) Addr() string {
	if e.Port == 0 {
		return e.Host
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Account is one synchronized mailbox, owned by exactly one user within
// one business (tenant). Credential fields always hold vault ciphertext.
type Account struct {
	ID         string
	BusinessID string
	UserID     string
	Name       string
	Email      string

	Receive Endpoint
	Send    Endpoint

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Folder is a named mailbox folder belonging to one account.
// (AccountID, Name) is unique. Folders created by the user locally are
// never reconciled against the remote folder list.
type Folder struct {
	ID            string
	AccountID     string
	Name          string
	UserCreated   bool
	RemoteMissing bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Message is one synchronized email. (AccountID, MessageID) is unique;
// re-fetching the same remote message never creates a second row and
// never resets the user-set flags.
type Message struct {
	ID         string
	AccountID  string
	FolderName string

	// MessageID is the protocol-level unique identifier used for
	// deduplication (RFC Message-ID header when present, otherwise a
	// synthetic uid-based token).
	MessageID string

	FromName string
	FromAddr string
	Subject  string
	Body     string
	BodyHTML string
	Date     time.Time

	Read      bool
	Favourite bool
	Archived  bool

	FetchedAt time.Time
}

// Attachment references one stored binary payload of a message.
// The storage path is unique and always resolvable through the blob
// store while the row exists.
type Attachment struct {
	ID          string
	MessageID   string
	Filename    string
	MIMEType    string
	Size        int64
	StoragePath string
	CreatedAt   time.Time
}

// SyncState is the per-folder watermark: the highest remote UID that has
// been durably persisted. It never regresses.
type SyncState struct {
	AccountID  string
	FolderName string
	LastUID    uint32
	LastSync   time.Time
}

// FlagUpdate carries an explicit, partial update of the user-set message
// flags. Nil fields are left untouched.
type FlagUpdate struct {
	Read      *bool
	Favourite *bool
	Archived  *bool
}

// ComposeAttachment references a file to attach to an outgoing message,
// either by a path previously stored in the blob store or as an inline
// upload.
type ComposeAttachment struct {
	Path     string
	Filename string
	MIMEType string
	// Data, when non-nil, is an inline upload and takes precedence over
	// Path.
	Data []byte
}

// ComposeRequest describes one outgoing message. Reply and forward are
// not distinct operations: the caller prepares Subject, Body and
// InReplyTo and submits uniformly.
type ComposeRequest struct {
	AccountID string
	To        []string
	Cc        []string
	Bcc       []string
	Subject   string
	Body      string

	Attachments []ComposeAttachment

	// InReplyTo is the remote message identifier being replied to, if any.
	InReplyTo string

	// RenderedSignature is appended verbatim to the body. It arrives
	// pre-rendered; this subsystem never evaluates signature templates.
	RenderedSignature string
}

// SendResult reports a successful submission.
type SendResult struct {
	RemoteMessageID string
}
