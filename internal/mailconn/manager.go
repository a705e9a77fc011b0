// Package mailconn opens authenticated sessions to remote mail servers.
// Receive sessions speak IMAP, send sessions speak SMTP; both resolve
// credentials through the vault and are scoped resources that must be
// closed on every exit path.
package mailconn

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/amrelngm6/crm-flutter-sub000/internal/model"
	"github.com/amrelngm6/crm-flutter-sub000/internal/vault"
)

// RemoteMessage is one message as fetched from a remote folder: the
// envelope needed for local metadata plus the raw RFC 2822 payload for
// MIME decomposition.
type RemoteMessage struct {
	UID       uint32
	MessageID string
	FromName  string
	FromAddr  string
	Subject   string
	Date      time.Time
	Raw       []byte
}

// ReceiveSession is an authenticated, stateful connection for fetching.
// A session is never shared across concurrent operations.
type ReceiveSession interface {
	// ListFolders returns the names of all remote folders.
	ListFolders() ([]string, error)

	// FetchNewer returns up to limit messages from the folder whose UID
	// is strictly greater than afterUID, in ascending UID order.
	FetchNewer(folder string, afterUID uint32, limit int) ([]RemoteMessage, error)

	Close() error
}

// SendSession is an authenticated connection for submitting one or more
// outgoing messages.
type SendSession interface {
	// Submit transmits a fully composed raw message.
	Submit(from string, rcpts []string, raw []byte) error

	Close() error
}

// Manager opens receive and send sessions for accounts, decrypting
// credentials via the vault. Plaintext secrets live only on the stack
// during the connection attempt and are never logged.
type Manager struct {
	vault          *vault.Vault
	connectTimeout time.Duration
	opTimeout      time.Duration
}

// NewManager creates a Manager with the configured timeouts.
func NewManager(v *vault.Vault, cfg model.SyncConfig) *Manager {
	connect := cfg.ConnectTimeout()
	if connect <= 0 {
		connect = 15 * time.Second
	}
	op := cfg.OperationTimeout()
	if op <= 0 {
		op = 30 * time.Second
	}
	return &Manager{vault: v, connectTimeout: connect, opTimeout: op}
}

// dial establishes the TCP connection with a bounded timeout and wraps
// it so every subsequent read and write carries an I/O deadline.
func (m *Manager) dial(ctx context.Context, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: m.connectTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classifyNetErr("dial "+addr, err)
	}
	return newTimeoutConn(conn, m.opTimeout), nil
}

// OpenReceive opens and authenticates an IMAP session against the
// account's receive endpoint. A vault failure passes through unchanged
// so callers can distinguish a corrupt stored credential from a server
// rejection.
func (m *Manager) OpenReceive(ctx context.Context, account *model.Account) (ReceiveSession, error) {
	password, err := m.vault.Reveal(account.Receive.Password)
	if err != nil {
		return nil, fmt.Errorf("revealing receive credential: %w", err)
	}

	addr := account.Receive.Addr()
	conn, err := m.dial(ctx, addr)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{ServerName: account.Receive.Host}

	var client *imapclient.Client
	switch account.Receive.Security {
	case model.SecurityStartTLS:
		client, err = imapclient.NewStartTLS(conn, &imapclient.Options{TLSConfig: tlsConfig})
		if err != nil {
			conn.Close()
			return nil, connectErr(TLSFailure, "starttls "+addr, err)
		}
	default:
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, connectErr(TLSFailure, "tls handshake "+addr, err)
		}
		client = imapclient.New(tlsConn, nil)
	}

	if err := client.Login(account.Receive.Username, password).Wait(); err != nil {
		_ = client.Logout().Wait()
		_ = client.Close()
		return nil, classifyAuthErr("imap login "+addr, err)
	}

	return &imapSession{client: client}, nil
}

// OpenSend opens and authenticates an SMTP session against the
// account's send endpoint.
func (m *Manager) OpenSend(ctx context.Context, account *model.Account) (SendSession, error) {
	password, err := m.vault.Reveal(account.Send.Password)
	if err != nil {
		return nil, fmt.Errorf("revealing send credential: %w", err)
	}

	addr := account.Send.Addr()
	conn, err := m.dial(ctx, addr)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{ServerName: account.Send.Host}

	var client *smtp.Client
	switch account.Send.Security {
	case model.SecurityStartTLS:
		client = smtp.NewClient(conn)
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, connectErr(TLSFailure, "starttls "+addr, err)
		}
	default:
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, connectErr(TLSFailure, "tls handshake "+addr, err)
		}
		client = smtp.NewClient(tlsConn)
	}

	auth := sasl.NewPlainClient("", account.Send.Username, password)
	if err := client.Auth(auth); err != nil {
		client.Close()
		return nil, classifyAuthErr("smtp auth "+addr, err)
	}

	return &smtpSession{client: client}, nil
}

// timeoutConn bounds every read and write with a rolling deadline, so a
// hang longer than the operation timeout surfaces as a timeout error
// instead of blocking forever.
type timeoutConn struct {
	net.Conn
	timeout time.Duration
}

func newTimeoutConn(conn net.Conn, timeout time.Duration) net.Conn {
	return &timeoutConn{Conn: conn, timeout: timeout}
}

func (c *timeoutConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *timeoutConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}
