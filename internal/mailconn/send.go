package mailconn

import (
	"fmt"

	"github.com/emersion/go-smtp"
)

// smtpSession wraps go-smtp as a SendSession.
type smtpSession struct {
	client *smtp.Client
}

// Submit transmits one fully composed raw message.
func (s *smtpSession) Submit(from string, rcpts []string, raw []byte) error {
	if err := s.client.Mail(from, nil); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	for _, rcpt := range rcpts {
		if err := s.client.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("SMTP RCPT TO %s: %w", rcpt, err)
		}
	}

	writer, err := s.client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := writer.Write(raw); err != nil {
		return fmt.Errorf("writing message body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing message body: %w", err)
	}

	return nil
}

// Close quits the session, releasing the remote connection slot.
func (s *smtpSession) Close() error {
	return s.client.Quit()
}
