// Package mailout composes and submits outgoing messages: recipient
// validation, attachment resolution, MIME assembly, and SMTP submission
// with categorized failures.
package mailout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	netmail "net/mail"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.com/amrelngm6/crm-flutter-sub000/internal/blob"
	"github.com/amrelngm6/crm-flutter-sub000/internal/mailconn"
	"github.com/amrelngm6/crm-flutter-sub000/internal/model"
)

// SessionOpener opens authenticated send sessions for an account.
type SessionOpener interface {
	OpenSend(ctx context.Context, account *model.Account) (mailconn.SendSession, error)
}

// Sender composes and transmits outgoing messages. All validation and
// attachment loading happens before a session is opened, so a request
// that cannot possibly succeed never touches the network.
type Sender struct {
	blobs blob.Store
	conns SessionOpener
}

// NewSender creates a Sender over the given blob store and connection
// opener.
func NewSender(b blob.Store, conns SessionOpener) *Sender {
	return &Sender{blobs: b, conns: conns}
}

// loadedAttachment is one resolved attachment payload ready for MIME
// assembly.
type loadedAttachment struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Send validates, composes, and submits one outgoing message. The
// returned remote message identifier is the generated Message-Id, which
// the caller can record or use as a future In-Reply-To reference.
// Failures carry a SendError category.
func (s *Sender) Send(ctx context.Context, account *model.Account, req model.ComposeRequest) (model.SendResult, error) {
	var result model.SendResult

	rcpts, toList, ccList, err := validateRecipients(req)
	if err != nil {
		return result, sendErr(InvalidRecipient, err)
	}

	attachments, err := s.loadAttachments(ctx, req.Attachments)
	if err != nil {
		return result, sendErr(AttachmentUnavailable, err)
	}

	body := req.Body
	if req.RenderedSignature != "" {
		body += "\n\n" + req.RenderedSignature
	}

	msgID := fmt.Sprintf("%s@%s", uuid.New().String(), account.Send.Host)

	raw, err := composeRaw(account, req, body, msgID, toList, ccList, attachments)
	if err != nil {
		return result, fmt.Errorf("composing message: %w", err)
	}

	sess, err := s.conns.OpenSend(ctx, account)
	if err != nil {
		return result, sendErr(ConnectionFailure, err)
	}
	defer sess.Close()

	if err := sess.Submit(account.Email, rcpts, raw); err != nil {
		var smtpErr *smtp.SMTPError
		if errors.As(err, &smtpErr) {
			return result, sendErr(Rejected, err)
		}
		return result, sendErr(ConnectionFailure, err)
	}

	result.RemoteMessageID = msgID
	return result, nil
}

// validateRecipients parses every recipient address and returns the full
// envelope recipient set (To, Cc and Bcc) plus the parsed To and Cc
// header lists. At least one To recipient is required; Bcc recipients
// are enveloped but never appear in a header.
func validateRecipients(req model.ComposeRequest) (rcpts []string, toList, ccList []*mail.Address, err error) {
	if len(req.To) == 0 {
		return nil, nil, nil, errors.New("at least one recipient is required")
	}

	toList, err = parseAddresses(req.To)
	if err != nil {
		return nil, nil, nil, err
	}
	ccList, err = parseAddresses(req.Cc)
	if err != nil {
		return nil, nil, nil, err
	}
	bccList, err := parseAddresses(req.Bcc)
	if err != nil {
		return nil, nil, nil, err
	}

	for _, list := range [][]*mail.Address{toList, ccList, bccList} {
		for _, addr := range list {
			rcpts = append(rcpts, addr.Address)
		}
	}
	return rcpts, toList, ccList, nil
}

func parseAddresses(raw []string) ([]*mail.Address, error) {
	addrs := make([]*mail.Address, 0, len(raw))
	for _, r := range raw {
		addr, err := netmail.ParseAddress(r)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", r, err)
		}
		addrs = append(addrs, (*mail.Address)(addr))
	}
	return addrs, nil
}

// loadAttachments resolves every attachment payload up front. Inline
// uploads are used as-is; path references must resolve through the blob
// store or the whole send is refused before any connection is opened.
func (s *Sender) loadAttachments(ctx context.Context, refs []model.ComposeAttachment) ([]loadedAttachment, error) {
	loaded := make([]loadedAttachment, 0, len(refs))
	for _, ref := range refs {
		att := loadedAttachment{
			Filename: ref.Filename,
			MIMEType: ref.MIMEType,
		}
		if att.MIMEType == "" {
			att.MIMEType = "application/octet-stream"
		}

		if ref.Data != nil {
			att.Data = ref.Data
		} else {
			data, err := s.blobs.Get(ctx, ref.Path)
			if err != nil {
				return nil, fmt.Errorf("loading attachment %q: %w", ref.Filename, err)
			}
			att.Data = data
		}

		loaded = append(loaded, att)
	}
	return loaded, nil
}

// composeRaw assembles the full RFC 2822 message: headers, the plain
// text body, and any attachments as a multipart/mixed structure.
func composeRaw(account *model.Account, req model.ComposeRequest, body, msgID string, toList, ccList []*mail.Address, attachments []loadedAttachment) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Name: account.Name, Address: account.Email}})
	h.SetAddressList("To", toList)
	if len(ccList) > 0 {
		h.SetAddressList("Cc", ccList)
	}
	h.SetSubject(req.Subject)
	h.SetMsgIDList("Message-Id", []string{msgID})
	if req.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{req.InReplyTo})
		h.SetMsgIDList("References", []string{req.InReplyTo})
	}

	var buf bytes.Buffer

	if len(attachments) == 0 {
		h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		w, err := mail.CreateSingleInlineWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("creating message writer: %w", err)
		}
		if _, err := io.WriteString(w, body); err != nil {
			return nil, fmt.Errorf("writing body: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("closing message writer: %w", err)
		}
		return buf.Bytes(), nil
	}

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("creating inline part: %w", err)
	}
	var ih mail.InlineHeader
	ih.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	pw, err := iw.CreatePart(ih)
	if err != nil {
		return nil, fmt.Errorf("creating text part: %w", err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		return nil, fmt.Errorf("writing body: %w", err)
	}
	if err := pw.Close(); err != nil {
		return nil, fmt.Errorf("closing text part: %w", err)
	}
	if err := iw.Close(); err != nil {
		return nil, fmt.Errorf("closing inline part: %w", err)
	}

	for _, att := range attachments {
		var ah mail.AttachmentHeader
		ah.SetFilename(att.Filename)
		ah.Set("Content-Type", att.MIMEType)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("creating attachment %q: %w", att.Filename, err)
		}
		if _, err := aw.Write(att.Data); err != nil {
			return nil, fmt.Errorf("writing attachment %q: %w", att.Filename, err)
		}
		if err := aw.Close(); err != nil {
			return nil, fmt.Errorf("closing attachment %q: %w", att.Filename, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}
	return buf.Bytes(), nil
}
