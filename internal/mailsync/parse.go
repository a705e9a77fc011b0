package mailsync

import (
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"
	"github.com/jaytaylor/html2text"
)

// truncationMarker is appended when a body exceeds the configured cap.
const truncationMarker = "\n[truncated]"

// attachmentData is one decoded attachment part awaiting storage.
type attachmentData struct {
	Filename string
	MIMEType string
	Data     []byte
}

// parsedBody holds the decomposed content of one raw message.
type parsedBody struct {
	Text        string
	HTML        string
	Attachments []attachmentData
}

// parseMIMEBody parses a raw RFC 2822 message using go-message and
// extracts the text/plain body, text/html body, and attachments.
// A message that cannot be parsed at all yields an empty body; the
// caller still persists it with its envelope metadata.
func parseMIMEBody(raw []byte) parsedBody {
	var parsed parsedBody

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return parsed
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				parsed.Text = string(body)
			case strings.HasPrefix(contentType, "text/html"):
				parsed.HTML = string(body)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()

			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			parsed.Attachments = append(parsed.Attachments, attachmentData{
				Filename: filename,
				MIMEType: contentType,
				Data:     body,
			})
		}
	}

	return parsed
}

// renderBody derives the stored plain and HTML bodies from a parsed
// message, preferring the rendered HTML part and falling back to plain
// text. Both are capped at limit bytes with a truncation marker.
func renderBody(parsed parsedBody, limit int) (plain, html string) {
	plain = parsed.Text
	if plain == "" && parsed.HTML != "" {
		if text, err := html2text.FromString(parsed.HTML); err == nil {
			plain = text
		}
	}

	return truncate(plain, limit), truncate(parsed.HTML, limit)
}

// truncate caps s at limit bytes, appending a marker when cut.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + truncationMarker
}
