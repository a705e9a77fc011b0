package mailsync

import (
	"strings"
	"testing"
)

func TestParseMIMEBodyPlain(t *testing.T) {
	raw := []byte("From: a@example.com\r\n" +
		"To: b@example.com\r\n" +
		"Subject: test\r\n" +
		"Date: Mon, 02 Jan 2026 15:04:05 +0000\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"just text\r\n")

	parsed := parseMIMEBody(raw)
	if strings.TrimSpace(parsed.Text) != "just text" {
		t.Errorf("Text = %q", parsed.Text)
	}
	if parsed.HTML != "" || len(parsed.Attachments) != 0 {
		t.Errorf("unexpected HTML or attachments: %+v", parsed)
	}
}

func TestParseMIMEBodyAlternative(t *testing.T) {
	raw := []byte("From: a@example.com\r\n" +
		"To: b@example.com\r\n" +
		"Subject: test\r\n" +
		"Date: Mon, 02 Jan 2026 15:04:05 +0000\r\n" +
		"Content-Type: multipart/alternative; boundary=alt\r\n" +
		"\r\n" +
		"--alt\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"plain version\r\n" +
		"--alt\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>html version</p>\r\n" +
		"--alt--\r\n")

	parsed := parseMIMEBody(raw)
	if strings.TrimSpace(parsed.Text) != "plain version" {
		t.Errorf("Text = %q", parsed.Text)
	}
	if !strings.Contains(parsed.HTML, "html version") {
		t.Errorf("HTML = %q", parsed.HTML)
	}
}

func TestParseMIMEBodyUnparseable(t *testing.T) {
	parsed := parseMIMEBody([]byte("not a mime message at all"))
	if parsed.Text != "" || parsed.HTML != "" || len(parsed.Attachments) != 0 {
		t.Errorf("garbage input produced content: %+v", parsed)
	}
}

func TestRenderBodyHTMLFallback(t *testing.T) {
	parsed := parsedBody{HTML: "<p>Hello <b>world</b></p>"}

	plain, html := renderBody(parsed, 0)
	if !strings.Contains(plain, "Hello") {
		t.Errorf("plain fallback = %q", plain)
	}
	if strings.Contains(plain, "<p>") {
		t.Errorf("plain fallback still contains markup: %q", plain)
	}
	if html != parsed.HTML {
		t.Errorf("html = %q", html)
	}
}

func TestRenderBodyPrefersPlainText(t *testing.T) {
	parsed := parsedBody{Text: "the plain part", HTML: "<p>the html part</p>"}

	plain, _ := renderBody(parsed, 0)
	if plain != "the plain part" {
		t.Errorf("plain = %q", plain)
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 100)

	got := truncate(long, 10)
	if !strings.HasSuffix(got, truncationMarker) {
		t.Errorf("truncated body missing marker: %q", got)
	}
	if len(got) != 10+len(truncationMarker) {
		t.Errorf("truncated length = %d", len(got))
	}

	if got := truncate("short", 10); got != "short" {
		t.Errorf("short body modified: %q", got)
	}
	if got := truncate(long, 0); got != long {
		t.Errorf("zero limit truncated the body")
	}
}
