package mailer

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
)

func newTestMailer(config *common.MailerConfig) *Service {
	if config == nil {
		config = &common.MailerConfig{
			Enabled: true,
			Host:    "smtp.example.com",
			From:    "bot@example.com",
			To:      []string{"ops@example.com", "trader@example.com"},
		}
	}
	return NewService(config, arbor.NewLogger())
}

func TestAlertNotConfigured(t *testing.T) {
	service := newTestMailer(&common.MailerConfig{Enabled: false})

	if err := service.Alert(context.Background(), "subject", "body"); err != nil {
		t.Errorf("Expected disabled mailer to drop alert without error, got %v", err)
	}
}

func TestBuildMessagePlainText(t *testing.T) {
	service := newTestMailer(nil)

	msg := service.buildMessage("Pipeline failure", "", "item rss:a failed 3 times", nil)

	if !strings.Contains(msg, "From: bot@example.com\r\n") {
		t.Error("Missing From header")
	}
	if !strings.Contains(msg, "To: ops@example.com, trader@example.com\r\n") {
		t.Error("Missing To header")
	}
	if !strings.Contains(msg, "Subject: Pipeline failure\r\n") {
		t.Error("Missing Subject header")
	}
	if !strings.Contains(msg, "item rss:a failed 3 times") {
		t.Error("Missing body text")
	}
	if strings.Contains(msg, "multipart") {
		t.Error("Plain alert should not be multipart")
	}
}

func TestBuildMessageHTMLAlternative(t *testing.T) {
	service := newTestMailer(nil)

	markdown := "# Daily digest\n\n2 signals posted"
	html := "<h1>Daily digest</h1>"
	msg := service.buildMessage("Digest", html, markdown, nil)

	if !strings.Contains(msg, "multipart/alternative") {
		t.Error("Expected multipart/alternative message")
	}
	if !strings.Contains(msg, encodeBase64WithLineBreaks([]byte(markdown))) {
		t.Error("Expected base64 markdown part")
	}
	if !strings.Contains(msg, encodeBase64WithLineBreaks([]byte(html))) {
		t.Error("Expected base64 HTML part")
	}
}

func TestBuildMessageWithAttachments(t *testing.T) {
	service := newTestMailer(nil)

	attachments := []interfaces.Attachment{
		{Filename: "digest.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
	}
	msg := service.buildMessage("Digest", "<p>hi</p>", "hi", attachments)

	if !strings.Contains(msg, "multipart/mixed") {
		t.Error("Expected multipart/mixed wrapper")
	}
	if !strings.Contains(msg, `Content-Disposition: attachment; filename="digest.pdf"`) {
		t.Error("Expected attachment disposition header")
	}
	if !strings.Contains(msg, base64.StdEncoding.EncodeToString([]byte("%PDF-1.4"))) {
		t.Error("Expected base64 attachment data")
	}
}

func TestDigestRendersMarkdown(t *testing.T) {
	service := newTestMailer(nil)

	var html strings.Builder
	if err := service.markdown.Convert([]byte("# Daily digest\n\n| a | b |\n|---|---|\n| 1 | 2 |"), &html); err != nil {
		t.Fatalf("Markdown conversion failed: %v", err)
	}
	if !strings.Contains(html.String(), "<h1>Daily digest</h1>") {
		t.Errorf("Expected rendered heading, got %q", html.String())
	}
	if !strings.Contains(html.String(), "<table>") {
		t.Errorf("Expected rendered table, got %q", html.String())
	}
}

func TestEncodeBase64LineLength(t *testing.T) {
	encoded := encodeBase64WithLineBreaks([]byte(strings.Repeat("nuntius ", 100)))

	for _, line := range strings.Split(encoded, "\r\n") {
		if len(line) > 76 {
			t.Errorf("Line exceeds 76 chars: %d", len(line))
		}
	}
}
