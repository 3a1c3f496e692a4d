// -----------------------------------------------------------------------
// Mailer Service - SMTP operator notifications and daily digests
// -----------------------------------------------------------------------

package mailer

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Service sends operator mail over SMTP. Digest bodies are written in
// markdown and rendered to HTML; the raw markdown rides along as the
// plain-text alternative.
type Service struct {
	config   *common.MailerConfig
	logger   arbor.ILogger
	markdown goldmark.Markdown
}

var _ interfaces.Notifier = (*Service)(nil)

// NewService creates the mailer.
func NewService(config *common.MailerConfig, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		logger: logger,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough),
		),
	}
}

// Alert sends a short plain-text operator alert. A disabled or
// unconfigured mailer drops the alert silently so callers never need to
// special-case notification setup.
func (s *Service) Alert(ctx context.Context, subject, body string) error {
	if !s.ready() {
		s.logger.Debug().Str("subject", subject).Msg("Mailer not configured, alert dropped")
		return nil
	}

	msg := s.buildMessage(subject, "", body, nil)
	if err := s.send(msg); err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}

	s.logger.Info().Str("subject", subject).Msg("Alert sent")
	return nil
}

// SendDigest renders the markdown digest to HTML and sends it with any
// attachments.
func (s *Service) SendDigest(ctx context.Context, subject, markdown string, attachments []interfaces.Attachment) error {
	if !s.ready() {
		s.logger.Debug().Str("subject", subject).Msg("Mailer not configured, digest dropped")
		return nil
	}

	var html bytes.Buffer
	if err := s.markdown.Convert([]byte(markdown), &html); err != nil {
		return fmt.Errorf("failed to render digest markdown: %w", err)
	}

	msg := s.buildMessage(subject, html.String(), markdown, attachments)
	if err := s.send(msg); err != nil {
		return fmt.Errorf("failed to send digest: %w", err)
	}

	s.logger.Info().
		Str("subject", subject).
		Int("attachments", len(attachments)).
		Msg("Digest sent")
	return nil
}

func (s *Service) ready() bool {
	return s.config.Enabled &&
		s.config.Host != "" &&
		s.config.From != "" &&
		len(s.config.To) > 0
}

// buildMessage assembles the RFC 5322 message. Bodies are base64
// encoded so long rendered lines stay within the 998-char line limit.
func (s *Service) buildMessage(subject, htmlBody, textBody string, attachments []interfaces.Attachment) string {
	var msg strings.Builder

	msg.WriteString(fmt.Sprintf("From: %s\r\n", s.config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(s.config.To, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")

	mixedBoundary := ""
	if len(attachments) > 0 {
		mixedBoundary = generateBoundary()
		msg.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n\r\n", mixedBoundary))
		msg.WriteString(fmt.Sprintf("--%s\r\n", mixedBoundary))
	}

	if htmlBody != "" {
		altBoundary := generateBoundary()
		msg.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", altBoundary))

		msg.WriteString(fmt.Sprintf("--%s\r\n", altBoundary))
		msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
		msg.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		msg.WriteString(encodeBase64WithLineBreaks([]byte(textBody)))
		msg.WriteString("\r\n")

		msg.WriteString(fmt.Sprintf("--%s\r\n", altBoundary))
		msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
		msg.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		msg.WriteString(encodeBase64WithLineBreaks([]byte(htmlBody)))
		msg.WriteString("\r\n")

		msg.WriteString(fmt.Sprintf("--%s--\r\n", altBoundary))
	} else {
		msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
		msg.WriteString(textBody)
		msg.WriteString("\r\n")
	}

	for _, att := range attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		msg.WriteString(fmt.Sprintf("--%s\r\n", mixedBoundary))
		msg.WriteString(fmt.Sprintf("Content-Type: %s; name=\"%s\"\r\n", contentType, att.Filename))
		msg.WriteString("Content-Transfer-Encoding: base64\r\n")
		msg.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n\r\n", att.Filename))
		msg.WriteString(encodeBase64WithLineBreaks(att.Data))
		msg.WriteString("\r\n")
	}

	if mixedBoundary != "" {
		msg.WriteString(fmt.Sprintf("--%s--\r\n", mixedBoundary))
	}

	return msg.String()
}

func (s *Service) send(msg string) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.smtpPort())

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if s.config.UseTLS {
		return s.sendWithTLS(addr, auth, msg)
	}
	return smtp.SendMail(addr, auth, s.config.From, s.config.To, []byte(msg))
}

// sendWithTLS connects over implicit TLS, falling back to a STARTTLS
// upgrade for servers that only listen on the submission port.
func (s *Service) sendWithTLS(addr string, auth smtp.Auth, msg string) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.config.Host})
	if err != nil {
		return s.sendWithSTARTTLS(addr, auth, msg)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	return s.transmit(client, auth, msg)
}

func (s *Service) sendWithSTARTTLS(addr string, auth smtp.Auth, msg string) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	return s.transmit(client, auth, msg)
}

func (s *Service) transmit(client *smtp.Client, auth smtp.Auth, msg string) error {
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(s.config.From); err != nil {
		return fmt.Errorf("failed to set mail from: %w", err)
	}
	for _, to := range s.config.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("failed to add recipient %s: %w", to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}

func (s *Service) smtpPort() int {
	if s.config.Port > 0 {
		return s.config.Port
	}
	return 587
}

func generateBoundary() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "nuntius_boundary_fallback"
	}
	return fmt.Sprintf("nuntius_%x", b)
}

// encodeBase64WithLineBreaks wraps base64 output at 76 characters per
// RFC 2045.
func encodeBase64WithLineBreaks(content []byte) string {
	encoded := base64.StdEncoding.EncodeToString(content)

	var result strings.Builder
	const lineLen = 76
	for i := 0; i < len(encoded); i += lineLen {
		end := i + lineLen
		if end > len(encoded) {
			end = len(encoded)
		}
		result.WriteString(encoded[i:end])
		if end < len(encoded) {
			result.WriteString("\r\n")
		}
	}
	return result.String()
}
