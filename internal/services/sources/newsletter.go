// -----------------------------------------------------------------------
// Newsletter Source - reads analyst newsletters from an IMAP inbox,
// including text pulled out of PDF attachments
// -----------------------------------------------------------------------

package sources

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// NewsletterSource fetches unread newsletters from an IMAP mailbox.
type NewsletterSource struct {
	config    *common.NewsletterConfig
	extractor interfaces.PDFExtractor
	logger    arbor.ILogger
}

// Compile-time assertion
var _ interfaces.Source = (*NewsletterSource)(nil)

// NewNewsletterSource creates an IMAP newsletter source. The extractor
// may be nil, in which case PDF attachments are skipped.
func NewNewsletterSource(config *common.NewsletterConfig, extractor interfaces.PDFExtractor, logger arbor.ILogger) *NewsletterSource {
	return &NewsletterSource{
		config:    config,
		extractor: extractor,
		logger:    logger,
	}
}

// Name returns the adapter name used for cursors and logging
func (s *NewsletterSource) Name() string {
	return string(models.SourceNewsletter)
}

// Fetch connects to the mailbox, reads unseen messages from allowed
// senders, and marks them read.
func (s *NewsletterSource) Fetch(ctx context.Context) ([]models.RawItem, error) {
	if s.config.Host == "" || s.config.Username == "" || s.config.Password == "" {
		return nil, &models.TransientSourceError{Source: s.Name(), Err: fmt.Errorf("IMAP not configured")}
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var (
		c   *client.Client
		err error
	)
	if s.config.UseTLS {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, &models.TransientSourceError{Source: s.Name(), Err: fmt.Errorf("failed to connect to IMAP server: %w", err)}
	}
	defer c.Logout()

	if err := c.Login(s.config.Username, s.config.Password); err != nil {
		return nil, &models.TransientSourceError{Source: s.Name(), Err: fmt.Errorf("IMAP login failed: %w", err)}
	}

	folder := s.config.Folder
	if folder == "" {
		folder = "INBOX"
	}
	mbox, err := c.Select(folder, false)
	if err != nil {
		return nil, &models.TransientSourceError{Source: s.Name(), Err: fmt.Errorf("failed to select %s: %w", folder, err)}
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	seqNums, err := c.Search(criteria)
	if err != nil {
		return nil, &models.TransientSourceError{Source: s.Name(), Err: fmt.Errorf("failed to search for unseen messages: %w", err)}
	}
	if len(seqNums) == 0 {
		return nil, nil
	}

	maxMessages := s.config.MaxMessages
	if maxMessages <= 0 {
		maxMessages = 10
	}
	if len(seqNums) > maxMessages {
		seqNums = seqNums[len(seqNums)-maxMessages:]
	}

	s.logger.Debug().Int("count", len(seqNums)).Msg("Found unseen newsletters")

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	messages := make(chan *imap.Message, len(seqNums))
	section := &imap.BodySectionName{}

	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, section.FetchItem()}, messages)
	}()

	var items []models.RawItem
	processed := new(imap.SeqSet)

	for msg := range messages {
		if msg == nil || msg.Envelope == nil {
			continue
		}

		from := ""
		if len(msg.Envelope.From) > 0 {
			from = msg.Envelope.From[0].Address()
		}
		if !s.senderAllowed(from) {
			s.logger.Debug().Str("from", from).Msg("Newsletter sender not on allow list, skipping")
			processed.AddNum(msg.SeqNum)
			continue
		}

		body, err := s.extractBody(ctx, msg, section)
		if err != nil {
			s.logger.Warn().Err(err).Uint32("seq", msg.SeqNum).Msg("Failed to parse newsletter body")
			continue
		}

		nativeID := strings.Trim(msg.Envelope.MessageId, "<>")
		if nativeID == "" {
			nativeID = fmt.Sprintf("%s-%d", folder, msg.SeqNum)
		}

		published := msg.Envelope.Date
		if published.IsZero() {
			published = time.Now()
		}

		items = append(items, models.RawItem{
			ID:          models.NamespacedID(models.SourceNewsletter, nativeID),
			Title:       strings.TrimSpace(msg.Envelope.Subject),
			Body:        body,
			Source:      models.SourceNewsletter,
			PublishedAt: published,
			FetchedAt:   time.Now(),
		})
		processed.AddNum(msg.SeqNum)
	}

	if err := <-done; err != nil {
		return nil, &models.TransientSourceError{Source: s.Name(), Err: fmt.Errorf("failed to fetch messages: %w", err)}
	}

	// Mark everything we consumed as read so the next poll starts clean.
	if !processed.Empty() {
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		flags := []interface{}{imap.SeenFlag}
		if err := c.Store(processed, item, flags, nil); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to mark newsletters as read")
		}
	}

	return items, nil
}

// senderAllowed checks the configured allow list. An empty list allows
// all senders.
func (s *NewsletterSource) senderAllowed(from string) bool {
	if len(s.config.SenderAllow) == 0 {
		return true
	}
	from = strings.ToLower(strings.TrimSpace(from))
	for _, allowed := range s.config.SenderAllow {
		if from == strings.ToLower(strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}

// extractBody pulls the text part of a message, appending text extracted
// from PDF attachments when an extractor is wired.
func (s *NewsletterSource) extractBody(ctx context.Context, msg *imap.Message, section *imap.BodySectionName) (string, error) {
	r := msg.GetBody(section)
	if r == nil {
		return "", fmt.Errorf("no body section")
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to create mail reader: %w", err)
	}

	var parts []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read next part: %w", err)
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			if strings.HasPrefix(contentType, "text/plain") {
				b, err := io.ReadAll(p.Body)
				if err != nil {
					return "", fmt.Errorf("failed to read body: %w", err)
				}
				if text := strings.TrimSpace(string(b)); text != "" {
					parts = append(parts, text)
				}
			}
		case *mail.AttachmentHeader:
			if s.extractor == nil {
				continue
			}
			contentType, _, _ := h.ContentType()
			filename, _ := h.Filename()
			if contentType != "application/pdf" && !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
				continue
			}
			data, err := io.ReadAll(p.Body)
			if err != nil {
				s.logger.Warn().Err(err).Str("filename", filename).Msg("Failed to read PDF attachment")
				continue
			}
			text, err := s.extractor.ExtractText(ctx, data)
			if err != nil {
				s.logger.Warn().Err(err).Str("filename", filename).Msg("Failed to extract PDF text")
				continue
			}
			if text = strings.TrimSpace(text); text != "" {
				parts = append(parts, text)
			}
		}
	}

	return strings.Join(parts, "\n\n"), nil
}
