package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

const digestPostLimit = 10

// RunDigest assembles the daily activity summary and mails it to the
// operator. Wired into the scheduler when the mailer is enabled.
func (s *Service) RunDigest(ctx context.Context) error {
	if s.notifier == nil {
		s.logger.Debug().Msg("No notifier configured, digest skipped")
		return nil
	}

	now := s.now().UTC()
	since := now.Add(-24 * time.Hour)

	posted, err := s.posts.CountSince(ctx, since)
	if err != nil {
		return err
	}
	recent, err := s.posts.Recent(ctx, digestPostLimit)
	if err != nil {
		return err
	}

	markdown := s.digestMarkdown(ctx, now, since, posted, recent)

	var attachments []interfaces.Attachment
	if s.config.Mailer.AttachPDF && s.pdf != nil {
		title := "Nuntius Digest " + now.Format("2006-01-02")
		data, err := s.pdf.ConvertMarkdownToPDF(markdown, title)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Digest PDF rendering failed, sending without attachment")
		} else {
			attachments = append(attachments, interfaces.Attachment{
				Filename:    "digest-" + now.Format("2006-01-02") + ".pdf",
				ContentType: "application/pdf",
				Data:        data,
			})
		}
	}

	subject := "Nuntius daily digest " + now.Format("2006-01-02")
	if err := s.notifier.SendDigest(ctx, subject, markdown, attachments); err != nil {
		return err
	}

	s.logger.Info().
		Int("posts_24h", posted).
		Bool("pdf", len(attachments) > 0).
		Msg("Daily digest sent")
	return nil
}

// RunCompaction deletes aged non-posted seen entries. POSTED entries are
// kept forever so the no-double-post guarantee holds across the full
// history.
func (s *Service) RunCompaction(ctx context.Context) error {
	cutoff := s.now().UTC().Add(-s.config.Pipeline.SeenRetention)

	removed, err := s.seen.Compact(ctx, cutoff)
	if err != nil {
		return err
	}

	remaining := -1
	if count, err := s.seen.Count(ctx); err == nil {
		remaining = count
	}

	s.logger.Info().
		Int("removed", removed).
		Int("remaining", remaining).
		Str("cutoff", cutoff.Format(time.RFC3339)).
		Msg("Seen set compacted")
	return nil
}

func (s *Service) digestMarkdown(ctx context.Context, now, since time.Time, posted int, recent []models.PostRecord) string {
	stats := s.Stats()

	var b strings.Builder
	fmt.Fprintf(&b, "# Nuntius Daily Digest %s\n\n", now.Format("2006-01-02"))

	b.WriteString("## Activity\n\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("| --- | --- |\n")
	fmt.Fprintf(&b, "| Posts in the last 24h | %d |\n", posted)
	fmt.Fprintf(&b, "| Cycles since start | %d |\n", stats.Cycles)
	fmt.Fprintf(&b, "| Items fetched | %d |\n", stats.Fetched)
	fmt.Fprintf(&b, "| Items filtered | %d |\n", stats.Filtered)
	fmt.Fprintf(&b, "| Signals extracted | %d |\n", stats.Extracted)
	fmt.Fprintf(&b, "| Posts published | %d |\n", stats.Posted)
	fmt.Fprintf(&b, "| Failures | %d |\n", stats.Failed)
	b.WriteString("\n")

	if len(recent) > 0 {
		b.WriteString("## Recent Posts\n\n")
		for _, record := range recent {
			if record.PostedAt.Before(since) {
				continue
			}
			headline := record.Text
			if idx := strings.IndexByte(headline, '\n'); idx >= 0 {
				headline = headline[:idx]
			}
			fmt.Fprintf(&b, "- **%s %s** (%s) %s: %s\n",
				record.Instrument, record.Action, record.Sentiment,
				record.PostedAt.Format("15:04 UTC"), headline)
		}
		b.WriteString("\n")
	}

	if s.portfolio != nil {
		s.writePortfolioSection(ctx, &b)
	}

	return b.String()
}

func (s *Service) writePortfolioSection(ctx context.Context, b *strings.Builder) {
	snapshot, err := s.portfolio.Snapshot(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Portfolio snapshot failed, omitted from digest")
		return
	}

	total := s.portfolio.TotalValue(ctx, snapshot)
	initial := s.portfolio.InitialCash()
	pnl := total.Sub(initial)

	b.WriteString("## Portfolio\n\n")
	fmt.Fprintf(b, "Cash: $%s\n\n", snapshot.Cash.StringFixed(2))

	if len(snapshot.Positions) > 0 {
		b.WriteString("| Instrument | Quantity | Avg Price | Cost Basis |\n")
		b.WriteString("| --- | --- | --- | --- |\n")
		for _, position := range snapshot.Positions {
			fmt.Fprintf(b, "| %s | %s | $%s | $%s |\n",
				position.Instrument,
				position.Quantity.String(),
				position.AvgPrice.StringFixed(2),
				position.CostBasis().StringFixed(2))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(b, "Total value: $%s\n\n", total.StringFixed(2))

	sign := "+"
	if pnl.IsNegative() {
		sign = "-"
	}
	fmt.Fprintf(b, "P&L since inception: %s$%s (%d trades)\n", sign, pnl.Abs().StringFixed(2), snapshot.TradeCount)
}
