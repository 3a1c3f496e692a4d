package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/models"
	"github.com/ternarybob/nuntius/internal/services/filter"
)

// processItem walks one item through the state machine. Item failures
// are absorbed into stats; a returned error is always a persistence
// failure and aborts the cycle.
func (s *Service) processItem(ctx context.Context, item models.RawItem, stats *CycleStats) error {
	seen, err := s.seen.HasSeen(ctx, item.ID)
	if err != nil {
		return err
	}
	if seen {
		stats.Skipped++
		return nil
	}

	// A post record without a seen entry means the process died between
	// the platform confirming and MarkSeen. Repair instead of reposting.
	record, err := s.posts.GetByItemID(ctx, item.ID)
	if err != nil {
		return err
	}
	if record != nil {
		s.logger.Warn().
			Str("item_id", item.ID).
			Str("post_id", record.PlatformPostID).
			Msg("Recovered post record without seen entry, repairing")
		stats.Skipped++
		return s.markSeen(ctx, models.SeenEntry{
			ItemID:      item.ID,
			ContentHash: filter.ContentHash(item.Title),
			Outcome:     models.SeenPosted,
			Reason:      "recovered post record",
		})
	}

	if ok, reason := s.filter.CheckItem(item); !ok {
		stats.Filtered++
		s.logger.Debug().
			Str("item_id", item.ID).
			Str("reason", reason).
			Msg("Item filtered")
		return s.markSeen(ctx, models.SeenEntry{
			ItemID:      item.ID,
			ContentHash: filter.ContentHash(item.Title),
			Outcome:     models.SeenDropped,
			Reason:      reason,
		})
	}

	hash := filter.ContentHash(item.Title)
	duplicate, err := s.seen.HasContentHash(ctx, hash)
	if err != nil {
		return err
	}
	if duplicate {
		stats.Filtered++
		s.logger.Debug().
			Str("item_id", item.ID).
			Msg("Duplicate headline, dropped")
		return s.markSeen(ctx, models.SeenEntry{
			ItemID:      item.ID,
			ContentHash: hash,
			Outcome:     models.SeenDropped,
			Reason:      "duplicate headline",
		})
	}

	result, err := s.extractWithRetries(ctx, item)
	if err != nil {
		return s.handleExtractFailure(ctx, item, hash, err, stats)
	}

	switch result.Outcome {
	case models.ParseMalformed:
		// Deterministic model failure; retrying burns quota for the
		// same answer.
		stats.Failed++
		return s.markSeen(ctx, models.SeenEntry{
			ItemID:      item.ID,
			ContentHash: hash,
			Outcome:     models.SeenFailed,
			Reason:      "malformed response: " + result.Reason,
		})
	case models.ParseEmpty:
		stats.Dropped++
		return s.markSeen(ctx, models.SeenEntry{
			ItemID:      item.ID,
			ContentHash: hash,
			Outcome:     models.SeenDropped,
			Reason:      "no signal",
		})
	}

	signal := result.Signal
	stats.Extracted++

	if !signal.Actionable() {
		reason := "no instrument"
		if signal.Action != models.ActionBuy && signal.Action != models.ActionSell {
			reason = fmt.Sprintf("action %s", signal.Action)
		}
		stats.Dropped++
		s.logger.Debug().
			Str("item_id", item.ID).
			Str("reason", reason).
			Msg("Signal not actionable, dropped")
		return s.markSeen(ctx, models.SeenEntry{
			ItemID:      item.ID,
			ContentHash: hash,
			Outcome:     models.SeenDropped,
			Reason:      reason,
		})
	}

	instrument, ok := s.filter.ResolveInstrument(signal.Instrument)
	if !ok {
		stats.Dropped++
		s.logger.Debug().
			Str("item_id", item.ID).
			Str("instrument", signal.Instrument).
			Msg("Instrument blacklisted, dropped")
		return s.markSeen(ctx, models.SeenEntry{
			ItemID:      item.ID,
			ContentHash: hash,
			Outcome:     models.SeenDropped,
			Reason:      "blacklisted instrument " + signal.Instrument,
		})
	}

	recent, err := s.seen.RecentSummaries(ctx, recentSummaryWindow)
	if err != nil {
		return err
	}
	if filter.IsNearDuplicate(signal.Summary, recent, similarityThreshold) {
		stats.Filtered++
		s.logger.Debug().
			Str("item_id", item.ID).
			Msg("Near-duplicate of a recent post, dropped")
		return s.markSeen(ctx, models.SeenEntry{
			ItemID:      item.ID,
			ContentHash: hash,
			Outcome:     models.SeenDropped,
			Reason:      "near-duplicate summary",
		})
	}

	chartSymbol := ""
	if s.charts != nil {
		symbol, err := s.charts.ResolveSymbol(ctx, instrument.Code)
		if err != nil {
			s.logger.Debug().
				Err(err).
				Str("instrument", instrument.Code).
				Msg("Chart symbol unresolved")
		} else {
			chartSymbol = symbol
		}
	}

	text, err := s.composer.Compose(signal, chartSymbol)
	if err != nil {
		stats.Dropped++
		s.logger.Warn().
			Err(err).
			Str("item_id", item.ID).
			Msg("Compose failed, dropped")
		return s.markSeen(ctx, models.SeenEntry{
			ItemID:      item.ID,
			ContentHash: hash,
			Outcome:     models.SeenDropped,
			Reason:      "compose failed: " + err.Error(),
		})
	}

	var image []byte
	if s.charts != nil {
		captured, err := s.charts.Capture(ctx, instrument.Code)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("instrument", instrument.Code).
				Msg("Chart capture failed, posting without chart")
		} else {
			image = captured
		}
	}

	postID, err := s.publishWithRetries(ctx, text, image)
	if err != nil {
		return s.handlePublishFailure(ctx, item, hash, err, stats)
	}

	now := s.now().UTC()
	postRecord := models.PostRecord{
		ID:             common.NewPostID(),
		ItemID:         item.ID,
		PlatformPostID: postID,
		Text:           text,
		Instrument:     instrument.Code,
		Action:         signal.Action,
		Sentiment:      signal.Sentiment,
		ChartAttached:  len(image) > 0,
		TestMode:       s.config.TestMode,
		PostedAt:       now,
	}
	if err := s.posts.Append(ctx, postRecord); err != nil {
		return err
	}

	if s.portfolio != nil {
		if _, err := s.portfolio.Apply(ctx, signal, instrument.Code); err != nil {
			return err
		}
	}

	if err := s.markSeen(ctx, models.SeenEntry{
		ItemID:      item.ID,
		ContentHash: hash,
		Summary:     signal.Summary,
		Outcome:     models.SeenPosted,
	}); err != nil {
		return err
	}

	stats.Posted++
	s.logger.Info().
		Str("item_id", item.ID).
		Str("instrument", instrument.Code).
		Str("action", string(signal.Action)).
		Str("post_id", postID).
		Bool("chart", len(image) > 0).
		Msg("Signal posted")

	return nil
}

// extractWithRetries calls the extractor with in-cycle retry policy:
// transient errors back off exponentially up to MaxRetries tries, a rate
// limit sleeps out the cooldown and retries exactly once.
func (s *Service) extractWithRetries(ctx context.Context, item models.RawItem) (models.ParseResult, error) {
	cfg := s.config.Pipeline
	rateLimited := false

	for attempt := 1; ; attempt++ {
		result, err := s.extractor.Extract(ctx, item)
		if err == nil {
			return result, nil
		}

		if limit, ok := models.AsRateLimit(err); ok {
			if rateLimited {
				return models.ParseResult{}, err
			}
			rateLimited = true
			wait := cfg.RateLimitCooldown
			if limit.RetryAfter > wait {
				wait = limit.RetryAfter
			}
			s.logger.Warn().
				Str("item_id", item.ID).
				Str("service", limit.Service).
				Dur("cooldown", wait).
				Msg("Extraction rate limited, cooling down")
			if sleepErr := sleepCtx(ctx, wait); sleepErr != nil {
				return models.ParseResult{}, err
			}
			continue
		}

		if models.IsTransient(err) && attempt < cfg.MaxRetries {
			delay := s.backoff(attempt)
			s.logger.Debug().
				Err(err).
				Str("item_id", item.ID).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("Extraction failed, backing off")
			if sleepErr := sleepCtx(ctx, delay); sleepErr != nil {
				return models.ParseResult{}, err
			}
			continue
		}

		return models.ParseResult{}, err
	}
}

// publishWithRetries posts with the same policy: bounded transient
// retries, one cooldown-and-retry for a rate limit.
func (s *Service) publishWithRetries(ctx context.Context, text string, image []byte) (string, error) {
	cfg := s.config.Pipeline
	rateLimited := false

	for attempt := 1; ; attempt++ {
		postID, err := s.publisher.Publish(ctx, text, image)
		if err == nil {
			return postID, nil
		}

		if limit, ok := models.AsRateLimit(err); ok {
			if rateLimited {
				return "", err
			}
			rateLimited = true
			wait := cfg.RateLimitCooldown
			if limit.RetryAfter > wait {
				wait = limit.RetryAfter
			}
			s.logger.Warn().
				Str("service", limit.Service).
				Dur("cooldown", wait).
				Msg("Publish rate limited, cooling down")
			if sleepErr := sleepCtx(ctx, wait); sleepErr != nil {
				return "", err
			}
			continue
		}

		if models.IsTransient(err) && attempt < cfg.MaxRetries {
			delay := s.backoff(attempt)
			s.logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("Publish failed, backing off")
			if sleepErr := sleepCtx(ctx, delay); sleepErr != nil {
				return "", err
			}
			continue
		}

		return "", err
	}
}

// handleExtractFailure records the failed cycle attempt; the item stays
// unseen for the next cycle until attempts reach MaxRetries, then it is
// marked FAILED and the operator alerted. Permanent failures skip the
// attempt budget since no retry can change the outcome.
func (s *Service) handleExtractFailure(ctx context.Context, item models.RawItem, hash string, cause error, stats *CycleStats) error {
	stats.Failed++

	if models.IsPermanent(cause) {
		s.logger.Error().
			Err(cause).
			Str("item_id", item.ID).
			Msg("Extraction rejected, giving up")

		s.alert(ctx, "Extraction rejected: "+item.ID,
			fmt.Sprintf("Item %q cannot be extracted.\n\nHeadline: %s\nError: %v",
				item.ID, item.Title, cause))

		return s.markSeen(ctx, models.SeenEntry{
			ItemID:      item.ID,
			ContentHash: hash,
			Outcome:     models.SeenFailed,
			Reason:      cause.Error(),
		})
	}

	attempts, err := s.seen.RecordAttempt(ctx, item.ID)
	if err != nil {
		return err
	}

	if attempts < s.config.Pipeline.MaxRetries {
		s.logger.Warn().
			Err(cause).
			Str("item_id", item.ID).
			Int("attempts", attempts).
			Msg("Extraction failed, will retry next cycle")
		return nil
	}

	s.logger.Error().
		Err(cause).
		Str("item_id", item.ID).
		Int("attempts", attempts).
		Msg("Extraction retries exhausted, giving up")

	s.alert(ctx, "Extraction failed: "+item.ID,
		fmt.Sprintf("Item %q failed extraction after %d attempts.\n\nHeadline: %s\nLast error: %v",
			item.ID, attempts, item.Title, cause))

	return s.markSeen(ctx, models.SeenEntry{
		ItemID:      item.ID,
		ContentHash: hash,
		Outcome:     models.SeenFailed,
		Attempts:    attempts,
		Reason:      cause.Error(),
	})
}

// handlePublishFailure leaves recoverable failures unseen for the next
// cycle (bounded by MaxRetries attempts) and marks platform rejections
// FAILED immediately.
func (s *Service) handlePublishFailure(ctx context.Context, item models.RawItem, hash string, cause error, stats *CycleStats) error {
	stats.Failed++

	if models.IsTransient(cause) || models.IsRateLimit(cause) {
		attempts, err := s.seen.RecordAttempt(ctx, item.ID)
		if err != nil {
			return err
		}
		if attempts < s.config.Pipeline.MaxRetries {
			s.logger.Warn().
				Err(cause).
				Str("item_id", item.ID).
				Int("attempts", attempts).
				Msg("Publish failed, will retry next cycle")
			return nil
		}

		s.logger.Error().
			Err(cause).
			Str("item_id", item.ID).
			Int("attempts", attempts).
			Msg("Publish retries exhausted, giving up")
		s.alert(ctx, "Publish failed: "+item.ID,
			fmt.Sprintf("Item %q failed publishing after %d attempts.\n\nLast error: %v", item.ID, attempts, cause))
		return s.markSeen(ctx, models.SeenEntry{
			ItemID:      item.ID,
			ContentHash: hash,
			Outcome:     models.SeenFailed,
			Attempts:    attempts,
			Reason:      cause.Error(),
		})
	}

	// The platform rejected the content; retrying cannot help.
	s.logger.Error().
		Err(cause).
		Str("item_id", item.ID).
		Msg("Publish rejected, giving up")
	s.alert(ctx, "Publish rejected: "+item.ID,
		fmt.Sprintf("The platform rejected the post for item %q.\n\nError: %v", item.ID, cause))

	return s.markSeen(ctx, models.SeenEntry{
		ItemID:      item.ID,
		ContentHash: hash,
		Outcome:     models.SeenFailed,
		Reason:      cause.Error(),
	})
}

func (s *Service) markSeen(ctx context.Context, entry models.SeenEntry) error {
	entry.SeenAt = s.now().UTC()
	return s.seen.MarkSeen(ctx, entry)
}

func (s *Service) alert(ctx context.Context, subject, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Alert(ctx, subject, body); err != nil {
		s.logger.Warn().Err(err).Msg("Operator alert failed")
	}
}

// backoff returns the exponential delay for an in-cycle retry, capped at
// the configured ceiling, with up to 25% jitter.
func (s *Service) backoff(attempt int) time.Duration {
	base := s.config.Pipeline.RetryBackoff
	if base <= 0 {
		base = time.Second
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if ceiling := s.config.Pipeline.RetryBackoffMax; ceiling > 0 && delay >= ceiling {
			delay = ceiling
			break
		}
	}
	if ceiling := s.config.Pipeline.RetryBackoffMax; ceiling > 0 && delay > ceiling {
		delay = ceiling
	}

	return delay + time.Duration(rand.Int63n(int64(delay/4)+1))
}
