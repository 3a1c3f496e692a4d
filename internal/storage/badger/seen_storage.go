// -----------------------------------------------------------------------
// SeenStorage - Persistent dedup set with content-hash and summary layers
// Entries are written only after item side effects complete
// -----------------------------------------------------------------------

package badger

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SeenStorage implements the SeenStore interface for Badger
type SeenStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.SeenStore = (*SeenStorage)(nil)

// NewSeenStorage creates a new SeenStorage instance
func NewSeenStorage(db *BadgerDB, logger arbor.ILogger) *SeenStorage {
	return &SeenStorage{
		db:     db,
		logger: logger,
	}
}

// HasSeen reports whether the item id has already been processed
func (s *SeenStorage) HasSeen(ctx context.Context, itemID string) (bool, error) {
	var entry models.SeenEntry
	err := s.db.Store().Get(itemID, &entry)
	if err == badgerhold.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, &models.PersistenceError{Op: "seen lookup", Err: err}
	}
	return true, nil
}

// MarkSeen records an item as processed. Upsert keeps the call idempotent:
// marking an already-seen item rewrites the same entry. The write is
// synced before returning (SyncWrites on the connection).
func (s *SeenStorage) MarkSeen(ctx context.Context, entry models.SeenEntry) error {
	if entry.SeenAt.IsZero() {
		entry.SeenAt = time.Now()
	}

	if err := s.db.Store().Upsert(entry.ItemID, &entry); err != nil {
		return &models.PersistenceError{Op: "mark seen", Err: err}
	}

	// The retry counter is no longer needed once the item is seen
	if err := s.db.Store().Delete(entry.ItemID, &models.AttemptRecord{}); err != nil && err != badgerhold.ErrNotFound {
		s.logger.Warn().Err(err).Str("item_id", entry.ItemID).Msg("Failed to clear attempt record")
	}

	s.logger.Debug().
		Str("item_id", entry.ItemID).
		Str("outcome", string(entry.Outcome)).
		Msg("Item marked seen")

	return nil
}

// HasContentHash reports whether a normalized-headline hash has already
// been processed under any item id
func (s *SeenStorage) HasContentHash(ctx context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}

	count, err := s.db.Store().Count(&models.SeenEntry{}, badgerhold.Where("ContentHash").Eq(hash).Index("ContentHash"))
	if err != nil {
		return false, &models.PersistenceError{Op: "content hash lookup", Err: err}
	}
	return count > 0, nil
}

// RecentSummaries returns up to n summaries of recently posted items,
// newest first
func (s *SeenStorage) RecentSummaries(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	var entries []models.SeenEntry
	err := s.db.Store().Find(&entries,
		badgerhold.Where("Outcome").Eq(models.SeenPosted).SortBy("SeenAt").Reverse().Limit(n))
	if err != nil {
		return nil, &models.PersistenceError{Op: "recent summaries", Err: err}
	}

	summaries := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Summary != "" {
			summaries = append(summaries, entry.Summary)
		}
	}
	return summaries, nil
}

// RecordAttempt increments and returns the retry count for an item
func (s *SeenStorage) RecordAttempt(ctx context.Context, itemID string) (int, error) {
	var record models.AttemptRecord
	err := s.db.Store().Get(itemID, &record)
	if err == badgerhold.ErrNotFound {
		record = models.AttemptRecord{ItemID: itemID}
	} else if err != nil {
		return 0, &models.PersistenceError{Op: "attempt lookup", Err: err}
	}

	record.Count++
	record.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(itemID, &record); err != nil {
		return 0, &models.PersistenceError{Op: "attempt record", Err: err}
	}

	return record.Count, nil
}

// Count returns the number of seen entries
func (s *SeenStorage) Count(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.SeenEntry{}, nil)
	if err != nil {
		return 0, &models.PersistenceError{Op: "seen count", Err: err}
	}
	return int(count), nil
}

// Compact removes dropped and failed entries older than the cutoff.
// Posted entries are never compacted: the at-most-once guarantee depends
// on them.
func (s *SeenStorage) Compact(ctx context.Context, before time.Time) (int, error) {
	var stale []models.SeenEntry
	err := s.db.Store().Find(&stale,
		badgerhold.Where("Outcome").Ne(models.SeenPosted).And("SeenAt").Lt(before))
	if err != nil {
		return 0, &models.PersistenceError{Op: "compaction scan", Err: err}
	}

	removed := 0
	for _, entry := range stale {
		if err := s.db.Store().Delete(entry.ItemID, &models.SeenEntry{}); err != nil {
			s.logger.Warn().Err(err).Str("item_id", entry.ItemID).Msg("Failed to compact seen entry")
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Seen-set compaction complete")
	}
	return removed, nil
}
