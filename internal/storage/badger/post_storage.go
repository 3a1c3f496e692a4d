package badger

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// PostStorage implements the PostStore interface for Badger
type PostStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.PostStore = (*PostStorage)(nil)

// NewPostStorage creates a new PostStorage instance
func NewPostStorage(db *BadgerDB, logger arbor.ILogger) *PostStorage {
	return &PostStorage{
		db:     db,
		logger: logger,
	}
}

// Append stores a new post record
func (s *PostStorage) Append(ctx context.Context, record models.PostRecord) error {
	if record.ID == "" {
		record.ID = common.NewPostID()
	}
	if record.PostedAt.IsZero() {
		record.PostedAt = time.Now()
	}

	if err := s.db.Store().Insert(record.ID, &record); err != nil {
		return &models.PersistenceError{Op: "post record append", Err: err}
	}

	s.logger.Debug().
		Str("id", record.ID).
		Str("item_id", record.ItemID).
		Str("platform_post_id", record.PlatformPostID).
		Msg("Post record appended")

	return nil
}

// GetByItemID returns the post record for an item id, or nil
func (s *PostStorage) GetByItemID(ctx context.Context, itemID string) (*models.PostRecord, error) {
	var records []models.PostRecord
	err := s.db.Store().Find(&records, badgerhold.Where("ItemID").Eq(itemID).Index("ItemID"))
	if err != nil {
		return nil, &models.PersistenceError{Op: "post record lookup", Err: err}
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// Recent returns up to n post records, newest first
func (s *PostStorage) Recent(ctx context.Context, n int) ([]models.PostRecord, error) {
	var records []models.PostRecord
	err := s.db.Store().Find(&records, badgerhold.Where("ID").Ne("").SortBy("PostedAt").Reverse().Limit(n))
	if err != nil {
		return nil, &models.PersistenceError{Op: "recent posts", Err: err}
	}
	return records, nil
}

// CountSince returns the number of posts recorded after the given time
func (s *PostStorage) CountSince(ctx context.Context, since time.Time) (int, error) {
	count, err := s.db.Store().Count(&models.PostRecord{}, badgerhold.Where("PostedAt").Gt(since))
	if err != nil {
		return 0, &models.PersistenceError{Op: "post count", Err: err}
	}
	return int(count), nil
}
