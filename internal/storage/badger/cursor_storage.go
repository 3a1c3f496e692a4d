package badger

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// CursorStorage implements the CursorStore interface for Badger
type CursorStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.CursorStore = (*CursorStorage)(nil)

// NewCursorStorage creates a new CursorStorage instance
func NewCursorStorage(db *BadgerDB, logger arbor.ILogger) *CursorStorage {
	return &CursorStorage{
		db:     db,
		logger: logger,
	}
}

// GetCursor returns the cursor for a source. A source that has never run
// gets a zero-valued cursor carrying its name.
func (s *CursorStorage) GetCursor(ctx context.Context, sourceName string) (models.PollCursor, error) {
	var cursor models.PollCursor
	err := s.db.Store().Get(sourceName, &cursor)
	if err == badgerhold.ErrNotFound {
		return models.PollCursor{SourceName: sourceName}, nil
	}
	if err != nil {
		return models.PollCursor{}, &models.PersistenceError{Op: "cursor lookup", Err: err}
	}
	return cursor, nil
}

// SaveCursor persists the cursor for its source
func (s *CursorStorage) SaveCursor(ctx context.Context, cursor models.PollCursor) error {
	if err := s.db.Store().Upsert(cursor.SourceName, &cursor); err != nil {
		return &models.PersistenceError{Op: "cursor save", Err: err}
	}
	return nil
}
