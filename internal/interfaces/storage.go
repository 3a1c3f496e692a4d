// -----------------------------------------------------------------------
// Storage Interfaces - Persistent stores backing the pipeline
// Seen-set and post records guarantee at-most-once posting per item
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/nuntius/internal/models"
)

// SeenStore is the persistent dedup set. MarkSeen must only be called
// after the item's side effects have completed; implementations flush
// synchronously before returning. All failures are PersistenceErrors.
type SeenStore interface {
	// HasSeen reports whether the item id has already been processed
	HasSeen(ctx context.Context, itemID string) (bool, error)

	// MarkSeen records an item as processed. Idempotent per item id.
	MarkSeen(ctx context.Context, entry models.SeenEntry) error

	// HasContentHash reports whether a normalized-headline hash has been
	// processed under any item id
	HasContentHash(ctx context.Context, hash string) (bool, error)

	// RecentSummaries returns up to n summaries of recently posted items,
	// newest first, for fuzzy duplicate detection
	RecentSummaries(ctx context.Context, n int) ([]string, error)

	// RecordAttempt increments and returns the retry count for an item
	// that failed without being marked seen
	RecordAttempt(ctx context.Context, itemID string) (int, error)

	// Count returns the number of seen entries
	Count(ctx context.Context) (int, error)

	// Compact deletes non-posted entries older than the cutoff and
	// returns the number removed. Posted entries are kept forever to
	// preserve the at-most-once guarantee.
	Compact(ctx context.Context, before time.Time) (int, error)
}

// PostStore is the append-only audit log of published posts.
type PostStore interface {
	// Append stores a new post record
	Append(ctx context.Context, record models.PostRecord) error

	// GetByItemID returns the post record for an item id, or nil
	GetByItemID(ctx context.Context, itemID string) (*models.PostRecord, error)

	// Recent returns up to n post records, newest first
	Recent(ctx context.Context, n int) ([]models.PostRecord, error)

	// CountSince returns the number of posts recorded after the given time
	CountSince(ctx context.Context, since time.Time) (int, error)
}

// CursorStore persists per-source poll cursors between cycles.
type CursorStore interface {
	// GetCursor returns the cursor for a source, or a zero-valued cursor
	// when the source has never run
	GetCursor(ctx context.Context, sourceName string) (models.PollCursor, error)

	// SaveCursor persists the cursor for its source
	SaveCursor(ctx context.Context, cursor models.PollCursor) error
}

// PortfolioStore persists the simulated portfolio.
type PortfolioStore interface {
	// GetState returns the cash state, creating it with the given initial
	// cash when absent
	GetState(ctx context.Context, initialCash string) (models.PortfolioState, error)

	// SaveState persists the cash state
	SaveState(ctx context.Context, state models.PortfolioState) error

	// GetPosition returns the position for an instrument, or nil
	GetPosition(ctx context.Context, instrument string) (*models.Position, error)

	// UpsertPosition inserts or updates a position; zero-quantity
	// positions are removed
	UpsertPosition(ctx context.Context, position models.Position) error

	// ListPositions returns all open positions
	ListPositions(ctx context.Context) ([]models.Position, error)

	// AppendTrade stores one trade record
	AppendTrade(ctx context.Context, trade models.Trade) error

	// CountTrades returns the number of recorded trades
	CountTrades(ctx context.Context) (int, error)
}

// StorageManager provides access to all stores over one database handle.
type StorageManager interface {
	SeenStore() SeenStore
	PostStore() PostStore
	CursorStore() CursorStore
	PortfolioStore() PortfolioStore
	KeyValueStorage() KeyValueStorage

	// Close releases the underlying database
	Close() error
}
