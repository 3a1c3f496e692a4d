package models

import "time"

// SeenOutcome records why an item was marked seen.
type SeenOutcome string

const (
	// SeenPosted: the item produced a post confirmed by the platform.
	SeenPosted SeenOutcome = "POSTED"
	// SeenDropped: the item was definitively non-actionable (filtered,
	// empty extraction, duplicate content) and produced no post.
	SeenDropped SeenOutcome = "DROPPED"
	// SeenFailed: retries were exhausted; flagged for operator review.
	SeenFailed SeenOutcome = "FAILED"
)

// SeenEntry is one row of the persistent seen-set. An entry is written
// only after the item's side effects have completed: after the platform
// confirmed the post, or after the item was definitively classified as
// non-actionable or unprocessable. Never before.
type SeenEntry struct {
	ItemID      string      `json:"item_id" badgerhold:"key"`
	ContentHash string      `json:"content_hash,omitempty" badgerholdIndex:"ContentHash"`
	Summary     string      `json:"summary,omitempty"`
	Outcome     SeenOutcome `json:"outcome"`
	Attempts    int         `json:"attempts,omitempty"`
	Reason      string      `json:"reason,omitempty"`
	SeenAt      time.Time   `json:"seen_at"`
}

// AttemptRecord tracks retry counts for items that failed without being
// marked seen, so the bound survives restarts.
type AttemptRecord struct {
	ItemID    string    `json:"item_id" badgerhold:"key"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}
