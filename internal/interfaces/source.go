package interfaces

import (
	"context"

	"github.com/ternarybob/nuntius/internal/models"
)

// Source is one upstream news adapter. Fetch returns the items available
// since the previous call, oldest first, with source-namespaced ids.
// Streaming adapters buffer pushed items internally and return the
// buffered batch from Fetch, so the orchestrator drains them on its own
// cadence. Recoverable failures are TransientSourceErrors.
type Source interface {
	// Name returns the adapter name used for cursors and logging
	Name() string

	// Fetch returns new raw items, oldest first
	Fetch(ctx context.Context) ([]models.RawItem, error)
}

// RunnableSource is implemented by adapters that maintain a background
// connection (websocket streams). Start is non-blocking; Stop waits for
// the connection teardown.
type RunnableSource interface {
	Source

	Start(ctx context.Context) error
	Stop()
}
