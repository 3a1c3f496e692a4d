package interfaces

import (
	"context"

	"github.com/shopspring/decimal"
)

// QuoteProvider returns the last traded price for an instrument code.
// Prices mark simulated trades, so a failed lookup skips the trade
// rather than failing the pipeline.
type QuoteProvider interface {
	// LastPrice returns the most recent price for the instrument
	LastPrice(ctx context.Context, instrument string) (decimal.Decimal, error)
}
