package interfaces

import "context"

// ChartProvider resolves chart symbols and captures chart images. The
// provider is optional: any error is logged and the post proceeds
// without a chart, so implementations never need retry logic of their
// own.
type ChartProvider interface {
	// ResolveSymbol returns the exchange-qualified chart symbol for an
	// instrument code (e.g. "SPY" -> "NYSEARCA:SPY")
	ResolveSymbol(ctx context.Context, code string) (string, error)

	// Capture returns PNG bytes for the instrument's chart
	Capture(ctx context.Context, instrument string) ([]byte, error)
}
