// Package quotes resolves last-trade prices through the EODHD real-time
// API, with a short-lived cache so repeated signals for one instrument
// inside a cycle reuse the same mark.
package quotes

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/eodhd"
	"github.com/ternarybob/nuntius/internal/interfaces"
)

const (
	// DefaultExchange is the exchange suffix for unqualified instruments.
	DefaultExchange = "US"

	// DefaultCacheTTL bounds how stale a reused price may be.
	DefaultCacheTTL = 30 * time.Second
)

type cachedPrice struct {
	price     decimal.Decimal
	fetchedAt time.Time
}

// Service provides instrument prices for the simulated portfolio.
type Service struct {
	client   *eodhd.Client
	exchange string
	logger   arbor.ILogger

	mu    sync.Mutex
	cache map[string]cachedPrice
	ttl   time.Duration
	now   func() time.Time
}

var _ interfaces.QuoteProvider = (*Service)(nil)

// NewService creates the quote service from configuration.
func NewService(config *common.QuotesConfig, logger arbor.ILogger) (*Service, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("EODHD API key not configured")
	}

	opts := []eodhd.ClientOption{eodhd.WithLogger(logger)}
	if config.BaseURL != "" {
		opts = append(opts, eodhd.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, eodhd.WithTimeout(config.Timeout))
	}
	if config.RateLimit > 0 {
		opts = append(opts, eodhd.WithRateLimit(config.RateLimit))
	}

	exchange := strings.ToUpper(strings.TrimSpace(config.Exchange))
	if exchange == "" {
		exchange = DefaultExchange
	}

	return &Service{
		client:   eodhd.NewClient(config.APIKey, opts...),
		exchange: exchange,
		logger:   logger,
		cache:    make(map[string]cachedPrice),
		ttl:      DefaultCacheTTL,
		now:      time.Now,
	}, nil
}

// LastPrice returns the most recent price for the instrument, preferring
// the live close and falling back to the previous session close when the
// feed reports no current trade.
func (s *Service) LastPrice(ctx context.Context, instrument string) (decimal.Decimal, error) {
	code := strings.ToUpper(strings.TrimSpace(instrument))
	if code == "" {
		return decimal.Zero, fmt.Errorf("empty instrument")
	}

	if price, ok := s.cached(code); ok {
		return price, nil
	}

	symbol := code
	if !strings.Contains(symbol, ".") {
		symbol = symbol + "." + s.exchange
	}

	quote, err := s.client.GetRealTimeQuote(ctx, symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("quote lookup for %s failed: %w", symbol, err)
	}

	raw := quote.Close
	if raw <= 0 {
		raw = quote.PreviousClose
	}
	if raw <= 0 {
		return decimal.Zero, fmt.Errorf("no usable price for %s", symbol)
	}

	price := decimal.NewFromFloat(raw)
	s.store(code, price)

	s.logger.Debug().
		Str("symbol", symbol).
		Str("price", price.String()).
		Msg("Resolved instrument price")

	return price, nil
}

func (s *Service) cached(code string) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache[code]
	if !ok || s.now().Sub(entry.fetchedAt) > s.ttl {
		return decimal.Zero, false
	}
	return entry.price, true
}

func (s *Service) store(code string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[code] = cachedPrice{price: price, fetchedAt: s.now()}
}
