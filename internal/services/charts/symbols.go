package charts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	symbolCachePrefix = "chart_symbol:"

	// DefaultCacheTTL keeps resolved symbols for a week before the
	// exchange search runs again.
	DefaultCacheTTL = 168 * time.Hour
)

type cachedSymbol struct {
	Symbol     string    `json:"symbol"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// ResolveSymbol maps a bare ticker code onto the exchange-qualified
// symbol the chart site accepts, trying the configured exchange
// prefixes in order. Hits are cached in the key/value store.
func (s *Service) ResolveSymbol(ctx context.Context, code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", fmt.Errorf("empty instrument code")
	}

	if strings.Contains(code, ":") {
		return code, nil
	}

	if symbol, ok := s.cachedSymbol(ctx, code); ok {
		return symbol, nil
	}

	for _, exchange := range s.exchanges {
		candidate := exchange + ":" + code

		html, err := s.pageHTML(ctx, candidate)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("symbol", candidate).
				Msg("Chart symbol check failed")
			continue
		}

		if symbolInvalid(html) {
			continue
		}

		s.storeSymbol(ctx, code, candidate)
		s.logger.Debug().
			Str("instrument", code).
			Str("symbol", candidate).
			Msg("Chart symbol resolved")
		return candidate, nil
	}

	return "", fmt.Errorf("no chart symbol found for %s", code)
}

func (s *Service) cachedSymbol(ctx context.Context, code string) (string, bool) {
	value, err := s.kv.Get(ctx, symbolCacheKey(code))
	if err != nil {
		return "", false
	}

	var entry cachedSymbol
	if err := json.Unmarshal([]byte(value), &entry); err != nil {
		return "", false
	}

	ttl := s.config.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if entry.Symbol == "" || time.Since(entry.ResolvedAt) > ttl {
		return "", false
	}

	return entry.Symbol, true
}

func (s *Service) storeSymbol(ctx context.Context, code, symbol string) {
	data, err := json.Marshal(cachedSymbol{Symbol: symbol, ResolvedAt: time.Now().UTC()})
	if err != nil {
		return
	}
	if err := s.kv.Set(ctx, symbolCacheKey(code), string(data), "resolved chart symbol for "+code); err != nil {
		s.logger.Warn().Err(err).Str("instrument", code).Msg("Failed to cache chart symbol")
	}
}

func symbolCacheKey(code string) string {
	return symbolCachePrefix + strings.ToUpper(code)
}

// symbolInvalid scans the rendered chart page for the invalid-symbol
// placeholder the site shows instead of a chart.
func symbolInvalid(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}

	if doc.Find(`img[alt="Invalid symbol"]`).Length() > 0 {
		return true
	}
	return strings.Contains(doc.Text(), "Invalid symbol")
}
