package charts

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
)

type fakeKV struct {
	values map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: make(map[string]string)}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", interfaces.ErrKeyNotFound
	}
	return value, nil
}

func (f *fakeKV) Set(_ context.Context, key, value, _ string) error {
	f.values[key] = value
	return nil
}

func (f *fakeKV) Upsert(_ context.Context, key, value, _ string) (bool, error) {
	_, existed := f.values[key]
	f.values[key] = value
	return !existed, nil
}

func (f *fakeKV) Delete(_ context.Context, key string) error {
	delete(f.values, key)
	return nil
}

func (f *fakeKV) List(_ context.Context) ([]interfaces.KeyValuePair, error) {
	return nil, nil
}

func (f *fakeKV) ListByPrefix(_ context.Context, _ string) ([]interfaces.KeyValuePair, error) {
	return nil, nil
}

func newTestCharts(kv interfaces.KeyValueStorage) *Service {
	config := &common.ChartsConfig{
		Enabled:  true,
		CacheTTL: 168 * time.Hour,
	}
	return NewService(config, kv, nil, arbor.NewLogger())
}

func TestChartURL(t *testing.T) {
	service := newTestCharts(newFakeKV())

	if got := service.chartURL("NYSEARCA:SPY"); got != "https://www.tradingview.com/chart/?symbol=NYSEARCA%3ASPY" {
		t.Errorf("Unexpected chart URL %q", got)
	}

	service.config.BaseURL = "https://charts.example.com/"
	if got := service.chartURL("NASDAQ:AAPL"); got != "https://charts.example.com/chart/?symbol=NASDAQ%3AAAPL" {
		t.Errorf("Unexpected chart URL %q", got)
	}
}

func TestSymbolInvalid(t *testing.T) {
	ghost := `<html><body><div><img alt="Invalid symbol" src="ghost.png"></div></body></html>`
	if !symbolInvalid(ghost) {
		t.Error("Expected ghost image page flagged invalid")
	}

	textOnly := `<html><body><span>Invalid symbol</span></body></html>`
	if !symbolInvalid(textOnly) {
		t.Error("Expected invalid-symbol text flagged")
	}

	chart := `<html><body><canvas id="chart"></canvas><span>NASDAQ:AAPL</span></body></html>`
	if symbolInvalid(chart) {
		t.Error("Expected normal chart page accepted")
	}
}

func TestResolveSymbolCacheHit(t *testing.T) {
	kv := newFakeKV()
	entry, _ := json.Marshal(cachedSymbol{Symbol: "NYSEARCA:SPY", ResolvedAt: time.Now()})
	kv.values[symbolCacheKey("SPY")] = string(entry)

	service := newTestCharts(kv)

	symbol, err := service.ResolveSymbol(context.Background(), "spy")
	if err != nil {
		t.Fatalf("ResolveSymbol failed: %v", err)
	}
	if symbol != "NYSEARCA:SPY" {
		t.Errorf("Expected cached symbol, got %s", symbol)
	}
}

func TestResolveSymbolCacheExpired(t *testing.T) {
	kv := newFakeKV()
	entry, _ := json.Marshal(cachedSymbol{
		Symbol:     "NYSEARCA:SPY",
		ResolvedAt: time.Now().Add(-200 * time.Hour),
	})
	kv.values[symbolCacheKey("SPY")] = string(entry)

	service := newTestCharts(kv)

	if _, ok := service.cachedSymbol(context.Background(), "SPY"); ok {
		t.Error("Expected expired cache entry ignored")
	}
}

func TestResolveSymbolQualifiedPassthrough(t *testing.T) {
	service := newTestCharts(newFakeKV())

	symbol, err := service.ResolveSymbol(context.Background(), "NASDAQ:AAPL")
	if err != nil {
		t.Fatalf("ResolveSymbol failed: %v", err)
	}
	if symbol != "NASDAQ:AAPL" {
		t.Errorf("Expected qualified symbol returned as-is, got %s", symbol)
	}
}

func TestCaptureDisabled(t *testing.T) {
	service := NewService(&common.ChartsConfig{Enabled: false}, newFakeKV(), nil, arbor.NewLogger())

	if _, err := service.Capture(context.Background(), "SPY"); err == nil {
		t.Error("Expected error when capture is disabled")
	}
}
