package portfolio

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

type fakeStore struct {
	state     *models.PortfolioState
	positions map[string]models.Position
	trades    []models.Trade
}

func newFakeStore() *fakeStore {
	return &fakeStore{positions: make(map[string]models.Position)}
}

func (f *fakeStore) GetState(_ context.Context, initialCash string) (models.PortfolioState, error) {
	if f.state == nil {
		cash, err := decimal.NewFromString(initialCash)
		if err != nil {
			return models.PortfolioState{}, err
		}
		f.state = &models.PortfolioState{Key: "portfolio", Cash: cash}
	}
	return *f.state, nil
}

func (f *fakeStore) SaveState(_ context.Context, state models.PortfolioState) error {
	f.state = &state
	return nil
}

func (f *fakeStore) GetPosition(_ context.Context, instrument string) (*models.Position, error) {
	position, ok := f.positions[instrument]
	if !ok {
		return nil, nil
	}
	return &position, nil
}

func (f *fakeStore) UpsertPosition(_ context.Context, position models.Position) error {
	if !position.Quantity.IsPositive() {
		delete(f.positions, position.Instrument)
		return nil
	}
	f.positions[position.Instrument] = position
	return nil
}

func (f *fakeStore) ListPositions(_ context.Context) ([]models.Position, error) {
	var positions []models.Position
	for _, position := range f.positions {
		positions = append(positions, position)
	}
	return positions, nil
}

func (f *fakeStore) AppendTrade(_ context.Context, trade models.Trade) error {
	f.trades = append(f.trades, trade)
	return nil
}

func (f *fakeStore) CountTrades(_ context.Context) (int, error) {
	return len(f.trades), nil
}

type fakeQuotes struct {
	prices map[string]decimal.Decimal
	err    error
}

func (f *fakeQuotes) LastPrice(_ context.Context, instrument string) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Zero, f.err
	}
	price, ok := f.prices[instrument]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price for %s", instrument)
	}
	return price, nil
}

func newTestService(t *testing.T, store *fakeStore, quotes *fakeQuotes) *Service {
	t.Helper()
	config := &common.PortfolioConfig{
		Enabled:      true,
		InitialCash:  "10000",
		CashReserve:  "1000",
		PositionSize: "500",
	}
	var provider interfaces.QuoteProvider
	if quotes != nil {
		provider = quotes
	}
	service, err := NewService(config, store, provider, arbor.NewLogger())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	service.now = func() time.Time {
		return time.Date(2026, 8, 21, 14, 30, 0, 0, time.UTC)
	}
	return service
}

func buySignal() *models.Signal {
	return &models.Signal{
		ItemID:    "rss:item-1",
		Summary:   "Payrolls beat forecast",
		Sentiment: models.SentimentPositive,
		Action:    models.ActionBuy,
		Rationale: "strong labor market",
	}
}

func sellSignal() *models.Signal {
	signal := buySignal()
	signal.Action = models.ActionSell
	return signal
}

func TestApplyBuyOpensPosition(t *testing.T) {
	store := newFakeStore()
	quotes := &fakeQuotes{prices: map[string]decimal.Decimal{"SPY": decimal.NewFromInt(100)}}
	service := newTestService(t, store, quotes)

	trade, err := service.Apply(context.Background(), buySignal(), "SPY")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if trade == nil {
		t.Fatal("Expected a trade")
	}
	if trade.Side != models.TradeBuy {
		t.Errorf("Expected BUY, got %s", trade.Side)
	}
	if !trade.Quantity.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected quantity 5, got %s", trade.Quantity)
	}
	if !store.state.Cash.Equal(decimal.NewFromInt(9500)) {
		t.Errorf("Expected cash 9500, got %s", store.state.Cash)
	}

	position := store.positions["SPY"]
	if !position.Quantity.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected position quantity 5, got %s", position.Quantity)
	}
	if !position.AvgPrice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected avg price 100, got %s", position.AvgPrice)
	}
	if trade.ItemID != "rss:item-1" {
		t.Errorf("Expected trade linked to item, got %q", trade.ItemID)
	}
}

func TestApplyBuyAveragesIntoExistingPosition(t *testing.T) {
	store := newFakeStore()
	store.positions["SPY"] = models.Position{
		Instrument: "SPY",
		Quantity:   decimal.NewFromInt(5),
		AvgPrice:   decimal.NewFromInt(100),
	}
	store.state = &models.PortfolioState{Key: "portfolio", Cash: decimal.NewFromInt(9500)}

	quotes := &fakeQuotes{prices: map[string]decimal.Decimal{"SPY": decimal.NewFromInt(120)}}
	service := newTestService(t, store, quotes)

	trade, err := service.Apply(context.Background(), buySignal(), "SPY")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !trade.Quantity.Equal(decimal.NewFromInt(4)) {
		t.Errorf("Expected quantity 4 at price 120, got %s", trade.Quantity)
	}

	position := store.positions["SPY"]
	if !position.Quantity.Equal(decimal.NewFromInt(9)) {
		t.Errorf("Expected position quantity 9, got %s", position.Quantity)
	}
	// (5*100 + 4*120) / 9
	expectedAvg := decimal.NewFromInt(980).Div(decimal.NewFromInt(9))
	if !position.AvgPrice.Equal(expectedAvg) {
		t.Errorf("Expected avg price %s, got %s", expectedAvg, position.AvgPrice)
	}
	if !store.state.Cash.Equal(decimal.NewFromInt(9020)) {
		t.Errorf("Expected cash 9020, got %s", store.state.Cash)
	}
}

func TestApplyBuyRespectsCashReserve(t *testing.T) {
	store := newFakeStore()
	store.state = &models.PortfolioState{Key: "portfolio", Cash: decimal.NewFromInt(1300)}
	quotes := &fakeQuotes{prices: map[string]decimal.Decimal{"SPY": decimal.NewFromInt(100)}}
	service := newTestService(t, store, quotes)

	trade, err := service.Apply(context.Background(), buySignal(), "SPY")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if trade == nil {
		t.Fatal("Expected a trade from the cash above the reserve")
	}
	if !trade.Quantity.Equal(decimal.NewFromInt(3)) {
		t.Errorf("Expected quantity 3 from a 300 budget, got %s", trade.Quantity)
	}
	if !store.state.Cash.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected cash at the reserve floor, got %s", store.state.Cash)
	}

	trade, err = service.Apply(context.Background(), buySignal(), "SPY")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if trade != nil {
		t.Error("Expected no trade once cash is at the reserve floor")
	}
	if len(store.trades) != 1 {
		t.Errorf("Expected 1 trade record, got %d", len(store.trades))
	}
}

func TestApplyBuyPriceExceedsBudget(t *testing.T) {
	store := newFakeStore()
	quotes := &fakeQuotes{prices: map[string]decimal.Decimal{"BRK": decimal.NewFromInt(700)}}
	service := newTestService(t, store, quotes)

	trade, err := service.Apply(context.Background(), buySignal(), "BRK")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if trade != nil {
		t.Error("Expected no trade when one share exceeds the budget")
	}
	if len(store.trades) != 0 {
		t.Errorf("Expected no trade records, got %d", len(store.trades))
	}
}

func TestApplySellClosesPosition(t *testing.T) {
	store := newFakeStore()
	store.positions["SPY"] = models.Position{
		Instrument: "SPY",
		Quantity:   decimal.NewFromInt(5),
		AvgPrice:   decimal.NewFromInt(100),
	}
	store.state = &models.PortfolioState{Key: "portfolio", Cash: decimal.NewFromInt(9500)}

	quotes := &fakeQuotes{prices: map[string]decimal.Decimal{"SPY": decimal.NewFromInt(110)}}
	service := newTestService(t, store, quotes)

	trade, err := service.Apply(context.Background(), sellSignal(), "SPY")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if trade == nil {
		t.Fatal("Expected a trade")
	}
	if trade.Side != models.TradeSell {
		t.Errorf("Expected SELL, got %s", trade.Side)
	}
	if !trade.Quantity.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected the whole position sold, got %s", trade.Quantity)
	}
	if !store.state.Cash.Equal(decimal.NewFromInt(10050)) {
		t.Errorf("Expected cash 10050, got %s", store.state.Cash)
	}
	if _, ok := store.positions["SPY"]; ok {
		t.Error("Expected the position removed after the sell")
	}
}

func TestApplySellWithoutPosition(t *testing.T) {
	store := newFakeStore()
	quotes := &fakeQuotes{prices: map[string]decimal.Decimal{"SPY": decimal.NewFromInt(110)}}
	service := newTestService(t, store, quotes)

	trade, err := service.Apply(context.Background(), sellSignal(), "SPY")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if trade != nil {
		t.Error("Expected no trade without a position")
	}
	if len(store.trades) != 0 {
		t.Errorf("Expected no trade records, got %d", len(store.trades))
	}
}

func TestApplyHoldDoesNothing(t *testing.T) {
	store := newFakeStore()
	service := newTestService(t, store, &fakeQuotes{})

	signal := buySignal()
	signal.Action = models.ActionHold

	trade, err := service.Apply(context.Background(), signal, "SPY")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if trade != nil {
		t.Error("Expected no trade for HOLD")
	}
}

func TestApplyPriceUnavailableSkipsTrade(t *testing.T) {
	store := newFakeStore()
	quotes := &fakeQuotes{err: fmt.Errorf("feed down")}
	service := newTestService(t, store, quotes)

	trade, err := service.Apply(context.Background(), buySignal(), "SPY")
	if err != nil {
		t.Fatalf("Expected no error when the feed is down, got %v", err)
	}
	if trade != nil {
		t.Error("Expected no trade without a price")
	}
}

func TestApplyDisabled(t *testing.T) {
	store := newFakeStore()
	config := &common.PortfolioConfig{Enabled: false, InitialCash: "10000"}
	service, err := NewService(config, store, &fakeQuotes{}, arbor.NewLogger())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	trade, err := service.Apply(context.Background(), buySignal(), "SPY")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if trade != nil {
		t.Error("Expected no trade when the portfolio is disabled")
	}
}

func TestSnapshotAndTotalValue(t *testing.T) {
	store := newFakeStore()
	store.positions["SPY"] = models.Position{
		Instrument: "SPY",
		Quantity:   decimal.NewFromInt(5),
		AvgPrice:   decimal.NewFromInt(100),
	}
	store.state = &models.PortfolioState{Key: "portfolio", Cash: decimal.NewFromInt(9500)}
	store.trades = []models.Trade{{ID: "trade_1"}}

	quotes := &fakeQuotes{prices: map[string]decimal.Decimal{"SPY": decimal.NewFromInt(110)}}
	service := newTestService(t, store, quotes)

	snapshot, err := service.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !snapshot.Cash.Equal(decimal.NewFromInt(9500)) {
		t.Errorf("Expected cash 9500, got %s", snapshot.Cash)
	}
	if len(snapshot.Positions) != 1 {
		t.Fatalf("Expected 1 position, got %d", len(snapshot.Positions))
	}
	if snapshot.TradeCount != 1 {
		t.Errorf("Expected 1 trade, got %d", snapshot.TradeCount)
	}

	total := service.TotalValue(context.Background(), snapshot)
	if !total.Equal(decimal.NewFromInt(10050)) {
		t.Errorf("Expected total value 10050, got %s", total)
	}
}

func TestTotalValueFallsBackToAvgPrice(t *testing.T) {
	store := newFakeStore()
	store.positions["SPY"] = models.Position{
		Instrument: "SPY",
		Quantity:   decimal.NewFromInt(5),
		AvgPrice:   decimal.NewFromInt(100),
	}
	store.state = &models.PortfolioState{Key: "portfolio", Cash: decimal.NewFromInt(9500)}

	quotes := &fakeQuotes{err: fmt.Errorf("feed down")}
	service := newTestService(t, store, quotes)

	snapshot, err := service.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	total := service.TotalValue(context.Background(), snapshot)
	if !total.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("Expected total value 10000 at entry prices, got %s", total)
	}
}

func TestNewServiceInvalidAmount(t *testing.T) {
	config := &common.PortfolioConfig{Enabled: true, InitialCash: "not-a-number"}
	if _, err := NewService(config, newFakeStore(), nil, arbor.NewLogger()); err == nil {
		t.Fatal("Expected an error for an invalid amount")
	}
}
