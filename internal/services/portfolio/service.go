// -----------------------------------------------------------------------
// Portfolio Service - simulated trading driven by published signals
// -----------------------------------------------------------------------

package portfolio

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// Defaults applied when the configured decimal strings are empty.
const (
	DefaultInitialCash  = "10000"
	DefaultCashReserve  = "1000"
	DefaultPositionSize = "500"
)

// Service applies published signals to a simulated portfolio: buys are
// sized against available cash above the reserve floor, sells close the
// whole position. Prices come from the quote provider; when no price is
// available the trade is skipped, never the post.
type Service struct {
	config *common.PortfolioConfig
	store  interfaces.PortfolioStore
	quotes interfaces.QuoteProvider
	logger arbor.ILogger
	now    func() time.Time

	initialCash  decimal.Decimal
	cashReserve  decimal.Decimal
	positionSize decimal.Decimal
}

// NewService creates the portfolio service. The quote provider may be
// nil, in which case every trade is skipped with a warning.
func NewService(config *common.PortfolioConfig, store interfaces.PortfolioStore, quotes interfaces.QuoteProvider, logger arbor.ILogger) (*Service, error) {
	initialCash, err := parseAmount(config.InitialCash, DefaultInitialCash)
	if err != nil {
		return nil, fmt.Errorf("invalid initial_cash: %w", err)
	}
	cashReserve, err := parseAmount(config.CashReserve, DefaultCashReserve)
	if err != nil {
		return nil, fmt.Errorf("invalid cash_reserve: %w", err)
	}
	positionSize, err := parseAmount(config.PositionSize, DefaultPositionSize)
	if err != nil {
		return nil, fmt.Errorf("invalid position_size: %w", err)
	}
	if positionSize.IsNegative() || cashReserve.IsNegative() || initialCash.IsNegative() {
		return nil, fmt.Errorf("portfolio amounts must not be negative")
	}

	return &Service{
		config:       config,
		store:        store,
		quotes:       quotes,
		logger:       logger,
		now:          time.Now,
		initialCash:  initialCash,
		cashReserve:  cashReserve,
		positionSize: positionSize,
	}, nil
}

// Apply executes the simulated trade for a published signal. A nil trade
// with a nil error means no trade applied (hold, no price, no cash, or
// nothing to sell). Errors are storage failures only.
func (s *Service) Apply(ctx context.Context, signal *models.Signal, instrument string) (*models.Trade, error) {
	if !s.config.Enabled {
		return nil, nil
	}

	code := strings.ToUpper(strings.TrimSpace(instrument))
	if code == "" {
		return nil, nil
	}

	var side models.TradeSide
	switch signal.Action {
	case models.ActionBuy:
		side = models.TradeBuy
	case models.ActionSell:
		side = models.TradeSell
	default:
		return nil, nil
	}

	if s.quotes == nil {
		s.logger.Warn().
			Str("instrument", code).
			Msg("No quote provider configured, trade skipped")
		return nil, nil
	}

	price, err := s.quotes.LastPrice(ctx, code)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("instrument", code).
			Msg("Price unavailable, trade skipped")
		return nil, nil
	}

	if side == models.TradeBuy {
		return s.buy(ctx, signal, code, price)
	}
	return s.sell(ctx, signal, code, price)
}

func (s *Service) buy(ctx context.Context, signal *models.Signal, instrument string, price decimal.Decimal) (*models.Trade, error) {
	state, err := s.store.GetState(ctx, s.initialCash.String())
	if err != nil {
		return nil, err
	}

	available := state.Cash.Sub(s.cashReserve)
	budget := s.positionSize
	if available.LessThan(budget) {
		budget = available
	}
	if !budget.IsPositive() {
		s.logger.Warn().
			Str("instrument", instrument).
			Str("cash", state.Cash.String()).
			Msg("Insufficient cash for trade")
		return nil, nil
	}

	// Whole shares only.
	quantity := budget.Div(price).Floor()
	if !quantity.IsPositive() {
		s.logger.Warn().
			Str("instrument", instrument).
			Str("price", price.String()).
			Msg("Price exceeds trade budget, trade skipped")
		return nil, nil
	}
	cost := quantity.Mul(price)

	now := s.now().UTC()
	position, err := s.store.GetPosition(ctx, instrument)
	if err != nil {
		return nil, err
	}
	if position != nil {
		newQuantity := position.Quantity.Add(quantity)
		newCost := position.CostBasis().Add(cost)
		position.AvgPrice = newCost.Div(newQuantity)
		position.Quantity = newQuantity
		position.UpdatedAt = now
	} else {
		position = &models.Position{
			Instrument: instrument,
			Quantity:   quantity,
			AvgPrice:   price,
			OpenedAt:   now,
			UpdatedAt:  now,
		}
	}
	if err := s.store.UpsertPosition(ctx, *position); err != nil {
		return nil, err
	}

	state.Cash = state.Cash.Sub(cost)
	state.UpdatedAt = now
	if err := s.store.SaveState(ctx, state); err != nil {
		return nil, err
	}

	trade := models.Trade{
		ID:         common.NewTradeID(),
		Instrument: instrument,
		Side:       models.TradeBuy,
		Quantity:   quantity,
		Price:      price,
		ItemID:     signal.ItemID,
		Rationale:  signal.Rationale,
		ExecutedAt: now,
	}
	if err := s.store.AppendTrade(ctx, trade); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("instrument", instrument).
		Str("quantity", quantity.String()).
		Str("price", price.String()).
		Str("cash", state.Cash.String()).
		Msg("Simulated buy")

	return &trade, nil
}

func (s *Service) sell(ctx context.Context, signal *models.Signal, instrument string, price decimal.Decimal) (*models.Trade, error) {
	position, err := s.store.GetPosition(ctx, instrument)
	if err != nil {
		return nil, err
	}
	if position == nil || !position.Quantity.IsPositive() {
		s.logger.Debug().
			Str("instrument", instrument).
			Msg("No position to sell, short selling not simulated")
		return nil, nil
	}

	state, err := s.store.GetState(ctx, s.initialCash.String())
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	proceeds := position.Quantity.Mul(price)
	quantity := position.Quantity

	position.Quantity = decimal.Zero
	position.UpdatedAt = now
	if err := s.store.UpsertPosition(ctx, *position); err != nil {
		return nil, err
	}

	state.Cash = state.Cash.Add(proceeds)
	state.UpdatedAt = now
	if err := s.store.SaveState(ctx, state); err != nil {
		return nil, err
	}

	trade := models.Trade{
		ID:         common.NewTradeID(),
		Instrument: instrument,
		Side:       models.TradeSell,
		Quantity:   quantity,
		Price:      price,
		ItemID:     signal.ItemID,
		Rationale:  signal.Rationale,
		ExecutedAt: now,
	}
	if err := s.store.AppendTrade(ctx, trade); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("instrument", instrument).
		Str("quantity", quantity.String()).
		Str("price", price.String()).
		Str("cash", state.Cash.String()).
		Msg("Simulated sell")

	return &trade, nil
}

// Snapshot returns the current portfolio for digest reporting.
func (s *Service) Snapshot(ctx context.Context) (*models.PortfolioSnapshot, error) {
	state, err := s.store.GetState(ctx, s.initialCash.String())
	if err != nil {
		return nil, err
	}
	positions, err := s.store.ListPositions(ctx)
	if err != nil {
		return nil, err
	}
	tradeCount, err := s.store.CountTrades(ctx)
	if err != nil {
		return nil, err
	}

	return &models.PortfolioSnapshot{
		Cash:       state.Cash,
		Positions:  positions,
		TradeCount: tradeCount,
		TakenAt:    s.now().UTC(),
	}, nil
}

// TotalValue marks the snapshot's positions at current prices and adds
// cash. Positions without a quote fall back to their average entry price.
func (s *Service) TotalValue(ctx context.Context, snapshot *models.PortfolioSnapshot) decimal.Decimal {
	total := snapshot.Cash
	for _, position := range snapshot.Positions {
		price := position.AvgPrice
		if s.quotes != nil {
			if quoted, err := s.quotes.LastPrice(ctx, position.Instrument); err == nil {
				price = quoted
			}
		}
		total = total.Add(position.MarketValue(price))
	}
	return total
}

// InitialCash returns the configured starting cash, for P&L reporting.
func (s *Service) InitialCash() decimal.Decimal {
	return s.initialCash
}

func parseAmount(value, fallback string) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		value = fallback
	}
	return decimal.NewFromString(value)
}
