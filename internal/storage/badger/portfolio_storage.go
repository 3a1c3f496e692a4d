package badger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// portfolioStateKey is the single row key for the cash state.
const portfolioStateKey = "portfolio"

// PortfolioStorage implements the PortfolioStore interface for Badger
type PortfolioStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.PortfolioStore = (*PortfolioStorage)(nil)

// NewPortfolioStorage creates a new PortfolioStorage instance
func NewPortfolioStorage(db *BadgerDB, logger arbor.ILogger) *PortfolioStorage {
	return &PortfolioStorage{
		db:     db,
		logger: logger,
	}
}

// GetState returns the cash state, creating it with the given initial
// cash when absent
func (s *PortfolioStorage) GetState(ctx context.Context, initialCash string) (models.PortfolioState, error) {
	var state models.PortfolioState
	err := s.db.Store().Get(portfolioStateKey, &state)
	if err == nil {
		return state, nil
	}
	if err != badgerhold.ErrNotFound {
		return models.PortfolioState{}, &models.PersistenceError{Op: "portfolio state lookup", Err: err}
	}

	cash, parseErr := decimal.NewFromString(initialCash)
	if parseErr != nil {
		cash = decimal.NewFromInt(10000)
	}

	state = models.PortfolioState{
		Key:       portfolioStateKey,
		Cash:      cash,
		UpdatedAt: time.Now(),
	}
	if err := s.db.Store().Upsert(portfolioStateKey, &state); err != nil {
		return models.PortfolioState{}, &models.PersistenceError{Op: "portfolio state init", Err: err}
	}

	s.logger.Info().Str("cash", cash.String()).Msg("Simulated portfolio initialized")
	return state, nil
}

// SaveState persists the cash state
func (s *PortfolioStorage) SaveState(ctx context.Context, state models.PortfolioState) error {
	state.Key = portfolioStateKey
	state.UpdatedAt = time.Now()
	if err := s.db.Store().Upsert(portfolioStateKey, &state); err != nil {
		return &models.PersistenceError{Op: "portfolio state save", Err: err}
	}
	return nil
}

// GetPosition returns the position for an instrument, or nil
func (s *PortfolioStorage) GetPosition(ctx context.Context, instrument string) (*models.Position, error) {
	var position models.Position
	err := s.db.Store().Get(instrument, &position)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, &models.PersistenceError{Op: "position lookup", Err: err}
	}
	return &position, nil
}

// UpsertPosition inserts or updates a position; zero-quantity positions
// are removed
func (s *PortfolioStorage) UpsertPosition(ctx context.Context, position models.Position) error {
	if position.Quantity.IsZero() {
		err := s.db.Store().Delete(position.Instrument, &models.Position{})
		if err != nil && err != badgerhold.ErrNotFound {
			return &models.PersistenceError{Op: "position delete", Err: err}
		}
		return nil
	}

	position.UpdatedAt = time.Now()
	if err := s.db.Store().Upsert(position.Instrument, &position); err != nil {
		return &models.PersistenceError{Op: "position upsert", Err: err}
	}
	return nil
}

// ListPositions returns all open positions
func (s *PortfolioStorage) ListPositions(ctx context.Context) ([]models.Position, error) {
	var positions []models.Position
	err := s.db.Store().Find(&positions, badgerhold.Where("Instrument").Ne("").SortBy("Instrument"))
	if err != nil {
		return nil, &models.PersistenceError{Op: "position list", Err: err}
	}
	return positions, nil
}

// AppendTrade stores one trade record
func (s *PortfolioStorage) AppendTrade(ctx context.Context, trade models.Trade) error {
	if trade.ID == "" {
		trade.ID = common.NewTradeID()
	}
	if trade.ExecutedAt.IsZero() {
		trade.ExecutedAt = time.Now()
	}

	if err := s.db.Store().Insert(trade.ID, &trade); err != nil {
		return &models.PersistenceError{Op: "trade append", Err: err}
	}
	return nil
}

// CountTrades returns the number of recorded trades
func (s *PortfolioStorage) CountTrades(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Trade{}, nil)
	if err != nil {
		return 0, &models.PersistenceError{Op: "trade count", Err: err}
	}
	return int(count), nil
}
