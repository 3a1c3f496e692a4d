package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide is the direction of a simulated trade.
type TradeSide string

const (
	TradeBuy  TradeSide = "BUY"
	TradeSell TradeSide = "SELL"
)

// Position is a simulated holding in one instrument.
type Position struct {
	Instrument string          `json:"instrument" badgerhold:"key"`
	Quantity   decimal.Decimal `json:"quantity"`
	AvgPrice   decimal.Decimal `json:"avg_price"`
	OpenedAt   time.Time       `json:"opened_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// MarketValue returns quantity * price.
func (p *Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	return p.Quantity.Mul(price)
}

// CostBasis returns quantity * average entry price.
func (p *Position) CostBasis() decimal.Decimal {
	return p.Quantity.Mul(p.AvgPrice)
}

// Trade is one append-only simulated trade record.
type Trade struct {
	ID         string          `json:"id" badgerhold:"key"`
	Instrument string          `json:"instrument" badgerholdIndex:"Instrument"`
	Side       TradeSide       `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	ItemID     string          `json:"item_id,omitempty"`
	Rationale  string          `json:"rationale,omitempty"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// PortfolioState is the persisted cash balance and bookkeeping for the
// simulated portfolio. Positions and trades are stored separately.
type PortfolioState struct {
	Key       string          `json:"key" badgerhold:"key"`
	Cash      decimal.Decimal `json:"cash"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PortfolioSnapshot is a point-in-time summary used by the digest.
type PortfolioSnapshot struct {
	Cash       decimal.Decimal `json:"cash"`
	Positions  []Position      `json:"positions"`
	TradeCount int             `json:"trade_count"`
	TakenAt    time.Time       `json:"taken_at"`
}
