package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostBasis is the result of replaying one (user, asset) ledger
type CostBasis struct {
	AverageCost       decimal.Decimal `json:"average_cost"`
	RealizedPnL       decimal.Decimal `json:"realized_pnl"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`

	// HasPricedInflow is false until at least one inflow carried a price;
	// until then the balance has no known average cost.
	HasPricedInflow bool `json:"has_priced_inflow"`

	// UnmatchedQuantity is outflow quantity that found no lot left in the
	// FIFO queue. It is subtracted from RemainingQuantity but realizes nothing.
	UnmatchedQuantity decimal.Decimal `json:"unmatched_quantity"`
}

// AllocationItem is one asset's share of the portfolio value
type AllocationItem struct {
	Asset      string          `json:"asset"`
	Value      decimal.Decimal `json:"value"`
	Percentage decimal.Decimal `json:"percentage"`
	Color      string          `json:"color"`
}

// AssetHolding is the valued view of one balance
type AssetHolding struct {
	Asset         string           `json:"asset"`
	Quantity      decimal.Decimal  `json:"quantity"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	Value         *decimal.Decimal `json:"value,omitempty"`
	AverageCost   *decimal.Decimal `json:"average_cost,omitempty"`
	UnrealizedPnL *decimal.Decimal `json:"unrealized_pnl,omitempty"`
	RealizedPnL   decimal.Decimal  `json:"realized_pnl"`
}

// PortfolioTotals is the aggregation of balances against a price map
type PortfolioTotals struct {
	TotalValue         decimal.Decimal  `json:"total_value"`
	TotalPnL           decimal.Decimal  `json:"total_pnl"`
	TotalPnLPercentage decimal.Decimal  `json:"total_pnl_percentage"`
	RealizedPnL        decimal.Decimal  `json:"realized_pnl"`
	UnrealizedPnL      decimal.Decimal  `json:"unrealized_pnl"`
	Allocation         []AllocationItem `json:"allocation"`
	Holdings           []AssetHolding   `json:"holdings"`
	UnpricedAssets     []string         `json:"unpriced_assets"`
}

// PortfolioSummary is the cached, user-facing portfolio view
type PortfolioSummary struct {
	PortfolioTotals
	UserID               string          `json:"user_id"`
	DiversificationScore decimal.Decimal `json:"diversification_score"`
	GeneratedAt          time.Time       `json:"generated_at"`
}

// PerformanceMetrics is the change between two portfolio values
type PerformanceMetrics struct {
	AbsoluteChange   decimal.Decimal `json:"absolute_change"`
	PercentageChange decimal.Decimal `json:"percentage_change"`
}

// HistoryPoint is the approximated portfolio value at the end of one day
type HistoryPoint struct {
	Date  time.Time       `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// PerformanceReport combines the analytics computed over a history window
type PerformanceReport struct {
	UserID               string             `json:"user_id"`
	Days                 int                `json:"days"`
	StartValue           decimal.Decimal    `json:"start_value"`
	EndValue             decimal.Decimal    `json:"end_value"`
	Change               PerformanceMetrics `json:"change"`
	SharpeRatio          decimal.Decimal    `json:"sharpe_ratio"`
	DiversificationScore decimal.Decimal    `json:"diversification_score"`
	History              []HistoryPoint     `json:"history"`
}
