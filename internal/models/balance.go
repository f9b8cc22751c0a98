package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the persisted state of one asset held by one user.
// (UserID, Asset) is unique; rows are zeroed, never deleted.
type Balance struct {
	UserID      string           `json:"user_id" gorm:"primaryKey;column:user_id;type:varchar(255)"`
	Asset       string           `json:"asset" gorm:"primaryKey;column:asset;type:varchar(50)"`
	Available   decimal.Decimal  `json:"available" gorm:"column:available;type:numeric;not null;default:0"`
	Locked      decimal.Decimal  `json:"locked" gorm:"column:locked;type:numeric;not null;default:0"`
	AverageCost *decimal.Decimal `json:"average_cost" gorm:"column:average_cost;type:numeric"`
	RealizedPnL decimal.Decimal  `json:"realized_pnl" gorm:"column:realized_pnl;type:numeric;not null;default:0"`
	CreatedAt   time.Time        `json:"created_at" gorm:"column:created_at;type:timestamptz;not null"`
	UpdatedAt   time.Time        `json:"updated_at" gorm:"column:updated_at;type:timestamptz;not null"`
}

// TableName returns the table name for the Balance model
func (Balance) TableName() string {
	return "balances"
}

// NewBalance returns a zeroed balance for (userID, asset)
func NewBalance(userID, asset string) *Balance {
	now := time.Now().UTC()
	return &Balance{
		UserID:      userID,
		Asset:       asset,
		Available:   decimal.Zero,
		Locked:      decimal.Zero,
		RealizedPnL: decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Total is available plus locked
func (b *Balance) Total() decimal.Decimal {
	return b.Available.Add(b.Locked)
}

// HasCostBasis reports whether any priced inflow has been recorded
func (b *Balance) HasCostBasis() bool {
	return b.AverageCost != nil
}

