package services

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tropicaldog17/nami-portfolio/internal/models"
)

// PriceGateway resolves current unit prices. Assets it cannot price are
// left out of the returned map; an error means no price could be fetched.
type PriceGateway interface {
	GetPrices(ctx context.Context, assets []string) (map[string]decimal.Decimal, error)
}

// BalanceService applies completed ledger movements to balances
type BalanceService interface {
	ApplyCompletedTransaction(ctx context.Context, tx *models.Transaction) (*models.Balance, error)
	LockFunds(ctx context.Context, userID, asset string, amount decimal.Decimal) (*models.Balance, error)
	UnlockFunds(ctx context.Context, userID, asset string, amount decimal.Decimal) (*models.Balance, error)
}

// PortfolioService defines the public portfolio operations
type PortfolioService interface {
	RecordCompletedTransaction(ctx context.Context, userID string, tx *models.Transaction) (*models.Balance, error)
	GetAssetBalances(ctx context.Context, userID string) ([]*models.Balance, error)
	GetPortfolioSummary(ctx context.Context, userID string) (*models.PortfolioSummary, error)
	GetTransactionHistory(ctx context.Context, userID string, filter *models.TransactionFilter) (*models.TransactionPage, error)
	GetPortfolioHistory(ctx context.Context, userID string, days int) ([]models.HistoryPoint, error)
	GetPerformance(ctx context.Context, userID string, days int) (*models.PerformanceReport, error)
	LockFunds(ctx context.Context, userID, asset string, amount decimal.Decimal) (*models.Balance, error)
	UnlockFunds(ctx context.Context, userID, asset string, amount decimal.Decimal) (*models.Balance, error)
}
