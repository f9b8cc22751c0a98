package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tropicaldog17/nami-portfolio/internal/models"
)

// BalanceRepository defines the interface for balance data operations.
// WithTx binds the repository to an open store transaction.
type BalanceRepository interface {
	WithTx(tx *gorm.DB) BalanceRepository
	// GetForUpdate returns the row for (userID, asset), creating a zeroed one
	// if absent, and holds a row lock until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, userID, asset string) (*models.Balance, error)
	Get(ctx context.Context, userID, asset string) (*models.Balance, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Balance, error)
	Save(ctx context.Context, balance *models.Balance) error
}

// TransactionRepository defines the interface for ledger data operations
type TransactionRepository interface {
	WithTx(tx *gorm.DB) TransactionRepository
	Create(ctx context.Context, tx *models.Transaction) error
	// GetByIDForUpdate loads a transaction holding a row lock; nil, nil when absent
	GetByIDForUpdate(ctx context.Context, id string) (*models.Transaction, error)
	MarkCompleted(ctx context.Context, id string, at time.Time) error
	// ListCompleted returns the COMPLETED history of (userID, asset) in FIFO order
	ListCompleted(ctx context.Context, userID, asset string) ([]*models.Transaction, error)
	// ListCompletedByUser returns every COMPLETED entry of userID in FIFO order
	ListCompletedByUser(ctx context.Context, userID string) ([]*models.Transaction, error)
	List(ctx context.Context, userID string, filter *models.TransactionFilter) ([]*models.Transaction, error)
	Count(ctx context.Context, userID string, filter *models.TransactionFilter) (int, error)
}
