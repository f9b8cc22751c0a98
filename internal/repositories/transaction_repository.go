package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tropicaldog17/nami-portfolio/internal/db"
	apperrors "github.com/tropicaldog17/nami-portfolio/internal/errors"
	"github.com/tropicaldog17/nami-portfolio/internal/models"
)

// fifoOrder is the creation order that defines lot order for cost-basis replay
const fifoOrder = "created_at ASC, id ASC"

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(database *db.DB) TransactionRepository {
	return &transactionRepository{db: database.DB}
}

func (r *transactionRepository) WithTx(tx *gorm.DB) TransactionRepository {
	return &transactionRepository{db: tx}
}

func (r *transactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	if tx.Status == "" {
		tx.Status = models.StatusPending
	}
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return classify("create transaction", fmt.Errorf("failed to create transaction: %w", err))
	}
	return nil
}


func (r *transactionRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	var txs []*models.Transaction
	err := forUpdate(r.db.WithContext(ctx)).
		Where("id = ?", id).
		Limit(1).
		Find(&txs).Error
	if err != nil {
		return nil, classify("lock transaction", fmt.Errorf("failed to lock transaction: %w", err))
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return txs[0], nil
}

// MarkCompleted moves a PENDING transaction to COMPLETED. The status guard
// in the WHERE clause keeps completed records immutable.
func (r *transactionRepository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(map[string]interface{}{
			"status":       models.StatusCompleted,
			"completed_at": at,
		})
	if result.Error != nil {
		return classify("complete transaction", fmt.Errorf("failed to complete transaction: %w", result.Error))
	}
	if result.RowsAffected == 0 {
		return apperrors.NewConflict("complete transaction", fmt.Errorf("transaction %s is not pending", id))
	}
	return nil
}

func (r *transactionRepository) ListCompleted(ctx context.Context, userID, asset string) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND asset = ? AND status = ?", userID, asset, models.StatusCompleted).
		Order(fifoOrder).
		Find(&txs).Error
	if err != nil {
		return nil, classify("load history", fmt.Errorf("failed to load transaction history: %w", err))
	}
	return txs, nil
}

func (r *transactionRepository) ListCompletedByUser(ctx context.Context, userID string) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.StatusCompleted).
		Order(fifoOrder).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction history: %w", err)
	}
	return txs, nil
}

func applyFilter(query *gorm.DB, userID string, filter *models.TransactionFilter) *gorm.DB {
	query = query.Where("user_id = ?", userID)
	if filter == nil {
		return query
	}
	if len(filter.Assets) > 0 {
		query = query.Where("asset IN ?", filter.Assets)
	}
	if len(filter.Kinds) > 0 {
		query = query.Where("kind IN ?", filter.Kinds)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", *filter.EndDate)
	}
	return query
}

func (r *transactionRepository) List(ctx context.Context, userID string, filter *models.TransactionFilter) ([]*models.Transaction, error) {
	query := applyFilter(r.db.WithContext(ctx), userID, filter)

	// Newest first for display
	query = query.Order("created_at DESC, id DESC")

	if filter != nil && filter.Limit > 0 {
		query = query.Limit(filter.Limit)
		if filter.Offset > 0 {
			query = query.Offset(filter.Offset)
		}
	}

	var transactions []*models.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}

func (r *transactionRepository) Count(ctx context.Context, userID string, filter *models.TransactionFilter) (int, error) {
	query := applyFilter(r.db.WithContext(ctx).Model(&models.Transaction{}), userID, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to get transaction count: %w", err)
	}
	return int(count), nil
}
