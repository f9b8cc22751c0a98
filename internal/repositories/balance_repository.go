package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tropicaldog17/nami-portfolio/internal/db"
	apperrors "github.com/tropicaldog17/nami-portfolio/internal/errors"
	"github.com/tropicaldog17/nami-portfolio/internal/models"
)

type balanceRepository struct {
	db *gorm.DB
}

// NewBalanceRepository creates a new balance repository
func NewBalanceRepository(database *db.DB) BalanceRepository {
	return &balanceRepository{db: database.DB}
}

func (r *balanceRepository) WithTx(tx *gorm.DB) BalanceRepository {
	return &balanceRepository{db: tx}
}

// forUpdate adds a row lock where the dialect supports one. SQLite has no
// FOR UPDATE; its single writer already serializes the transaction.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == db.DriverPostgres {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (r *balanceRepository) GetForUpdate(ctx context.Context, userID, asset string) (*models.Balance, error) {
	q := r.db.WithContext(ctx)

	// Two first-time writers may race to create the row; whoever loses the
	// insert falls through to the locked select below.
	zero := models.NewBalance(userID, asset)
	if err := q.Clauses(clause.OnConflict{DoNothing: true}).Create(zero).Error; err != nil {
		return nil, classify("create balance", fmt.Errorf("failed to create balance: %w", err))
	}

	var balance models.Balance
	err := forUpdate(q).
		Where("user_id = ? AND asset = ?", userID, asset).
		Take(&balance).Error
	if err != nil {
		return nil, classify("lock balance", fmt.Errorf("failed to lock balance: %w", err))
	}
	return &balance, nil
}

func (r *balanceRepository) Get(ctx context.Context, userID, asset string) (*models.Balance, error) {
	var balance models.Balance
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND asset = ?", userID, asset).
		Take(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("balance", userID+"/"+asset)
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return &balance, nil
}

func (r *balanceRepository) ListByUser(ctx context.Context, userID string) ([]*models.Balance, error) {
	var balances []*models.Balance
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("asset ASC").
		Find(&balances).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	return balances, nil
}

func (r *balanceRepository) Save(ctx context.Context, balance *models.Balance) error {
	if balance == nil || balance.UserID == "" || balance.Asset == "" {
		return fmt.Errorf("balance identity is required")
	}
	balance.UpdatedAt = time.Now().UTC()

	var averageCost interface{}
	if balance.AverageCost != nil {
		averageCost = *balance.AverageCost
	}
	result := r.db.WithContext(ctx).
		Model(&models.Balance{}).
		Where("user_id = ? AND asset = ?", balance.UserID, balance.Asset).
		Updates(map[string]interface{}{
			"available":    balance.Available,
			"locked":       balance.Locked,
			"average_cost": averageCost,
			"realized_pnl": balance.RealizedPnL,
			"updated_at":   balance.UpdatedAt,
		})
	if result.Error != nil {
		return classify("save balance", fmt.Errorf("failed to save balance: %w", result.Error))
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFound("balance", balance.UserID+"/"+balance.Asset)
	}
	return nil
}
