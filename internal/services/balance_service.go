package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tropicaldog17/nami-portfolio/internal/cache"
	"github.com/tropicaldog17/nami-portfolio/internal/db"
	apperrors "github.com/tropicaldog17/nami-portfolio/internal/errors"
	"github.com/tropicaldog17/nami-portfolio/internal/metrics"
	"github.com/tropicaldog17/nami-portfolio/internal/models"
	"github.com/tropicaldog17/nami-portfolio/internal/repositories"
)

type balanceService struct {
	db           *db.DB
	balances     repositories.BalanceRepository
	transactions repositories.TransactionRepository
	cache        cache.Cache
	metrics      *metrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewBalanceService creates the service that owns every balance write.
// cache, m and logger may be nil.
func NewBalanceService(database *db.DB, balances repositories.BalanceRepository, transactions repositories.TransactionRepository, c cache.Cache, m *metrics.Metrics, logger *zap.Logger) BalanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &balanceService{
		db:           database,
		balances:     balances,
		transactions: transactions,
		cache:        c,
		metrics:      m,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ApplyCompletedTransaction records tx as COMPLETED and folds it into the
// owning balance in one store transaction. The balance row stays locked from
// read to write, so concurrent movements on one (user, asset) serialize.
// Nothing is persisted unless every step succeeds.
func (s *balanceService) ApplyCompletedTransaction(ctx context.Context, tx *models.Transaction) (*models.Balance, error) {
	if tx == nil {
		return nil, apperrors.NewValidation("transaction", "is required")
	}
	if strings.TrimSpace(tx.UserID) == "" {
		return nil, apperrors.NewValidation("user_id", "is required")
	}

	var updated *models.Balance
	err := s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		txRepo := s.transactions.WithTx(dbtx)
		balRepo := s.balances.WithTx(dbtx)

		if err := s.persistCompleted(ctx, txRepo, tx); err != nil {
			return err
		}

		balance, err := balRepo.GetForUpdate(ctx, tx.UserID, tx.Asset)
		if err != nil {
			return err
		}
		balance.Available = balance.Available.Add(tx.SignedAmount())
		if balance.Available.IsNegative() {
			return apperrors.NewInvariant("non-negative balance",
				"%s %s of %s exceeds available %s", tx.Kind, tx.Amount, tx.Asset, balance.Available.Sub(tx.SignedAmount()))
		}

		history, err := txRepo.ListCompleted(ctx, tx.UserID, tx.Asset)
		if err != nil {
			return fmt.Errorf("failed to reload history: %w", err)
		}
		basis := CalculateCostBasis(history)
		if basis.UnmatchedQuantity.IsPositive() {
			s.logger.Warn("outflow exceeds priced lots",
				zap.String("user_id", tx.UserID),
				zap.String("asset", tx.Asset),
				zap.String("unmatched", basis.UnmatchedQuantity.String()))
		}
		applyCostBasis(balance, basis)
		balance.UpdatedAt = s.now()

		if err := balRepo.Save(ctx, balance); err != nil {
			return err
		}
		updated = balance
		return nil
	})
	if err != nil {
		return nil, s.rolledBack("apply transaction", err,
			zap.String("user_id", tx.UserID),
			zap.String("asset", tx.Asset),
			zap.String("transaction_id", tx.ID))
	}

	s.metrics.BalanceCommitted()
	s.logger.Info("balance updated",
		zap.String("user_id", updated.UserID),
		zap.String("asset", updated.Asset),
		zap.String("transaction_id", tx.ID),
		zap.String("kind", string(tx.Kind)),
		zap.String("available", updated.Available.String()))
	s.invalidate(ctx, updated.UserID)
	return updated, nil
}

// persistCompleted makes tx a COMPLETED ledger row. A stored PENDING row is
// completed in place and becomes authoritative; a COMPLETED one is immutable.
func (s *balanceService) persistCompleted(ctx context.Context, txRepo repositories.TransactionRepository, tx *models.Transaction) error {
	now := s.now()

	if tx.ID != "" {
		existing, err := txRepo.GetByIDForUpdate(ctx, tx.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.UserID != tx.UserID {
				return apperrors.NewNotFound("transaction", tx.ID)
			}
			if existing.Status == models.StatusCompleted {
				return apperrors.NewConflict("record transaction", fmt.Errorf("transaction %s is already completed", tx.ID))
			}
			if err := txRepo.MarkCompleted(ctx, existing.ID, now); err != nil {
				return err
			}
			existing.Status = models.StatusCompleted
			existing.CompletedAt = &now
			*tx = *existing
			return nil
		}
	}

	if err := tx.PreSave(); err != nil {
		return apperrors.NewValidation("transaction", err.Error())
	}
	tx.Status = models.StatusCompleted
	tx.CompletedAt = &now
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	return txRepo.Create(ctx, tx)
}

func applyCostBasis(balance *models.Balance, basis models.CostBasis) {
	balance.RealizedPnL = basis.RealizedPnL
	if basis.HasPricedInflow {
		avg := basis.AverageCost
		balance.AverageCost = &avg
	} else {
		balance.AverageCost = nil
	}
}

// LockFunds moves amount from available to locked
func (s *balanceService) LockFunds(ctx context.Context, userID, asset string, amount decimal.Decimal) (*models.Balance, error) {
	return s.moveFunds(ctx, "lock funds", userID, asset, amount, true)
}

// UnlockFunds moves amount from locked back to available
func (s *balanceService) UnlockFunds(ctx context.Context, userID, asset string, amount decimal.Decimal) (*models.Balance, error) {
	return s.moveFunds(ctx, "unlock funds", userID, asset, amount, false)
}

func (s *balanceService) moveFunds(ctx context.Context, op, userID, asset string, amount decimal.Decimal, lock bool) (*models.Balance, error) {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	if userID == "" {
		return nil, apperrors.NewValidation("user_id", "is required")
	}
	if asset == "" {
		return nil, apperrors.NewValidation("asset", "is required")
	}
	if !amount.IsPositive() {
		return nil, apperrors.NewValidation("amount", "must be positive")
	}

	var updated *models.Balance
	err := s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		balRepo := s.balances.WithTx(dbtx)
		balance, err := balRepo.GetForUpdate(ctx, userID, asset)
		if err != nil {
			return err
		}

		from, to := &balance.Available, &balance.Locked
		if !lock {
			from, to = to, from
		}
		if from.LessThan(amount) {
			return apperrors.NewInvariant("sufficient funds", "%s %s of %s exceeds %s", op, amount, asset, from.String())
		}
		*from = from.Sub(amount)
		*to = to.Add(amount)
		balance.UpdatedAt = s.now()

		if err := balRepo.Save(ctx, balance); err != nil {
			return err
		}
		updated = balance
		return nil
	})
	if err != nil {
		return nil, s.rolledBack(op, err, zap.String("user_id", userID), zap.String("asset", asset))
	}

	s.metrics.BalanceCommitted()
	s.invalidate(ctx, userID)
	return updated, nil
}

// rolledBack records a failed balance transaction and maps store
// serialization failures to ConflictError.
func (s *balanceService) rolledBack(op string, err error, fields ...zap.Field) error {
	if repositories.IsConcurrencyError(err) && !apperrors.IsConflict(err) {
		err = apperrors.NewConflict(op, err)
	}

	fields = append(fields, zap.Error(err))
	switch {
	case apperrors.IsConflict(err):
		s.metrics.BalanceConflict()
		s.logger.Warn("balance update conflicted", fields...)
	case apperrors.IsValidation(err), apperrors.IsNotFound(err), apperrors.IsInvariant(err):
		s.metrics.BalanceRolledBack()
		s.logger.Warn("balance update rejected", fields...)
	default:
		s.metrics.BalanceRolledBack()
		s.logger.Error("balance update failed", fields...)
	}
	return err
}

// invalidate drops the cached views of userID. It runs after commit and
// never fails the write: stale entries expire with their TTL.
func (s *balanceService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	err := multierr.Combine(
		s.cache.Delete(ctx, cache.BalancesKey(userID)),
		s.cache.Delete(ctx, cache.SummaryKey(userID)),
	)
	if err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}
