package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "github.com/tropicaldog17/nami-portfolio/internal/errors"
	"github.com/tropicaldog17/nami-portfolio/internal/models"
	"github.com/tropicaldog17/nami-portfolio/internal/testutil"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func ptr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newTx(user, asset string, kind models.TransactionKind, amount string, price *decimal.Decimal, status models.TransactionStatus, at time.Time) *models.Transaction {
	tx := &models.Transaction{
		UserID:    user,
		Asset:     asset,
		Kind:      kind,
		Amount:    decimal.RequireFromString(amount),
		Price:     price,
		Status:    status,
		CreatedAt: at,
	}
	tx.CalculateDerivedFields()
	return tx
}

func TestBalanceRepository_GetForUpdateCreatesZeroedRow(t *testing.T) {
	database := testutil.NewSQLiteDB(t)
	repo := NewBalanceRepository(database)
	ctx := context.Background()

	_, err := repo.Get(ctx, "u1", "BTC")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	err = database.Transaction(func(tx *gorm.DB) error {
		b, err := repo.WithTx(tx).GetForUpdate(ctx, "u1", "BTC")
		require.NoError(t, err)
		assert.True(t, b.Total().IsZero())
		assert.Nil(t, b.AverageCost)

		// Second call must find the same row rather than fail on the key
		again, err := repo.WithTx(tx).GetForUpdate(ctx, "u1", "BTC")
		require.NoError(t, err)
		assert.Equal(t, b.UserID, again.UserID)
		return nil
	})
	require.NoError(t, err)

	b, err := repo.Get(ctx, "u1", "BTC")
	require.NoError(t, err)
	assert.Equal(t, "BTC", b.Asset)
}

func TestBalanceRepository_SaveAndList(t *testing.T) {
	database := testutil.NewSQLiteDB(t)
	repo := NewBalanceRepository(database)
	ctx := context.Background()

	for _, asset := range []string{"ETH", "BTC"} {
		err := database.Transaction(func(tx *gorm.DB) error {
			b, err := repo.WithTx(tx).GetForUpdate(ctx, "u1", asset)
			if err != nil {
				return err
			}
			b.Available = decimal.RequireFromString("1.123456789012345678901234567")
			b.AverageCost = ptr("43333.3333333333333333333333")
			b.RealizedPnL = decimal.NewFromInt(10000)
			return repo.WithTx(tx).Save(ctx, b)
		})
		require.NoError(t, err)
	}

	balances, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, "BTC", balances[0].Asset, "balances are ordered by asset")
	assert.Equal(t, "1.123456789012345678901234567", balances[0].Available.String(), "decimals round-trip exactly")
	require.NotNil(t, balances[0].AverageCost)
	assert.Equal(t, "43333.3333333333333333333333", balances[0].AverageCost.String())

	// clearing the average cost writes NULL
	balances[0].AverageCost = nil
	require.NoError(t, repo.Save(ctx, balances[0]))
	reloaded, err := repo.Get(ctx, "u1", "BTC")
	require.NoError(t, err)
	assert.Nil(t, reloaded.AverageCost)

	missing := models.NewBalance("nobody", "BTC")
	err = repo.Save(ctx, missing)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestTransactionRepository_ListCompletedIsFIFO(t *testing.T) {
	database := testutil.NewSQLiteDB(t)
	repo := NewTransactionRepository(database)
	ctx := context.Background()

	txs := []*models.Transaction{
		newTx("u1", "BTC", models.KindBuy, "1", ptr("50000"), models.StatusCompleted, t0.Add(2*time.Minute)),
		newTx("u1", "BTC", models.KindBuy, "1", ptr("40000"), models.StatusCompleted, t0),
		newTx("u1", "BTC", models.KindSell, "0.5", ptr("60000"), models.StatusPending, t0.Add(3*time.Minute)),
		newTx("u1", "ETH", models.KindBuy, "3", ptr("3000"), models.StatusCompleted, t0.Add(time.Minute)),
		newTx("u2", "BTC", models.KindBuy, "9", ptr("1"), models.StatusCompleted, t0),
	}
	for _, tx := range txs {
		require.NoError(t, repo.Create(ctx, tx))
		assert.NotEmpty(t, tx.ID)
	}

	history, err := repo.ListCompleted(ctx, "u1", "BTC")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Price.Equal(decimal.NewFromInt(40000)), "oldest lot first")
	assert.True(t, history[1].Price.Equal(decimal.NewFromInt(50000)))

	all, err := repo.ListCompletedByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ETH", all[1].Asset)
}

func TestTransactionRepository_MarkCompletedOnlyOnce(t *testing.T) {
	database := testutil.NewSQLiteDB(t)
	repo := NewTransactionRepository(database)
	ctx := context.Background()

	tx := newTx("u1", "BTC", models.KindBuy, "1", ptr("40000"), models.StatusPending, t0)
	require.NoError(t, repo.Create(ctx, tx))

	require.NoError(t, repo.MarkCompleted(ctx, tx.ID, t0.Add(time.Minute)))
	got, err := repo.GetByIDForUpdate(ctx, tx.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	err = repo.MarkCompleted(ctx, tx.ID, t0.Add(2*time.Minute))
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	none, err := repo.GetByIDForUpdate(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestTransactionRepository_ListAndCountWithFilter(t *testing.T) {
	database := testutil.NewSQLiteDB(t)
	repo := NewTransactionRepository(database)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, newTx("u1", "BTC", models.KindBuy, "1", ptr("100"), models.StatusCompleted, t0.Add(time.Duration(i)*time.Hour))))
	}
	require.NoError(t, repo.Create(ctx, newTx("u1", "USDC", models.KindDeposit, "1000", nil, models.StatusCompleted, t0)))
	require.NoError(t, repo.Create(ctx, newTx("u1", "BTC", models.KindSell, "1", ptr("120"), models.StatusPending, t0.Add(10*time.Hour))))

	tests := []struct {
		name   string
		filter *models.TransactionFilter
		count  int
		page   int
	}{
		{"no filter", nil, 7, 7},
		{"asset", &models.TransactionFilter{Assets: []string{"USDC"}}, 1, 1},
		{"kind", &models.TransactionFilter{Kinds: []models.TransactionKind{models.KindSell}}, 1, 1},
		{"status", &models.TransactionFilter{Statuses: []models.TransactionStatus{models.StatusCompleted}}, 6, 6},
		{"paged", &models.TransactionFilter{Assets: []string{"BTC"}, Limit: 2, Offset: 1}, 6, 2},
		{"date range", func() *models.TransactionFilter {
			start, end := t0.Add(time.Hour), t0.Add(3*time.Hour)
			return &models.TransactionFilter{StartDate: &start, EndDate: &end}
		}(), 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := repo.List(ctx, "u1", tt.filter)
			require.NoError(t, err)
			assert.Len(t, items, tt.page)

			count, err := repo.Count(ctx, "u1", tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.count, count)
		})
	}

	newest, err := repo.List(ctx, "u1", &models.TransactionFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, newest, 1)
	assert.Equal(t, models.KindSell, newest[0].Kind, "list is newest first")
}

func TestTransactionRepository_DuplicateIDIsConflict(t *testing.T) {
	database := testutil.NewSQLiteDB(t)
	repo := NewTransactionRepository(database)
	ctx := context.Background()

	first := newTx("u1", "BTC", models.KindBuy, "1", ptr("100"), models.StatusCompleted, t0)
	first.ID = "fixed-id"
	require.NoError(t, repo.Create(ctx, first))

	dup := newTx("u1", "BTC", models.KindBuy, "2", ptr("100"), models.StatusCompleted, t0)
	dup.ID = "fixed-id"
	err := repo.Create(ctx, dup)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsConcurrencyError(err))
}
