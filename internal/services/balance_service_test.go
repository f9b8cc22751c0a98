package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"github.com/tropicaldog17/nami-portfolio/internal/cache"
	"github.com/tropicaldog17/nami-portfolio/internal/db"
	apperrors "github.com/tropicaldog17/nami-portfolio/internal/errors"
	"github.com/tropicaldog17/nami-portfolio/internal/metrics"
	"github.com/tropicaldog17/nami-portfolio/internal/models"
	"github.com/tropicaldog17/nami-portfolio/internal/repositories"
	"github.com/tropicaldog17/nami-portfolio/internal/testutil"
)

type balanceFixture struct {
	db           *db.DB
	balances     repositories.BalanceRepository
	transactions repositories.TransactionRepository
	cache        *cache.MemoryCache
	metrics      *metrics.Metrics
	svc          *balanceService
}

func newBalanceFixture(t *testing.T) *balanceFixture {
	t.Helper()
	database := testutil.NewSQLiteDB(t)
	f := &balanceFixture{
		db:           database,
		balances:     repositories.NewBalanceRepository(database),
		transactions: repositories.NewTransactionRepository(database),
		cache:        cache.NewMemoryCache(),
		metrics:      metrics.New(prometheus.NewRegistry()),
	}
	f.svc = NewBalanceService(database, f.balances, f.transactions, f.cache, f.metrics, zaptest.NewLogger(t)).(*balanceService)
	return f
}

func movement(user, asset string, kind models.TransactionKind, amount string, price string) *models.Transaction {
	tx := &models.Transaction{UserID: user, Asset: asset, Kind: kind, Amount: d(amount)}
	if price != "" {
		tx.Price = dp(price)
	}
	return tx
}

func TestBalanceService_AppliesFIFOHistory(t *testing.T) {
	f := newBalanceFixture(t)
	ctx := context.Background()

	for _, tx := range []*models.Transaction{
		movement("u1", "btc", models.KindBuy, "1.0", "40000"),
		movement("u1", "BTC", models.KindBuy, "1.0", "50000"),
		movement("u1", "BTC", models.KindSell, "0.5", "60000"),
	} {
		_, err := f.svc.ApplyCompletedTransaction(ctx, tx)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, tx.Status)
		require.NotNil(t, tx.CompletedAt)
	}

	b, err := f.balances.Get(ctx, "u1", "BTC")
	require.NoError(t, err)
	assert.Equal(t, "1.5", b.Available.String())
	assert.Equal(t, "10000", b.RealizedPnL.String())
	require.NotNil(t, b.AverageCost)
	assert.Equal(t, "46666.67", b.AverageCost.StringFixed(2))

	assert.Equal(t, 3.0, promtestutil.ToFloat64(f.metrics.BalanceUpdates.WithLabelValues("committed")))
}

func TestBalanceService_UnpricedInflowHasNoAverageCost(t *testing.T) {
	f := newBalanceFixture(t)
	ctx := context.Background()

	b, err := f.svc.ApplyCompletedTransaction(ctx, movement("u1", "USDC", models.KindDeposit, "1000", ""))
	require.NoError(t, err)
	assert.Nil(t, b.AverageCost)

	b, err = f.svc.ApplyCompletedTransaction(ctx, movement("u1", "USDC", models.KindFee, "1", ""))
	require.NoError(t, err)
	assert.Equal(t, "999", b.Available.String())
	assert.Nil(t, b.AverageCost)
}

func TestBalanceService_InvalidatesCacheOnCommit(t *testing.T) {
	f := newBalanceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.cache.SetWithTTL(ctx, cache.BalancesKey("u1"), []byte("stale"), time.Minute))
	require.NoError(t, f.cache.SetWithTTL(ctx, cache.SummaryKey("u1"), []byte("stale"), time.Minute))
	require.NoError(t, f.cache.SetWithTTL(ctx, cache.SummaryKey("u2"), []byte("other"), time.Minute))

	_, err := f.svc.ApplyCompletedTransaction(ctx, movement("u1", "ETH", models.KindBuy, "1", "3000"))
	require.NoError(t, err)

	_, hit, _ := f.cache.Get(ctx, cache.BalancesKey("u1"))
	assert.False(t, hit)
	_, hit, _ = f.cache.Get(ctx, cache.SummaryKey("u1"))
	assert.False(t, hit)
	_, hit, _ = f.cache.Get(ctx, cache.SummaryKey("u2"))
	assert.True(t, hit, "other users keep their entries")
}

// failingCache refuses every delete
type failingCache struct{ *cache.MemoryCache }

func (failingCache) Delete(context.Context, ...string) error { return errors.New("cache down") }

func TestBalanceService_InvalidationFailureIsNotFatal(t *testing.T) {
	f := newBalanceFixture(t)
	core, logs := observer.New(zapcore.WarnLevel)
	svc := NewBalanceService(f.db, f.balances, f.transactions, failingCache{cache.NewMemoryCache()}, f.metrics, zap.New(core))

	b, err := svc.ApplyCompletedTransaction(context.Background(), movement("u1", "ETH", models.KindBuy, "2", "3000"))
	require.NoError(t, err)
	assert.Equal(t, "2", b.Available.String())
	assert.Equal(t, 1, logs.FilterMessage("cache invalidation failed").Len())
}

// failingHistoryRepo breaks the history reload inside the atomic unit
type failingHistoryRepo struct {
	repositories.TransactionRepository
}

func (r failingHistoryRepo) WithTx(tx *gorm.DB) repositories.TransactionRepository {
	return failingHistoryRepo{r.TransactionRepository.WithTx(tx)}
}

func (failingHistoryRepo) ListCompleted(context.Context, string, string) ([]*models.Transaction, error) {
	return nil, errors.New("history unavailable")
}

func TestBalanceService_RecomputeFailureRollsBack(t *testing.T) {
	f := newBalanceFixture(t)
	ctx := context.Background()

	_, err := f.svc.ApplyCompletedTransaction(ctx, movement("u1", "BTC", models.KindBuy, "2", "40000"))
	require.NoError(t, err)
	before, err := f.balances.Get(ctx, "u1", "BTC")
	require.NoError(t, err)
	require.NoError(t, f.cache.SetWithTTL(ctx, cache.BalancesKey("u1"), []byte("cached"), time.Minute))

	broken := NewBalanceService(f.db, f.balances, failingHistoryRepo{f.transactions}, f.cache, f.metrics, zaptest.NewLogger(t))
	_, err = broken.ApplyCompletedTransaction(ctx, movement("u1", "BTC", models.KindSell, "1", "60000"))
	require.Error(t, err)

	after, err := f.balances.Get(ctx, "u1", "BTC")
	require.NoError(t, err)
	assert.Equal(t, before.Available.String(), after.Available.String())
	assert.Equal(t, before.RealizedPnL.String(), after.RealizedPnL.String())
	require.NotNil(t, after.AverageCost)
	assert.Equal(t, before.AverageCost.String(), after.AverageCost.String())
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))

	count, err := f.transactions.Count(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "the failed movement was not recorded")

	_, hit, _ := f.cache.Get(ctx, cache.BalancesKey("u1"))
	assert.True(t, hit, "nothing committed, nothing invalidated")
	assert.Equal(t, 1.0, promtestutil.ToFloat64(f.metrics.BalanceUpdates.WithLabelValues("rolled_back")))
}

func TestBalanceService_RejectsOverdraft(t *testing.T) {
	f := newBalanceFixture(t)
	ctx := context.Background()

	_, err := f.svc.ApplyCompletedTransaction(ctx, movement("u1", "ETH", models.KindDeposit, "1", "3000"))
	require.NoError(t, err)

	_, err = f.svc.ApplyCompletedTransaction(ctx, movement("u1", "ETH", models.KindWithdrawal, "1.5", "3000"))
	require.Error(t, err)
	assert.True(t, apperrors.IsInvariant(err))

	b, err := f.balances.Get(ctx, "u1", "ETH")
	require.NoError(t, err)
	assert.Equal(t, "1", b.Available.String())

	_, err = f.svc.ApplyCompletedTransaction(ctx, movement("u1", "SOL", models.KindSell, "1", "100"))
	assert.True(t, apperrors.IsInvariant(err))
	_, err = f.balances.Get(ctx, "u1", "SOL")
	assert.True(t, apperrors.IsNotFound(err), "the zeroed row created under lock was rolled back")
}

func TestBalanceService_CompletesPendingOnce(t *testing.T) {
	f := newBalanceFixture(t)
	ctx := context.Background()

	pending := movement("u1", "BTC", models.KindBuy, "1", "42000")
	require.NoError(t, pending.PreSave())
	require.NoError(t, f.transactions.Create(ctx, pending))
	require.Equal(t, models.StatusPending, pending.Status)

	// the stored row is authoritative; the request only names it
	req := &models.Transaction{ID: pending.ID, UserID: "u1"}
	b, err := f.svc.ApplyCompletedTransaction(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "1", b.Available.String())
	assert.Equal(t, "BTC", req.Asset)
	assert.Equal(t, models.StatusCompleted, req.Status)

	_, err = f.svc.ApplyCompletedTransaction(ctx, &models.Transaction{ID: pending.ID, UserID: "u1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	_, err = f.svc.ApplyCompletedTransaction(ctx, &models.Transaction{ID: pending.ID, UserID: "intruder"})
	assert.True(t, apperrors.IsNotFound(err))

	b, err = f.balances.Get(ctx, "u1", "BTC")
	require.NoError(t, err)
	assert.Equal(t, "1", b.Available.String(), "never double-applied")
	assert.Equal(t, 1.0, promtestutil.ToFloat64(f.metrics.BalanceUpdates.WithLabelValues("conflict")))
}

func TestBalanceService_ValidatesInput(t *testing.T) {
	f := newBalanceFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		tx   *models.Transaction
	}{
		{"nil", nil},
		{"no user", movement("", "BTC", models.KindBuy, "1", "1")},
		{"no asset", movement("u1", " ", models.KindBuy, "1", "1")},
		{"bad kind", movement("u1", "BTC", models.TransactionKind("STAKE"), "1", "1")},
		{"zero amount", movement("u1", "BTC", models.KindBuy, "0", "1")},
		{"negative price", movement("u1", "BTC", models.KindBuy, "1", "-1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ApplyCompletedTransaction(ctx, tt.tx)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err), "got %v", err)
		})
	}
}

func TestBalanceService_LockAndUnlock(t *testing.T) {
	f := newBalanceFixture(t)
	ctx := context.Background()

	_, err := f.svc.ApplyCompletedTransaction(ctx, movement("u1", "USDC", models.KindDeposit, "1000", "1"))
	require.NoError(t, err)

	b, err := f.svc.LockFunds(ctx, "u1", "usdc", d("400"))
	require.NoError(t, err)
	assert.Equal(t, "600", b.Available.String())
	assert.Equal(t, "400", b.Locked.String())
	assert.Equal(t, "1000", b.Total().String())

	_, err = f.svc.LockFunds(ctx, "u1", "USDC", d("600.01"))
	assert.True(t, apperrors.IsInvariant(err))

	// locked funds cannot be spent
	_, err = f.svc.ApplyCompletedTransaction(ctx, movement("u1", "USDC", models.KindWithdrawal, "700", "1"))
	assert.True(t, apperrors.IsInvariant(err))

	b, err = f.svc.UnlockFunds(ctx, "u1", "USDC", d("150"))
	require.NoError(t, err)
	assert.Equal(t, "750", b.Available.String())
	assert.Equal(t, "250", b.Locked.String())

	_, err = f.svc.UnlockFunds(ctx, "u1", "USDC", d("251"))
	assert.True(t, apperrors.IsInvariant(err))

	_, err = f.svc.LockFunds(ctx, "u1", "USDC", d("0"))
	assert.True(t, apperrors.IsValidation(err))

	stored, err := f.balances.Get(ctx, "u1", "USDC")
	require.NoError(t, err)
	assert.Equal(t, "750", stored.Available.String())
	assert.Equal(t, "250", stored.Locked.String())
}
