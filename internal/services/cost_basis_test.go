package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/tropicaldog17/nami-portfolio/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func ledger(entries ...*models.Transaction) []*models.Transaction {
	return entries
}

func entry(kind models.TransactionKind, amount string, price *decimal.Decimal) *models.Transaction {
	return &models.Transaction{Kind: kind, Amount: d(amount), Price: price, Status: models.StatusCompleted}
}

func TestCalculateCostBasis_FIFOPartialSell(t *testing.T) {
	got := CalculateCostBasis(ledger(
		entry(models.KindBuy, "1.0", dp("40000")),
		entry(models.KindBuy, "1.0", dp("50000")),
		entry(models.KindSell, "0.5", dp("60000")),
	))

	// the sell consumes half of the 40000 lot: remaining cost 20000 + 50000 over 1.5
	assert.Equal(t, "10000", got.RealizedPnL.String())
	assert.Equal(t, "1.5", got.RemainingQuantity.String())
	assert.Equal(t, "46666.6666666666666666666666666667", got.AverageCost.String())
	assert.Equal(t, "46666.67", got.AverageCost.StringFixed(2))
	assert.True(t, got.HasPricedInflow)
	assert.True(t, got.UnmatchedQuantity.IsZero())
}

func TestCalculateCostBasis_StablecoinDepositWithdrawal(t *testing.T) {
	got := CalculateCostBasis(ledger(
		entry(models.KindDeposit, "1000", dp("1")),
		entry(models.KindWithdrawal, "500", dp("1")),
	))

	assert.Equal(t, "500", got.RemainingQuantity.String())
	assert.True(t, got.AverageCost.Equal(d("1")), "got %s", got.AverageCost)
	assert.True(t, got.RealizedPnL.IsZero())
}

func TestCalculateCostBasis_BuyThenSellSameQuantityAndPrice(t *testing.T) {
	quantities := []string{"1", "0.123456789", "12345.6789"}
	prices := []string{"1", "43210.98", "0.00000042"}
	for _, q := range quantities {
		for _, p := range prices {
			got := CalculateCostBasis(ledger(
				entry(models.KindBuy, q, dp(p)),
				entry(models.KindSell, q, dp(p)),
			))
			assert.True(t, got.RealizedPnL.IsZero(), "q=%s p=%s realized=%s", q, p, got.RealizedPnL)
			assert.True(t, got.RemainingQuantity.IsZero(), "q=%s p=%s remaining=%s", q, p, got.RemainingQuantity)
			assert.True(t, got.AverageCost.IsZero())
		}
	}
}

func TestCalculateCostBasis_SellSpansLots(t *testing.T) {
	got := CalculateCostBasis(ledger(
		entry(models.KindBuy, "1", dp("100")),
		entry(models.KindBuy, "2", dp("200")),
		entry(models.KindBuy, "3", dp("300")),
		entry(models.KindSell, "2.5", dp("400")),
	))

	// 1@100 + 1.5@200 consumed: 1*300 + 1.5*200 realized
	assert.Equal(t, "600", got.RealizedPnL.String())
	assert.Equal(t, "3.5", got.RemainingQuantity.String())
	// remaining lots: 0.5@200 + 3@300 = 1000
	assert.Equal(t, "285.71", got.AverageCost.StringFixed(2))
}

func TestCalculateCostBasis_UnpricedMovements(t *testing.T) {
	got := CalculateCostBasis(ledger(
		entry(models.KindDeposit, "1000", nil),
		entry(models.KindWithdrawal, "250", nil),
	))

	assert.Equal(t, "750", got.RemainingQuantity.String())
	assert.True(t, got.AverageCost.IsZero())
	assert.False(t, got.HasPricedInflow)
	assert.True(t, got.RealizedPnL.IsZero())
	assert.Equal(t, "250", got.UnmatchedQuantity.String())
}

func TestCalculateCostBasis_UnpricedOutflowConsumesLotsWithoutRealizing(t *testing.T) {
	got := CalculateCostBasis(ledger(
		entry(models.KindBuy, "2", dp("100")),
		entry(models.KindTransferOut, "1", nil),
	))

	assert.True(t, got.RealizedPnL.IsZero())
	assert.Equal(t, "1", got.RemainingQuantity.String())
	assert.True(t, got.AverageCost.Equal(d("100")))
}

func TestCalculateCostBasis_OutflowExceedsLots(t *testing.T) {
	got := CalculateCostBasis(ledger(
		entry(models.KindDeposit, "100", nil),
		entry(models.KindBuy, "1", dp("10")),
		entry(models.KindSell, "50", dp("12")),
	))

	// only the single priced unit realizes; the other 49 find no lot
	assert.Equal(t, "2", got.RealizedPnL.String())
	assert.Equal(t, "51", got.RemainingQuantity.String())
	assert.Equal(t, "49", got.UnmatchedQuantity.String())
	assert.True(t, got.AverageCost.IsZero())
}

func TestCalculateCostBasis_OutflowBeyondAllInflowsGoesNegative(t *testing.T) {
	got := CalculateCostBasis(ledger(
		entry(models.KindBuy, "1", dp("10")),
		entry(models.KindSell, "3", dp("10")),
	))

	assert.Equal(t, "-2", got.RemainingQuantity.String())
	assert.True(t, got.AverageCost.IsZero(), "no average cost without a positive position")
	assert.True(t, got.RealizedPnL.IsZero())
}

func TestCalculateCostBasis_FeeReducesQuantityOnly(t *testing.T) {
	got := CalculateCostBasis(ledger(
		entry(models.KindBuy, "2", dp("100")),
		entry(models.KindFee, "0.1", nil),
	))

	assert.Equal(t, "1.9", got.RemainingQuantity.String())
	assert.Equal(t, "105.2631578947368421052631578947", got.AverageCost.String())
	assert.True(t, got.RealizedPnL.IsZero())
}

func TestCalculateCostBasis_TransferAndReward(t *testing.T) {
	got := CalculateCostBasis(ledger(
		entry(models.KindTransferIn, "1", dp("1000")),
		entry(models.KindReward, "1", dp("0")),
		entry(models.KindSell, "1", dp("1500")),
	))

	assert.Equal(t, "500", got.RealizedPnL.String())
	assert.Equal(t, "1", got.RemainingQuantity.String())
	assert.True(t, got.AverageCost.IsZero(), "zero-price reward lot remains")
}

func TestCalculateCostBasis_EmptyHistory(t *testing.T) {
	got := CalculateCostBasis(nil)
	assert.True(t, got.AverageCost.IsZero())
	assert.True(t, got.RealizedPnL.IsZero())
	assert.True(t, got.RemainingQuantity.IsZero())
	assert.False(t, got.HasPricedInflow)
}

func TestCalculateCostBasis_LongHistoryHasNoDrift(t *testing.T) {
	var history []*models.Transaction
	for i := 0; i < 1000; i++ {
		history = append(history, entry(models.KindBuy, "0.1", dp("0.1")))
	}
	for i := 0; i < 999; i++ {
		history = append(history, entry(models.KindSell, "0.1", dp("0.3")))
	}

	got := CalculateCostBasis(history)
	assert.Equal(t, "0.1", got.RemainingQuantity.String())
	assert.Equal(t, "19.98", got.RealizedPnL.String())
	assert.Equal(t, "0.1", got.AverageCost.String())
}
