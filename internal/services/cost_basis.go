package services

import (
	"github.com/shopspring/decimal"

	"github.com/tropicaldog17/nami-portfolio/internal/models"
)

// DivisionScale is the number of fractional digits kept by every division.
// Multiplication and addition on decimal.Decimal are exact.
const DivisionScale int32 = 28

// div divides with half-up rounding at DivisionScale; division by zero yields zero
func div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.DivRound(b, DivisionScale)
}

// lot is one unconsumed priced inflow
type lot struct {
	quantity decimal.Decimal
	price    decimal.Decimal
}

// CalculateCostBasis replays the ordered COMPLETED history of one
// (user, asset) with FIFO lot matching. It is pure and never fails.
//
// Outflow quantity that finds the lot queue empty is still subtracted from
// the remaining quantity but realizes no P&L; it is reported as
// UnmatchedQuantity so callers can flag it.
func CalculateCostBasis(history []*models.Transaction) models.CostBasis {
	var (
		queue     []lot
		head      int
		costTotal = decimal.Zero
		realized  = decimal.Zero
		remaining = decimal.Zero
		unmatched = decimal.Zero
		priced    bool
	)

	for _, tx := range history {
		if tx == nil {
			continue
		}
		switch {
		case tx.Kind.IsInflow():
			remaining = remaining.Add(tx.Amount)
			if tx.HasPrice() {
				priced = true
				queue = append(queue, lot{quantity: tx.Amount, price: *tx.Price})
				costTotal = costTotal.Add(tx.Amount.Mul(*tx.Price))
			}

		case tx.Kind.IsOutflow():
			toConsume := tx.Amount
			for toConsume.IsPositive() && head < len(queue) {
				l := &queue[head]
				consumed := decimal.Min(l.quantity, toConsume)
				if tx.HasPrice() {
					realized = realized.Add(consumed.Mul(tx.Price.Sub(l.price)))
				}
				costTotal = costTotal.Sub(consumed.Mul(l.price))
				l.quantity = l.quantity.Sub(consumed)
				toConsume = toConsume.Sub(consumed)
				if l.quantity.IsZero() {
					head++
				}
			}
			unmatched = unmatched.Add(toConsume)
			remaining = remaining.Sub(tx.Amount)

		case tx.Kind.IsFee():
			remaining = remaining.Sub(tx.Amount)
		}
	}

	averageCost := decimal.Zero
	if remaining.IsPositive() {
		averageCost = div(costTotal, remaining)
	}

	return models.CostBasis{
		AverageCost:       averageCost,
		RealizedPnL:       realized,
		RemainingQuantity: remaining,
		HasPricedInflow:   priced,
		UnmatchedQuantity: unmatched,
	}
}
