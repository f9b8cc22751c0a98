package services

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tropicaldog17/nami-portfolio/internal/models"
)

// allocationColors is the chart palette, assigned by allocation rank
var allocationColors = []string{
	"#F7931A", "#627EEA", "#26A17B", "#2775CA", "#F3BA2F",
	"#9945FF", "#0033AD", "#E84142", "#E6007A", "#8247E5",
}

func colorFor(rank int) string {
	return allocationColors[rank%len(allocationColors)]
}

// CalculateTotals values balances against prices. Balances with a
// non-positive total are skipped. An asset missing from prices has an
// unknown value: it is listed in UnpricedAssets and only its realized P&L
// contributes.
func CalculateTotals(balances []*models.Balance, prices map[string]decimal.Decimal) models.PortfolioTotals {
	totals := models.PortfolioTotals{
		TotalValue:         decimal.Zero,
		TotalPnL:           decimal.Zero,
		TotalPnLPercentage: decimal.Zero,
		RealizedPnL:        decimal.Zero,
		UnrealizedPnL:      decimal.Zero,
		Allocation:         []models.AllocationItem{},
		Holdings:           []models.AssetHolding{},
		UnpricedAssets:     []string{},
	}

	for _, b := range balances {
		if b == nil {
			continue
		}
		quantity := b.Total()
		if !quantity.IsPositive() {
			continue
		}

		holding := models.AssetHolding{
			Asset:       b.Asset,
			Quantity:    quantity,
			AverageCost: b.AverageCost,
			RealizedPnL: b.RealizedPnL,
		}
		totals.RealizedPnL = totals.RealizedPnL.Add(b.RealizedPnL)

		price, ok := prices[b.Asset]
		if !ok {
			totals.UnpricedAssets = append(totals.UnpricedAssets, b.Asset)
			totals.Holdings = append(totals.Holdings, holding)
			continue
		}

		value := quantity.Mul(price)
		holding.Price = &price
		holding.Value = &value
		totals.TotalValue = totals.TotalValue.Add(value)

		if b.HasCostBasis() {
			unrealized := value.Sub(quantity.Mul(*b.AverageCost))
			holding.UnrealizedPnL = &unrealized
			totals.UnrealizedPnL = totals.UnrealizedPnL.Add(unrealized)
		}
		totals.Holdings = append(totals.Holdings, holding)

		if !value.IsZero() {
			totals.Allocation = append(totals.Allocation, models.AllocationItem{Asset: b.Asset, Value: value})
		}
	}

	totals.TotalPnL = totals.UnrealizedPnL.Add(totals.RealizedPnL)

	sort.SliceStable(totals.Allocation, func(i, j int) bool {
		a, b := totals.Allocation[i], totals.Allocation[j]
		if !a.Value.Equal(b.Value) {
			return a.Value.GreaterThan(b.Value)
		}
		return a.Asset < b.Asset
	})
	for i := range totals.Allocation {
		totals.Allocation[i].Percentage = decimal.Zero
		if totals.TotalValue.IsPositive() {
			totals.Allocation[i].Percentage = div(totals.Allocation[i].Value, totals.TotalValue).Mul(hundred)
		}
		totals.Allocation[i].Color = colorFor(i)
	}

	if costBasis := totals.TotalValue.Sub(totals.TotalPnL); costBasis.IsPositive() {
		totals.TotalPnLPercentage = div(totals.TotalPnL, costBasis).Mul(hundred)
	}
	return totals
}
