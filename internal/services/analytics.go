package services

import (
	"github.com/shopspring/decimal"

	"github.com/tropicaldog17/nami-portfolio/internal/models"
)

// TradingDaysPerYear annualizes daily return statistics
const TradingDaysPerYear = 252

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.RequireFromString("0.5")
)

// CalculatePerformanceMetrics returns the change from previous to current.
// The percentage is 0 when previous is not positive.
func CalculatePerformanceMetrics(current, previous decimal.Decimal) models.PerformanceMetrics {
	change := current.Sub(previous)
	pct := decimal.Zero
	if previous.IsPositive() {
		pct = div(change, previous).Mul(hundred)
	}
	return models.PerformanceMetrics{AbsoluteChange: change, PercentageChange: pct}
}

// CalculateSharpeRatio annualizes the mean excess daily return over its
// sample standard deviation. Fewer than two observations, or a series
// without volatility, yields 0.
func CalculateSharpeRatio(returns []decimal.Decimal, annualRiskFree decimal.Decimal) decimal.Decimal {
	n := len(returns)
	if n < 2 {
		return decimal.Zero
	}

	sum := decimal.Zero
	for _, r := range returns {
		sum = sum.Add(r)
	}
	mean := div(sum, decimal.NewFromInt(int64(n)))

	sq := decimal.Zero
	for _, r := range returns {
		dev := r.Sub(mean)
		sq = sq.Add(dev.Mul(dev))
	}
	variance := div(sq, decimal.NewFromInt(int64(n-1)))
	if !variance.IsPositive() {
		return decimal.Zero
	}

	stdDev := sqrt(variance)
	if stdDev.IsZero() {
		return decimal.Zero
	}

	dailyRiskFree := div(annualRiskFree, decimal.NewFromInt(TradingDaysPerYear))
	annualizer := sqrt(decimal.NewFromInt(TradingDaysPerYear))
	return div(mean.Sub(dailyRiskFree), stdDev).Mul(annualizer).Round(DivisionScale)
}

// sqrt of a non-negative x at DivisionScale; anything else yields 0
func sqrt(x decimal.Decimal) decimal.Decimal {
	if !x.IsPositive() {
		return decimal.Zero
	}
	root, err := x.PowWithPrecision(half, DivisionScale)
	if err != nil {
		return decimal.Zero
	}
	return root.Round(DivisionScale)
}

// CalculateDiversificationScore maps the Herfindahl-Hirschman index of the
// allocation onto [0,100]: an even split scores 100 and a single asset 0.
func CalculateDiversificationScore(allocation []models.AllocationItem) decimal.Decimal {
	var weights []decimal.Decimal
	total := decimal.Zero
	for _, a := range allocation {
		if a.Percentage.IsPositive() {
			weights = append(weights, a.Percentage)
			total = total.Add(a.Percentage)
		}
	}
	n := len(weights)
	if n <= 1 {
		return decimal.Zero
	}

	// normalize so rounded percentages that do not sum to 100 still score
	hhi := decimal.Zero
	for _, w := range weights {
		share := div(w, total)
		hhi = hhi.Add(share.Mul(share))
	}

	minHHI := div(decimal.NewFromInt(1), decimal.NewFromInt(int64(n)))
	score := div(decimal.NewFromInt(1).Sub(hhi), decimal.NewFromInt(1).Sub(minHHI)).Mul(hundred)
	return clamp(score, decimal.Zero, hundred)
}

// DailyReturns turns a value series into simple period returns. Steps from a
// non-positive value are skipped since their return is undefined.
func DailyReturns(points []models.HistoryPoint) []decimal.Decimal {
	var out []decimal.Decimal
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Value
		if !prev.IsPositive() {
			continue
		}
		out = append(out, div(points[i].Value.Sub(prev), prev))
	}
	return out
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
