package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tropicaldog17/nami-portfolio/internal/cache"
	apperrors "github.com/tropicaldog17/nami-portfolio/internal/errors"
	"github.com/tropicaldog17/nami-portfolio/internal/metrics"
	"github.com/tropicaldog17/nami-portfolio/internal/models"
	"github.com/tropicaldog17/nami-portfolio/internal/repositories"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	maxHistoryDays  = 365
)

// PortfolioConfig carries the tunables of the read paths
type PortfolioConfig struct {
	BalancesTTL  time.Duration
	SummaryTTL   time.Duration
	RiskFreeRate decimal.Decimal
	HistoryDays  int
}

// DefaultPortfolioConfig matches the documented defaults
func DefaultPortfolioConfig() PortfolioConfig {
	return PortfolioConfig{
		BalancesTTL:  60 * time.Second,
		SummaryTTL:   30 * time.Second,
		RiskFreeRate: decimal.RequireFromString("0.02"),
		HistoryDays:  30,
	}
}

type portfolioService struct {
	balanceService BalanceService
	balances       repositories.BalanceRepository
	transactions   repositories.TransactionRepository
	prices         PriceGateway
	cache          cache.Cache
	cfg            PortfolioConfig
	metrics        *metrics.Metrics
	logger         *zap.Logger
	now            func() time.Time
}

// NewPortfolioService wires the public portfolio operations. c may be nil to
// disable caching.
func NewPortfolioService(
	balanceService BalanceService,
	balances repositories.BalanceRepository,
	transactions repositories.TransactionRepository,
	prices PriceGateway,
	c cache.Cache,
	cfg PortfolioConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) PortfolioService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = DefaultPortfolioConfig().HistoryDays
	}
	return &portfolioService{
		balanceService: balanceService,
		balances:       balances,
		transactions:   transactions,
		prices:         prices,
		cache:          c,
		cfg:            cfg,
		metrics:        m,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func requireUser(userID string) error {
	if userID == "" {
		return apperrors.NewValidation("user_id", "is required")
	}
	return nil
}

// RecordCompletedTransaction applies tx to userID's balance atomically
func (s *portfolioService) RecordCompletedTransaction(ctx context.Context, userID string, tx *models.Transaction) (*models.Balance, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, apperrors.NewValidation("transaction", "is required")
	}
	if tx.UserID != "" && tx.UserID != userID {
		return nil, apperrors.NewValidation("user_id", "does not match the transaction owner")
	}
	tx.UserID = userID
	return s.balanceService.ApplyCompletedTransaction(ctx, tx)
}

// GetAssetBalances returns every balance of userID ordered by asset
func (s *portfolioService) GetAssetBalances(ctx context.Context, userID string) ([]*models.Balance, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	var balances []*models.Balance
	if s.readCache(ctx, "balances", cache.BalancesKey(userID), &balances) {
		return balances, nil
	}

	balances, err := s.balances.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balances == nil {
		balances = []*models.Balance{}
	}
	s.writeCache(ctx, cache.BalancesKey(userID), balances, s.cfg.BalancesTTL)
	return balances, nil
}

// GetPortfolioSummary values the balances of userID at current prices.
// Assets without a price are reported, not fatal; the call only fails when
// no requested price could be fetched at all.
func (s *portfolioService) GetPortfolioSummary(ctx context.Context, userID string) (*models.PortfolioSummary, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	var cached models.PortfolioSummary
	if s.readCache(ctx, "summary", cache.SummaryKey(userID), &cached) {
		return &cached, nil
	}

	balances, err := s.GetAssetBalances(ctx, userID)
	if err != nil {
		return nil, err
	}

	var held []string
	for _, b := range balances {
		if b.Total().IsPositive() {
			held = append(held, b.Asset)
		}
	}
	prices, degraded, err := s.fetchPrices(ctx, held)
	if err != nil {
		return nil, err
	}

	totals := CalculateTotals(balances, prices)
	summary := &models.PortfolioSummary{
		UserID:               userID,
		PortfolioTotals:      totals,
		DiversificationScore: CalculateDiversificationScore(totals.Allocation),
		GeneratedAt:          s.now(),
	}
	// a degraded summary is not cached so the next read retries the gateway
	if !degraded {
		s.writeCache(ctx, cache.SummaryKey(userID), summary, s.cfg.SummaryTTL)
	}
	return summary, nil
}

// fetchPrices asks the gateway for assets. degraded reports a partial
// failure that left some assets unpriced.
func (s *portfolioService) fetchPrices(ctx context.Context, assets []string) (map[string]decimal.Decimal, bool, error) {
	if len(assets) == 0 {
		return map[string]decimal.Decimal{}, false, nil
	}
	prices, err := s.prices.GetPrices(ctx, assets)
	if err == nil {
		return prices, false, nil
	}
	if len(prices) == 0 {
		if !apperrors.IsUpstream(err) {
			err = apperrors.NewUpstream("prices", err)
		}
		return nil, false, err
	}
	s.logger.Warn("pricing degraded", zap.Int("requested", len(assets)), zap.Int("priced", len(prices)), zap.Error(err))
	return prices, true, nil
}

// GetTransactionHistory returns one page of userID's ledger, newest first
func (s *portfolioService) GetTransactionHistory(ctx context.Context, userID string, filter *models.TransactionFilter) (*models.TransactionPage, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	f := models.TransactionFilter{}
	if filter != nil {
		f = *filter
	}
	if f.Offset < 0 {
		return nil, apperrors.NewValidation("offset", "must not be negative")
	}
	if f.Limit < 0 {
		return nil, apperrors.NewValidation("limit", "must not be negative")
	}
	if f.Limit == 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return nil, apperrors.NewValidation("end_date", "must not be before start_date")
	}

	items, err := s.transactions.List(ctx, userID, &f)
	if err != nil {
		return nil, err
	}
	total, err := s.transactions.Count(ctx, userID, &f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.Transaction{}
	}
	return &models.TransactionPage{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// GetPortfolioHistory returns one point per UTC day for the last days days,
// oldest first. Each point replays the completed quantities up to the end of
// that day and values them at today's prices; historical prices are not kept.
func (s *portfolioService) GetPortfolioHistory(ctx context.Context, userID string, days int) ([]models.HistoryPoint, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = s.cfg.HistoryDays
	}
	if days > maxHistoryDays {
		return nil, apperrors.NewValidation("days", fmt.Sprintf("must be at most %d", maxHistoryDays))
	}

	entries, err := s.transactions.ListCompletedByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var assets []string
	seen := make(map[string]bool)
	for _, e := range entries {
		if !seen[e.Asset] {
			seen[e.Asset] = true
			assets = append(assets, e.Asset)
		}
	}
	prices, _, err := s.fetchPrices(ctx, assets)
	if err != nil {
		return nil, err
	}

	today := s.now().Truncate(24 * time.Hour)
	quantities := make(map[string]decimal.Decimal)
	next := 0
	points := make([]models.HistoryPoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		end := day.Add(24 * time.Hour)
		for ; next < len(entries) && entries[next].CreatedAt.Before(end); next++ {
			e := entries[next]
			quantities[e.Asset] = quantities[e.Asset].Add(e.SignedAmount())
		}

		value := decimal.Zero
		for asset, q := range quantities {
			if p, ok := prices[asset]; ok && q.IsPositive() {
				value = value.Add(q.Mul(p))
			}
		}
		points = append(points, models.HistoryPoint{Date: day, Value: value})
	}
	return points, nil
}

// GetPerformance reports the change, Sharpe ratio and diversification over
// the last days days.
func (s *portfolioService) GetPerformance(ctx context.Context, userID string, days int) (*models.PerformanceReport, error) {
	history, err := s.GetPortfolioHistory(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	summary, err := s.GetPortfolioSummary(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &models.PerformanceReport{
		UserID:               userID,
		Days:                 len(history),
		StartValue:           decimal.Zero,
		EndValue:             decimal.Zero,
		SharpeRatio:          CalculateSharpeRatio(DailyReturns(history), s.cfg.RiskFreeRate),
		DiversificationScore: summary.DiversificationScore,
		History:              history,
	}
	if len(history) > 0 {
		report.StartValue = history[0].Value
		report.EndValue = history[len(history)-1].Value
	}
	report.Change = CalculatePerformanceMetrics(report.EndValue, report.StartValue)
	return report, nil
}

func (s *portfolioService) LockFunds(ctx context.Context, userID, asset string, amount decimal.Decimal) (*models.Balance, error) {
	return s.balanceService.LockFunds(ctx, userID, asset, amount)
}

func (s *portfolioService) UnlockFunds(ctx context.Context, userID, asset string, amount decimal.Decimal) (*models.Balance, error) {
	return s.balanceService.UnlockFunds(ctx, userID, asset, amount)
}

// readCache decodes key into dst. Any cache failure is a miss.
func (s *portfolioService) readCache(ctx context.Context, name, key string, dst interface{}) bool {
	if s.cache == nil {
		return false
	}
	raw, hit, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		s.metrics.CacheResult(name, "error")
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	case !hit:
		s.metrics.CacheResult(name, "miss")
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.metrics.CacheResult(name, "error")
		s.logger.Warn("cache entry undecodable", zap.String("key", key), zap.Error(err))
		return false
	}
	s.metrics.CacheResult(name, "hit")
	return true
}

func (s *portfolioService) writeCache(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.cache.SetWithTTL(ctx, key, raw, ttl); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
