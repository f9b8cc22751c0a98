package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tropicaldog17/nami-portfolio/internal/cache"
	"github.com/tropicaldog17/nami-portfolio/internal/metrics"
)

const priceCacheName = "price"

// CachedPriceGateway reads prices through price:{asset} cache entries.
// Concurrent misses for the same asset set share one upstream call.
type CachedPriceGateway struct {
	inner   PriceGateway
	cache   cache.Cache
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewCachedPriceGateway(inner PriceGateway, c cache.Cache, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *CachedPriceGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedPriceGateway{inner: inner, cache: c, ttl: ttl, metrics: m, logger: logger}
}

type fetchResult struct {
	prices map[string]decimal.Decimal
}

func (g *CachedPriceGateway) GetPrices(ctx context.Context, assets []string) (map[string]decimal.Decimal, error) {
	normalized := normalizeAssets(assets)
	out := make(map[string]decimal.Decimal, len(normalized))

	var misses []string
	for _, a := range normalized {
		if p, ok := g.lookup(ctx, a); ok {
			out[a] = p
			continue
		}
		misses = append(misses, a)
	}
	if len(misses) == 0 {
		return out, nil
	}

	sort.Strings(misses)
	v, err, _ := g.group.Do(strings.Join(misses, ","), func() (interface{}, error) {
		start := time.Now()
		prices, err := g.inner.GetPrices(ctx, misses)
		g.metrics.ObservePriceFetch(time.Since(start).Seconds())
		for asset, p := range prices {
			if setErr := g.cache.SetWithTTL(ctx, cache.PriceKey(asset), []byte(p.String()), g.ttl); setErr != nil {
				g.logger.Warn("price cache write failed", zap.String("asset", asset), zap.Error(setErr))
			}
		}
		return fetchResult{prices: prices}, err
	})
	if res, ok := v.(fetchResult); ok {
		for asset, p := range res.prices {
			out[asset] = p
		}
	}
	return out, err
}

func (g *CachedPriceGateway) lookup(ctx context.Context, asset string) (decimal.Decimal, bool) {
	raw, hit, err := g.cache.Get(ctx, cache.PriceKey(asset))
	if err != nil {
		g.metrics.CacheResult(priceCacheName, "error")
		g.logger.Warn("price cache read failed", zap.String("asset", asset), zap.Error(err))
		return decimal.Zero, false
	}
	if !hit {
		g.metrics.CacheResult(priceCacheName, "miss")
		return decimal.Zero, false
	}
	p, err := decimal.NewFromString(string(raw))
	if err != nil {
		g.metrics.CacheResult(priceCacheName, "error")
		return decimal.Zero, false
	}
	g.metrics.CacheResult(priceCacheName, "hit")
	return p, true
}
