package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "github.com/tropicaldog17/nami-portfolio/internal/errors"
)

const (
	DefaultCoinGeckoBaseURL = "https://api.coingecko.com/api/v3"
	DefaultPriceRateLimit   = 5 // requests per second
	quoteCurrency           = "usd"
)

// stablecoins are priced at 1 when the upstream leaves them out
var stablecoins = map[string]bool{"USDT": true, "USDC": true, "DAI": true, "BUSD": true}

// CoinGeckoPriceGateway prices assets with one batched simple/price call
// (no API key required).
type CoinGeckoPriceGateway struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewCoinGeckoPriceGateway creates a gateway limited to requestsPerSecond.
// Empty or non-positive arguments take the defaults.
func NewCoinGeckoPriceGateway(baseURL string, requestsPerSecond float64, logger *zap.Logger) *CoinGeckoPriceGateway {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoBaseURL
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = DefaultPriceRateLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	burst := int(math.Max(1, math.Ceil(requestsPerSecond)))
	return &CoinGeckoPriceGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		logger:     logger,
	}
}

// GetPrices returns USD prices for the assets CoinGecko knows. On an
// upstream failure the stablecoin fallbacks are still returned alongside
// the UpstreamError.
func (g *CoinGeckoPriceGateway) GetPrices(ctx context.Context, assets []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(assets))
	idToSymbols := make(map[string][]string)
	for _, a := range normalizeAssets(assets) {
		if id := mapSymbolToCoinGeckoID(a); id != "" {
			idToSymbols[id] = append(idToSymbols[id], a)
		}
	}

	var fetchErr error
	if len(idToSymbols) > 0 {
		fetched, err := g.fetch(ctx, idToSymbols)
		if err != nil {
			fetchErr = apperrors.NewUpstream("coingecko", err)
			g.logger.Warn("price fetch failed", zap.Int("assets", len(assets)), zap.Error(err))
		}
		for symbol, p := range fetched {
			prices[symbol] = p
		}
	}

	for _, a := range normalizeAssets(assets) {
		if _, ok := prices[a]; !ok && stablecoins[a] {
			prices[a] = decimal.NewFromInt(1)
		}
	}
	return prices, fetchErr
}

func (g *CoinGeckoPriceGateway) fetch(ctx context.Context, idToSymbols map[string][]string) (map[string]decimal.Decimal, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	ids := make([]string, 0, len(idToSymbols))
	for id := range idToSymbols {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", quoteCurrency)
	reqURL := g.baseURL + "/simple/price?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coingecko status %d", resp.StatusCode)
	}

	// json.Number keeps the quoted digits; float64 would round them
	var payload map[string]map[string]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	out := make(map[string]decimal.Decimal)
	for id, symbols := range idToSymbols {
		raw, ok := payload[id][quoteCurrency]
		if !ok {
			continue
		}
		p, err := decimal.NewFromString(raw.String())
		if err != nil {
			g.logger.Warn("unparseable price", zap.String("id", id), zap.String("value", raw.String()))
			continue
		}
		for _, s := range symbols {
			out[s] = p
		}
	}
	return out, nil
}

// normalizeAssets upper-cases, trims and de-duplicates symbols
func normalizeAssets(assets []string) []string {
	seen := make(map[string]bool, len(assets))
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		a = strings.ToUpper(strings.TrimSpace(a))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

func mapSymbolToCoinGeckoID(symbol string) string {
	switch strings.ToUpper(symbol) {
	case "BTC":
		return "bitcoin"
	case "ETH":
		return "ethereum"

	// Stablecoins
	case "USDT":
		return "tether"
	case "USDC":
		return "usd-coin"
	case "DAI":
		return "dai"
	case "BUSD":
		return "binance-usd"

	case "PAXG", "XAU":
		return "pax-gold"

	// Layer 1
	case "SOL":
		return "solana"
	case "ADA":
		return "cardano"
	case "AVAX":
		return "avalanche-2"
	case "DOT":
		return "polkadot"
	case "MATIC":
		return "matic-network"
	case "ATOM":
		return "cosmos"
	case "NEAR":
		return "near"

	// DeFi & exchange tokens
	case "BNB":
		return "binancecoin"
	case "UNI":
		return "uniswap"
	case "LINK":
		return "chainlink"
	case "AAVE":
		return "aave"

	case "XRP":
		return "ripple"
	case "LTC":
		return "litecoin"
	case "DOGE":
		return "dogecoin"
	case "ARB":
		return "arbitrum"
	case "OP":
		return "optimism"

	default:
		return ""
	}
}

// StaticPriceGateway serves a fixed price table. With a Fallback set, every
// unknown asset gets that price instead of being left out.
type StaticPriceGateway struct {
	Prices   map[string]decimal.Decimal
	Fallback *decimal.Decimal
}

func NewStaticPriceGateway(prices map[string]decimal.Decimal) *StaticPriceGateway {
	table := make(map[string]decimal.Decimal, len(prices))
	for k, v := range prices {
		table[strings.ToUpper(k)] = v
	}
	return &StaticPriceGateway{Prices: table}
}

func (g *StaticPriceGateway) GetPrices(_ context.Context, assets []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(assets))
	for _, a := range normalizeAssets(assets) {
		if p, ok := g.Prices[a]; ok {
			out[a] = p
		} else if g.Fallback != nil {
			out[a] = *g.Fallback
		}
	}
	return out, nil
}
