package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/tropicaldog17/nami-portfolio/internal/db"
	apperrors "github.com/tropicaldog17/nami-portfolio/internal/errors"
)

// Config holds the service configuration
type Config struct {
	ServerPort string
	Database   *db.Config

	BalancesTTL time.Duration
	SummaryTTL  time.Duration
	PriceTTL    time.Duration

	// RiskFreeRate is annual, e.g. 0.02 for 2%
	RiskFreeRate decimal.Decimal
	HistoryDays  int

	PriceProvider    string
	CoinGeckoBaseURL string
	PriceRateLimit   float64
	// StaticPrices seeds PRICE_PROVIDER=static, e.g. "BTC=60000,ETH=3000"
	StaticPrices map[string]decimal.Decimal
}

// Load reads an optional .env file and then the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		Database:         db.NewConfig(),
		PriceProvider:    getEnv("PRICE_PROVIDER", "coingecko"),
		CoinGeckoBaseURL: getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
	}

	var err error
	if cfg.BalancesTTL, err = getDuration("CACHE_BALANCES_TTL", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.SummaryTTL, err = getDuration("CACHE_SUMMARY_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.PriceTTL, err = getDuration("CACHE_PRICE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RiskFreeRate, err = getDecimal("RISK_FREE_RATE", decimal.RequireFromString("0.02")); err != nil {
		return nil, err
	}
	if cfg.HistoryDays, err = getInt("HISTORY_DAYS", 30); err != nil {
		return nil, err
	}
	if cfg.PriceRateLimit, err = getFloat("PRICE_RATE_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.StaticPrices, err = getPriceTable("STATIC_PRICES"); err != nil {
		return nil, err
	}

	switch cfg.PriceProvider {
	case "coingecko", "static":
	default:
		return nil, apperrors.NewValidation("PRICE_PROVIDER", "must be coingecko or static")
	}
	if cfg.HistoryDays <= 0 {
		return nil, apperrors.NewValidation("HISTORY_DAYS", "must be positive")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		// bare integers are seconds
		secs, convErr := strconv.Atoi(value)
		if convErr != nil {
			return 0, apperrors.NewValidation(key, "invalid duration "+strconv.Quote(value))
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 {
		return 0, apperrors.NewValidation(key, "must be positive")
	}
	return d, nil
}

func getDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, apperrors.NewValidation(key, "invalid decimal "+strconv.Quote(value))
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, apperrors.NewValidation(key, "invalid integer "+strconv.Quote(value))
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f <= 0 {
		return 0, apperrors.NewValidation(key, "invalid positive number "+strconv.Quote(value))
	}
	return f, nil
}

func getPriceTable(key string) (map[string]decimal.Decimal, error) {
	table := make(map[string]decimal.Decimal)
	value := os.Getenv(key)
	if value == "" {
		return table, nil
	}
	for _, pair := range strings.Split(value, ",") {
		asset, raw, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || strings.TrimSpace(asset) == "" {
			return nil, apperrors.NewValidation(key, "expected ASSET=PRICE, got "+strconv.Quote(pair))
		}
		price, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil || !price.IsPositive() {
			return nil, apperrors.NewValidation(key, "invalid price for "+strings.TrimSpace(asset))
		}
		table[strings.ToUpper(strings.TrimSpace(asset))] = price
	}
	return table, nil
}
