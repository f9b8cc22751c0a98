package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	_ "github.com/tropicaldog17/nami-portfolio/docs"
	"github.com/tropicaldog17/nami-portfolio/internal/cache"
	"github.com/tropicaldog17/nami-portfolio/internal/config"
	"github.com/tropicaldog17/nami-portfolio/internal/db"
	"github.com/tropicaldog17/nami-portfolio/internal/handlers"
	"github.com/tropicaldog17/nami-portfolio/internal/logger"
	"github.com/tropicaldog17/nami-portfolio/internal/metrics"
	"github.com/tropicaldog17/nami-portfolio/internal/repositories"
	"github.com/tropicaldog17/nami-portfolio/internal/services"
	"github.com/tropicaldog17/nami-portfolio/migrations"
)

// @title           Nami Portfolio API
// @version         1.0
// @description     Per-user balances, FIFO cost basis and portfolio analytics.
// @BasePath        /api
func main() {
	log, err := logger.New("nami-portfolio")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Database connection
	database, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Health(); err != nil {
		return err
	}
	log.Info("database connection established", zap.String("driver", cfg.Database.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// postgres is migrated out of band by cmd/migrate; a sqlite file
	// bootstraps its own schema
	if !database.IsPostgres() {
		fsys, err := migrations.For(db.DriverSQLite)
		if err != nil {
			return err
		}
		applied, err := database.Migrate(ctx, fsys)
		if err != nil {
			return err
		}
		log.Info("sqlite schema ready", zap.Int("applied", applied), zap.String("path", cfg.Database.Path))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	memCache := cache.NewMemoryCache()
	go memCache.Start()
	defer memCache.Stop()

	balances := repositories.NewBalanceRepository(database)
	transactions := repositories.NewTransactionRepository(database)

	var upstream services.PriceGateway
	switch cfg.PriceProvider {
	case "static":
		upstream = services.NewStaticPriceGateway(cfg.StaticPrices)
	default:
		upstream = services.NewCoinGeckoPriceGateway(cfg.CoinGeckoBaseURL, cfg.PriceRateLimit, log)
	}
	prices := services.NewCachedPriceGateway(upstream, memCache, cfg.PriceTTL, m, log)

	balanceService := services.NewBalanceService(database, balances, transactions, memCache, m, log)
	portfolioService := services.NewPortfolioService(balanceService, balances, transactions, prices, memCache,
		services.PortfolioConfig{
			BalancesTTL:  cfg.BalancesTTL,
			SummaryTTL:   cfg.SummaryTTL,
			RiskFreeRate: cfg.RiskFreeRate,
			HistoryDays:  cfg.HistoryDays,
		}, m, log)

	srv := &http.Server{
		Addr: ":" + cfg.ServerPort,
		Handler: handlers.NewRouter(handlers.RouterDeps{
			Portfolio: portfolioService,
			Health:    database.Health,
			Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			Logger:    log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr), zap.String("price_provider", cfg.PriceProvider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
