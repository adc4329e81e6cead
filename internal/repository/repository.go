package repository

import (
	"fmt"

	"golang-autotrader/config"
	"golang-autotrader/pkg/cache"
	"golang-autotrader/pkg/common"
	"golang-autotrader/pkg/logger"

	"gorm.io/gorm"
)

type Repository struct {
	PositionRepo      PositionRepository
	TradingSignalRepo TradingSignalRepository
	BotStateRepo      BotStateRepository
	// JobRepo is nil with the memory driver; the DB job scheduler needs postgres.
	JobRepo          JobRepository
	MarketDataRepo   MarketDataRouter
	OrderGatewayRepo OrderGatewayRepository
	UnitOfWork       UnitOfWork
}

// NewRepository wires the stores for cfg.DB.Driver. db may be nil with the memory driver.
func NewRepository(cfg *config.Config, db *gorm.DB, c cache.Cache, log *logger.Logger) (*Repository, error) {
	marketData, err := NewMarketDataRepository(cfg, log, c, map[string]MarketDataRepository{
		common.PROVIDER_ALPACA: NewAlpacaMarketDataRepository(cfg, log),
		common.PROVIDER_YAHOO:  NewYahooFinanceRepository(cfg, log),
	})
	if err != nil {
		return nil, err
	}

	repo := &Repository{
		MarketDataRepo:   marketData,
		OrderGatewayRepo: NewOrderGatewayRepository(cfg, log),
	}

	switch cfg.DB.Driver {
	case common.DRIVER_POSTGRES:
		if db == nil {
			return nil, fmt.Errorf("postgres driver selected without a database connection")
		}
		repo.PositionRepo = NewPositionRepository(db)
		repo.TradingSignalRepo = NewTradingSignalRepository(db)
		repo.BotStateRepo = NewCachedBotStateRepository(NewBotStateRepository(db), c, cfg.Cache.BotStateExpiration)
		repo.JobRepo = NewJobRepository(db)
		repo.UnitOfWork = NewUnitOfWork(db)
	case common.DRIVER_MEMORY:
		repo.PositionRepo = NewMemoryPositionRepository()
		repo.TradingSignalRepo = NewMemoryTradingSignalRepository()
		repo.BotStateRepo = NewMemoryBotStateRepository()
		repo.UnitOfWork = NewNoopUnitOfWork()
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DB.Driver)
	}

	return repo, nil
}
