package service

import (
	"golang-autotrader/config"
	"golang-autotrader/internal/contract"
	"golang-autotrader/internal/repository"
	"golang-autotrader/internal/strategy"
	"golang-autotrader/pkg/cache"
	"golang-autotrader/pkg/keylock"
	"golang-autotrader/pkg/logger"
	"golang-autotrader/pkg/retry"

	goValidator "github.com/go-playground/validator/v10"
)

type Service struct {
	// SchedulerService and TaskExecutor are nil without a job store.
	SchedulerService SchedulerService
	TaskExecutor     TaskExecutor
	TradeExecutor    TradeExecutor
	ExitMonitor      ExitMonitor
	OrderReconciler  OrderReconciler
	TradingService   TradingService
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
	locker keylock.Locker,
	sink contract.EventSink,
	validator *goValidator.Validate,
) (*Service, error) {
	calendar, err := NewMarketCalendar(cfg.Market)
	if err != nil {
		return nil, err
	}

	fetcher := NewRetryingFetcher(repo.MarketDataRepo, retry.Config{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		Logger:     log,
	})

	reconciler := NewOrderReconciler(cfg, log, repo, sink)
	tradeExecutor := NewTradeExecutor(cfg, log, inmemoryCache, repo, calendar, fetcher, locker, sink, reconciler)
	exitMonitor := NewExitMonitor(cfg, log, repo, fetcher, locker, sink)

	svc := &Service{
		TradeExecutor:   tradeExecutor,
		ExitMonitor:     exitMonitor,
		OrderReconciler: reconciler,
		TradingService:  NewTradingService(cfg, log, repo, calendar),
	}

	if repo.JobRepo == nil {
		log.Warn("No job store configured, scheduled jobs are disabled")
		return svc, nil
	}

	executorStrategies := make(map[strategy.JobType]strategy.JobExecutionStrategy)
	for _, s := range []strategy.JobExecutionStrategy{
		strategy.NewEmaTradeStrategy(cfg, log, validator, tradeExecutor),
		strategy.NewExitMonitorStrategy(cfg, log, validator, exitMonitor, repo.PositionRepo),
		strategy.NewOrderReconcileStrategy(log, reconciler),
		strategy.NewDataCleanUpStrategy(cfg, log, repo.JobRepo, repo.UnitOfWork),
	} {
		executorStrategies[s.GetType()] = s
	}

	svc.TaskExecutor = NewTaskExecutor(cfg, log, repo.JobRepo, executorStrategies)
	svc.SchedulerService = NewSchedulerService(cfg, log, repo.JobRepo, svc.TaskExecutor)
	return svc, nil
}
