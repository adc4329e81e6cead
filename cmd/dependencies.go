package cmd

import (
	"context"
	"errors"
	"fmt"

	"golang-autotrader/config"
	"golang-autotrader/internal/contract"
	"golang-autotrader/internal/delivery/http"
	"golang-autotrader/internal/event"
	"golang-autotrader/pkg/cache"
	"golang-autotrader/pkg/common"
	"golang-autotrader/pkg/keylock"
	"golang-autotrader/pkg/logger"
	"golang-autotrader/pkg/middleware"
	"golang-autotrader/pkg/postgres"
	"golang-autotrader/pkg/redis"
	"golang-autotrader/pkg/telegram"
	"golang-autotrader/pkg/utils"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gopkg.in/telebot.v3"
	"gorm.io/gorm"
)

type AppDependency struct {
	db          *postgres.DB
	redis       *redis.Client
	cfg         *config.Config
	log         *logger.Logger
	validator   *goValidator.Validate
	echo        *echo.Echo
	cache       cache.Cache
	locker      keylock.Locker
	sink        contract.EventSink
	notifier    *telegram.Notifier
	telegramBot *telebot.Bot
}

func NewAppDependency(ctx context.Context) (*AppDependency, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	// The bot client is created first so ERROR logs can be forwarded to the chat.
	var (
		bot      *telebot.Bot
		notifier *telegram.Notifier
		logOpts  []logger.Option
	)
	if cfg.Telegram.BotToken != "" {
		bot, err = telegram.NewBot(&cfg.Telegram)
		if err != nil {
			return nil, err
		}
		notifier = telegram.NewNotifier(&cfg.Telegram, logger.NewNop(), bot)
		logOpts = append(logOpts, logger.WithAlertSender(notifier, cfg.Events.AlertMinLevel))
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding, logOpts...)
	if err != nil {
		return nil, err
	}
	if notifier != nil {
		// the alert path keeps its nop-logged notifier; this one reports send failures
		notifier = telegram.NewNotifier(&cfg.Telegram, log, bot)
	}

	dep := &AppDependency{
		cfg:         cfg,
		log:         log,
		validator:   goValidator.New(),
		cache:       cache.NewCache(cfg.Cache.DefaultExpiration, cfg.Cache.CleanupInterval),
		notifier:    notifier,
		telegramBot: bot,
	}

	if cfg.DB.Driver == common.DRIVER_POSTGRES {
		db, err := postgres.NewDB(cfg.DB, log)
		if err != nil {
			log.Error("Failed to connect to database", zap.Error(err))
			return nil, err
		}
		dep.db = db
	}

	if cfg.Lock.Driver == common.DRIVER_REDIS || utils.ContainsString(cfg.Events.Sinks, common.SINK_REDIS) {
		rdb, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			log.Error("Failed to connect to redis", zap.Error(err))
			_ = dep.Close()
			return nil, err
		}
		dep.redis = rdb
	}

	switch cfg.Lock.Driver {
	case common.DRIVER_REDIS:
		dep.locker = keylock.NewRedisLocker(dep.redis.Underlying(), cfg.Lock.TTL, log)
	case common.DRIVER_MEMORY, "":
		dep.locker = keylock.NewMemoryLocker()
	default:
		_ = dep.Close()
		return nil, fmt.Errorf("unknown lock driver %q", cfg.Lock.Driver)
	}

	sink, err := dep.newEventSink()
	if err != nil {
		_ = dep.Close()
		return nil, err
	}
	dep.sink = sink

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.NewRequestLogger(log))
	if cfg.API.RateLimitPerSecond > 0 {
		e.Use(middleware.NewRateLimiterMiddleware(cfg.API.RateLimitPerSecond, cfg.API.RateLimitBurst))
	}
	dep.echo = e

	return dep, nil
}

func (d *AppDependency) newEventSink() (contract.EventSink, error) {
	var sinks []contract.EventSink
	for _, name := range d.cfg.Events.Sinks {
		switch name {
		case common.SINK_LOG:
			sinks = append(sinks, event.NewLogSink(d.log))
		case common.SINK_TELEGRAM:
			if d.notifier == nil {
				d.log.Warn("Telegram sink requested without a bot token, skipping")
				continue
			}
			sinks = append(sinks, event.NewTelegramSink(d.notifier, d.cfg.Telegram.TimeoutDuration, d.log))
		case common.SINK_REDIS:
			sinks = append(sinks, event.NewRedisSink(d.redis.Underlying(), d.cfg.Events.RedisChannel, d.cfg.Events.RedisStream, d.log))
		default:
			return nil, fmt.Errorf("unknown event sink %q", name)
		}
	}
	return event.NewMultiSink(sinks...), nil
}

func (d *AppDependency) Close() error {
	d.log.Info("Closing app dependency")
	var errs []error
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *AppDependency) gormDB() *gorm.DB {
	if d.db == nil {
		return nil
	}
	return d.db.DB
}

func (d *AppDependency) healthChecks() map[string]http.HealthCheck {
	checks := map[string]http.HealthCheck{}
	if d.db != nil {
		checks["postgres"] = d.db.Ping
	}
	if d.redis != nil {
		checks["redis"] = d.redis.Ping
	}
	return checks
}
