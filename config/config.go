package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log          Logger         `mapstructure:"logger"`
	DB           Database       `mapstructure:"database"`
	API          API            `mapstructure:"api"`
	Scheduler    Scheduler      `mapstructure:"scheduler"`
	Cache        Cache          `mapstructure:"cache"`
	Redis        Redis          `mapstructure:"redis"`
	Lock         Lock           `mapstructure:"lock"`
	Alpaca       Alpaca         `mapstructure:"alpaca"`
	YahooFinance YahooFinance   `mapstructure:"yahoo_finance"`
	MarketData   MarketData     `mapstructure:"market_data"`
	Market       Market         `mapstructure:"market"`
	Trading      Trading        `mapstructure:"trading"`
	Retry        Retry          `mapstructure:"retry"`
	Reconciler   Reconciler     `mapstructure:"reconciler"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
	Events       Events         `mapstructure:"events"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Database struct {
	Driver          string `mapstructure:"driver"` // postgres | memory
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type Scheduler struct {
	Enabled         bool          `mapstructure:"enabled"`
	TickSpec        string        `mapstructure:"tick_spec"`
	MaxConcurrency  int           `mapstructure:"max_concurrency"`
	TimeoutDuration time.Duration `mapstructure:"timeout_duration"`
}

type API struct {
	Port               int     `mapstructure:"port"`
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst"`
}

type Cache struct {
	DefaultExpiration  time.Duration `mapstructure:"default_expiration"`
	CleanupInterval    time.Duration `mapstructure:"cleanup_interval"`
	BotStateExpiration time.Duration `mapstructure:"bot_state_expiration"`
	LastErrorDuration  time.Duration `mapstructure:"last_error_duration"`
	LastPriceDuration  time.Duration `mapstructure:"last_price_duration"`
}

type Redis struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	PoolSize   int    `mapstructure:"pool_size"`
	MaxRetries int    `mapstructure:"max_retries"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
}

type Lock struct {
	Driver string        `mapstructure:"driver"` // memory | redis
	TTL    time.Duration `mapstructure:"ttl"`
}

type Alpaca struct {
	APIKey          string        `mapstructure:"api_key"`
	APISecret       string        `mapstructure:"api_secret"`
	BaseURL         string        `mapstructure:"base_url"`
	DataFeed        string        `mapstructure:"data_feed"`
	FillWaitAttempt int           `mapstructure:"fill_wait_attempt"`
	FillWaitDelay   time.Duration `mapstructure:"fill_wait_delay"`
}

type YahooFinance struct {
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
}

type MarketData struct {
	Provider            string `mapstructure:"provider"` // alpaca | yahoo
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	BarsLimit           int    `mapstructure:"bars_limit"`
	LookbackDays        int    `mapstructure:"lookback_days"`
}

type Holiday struct {
	Date string `mapstructure:"date"` // YYYY-MM-DD
	Name string `mapstructure:"name"`
}

type Market struct {
	TimeZone      string    `mapstructure:"time_zone"`
	OpenTime      string    `mapstructure:"open_time"`  // HH:MM
	CloseTime     string    `mapstructure:"close_time"` // HH:MM
	ExtraHolidays []Holiday `mapstructure:"extra_holidays"`
}

type Trading struct {
	NotionalAmount   float64 `mapstructure:"notional_amount"`
	TakeProfitPct    float64 `mapstructure:"take_profit_pct"`
	StopLossPct      float64 `mapstructure:"stop_loss_pct"`
	ConfirmationBars int     `mapstructure:"confirmation_bars"`
	FastPeriod       int     `mapstructure:"fast_period"`
	MidPeriod        int     `mapstructure:"mid_period"`
	SlowPeriod       int     `mapstructure:"slow_period"`
	DefaultTimeframe string  `mapstructure:"default_timeframe"`
	SubmitExitOrders bool    `mapstructure:"submit_exit_orders"`
}

type Retry struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}

type Reconciler struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	WatchInline  bool          `mapstructure:"watch_inline"`
}

type TelegramConfig struct {
	BotToken                  string        `mapstructure:"bot_token"`
	ChatID                    int64         `mapstructure:"chat_id"`
	UserID                    uint          `mapstructure:"user_id"` // trading user the chat acts for
	WebhookURL                string        `mapstructure:"webhook_url"`
	TimeoutDuration           time.Duration `mapstructure:"timeout_duration"`
	MaxGlobalRequestPerSecond int           `mapstructure:"max_global_request_per_second"`
}

type Events struct {
	Sinks         []string `mapstructure:"sinks"` // log | telegram | redis
	RedisChannel  string   `mapstructure:"redis_channel"`
	RedisStream   string   `mapstructure:"redis_stream"`
	AlertMinLevel string   `mapstructure:"alert_min_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.log_level", "Warn")

	v.SetDefault("api.port", 8080)
	v.SetDefault("api.rate_limit_per_second", 10.0)
	v.SetDefault("api.rate_limit_burst", 20)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.tick_spec", "@every 1m")
	v.SetDefault("scheduler.max_concurrency", 4)
	v.SetDefault("scheduler.timeout_duration", 5*time.Minute)

	v.SetDefault("cache.default_expiration", 10*time.Minute)
	v.SetDefault("cache.cleanup_interval", 15*time.Minute)
	v.SetDefault("cache.bot_state_expiration", 10*time.Second)
	v.SetDefault("cache.last_error_duration", 24*time.Hour)
	v.SetDefault("cache.last_price_duration", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.max_retries", 3)

	v.SetDefault("lock.driver", "memory")
	v.SetDefault("lock.ttl", 2*time.Minute)

	v.SetDefault("alpaca.base_url", "https://paper-api.alpaca.markets")
	v.SetDefault("alpaca.data_feed", "iex")
	v.SetDefault("alpaca.fill_wait_attempt", 3)
	v.SetDefault("alpaca.fill_wait_delay", time.Second)

	v.SetDefault("yahoo_finance.base_url", "https://query1.finance.yahoo.com/v8/finance/chart")
	v.SetDefault("yahoo_finance.timeout", 10*time.Second)
	v.SetDefault("yahoo_finance.max_request_per_minute", 60)

	v.SetDefault("market_data.provider", "alpaca")
	v.SetDefault("market_data.max_request_per_minute", 180)
	v.SetDefault("market_data.bars_limit", 100)
	v.SetDefault("market_data.lookback_days", 10)

	v.SetDefault("market.time_zone", "America/New_York")
	v.SetDefault("market.open_time", "09:30")
	v.SetDefault("market.close_time", "16:00")

	v.SetDefault("trading.notional_amount", 100.0)
	v.SetDefault("trading.take_profit_pct", 2.0)
	v.SetDefault("trading.stop_loss_pct", 2.0)
	v.SetDefault("trading.confirmation_bars", 3)
	v.SetDefault("trading.fast_period", 5)
	v.SetDefault("trading.mid_period", 8)
	v.SetDefault("trading.slow_period", 22)
	v.SetDefault("trading.default_timeframe", "5Min")
	v.SetDefault("trading.submit_exit_orders", false)

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay", 2*time.Second)

	v.SetDefault("reconciler.poll_interval", 30*time.Second)
	v.SetDefault("reconciler.watch_inline", true)

	v.SetDefault("telegram.timeout_duration", 10*time.Second)
	v.SetDefault("telegram.user_id", 1)
	v.SetDefault("telegram.max_global_request_per_second", 20)

	v.SetDefault("events.sinks", []string{"log"})
	v.SetDefault("events.redis_channel", "autotrader:events")
	v.SetDefault("events.redis_stream", "autotrader:events:stream")
	v.SetDefault("events.alert_min_level", "error")
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.GetViper()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
