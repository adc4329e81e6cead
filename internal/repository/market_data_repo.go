package repository

import (
	"context"
	"fmt"

	"golang-autotrader/config"
	"golang-autotrader/internal/dto"
	"golang-autotrader/pkg/cache"
	"golang-autotrader/pkg/common"
	"golang-autotrader/pkg/logger"
	"golang-autotrader/pkg/ratelimit"
	"golang-autotrader/pkg/retry"

	"golang.org/x/sync/singleflight"
)

// MarketDataRepository is the market data source. Implementations return
// retry.ErrEmptyResult for empty answers and retry.Permanent for requests
// that cannot succeed on retry.
type MarketDataRepository interface {
	GetCloses(ctx context.Context, param dto.GetClosesParam) (*dto.CloseSeries, error)
	GetLatestBar(ctx context.Context, symbol string) (*dto.Bar, error)
}

// LastPriceReader exposes the last price seen for a symbol without a network call.
type LastPriceReader interface {
	LastPrice(symbol string) (float64, bool)
}

type MarketDataRouter interface {
	MarketDataRepository
	LastPriceReader
}

// marketDataRouter picks one provider, applies its rate limit, collapses
// concurrent latest-bar calls for the same symbol, and remembers the last price.
type marketDataRouter struct {
	provider string
	source   MarketDataRepository
	limiters *ratelimit.LimiterStore
	group    singleflight.Group
	cache    cache.Cache
	cfg      *config.Config
	log      *logger.Logger
}

func NewMarketDataRepository(cfg *config.Config, log *logger.Logger, c cache.Cache, sources map[string]MarketDataRepository) (MarketDataRouter, error) {
	source, ok := sources[cfg.MarketData.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown market data provider %q", cfg.MarketData.Provider)
	}
	return &marketDataRouter{
		provider: cfg.MarketData.Provider,
		source:   source,
		limiters: ratelimit.PerMinute(cfg.MarketData.MaxRequestPerMinute),
		cache:    c,
		cfg:      cfg,
		log:      log,
	}, nil
}

func (r *marketDataRouter) GetCloses(ctx context.Context, param dto.GetClosesParam) (*dto.CloseSeries, error) {
	if param.Limit <= 0 {
		param.Limit = r.cfg.MarketData.BarsLimit
	}
	if param.Timeframe == "" {
		param.Timeframe = r.cfg.Trading.DefaultTimeframe
	}
	if err := r.limiters.Wait(ctx, r.provider); err != nil {
		return nil, err
	}

	series, err := r.source.GetCloses(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("%s get closes %s: %w", r.provider, param.Symbol, err)
	}
	return series, nil
}

func (r *marketDataRouter) GetLatestBar(ctx context.Context, symbol string) (*dto.Bar, error) {
	v, err, shared := r.group.Do(symbol, func() (interface{}, error) {
		if err := r.limiters.Wait(ctx, r.provider); err != nil {
			return nil, err
		}
		return r.source.GetLatestBar(ctx, symbol)
	})
	if err != nil {
		return nil, fmt.Errorf("%s latest bar %s: %w", r.provider, symbol, err)
	}
	if shared {
		r.log.DebugContext(ctx, "Latest bar call shared", logger.StringField("symbol", symbol))
	}

	latest, ok := v.(*dto.Bar)
	if !ok || latest == nil {
		return nil, fmt.Errorf("%s latest bar %s: %w", r.provider, symbol, retry.ErrEmptyResult)
	}
	bar := *latest
	r.cache.Set(fmt.Sprintf(common.KEY_LAST_PRICE, symbol), bar.Close, r.cfg.Cache.LastPriceDuration)
	return &bar, nil
}

func (r *marketDataRouter) LastPrice(symbol string) (float64, bool) {
	return cache.GetFromCache[float64](r.cache, fmt.Sprintf(common.KEY_LAST_PRICE, symbol))
}
