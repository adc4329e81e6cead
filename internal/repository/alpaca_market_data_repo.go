package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang-autotrader/config"
	"golang-autotrader/internal/dto"
	"golang-autotrader/pkg/logger"
	"golang-autotrader/pkg/retry"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// alpacaBarsClient is the subset of *marketdata.Client used here.
type alpacaBarsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
	GetLatestBar(symbol string, req marketdata.GetLatestBarRequest) (*marketdata.Bar, error)
}

type alpacaMarketDataRepository struct {
	client alpacaBarsClient
	feed   marketdata.Feed
	cfg    *config.Config
	log    *logger.Logger
	now    func() time.Time
}

func NewAlpacaMarketDataRepository(cfg *config.Config, log *logger.Logger) MarketDataRepository {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    cfg.Alpaca.APIKey,
		APISecret: cfg.Alpaca.APISecret,
	})
	return newAlpacaMarketDataRepository(cfg, log, client)
}

func newAlpacaMarketDataRepository(cfg *config.Config, log *logger.Logger, client alpacaBarsClient) *alpacaMarketDataRepository {
	return &alpacaMarketDataRepository{
		client: client,
		feed:   parseFeed(cfg.Alpaca.DataFeed),
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

func parseFeed(feed string) marketdata.Feed {
	switch feed {
	case "sip":
		return marketdata.SIP
	default:
		return marketdata.IEX
	}
}

func parseTimeFrame(timeframe string) (marketdata.TimeFrame, error) {
	switch timeframe {
	case dto.Timeframe1Min:
		return marketdata.NewTimeFrame(1, marketdata.Min), nil
	case dto.Timeframe5Min:
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case dto.Timeframe15Min:
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case dto.Timeframe1Hour:
		return marketdata.NewTimeFrame(1, marketdata.Hour), nil
	case dto.Timeframe1Day:
		return marketdata.NewTimeFrame(1, marketdata.Day), nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
}

func (r *alpacaMarketDataRepository) GetCloses(ctx context.Context, param dto.GetClosesParam) (*dto.CloseSeries, error) {
	tf, err := parseTimeFrame(param.Timeframe)
	if err != nil {
		return nil, retry.Permanent(err)
	}

	lookback := r.cfg.MarketData.LookbackDays
	if param.Timeframe == dto.Timeframe1Day && lookback < param.Limit*2 {
		lookback = param.Limit * 2
	}
	end := r.now()

	bars, err := r.client.GetBars(param.Symbol, marketdata.GetBarsRequest{
		TimeFrame: tf,
		Start:     end.AddDate(0, 0, -lookback),
		End:       end,
		Feed:      r.feed,
	})
	if err != nil {
		return nil, classifyAlpacaError(err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("alpaca bars %s: %w", param.Symbol, retry.ErrEmptyResult)
	}

	// bars come oldest first
	if param.Limit > 0 && len(bars) > param.Limit {
		bars = bars[len(bars)-param.Limit:]
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	return &dto.CloseSeries{
		Symbol:    param.Symbol,
		Timeframe: param.Timeframe,
		Closes:    closes,
		Timestamp: bars[len(bars)-1].Timestamp,
	}, nil
}

func (r *alpacaMarketDataRepository) GetLatestBar(ctx context.Context, symbol string) (*dto.Bar, error) {
	bar, err := r.client.GetLatestBar(symbol, marketdata.GetLatestBarRequest{Feed: r.feed})
	if err != nil {
		return nil, classifyAlpacaError(err)
	}
	if bar == nil {
		return nil, fmt.Errorf("alpaca latest bar %s: %w", symbol, retry.ErrEmptyResult)
	}
	return &dto.Bar{
		Timestamp: bar.Timestamp,
		Open:      bar.Open,
		High:      bar.High,
		Low:       bar.Low,
		Close:     bar.Close,
		Volume:    float64(bar.Volume),
	}, nil
}

// classifyAlpacaError marks client errors, except rate limiting, as permanent.
func classifyAlpacaError(err error) error {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests {
			return retry.Permanent(err)
		}
	}
	return err
}
