package service

import (
	"context"

	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/repository"
	"golang-autotrader/pkg/retry"
)

// RetryingFetcher wraps a market data source with back-off. Empty results are
// retried the same way transport failures are.
type RetryingFetcher interface {
	GetCloses(ctx context.Context, param dto.GetClosesParam) (*dto.CloseSeries, error)
	GetLatestBar(ctx context.Context, symbol string) (*dto.Bar, error)
}

type retryingFetcher struct {
	source repository.MarketDataRepository
	cfg    retry.Config
}

func NewRetryingFetcher(source repository.MarketDataRepository, cfg retry.Config) RetryingFetcher {
	return &retryingFetcher{source: source, cfg: cfg}
}

func (f *retryingFetcher) GetCloses(ctx context.Context, param dto.GetClosesParam) (*dto.CloseSeries, error) {
	return retry.Do(ctx, f.cfg, "get_closes:"+param.Symbol, func(ctx context.Context) (*dto.CloseSeries, error) {
		series, err := f.source.GetCloses(ctx, param)
		if err != nil {
			return nil, err
		}
		if series == nil || len(series.Closes) == 0 {
			return nil, retry.ErrEmptyResult
		}
		return series, nil
	})
}

func (f *retryingFetcher) GetLatestBar(ctx context.Context, symbol string) (*dto.Bar, error) {
	return retry.Do(ctx, f.cfg, "get_latest_bar:"+symbol, func(ctx context.Context) (*dto.Bar, error) {
		bar, err := f.source.GetLatestBar(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if bar == nil {
			return nil, retry.ErrEmptyResult
		}
		return bar, nil
	})
}
