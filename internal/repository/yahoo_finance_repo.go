package repository

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"golang-autotrader/config"
	"golang-autotrader/internal/dto"
	"golang-autotrader/pkg/httpclient"
	"golang-autotrader/pkg/logger"
	"golang-autotrader/pkg/retry"
)

var yahooIntervals = map[string]string{
	dto.Timeframe1Min:  "1m",
	dto.Timeframe5Min:  "5m",
	dto.Timeframe15Min: "15m",
	dto.Timeframe1Hour: "60m",
	dto.Timeframe1Day:  "1d",
}

type yahooFinanceRepository struct {
	httpClient httpclient.HTTPClient
	cfg        *config.Config
	logger     *logger.Logger
	now        func() time.Time
}

func NewYahooFinanceRepository(cfg *config.Config, log *logger.Logger) MarketDataRepository {
	client := httpclient.New(cfg.YahooFinance.BaseURL, cfg.YahooFinance.Timeout,
		httpclient.WithHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36"),
		httpclient.WithHeader("Referer", "https://finance.yahoo.com/"),
	)
	return newYahooFinanceRepository(cfg, log, client)
}

func newYahooFinanceRepository(cfg *config.Config, log *logger.Logger, client httpclient.HTTPClient) *yahooFinanceRepository {
	return &yahooFinanceRepository{
		httpClient: client,
		cfg:        cfg,
		logger:     log,
		now:        time.Now,
	}
}

func (r *yahooFinanceRepository) GetCloses(ctx context.Context, param dto.GetClosesParam) (*dto.CloseSeries, error) {
	interval, ok := yahooIntervals[param.Timeframe]
	if !ok {
		return nil, retry.Permanent(fmt.Errorf("unsupported timeframe %q", param.Timeframe))
	}

	lookback := r.cfg.MarketData.LookbackDays
	if param.Timeframe == dto.Timeframe1Day && lookback < param.Limit*2 {
		// weekends and holidays eat into a daily range
		lookback = param.Limit * 2
	}

	resp, err := r.fetch(ctx, param.Symbol, interval, lookback)
	if err != nil {
		return nil, err
	}

	result := resp.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	closes := make([]float64, 0, len(quote.Close))
	for _, c := range quote.Close {
		if c == nil {
			closes = append(closes, math.NaN())
			continue
		}
		closes = append(closes, *c)
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("yahoo finance %s: %w", param.Symbol, retry.ErrEmptyResult)
	}
	if param.Limit > 0 && len(closes) > param.Limit {
		closes = closes[len(closes)-param.Limit:]
	}

	series := &dto.CloseSeries{
		Symbol:    param.Symbol,
		Timeframe: param.Timeframe,
		Closes:    closes,
	}
	if n := len(result.Timestamp); n > 0 {
		series.Timestamp = time.Unix(result.Timestamp[n-1], 0).UTC()
	}
	return series, nil
}

func (r *yahooFinanceRepository) GetLatestBar(ctx context.Context, symbol string) (*dto.Bar, error) {
	resp, err := r.fetch(ctx, symbol, yahooIntervals[dto.Timeframe1Min], 1)
	if err != nil {
		return nil, err
	}

	result := resp.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	for i := len(quote.Close) - 1; i >= 0; i-- {
		if quote.Close[i] == nil {
			continue
		}
		bar := &dto.Bar{
			Close:  *quote.Close[i],
			Open:   valueAt(quote.Open, i),
			High:   valueAt(quote.High, i),
			Low:    valueAt(quote.Low, i),
			Volume: valueAt(quote.Volume, i),
		}
		if i < len(result.Timestamp) {
			bar.Timestamp = time.Unix(result.Timestamp[i], 0).UTC()
		}
		return bar, nil
	}
	return nil, fmt.Errorf("yahoo finance %s: %w", symbol, retry.ErrEmptyResult)
}

func (r *yahooFinanceRepository) fetch(ctx context.Context, symbol, interval string, lookbackDays int) (*dto.YahooFinanceResponse, error) {
	now := r.now()
	queryParams := map[string]string{
		"period1":        fmt.Sprintf("%d", now.AddDate(0, 0, -lookbackDays).Unix()),
		"period2":        fmt.Sprintf("%d", now.Unix()),
		"interval":       interval,
		"includePrePost": "false",
	}

	var yahooResp dto.YahooFinanceResponse
	resp, err := r.httpClient.Get(ctx, "/"+symbol, queryParams, nil, &yahooResp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data from yahoo finance: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		r.logger.WarnContext(ctx, "Yahoo Finance API returned Non-OK status",
			logger.StringField("symbol", symbol),
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("body", truncate(string(resp.Body), 256)))
		statusErr := fmt.Errorf("yahoo finance api returned status: %d", resp.StatusCode)
		if resp.IsClientError() {
			return nil, retry.Permanent(statusErr)
		}
		return nil, statusErr
	}

	if yahooResp.Chart.Error != nil {
		return nil, retry.Permanent(fmt.Errorf("yahoo finance api error: %s: %s", yahooResp.Chart.Error.Code, yahooResp.Chart.Error.Description))
	}
	if len(yahooResp.Chart.Result) == 0 || len(yahooResp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo finance %s: %w", symbol, retry.ErrEmptyResult)
	}
	return &yahooResp, nil
}

func valueAt(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
