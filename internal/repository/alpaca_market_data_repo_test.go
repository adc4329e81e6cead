package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang-autotrader/config"
	"golang-autotrader/internal/dto"
	"golang-autotrader/pkg/logger"
	"golang-autotrader/pkg/retry"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBarsClient struct {
	mock.Mock
}

func (m *mockBarsClient) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	args := m.Called(symbol, req)
	bars, _ := args.Get(0).([]marketdata.Bar)
	return bars, args.Error(1)
}

func (m *mockBarsClient) GetLatestBar(symbol string, req marketdata.GetLatestBarRequest) (*marketdata.Bar, error) {
	args := m.Called(symbol, req)
	bar, _ := args.Get(0).(*marketdata.Bar)
	return bar, args.Error(1)
}

func newTestAlpacaData(client alpacaBarsClient) *alpacaMarketDataRepository {
	cfg := &config.Config{
		Alpaca:     config.Alpaca{DataFeed: "iex"},
		MarketData: config.MarketData{LookbackDays: 5},
	}
	return newAlpacaMarketDataRepository(cfg, logger.NewNop(), client)
}

func TestAlpacaMarketData_GetClosesKeepsNewest(t *testing.T) {
	client := new(mockBarsClient)
	last := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	client.On("GetBars", "AAPL", mock.AnythingOfType("marketdata.GetBarsRequest")).Return([]marketdata.Bar{
		{Close: 1}, {Close: 2}, {Close: 3}, {Close: 4, Timestamp: last},
	}, nil)

	series, err := newTestAlpacaData(client).GetCloses(context.Background(), dto.GetClosesParam{Symbol: "AAPL", Timeframe: dto.Timeframe5Min, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, series.Closes)
	assert.Equal(t, last, series.Timestamp)

	req := client.Calls[0].Arguments.Get(1).(marketdata.GetBarsRequest)
	assert.Equal(t, marketdata.IEX, req.Feed)
	assert.Equal(t, marketdata.NewTimeFrame(5, marketdata.Min), req.TimeFrame)
}

func TestAlpacaMarketData_EmptyBars(t *testing.T) {
	client := new(mockBarsClient)
	client.On("GetBars", "AAPL", mock.Anything).Return([]marketdata.Bar{}, nil)

	_, err := newTestAlpacaData(client).GetCloses(context.Background(), dto.GetClosesParam{Symbol: "AAPL", Timeframe: dto.Timeframe1Day, Limit: 30})
	assert.ErrorIs(t, err, retry.ErrEmptyResult)
}

func TestAlpacaMarketData_ErrorClassification(t *testing.T) {
	client := new(mockBarsClient)
	client.On("GetLatestBar", "BAD", mock.Anything).Return(nil, &alpaca.APIError{StatusCode: 403, Message: "forbidden"})
	client.On("GetLatestBar", "SLOW", mock.Anything).Return(nil, &alpaca.APIError{StatusCode: 429, Message: "too many requests"})
	client.On("GetLatestBar", "DOWN", mock.Anything).Return(nil, errors.New("connection reset"))

	repo := newTestAlpacaData(client)

	_, err := repo.GetLatestBar(context.Background(), "BAD")
	assert.True(t, retry.IsPermanent(err))

	_, err = repo.GetLatestBar(context.Background(), "SLOW")
	assert.False(t, retry.IsPermanent(err))

	_, err = repo.GetLatestBar(context.Background(), "DOWN")
	assert.False(t, retry.IsPermanent(err))
}

func TestAlpacaMarketData_GetLatestBar(t *testing.T) {
	client := new(mockBarsClient)
	client.On("GetLatestBar", "AAPL", marketdata.GetLatestBarRequest{Feed: marketdata.IEX}).
		Return(&marketdata.Bar{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 1000}, nil)

	bar, err := newTestAlpacaData(client).GetLatestBar(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1.5, bar.Close)
	assert.Equal(t, 1000.0, bar.Volume)
}

func TestAlpacaMarketData_UnsupportedTimeframe(t *testing.T) {
	_, err := newTestAlpacaData(new(mockBarsClient)).GetCloses(context.Background(), dto.GetClosesParam{Symbol: "AAPL", Timeframe: "2Min"})
	assert.True(t, retry.IsPermanent(err))
}
