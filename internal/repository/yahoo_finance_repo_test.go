package repository

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang-autotrader/config"
	"golang-autotrader/internal/dto"
	"golang-autotrader/pkg/httpclient"
	"golang-autotrader/pkg/logger"
	"golang-autotrader/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yahooChart = `{"chart":{"result":[{"meta":{"symbol":"AAPL","regularMarketPrice":12},
"timestamp":[1700000000,1700000060,1700000120,1700000180],
"indicators":{"quote":[{"open":[1,2,3,null],"high":[1,2,3,null],"low":[1,2,3,null],
"close":[10,null,11,null],"volume":[100,200,300,null]}]}}],"error":null}}`

func newTestYahoo(t *testing.T, status int, body string) (*yahooFinanceRepository, *string) {
	var lastPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		lastPath = req.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{MarketData: config.MarketData{LookbackDays: 5}}
	return newYahooFinanceRepository(cfg, logger.NewNop(), httpclient.New(srv.URL, 5*time.Second)), &lastPath
}

func TestYahooFinance_GetCloses(t *testing.T) {
	repo, path := newTestYahoo(t, http.StatusOK, yahooChart)

	series, err := repo.GetCloses(context.Background(), dto.GetClosesParam{Symbol: "AAPL", Timeframe: dto.Timeframe5Min, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, "/AAPL", *path)
	require.Len(t, series.Closes, 3)
	assert.True(t, math.IsNaN(series.Closes[0]))
	assert.Equal(t, 11.0, series.Closes[1])
	assert.True(t, math.IsNaN(series.Closes[2]))
	assert.Equal(t, time.Unix(1700000180, 0).UTC(), series.Timestamp)
}

func TestYahooFinance_GetLatestBarSkipsNulls(t *testing.T) {
	repo, _ := newTestYahoo(t, http.StatusOK, yahooChart)

	bar, err := repo.GetLatestBar(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 11.0, bar.Close)
	assert.Equal(t, 300.0, bar.Volume)
}

func TestYahooFinance_ClientErrorIsPermanent(t *testing.T) {
	repo, _ := newTestYahoo(t, http.StatusNotFound, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)

	_, err := repo.GetCloses(context.Background(), dto.GetClosesParam{Symbol: "NOPE", Timeframe: dto.Timeframe5Min})
	require.Error(t, err)
	assert.True(t, retry.IsPermanent(err))
}

func TestYahooFinance_ServerErrorIsRetryable(t *testing.T) {
	repo, _ := newTestYahoo(t, http.StatusServiceUnavailable, `{}`)

	_, err := repo.GetCloses(context.Background(), dto.GetClosesParam{Symbol: "AAPL", Timeframe: dto.Timeframe5Min})
	require.Error(t, err)
	assert.False(t, retry.IsPermanent(err))
}

func TestYahooFinance_EmptyResult(t *testing.T) {
	repo, _ := newTestYahoo(t, http.StatusOK, `{"chart":{"result":[],"error":null}}`)

	_, err := repo.GetLatestBar(context.Background(), "AAPL")
	assert.ErrorIs(t, err, retry.ErrEmptyResult)
}

func TestYahooFinance_UnsupportedTimeframe(t *testing.T) {
	repo, _ := newTestYahoo(t, http.StatusOK, yahooChart)

	_, err := repo.GetCloses(context.Background(), dto.GetClosesParam{Symbol: "AAPL", Timeframe: "3Min"})
	assert.True(t, retry.IsPermanent(err))
}
