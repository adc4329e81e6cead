package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang-autotrader/config"
	"golang-autotrader/internal/dto"
	"golang-autotrader/pkg/cache"
	"golang-autotrader/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowSource struct {
	calls   int32
	release chan struct{}
	param   dto.GetClosesParam
}

func (s *slowSource) GetCloses(ctx context.Context, param dto.GetClosesParam) (*dto.CloseSeries, error) {
	s.param = param
	return &dto.CloseSeries{Symbol: param.Symbol, Closes: []float64{1}}, nil
}

func (s *slowSource) GetLatestBar(ctx context.Context, symbol string) (*dto.Bar, error) {
	atomic.AddInt32(&s.calls, 1)
	<-s.release
	return &dto.Bar{Close: 101.25}, nil
}

func newTestRouter(t *testing.T, src MarketDataRepository) MarketDataRouter {
	cfg := &config.Config{
		MarketData: config.MarketData{Provider: "stub", BarsLimit: 100},
		Trading:    config.Trading{DefaultTimeframe: dto.Timeframe5Min},
		Cache:      config.Cache{LastPriceDuration: time.Minute},
	}
	router, err := NewMarketDataRepository(cfg, logger.NewNop(), cache.NewCache(time.Minute, time.Minute), map[string]MarketDataRepository{"stub": src})
	require.NoError(t, err)
	return router
}

func TestMarketDataRouter_UnknownProvider(t *testing.T) {
	cfg := &config.Config{MarketData: config.MarketData{Provider: "nope"}}
	_, err := NewMarketDataRepository(cfg, logger.NewNop(), cache.NewCache(time.Minute, time.Minute), nil)
	assert.Error(t, err)
}

func TestMarketDataRouter_FillsDefaults(t *testing.T) {
	src := &slowSource{}
	router := newTestRouter(t, src)

	_, err := router.GetCloses(context.Background(), dto.GetClosesParam{Symbol: "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, 100, src.param.Limit)
	assert.Equal(t, dto.Timeframe5Min, src.param.Timeframe)
}

func TestMarketDataRouter_LatestBarSharedAndCached(t *testing.T) {
	src := &slowSource{release: make(chan struct{})}
	router := newTestRouter(t, src)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bar, err := router.GetLatestBar(context.Background(), "AAPL")
			assert.NoError(t, err)
			assert.Equal(t, 101.25, bar.Close)
		}()
	}
	// let the callers pile up on the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&src.calls), int32(5))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&src.calls), int32(1))

	price, ok := router.LastPrice("AAPL")
	assert.True(t, ok)
	assert.Equal(t, 101.25, price)
}
