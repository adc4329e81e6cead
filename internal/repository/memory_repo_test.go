package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/model"
	"golang-autotrader/pkg/cache"
	"golang-autotrader/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openPosition(userID uint, symbol string) *model.Position {
	return &model.Position{
		UserID:     userID,
		Symbol:     symbol,
		Amount:     100,
		EntryPrice: 100,
		EntryTime:  time.Now(),
		FillQty:    1,
		Status:     model.PositionOpen,
	}
}

func TestMemoryPositionRepository_CreateEnforcesOneActive(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPositionRepository()

	require.NoError(t, repo.Create(ctx, openPosition(1, "AAPL")))
	assert.ErrorIs(t, repo.Create(ctx, openPosition(1, "AAPL")), ErrActivePositionExists)
	assert.NoError(t, repo.Create(ctx, openPosition(2, "AAPL")))
	assert.NoError(t, repo.Create(ctx, openPosition(1, "MSFT")))
}

func TestMemoryPositionRepository_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPositionRepository()

	var created int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.Create(ctx, openPosition(1, "AAPL")); err == nil {
				atomic.AddInt32(&created, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created)
}

func TestMemoryPositionRepository_CreateRejectsTerminal(t *testing.T) {
	p := openPosition(1, "AAPL")
	p.Status = model.PositionClosedLoss
	assert.ErrorIs(t, NewMemoryPositionRepository().Create(context.Background(), p), ErrInvalidTransition)
}

func TestMemoryPositionRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPositionRepository()

	p := openPosition(1, "AAPL")
	p.Status = model.PositionPending
	require.NoError(t, repo.Create(ctx, p))

	opened, err := repo.UpdateStatus(ctx, dto.UpdatePositionStatusParam{
		ID:         p.ID,
		From:       model.PositionPending,
		To:         model.PositionOpen,
		EntryPrice: utils.ToPointer(101.5),
		FillQty:    utils.ToPointer(2.0),
	})
	require.NoError(t, err)
	assert.Equal(t, model.PositionOpen, opened.Status)
	assert.Equal(t, 101.5, opened.EntryPrice)

	// stale from-status loses
	_, err = repo.UpdateStatus(ctx, dto.UpdatePositionStatusParam{ID: p.ID, From: model.PositionPending, To: model.PositionCancelled})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// skipping a state is refused before touching the store
	_, err = repo.UpdateStatus(ctx, dto.UpdatePositionStatusParam{ID: p.ID, From: model.PositionOpen, To: model.PositionCancelled})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	reason := model.ExitReasonTakeProfit
	closed, err := repo.UpdateStatus(ctx, dto.UpdatePositionStatusParam{
		ID:         p.ID,
		From:       model.PositionOpen,
		To:         model.PositionClosedProfit,
		ExitPrice:  utils.ToPointer(103.0),
		ExitReason: &reason,
	})
	require.NoError(t, err)
	assert.Equal(t, model.PositionClosedProfit, closed.Status)
	require.NotNil(t, closed.ExitReason)
	assert.Equal(t, model.ExitReasonTakeProfit, *closed.ExitReason)

	// a closed position frees the key
	assert.NoError(t, repo.Create(ctx, openPosition(1, "AAPL")))

	_, err = repo.UpdateStatus(ctx, dto.UpdatePositionStatusParam{ID: 999, From: model.PositionOpen, To: model.PositionClosedLoss})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryPositionRepository_Queries(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPositionRepository()

	a := openPosition(1, "AAPL")
	b := openPosition(1, "MSFT")
	c := openPosition(2, "AAPL")
	c.Status = model.PositionPending
	for _, p := range []*model.Position{a, b, c} {
		require.NoError(t, repo.Create(ctx, p))
	}

	open, err := repo.FindAllOpen(ctx, "AAPL", 1)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, a.ID, open[0].ID)

	active, err := repo.FindActive(ctx, 2, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, model.PositionPending, active.Status)

	none, err := repo.FindActive(ctx, 3, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, none)

	keys, err := repo.OpenKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []dto.UserSymbol{{UserID: 1, Symbol: "AAPL"}, {UserID: 1, Symbol: "MSFT"}}, keys)

	pending, err := repo.Get(ctx, dto.GetPositionsParam{Statuses: []model.PositionStatus{model.PositionPending}})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, c.ID, pending[0].ID)

	require.NoError(t, repo.UpdateCurrentPrice(ctx, a.ID, 99.5))
	got, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentPrice)
	assert.Equal(t, 99.5, *got.CurrentPrice)

	require.NoError(t, repo.UpdateSafetyOrders(ctx, a.ID, dto.SafetyOrders{TakeProfitOrderID: "tp", StopLossOrderID: "sl"}))
	got, err = repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "tp", *got.TakeProfitOrderID)
	assert.Equal(t, "sl", *got.StopLossOrderID)
}

func TestMemoryTradingSignalRepository_FindLatest(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTradingSignalRepository()

	latest, err := repo.FindLatest(ctx, 1, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, repo.Create(ctx, &model.TradingSignal{UserID: 1, Symbol: "AAPL", SignalType: model.SignalTypeBuy}))
	require.NoError(t, repo.Create(ctx, &model.TradingSignal{UserID: 1, Symbol: "AAPL", SignalType: model.SignalTypeSell}))
	require.NoError(t, repo.Create(ctx, &model.TradingSignal{UserID: 2, Symbol: "AAPL", SignalType: model.SignalTypeBuy}))

	latest, err = repo.FindLatest(ctx, 1, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, model.SignalTypeSell, latest.SignalType)
}

func TestCachedBotStateRepository(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryBotStateRepository()
	repo := NewCachedBotStateRepository(inner, cache.NewCache(time.Minute, time.Minute), time.Minute)

	state, err := repo.Get(ctx, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, state)

	// the inner change is hidden by the cached miss
	_, err = inner.SetRunning(ctx, "AAPL", true)
	require.NoError(t, err)
	state, err = repo.Get(ctx, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, state)

	// writes through the cached repo invalidate
	_, err = repo.SetRunning(ctx, "AAPL", true)
	require.NoError(t, err)
	state, err = repo.Get(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.Running)

	msg := "fetch failed"
	require.NoError(t, repo.RecordRun(ctx, "AAPL", time.Now(), &msg))
	raw, err := inner.Get(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, raw.ErrorMessage)
	assert.Equal(t, msg, *raw.ErrorMessage)

	// missing rows stay missing
	require.NoError(t, repo.RecordRun(ctx, "MSFT", time.Now(), nil))
	missing, err := inner.Get(ctx, "MSFT")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
