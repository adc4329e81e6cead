package telegram

import (
	"context"
	"testing"
	"time"

	"golang-autotrader/config"
	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/model"
	"golang-autotrader/internal/repository"
	"golang-autotrader/internal/service"
	"golang-autotrader/pkg/logger"
	"golang-autotrader/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTradeExecutor struct {
	mock.Mock
}

func (m *mockTradeExecutor) Run(ctx context.Context, param dto.RunParam) dto.RunResult {
	return m.Called(ctx, param).Get(0).(dto.RunResult)
}

func (m *mockTradeExecutor) ExecuteTrade(ctx context.Context, symbol string, userID uint) (*model.Position, error) {
	args := m.Called(ctx, symbol, userID)
	p, _ := args.Get(0).(*model.Position)
	return p, args.Error(1)
}

func (m *mockTradeExecutor) LastError(userID uint, symbol string) (string, bool) {
	args := m.Called(userID, symbol)
	return args.String(0), args.Bool(1)
}

func newTestHandler(t *testing.T) (*TelegramBotHandler, *mockTradeExecutor, *repository.Repository) {
	t.Helper()

	cfg := &config.Config{
		Market:   config.Market{TimeZone: "America/New_York", OpenTime: "09:30", CloseTime: "16:00"},
		Telegram: config.TelegramConfig{ChatID: 100, UserID: 7},
	}
	repo := &repository.Repository{
		PositionRepo:      repository.NewMemoryPositionRepository(),
		TradingSignalRepo: repository.NewMemoryTradingSignalRepository(),
		BotStateRepo:      repository.NewMemoryBotStateRepository(),
	}
	calendar, err := service.NewMarketCalendar(cfg.Market)
	require.NoError(t, err)

	executor := new(mockTradeExecutor)
	svc := &service.Service{
		TradeExecutor:  executor,
		TradingService: service.NewTradingService(cfg, logger.NewNop(), repo, calendar),
	}
	h := NewTelegramBotHandler(context.Background(), cfg, logger.NewNop(), nil, nil, svc)
	return h, executor, repo
}

func TestCmdPositions_OnlyChatUser(t *testing.T) {
	h, _, repo := newTestHandler(t)
	ctx := context.Background()
	require.NoError(t, repo.PositionRepo.Create(ctx, &model.Position{
		UserID: 7, Symbol: "AAPL", EntryPrice: 100, CurrentPrice: utils.ToPointer(103.0),
		Status: model.PositionOpen, TakeProfitPct: 2, StopLossPct: 2,
	}))
	require.NoError(t, repo.PositionRepo.Create(ctx, &model.Position{UserID: 8, Symbol: "MSFT", EntryPrice: 50, Status: model.PositionOpen}))

	text, err := h.cmdPositions(ctx, nil)

	require.NoError(t, err)
	assert.Contains(t, text, "AAPL")
	assert.Contains(t, text, "+3.00%")
	assert.NotContains(t, text, "MSFT")

	text, err = h.cmdPositions(ctx, []string{"tsla"})
	require.NoError(t, err)
	assert.Contains(t, text, "No active positions")
}

func TestCmdBot_Toggle(t *testing.T) {
	h, _, repo := newTestHandler(t)
	ctx := context.Background()

	text, err := h.cmdBot(ctx, []string{"nvda", "on"})
	require.NoError(t, err)
	assert.Contains(t, text, "NVDA")

	state, err := repo.BotStateRepo.Get(ctx, "NVDA")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.Running)

	_, err = h.cmdBot(ctx, []string{"nvda", "off"})
	require.NoError(t, err)
	state, _ = repo.BotStateRepo.Get(ctx, "NVDA")
	assert.False(t, state.Running)

	text, err = h.cmdBot(ctx, []string{"nvda", "maybe"})
	require.NoError(t, err)
	assert.Contains(t, text, "Usage")
}

func TestCmdBots(t *testing.T) {
	h, _, repo := newTestHandler(t)
	ctx := context.Background()
	_, err := repo.BotStateRepo.SetRunning(ctx, "AAPL", true)
	require.NoError(t, err)
	require.NoError(t, repo.BotStateRepo.RecordRun(ctx, "AAPL", time.Now(), utils.ToPointer("fetch failed: <timeout>")))

	text, err := h.cmdBots(ctx, nil)

	require.NoError(t, err)
	assert.Contains(t, text, "AAPL")
	assert.Contains(t, text, "&lt;timeout&gt;")
}

func TestCmdMarket(t *testing.T) {
	h, _, _ := newTestHandler(t)
	h.now = func() time.Time { return time.Date(2024, time.July, 6, 12, 0, 0, 0, time.UTC) }

	text, err := h.cmdMarket(context.Background(), nil)

	require.NoError(t, err)
	assert.Contains(t, text, "weekend")
}

func TestCmdRun_UsesChatUser(t *testing.T) {
	h, executor, _ := newTestHandler(t)
	executor.On("Run", mock.Anything, dto.RunParam{Symbol: "AAPL", UserID: 7}).
		Return(dto.RunResult{Success: true, Reason: dto.ReasonPositionOpened, Position: &model.Position{ID: 3, Status: model.PositionOpen}})

	text, err := h.cmdRun(context.Background(), []string{"aapl"})

	require.NoError(t, err)
	assert.Contains(t, text, "Position #3 open")
	executor.AssertExpectations(t)

	text, _ = h.cmdRun(context.Background(), nil)
	assert.Contains(t, text, "Usage")
}
