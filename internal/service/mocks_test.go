package service

import (
	"context"
	"sync"
	"time"

	"golang-autotrader/config"
	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/model"
	"golang-autotrader/internal/repository"
	"golang-autotrader/internal/strategy"
	"golang-autotrader/pkg/cache"
	"golang-autotrader/pkg/retry"
	"golang-autotrader/pkg/utils"

	"github.com/stretchr/testify/mock"
)

type mockMarketData struct {
	mock.Mock
}

func (m *mockMarketData) GetCloses(ctx context.Context, param dto.GetClosesParam) (*dto.CloseSeries, error) {
	args := m.Called(ctx, param)
	series, _ := args.Get(0).(*dto.CloseSeries)
	return series, args.Error(1)
}

func (m *mockMarketData) GetLatestBar(ctx context.Context, symbol string) (*dto.Bar, error) {
	args := m.Called(ctx, symbol)
	bar, _ := args.Get(0).(*dto.Bar)
	return bar, args.Error(1)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) PlaceBuyWithSafety(ctx context.Context, param dto.PlaceBuyParam) (*dto.OrderResult, error) {
	args := m.Called(ctx, param)
	res, _ := args.Get(0).(*dto.OrderResult)
	return res, args.Error(1)
}

func (m *mockGateway) GetOrderStatus(ctx context.Context, orderID string) (*dto.OrderStatusResult, error) {
	args := m.Called(ctx, orderID)
	res, _ := args.Get(0).(*dto.OrderStatusResult)
	return res, args.Error(1)
}

func (m *mockGateway) SetupSafetyOrders(ctx context.Context, param dto.SetupSafetyParam) (*dto.SafetyOrders, error) {
	args := m.Called(ctx, param)
	res, _ := args.Get(0).(*dto.SafetyOrders)
	return res, args.Error(1)
}

func (m *mockGateway) SubmitExit(ctx context.Context, param dto.SubmitExitParam) (string, error) {
	args := m.Called(ctx, param)
	return args.String(0), args.Error(1)
}

type recordingSink struct {
	mu     sync.Mutex
	events []dto.Event
}

func (s *recordingSink) Publish(_ context.Context, event dto.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) Types() []dto.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dto.EventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingWatcher struct {
	mu  sync.Mutex
	ids []uint
}

func (w *recordingWatcher) WatchAsync(positionID uint) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ids = append(w.ids, positionID)
}

func (w *recordingWatcher) IDs() []uint {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]uint(nil), w.ids...)
}

type stubCalendar struct {
	open   bool
	reason string
}

func (c stubCalendar) IsOpen(time.Time, string) (bool, string) { return c.open, c.reason }
func (c stubCalendar) Holiday(time.Time) (string, bool)       { return "", false }

func newTestConfig() *config.Config {
	return &config.Config{
		Cache: config.Cache{LastErrorDuration: time.Hour},
		Market: config.Market{
			TimeZone:  "America/New_York",
			OpenTime:  "09:30",
			CloseTime: "16:00",
		},
		MarketData: config.MarketData{BarsLimit: 100},
		Trading: config.Trading{
			NotionalAmount:   100,
			TakeProfitPct:    2,
			StopLossPct:      2,
			ConfirmationBars: 3,
			FastPeriod:       5,
			MidPeriod:        8,
			SlowPeriod:       22,
			DefaultTimeframe: dto.Timeframe5Min,
		},
		Reconciler: config.Reconciler{PollInterval: 30 * time.Second, WatchInline: true},
	}
}

func newMemoryRepository(gateway repository.OrderGatewayRepository) *repository.Repository {
	return &repository.Repository{
		PositionRepo:      repository.NewMemoryPositionRepository(),
		TradingSignalRepo: repository.NewMemoryTradingSignalRepository(),
		BotStateRepo:      repository.NewMemoryBotStateRepository(),
		OrderGatewayRepo:  gateway,
		UnitOfWork:        repository.NewNoopUnitOfWork(),
	}
}

func newTestCache() cache.Cache {
	return cache.NewCache(time.Minute, time.Minute)
}

func noSleepRetry(maxRetries int) retry.Config {
	return retry.Config{
		MaxRetries: maxRetries,
		Sleep:      func(context.Context, time.Duration) error { return nil },
		Jitter:     func() float64 { return 1 },
	}
}

func risingCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(100 + i)
	}
	return out
}

func fallingCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(200 - i)
	}
	return out
}

func filledOrder(id string, price, qty float64) *dto.OrderResult {
	tp, sl := id+"-tp", id+"-sl"
	return &dto.OrderResult{
		Status:            dto.OrderStatusFilled,
		OrderID:           id,
		FillPrice:         &price,
		FillQty:           &qty,
		TakeProfitOrderID: &tp,
		StopLossOrderID:   &sl,
	}
}

type mockJobRepo struct {
	mock.Mock
}

func (m *mockJobRepo) FindJobsToSchedule(ctx context.Context, now time.Time, opts ...utils.DBOption) ([]model.TaskSchedule, error) {
	args := m.Called(ctx, now)
	s, _ := args.Get(0).([]model.TaskSchedule)
	return s, args.Error(1)
}

func (m *mockJobRepo) CreateTaskExecutionHistory(ctx context.Context, history *model.TaskExecutionHistory, opts ...utils.DBOption) error {
	return m.Called(ctx, history).Error(0)
}

func (m *mockJobRepo) UpdateTaskSchedule(ctx context.Context, schedule *model.TaskSchedule, opts ...utils.DBOption) error {
	return m.Called(ctx, schedule).Error(0)
}

func (m *mockJobRepo) FindByID(ctx context.Context, id uint) (*model.Job, error) {
	args := m.Called(ctx, id)
	j, _ := args.Get(0).(*model.Job)
	return j, args.Error(1)
}

func (m *mockJobRepo) UpdateTaskExecutionHistory(ctx context.Context, history *model.TaskExecutionHistory, opts ...utils.DBOption) error {
	return m.Called(ctx, history).Error(0)
}

func (m *mockJobRepo) Get(ctx context.Context, param *model.GetJobParam, opts ...utils.DBOption) ([]model.Job, error) {
	args := m.Called(ctx, param)
	j, _ := args.Get(0).([]model.Job)
	return j, args.Error(1)
}

func (m *mockJobRepo) DeleteTaskHistoryOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(int64), args.Error(1)
}

type mockTaskExecutor struct {
	mock.Mock
}

func (m *mockTaskExecutor) Execute(ctx context.Context, history *model.TaskExecutionHistory) error {
	return m.Called(ctx, history).Error(0)
}

type stubStrategy struct {
	jobType strategy.JobType
	result  strategy.JobResult
	err     error
	block   bool
}

func (s *stubStrategy) Execute(ctx context.Context, job *model.Job) (strategy.JobResult, error) {
	if s.block {
		<-ctx.Done()
		return strategy.JobResult{}, ctx.Err()
	}
	return s.result, s.err
}

func (s *stubStrategy) GetType() strategy.JobType { return s.jobType }
