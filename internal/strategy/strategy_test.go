package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"golang-autotrader/config"
	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/model"
	"golang-autotrader/internal/repository"
	"golang-autotrader/pkg/logger"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func jobWithPayload(t *testing.T, jobType JobType, payload interface{}) *model.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &model.Job{ID: 1, Name: string(jobType), Type: string(jobType), Payload: datatypes.JSON(raw)}
}

func TestEmaTradeStrategy_RunsEveryTarget(t *testing.T) {
	runner := new(mockRunner)
	runner.On("Run", mock.Anything, dto.RunParam{Symbol: "AAPL", UserID: 1}).
		Return(dto.RunResult{Success: true, Reason: dto.ReasonNoSignal, Signal: "none"})
	runner.On("Run", mock.Anything, dto.RunParam{Symbol: "MSFT", UserID: 1, Timeframe: "1Min"}).
		Return(dto.RunResult{Success: true, Reason: dto.ReasonPositionOpened, Signal: "buy", Position: &model.Position{ID: 9}})

	s := NewEmaTradeStrategy(&config.Config{}, logger.NewNop(), goValidator.New(), runner)
	res, err := s.Execute(context.Background(), jobWithPayload(t, JobTypeEmaTrade, TargetsPayload{
		Targets: []dto.UserSymbol{{UserID: 1, Symbol: "AAPL"}, {UserID: 1, Symbol: "MSFT", Timeframe: "1Min"}},
	}))

	require.NoError(t, err)
	assert.EqualValues(t, JOB_EXIT_CODE_SUCCESS, res.ExitCode)
	var out []EmaTradeResult
	require.NoError(t, json.Unmarshal([]byte(res.Output), &out))
	assert.Len(t, out, 2)
	runner.AssertExpectations(t)
}

func TestEmaTradeStrategy_ExitCodes(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]dto.RunResult
		code    int32
		wantErr bool
	}{
		{
			name: "partial",
			results: map[string]dto.RunResult{
				"AAPL": {Success: true, Reason: dto.ReasonNoSignal},
				"MSFT": {Success: false, Reason: dto.ReasonFetchFailed},
			},
			code: JOB_EXIT_CODE_PARTIAL_SUCCESS,
		},
		{
			name: "all gated",
			results: map[string]dto.RunResult{
				"AAPL": {Success: false, Reason: dto.ReasonBotStopped},
				"MSFT": {Success: false, Reason: "market closed: weekend"},
			},
			code: JOB_EXIT_CODE_SKIPPED,
		},
		{
			name: "all failed",
			results: map[string]dto.RunResult{
				"AAPL": {Success: false, Reason: dto.ReasonInsufficientData},
				"MSFT": {Success: false, Reason: dto.ReasonFetchFailed},
			},
			code:    JOB_EXIT_CODE_FAILED,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := new(mockRunner)
			var targets []dto.UserSymbol
			for symbol, result := range tt.results {
				runner.On("Run", mock.Anything, dto.RunParam{Symbol: symbol, UserID: 1}).Return(result)
				targets = append(targets, dto.UserSymbol{UserID: 1, Symbol: symbol})
			}

			s := NewEmaTradeStrategy(&config.Config{}, logger.NewNop(), goValidator.New(), runner)
			res, err := s.Execute(context.Background(), jobWithPayload(t, JobTypeEmaTrade, TargetsPayload{Targets: targets}))

			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.code, res.ExitCode)
		})
	}
}

func TestEmaTradeStrategy_RejectsInvalidPayload(t *testing.T) {
	runner := new(mockRunner)
	s := NewEmaTradeStrategy(&config.Config{}, logger.NewNop(), goValidator.New(), runner)

	res, err := s.Execute(context.Background(), jobWithPayload(t, JobTypeEmaTrade, TargetsPayload{
		Targets: []dto.UserSymbol{{UserID: 0, Symbol: "AAPL"}},
	}))

	assert.Error(t, err)
	assert.EqualValues(t, JOB_EXIT_CODE_FAILED, res.ExitCode)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestEmaTradeStrategy_NoTargets(t *testing.T) {
	s := NewEmaTradeStrategy(&config.Config{}, logger.NewNop(), goValidator.New(), new(mockRunner))

	res, err := s.Execute(context.Background(), &model.Job{Type: string(JobTypeEmaTrade)})

	require.NoError(t, err)
	assert.EqualValues(t, JOB_EXIT_CODE_SKIPPED, res.ExitCode)
}

func TestExitMonitorStrategy_FallsBackToOpenPositions(t *testing.T) {
	positions := repository.NewMemoryPositionRepository()
	for _, p := range []*model.Position{
		{UserID: 1, Symbol: "AAPL", EntryPrice: 10, Status: model.PositionOpen},
		{UserID: 2, Symbol: "AAPL", EntryPrice: 10, Status: model.PositionOpen},
		{UserID: 3, Symbol: "TSLA", EntryPrice: 10, Status: model.PositionPending},
	} {
		require.NoError(t, positions.Create(context.Background(), p))
	}

	checker := new(mockExitChecker)
	checker.On("CheckExits", mock.Anything, "AAPL", uint(1)).Return(true)
	checker.On("CheckExits", mock.Anything, "AAPL", uint(2)).Return(false)

	s := NewExitMonitorStrategy(&config.Config{}, logger.NewNop(), goValidator.New(), checker, positions)
	res, err := s.Execute(context.Background(), &model.Job{Type: string(JobTypeExitMonitor)})

	require.NoError(t, err)
	assert.EqualValues(t, JOB_EXIT_CODE_SUCCESS, res.ExitCode)
	checker.AssertExpectations(t)
	checker.AssertNotCalled(t, "CheckExits", mock.Anything, "TSLA", uint(3))
}

func TestExitMonitorStrategy_NothingOpen(t *testing.T) {
	checker := new(mockExitChecker)
	s := NewExitMonitorStrategy(&config.Config{}, logger.NewNop(), goValidator.New(), checker, repository.NewMemoryPositionRepository())

	res, err := s.Execute(context.Background(), &model.Job{Type: string(JobTypeExitMonitor)})

	require.NoError(t, err)
	assert.EqualValues(t, JOB_EXIT_CODE_SKIPPED, res.ExitCode)
}

func TestOrderReconcileStrategy(t *testing.T) {
	reconciler := new(mockReconciler)
	reconciler.On("ReconcilePending", mock.Anything).Return(3, nil).Once()
	reconciler.On("ReconcilePending", mock.Anything).Return(0, errors.New("db down")).Once()

	s := NewOrderReconcileStrategy(logger.NewNop(), reconciler)

	res, err := s.Execute(context.Background(), &model.Job{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"resolved":3}`, res.Output)

	res, err = s.Execute(context.Background(), &model.Job{})
	assert.Error(t, err)
	assert.EqualValues(t, JOB_EXIT_CODE_FAILED, res.ExitCode)
}

func TestDataCleanUpStrategy(t *testing.T) {
	jobRepo := new(mockJobRepo)
	cutoff := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	jobRepo.On("DeleteTaskHistoryOlderThan", mock.Anything, cutoff).Return(int64(12), nil)

	s := NewDataCleanUpStrategy(&config.Config{}, logger.NewNop(), jobRepo, repository.NewNoopUnitOfWork()).(*DataCleanUpStrategy)
	s.now = func() time.Time { return time.Date(2024, time.July, 1, 15, 30, 0, 0, time.UTC) }

	res, err := s.Execute(context.Background(), jobWithPayload(t, JobTypeDataCleanUp, DataCleanUpPayload{RetentionDays: 30}))

	require.NoError(t, err)
	assert.EqualValues(t, JOB_EXIT_CODE_SUCCESS, res.ExitCode)
	assert.JSONEq(t, `[{"table":"task_execution_history","total":12}]`, res.Output)
	jobRepo.AssertExpectations(t)
}

func TestDataCleanUpStrategy_RejectsNonPositiveRetention(t *testing.T) {
	jobRepo := new(mockJobRepo)
	s := NewDataCleanUpStrategy(&config.Config{}, logger.NewNop(), jobRepo, repository.NewNoopUnitOfWork())

	_, err := s.Execute(context.Background(), jobWithPayload(t, JobTypeDataCleanUp, DataCleanUpPayload{RetentionDays: 0}))

	assert.Error(t, err)
	jobRepo.AssertNotCalled(t, "DeleteTaskHistoryOlderThan", mock.Anything, mock.Anything)
}
