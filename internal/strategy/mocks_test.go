package strategy

import (
	"context"
	"time"

	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/model"
	"golang-autotrader/pkg/utils"

	"github.com/stretchr/testify/mock"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, param dto.RunParam) dto.RunResult {
	return m.Called(ctx, param).Get(0).(dto.RunResult)
}

func (m *mockRunner) ExecuteTrade(ctx context.Context, symbol string, userID uint) (*model.Position, error) {
	args := m.Called(ctx, symbol, userID)
	p, _ := args.Get(0).(*model.Position)
	return p, args.Error(1)
}

func (m *mockRunner) LastError(userID uint, symbol string) (string, bool) {
	args := m.Called(userID, symbol)
	return args.String(0), args.Bool(1)
}

type mockExitChecker struct {
	mock.Mock
}

func (m *mockExitChecker) CheckExits(ctx context.Context, symbol string, userID uint) bool {
	return m.Called(ctx, symbol, userID).Bool(0)
}

type mockReconciler struct {
	mock.Mock
}

func (m *mockReconciler) Reconcile(ctx context.Context, positionID uint) (dto.ReconcileOutcome, error) {
	args := m.Called(ctx, positionID)
	return args.Get(0).(dto.ReconcileOutcome), args.Error(1)
}

func (m *mockReconciler) ReconcilePending(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockReconciler) Watch(ctx context.Context, positionID uint) {
	m.Called(ctx, positionID)
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
