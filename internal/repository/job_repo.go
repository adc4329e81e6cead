package repository

import (
	"context"
	"golang-autotrader/internal/model"
	"golang-autotrader/pkg/utils"
	"time"

	"gorm.io/gorm"
)

type JobRepository interface {
	FindJobsToSchedule(ctx context.Context, now time.Time, opts ...utils.DBOption) ([]model.TaskSchedule, error)
	CreateTaskExecutionHistory(ctx context.Context, history *model.TaskExecutionHistory, opts ...utils.DBOption) error
	UpdateTaskSchedule(ctx context.Context, schedule *model.TaskSchedule, opts ...utils.DBOption) error
	FindByID(ctx context.Context, id uint) (*model.Job, error)
	UpdateTaskExecutionHistory(ctx context.Context, history *model.TaskExecutionHistory, opts ...utils.DBOption) error
	Get(ctx context.Context, param *model.GetJobParam, opts ...utils.DBOption) ([]model.Job, error)
	DeleteTaskHistoryOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error)
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

// FindJobsToSchedule returns active schedules whose next execution is due at now.
func (r *jobRepository) FindJobsToSchedule(ctx context.Context, now time.Time, opts ...utils.DBOption) ([]model.TaskSchedule, error) {
	var schedules []model.TaskSchedule
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Preload("Job").
		Where("is_active = ? AND (next_execution IS NULL OR next_execution <= ?)", true, now).
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *jobRepository) CreateTaskExecutionHistory(ctx context.Context, history *model.TaskExecutionHistory, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(history).Error
}

func (r *jobRepository) UpdateTaskSchedule(ctx context.Context, schedule *model.TaskSchedule, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Model(&model.TaskSchedule{}).
		Where("id = ?", schedule.ID).
		Updates(map[string]interface{}{
			"next_execution": schedule.NextExecution,
			"last_execution": schedule.LastExecution,
			"updated_at":     time.Now(),
		}).Error
}

func (r *jobRepository) FindByID(ctx context.Context, id uint) (*model.Job, error) {
	var job model.Job
	if err := r.db.WithContext(ctx).First(&job, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &job, nil
}

func (r *jobRepository) UpdateTaskExecutionHistory(ctx context.Context, history *model.TaskExecutionHistory, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Updates(history).Error
}

func (r *jobRepository) Get(ctx context.Context, param *model.GetJobParam, opts ...utils.DBOption) ([]model.Job, error) {
	var jobs []model.Job
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Model(&model.Job{})
	if param.IsActive != nil {
		db = db.Where("EXISTS (SELECT 1 FROM task_schedules ts WHERE ts.job_id = jobs.id AND ts.is_active = ?)", *param.IsActive)
	}
	if len(param.IDs) > 0 {
		db = db.Where("jobs.id IN ?", param.IDs)
	}
	if len(param.Types) > 0 {
		db = db.Where("jobs.type IN ?", param.Types)
	}
	if param.Limit != nil {
		db = db.Limit(*param.Limit)
	}
	if param.WithTaskHistory != nil {
		db = db.Preload("Histories", func(db *gorm.DB) *gorm.DB {
			db = db.Order("created_at DESC")
			if param.WithTaskHistory.Limit != nil {
				db = db.Limit(*param.WithTaskHistory.Limit)
			}
			return db
		})
	}
	if err := db.Preload("Schedules").Order("jobs.id").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRepository) DeleteTaskHistoryOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error) {
	res := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Where("created_at < ?", date).Delete(&model.TaskExecutionHistory{})
	return res.RowsAffected, res.Error
}
