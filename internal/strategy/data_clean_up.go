package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang-autotrader/config"
	"golang-autotrader/internal/model"
	"golang-autotrader/internal/repository"
	"golang-autotrader/pkg/logger"
	"golang-autotrader/pkg/utils"
)

type DataCleanUpPayload struct {
	RetentionDays int `json:"retention_days"`
}

type DataCleanUpResult struct {
	Table string `json:"table"`
	Total int64  `json:"total"`
	Error string `json:"error,omitempty"`
}

type DataCleanUpStrategy struct {
	cfg        *config.Config
	log        *logger.Logger
	jobRepo    repository.JobRepository
	unitOfWork repository.UnitOfWork
	now        func() time.Time
}

func NewDataCleanUpStrategy(cfg *config.Config, log *logger.Logger, jobRepo repository.JobRepository, unitOfWork repository.UnitOfWork) JobExecutionStrategy {
	return &DataCleanUpStrategy{
		cfg:        cfg,
		log:        log,
		jobRepo:    jobRepo,
		unitOfWork: unitOfWork,
		now:        time.Now,
	}
}

func (s *DataCleanUpStrategy) Execute(ctx context.Context, job *model.Job) (JobResult, error) {
	s.log.InfoContext(ctx, "Starting data clean up", logger.UintField("job_id", job.ID))

	var payload DataCleanUpPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		s.log.ErrorContext(ctx, "Failed to unmarshal job payload", logger.ErrorField(err), logger.UintField("job_id", job.ID))
		return failedResult(fmt.Errorf("failed to unmarshal job payload: %w", err))
	}
	if payload.RetentionDays <= 0 {
		return failedResult(fmt.Errorf("retention_days must be positive, got %d", payload.RetentionDays))
	}

	date := utils.DateOnly(s.now().UTC()).AddDate(0, 0, -payload.RetentionDays)

	var totalDeleted int64
	err := s.unitOfWork.Run(ctx, func(opts ...utils.DBOption) error {
		var err error
		totalDeleted, err = s.jobRepo.DeleteTaskHistoryOlderThan(ctx, date, opts...)
		return err
	})

	result := DataCleanUpResult{Table: "task_execution_history", Total: totalDeleted}
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to delete task history", logger.ErrorField(err), logger.UintField("job_id", job.ID))
		result.Total = 0
		result.Error = fmt.Sprintf("failed to delete task history older than %s: %v", date.Format(time.DateOnly), err)
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: marshalOutput([]DataCleanUpResult{result})}, err
	}

	s.log.InfoContext(ctx, "Data clean up finished", logger.Field("deleted", totalDeleted))
	return JobResult{ExitCode: JOB_EXIT_CODE_SUCCESS, Output: marshalOutput([]DataCleanUpResult{result})}, nil
}

func (s *DataCleanUpStrategy) GetType() JobType {
	return JobTypeDataCleanUp
}
