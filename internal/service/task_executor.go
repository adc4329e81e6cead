package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang-autotrader/config"
	"golang-autotrader/internal/model"
	"golang-autotrader/internal/repository"
	"golang-autotrader/internal/strategy"
	"golang-autotrader/pkg/logger"
	"golang-autotrader/pkg/utils"
)

type TaskExecutor interface {
	Execute(ctx context.Context, taskHistory *model.TaskExecutionHistory) error
}

type taskExecutor struct {
	cfg                *config.Config
	log                *logger.Logger
	jobRepo            repository.JobRepository
	executorStrategies map[strategy.JobType]strategy.JobExecutionStrategy
}

func NewTaskExecutor(cfg *config.Config, log *logger.Logger, jobRepo repository.JobRepository, executorStrategies map[strategy.JobType]strategy.JobExecutionStrategy) TaskExecutor {
	return &taskExecutor{
		jobRepo:            jobRepo,
		cfg:                cfg,
		log:                log,
		executorStrategies: executorStrategies,
	}
}

func (t *taskExecutor) Execute(ctx context.Context, taskHistory *model.TaskExecutionHistory) error {
	log := t.log.With(logger.UintField("job_id", taskHistory.JobID), logger.UintField("history_id", taskHistory.ID))
	log.InfoContext(ctx, "Processing job")

	job, err := t.jobRepo.FindByID(ctx, taskHistory.JobID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to find job", logger.ErrorField(err))
		taskHistory.Status = model.StatusFailed
		taskHistory.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
		return t.finish(ctx, taskHistory)
	}

	executor := t.executorStrategies[strategy.JobType(job.Type)]
	if executor == nil {
		log.ErrorContext(ctx, "Job type not registered", logger.StringField("job_type", job.Type))
		taskHistory.Status = model.StatusFailed
		taskHistory.ErrorMessage = sql.NullString{String: fmt.Sprintf("job type %q not registered", job.Type), Valid: true}
		return t.finish(ctx, taskHistory)
	}

	var result strategy.JobResult
	err = utils.RunSafe(func() error {
		var err error
		result, err = executor.Execute(ctx, job)
		return err
	})
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		log.WarnContext(ctx, "Job timed out", logger.StringField("job_type", job.Type))
		taskHistory.Status = model.StatusTimeout
		taskHistory.ErrorMessage = sql.NullString{String: ctx.Err().Error(), Valid: true}
	case err != nil:
		log.ErrorContext(ctx, "Failed to execute job", logger.ErrorField(err), logger.StringField("job_type", job.Type))
		taskHistory.Status = model.StatusFailed
		taskHistory.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	default:
		taskHistory.Status = model.StatusCompleted
	}
	if result.ExitCode == 0 {
		result.ExitCode = strategy.JOB_EXIT_CODE_SUCCESS
		if taskHistory.Status != model.StatusCompleted {
			result.ExitCode = strategy.JOB_EXIT_CODE_FAILED
		}
	}
	taskHistory.ExitCode = sql.NullInt32{Int32: result.ExitCode, Valid: true}
	taskHistory.Output = sql.NullString{String: result.Output, Valid: true}

	return t.finish(ctx, taskHistory)
}

// finish writes the history row even when ctx already expired.
func (t *taskExecutor) finish(ctx context.Context, taskHistory *model.TaskExecutionHistory) error {
	taskHistory.CompletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	if err := t.jobRepo.UpdateTaskExecutionHistory(context.WithoutCancel(ctx), taskHistory); err != nil {
		t.log.ErrorContext(ctx, "Failed to update task execution history", logger.ErrorField(err), logger.UintField("job_id", taskHistory.JobID))
		return fmt.Errorf("failed to update task execution history: %w", err)
	}
	return nil
}
