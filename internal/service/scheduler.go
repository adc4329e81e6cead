package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"golang-autotrader/config"
	"golang-autotrader/internal/model"
	"golang-autotrader/internal/repository"
	"golang-autotrader/pkg/logger"
	"golang-autotrader/pkg/utils"

	"github.com/robfig/cron/v3"
)

type SchedulerService interface {
	Execute(ctx context.Context) error
	GetJobSchedule(ctx context.Context, param model.GetJobParam) ([]model.Job, error)
	RunJobTask(ctx context.Context, jobID uint) error
	// Wait blocks until every started task has finished.
	Wait()
}

type schedulerService struct {
	cfg          *config.Config
	log          *logger.Logger
	cronParser   cron.Parser
	jobRepo      repository.JobRepository
	taskExecutor TaskExecutor
	semaphore    chan struct{}
	wg           sync.WaitGroup
	now          func() time.Time
}

func NewSchedulerService(
	cfg *config.Config,
	log *logger.Logger,
	jobRepo repository.JobRepository,
	taskExecutor TaskExecutor,
) SchedulerService {
	maxConcurrency := cfg.Scheduler.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &schedulerService{
		cfg:          cfg,
		log:          log,
		jobRepo:      jobRepo,
		cronParser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		taskExecutor: taskExecutor,
		semaphore:    make(chan struct{}, maxConcurrency),
		now:          time.Now,
	}
}

func (s *schedulerService) Execute(ctx context.Context) error {
	jobs, err := s.jobRepo.FindJobsToSchedule(ctx, s.now())
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to find jobs to schedule", logger.ErrorField(err))
		return fmt.Errorf("failed to find jobs to schedule: %w", err)
	}

	if len(jobs) == 0 {
		s.log.DebugContext(ctx, "No jobs to schedule")
		return nil
	}
	s.log.InfoContext(ctx, "Start running jobs",
		logger.IntField("job_count", len(jobs)),
		logger.IntField("max_concurrency", cap(s.semaphore)),
	)

	for _, job := range jobs {
		if !utils.ShouldContinue(ctx, s.log) {
			return nil
		}

		if err := s.executeJob(ctx, job); err != nil {
			s.log.ErrorContextWithAlert(ctx, "Failed to execute job",
				logger.ErrorField(err),
				logger.UintField("job_id", job.JobID),
				logger.UintField("schedule_id", job.ID),
				logger.StringField("job_name", job.Job.Name),
				logger.StringField("job_type", job.Job.Type),
			)
		}
	}

	return nil
}

func (s *schedulerService) jobTimeout(job model.Job) time.Duration {
	if job.Timeout > 0 {
		return time.Duration(job.Timeout) * time.Second
	}
	if s.cfg.Scheduler.TimeoutDuration > 0 {
		return s.cfg.Scheduler.TimeoutDuration
	}
	return 5 * time.Minute
}

func (s *schedulerService) executeJob(ctx context.Context, task model.TaskSchedule) error {
	timeout := s.jobTimeout(task.Job)
	s.log.DebugContext(ctx, "Executing job",
		logger.UintField("job_id", task.JobID),
		logger.UintField("schedule_id", task.ID),
		logger.StringField("job_name", task.Job.Name),
		logger.StringField("job_type", task.Job.Type),
		logger.DurationField("timeout", timeout),
		logger.IntField("active_concurrency", len(s.semaphore)),
		logger.IntField("max_concurrency", cap(s.semaphore)),
	)

	now := s.now()
	history := &model.TaskExecutionHistory{
		JobID:      task.JobID,
		ScheduleID: utils.ToPointer(task.ID),
		Status:     model.StatusRunning,
		StartedAt:  now,
	}

	if err := s.jobRepo.CreateTaskExecutionHistory(ctx, history); err != nil {
		return fmt.Errorf("failed to create task history: %w", err)
	}

	select {
	case s.semaphore <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.wg.Add(1)
	utils.GoSafe(func() {
		defer s.wg.Done()
		defer func() {
			<-s.semaphore
		}()

		taskCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := s.taskExecutor.Execute(taskCtx, history); err != nil {
			s.log.ErrorContextWithAlert(taskCtx, "Failed to execute task", logger.ErrorField(err), logger.UintField("schedule_id", task.ID))
		}
	})

	cronSchedule, err := s.cronParser.Parse(task.CronExpression)
	if err != nil {
		return fmt.Errorf("failed to parse cron expression %q: %w", task.CronExpression, err)
	}

	task.LastExecution = sql.NullTime{Time: now, Valid: true}
	task.NextExecution = sql.NullTime{Time: cronSchedule.Next(now), Valid: true}

	if err := s.jobRepo.UpdateTaskSchedule(ctx, &task); err != nil {
		return fmt.Errorf("failed to update task schedule: %w", err)
	}
	return nil
}

func (s *schedulerService) GetJobSchedule(ctx context.Context, param model.GetJobParam) ([]model.Job, error) {
	return s.jobRepo.Get(ctx, &param)
}

func (s *schedulerService) RunJobTask(ctx context.Context, jobID uint) error {
	s.log.InfoContext(ctx, "Running job task", logger.UintField("job_id", jobID))
	jobs, err := s.jobRepo.Get(ctx, &model.GetJobParam{IDs: []uint{jobID}})
	if err != nil {
		return fmt.Errorf("failed to find job: %w", err)
	}
	if len(jobs) == 0 {
		return fmt.Errorf("job %d: %w", jobID, repository.ErrNotFound)
	}
	if len(jobs[0].Schedules) == 0 {
		return fmt.Errorf("job %d has no schedule: %w", jobID, repository.ErrNotFound)
	}

	schedule := jobs[0].Schedules[0]
	schedule.Job = jobs[0]
	return s.executeJob(ctx, schedule)
}

func (s *schedulerService) Wait() {
	s.wg.Wait()
}
