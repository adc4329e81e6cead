package strategy

import (
	"context"
	"fmt"
	"sync"

	"golang-autotrader/config"
	"golang-autotrader/internal/contract"
	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/model"
	"golang-autotrader/internal/repository"
	"golang-autotrader/pkg/logger"

	goValidator "github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

// ExitMonitorStrategy checks exits for the payload targets, or for every
// (user, symbol) with an open position when the payload names none.
type ExitMonitorStrategy struct {
	cfg          *config.Config
	log          *logger.Logger
	validate     *goValidator.Validate
	checker      contract.ExitChecker
	positionRepo repository.PositionRepository
}

func NewExitMonitorStrategy(cfg *config.Config, log *logger.Logger, validate *goValidator.Validate, checker contract.ExitChecker, positionRepo repository.PositionRepository) JobExecutionStrategy {
	return &ExitMonitorStrategy{
		cfg:          cfg,
		log:          log,
		validate:     validate,
		checker:      checker,
		positionRepo: positionRepo,
	}
}

func (s *ExitMonitorStrategy) Execute(ctx context.Context, job *model.Job) (JobResult, error) {
	payload, err := decodeTargets(s.validate, job)
	if err != nil {
		s.log.ErrorContext(ctx, "Invalid exit_monitor payload", logger.ErrorField(err), logger.UintField("job_id", job.ID))
		return failedResult(err)
	}

	targets := payload.Targets
	if len(targets) == 0 {
		targets, err = s.positionRepo.OpenKeys(ctx)
		if err != nil {
			return failedResult(fmt.Errorf("failed to list open positions: %w", err))
		}
	}
	if len(targets) == 0 {
		return JobResult{ExitCode: JOB_EXIT_CODE_SKIPPED, Output: "no open positions"}, nil
	}

	var (
		mu      sync.Mutex
		results = make([]dto.ExitCheckResult, 0, len(targets))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(payload.limit())
	for _, target := range targets {
		target := target
		g.Go(func() error {
			closed := s.checker.CheckExits(gctx, target.Symbol, target.UserID)
			mu.Lock()
			results = append(results, dto.ExitCheckResult{UserID: target.UserID, Symbol: target.Symbol, ClosedAny: closed})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return JobResult{ExitCode: JOB_EXIT_CODE_SUCCESS, Output: marshalOutput(results)}, nil
}

func (s *ExitMonitorStrategy) GetType() JobType {
	return JobTypeExitMonitor
}
