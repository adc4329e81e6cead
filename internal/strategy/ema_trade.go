package strategy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang-autotrader/config"
	"golang-autotrader/internal/contract"
	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/model"
	"golang-autotrader/pkg/logger"

	goValidator "github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

type EmaTradeResult struct {
	UserID    uint   `json:"user_id"`
	Symbol    string `json:"symbol"`
	Success   bool   `json:"success"`
	Reason    string `json:"reason"`
	Signal    string `json:"signal,omitempty"`
	Position  uint   `json:"position_id,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
}

type EmaTradeStrategy struct {
	cfg      *config.Config
	log      *logger.Logger
	validate *goValidator.Validate
	runner   contract.TradeRunner
}

func NewEmaTradeStrategy(cfg *config.Config, log *logger.Logger, validate *goValidator.Validate, runner contract.TradeRunner) JobExecutionStrategy {
	return &EmaTradeStrategy{
		cfg:      cfg,
		log:      log,
		validate: validate,
		runner:   runner,
	}
}

// isGated reports a run that stopped before doing any work on purpose.
func isGated(reason string) bool {
	return reason == dto.ReasonBotStopped || strings.HasPrefix(reason, "market closed")
}

func (s *EmaTradeStrategy) Execute(ctx context.Context, job *model.Job) (JobResult, error) {
	payload, err := decodeTargets(s.validate, job)
	if err != nil {
		s.log.ErrorContext(ctx, "Invalid ema_trade payload", logger.ErrorField(err), logger.UintField("job_id", job.ID))
		return failedResult(err)
	}
	if len(payload.Targets) == 0 {
		return JobResult{ExitCode: JOB_EXIT_CODE_SKIPPED, Output: "no targets"}, nil
	}

	var (
		mu      sync.Mutex
		results = make([]EmaTradeResult, 0, len(payload.Targets))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(payload.limit())
	for _, target := range payload.Targets {
		target := target
		g.Go(func() error {
			res := s.runner.Run(gctx, dto.RunParam{Symbol: target.Symbol, Timeframe: target.Timeframe, UserID: target.UserID})
			out := EmaTradeResult{
				UserID:    target.UserID,
				Symbol:    target.Symbol,
				Success:   res.Success,
				Reason:    res.Reason,
				Signal:    string(res.Signal),
				Skipped:   !res.Success && isGated(res.Reason),
				Timeframe: target.Timeframe,
			}
			if res.Position != nil {
				out.Position = res.Position.ID
			}
			mu.Lock()
			results = append(results, out)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	failed, succeeded := 0, 0
	for _, r := range results {
		switch {
		case r.Success:
			succeeded++
		case !r.Skipped:
			failed++
		}
	}

	s.log.InfoContext(ctx, "ema_trade finished",
		logger.IntField("targets", len(results)),
		logger.IntField("succeeded", succeeded),
		logger.IntField("failed", failed),
	)

	output := marshalOutput(results)
	switch {
	case failed == len(results):
		err := fmt.Errorf("all %d targets failed", failed)
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: output}, err
	case failed > 0:
		return JobResult{ExitCode: JOB_EXIT_CODE_PARTIAL_SUCCESS, Output: output}, nil
	case succeeded == 0:
		return JobResult{ExitCode: JOB_EXIT_CODE_SKIPPED, Output: output}, nil
	}
	return JobResult{ExitCode: JOB_EXIT_CODE_SUCCESS, Output: output}, nil
}

func (s *EmaTradeStrategy) GetType() JobType {
	return JobTypeEmaTrade
}
