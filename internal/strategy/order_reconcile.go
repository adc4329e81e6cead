package strategy

import (
	"context"
	"fmt"

	"golang-autotrader/internal/contract"
	"golang-autotrader/internal/model"
	"golang-autotrader/pkg/logger"
)

type OrderReconcileStrategy struct {
	log        *logger.Logger
	reconciler contract.OrderReconciler
}

func NewOrderReconcileStrategy(log *logger.Logger, reconciler contract.OrderReconciler) JobExecutionStrategy {
	return &OrderReconcileStrategy{log: log, reconciler: reconciler}
}

func (s *OrderReconcileStrategy) Execute(ctx context.Context, job *model.Job) (JobResult, error) {
	resolved, err := s.reconciler.ReconcilePending(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to reconcile pending positions", logger.ErrorField(err), logger.UintField("job_id", job.ID))
		return failedResult(fmt.Errorf("reconcile pending positions: %w", err))
	}
	return JobResult{
		ExitCode: JOB_EXIT_CODE_SUCCESS,
		Output:   marshalOutput(map[string]int{"resolved": resolved}),
	}, nil
}

func (s *OrderReconcileStrategy) GetType() JobType {
	return JobTypeOrderReconcile
}
