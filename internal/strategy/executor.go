package strategy

import (
	"context"
	"encoding/json"
	"fmt"

	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/model"

	goValidator "github.com/go-playground/validator/v10"
)

const (
	JOB_EXIT_CODE_SUCCESS         = 200
	JOB_EXIT_CODE_FAILED          = 500
	JOB_EXIT_CODE_SKIPPED         = 204
	JOB_EXIT_CODE_PARTIAL_SUCCESS = 206
)

const defaultTargetConcurrency = 4

type JobType string

const (
	JobTypeEmaTrade       JobType = "ema_trade"
	JobTypeExitMonitor    JobType = "exit_monitor"
	JobTypeOrderReconcile JobType = "order_reconcile"
	JobTypeDataCleanUp    JobType = "data_clean_up"
)

type JobResult struct {
	ExitCode int32  `json:"exit_code"`
	Output   string `json:"output"`
}

// JobExecutionStrategy defines the interface for different job execution strategies.
type JobExecutionStrategy interface {
	Execute(ctx context.Context, job *model.Job) (JobResult, error)
	GetType() JobType
}

// TargetsPayload is the job payload shared by the per-symbol jobs.
type TargetsPayload struct {
	Targets     []dto.UserSymbol `json:"targets" validate:"dive"`
	Concurrency int              `json:"concurrency" validate:"gte=0,lte=64"`
}

func (p TargetsPayload) limit() int {
	if p.Concurrency > 0 {
		return p.Concurrency
	}
	return defaultTargetConcurrency
}

func decodeTargets(validate *goValidator.Validate, job *model.Job) (TargetsPayload, error) {
	var payload TargetsPayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return payload, fmt.Errorf("failed to unmarshal job payload: %w", err)
		}
	}
	if err := validate.Struct(payload); err != nil {
		return payload, fmt.Errorf("invalid job payload: %w", err)
	}
	return payload, nil
}

func failedResult(err error) (JobResult, error) {
	return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: err.Error()}, err
}

func marshalOutput(v interface{}) string {
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("failed to marshal output: %v", err)
	}
	return string(out)
}
