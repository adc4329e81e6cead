package dto

import (
	"time"

	"golang-autotrader/internal/indicator"
	"golang-autotrader/internal/model"
)

type RunParam struct {
	Symbol    string `json:"symbol" validate:"required,max=20"`
	Timeframe string `json:"timeframe" validate:"omitempty,oneof=1Min 5Min 15Min 1Hour 1Day"`
	UserID    uint   `json:"user_id" validate:"required"`
}

// RunResult is the outcome of one pipeline tick. Success false always comes
// with a Reason.
type RunResult struct {
	Success  bool             `json:"success"`
	Reason   string           `json:"reason"`
	Signal   indicator.Signal `json:"signal,omitempty"`
	Position *model.Position  `json:"position,omitempty"`
}

type ReconcileOutcomeType string

const (
	OutcomeOpened     ReconcileOutcomeType = "opened"
	OutcomeCancelled  ReconcileOutcomeType = "cancelled"
	OutcomeReschedule ReconcileOutcomeType = "reschedule"
	// OutcomeSkipped means the position was no longer pending.
	OutcomeSkipped ReconcileOutcomeType = "skipped"
)

type ReconcileOutcome struct {
	Type        ReconcileOutcomeType `json:"type"`
	OrderStatus OrderStatus          `json:"order_status,omitempty"`
	Position    *model.Position      `json:"position,omitempty"`
	RetryAfter  time.Duration        `json:"retry_after,omitempty"`
}

type ExitCheckResult struct {
	UserID    uint   `json:"user_id"`
	Symbol    string `json:"symbol"`
	ClosedAny bool   `json:"closed_any"`
}
