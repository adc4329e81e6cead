package contract

import (
	"context"

	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/model"
)

// EventSink receives signal and position lifecycle events. Publish must not
// block the caller on delivery.
type EventSink interface {
	Publish(ctx context.Context, event dto.Event)
}

type TradeRunner interface {
	Run(ctx context.Context, param dto.RunParam) dto.RunResult
	ExecuteTrade(ctx context.Context, symbol string, userID uint) (*model.Position, error)
	LastError(userID uint, symbol string) (string, bool)
}

type ExitChecker interface {
	CheckExits(ctx context.Context, symbol string, userID uint) bool
}

type OrderReconciler interface {
	Reconcile(ctx context.Context, positionID uint) (dto.ReconcileOutcome, error)
	ReconcilePending(ctx context.Context) (int, error)
	Watch(ctx context.Context, positionID uint)
}

type PendingWatcher interface {
	WatchAsync(positionID uint)
}
