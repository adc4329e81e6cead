package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang-autotrader/config"
	"golang-autotrader/internal/contract"
	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/model"
	"golang-autotrader/internal/repository"
	"golang-autotrader/pkg/logger"
	"golang-autotrader/pkg/utils"
)

const defaultReconcilePollInterval = 30 * time.Second

type OrderReconciler interface {
	contract.OrderReconciler
	contract.PendingWatcher
	// Shutdown stops inline watchers and waits for them to return.
	Shutdown()
}

type orderReconciler struct {
	cfg          *config.Config
	log          *logger.Logger
	positionRepo repository.PositionRepository
	gateway      repository.OrderGatewayRepository
	sink         contract.EventSink
	pollInterval time.Duration
	sleep        func(ctx context.Context, d time.Duration) error

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewOrderReconciler(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	sink contract.EventSink,
) OrderReconciler {
	interval := cfg.Reconciler.PollInterval
	if interval <= 0 {
		interval = defaultReconcilePollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &orderReconciler{
		cfg:          cfg,
		log:          log,
		positionRepo: repo.PositionRepo,
		gateway:      repo.OrderGatewayRepo,
		sink:         sink,
		pollInterval: interval,
		sleep:        sleepContext,
		baseCtx:      ctx,
		cancel:       cancel,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *orderReconciler) reschedule(status dto.OrderStatus, position *model.Position) dto.ReconcileOutcome {
	return dto.ReconcileOutcome{
		Type:        dto.OutcomeReschedule,
		OrderStatus: status,
		Position:    position,
		RetryAfter:  r.pollInterval,
	}
}

// Reconcile resolves one pending position against its broker order. Broker
// and persistence hiccups come back as a reschedule, not an error.
func (r *orderReconciler) Reconcile(ctx context.Context, positionID uint) (dto.ReconcileOutcome, error) {
	log := r.log.With(logger.UintField("position_id", positionID))

	position, err := r.positionRepo.FindByID(ctx, positionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.ReconcileOutcome{Type: dto.OutcomeSkipped}, err
		}
		log.WarnContext(ctx, "Failed to load position", logger.ErrorField(err))
		return r.reschedule("", nil), nil
	}
	if position.Status != model.PositionPending {
		return dto.ReconcileOutcome{Type: dto.OutcomeSkipped, Position: position}, nil
	}

	status, err := r.gateway.GetOrderStatus(ctx, position.PrimaryOrderID)
	if err != nil {
		log.WarnContext(ctx, "Failed to fetch order status",
			logger.StringField("order_id", position.PrimaryOrderID),
			logger.ErrorField(err),
		)
		return r.reschedule("", position), nil
	}

	switch {
	case status.Status.IsFilled():
		return r.promote(ctx, log, position, status)
	case status.Status.IsDead():
		return r.cancelPosition(ctx, log, position, status)
	}

	log.DebugContext(ctx, "Order still working", logger.StringField("order_status", string(status.Status)))
	return r.reschedule(status.Status, position), nil
}

func (r *orderReconciler) promote(ctx context.Context, log *logger.Logger, position *model.Position, status *dto.OrderStatusResult) (dto.ReconcileOutcome, error) {
	if status.FilledAvgPrice == nil || *status.FilledAvgPrice <= 0 || status.FilledQty <= 0 {
		log.WarnContext(ctx, "Order filled without price or quantity", logger.StringField("order_id", status.OrderID))
		return r.reschedule(status.Status, position), nil
	}
	price, qty := *status.FilledAvgPrice, status.FilledQty

	updated, err := r.positionRepo.UpdateStatus(ctx, dto.UpdatePositionStatusParam{
		ID:           position.ID,
		From:         model.PositionPending,
		To:           model.PositionOpen,
		EntryPrice:   utils.ToPointer(price),
		FillQty:      utils.ToPointer(qty),
		FillNotional: utils.ToPointer(price * qty),
	})
	if errors.Is(err, repository.ErrInvalidTransition) {
		return dto.ReconcileOutcome{Type: dto.OutcomeSkipped, OrderStatus: status.Status, Position: updated}, nil
	}
	if err != nil {
		log.WarnContext(ctx, "Failed to open position", logger.ErrorField(err))
		return r.reschedule(status.Status, position), nil
	}

	safety, err := r.gateway.SetupSafetyOrders(ctx, dto.SetupSafetyParam{
		Symbol:    updated.Symbol,
		FillPrice: price,
		FillQty:   qty,
		ProfitPct: updated.TakeProfitPct,
		LossPct:   updated.StopLossPct,
	})
	if err != nil {
		// The fill stands; the exit monitor still guards the position.
		log.ErrorContextWithAlert(ctx, "Failed to place safety orders after fill",
			logger.StringField("symbol", updated.Symbol),
			logger.ErrorField(err),
		)
		r.sink.Publish(ctx, dto.NewPositionEvent(dto.EventSafetyOrderFailed, updated, err.Error()))
	} else if err := r.positionRepo.UpdateSafetyOrders(ctx, updated.ID, *safety); err != nil {
		log.ErrorContext(ctx, "Failed to store safety order ids", logger.ErrorField(err))
	} else {
		updated.TakeProfitOrderID = utils.ToPointer(safety.TakeProfitOrderID)
		updated.StopLossOrderID = utils.ToPointer(safety.StopLossOrderID)
	}

	log.InfoContext(ctx, "Pending position filled",
		logger.FloatField("entry_price", price),
		logger.FloatField("qty", qty),
	)
	r.sink.Publish(ctx, dto.NewPositionEvent(dto.EventPositionOpened, updated, "pending order filled"))
	return dto.ReconcileOutcome{Type: dto.OutcomeOpened, OrderStatus: status.Status, Position: updated}, nil
}

func (r *orderReconciler) cancelPosition(ctx context.Context, log *logger.Logger, position *model.Position, status *dto.OrderStatusResult) (dto.ReconcileOutcome, error) {
	updated, err := r.positionRepo.UpdateStatus(ctx, dto.UpdatePositionStatusParam{
		ID:   position.ID,
		From: model.PositionPending,
		To:   model.PositionCancelled,
	})
	if errors.Is(err, repository.ErrInvalidTransition) {
		return dto.ReconcileOutcome{Type: dto.OutcomeSkipped, OrderStatus: status.Status, Position: updated}, nil
	}
	if err != nil {
		log.WarnContext(ctx, "Failed to cancel position", logger.ErrorField(err))
		return r.reschedule(status.Status, position), nil
	}

	log.InfoContext(ctx, "Pending position cancelled", logger.StringField("order_status", string(status.Status)))
	r.sink.Publish(ctx, dto.NewPositionEvent(dto.EventPositionCancelled, updated,
		fmt.Sprintf("buy order %s", status.Status)))
	return dto.ReconcileOutcome{Type: dto.OutcomeCancelled, OrderStatus: status.Status, Position: updated}, nil
}

// ReconcilePending runs one pass over every pending position and returns how
// many were resolved.
func (r *orderReconciler) ReconcilePending(ctx context.Context) (int, error) {
	pending, err := r.positionRepo.Get(ctx, dto.GetPositionsParam{
		Statuses: []model.PositionStatus{model.PositionPending},
	})
	if err != nil {
		return 0, fmt.Errorf("list pending positions: %w", err)
	}

	resolved := 0
	for _, p := range pending {
		if !utils.ShouldContinue(ctx, r.log) {
			break
		}

		var outcome dto.ReconcileOutcome
		err := utils.RunSafe(func() error {
			var err error
			outcome, err = r.Reconcile(ctx, p.ID)
			return err
		})
		if err != nil {
			r.log.ErrorContext(ctx, "Failed to reconcile position", logger.UintField("position_id", p.ID), logger.ErrorField(err))
			continue
		}
		if outcome.Type == dto.OutcomeOpened || outcome.Type == dto.OutcomeCancelled {
			resolved++
		}
	}
	return resolved, nil
}

// Watch polls one position until it leaves pending or ctx ends.
func (r *orderReconciler) Watch(ctx context.Context, positionID uint) {
	for {
		outcome, err := r.Reconcile(ctx, positionID)
		if err != nil {
			r.log.WarnContext(ctx, "Stop watching position", logger.UintField("position_id", positionID), logger.ErrorField(err))
			return
		}
		if outcome.Type != dto.OutcomeReschedule {
			return
		}
		if err := r.sleep(ctx, outcome.RetryAfter); err != nil {
			return
		}
	}
}

// WatchAsync starts Watch in the background when inline watching is enabled.
// Otherwise the scheduled order_reconcile job picks the position up.
func (r *orderReconciler) WatchAsync(positionID uint) {
	if !r.cfg.Reconciler.WatchInline {
		return
	}
	r.wg.Add(1)
	utils.GoSafe(func() {
		defer r.wg.Done()
		r.Watch(r.baseCtx, positionID)
	})
}

func (r *orderReconciler) Shutdown() {
	r.cancel()
	r.wg.Wait()
}
