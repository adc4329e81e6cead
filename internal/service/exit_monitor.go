package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang-autotrader/config"
	"golang-autotrader/internal/contract"
	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/model"
	"golang-autotrader/internal/repository"
	"golang-autotrader/pkg/keylock"
	"golang-autotrader/pkg/logger"
	"golang-autotrader/pkg/utils"
)

type ExitMonitor interface {
	contract.ExitChecker
}

type exitMonitor struct {
	cfg          *config.Config
	log          *logger.Logger
	fetcher      RetryingFetcher
	positionRepo repository.PositionRepository
	gateway      repository.OrderGatewayRepository
	sink         contract.EventSink
	locker       keylock.Locker
	now          func() time.Time
}

func NewExitMonitor(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	fetcher RetryingFetcher,
	locker keylock.Locker,
	sink contract.EventSink,
) ExitMonitor {
	return &exitMonitor{
		cfg:          cfg,
		log:          log,
		fetcher:      fetcher,
		positionRepo: repo.PositionRepo,
		gateway:      repo.OrderGatewayRepo,
		sink:         sink,
		locker:       locker,
		now:          time.Now,
	}
}

// CheckExits closes the open positions of (userID, symbol) that crossed their
// take-profit or stop-loss threshold at the latest price. It reports whether
// any position closed. Failures are logged, never returned. The (userID,
// symbol) lock shared with trade execution is held from loading the positions
// until they are closed, so one position gets at most one exit order.
func (m *exitMonitor) CheckExits(ctx context.Context, symbol string, userID uint) (closedAny bool) {
	log := m.log.With(logger.StringField("symbol", symbol), logger.UintField("user_id", userID))
	defer func() {
		if r := recover(); r != nil {
			log.ErrorContextWithAlert(ctx, "Exit check panicked", logger.Field("panic", r))
		}
	}()

	unlock, err := m.locker.Lock(ctx, model.PositionKey(userID, symbol))
	if errors.Is(err, keylock.ErrLockHeld) {
		log.InfoContext(ctx, "Position key busy, skipping exit check")
		return false
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to acquire position lock", logger.ErrorField(err))
		return false
	}
	defer unlock()

	positions, err := m.positionRepo.FindAllOpen(ctx, symbol, userID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load open positions", logger.ErrorField(err))
		return false
	}
	if len(positions) == 0 {
		return false
	}

	bar, err := m.fetcher.GetLatestBar(ctx, symbol)
	if err != nil {
		log.WarnContext(ctx, "Failed to fetch latest price", logger.ErrorField(err))
		return false
	}
	price := bar.Close
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		log.WarnContext(ctx, "Latest price unusable", logger.FloatField("price", price))
		return false
	}

	for i := range positions {
		position := &positions[i]
		if position.UserID != userID || position.Symbol != symbol {
			continue
		}

		var closed bool
		err := utils.RunSafe(func() error {
			var err error
			closed, err = m.evaluate(ctx, log, position, price)
			return err
		})
		if err != nil {
			log.ErrorContext(ctx, "Failed to evaluate position exit",
				logger.UintField("position_id", position.ID),
				logger.ErrorField(err),
			)
			continue
		}
		closedAny = closedAny || closed
	}
	return closedAny
}

func (m *exitMonitor) evaluate(ctx context.Context, log *logger.Logger, position *model.Position, price float64) (bool, error) {
	profitLoss, pct := position.PnL(price)

	takeProfit := position.TakeProfitPct
	if takeProfit <= 0 {
		takeProfit = m.cfg.Trading.TakeProfitPct
	}
	stopLoss := position.StopLossPct
	if stopLoss <= 0 {
		stopLoss = m.cfg.Trading.StopLossPct
	}

	var (
		status model.PositionStatus
		reason model.ExitReason
	)
	switch {
	case pct >= takeProfit/100:
		status, reason = model.PositionClosedProfit, model.ExitReasonTakeProfit
	case pct <= -stopLoss/100:
		status, reason = model.PositionClosedLoss, model.ExitReasonStopLoss
	default:
		if err := m.positionRepo.UpdateCurrentPrice(ctx, position.ID, price); err != nil {
			return false, fmt.Errorf("update current price: %w", err)
		}
		return false, nil
	}

	if m.cfg.Trading.SubmitExitOrders {
		orderID, err := m.gateway.SubmitExit(ctx, dto.SubmitExitParam{
			Symbol:            position.Symbol,
			Qty:               position.FillQty,
			TakeProfitOrderID: position.TakeProfitOrderID,
			StopLossOrderID:   position.StopLossOrderID,
		})
		if err != nil {
			return false, fmt.Errorf("submit exit order: %w", err)
		}
		log.InfoContext(ctx, "Exit order submitted",
			logger.UintField("position_id", position.ID),
			logger.StringField("order_id", orderID),
		)
	}

	updated, err := m.positionRepo.UpdateStatus(ctx, dto.UpdatePositionStatusParam{
		ID:                   position.ID,
		From:                 model.PositionOpen,
		To:                   status,
		ExitPrice:            utils.ToPointer(price),
		ExitTime:             utils.ToPointer(m.now().UTC()),
		ExitReason:           utils.ToPointer(reason),
		ProfitLoss:           utils.ToPointer(profitLoss),
		ProfitLossPercentage: utils.ToPointer(pct * 100),
	})
	if err != nil {
		return false, fmt.Errorf("close position: %w", err)
	}

	log.InfoContext(ctx, "Position closed",
		logger.UintField("position_id", updated.ID),
		logger.StringField("status", string(updated.Status)),
		logger.FloatField("exit_price", price),
		logger.StringField("pnl_pct", utils.FormatPercentage(pct*100)),
	)
	m.sink.Publish(ctx, dto.NewPositionEvent(dto.EventPositionClosed, updated,
		fmt.Sprintf("%s at %.2f (%s)", reason, price, utils.FormatPercentage(pct*100))))
	return true, nil
}
