package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-autotrader/config"
	"golang-autotrader/internal/contract"
	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/indicator"
	"golang-autotrader/internal/model"
	"golang-autotrader/internal/repository"
	"golang-autotrader/pkg/cache"
	"golang-autotrader/pkg/common"
	"golang-autotrader/pkg/keylock"
	"golang-autotrader/pkg/logger"
	"golang-autotrader/pkg/utils"
)

type TradeExecutor interface {
	contract.TradeRunner
}

type tradeExecutor struct {
	cfg          *config.Config
	log          *logger.Logger
	cache        cache.Cache
	calendar     MarketCalendar
	fetcher      RetryingFetcher
	engine       *indicator.EmaEngine
	detector     *indicator.SignalDetector
	positionRepo repository.PositionRepository
	signalRepo   repository.TradingSignalRepository
	botStateRepo repository.BotStateRepository
	gateway      repository.OrderGatewayRepository
	locker       keylock.Locker
	sink         contract.EventSink
	watcher      contract.PendingWatcher
	now          func() time.Time
}

func NewTradeExecutor(
	cfg *config.Config,
	log *logger.Logger,
	inmemoryCache cache.Cache,
	repo *repository.Repository,
	calendar MarketCalendar,
	fetcher RetryingFetcher,
	locker keylock.Locker,
	sink contract.EventSink,
	watcher contract.PendingWatcher,
) TradeExecutor {
	return &tradeExecutor{
		cfg:          cfg,
		log:          log,
		cache:        inmemoryCache,
		calendar:     calendar,
		fetcher:      fetcher,
		engine:       indicator.NewEmaEngine(),
		detector:     NewSignalDetectorFromConfig(cfg.Trading),
		positionRepo: repo.PositionRepo,
		signalRepo:   repo.TradingSignalRepo,
		botStateRepo: repo.BotStateRepo,
		gateway:      repo.OrderGatewayRepo,
		locker:       locker,
		sink:         sink,
		watcher:      watcher,
		now:          time.Now,
	}
}

// NewSignalDetectorFromConfig falls back to the 5/8/22 defaults for unset periods.
func NewSignalDetectorFromConfig(cfg config.Trading) *indicator.SignalDetector {
	fast, mid, slow := cfg.FastPeriod, cfg.MidPeriod, cfg.SlowPeriod
	if fast <= 0 {
		fast = indicator.DefaultFastPeriod
	}
	if mid <= 0 {
		mid = indicator.DefaultMidPeriod
	}
	if slow <= 0 {
		slow = indicator.DefaultSlowPeriod
	}
	return indicator.NewSignalDetector(fast, mid, slow, cfg.ConfirmationBars)
}

// Run executes one strategy tick for (UserID, Symbol). It never panics and
// always reports a reason when Success is false.
func (t *tradeExecutor) Run(ctx context.Context, param dto.RunParam) (result dto.RunResult) {
	if param.Timeframe == "" {
		param.Timeframe = t.cfg.Trading.DefaultTimeframe
	}
	log := t.log.With(
		logger.StringField("symbol", param.Symbol),
		logger.UintField("user_id", param.UserID),
		logger.StringField("timeframe", param.Timeframe),
	)

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContextWithAlert(ctx, "Trade run panicked", logger.Field("panic", r))
			result = dto.RunResult{Success: false, Reason: fmt.Sprintf("%s: %v", dto.ReasonUnexpectedFailure, r)}
		}
		t.recordRun(ctx, param, result)
	}()

	return t.run(ctx, log, param)
}

func (t *tradeExecutor) run(ctx context.Context, log *logger.Logger, param dto.RunParam) dto.RunResult {
	state, err := t.botStateRepo.Get(ctx, param.Symbol)
	if err != nil {
		log.ErrorContext(ctx, "Failed to read bot state", logger.ErrorField(err))
		return failed(dto.ReasonBotStateError)
	}
	if state == nil || !state.Running {
		log.DebugContext(ctx, "Bot is stopped, skipping tick")
		return failed(dto.ReasonBotStopped)
	}

	if open, reason := t.calendar.IsOpen(t.now(), t.cfg.Market.TimeZone); !open {
		log.DebugContext(ctx, "Market closed", logger.StringField("reason", reason))
		return failed("market closed: " + reason)
	}

	series, err := t.fetcher.GetCloses(ctx, dto.GetClosesParam{
		Symbol:    param.Symbol,
		Timeframe: param.Timeframe,
		Limit:     t.cfg.MarketData.BarsLimit,
	})
	if err != nil {
		log.WarnContext(ctx, "Failed to fetch closes", logger.ErrorField(err))
		return failed(fmt.Sprintf("%s: %v", dto.ReasonFetchFailed, err))
	}
	closes := indicator.SanitizeCloses(series.Closes)
	if len(closes) == 0 {
		return failed(dto.ReasonNoData)
	}

	snapshot, err := t.engine.Compute(closes, t.detector.Periods())
	if err != nil {
		log.InfoContext(ctx, "Not enough closes for EMA",
			logger.IntField("closes", len(closes)),
			logger.ErrorField(err),
		)
		return failed(dto.ReasonInsufficientData)
	}

	signal := t.detector.Evaluate(snapshot)
	if signal != indicator.SignalNone {
		t.recordSignal(ctx, log, param, signal, closes[len(closes)-1], snapshot)
	}

	switch signal {
	case indicator.SignalNone:
		return dto.RunResult{Success: true, Reason: dto.ReasonNoSignal, Signal: signal}
	case indicator.SignalSell:
		// Exits are driven by thresholds, a sell crossover only gets recorded.
		return dto.RunResult{Success: true, Reason: dto.ReasonSellSignal, Signal: signal}
	}

	position, err := t.ExecuteTrade(ctx, param.Symbol, param.UserID)
	if err != nil {
		return dto.RunResult{Success: false, Reason: fmt.Sprintf("%s: %v", dto.ReasonTradeFailed, err), Signal: signal}
	}
	if position == nil {
		return dto.RunResult{Success: true, Reason: dto.ReasonPositionExists, Signal: signal}
	}
	reason := dto.ReasonPositionOpened
	if position.Status == model.PositionPending {
		reason = dto.ReasonPositionPending
	}
	return dto.RunResult{Success: true, Reason: reason, Signal: signal, Position: position}
}

func failed(reason string) dto.RunResult {
	return dto.RunResult{Success: false, Reason: reason}
}

// recordSignal stores a signal only when it differs from the last stored one,
// so a sustained alignment is recorded once.
func (t *tradeExecutor) recordSignal(ctx context.Context, log *logger.Logger, param dto.RunParam, signal indicator.Signal, price float64, snapshot map[int]indicator.EmaResult) {
	signalType := model.SignalType(signal)

	latest, err := t.signalRepo.FindLatest(ctx, param.UserID, param.Symbol)
	if err != nil {
		log.WarnContext(ctx, "Failed to read latest signal", logger.ErrorField(err))
		return
	}
	if latest != nil && latest.SignalType == signalType {
		return
	}

	record := &model.TradingSignal{
		UserID:     param.UserID,
		Symbol:     param.Symbol,
		SignalType: signalType,
		Price:      price,
		Ema5:       snapshot[t.detector.FastPeriod].Value,
		Ema8:       snapshot[t.detector.MidPeriod].Value,
		Ema22:      snapshot[t.detector.SlowPeriod].Value,
		Timestamp:  t.now().UTC(),
	}
	if err := t.signalRepo.Create(ctx, record); err != nil {
		log.ErrorContext(ctx, "Failed to store signal", logger.ErrorField(err))
		return
	}

	log.InfoContext(ctx, "Signal detected",
		logger.StringField("signal", string(signal)),
		logger.FloatField("price", price),
	)
	t.sink.Publish(ctx, dto.NewSignalEvent(record))
}

func (t *tradeExecutor) recordRun(ctx context.Context, param dto.RunParam, result dto.RunResult) {
	key := fmt.Sprintf(common.KEY_LAST_ERROR, param.UserID, param.Symbol)
	var errMsg *string
	if result.Success {
		t.cache.Delete(key)
	} else {
		t.cache.Set(key, result.Reason, t.cfg.Cache.LastErrorDuration)
		errMsg = utils.ToPointer(result.Reason)
	}

	// A stopped bot did not run.
	if result.Reason == dto.ReasonBotStopped || result.Reason == dto.ReasonBotStateError {
		return
	}
	if err := t.botStateRepo.RecordRun(ctx, param.Symbol, t.now().UTC(), errMsg); err != nil {
		t.log.WarnContext(ctx, "Failed to record bot run", logger.StringField("symbol", param.Symbol), logger.ErrorField(err))
	}
}

func (t *tradeExecutor) LastError(userID uint, symbol string) (string, bool) {
	return cache.GetFromCache[string](t.cache, fmt.Sprintf(common.KEY_LAST_ERROR, userID, symbol))
}

// ExecuteTrade places a bracketed buy and persists the resulting position.
// It returns (nil, nil) when another trade for the same key is in flight or a
// position is already active.
func (t *tradeExecutor) ExecuteTrade(ctx context.Context, symbol string, userID uint) (position *model.Position, err error) {
	log := t.log.With(logger.StringField("symbol", symbol), logger.UintField("user_id", userID))
	defer func() {
		if r := recover(); r != nil {
			log.ErrorContextWithAlert(ctx, "Trade execution panicked", logger.Field("panic", r))
			position, err = nil, fmt.Errorf("%s: %v", dto.ReasonUnexpectedFailure, r)
		}
	}()

	unlock, err := t.locker.Lock(ctx, model.PositionKey(userID, symbol))
	if errors.Is(err, keylock.ErrLockHeld) {
		log.InfoContext(ctx, "Trade already in flight for key")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("acquire position lock: %w", err)
	}
	defer unlock()

	active, err := t.positionRepo.FindActive(ctx, userID, symbol)
	if err != nil {
		return nil, fmt.Errorf("find active position: %w", err)
	}
	if active != nil {
		log.DebugContext(ctx, "Active position exists", logger.UintField("position_id", active.ID))
		return nil, nil
	}

	// Once an order is sent the position must be written, so cancellation of
	// the tick no longer applies.
	ctx = context.WithoutCancel(ctx)

	order, err := t.gateway.PlaceBuyWithSafety(ctx, dto.PlaceBuyParam{
		Symbol:    symbol,
		Notional:  t.cfg.Trading.NotionalAmount,
		ProfitPct: t.cfg.Trading.TakeProfitPct,
		LossPct:   t.cfg.Trading.StopLossPct,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to place buy order", logger.ErrorField(err))
		t.publishFailure(ctx, userID, symbol, fmt.Sprintf("buy order failed: %v", err))
		return nil, fmt.Errorf("place buy order: %w", err)
	}
	if order.Status.IsDead() {
		log.WarnContext(ctx, "Buy order ended without fill",
			logger.StringField("order_id", order.OrderID),
			logger.StringField("order_status", string(order.Status)),
		)
		t.publishFailure(ctx, userID, symbol, fmt.Sprintf("buy order %s %s", order.OrderID, order.Status))
		return nil, fmt.Errorf("buy order %s %s", order.OrderID, order.Status)
	}

	position = t.newPosition(userID, symbol, order)
	if err := t.positionRepo.Create(ctx, position); err != nil {
		log.ErrorContextWithAlert(ctx, "Order placed but position was not stored",
			logger.StringField("order_id", order.OrderID),
			logger.ErrorField(err),
		)
		if errors.Is(err, repository.ErrActivePositionExists) {
			return nil, nil
		}
		return nil, fmt.Errorf("store position for order %s: %w", order.OrderID, err)
	}

	if position.Status == model.PositionPending {
		log.InfoContext(ctx, "Position pending fill",
			logger.UintField("position_id", position.ID),
			logger.StringField("order_id", order.OrderID),
		)
		t.sink.Publish(ctx, dto.NewPositionEvent(dto.EventPositionPending, position, "buy order awaiting fill"))
		if t.watcher != nil {
			t.watcher.WatchAsync(position.ID)
		}
		return position, nil
	}

	log.InfoContext(ctx, "Position opened",
		logger.UintField("position_id", position.ID),
		logger.FloatField("entry_price", position.EntryPrice),
		logger.FloatField("qty", position.FillQty),
	)
	t.sink.Publish(ctx, dto.NewPositionEvent(dto.EventPositionOpened, position, "buy order filled"))
	return position, nil
}

func (t *tradeExecutor) newPosition(userID uint, symbol string, order *dto.OrderResult) *model.Position {
	position := &model.Position{
		UserID:         userID,
		Symbol:         symbol,
		Amount:         t.cfg.Trading.NotionalAmount,
		EntryTime:      t.now().UTC(),
		PrimaryOrderID: order.OrderID,
		TakeProfitPct:  t.cfg.Trading.TakeProfitPct,
		StopLossPct:    t.cfg.Trading.StopLossPct,
	}

	if order.Status.IsFilled() && order.FillPrice != nil && order.FillQty != nil {
		position.Status = model.PositionOpen
		position.EntryPrice = *order.FillPrice
		position.FillQty = *order.FillQty
		position.FillNotional = *order.FillPrice * *order.FillQty
		position.CurrentPrice = utils.ToPointer(*order.FillPrice)
		position.TakeProfitOrderID = order.TakeProfitOrderID
		position.StopLossOrderID = order.StopLossOrderID
		return position
	}

	position.Status = model.PositionPending
	position.EntryPrice = model.PendingEntryPricePlaceholder
	return position
}

func (t *tradeExecutor) publishFailure(ctx context.Context, userID uint, symbol, message string) {
	t.sink.Publish(ctx, dto.Event{
		Type:       dto.EventOrderFailed,
		UserID:     userID,
		Symbol:     symbol,
		Message:    message,
		OccurredAt: t.now(),
	})
}
