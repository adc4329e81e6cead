package repository

import (
	"context"
	"fmt"
	"time"

	"golang-autotrader/config"
	"golang-autotrader/internal/dto"
	"golang-autotrader/pkg/logger"
	"golang-autotrader/pkg/utils"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderGatewayRepository interface {
	// PlaceBuyWithSafety submits a notional market buy, waits briefly for a
	// fill and, once filled, places the protective take-profit/stop-loss pair.
	PlaceBuyWithSafety(ctx context.Context, param dto.PlaceBuyParam) (*dto.OrderResult, error)
	GetOrderStatus(ctx context.Context, orderID string) (*dto.OrderStatusResult, error)
	SetupSafetyOrders(ctx context.Context, param dto.SetupSafetyParam) (*dto.SafetyOrders, error)
	// SubmitExit cancels the protective orders and sells qty at market.
	SubmitExit(ctx context.Context, param dto.SubmitExitParam) (string, error)
}

// alpacaTradingClient is the subset of *alpaca.Client used here.
type alpacaTradingClient interface {
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
	GetOrder(orderID string) (*alpaca.Order, error)
	CancelOrder(orderID string) error
}

type orderGatewayRepository struct {
	client alpacaTradingClient
	cfg    *config.Config
	log    *logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewOrderGatewayRepository(cfg *config.Config, log *logger.Logger) OrderGatewayRepository {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    cfg.Alpaca.APIKey,
		APISecret: cfg.Alpaca.APISecret,
		BaseURL:   cfg.Alpaca.BaseURL,
	})
	return newOrderGatewayRepository(cfg, log, client)
}

func newOrderGatewayRepository(cfg *config.Config, log *logger.Logger, client alpacaTradingClient) *orderGatewayRepository {
	return &orderGatewayRepository{
		client: client,
		cfg:    cfg,
		log:    log,
		sleep:  sleepContext,
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

func normalizeOrderStatus(status string) dto.OrderStatus {
	switch status {
	case "canceled", "cancelled", "pending_cancel", "done_for_day":
		return dto.OrderStatusCancelled
	case "replaced", "pending_replace", "calculated", "stopped", "suspended":
		return dto.OrderStatusAccepted
	}
	return dto.OrderStatus(status)
}

func (r *orderGatewayRepository) PlaceBuyWithSafety(ctx context.Context, param dto.PlaceBuyParam) (*dto.OrderResult, error) {
	notional := decimal.NewFromFloat(param.Notional).Round(2)
	order, err := r.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        param.Symbol,
		Notional:      &notional,
		Side:          alpaca.Buy,
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("place buy %s: %w", param.Symbol, err)
	}

	r.log.InfoContext(ctx, "Buy order placed",
		logger.StringField("symbol", param.Symbol),
		logger.StringField("order_id", order.ID),
		logger.StringField("status", order.Status),
		logger.StringField("notional", notional.String()))

	status := normalizeOrderStatus(order.Status)
	// notional orders cannot carry bracket legs, so wait for the fill here
	for attempt := 0; attempt < r.cfg.Alpaca.FillWaitAttempt && !status.IsFilled() && !status.IsDead(); attempt++ {
		if err := r.sleep(ctx, r.cfg.Alpaca.FillWaitDelay); err != nil {
			break
		}
		polled, err := r.client.GetOrder(order.ID)
		if err != nil {
			r.log.WarnContext(ctx, "Failed to poll buy order, leaving it pending",
				logger.StringField("order_id", order.ID), logger.ErrorField(err))
			break
		}
		order = polled
		status = normalizeOrderStatus(order.Status)
	}

	result := &dto.OrderResult{Status: status, OrderID: order.ID}
	if !status.IsFilled() {
		return result, nil
	}

	fillPrice, fillQty, ok := fillOf(order)
	if !ok {
		// filled without a price is reported as pending so the reconciler picks it up
		result.Status = dto.OrderStatusAccepted
		return result, nil
	}
	result.FillPrice = utils.ToPointer(fillPrice)
	result.FillQty = utils.ToPointer(fillQty)

	safety, err := r.SetupSafetyOrders(ctx, dto.SetupSafetyParam{
		Symbol:    param.Symbol,
		FillPrice: fillPrice,
		FillQty:   fillQty,
		ProfitPct: param.ProfitPct,
		LossPct:   param.LossPct,
	})
	if err != nil {
		r.log.ErrorContextWithAlert(ctx, "Failed to place safety orders after fill",
			logger.StringField("symbol", param.Symbol),
			logger.StringField("order_id", order.ID),
			logger.ErrorField(err))
		return result, nil
	}
	result.TakeProfitOrderID = utils.ToPointer(safety.TakeProfitOrderID)
	result.StopLossOrderID = utils.ToPointer(safety.StopLossOrderID)
	return result, nil
}

func fillOf(order *alpaca.Order) (float64, float64, bool) {
	if order.FilledAvgPrice == nil {
		return 0, 0, false
	}
	price := order.FilledAvgPrice.InexactFloat64()
	qty := order.FilledQty.InexactFloat64()
	if price <= 0 || qty <= 0 {
		return 0, 0, false
	}
	return price, qty, true
}

func (r *orderGatewayRepository) GetOrderStatus(ctx context.Context, orderID string) (*dto.OrderStatusResult, error) {
	order, err := r.client.GetOrder(orderID)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}

	result := &dto.OrderStatusResult{
		OrderID:   order.ID,
		Status:    normalizeOrderStatus(order.Status),
		FilledQty: order.FilledQty.InexactFloat64(),
	}
	if order.FilledAvgPrice != nil {
		result.FilledAvgPrice = utils.ToPointer(order.FilledAvgPrice.InexactFloat64())
	}
	return result, nil
}

// SetupSafetyOrders places one OCO sell: a take-profit limit and a stop-loss
// stop. Percentages are whole numbers, 2 means 2%.
func (r *orderGatewayRepository) SetupSafetyOrders(ctx context.Context, param dto.SetupSafetyParam) (*dto.SafetyOrders, error) {
	if param.FillQty <= 0 || param.FillPrice <= 0 {
		return nil, fmt.Errorf("invalid fill for %s: qty %.6f price %.4f", param.Symbol, param.FillQty, param.FillPrice)
	}

	entry := decimal.NewFromFloat(param.FillPrice)
	hundred := decimal.NewFromInt(100)
	takeProfit := entry.Mul(hundred.Add(decimal.NewFromFloat(param.ProfitPct))).Div(hundred).Round(2)
	stopLoss := entry.Mul(hundred.Sub(decimal.NewFromFloat(param.LossPct))).Div(hundred).Round(2)
	qty := decimal.NewFromFloat(param.FillQty)

	order, err := r.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        param.Symbol,
		Qty:           &qty,
		Side:          alpaca.Sell,
		Type:          alpaca.Limit,
		TimeInForce:   alpaca.GTC,
		OrderClass:    alpaca.OCO,
		ClientOrderID: uuid.NewString(),
		TakeProfit:    &alpaca.TakeProfit{LimitPrice: &takeProfit},
		StopLoss:      &alpaca.StopLoss{StopPrice: &stopLoss},
	})
	if err != nil {
		return nil, fmt.Errorf("place safety orders %s: %w", param.Symbol, err)
	}

	orders := &dto.SafetyOrders{TakeProfitOrderID: order.ID}
	for _, leg := range order.Legs {
		if leg.ID != order.ID {
			orders.StopLossOrderID = leg.ID
			break
		}
	}

	r.log.InfoContext(ctx, "Safety orders placed",
		logger.StringField("symbol", param.Symbol),
		logger.StringField("take_profit_order_id", orders.TakeProfitOrderID),
		logger.StringField("stop_loss_order_id", orders.StopLossOrderID),
		logger.StringField("take_profit", takeProfit.String()),
		logger.StringField("stop_loss", stopLoss.String()))
	return orders, nil
}

func (r *orderGatewayRepository) SubmitExit(ctx context.Context, param dto.SubmitExitParam) (string, error) {
	for _, id := range []*string{param.TakeProfitOrderID, param.StopLossOrderID} {
		if id == nil || *id == "" {
			continue
		}
		if err := r.client.CancelOrder(*id); err != nil {
			// an already filled or cancelled leg is not fatal; the sell below decides
			r.log.WarnContext(ctx, "Failed to cancel protective order",
				logger.StringField("order_id", *id), logger.ErrorField(err))
		}
	}

	qty := decimal.NewFromFloat(param.Qty)
	order, err := r.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        param.Symbol,
		Qty:           &qty,
		Side:          alpaca.Sell,
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("place exit %s: %w", param.Symbol, err)
	}
	return order.ID, nil
}
