package dto

type OrderStatus string

// Broker order statuses, normalized to these values by the gateway.
const (
	OrderStatusNew             OrderStatus = "new"
	OrderStatusAccepted        OrderStatus = "accepted"
	OrderStatusPendingNew      OrderStatus = "pending_new"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusExpired         OrderStatus = "expired"
	OrderStatusFailed          OrderStatus = "failed"
)

func (s OrderStatus) IsFilled() bool {
	return s == OrderStatusFilled
}

// IsDead reports a terminal status with no fill.
func (s OrderStatus) IsDead() bool {
	switch s {
	case OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired, OrderStatusFailed:
		return true
	}
	return false
}

type PlaceBuyParam struct {
	Symbol    string
	Notional  float64
	ProfitPct float64
	LossPct   float64
}

// OrderResult is what PlaceBuyWithSafety reports back. Fill fields are set
// only when Status is filled.
type OrderResult struct {
	Status            OrderStatus `json:"status"`
	OrderID           string      `json:"order_id"`
	FillPrice         *float64    `json:"fill_price,omitempty"`
	FillQty           *float64    `json:"fill_qty,omitempty"`
	TakeProfitOrderID *string     `json:"take_profit_order_id,omitempty"`
	StopLossOrderID   *string     `json:"stop_loss_order_id,omitempty"`
}

type OrderStatusResult struct {
	OrderID        string      `json:"order_id"`
	Status         OrderStatus `json:"status"`
	FilledAvgPrice *float64    `json:"filled_avg_price,omitempty"`
	FilledQty      float64     `json:"filled_qty"`
}

type SetupSafetyParam struct {
	Symbol    string
	FillPrice float64
	FillQty   float64
	ProfitPct float64
	LossPct   float64
}

type SafetyOrders struct {
	TakeProfitOrderID string `json:"take_profit_order_id"`
	StopLossOrderID   string `json:"stop_loss_order_id"`
}

type SubmitExitParam struct {
	Symbol            string
	Qty               float64
	TakeProfitOrderID *string
	StopLossOrderID   *string
}
