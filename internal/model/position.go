package model

import (
	"fmt"
	"time"

	"golang-autotrader/pkg/common"
)

type PositionStatus string

const (
	PositionPending      PositionStatus = "pending"
	PositionOpen         PositionStatus = "open"
	PositionClosedProfit PositionStatus = "closed_profit"
	PositionClosedLoss   PositionStatus = "closed_loss"
	PositionCancelled    PositionStatus = "cancelled"
)

type ExitReason string

const (
	ExitReasonTakeProfit ExitReason = "take_profit"
	ExitReasonStopLoss   ExitReason = "stop_loss"
	ExitReasonManual     ExitReason = "manual"
)

// PendingEntryPricePlaceholder marks a pending position whose fill price is not known yet.
const PendingEntryPricePlaceholder = 0.01

var positionTransitions = map[PositionStatus][]PositionStatus{
	PositionPending: {PositionOpen, PositionCancelled},
	PositionOpen:    {PositionClosedProfit, PositionClosedLoss},
}

// ActivePositionStatuses are the statuses counted by the one-active-position rule.
var ActivePositionStatuses = []PositionStatus{PositionPending, PositionOpen}

func (s PositionStatus) IsActive() bool {
	return s == PositionPending || s == PositionOpen
}

func (s PositionStatus) IsTerminal() bool {
	switch s {
	case PositionClosedProfit, PositionClosedLoss, PositionCancelled:
		return true
	}
	return false
}

func (s PositionStatus) CanTransitionTo(next PositionStatus) bool {
	for _, allowed := range positionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Position struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	UserID               uint           `gorm:"not null;index:idx_positions_user_symbol" json:"user_id"`
	Symbol               string         `gorm:"type:varchar(20);not null;index:idx_positions_user_symbol" json:"symbol"`
	Amount               float64        `gorm:"not null" json:"amount"`
	EntryPrice           float64        `gorm:"not null" json:"entry_price"`
	EntryTime            time.Time      `gorm:"not null" json:"entry_time"`
	FillQty              float64        `json:"fill_qty"`
	FillNotional         float64        `json:"fill_notional"`
	CurrentPrice         *float64       `json:"current_price"`
	Status               PositionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	PrimaryOrderID       string         `gorm:"type:varchar(64)" json:"primary_order_id"`
	TakeProfitOrderID    *string        `gorm:"type:varchar(64)" json:"take_profit_order_id"`
	StopLossOrderID      *string        `gorm:"type:varchar(64)" json:"stop_loss_order_id"`
	TakeProfitPct        float64        `gorm:"not null" json:"take_profit_pct"`
	StopLossPct          float64        `gorm:"not null" json:"stop_loss_pct"`
	ExitPrice            *float64       `json:"exit_price"`
	ExitTime             *time.Time     `json:"exit_time"`
	ExitReason           *ExitReason    `gorm:"type:varchar(20)" json:"exit_reason"`
	ProfitLoss           *float64       `json:"profit_loss"`
	ProfitLossPercentage *float64       `json:"profit_loss_percentage"`
	CreatedAt            time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}

// Key identifies the (user, symbol) pair guarded by the one-active-position rule.
func (p *Position) Key() string {
	return PositionKey(p.UserID, p.Symbol)
}

func PositionKey(userID uint, symbol string) string {
	return fmt.Sprintf(common.KEY_POSITION, userID, symbol)
}

// PnL returns profit/loss in dollars and the fraction relative to entry for price.
func (p *Position) PnL(price float64) (float64, float64) {
	if p.EntryPrice == 0 {
		return 0, 0
	}
	pct := (price - p.EntryPrice) / p.EntryPrice
	return p.FillQty * (price - p.EntryPrice), pct
}
