package dto

import (
	"time"

	"golang-autotrader/internal/model"
)

type GetPositionsParam struct {
	IDs      []uint                 `json:"ids" query:"ids"`
	UserID   *uint                  `json:"user_id" query:"user_id"`
	Symbols  []string               `json:"symbols" query:"symbols"`
	Statuses []model.PositionStatus `json:"statuses" query:"statuses"`
	Limit    *int                   `json:"limit" query:"limit"`
}

// UpdatePositionStatusParam moves one position from From to To. Nil fields
// are left unchanged.
type UpdatePositionStatusParam struct {
	ID                   uint
	From                 model.PositionStatus
	To                   model.PositionStatus
	EntryPrice           *float64
	FillQty              *float64
	FillNotional         *float64
	ExitPrice            *float64
	ExitTime             *time.Time
	ExitReason           *model.ExitReason
	ProfitLoss           *float64
	ProfitLossPercentage *float64
}

// UserSymbol is one (user, symbol) pair a job works on.
type UserSymbol struct {
	UserID    uint   `json:"user_id" validate:"required"`
	Symbol    string `json:"symbol" validate:"required,max=20"`
	Timeframe string `json:"timeframe,omitempty" validate:"omitempty,oneof=1Min 5Min 15Min 1Hour 1Day"`
}
