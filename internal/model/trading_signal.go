package model

import "time"

type SignalType string

const (
	SignalTypeBuy  SignalType = "buy"
	SignalTypeSell SignalType = "sell"
)

// TradingSignal is written once per detected transition and never updated.
type TradingSignal struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;index:idx_signals_user_symbol" json:"user_id"`
	Symbol     string     `gorm:"type:varchar(20);not null;index:idx_signals_user_symbol" json:"symbol"`
	SignalType SignalType `gorm:"type:varchar(10);not null" json:"signal_type"`
	Price      float64    `gorm:"not null" json:"price"`
	Ema5       float64    `gorm:"column:ema5;not null" json:"ema5"`
	Ema8       float64    `gorm:"column:ema8;not null" json:"ema8"`
	Ema22      float64    `gorm:"column:ema22;not null" json:"ema22"`
	Timestamp  time.Time  `gorm:"not null" json:"timestamp"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (TradingSignal) TableName() string {
	return "trading_signals"
}
