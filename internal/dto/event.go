package dto

import (
	"time"

	"golang-autotrader/internal/model"
)

type EventType string

const (
	EventSignalDetected    EventType = "signal_detected"
	EventPositionOpened    EventType = "position_opened"
	EventPositionPending   EventType = "position_pending"
	EventPositionClosed    EventType = "position_closed"
	EventPositionCancelled EventType = "position_cancelled"
	EventOrderFailed       EventType = "order_failed"
	EventSafetyOrderFailed EventType = "safety_order_failed"
)

type Event struct {
	Type       EventType            `json:"type"`
	UserID     uint                 `json:"user_id"`
	Symbol     string               `json:"symbol"`
	Message    string               `json:"message,omitempty"`
	Signal     *model.TradingSignal `json:"signal,omitempty"`
	Position   *model.Position      `json:"position,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

func NewSignalEvent(signal *model.TradingSignal) Event {
	return Event{
		Type:       EventSignalDetected,
		UserID:     signal.UserID,
		Symbol:     signal.Symbol,
		Signal:     signal,
		OccurredAt: time.Now(),
	}
}

func NewPositionEvent(t EventType, position *model.Position, message string) Event {
	return Event{
		Type:       t,
		UserID:     position.UserID,
		Symbol:     position.Symbol,
		Message:    message,
		Position:   position,
		OccurredAt: time.Now(),
	}
}
