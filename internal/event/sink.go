// Package event delivers signal and position lifecycle events to the
// configured sinks. Every sink is fire-and-forget.
package event

import (
	"context"
	"fmt"
	"strings"

	"golang-autotrader/internal/contract"
	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/model"
	"golang-autotrader/pkg/logger"

	"go.uber.org/zap"
)

type MultiSink struct {
	sinks []contract.EventSink
}

func NewMultiSink(sinks ...contract.EventSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Publish(ctx context.Context, event dto.Event) {
	for _, s := range m.sinks {
		s.Publish(ctx, event)
	}
}

type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Publish(ctx context.Context, event dto.Event) {
	fields := []zap.Field{
		logger.StringField("event_type", string(event.Type)),
		logger.UintField("user_id", event.UserID),
		logger.StringField("symbol", event.Symbol),
	}
	if event.Position != nil {
		fields = append(fields,
			logger.UintField("position_id", event.Position.ID),
			logger.StringField("status", string(event.Position.Status)))
	}
	if event.Signal != nil {
		fields = append(fields,
			logger.StringField("signal", string(event.Signal.SignalType)),
			logger.FloatField("price", event.Signal.Price))
	}
	if event.Message != "" {
		fields = append(fields, logger.StringField("message", event.Message))
	}
	s.log.InfoContext(ctx, "Trading event", fields...)
}

// FormatEvent renders event as a short plain-text notification.
func FormatEvent(event dto.Event) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s (user %d)", strings.ToUpper(string(event.Type)), event.Symbol, event.UserID)

	if sig := event.Signal; sig != nil {
		fmt.Fprintf(&sb, "\nSignal: %s @ %.4f", strings.ToUpper(string(sig.SignalType)), sig.Price)
		fmt.Fprintf(&sb, "\nEMA5 %.4f | EMA8 %.4f | EMA22 %.4f", sig.Ema5, sig.Ema8, sig.Ema22)
	}
	if p := event.Position; p != nil {
		fmt.Fprintf(&sb, "\nPosition #%d: %s", p.ID, p.Status)
		if p.Status != model.PositionPending {
			fmt.Fprintf(&sb, "\nEntry: %.4f x %.6f", p.EntryPrice, p.FillQty)
		}
		if p.ExitPrice != nil {
			fmt.Fprintf(&sb, "\nExit: %.4f", *p.ExitPrice)
		}
		if p.ExitReason != nil {
			fmt.Fprintf(&sb, " (%s)", *p.ExitReason)
		}
		if p.ProfitLoss != nil && p.ProfitLossPercentage != nil {
			fmt.Fprintf(&sb, "\nP/L: %.2f (%+.2f%%)", *p.ProfitLoss, *p.ProfitLossPercentage)
		}
	}
	if event.Message != "" {
		fmt.Fprintf(&sb, "\n%s", event.Message)
	}
	return sb.String()
}
