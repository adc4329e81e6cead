package event

import (
	"context"
	"time"

	"golang-autotrader/internal/dto"
	"golang-autotrader/pkg/logger"
	"golang-autotrader/pkg/utils"
)

// TextSender delivers one text message, e.g. *telegram.Notifier.
type TextSender interface {
	Send(ctx context.Context, text string) error
}

type TelegramSink struct {
	sender  TextSender
	timeout time.Duration
	log     *logger.Logger
}

func NewTelegramSink(sender TextSender, timeout time.Duration, log *logger.Logger) *TelegramSink {
	return &TelegramSink{sender: sender, timeout: timeout, log: log}
}

func (s *TelegramSink) Publish(ctx context.Context, event dto.Event) {
	text := FormatEvent(event)
	utils.GoSafe(func() {
		// detached from the caller so a finished tick does not cancel delivery
		sendCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.sender.Send(sendCtx, text); err != nil {
			s.log.Warn("Failed to publish event to telegram",
				logger.StringField("event_type", string(event.Type)),
				logger.ErrorField(err))
		}
	})
}
