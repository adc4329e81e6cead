package telegram

import (
	"context"
	"fmt"

	"golang-autotrader/config"
	"golang-autotrader/pkg/logger"
	"golang-autotrader/pkg/utils"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

// Sender is the subset of *telebot.Bot used for outbound messages.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Notifier pushes plain-text messages to one chat under a global rate limit.
type Notifier struct {
	cfg     *config.TelegramConfig
	log     *logger.Logger
	sender  Sender
	chat    *telebot.Chat
	limiter *rate.Limiter
}

// NewBot creates a telebot client without starting its poller.
func NewBot(cfg *config.TelegramConfig) (*telebot.Bot, error) {
	bot, err := telebot.NewBot(telebot.Settings{
		Token:   cfg.BotToken,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	return bot, nil
}

func NewNotifier(cfg *config.TelegramConfig, log *logger.Logger, sender Sender) *Notifier {
	perSecond := cfg.MaxGlobalRequestPerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	return &Notifier{
		cfg:     cfg,
		log:     log,
		sender:  sender,
		chat:    &telebot.Chat{ID: cfg.ChatID},
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

// Send waits for a token and delivers text to the configured chat.
func (n *Notifier) Send(ctx context.Context, text string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram: rate limit wait: %w", err)
	}
	if _, err := n.sender.Send(n.chat, text, telebot.NoPreview); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}

// SendAlert satisfies logger.AlertSender. It never blocks the caller.
func (n *Notifier) SendAlert(message string) {
	utils.GoSafe(func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.cfg.TimeoutDuration)
		defer cancel()
		if err := n.Send(ctx, message); err != nil {
			// plain Warn: an alert about a failed alert would loop
			n.log.Warn("Failed to deliver telegram alert", logger.ErrorField(err))
		}
	})
}
