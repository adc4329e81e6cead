package telegram

import (
	"context"
	"fmt"
	"time"

	"golang-autotrader/config"
	"golang-autotrader/internal/service"
	"golang-autotrader/pkg/logger"

	"github.com/labstack/echo/v4"
	"gopkg.in/telebot.v3"
)

const defaultCommandTimeout = 30 * time.Second

// TelegramBotHandler serves chat commands for the configured chat. Updates
// arrive through the echo webhook route and are dispatched by telebot.
type TelegramBotHandler struct {
	ctx     context.Context
	cfg     *config.Config
	bot     *telebot.Bot
	log     *logger.Logger
	echo    *echo.Echo
	service *service.Service
	now     func() time.Time
}

func NewTelegramBotHandler(
	ctx context.Context,
	cfg *config.Config,
	log *logger.Logger,
	bot *telebot.Bot,
	echo *echo.Echo,
	service *service.Service) *TelegramBotHandler {
	return &TelegramBotHandler{
		ctx:     ctx,
		cfg:     cfg,
		log:     log,
		bot:     bot,
		echo:    echo,
		service: service,
		now:     time.Now,
	}
}

func (t *TelegramBotHandler) Start() error {
	if t.cfg.Telegram.WebhookURL == "" {
		t.log.Info("Telegram webhook is disabled")
		return nil
	}

	t.log.Info("Setting webhook URL", logger.StringField("webhook_url", t.cfg.Telegram.WebhookURL))
	err := t.bot.SetWebhook(&telebot.Webhook{
		Endpoint: &telebot.WebhookEndpoint{PublicURL: t.cfg.Telegram.WebhookURL},
	})
	if err != nil {
		return fmt.Errorf("telegram: set webhook: %w", err)
	}

	t.RegisterHandlers()
	return nil
}

func (t *TelegramBotHandler) Stop() {
	t.log.Info("Stopping Telegram bot...")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(t.ctx), 10*time.Second)
	defer cancel()

	stopDone := make(chan struct{})
	go func() {
		t.bot.Stop()
		close(stopDone)
	}()

	select {
	case <-stopDone:
		t.log.Info("Telegram bot stopped")
	case <-ctx.Done():
		t.log.Warn("Timeout while stopping bot, forcing shutdown")
	}
}

func (t *TelegramBotHandler) commandTimeout() time.Duration {
	if t.cfg.Telegram.TimeoutDuration > 0 {
		return t.cfg.Telegram.TimeoutDuration
	}
	return defaultCommandTimeout
}
