package telegram

import (
	"context"
	"html"
	"net/http"

	"golang-autotrader/internal/dto"
	"golang-autotrader/pkg/logger"

	"github.com/labstack/echo/v4"
	"gopkg.in/telebot.v3"
)

// commandFunc turns command arguments into an HTML reply.
type commandFunc func(ctx context.Context, args []string) (string, error)

func (t *TelegramBotHandler) RegisterHandlers() {
	t.echo.POST("/api/v1/telegram/webhook", func(c echo.Context) error {
		var update telebot.Update
		if err := c.Bind(&update); err != nil {
			t.log.ErrorContext(t.ctx, "Cannot bind telegram update", logger.ErrorField(err))
			return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
		}
		t.bot.ProcessUpdate(update)
		return c.JSON(http.StatusOK, dto.NewBaseResponse(http.StatusOK, "ok", nil))
	})

	t.bot.Use(t.OnlyConfiguredChat())

	t.bot.Handle("/start", t.reply(t.cmdHelp))
	t.bot.Handle("/help", t.reply(t.cmdHelp))
	t.bot.Handle("/positions", t.reply(t.cmdPositions))
	t.bot.Handle("/bots", t.reply(t.cmdBots))
	t.bot.Handle("/bot", t.reply(t.cmdBot))
	t.bot.Handle("/market", t.reply(t.cmdMarket))
	t.bot.Handle("/run", t.reply(t.cmdRun))
	t.bot.Handle(telebot.OnText, t.reply(t.cmdUnknown))
}

// OnlyConfiguredChat drops updates from any chat other than telegram.chat_id.
func (t *TelegramBotHandler) OnlyConfiguredChat() telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			chat := c.Chat()
			if chat == nil || chat.ID != t.cfg.Telegram.ChatID {
				var chatID int64
				if chat != nil {
					chatID = chat.ID
				}
				t.log.Warn("Ignoring update from unknown chat", logger.Field("chat_id", chatID))
				return nil
			}
			return next(c)
		}
	}
}

func (t *TelegramBotHandler) reply(fn commandFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(t.ctx, t.commandTimeout())
		defer cancel()

		text, err := fn(ctx, c.Args())
		if err != nil {
			t.log.ErrorContext(ctx, "Telegram command failed",
				logger.StringField("command", c.Text()),
				logger.ErrorField(err),
			)
			text = "⚠️ " + html.EscapeString(err.Error())
		}
		return c.Send(text, &telebot.SendOptions{ParseMode: telebot.ModeHTML, DisableWebPagePreview: true})
	}
}
