package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"

	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/model"
	"golang-autotrader/pkg/utils"
)

const helpMessage = `🤖 <b>EMA Auto Trader</b>

/positions [SYMBOL] - active positions
/bots - run switch and last run per symbol
/bot SYMBOL on|off - start or stop a symbol
/market - is the market open now
/run SYMBOL - run one trading tick
/help - show this message`

func (t *TelegramBotHandler) cmdHelp(ctx context.Context, args []string) (string, error) {
	return helpMessage, nil
}

func (t *TelegramBotHandler) cmdUnknown(ctx context.Context, args []string) (string, error) {
	return "I don't know that command. Use /help to see what I can do.", nil
}

func (t *TelegramBotHandler) cmdPositions(ctx context.Context, args []string) (string, error) {
	param := dto.GetPositionsParam{
		UserID:   utils.ToPointer(t.cfg.Telegram.UserID),
		Statuses: model.ActivePositionStatuses,
	}
	if len(args) > 0 {
		param.Symbols = []string{strings.ToUpper(args[0])}
	}

	positions, err := t.service.TradingService.ListPositions(ctx, param)
	if err != nil {
		return "", err
	}
	return formatPositions(positions), nil
}

func (t *TelegramBotHandler) cmdBots(ctx context.Context, args []string) (string, error) {
	states, err := t.service.TradingService.ListBotStates(ctx)
	if err != nil {
		return "", err
	}
	return formatBotStates(states), nil
}

func (t *TelegramBotHandler) cmdBot(ctx context.Context, args []string) (string, error) {
	if len(args) != 2 {
		return "Usage: /bot SYMBOL on|off", nil
	}
	var running bool
	switch strings.ToLower(args[1]) {
	case "on":
		running = true
	case "off":
	default:
		return "Usage: /bot SYMBOL on|off", nil
	}

	state, err := t.service.TradingService.SetBotRunning(ctx, strings.ToUpper(args[0]), running)
	if err != nil {
		return "", err
	}
	if state.Running {
		return fmt.Sprintf("▶️ <b>%s</b> is running", state.Symbol), nil
	}
	return fmt.Sprintf("⏸ <b>%s</b> is stopped. Orders already in flight are not cancelled.", state.Symbol), nil
}

func (t *TelegramBotHandler) cmdMarket(ctx context.Context, args []string) (string, error) {
	status := t.service.TradingService.MarketStatus(t.now())
	icon := "🔴"
	if status.Open {
		icon = "🟢"
	}
	return fmt.Sprintf("%s %s (%s)", icon, status.Reason, status.TimeZone), nil
}

func (t *TelegramBotHandler) cmdRun(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "Usage: /run SYMBOL", nil
	}
	result := t.service.TradeExecutor.Run(ctx, dto.RunParam{
		Symbol: strings.ToUpper(args[0]),
		UserID: t.cfg.Telegram.UserID,
	})
	return formatRunResult(strings.ToUpper(args[0]), result), nil
}

func formatPositions(positions []model.Position) string {
	if len(positions) == 0 {
		return "❌ No active positions."
	}

	sb := strings.Builder{}
	sb.WriteString("📊 <b>Active positions</b>\n\n")
	for idx, p := range positions {
		sb.WriteString(fmt.Sprintf("<b>%d. %s</b> (%s)\n", idx+1, p.Symbol, p.Status))
		if p.Status == model.PositionPending {
			sb.WriteString(fmt.Sprintf("  • Order: %s\n", p.PrimaryOrderID))
			continue
		}
		sb.WriteString(fmt.Sprintf("  • Entry: %.2f\n", p.EntryPrice))
		if p.CurrentPrice != nil {
			pnl, pct := p.PnL(*p.CurrentPrice)
			sb.WriteString(fmt.Sprintf("  • Now: %.2f (%s, %+.2f)\n", *p.CurrentPrice, utils.FormatPercentage(pct*100), pnl))
		}
		sb.WriteString(fmt.Sprintf("  • TP/SL: +%.2f%% / -%.2f%%\n", p.TakeProfitPct, p.StopLossPct))
	}
	return sb.String()
}

func formatBotStates(states []model.BotState) string {
	if len(states) == 0 {
		return "No bots configured yet. Use /bot SYMBOL on."
	}

	sb := strings.Builder{}
	sb.WriteString("🤖 <b>Bots</b>\n\n")
	for _, s := range states {
		icon := "⏸"
		if s.Running {
			icon = "▶️"
		}
		sb.WriteString(fmt.Sprintf("%s <b>%s</b>", icon, s.Symbol))
		if s.LastRunAt != nil {
			sb.WriteString(" last run " + utils.PrettyDate(*s.LastRunAt))
		}
		sb.WriteString("\n")
		if s.ErrorMessage != nil && *s.ErrorMessage != "" {
			sb.WriteString("  ⚠️ " + html.EscapeString(*s.ErrorMessage) + "\n")
		}
	}
	return sb.String()
}

func formatRunResult(symbol string, result dto.RunResult) string {
	icon := "✅"
	if !result.Success {
		icon = "⚠️"
	}
	text := fmt.Sprintf("%s <b>%s</b>: %s", icon, symbol, html.EscapeString(result.Reason))
	if result.Position != nil {
		text += fmt.Sprintf("\nPosition #%d %s", result.Position.ID, result.Position.Status)
	}
	return text
}
