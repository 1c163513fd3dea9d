// Package notify pushes trade and farming events to a Telegram chat.
//
// Delivery is best effort: a dead bot or network blip must never stall
// the trading loop, so every failure is logged and swallowed.
package notify

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/ajitpratap0/hyperfarm/internal/config"
)

// Notifier sends HTML-formatted messages to one chat. The zero value and
// a nil receiver are both safe no-ops.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// New creates a notifier. Missing or invalid credentials produce a
// disabled notifier rather than an error.
func New(cfg config.TelegramConfig, logger zerolog.Logger) *Notifier {
	if !cfg.Enabled || cfg.BotToken == "" || cfg.ChatID == 0 {
		logger.Info().Msg("Telegram notifications disabled")
		return &Notifier{logger: logger}
	}
	return NewWithEndpoint(cfg, tgbotapi.APIEndpoint, logger)
}

// NewWithEndpoint creates a notifier against a specific API endpoint
func NewWithEndpoint(cfg config.TelegramConfig, endpoint string, logger zerolog.Logger) *Notifier {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.BotToken, endpoint)
	if err != nil {
		logger.Warn().Err(err).Msg("Telegram bot init failed, notifications disabled")
		return &Notifier{logger: logger}
	}

	logger.Info().Str("bot", bot.Self.UserName).Msg("Telegram notifier ready")
	return &Notifier{bot: bot, chatID: cfg.ChatID, logger: logger}
}

// Enabled reports whether messages will actually be sent
func (n *Notifier) Enabled() bool {
	return n != nil && n.bot != nil
}

// Send delivers a raw HTML message, best effort
func (n *Notifier) Send(text string) {
	if !n.Enabled() {
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Warn().Err(err).Msg("Telegram send failed")
	}
}

// TradeOpened announces a new position
func (n *Notifier) TradeOpened(asset, direction string, entry, size, notional float64, leverage int, tp, sl float64) {
	emoji := "🟢"
	if direction == "SHORT" {
		emoji = "🔴"
	}
	n.Send(fmt.Sprintf(
		"%s <b>%s %s</b>\nEntry: %s\nSize: %s (notional $%.2f, %dx)\nTP: %s | SL: %s",
		emoji, direction, asset,
		formatPrice(entry), trimFloat(size), notional, leverage,
		formatPrice(tp), formatPrice(sl)))
}

// TradeClosed announces a closed position with its outcome
func (n *Notifier) TradeClosed(asset, reason string, pnl, pnlPct float64) {
	emoji := "✅"
	if pnl < 0 {
		emoji = "❌"
	}
	n.Send(fmt.Sprintf(
		"%s <b>%s closed</b> (%s)\nPnL: $%.2f (%+.2f%%)",
		emoji, asset, closeReasonLabel(reason), pnl, pnlPct))
}

// Alert sends a warning-level message
func (n *Notifier) Alert(title, body string) {
	n.Send(fmt.Sprintf("⚠️ <b>%s</b>\n%s", title, body))
}

// Status sends a periodic account summary
func (n *Notifier) Status(accountValue float64, openPositions int, winRate, totalPnL float64) {
	n.Send(fmt.Sprintf(
		"📊 <b>Status</b>\nAccount: $%.2f\nOpen positions: %d\nWin rate: %.1f%%\nTotal PnL: $%.2f",
		accountValue, openPositions, winRate, totalPnL))
}

// FarmAction announces one executed farming action
func (n *Notifier) FarmAction(chain, actionType, txHash string, costUSD float64) {
	n.Send(fmt.Sprintf(
		"🌱 <b>%s</b> on %s\nTx: <code>%s</code>\nGas: $%.3f",
		actionType, chain, txHash, costUSD))
}

// FarmReport sends the daily farming summary
func (n *Notifier) FarmReport(day time.Time, actions int, gasUSD, remainingUSD float64, chains []string) {
	n.Send(fmt.Sprintf(
		"🗓 <b>Farm report %s</b>\nActions: %d\nGas spent: $%.3f\nBudget left: $%.2f\nChains: %s",
		day.Format("2006-01-02"), actions, gasUSD, remainingUSD, strings.Join(chains, ", ")))
}

func closeReasonLabel(reason string) string {
	switch reason {
	case "tp":
		return "take profit"
	case "sl":
		return "stop loss"
	case "trailing_stop":
		return "trailing stop"
	case "partial_tp":
		return "partial take profit"
	case "manual":
		return "manual"
	default:
		return reason
	}
}

func formatPrice(p float64) string {
	switch {
	case p >= 1000:
		return fmt.Sprintf("$%.0f", p)
	case p >= 1:
		return fmt.Sprintf("$%.2f", p)
	default:
		return fmt.Sprintf("$%.4f", p)
	}
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.6f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
