package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/hyperfarm/internal/config"
)

// fakeTelegram implements just enough of the Bot API for the notifier:
// getMe during init and sendMessage afterwards.
type fakeTelegram struct {
	srv      *httptest.Server
	messages []url.Values
	fail     bool
}

func newFakeTelegram(t *testing.T) *fakeTelegram {
	t.Helper()
	f := &fakeTelegram{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"ok":     true,
				"result": map[string]interface{}{"id": 1, "is_bot": true, "username": "testbot"},
			})
			return
		}
		if f.fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		require.NoError(t, r.ParseForm())
		f.messages = append(f.messages, r.Form)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":     true,
			"result": map[string]interface{}{"message_id": len(f.messages)},
		})
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeTelegram) notifier(t *testing.T) *Notifier {
	t.Helper()
	n := NewWithEndpoint(
		config.TelegramConfig{BotToken: "123:abc", ChatID: 42, Enabled: true},
		f.srv.URL+"/bot%s/%s",
		zerolog.Nop(),
	)
	require.True(t, n.Enabled())
	return n
}

func (f *fakeTelegram) last() url.Values {
	return f.messages[len(f.messages)-1]
}

func TestDisabledConfigurationsAreNoOps(t *testing.T) {
	n := New(config.TelegramConfig{}, zerolog.Nop())
	assert.False(t, n.Enabled())
	n.Send("should not panic")

	n = New(config.TelegramConfig{Enabled: true}, zerolog.Nop())
	assert.False(t, n.Enabled(), "enabled without a token stays off")

	var nilNotifier *Notifier
	assert.False(t, nilNotifier.Enabled())
	nilNotifier.Alert("title", "body")
}

func TestSendUsesHTMLAndChatID(t *testing.T) {
	f := newFakeTelegram(t)
	n := f.notifier(t)

	n.Send("<b>hello</b>")
	require.Len(t, f.messages, 1)
	msg := f.last()
	assert.Equal(t, "42", msg.Get("chat_id"))
	assert.Equal(t, "HTML", msg.Get("parse_mode"))
	assert.Equal(t, "<b>hello</b>", msg.Get("text"))
}

func TestTradeOpenedFormatting(t *testing.T) {
	f := newFakeTelegram(t)
	n := f.notifier(t)

	n.TradeOpened("BTC", "SHORT", 67000, 0.0015, 100.5, 5, 64990, 68005)
	text := f.last().Get("text")
	assert.Contains(t, text, "🔴")
	assert.Contains(t, text, "SHORT BTC")
	assert.Contains(t, text, "$67000")
	assert.Contains(t, text, "0.0015")
	assert.Contains(t, text, "5x")
}

func TestTradeClosedReasonLabels(t *testing.T) {
	f := newFakeTelegram(t)
	n := f.notifier(t)

	n.TradeClosed("ETH", "trailing_stop", 3.2, 8.0)
	text := f.last().Get("text")
	assert.Contains(t, text, "✅")
	assert.Contains(t, text, "trailing stop")
	assert.Contains(t, text, "+8.00%")

	n.TradeClosed("ETH", "sl", -1.5, -3.75)
	text = f.last().Get("text")
	assert.Contains(t, text, "❌")
	assert.Contains(t, text, "stop loss")
}

func TestFarmReportFormatting(t *testing.T) {
	f := newFakeTelegram(t)
	n := f.notifier(t)

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	n.FarmReport(day, 4, 0.61, 0.89, []string{"base", "arbitrum"})
	text := f.last().Get("text")
	assert.Contains(t, text, "2025-06-01")
	assert.Contains(t, text, "base, arbitrum")
}

func TestSendFailureIsSwallowed(t *testing.T) {
	f := newFakeTelegram(t)
	n := f.notifier(t)

	f.fail = true
	n.Alert("drawdown", "paused at 25%") // must not panic or block
	assert.Empty(t, f.messages)
}
