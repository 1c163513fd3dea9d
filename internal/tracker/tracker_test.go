package tracker

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/hyperfarm/internal/signal"
	"github.com/ajitpratap0/hyperfarm/internal/statefile"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	store := statefile.NewStore(filepath.Join(t.TempDir(), "trades_history.json"))
	tr, err := New(store, zerolog.Nop())
	require.NoError(t, err)
	return tr
}

func TestLogEntryPersists(t *testing.T) {
	store := statefile.NewStore(filepath.Join(t.TempDir(), "trades_history.json"))
	tr, err := New(store, zerolog.Nop())
	require.NoError(t, err)

	id, err := tr.LogEntry("BTC", signal.Long, 67000, 0.01, 5, 69010, 65995, []string{signal.KeyRSIOversold})
	require.NoError(t, err)
	assert.Contains(t, id, "BTC_")

	// Reload from disk
	tr2, err := New(store, zerolog.Nop())
	require.NoError(t, err)
	open := tr2.OpenTrades()
	require.Len(t, open, 1)
	assert.Equal(t, "BTC", open[0].Asset)
	assert.Equal(t, signal.Long, open[0].Direction)
}

func TestDetectClosedLongProfit(t *testing.T) {
	tr := newTestTracker(t)
	_, err := tr.LogEntry("ETH", signal.Long, 100, 2, 5, 103.5, 98.2, nil)
	require.NoError(t, err)

	fills := []Fill{{Asset: "ETH", Price: 103.5, Time: time.Now().Add(time.Minute)}}
	closed, err := tr.DetectClosed(map[string]bool{}, fills)
	require.NoError(t, err)
	require.Len(t, closed, 1)

	got := closed[0]
	assert.InDelta(t, 7.0, got.PnL, 1e-9) // (103.5-100)*2
	// margin = 100*2/5 = 40 -> pnl_pct = 7/40*100 = 17.5
	assert.InDelta(t, 17.5, got.PnLPct, 1e-9)
	assert.Equal(t, "tp", got.ExitReason)
	assert.Empty(t, tr.OpenTrades())
}

func TestDetectClosedAwayFromBandsIsManual(t *testing.T) {
	tr := newTestTracker(t)
	_, err := tr.LogEntry("SOL", signal.Short, 100, 1, 3, 96, 104, nil)
	require.NoError(t, err)

	// Exit far above entry and well away from either band
	fills := []Fill{{Asset: "SOL", Price: 110, Time: time.Now().Add(time.Minute)}}
	closed, err := tr.DetectClosed(map[string]bool{}, fills)
	require.NoError(t, err)
	require.Len(t, closed, 1)

	assert.InDelta(t, -10.0, closed[0].PnL, 1e-9)
	assert.Equal(t, "manual", closed[0].ExitReason, "a fill outside both bands is never coerced to tp or sl")
}

func TestDetectClosedMidRangeProfitIsManual(t *testing.T) {
	tr := newTestTracker(t)
	_, err := tr.LogEntry("ETH", signal.Long, 100, 1, 3, 104, 98, nil)
	require.NoError(t, err)

	// Profitable, but halfway between entry and the tp band
	fills := []Fill{{Asset: "ETH", Price: 102, Time: time.Now().Add(time.Minute)}}
	closed, err := tr.DetectClosed(map[string]bool{}, fills)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "manual", closed[0].ExitReason)
}

func TestDetectClosedNearBandTolerance(t *testing.T) {
	tr := newTestTracker(t)
	_, err := tr.LogEntry("BTC", signal.Long, 100, 1, 3, 103, 98.5, nil)
	require.NoError(t, err)

	// 98.6 is within 0.5% of the 98.5 stop band
	fills := []Fill{{Asset: "BTC", Price: 98.6, Time: time.Now().Add(time.Minute)}}
	closed, err := tr.DetectClosed(map[string]bool{}, fills)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "sl", closed[0].ExitReason)
}

func TestDetectClosedSkipsOpenPositionsAndMissingFills(t *testing.T) {
	tr := newTestTracker(t)
	_, err := tr.LogEntry("BTC", signal.Long, 100, 1, 3, 103, 98.5, nil)
	require.NoError(t, err)
	_, err = tr.LogEntry("ETH", signal.Long, 100, 1, 3, 103, 98.5, nil)
	require.NoError(t, err)

	// BTC still open on the venue; ETH closed but no fill visible yet
	closed, err := tr.DetectClosed(map[string]bool{"BTC": true}, nil)
	require.NoError(t, err)
	assert.Empty(t, closed)
	assert.Len(t, tr.OpenTrades(), 2)
}

func TestDetectClosedUsesLatestFill(t *testing.T) {
	tr := newTestTracker(t)
	_, err := tr.LogEntry("BTC", signal.Long, 100, 1, 3, 103, 98.5, nil)
	require.NoError(t, err)

	now := time.Now()
	fills := []Fill{
		{Asset: "BTC", Price: 101, Time: now.Add(time.Minute)},
		{Asset: "BTC", Price: 102, Time: now.Add(2 * time.Minute)},
		{Asset: "ETH", Price: 999, Time: now.Add(3 * time.Minute)},
		{Asset: "BTC", Price: 50, Time: now.Add(-time.Hour)}, // before entry
	}
	closed, err := tr.DetectClosed(map[string]bool{}, fills)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, 102.0, closed[0].ExitPrice)
}

func closeTrade(t *testing.T, tr *Tracker, asset string, dir signal.Direction, entry, exit, size float64, signals []string) {
	t.Helper()
	_, err := tr.LogEntry(asset, dir, entry, size, 5, 0, 0, signals)
	require.NoError(t, err)
	_, err = tr.DetectClosed(map[string]bool{}, []Fill{{Asset: asset, Price: exit, Time: time.Now().Add(time.Second)}})
	require.NoError(t, err)
}

func TestStats(t *testing.T) {
	tr := newTestTracker(t)

	closeTrade(t, tr, "BTC", signal.Long, 100, 110, 1, []string{signal.KeyRSIOversold})  // +10
	closeTrade(t, tr, "BTC", signal.Long, 100, 95, 1, []string{signal.KeyRSIOversold})   // -5
	closeTrade(t, tr, "ETH", signal.Short, 100, 90, 2, []string{signal.KeyAboveUpperBB}) // +20

	s := tr.Stats(0)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 66.67, s.WinRate, 0.01)
	assert.InDelta(t, 25.0, s.TotalPnL, 1e-9)
	assert.InDelta(t, 15.0, s.AvgWin, 1e-9)
	assert.InDelta(t, -5.0, s.AvgLoss, 1e-9)
	assert.InDelta(t, 6.0, s.ProfitFactor, 1e-9)
	assert.InDelta(t, 20.0, s.BestTrade, 1e-9)
	assert.InDelta(t, -5.0, s.WorstTrade, 1e-9)

	assert.Equal(t, 2, s.PerAsset["BTC"].Trades)
	assert.Equal(t, 1, s.PerAsset["BTC"].Wins)
	assert.Equal(t, 2, s.PerSignal[signal.KeyRSIOversold].Activations)
	assert.InDelta(t, 50.0, s.PerSignal[signal.KeyRSIOversold].WinRate(), 1e-9)
}

func TestStatsLastN(t *testing.T) {
	tr := newTestTracker(t)
	closeTrade(t, tr, "BTC", signal.Long, 100, 110, 1, nil) // +10
	closeTrade(t, tr, "BTC", signal.Long, 100, 90, 1, nil)  // -10
	closeTrade(t, tr, "BTC", signal.Long, 100, 105, 1, nil) // +5

	s := tr.Stats(2)
	assert.Equal(t, 2, s.Total)
	assert.InDelta(t, -5.0, s.TotalPnL, 1e-9)
}

func TestStatsNoLossesProfitFactor(t *testing.T) {
	tr := newTestTracker(t)
	closeTrade(t, tr, "BTC", signal.Long, 100, 110, 1, nil)

	s := tr.Stats(0)
	assert.True(t, math.IsInf(s.ProfitFactor, 1))
}
