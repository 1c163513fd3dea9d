package optimizer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/hyperfarm/internal/signal"
	"github.com/ajitpratap0/hyperfarm/internal/statefile"
	"github.com/ajitpratap0/hyperfarm/internal/tracker"
)

type stubAnalyst struct {
	reply string
	err   error
	calls int
}

func (s *stubAnalyst) Completion(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.reply, s.err
}

func newTestOptimizer(t *testing.T, analyst Analyst) *Optimizer {
	t.Helper()
	dir := t.TempDir()
	o, err := New(
		statefile.NewStore(filepath.Join(dir, "optimizer_state.json")),
		statefile.NewStore(filepath.Join(dir, "trade_history.json")),
		analyst,
		zerolog.Nop(),
	)
	require.NoError(t, err)
	return o
}

func TestParseRegimeScore(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"Markets look weak.\nREGIME_SCORE: -0.6", -0.6},
		{"regime_score: 0.35", 0.35},
		{"REGIME_SCORE:   +0.5 trailing text", 0.5},
		{"REGIME_SCORE: 7.0", 1.0},
		{"REGIME_SCORE: -3", -1.0},
		{"no score anywhere", 0},
		// The restated score at the end of the answer wins
		{"REGIME_SCORE: 0.2 on momentum alone.\nRevised: REGIME_SCORE: -0.4", -0.4},
		{"REGIME_SCORE: 0.9\nREGIME_SCORE: 0.1\nREGIME_SCORE: 0.6", 0.6},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, parseRegimeScore(tt.text), 1e-9, "%q", tt.text)
	}
}

func TestClassifyRegime(t *testing.T) {
	tests := []struct {
		score float64
		want  Regime
	}{
		{-0.9, RegimeStrongBear},
		{-0.5, RegimeStrongBear},
		{-0.3, RegimeMildBear},
		{-0.2, RegimeMildBear},
		{-0.1, RegimeRanging},
		{0, RegimeRanging},
		{0.19, RegimeRanging},
		{0.2, RegimeMildBull},
		{0.5, RegimeStrongBull},
		{1.0, RegimeStrongBull},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyRegime(tt.score), "score %v", tt.score)
	}
}

func TestOptimizeAppliesRegimeAdjustments(t *testing.T) {
	o := newTestOptimizer(t, &stubAnalyst{reply: "Bearish breakdown.\nREGIME_SCORE: -0.7"})

	res, err := o.Optimize(context.Background(), []string{"BTC", "ETH"}, tracker.Stats{WinRate: 55})
	require.NoError(t, err)

	assert.Equal(t, RegimeStrongBear, res.Regime)
	assert.Equal(t, Adjustments{SLMult: 0.8, TPMult: 1.2, LongThreshold: 3, ShortThreshold: 2}, res.Adjustments)
	assert.Equal(t, RegimeStrongBear, o.Regime())
	assert.Equal(t, res.Adjustments, o.Adjustments())
}

func TestOptimizeRemovesWorstLoser(t *testing.T) {
	o := newTestOptimizer(t, &stubAnalyst{reply: "REGIME_SCORE: 0.0"})

	stats := tracker.Stats{
		PerAsset: map[string]tracker.AssetStats{
			"DOGE": {Trades: 6, TotalPnL: -2.5},
			"PEPE": {Trades: 8, TotalPnL: -4.0}, // worst
			"BTC":  {Trades: 10, TotalPnL: 3.0},
			"SOL":  {Trades: 2, TotalPnL: -9.0}, // too few trades
		},
	}
	res, err := o.Optimize(context.Background(), []string{"BTC", "DOGE", "PEPE", "SOL"}, stats)
	require.NoError(t, err)
	assert.Equal(t, "PEPE", res.RemovedAsset)
}

func TestOptimizeNoRemovalAboveFloor(t *testing.T) {
	o := newTestOptimizer(t, &stubAnalyst{reply: "REGIME_SCORE: 0.0"})

	stats := tracker.Stats{
		PerAsset: map[string]tracker.AssetStats{
			"BTC": {Trades: 10, TotalPnL: -0.8},
		},
	}
	res, err := o.Optimize(context.Background(), []string{"BTC"}, stats)
	require.NoError(t, err)
	assert.Empty(t, res.RemovedAsset)
}

func TestShouldOptimizeInterval(t *testing.T) {
	stub := &stubAnalyst{reply: "REGIME_SCORE: 0.0"}
	o := newTestOptimizer(t, stub)
	assert.True(t, o.ShouldOptimize(), "fresh state optimizes immediately")

	_, err := o.Optimize(context.Background(), nil, tracker.Stats{})
	require.NoError(t, err)
	assert.False(t, o.ShouldOptimize())

	o.state.LastRun = time.Now().Add(-6 * time.Hour)
	assert.True(t, o.ShouldOptimize())
}

func TestAnalystFailureStampsPass(t *testing.T) {
	o := newTestOptimizer(t, &stubAnalyst{err: errors.New("upstream 500")})

	_, err := o.Optimize(context.Background(), nil, tracker.Stats{})
	require.Error(t, err)
	assert.False(t, o.ShouldOptimize(), "failed pass still counts against the interval")
	assert.Equal(t, RegimeRanging, o.Regime(), "regime unchanged on failure")
}

func TestLogTradePersistsAndCaps(t *testing.T) {
	dir := t.TempDir()
	stateStore := statefile.NewStore(filepath.Join(dir, "optimizer_state.json"))
	historyStore := statefile.NewStore(filepath.Join(dir, "trade_history.json"))

	o, err := New(stateStore, historyStore, &stubAnalyst{reply: "REGIME_SCORE: 0"}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, o.LogTrade("BTC", signal.Long, 120))

	o2, err := New(stateStore, historyStore, &stubAnalyst{}, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, o2.history.Entries, 1)
	assert.Equal(t, "BTC", o2.history.Entries[0].Asset)
	assert.Equal(t, RegimeRanging, o2.history.Entries[0].Regime)
}

func TestSnapshotsCapped(t *testing.T) {
	o := newTestOptimizer(t, &stubAnalyst{reply: "REGIME_SCORE: 0.3"})
	for i := 0; i < maxSnapshots+10; i++ {
		_, err := o.Optimize(context.Background(), nil, tracker.Stats{})
		require.NoError(t, err)
	}
	assert.Len(t, o.state.Snapshots, maxSnapshots)
}

func TestStatePersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	stateStore := statefile.NewStore(filepath.Join(dir, "optimizer_state.json"))
	historyStore := statefile.NewStore(filepath.Join(dir, "trade_history.json"))

	o, err := New(stateStore, historyStore, &stubAnalyst{reply: "REGIME_SCORE: 0.8"}, zerolog.Nop())
	require.NoError(t, err)
	_, err = o.Optimize(context.Background(), nil, tracker.Stats{})
	require.NoError(t, err)

	o2, err := New(stateStore, historyStore, &stubAnalyst{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, RegimeStrongBull, o2.Regime())
	assert.False(t, o2.ShouldOptimize())
}
