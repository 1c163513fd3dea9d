package adapter

import (
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

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	store := statefile.NewStore(filepath.Join(t.TempDir(), "strategy_state.json"))
	a, err := New(store, 2, zerolog.Nop())
	require.NoError(t, err)
	return a
}

func TestShouldAdaptFirstRun(t *testing.T) {
	a := newTestAdapter(t)
	assert.False(t, a.ShouldAdapt(4))
	assert.True(t, a.ShouldAdapt(5))
}

func TestShouldAdaptBatchAndTrickle(t *testing.T) {
	a := newTestAdapter(t)
	_, err := a.Adapt(tracker.Stats{WinRate: 50}, 10)
	require.NoError(t, err)

	assert.False(t, a.ShouldAdapt(10), "no new trades")
	assert.False(t, a.ShouldAdapt(29), "19 new trades, under the batch size")
	assert.True(t, a.ShouldAdapt(30), "20 new trades")

	// A trickle only counts after the time gate
	a.state.LastRun = time.Now().Add(-7 * time.Hour)
	assert.True(t, a.ShouldAdapt(11))
	a.state.TradesAtLastRun = 11
	assert.False(t, a.ShouldAdapt(11), "elapsed time alone is not enough")
}

func TestThresholdMovesWithinBand(t *testing.T) {
	a := newTestAdapter(t)

	changes, err := a.Adapt(tracker.Stats{WinRate: 30, Total: 20}, 20)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, 3, a.Threshold())

	_, err = a.Adapt(tracker.Stats{WinRate: 30, Total: 20}, 40)
	require.NoError(t, err)
	assert.Equal(t, 4, a.Threshold())

	// Capped at 4
	changes, err = a.Adapt(tracker.Stats{WinRate: 30, Total: 20}, 60)
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, 4, a.Threshold())

	// Strong performance walks it back down, floored at 2
	for i := 0; i < 4; i++ {
		_, err = a.Adapt(tracker.Stats{WinRate: 70, Total: 20}, 80+i*20)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, a.Threshold())
}

func TestSignalWeightDrift(t *testing.T) {
	a := newTestAdapter(t)

	stats := tracker.Stats{
		WinRate: 50,
		PerSignal: map[string]tracker.SignalStats{
			signal.KeyRSIOversold:   {Activations: 10, Wins: 2}, // 20% -> decay
			signal.KeyBookImbalance: {Activations: 10, Wins: 8}, // 80% -> boost
			signal.KeyMomentum:      {Activations: 2, Wins: 0},  // too few
		},
	}

	changes, err := a.Adapt(stats, 20)
	require.NoError(t, err)
	assert.Len(t, changes, 2)
	assert.InDelta(t, 0.7, a.Weight(signal.KeyRSIOversold), 1e-9)
	assert.InDelta(t, 1.3, a.Weight(signal.KeyBookImbalance), 1e-9)
	assert.Equal(t, 1.0, a.Weight(signal.KeyMomentum), "below activation minimum stays untouched")
}

func TestSignalWeightBounds(t *testing.T) {
	a := newTestAdapter(t)
	stats := tracker.Stats{
		WinRate: 50,
		PerSignal: map[string]tracker.SignalStats{
			signal.KeyMomentum: {Activations: 10, Wins: 1},
		},
	}

	for i := 0; i < 6; i++ {
		_, err := a.Adapt(stats, 20*(i+1))
		require.NoError(t, err)
	}
	assert.InDelta(t, 0.5, a.Weight(signal.KeyMomentum), 1e-9, "weight floors at 0.5")
}

func TestAssetBlockingAndExpiry(t *testing.T) {
	a := newTestAdapter(t)
	stats := tracker.Stats{
		WinRate: 50,
		PerAsset: map[string]tracker.AssetStats{
			"DOGE": {Trades: 6, Wins: 1},  // 16.7% -> block
			"BTC":  {Trades: 6, Wins: 4},  // fine
			"PEPE": {Trades: 3, Wins: 0},  // too few trades
		},
	}

	changes, err := a.Adapt(stats, 20)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.True(t, a.IsBlocked("DOGE"))
	assert.False(t, a.IsBlocked("BTC"))
	assert.False(t, a.IsBlocked("PEPE"))

	// An active block is not re-stamped
	changes, err = a.Adapt(stats, 40)
	require.NoError(t, err)
	assert.Empty(t, changes)

	// Expired blocks are pruned on lookup
	a.state.BlockedAssets["DOGE"] = time.Now().Add(-time.Minute)
	assert.False(t, a.IsBlocked("DOGE"))
}

func TestAdaptationLogCapped(t *testing.T) {
	a := newTestAdapter(t)

	for i := 0; i < 15; i++ {
		wr := 30.0
		if a.Threshold() == 4 {
			wr = 70.0 // keep the threshold oscillating so every pass logs
		}
		_, err := a.Adapt(tracker.Stats{WinRate: wr, Total: 20}, 20*(i+1))
		require.NoError(t, err)
	}
	assert.Len(t, a.Log(), 10)
}

func TestStatePersistsAcrossReload(t *testing.T) {
	store := statefile.NewStore(filepath.Join(t.TempDir(), "strategy_state.json"))
	a, err := New(store, 2, zerolog.Nop())
	require.NoError(t, err)

	_, err = a.Adapt(tracker.Stats{
		WinRate: 30,
		PerAsset: map[string]tracker.AssetStats{
			"DOGE": {Trades: 6, Wins: 0},
		},
	}, 20)
	require.NoError(t, err)

	a2, err := New(store, 2, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, a2.Threshold())
	assert.True(t, a2.IsBlocked("DOGE"))
	assert.False(t, a2.ShouldAdapt(20))
}

func TestOutOfBandThresholdResetsToDefault(t *testing.T) {
	dir := t.TempDir()
	store := statefile.NewStore(filepath.Join(dir, "strategy_state.json"))
	require.NoError(t, store.Save(map[string]interface{}{"score_threshold": 9}))

	a, err := New(store, 2, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, a.Threshold())
}
