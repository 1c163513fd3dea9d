package planner

import (
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/hyperfarm/internal/config"
	"github.com/ajitpratap0/hyperfarm/internal/evm"
	"github.com/ajitpratap0/hyperfarm/internal/statefile"
)

func testConfig() config.FarmingConfig {
	return config.FarmingConfig{
		BudgetUSD:       2.00,
		GasReservePct:   0.25,
		DailyGasUSD:     0.75,
		CampaignStart:   "2025-06-01",
		CampaignDays:    60,
		DailyMaxActions: 5,
		WeekendFactor:   0.5,
		ActiveHourStart: 8,
		ActiveHourEnd:   23,
		ETHPriceUSD:     2700,
	}
}

func newTestPlanner(t *testing.T, now time.Time) *Planner {
	t.Helper()
	store := statefile.NewStore(filepath.Join(t.TempDir(), "farm_schedule.json"))
	p, err := New(store, testConfig(), evm.NewBudgetTracker(2.00, 0.25), zerolog.Nop())
	require.NoError(t, err)
	p.rng = rand.New(rand.NewSource(1))
	p.Clock = func() time.Time { return now }
	return p
}

// A Tuesday morning inside the campaign
var weekdayMorning = time.Date(2025, 6, 3, 7, 0, 0, 0, time.UTC)

func TestPlanShapeAndOrdering(t *testing.T) {
	p := newTestPlanner(t, weekdayMorning)

	actions, err := p.PlanForToday()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(actions), 2)
	assert.LessOrEqual(t, len(actions), 5)

	dayEnd := time.Date(2025, 6, 3, 23, 0, 0, 0, time.UTC)
	for i, a := range actions {
		assert.Equal(t, "a"+string(rune('1'+i))+"_0603", a.ID)
		assert.True(t, a.At.After(weekdayMorning), "slots start after now")
		assert.True(t, a.At.Before(dayEnd), "slots stay inside active hours")
		if i > 0 {
			assert.True(t, a.At.After(actions[i-1].At), "slots are strictly ordered")
			assert.NotEqual(t, actions[i-1].Type, a.Type, "no back-to-back repeat")
		}
		assert.GreaterOrEqual(t, a.AmountUSD, 0.10)
		assert.LessOrEqual(t, a.AmountUSD, 0.50)
		assert.NotEmpty(t, a.Chain)
	}
}

func TestPlanReusedWithinDay(t *testing.T) {
	p := newTestPlanner(t, weekdayMorning)

	first, err := p.PlanForToday()
	require.NoError(t, err)
	second, err := p.PlanForToday()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWeekendReduction(t *testing.T) {
	// 2025-06-07 is a Saturday
	saturday := time.Date(2025, 6, 7, 7, 0, 0, 0, time.UTC)

	for seed := int64(0); seed < 20; seed++ {
		p := newTestPlanner(t, saturday)
		p.rng = rand.New(rand.NewSource(seed))
		actions, err := p.PlanForToday()
		require.NoError(t, err)
		assert.LessOrEqual(t, len(actions), 2, "weekend cap is half of 5, floored")
	}
}

func TestLateStartSqueezesPlan(t *testing.T) {
	lateEvening := time.Date(2025, 6, 3, 21, 45, 0, 0, time.UTC)
	p := newTestPlanner(t, lateEvening)

	actions, err := p.PlanForToday()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(actions), 2)
}

func TestLateDaySlotsStrictlyIncreasing(t *testing.T) {
	// Planning minutes before the window closes forces every slot
	// against the end-of-day clamp
	lateEvening := time.Date(2025, 6, 3, 22, 45, 0, 0, time.UTC)

	for seed := int64(0); seed < 200; seed++ {
		p := newTestPlanner(t, lateEvening)
		p.rng = rand.New(rand.NewSource(seed))

		actions, err := p.PlanForToday()
		require.NoError(t, err)
		for i := 1; i < len(actions); i++ {
			assert.True(t, actions[i].At.After(actions[i-1].At),
				"seed %d: action %d at %s not after action %d at %s",
				seed, i, actions[i].At, i-1, actions[i-1].At)
		}
	}
}

func TestDueAndMarkDone(t *testing.T) {
	p := newTestPlanner(t, weekdayMorning)
	actions, err := p.PlanForToday()
	require.NoError(t, err)

	assert.Empty(t, p.Due(), "nothing due at plan time")

	// Jump past the first slot
	p.Clock = func() time.Time { return actions[0].At.Add(time.Minute) }
	due := p.Due()
	require.Len(t, due, 1)
	assert.Equal(t, actions[0].ID, due[0].ID)

	require.NoError(t, p.MarkDone(due[0].ID, "0xdead"))
	assert.Empty(t, p.Due())

	plan, err := p.PlanForToday()
	require.NoError(t, err)
	assert.Equal(t, "0xdead", plan[0].TxHash)
	assert.False(t, plan[0].ExecutedAt.IsZero(), "execution time recorded on the entry")

	next, ok := p.NextAt()
	require.True(t, ok)
	assert.Equal(t, actions[1].At, next)

	assert.Error(t, p.MarkDone("nope", ""))
	assert.Error(t, p.MarkFailed("nope", "boom"))
}

func TestMarkFailedKeepsActionPending(t *testing.T) {
	p := newTestPlanner(t, weekdayMorning)
	actions, err := p.PlanForToday()
	require.NoError(t, err)

	require.NoError(t, p.MarkFailed(actions[0].ID, "rpc timeout"))

	p.Clock = func() time.Time { return actions[0].At.Add(time.Minute) }
	due := p.Due()
	require.Len(t, due, 1)
	assert.False(t, due[0].Done)
	assert.Equal(t, "rpc timeout", due[0].LastError)
}

func TestNewDayRollsHistory(t *testing.T) {
	store := statefile.NewStore(filepath.Join(t.TempDir(), "farm_schedule.json"))
	p, err := New(store, testConfig(), nil, zerolog.Nop())
	require.NoError(t, err)
	p.rng = rand.New(rand.NewSource(1))

	p.Clock = func() time.Time { return weekdayMorning }
	actions, err := p.PlanForToday()
	require.NoError(t, err)
	require.NoError(t, p.MarkDone(actions[0].ID, "0xabc"))

	p.Clock = func() time.Time { return weekdayMorning.Add(24 * time.Hour) }
	_, err = p.PlanForToday()
	require.NoError(t, err)

	hist := p.History()
	require.Len(t, hist, 1)
	assert.Equal(t, "2025-06-03", hist[0].Date)
	assert.Equal(t, len(actions), hist[0].Planned)
	assert.Equal(t, 1, hist[0].Completed)
}

func TestHistoryCappedAtSevenDays(t *testing.T) {
	store := statefile.NewStore(filepath.Join(t.TempDir(), "farm_schedule.json"))
	p, err := New(store, testConfig(), nil, zerolog.Nop())
	require.NoError(t, err)
	p.rng = rand.New(rand.NewSource(1))

	for day := 0; day < 10; day++ {
		d := day
		p.Clock = func() time.Time { return weekdayMorning.Add(time.Duration(d) * 24 * time.Hour) }
		_, err := p.PlanForToday()
		require.NoError(t, err)
	}
	assert.Len(t, p.History(), historyDays)
}

func TestPlanSurvivesRestart(t *testing.T) {
	store := statefile.NewStore(filepath.Join(t.TempDir(), "farm_schedule.json"))
	p, err := New(store, testConfig(), nil, zerolog.Nop())
	require.NoError(t, err)
	p.rng = rand.New(rand.NewSource(1))
	p.Clock = func() time.Time { return weekdayMorning }

	first, err := p.PlanForToday()
	require.NoError(t, err)

	p2, err := New(store, testConfig(), nil, zerolog.Nop())
	require.NoError(t, err)
	p2.Clock = func() time.Time { return weekdayMorning.Add(time.Hour) }
	again, err := p2.PlanForToday()
	require.NoError(t, err)
	assert.Equal(t, first, again, "restart mid-day keeps the same plan")
}
