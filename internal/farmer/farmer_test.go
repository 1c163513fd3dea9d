package farmer

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/hyperfarm/internal/config"
	"github.com/ajitpratap0/hyperfarm/internal/evm"
	"github.com/ajitpratap0/hyperfarm/internal/executor"
	"github.com/ajitpratap0/hyperfarm/internal/notify"
	"github.com/ajitpratap0/hyperfarm/internal/planner"
	"github.com/ajitpratap0/hyperfarm/internal/statefile"
	"github.com/ajitpratap0/hyperfarm/internal/wallet"
)

func TestFilterCandidates(t *testing.T) {
	in := []Candidate{
		{Name: "Alpha", Chain: "base", TVLUSD: 5e6},
		{Name: "alpha", Chain: "base"},                          // dup, case-insensitive
		{Name: "Beta", Chain: "base", KYCRequired: true},        // kyc
		{Name: "Gamma", Chain: "base", Cost: "capital needed"},  // gated
		{Name: "Delta", Chain: "solana"},                        // unsupported chain
		{Name: "Epsilon", Chain: "arbitrum", TokenRank: 50},     // token well established
		{Name: "Zeta", Chain: "arbitrum", TokenRank: 300},       // token but obscure
		{Name: "Eta", Chain: "Optimism", TVLUSD: 9e6},           // chain name case
		{Name: ""},                                              // junk
	}

	out := filterCandidates(in)
	names := make([]string, 0, len(out))
	for _, c := range out {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"Alpha", "Zeta", "Eta"}, names)
	assert.Equal(t, "Eta", out[0].Name, "sorted by TVL descending")
}

func TestDiffCandidates(t *testing.T) {
	prev := []Candidate{{Name: "Alpha"}, {Name: "Beta"}}
	cur := []Candidate{{Name: "alpha"}, {Name: "Gamma"}}

	fresh := diffCandidates(prev, cur)
	require.Len(t, fresh, 1)
	assert.Equal(t, "Gamma", fresh[0].Name)
}

type stubResearch struct {
	reply string
	err   error
}

func (s *stubResearch) Completion(_ context.Context, _ string) (string, error) {
	return s.reply, s.err
}

func TestAirdropScan(t *testing.T) {
	llama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]llamaProtocol{
			{Name: "NoToken", Symbol: "-", TVL: 3e6, Chains: []string{"Base", "Ethereum"}},
			{Name: "SmallFry", Symbol: "-", TVL: 5e5, Chains: []string{"Base"}},
			{Name: "HasToken", Symbol: "HT", TVL: 9e6, Chains: []string{"Base"}},
			{Name: "WrongChain", Symbol: "-", TVL: 2e6, Chains: []string{"Solana"}},
		})
	}))
	defer llama.Close()

	research := &stubResearch{reply: "Here you go:\n[{\"name\":\"Fresh\",\"chain\":\"base\",\"token_rank\":0}]"}
	store := statefile.NewStore(filepath.Join(t.TempDir(), "airdrop_report.json"))

	m := NewAirdropMonitor(research, store, zerolog.Nop())
	m.llamaURL = llama.URL

	report, fresh, err := m.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalFound)
	assert.Len(t, fresh, 2, "everything is new on the first scan")

	// Second scan: nothing new
	_, fresh, err = m.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fresh)
}

func TestAirdropScanSurvivesLlamaOutage(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	research := &stubResearch{reply: `[{"name":"OnlyResearch","chain":"base"}]`}
	store := statefile.NewStore(filepath.Join(t.TempDir(), "airdrop_report.json"))
	m := NewAirdropMonitor(research, store, zerolog.Nop())
	m.llamaURL = down.URL

	report, _, err := m.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalFound)
}

func newTestOrchestrator(t *testing.T, now time.Time) (*Orchestrator, *planner.Planner) {
	t.Helper()
	dir := t.TempDir()

	budget := evm.NewBudgetTracker(2.00, 0.25)
	cfg := config.FarmingConfig{
		BudgetUSD: 2.00, GasReservePct: 0.25, DailyGasUSD: 0.75,
		CampaignStart: "2025-06-01", CampaignDays: 60,
		DailyMaxActions: 5, WeekendFactor: 0.5,
		ActiveHourStart: 8, ActiveHourEnd: 23, ETHPriceUSD: 2700,
		DryRun: true,
	}

	pl, err := planner.New(statefile.NewStore(filepath.Join(dir, "farm_schedule.json")), cfg, budget, zerolog.Nop())
	require.NoError(t, err)

	vault, err := wallet.Open(statefile.NewSecretStore(filepath.Join(dir, "farming_wallets.json")), zerolog.Nop())
	require.NoError(t, err)
	_, err = vault.ImportPrimary("0x4646464646464646464646464646464646464646464646464646464646464646")
	require.NoError(t, err)

	o, err := NewOrchestrator(
		statefile.NewStore(filepath.Join(dir, "farm_state.json")),
		cfg,
		Deps{
			Planner:  pl,
			Executor: executor.New(nil, 2700, true, zerolog.Nop()),
			Vault:    vault,
			Notifier: notify.New(config.TelegramConfig{}, zerolog.Nop()),
			Budget:   budget,
		},
		zerolog.Nop(),
	)
	require.NoError(t, err)

	o.rng = rand.New(rand.NewSource(1))
	o.now = func() time.Time { return now }
	o.sleep = func(context.Context, time.Duration) error { return nil }
	return o, pl
}

func TestRunOnceExecutesDueActions(t *testing.T) {
	morning := time.Date(2025, 6, 3, 7, 0, 0, 0, time.UTC)
	o, pl := newTestOrchestrator(t, morning)
	setPlannerClock(pl, morning)

	plan, err := pl.PlanForToday()
	require.NoError(t, err)

	// Move past every slot so the whole day is due
	endOfDay := time.Date(2025, 6, 3, 23, 30, 0, 0, time.UTC)
	o.now = func() time.Time { return endOfDay }
	setPlannerClock(pl, endOfDay)

	require.NoError(t, o.RunOnce(context.Background()))

	assert.Equal(t, len(plan), o.state.TotalActions)
	assert.Len(t, o.state.ActionsLog, len(plan))
	for _, r := range o.state.ActionsLog {
		assert.Contains(t, r.TxHash, "dry_run_")
	}
	assert.Empty(t, pl.Due(), "executed actions are marked done")

	// Outcome metadata lands on the schedule entries themselves
	after, err := pl.PlanForToday()
	require.NoError(t, err)
	for _, a := range after {
		assert.True(t, a.Done)
		assert.Contains(t, a.TxHash, "dry_run_")
		assert.False(t, a.ExecutedAt.IsZero())
	}
}

func TestRunOncePersistsState(t *testing.T) {
	morning := time.Date(2025, 6, 3, 7, 0, 0, 0, time.UTC)
	o, pl := newTestOrchestrator(t, morning)
	setPlannerClock(pl, morning)

	require.NoError(t, o.RunOnce(context.Background()))

	var onDisk farmState
	require.NoError(t, o.store.Load(&onDisk))
	assert.False(t, onDisk.StartedAt.IsZero())
}

func TestStatusCountsPending(t *testing.T) {
	morning := time.Date(2025, 6, 3, 7, 0, 0, 0, time.UTC)
	o, pl := newTestOrchestrator(t, morning)
	setPlannerClock(pl, morning)

	_, err := pl.PlanForToday()
	require.NoError(t, err)

	s := o.Status()
	assert.Positive(t, s.PendingToday)
	assert.InDelta(t, 1.50, s.BudgetLeftUSD, 1e-9)
}

// setPlannerClock pins the planner's clock in tests
func setPlannerClock(pl *planner.Planner, now time.Time) {
	pl.Clock = func() time.Time { return now }
}
