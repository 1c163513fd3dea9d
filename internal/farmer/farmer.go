// Package farmer orchestrates the airdrop farming side: executing the
// daily plan on mainnet chains, cycling testnets, scanning for new
// opportunities and reporting it all to Telegram.
package farmer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/hyperfarm/internal/config"
	"github.com/ajitpratap0/hyperfarm/internal/evm"
	"github.com/ajitpratap0/hyperfarm/internal/executor"
	"github.com/ajitpratap0/hyperfarm/internal/metrics"
	"github.com/ajitpratap0/hyperfarm/internal/notify"
	"github.com/ajitpratap0/hyperfarm/internal/planner"
	"github.com/ajitpratap0/hyperfarm/internal/statefile"
	"github.com/ajitpratap0/hyperfarm/internal/wallet"
)

var errNoPrimaryWallet = errors.New("no primary wallet configured")

const (
	scanInterval   = 12 * time.Hour
	reportInterval = 24 * time.Hour

	// Testnet cycles fire after a random 2-8 hour gap
	testnetGapMinHours = 2
	testnetGapMaxHours = 8

	// Organic pause before each mainnet action
	actionDelayMinSec = 10
	actionDelayMaxSec = 120

	loopBaseSleep  = 30 * time.Minute
	loopMinSleep   = time.Minute
	errorSleep     = 10 * time.Minute
	maxActionsLogN = 100
)

// ActionRecord is one executed action in the rolling log
type ActionRecord struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Chain   string    `json:"chain"`
	TxHash  string    `json:"tx_hash"`
	CostUSD float64   `json:"cost_usd"`
	Time    time.Time `json:"time"`
}

type farmState struct {
	StartedAt          time.Time          `json:"started_at"`
	TotalActions       int                `json:"total_actions"`
	TotalGasSpentUSD   float64            `json:"total_gas_spent_usd"`
	ActionsLog         []ActionRecord     `json:"actions_log"`
	LastScan           time.Time          `json:"last_scan"`
	LastTestnetCycle   time.Time          `json:"last_testnet_cycle"`
	LastDailyReport    time.Time          `json:"last_daily_report"`
	TestnetTxnsByChain map[string]int     `json:"testnet_txns_by_chain"`
	TestnetTotalTxns   int                `json:"testnet_total_txns"`
	Budget             *evm.BudgetTracker `json:"budget"`
}

// Orchestrator owns farm_state.json and drives everything farming
type Orchestrator struct {
	cfg      config.FarmingConfig
	planner  *planner.Planner
	exec     *executor.Executor
	vault    *wallet.Vault
	monitor  *AirdropMonitor
	testnet  *TestnetFarmer
	notifier *notify.Notifier
	store    *statefile.Store
	state    farmState
	rng      *rand.Rand
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
	logger   zerolog.Logger
}

// Deps bundles the orchestrator's collaborators
type Deps struct {
	Planner  *planner.Planner
	Executor *executor.Executor
	Vault    *wallet.Vault
	Monitor  *AirdropMonitor
	Testnet  *TestnetFarmer
	Notifier *notify.Notifier
	Budget   *evm.BudgetTracker
}

// NewOrchestrator loads farm state and wires the collaborators
func NewOrchestrator(store *statefile.Store, cfg config.FarmingConfig, deps Deps, logger zerolog.Logger) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:      cfg,
		planner:  deps.Planner,
		exec:     deps.Executor,
		vault:    deps.Vault,
		monitor:  deps.Monitor,
		testnet:  deps.Testnet,
		notifier: deps.Notifier,
		store:    store,
		state: farmState{
			StartedAt:          time.Now(),
			TestnetTxnsByChain: make(map[string]int),
			Budget:             deps.Budget,
		},
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
		logger: logger,
	}
	o.sleep = func(ctx context.Context, d time.Duration) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			return nil
		}
	}

	if err := store.Load(&o.state); err != nil {
		return nil, fmt.Errorf("failed to load farm state: %w", err)
	}
	if o.state.TestnetTxnsByChain == nil {
		o.state.TestnetTxnsByChain = make(map[string]int)
	}

	logger.Info().
		Int("total_actions", o.state.TotalActions).
		Float64("gas_spent_usd", o.state.TotalGasSpentUSD).
		Msg("Farm orchestrator loaded")

	return o, nil
}

// RunOnce executes one orchestration pass: due mainnet actions, then the
// periodic testnet cycle, opportunity scan and daily report.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	if _, err := o.planner.PlanForToday(); err != nil {
		return fmt.Errorf("planning failed: %w", err)
	}

	if err := o.runDueActions(ctx); err != nil {
		return err
	}
	o.maybeTestnetCycle(ctx)
	o.maybeScan(ctx)
	o.maybeDailyReport()

	return o.store.Save(o.state)
}

func (o *Orchestrator) runDueActions(ctx context.Context) error {
	primary, ok := o.vault.Primary()
	if !ok {
		return errNoPrimaryWallet
	}

	for _, a := range o.planner.Due() {
		// Pause first so consecutive actions never land in the same block
		delay := time.Duration(actionDelayMinSec+o.rng.Intn(actionDelayMaxSec-actionDelayMinSec+1)) * time.Second
		if err := o.sleep(ctx, delay); err != nil {
			return err
		}

		res, err := o.exec.Execute(ctx, executor.Action{
			ID:        a.ID,
			Type:      a.Type,
			ChainKey:  a.Chain,
			Token:     a.Token,
			AmountUSD: a.AmountUSD,
		}, primary)
		if err != nil {
			// Leave the action pending; the next pass retries it
			o.logger.Error().
				Str("action_id", a.ID).
				Str("type", a.Type).
				Err(err).
				Msg("Farm action failed")
			if err := o.planner.MarkFailed(a.ID, err.Error()); err != nil {
				o.logger.Warn().Err(err).Msg("Failed to record action error")
			}
			return nil
		}

		txHash := ""
		if len(res.TxHashes) > 0 {
			txHash = res.TxHashes[len(res.TxHashes)-1]
		}
		if err := o.planner.MarkDone(a.ID, txHash); err != nil {
			o.logger.Warn().Err(err).Msg("Failed to mark action done")
		}
		o.state.TotalActions++
		o.state.TotalGasSpentUSD += res.CostUSD
		o.state.ActionsLog = append(o.state.ActionsLog, ActionRecord{
			ID:      a.ID,
			Type:    res.Executed,
			Chain:   a.Chain,
			TxHash:  txHash,
			CostUSD: res.CostUSD,
			Time:    o.now(),
		})
		if len(o.state.ActionsLog) > maxActionsLogN {
			o.state.ActionsLog = o.state.ActionsLog[len(o.state.ActionsLog)-maxActionsLogN:]
		}

		o.notifier.FarmAction(a.Chain, res.Executed, txHash, res.CostUSD)
		metrics.RecordFarmAction(a.Chain, res.Executed, res.CostUSD)
	}
	if o.state.Budget != nil {
		metrics.FarmBudgetLeft.Set(o.state.Budget.Spendable())
	}
	return nil
}

func (o *Orchestrator) maybeTestnetCycle(ctx context.Context) {
	if o.testnet == nil {
		return
	}
	gap := time.Duration(testnetGapMinHours+o.rng.Intn(testnetGapMaxHours-testnetGapMinHours+1)) * time.Hour
	if o.now().Sub(o.state.LastTestnetCycle) < gap {
		return
	}

	res, err := o.testnet.Cycle(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Testnet cycle failed")
		return
	}
	o.state.LastTestnetCycle = o.now()
	o.state.TestnetTotalTxns += res.TotalTxns
	for chain, n := range res.TxnsByChain {
		o.state.TestnetTxnsByChain[chain] += n
	}
}

func (o *Orchestrator) maybeScan(ctx context.Context) {
	if o.monitor == nil || o.now().Sub(o.state.LastScan) < scanInterval {
		return
	}

	_, fresh, err := o.monitor.Scan(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Airdrop scan failed")
		return
	}
	o.state.LastScan = o.now()

	for _, c := range fresh {
		o.notifier.Alert("New airdrop candidate",
			fmt.Sprintf("%s on %s (%s)", c.Name, c.Chain, c.Source))
	}
}

func (o *Orchestrator) maybeDailyReport() {
	if o.now().Sub(o.state.LastDailyReport) < reportInterval {
		return
	}
	o.state.LastDailyReport = o.now()

	actionsToday := 0
	cutoff := o.now().Add(-reportInterval)
	chains := make(map[string]bool)
	gasToday := 0.0
	for _, r := range o.state.ActionsLog {
		if r.Time.After(cutoff) {
			actionsToday++
			gasToday += r.CostUSD
			chains[r.Chain] = true
		}
	}

	remaining := 0.0
	if o.state.Budget != nil {
		remaining = o.state.Budget.Spendable()
	}
	o.notifier.FarmReport(o.now(), actionsToday, gasToday, remaining, mapKeys(chains))
}

// Loop runs orchestration passes until the context ends. Sleep length
// tracks the next planned action with jitter, and errors back off hard.
func (o *Orchestrator) Loop(ctx context.Context) error {
	for {
		if err := o.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Error().Err(err).Msg("Orchestration pass failed")
			if err := o.sleep(ctx, errorSleep); err != nil {
				return err
			}
			continue
		}

		d := loopBaseSleep
		if next, ok := o.planner.NextAt(); ok {
			if until := next.Sub(o.now()); until < d {
				d = until
			}
		}
		d += time.Duration(-60+o.rng.Intn(361)) * time.Second
		if d < loopMinSleep {
			d = loopMinSleep
		}

		o.logger.Debug().Dur("sleep", d).Msg("Orchestrator sleeping")
		if err := o.sleep(ctx, d); err != nil {
			return err
		}
	}
}

// Status is the operator-facing summary for the CLI
type Status struct {
	StartedAt        time.Time          `json:"started_at"`
	TotalActions     int                `json:"total_actions"`
	TotalGasSpentUSD float64            `json:"total_gas_spent_usd"`
	BudgetLeftUSD    float64            `json:"budget_left_usd"`
	LastScan         time.Time          `json:"last_scan"`
	LastTestnetCycle time.Time          `json:"last_testnet_cycle"`
	TestnetTotalTxns int                `json:"testnet_total_txns"`
	TestnetByChain   map[string]int     `json:"testnet_by_chain"`
	RecentActions    []ActionRecord     `json:"recent_actions"`
	PendingToday     int                `json:"pending_today"`
}

// Status reports the current farm state
func (o *Orchestrator) Status() Status {
	s := Status{
		StartedAt:        o.state.StartedAt,
		TotalActions:     o.state.TotalActions,
		TotalGasSpentUSD: o.state.TotalGasSpentUSD,
		LastScan:         o.state.LastScan,
		LastTestnetCycle: o.state.LastTestnetCycle,
		TestnetTotalTxns: o.state.TestnetTotalTxns,
		TestnetByChain:   o.state.TestnetTxnsByChain,
	}
	if o.state.Budget != nil {
		s.BudgetLeftUSD = o.state.Budget.Spendable()
	}
	recent := o.state.ActionsLog
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	s.RecentActions = recent

	if plan, err := o.planner.PlanForToday(); err == nil {
		for _, a := range plan {
			if !a.Done {
				s.PendingToday++
			}
		}
	}
	return s
}

func mapKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
