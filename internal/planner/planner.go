// Package planner lays out each day's farming actions so the pattern
// looks like a human poking at chains: a random handful of actions at
// gaussian-spaced times inside waking hours, fewer on weekends, no two
// identical actions back to back.
package planner

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/hyperfarm/internal/config"
	"github.com/ajitpratap0/hyperfarm/internal/evm"
	"github.com/ajitpratap0/hyperfarm/internal/executor"
	"github.com/ajitpratap0/hyperfarm/internal/statefile"
)

const (
	minActionsPerDay = 2
	minGapHours      = 0.5
	startDelayHours  = 0.5
	historyDays      = 7

	amountMinUSD = 0.10
	amountMaxUSD = 0.50
)

var actionTypes = []string{
	executor.ActionSwapETHToTok,
	executor.ActionSwapTokToETH,
	executor.ActionSelfTransfer,
	executor.ActionLPAdd,
}

var swapTokens = []string{"USDC", "DAI"}

// PlannedAction is one scheduled slot in today's plan. Execution outcome
// lands on the entry itself so the schedule file tells the whole story.
type PlannedAction struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Chain      string    `json:"chain"`
	Token      string    `json:"token,omitempty"`
	AmountUSD  float64   `json:"amount_usd"`
	At         time.Time `json:"at"`
	Done       bool      `json:"done"`
	TxHash     string    `json:"tx_hash,omitempty"`
	ExecutedAt time.Time `json:"executed_at"`
	LastError  string    `json:"last_error,omitempty"`
}

// DaySummary records a finished day for the rolling history
type DaySummary struct {
	Date      string `json:"date"`
	Planned   int    `json:"planned"`
	Completed int    `json:"completed"`
}

type scheduleState struct {
	Date    string          `json:"date"`
	Actions []PlannedAction `json:"actions"`
	History []DaySummary    `json:"history"`
}

// Planner owns farm_schedule.json
type Planner struct {
	mu     sync.Mutex
	store  *statefile.Store
	cfg    config.FarmingConfig
	budget *evm.BudgetTracker
	rng    *rand.Rand
	// Clock is swappable for tests
	Clock  func() time.Time
	logger zerolog.Logger
	state  scheduleState
}

// New loads the planner state
func New(store *statefile.Store, cfg config.FarmingConfig, budget *evm.BudgetTracker, logger zerolog.Logger) (*Planner, error) {
	p := &Planner{
		store:  store,
		cfg:    cfg,
		budget: budget,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		Clock:  time.Now,
		logger: logger,
	}
	if err := store.Load(&p.state); err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	return p, nil
}

// PlanForToday returns today's action plan, generating it on the first
// call of the day. The stored plan is reused for the rest of the day so
// restarts do not reshuffle pending actions.
func (p *Planner) PlanForToday() ([]PlannedAction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.Clock()
	today := now.Format("2006-01-02")
	if p.state.Date == today {
		return p.copyActions(), nil
	}

	// Roll the finished day into history
	if p.state.Date != "" {
		completed := 0
		for _, a := range p.state.Actions {
			if a.Done {
				completed++
			}
		}
		p.state.History = append(p.state.History, DaySummary{
			Date:      p.state.Date,
			Planned:   len(p.state.Actions),
			Completed: completed,
		})
		if len(p.state.History) > historyDays {
			p.state.History = p.state.History[len(p.state.History)-historyDays:]
		}
	}

	p.state.Date = today
	p.state.Actions = p.generate(now)

	p.logger.Info().
		Str("date", today).
		Int("actions", len(p.state.Actions)).
		Msg("Daily farm plan generated")

	return p.copyActions(), p.store.Save(p.state)
}

func (p *Planner) generate(now time.Time) []PlannedAction {
	n := p.actionCount(now)

	startHour := float64(p.cfg.ActiveHourStart)
	endHour := float64(p.cfg.ActiveHourEnd)
	nowHour := float64(now.Hour()) + float64(now.Minute())/60

	// Start no earlier than half an hour from now
	effectiveStart := startHour
	if nowHour+startDelayHours > effectiveStart {
		effectiveStart = nowHour + startDelayHours
	}
	if effectiveStart >= endHour-1 {
		// Day is nearly over; squeeze in at most two actions
		if n > minActionsPerDay {
			n = minActionsPerDay
		}
		if effectiveStart >= endHour {
			effectiveStart = endHour - minGapHours
		}
	}

	hours := p.layoutTimes(effectiveStart, endHour, n)

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	actions := make([]PlannedAction, 0, n)
	prevType := ""
	tokenIdx := p.rng.Intn(len(swapTokens))

	for i, h := range hours {
		actionType := p.pickType(prevType)
		prevType = actionType

		a := PlannedAction{
			ID:        fmt.Sprintf("a%d_%s", i+1, now.Format("0102")),
			Type:      actionType,
			Chain:     p.pickChain(),
			AmountUSD: amountMinUSD + p.rng.Float64()*(amountMaxUSD-amountMinUSD),
			At:        midnight.Add(time.Duration(h * float64(time.Hour))),
		}
		if actionType == executor.ActionSwapETHToTok || actionType == executor.ActionSwapTokToETH || actionType == executor.ActionLPAdd {
			a.Token = swapTokens[tokenIdx%len(swapTokens)]
			tokenIdx++
		}
		actions = append(actions, a)
	}
	return actions
}

// actionCount sizes the day: capped by config, halved on weekends,
// bounded by what the daily gas allowance can pay for.
func (p *Planner) actionCount(now time.Time) int {
	maxActions := p.cfg.DailyMaxActions
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		maxActions = int(float64(maxActions) * p.cfg.WeekendFactor)
		if maxActions < 1 {
			maxActions = 1
		}
	}

	daysLeft := p.campaignDaysLeft(now)
	dailyGas := p.cfg.DailyGasUSD
	if p.budget != nil {
		if spread := p.budget.Spendable() / float64(daysLeft); spread < dailyGas {
			dailyGas = spread
		}
	}

	avgCost := evm.Chains["base"].AvgGasUSD
	affordable := int(dailyGas / avgCost)
	if affordable < minActionsPerDay {
		affordable = minActionsPerDay
	}
	if maxActions > affordable {
		maxActions = affordable
	}
	if maxActions < minActionsPerDay {
		return maxActions
	}
	return minActionsPerDay + p.rng.Intn(maxActions-minActionsPerDay+1)
}

func (p *Planner) campaignDaysLeft(now time.Time) int {
	daysLeft := 1
	if start, err := time.Parse("2006-01-02", p.cfg.CampaignStart); err == nil {
		elapsed := int(now.Sub(start).Hours() / 24)
		if left := p.cfg.CampaignDays - elapsed; left > daysLeft {
			daysLeft = left
		}
	}
	return daysLeft
}

// layoutTimes places n action times between start and end with gaussian
// gaps, so spacing looks irregular but roughly covers the window. Times
// are always strictly increasing: the end-of-window clamp is drawn once
// per plan, and clamped slots step forward by a minute.
func (p *Planner) layoutTimes(start, end float64, n int) []float64 {
	meanGap := (end - start) / float64(n+1)
	sigma := meanGap / 2
	limit := end - (0.1 + p.rng.Float64()*0.4)

	const clampStep = 1.0 / 60

	times := make([]float64, 0, n)
	t := start
	for i := 0; i < n; i++ {
		gap := meanGap + p.rng.NormFloat64()*sigma
		if gap < minGapHours {
			gap = minGapHours
		}
		next := t + gap
		if next > limit {
			next = limit
		}
		if next <= t {
			next = t + clampStep
		}
		t = next
		times = append(times, t)
	}
	return times
}

// pickType chooses an action type, never repeating the previous one
func (p *Planner) pickType(prev string) string {
	for {
		t := actionTypes[p.rng.Intn(len(actionTypes))]
		if t != prev {
			return t
		}
	}
}

func (p *Planner) pickChain() string {
	keys := evm.MainnetKeys()
	if p.budget != nil {
		affordable := make([]string, 0, len(keys))
		for _, k := range keys {
			if p.budget.CanAfford(evm.Chains[k]) {
				affordable = append(affordable, k)
			}
		}
		if len(affordable) > 0 {
			keys = affordable
		}
	}
	// Base carries most volume; the rest split the remainder
	if p.rng.Float64() < 0.6 {
		if contains(keys, "base") {
			return "base"
		}
	}
	return keys[p.rng.Intn(len(keys))]
}

func contains(keys []string, k string) bool {
	for _, v := range keys {
		if v == k {
			return true
		}
	}
	return false
}

// Due returns pending actions whose slot has arrived
func (p *Planner) Due() []PlannedAction {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.Clock()
	var due []PlannedAction
	for _, a := range p.state.Actions {
		if !a.Done && !a.At.After(now) {
			due = append(due, a)
		}
	}
	return due
}

// NextAt returns the earliest pending slot
func (p *Planner) NextAt() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var next time.Time
	found := false
	for _, a := range p.state.Actions {
		if a.Done {
			continue
		}
		if !found || a.At.Before(next) {
			next = a.At
			found = true
		}
	}
	return next, found
}

// MarkDone flags an action as executed and records its outcome
func (p *Planner) MarkDone(id, txHash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.state.Actions {
		if p.state.Actions[i].ID == id {
			p.state.Actions[i].Done = true
			p.state.Actions[i].TxHash = txHash
			p.state.Actions[i].ExecutedAt = p.Clock()
			p.state.Actions[i].LastError = ""
			return p.store.Save(p.state)
		}
	}
	return fmt.Errorf("unknown action id %q", id)
}

// MarkFailed records an execution error; the action stays pending and is
// retried on the next pass.
func (p *Planner) MarkFailed(id, errMsg string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.state.Actions {
		if p.state.Actions[i].ID == id {
			p.state.Actions[i].LastError = errMsg
			return p.store.Save(p.state)
		}
	}
	return fmt.Errorf("unknown action id %q", id)
}

// History returns the rolling day summaries
func (p *Planner) History() []DaySummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]DaySummary, len(p.state.History))
	copy(out, p.state.History)
	return out
}

func (p *Planner) copyActions() []PlannedAction {
	out := make([]PlannedAction, len(p.state.Actions))
	copy(out, p.state.Actions)
	return out
}
