package evm

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// lowBudgetFraction triggers a warning when spendable budget drops below
// this share of the original allowance.
const lowBudgetFraction = 0.2

// BudgetTracker enforces the campaign gas budget on mainnet chains.
// It serializes into farm state so spend survives restarts.
type BudgetTracker struct {
	mu sync.Mutex

	BudgetUSD    float64            `json:"budget_usd"`
	ReservePct   float64            `json:"reserve_pct"`
	SpentByChain map[string]float64 `json:"spent_by_chain"`
	TotalSpent   float64            `json:"total_spent"`

	warned bool
}

// NewBudgetTracker creates a tracker for a total budget with a held-back
// reserve fraction.
func NewBudgetTracker(budgetUSD, reservePct float64) *BudgetTracker {
	return &BudgetTracker{
		BudgetUSD:    budgetUSD,
		ReservePct:   reservePct,
		SpentByChain: make(map[string]float64),
	}
}

// Spendable is the budget available for actions after the reserve
func (b *BudgetTracker) Spendable() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spendableLocked()
}

func (b *BudgetTracker) spendableLocked() float64 {
	remaining := b.BudgetUSD*(1-b.ReservePct) - b.TotalSpent
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CanAfford reports whether one average-cost action on the chain fits in
// the budget. Testnets are always affordable.
func (b *BudgetTracker) CanAfford(chain Chain) bool {
	if !chain.Mainnet {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spendableLocked() >= chain.AvgGasUSD
}

// Record books spend against a chain
func (b *BudgetTracker) Record(chainKey string, usd float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.SpentByChain == nil {
		b.SpentByChain = make(map[string]float64)
	}
	b.SpentByChain[chainKey] += usd
	b.TotalSpent += usd

	allowance := b.BudgetUSD * (1 - b.ReservePct)
	if !b.warned && allowance > 0 && b.spendableLocked() < allowance*lowBudgetFraction {
		b.warned = true
		log.Warn().
			Float64("spendable_usd", b.spendableLocked()).
			Float64("total_spent_usd", b.TotalSpent).
			Msg("Gas budget running low")
	}
}
