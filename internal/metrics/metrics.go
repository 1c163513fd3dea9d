// Package metrics defines the Prometheus instrumentation and the HTTP
// status server shared by the trading bot and the farm orchestrator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Exit reasons carried as metric labels (bounded set)
const (
	ExitTP           = "tp"
	ExitSL           = "sl"
	ExitPartialTP    = "partial_tp"
	ExitTrailingStop = "trailing_stop"
	ExitManual       = "manual"
)

var (
	AccountValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hyperfarm_account_value_usd",
		Help: "Combined perp account value across namespaces in USD",
	})

	CurrentDrawdown = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hyperfarm_drawdown_pct",
		Help: "Current drawdown from the account peak in percent",
	})

	TradingPaused = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hyperfarm_trading_paused",
		Help: "1 while the drawdown guard has entries paused",
	})

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hyperfarm_open_positions",
		Help: "Number of currently open positions",
	})

	TradesOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hyperfarm_trades_opened_total",
		Help: "Entries placed, by asset and direction",
	}, []string{"asset", "direction"})

	TradesClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hyperfarm_trades_closed_total",
		Help: "Closed trades, by asset and exit reason",
	}, []string{"asset", "reason"})

	RealizedPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hyperfarm_realized_pnl_usd",
		Help: "Cumulative realized PnL in USD",
	})

	WinRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hyperfarm_win_rate_pct",
		Help: "Win rate over all closed trades in percent",
	})

	OrderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hyperfarm_order_errors_total",
		Help: "Orders rejected by the venue, by asset",
	}, []string{"asset"})

	OptimizationRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hyperfarm_optimization_runs_total",
		Help: "Completed strategy optimization passes",
	})

	FarmActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hyperfarm_farm_actions_total",
		Help: "Executed farming actions, by chain and type",
	}, []string{"chain", "type"})

	FarmGasSpent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hyperfarm_farm_gas_spent_usd",
		Help: "Cumulative gas spent on farming in USD",
	})

	FarmBudgetLeft = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hyperfarm_farm_budget_left_usd",
		Help: "Spendable farming budget remaining in USD",
	})

	BreakerOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hyperfarm_breaker_open",
		Help: "1 while the named circuit breaker is open",
	}, []string{"name"})
)

// RecordTradeOpened bumps the entry counters
func RecordTradeOpened(asset, direction string) {
	TradesOpened.WithLabelValues(asset, direction).Inc()
}

// RecordTradeClosed bumps the close counters and realized PnL
func RecordTradeClosed(asset, reason string, pnl float64) {
	TradesClosed.WithLabelValues(asset, normalizeExit(reason)).Inc()
	RealizedPnL.Add(pnl)
}

// RecordFarmAction bumps the farming counters
func RecordFarmAction(chain, actionType string, costUSD float64) {
	FarmActions.WithLabelValues(chain, actionType).Inc()
	FarmGasSpent.Add(costUSD)
}

// SetPaused mirrors the drawdown guard state
func SetPaused(paused bool) {
	if paused {
		TradingPaused.Set(1)
		return
	}
	TradingPaused.Set(0)
}

// SetBreakerOpen mirrors a circuit breaker's state
func SetBreakerOpen(name string, open bool) {
	if open {
		BreakerOpen.WithLabelValues(name).Set(1)
		return
	}
	BreakerOpen.WithLabelValues(name).Set(0)
}

func normalizeExit(reason string) string {
	switch reason {
	case ExitTP, ExitSL, ExitPartialTP, ExitTrailingStop:
		return reason
	default:
		return ExitManual
	}
}
