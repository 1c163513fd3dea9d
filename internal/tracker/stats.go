package tracker

import "math"

// AssetStats aggregates closed-trade performance for one asset
type AssetStats struct {
	Trades   int     `json:"trades"`
	Wins     int     `json:"wins"`
	TotalPnL float64 `json:"total_pnl"`
}

// SignalStats aggregates performance for one signal key
type SignalStats struct {
	Activations int     `json:"activations"`
	Wins        int     `json:"wins"`
	TotalPnL    float64 `json:"total_pnl"`
}

// WinRate returns the signal's win percentage
func (s SignalStats) WinRate() float64 {
	if s.Activations == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Activations) * 100
}

// Stats summarizes the most recent closed trades
type Stats struct {
	Total        int                    `json:"total"`
	Wins         int                    `json:"wins"`
	Losses       int                    `json:"losses"`
	WinRate      float64                `json:"win_rate"`
	TotalPnL     float64                `json:"total_pnl"`
	AvgWin       float64                `json:"avg_win"`
	AvgLoss      float64                `json:"avg_loss"`
	ProfitFactor float64                `json:"profit_factor"`
	BestTrade    float64                `json:"best_trade"`
	WorstTrade   float64                `json:"worst_trade"`
	PerAsset     map[string]AssetStats  `json:"per_asset"`
	PerSignal    map[string]SignalStats `json:"per_signal"`
}

// Stats computes performance over the last n closed trades (all when
// n <= 0).
func (t *Tracker) Stats(n int) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	var closed []Trade
	for _, tr := range t.trades {
		if tr.Status == "closed" {
			closed = append(closed, tr)
		}
	}
	if n > 0 && len(closed) > n {
		closed = closed[len(closed)-n:]
	}

	s := Stats{
		PerAsset:  make(map[string]AssetStats),
		PerSignal: make(map[string]SignalStats),
	}

	var grossWin, grossLoss float64
	for i, tr := range closed {
		s.Total++
		s.TotalPnL += tr.PnL

		win := tr.PnL > 0
		if win {
			s.Wins++
			grossWin += tr.PnL
		} else {
			s.Losses++
			grossLoss += -tr.PnL
		}

		if i == 0 || tr.PnL > s.BestTrade {
			s.BestTrade = tr.PnL
		}
		if i == 0 || tr.PnL < s.WorstTrade {
			s.WorstTrade = tr.PnL
		}

		as := s.PerAsset[tr.Asset]
		as.Trades++
		as.TotalPnL += tr.PnL
		if win {
			as.Wins++
		}
		s.PerAsset[tr.Asset] = as

		for _, key := range tr.Signals {
			sg := s.PerSignal[key]
			sg.Activations++
			sg.TotalPnL += tr.PnL
			if win {
				sg.Wins++
			}
			s.PerSignal[key] = sg
		}
	}

	if s.Total > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Total) * 100
	}
	if s.Wins > 0 {
		s.AvgWin = grossWin / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = -grossLoss / float64(s.Losses)
	}
	switch {
	case grossLoss > 0:
		s.ProfitFactor = grossWin / grossLoss
	case grossWin > 0:
		s.ProfitFactor = math.Inf(1)
	}

	return s
}

// ClosedCount returns the number of closed trades on record
func (t *Tracker) ClosedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for _, tr := range t.trades {
		if tr.Status == "closed" {
			count++
		}
	}
	return count
}
