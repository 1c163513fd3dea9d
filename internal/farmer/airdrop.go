package farmer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/hyperfarm/internal/evm"
	"github.com/ajitpratap0/hyperfarm/internal/oracle"
	"github.com/ajitpratap0/hyperfarm/internal/statefile"
)

const (
	defiLlamaURL = "https://api.llama.fi/protocols"

	// Screening thresholds for DeFiLlama candidates
	minTVLUSD      = 1_000_000
	tokenRankFloor = 200
)

// Candidate is one potential airdrop opportunity
type Candidate struct {
	Name        string  `json:"name"`
	Chain       string  `json:"chain"`
	TVLUSD      float64 `json:"tvl_usd,omitempty"`
	Source      string  `json:"source"`
	Notes       string  `json:"notes,omitempty"`
	Cost        string  `json:"cost,omitempty"`
	KYCRequired bool    `json:"kyc_required,omitempty"`
	TokenRank   int     `json:"token_rank,omitempty"` // 0 when no token exists
}

// Report is the persisted scan result, airdrop_report.json
type Report struct {
	LastScan   time.Time   `json:"last_scan"`
	TotalFound int         `json:"total_found"`
	Airdrops   []Candidate `json:"airdrops"`
}

type llamaProtocol struct {
	Name   string   `json:"name"`
	Symbol string   `json:"symbol"`
	TVL    float64  `json:"tvl"`
	Chains []string `json:"chains"`
}

// AirdropMonitor scans for farmable protocols: DeFiLlama for tokenless
// protocols with real TVL on supported chains, plus a research query for
// opportunities TVL listings miss.
type AirdropMonitor struct {
	httpClient *http.Client
	llamaURL   string
	research   oracle.Completer
	store      *statefile.Store
	logger     zerolog.Logger
}

// NewAirdropMonitor creates a monitor writing to the given report store
func NewAirdropMonitor(research oracle.Completer, store *statefile.Store, logger zerolog.Logger) *AirdropMonitor {
	return &AirdropMonitor{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		llamaURL:   defiLlamaURL,
		research:   research,
		store:      store,
		logger:     logger,
	}
}

// Scan runs one full scan and persists the report. Returns the new
// report and the candidates not present in the previous one.
func (m *AirdropMonitor) Scan(ctx context.Context) (*Report, []Candidate, error) {
	var previous Report
	if err := m.store.Load(&previous); err != nil {
		return nil, nil, err
	}

	var candidates []Candidate

	llama, err := m.scanDefiLlama(ctx)
	if err != nil {
		// A failed TVL fetch should not kill the research half
		m.logger.Warn().Err(err).Msg("DeFiLlama scan failed")
	}
	candidates = append(candidates, llama...)

	if m.research != nil {
		researched, err := m.scanResearch(ctx)
		if err != nil {
			m.logger.Warn().Err(err).Msg("Research scan failed")
		}
		candidates = append(candidates, researched...)
	}

	filtered := filterCandidates(candidates)
	report := &Report{
		LastScan:   time.Now(),
		TotalFound: len(filtered),
		Airdrops:   filtered,
	}

	fresh := diffCandidates(previous.Airdrops, filtered)

	m.logger.Info().
		Int("total", len(filtered)).
		Int("new", len(fresh)).
		Msg("Airdrop scan complete")

	return report, fresh, m.store.Save(*report)
}

func (m *AirdropMonitor) scanDefiLlama(ctx context.Context) ([]Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", m.llamaURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("protocols fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("protocols fetch status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var protocols []llamaProtocol
	if err := json.Unmarshal(body, &protocols); err != nil {
		return nil, fmt.Errorf("failed to parse protocols: %w", err)
	}

	var out []Candidate
	for _, p := range protocols {
		if p.TVL < minTVLUSD {
			continue
		}
		// "-" is DeFiLlama's marker for protocols without a token
		if p.Symbol != "" && p.Symbol != "-" {
			continue
		}
		chain, ok := supportedChain(p.Chains)
		if !ok {
			continue
		}
		out = append(out, Candidate{
			Name:   p.Name,
			Chain:  chain,
			TVLUSD: p.TVL,
			Source: "defillama",
		})
	}
	return out, nil
}

func (m *AirdropMonitor) scanResearch(ctx context.Context) ([]Candidate, error) {
	prompt := "List current airdrop farming opportunities on Base, Arbitrum or Optimism " +
		"suitable for a small wallet doing swaps, transfers and liquidity deposits. " +
		"Answer with a JSON array of objects with keys: name, chain, cost, kyc_required (bool), " +
		"token_rank (coinmarketcap rank if a token already exists, else 0), notes. JSON only."

	text, err := m.research.Completion(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var parsed []Candidate
	if err := json.Unmarshal([]byte(extractJSONArray(text)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse research candidates: %w", err)
	}
	for i := range parsed {
		parsed[i].Source = "research"
	}
	return parsed, nil
}

// filterCandidates applies the screening rules: dedupe by name, no KYC,
// no capital-gated programs, supported chains only, and skip protocols
// whose token is already well established.
func filterCandidates(in []Candidate) []Candidate {
	seen := make(map[string]bool)
	var out []Candidate

	for _, c := range in {
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if key == "" || seen[key] {
			continue
		}
		if c.KYCRequired {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(c.Cost), "capital needed") {
			continue
		}
		if _, ok := supportedChain([]string{c.Chain}); !ok {
			continue
		}
		if c.TokenRank > 0 && c.TokenRank < tokenRankFloor {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].TVLUSD > out[j].TVLUSD })
	return out
}

// diffCandidates returns entries of current missing from previous
func diffCandidates(previous, current []Candidate) []Candidate {
	known := make(map[string]bool, len(previous))
	for _, c := range previous {
		known[strings.ToLower(c.Name)] = true
	}
	var fresh []Candidate
	for _, c := range current {
		if !known[strings.ToLower(c.Name)] {
			fresh = append(fresh, c)
		}
	}
	return fresh
}

// supportedChain maps a chain name list to our registry key
func supportedChain(chains []string) (string, bool) {
	aliases := map[string]string{
		"base":     "base",
		"arbitrum": "arbitrum",
		"optimism": "optimism",
		"op":       "optimism",
	}
	for _, name := range chains {
		if key, ok := aliases[strings.ToLower(strings.TrimSpace(name))]; ok {
			if _, exists := evm.Chains[key]; exists {
				return key, true
			}
		}
	}
	return "", false
}

func extractJSONArray(text string) string {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
