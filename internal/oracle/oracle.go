package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ajitpratap0/hyperfarm/internal/config"
	"github.com/ajitpratap0/hyperfarm/internal/signal"
)

// DefaultCacheTTL bounds how often a symbol is re-queried
const DefaultCacheTTL = 60 * time.Minute

// Reading is one cached sentiment result
type Reading struct {
	Symbol  string           `json:"symbol"`
	Score   float64          `json:"score"`
	Bias    signal.Direction `json:"bias"`
	Summary string           `json:"summary"`
	Time    time.Time        `json:"time"`
}

// Stale reports whether the reading has outlived the TTL
func (r Reading) Stale(ttl time.Duration) bool {
	return time.Since(r.Time) > ttl
}

// Completer is the research client surface the oracle needs
type Completer interface {
	Completion(ctx context.Context, prompt string) (string, error)
}

// Oracle caches per-symbol sentiment readings in memory and, when
// configured, in Redis so multiple processes share one research quota.
type Oracle struct {
	client Completer
	ttl    time.Duration
	rdb    *redis.Client
	logger zerolog.Logger

	mu    sync.Mutex
	cache map[string]Reading
}

// New creates an oracle. rdb may be nil for memory-only caching.
func New(client Completer, cfg config.OracleConfig, rdb *redis.Client, logger zerolog.Logger) *Oracle {
	ttl := time.Duration(cfg.CacheTTLMin) * time.Minute
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	return &Oracle{
		client: client,
		ttl:    ttl,
		rdb:    rdb,
		logger: logger,
		cache:  make(map[string]Reading),
	}
}

// Bias returns the sentiment reading for a symbol. Fresh cache entries
// are served directly; on a research failure the last stale reading is
// reused, and with nothing cached the symbol reads as neutral.
func (o *Oracle) Bias(ctx context.Context, symbol string) Reading {
	if r, ok := o.cached(ctx, symbol); ok && !r.Stale(o.ttl) {
		return r
	}

	text, err := o.client.Completion(ctx, sentimentPrompt(symbol))
	if err != nil {
		o.logger.Warn().
			Str("symbol", symbol).
			Err(err).
			Msg("Sentiment query failed")

		if r, ok := o.cached(ctx, symbol); ok {
			o.logger.Debug().Str("symbol", symbol).Msg("Serving stale sentiment reading")
			return r
		}
		return Reading{Symbol: symbol, Bias: signal.None, Time: time.Now()}
	}

	score := ExtractScore(text)
	r := Reading{
		Symbol:  symbol,
		Score:   score,
		Bias:    BiasFor(score),
		Summary: truncateSummary(text),
		Time:    time.Now(),
	}
	o.put(ctx, r)

	o.logger.Info().
		Str("symbol", symbol).
		Float64("score", score).
		Str("bias", r.Bias.String()).
		Msg("Sentiment reading updated")

	return r
}

func (o *Oracle) cached(ctx context.Context, symbol string) (Reading, bool) {
	o.mu.Lock()
	r, ok := o.cache[symbol]
	o.mu.Unlock()
	if ok {
		return r, true
	}

	if o.rdb == nil {
		return Reading{}, false
	}
	data, err := o.rdb.Get(ctx, redisKey(symbol)).Bytes()
	if err != nil {
		if err != redis.Nil {
			o.logger.Warn().Err(err).Msg("Redis sentiment lookup failed")
		}
		return Reading{}, false
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return Reading{}, false
	}

	o.mu.Lock()
	o.cache[symbol] = r
	o.mu.Unlock()
	return r, true
}

func (o *Oracle) put(ctx context.Context, r Reading) {
	o.mu.Lock()
	o.cache[r.Symbol] = r
	o.mu.Unlock()

	if o.rdb == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	// Keep the Redis copy around past the TTL so it can serve as the
	// stale fallback too.
	if err := o.rdb.Set(ctx, redisKey(r.Symbol), data, 4*o.ttl).Err(); err != nil {
		o.logger.Warn().Err(err).Msg("Redis sentiment store failed")
	}
}

func redisKey(symbol string) string {
	return "hyperfarm:sentiment:" + symbol
}

func sentimentPrompt(symbol string) string {
	return fmt.Sprintf(
		"Assess the current short-term (next 4-12 hours) sentiment for the %s cryptocurrency perpetual futures market. "+
			"Consider recent price action, funding, news flow and positioning. "+
			"End your answer with a line of the exact form score: <value> where <value> is between -1.0 (strongly bearish) and 1.0 (strongly bullish).",
		symbol)
}

func truncateSummary(text string) string {
	const maxLen = 400
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen]
}
