// Package hyperliquid is the venue client: REST info and exchange
// endpoints plus a websocket mid-price stream.
package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ajitpratap0/hyperfarm/internal/config"
)

// Client talks to the venue REST API. Safe for concurrent use.
type Client struct {
	baseURL    string
	address    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryConfig
	signer     *Signer
	logger     zerolog.Logger

	metaMu sync.RWMutex
	meta   map[string]assetEntry // keyed by full asset name ("BTC", "xyz:GOLD")
}

type assetEntry struct {
	index int
	meta  AssetMeta
}

// NewClient creates a venue client. PrivateKey may be empty for read-only
// use; exchange endpoints then return an error.
func NewClient(cfg config.VenueConfig, logger zerolog.Logger) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("venue api_url is required")
	}

	var signer *Signer
	if cfg.PrivateKey != "" {
		s, err := NewSigner(cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load venue signing key: %w", err)
		}
		signer = s
	}

	address := cfg.AccountAddress
	if address == "" && signer != nil {
		address = signer.Address()
	}

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 10
	}

	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL:    cfg.APIURL,
		address:    address,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		retry:      DefaultRetryConfig(),
		signer:     signer,
		logger:     logger,
		meta:       make(map[string]assetEntry),
	}

	logger.Info().
		Str("api_url", cfg.APIURL).
		Bool("signing", signer != nil).
		Msg("Venue client initialized")

	return c, nil
}

// Address returns the account address the client operates for
func (c *Client) Address() string {
	return c.address
}

// post sends a JSON request and decodes the response into out. Retries on
// transport failures; the rate limiter runs before every attempt.
func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	return WithRetry(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("venue API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 200))
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
		}
		return nil
	})
}

// assetInfo resolves the venue asset index and metadata for an asset,
// loading and caching per-dex metadata on first use.
func (c *Client) assetInfo(ctx context.Context, asset string) (assetEntry, error) {
	c.metaMu.RLock()
	entry, ok := c.meta[asset]
	c.metaMu.RUnlock()
	if ok {
		return entry, nil
	}

	dex, _ := SplitCoin(asset)
	if err := c.loadMeta(ctx, dex); err != nil {
		return assetEntry{}, err
	}

	c.metaMu.RLock()
	entry, ok = c.meta[asset]
	c.metaMu.RUnlock()
	if !ok {
		return assetEntry{}, fmt.Errorf("unknown asset %s", asset)
	}
	return entry, nil
}

// loadMeta fetches the asset universe for one dex and caches it
func (c *Client) loadMeta(ctx context.Context, dex string) error {
	payload := map[string]interface{}{"type": "meta"}
	if dex != "" {
		payload["dex"] = dex
	}

	var resp struct {
		Universe []AssetMeta `json:"universe"`
	}
	if err := c.post(ctx, "/info", payload, &resp); err != nil {
		return fmt.Errorf("failed to load asset metadata: %w", err)
	}

	// Builder dex asset indices are offset into a per-dex block
	offset := 0
	if dex != "" {
		offset = 100000
	}

	c.metaMu.Lock()
	for i, m := range resp.Universe {
		name := m.Name
		if dex != "" {
			name = dex + ":" + m.Name
		}
		c.meta[name] = assetEntry{index: offset + i, meta: m}
	}
	c.metaMu.Unlock()

	c.logger.Debug().
		Str("dex", dex).
		Int("assets", len(resp.Universe)).
		Msg("Loaded asset metadata")

	return nil
}

// Meta returns cached metadata for an asset
func (c *Client) Meta(ctx context.Context, asset string) (AssetMeta, error) {
	entry, err := c.assetInfo(ctx, asset)
	if err != nil {
		return AssetMeta{}, err
	}
	return entry.meta, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
