package evm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/ajitpratap0/hyperfarm/internal/metrics"
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type endpoint struct {
	url     string
	breaker *gobreaker.CircuitBreaker
}

// Client is a failover JSON-RPC client for one chain. Each endpoint gets
// its own circuit breaker; calls rotate to the next endpoint when one is
// down or tripping.
type Client struct {
	chain      Chain
	endpoints  []*endpoint
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// NewClient creates a client over the chain's endpoint list
func NewClient(chain Chain, logger zerolog.Logger) *Client {
	eps := make([]*endpoint, 0, len(chain.RPCs))
	for _, url := range chain.RPCs {
		url := url
		eps = append(eps, &endpoint{
			url: url,
			breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:    chain.Key + ":" + url,
				Timeout: time.Minute,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= 3
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					metrics.SetBreakerOpen(name, to == gobreaker.StateOpen)
					logger.Warn().
						Str("breaker", name).
						Str("from", from.String()).
						Str("to", to.String()).
						Msg("RPC circuit breaker state changed")
				},
			}),
		})
	}

	return &Client{
		chain:      chain,
		endpoints:  eps,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(4), 8),
		logger:     logger,
	}
}

// Chain returns the chain this client serves
func (c *Client) Chain() Chain {
	return c.chain
}

// Call invokes a JSON-RPC method, trying each endpoint in order until
// one answers. Node-side errors (rpcError) are returned directly: the
// next endpoint would refuse the same request for the same reason.
func (c *Client) Call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if params == nil {
		params = []interface{}{}
	}

	var lastErr error
	for _, ep := range c.endpoints {
		raw, err := ep.breaker.Execute(func() (interface{}, error) {
			return c.post(ctx, ep.url, method, params)
		})
		if err != nil {
			var rpcErr *rpcError
			if ok := asRPCError(err, &rpcErr); ok {
				return rpcErr
			}
			lastErr = err
			c.logger.Debug().
				Str("endpoint", ep.url).
				Str("method", method).
				Err(err).
				Msg("RPC endpoint failed, trying next")
			continue
		}
		if result == nil {
			return nil
		}
		return json.Unmarshal(raw.(json.RawMessage), result)
	}

	return fmt.Errorf("all %s endpoints failed: %w", c.chain.Key, lastErr)
}

func asRPCError(err error, target **rpcError) bool {
	if e, ok := err.(*rpcError); ok {
		*target = e
		return true
	}
	return false
}

func (c *Client) post(ctx context.Context, url, method string, params []interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rpc http status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to parse rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}
