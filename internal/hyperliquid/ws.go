package hyperliquid

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// MidCache holds the latest mid prices pushed over the websocket. Readers
// fall back to REST when a price is missing or stale.
type MidCache struct {
	mu      sync.RWMutex
	mids    map[string]float64
	updated time.Time
}

// NewMidCache creates an empty mid-price cache
func NewMidCache() *MidCache {
	return &MidCache{mids: make(map[string]float64)}
}

// Get returns the cached mid for a coin and whether it is fresh
func (m *MidCache) Get(coin string, maxAge time.Duration) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if time.Since(m.updated) > maxAge {
		return 0, false
	}
	px, ok := m.mids[coin]
	return px, ok
}

func (m *MidCache) update(mids map[string]float64) {
	m.mu.Lock()
	for coin, px := range mids {
		m.mids[coin] = px
	}
	m.updated = time.Now()
	m.mu.Unlock()
}

// MidStream keeps a websocket subscription to allMids alive and feeds a
// MidCache. Reconnects with backoff until the context is cancelled.
type MidStream struct {
	url    string
	cache  *MidCache
	logger zerolog.Logger
}

// NewMidStream creates a mid-price stream
func NewMidStream(wsURL string, cache *MidCache, logger zerolog.Logger) *MidStream {
	return &MidStream{url: wsURL, cache: cache, logger: logger}
}

// Run blocks until ctx is cancelled, maintaining the subscription
func (s *MidStream) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.connectAndRead(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn().
				Err(err).
				Dur("backoff", backoff).
				Msg("Mid stream disconnected, reconnecting")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *MidStream) connectAndRead(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := map[string]interface{}{
		"method": "subscribe",
		"subscription": map[string]string{
			"type": "allMids",
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	s.logger.Info().Str("url", s.url).Msg("Mid stream connected")

	// Close the connection when the context ends so ReadMessage unblocks
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame struct {
			Channel string `json:"channel"`
			Data    struct {
				Mids map[string]string `json:"mids"`
			} `json:"data"`
		}
		if err := json.Unmarshal(msg, &frame); err != nil || frame.Channel != "allMids" {
			continue
		}

		mids := make(map[string]float64, len(frame.Data.Mids))
		for coin, raw := range frame.Data.Mids {
			if px, err := strconv.ParseFloat(raw, 64); err == nil {
				mids[coin] = px
			}
		}
		s.cache.update(mids)
	}
}
