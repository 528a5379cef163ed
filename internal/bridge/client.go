// Package bridge talks to the MT5 HTTP bridge that exposes broker market
// data. The bridge is an external collaborator; everything here is read-only
// and safe to retry.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mt5-signal-engine/internal/marketdata"
)

// ErrUnavailable is returned when the bridge cannot serve market data: the
// probe failed, the request timed out, or the symbol could not be resolved.
var ErrUnavailable = errors.New("bridge: market data unavailable")

// symbolVariants are the broker-specific suffix/prefix spellings tried, in
// order, when resolving a canonical symbol name against the connected broker.
var symbolVariants = []string{"", "m", ".r", "_i", "-ECN", "pro", ".a", "#"}

const (
	probeTimeout = 3 * time.Second
	fetchTimeout = 15 * time.Second
)

// Client is an HTTP client for the MT5 bridge.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger

	// resolved caches symbol-name resolution for the life of the client.
	// Resolution is against a single broker session, so entries never go
	// stale. One client serves all HTTP requests, so access is locked.
	mu       sync.Mutex
	resolved map[string]string
}

// NewClient creates a bridge client. baseURL may be empty, in which case
// every call reports ErrUnavailable and callers fall back to synthetic data.
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: fetchTimeout},
		logger:     logger.With().Str("component", "bridge").Logger(),
		resolved:   make(map[string]string),
	}
}

// Configured reports whether a bridge endpoint is set at all.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// Ping probes bridge connectivity with a short timeout.
func (c *Client) Ping(ctx context.Context) error {
	if !c.Configured() {
		return ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ping", nil)
	if err != nil {
		return fmt.Errorf("bridge ping: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ping status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// ResolveSymbol finds the broker's spelling of a canonical symbol by trying
// known suffix/prefix variants until one is quotable.
func (c *Client) ResolveSymbol(ctx context.Context, symbol string) (string, error) {
	c.mu.Lock()
	name, ok := c.resolved[symbol]
	c.mu.Unlock()
	if ok {
		return name, nil
	}

	for _, variant := range symbolVariants {
		candidate := symbol + variant
		if variant == "#" {
			candidate = "#" + symbol
		}

		if _, _, err := c.Quote(ctx, candidate); err == nil {
			c.logger.Debug().Str("symbol", symbol).Str("resolved", candidate).Msg("symbol resolved")
			c.mu.Lock()
			c.resolved[symbol] = candidate
			c.mu.Unlock()
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: symbol %s not found on broker", ErrUnavailable, symbol)
}

// Quote fetches the current bid/ask for a broker symbol name.
func (c *Client) Quote(ctx context.Context, brokerSymbol string) (bid, ask float64, err error) {
	var payload struct {
		Bid float64 `json:"bid"`
		Ask float64 `json:"ask"`
	}
	if err := c.getJSON(ctx, "/quote?symbol="+url.QueryEscape(brokerSymbol), &payload); err != nil {
		return 0, 0, err
	}
	if payload.Bid <= 0 || payload.Ask <= 0 {
		return 0, 0, fmt.Errorf("%w: empty quote for %s", ErrUnavailable, brokerSymbol)
	}
	return payload.Bid, payload.Ask, nil
}

// bridgeCandle is the wire format the bridge returns per bar.
type bridgeCandle struct {
	Time   int64   `json:"time"` // Unix seconds
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"tick_volume"`
}

// FetchCandles fetches count bars for a broker symbol and timeframe, oldest
// first, validating the OHLC shape of every bar at the boundary.
func (c *Client) FetchCandles(ctx context.Context, brokerSymbol string, tf marketdata.Timeframe, count int) ([]marketdata.Candle, error) {
	params := url.Values{}
	params.Set("symbol", brokerSymbol)
	params.Set("timeframe", string(tf))
	params.Set("count", strconv.Itoa(count))

	var raw []bridgeCandle
	if err := c.getJSON(ctx, "/candles?"+params.Encode(), &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no candles for %s %s", ErrUnavailable, brokerSymbol, tf)
	}

	barMillis := tf.Duration().Milliseconds()
	candles := make([]marketdata.Candle, 0, len(raw))
	for _, b := range raw {
		if b.High < b.Open || b.High < b.Close || b.Low > b.Open || b.Low > b.Close {
			return nil, fmt.Errorf("%w: malformed bar at %d for %s", ErrUnavailable, b.Time, brokerSymbol)
		}
		openTime := b.Time * 1000
		candles = append(candles, marketdata.Candle{
			OpenTime:  openTime,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
			CloseTime: openTime + barMillis,
		})
	}
	return candles, nil
}

// getJSON performs a GET under the fetch timeout and decodes the body.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	if !c.Configured() {
		return ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("bridge request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: parsing response: %v", ErrUnavailable, err)
	}
	return nil
}
