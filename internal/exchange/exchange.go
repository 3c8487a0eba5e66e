// Package exchange provides the two external collaborators spec.md treats
// as opaque: Swap (on-chain execution) and PriceSource (candle/tick
// acquisition), adapted from the teacher's HTTP client idiom
// (internal/binance) to a single-pair on-chain venue.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/buzzkillb/tirade-engine/internal/domain"
)

// Config holds the HTTP venue client's tunables.
type Config struct {
	BaseURL            string
	APIKey             string
	EnableExecution    bool
	SlippageTolerance  float64 // fraction, e.g. 0.005
	VerifyAttempts     int     // default 12
	VerifyIntervalSecs int     // default 5
	BaseTolerance      float64 // default 0.001 SOL
	QuoteTolerance     float64 // default 0.01 USDC
}

func DefaultConfig() Config {
	return Config{
		EnableExecution:    true,
		SlippageTolerance:  0.005,
		VerifyAttempts:     12,
		VerifyIntervalSecs: 5,
		BaseTolerance:      0.001,
		QuoteTolerance:     0.01,
	}
}

// SlippageBps converts the fraction tolerance to floored basis points, per
// the implementer decision recorded in DESIGN.md.
func (c Config) SlippageBps() float64 {
	return math.Floor(c.SlippageTolerance * 10000)
}

// VenueClient is the HTTP transport shared by the live Swap and PriceSource
// implementations, mirroring the teacher's bounded-timeout *http.Client
// pattern.
type VenueClient struct {
	cfg        Config
	httpClient *http.Client
}

func NewVenueClient(cfg Config) *VenueClient {
	return &VenueClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type quoteSubmitResponse struct {
	Success    bool     `json:"success"`
	Signature  string   `json:"signature"`
	ExecPrice  *float64 `json:"execPrice"`
	BaseDelta  *float64 `json:"baseDelta"`
	QuoteDelta *float64 `json:"quoteDelta"`
	Error      string   `json:"error"`
}

// Execute quotes, signs, submits, and confirms a swap for one wallet, then
// polls the wallet's balance up to VerifyAttempts times at
// VerifyIntervalSecs seconds apart expecting a change past tolerance --
// spec.md §5's balance-change verification.
func (v *VenueClient) Execute(ctx context.Context, wallet domain.Wallet, direction domain.SwapDirection, qtyOrQuote float64, slippageBps float64, dryRun bool) (domain.SwapResult, error) {
	if dryRun || !v.cfg.EnableExecution {
		return simulateSwap(direction, qtyOrQuote), nil
	}

	before, err := v.BalanceOf(ctx, wallet)
	if err != nil {
		return domain.SwapResult{}, fmt.Errorf("%w: pre-swap balance read", domain.ErrTransientIO)
	}

	swapCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	payload, _ := json.Marshal(map[string]interface{}{
		"wallet":      wallet.Address,
		"direction":   direction,
		"qtyOrQuote":  qtyOrQuote,
		"slippageBps": slippageBps,
	})
	req, err := http.NewRequestWithContext(swapCtx, http.MethodPost, v.cfg.BaseURL+"/swap", bytes.NewReader(payload))
	if err != nil {
		return domain.SwapResult{}, fmt.Errorf("%w: build swap request", domain.ErrInput)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.cfg.APIKey)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return domain.SwapResult{}, fmt.Errorf("%w: submit swap", domain.ErrSwap)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.SwapResult{}, fmt.Errorf("%w: read swap response", domain.ErrSwap)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.SwapResult{Success: false, Error: fmt.Errorf("%w: venue status %d", domain.ErrSwap, resp.StatusCode)}, nil
	}

	var parsed quoteSubmitResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.SwapResult{Success: false, Error: fmt.Errorf("%w: unparseable swap response", domain.ErrSwap)}, nil
	}
	if !parsed.Success {
		return domain.SwapResult{Success: false, Error: fmt.Errorf("%w: %s", domain.ErrSwap, parsed.Error)}, nil
	}

	changed, err := v.awaitBalanceChange(ctx, wallet, before)
	if err != nil {
		return domain.SwapResult{}, err
	}
	if !changed {
		return domain.SwapResult{Success: false, Error: fmt.Errorf("%w: no observable balance change", domain.ErrSwap)}, nil
	}

	return domain.SwapResult{
		Success:    true,
		Signature:  parsed.Signature,
		ExecPrice:  parsed.ExecPrice,
		BaseDelta:  parsed.BaseDelta,
		QuoteDelta: parsed.QuoteDelta,
	}, nil
}

func (v *VenueClient) awaitBalanceChange(ctx context.Context, wallet domain.Wallet, before domain.Balance) (bool, error) {
	attempts := v.cfg.VerifyAttempts
	if attempts <= 0 {
		attempts = 12
	}
	interval := time.Duration(v.cfg.VerifyIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(interval):
		}
		after, err := v.BalanceOf(ctx, wallet)
		if err != nil {
			continue
		}
		if math.Abs(after.Base-before.Base) > v.cfg.BaseTolerance || math.Abs(after.Quote-before.Quote) > v.cfg.QuoteTolerance {
			return true, nil
		}
	}
	return false, nil
}

func (v *VenueClient) BalanceOf(ctx context.Context, wallet domain.Wallet) (domain.Balance, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	endpoint := fmt.Sprintf("%s/balance?wallet=%s", v.cfg.BaseURL, url.QueryEscape(wallet.Address))
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("%w: build balance request", domain.ErrInput)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("%w: fetch balance", domain.ErrTransientIO)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("%w: read balance response", domain.ErrTransientIO)
	}
	var bal domain.Balance
	if err := json.Unmarshal(body, &bal); err != nil {
		return domain.Balance{}, fmt.Errorf("%w: unparseable balance response", domain.ErrTransientIO)
	}
	return bal, nil
}

func simulateSwap(direction domain.SwapDirection, qtyOrQuote float64) domain.SwapResult {
	var baseDelta, quoteDelta float64
	switch direction {
	case domain.QuoteIn:
		quoteDelta = -qtyOrQuote
		baseDelta = qtyOrQuote
	case domain.BaseIn:
		baseDelta = -qtyOrQuote
		quoteDelta = qtyOrQuote
	}
	return domain.SwapResult{Success: true, Signature: "dry-run", BaseDelta: &baseDelta, QuoteDelta: &quoteDelta}
}

var _ domain.Swap = (*VenueClient)(nil)

type candleResponse struct {
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Timestamp string  `json:"timestamp"`
}

type tickResponse struct {
	Price     float64 `json:"price"`
	Timestamp string  `json:"timestamp"`
	Source    string  `json:"source"`
}

// FetchCandles fetches OHLCV candles for a pair at the caller's interval and
// limit (the engine asks for 1-minute bars, up to 200 samples).
func (v *VenueClient) FetchCandles(ctx context.Context, pair string, interval string, limit int) ([]domain.Candle, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	params := url.Values{}
	params.Set("pair", pair)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))
	endpoint := fmt.Sprintf("%s/candles?%s", v.cfg.BaseURL, params.Encode())

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build candles request", domain.ErrInput)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch candles", domain.ErrTransientIO)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read candles response", domain.ErrTransientIO)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: venue status %d fetching candles", domain.ErrTransientIO, resp.StatusCode)
	}

	var raw []candleResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: unparseable candles response", domain.ErrTransientIO)
	}

	out := make([]domain.Candle, 0, len(raw))
	for _, c := range raw {
		ts, err := time.Parse(time.RFC3339, c.Timestamp)
		if err != nil {
			continue
		}
		out = append(out, domain.Candle{Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume, Timestamp: ts})
	}
	return out, nil
}

// FetchRaw fetches raw ticks for a pair; the engine falls back to it when
// no candle history is available.
func (v *VenueClient) FetchRaw(ctx context.Context, pair string) ([]domain.PriceTick, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	endpoint := fmt.Sprintf("%s/ticks?pair=%s", v.cfg.BaseURL, url.QueryEscape(pair))
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build ticks request", domain.ErrInput)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch ticks", domain.ErrTransientIO)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read ticks response", domain.ErrTransientIO)
	}

	var raw []tickResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: unparseable ticks response", domain.ErrTransientIO)
	}

	out := make([]domain.PriceTick, 0, len(raw))
	for _, t := range raw {
		ts, err := time.Parse(time.RFC3339, t.Timestamp)
		if err != nil {
			continue
		}
		out = append(out, domain.PriceTick{Pair: pair, Price: t.Price, Timestamp: ts, Source: t.Source})
	}
	return out, nil
}

var _ domain.PriceSource = (*VenueClient)(nil)
