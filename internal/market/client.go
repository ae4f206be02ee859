package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Client is an HTTP client for the MT5 bridge service.
// The bridge authenticates once per account and hands back a session id that
// all subsequent calls carry.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.RWMutex
	sessionID string
	connected bool
}

// NewClient creates a new bridge client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type connectResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
	Error     string `json:"error"`
}

// Connect authenticates against the MT5 terminal through the bridge.
// On failure no session is kept and the broker error is returned as-is.
func (c *Client) Connect(ctx context.Context, creds Credentials) error {
	var resp connectResponse
	if err := c.post(ctx, "/mt5/connect", creds, &resp); err != nil {
		return fmt.Errorf("bridge connect failed: %w", err)
	}
	if !resp.Success {
		if resp.Error == "" {
			resp.Error = "authentication rejected by broker"
		}
		return fmt.Errorf("bridge connect failed: %s", resp.Error)
	}

	c.mu.Lock()
	c.sessionID = resp.SessionID
	c.connected = true
	c.mu.Unlock()

	return nil
}

// IsConnected reports whether an authenticated session is held
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Ping probes the bridge root endpoint. The caller bounds the probe with its
// context; a timeout is a failed probe, not a fatal error.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bridge unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge probe returned status %d", resp.StatusCode)
	}
	return nil
}

// GetAccountInfo fetches account state for the current session
func (c *Client) GetAccountInfo(ctx context.Context) (*AccountInfo, error) {
	sessionID, err := c.session()
	if err != nil {
		return nil, err
	}

	var resp struct {
		Success bool        `json:"success"`
		Account AccountInfo `json:"account"`
		Error   string      `json:"error"`
	}
	body := map[string]string{"session_id": sessionID}
	if err := c.post(ctx, "/mt5/account_info", body, &resp); err != nil {
		return nil, fmt.Errorf("error fetching account info: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("account info rejected: %s", resp.Error)
	}
	return &resp.Account, nil
}

// VerifyTradingCapabilities checks margin and trade permission on the account
func (c *Client) VerifyTradingCapabilities(ctx context.Context) (*TradingCapabilities, error) {
	info, err := c.GetAccountInfo(ctx)
	if err != nil {
		return nil, err
	}

	caps := &TradingCapabilities{CanTrade: true}
	if !info.TradeAllowed {
		caps.CanTrade = false
		caps.Issues = append(caps.Issues, "trading is disabled on this account")
	}
	if info.FreeMargin <= 0 {
		caps.CanTrade = false
		caps.Issues = append(caps.Issues, "no free margin available")
	}
	if info.Balance <= 0 {
		caps.CanTrade = false
		caps.Issues = append(caps.Issues, "account balance is zero")
	}
	return caps, nil
}

// GetCurrentPrice fetches the latest mid price for a symbol
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	endpoint := fmt.Sprintf("%s/mt5/price?symbol=%s", c.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error fetching price: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("bridge error: %s", string(data))
	}

	var priceResp struct {
		Symbol string  `json:"symbol"`
		Bid    float64 `json:"bid"`
		Ask    float64 `json:"ask"`
	}
	if err := json.Unmarshal(data, &priceResp); err != nil {
		return 0, fmt.Errorf("error parsing price: %w", err)
	}
	return (priceResp.Bid + priceResp.Ask) / 2, nil
}

type historyCandle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"tick_volume"`
}

// GetHistoricalData fetches candles for a symbol and timeframe.
// A nil slice with no error means the bridge had no data for the request.
func (c *Client) GetHistoricalData(ctx context.Context, symbol string, timeframeMinutes, count int) ([]Candle, error) {
	sessionID, err := c.session()
	if err != nil {
		return nil, err
	}

	var resp struct {
		Success bool            `json:"success"`
		Candles []historyCandle `json:"candles"`
		Error   string          `json:"error"`
	}
	body := map[string]interface{}{
		"session_id": sessionID,
		"symbol":     symbol,
		"timeframe":  fmt.Sprintf("M%d", timeframeMinutes),
		"count":      count,
	}
	if err := c.post(ctx, "/mt5/history", body, &resp); err != nil {
		return nil, fmt.Errorf("error fetching history: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("history rejected: %s", resp.Error)
	}

	candles := make([]Candle, len(resp.Candles))
	for i, h := range resp.Candles {
		candles[i] = Candle{
			Open:      h.Open,
			High:      h.High,
			Low:       h.Low,
			Close:     h.Close,
			Volume:    h.Volume,
			Timestamp: time.Unix(h.Time, 0).UTC(),
		}
	}
	return candles, nil
}

// PlaceOrder submits a market order through the bridge
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	sessionID, err := c.session()
	if err != nil {
		return nil, err
	}

	orderType := 0 // bridge convention: 0=BUY, 1=SELL
	if req.Side == OrderSell {
		orderType = 1
	}

	var resp struct {
		Success bool        `json:"success"`
		Order   OrderResult `json:"order"`
		Error   string      `json:"error"`
	}
	body := map[string]interface{}{
		"session_id": sessionID,
		"symbol":     req.Symbol,
		"type":       orderType,
		"volume":     req.Volume,
		"sl":         req.StopLoss,
		"tp":         req.TakeProfit,
		"comment":    req.Comment,
	}
	if err := c.post(ctx, "/mt5/place_order", body, &resp); err != nil {
		return nil, fmt.Errorf("error placing order: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("order rejected: %s", resp.Error)
	}
	return &resp.Order, nil
}

// CloseAllPositions closes every open position on the session
func (c *Client) CloseAllPositions(ctx context.Context) error {
	sessionID, err := c.session()
	if err != nil {
		return err
	}

	var resp struct {
		Success bool   `json:"success"`
		Closed  int    `json:"closed"`
		Error   string `json:"error"`
	}
	body := map[string]string{"session_id": sessionID}
	if err := c.post(ctx, "/mt5/close_all", body, &resp); err != nil {
		return fmt.Errorf("error closing positions: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("close all rejected: %s", resp.Error)
	}
	return nil
}

func (c *Client) session() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected || c.sessionID == "" {
		return "", fmt.Errorf("not connected to bridge")
	}
	return c.sessionID, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge error: %s", string(data))
	}
	return json.Unmarshal(data, out)
}
