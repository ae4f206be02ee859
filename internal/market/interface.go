package market

import "context"

// BridgeClient defines the interface for MT5 bridge operations
type BridgeClient interface {
	Connect(ctx context.Context, creds Credentials) error
	IsConnected() bool
	Ping(ctx context.Context) error
	GetAccountInfo(ctx context.Context) (*AccountInfo, error)
	VerifyTradingCapabilities(ctx context.Context) (*TradingCapabilities, error)
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	GetHistoricalData(ctx context.Context, symbol string, timeframeMinutes, count int) ([]Candle, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	CloseAllPositions(ctx context.Context) error
}

// Ensure both Client and SimClient implement BridgeClient
var _ BridgeClient = (*Client)(nil)
var _ BridgeClient = (*SimClient)(nil)
