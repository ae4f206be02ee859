package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"forex-trading-bot/config"
	"forex-trading-bot/internal/market"

	"github.com/hashicorp/vault/api"
)

// Client wraps the HashiCorp Vault client for bridge credential storage.
// With Vault disabled it degrades to an in-memory store so development setups
// need no Vault process.
type Client struct {
	client       *api.Client
	config       config.VaultConfig
	mu           sync.RWMutex
	cache        map[string]*market.Credentials // account name -> credentials
	cacheEnabled bool
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config:       cfg,
			cache:        make(map[string]*market.Credentials),
			cacheEnabled: true,
		}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client:       client,
		config:       cfg,
		cache:        make(map[string]*market.Credentials),
		cacheEnabled: true,
	}, nil
}

// StoreCredentials stores bridge credentials under an account name
func (c *Client) StoreCredentials(ctx context.Context, account string, creds market.Credentials) error {
	if !c.config.Enabled {
		c.mu.Lock()
		c.cache[account] = &creds
		c.mu.Unlock()
		return nil
	}

	path := c.secretPath(account)
	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"login":    creds.Login,
			"password": creds.Password,
			"server":   creds.Server,
		},
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, path, secretData); err != nil {
		return fmt.Errorf("failed to store credentials in vault: %w", err)
	}

	if c.cacheEnabled {
		c.mu.Lock()
		c.cache[account] = &creds
		c.mu.Unlock()
	}
	return nil
}

// GetCredentials retrieves bridge credentials for an account
func (c *Client) GetCredentials(ctx context.Context, account string) (*market.Credentials, error) {
	if c.cacheEnabled {
		c.mu.RLock()
		if cached, ok := c.cache[account]; ok {
			c.mu.RUnlock()
			copied := *cached
			return &copied, nil
		}
		c.mu.RUnlock()
	}

	if !c.config.Enabled {
		return nil, fmt.Errorf("credentials for %q not found and vault is disabled", account)
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath(account))
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("credentials for %q not found", account)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	creds := &market.Credentials{
		Login:    getInt64(data, "login"),
		Password: getString(data, "password"),
		Server:   getString(data, "server"),
	}

	if c.cacheEnabled {
		c.mu.Lock()
		c.cache[account] = creds
		c.mu.Unlock()
	}

	copied := *creds
	return &copied, nil
}

// DeleteCredentials removes credentials for an account
func (c *Client) DeleteCredentials(ctx context.Context, account string) error {
	c.mu.Lock()
	delete(c.cache, account)
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	if _, err := c.client.Logical().DeleteWithContext(ctx, c.metadataPath(account)); err != nil {
		return fmt.Errorf("failed to delete credentials from vault: %w", err)
	}
	return nil
}

// ClearCache clears the in-memory cache
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]*market.Credentials)
	c.mu.Unlock()
}

// SetCacheEnabled enables or disables caching
func (c *Client) SetCacheEnabled(enabled bool) {
	c.mu.Lock()
	c.cacheEnabled = enabled
	c.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().Health()
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

func (c *Client) secretPath(account string) string {
	return fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, account)
}

func (c *Client) metadataPath(account string) string {
	return fmt.Sprintf("%s/metadata/%s/%s", c.config.MountPath, c.config.SecretPath, account)
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func getInt64(data map[string]interface{}, key string) int64 {
	switch v := data[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		var n int64
		fmt.Sscanf(v, "%d", &n)
		return n
	}
	return 0
}

// NewMockClient creates a disabled-vault client for testing
func NewMockClient() *Client {
	return &Client{
		config:       config.VaultConfig{Enabled: false},
		cache:        make(map[string]*market.Credentials),
		cacheEnabled: true,
	}
}
