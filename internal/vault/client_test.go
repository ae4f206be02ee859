package vault

import (
	"context"
	"testing"

	"forex-trading-bot/internal/market"
)

func TestDisabledVaultUsesMemoryStore(t *testing.T) {
	ctx := context.Background()
	c := NewMockClient()

	creds := market.Credentials{Login: 5021337, Password: "secret", Server: "Broker-Demo"}
	if err := c.StoreCredentials(ctx, "demo", creds); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	got, err := c.GetCredentials(ctx, "demo")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Login != creds.Login || got.Server != creds.Server {
		t.Errorf("round trip mismatch: %+v", got)
	}

	// Returned credentials are copies
	got.Password = "mutated"
	again, _ := c.GetCredentials(ctx, "demo")
	if again.Password != "secret" {
		t.Error("mutating returned credentials must not affect the store")
	}

	if _, err := c.GetCredentials(ctx, "missing"); err == nil {
		t.Error("unknown account should error with vault disabled")
	}
}

func TestDeleteCredentials(t *testing.T) {
	ctx := context.Background()
	c := NewMockClient()

	c.StoreCredentials(ctx, "demo", market.Credentials{Login: 1})
	if err := c.DeleteCredentials(ctx, "demo"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := c.GetCredentials(ctx, "demo"); err == nil {
		t.Error("deleted credentials should be gone")
	}
}

func TestHealthNoopWhenDisabled(t *testing.T) {
	c := NewMockClient()
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("disabled vault health should be a no-op, got %v", err)
	}
	if c.IsEnabled() {
		t.Error("mock client should report disabled")
	}
}
