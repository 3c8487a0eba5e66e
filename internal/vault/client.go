// Package vault retrieves wallet signing key material from HashiCorp Vault,
// adapted from the teacher's exchange-API-key client to the engine's
// wallet-keys configuration surface. When disabled, keys are read straight
// from config (spec.md §6: `wallet_keys`).
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"
)

// Config controls whether Vault backs wallet key retrieval at all.
type Config struct {
	Enabled    bool
	Address    string
	Token      string
	MountPath  string
	SecretPath string
	TLSEnabled bool
	CACert     string
}

// WalletKeyMaterial is the signing material for one wallet.
type WalletKeyMaterial struct {
	Address    string `json:"address"`
	PrivateKey string `json:"private_key"`
}

// Client wraps the HashiCorp Vault client with an in-memory cache, matching
// the teacher's cache-then-fetch shape (internal/vault/client.go).
type Client struct {
	client *api.Client
	config Config

	mu    sync.RWMutex
	cache map[string]*WalletKeyMaterial
}

func NewClient(cfg Config) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg, cache: make(map[string]*WalletKeyMaterial)}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address
	if cfg.TLSEnabled && cfg.CACert != "" {
		if err := vaultConfig.ConfigureTLS(&api.TLSConfig{CACert: cfg.CACert}); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &Client{client: client, config: cfg, cache: make(map[string]*WalletKeyMaterial)}, nil
}

func (c *Client) secretPath(address string) string {
	return fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, address)
}

// WalletKey fetches (and caches) the signing key material for one wallet
// address. When Vault is disabled, callers must already hold the key
// material from config and should not call this.
func (c *Client) WalletKey(ctx context.Context, address string) (*WalletKeyMaterial, error) {
	c.mu.RLock()
	if cached, ok := c.cache[address]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return nil, fmt.Errorf("wallet key for %s not found and vault is disabled", address)
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath(address))
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet key from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("wallet key for %s not found", address)
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format for wallet %s", address)
	}

	key := &WalletKeyMaterial{
		Address:    address,
		PrivateKey: getString(data, "private_key"),
	}

	c.mu.Lock()
	c.cache[address] = key
	c.mu.Unlock()

	return key, nil
}

// StoreWalletKey writes signing key material for one wallet, used once at
// provisioning time.
func (c *Client) StoreWalletKey(ctx context.Context, key WalletKeyMaterial) error {
	if !c.config.Enabled {
		c.mu.Lock()
		c.cache[key.Address] = &key
		c.mu.Unlock()
		return nil
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"private_key": key.PrivateKey,
		},
	}
	if _, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(key.Address), secretData); err != nil {
		return fmt.Errorf("failed to store wallet key in vault: %w", err)
	}

	c.mu.Lock()
	c.cache[key.Address] = &key
	c.mu.Unlock()
	return nil
}

func (c *Client) IsEnabled() bool { return c.config.Enabled }

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

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
