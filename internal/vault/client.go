package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/vault/api"
)

// ErrNotFound is returned when the secret path holds no data
var ErrNotFound = errors.New("secret not found")

// Config holds Vault connection settings
type Config struct {
	Enabled    bool
	Address    string
	Token      string
	MountPath  string // KV v2 mount, e.g. "secret"
	SecretPath string // path under the mount, e.g. "pinbar-bot"
	TLSEnabled bool
	CACert     string
}

// Secrets are the credentials the bot can pull from Vault. Empty fields
// leave the file/env configuration untouched.
type Secrets struct {
	BinanceAPIKey     string `json:"binance_api_key"`
	BinanceSecretKey  string `json:"binance_secret_key"`
	ServerChanKey     string `json:"serverchan_sendkey"`
	WeChatCorpID      string `json:"wechatwork_corpid"`
	WeChatSecret      string `json:"wechatwork_secret"`
	TelegramBotToken  string `json:"telegram_bot_token"`
	DiscordWebhookURL string `json:"discord_webhook_url"`
	PostgresPassword  string `json:"postgres_password"`
	RedisPassword     string `json:"redis_password"`
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client *api.Client
	config Config
	mu     sync.RWMutex
	cached *Secrets
}

// NewClient creates a new Vault client. A disabled config yields a client
// whose LoadSecrets returns empty secrets.
func NewClient(cfg Config) (*Client, error) {
	if cfg.MountPath == "" {
		cfg.MountPath = "secret"
	}
	if cfg.SecretPath == "" {
		cfg.SecretPath = "pinbar-bot"
	}
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
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
		client: client,
		config: cfg,
	}, nil
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// LoadSecrets reads the bot's KV v2 secret. Results are cached until
// ClearCache.
func (c *Client) LoadSecrets(ctx context.Context) (*Secrets, error) {
	c.mu.RLock()
	if c.cached != nil {
		s := *c.cached
		c.mu.RUnlock()
		return &s, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return &Secrets{}, nil
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%s: %w", c.secretPath(), ErrNotFound)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format at %s", c.secretPath())
	}

	parsed := parseSecrets(data)
	c.mu.Lock()
	c.cached = parsed
	c.mu.Unlock()

	s := *parsed
	return &s, nil
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

// secretPath returns the KV v2 data path
func (c *Client) secretPath() string {
	return fmt.Sprintf("%s/data/%s", strings.Trim(c.config.MountPath, "/"), strings.Trim(c.config.SecretPath, "/"))
}

func parseSecrets(data map[string]interface{}) *Secrets {
	return &Secrets{
		BinanceAPIKey:     getString(data, "binance_api_key"),
		BinanceSecretKey:  getString(data, "binance_secret_key"),
		ServerChanKey:     getString(data, "serverchan_sendkey"),
		WeChatCorpID:      getString(data, "wechatwork_corpid"),
		WeChatSecret:      getString(data, "wechatwork_secret"),
		TelegramBotToken:  getString(data, "telegram_bot_token"),
		DiscordWebhookURL: getString(data, "discord_webhook_url"),
		PostgresPassword:  getString(data, "postgres_password"),
		RedisPassword:     getString(data, "redis_password"),
	}
}

// Helper functions
func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
