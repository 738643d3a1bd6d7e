package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultTelegramURL = "https://api.telegram.org"

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramNotifier sends notifications via Telegram
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	enabled  bool
	client   *http.Client
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Enabled  bool
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig, client *http.Client) *TelegramNotifier {
	base := strings.TrimRight(config.BaseURL, "/")
	if base == "" {
		base = defaultTelegramURL
	}
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		baseURL:  base,
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   newHTTPClient(client),
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(ctx context.Context, title, content string) error {
	if !t.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       fmt.Sprintf("*%s*\n\n%s", title, content),
		"parse_mode": "Markdown",
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	status, err := postJSON(ctx, t.client, url, payload)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", status)
	}
	return nil
}

// =============================================================================
// DISCORD NOTIFIER
// =============================================================================

// DiscordNotifier sends notifications via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
	now        func() time.Time
}

// DiscordConfig holds Discord configuration
type DiscordConfig struct {
	WebhookURL string
	Enabled    bool
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(config DiscordConfig, client *http.Client) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: config.WebhookURL,
		enabled:    config.Enabled && config.WebhookURL != "",
		client:     newHTTPClient(client),
		now:        time.Now,
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func (d *DiscordNotifier) Send(ctx context.Context, title, content string) error {
	if !d.enabled {
		return nil
	}

	color := 0x00FF00 // Green
	switch {
	case strings.Contains(title, "错误"):
		color = 0xFF0000
	case strings.Contains(content, "空⬇️"):
		color = 0xFF8C00
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{{
			"title":       title,
			"description": content,
			"color":       color,
			"timestamp":   d.now().UTC().Format(time.RFC3339),
		}},
	}

	status, err := postJSON(ctx, d.client, d.webhookURL, payload)
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", status)
	}
	return nil
}

func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}) (int, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
