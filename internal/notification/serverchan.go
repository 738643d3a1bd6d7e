package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const defaultServerChanURL = "https://sctapi.ftqq.com"

// ServerChanConfig holds ServerChan (Turbo) configuration
type ServerChanConfig struct {
	SendKey string
	BaseURL string
	Enabled bool
}

// ServerChanNotifier pushes messages through ServerChan
type ServerChanNotifier struct {
	endpoint string
	enabled  bool
	client   *http.Client
}

// NewServerChanNotifier creates a ServerChan notifier. A nil client gets a
// 10s default.
func NewServerChanNotifier(cfg ServerChanConfig, client *http.Client) *ServerChanNotifier {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultServerChanURL
	}
	return &ServerChanNotifier{
		endpoint: fmt.Sprintf("%s/%s.send", base, cfg.SendKey),
		enabled:  cfg.Enabled && cfg.SendKey != "",
		client:   newHTTPClient(client),
	}
}

func (s *ServerChanNotifier) Name() string {
	return "serverchan"
}

func (s *ServerChanNotifier) IsEnabled() bool {
	return s.enabled
}

func (s *ServerChanNotifier) Send(ctx context.Context, title, content string) error {
	if !s.enabled {
		return nil
	}

	form := url.Values{}
	form.Set("title", title)
	form.Set("desp", content)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build serverchan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send serverchan message: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode serverchan response (status %d): %w", resp.StatusCode, err)
	}
	if result.Code != 0 {
		return fmt.Errorf("serverchan returned code %d: %s", result.Code, result.Message)
	}
	return nil
}
