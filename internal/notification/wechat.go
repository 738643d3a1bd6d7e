package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

const (
	defaultWeChatWorkURL = "https://qyapi.weixin.qq.com"
	defaultCardURL       = "https://www.binance.com/en/futures"

	errcodeInvalidToken = 40014
	errcodeTokenExpired = 42001
)

// WeChatWorkConfig holds WeChat Work application message configuration
type WeChatWorkConfig struct {
	CorpID  string
	Secret  string
	AgentID int
	ToUser  string
	CardURL string
	BaseURL string
	Enabled bool
}

// WeChatWorkNotifier sends textcard messages through a WeChat Work app.
// The access token is fetched lazily and cached until the API rejects it.
type WeChatWorkNotifier struct {
	cfg     WeChatWorkConfig
	baseURL string
	enabled bool
	client  *http.Client

	mu    sync.Mutex
	token string
}

type wechatResponse struct {
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
	AccessToken string `json:"access_token"`
}

// NewWeChatWorkNotifier creates a WeChat Work notifier
func NewWeChatWorkNotifier(cfg WeChatWorkConfig, client *http.Client) *WeChatWorkNotifier {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultWeChatWorkURL
	}
	if cfg.ToUser == "" {
		cfg.ToUser = "@all"
	}
	if cfg.CardURL == "" {
		cfg.CardURL = defaultCardURL
	}
	return &WeChatWorkNotifier{
		cfg:     cfg,
		baseURL: base,
		enabled: cfg.Enabled && cfg.CorpID != "" && cfg.Secret != "",
		client:  newHTTPClient(client),
	}
}

func (w *WeChatWorkNotifier) Name() string {
	return "wechatwork"
}

func (w *WeChatWorkNotifier) IsEnabled() bool {
	return w.enabled
}

func (w *WeChatWorkNotifier) Send(ctx context.Context, title, content string) error {
	if !w.enabled {
		return nil
	}

	token, err := w.accessToken(ctx, false)
	if err != nil {
		return err
	}

	result, err := w.post(ctx, token, title, content)
	if err != nil {
		return err
	}
	if result.ErrCode == errcodeTokenExpired || result.ErrCode == errcodeInvalidToken {
		// Refresh once; a second rejection is reported as is.
		token, err = w.accessToken(ctx, true)
		if err != nil {
			return err
		}
		result, err = w.post(ctx, token, title, content)
		if err != nil {
			return err
		}
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("wechat work returned errcode %d: %s", result.ErrCode, result.ErrMsg)
	}
	return nil
}

func (w *WeChatWorkNotifier) accessToken(ctx context.Context, refresh bool) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.token != "" && !refresh {
		return w.token, nil
	}

	q := url.Values{}
	q.Set("corpid", w.cfg.CorpID)
	q.Set("corpsecret", w.cfg.Secret)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/cgi-bin/gettoken?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build gettoken request: %w", err)
	}

	var result wechatResponse
	if err := w.do(req, &result); err != nil {
		return "", fmt.Errorf("failed to fetch wechat work token: %w", err)
	}
	if result.ErrCode != 0 || result.AccessToken == "" {
		w.token = ""
		return "", fmt.Errorf("wechat work gettoken errcode %d: %s", result.ErrCode, result.ErrMsg)
	}
	w.token = result.AccessToken
	return w.token, nil
}

func (w *WeChatWorkNotifier) post(ctx context.Context, token, title, content string) (*wechatResponse, error) {
	payload := map[string]interface{}{
		"touser":  w.cfg.ToUser,
		"msgtype": "textcard",
		"agentid": w.cfg.AgentID,
		"textcard": map[string]string{
			"title":       title,
			"description": content,
			"url":         w.cfg.CardURL,
			"btntxt":      "详情",
		},
		"safe": 0,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal wechat work payload: %w", err)
	}

	endpoint := w.baseURL + "/cgi-bin/message/send?access_token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build wechat work request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result wechatResponse
	if err := w.do(req, &result); err != nil {
		return nil, fmt.Errorf("failed to send wechat work message: %w", err)
	}
	return &result, nil
}

func (w *WeChatWorkNotifier) do(req *http.Request, out *wechatResponse) error {
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}
