package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"pinbar-signal-bot/internal/logging"
	"pinbar-signal-bot/internal/models"
)

type stubNotifier struct {
	name    string
	enabled bool
	err     error
	calls   int
}

func (s *stubNotifier) Name() string    { return s.name }
func (s *stubNotifier) IsEnabled() bool { return s.enabled }
func (s *stubNotifier) Send(ctx context.Context, title, content string) error {
	s.calls++
	return s.err
}

func TestManagerAnySucceeds(t *testing.T) {
	tests := []struct {
		name      string
		notifiers []*stubNotifier
		want      bool
	}{
		{"no channels", nil, false},
		{"all fail", []*stubNotifier{
			{name: "a", enabled: true, err: errors.New("down")},
			{name: "b", enabled: true, err: errors.New("down")},
		}, false},
		{"one succeeds", []*stubNotifier{
			{name: "a", enabled: true, err: errors.New("down")},
			{name: "b", enabled: true},
		}, true},
		{"disabled success is ignored", []*stubNotifier{
			{name: "a", enabled: true, err: errors.New("down")},
			{name: "b", enabled: false},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(logging.Nop())
			for _, n := range tt.notifiers {
				m.AddNotifier(n)
			}
			if got := m.Send(context.Background(), "t", "c"); got != tt.want {
				t.Errorf("Send() = %v, want %v", got, tt.want)
			}
			for _, n := range tt.notifiers {
				if !n.enabled && n.calls != 0 {
					t.Errorf("disabled notifier %s was called", n.name)
				}
				if n.enabled && n.calls != 1 {
					t.Errorf("notifier %s called %d times, want 1", n.name, n.calls)
				}
			}
		})
	}
}

func TestFormatSignalMessage(t *testing.T) {
	sig := &models.TradingSignal{
		Symbol:       "BTCUSDT",
		Timeframe:    "1h",
		Direction:    models.DirectionBullish,
		Pattern:      "pin_bar",
		EntryPrice:   100.5,
		StopLoss:     90,
		TakeProfit:   110,
		PositionSize: 100,
		Leverage:     1,
		Confidence:   0.3,
	}
	title, body := FormatSignalMessage(sig)
	if title != "BTCUSDT 1h 信号" {
		t.Errorf("unexpected title %q", title)
	}
	for _, want := range []string{"多⬆️", "入场点位：100.5", "止盈点位：110", "盈利点数：9.5", "亏损点数：10.5", "杠杆：1x"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}

	title, body = FormatErrorMessage("ETHUSDT", "4h", errors.New("timeout"))
	if title != "分析错误" || body != "ETHUSDT 4h 分析失败: timeout" {
		t.Errorf("unexpected error message %q / %q", title, body)
	}
}

func TestServerChanNotifier(t *testing.T) {
	var gotPath, gotTitle, gotDesp string
	code := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotTitle = r.PostForm.Get("title")
		gotDesp = r.PostForm.Get("desp")
		json.NewEncoder(w).Encode(map[string]interface{}{"code": code, "message": "msg"})
	}))
	defer srv.Close()

	n := NewServerChanNotifier(ServerChanConfig{SendKey: "SCT123", BaseURL: srv.URL, Enabled: true}, srv.Client())
	if err := n.Send(context.Background(), "title", "body"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/SCT123.send" || gotTitle != "title" || gotDesp != "body" {
		t.Errorf("unexpected request path=%q title=%q desp=%q", gotPath, gotTitle, gotDesp)
	}

	code = 40001
	if err := n.Send(context.Background(), "title", "body"); err == nil {
		t.Error("expected error for non-zero code")
	}
}

func TestServerChanDisabledWithoutKey(t *testing.T) {
	n := NewServerChanNotifier(ServerChanConfig{Enabled: true}, nil)
	if n.IsEnabled() {
		t.Error("notifier without send key should be disabled")
	}
}

func TestWeChatWorkRefreshesExpiredToken(t *testing.T) {
	var tokenCalls, sendCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cgi-bin/gettoken":
			n := atomic.AddInt32(&tokenCalls, 1)
			if r.URL.Query().Get("corpid") != "corp" {
				t.Errorf("missing corpid")
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"errcode": 0, "access_token": "tok" + string(rune('0'+n))})
		case "/cgi-bin/message/send":
			atomic.AddInt32(&sendCalls, 1)
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			if body["msgtype"] != "textcard" || body["touser"] != "@all" {
				t.Errorf("unexpected payload %v", body)
			}
			if r.URL.Query().Get("access_token") == "tok1" {
				json.NewEncoder(w).Encode(map[string]interface{}{"errcode": 42001, "errmsg": "access_token expired"})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"errcode": 0, "errmsg": "ok"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	n := NewWeChatWorkNotifier(WeChatWorkConfig{CorpID: "corp", Secret: "s", AgentID: 1000002, BaseURL: srv.URL, Enabled: true}, srv.Client())
	if err := n.Send(context.Background(), "title", "body"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if tokenCalls != 2 || sendCalls != 2 {
		t.Errorf("expected 2 token and 2 send calls, got %d/%d", tokenCalls, sendCalls)
	}

	// cached token is reused
	if err := n.Send(context.Background(), "title", "body"); err != nil {
		t.Fatalf("second Send: %v", err)
	}
	if tokenCalls != 2 {
		t.Errorf("expected cached token, got %d token calls", tokenCalls)
	}
}

func TestWeChatWorkRetriesOnlyOnce(t *testing.T) {
	var sendCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/cgi-bin/gettoken" {
			json.NewEncoder(w).Encode(map[string]interface{}{"errcode": 0, "access_token": "tok"})
			return
		}
		atomic.AddInt32(&sendCalls, 1)
		json.NewEncoder(w).Encode(map[string]interface{}{"errcode": 40014, "errmsg": "invalid access_token"})
	}))
	defer srv.Close()

	n := NewWeChatWorkNotifier(WeChatWorkConfig{CorpID: "corp", Secret: "s", BaseURL: srv.URL, Enabled: true}, srv.Client())
	if err := n.Send(context.Background(), "title", "body"); err == nil {
		t.Fatal("expected error after second rejection")
	}
	if sendCalls != 2 {
		t.Errorf("expected exactly 2 send attempts, got %d", sendCalls)
	}
}

func TestTelegramAndDiscord(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if strings.HasPrefix(r.URL.Path, "/webhook") {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegramNotifier(TelegramConfig{BotToken: "abc", ChatID: "1", BaseURL: srv.URL, Enabled: true}, srv.Client())
	if err := tg.Send(context.Background(), "t", "c"); err != nil {
		t.Fatalf("telegram: %v", err)
	}
	dc := NewDiscordNotifier(DiscordConfig{WebhookURL: srv.URL + "/webhook/1", Enabled: true}, srv.Client())
	if err := dc.Send(context.Background(), "t", "c"); err != nil {
		t.Fatalf("discord: %v", err)
	}
	if len(paths) != 2 || paths[0] != "/botabc/sendMessage" || paths[1] != "/webhook/1" {
		t.Errorf("unexpected paths %v", paths)
	}
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaNotifier(t *testing.T) {
	fw := &fakeWriter{}
	n := &KafkaNotifier{writer: fw, topic: "signals", enabled: true, now: func() time.Time {
		return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	}}

	if err := n.Send(context.Background(), "BTCUSDT 1h 信号", "body"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(fw.msgs) != 1 || string(fw.msgs[0].Key) != "BTCUSDT 1h 信号" {
		t.Fatalf("unexpected messages %+v", fw.msgs)
	}
	var p kafkaPayload
	if err := json.Unmarshal(fw.msgs[0].Value, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Content != "body" || !p.Timestamp.Equal(n.now()) {
		t.Errorf("unexpected payload %+v", p)
	}

	fw.err = errors.New("broker down")
	if err := n.Send(context.Background(), "t", "c"); err == nil {
		t.Error("expected write error")
	}
}

func TestKafkaDisabledWithoutBrokers(t *testing.T) {
	n := NewKafkaNotifier(KafkaConfig{Topic: "signals", Enabled: true})
	if n.IsEnabled() {
		t.Error("expected disabled notifier")
	}
	if err := n.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
