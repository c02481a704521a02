package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LeventeLantos/whatsapp-dispatcher/internal/config"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/phone"
)

func TestLoggingMiddleware_PassesThroughAndCapturesStatus(t *testing.T) {
	handler := loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}

	if body := rr.Body.String(); body != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", body)
	}
}

func TestStatusRecorder_DefaultsTo200(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: rr, status: http.StatusOK}

	_, _ = rec.Write([]byte("x"))
	if rec.status != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.status)
	}
}

func TestNewChannel_UnconfiguredIsNil(t *testing.T) {
	ch := newChannel(config.ChannelConfig{Provider: config.ProviderMeta}, newLogger(config.LogConfig{Level: "error"}))
	if ch != nil {
		t.Fatalf("expected nil channel without credentials, got %T", ch)
	}
}

func TestNewChannel_Providers(t *testing.T) {
	logger := newLogger(config.LogConfig{Level: "error"})

	meta := newChannel(config.ChannelConfig{
		Provider: config.ProviderMeta, PhoneNumberID: "1", AccessToken: "t", Timeout: time.Second,
	}, logger)
	if meta == nil {
		t.Fatalf("expected meta channel")
	}

	hook := newChannel(config.ChannelConfig{
		Provider: config.ProviderWebhook, WebhookURL: "http://localhost", Timeout: time.Second, RatePerSecond: 2,
	}, logger)
	if hook == nil {
		t.Fatalf("expected webhook channel")
	}
}

func TestDispatchConfig(t *testing.T) {
	cfg := &config.Config{Dispatch: config.DispatchConfig{
		DelayMin: time.Second, DelayMax: 2 * time.Second, ContentMax: 100,
		MaxAttempts: 5, BackoffBase: 3, BackoffUnit: time.Millisecond,
		ContactedStatus: "em_contato", PersistTimeout: time.Second,
	}}

	dc := dispatchConfig(cfg, phone.Default)
	if dc.Policy.MaxAttempts != 5 || dc.Policy.Base != 3 || dc.Policy.Unit != time.Millisecond {
		t.Fatalf("unexpected policy: %+v", dc.Policy)
	}
	if dc.DelayMin != time.Second || dc.DelayMax != 2*time.Second || dc.ContentMax != 100 {
		t.Fatalf("unexpected dispatch config: %+v", dc)
	}
}
