package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LeventeLantos/whatsapp-dispatcher/internal/model"
)

func TestWebhookClient_Send_Success(t *testing.T) {
	t.Parallel()

	type gotReq struct {
		Method      string
		ContentType string
		Body        []byte
	}

	var captured gotReq

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Method = r.Method
		captured.ContentType = r.Header.Get("Content-Type")

		b, _ := ioReadAll(r)
		captured.Body = b

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message":"Accepted","messageId":"abc-123"}`))
	}))
	defer srv.Close()

	c := NewWebhookClient(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res := c.Send(ctx, "5511912345678", "hello")
	if !res.Success {
		t.Fatalf("Send() failed: class=%s err=%v", res.Class, res.Err)
	}
	if res.ProviderMessageID != "abc-123" {
		t.Fatalf("expected messageId %q, got %q", "abc-123", res.ProviderMessageID)
	}

	if captured.Method != http.MethodPost {
		t.Fatalf("expected method POST, got %q", captured.Method)
	}
	if captured.ContentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", captured.ContentType)
	}

	var req sendRequest
	if err := json.Unmarshal(captured.Body, &req); err != nil {
		t.Fatalf("failed to decode request json: %v body=%q", err, string(captured.Body))
	}
	if req.PhoneNumber != "5511912345678" {
		t.Fatalf("expected phoneNumber %q, got %q", "5511912345678", req.PhoneNumber)
	}
	if req.Message != "hello" {
		t.Fatalf("expected message %q, got %q", "hello", req.Message)
	}
}

func TestWebhookClient_Send_StatusClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		want   model.ErrorClass
	}{
		{http.StatusOK, model.ClassUnknown},
		{http.StatusBadRequest, model.ClassInvalidRecipient},
		{http.StatusNotFound, model.ClassInvalidRecipient},
		{http.StatusUnprocessableEntity, model.ClassInvalidRecipient},
		{http.StatusUnauthorized, model.ClassUnauthorized},
		{http.StatusForbidden, model.ClassUnauthorized},
		{http.StatusTooManyRequests, model.ClassRateLimited},
		{http.StatusBadGateway, model.ClassTransient},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte("not accepted"))
			}))
			defer srv.Close()

			res := NewWebhookClient(srv.URL).Send(context.Background(), "1", "hi")
			if res.Success {
				t.Fatalf("expected failure")
			}
			if res.Class != tc.want {
				t.Fatalf("expected class %s, got %s", tc.want, res.Class)
			}
			if res.Code != tc.status {
				t.Fatalf("expected code %d, got %d", tc.status, res.Code)
			}
			msg := res.Err.Error()
			if !strings.Contains(msg, `body="not accepted"`) {
				t.Fatalf("expected error to include body, got: %v", res.Err)
			}
		})
	}
}

func TestWebhookClient_Send_InvalidJSON_ReturnsErrorWithBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("THIS IS NOT JSON"))
	}))
	defer srv.Close()

	res := NewWebhookClient(srv.URL).Send(context.Background(), "1", "hi")
	if res.Success || res.Class != model.ClassUnknown {
		t.Fatalf("expected unknown failure, got %+v", res)
	}

	msg := res.Err.Error()
	if !strings.Contains(msg, "failed to decode json") {
		t.Fatalf("expected decode error, got: %v", res.Err)
	}
	if !strings.Contains(msg, `body="THIS IS NOT JSON"`) {
		t.Fatalf("expected error to include body, got: %v", res.Err)
	}
}

func TestWebhookClient_Send_MissingMessageId(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message":"Accepted"}`))
	}))
	defer srv.Close()

	res := NewWebhookClient(srv.URL).Send(context.Background(), "1", "hi")
	if res.Success || res.Class != model.ClassUnknown {
		t.Fatalf("expected unknown failure, got %+v", res)
	}
	if !strings.Contains(res.Err.Error(), "missing messageId") {
		t.Fatalf("expected missing messageId error, got: %v", res.Err)
	}
}

func TestWebhookClient_Send_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message":"Accepted","messageId":"abc"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := NewWebhookClient(srv.URL).Send(ctx, "1", "hi")
	if res.Success {
		t.Fatalf("expected failure")
	}
	if res.Class != model.ClassTransient {
		t.Fatalf("expected transient class, got %s", res.Class)
	}
}

func TestWebhookClient_Send_RateLimiterCanceled(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"messageId":"abc"}`))
	}))
	defer srv.Close()

	c := NewWebhookClient(srv.URL, WithRateLimit(1))

	if res := c.Send(context.Background(), "1", "first"); !res.Success {
		t.Fatalf("first send should pass: %+v", res)
	}

	// The bucket is empty now; a short deadline cannot be satisfied.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res := c.Send(ctx, "1", "second")
	if res.Success || res.Class != model.ClassTransient {
		t.Fatalf("expected transient limiter failure, got %+v", res)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected a single request to reach the server, got %d", n)
	}
}

func ioReadAll(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
