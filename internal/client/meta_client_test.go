package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/LeventeLantos/whatsapp-dispatcher/internal/model"
)

func TestMetaClient_Send_Success(t *testing.T) {
	t.Parallel()

	var (
		gotPath string
		gotAuth string
		gotReq  metaRequest
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		b, _ := ioReadAll(r)
		_ = json.Unmarshal(b, &gotReq)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.HBg"}]}`))
	}))
	defer srv.Close()

	c := NewMetaClient(srv.URL+"/", "12345", "secret")
	res := c.Send(context.Background(), "5511912345678", "Olá Ana")

	if !res.Success || res.ProviderMessageID != "wamid.HBg" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if gotPath != "/12345/messages" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotReq.MessagingProduct != "whatsapp" || gotReq.Type != "text" {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
	if gotReq.To != "5511912345678" || gotReq.Text.Body != "Olá Ana" {
		t.Fatalf("unexpected recipient/body: %+v", gotReq)
	}
}

func TestMetaClient_Send_ErrorCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		want   model.ErrorClass
		code   int
	}{
		{"pair rate limit", 400, `{"error":{"code":131056,"message":"pair rate"}}`, model.ClassRateLimited, 131056},
		{"throughput", 400, `{"error":{"code":130429}}`, model.ClassRateLimited, 130429},
		{"invalid user", 400, `{"error":{"code":131026}}`, model.ClassInvalidRecipient, 131026},
		{"not on whatsapp", 400, `{"error":{"code":131005}}`, model.ClassInvalidRecipient, 131005},
		{"blocked", 400, `{"error":{"code":131047}}`, model.ClassBlocked, 131047},
		{"token", 401, `{"error":{"code":190,"message":"expired"}}`, model.ClassUnauthorized, 190},
		{"unknown code on 500", 500, `{"error":{"code":999999}}`, model.ClassTransient, 999999},
		{"unknown code on 400", 400, `{"error":{"code":999999}}`, model.ClassUnknown, 999999},
		{"plain 429", 429, `slow down`, model.ClassRateLimited, 429},
		{"plain 503", 503, ``, model.ClassTransient, 503},
		{"plain 403", 403, `nope`, model.ClassUnauthorized, 403},
		{"2xx without id", 200, `{"messages":[]}`, model.ClassUnknown, 200},
		{"2xx not json", 200, `ok`, model.ClassUnknown, 200},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			res := NewMetaClient(srv.URL, "1", "t").Send(context.Background(), "1", "x")
			if res.Success {
				t.Fatalf("expected failure")
			}
			if res.Class != tc.want {
				t.Fatalf("expected class %s, got %s (err=%v)", tc.want, res.Class, res.Err)
			}
			if res.Code != tc.code {
				t.Fatalf("expected code %d, got %d", tc.code, res.Code)
			}
			if res.Err == nil {
				t.Fatalf("expected error detail")
			}
		})
	}
}

func TestMetaClient_Send_NetworkFailureIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := NewMetaClient(url, "1", "t").Send(context.Background(), "1", "x")
	if res.Success || res.Class != model.ClassTransient {
		t.Fatalf("expected transient failure, got %+v", res)
	}
}
