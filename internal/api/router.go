package api

import (
	"net/http"

	"github.com/LeventeLantos/whatsapp-dispatcher/internal/telemetry"
)

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)

	mux.HandleFunc("POST /v1/bulk-send", h.BulkSend)
	mux.HandleFunc("GET /v1/bulk-send/status", h.BulkSendStatus)
	mux.HandleFunc("POST /v1/bulk-send/cancel", h.BulkSendCancel)

	mux.HandleFunc("GET /v1/messages/sent", h.ListSentMessages)
	mux.HandleFunc("GET /v1/messages/sent/{id}", h.LookupSentMessage)

	mux.HandleFunc("POST /v1/recipients", h.CreateRecipient)
	mux.HandleFunc("GET /v1/recipients/{id}/history", h.RecipientHistory)
	mux.HandleFunc("POST /v1/leads/status", h.UpdateLeadStatus)
	mux.HandleFunc("GET /v1/templates", h.ListTemplates)

	mux.Handle("GET /metrics", telemetry.Handler())

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("whatsapp-dispatcher"))
	})

	return mux
}
