package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/LeventeLantos/whatsapp-dispatcher/internal/cache"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/dispatch"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/model"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/personalize"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/repo"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/service"
)

type Dispatcher interface {
	Submit(ctx context.Context, req dispatch.Request) (dispatch.Status, error)
	Cancel() bool
	Status() dispatch.Status
	Configured() bool
}

type RecipientWriter interface {
	InsertRecipient(ctx context.Context, r model.Recipient) (int64, error)
	ListHistory(ctx context.Context, recipientID int64) ([]model.LeadHistory, error)
}

type StatusUpdater interface {
	UpdateByPhones(ctx context.Context, phones []string, status, detail string) (service.UpdateResult, error)
}

type SentLookup interface {
	LookupSent(ctx context.Context, remoteMessageID string) (cache.SentEntry, error)
}

// Deps are the collaborators behind the HTTP surface. Sent may be nil when no cache is configured.
type Deps struct {
	Dispatcher Dispatcher
	Messages   repo.MessageRepository
	Recipients RecipientWriter
	Statuses   StatusUpdater
	Sent       SentLookup
}

type Handler struct {
	deps Deps
}

func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":                 true,
		"channel_configured": h.deps.Dispatcher.Configured(),
	})
}

type bulkSendRequest struct {
	RecipientIDs    []int64 `json:"recipient_ids"`
	Message         string  `json:"message"`
	Template        string  `json:"template"`
	DelayMinSeconds *int    `json:"delay_min_seconds"`
	DelayMaxSeconds *int    `json:"delay_max_seconds"`
}

func (h *Handler) BulkSend(w http.ResponseWriter, r *http.Request) {
	var body bulkSendRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"accepted": false, "reason": err.Error()})
		return
	}

	delayMin, err := seconds("delay_min_seconds", body.DelayMinSeconds)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"accepted": false, "reason": err.Error()})
		return
	}
	delayMax, err := seconds("delay_max_seconds", body.DelayMaxSeconds)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"accepted": false, "reason": err.Error()})
		return
	}

	req := dispatch.Request{
		RecipientIDs: body.RecipientIDs,
		Template:     body.Message,
		TemplateKey:  body.Template,
		DelayMin:     delayMin,
		DelayMax:     delayMax,
	}

	st, err := h.deps.Dispatcher.Submit(r.Context(), req)
	if err != nil {
		writeJSON(w, submitStatus(err), map[string]any{"accepted": false, "reason": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted": true,
		"job_id":   st.JobID,
		"total":    st.Total,
	})
}

func (h *Handler) BulkSendStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Dispatcher.Status())
}

func (h *Handler) BulkSendCancel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"accepted": h.deps.Dispatcher.Cancel()})
}

func (h *Handler) ListSentMessages(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	items, err := h.deps.Messages.ListSent(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []model.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) LookupSentMessage(w http.ResponseWriter, r *http.Request) {
	if h.deps.Sent == nil {
		http.Error(w, "sent message cache is disabled", http.StatusNotFound)
		return
	}

	entry, err := h.deps.Sent.LookupSent(r.Context(), r.PathValue("id"))
	if errors.Is(err, cache.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) CreateRecipient(w http.ResponseWriter, r *http.Request) {
	var body model.Recipient
	if err := decodeBody(w, r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Name) == "" && strings.TrimSpace(body.Phone) == "" {
		http.Error(w, "name or phone is required", http.StatusBadRequest)
		return
	}

	id, err := h.deps.Recipients.InsertRecipient(r.Context(), body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) RecipientHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid recipient id", http.StatusBadRequest)
		return
	}

	items, err := h.deps.Recipients.ListHistory(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []model.LeadHistory{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type leadStatusRequest struct {
	Phones []string `json:"phones"`
	Status string   `json:"status"`
	Detail string   `json:"detail"`
}

func (h *Handler) UpdateLeadStatus(w http.ResponseWriter, r *http.Request) {
	var body leadStatusRequest
	if err := decodeBody(w, r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.deps.Statuses.UpdateByPhones(r.Context(), body.Phones, body.Status, body.Detail)
	if errors.Is(err, service.ErrEmptyStatus) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": personalize.List()})
}

func submitStatus(err error) int {
	var ve *dispatch.ValidationError
	var ce *dispatch.ConfigurationError
	switch {
	case errors.Is(err, dispatch.ErrBatchInProgress):
		return http.StatusConflict
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &ce):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

const maxSeconds = math.MaxInt64 / int64(time.Second)

func seconds(field string, v *int) (*time.Duration, error) {
	if v == nil {
		return nil, nil
	}
	n := int64(*v)
	if n > maxSeconds || n < -maxSeconds {
		return nil, fmt.Errorf("%s out of range", field)
	}
	d := time.Duration(n) * time.Second
	return &d, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
