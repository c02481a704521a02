package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/LeventeLantos/whatsapp-dispatcher/internal/model"
)

// WebhookClient posts messages to a generic gateway that answers 202 with a messageId.
type WebhookClient struct {
	url  string
	opts options
}

func NewWebhookClient(url string, opts ...Option) *WebhookClient {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &WebhookClient{url: url, opts: o}
}

type sendRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

type sendResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

func (c *WebhookClient) Send(ctx context.Context, phoneNumber, message string) Result {
	if err := c.opts.wait(ctx); err != nil {
		return failure(model.ClassTransient, 0, fmt.Errorf("rate limiter: %w", err))
	}

	reqBody, err := json.Marshal(sendRequest{
		PhoneNumber: phoneNumber,
		Message:     message,
	})
	if err != nil {
		return failure(model.ClassUnknown, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return failure(model.ClassUnknown, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return failure(model.ClassTransient, 0, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return failure(webhookStatusClass(resp.StatusCode), resp.StatusCode,
			fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(body)))
	}

	var sr sendResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return failure(model.ClassUnknown, resp.StatusCode, fmt.Errorf("failed to decode json: %w body=%q", err, string(body)))
	}
	if sr.MessageID == "" {
		return failure(model.ClassUnknown, resp.StatusCode, fmt.Errorf("missing messageId in response body=%q", string(body)))
	}

	return ok(sr.MessageID)
}

func webhookStatusClass(status int) model.ErrorClass {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return model.ClassInvalidRecipient
	}
	return statusClass(status)
}
