package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/LeventeLantos/whatsapp-dispatcher/internal/model"
)

const DefaultMetaBaseURL = "https://graph.facebook.com/v18.0"

// MetaClient talks to the WhatsApp Cloud API.
type MetaClient struct {
	baseURL       string
	phoneNumberID string
	token         string
	opts          options
}

func NewMetaClient(baseURL, phoneNumberID, token string, opts ...Option) *MetaClient {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if baseURL == "" {
		baseURL = DefaultMetaBaseURL
	}
	return &MetaClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		phoneNumberID: phoneNumberID,
		token:         token,
		opts:          o,
	}
}

type metaText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type metaRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             metaText `json:"text"`
}

type metaResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *metaError `json:"error"`
}

type metaError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func (c *MetaClient) Send(ctx context.Context, phone, text string) Result {
	if err := c.opts.wait(ctx); err != nil {
		return failure(model.ClassTransient, 0, fmt.Errorf("rate limiter: %w", err))
	}

	reqBody, err := json.Marshal(metaRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               phone,
		Type:             "text",
		Text:             metaText{Body: text},
	})
	if err != nil {
		return failure(model.ClassUnknown, 0, err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return failure(model.ClassUnknown, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return failure(model.ClassTransient, 0, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var mr metaResponse
	decodeErr := json.Unmarshal(body, &mr)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if decodeErr != nil {
			return failure(model.ClassUnknown, resp.StatusCode, fmt.Errorf("failed to decode json: %w body=%q", decodeErr, string(body)))
		}
		if len(mr.Messages) == 0 || mr.Messages[0].ID == "" {
			return failure(model.ClassUnknown, resp.StatusCode, fmt.Errorf("missing message id in response body=%q", string(body)))
		}
		return ok(mr.Messages[0].ID)
	}

	if decodeErr == nil && mr.Error != nil && mr.Error.Code != 0 {
		class := metaCodeClass(mr.Error.Code)
		if class == model.ClassUnknown {
			class = statusClass(resp.StatusCode)
		}
		return failure(class, mr.Error.Code, fmt.Errorf("provider error %d: %s", mr.Error.Code, mr.Error.Message))
	}

	return failure(statusClass(resp.StatusCode), resp.StatusCode,
		fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(body)))
}

func metaCodeClass(code int) model.ErrorClass {
	switch code {
	case 131056, 130429, 80007, 4:
		return model.ClassRateLimited
	case 131026, 131005, 131009, 100:
		return model.ClassInvalidRecipient
	case 131047, 131031:
		return model.ClassBlocked
	case 190, 10, 200:
		return model.ClassUnauthorized
	case 1, 2, 131000, 131016:
		return model.ClassTransient
	}
	return model.ClassUnknown
}
