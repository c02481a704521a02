package client

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/LeventeLantos/whatsapp-dispatcher/internal/model"
)

// Channel sends one message to a canonical phone and classifies the outcome.
type Channel interface {
	Send(ctx context.Context, phone, text string) Result
}

type Result struct {
	Success           bool
	ProviderMessageID string
	Class             model.ErrorClass
	// Code is the provider error code when one was returned, otherwise the HTTP status.
	Code int
	Err  error
}

func ok(id string) Result {
	return Result{Success: true, ProviderMessageID: id}
}

func failure(class model.ErrorClass, code int, err error) Result {
	return Result{Class: class, Code: code, Err: err}
}

type Option func(*options)

type options struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

func defaultOptions() options {
	return options{
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.httpClient = &http.Client{Timeout: d, Transport: o.httpClient.Transport}
		}
	}
}

// WithRateLimit caps outgoing requests per second. rps <= 0 disables the cap.
func WithRateLimit(rps int) Option {
	return func(o *options) {
		if rps > 0 {
			o.limiter = rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}

func (o options) wait(ctx context.Context) error {
	if o.limiter == nil {
		return nil
	}
	return o.limiter.Wait(ctx)
}

func statusClass(status int) model.ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return model.ClassRateLimited
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return model.ClassUnauthorized
	case status >= 500:
		return model.ClassTransient
	}
	return model.ClassUnknown
}
