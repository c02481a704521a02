package model

import "time"

// ErrorClass is the provider-neutral reason a send failed.
type ErrorClass string

const (
	ClassNone             ErrorClass = ""
	ClassRateLimited      ErrorClass = "rate_limited"
	ClassInvalidRecipient ErrorClass = "invalid_recipient"
	ClassBlocked          ErrorClass = "blocked"
	ClassTransient        ErrorClass = "transient"
	ClassUnauthorized     ErrorClass = "unauthorized"
	ClassUnknown          ErrorClass = "unknown"
)

// Retryable reports whether a later attempt may succeed without changes.
func (c ErrorClass) Retryable() bool {
	return c == ClassRateLimited || c == ClassTransient
}

type SendOutcome struct {
	RecipientID       int64      `json:"recipient_id"`
	Name              string     `json:"name"`
	Phone             string     `json:"phone"`
	Success           bool       `json:"success"`
	ErrorClass        ErrorClass `json:"error_class,omitempty"`
	Error             string     `json:"error,omitempty"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
	Attempts          int        `json:"attempts"`
	At                time.Time  `json:"at"`
}
