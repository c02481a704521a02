package model

import "time"

type Status string

const (
	Pending Status = "pending"
	Sent    Status = "sent"
	Failed  Status = "failed"
)

// Message is a persisted delivery attempt for one recipient of a batch.
type Message struct {
	ID              int64
	JobID           string
	RecipientID     int64
	RecipientPhone  string
	Content         string
	Status          Status
	AttemptCount    int
	LastError       *string
	SentAt          *time.Time
	RemoteMessageID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MessageFromOutcome converts a batch outcome into the row the store persists.
func MessageFromOutcome(jobID, content string, o SendOutcome) Message {
	m := Message{
		JobID:          jobID,
		RecipientID:    o.RecipientID,
		RecipientPhone: o.Phone,
		Content:        content,
		Status:         Failed,
		AttemptCount:   o.Attempts,
		CreatedAt:      o.At,
		UpdatedAt:      o.At,
	}
	if o.Success {
		m.Status = Sent
		at := o.At
		m.SentAt = &at
		if o.ProviderMessageID != "" {
			id := o.ProviderMessageID
			m.RemoteMessageID = &id
		}
		return m
	}
	reason := string(o.ErrorClass)
	if o.Error != "" {
		reason += ": " + o.Error
	}
	m.LastError = &reason
	return m
}
