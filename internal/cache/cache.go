package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("cache: entry not found")

type SentEntry struct {
	RemoteMessageID string    `json:"remoteMessageId"`
	RecipientID     int64     `json:"recipientId"`
	SentAt          time.Time `json:"sentAt"`
}

type MessageCache interface {
	StoreSent(ctx context.Context, remoteMessageID string, recipientID int64, sentAt time.Time) error
	LookupSent(ctx context.Context, remoteMessageID string) (SentEntry, error)
}
