package repo

import (
	"context"

	"github.com/LeventeLantos/whatsapp-dispatcher/internal/model"
)

type MessageRepository interface {
	RecordMessage(ctx context.Context, m model.Message) error
	ListSent(ctx context.Context, limit, offset int) ([]model.Message, error)
}

type RecipientRepository interface {
	InsertRecipient(ctx context.Context, r model.Recipient) (int64, error)
	ResolveRecipients(ctx context.Context, ids []int64) ([]model.Recipient, error)
	ListRecipients(ctx context.Context) ([]model.Recipient, error)
	MarkRecipientContacted(ctx context.Context, recipientID int64, status string) error
	UpdateRecipientStatuses(ctx context.Context, ids []int64, status, detail string) (int, error)
	ListHistory(ctx context.Context, recipientID int64) ([]model.LeadHistory, error)
}
