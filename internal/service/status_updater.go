package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LeventeLantos/whatsapp-dispatcher/internal/contact"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/model"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/phone"
)

type RecipientStore interface {
	ListRecipients(ctx context.Context) ([]model.Recipient, error)
	UpdateRecipientStatuses(ctx context.Context, ids []int64, status, detail string) (int, error)
}

var ErrEmptyStatus = errors.New("status must not be empty")

// StatusUpdater applies a status to every known recipient whose phone appears
// in an externally supplied list, matching on canonical phone.
type StatusUpdater struct {
	store  RecipientStore
	scheme phone.Scheme
	logger *slog.Logger
}

func NewStatusUpdater(store RecipientStore, scheme phone.Scheme, logger *slog.Logger) *StatusUpdater {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusUpdater{store: store, scheme: scheme, logger: logger}
}

type UpdateResult struct {
	contact.MatchResult
	Updated int `json:"updated"`
}

func (u *StatusUpdater) UpdateByPhones(ctx context.Context, phones []string, status, detail string) (UpdateResult, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return UpdateResult{}, ErrEmptyStatus
	}

	recipients, err := u.store.ListRecipients(ctx)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("list recipients: %w", err)
	}

	idx := contact.Build(u.scheme, recipients)
	match := idx.MatchPhones(phones)

	res := UpdateResult{MatchResult: match}
	if len(match.Matched) == 0 {
		return res, nil
	}

	ids := make([]int64, 0, len(match.Matched))
	seen := make(map[int64]struct{}, len(match.Matched))
	for _, m := range match.Matched {
		if _, ok := seen[m.RecipientID]; ok {
			continue
		}
		seen[m.RecipientID] = struct{}{}
		ids = append(ids, m.RecipientID)
	}

	if detail == "" {
		detail = "atualizacao em massa"
	}
	n, err := u.store.UpdateRecipientStatuses(ctx, ids, status, detail)
	if err != nil {
		return res, fmt.Errorf("update statuses: %w", err)
	}
	res.Updated = n

	u.logger.InfoContext(ctx, "bulk status update applied",
		"status", status,
		"matched", len(match.Matched),
		"unmatched", len(match.Unmatched),
		"updated", n,
	)
	return res, nil
}
